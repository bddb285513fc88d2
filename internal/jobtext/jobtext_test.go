package jobtext

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClean(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"  Python   Developer \n", "Python Developer"},
		{"C++ / C# разработчик", "C++ / C# разработчик"},
		{"Go★developer•remote", "Go developer remote"},
		{"\t\n", ""},
		{"Зарплата 100%", "Зарплата 100%"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Clean(tt.in), "Clean(%q)", tt.in)
	}
}

func TestCleanField_DropsSentinels(t *testing.T) {
	for _, s := range []string{"Unknown", " NONE ", "n/a", "NaN", "-"} {
		assert.Empty(t, CleanField(s), "CleanField(%q)", s)
	}
	assert.Equal(t, "Moscow", CleanField(" Moscow "))
	assert.Equal(t, "unknown soldier", CleanField("unknown soldier"))
}

func TestCompose(t *testing.T) {
	got := Compose(Fields{
		Title:     "  Python Developer ",
		Knowledge: "django   flask",
		City:      "Moscow",
		Company:   "Unknown",
		Additions: "['Удаленная работа', 'Опыт не нужен']",
	})
	assert.Equal(t, "Python Developer. django flask. Moscow. Удаленная работа, Опыт не нужен", got)
}

func TestCompose_Stable(t *testing.T) {
	f := Fields{Title: "Java Developer", Knowledge: "spring", City: "n/a"}
	first := Compose(f)
	for i := 0; i < 10; i++ {
		assert.Equal(t, first, Compose(f))
	}
	assert.Equal(t, "Java Developer. spring", first)
	assert.Empty(t, Compose(Fields{}))
}

func TestTokens(t *testing.T) {
	tokens := Tokens("Python Developer. django, flask python")
	assert.Equal(t, map[string]struct{}{
		"python": {}, "developer": {}, "django": {}, "flask": {},
	}, tokens)
	assert.Empty(t, Tokens("   "))
	assert.Contains(t, Tokens("Удаленная РАБОТА"), "работа")
}

func TestSplitAdditions(t *testing.T) {
	assert.Equal(t, []string{"Удаленная работа", "Опыт не нужен"},
		SplitAdditions(`["Удаленная работа", 'Опыт не нужен', ]`))
	assert.Nil(t, SplitAdditions("[]"))
	assert.Equal(t, []string{"Доступно студентам"}, SplitAdditions("Доступно студентам, nan"))
}

func TestCleanCompany(t *testing.T) {
	assert.Equal(t, "Яндекс", CleanCompany("Яндекс4.5"))
	assert.Equal(t, "Сбер", CleanCompany("Сбер 6,3"))
	assert.Equal(t, "Ozon", CleanCompany("Ozon"))
}

func TestCatalog(t *testing.T) {
	c := DefaultCatalog()
	require.Len(t, c.Tags, 6)
	assert.NoError(t, c.Validate([]string{"Удаленная работа"}))
	assert.Error(t, c.Validate([]string{"Удаленная"}))

	path := filepath.Join(t.TempDir(), "tags.yaml")
	require.NoError(t, os.WriteFile(path, []byte("tags:\n  - Remote\n  - Students\n"), 0o600))

	loaded, err := LoadCatalog(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"Remote", "Students"}, loaded.Tags)

	empty := filepath.Join(t.TempDir(), "empty.yaml")
	require.NoError(t, os.WriteFile(empty, []byte("tags: []\n"), 0o600))
	_, err = LoadCatalog(empty)
	assert.Error(t, err)

	def, err := LoadCatalog("")
	require.NoError(t, err)
	assert.Equal(t, DefaultTags, def.Tags)
}
