package ingestion

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nursmen/neuralhire/internal/repository"
)

func TestParseSalary(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want *int64
	}{
		{"empty", "", nil},
		{"pandas nan", "NaN", nil},
		{"plain", "85000", ptr(85000)},
		{"float export", "85000.0", ptr(85000)},
		{"grouped with nbsp", "150\u00a0000 ₽", ptr(150000)},
		{"grouped with spaces", "от 60 000 руб.", ptr(60000)},
		{"negotiable ru", "По договорённости", ptr(repository.SalaryNegotiable)},
		{"negotiable short", "договорная", ptr(repository.SalaryNegotiable)},
		{"negotiable en", "Negotiable", ptr(repository.SalaryNegotiable)},
		{"not specified", "не указана", ptr(repository.SalaryNegotiable)},
		{"no digits", "зарплата", ptr(repository.SalaryNegotiable)},
		{"overflow", "99999999999", ptr(repository.SalaryNegotiable)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseSalary(tt.in))
		})
	}
}

func ptr(v int64) *int64 { return &v }

func TestReadCSV(t *testing.T) {
	data := "\ufefftitle,money,knoladge,company,addition,city,link\n" +
		"Python Developer,120000,\"django, flask\",Яндекс4.5,\"['Удаленная работа']\",Москва,https://example.com/1\n" +
		"Курьер,По договорённости,,,,,\n"

	rows, err := ReadCSV(strings.NewReader(data))
	require.NoError(t, err)
	require.Len(t, rows, 2)

	first := rows[0].Job()
	assert.Equal(t, "Python Developer", first.Title)
	assert.Equal(t, "django, flask", first.Knowledge)
	assert.Equal(t, "Яндекс", first.Company)
	assert.Equal(t, "['Удаленная работа']", first.Additions)
	assert.Equal(t, int64(120000), *first.Salary)
	assert.Equal(t, "https://example.com/1", first.Link)

	second := rows[1].Job()
	assert.Equal(t, "Курьер", second.Title)
	assert.Equal(t, "Unknown", second.Company)
	assert.Equal(t, "Unknown", second.City)
	assert.Equal(t, repository.SalaryNegotiable, *second.Salary)
}

func TestReadCSV_MissingColumns(t *testing.T) {
	rows, err := ReadCSV(strings.NewReader("title,city\nTester,Kazan\n"))
	require.NoError(t, err)
	require.Len(t, rows, 1)

	job := rows[0].Job()
	assert.Equal(t, "Tester", job.Title)
	assert.Nil(t, job.Salary)
	assert.Empty(t, job.Knowledge)
}

func TestReadCSV_Empty(t *testing.T) {
	_, err := ReadCSV(strings.NewReader(""))
	assert.Error(t, err)
}

func TestWriter_RoundTrip(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf)
	require.NoError(t, w.Write(Row{ColTitle: "Go Developer", ColMoney: "200000", ColCity: "Казань"}))
	require.NoError(t, w.Flush())

	assert.True(t, strings.HasPrefix(buf.String(), "title,money,knoladge,company,addition,city,link\n"))

	rows, err := ReadCSV(&buf)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "Казань", rows[0].Get(ColCity))
}
