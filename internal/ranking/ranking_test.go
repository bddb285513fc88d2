package ranking

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nursmen/neuralhire/internal/jobtext"
	"github.com/nursmen/neuralhire/internal/repository"
)

func TestDot_SelfSimilarity(t *testing.T) {
	v := newBagEmbedder().vector("python developer remote")
	assert.InDelta(t, 1.0, Dot(v, v), 1e-6)
}

func TestVectorScorer_ScoreAll(t *testing.T) {
	s, err := NewVectorScorer(1, 0)
	require.NoError(t, err)
	defer s.Release()

	scores, err := s.ScoreAll(context.Background(), []float32{1, 0}, [][]float32{{1, 0}, {0, 1}, {0.5, 0.5}})
	require.NoError(t, err)
	assert.Equal(t, []float64{1, 0, 0.5}, scores)

	empty, err := s.ScoreAll(context.Background(), []float32{1, 0}, nil)
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestVectorScorer_DimensionMismatch(t *testing.T) {
	s, err := NewVectorScorer(1, 0)
	require.NoError(t, err)

	_, err = s.ScoreAll(context.Background(), []float32{1, 0}, [][]float32{{1, 0}, {1, 0, 0}})
	assert.ErrorIs(t, err, ErrDimensionMismatch)
}

func TestVectorScorer_PooledMatchesInline(t *testing.T) {
	vectors := make([][]float32, 1000)
	for i := range vectors {
		vectors[i] = []float32{float32(i % 7), float32(i % 11), float32(i % 13)}
	}
	query := []float32{0.3, 0.5, 0.2}

	inline, err := NewVectorScorer(1, 0)
	require.NoError(t, err)
	pooled, err := NewVectorScorer(4, 64)
	require.NoError(t, err)
	defer pooled.Release()

	want, err := inline.ScoreAll(context.Background(), query, vectors)
	require.NoError(t, err)
	got, err := pooled.ScoreAll(context.Background(), query, vectors)
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestMatchesAnyTag(t *testing.T) {
	blob := "['Удаленная работа', 'Опыт не нужен']"

	assert.True(t, MatchesAnyTag(blob, nil))
	assert.True(t, MatchesAnyTag(blob, []string{"Опыт не нужен"}))
	assert.True(t, MatchesAnyTag(blob, []string{"Гибкий график", "Удаленная работа"}))
	assert.False(t, MatchesAnyTag(blob, []string{"Гибкий график"}))
	assert.False(t, MatchesAnyTag(blob, []string{"удаленная работа"}), "match is case-sensitive")
	assert.False(t, MatchesAnyTag("", []string{"Удаленная работа"}))
}

func TestLexicalBoost(t *testing.T) {
	q := jobtext.Tokens("python developer")

	assert.Zero(t, LexicalBoost(q, jobtext.Tokens("java spring")))
	assert.Equal(t, 1.0, LexicalBoost(q, jobtext.Tokens("Senior Python Developer, Django")))
	assert.Equal(t, 0.5, LexicalBoost(q, jobtext.Tokens("python intern")))
	assert.Zero(t, LexicalBoost(jobtext.Tokens("  "), jobtext.Tokens("python")))
	assert.Equal(t, 0.5, LexicalBoost(jobtext.Tokens("python python java"), jobtext.Tokens("python")))
}

func TestSelectTop_StableAndTruncated(t *testing.T) {
	ids := []uuid.UUID{uuid.New(), uuid.New(), uuid.New(), uuid.New()}
	cands := []Candidate{
		{JobID: ids[0], CombinedScore: 0.5},
		{JobID: ids[1], CombinedScore: 0.9},
		{JobID: ids[2], CombinedScore: 0.5},
		{JobID: ids[3], CombinedScore: 0.1},
	}

	top := SelectTop(cands, 3)
	require.Len(t, top, 3)
	assert.Equal(t, []uuid.UUID{ids[1], ids[0], ids[2]}, []uuid.UUID{top[0].JobID, top[1].JobID, top[2].JobID})
}

func TestCombine_FiltersBeforeScoring(t *testing.T) {
	emb := newBagEmbedder()
	a, b, c := scenarioJobs(emb)
	scored := []Scored{{Job: a, Score: 0.1}, {Job: b, Score: 0.99}, {Job: c, Score: 0.2}}

	cands := Combine(scored, []string{"Удаленная работа"}, jobtext.Tokens("python developer remote"), 0.3)
	require.Len(t, cands, 2)
	for _, cand := range cands {
		assert.NotEqual(t, b.ID, cand.JobID)
		assert.InDelta(t, cand.VectorScore+0.3*cand.LexicalBoost, cand.CombinedScore, 1e-12)
	}
}

func TestRound(t *testing.T) {
	assert.Equal(t, 0.1235, Round(0.123456, 4))
	assert.Equal(t, 1.0, Round(0.99996, 4))
	assert.Equal(t, 0.123456, Round(0.123456, -1))
}

func TestSummary(t *testing.T) {
	j := &repository.Job{Title: "Go Developer", Company: "Acme", City: "Kazan", Knowledge: "go, postgres"}
	assert.Equal(t, "Go Developer, Acme, Kazan: go, postgres", Summary(j))
	assert.Equal(t, "Intern", Summary(&repository.Job{Title: "Intern"}))
}
