package ranking

import (
	"context"
	"sort"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nursmen/neuralhire/internal/repository"
	"github.com/nursmen/neuralhire/internal/vectorstore"
)

// memIndex is an exhaustive VectorStore that applies filters before the limit.
type memIndex struct {
	points  []vectorstore.Point
	filters []*vectorstore.Filter
}

func newMemIndex(jobs ...*repository.Job) *memIndex {
	idx := &memIndex{}
	for _, j := range jobs {
		idx.points = append(idx.points, vectorstore.Point{
			ID:      j.ID,
			Vector:  j.Embedding,
			Payload: map[string]string{vectorstore.FieldAdditions: j.Additions},
		})
	}
	return idx
}

func (m *memIndex) EnsureCollection(context.Context, int) error   { return nil }
func (m *memIndex) RecreateCollection(context.Context, int) error { return nil }

func (m *memIndex) Upsert(_ context.Context, points []vectorstore.Point) error {
	m.points = append(m.points, points...)
	return nil
}

func (m *memIndex) Search(_ context.Context, vector []float32, limit int, filter *vectorstore.Filter) ([]vectorstore.SearchResult, error) {
	m.filters = append(m.filters, filter)
	var out []vectorstore.SearchResult
	for _, p := range m.points {
		if !filter.Empty() && !matchesAny(p.Payload[filter.Field], filter.AnyText) {
			continue
		}
		var dot float32
		for i := range vector {
			dot += vector[i] * p.Vector[i]
		}
		out = append(out, vectorstore.SearchResult{ID: p.ID, Score: dot, Payload: p.Payload})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *memIndex) Count(context.Context) (uint64, error) {
	return uint64(len(m.points)), nil
}

func matchesAny(text string, terms []string) bool {
	text = strings.ToLower(text)
	for _, t := range terms {
		if strings.Contains(text, strings.ToLower(t)) {
			return true
		}
	}
	return false
}

var _ vectorstore.VectorStore = (*memIndex)(nil)

func TestIndexRetriever_SimilarityOrder(t *testing.T) {
	emb := newBagEmbedder()
	a, b, c := scenarioJobs(emb)
	r := NewIndexRetriever(newMemIndex(a, b, c), newMemRepo(a, b, c), 10)

	got, err := r.Retrieve(context.Background(), emb.vector("java developer"), nil)
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, b.ID, got[0].Job.ID)
	assert.Equal(t, a.ID, got[1].Job.ID)
	assert.Equal(t, c.ID, got[2].Job.ID)
	assert.GreaterOrEqual(t, got[0].Score, got[1].Score)
	assert.GreaterOrEqual(t, got[1].Score, got[2].Score)
}

func TestIndexRetriever_Limit(t *testing.T) {
	emb := newBagEmbedder()
	a, b, c := scenarioJobs(emb)
	r := NewIndexRetriever(newMemIndex(a, b, c), newMemRepo(a, b, c), 1)

	got, err := r.Retrieve(context.Background(), emb.vector("java developer"), nil)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, b.ID, got[0].Job.ID)
}

func TestIndexRetriever_SkipsMissingJobs(t *testing.T) {
	emb := newBagEmbedder()
	a, b, c := scenarioJobs(emb)
	repo := newMemRepo(a, b, c)
	repo.missing[b.ID] = true
	r := NewIndexRetriever(newMemIndex(a, b, c), repo, 10)

	got, err := r.Retrieve(context.Background(), emb.vector("java developer"), nil)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, a.ID, got[0].Job.ID)
	assert.Equal(t, c.ID, got[1].Job.ID)
}

func TestIndexRetriever_PushesTagsIntoSearch(t *testing.T) {
	emb := newBagEmbedder()
	a, b, c := scenarioJobs(emb)
	idx := newMemIndex(a, b, c)
	r := NewIndexRetriever(idx, newMemRepo(a, b, c), 1)

	got, err := r.Retrieve(context.Background(), emb.vector("java developer"), []string{"Удаленная работа"})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, a.ID, got[0].Job.ID)

	require.Len(t, idx.filters, 1)
	assert.Equal(t, vectorstore.FieldAdditions, idx.filters[0].Field)
	assert.Equal(t, []string{"Удаленная работа"}, idx.filters[0].AnyText)
}

func TestIndexRetriever_NoTagsNoFilter(t *testing.T) {
	emb := newBagEmbedder()
	a, _, _ := scenarioJobs(emb)
	idx := newMemIndex(a)
	r := NewIndexRetriever(idx, newMemRepo(a), 10)

	_, err := r.Retrieve(context.Background(), emb.vector("python"), []string{})
	require.NoError(t, err)
	require.Len(t, idx.filters, 1)
	assert.True(t, idx.filters[0].Empty())
}

func newIndexPipeline(t *testing.T, emb *bagEmbedder, idx *memIndex, repo *memRepo, limit int) *Pipeline {
	t.Helper()
	return NewPipeline(emb, NewIndexRetriever(idx, repo, limit), repo, testConfig)
}

func TestPipeline_IndexEmpty(t *testing.T) {
	emb := newBagEmbedder()
	p := newIndexPipeline(t, emb, newMemIndex(), newMemRepo(), 10)

	res, err := p.Rank(context.Background(), Request{Query: "python"})
	require.NoError(t, err)
	assert.True(t, res.NoMatches)
	assert.Equal(t, ReasonNoDocuments, res.Reason)
	assert.Empty(t, res.Jobs)
}

func TestPipeline_IndexTaggedJobsBeyondLimit(t *testing.T) {
	emb := newBagEmbedder()
	a, b, c := scenarioJobs(emb)
	// The untagged Java posting is the nearest hit; with limit 1 the tagged
	// postings must still be found.
	p := newIndexPipeline(t, emb, newMemIndex(a, b, c), newMemRepo(a, b, c), 1)

	res, err := p.Rank(context.Background(), Request{Query: "java developer", Tags: []string{"Удаленная работа"}})
	require.NoError(t, err)
	assert.False(t, res.NoMatches)
	assert.Equal(t, []uuid.UUID{a.ID}, jobIDs(res.Jobs))
}

func TestPipeline_IndexMatchesBruteForce(t *testing.T) {
	emb := newBagEmbedder()
	a, b, c := scenarioJobs(emb)
	repo := newMemRepo(a, b, c)
	indexed := newIndexPipeline(t, emb, newMemIndex(a, b, c), repo, 10)
	brute := newTestPipeline(t, emb, repo, testConfig)

	req := Request{Query: "python developer", Tags: []string{"Удаленная работа"}}
	fromIndex, err := indexed.Rank(context.Background(), req)
	require.NoError(t, err)
	fromScan, err := brute.Rank(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, jobIDs(fromScan.Jobs), jobIDs(fromIndex.Jobs))
}
