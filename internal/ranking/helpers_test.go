package ranking

import (
	"context"
	"errors"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/nursmen/neuralhire/internal/embedder"
	"github.com/nursmen/neuralhire/internal/jobtext"
	"github.com/nursmen/neuralhire/internal/repository"
	"github.com/nursmen/neuralhire/internal/reranker"
)

// bagEmbedder maps known words to axes, so similarity counts shared words.
type bagEmbedder struct {
	vocab    map[string]int
	synonyms map[string]string
	err      error
}

func newBagEmbedder() *bagEmbedder {
	words := []string{"python", "developer", "remote", "java", "spring", "django", "flask", "moscow", "intern", "basics", "работа"}
	vocab := make(map[string]int, len(words))
	for i, w := range words {
		vocab[w] = i
	}
	return &bagEmbedder{
		vocab:    vocab,
		synonyms: map[string]string{"удаленная": "remote"},
	}
}

func (b *bagEmbedder) vector(text string) []float32 {
	v := make([]float32, len(b.vocab))
	for tok := range jobtext.Tokens(text) {
		if syn, ok := b.synonyms[tok]; ok {
			tok = syn
		}
		if i, ok := b.vocab[tok]; ok {
			v[i] = 1
		}
	}
	unit, err := embedder.Normalize(v)
	if err != nil {
		return v
	}
	return unit
}

func (b *bagEmbedder) EmbedQuery(_ context.Context, text string) ([]float32, error) {
	if b.err != nil {
		return nil, b.err
	}
	return b.vector(text), nil
}

// memRepo is an in-memory JobRepository.
type memRepo struct {
	mu      sync.Mutex
	jobs    []*repository.Job
	missing map[uuid.UUID]bool
}

func newMemRepo(jobs ...*repository.Job) *memRepo {
	return &memRepo{jobs: jobs, missing: map[uuid.UUID]bool{}}
}

func (m *memRepo) FetchWithVectors(context.Context) ([]*repository.Job, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*repository.Job
	for _, j := range m.jobs {
		if j.HasEmbedding() {
			out = append(out, j)
		}
	}
	return out, nil
}

func (m *memRepo) GetByIDs(_ context.Context, ids []uuid.UUID) (map[uuid.UUID]*repository.Job, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[uuid.UUID]*repository.Job)
	for _, id := range ids {
		for _, j := range m.jobs {
			if j.ID == id && !m.missing[id] {
				out[id] = j
			}
		}
	}
	return out, nil
}

func (m *memRepo) Insert(_ context.Context, jobs []*repository.Job) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.jobs = append(m.jobs, jobs...)
	return nil
}

func (m *memRepo) ReplaceAll(_ context.Context, jobs []*repository.Job) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.jobs = jobs
	return nil
}

func (m *memRepo) UpdateEmbedding(_ context.Context, id uuid.UUID, embedding []float32) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, j := range m.jobs {
		if j.ID == id {
			j.Embedding = embedding
			return nil
		}
	}
	return repository.ErrNotFound
}

func (m *memRepo) List(_ context.Context, limit, offset int) ([]*repository.Job, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if offset >= len(m.jobs) {
		return nil, nil
	}
	return m.jobs[offset:min(offset+limit, len(m.jobs))], nil
}

func (m *memRepo) Count(context.Context) (int, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	with := 0
	for _, j := range m.jobs {
		if j.HasEmbedding() {
			with++
		}
	}
	return len(m.jobs), with, nil
}

func (m *memRepo) VectorDimensions(context.Context) (map[int]int, error) {
	return map[int]int{}, nil
}

func (m *memRepo) Ping(context.Context) error { return nil }

// scenarioJobs returns postings a, b and c with vectors from emb.
func scenarioJobs(emb *bagEmbedder) (a, b, c *repository.Job) {
	a = &repository.Job{ID: uuid.New(), Title: "Python Developer", Knowledge: "django flask", City: "Moscow", Additions: "['Удаленная работа']"}
	b = &repository.Job{ID: uuid.New(), Title: "Java Developer", Knowledge: "spring"}
	c = &repository.Job{ID: uuid.New(), Title: "Python Intern", Knowledge: "python basics", Additions: "['Удаленная работа']"}
	for _, j := range []*repository.Job{a, b, c} {
		j.Embedding = emb.vector(JobText(j))
	}
	return a, b, c
}

// stubReranker scores documents by a fixed function of their text.
type stubReranker struct {
	score func(doc string) float64
	err   error
	calls int
}

func (s *stubReranker) Rerank(_ context.Context, _ string, docs []string, topK int) ([]reranker.Result, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	out := make([]reranker.Result, len(docs))
	for i, d := range docs {
		out[i] = reranker.Result{Index: i, Score: s.score(d)}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	if len(out) > topK {
		out = out[:topK]
	}
	return out, nil
}

var errUnavailable = errors.New("service unavailable")
