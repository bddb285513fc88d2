package ranking

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/nursmen/neuralhire/internal/repository"
	"github.com/nursmen/neuralhire/internal/vectorstore"
)

// Scored is a job with its vector similarity to the query.
type Scored struct {
	Job   *repository.Job
	Score float64
}

// Retriever returns the jobs to rank, each scored against the query vector.
// Tags may be used to narrow the candidates early; the exact tag filter is
// still applied by Combine, so a retriever may ignore them.
type Retriever interface {
	Retrieve(ctx context.Context, query []float32, tags []string) ([]Scored, error)
}

// BruteForceRetriever scores every stored job that has a vector.
type BruteForceRetriever struct {
	repo   repository.JobRepository
	scorer *VectorScorer
}

// NewBruteForceRetriever creates an exhaustive retriever.
func NewBruteForceRetriever(repo repository.JobRepository, scorer *VectorScorer) *BruteForceRetriever {
	return &BruteForceRetriever{repo: repo, scorer: scorer}
}

// Retrieve returns all jobs with vectors in store order. Tags are left to Combine.
func (r *BruteForceRetriever) Retrieve(ctx context.Context, query []float32, _ []string) ([]Scored, error) {
	jobs, err := r.repo.FetchWithVectors(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetch jobs: %w", err)
	}
	if len(jobs) == 0 {
		return []Scored{}, nil
	}

	vectors := make([][]float32, len(jobs))
	for i, job := range jobs {
		vectors[i] = job.Embedding
	}
	scores, err := r.scorer.ScoreAll(ctx, query, vectors)
	if err != nil {
		return nil, err
	}

	out := make([]Scored, len(jobs))
	for i, job := range jobs {
		out[i] = Scored{Job: job, Score: scores[i]}
	}
	return out, nil
}

// IndexRetriever asks a vector index for the nearest jobs and loads them from the store.
type IndexRetriever struct {
	index vectorstore.VectorStore
	repo  repository.JobRepository
	limit int
}

// NewIndexRetriever creates a retriever returning at most limit jobs.
func NewIndexRetriever(index vectorstore.VectorStore, repo repository.JobRepository, limit int) *IndexRetriever {
	return &IndexRetriever{index: index, repo: repo, limit: limit}
}

// Retrieve returns the index hits in similarity order. Tags are pushed into
// the index search so the limit counts only tagged jobs. Hits whose job no
// longer exists are skipped.
func (r *IndexRetriever) Retrieve(ctx context.Context, query []float32, tags []string) ([]Scored, error) {
	var filter *vectorstore.Filter
	if len(tags) > 0 {
		filter = &vectorstore.Filter{Field: vectorstore.FieldAdditions, AnyText: tags}
	}
	hits, err := r.index.Search(ctx, query, r.limit, filter)
	if err != nil {
		return nil, fmt.Errorf("search index: %w", err)
	}
	if len(hits) == 0 {
		return []Scored{}, nil
	}

	ids := make([]uuid.UUID, len(hits))
	for i, h := range hits {
		ids[i] = h.ID
	}
	jobs, err := r.repo.GetByIDs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("load jobs: %w", err)
	}

	out := make([]Scored, 0, len(hits))
	for _, h := range hits {
		job, ok := jobs[h.ID]
		if !ok {
			continue
		}
		out = append(out, Scored{Job: job, Score: float64(h.Score)})
	}
	return out, nil
}

var (
	_ Retriever = (*BruteForceRetriever)(nil)
	_ Retriever = (*IndexRetriever)(nil)
)
