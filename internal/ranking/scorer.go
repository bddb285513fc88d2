package ranking

import (
	"context"
	"fmt"
	"sync"

	"github.com/panjf2000/ants/v2"
)

// DefaultChunkSize is the number of vectors scored by one pool task.
const DefaultChunkSize = 512

// Dot returns the inner product of two equal-length vectors, accumulated in float64.
func Dot(a, b []float32) float64 {
	var sum float64
	for i := range a {
		sum += float64(a[i]) * float64(b[i])
	}
	return sum
}

// VectorScorer computes query-document similarities. Vectors are unit
// length, so the dot product is the cosine similarity.
type VectorScorer struct {
	pool      *ants.Pool
	chunkSize int
}

// NewVectorScorer creates a scorer with a pool of workers goroutines.
// workers <= 1 scores inline.
func NewVectorScorer(workers, chunkSize int) (*VectorScorer, error) {
	s := &VectorScorer{chunkSize: chunkSize}
	if s.chunkSize <= 0 {
		s.chunkSize = DefaultChunkSize
	}
	if workers > 1 {
		pool, err := ants.NewPool(workers)
		if err != nil {
			return nil, fmt.Errorf("create scoring pool: %w", err)
		}
		s.pool = pool
	}
	return s, nil
}

// Release stops the worker pool.
func (s *VectorScorer) Release() {
	if s.pool != nil {
		s.pool.Release()
	}
}

// ScoreAll returns dot(query, vectors[i]) for every i. Each dot product is
// computed by a single goroutine so scores do not depend on scheduling.
func (s *VectorScorer) ScoreAll(ctx context.Context, query []float32, vectors [][]float32) ([]float64, error) {
	for i, v := range vectors {
		if len(v) != len(query) {
			return nil, fmt.Errorf("%w: vector %d has %d dimensions, query has %d", ErrDimensionMismatch, i, len(v), len(query))
		}
	}

	scores := make([]float64, len(vectors))
	if s.pool == nil || len(vectors) <= s.chunkSize {
		scoreRange(query, vectors, scores, 0, len(vectors))
		return scores, nil
	}

	var wg sync.WaitGroup
	for start := 0; start < len(vectors); start += s.chunkSize {
		end := min(start+s.chunkSize, len(vectors))
		wg.Add(1)
		task := func() {
			defer wg.Done()
			scoreRange(query, vectors, scores, start, end)
		}
		if err := s.pool.Submit(task); err != nil {
			// Pool closed or overloaded; score this chunk here.
			task()
		}
	}
	wg.Wait()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return scores, nil
}

func scoreRange(query []float32, vectors [][]float32, scores []float64, start, end int) {
	for i := start; i < end; i++ {
		scores[i] = Dot(query, vectors[i])
	}
}
