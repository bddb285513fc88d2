// Package vectorstore provides an approximate nearest-neighbour index over job vectors.
package vectorstore

import (
	"context"

	"github.com/google/uuid"
)

// Point is one indexed job vector.
type Point struct {
	ID      uuid.UUID
	Vector  []float32
	Payload map[string]string
}

// SearchResult represents a search hit from the vector store
type SearchResult struct {
	ID      uuid.UUID
	Score   float32
	Payload map[string]string
}

// Filter restricts a search to points whose Field payload contains at least
// one of AnyText. Matching is token based, so it may admit more points than an
// exact substring test would; callers apply their own exact check afterwards.
type Filter struct {
	Field   string
	AnyText []string
}

// Empty reports whether the filter admits every point.
func (f *Filter) Empty() bool {
	return f == nil || len(f.AnyText) == 0
}

// VectorStore defines the interface for vector index operations
type VectorStore interface {
	// EnsureCollection creates the collection when it does not exist yet.
	EnsureCollection(ctx context.Context, dimension int) error

	// RecreateCollection drops the collection and creates it empty.
	RecreateCollection(ctx context.Context, dimension int) error

	// Upsert inserts or updates points.
	Upsert(ctx context.Context, points []Point) error

	// Search returns up to limit points by descending similarity. A non-empty
	// filter is applied before the limit.
	Search(ctx context.Context, vector []float32, limit int, filter *Filter) ([]SearchResult, error)

	// Count returns the number of indexed points.
	Count(ctx context.Context) (uint64, error)
}
