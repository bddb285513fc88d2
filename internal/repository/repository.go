// Package repository defines the job posting model and its data access interface.
package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

// ErrNotFound is returned when a requested entity does not exist
var ErrNotFound = errors.New("not found")

// SalaryNegotiable marks a posting whose salary is "by agreement".
const SalaryNegotiable int64 = -1

// Job represents a job posting
type Job struct {
	ID        uuid.UUID `json:"id"`
	Title     string    `json:"title"`
	Knowledge string    `json:"knowledge"`
	Salary    *int64    `json:"salary,omitempty"`
	Company   string    `json:"company"`
	Additions string    `json:"additions"` // raw benefit-tag blob, e.g. "['Удаленная работа', 'Опыт не нужен']"
	City      string    `json:"city"`
	Link      string    `json:"link"`
	Embedding []float32 `json:"embedding,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// HasEmbedding reports whether the job carries a vector.
func (j *Job) HasEmbedding() bool {
	return len(j.Embedding) > 0
}

// JobRepository defines job data access operations. Ranking only reads.
type JobRepository interface {
	// FetchWithVectors returns every job with a non-null embedding, in a stable order.
	FetchWithVectors(ctx context.Context) ([]*Job, error)

	// GetByIDs returns the jobs that still exist, keyed by ID. Missing IDs are absent from the map.
	GetByIDs(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]*Job, error)

	// Insert stores new jobs, assigning IDs and timestamps when unset.
	Insert(ctx context.Context, jobs []*Job) error

	// ReplaceAll deletes every job and stores the given ones.
	ReplaceAll(ctx context.Context, jobs []*Job) error

	// UpdateEmbedding sets or clears the vector of one job.
	UpdateEmbedding(ctx context.Context, id uuid.UUID, embedding []float32) error

	// List returns jobs in a stable order with pagination.
	List(ctx context.Context, limit, offset int) ([]*Job, error)

	// Count returns the total number of jobs and how many have a vector.
	Count(ctx context.Context) (total, withVectors int, err error)

	// VectorDimensions returns a histogram of stored vector lengths.
	VectorDimensions(ctx context.Context) (map[int]int, error)

	// Ping checks store connectivity.
	Ping(ctx context.Context) error
}

// PrepareForInsert assigns an ID and timestamps to jobs that lack them.
func PrepareForInsert(jobs []*Job, now time.Time) {
	for _, job := range jobs {
		if job.ID == uuid.Nil {
			job.ID = uuid.New()
		}
		if job.CreatedAt.IsZero() {
			job.CreatedAt = now
		}
		job.UpdatedAt = now
	}
}
