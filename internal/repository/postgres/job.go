package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/nursmen/neuralhire/internal/repository"
)

const jobColumns = `id, title, knowledge, salary, company, additions, city, link, embedding, created_at, updated_at`

// JobRepo implements repository.JobRepository
type JobRepo struct {
	db *DB
}

// NewJobRepo creates a new job repository
func NewJobRepo(db *DB) *JobRepo {
	return &JobRepo{db: db}
}

// FetchWithVectors returns every job that has an embedding
func (r *JobRepo) FetchWithVectors(ctx context.Context) ([]*repository.Job, error) {
	query := `SELECT ` + jobColumns + ` FROM jobs WHERE embedding IS NOT NULL ORDER BY created_at, id`
	jobs, err := r.queryJobs(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch jobs with vectors: %w", err)
	}
	return jobs, nil
}

// GetByIDs returns the jobs that still exist among ids
func (r *JobRepo) GetByIDs(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]*repository.Job, error) {
	out := make(map[uuid.UUID]*repository.Job, len(ids))
	if len(ids) == 0 {
		return out, nil
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = id.String()
	}

	query := `SELECT ` + jobColumns + ` FROM jobs WHERE id = ANY($1::uuid[])`
	jobs, err := r.queryJobs(ctx, query, keys)
	if err != nil {
		return nil, fmt.Errorf("failed to get jobs by ids: %w", err)
	}
	for _, job := range jobs {
		out[job.ID] = job
	}
	return out, nil
}

// Insert stores new jobs in one batch
func (r *JobRepo) Insert(ctx context.Context, jobs []*repository.Job) error {
	if len(jobs) == 0 {
		return nil
	}
	repository.PrepareForInsert(jobs, time.Now().UTC())

	results := r.db.Pool.SendBatch(ctx, insertBatch(jobs))
	defer results.Close()

	for range jobs {
		if _, err := results.Exec(); err != nil {
			return fmt.Errorf("failed to insert job: %w", err)
		}
	}
	return nil
}

// ReplaceAll deletes every job and inserts the given ones in one transaction
func (r *JobRepo) ReplaceAll(ctx context.Context, jobs []*repository.Job) error {
	repository.PrepareForInsert(jobs, time.Now().UTC())

	tx, err := r.db.Pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx, `DELETE FROM jobs`); err != nil {
		return fmt.Errorf("failed to clear jobs: %w", err)
	}

	if len(jobs) > 0 {
		results := tx.SendBatch(ctx, insertBatch(jobs))
		for range jobs {
			if _, err := results.Exec(); err != nil {
				results.Close()
				return fmt.Errorf("failed to insert job: %w", err)
			}
		}
		if err := results.Close(); err != nil {
			return fmt.Errorf("failed to close batch: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit: %w", err)
	}
	return nil
}

// UpdateEmbedding sets or clears the vector of one job
func (r *JobRepo) UpdateEmbedding(ctx context.Context, id uuid.UUID, embedding []float32) error {
	tag, err := r.db.Pool.Exec(ctx,
		`UPDATE jobs SET embedding = $2, updated_at = now() WHERE id = $1`,
		id, toFloat64(embedding))
	if err != nil {
		return fmt.Errorf("failed to update embedding: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrNotFound
	}
	return nil
}

// List returns jobs ordered by creation time
func (r *JobRepo) List(ctx context.Context, limit, offset int) ([]*repository.Job, error) {
	query := `SELECT ` + jobColumns + ` FROM jobs ORDER BY created_at, id LIMIT $1 OFFSET $2`
	jobs, err := r.queryJobs(ctx, query, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list jobs: %w", err)
	}
	return jobs, nil
}

// Count returns the number of jobs and how many carry a vector
func (r *JobRepo) Count(ctx context.Context) (int, int, error) {
	var total, withVectors int
	err := r.db.Pool.QueryRow(ctx,
		`SELECT COUNT(*), COUNT(embedding) FROM jobs`).Scan(&total, &withVectors)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to count jobs: %w", err)
	}
	return total, withVectors, nil
}

// VectorDimensions returns how many jobs store each vector length
func (r *JobRepo) VectorDimensions(ctx context.Context) (map[int]int, error) {
	rows, err := r.db.Pool.Query(ctx, `
		SELECT COALESCE(array_length(embedding, 1), 0) AS dim, COUNT(*)
		FROM jobs
		WHERE embedding IS NOT NULL
		GROUP BY dim
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query dimensions: %w", err)
	}
	defer rows.Close()

	dims := make(map[int]int)
	for rows.Next() {
		var dim, count int
		if err := rows.Scan(&dim, &count); err != nil {
			return nil, fmt.Errorf("failed to scan dimension: %w", err)
		}
		dims[dim] = count
	}
	return dims, rows.Err()
}

// Ping checks database connectivity
func (r *JobRepo) Ping(ctx context.Context) error {
	return r.db.Pool.Ping(ctx)
}

func (r *JobRepo) queryJobs(ctx context.Context, query string, args ...any) ([]*repository.Job, error) {
	rows, err := r.db.Pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var jobs []*repository.Job
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, job)
	}
	return jobs, rows.Err()
}

func scanJob(row pgx.Row) (*repository.Job, error) {
	var job repository.Job
	var embedding []float64

	err := row.Scan(
		&job.ID, &job.Title, &job.Knowledge, &job.Salary, &job.Company,
		&job.Additions, &job.City, &job.Link, &embedding,
		&job.CreatedAt, &job.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to scan job: %w", err)
	}
	job.Embedding = toFloat32(embedding)
	return &job, nil
}

func insertBatch(jobs []*repository.Job) *pgx.Batch {
	batch := &pgx.Batch{}
	for _, job := range jobs {
		batch.Queue(`
			INSERT INTO jobs (`+jobColumns+`)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		`, job.ID, job.Title, job.Knowledge, job.Salary, job.Company,
			job.Additions, job.City, job.Link, toFloat64(job.Embedding),
			job.CreatedAt, job.UpdatedAt)
	}
	return batch
}

// toFloat64 widens a vector for a DOUBLE PRECISION[] column; nil stays NULL.
func toFloat64(v []float32) []float64 {
	if v == nil {
		return nil
	}
	out := make([]float64, len(v))
	for i, f := range v {
		out[i] = float64(f)
	}
	return out
}

func toFloat32(v []float64) []float32 {
	if v == nil {
		return nil
	}
	out := make([]float32, len(v))
	for i, f := range v {
		out[i] = float32(f)
	}
	return out
}

var _ repository.JobRepository = (*JobRepo)(nil)
