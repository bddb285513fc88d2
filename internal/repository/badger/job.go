package badger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
	"github.com/nursmen/neuralhire/internal/repository"
)

// JobRepo implements repository.JobRepository on BadgerDB
type JobRepo struct {
	db  *DB
	seq *badger.Sequence
}

// NewJobRepo creates a job repository. Close releases its ID sequence.
func NewJobRepo(db *DB) (*JobRepo, error) {
	seq, err := db.db.GetSequence([]byte(jobSeq), defaultSequenceBandwidth)
	if err != nil {
		return nil, fmt.Errorf("failed to get job sequence: %w", err)
	}
	return &JobRepo{db: db, seq: seq}, nil
}

// Close releases the ID sequence
func (r *JobRepo) Close() error {
	return r.seq.Release()
}

// FetchWithVectors returns every job that has an embedding, in insertion order
func (r *JobRepo) FetchWithVectors(ctx context.Context) ([]*repository.Job, error) {
	var jobs []*repository.Job
	err := r.scan(ctx, func(job *repository.Job) bool {
		if job.HasEmbedding() {
			jobs = append(jobs, job)
		}
		return true
	})
	if err != nil {
		return nil, fmt.Errorf("failed to fetch jobs with vectors: %w", err)
	}
	return jobs, nil
}

// GetByIDs returns the jobs that still exist among ids
func (r *JobRepo) GetByIDs(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]*repository.Job, error) {
	out := make(map[uuid.UUID]*repository.Job, len(ids))
	err := r.db.db.View(func(txn *badger.Txn) error {
		for _, id := range ids {
			if err := ctx.Err(); err != nil {
				return err
			}
			job, _, err := getJob(txn, id)
			if errors.Is(err, repository.ErrNotFound) {
				continue
			}
			if err != nil {
				return err
			}
			out[id] = job
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get jobs by ids: %w", err)
	}
	return out, nil
}

// Insert stores new jobs
func (r *JobRepo) Insert(ctx context.Context, jobs []*repository.Job) error {
	if len(jobs) == 0 {
		return nil
	}
	repository.PrepareForInsert(jobs, time.Now().UTC())

	wb := r.db.db.NewWriteBatch()
	defer wb.Cancel()

	for _, job := range jobs {
		if err := ctx.Err(); err != nil {
			return err
		}
		seq, err := r.nextSeq()
		if err != nil {
			return err
		}
		value, err := json.Marshal(job)
		if err != nil {
			return fmt.Errorf("failed to marshal job: %w", err)
		}
		key := recordKey(seq)
		if err := wb.Set(key, value); err != nil {
			return fmt.Errorf("failed to write job: %w", err)
		}
		if err := wb.Set(idKey(job.ID), key); err != nil {
			return fmt.Errorf("failed to write job index: %w", err)
		}
	}

	if err := wb.Flush(); err != nil {
		return fmt.Errorf("failed to flush jobs: %w", err)
	}
	return nil
}

// ReplaceAll deletes every job and stores the given ones
func (r *JobRepo) ReplaceAll(ctx context.Context, jobs []*repository.Job) error {
	if err := r.db.db.DropPrefix([]byte(jobRecordPrefix), []byte(jobIDPrefix)); err != nil {
		return fmt.Errorf("failed to clear jobs: %w", err)
	}
	return r.Insert(ctx, jobs)
}

// UpdateEmbedding sets or clears the vector of one job
func (r *JobRepo) UpdateEmbedding(ctx context.Context, id uuid.UUID, embedding []float32) error {
	return r.db.db.Update(func(txn *badger.Txn) error {
		job, key, err := getJob(txn, id)
		if err != nil {
			return err
		}
		job.Embedding = embedding
		job.UpdatedAt = time.Now().UTC()

		value, err := json.Marshal(job)
		if err != nil {
			return fmt.Errorf("failed to marshal job: %w", err)
		}
		return txn.Set(key, value)
	})
}

// List returns jobs in insertion order
func (r *JobRepo) List(ctx context.Context, limit, offset int) ([]*repository.Job, error) {
	var jobs []*repository.Job
	skipped := 0
	err := r.scan(ctx, func(job *repository.Job) bool {
		if skipped < offset {
			skipped++
			return true
		}
		jobs = append(jobs, job)
		return limit <= 0 || len(jobs) < limit
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list jobs: %w", err)
	}
	return jobs, nil
}

// Count returns the number of jobs and how many carry a vector
func (r *JobRepo) Count(ctx context.Context) (int, int, error) {
	var total, withVectors int
	err := r.scan(ctx, func(job *repository.Job) bool {
		total++
		if job.HasEmbedding() {
			withVectors++
		}
		return true
	})
	if err != nil {
		return 0, 0, fmt.Errorf("failed to count jobs: %w", err)
	}
	return total, withVectors, nil
}

// VectorDimensions returns how many jobs store each vector length
func (r *JobRepo) VectorDimensions(ctx context.Context) (map[int]int, error) {
	dims := make(map[int]int)
	err := r.scan(ctx, func(job *repository.Job) bool {
		if job.HasEmbedding() {
			dims[len(job.Embedding)]++
		}
		return true
	})
	if err != nil {
		return nil, fmt.Errorf("failed to count dimensions: %w", err)
	}
	return dims, nil
}

// Ping reports whether the database is open
func (r *JobRepo) Ping(_ context.Context) error {
	if r.db.db.IsClosed() {
		return errors.New("badger: database is closed")
	}
	return nil
}

// scan walks every job record in key order until fn returns false.
func (r *JobRepo) scan(ctx context.Context, fn func(*repository.Job) bool) error {
	return r.db.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(jobRecordPrefix)
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			var job repository.Job
			err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &job)
			})
			if err != nil {
				return fmt.Errorf("failed to decode job: %w", err)
			}
			if !fn(&job) {
				return nil
			}
		}
		return nil
	})
}

func (r *JobRepo) nextSeq() (uint64, error) {
	n, err := r.seq.Next()
	if err != nil {
		return 0, fmt.Errorf("failed to allocate job sequence: %w", err)
	}
	// Sequences start at zero; keep zero unused.
	if n == 0 {
		if n, err = r.seq.Next(); err != nil {
			return 0, fmt.Errorf("failed to allocate job sequence: %w", err)
		}
	}
	return n, nil
}

func getJob(txn *badger.Txn, id uuid.UUID) (*repository.Job, []byte, error) {
	item, err := txn.Get(idKey(id))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, nil, repository.ErrNotFound
	}
	if err != nil {
		return nil, nil, err
	}
	key, err := item.ValueCopy(nil)
	if err != nil {
		return nil, nil, err
	}

	item, err = txn.Get(key)
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, nil, repository.ErrNotFound
	}
	if err != nil {
		return nil, nil, err
	}

	var job repository.Job
	if err := item.Value(func(val []byte) error {
		return json.Unmarshal(val, &job)
	}); err != nil {
		return nil, nil, fmt.Errorf("failed to decode job: %w", err)
	}
	return &job, key, nil
}

var _ repository.JobRepository = (*JobRepo)(nil)
