package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/panjf2000/ants/v2"
	"go.uber.org/zap"

	"github.com/nursmen/neuralhire/internal/ingestion"
	"github.com/nursmen/neuralhire/internal/logger"
	"github.com/nursmen/neuralhire/internal/ranking"
	"github.com/nursmen/neuralhire/internal/repository"
	"github.com/nursmen/neuralhire/internal/vectorstore"
)

// ErrIndexDisabled is returned by Index when no vector index is configured.
var ErrIndexDisabled = errors.New("vector index is not configured")

const (
	defaultEmbedBatch = 32
	listPageSize      = 500
)

// DocumentEmbedder encodes job texts for storage.
type DocumentEmbedder interface {
	EmbedDocument(ctx context.Context, text string) ([]float32, error)
	EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error)
	Dimension() int
}

// JobService maintains the job corpus and its vectors.
type JobService struct {
	repo      repository.JobRepository
	embed     DocumentEmbedder
	index     vectorstore.VectorStore
	workers   int
	batchSize int
	logger    *zap.Logger
}

// JobOption configures a JobService.
type JobOption func(*JobService)

// WithIndex mirrors stored vectors into a vector index.
func WithIndex(index vectorstore.VectorStore) JobOption {
	return func(s *JobService) {
		s.index = index
	}
}

// WithWorkers sets the number of concurrent embedding batches.
func WithWorkers(n int) JobOption {
	return func(s *JobService) {
		if n > 0 {
			s.workers = n
		}
	}
}

// WithBatchSize sets how many texts one embedding call carries.
func WithBatchSize(n int) JobOption {
	return func(s *JobService) {
		if n > 0 {
			s.batchSize = n
		}
	}
}

// WithJobLogger sets the logger.
func WithJobLogger(l *zap.Logger) JobOption {
	return func(s *JobService) {
		s.logger = l
	}
}

// NewJobService creates a JobService.
func NewJobService(repo repository.JobRepository, embed DocumentEmbedder, opts ...JobOption) *JobService {
	s := &JobService{
		repo:      repo,
		embed:     embed,
		workers:   4,
		batchSize: defaultEmbedBatch,
		logger:    zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ImportStats summarises an import.
type ImportStats struct {
	Rows          int
	Embedded      int
	EmbedFailures int
	Indexed       int
	Duration      time.Duration
}

// Import replaces the corpus with the jobs of a CSV export. Rows whose
// embedding fails are stored without a vector and counted.
func (s *JobService) Import(ctx context.Context, in io.Reader) (ImportStats, error) {
	start := time.Now()
	log := logger.FromContext(ctx, s.logger)

	rows, err := ingestion.ReadCSV(in)
	if err != nil {
		return ImportStats{}, err
	}
	jobs := make([]*repository.Job, len(rows))
	for i, row := range rows {
		jobs[i] = row.Job()
	}
	log.Info("csv loaded", zap.Int("rows", len(jobs)))

	stats := ImportStats{Rows: len(jobs)}
	embedded, err := s.embedJobs(ctx, jobs)
	if err != nil {
		return stats, err
	}
	stats.Embedded = embedded
	stats.EmbedFailures = len(jobs) - embedded

	repository.PrepareForInsert(jobs, time.Now())
	if err := s.repo.ReplaceAll(ctx, jobs); err != nil {
		return stats, fmt.Errorf("store jobs: %w", err)
	}

	if s.index != nil {
		n, err := s.reindex(ctx, jobs)
		if err != nil {
			return stats, err
		}
		stats.Indexed = n
	}

	stats.Duration = time.Since(start)
	log.Info("import finished",
		zap.Int("rows", stats.Rows),
		zap.Int("embedded", stats.Embedded),
		zap.Int("embedding_failures", stats.EmbedFailures),
		zap.Int("indexed", stats.Indexed),
		zap.Duration("duration", stats.Duration))
	return stats, nil
}

// ReembedStats summarises a re-embed run.
type ReembedStats struct {
	Total   int
	Updated int
	Failed  int
	Indexed int
}

// Reembed recomputes the vector of every stored job. Per-job failures are
// logged and skipped.
func (s *JobService) Reembed(ctx context.Context) (ReembedStats, error) {
	log := logger.FromContext(ctx, s.logger)

	jobs, err := s.allJobs(ctx)
	if err != nil {
		return ReembedStats{}, err
	}
	stats := ReembedStats{Total: len(jobs)}

	if _, err := s.embedJobs(ctx, jobs); err != nil {
		return stats, err
	}

	for _, job := range jobs {
		if !job.HasEmbedding() {
			stats.Failed++
			continue
		}
		if err := s.repo.UpdateEmbedding(ctx, job.ID, job.Embedding); err != nil {
			if ctx.Err() != nil {
				return stats, ctx.Err()
			}
			stats.Failed++
			log.Warn("update embedding failed", zap.Stringer("job_id", job.ID), zap.Error(err))
			continue
		}
		stats.Updated++
	}

	// The index is rebuilt from the store so that jobs whose update failed
	// keep the vector they are stored with.
	if s.index != nil {
		stored, err := s.allJobs(ctx)
		if err != nil {
			return stats, err
		}
		n, err := s.reindex(ctx, stored)
		if err != nil {
			return stats, err
		}
		stats.Indexed = n
	}

	log.Info("reembed finished",
		zap.Int("total", stats.Total),
		zap.Int("updated", stats.Updated),
		zap.Int("failed", stats.Failed),
		zap.Int("indexed", stats.Indexed))
	return stats, nil
}

// Index rebuilds the vector index from the stored vectors.
func (s *JobService) Index(ctx context.Context) (int, error) {
	if s.index == nil {
		return 0, ErrIndexDisabled
	}
	jobs, err := s.allJobs(ctx)
	if err != nil {
		return 0, err
	}
	return s.reindex(ctx, jobs)
}

// CheckReport compares stored vector lengths with the configured dimension.
type CheckReport struct {
	Total       int
	WithVectors int
	Expected    int
	Dimensions  map[int]int
	Mismatched  int
}

// OK reports whether every stored vector has the expected length.
func (r CheckReport) OK() bool {
	return r.Mismatched == 0
}

// Check inspects the stored vectors.
func (s *JobService) Check(ctx context.Context) (CheckReport, error) {
	total, with, err := s.repo.Count(ctx)
	if err != nil {
		return CheckReport{}, fmt.Errorf("count jobs: %w", err)
	}
	dims, err := s.repo.VectorDimensions(ctx)
	if err != nil {
		return CheckReport{}, fmt.Errorf("vector dimensions: %w", err)
	}

	report := CheckReport{
		Total:       total,
		WithVectors: with,
		Expected:    s.embed.Dimension(),
		Dimensions:  dims,
	}
	for dim, n := range dims {
		if dim != report.Expected {
			report.Mismatched += n
		}
	}
	return report, nil
}

// embedJobs sets the embedding of every job it can and returns how many got
// one. Batches run on a worker pool; a failed batch is retried job by job.
func (s *JobService) embedJobs(ctx context.Context, jobs []*repository.Job) (int, error) {
	pool, err := ants.NewPool(s.workers)
	if err != nil {
		return 0, fmt.Errorf("create embedding pool: %w", err)
	}
	defer pool.Release()

	log := logger.FromContext(ctx, s.logger)

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		embedded int
	)
	for start := 0; start < len(jobs); start += s.batchSize {
		batch := jobs[start:min(start+s.batchSize, len(jobs))]
		wg.Add(1)
		task := func() {
			defer wg.Done()
			n := s.embedBatch(ctx, log, batch)
			mu.Lock()
			embedded += n
			mu.Unlock()
		}
		if err := pool.Submit(task); err != nil {
			wg.Done()
			wg.Wait()
			return 0, fmt.Errorf("submit embedding batch: %w", err)
		}
	}
	wg.Wait()

	if err := ctx.Err(); err != nil {
		return embedded, err
	}
	return embedded, nil
}

func (s *JobService) embedBatch(ctx context.Context, log *zap.Logger, batch []*repository.Job) int {
	texts := make([]string, len(batch))
	for i, job := range batch {
		texts[i] = ranking.JobText(job)
	}

	vectors, err := s.embed.EmbedDocuments(ctx, texts)
	if err != nil {
		log.Warn("batch embedding failed, retrying one by one", zap.Int("size", len(batch)), zap.Error(err))
		vectors = make([][]float32, len(batch))
		for i, text := range texts {
			if ctx.Err() != nil {
				break
			}
			v, err := s.embed.EmbedDocument(ctx, text)
			if err != nil {
				log.Warn("embedding failed", zap.String("title", batch[i].Title), zap.Error(err))
				continue
			}
			vectors[i] = v
		}
	}

	n := 0
	for i, job := range batch {
		job.Embedding = vectors[i]
		if job.HasEmbedding() {
			n++
		}
	}
	return n
}

func (s *JobService) reindex(ctx context.Context, jobs []*repository.Job) (int, error) {
	if err := s.index.RecreateCollection(ctx, s.embed.Dimension()); err != nil {
		return 0, fmt.Errorf("recreate index: %w", err)
	}

	points := make([]vectorstore.Point, 0, len(jobs))
	for _, job := range jobs {
		if job.HasEmbedding() {
			points = append(points, jobPoint(job))
		}
	}
	if err := s.index.Upsert(ctx, points); err != nil {
		return 0, fmt.Errorf("index jobs: %w", err)
	}
	return len(points), nil
}

func (s *JobService) allJobs(ctx context.Context) ([]*repository.Job, error) {
	var all []*repository.Job
	for offset := 0; ; offset += listPageSize {
		page, err := s.repo.List(ctx, listPageSize, offset)
		if err != nil {
			return nil, fmt.Errorf("list jobs: %w", err)
		}
		all = append(all, page...)
		if len(page) < listPageSize {
			return all, nil
		}
	}
}

func jobPoint(job *repository.Job) vectorstore.Point {
	return vectorstore.Point{
		ID:     job.ID,
		Vector: job.Embedding,
		Payload: map[string]string{
			"title":     job.Title,
			"company":   job.Company,
			"city":      job.City,
			"additions": job.Additions,
			"link":      job.Link,
		},
	}
}
