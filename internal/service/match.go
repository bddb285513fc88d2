// Package service implements the application use cases on top of the
// ranking pipeline and the job store.
package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/nursmen/neuralhire/internal/jobtext"
	"github.com/nursmen/neuralhire/internal/llm"
	"github.com/nursmen/neuralhire/internal/logger"
	"github.com/nursmen/neuralhire/internal/metrics"
	"github.com/nursmen/neuralhire/internal/ranking"
	"github.com/nursmen/neuralhire/internal/repository"
)

var (
	// ErrInvalidArgument marks caller mistakes such as unknown tags.
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrExplainUnavailable is returned when no LLM is configured.
	ErrExplainUnavailable = errors.New("explanations are not configured")
)

// Outcome labels of the rank request counter.
const (
	outcomeOK        = "ok"
	outcomeNoMatches = "no_matches"
	outcomeError     = "error"
)

// maxExplainJobs bounds the list an explanation covers.
const maxExplainJobs = 10

// Ranker runs the ranking pipeline.
type Ranker interface {
	Rank(ctx context.Context, req ranking.Request) (*ranking.Result, error)
}

// MatchService ranks jobs for queries and explains matches.
type MatchService struct {
	ranker    Ranker
	repo      repository.JobRepository
	catalog   *jobtext.Catalog
	explainer llm.LLM
	model     string
	logger    *zap.Logger
}

// MatchOption configures a MatchService.
type MatchOption func(*MatchService)

// WithExplainer enables Explain with the given LLM.
func WithExplainer(client llm.LLM, model string) MatchOption {
	return func(s *MatchService) {
		s.explainer = client
		s.model = model
	}
}

// WithMatchLogger sets the fallback logger.
func WithMatchLogger(l *zap.Logger) MatchOption {
	return func(s *MatchService) {
		s.logger = l
	}
}

// NewMatchService creates a MatchService. A nil catalog means the built-in one.
func NewMatchService(ranker Ranker, repo repository.JobRepository, catalog *jobtext.Catalog, opts ...MatchOption) *MatchService {
	if catalog == nil {
		catalog = jobtext.DefaultCatalog()
	}
	s := &MatchService{
		ranker:  ranker,
		repo:    repo,
		catalog: catalog,
		logger:  zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Catalog returns the tags callers may filter by.
func (s *MatchService) Catalog() *jobtext.Catalog {
	return s.catalog
}

// Rank validates the request and runs the pipeline.
func (s *MatchService) Rank(ctx context.Context, req ranking.Request) (*ranking.Result, error) {
	req.Tags = dedupe(req.Tags)
	if err := s.catalog.Validate(req.Tags); err != nil {
		metrics.RankRequestsTotal.WithLabelValues(outcomeError).Inc()
		return nil, fmt.Errorf("%w: %w", ErrInvalidArgument, err)
	}

	res, err := s.ranker.Rank(ctx, req)
	switch {
	case err != nil:
		metrics.RankRequestsTotal.WithLabelValues(outcomeError).Inc()
		logger.FromContext(ctx, s.logger).Warn("rank failed", zap.Error(err))
		return nil, err
	case res.NoMatches:
		metrics.RankRequestsTotal.WithLabelValues(outcomeNoMatches).Inc()
	default:
		metrics.RankRequestsTotal.WithLabelValues(outcomeOK).Inc()
	}
	return res, nil
}

// ExplainRequest asks why jobs fit a query or résumé summary.
type ExplainRequest struct {
	Query  string
	JobIDs []uuid.UUID
}

// Explain returns an LLM explanation. One job gets a focused explanation,
// several get a summary of the list. Failures are returned, not masked.
func (s *MatchService) Explain(ctx context.Context, req ExplainRequest) (string, error) {
	if s.explainer == nil {
		return "", ErrExplainUnavailable
	}
	if strings.TrimSpace(req.Query) == "" {
		return "", fmt.Errorf("%w: query is required", ErrInvalidArgument)
	}
	if len(req.JobIDs) == 0 {
		return "", fmt.Errorf("%w: job_ids is required", ErrInvalidArgument)
	}
	if len(req.JobIDs) > maxExplainJobs {
		req.JobIDs = req.JobIDs[:maxExplainJobs]
	}

	found, err := s.repo.GetByIDs(ctx, req.JobIDs)
	if err != nil {
		return "", fmt.Errorf("load jobs: %w", err)
	}
	jobs := make([]*repository.Job, 0, len(req.JobIDs))
	for _, id := range req.JobIDs {
		if job, ok := found[id]; ok {
			jobs = append(jobs, job)
		}
	}
	if len(jobs) == 0 {
		return "", repository.ErrNotFound
	}

	prompt, system := summaryPrompt(req.Query, jobs)
	if len(jobs) == 1 {
		prompt, system = jobPrompt(req.Query, jobs[0])
	}

	answer, err := s.explainer.Generate(ctx, prompt, llm.GenerateOptions{
		Model:        s.model,
		SystemPrompt: system,
		Temperature:  0.3,
		MaxTokens:    512,
	})
	if err != nil {
		return "", fmt.Errorf("generate explanation: %w", err)
	}
	return strings.TrimSpace(answer), nil
}

func summaryPrompt(query string, jobs []*repository.Job) (prompt, system string) {
	var sb strings.Builder
	sb.WriteString("Резюме кандидата: ")
	sb.WriteString(query)
	sb.WriteString("\n\nНайденные вакансии:\n")
	for i, job := range jobs {
		fmt.Fprintf(&sb, "%d. %s в %s (%s)\n", i+1, job.Title, job.Company, job.City)
	}
	sb.WriteString("\nОбъясни кратко, почему эти вакансии подходят кандидату. Выдели ключевые совпадения.")
	return sb.String(), "Ты помощник по подбору вакансий. Отвечай кратко и по делу на русском языке."
}

func jobPrompt(query string, job *repository.Job) (prompt, system string) {
	prompt = fmt.Sprintf("Резюме кандидата: %s\n\nВакансия: %s в %s (%s)\nТребования: %s\n\nОбъясни в 2-3 предложениях, почему эта вакансия подходит кандидату.",
		query, job.Title, job.Company, job.City, logger.Truncate(job.Knowledge, 200))
	return prompt, "Ты помощник по подбору вакансий. Отвечай очень кратко, 2-3 предложения."
}

func dedupe(tags []string) []string {
	if len(tags) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(tags))
	out := make([]string, 0, len(tags))
	for _, t := range tags {
		t = strings.TrimSpace(t)
		if t == "" {
			continue
		}
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	return out
}
