// Package ranking orders job postings for a free-text query in successive
// narrowing stages: vector similarity, tag filter, lexical boost,
// cross-encoder rerank and an optional LLM reorder.
package ranking

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/nursmen/neuralhire/internal/embedder"
	"github.com/nursmen/neuralhire/internal/jobtext"
	"github.com/nursmen/neuralhire/internal/logger"
	"github.com/nursmen/neuralhire/internal/metrics"
	"github.com/nursmen/neuralhire/internal/repository"
	"github.com/nursmen/neuralhire/internal/reranker"
	"github.com/nursmen/neuralhire/internal/validator"
)

// Stage names used in steps, logs and metrics.
const (
	StageEmbed    = "embed"
	StageRetrieve = "retrieve"
	StageCombine  = "combine"
	StageRerank   = "rerank"
	StageValidate = "validate"
	StageResolve  = "resolve"
)

// Score sources of a RankedJob.
const (
	SourceCombined = "combined"
	SourceRerank   = "rerank"
)

// QueryEmbedder encodes a search query into a unit vector.
type QueryEmbedder interface {
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
}

// Validator reorders the final summaries.
type Validator interface {
	Validate(ctx context.Context, query string, summaries []string, topK int) validator.Outcome
}

// Config holds the pipeline sizes and weights.
type Config struct {
	CandidatePool  int     // N1, candidates passed to the reranker
	RerankPool     int     // N2, candidates kept after reranking
	TopK           int     // K, final result size
	BoostWeight    float64 // weight of the lexical boost in the combined score
	ScorePrecision int     // decimal places of reported scores
	RerankFallback bool    // answer with combined order when the reranker fails
	LLMValidation  bool    // allow the LLM stage when a request asks for it
}

// Request is one ranking query.
type Request struct {
	Query  string
	Tags   []string
	UseLLM bool
}

// RankedJob is one entry of the final list.
type RankedJob struct {
	JobID  uuid.UUID
	Score  float64
	Source string
	Job    *repository.Job
}

// Step records one stage of a ranking run: how many entries it received and
// how many it passed on.
type Step struct {
	Stage    string
	Initial  int
	Left     int
	Duration time.Duration
	Note     string
}

// Dropped is the number of entries the stage removed.
func (s Step) Dropped() int {
	return s.Initial - s.Left
}

// Result is the outcome of a ranking run.
type Result struct {
	Jobs        []RankedJob
	NoMatches   bool
	Reason      string
	Steps       []Step
	LLMFallback bool
}

// Pipeline ranks jobs. It holds no per-request state and is safe for concurrent use.
type Pipeline struct {
	embed     QueryEmbedder
	retriever Retriever
	repo      repository.JobRepository
	reranker  reranker.Reranker
	validator Validator
	cfg       Config
	logger    *zap.Logger
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithReranker enables the cross-encoder stage.
func WithReranker(r reranker.Reranker) Option {
	return func(p *Pipeline) {
		p.reranker = r
	}
}

// WithValidator sets the LLM validator.
func WithValidator(v Validator) Option {
	return func(p *Pipeline) {
		p.validator = v
	}
}

// WithLogger sets the fallback logger used when the context carries none.
func WithLogger(l *zap.Logger) Option {
	return func(p *Pipeline) {
		p.logger = l
	}
}

// NewPipeline creates a ranking pipeline.
func NewPipeline(embed QueryEmbedder, retriever Retriever, repo repository.JobRepository, cfg Config, opts ...Option) *Pipeline {
	p := &Pipeline{
		embed:     embed,
		retriever: retriever,
		repo:      repo,
		cfg:       cfg,
		logger:    zap.NewNop(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// run tracks the steps of one request.
type run struct {
	log    *zap.Logger
	result *Result
}

func (r *run) step(stage string, start time.Time, initial, left int, note string) {
	st := Step{Stage: stage, Initial: initial, Left: left, Duration: time.Since(start), Note: note}
	r.result.Steps = append(r.result.Steps, st)
	metrics.StageDuration.WithLabelValues(stage).Observe(st.Duration.Seconds())
	metrics.StageCandidates.WithLabelValues(stage).Observe(float64(left))
	r.log.Debug("rank step",
		zap.String("stage", stage),
		zap.Int("initial", initial),
		zap.Int("dropped", st.Dropped()),
		zap.Int("left", left),
		zap.Duration("duration", st.Duration),
		zap.String("note", note))
}

// Rank runs every stage for req.
func (p *Pipeline) Rank(ctx context.Context, req Request) (*Result, error) {
	query := strings.TrimSpace(req.Query)
	if query == "" {
		return nil, ErrEmptyQuery
	}

	r := &run{
		log:    logger.FromContext(ctx, p.logger).With(zap.String("query", logger.Truncate(query, 80))),
		result: &Result{},
	}

	// Step 1: Embed the query
	start := time.Now()
	qvec, err := p.embed.EmbedQuery(ctx, query)
	if errors.Is(err, embedder.ErrDimensionMismatch) {
		return nil, fmt.Errorf("%w: %w", ErrDimensionMismatch, err)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrQueryNotProcessed, err)
	}
	r.step(StageEmbed, start, 1, 1, "")

	// Step 2: Score every candidate against the query vector
	start = time.Now()
	scored, err := p.retriever.Retrieve(ctx, qvec, req.Tags)
	if err != nil {
		return nil, fmt.Errorf("retrieve: %w", err)
	}
	r.step(StageRetrieve, start, len(scored), len(scored), "")
	if len(scored) == 0 {
		return r.empty(ReasonNoDocuments), nil
	}

	// Step 3: Tag filter, lexical boost and top N1
	start = time.Now()
	cands := Combine(scored, req.Tags, jobtext.Tokens(query), p.cfg.BoostWeight)
	cands = SelectTop(cands, p.cfg.CandidatePool)
	r.step(StageCombine, start, len(scored), len(cands), "")
	if len(cands) == 0 {
		return r.empty(ReasonNoSurvivors), nil
	}

	// Step 4: Cross-encoder rerank to top N2
	pool, err := p.rerank(ctx, r, query, cands)
	if err != nil {
		return nil, err
	}

	// Step 5: Optional LLM reorder to top K
	if p.cfg.LLMValidation && req.UseLLM && p.validator != nil {
		start = time.Now()
		initial := len(pool)
		pool = p.validate(ctx, r, query, pool)
		note := ""
		if r.result.LLMFallback {
			note = "fallback"
		}
		r.step(StageValidate, start, initial, len(pool), note)
	}
	if len(pool) > p.cfg.TopK {
		pool = pool[:p.cfg.TopK]
	}

	// Step 6: Map back to stored records
	start = time.Now()
	jobs, err := p.resolve(ctx, pool)
	if err != nil {
		return nil, err
	}
	r.step(StageResolve, start, len(pool), len(jobs), "")

	r.result.Jobs = jobs
	r.log.Info("ranked jobs",
		zap.Int("results", len(jobs)),
		zap.Int("tags", len(req.Tags)),
		zap.Bool("llm_fallback", r.result.LLMFallback))
	return r.result, nil
}

func (r *run) empty(reason string) *Result {
	r.result.NoMatches = true
	r.result.Reason = reason
	r.result.Jobs = []RankedJob{}
	r.log.Info("no matches", zap.String("reason", reason))
	return r.result
}

// pooled is a candidate with the score it will be reported with.
type pooled struct {
	cand   Candidate
	score  float64
	source string
}

func (p *Pipeline) rerank(ctx context.Context, r *run, query string, cands []Candidate) ([]pooled, error) {
	combined := func(n int) []pooled {
		out := make([]pooled, 0, min(n, len(cands)))
		for _, c := range cands[:min(n, len(cands))] {
			out = append(out, pooled{cand: c, score: c.CombinedScore, source: SourceCombined})
		}
		return out
	}

	if p.reranker == nil {
		return combined(p.cfg.RerankPool), nil
	}

	start := time.Now()
	docs := make([]string, len(cands))
	for i, c := range cands {
		docs[i] = c.Text
	}
	results, err := p.reranker.Rerank(ctx, query, docs, p.cfg.RerankPool)
	if err != nil {
		if !p.cfg.RerankFallback || errors.Is(err, context.Canceled) {
			return nil, fmt.Errorf("%w: %w", ErrRerankFailed, err)
		}
		metrics.RerankFallbackTotal.Inc()
		r.log.Warn("reranker failed, using combined order", zap.Error(err))
		out := combined(p.cfg.RerankPool)
		r.step(StageRerank, start, len(cands), len(out), "fallback")
		return out, nil
	}

	out := make([]pooled, 0, len(results))
	for _, res := range results {
		if res.Index < 0 || res.Index >= len(cands) {
			continue
		}
		out = append(out, pooled{cand: cands[res.Index], score: res.Score, source: SourceRerank})
	}
	r.step(StageRerank, start, len(cands), len(out), "")
	return out, nil
}

func (p *Pipeline) validate(ctx context.Context, r *run, query string, pool []pooled) []pooled {
	summaries := make([]string, len(pool))
	for i, item := range pool {
		summaries[i] = Summary(item.cand.Job)
	}

	outcome := p.validator.Validate(ctx, query, summaries, p.cfg.TopK)
	r.result.LLMFallback = outcome.Fallback

	out := make([]pooled, 0, len(outcome.Indices))
	for _, idx := range outcome.Indices {
		if idx >= 0 && idx < len(pool) {
			out = append(out, pool[idx])
		}
	}
	return out
}

func (p *Pipeline) resolve(ctx context.Context, pool []pooled) ([]RankedJob, error) {
	if len(pool) == 0 {
		return []RankedJob{}, nil
	}

	ids := make([]uuid.UUID, len(pool))
	for i, item := range pool {
		ids[i] = item.cand.JobID
	}
	records, err := p.repo.GetByIDs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("resolve jobs: %w", err)
	}

	out := make([]RankedJob, 0, len(pool))
	for _, item := range pool {
		job, ok := records[item.cand.JobID]
		if !ok {
			// Deleted since retrieval.
			continue
		}
		out = append(out, RankedJob{
			JobID:  item.cand.JobID,
			Score:  Round(item.score, p.cfg.ScorePrecision),
			Source: item.source,
			Job:    job,
		})
	}
	return out, nil
}

// Summary is the one-line description of a job shown to the LLM.
func Summary(j *repository.Job) string {
	parts := []string{j.Title}
	if j.Company != "" {
		parts = append(parts, j.Company)
	}
	if j.City != "" {
		parts = append(parts, j.City)
	}
	s := strings.Join(parts, ", ")
	if j.Knowledge != "" {
		s += ": " + logger.Truncate(j.Knowledge, 160)
	}
	return s
}

// Round rounds x to places decimal places.
func Round(x float64, places int) float64 {
	if places < 0 {
		return x
	}
	pow := math.Pow(10, float64(places))
	return math.Round(x*pow) / pow
}
