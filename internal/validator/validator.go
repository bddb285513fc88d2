// Package validator asks a generative model for a final reordering of the
// best job matches and degrades to the incoming order on any failure.
package validator

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/nursmen/neuralhire/internal/llm"
	"github.com/nursmen/neuralhire/internal/logger"
	"github.com/nursmen/neuralhire/internal/metrics"
)

const (
	// DefaultMaxItems bounds how many summaries reach the model.
	DefaultMaxItems = 20
	// DefaultTimeout bounds one model call.
	DefaultTimeout = 15 * time.Second
)

const systemPrompt = "You rank job postings for a job seeker. Answer only with a JSON array of posting numbers, best match first."

// Options configures a Validator.
type Options struct {
	Model    string
	MaxItems int
	Timeout  time.Duration
	Logger   *zap.Logger
}

// Validator reorders summaries with an LLM.
type Validator struct {
	llm      llm.LLM
	model    string
	maxItems int
	timeout  time.Duration
	logger   *zap.Logger
}

// Outcome is the result of one validation.
type Outcome struct {
	Order
	Duration time.Duration
}

// New creates a Validator. Zero options take the package defaults.
func New(client llm.LLM, opts Options) *Validator {
	v := &Validator{
		llm:      client,
		model:    opts.Model,
		maxItems: opts.MaxItems,
		timeout:  opts.Timeout,
		logger:   opts.Logger,
	}
	if v.maxItems <= 0 {
		v.maxItems = DefaultMaxItems
	}
	if v.timeout <= 0 {
		v.timeout = DefaultTimeout
	}
	if v.logger == nil {
		v.logger = zap.NewNop()
	}
	return v
}

// Validate returns a permutation prefix of at most topK indices into
// summaries. It never fails: errors produce the identity order with
// Fallback set. Only the first MaxItems summaries are shown to the model;
// the rest keep their relative order behind them.
func (v *Validator) Validate(ctx context.Context, query string, summaries []string, topK int) Outcome {
	start := time.Now()
	n := len(summaries)
	if topK > n || topK < 0 {
		topK = n
	}
	if n == 0 || topK == 0 {
		return Outcome{Order: Order{Indices: []int{}}}
	}

	log := logger.WithFields(logger.FromContext(ctx, v.logger), zap.String("llm", v.llm.Name()))

	shown := min(n, v.maxItems)
	order := v.ask(ctx, log, query, summaries[:shown])

	indices := order.Indices
	for i := shown; i < n; i++ {
		indices = append(indices, i)
	}
	order.Indices = indices[:topK]

	if order.Reason != "" {
		metrics.ValidatorFallbackTotal.WithLabelValues(order.Reason).Inc()
		log.Warn("llm validation degraded",
			zap.String("reason", order.Reason),
			zap.Bool("fallback", order.Fallback))
	}

	return Outcome{Order: order, Duration: time.Since(start)}
}

// ask returns a full permutation of the shown items.
func (v *Validator) ask(ctx context.Context, log *zap.Logger, query string, summaries []string) Order {
	ctx, cancel := context.WithTimeout(ctx, v.timeout)
	defer cancel()

	response, err := v.llm.Generate(ctx, BuildPrompt(query, summaries), llm.GenerateOptions{
		Model:        v.model,
		SystemPrompt: systemPrompt,
		Temperature:  0,
		MaxTokens:    256,
	})
	if err != nil {
		reason := ReasonError
		switch {
		case errors.Is(err, context.DeadlineExceeded):
			reason = ReasonTimeout
		case errors.Is(err, llm.ErrEmptyResponse):
			reason = ReasonEmpty
		}
		log.Debug("llm call failed", zap.Error(err))
		return identity(len(summaries), len(summaries), reason)
	}

	log.Debug("llm response", zap.String("response", logger.Truncate(response, 200)))
	return ParseOrder(response, len(summaries), len(summaries))
}

// BuildPrompt numbers summaries from 1.
func BuildPrompt(query string, summaries []string) string {
	var sb strings.Builder
	sb.WriteString("Job seeker request: ")
	sb.WriteString(query)
	sb.WriteString("\n\nPostings:\n")
	for i, s := range summaries {
		fmt.Fprintf(&sb, "%d. %s\n", i+1, s)
	}
	sb.WriteString("\nOrder the postings from the best match to the worst. ")
	sb.WriteString("Reply with a JSON array of their numbers, for example [2, 1, 3].")
	return sb.String()
}
