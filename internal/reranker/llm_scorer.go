package reranker

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/nursmen/neuralhire/internal/llm"
)

// maxDocRunes bounds each document in the prompt.
const maxDocRunes = 500

// LLMScorer asks an LLM to grade each (query, document) pair. It stands in
// for a cross-encoder when none is deployed.
type LLMScorer struct {
	llmClient llm.LLM
	model     string
}

// LLMScorerOption is a functional option for configuring LLMScorer.
type LLMScorerOption func(*LLMScorer)

// WithLLMModel overrides the model used for scoring.
func WithLLMModel(model string) LLMScorerOption {
	return func(s *LLMScorer) {
		s.model = model
	}
}

// NewLLMScorer creates an LLM-based scorer.
func NewLLMScorer(llmClient llm.LLM, opts ...LLMScorerOption) *LLMScorer {
	s := &LLMScorer{llmClient: llmClient}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

type relevanceScore struct {
	DocIndex int     `json:"doc_index"`
	Score    float64 `json:"score"`
}

type scoreResponse struct {
	Scores []relevanceScore `json:"scores"`
}

// ScorePairs grades all documents in one prompt. Documents the model skips score 0.5.
func (s *LLMScorer) ScorePairs(ctx context.Context, query string, docs []string) ([]float64, error) {
	if len(docs) == 0 {
		return []float64{}, nil
	}

	response, err := s.llmClient.Generate(ctx, buildScorePrompt(query, docs), llm.GenerateOptions{
		Model:       s.model,
		Temperature: 0,
		MaxTokens:   1024,
	})
	if err != nil {
		return nil, fmt.Errorf("LLM scoring failed: %w", err)
	}

	scores, err := parseScoreResponse(response, len(docs))
	if err != nil {
		return nil, err
	}
	return scores, nil
}

func buildScorePrompt(query string, docs []string) string {
	var sb strings.Builder

	sb.WriteString("You grade how well job postings match a job seeker's request.\n\n")
	sb.WriteString("Request: ")
	sb.WriteString(query)
	sb.WriteString("\n\nPostings:\n")
	for i, doc := range docs {
		if r := []rune(doc); len(r) > maxDocRunes {
			doc = string(r[:maxDocRunes]) + "..."
		}
		fmt.Fprintf(&sb, "[Doc %d]: %s\n\n", i, doc)
	}

	sb.WriteString(`Score each posting from 0.0 to 1.0.
Output ONLY valid JSON in this exact format:
{"scores": [{"doc_index": 0, "score": 0.9}, {"doc_index": 1, "score": 0.3}]}

Irrelevant postings score below 0.3, partial matches 0.3-0.7, strong matches above 0.7.`)

	return sb.String()
}

// parseScoreResponse extracts scores from a JSON answer, possibly inside a code fence.
func parseScoreResponse(response string, n int) ([]float64, error) {
	payload := extractJSON(response)

	var parsed scoreResponse
	if err := json.Unmarshal([]byte(payload), &parsed); err != nil {
		return nil, fmt.Errorf("failed to parse score response: %w", err)
	}

	scores := make([]float64, n)
	for i := range scores {
		scores[i] = 0.5
	}
	for _, s := range parsed.Scores {
		if s.DocIndex < 0 || s.DocIndex >= n {
			continue
		}
		scores[s.DocIndex] = min(max(s.Score, 0), 1)
	}
	return scores, nil
}

// extractJSON strips a surrounding markdown code fence if present.
func extractJSON(response string) string {
	response = strings.TrimSpace(response)
	if idx := strings.Index(response, "```json"); idx != -1 {
		start := idx + len("```json")
		if end := strings.Index(response[start:], "```"); end != -1 {
			return strings.TrimSpace(response[start : start+end])
		}
	} else if idx := strings.Index(response, "```"); idx != -1 {
		start := idx + 3
		if end := strings.Index(response[start:], "```"); end != -1 {
			return strings.TrimSpace(response[start : start+end])
		}
	}
	return response
}

var _ Scorer = (*LLMScorer)(nil)
