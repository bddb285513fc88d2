package reranker

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const (
	// DefaultBatchSize is the number of documents sent per /rerank request.
	DefaultBatchSize = 32
)

// HTTPScorer calls a cross-encoder served behind a text-embeddings-inference
// style POST /rerank endpoint.
type HTTPScorer struct {
	baseURL   string
	model     string
	batchSize int
	client    *http.Client
}

// HTTPScorerOption configures an HTTPScorer.
type HTTPScorerOption func(*HTTPScorer)

// WithModel sends a model name with each request (for multi-model servers).
func WithModel(model string) HTTPScorerOption {
	return func(s *HTTPScorer) {
		s.model = model
	}
}

// WithBatchSize sets how many documents go into one request.
func WithBatchSize(n int) HTTPScorerOption {
	return func(s *HTTPScorer) {
		if n > 0 {
			s.batchSize = n
		}
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(client *http.Client) HTTPScorerOption {
	return func(s *HTTPScorer) {
		s.client = client
	}
}

// NewHTTPScorer creates a scorer for the server at baseURL.
func NewHTTPScorer(baseURL string, opts ...HTTPScorerOption) *HTTPScorer {
	s := &HTTPScorer{
		baseURL:   strings.TrimSuffix(baseURL, "/"),
		batchSize: DefaultBatchSize,
		client:    &http.Client{Timeout: 60 * time.Second},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

type rerankRequest struct {
	Query     string   `json:"query"`
	Texts     []string `json:"texts"`
	Model     string   `json:"model,omitempty"`
	RawScores bool     `json:"raw_scores"`
	Truncate  bool     `json:"truncate"`
}

type rerankHit struct {
	Index int     `json:"index"`
	Score float64 `json:"score"`
}

// ScorePairs returns one score per document, in input order.
func (s *HTTPScorer) ScorePairs(ctx context.Context, query string, docs []string) ([]float64, error) {
	scores := make([]float64, len(docs))
	for start := 0; start < len(docs); start += s.batchSize {
		end := min(start+s.batchSize, len(docs))
		batch, err := s.request(ctx, query, docs[start:end])
		if err != nil {
			return nil, fmt.Errorf("rerank batch at offset %d: %w", start, err)
		}
		copy(scores[start:end], batch)
	}
	return scores, nil
}

func (s *HTTPScorer) request(ctx context.Context, query string, docs []string) ([]float64, error) {
	body, err := json.Marshal(rerankRequest{
		Query:    query,
		Texts:    docs,
		Model:    s.model,
		Truncate: true,
	})
	if err != nil {
		return nil, fmt.Errorf("marshaling request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+"/rerank", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("executing request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("rerank API error (status %d): %s", resp.StatusCode, string(b))
	}

	var hits []rerankHit
	if err := json.NewDecoder(resp.Body).Decode(&hits); err != nil {
		return nil, fmt.Errorf("decoding response: %w", err)
	}

	scores := make([]float64, len(docs))
	seen := make([]bool, len(docs))
	for _, h := range hits {
		if h.Index < 0 || h.Index >= len(docs) {
			return nil, fmt.Errorf("rerank API returned out-of-range index %d", h.Index)
		}
		scores[h.Index] = h.Score
		seen[h.Index] = true
	}
	for i, ok := range seen {
		if !ok {
			return nil, fmt.Errorf("rerank API returned no score for document %d", i)
		}
	}
	return scores, nil
}

var _ Scorer = (*HTTPScorer)(nil)
