package embedder

import (
	"context"
	"fmt"
	"math"
	"strings"
)

// ProviderConfig configures a Provider.
type ProviderConfig struct {
	// Dimension is the vector length every embedding must have.
	Dimension int

	// DocumentInstruction and QueryInstruction are prepended before encoding.
	// When both are empty the model's known instructions are used.
	DocumentInstruction string
	QueryInstruction    string

	// QueryEmbedder, when set, encodes queries instead of the document embedder
	// (e.g. a cached decorator around the same model).
	QueryEmbedder Embedder
}

// Provider encodes documents and queries asymmetrically and returns
// L2-normalized vectors of a fixed dimension.
type Provider struct {
	documents           Embedder
	queries             Embedder
	dimension           int
	documentInstruction string
	queryInstruction    string
}

// NewProvider creates a Provider over e.
func NewProvider(e Embedder, cfg ProviderConfig) *Provider {
	p := &Provider{
		documents:           e,
		queries:             e,
		dimension:           cfg.Dimension,
		documentInstruction: cfg.DocumentInstruction,
		queryInstruction:    cfg.QueryInstruction,
	}
	if cfg.QueryEmbedder != nil {
		p.queries = cfg.QueryEmbedder
	}
	if p.dimension <= 0 {
		p.dimension = e.Dimension()
	}
	if p.documentInstruction == "" && p.queryInstruction == "" {
		if known, ok := GetModelConfig(e.ModelName()); ok {
			p.documentInstruction = known.DocumentInstruction
			p.queryInstruction = known.QueryInstruction
		}
	}
	return p
}

// Dimension returns the vector length the provider guarantees.
func (p *Provider) Dimension() int {
	return p.dimension
}

// ModelName returns the underlying model name.
func (p *Provider) ModelName() string {
	return p.documents.ModelName()
}

// EmbedDocument encodes a job text for storage.
func (p *Provider) EmbedDocument(ctx context.Context, text string) ([]float32, error) {
	return p.embed(ctx, p.documents, p.documentInstruction, text)
}

// EmbedQuery encodes a search query. Query vectors are only comparable to
// document vectors.
func (p *Provider) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	return p.embed(ctx, p.queries, p.queryInstruction, text)
}

// EmbedDocuments encodes many job texts. Entries whose text is empty stay nil.
func (p *Provider) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	inputs := make([]string, 0, len(texts))
	positions := make([]int, 0, len(texts))

	for i, text := range texts {
		norm := normalizeText(text)
		if norm == "" {
			continue
		}
		inputs = append(inputs, p.documentInstruction+norm)
		positions = append(positions, i)
	}
	if len(inputs) == 0 {
		return out, nil
	}

	vectors, err := p.documents.EmbedBatch(ctx, inputs)
	if err != nil {
		return nil, fmt.Errorf("embed documents: %w", err)
	}
	if len(vectors) != len(inputs) {
		return nil, fmt.Errorf("embed documents: got %d vectors for %d texts", len(vectors), len(inputs))
	}

	for i, vec := range vectors {
		unit, err := p.finish(vec)
		if err != nil {
			return nil, fmt.Errorf("embed document %d: %w", positions[i], err)
		}
		out[positions[i]] = unit
	}
	return out, nil
}

func (p *Provider) embed(ctx context.Context, e Embedder, instruction, text string) ([]float32, error) {
	norm := normalizeText(text)
	if norm == "" {
		return nil, ErrEmptyText
	}

	vec, err := e.Embed(ctx, instruction+norm)
	if err != nil {
		return nil, fmt.Errorf("embed text: %w", err)
	}
	return p.finish(vec)
}

func (p *Provider) finish(vec []float32) ([]float32, error) {
	if len(vec) != p.dimension {
		return nil, fmt.Errorf("%w: model returned %d, expected %d", ErrDimensionMismatch, len(vec), p.dimension)
	}
	return Normalize(vec)
}

// Normalize returns v scaled to unit length. A zero vector is an error.
func Normalize(v []float32) ([]float32, error) {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	if sum == 0 {
		return nil, fmt.Errorf("zero-norm embedding")
	}
	norm := math.Sqrt(sum)

	out := make([]float32, len(v))
	for i, x := range v {
		out[i] = float32(float64(x) / norm)
	}
	return out, nil
}

func normalizeText(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
