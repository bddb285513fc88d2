// Package embedder provides interfaces and implementations for text embedding.
package embedder

import (
	"context"
	"errors"
)

var (
	// ErrEmptyText is returned when the input is empty after whitespace normalization.
	ErrEmptyText = errors.New("embedder: empty text")

	// ErrDimensionMismatch is returned when a model yields vectors of an unexpected length.
	ErrDimensionMismatch = errors.New("embedder: dimension mismatch")
)

// Embedder defines the interface for text embedding services.
type Embedder interface {
	// Embed generates an embedding vector for a single text input.
	Embed(ctx context.Context, text string) ([]float32, error)

	// EmbedBatch generates embedding vectors for multiple text inputs.
	// Returns a slice of embeddings in the same order as the input texts.
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)

	// Dimension returns the dimensionality of the embedding vectors.
	Dimension() int

	// ModelName returns the name of the embedding model being used.
	ModelName() string
}

// ModelConfig holds configuration for a specific embedding model.
type ModelConfig struct {
	Dimension           int
	DocumentInstruction string // prefix for documents (asymmetric models)
	QueryInstruction    string // prefix for queries (asymmetric models)
}

// KnownModels maps embedding model names to their configurations.
var KnownModels = map[string]ModelConfig{
	"nomic-embed-text": {
		Dimension:           768,
		DocumentInstruction: "search_document: ",
		QueryInstruction:    "search_query: ",
	},
	"intfloat/multilingual-e5-base": {
		Dimension:           768,
		DocumentInstruction: "passage: ",
		QueryInstruction:    "query: ",
	},
	"intfloat/multilingual-e5-small": {
		Dimension:           384,
		DocumentInstruction: "passage: ",
		QueryInstruction:    "query: ",
	},
	"sentence-transformers/paraphrase-multilingual-MiniLM-L12-v2": {
		Dimension: 384,
	},
	"text-embedding-3-small": {
		Dimension: 1536,
	},
	"text-embedding-v3": {
		Dimension: 1024,
	},
}

// GetModelConfig returns the configuration for a model and whether it is known.
func GetModelConfig(modelName string) (ModelConfig, bool) {
	cfg, ok := KnownModels[modelName]
	return cfg, ok
}
