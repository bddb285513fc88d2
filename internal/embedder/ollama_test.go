package embedder

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOllamaEmbedder_EmbedBatchPreservesOrder(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/embed", r.URL.Path)
		calls.Add(1)

		var req ollamaRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))

		resp := ollamaResponse{}
		for _, text := range req.Input {
			resp.Embeddings = append(resp.Embeddings, []float64{float64(len(text)), 1})
		}
		_ = json.NewEncoder(w).Encode(resp)
	}))
	defer srv.Close()

	e := NewOllamaEmbedder(OllamaConfig{BaseURL: srv.URL, Dimension: 2, BatchSize: 2})
	vectors, err := e.EmbedBatch(context.Background(), []string{"a", "bb", "ccc", "dddd", "eeeee"})
	require.NoError(t, err)

	require.Len(t, vectors, 5)
	for i, v := range vectors {
		assert.InDelta(t, float32(i+1), v[0], 0, "vector %d", i)
	}
	assert.Equal(t, int32(3), calls.Load())
}

func TestOllamaEmbedder_APIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model not found", http.StatusNotFound)
	}))
	defer srv.Close()

	e := NewOllamaEmbedder(OllamaConfig{BaseURL: srv.URL})
	_, err := e.Embed(context.Background(), "text")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "404")
	assert.Equal(t, DefaultOllamaModel, e.ModelName())
	assert.Equal(t, DefaultOllamaDimension, e.Dimension())
}
