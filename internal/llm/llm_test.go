package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOllamaClient_Generate(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/generate", r.URL.Path)

		var req ollamaRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "qwen2.5", req.Model)
		assert.Equal(t, "be brief", req.System)
		assert.False(t, req.Stream)
		assert.InDelta(t, 0.0, req.Options["temperature"], 0)
		assert.InDelta(t, 64.0, req.Options["num_predict"], 0)

		_ = json.NewEncoder(w).Encode(ollamaResponse{Response: "[2, 1]", Done: true})
	}))
	defer srv.Close()

	c := NewOllamaClient(WithBaseURL(srv.URL+"/"), WithModel("qwen2.5"))
	out, err := c.Generate(context.Background(), "rank", GenerateOptions{SystemPrompt: "be brief", MaxTokens: 64})
	require.NoError(t, err)
	assert.Equal(t, "[2, 1]", out)
	assert.Equal(t, "ollama/qwen2.5", c.Name())
}

func TestOllamaClient_EmptyResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(ollamaResponse{Response: "  ", Done: true})
	}))
	defer srv.Close()

	_, err := NewOllamaClient(WithBaseURL(srv.URL)).Generate(context.Background(), "x", GenerateOptions{})
	assert.ErrorIs(t, err, ErrEmptyResponse)
}

func TestOllamaClient_StatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	_, err := NewOllamaClient(WithBaseURL(srv.URL)).Generate(context.Background(), "x", GenerateOptions{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "500")
}

func TestOpenAIClient_Generate(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)

		var req struct {
			Model    string `json:"model"`
			Messages []struct {
				Role    string `json:"role"`
				Content string `json:"content"`
			} `json:"messages"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "qwen-plus", req.Model)
		require.Len(t, req.Messages, 2)
		assert.Equal(t, "system", req.Messages[0].Role)
		assert.Equal(t, "user", req.Messages[1].Role)

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"id":     "1",
			"object": "chat.completion",
			"choices": []map[string]any{{
				"index":         0,
				"message":       map[string]any{"role": "assistant", "content": "3, 1, 2"},
				"finish_reason": "stop",
			}},
		})
	}))
	defer srv.Close()

	c, err := NewOpenAIClient("key", srv.URL, "qwen-plus")
	require.NoError(t, err)

	out, err := c.Generate(context.Background(), "rank", GenerateOptions{SystemPrompt: "sys"})
	require.NoError(t, err)
	assert.Equal(t, "3, 1, 2", out)
	assert.Equal(t, "openai/qwen-plus", c.Name())
}

func TestNewOpenAIClient_RequiresKeyAndModel(t *testing.T) {
	_, err := NewOpenAIClient("", "", "qwen-plus")
	assert.Error(t, err)
	_, err = NewOpenAIClient("key", "", "")
	assert.Error(t, err)
}

func TestNewGeminiClient_RequiresKey(t *testing.T) {
	_, err := NewGeminiClient(context.Background(), " ", "")
	assert.Error(t, err)
}
