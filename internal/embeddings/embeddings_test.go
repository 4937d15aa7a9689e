package embeddings

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ziadkadry99/docqa/internal/config"
)

func TestOpenAIEmbedder(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/embeddings", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		var req struct {
			Input []string `json:"input"`
			Model string   `json:"model"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "text-embedding-3-small", req.Model)

		data := make([]map[string]any, len(req.Input))
		for i := range req.Input {
			data[i] = map[string]any{"object": "embedding", "index": i, "embedding": []float32{float32(i), 1}}
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{"object": "list", "data": data, "model": req.Model})
	}))
	defer srv.Close()

	e := NewOpenAIEmbedderWithBaseURL("test-key", ModelTextEmbedding3Small, srv.URL)
	assert.Equal(t, 1536, e.Dimensions())

	vecs, err := e.Embed(context.Background(), []string{"a", "b"})
	require.NoError(t, err)
	require.Len(t, vecs, 2)
	assert.Equal(t, []float32{1, 1}, vecs[1])

	vec, err := EmbedText(context.Background(), e, "single")
	require.NoError(t, err)
	assert.Equal(t, []float32{0, 1}, vec)
}

func TestOpenAIEmbedderServiceError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"error":{"message":"quota exceeded","type":"insufficient_quota"}}`))
	}))
	defer srv.Close()

	e := NewOpenAIEmbedderWithBaseURL("k", ModelTextEmbedding3Small, srv.URL)
	_, err := EmbedText(context.Background(), e, "x")
	var se *ServiceError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, "openai", se.Provider)
	assert.Contains(t, err.Error(), "quota exceeded")
}

func TestOllamaEmbedder(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/embed", r.URL.Path)
		var req ollamaEmbedRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "nomic-embed-text", req.Model)
		out := ollamaEmbedResponse{}
		for range req.Input {
			out.Embeddings = append(out.Embeddings, []float32{0.5, 0.5, 0})
		}
		_ = json.NewEncoder(w).Encode(out)
	}))
	defer srv.Close()

	e := NewOllamaEmbedder("nomic-embed-text", 3, srv.URL)
	assert.Equal(t, "ollama/nomic-embed-text", e.Name())
	vecs, err := e.Embed(context.Background(), []string{"one", "two"})
	require.NoError(t, err)
	assert.Len(t, vecs, 2)
}

func TestOllamaEmbedderStatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model not found", http.StatusNotFound)
	}))
	defer srv.Close()

	e := NewOllamaEmbedder("missing", 3, srv.URL)
	_, err := e.Embed(context.Background(), []string{"x"})
	var se *ServiceError
	require.True(t, errors.As(err, &se))
	assert.Contains(t, err.Error(), "status 404")
}

func TestEmbedEmptyInput(t *testing.T) {
	e := NewOllamaEmbedder("m", 3, "http://127.0.0.1:1")
	vecs, err := e.Embed(context.Background(), nil)
	require.NoError(t, err)
	assert.Nil(t, vecs)
}

func TestToChromemFunc(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(ollamaEmbedResponse{Embeddings: [][]float32{{1, 0}}})
	}))
	defer srv.Close()

	fn := ToChromemFunc(NewOllamaEmbedder("m", 2, srv.URL))
	vec, err := fn(context.Background(), "hello")
	require.NoError(t, err)
	assert.Equal(t, []float32{1, 0}, vec)
}

func TestNewEmbedder(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.EmbeddingProvider = config.ProviderOllama
	cfg.EmbeddingModel = "nomic-embed-text"
	cfg.EmbeddingDimensions = 768
	e, err := NewEmbedder(cfg)
	require.NoError(t, err)
	assert.Equal(t, 768, e.Dimensions())

	t.Setenv("OPENAI_API_KEY", "")
	cfg.EmbeddingProvider = config.ProviderOpenAI
	_, err = NewEmbedder(cfg)
	assert.ErrorContains(t, err, "OPENAI_API_KEY")

	cfg.EmbeddingProvider = "acme"
	_, err = NewEmbedder(cfg)
	assert.Error(t, err)
}
