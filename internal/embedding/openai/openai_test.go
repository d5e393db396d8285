package openai

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

func fakeEmbeddingsServer(t *testing.T, calls *atomic.Int32) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		assert.Equal(t, "/embeddings", r.URL.Path)
		var req embeddingsRequest
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "test-model", req.Model)

		type item struct {
			Index     int       `json:"index"`
			Embedding []float32 `json:"embedding"`
		}
		// answer in reverse order to exercise index sorting
		data := make([]item, 0, len(req.Input))
		for i := len(req.Input) - 1; i >= 0; i-- {
			data = append(data, item{Index: i, Embedding: []float32{float32(len(req.Input[i])), 1, 0}})
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"data": data})
	}))
}

func TestClient_EmbedBatchKeepsOrder(t *testing.T) {
	var calls atomic.Int32
	srv := fakeEmbeddingsServer(t, &calls)
	defer srv.Close()

	c, err := NewClient(Config{BaseURL: srv.URL, APIKey: "k", Model: "test-model", BatchSize: 2})
	require.NoError(t, err)
	assert.Equal(t, 0, c.Dimension())

	texts := []string{"a", "bb", "ccc", "dddd", "eeeee"}
	vecs, err := c.EmbedBatch(context.Background(), texts)
	require.NoError(t, err)
	require.Len(t, vecs, len(texts))
	for i, v := range vecs {
		assert.Equal(t, float32(len(texts[i])), v[0])
	}
	assert.Equal(t, int32(3), calls.Load())
	assert.Equal(t, 3, c.Dimension())
	assert.Equal(t, "openai:test-model", c.Name())
}

func TestClient_Embed(t *testing.T) {
	var calls atomic.Int32
	srv := fakeEmbeddingsServer(t, &calls)
	defer srv.Close()

	c, err := NewClient(Config{BaseURL: srv.URL, Model: "test-model"})
	require.NoError(t, err)
	v, err := c.Embed(context.Background(), "hello")
	require.NoError(t, err)
	assert.Equal(t, []float32{5, 1, 0}, v)
}

func TestClient_ErrorPropagates(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":{"message":"invalid api key"}}`, http.StatusUnauthorized)
	}))
	defer srv.Close()

	c, err := NewClient(Config{BaseURL: srv.URL, APIKey: "bad"})
	require.NoError(t, err)
	_, err = c.EmbedBatch(context.Background(), []string{"x"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid api key")
}

func TestNewClient_RequiresKeyForDefaultEndpoint(t *testing.T) {
	t.Setenv("PDFRAG_TEST_MISSING_KEY", "")
	_, err := NewClient(Config{APIKeyEnv: "PDFRAG_TEST_MISSING_KEY"})
	assert.Error(t, err)
}

func TestNewClient_RequiresKeyForHostedEndpoint(t *testing.T) {
	t.Setenv("PDFRAG_TEST_MISSING_KEY", "")
	_, err := NewClient(Config{BaseURL: "https://api.openai.com/v1", APIKeyEnv: "PDFRAG_TEST_MISSING_KEY"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "PDFRAG_TEST_MISSING_KEY")

	_, err = NewClient(Config{BaseURL: "http://localhost:11434/v1", APIKeyEnv: "PDFRAG_TEST_MISSING_KEY"})
	assert.NoError(t, err)
}
