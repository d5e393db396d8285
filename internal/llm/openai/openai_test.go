package openai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClient_Complete(t *testing.T) {
	var got chatRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":"  forty-two \n"}}]}`))
	}))
	defer srv.Close()

	c, err := NewClient(Config{BaseURL: srv.URL, DefaultModel: "gpt-4o-mini"})
	require.NoError(t, err)

	out, err := c.Complete(context.Background(), "What is the answer?", "")
	require.NoError(t, err)
	assert.Equal(t, "forty-two", out)
	assert.Equal(t, "gpt-4o-mini", got.Model)
	assert.Equal(t, 1, got.N)
	assert.False(t, got.Stream)
	require.Len(t, got.Messages, 1)
	assert.Equal(t, "What is the answer?", got.Messages[0].Content)

	_, err = c.Complete(context.Background(), "again", "gpt-3.5-turbo")
	require.NoError(t, err)
	assert.Equal(t, "gpt-3.5-turbo", got.Model)
}

func TestClient_NoChoices(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"choices":[]}`))
	}))
	defer srv.Close()

	c, err := NewClient(Config{BaseURL: srv.URL})
	require.NoError(t, err)
	_, err = c.Complete(context.Background(), "q", "")
	assert.Error(t, err)
}

func TestClient_TemperatureOnlySentWhenConfigured(t *testing.T) {
	var bodies []map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		bodies = append(bodies, body)
		_, _ = w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":"ok"}}]}`))
	}))
	defer srv.Close()

	plain, err := NewClient(Config{BaseURL: srv.URL})
	require.NoError(t, err)
	_, err = plain.Complete(context.Background(), "q", "")
	require.NoError(t, err)

	zero := 0.0
	pinned, err := NewClient(Config{BaseURL: srv.URL, Temperature: &zero})
	require.NoError(t, err)
	_, err = pinned.Complete(context.Background(), "q", "")
	require.NoError(t, err)

	require.Len(t, bodies, 2)
	assert.NotContains(t, bodies[0], "temperature")
	assert.Equal(t, 0.0, bodies[1]["temperature"])
}

func TestNewClient_MissingKeyForHostedEndpoint(t *testing.T) {
	t.Setenv("PDFRAG_TEST_MISSING_KEY", "")
	_, err := NewClient(Config{BaseURL: "https://api.openai.com/v1", APIKeyEnv: "PDFRAG_TEST_MISSING_KEY"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "PDFRAG_TEST_MISSING_KEY")
}
