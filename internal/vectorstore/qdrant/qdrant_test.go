package qdrant

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pdfrag/internal/domain"
	"pdfrag/internal/embedding/hashing"
)

type point struct {
	ID      string         `json:"id"`
	Vector  []float32      `json:"vector"`
	Payload map[string]any `json:"payload"`
}

// fakeQdrant implements the handful of endpoints the store uses.
type fakeQdrant struct {
	mu      sync.Mutex
	size    int
	points  []point
	apiKeys []string
}

func (f *fakeQdrant) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.apiKeys = append(f.apiKeys, r.Header.Get("api-key"))

	path := strings.TrimPrefix(r.URL.Path, "/collections/docs")
	switch {
	case r.Method == http.MethodGet && path == "":
		if f.size == 0 {
			http.Error(w, `{"status":{"error":"Not found"}}`, http.StatusNotFound)
			return
		}
		resp := map[string]any{"result": map[string]any{
			"points_count": len(f.points),
			"config":       map[string]any{"params": map[string]any{"vectors": map[string]any{"size": f.size, "distance": "Cosine"}}},
		}}
		_ = json.NewEncoder(w).Encode(resp)
	case r.Method == http.MethodPut && path == "":
		var body struct {
			Vectors struct {
				Size int `json:"size"`
			} `json:"vectors"`
		}
		_ = json.NewDecoder(r.Body).Decode(&body)
		f.size = body.Vectors.Size
		_, _ = w.Write([]byte(`{"result":true}`))
	case r.Method == http.MethodPut && path == "/points":
		var body struct {
			Points []point `json:"points"`
		}
		_ = json.NewDecoder(r.Body).Decode(&body)
		f.points = append(f.points, body.Points...)
		_, _ = w.Write([]byte(`{"result":{"status":"completed"}}`))
	case r.Method == http.MethodPost && path == "/points/search":
		var body struct {
			Vector []float32 `json:"vector"`
			Limit  int       `json:"limit"`
		}
		_ = json.NewDecoder(r.Body).Decode(&body)
		var best []map[string]any
		for _, p := range f.points {
			if equal(p.Vector, body.Vector) {
				best = append([]map[string]any{{"score": 1.0, "payload": p.Payload}}, best...)
			} else {
				best = append(best, map[string]any{"score": 0.1, "payload": p.Payload})
			}
		}
		if len(best) > body.Limit {
			best = best[:body.Limit]
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"result": best})
	default:
		http.NotFound(w, r)
	}
}

func equal(a, b []float32) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func newTestStore(t *testing.T) (*Store, *fakeQdrant) {
	t.Helper()
	fake := &fakeQdrant{}
	srv := httptest.NewServer(fake)
	t.Cleanup(srv.Close)
	return NewStore(Config{URL: srv.URL + "/", APIKey: "secret", Collection: "docs"}, hashing.NewEmbedder(32), nil), fake
}

func TestStore_EmptyCollection(t *testing.T) {
	ctx := context.Background()
	store, fake := newTestStore(t)

	got, err := store.Retrieve(ctx, "anything", 3)
	require.NoError(t, err)
	assert.Empty(t, got)

	stats, err := store.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, stats.Entries)

	require.NoError(t, store.LoadOrCreate(ctx))
	assert.Equal(t, 32, fake.size)

	n, err := store.AddAndPersist(ctx, nil)
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}

func TestStore_AddAndRetrieve(t *testing.T) {
	ctx := context.Background()
	store, fake := newTestStore(t)

	chunks := []domain.Chunk{
		{Content: "solar panels convert light", Metadata: map[string]string{domain.MetadataSource: "energy.pdf"}},
		{Content: "wind turbines spin", Metadata: map[string]string{domain.MetadataSource: "energy.pdf"}},
	}
	n, err := store.AddAndPersist(ctx, chunks)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	require.Len(t, fake.points, 2)
	assert.NotEqual(t, fake.points[0].ID, fake.points[1].ID)

	got, err := store.Retrieve(ctx, "wind turbines spin", 1)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "wind turbines spin", got[0].Content)
	assert.Equal(t, "energy.pdf", got[0].Source())

	stats, err := store.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, stats.Entries)
	assert.Equal(t, 32, stats.Dimension)
	assert.Equal(t, "cosine", stats.Metric)

	for _, key := range fake.apiKeys {
		assert.Equal(t, "secret", key)
	}
}

func TestStore_DimensionConflict(t *testing.T) {
	ctx := context.Background()
	store, fake := newTestStore(t)
	fake.size = 8

	err := store.LoadOrCreate(ctx)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "dimension 8")
}
