package metrics

import (
	"errors"
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pdfrag/internal/vectorstore"
)

var _ vectorstore.Observer = (*Metrics)(nil)

func TestMetrics_Observer(t *testing.T) {
	m := New()

	m.OnAdd(5)
	m.OnAdd(2)
	assert.Equal(t, 7.0, testutil.ToFloat64(m.chunksAdded))

	m.OnPersist(time.Millisecond, 2048, nil)
	m.OnPersist(time.Millisecond, 10, errors.New("disk full"))
	assert.Equal(t, 2048.0, testutil.ToFloat64(m.snapshotBytes))

	m.OnLoadFallback(vectorstore.ErrCorruptSnapshot)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.fallbacks))

	m.OnRetrieve(time.Millisecond, 3, nil)
	assert.Equal(t, 3, testutil.CollectAndCount(m.opLatency))
}

func TestMetrics_Handler(t *testing.T) {
	m := New()
	m.ObserveHTTP("POST", "/ask", "200", 20*time.Millisecond)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.httpRequests.WithLabelValues("POST", "/ask", "200")))

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), `pdfrag_http_requests_total{code="200",method="POST",route="/ask"} 1`)
	assert.Contains(t, string(body), "go_goroutines")
}

func TestMetrics_RegistryIsIsolated(t *testing.T) {
	a, b := New(), New()
	a.OnAdd(4)

	n, err := testutil.GatherAndCount(a.Registry(), "pdfrag_chunks_ingested_total")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, 0.0, testutil.ToFloat64(b.chunksAdded))
}
