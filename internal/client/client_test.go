package client

import (
	"context"
	"errors"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pdfrag/internal/api"
	"pdfrag/internal/domain"
)

type stubService struct {
	source   string
	question string
	k        int
	err      error
}

func (s *stubService) Ingest(_ context.Context, pdf []byte, source string) (domain.IngestResult, error) {
	s.source = source
	return domain.IngestResult{Chunks: len(pdf), Summary: "sum"}, s.err
}

func (s *stubService) Answer(_ context.Context, q string, k int, _ string) (domain.Answer, error) {
	s.question, s.k = q, k
	return domain.Answer{Text: "yes", Sources: []string{"a.pdf"}}, s.err
}

func (s *stubService) Stats(context.Context) (domain.StoreStats, error) {
	return domain.StoreStats{Entries: 9, Metric: "cosine"}, s.err
}

func newClient(t *testing.T, svc *stubService) *Client {
	t.Helper()
	gin.SetMode(gin.TestMode)
	srv := httptest.NewServer(api.NewServer(svc, api.Options{}).Router())
	t.Cleanup(srv.Close)
	return New(srv.URL+"/", 5*time.Second)
}

func TestClient_RoundTrip(t *testing.T) {
	ctx := context.Background()
	svc := &stubService{}
	c := newClient(t, svc)

	res, err := c.Ingest(ctx, []byte("%PDF-1.4"), "docs/report.pdf")
	require.NoError(t, err)
	assert.Equal(t, domain.IngestResult{Chunks: 8, Summary: "sum"}, res)
	assert.Equal(t, "docs/report.pdf", svc.source)

	ans, err := c.Answer(ctx, "Is it?", 2, "")
	require.NoError(t, err)
	assert.Equal(t, domain.Answer{Text: "yes", Sources: []string{"a.pdf"}}, ans)
	assert.Equal(t, "Is it?", svc.question)
	assert.Equal(t, 2, svc.k)

	stats, err := c.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 9, stats.Entries)
}

func TestClient_Errors(t *testing.T) {
	ctx := context.Background()
	c := newClient(t, &stubService{err: errors.New("index unavailable")})

	_, err := c.Answer(ctx, "q", 1, "")
	var apiErr *Error
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, 500, apiErr.StatusCode)
	assert.Equal(t, "index unavailable", apiErr.Message)

	_, err = c.Answer(ctx, "   ", 1, "")
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, 400, apiErr.StatusCode)
	assert.Equal(t, "Empty question.", apiErr.Message)
}
