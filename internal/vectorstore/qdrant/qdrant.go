// Package qdrant is a vector store backed by a Qdrant collection over its REST API.
package qdrant

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"pdfrag/internal/domain"
	"pdfrag/internal/embedding"
)

// Config holds the Qdrant connection details.
type Config struct {
	URL        string
	APIKey     string
	Collection string
	Timeout    time.Duration
}

// Store keeps chunks in a Qdrant collection using cosine distance. The collection is
// created on first use; upserts wait for the write to be applied.
type Store struct {
	url        string
	apiKey     string
	collection string
	client     *http.Client
	embedder   embedding.Embedder
	logger     *slog.Logger

	mu sync.Mutex
}

var _ domain.VectorStore = (*Store)(nil)

var errCollectionMissing = errors.New("collection does not exist")

// NewStore creates a Qdrant-backed store.
func NewStore(cfg Config, embedder embedding.Embedder, logger *slog.Logger) *Store {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 15 * time.Second
	}
	if cfg.Collection == "" {
		cfg.Collection = "pdfrag"
	}
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Store{
		url:        strings.TrimRight(cfg.URL, "/"),
		apiKey:     cfg.APIKey,
		collection: cfg.Collection,
		client:     &http.Client{Timeout: timeout},
		embedder:   embedder,
		logger:     logger.With("component", "qdrant", "collection", cfg.Collection),
	}
}

type collectionInfo struct {
	PointsCount int `json:"points_count"`
	Config      struct {
		Params struct {
			Vectors struct {
				Size     int    `json:"size"`
				Distance string `json:"distance"`
			} `json:"vectors"`
		} `json:"params"`
	} `json:"config"`
}

func (s *Store) info(ctx context.Context) (collectionInfo, error) {
	var resp struct {
		Result collectionInfo `json:"result"`
	}
	err := s.do(ctx, http.MethodGet, s.collectionURL(""), nil, &resp)
	return resp.Result, err
}

// LoadOrCreate ensures the collection exists. When the embedder does not know its
// dimension yet, creation is deferred to the first add.
func (s *Store) LoadOrCreate(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ensure(ctx, s.embedder.Dimension())
}

func (s *Store) ensure(ctx context.Context, dimension int) error {
	info, err := s.info(ctx)
	if err == nil {
		if dimension > 0 && info.Config.Params.Vectors.Size != dimension {
			return fmt.Errorf("qdrant collection %s has dimension %d, embedder produces %d",
				s.collection, info.Config.Params.Vectors.Size, dimension)
		}
		return nil
	}
	if !errors.Is(err, errCollectionMissing) {
		return err
	}
	if dimension <= 0 {
		return nil
	}
	body := map[string]any{
		"vectors": map[string]any{
			"size":     dimension,
			"distance": "Cosine",
		},
	}
	if err := s.do(ctx, http.MethodPut, s.collectionURL(""), body, nil); err != nil {
		return fmt.Errorf("create qdrant collection: %w", err)
	}
	s.logger.Info("created collection", "dimension", dimension)
	return nil
}

// AddAndPersist embeds chunks and upserts them, waiting until Qdrant applied the write.
func (s *Store) AddAndPersist(ctx context.Context, chunks []domain.Chunk) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(chunks) == 0 {
		return 0, s.ensure(ctx, s.embedder.Dimension())
	}
	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Content
	}
	vectors, err := s.embedder.EmbedBatch(ctx, texts)
	if err != nil {
		return 0, fmt.Errorf("embed chunks: %w", err)
	}
	if err := s.ensure(ctx, len(vectors[0])); err != nil {
		return 0, err
	}

	points := make([]map[string]any, len(chunks))
	for i, c := range chunks {
		points[i] = map[string]any{
			"id":     uuid.NewString(),
			"vector": vectors[i],
			"payload": map[string]any{
				"content":  c.Content,
				"metadata": c.Metadata,
			},
		}
	}
	body := map[string]any{"points": points}
	if err := s.do(ctx, http.MethodPut, s.collectionURL("/points?wait=true"), body, nil); err != nil {
		return 0, fmt.Errorf("upsert points: %w", err)
	}
	return len(chunks), nil
}

// Retrieve returns up to k chunks most similar to query. A missing or empty collection
// yields no chunks without calling the embedder.
func (s *Store) Retrieve(ctx context.Context, query string, k int) ([]domain.Chunk, error) {
	if k <= 0 {
		return nil, nil
	}
	info, err := s.info(ctx)
	if errors.Is(err, errCollectionMissing) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load collection: %w", err)
	}
	if info.PointsCount == 0 {
		return nil, nil
	}
	vector, err := s.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	req := map[string]any{
		"vector":       vector,
		"limit":        k,
		"with_payload": true,
	}
	var resp struct {
		Result []struct {
			Score   float64 `json:"score"`
			Payload struct {
				Content  string            `json:"content"`
				Metadata map[string]string `json:"metadata"`
			} `json:"payload"`
		} `json:"result"`
	}
	if err := s.do(ctx, http.MethodPost, s.collectionURL("/points/search"), req, &resp); err != nil {
		return nil, fmt.Errorf("search points: %w", err)
	}
	out := make([]domain.Chunk, 0, len(resp.Result))
	for _, r := range resp.Result {
		out = append(out, domain.Chunk{Content: r.Payload.Content, Metadata: r.Payload.Metadata})
	}
	return out, nil
}

// Stats reports the collection size and vector parameters.
func (s *Store) Stats(ctx context.Context) (domain.StoreStats, error) {
	stats := domain.StoreStats{Metric: "cosine", Embedder: s.embedder.Name()}
	info, err := s.info(ctx)
	if errors.Is(err, errCollectionMissing) {
		return stats, nil
	}
	if err != nil {
		return domain.StoreStats{}, err
	}
	stats.Entries = info.PointsCount
	stats.Dimension = info.Config.Params.Vectors.Size
	if d := info.Config.Params.Vectors.Distance; d != "" {
		stats.Metric = strings.ToLower(d)
	}
	return stats, nil
}

func (s *Store) collectionURL(suffix string) string {
	return fmt.Sprintf("%s/collections/%s%s", s.url, s.collection, suffix)
}

func (s *Store) do(ctx context.Context, method, url string, body, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if s.apiKey != "" {
		req.Header.Set("api-key", s.apiKey)
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusNotFound && method == http.MethodGet {
		return errCollectionMissing
	}
	if resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("qdrant %s %s failed: %s: %s", method, url, resp.Status, strings.TrimSpace(string(msg)))
	}
	if out != nil {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	return nil
}
