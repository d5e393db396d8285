package openai

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"pdfrag/internal/openaicompat"
)

// Client is an OpenAI-compatible embeddings client implementing the Embedder interface.
type Client struct {
	transport   *openaicompat.Transport
	model       string
	batchSize   int
	concurrency int

	mu        sync.Mutex
	dimension int
}

// Config configures the OpenAI-compatible embeddings client.
type Config struct {
	BaseURL           string
	APIKey            string
	APIKeyEnv         string
	Model             string
	Timeout           time.Duration
	BatchSize         int
	Concurrency       int
	MaxRetries        int
	RequestsPerMinute int
}

// NewClient creates a new embeddings client using the provided configuration.
func NewClient(cfg Config) (*Client, error) {
	key := cfg.APIKey
	if key == "" && cfg.APIKeyEnv != "" {
		key = os.Getenv(cfg.APIKeyEnv)
	}
	if key == "" && openaicompat.RequiresKey(cfg.BaseURL) {
		return nil, fmt.Errorf("missing API key in env %s", cfg.APIKeyEnv)
	}
	if cfg.Model == "" {
		cfg.Model = "text-embedding-3-small"
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 32
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 4
	}
	if cfg.MaxRetries == 0 {
		cfg.MaxRetries = 5
	}
	return &Client{
		transport: openaicompat.NewTransport(openaicompat.Config{
			BaseURL:           cfg.BaseURL,
			APIKey:            key,
			Timeout:           cfg.Timeout,
			MaxRetries:        cfg.MaxRetries,
			RequestsPerMinute: cfg.RequestsPerMinute,
		}),
		model:       cfg.Model,
		batchSize:   cfg.BatchSize,
		concurrency: cfg.Concurrency,
	}, nil
}

// Name returns the identifier of this embedder implementation.
func (c *Client) Name() string { return "openai:" + c.model }

// Dimension returns the dimensionality of the produced vectors, 0 before the first call.
func (c *Client) Dimension() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.dimension
}

// Embed returns an embedding vector for the given text.
func (c *Client) Embed(ctx context.Context, text string) ([]float32, error) {
	out, err := c.embed(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return out[0], nil
}

// EmbedBatch embeds texts in requests of at most batchSize inputs, several in flight at once.
func (c *Client) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.concurrency)
	for start := 0; start < len(texts); start += c.batchSize {
		start := start
		end := start + c.batchSize
		if end > len(texts) {
			end = len(texts)
		}
		g.Go(func() error {
			vecs, err := c.embed(gctx, texts[start:end])
			if err != nil {
				return err
			}
			copy(out[start:end], vecs)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

type embeddingsRequest struct {
	Input []string `json:"input"`
	Model string   `json:"model"`
}

type embeddingsResponse struct {
	Data []struct {
		Index     int       `json:"index"`
		Embedding []float32 `json:"embedding"`
	} `json:"data"`
	// Ollama-native shape
	Embedding  []float32   `json:"embedding"`
	Embeddings [][]float32 `json:"embeddings"`
}

func (c *Client) embed(ctx context.Context, texts []string) ([][]float32, error) {
	var resp embeddingsResponse
	if err := c.transport.PostJSON(ctx, "/embeddings", embeddingsRequest{Input: texts, Model: c.model}, &resp); err != nil {
		return nil, fmt.Errorf("openai embeddings failed: %w", err)
	}
	var vecs [][]float32
	switch {
	case len(resp.Data) > 0:
		sort.Slice(resp.Data, func(i, j int) bool { return resp.Data[i].Index < resp.Data[j].Index })
		for _, d := range resp.Data {
			vecs = append(vecs, d.Embedding)
		}
	case len(resp.Embeddings) > 0:
		vecs = resp.Embeddings
	case len(resp.Embedding) > 0:
		vecs = [][]float32{resp.Embedding}
	}
	if len(vecs) != len(texts) {
		return nil, fmt.Errorf("openai embeddings: got %d vectors for %d inputs", len(vecs), len(texts))
	}
	for _, v := range vecs {
		if len(v) == 0 {
			return nil, errors.New("empty embedding")
		}
	}
	c.mu.Lock()
	if c.dimension == 0 {
		c.dimension = len(vecs[0])
	}
	c.mu.Unlock()
	return vecs, nil
}
