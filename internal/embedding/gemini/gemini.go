package gemini

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"
)

// maxBatch is the per-request limit of the batchEmbedContents endpoint.
const maxBatch = 100

// Embedder embeds text with a Google Generative AI embedding model.
type Embedder struct {
	client *genai.Client
	model  *genai.EmbeddingModel
	name   string

	mu        sync.Mutex
	dimension int
}

// NewEmbedder connects to the Generative Language API with apiKey.
func NewEmbedder(ctx context.Context, apiKey, model string) (*Embedder, error) {
	if apiKey == "" {
		return nil, errors.New("missing GEMINI_API_KEY for embeddings")
	}
	if model == "" {
		model = "text-embedding-004"
	}
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}
	return &Embedder{client: client, model: client.EmbeddingModel(model), name: model}, nil
}

// Name returns the identifier of this embedder implementation.
func (e *Embedder) Name() string { return "gemini:" + e.name }

// Dimension returns the dimensionality of the produced vectors, 0 before the first call.
func (e *Embedder) Dimension() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.dimension
}

// Embed returns the embedding of a single text.
func (e *Embedder) Embed(ctx context.Context, text string) ([]float32, error) {
	resp, err := e.model.EmbedContent(ctx, genai.Text(text))
	if err != nil {
		return nil, fmt.Errorf("gemini embed: %w", err)
	}
	if resp.Embedding == nil || len(resp.Embedding.Values) == 0 {
		return nil, errors.New("no embedding returned")
	}
	e.observe(resp.Embedding.Values)
	return resp.Embedding.Values, nil
}

// EmbedBatch embeds texts in order using the batch endpoint.
func (e *Embedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, 0, len(texts))
	for start := 0; start < len(texts); start += maxBatch {
		end := start + maxBatch
		if end > len(texts) {
			end = len(texts)
		}
		batch := e.model.NewBatch()
		for _, t := range texts[start:end] {
			batch.AddContent(genai.Text(t))
		}
		resp, err := e.model.BatchEmbedContents(ctx, batch)
		if err != nil {
			return nil, fmt.Errorf("gemini batch embed: %w", err)
		}
		if len(resp.Embeddings) != end-start {
			return nil, fmt.Errorf("gemini batch embed: got %d vectors for %d inputs", len(resp.Embeddings), end-start)
		}
		for _, emb := range resp.Embeddings {
			if emb == nil || len(emb.Values) == 0 {
				return nil, errors.New("no embedding returned")
			}
			out = append(out, emb.Values)
		}
	}
	if len(out) > 0 {
		e.observe(out[0])
	}
	return out, nil
}

// Close releases the underlying client.
func (e *Embedder) Close() error { return e.client.Close() }

func (e *Embedder) observe(v []float32) {
	e.mu.Lock()
	if e.dimension == 0 {
		e.dimension = len(v)
	}
	e.mu.Unlock()
}
