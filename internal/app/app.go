// Package app assembles the ingestion and answering pipeline from configuration.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"pdfrag/internal/blobstore"
	"pdfrag/internal/blobstore/minio"
	"pdfrag/internal/blobstore/s3"
	"pdfrag/internal/chunker"
	"pdfrag/internal/config"
	"pdfrag/internal/domain"
	"pdfrag/internal/embedding"
	"pdfrag/internal/embedding/gemini"
	"pdfrag/internal/embedding/hashing"
	"pdfrag/internal/embedding/openai"
	"pdfrag/internal/llm"
	"pdfrag/internal/logger"
	geminillm "pdfrag/internal/llm/gemini"
	openaillm "pdfrag/internal/llm/openai"
	"pdfrag/internal/service"
	"pdfrag/internal/summarizer"
	"pdfrag/internal/vectorstore"
	"pdfrag/internal/vectorstore/qdrant"
)

// Pipeline is the assembled service together with the clients it owns.
type Pipeline struct {
	*service.RAGServiceImpl
	closers []io.Closer
}

// Close releases the embedding and LLM clients.
func (p *Pipeline) Close() error {
	var errs []error
	for _, c := range p.closers {
		if err := c.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	p.closers = nil
	return errors.Join(errs...)
}

func (p *Pipeline) own(v any) {
	if c, ok := v.(io.Closer); ok {
		p.closers = append(p.closers, c)
	}
}

// Build validates cfg and wires every component of the pipeline. The vector store is
// loaded (or bootstrapped) before Build returns. lg and observer may be nil.
func Build(ctx context.Context, cfg *config.AppConfig, lg *slog.Logger, observer vectorstore.Observer) (_ *Pipeline, err error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	if lg == nil {
		lg = logger.Discard()
	}
	p := &Pipeline{}
	defer func() {
		if err != nil {
			_ = p.Close()
		}
	}()

	emb, err := NewEmbedder(ctx, cfg.Embedder)
	if err != nil {
		return nil, fmt.Errorf("embedder: %w", err)
	}
	p.own(emb)
	provider, err := NewProvider(ctx, cfg.LLM, lg)
	if err != nil {
		return nil, fmt.Errorf("llm: %w", err)
	}
	p.own(provider)
	ch, err := NewChunker(cfg.Chunker)
	if err != nil {
		return nil, fmt.Errorf("chunker: %w", err)
	}
	store, err := NewVectorStore(ctx, cfg.VectorStore, emb, lg, observer)
	if err != nil {
		return nil, fmt.Errorf("vector store: %w", err)
	}
	lg.Info("pipeline ready",
		"embedder", emb.Name(),
		"llm", provider.Name(),
		"chunker", cfg.Chunker.Type,
		"vector_store", cfg.VectorStore.Type,
	)
	p.RAGServiceImpl = service.NewRAGService(ch, store, summarizer.NewFrequencySummarizer(), provider, service.Options{
		SummaryMaxSentences: cfg.Summarizer.MaxSentences,
		Logger:              lg,
	})
	return p, nil
}

// NewEmbedder builds the configured embedder.
func NewEmbedder(ctx context.Context, cfg config.EmbedderConfig) (embedding.Embedder, error) {
	switch cfg.Type {
	case "hashing":
		return hashing.NewEmbedder(cfg.Dimension), nil
	case "openai":
		o := cfg.OpenAI
		if o == nil {
			return nil, fmt.Errorf("openai embedder config missing")
		}
		return openai.NewClient(openai.Config{
			BaseURL:           o.BaseURL,
			APIKeyEnv:         o.APIKeyEnv,
			Model:             o.Model,
			Timeout:           time.Duration(o.TimeoutSecs) * time.Second,
			BatchSize:         o.BatchSize,
			Concurrency:       o.Concurrency,
			RequestsPerMinute: o.RequestsPerMinute,
		})
	case "gemini":
		g := cfg.Gemini
		if g == nil {
			return nil, fmt.Errorf("gemini embedder config missing")
		}
		return gemini.NewEmbedder(ctx, os.Getenv(g.APIKeyEnv), g.Model)
	default:
		return nil, fmt.Errorf("unknown embedder: %s", cfg.Type)
	}
}

// NewProvider builds the configured language-model provider.
func NewProvider(ctx context.Context, cfg config.LLMConfig, lg *slog.Logger) (llm.Provider, error) {
	switch cfg.Type {
	case "openai":
		o := cfg.OpenAI
		if o == nil {
			return nil, fmt.Errorf("openai llm config missing")
		}
		return openaillm.NewClient(openaillm.Config{
			BaseURL:           o.BaseURL,
			APIKeyEnv:         o.APIKeyEnv,
			DefaultModel:      o.Model,
			Temperature:       o.Temperature,
			Timeout:           time.Duration(o.TimeoutSecs) * time.Second,
			MaxRetries:        o.MaxRetries,
			RequestsPerMinute: o.RequestsPerMinute,
		})
	case "gemini":
		g := cfg.Gemini
		if g == nil {
			return nil, fmt.Errorf("gemini llm config missing")
		}
		return geminillm.NewProvider(ctx, geminillm.Config{
			APIKey:            os.Getenv(g.APIKeyEnv),
			DefaultModel:      g.Model,
			Temperature:       g.Temperature,
			MaxOutputTokens:   g.MaxOutputTokens,
			RequestsPerMinute: g.RequestsPerMinute,
		}, lg)
	default:
		return nil, fmt.Errorf("unknown llm: %s", cfg.Type)
	}
}

// NewChunker builds the PDF chunker with the configured text splitter.
func NewChunker(cfg config.ChunkerConfig) (domain.Chunker, error) {
	var splitter chunker.TextSplitter
	switch cfg.Type {
	case "recursive":
		s, err := chunker.NewRecursiveSplitter(cfg.ChunkSize, cfg.ChunkOverlap)
		if err != nil {
			return nil, err
		}
		splitter = s
	case "sentence":
		splitter = chunker.NewSentenceChunker(cfg.SentencesPerChunk, cfg.OverlapSentences)
	default:
		return nil, fmt.Errorf("unknown chunker: %s", cfg.Type)
	}
	return chunker.NewPDFChunker(splitter), nil
}

// NewBlobStore opens the configured snapshot storage.
func NewBlobStore(ctx context.Context, cfg config.StorageConfig) (blobstore.Store, error) {
	switch cfg.Type {
	case "local":
		return blobstore.NewLocalStore(cfg.PersistDir), nil
	case "minio":
		m := cfg.Minio
		if m == nil {
			return nil, fmt.Errorf("minio storage config missing")
		}
		store, err := minio.New(minio.Config{
			Endpoint:  m.Endpoint,
			AccessKey: os.Getenv(m.AccessKeyEnv),
			SecretKey: os.Getenv(m.SecretKeyEnv),
			Bucket:    m.Bucket,
			Prefix:    m.Prefix,
			Region:    m.Region,
			Secure:    m.Secure,
		})
		if err != nil {
			return nil, err
		}
		if err := store.EnsureBucket(ctx); err != nil {
			return nil, err
		}
		return store, nil
	case "s3":
		s := cfg.S3
		if s == nil {
			return nil, fmt.Errorf("s3 storage config missing")
		}
		return s3.New(ctx, s3.Config{
			Bucket:       s.Bucket,
			Prefix:       s.Prefix,
			Region:       s.Region,
			Endpoint:     s.Endpoint,
			UsePathStyle: s.UsePathStyle,
		})
	default:
		return nil, fmt.Errorf("unknown storage: %s", cfg.Type)
	}
}

// NewVectorStore builds the configured vector store and loads it.
func NewVectorStore(ctx context.Context, cfg config.VectorStoreConfig, emb embedding.Embedder, lg *slog.Logger, observer vectorstore.Observer) (domain.VectorStore, error) {
	switch cfg.Type {
	case "flat":
		compression, err := vectorstore.ParseCompression(cfg.Compression)
		if err != nil {
			return nil, err
		}
		blobs, err := NewBlobStore(ctx, cfg.Storage)
		if err != nil {
			return nil, err
		}
		m := vectorstore.NewManager(blobs, emb, vectorstore.Options{
			Compression: compression,
			Logger:      lg,
			Observer:    observer,
		})
		ix, err := m.LoadOrCreate(ctx)
		if err != nil {
			return nil, err
		}
		lg.Info("index loaded", "location", blobs.Location(), "entries", ix.Len(), "compression", compression.String())
		return m, nil
	case "qdrant":
		q := cfg.Qdrant
		if q == nil {
			return nil, fmt.Errorf("qdrant config missing")
		}
		s := qdrant.NewStore(qdrant.Config{
			URL:        q.URL,
			APIKey:     os.Getenv(q.APIKeyEnv),
			Collection: q.Collection,
			Timeout:    time.Duration(q.TimeoutSecs) * time.Second,
		}, emb, lg)
		if err := s.LoadOrCreate(ctx); err != nil {
			return nil, err
		}
		return s, nil
	default:
		return nil, fmt.Errorf("unknown vector store: %s", cfg.Type)
	}
}
