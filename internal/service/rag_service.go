// Package service wires chunking, the vector store and the language model into the
// ingestion and answering pipelines.
package service

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"pdfrag/internal/domain"
	"pdfrag/internal/llm"
)

// DefaultK is the number of chunks retrieved when Answer is called with k <= 0.
const DefaultK = 3

const promptTemplate = `You are an expert assistant. Use the provided context to answer the question concisely.
If the answer is not in the context, say "I couldn't find the answer in the provided documents."

Context:
%s

Question:
%s

Answer:`

const contextSeparator = "\n\n---\n\n"

// Options tunes a RAGServiceImpl.
type Options struct {
	// SummaryMaxSentences caps the ingest summary; zero disables summarization.
	SummaryMaxSentences int
	Logger              *slog.Logger
}

// RAGServiceImpl implements domain.RAGService.
type RAGServiceImpl struct {
	chunker             domain.Chunker
	store               domain.VectorStore
	summarizer          domain.Summarizer
	llm                 llm.Provider
	summaryMaxSentences int
	logger              *slog.Logger
}

var _ domain.RAGService = (*RAGServiceImpl)(nil)

// NewRAGService creates the application core. summarizer may be nil.
func NewRAGService(chunker domain.Chunker, store domain.VectorStore, summarizer domain.Summarizer, provider llm.Provider, opts Options) *RAGServiceImpl {
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &RAGServiceImpl{
		chunker:             chunker,
		store:               store,
		summarizer:          summarizer,
		llm:                 provider,
		summaryMaxSentences: opts.SummaryMaxSentences,
		logger:              logger.With("component", "rag"),
	}
}

// Ingest chunks pdf, stamps every chunk with source (when non-empty) and adds the chunks
// to the store. A document without extractable text ingests nothing and is not an error.
func (s *RAGServiceImpl) Ingest(ctx context.Context, pdf []byte, source string) (domain.IngestResult, error) {
	start := time.Now()
	text, chunks := s.chunker.SplitDocument(pdf)
	if len(chunks) == 0 {
		s.logger.Info("nothing to ingest", "source", source, "bytes", len(pdf))
		return domain.IngestResult{}, nil
	}
	if source != "" {
		for i := range chunks {
			if chunks[i].Metadata == nil {
				chunks[i].Metadata = map[string]string{}
			}
			chunks[i].Metadata[domain.MetadataSource] = source
		}
	}

	n, err := s.store.AddAndPersist(ctx, chunks)
	if err != nil {
		return domain.IngestResult{}, fmt.Errorf("add chunks: %w", err)
	}
	result := domain.IngestResult{Chunks: n}

	if s.summarizer != nil && s.summaryMaxSentences > 0 {
		summary, err := s.summarizer.Summarize(text, s.summaryMaxSentences)
		if err != nil {
			s.logger.Warn("summarize failed", "source", source, "error", err)
		} else {
			result.Summary = summary
		}
	}
	s.logger.Info("ingested document", "source", source, "chunks", n, "duration", time.Since(start))
	return result, nil
}

// Answer retrieves up to k chunks for question, prompts the model with them and returns
// the answer together with the source of every retrieved chunk in rank order.
func (s *RAGServiceImpl) Answer(ctx context.Context, question string, k int, model string) (domain.Answer, error) {
	if k <= 0 {
		k = DefaultK
	}
	chunks, err := s.store.Retrieve(ctx, question, k)
	if err != nil {
		return domain.Answer{}, fmt.Errorf("retrieve: %w", err)
	}

	text, err := s.llm.Complete(ctx, BuildPrompt(question, chunks), model)
	if err != nil {
		return domain.Answer{}, fmt.Errorf("llm call failed: %w", err)
	}
	sources := make([]string, len(chunks))
	for i, c := range chunks {
		sources[i] = c.Source()
	}
	s.logger.Debug("answered question", "retrieved", len(chunks), "provider", s.llm.Name(), "model", model)
	return domain.Answer{Text: text, Sources: sources}, nil
}

// Stats reports the store contents.
func (s *RAGServiceImpl) Stats(ctx context.Context) (domain.StoreStats, error) {
	return s.store.Stats(ctx)
}

// BuildPrompt renders the answering prompt. No chunks leave the context section empty.
func BuildPrompt(question string, chunks []domain.Chunk) string {
	parts := make([]string, len(chunks))
	for i, c := range chunks {
		parts[i] = c.Content
	}
	return fmt.Sprintf(promptTemplate, strings.Join(parts, contextSeparator), question)
}
