package service

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pdfrag/internal/blobstore"
	"pdfrag/internal/chunker"
	"pdfrag/internal/domain"
	"pdfrag/internal/embedding/hashing"
	"pdfrag/internal/summarizer"
	"pdfrag/internal/testutil"
	"pdfrag/internal/vectorstore"
)

type fakeLLM struct {
	prompts []string
	models  []string
	answer  string
	err     error
}

func (f *fakeLLM) Name() string { return "fake" }

func (f *fakeLLM) Complete(_ context.Context, prompt, model string) (string, error) {
	f.prompts = append(f.prompts, prompt)
	f.models = append(f.models, model)
	return f.answer, f.err
}

type failingStore struct {
	domain.VectorStore
	err error
}

func (f failingStore) AddAndPersist(context.Context, []domain.Chunk) (int, error) { return 0, f.err }

func (f failingStore) Retrieve(context.Context, string, int) ([]domain.Chunk, error) {
	return nil, f.err
}

var pages = []string{
	"Photosynthesis converts sunlight into chemical energy.",
	"Mitochondria produce energy for the cell.",
	"Glaciers carve valleys over thousands of years.",
	"Volcanoes release magma from the mantle.",
	"Comets are icy bodies orbiting the sun.",
}

func newFixture(t *testing.T) (*RAGServiceImpl, *vectorstore.Manager, *fakeLLM) {
	t.Helper()
	// every page fits a chunk on its own but no two pages fit together
	splitter, err := chunker.NewRecursiveSplitter(60, 0)
	require.NoError(t, err)
	store := vectorstore.NewManager(blobstore.NewLocalStore(t.TempDir()), hashing.NewEmbedder(256), vectorstore.Options{})
	provider := &fakeLLM{answer: "42"}
	svc := NewRAGService(chunker.NewPDFChunker(splitter), store, summarizer.NewFrequencySummarizer(), provider,
		Options{SummaryMaxSentences: 2})
	return svc, store, provider
}

func TestIngest_StampsSourceAndCounts(t *testing.T) {
	ctx := context.Background()
	svc, store, _ := newFixture(t)

	res, err := svc.Ingest(ctx, testutil.BuildPDF(pages...), "doc.pdf")
	require.NoError(t, err)
	assert.Equal(t, 5, res.Chunks)
	assert.NotEmpty(t, res.Summary)

	got, err := store.Retrieve(ctx, "doc.pdf content phrase about glaciers", 3)
	require.NoError(t, err)
	require.NotEmpty(t, got)
	assert.LessOrEqual(t, len(got), 3)
	for _, c := range got {
		assert.Equal(t, "doc.pdf", c.Source())
	}
}

func TestIngest_EmptyFileLeavesIndexUnchanged(t *testing.T) {
	ctx := context.Background()
	svc, store, _ := newFixture(t)

	res, err := svc.Ingest(ctx, []byte{}, "empty.pdf")
	require.NoError(t, err)
	assert.Equal(t, 0, res.Chunks)
	assert.Empty(t, res.Summary)

	stats, err := store.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, stats.Entries)
}

func TestIngest_WithoutSourceLeavesMetadataEmpty(t *testing.T) {
	ctx := context.Background()
	svc, store, _ := newFixture(t)

	_, err := svc.Ingest(ctx, testutil.BuildPDF(pages[0]), "")
	require.NoError(t, err)

	stats, err := store.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"": 1}, stats.Sources)
}

func TestIngest_StoreFailure(t *testing.T) {
	boom := errors.New("persist failed")
	splitter, err := chunker.NewRecursiveSplitter(60, 0)
	require.NoError(t, err)
	svc := NewRAGService(chunker.NewPDFChunker(splitter), failingStore{err: boom}, nil, &fakeLLM{}, Options{})

	_, err = svc.Ingest(context.Background(), testutil.BuildPDF(pages...), "doc.pdf")
	require.ErrorIs(t, err, boom)
}

func TestAnswer_NoDocumentsStillCallsModel(t *testing.T) {
	svc, _, provider := newFixture(t)

	ans, err := svc.Answer(context.Background(), "What is X?", 3, "gpt-4")
	require.NoError(t, err)
	assert.Equal(t, "42", ans.Text)
	assert.Empty(t, ans.Sources)
	assert.NotNil(t, ans.Sources)

	require.Len(t, provider.prompts, 1)
	assert.Equal(t, BuildPrompt("What is X?", nil), provider.prompts[0])
	assert.Contains(t, provider.prompts[0], "Context:\n\n\nQuestion:\nWhat is X?\n\nAnswer:")
	assert.Equal(t, []string{"gpt-4"}, provider.models)
}

func TestAnswer_SourcesFollowRank(t *testing.T) {
	ctx := context.Background()
	svc, _, provider := newFixture(t)
	_, err := svc.Ingest(ctx, testutil.BuildPDF(pages...), "science.pdf")
	require.NoError(t, err)

	ans, err := svc.Answer(ctx, pages[2], 2, "")
	require.NoError(t, err)
	assert.Equal(t, []string{"science.pdf", "science.pdf"}, ans.Sources)

	prompt := provider.prompts[0]
	assert.True(t, strings.HasPrefix(prompt, "You are an expert assistant."))
	assert.Contains(t, prompt, "Context:\n"+pages[2]+"\n\n---\n\n")
	assert.True(t, strings.HasSuffix(prompt, "Question:\n"+pages[2]+"\n\nAnswer:"))
}

func TestAnswer_DefaultK(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newFixture(t)
	_, err := svc.Ingest(ctx, testutil.BuildPDF(pages...), "science.pdf")
	require.NoError(t, err)

	ans, err := svc.Answer(ctx, "energy", 0, "")
	require.NoError(t, err)
	assert.Len(t, ans.Sources, DefaultK)
}

func TestAnswer_Failures(t *testing.T) {
	ctx := context.Background()

	svc, _, provider := newFixture(t)
	provider.err = errors.New("rate limited")
	_, err := svc.Answer(ctx, "q", 3, "")
	require.ErrorIs(t, err, provider.err)
	assert.Contains(t, err.Error(), "llm call failed")

	boom := errors.New("index unavailable")
	svc = NewRAGService(nil, failingStore{err: boom}, nil, &fakeLLM{}, Options{})
	_, err = svc.Answer(ctx, "q", 3, "")
	require.ErrorIs(t, err, boom)
}
