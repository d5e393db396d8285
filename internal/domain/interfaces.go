package domain

import "context"

// MetadataSource is the metadata key naming the file a chunk came from.
const MetadataSource = "source"

// Chunk is a bounded fragment of document text plus metadata.
type Chunk struct {
	Content  string            `json:"content"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

// Source returns the chunk's source label, or "" when none was stamped.
func (c Chunk) Source() string {
	if c.Metadata == nil {
		return ""
	}
	return c.Metadata[MetadataSource]
}

// Clone returns a deep copy of the chunk.
func (c Chunk) Clone() Chunk {
	out := Chunk{Content: c.Content}
	if len(c.Metadata) > 0 {
		out.Metadata = make(map[string]string, len(c.Metadata))
		for k, v := range c.Metadata {
			out.Metadata[k] = v
		}
	}
	return out
}

// SearchResult represents a matching chunk with a relevance score.
type SearchResult struct {
	Chunk Chunk
	Score float64
}

// IngestResult is what a single PDF ingestion reports back.
type IngestResult struct {
	Chunks  int    `json:"ingested_chunks"`
	Summary string `json:"summary,omitempty"`
}

// Answer is a model answer together with the source label of every retrieved chunk,
// aligned 1:1 with retrieval rank.
type Answer struct {
	Text    string   `json:"answer"`
	Sources []string `json:"sources"`
}

// StoreStats describes the current contents of a vector store.
type StoreStats struct {
	Entries   int            `json:"entries"`
	Dimension int            `json:"dimension"`
	Metric    string         `json:"metric"`
	Embedder  string         `json:"embedder,omitempty"`
	Sources   map[string]int `json:"sources,omitempty"`
}

// Chunker splits raw PDF bytes into ordered chunks with empty metadata. It also returns
// the extracted text the chunks were cut from.
type Chunker interface {
	SplitDocument(pdf []byte) (text string, chunks []Chunk)
}

// VectorStore persists embedded chunks and supports similarity retrieval.
type VectorStore interface {
	AddAndPersist(ctx context.Context, chunks []Chunk) (int, error)
	Retrieve(ctx context.Context, query string, k int) ([]Chunk, error)
	Stats(ctx context.Context) (StoreStats, error)
}

// Summarizer produces a brief summary of the provided text.
type Summarizer interface {
	Summarize(text string, maxSentences int) (string, error)
}

// RAGService defines the operations exposed by the application core.
type RAGService interface {
	Ingest(ctx context.Context, pdf []byte, source string) (IngestResult, error)
	Answer(ctx context.Context, question string, k int, model string) (Answer, error)
	Stats(ctx context.Context) (StoreStats, error)
}
