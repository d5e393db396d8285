package vectorstore

import (
	"errors"
	"fmt"
	"sort"

	"github.com/google/uuid"

	"pdfrag/internal/domain"
	"pdfrag/internal/embedding"
)

// MetricCosine is the only distance the flat index supports.
const MetricCosine = "cosine"

var (
	// ErrDimensionMismatch is returned when a vector does not match the index dimension.
	ErrDimensionMismatch = errors.New("vector dimension mismatch")
	// ErrEmbedderMismatch is returned when a snapshot was built by a different embedder.
	ErrEmbedderMismatch = errors.New("snapshot built with a different embedder")
)

// Entry is one embedded chunk.
type Entry struct {
	ID     string       `json:"id"`
	Vector []float32    `json:"vector"`
	Chunk  domain.Chunk `json:"chunk"`
}

// Index is a flat in-memory index using brute-force cosine similarity.
// An index with no entries is valid and searchable.
type Index struct {
	dimension int
	embedder  string
	entries   []Entry
}

// NewIndex creates an empty index. A zero dimension is fixed by the first Add.
func NewIndex(dimension int, embedder string) *Index {
	return &Index{dimension: dimension, embedder: embedder}
}

func (ix *Index) Len() int         { return len(ix.entries) }
func (ix *Index) Dimension() int   { return ix.dimension }
func (ix *Index) Embedder() string { return ix.embedder }
func (ix *Index) Entries() []Entry { return ix.entries }

// Add appends one entry per chunk. Chunks are deep-copied and vectors normalized.
// Nothing is added when any vector has the wrong dimension.
func (ix *Index) Add(chunks []domain.Chunk, vectors [][]float32) error {
	if len(chunks) != len(vectors) {
		return fmt.Errorf("chunks and vectors length mismatch: %d != %d", len(chunks), len(vectors))
	}
	dim := ix.dimension
	for _, v := range vectors {
		if dim == 0 {
			dim = len(v)
		}
		if len(v) == 0 || len(v) != dim {
			return fmt.Errorf("%w: got %d, want %d", ErrDimensionMismatch, len(v), dim)
		}
	}
	ix.dimension = dim
	for i := range chunks {
		vec := make([]float32, len(vectors[i]))
		copy(vec, vectors[i])
		ix.entries = append(ix.entries, Entry{
			ID:     uuid.NewString(),
			Vector: embedding.Normalize(vec),
			Chunk:  chunks[i].Clone(),
		})
	}
	return nil
}

// Search returns up to k entries ranked by descending cosine similarity to vector.
// Equal scores keep insertion order.
func (ix *Index) Search(vector []float32, k int) ([]domain.SearchResult, error) {
	if k <= 0 || len(ix.entries) == 0 {
		return nil, nil
	}
	if len(vector) != ix.dimension {
		return nil, fmt.Errorf("%w: query has %d, index has %d", ErrDimensionMismatch, len(vector), ix.dimension)
	}
	query := embedding.Normalize(append([]float32(nil), vector...))
	scores := make([]float64, len(ix.entries))
	for i := range ix.entries {
		scores[i] = dot(ix.entries[i].Vector, query)
	}
	idxs := argsortDesc(scores)
	if k > len(idxs) {
		k = len(idxs)
	}
	results := make([]domain.SearchResult, 0, k)
	for _, j := range idxs[:k] {
		results = append(results, domain.SearchResult{Chunk: ix.entries[j].Chunk.Clone(), Score: scores[j]})
	}
	return results, nil
}

func dot(a, b []float32) float64 {
	sum := 0.0
	for i := range a {
		sum += float64(a[i]) * float64(b[i])
	}
	return sum
}

func argsortDesc(vals []float64) []int {
	idxs := make([]int, len(vals))
	for i := range vals {
		idxs[i] = i
	}
	sort.SliceStable(idxs, func(a, b int) bool { return vals[idxs[a]] > vals[idxs[b]] })
	return idxs
}
