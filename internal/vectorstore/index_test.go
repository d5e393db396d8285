package vectorstore

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pdfrag/internal/domain"
)

func chunk(content, source string) domain.Chunk {
	c := domain.Chunk{Content: content, Metadata: map[string]string{}}
	if source != "" {
		c.Metadata[domain.MetadataSource] = source
	}
	return c
}

func TestIndex_AddAndSearch(t *testing.T) {
	ix := NewIndex(0, "test")
	require.NoError(t, ix.Add(
		[]domain.Chunk{chunk("x", "a"), chunk("y", "b"), chunk("xy", "c")},
		[][]float32{{1, 0}, {0, 2}, {1, 1}},
	))
	assert.Equal(t, 3, ix.Len())
	assert.Equal(t, 2, ix.Dimension())

	res, err := ix.Search([]float32{3, 0}, 2)
	require.NoError(t, err)
	require.Len(t, res, 2)
	assert.Equal(t, "x", res[0].Chunk.Content)
	assert.InDelta(t, 1.0, res[0].Score, 1e-6)
	assert.Equal(t, "xy", res[1].Chunk.Content)
	assert.InDelta(t, 0.7071, res[1].Score, 1e-3)

	res, err = ix.Search([]float32{0, 1}, 10)
	require.NoError(t, err)
	assert.Len(t, res, 3)
	assert.Equal(t, "y", res[0].Chunk.Content)
}

func TestIndex_TiesKeepInsertionOrder(t *testing.T) {
	ix := NewIndex(2, "test")
	var chunks []domain.Chunk
	var vectors [][]float32
	for _, c := range []string{"first", "second", "third", "fourth"} {
		chunks = append(chunks, chunk(c, ""))
		vectors = append(vectors, []float32{1, 1})
	}
	require.NoError(t, ix.Add(chunks, vectors))

	res, err := ix.Search([]float32{1, 0}, 4)
	require.NoError(t, err)
	var got []string
	for _, r := range res {
		got = append(got, r.Chunk.Content)
	}
	assert.Equal(t, []string{"first", "second", "third", "fourth"}, got)
}

func TestIndex_EmptyAndZeroK(t *testing.T) {
	ix := NewIndex(3, "test")
	res, err := ix.Search([]float32{1, 0, 0}, 5)
	require.NoError(t, err)
	assert.Empty(t, res)

	require.NoError(t, ix.Add([]domain.Chunk{chunk("a", "")}, [][]float32{{1, 0, 0}}))
	res, err = ix.Search([]float32{1, 0, 0}, 0)
	require.NoError(t, err)
	assert.Empty(t, res)
}

func TestIndex_DimensionMismatch(t *testing.T) {
	ix := NewIndex(2, "test")
	err := ix.Add(
		[]domain.Chunk{chunk("ok", ""), chunk("bad", "")},
		[][]float32{{1, 0}, {1, 0, 0}},
	)
	require.ErrorIs(t, err, ErrDimensionMismatch)
	assert.Equal(t, 0, ix.Len(), "a failed add appends nothing")

	require.Error(t, ix.Add([]domain.Chunk{chunk("a", "")}, nil))

	require.NoError(t, ix.Add([]domain.Chunk{chunk("a", "")}, [][]float32{{1, 0}}))
	_, err = ix.Search([]float32{1}, 1)
	require.ErrorIs(t, err, ErrDimensionMismatch)
}

func TestIndex_OwnsItsCopies(t *testing.T) {
	ix := NewIndex(0, "test")
	c := chunk("content", "doc.pdf")
	vec := []float32{3, 4}
	require.NoError(t, ix.Add([]domain.Chunk{c}, [][]float32{vec}))

	c.Metadata[domain.MetadataSource] = "changed"
	vec[0] = 100

	e := ix.Entries()[0]
	assert.Equal(t, "doc.pdf", e.Chunk.Source())
	assert.InDelta(t, 0.6, e.Vector[0], 1e-6)
	assert.NotEmpty(t, e.ID)

	res, err := ix.Search([]float32{1, 0}, 1)
	require.NoError(t, err)
	res[0].Chunk.Metadata[domain.MetadataSource] = "mutated"
	assert.Equal(t, "doc.pdf", ix.Entries()[0].Chunk.Source())
}
