package gemini

import (
	"context"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewEmbedder_RequiresKey(t *testing.T) {
	_, err := NewEmbedder(context.Background(), "", "")
	assert.Error(t, err)
}

func TestEmbedder_Live(t *testing.T) {
	key := os.Getenv("GEMINI_API_KEY")
	if key == "" {
		t.Skip("GEMINI_API_KEY not set")
	}
	ctx := context.Background()
	e, err := NewEmbedder(ctx, key, "")
	require.NoError(t, err)
	defer e.Close()

	vecs, err := e.EmbedBatch(ctx, []string{"hello world", "vector search"})
	require.NoError(t, err)
	require.Len(t, vecs, 2)
	assert.Equal(t, len(vecs[0]), e.Dimension())
}
