package summarizer

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSummarize_PicksFrequentSentencesInOrder(t *testing.T) {
	text := `Vector indexes store embeddings.
	The weather was pleasant yesterday.
	Embeddings let vector indexes rank chunks by similarity.
	Lunch was served at noon.`

	got, err := NewFrequencySummarizer().Summarize(text, 2)
	require.NoError(t, err)
	assert.Equal(t, "Vector indexes store embeddings. Embeddings let vector indexes rank chunks by similarity.", got)
}

func TestSummarize_NoPunctuation(t *testing.T) {
	got, err := NewFrequencySummarizer().Summarize("  just a\nfragment  ", 3)
	require.NoError(t, err)
	assert.Equal(t, "just a fragment", got)

	got, err = NewFrequencySummarizer().Summarize("", 3)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestSummarize_DefaultLimit(t *testing.T) {
	var b strings.Builder
	for i := 0; i < 12; i++ {
		b.WriteString("Sentence about retrieval. ")
	}
	got, err := NewFrequencySummarizer().Summarize(b.String(), 0)
	require.NoError(t, err)
	assert.Equal(t, DefaultMaxSentences, strings.Count(got, "."))
}
