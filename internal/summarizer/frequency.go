// Package summarizer produces short extractive summaries of ingested documents.
package summarizer

import (
	"math"
	"regexp"
	"sort"
	"strings"
)

// DefaultMaxSentences is used when Summarize is called with a non-positive limit.
const DefaultMaxSentences = 5

// FrequencySummarizer ranks sentences by the normalized frequency of their content words
// and returns the best ones in document order.
type FrequencySummarizer struct {
	tokenPattern    *regexp.Regexp
	sentencePattern *regexp.Regexp
	stopwords       map[string]struct{}
}

// NewFrequencySummarizer creates a frequency-based sentence ranker summarizer.
func NewFrequencySummarizer() *FrequencySummarizer {
	return &FrequencySummarizer{
		tokenPattern:    regexp.MustCompile(`\p{L}+(?:['’]\p{L}+)*`),
		sentencePattern: regexp.MustCompile(`[^.!?]+[.!?]+`),
		stopwords:       defaultStopwords(),
	}
}

// Summarize returns up to maxSentences sentences of text. Text without sentence
// punctuation is returned whitespace-normalized.
func (s *FrequencySummarizer) Summarize(text string, maxSentences int) (string, error) {
	if maxSentences <= 0 {
		maxSentences = DefaultMaxSentences
	}
	text = strings.Join(strings.Fields(text), " ")
	sentences := s.sentencePattern.FindAllString(text, -1)
	if len(sentences) == 0 {
		return text, nil
	}

	tokens := make([][]string, len(sentences))
	freq := map[string]float64{}
	maxF := 0.0
	for i, sent := range sentences {
		tokens[i] = s.tokens(sent)
		for _, tok := range tokens[i] {
			if _, ok := s.stopwords[tok]; ok {
				continue
			}
			freq[tok]++
			maxF = math.Max(maxF, freq[tok])
		}
	}

	scores := make([]float64, len(sentences))
	for i := range sentences {
		for _, tok := range tokens[i] {
			scores[i] += freq[tok] / maxF
		}
		// long sentences would otherwise always win
		if l := len(tokens[i]); l > 0 {
			scores[i] /= math.Sqrt(float64(l))
		}
	}

	order := make([]int, len(sentences))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool { return scores[order[a]] > scores[order[b]] })
	if maxSentences > len(order) {
		maxSentences = len(order)
	}
	selected := order[:maxSentences]
	sort.Ints(selected)

	out := make([]string, 0, len(selected))
	for _, idx := range selected {
		out = append(out, strings.TrimSpace(sentences[idx]))
	}
	return strings.Join(out, " "), nil
}

func (s *FrequencySummarizer) tokens(text string) []string {
	return s.tokenPattern.FindAllString(strings.ToLower(text), -1)
}

func defaultStopwords() map[string]struct{} {
	words := []string{
		"a", "an", "the", "and", "or", "but", "if", "then", "else", "for", "to", "of", "in", "on", "at", "by", "with", "as", "is", "are", "was", "were", "be", "been", "being", "it", "this", "that", "these", "those", "from", "up", "down", "over", "under", "again", "further", "than", "so", "such", "into", "about", "between", "through", "during", "before", "after", "above", "below", "out", "off", "own", "same", "too", "very", "can", "will", "just", "don", "should", "now",
	}
	m := make(map[string]struct{}, len(words))
	for _, w := range words {
		m[w] = struct{}{}
	}
	return m
}
