package chunker

import (
	"regexp"
	"strings"
)

// SentenceChunker splits text into sentence windows with overlap.
type SentenceChunker struct {
	sentencesPerChunk int
	overlapSentences  int
	splitter          *regexp.Regexp
}

func NewSentenceChunker(sentencesPerChunk, overlapSentences int) *SentenceChunker {
	if sentencesPerChunk <= 0 {
		sentencesPerChunk = 5
	}
	if overlapSentences < 0 || overlapSentences >= sentencesPerChunk {
		overlapSentences = 0
	}
	return &SentenceChunker{
		sentencesPerChunk: sentencesPerChunk,
		overlapSentences:  overlapSentences,
		splitter:          regexp.MustCompile(`(?s)[^.!?]+[.!?]+`),
	}
}

// SplitText groups consecutive sentences of text into chunks.
func (c *SentenceChunker) SplitText(text string) []string {
	var sentences []string
	consumed := 0
	for _, loc := range c.splitter.FindAllStringIndex(text, -1) {
		sentences = append(sentences, text[loc[0]:loc[1]])
		consumed = loc[1]
	}
	// trailing text without terminal punctuation
	if rest := text[consumed:]; strings.TrimSpace(rest) != "" {
		sentences = append(sentences, rest)
	}
	cleaned := sentences[:0]
	for _, s := range sentences {
		if s = strings.Join(strings.Fields(s), " "); s != "" {
			cleaned = append(cleaned, s)
		}
	}
	sentences = cleaned
	if len(sentences) == 0 {
		return nil
	}

	var chunks []string
	i := 0
	for i < len(sentences) {
		end := i + c.sentencesPerChunk
		if end > len(sentences) {
			end = len(sentences)
		}
		chunks = append(chunks, strings.Join(sentences[i:end], " "))
		if end == len(sentences) {
			break
		}
		i = end - c.overlapSentences
	}
	return chunks
}
