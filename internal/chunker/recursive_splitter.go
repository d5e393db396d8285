package chunker

import (
	"strings"
	"unicode/utf8"
)

// DefaultSeparators are tried in order: paragraphs, lines, words, characters.
var DefaultSeparators = []string{"\n\n", "\n", " ", ""}

// RecursiveSplitter splits text on the coarsest separator that occurs in it, merges the
// pieces back into windows of at most chunkSize characters with chunkOverlap characters
// carried over, and recurses with finer separators into pieces that are still too long.
type RecursiveSplitter struct {
	chunkSize    int
	chunkOverlap int
	separators   []string
}

// NewRecursiveSplitter creates a splitter. Sizes are measured in runes.
func NewRecursiveSplitter(chunkSize, chunkOverlap int) (*RecursiveSplitter, error) {
	if err := ValidateParams(chunkSize, chunkOverlap); err != nil {
		return nil, err
	}
	return &RecursiveSplitter{
		chunkSize:    chunkSize,
		chunkOverlap: chunkOverlap,
		separators:   DefaultSeparators,
	}, nil
}

// SplitText returns the non-blank chunks of text in document order.
func (s *RecursiveSplitter) SplitText(text string) []string {
	return s.split(text, s.separators)
}

func (s *RecursiveSplitter) split(text string, separators []string) []string {
	separator := separators[len(separators)-1]
	var finer []string
	for i, sep := range separators {
		if sep == "" {
			separator = sep
			break
		}
		if strings.Contains(text, sep) {
			separator = sep
			finer = separators[i+1:]
			break
		}
	}

	var out, good []string
	for _, piece := range splitOn(text, separator) {
		if runeLen(piece) < s.chunkSize {
			good = append(good, piece)
			continue
		}
		if len(good) > 0 {
			out = append(out, s.merge(good, separator)...)
			good = nil
		}
		if len(finer) == 0 {
			if t := strings.TrimSpace(piece); t != "" {
				out = append(out, t)
			}
			continue
		}
		out = append(out, s.split(piece, finer)...)
	}
	if len(good) > 0 {
		out = append(out, s.merge(good, separator)...)
	}
	return out
}

// merge joins small pieces into windows no longer than chunkSize, dropping pieces from the
// front of the window until at most chunkOverlap characters remain before starting the next.
func (s *RecursiveSplitter) merge(pieces []string, separator string) []string {
	sepLen := runeLen(separator)
	var docs, window []string
	total := 0
	for _, p := range pieces {
		l := runeLen(p)
		if total+l+joinCost(window, sepLen) > s.chunkSize && len(window) > 0 {
			if doc := strings.TrimSpace(strings.Join(window, separator)); doc != "" {
				docs = append(docs, doc)
			}
			for total > s.chunkOverlap || (total > 0 && total+l+joinCost(window, sepLen) > s.chunkSize) {
				total -= runeLen(window[0])
				if len(window) > 1 {
					total -= sepLen
				}
				window = window[1:]
			}
		}
		total += l + joinCost(window, sepLen)
		window = append(window, p)
	}
	if doc := strings.TrimSpace(strings.Join(window, separator)); doc != "" {
		docs = append(docs, doc)
	}
	return docs
}

func joinCost(window []string, sepLen int) int {
	if len(window) == 0 {
		return 0
	}
	return sepLen
}

func splitOn(text, separator string) []string {
	var raw []string
	if separator == "" {
		raw = make([]string, 0, len(text))
		for _, r := range text {
			raw = append(raw, string(r))
		}
	} else {
		raw = strings.Split(text, separator)
	}
	out := raw[:0]
	for _, p := range raw {
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

func runeLen(s string) int { return utf8.RuneCountInString(s) }
