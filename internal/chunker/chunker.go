package chunker

import (
	"errors"
	"fmt"

	"pdfrag/internal/domain"
)

// ErrInvalidParams is returned when chunk size and overlap do not describe a valid window.
var ErrInvalidParams = errors.New("invalid chunk parameters")

// TextSplitter splits extracted document text into ordered chunk texts.
type TextSplitter interface {
	SplitText(text string) []string
}

// PDFChunker turns raw PDF bytes into chunks using a TextSplitter.
type PDFChunker struct {
	splitter TextSplitter
}

// NewPDFChunker creates a chunker that extracts PDF text and hands it to splitter.
func NewPDFChunker(splitter TextSplitter) *PDFChunker {
	return &PDFChunker{splitter: splitter}
}

// Split extracts the text of pdf and splits it. Malformed or text-less input yields nil.
func (c *PDFChunker) Split(pdf []byte) []domain.Chunk {
	_, chunks := c.SplitDocument(pdf)
	return chunks
}

// SplitDocument is Split that also returns the extracted text.
func (c *PDFChunker) SplitDocument(pdf []byte) (string, []domain.Chunk) {
	text := ExtractPDFText(pdf)
	if text == "" {
		return "", nil
	}
	parts := c.splitter.SplitText(text)
	chunks := make([]domain.Chunk, 0, len(parts))
	for _, p := range parts {
		chunks = append(chunks, domain.Chunk{Content: p, Metadata: map[string]string{}})
	}
	return text, chunks
}

// ValidateParams checks a size/overlap pair.
func ValidateParams(size, overlap int) error {
	if size <= 0 {
		return fmt.Errorf("%w: chunk size %d must be positive", ErrInvalidParams, size)
	}
	if overlap < 0 || overlap >= size {
		return fmt.Errorf("%w: overlap %d must be in [0, %d)", ErrInvalidParams, overlap, size)
	}
	return nil
}
