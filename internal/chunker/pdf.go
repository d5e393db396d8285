package chunker

import (
	"bytes"
	"strings"

	"github.com/ledongthuc/pdf"
)

// ExtractPDFText returns the text of every page that yields any, trimmed and joined by a
// blank line in page order. Unreadable input returns "".
func ExtractPDFText(data []byte) (text string) {
	if len(data) == 0 {
		return ""
	}
	defer func() {
		if r := recover(); r != nil {
			text = ""
		}
	}()
	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return ""
	}
	var pages []string
	for i := 1; i <= reader.NumPage(); i++ {
		if t := pageText(reader, i); t != "" {
			pages = append(pages, t)
		}
	}
	return strings.Join(pages, "\n\n")
}

func pageText(reader *pdf.Reader, n int) (text string) {
	defer func() {
		if r := recover(); r != nil {
			text = ""
		}
	}()
	page := reader.Page(n)
	if page.V.IsNull() {
		return ""
	}
	// nil makes the reader load the page's fonts and decode through their encodings
	raw, err := page.GetPlainText(nil)
	if err != nil {
		return ""
	}
	return strings.TrimSpace(raw)
}
