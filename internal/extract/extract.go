package extract

import (
	"bytes"
	"fmt"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/ledongthuc/pdf"

	"apiagent/internal/domain"
)

var pdfMagic = []byte("%PDF-")

// Extractor picks a decoder from the filename hint and the content itself.
type Extractor struct{}

func NewExtractor() *Extractor { return &Extractor{} }

// Extract returns the document text. PDFs are read page by page with a newline
// after every page; anything else must be UTF-8 text.
func (e *Extractor) Extract(data []byte, filename string) (string, error) {
	if isPDF(data, filename) {
		return extractPDF(data)
	}
	if !utf8.Valid(data) {
		return "", fmt.Errorf("%w: %s is neither PDF nor UTF-8 text", domain.ErrUnreadableDocument, filename)
	}
	return string(data), nil
}

func isPDF(data []byte, filename string) bool {
	if bytes.HasPrefix(data, pdfMagic) {
		return true
	}
	return strings.EqualFold(filepath.Ext(filename), ".pdf")
}

func extractPDF(data []byte) (text string, err error) {
	// the pdf package panics on some malformed cross-reference tables
	defer func() {
		if r := recover(); r != nil {
			text = ""
			err = fmt.Errorf("%w: pdf parser: %v", domain.ErrUnreadableDocument, r)
		}
	}()

	rdr, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("%w: %v", domain.ErrUnreadableDocument, err)
	}

	var buf strings.Builder
	for i := 1; i <= rdr.NumPage(); i++ {
		page := rdr.Page(i)
		if page.V.IsNull() {
			buf.WriteString("\n")
			continue
		}
		pageText, err := page.GetPlainText(nil)
		if err != nil {
			return "", fmt.Errorf("%w: page %d: %v", domain.ErrUnreadableDocument, i, err)
		}
		buf.WriteString(pageText)
		buf.WriteString("\n")
	}
	return buf.String(), nil
}
