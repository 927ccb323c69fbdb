// CLAUDE:SUMMARY Document text extraction: page-ordered text runs joined into one linear string.
// Package extract turns a downloaded document into plain text.
//
// The Parser abstraction keeps the PDF library behind three small
// interfaces so the extraction order can be tested without real files.
package extract

import (
	"errors"
	"fmt"
	"strings"
)

// ErrNoParser is returned when an Extractor has no Parser.
var ErrNoParser = errors.New("extract: no parser configured")

// Parser opens raw document bytes.
type Parser interface {
	Open(data []byte) (Document, error)
}

// Document is an opened, paginated document.
type Document interface {
	PageCount() int
	// Page returns page n, 1-based.
	Page(n int) (Page, error)
}

// Page exposes its text runs in content order.
type Page interface {
	TextRuns() ([]string, error)
}

// Extractor produces the linear text of a document.
type Extractor struct {
	parser Parser
}

// New returns an Extractor backed by parser. A nil parser selects PDFParser.
func New(parser Parser) *Extractor {
	if parser == nil {
		parser = PDFParser{}
	}
	return &Extractor{parser: parser}
}

// Extract opens data and concatenates its text: runs of a page are joined
// with a single space, pages with a newline. Casing and diacritics are kept.
func (e *Extractor) Extract(data []byte) (string, error) {
	if e == nil || e.parser == nil {
		return "", ErrNoParser
	}
	doc, err := e.parser.Open(data)
	if err != nil {
		return "", fmt.Errorf("open document: %w", err)
	}
	n := doc.PageCount()
	pages := make([]string, 0, n)
	for i := 1; i <= n; i++ {
		page, err := doc.Page(i)
		if err != nil {
			return "", fmt.Errorf("page %d: %w", i, err)
		}
		runs, err := page.TextRuns()
		if err != nil {
			return "", fmt.Errorf("page %d text: %w", i, err)
		}
		pages = append(pages, strings.Join(runs, " "))
	}
	return strings.Join(pages, "\n"), nil
}
