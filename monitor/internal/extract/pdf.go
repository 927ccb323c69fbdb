package extract

import (
	"bytes"
	"fmt"
	"io"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
)

// PDFParser is the pdfcpu-backed Parser.
type PDFParser struct{}

// Open reads, validates and optimizes the PDF held in data.
func (PDFParser) Open(data []byte) (Document, error) {
	ctx, err := api.ReadValidateAndOptimize(bytes.NewReader(data), model.NewDefaultConfiguration())
	if err != nil {
		return nil, fmt.Errorf("pdfcpu read: %w", err)
	}
	return &pdfDocument{ctx: ctx}, nil
}

type pdfDocument struct {
	ctx *model.Context
}

func (d *pdfDocument) PageCount() int { return d.ctx.PageCount }

func (d *pdfDocument) Page(n int) (Page, error) {
	if n < 1 || n > d.ctx.PageCount {
		return nil, fmt.Errorf("page %d out of range 1..%d", n, d.ctx.PageCount)
	}
	return &pdfPage{ctx: d.ctx, nr: n}, nil
}

type pdfPage struct {
	ctx *model.Context
	nr  int
}

// TextRuns decodes the page content stream and returns the operands of its
// text-showing operators.
func (p *pdfPage) TextRuns() ([]string, error) {
	r, err := pdfcpu.ExtractPageContent(p.ctx, p.nr)
	if err != nil {
		return nil, fmt.Errorf("pdfcpu content: %w", err)
	}
	if r == nil {
		return nil, nil
	}
	content, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read content: %w", err)
	}
	return TextRuns(content)
}
