package parser

import (
	"context"

	"github.com/brunobiangulo/qbank/layout"
)

// Page is the text of one document page. Width, Height and Fragments are
// set only when the format carries geometry. A page that could not be read
// has Err set and no text; the other pages are unaffected.
type Page struct {
	Number    int
	Text      string
	Width     float64
	Height    float64
	Fragments []layout.Fragment
	Err       error
}

// HasGeometry reports whether the page can be column-split.
func (p Page) HasGeometry() bool {
	return p.Width > 0 && p.Height > 0 && len(p.Fragments) > 0
}

// ParseResult is what a parser produces from a document file.
type ParseResult struct {
	Pages    []Page
	Method   string // "native", "ocr"
	Metadata map[string]string
}

// Texts returns the text of every page in order.
func (r *ParseResult) Texts() []string {
	out := make([]string, len(r.Pages))
	for i, p := range r.Pages {
		out[i] = p.Text
	}
	return out
}

// PageErrors returns the pages that failed to read.
func (r *ParseResult) PageErrors() []Page {
	var out []Page
	for _, p := range r.Pages {
		if p.Err != nil {
			out = append(out, p)
		}
	}
	return out
}

// Parser can parse a specific document format.
type Parser interface {
	Parse(ctx context.Context, path string) (*ParseResult, error)
	SupportedFormats() []string
}

// Layout controls how positioned text is assembled into page text.
type Layout struct {
	Columns int                 `json:"columns" yaml:"columns"` // 1 or 2
	Padding float64             `json:"column_padding" yaml:"column_padding"`
	Order   layout.ReadingOrder `json:"reading_order" yaml:"reading_order"`
}

// DefaultLayout is single-column, left to right.
func DefaultLayout() Layout {
	return Layout{Columns: 1, Order: layout.LeftToRight}
}

// Assemble rebuilds the page text from its fragments using lay. Pages
// without geometry keep their plain text.
func Assemble(p Page, lay Layout) (string, error) {
	if !p.HasGeometry() {
		return p.Text, nil
	}
	cols := lay.Columns
	if cols <= 0 {
		cols = 1
	}
	boxes, err := layout.ColumnBoxes(p.Width, p.Height, cols, lay.Padding, lay.Order)
	if err != nil {
		return "", err
	}
	return layout.SplitColumns(p.Fragments, boxes), nil
}
