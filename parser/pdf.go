package parser

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/ledongthuc/pdf"

	"github.com/brunobiangulo/qbank/layout"
)

// PDFParser reads page text with ledongthuc/pdf. Pages with positioned text
// are rebuilt line by line, split into columns when Layout asks for two.
type PDFParser struct {
	Layout Layout
}

func (p *PDFParser) SupportedFormats() []string { return []string{"pdf"} }

func (p *PDFParser) Parse(ctx context.Context, path string) (*ParseResult, error) {
	f, reader, err := pdf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening PDF: %w", err)
	}
	defer f.Close()

	totalPages := reader.NumPage()
	pages := make([]Page, 0, totalPages)

	for i := 1; i <= totalPages; i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		page := readPage(reader, i)
		if page.Err == nil {
			text, err := Assemble(page, p.Layout)
			if err != nil {
				page.Err = err
			} else {
				page.Text = text
			}
		}
		if page.Err != nil {
			slog.Warn("parser: page read failed", "file", path, "page", i, "error", page.Err)
			page.Text = ""
		}
		pages = append(pages, page)
	}

	return &ParseResult{
		Pages:  pages,
		Method: "native",
		Metadata: map[string]string{
			"pages": fmt.Sprintf("%d", totalPages),
		},
	}, nil
}

// readPage extracts one page. The PDF library panics on some malformed
// content streams, so a panic becomes the page's error.
func readPage(reader *pdf.Reader, num int) (out Page) {
	out.Number = num
	defer func() {
		if r := recover(); r != nil {
			out = Page{Number: num, Err: fmt.Errorf("page %d: %v", num, r)}
		}
	}()

	page := reader.Page(num)
	if page.V.IsNull() {
		return out
	}

	x0, y0, w, h, ok := mediaBox(page.V)
	if ok {
		for _, t := range page.Content().Text {
			if t.S == "" {
				continue
			}
			out.Fragments = append(out.Fragments, layout.Fragment{X: t.X - x0, Y: t.Y - y0, W: t.W, S: t.S})
		}
		out.Width, out.Height = w, h
	}

	if !out.HasGeometry() {
		text, err := page.GetPlainText(nil)
		if err != nil {
			out.Err = fmt.Errorf("page %d: %w", num, err)
			return out
		}
		out.Text = strings.TrimSpace(text)
	}
	return out
}

// mediaBox returns the page origin and size, following Parent links for an
// inherited box.
func mediaBox(v pdf.Value) (x0, y0, w, h float64, ok bool) {
	for depth := 0; depth < 32 && !v.IsNull(); depth++ {
		box := v.Key("MediaBox")
		if box.Len() == 4 {
			x0, y0 = box.Index(0).Float64(), box.Index(1).Float64()
			x1, y1 := box.Index(2).Float64(), box.Index(3).Float64()
			w, h = x1-x0, y1-y0
			return x0, y0, w, h, w > 0 && h > 0
		}
		v = v.Key("Parent")
	}
	return 0, 0, 0, 0, false
}
