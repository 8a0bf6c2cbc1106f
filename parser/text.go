package parser

import (
	"context"
	"fmt"
	"os"
	"strings"
)

// TextParser handles plain text (.txt) files. Form feeds separate pages, as
// pdftotext writes them.
type TextParser struct{}

func (p *TextParser) SupportedFormats() []string { return []string{"txt"} }

func (p *TextParser) Parse(ctx context.Context, path string) (*ParseResult, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading text file: %w", err)
	}
	return &ParseResult{Pages: splitPages(string(data)), Method: "native"}, nil
}

func splitPages(content string) []Page {
	if content == "" {
		return nil
	}
	parts := strings.Split(content, "\f")
	// A trailing form feed ends the last page rather than opening a new one.
	if len(parts) > 1 && strings.TrimSpace(parts[len(parts)-1]) == "" {
		parts = parts[:len(parts)-1]
	}
	pages := make([]Page, len(parts))
	for i, t := range parts {
		pages[i] = Page{Number: i + 1, Text: t}
	}
	return pages
}
