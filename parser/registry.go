package parser

import (
	"fmt"
	"path/filepath"
	"sort"
	"strings"
)

type Registry struct {
	parsers map[string]Parser
}

// NewRegistry registers the built-in parsers. lay is handed to the parsers
// that see page geometry.
func NewRegistry(lay Layout) *Registry {
	r := &Registry{parsers: make(map[string]Parser)}
	for _, p := range []Parser{&PDFParser{Layout: lay}, &DOCXParser{}, &TextParser{}} {
		for _, f := range p.SupportedFormats() {
			r.parsers[f] = p
		}
	}
	return r
}

func (r *Registry) Get(format string) (Parser, error) {
	p, ok := r.parsers[format]
	if !ok {
		return nil, fmt.Errorf("no parser for format: %s", format)
	}
	return p, nil
}

// ForPath returns the parser for the file's extension.
func (r *Registry) ForPath(path string) (Parser, error) {
	return r.Get(Format(path))
}

func (r *Registry) Register(format string, p Parser) {
	r.parsers[format] = p
}

// Formats lists the registered formats, sorted.
func (r *Registry) Formats() []string {
	out := make([]string, 0, len(r.parsers))
	for f := range r.parsers {
		out = append(out, f)
	}
	sort.Strings(out)
	return out
}

// Format is the lowercased extension of path without the dot.
func Format(path string) string {
	return strings.ToLower(strings.TrimPrefix(filepath.Ext(path), "."))
}
