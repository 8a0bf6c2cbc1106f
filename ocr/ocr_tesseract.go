//go:build ocr

package ocr

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/gen2brain/go-fitz"
	"github.com/otiai10/gosseract/v2"
)

// Recognizer wraps one Tesseract client. Calls are serialized.
type Recognizer struct {
	mu     sync.Mutex
	opts   Options
	client *gosseract.Client
}

// New creates a Recognizer. Close it to release Tesseract.
func New(opts Options) (*Recognizer, error) {
	opts = opts.withDefaults()
	client := gosseract.NewClient()
	if err := client.SetLanguage(opts.Language); err != nil {
		client.Close()
		return nil, fmt.Errorf("ocr: setting language %q: %w", opts.Language, err)
	}
	return &Recognizer{opts: opts, client: client}, nil
}

// Close releases OCR resources.
func (r *Recognizer) Close() error {
	if r == nil || r.client == nil {
		return nil
	}
	return r.client.Close()
}

// RecognizeImage reads the text of one encoded image (PNG, JPEG, TIFF).
func (r *Recognizer) RecognizeImage(image []byte) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.client.SetImageFromBytes(image); err != nil {
		return "", fmt.Errorf("ocr: setting image: %w", err)
	}
	text, err := r.client.Text()
	if err != nil {
		return "", fmt.Errorf("ocr: recognizing: %w", err)
	}
	return strings.TrimSpace(text), nil
}

// RecognizePages rasterizes every page of the document at path and returns
// the recognized text per page. A page that fails is logged and left empty.
// The context is checked between pages.
func (r *Recognizer) RecognizePages(ctx context.Context, path string) ([]string, error) {
	doc, err := fitz.New(path)
	if err != nil {
		return nil, fmt.Errorf("ocr: opening %s: %w", path, err)
	}
	defer doc.Close()

	pages := make([]string, doc.NumPage())
	for i := range pages {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		img, err := doc.ImagePNG(i, r.opts.DPI)
		if err != nil {
			slog.Warn("ocr: rasterization failed", "file", path, "page", i+1, "error", err)
			continue
		}
		text, err := r.RecognizeImage(img)
		if err != nil {
			slog.Warn("ocr: page failed", "file", path, "page", i+1, "error", err)
			continue
		}
		pages[i] = text
	}
	return pages, nil
}
