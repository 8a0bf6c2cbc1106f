// Package ocr recognizes the text of scanned, image-only documents. Pages
// are rasterized with MuPDF (go-fitz) and read by Tesseract (gosseract).
//
// Recognition is compiled in with the "ocr" build tag and needs Tesseract
// and its language data installed:
//
//	go build -tags ocr ./...
//
// Without the tag New returns ErrOCRNotEnabled.
package ocr

import "errors"

// ErrOCRNotEnabled is returned when OCR support was not compiled in.
var ErrOCRNotEnabled = errors.New("OCR support not enabled; rebuild with -tags ocr")

// Defaults for Options.
const (
	DefaultLanguage = "eng"
	DefaultDPI      = 300
)

// Options configures recognition.
type Options struct {
	Language string  // Tesseract language(s), "+" separated
	DPI      float64 // rasterization resolution
}

func (o Options) withDefaults() Options {
	if o.Language == "" {
		o.Language = DefaultLanguage
	}
	if o.DPI <= 0 {
		o.DPI = DefaultDPI
	}
	return o
}
