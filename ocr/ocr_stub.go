//go:build !ocr

package ocr

import "context"

// Recognizer is the stub used when OCR support is not compiled in.
type Recognizer struct{}

// New returns ErrOCRNotEnabled.
func New(opts Options) (*Recognizer, error) {
	return nil, ErrOCRNotEnabled
}

// Close is a no-op. It is safe to call on a nil Recognizer.
func (r *Recognizer) Close() error { return nil }

// RecognizeImage returns ErrOCRNotEnabled.
func (r *Recognizer) RecognizeImage(image []byte) (string, error) {
	return "", ErrOCRNotEnabled
}

// RecognizePages returns ErrOCRNotEnabled.
func (r *Recognizer) RecognizePages(ctx context.Context, path string) ([]string, error) {
	return nil, ErrOCRNotEnabled
}
