package qbank

import "errors"

var (
	// ErrDocumentNotFound is returned when a document ID does not exist.
	ErrDocumentNotFound = errors.New("qbank: document not found")

	// ErrUnsupportedFormat is returned for unrecognized file formats.
	ErrUnsupportedFormat = errors.New("qbank: unsupported document format")

	// ErrParsingFailed is returned when document parsing fails.
	ErrParsingFailed = errors.New("qbank: parsing failed")

	// ErrNoText is returned when a document yields no usable text, even
	// after OCR.
	ErrNoText = errors.New("qbank: no text extracted")

	// ErrOCRUnavailable is returned when a scanned document needs OCR but no
	// recognizer is available.
	ErrOCRUnavailable = errors.New("qbank: OCR unavailable")

	// ErrStoreClosed is returned when operating without an open store.
	ErrStoreClosed = errors.New("qbank: store is closed")

	// ErrInvalidConfig is returned for invalid configuration values.
	ErrInvalidConfig = errors.New("qbank: invalid configuration")
)
