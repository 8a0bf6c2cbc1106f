package report

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/brunobiangulo/qbank/validate"
)

// FileSink writes a plain-text dump of rejected blocks, one section per
// block headed by its key and reasons.
type FileSink struct {
	mu     sync.Mutex
	w      *bufio.Writer
	closer io.Closer
}

// NewFileSink creates (or truncates) the dump file at path.
func NewFileSink(path string) (*FileSink, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("creating failures file: %w", err)
	}
	return &FileSink{w: bufio.NewWriter(f), closer: f}, nil
}

// NewWriterSink writes the dump to w. Close only flushes.
func NewWriterSink(w io.Writer) *FileSink {
	return &FileSink{w: bufio.NewWriter(w)}
}

// Reject appends one section.
func (s *FileSink) Reject(key string, o validate.Outcome, raw string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := fmt.Fprintf(s.w, "=== %s ===\nreasons: %s\n%s\n\n", key, o.ReasonString(), raw)
	return err
}

// Close flushes buffered output and closes the file.
func (s *FileSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	err := s.w.Flush()
	if s.closer != nil {
		if cerr := s.closer.Close(); err == nil {
			err = cerr
		}
	}
	return err
}
