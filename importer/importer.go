// Package importer reads question banks kept as CSV or XLSX, where one
// column holds a stem followed by its A-D options as free text.
package importer

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"regexp"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/brunobiangulo/qbank/normalize"
)

// Column names looked up case-insensitively in the header row.
const (
	TextColumn    = "eng"
	SubjectColumn = "Subject"
)

// DefaultSubject is used for rows with a blank subject cell.
const DefaultSubject = "General"

// ErrMissingColumns is returned when the header lacks the text or subject
// column.
var ErrMissingColumns = errors.New("importer: csv must have eng and Subject columns")

// engPattern splits "stem A. a B) b C: c D d" into five parts. Each label is
// an upper-case letter followed by '.', ')', ':' or whitespace.
var engPattern = regexp.MustCompile(
	`(?s)^\s*(.+?)\s+A[.):\s]\s*(.+?)\s+B[.):\s]\s*(.+?)\s+C[.):\s]\s*(.+?)\s+D[.):\s]\s*(.+?)\s*$`)

// labelPrefix is a leftover option label such as "A.", "(B)", "C )" or
// "- D -". A letter or digit only counts as a label when punctuation
// follows it, so "a cat" and "1 kg" are kept.
var labelPrefix = regexp.MustCompile(
	`^\s*(?:[-(\[{]\s*)?[A-Da-d1-4]\s*[)\]}.\-:]+(?:\s+|$)|^\s*[(\[{]\s*[A-Da-d1-4]\s*[)\]}]\s*`)

// Row is one parsed question.
type Row struct {
	Line    int       `json:"line"`
	Subject string    `json:"subject"`
	Stem    string    `json:"stem"`
	Options [4]string `json:"options"`
}

// Failure is a row that could not be split into a stem and four options.
type Failure struct {
	Line    int    `json:"line"`
	Subject string `json:"subject"`
	Preview string `json:"preview"`
}

// Result is the outcome of one imported file.
type Result struct {
	Total    int       `json:"total"`
	Rows     []Row     `json:"rows"`
	Failures []Failure `json:"failures,omitempty"`
}

// ParseCSV reads every data row of r. Rows that do not split are collected
// as failures; only malformed CSV or a missing column is an error.
func ParseCSV(r io.Reader) (*Result, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true

	header, err := reader.Read()
	if err == io.EOF {
		return nil, ErrMissingColumns
	}
	if err != nil {
		return nil, fmt.Errorf("importer: reading header: %w", err)
	}
	return parseTable(header, reader.Read)
}

// ParseXLSX reads the first sheet of a workbook laid out like the CSV
// files: a header row naming the eng and Subject columns, one question per
// row.
func ParseXLSX(r io.Reader) (*Result, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("importer: opening workbook: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, ErrMissingColumns
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("importer: reading sheet %q: %w", sheets[0], err)
	}
	if len(rows) == 0 {
		return nil, ErrMissingColumns
	}

	next := 1
	return parseTable(rows[0], func() ([]string, error) {
		if next >= len(rows) {
			return nil, io.EOF
		}
		next++
		return rows[next-1], nil
	})
}

// parseTable locates the columns in header and parses every record read
// returns until io.EOF.
func parseTable(header []string, read func() ([]string, error)) (*Result, error) {
	textIdx, subjectIdx := -1, -1
	for i, h := range header {
		h = strings.TrimSpace(strings.TrimPrefix(h, "\ufeff"))
		switch {
		case strings.EqualFold(h, TextColumn):
			textIdx = i
		case strings.EqualFold(h, SubjectColumn):
			subjectIdx = i
		}
	}
	if textIdx < 0 || subjectIdx < 0 {
		return nil, fmt.Errorf("%w: found %q", ErrMissingColumns, header)
	}

	res := &Result{}
	for line := 2; ; line++ {
		record, err := read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("importer: line %d: %w", line, err)
		}
		if blank(record) {
			continue
		}
		res.Total++

		subject := DefaultSubject
		if subjectIdx < len(record) {
			if s := strings.TrimSpace(record[subjectIdx]); s != "" {
				subject = s
			}
		}
		var text string
		if textIdx < len(record) {
			text = record[textIdx]
		}

		stem, options, ok := ParseEng(text)
		if !ok {
			res.Failures = append(res.Failures, Failure{Line: line, Subject: subject, Preview: preview(text, 180)})
			continue
		}
		res.Rows = append(res.Rows, Row{Line: line, Subject: subject, Stem: stem, Options: options})
	}
	return res, nil
}

func blank(record []string) bool {
	for _, c := range record {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}

// ParseEng splits a free-text question into its stem and four cleaned
// options. ok is false when the text does not split or any part is empty.
func ParseEng(text string) (stem string, options [4]string, ok bool) {
	m := engPattern.FindStringSubmatch(text)
	if m == nil {
		return "", options, false
	}
	stem = normalize.CollapseSpaces(m[1])
	for i := range options {
		options[i] = CleanOption(m[i+2])
		if options[i] == "" {
			return "", [4]string{}, false
		}
	}
	if stem == "" {
		return "", [4]string{}, false
	}
	return stem, options, true
}

// CleanOption strips a leftover choice label ("A.", "(B)", "C )", "- D -")
// from an option, collapses whitespace and drops stray leading dots.
func CleanOption(s string) string {
	s = labelPrefix.ReplaceAllString(strings.TrimSpace(s), "")
	s = normalize.CollapseSpaces(s)
	return strings.TrimSpace(strings.TrimLeft(s, ". "))
}

func preview(s string, n int) string {
	s = normalize.CollapseSpaces(s)
	if r := []rune(s); len(r) > n {
		return string(r[:n])
	}
	return s
}
