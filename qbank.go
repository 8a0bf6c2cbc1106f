// Package qbank extracts multiple-choice questions from exam papers. Papers
// are parsed page by page, normalized, cut into numbered question blocks,
// and every block is reduced to a stem, four options, an answer and an
// explanation. Accepted questions are classified, stored in SQLite and can
// be exported, searched and checked for near duplicates.
package qbank

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/brunobiangulo/qbank/classify"
	"github.com/brunobiangulo/qbank/export"
	"github.com/brunobiangulo/qbank/extract"
	"github.com/brunobiangulo/qbank/importer"
	"github.com/brunobiangulo/qbank/normalize"
	"github.com/brunobiangulo/qbank/ocr"
	"github.com/brunobiangulo/qbank/parser"
	"github.com/brunobiangulo/qbank/pipeline"
	"github.com/brunobiangulo/qbank/report"
	"github.com/brunobiangulo/qbank/store"
	"github.com/brunobiangulo/qbank/validate"
)

// DefaultSubject is used when no subject is given and the file name does
// not name one.
const DefaultSubject = "General"

// Engine is the main entry point for question extraction.
type Engine interface {
	// Extract parses one paper and stores its accepted questions.
	// Skips if the content hash is unchanged.
	Extract(ctx context.Context, path string, opts ...ExtractOption) (*ExtractResult, error)

	// ExtractAll extracts papers on a bounded pool. A failing paper is
	// reported in its BatchResult and never stops the others.
	ExtractAll(ctx context.Context, paths []string, opts ...ExtractOption) []BatchResult

	// ExtractText runs the question pipeline over already extracted text.
	// Nothing is stored.
	ExtractText(ctx context.Context, subject, text string, opts ...ExtractOption) (*ExtractResult, error)

	// Import reads a CSV or XLSX question bank and stores its questions.
	Import(ctx context.Context, path string, opts ...ExtractOption) (*ImportResult, error)

	// Documents returns all stored papers.
	Documents(ctx context.Context) ([]Document, error)

	// Questions returns the stored questions of one paper.
	Questions(ctx context.Context, documentID int64) ([]Question, error)

	// Search runs a full-text search over stored stems and options.
	Search(ctx context.Context, query string, limit int) ([]Hit, error)

	// Similar returns stored questions whose stems are closest to stem.
	Similar(ctx context.Context, stem string, k int) ([]Hit, error)

	// Delete removes a paper and its questions.
	Delete(ctx context.Context, documentID int64) error

	// Stats counts what the store holds.
	Stats(ctx context.Context) (*Stats, error)

	// Close cleanly shuts down the engine.
	Close() error
}

// Question is one accepted question in export shape.
type Question struct {
	export.Row
	DocumentID     int64 `json:"document_id"`
	QuestionNumber int   `json:"question_number"`
}

// Reject is a block that failed validation.
type Reject struct {
	QuestionNumber int    `json:"question_number"`
	Reasons        string `json:"reasons"`
	Raw            string `json:"raw"`
}

// ExtractResult is the outcome of one paper.
type ExtractResult struct {
	DocumentID int64      `json:"document_id,omitempty"`
	Path       string     `json:"path,omitempty"`
	Subject    string     `json:"subject"`
	Method     string     `json:"method"` // native, ocr
	Pages      int        `json:"pages"`
	Skipped    bool       `json:"skipped,omitempty"` // unchanged since the last run
	Blocks     int        `json:"blocks"`
	Questions  []Question `json:"questions"`
	Rejected   []Reject   `json:"rejected,omitempty"`
}

// BatchResult pairs a path with its outcome.
type BatchResult struct {
	Path   string         `json:"path"`
	Result *ExtractResult `json:"result,omitempty"`
	Err    error          `json:"-"`
}

// ImportResult is the outcome of one imported question bank.
type ImportResult struct {
	DocumentID int64              `json:"document_id,omitempty"`
	Path       string             `json:"path"`
	Total      int                `json:"total"`
	Questions  []Question         `json:"questions"`
	Failures   []importer.Failure `json:"failures,omitempty"`
}

// Document represents a stored paper.
type Document struct {
	ID          int64             `json:"id"`
	Path        string            `json:"path"`
	Filename    string            `json:"filename"`
	Format      string            `json:"format"`
	Subject     string            `json:"subject"`
	ContentHash string            `json:"content_hash"`
	ParseMethod string            `json:"parse_method"`
	Status      string            `json:"status"`
	Accepted    int               `json:"accepted"`
	Rejected    int               `json:"rejected"`
	Metadata    map[string]string `json:"metadata,omitempty"`
	CreatedAt   string            `json:"created_at"`
	UpdatedAt   string            `json:"updated_at"`
}

// Stats counts stored objects.
type Stats struct {
	Documents int `json:"documents"`
	Questions int `json:"questions"`
	Vectors   int `json:"vectors"`
	Rejects   int `json:"rejects"`
}

// Hit is a search or similarity result.
type Hit struct {
	Question
	Filename string  `json:"filename"`
	Score    float64 `json:"score"`
	Snippet  string  `json:"snippet,omitempty"` // explanation sentences matching a search query
}

// Recognizer reads the text of scanned pages.
type Recognizer interface {
	RecognizePages(ctx context.Context, path string) ([]string, error)
	Close() error
}

// Option configures an Engine.
type Option func(*engine)

// WithRecognizer replaces the OCR recognizer built from Config.
func WithRecognizer(r Recognizer) Option {
	return func(e *engine) { e.ocr = r }
}

// WithoutStore runs the engine without a database. Extraction works;
// hash skipping and the store-backed queries do not.
func WithoutStore() Option {
	return func(e *engine) { e.noStore = true }
}

// ExtractOption configures one extraction.
type ExtractOption func(*extractOptions)

type extractOptions struct {
	force    bool
	subject  string
	source   string
	reporter *report.Reporter
}

// WithForce extracts even if the content hash hasn't changed.
func WithForce() ExtractOption {
	return func(o *extractOptions) { o.force = true }
}

// WithSubject overrides the subject guessed from the file name.
func WithSubject(subject string) ExtractOption {
	return func(o *extractOptions) { o.subject = subject }
}

// WithSource overrides the source label, which defaults to the file name.
func WithSource(source string) ExtractOption {
	return func(o *extractOptions) { o.source = source }
}

// WithReporter records every block outcome in r.
func WithReporter(r *report.Reporter) ExtractOption {
	return func(o *extractOptions) { o.reporter = r }
}

// engine is the concrete implementation of Engine.
type engine struct {
	cfg     Config
	store   *store.Store
	noStore bool
	parsers *parser.Registry
	ocr     Recognizer

	// solution matches lines that open a solution section; running line
	// stripping never removes them.
	solution *regexp.Regexp
}

// New creates a new qbank engine with the given configuration.
func New(cfg Config, opts ...Option) (Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	e := &engine{
		cfg:     cfg,
		parsers: parser.NewRegistry(cfg.layout()),
	}
	for _, o := range opts {
		o(e)
	}

	// Check the extraction settings once so per-document runs cannot fail on them.
	if _, err := pipeline.New(cfg.pipelineConfig(), nil); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	markers := cfg.SolutionMarkers
	if len(markers) == 0 {
		markers = extract.DefaultSolutionMarkers
	}
	solution, err := extract.SolutionPattern(markers)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	e.solution = solution

	if e.ocr == nil && cfg.OCR.Enabled {
		r, err := ocr.New(cfg.ocrOptions())
		if err != nil {
			slog.Debug("ocr: recognizer not available", "error", err)
		} else {
			e.ocr = r
		}
	}

	if !e.noStore {
		dbPath := cfg.ResolveDBPath()
		s, err := store.New(dbPath, cfg.VectorDim)
		if err != nil {
			if e.ocr != nil {
				e.ocr.Close()
			}
			return nil, fmt.Errorf("opening store: %w", err)
		}
		e.store = s
	}
	return e, nil
}

// Extract processes a paper through the full pipeline.
func (e *engine) Extract(ctx context.Context, path string, opts ...ExtractOption) (*ExtractResult, error) {
	o := e.options(opts)

	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolving path: %w", err)
	}
	format := parser.Format(absPath)
	if _, err := e.parsers.Get(format); err != nil {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, format)
	}

	hash, err := fileHash(absPath)
	if err != nil {
		return nil, fmt.Errorf("hashing file: %w", err)
	}

	filename := filepath.Base(absPath)
	subject := o.subject
	if subject == "" {
		subject = classify.SubjectFromFilename(filename)
	}
	if subject == "" {
		subject = DefaultSubject
	}
	source := o.source
	if source == "" {
		source = filename
	}

	var docID int64
	if e.store != nil {
		if !o.force {
			if res, ok := e.unchanged(ctx, absPath, hash, o.reporter); ok {
				slog.Info("extract: unchanged, skipping", "file", filename, "doc_id", res.DocumentID)
				return res, nil
			}
		}
		docID, err = e.store.UpsertDocument(ctx, store.Document{
			Path:        absPath,
			Filename:    filename,
			Format:      format,
			Subject:     subject,
			ContentHash: hash,
			ParseMethod: "pending",
			Status:      store.StatusProcessing,
		})
		if err != nil {
			return nil, fmt.Errorf("upserting document: %w", err)
		}
	}

	slog.Info("extract: parsing document", "file", filename, "format", format, "subject", subject, "doc_id", docID)

	text, method, pages, err := e.documentText(ctx, absPath, format)
	if err != nil {
		status := store.StatusError
		if errors.Is(err, ErrNoText) {
			status = store.StatusEmpty
		}
		slog.Warn("extract: no usable text", "file", filename, "status", status, "error", err)
		e.markDocument(ctx, docID, status, method, pages)
		return nil, err
	}

	slog.Info("extract: parsing complete",
		"file", filename,
		"pages", pages,
		"method", method,
		"chars", len(text),
	)

	res, err := e.run(ctx, subject, source, text, o.reporter)
	if err != nil {
		e.markDocument(ctx, docID, store.StatusError, method, pages)
		return nil, err
	}
	res.DocumentID = docID
	res.Path = absPath
	res.Method = method
	res.Pages = pages

	if e.store != nil {
		if err := e.persist(ctx, docID, res); err != nil {
			e.markDocument(ctx, docID, store.StatusError, method, pages)
			return nil, err
		}
		status := store.StatusReady
		if res.Blocks == 0 {
			status = store.StatusEmpty
		}
		e.markDocument(ctx, docID, status, method, pages)
	}

	slog.Info("extract: document ready",
		"file", filename,
		"doc_id", docID,
		"blocks", res.Blocks,
		"accepted", len(res.Questions),
		"rejected", len(res.Rejected),
	)
	return res, nil
}

// ExtractAll extracts every path, DocumentConcurrency at a time. Results
// keep the order of paths.
func (e *engine) ExtractAll(ctx context.Context, paths []string, opts ...ExtractOption) []BatchResult {
	results := make([]BatchResult, len(paths))
	limit := e.cfg.DocumentConcurrency
	if limit <= 0 {
		limit = 1
	}

	var g errgroup.Group
	g.SetLimit(limit)
	for i, p := range paths {
		g.Go(func() error {
			results[i].Path = p
			if err := ctx.Err(); err != nil {
				results[i].Err = err
				return nil
			}
			res, err := e.Extract(ctx, p, opts...)
			if err != nil {
				slog.Error("extract: document failed", "file", p, "error", err)
			}
			results[i].Result, results[i].Err = res, err
			return nil
		})
	}
	g.Wait()
	return results
}

// ExtractText runs the pipeline over text that needs no parsing.
func (e *engine) ExtractText(ctx context.Context, subject, text string, opts ...ExtractOption) (*ExtractResult, error) {
	o := e.options(opts)
	if subject == "" {
		subject = DefaultSubject
	}
	res, err := e.run(ctx, subject, o.source, normalize.Text(text), o.reporter)
	if err != nil {
		return nil, err
	}
	res.Method = "text"
	return res, nil
}

// Import reads a question bank and stores its rows as questions without
// answers.
func (e *engine) Import(ctx context.Context, path string, opts ...ExtractOption) (*ImportResult, error) {
	o := e.options(opts)

	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolving path: %w", err)
	}
	format := parser.Format(absPath)

	f, err := os.Open(absPath)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var parsed *importer.Result
	switch format {
	case "csv":
		parsed, err = importer.ParseCSV(f)
	case "xlsx":
		parsed, err = importer.ParseXLSX(f)
	default:
		return nil, fmt.Errorf("%w: %q is not a question bank", ErrUnsupportedFormat, format)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrParsingFailed, err)
	}

	filename := filepath.Base(absPath)
	source := o.source
	if source == "" {
		source = filename
	}

	res := &ImportResult{Path: absPath, Total: parsed.Total, Failures: parsed.Failures}
	now := time.Now().UTC()
	for _, row := range parsed.Rows {
		subject := row.Subject
		if o.subject != "" {
			subject = o.subject
		}
		c := extract.Candidate{
			QuestionNumber: row.Line,
			Stem:           row.Stem,
			StemOK:         true,
			Options:        row.Options,
			CorrectIndex:   extract.Unknown,
		}
		outcome := validate.Validate(c, validate.Allow)
		if o.reporter != nil {
			o.reporter.Record(subject, outcome, row.Stem)
		}
		if outcome.Accepted() {
			res.Questions = append(res.Questions, newQuestion(c, subject, source, now))
		}
	}
	for _, fl := range parsed.Failures {
		if o.reporter != nil {
			o.reporter.Record(fl.Subject, validate.Failed(fl.Line), fl.Preview)
		}
	}

	slog.Info("import: parsed question bank",
		"file", filename,
		"rows", parsed.Total,
		"questions", len(res.Questions),
		"failures", len(parsed.Failures),
	)

	if e.store == nil {
		return res, nil
	}
	hash, err := fileHash(absPath)
	if err != nil {
		return nil, fmt.Errorf("hashing file: %w", err)
	}
	docID, err := e.store.UpsertDocument(ctx, store.Document{
		Path:        absPath,
		Filename:    filename,
		Format:      format,
		Subject:     o.subject,
		ContentHash: hash,
		ParseMethod: "import",
		Status:      store.StatusReady,
	})
	if err != nil {
		return nil, fmt.Errorf("upserting document: %w", err)
	}
	res.DocumentID = docID

	rejects := make([]Reject, len(parsed.Failures))
	for i, fl := range parsed.Failures {
		rejects[i] = Reject{QuestionNumber: fl.Line, Reasons: "unparsed_row", Raw: fl.Preview}
	}
	if err := e.persist(ctx, docID, &ExtractResult{Questions: res.Questions, Rejected: rejects}); err != nil {
		return nil, err
	}
	return res, nil
}

// Stats returns the number of stored documents, questions, stem vectors and
// rejected blocks.
func (e *engine) Stats(ctx context.Context) (*Stats, error) {
	if e.store == nil {
		return nil, ErrStoreClosed
	}
	st, err := e.store.DBStats(ctx)
	if err != nil {
		return nil, err
	}
	return &Stats{Documents: st.Documents, Questions: st.Questions, Vectors: st.Vectors, Rejects: st.Rejects}, nil
}

// Documents returns all stored papers.
func (e *engine) Documents(ctx context.Context) ([]Document, error) {
	if e.store == nil {
		return nil, ErrStoreClosed
	}
	docs, err := e.store.ListDocuments(ctx)
	if err != nil {
		return nil, err
	}

	result := make([]Document, len(docs))
	for i, d := range docs {
		result[i] = Document{
			ID:          d.ID,
			Path:        d.Path,
			Filename:    d.Filename,
			Format:      d.Format,
			Subject:     d.Subject,
			ContentHash: d.ContentHash,
			ParseMethod: d.ParseMethod,
			Status:      d.Status,
			Accepted:    d.Accepted,
			Rejected:    d.Rejected,
			CreatedAt:   d.CreatedAt,
			UpdatedAt:   d.UpdatedAt,
		}
		if d.Metadata != "" {
			_ = json.Unmarshal([]byte(d.Metadata), &result[i].Metadata)
		}
	}
	return result, nil
}

// Questions returns the stored questions of one paper.
func (e *engine) Questions(ctx context.Context, documentID int64) ([]Question, error) {
	if e.store == nil {
		return nil, ErrStoreClosed
	}
	if _, err := e.store.GetDocument(ctx, documentID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, fmt.Errorf("%w: %d", ErrDocumentNotFound, documentID)
		}
		return nil, err
	}
	qs, err := e.store.GetQuestions(ctx, documentID)
	if err != nil {
		return nil, err
	}
	out := make([]Question, len(qs))
	for i, q := range qs {
		out[i] = fromStore(q)
	}
	return out, nil
}

// Search runs a full-text search over stored questions.
func (e *engine) Search(ctx context.Context, query string, limit int) ([]Hit, error) {
	if e.store == nil {
		return nil, ErrStoreClosed
	}
	if limit <= 0 {
		limit = 10
	}
	res, err := e.store.SearchQuestions(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	out := hits(res)
	for i := range out {
		out[i].Snippet = explanationSnippet(out[i].Explanation, query)
	}
	return out, nil
}

// Similar returns the k stored questions nearest to stem.
func (e *engine) Similar(ctx context.Context, stem string, k int) ([]Hit, error) {
	if e.store == nil {
		return nil, ErrStoreClosed
	}
	if k <= 0 {
		k = 5
	}
	res, err := e.store.SimilarQuestions(ctx, stem, k)
	if err != nil {
		return nil, err
	}
	return hits(res), nil
}

// Delete removes a paper and all its questions.
func (e *engine) Delete(ctx context.Context, documentID int64) error {
	if e.store == nil {
		return ErrStoreClosed
	}
	if _, err := e.store.GetDocument(ctx, documentID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return fmt.Errorf("%w: %d", ErrDocumentNotFound, documentID)
		}
		return err
	}
	return e.store.DeleteDocument(ctx, documentID)
}

// Close shuts down the engine.
func (e *engine) Close() error {
	var errs []error
	if e.ocr != nil {
		errs = append(errs, e.ocr.Close())
	}
	if e.store != nil {
		errs = append(errs, e.store.Close())
		e.store = nil
	}
	return errors.Join(errs...)
}

// SortQuestions orders questions by subject, then question number.
func SortQuestions(qs []Question) {
	sort.SliceStable(qs, func(i, j int) bool {
		if qs[i].Subject != qs[j].Subject {
			return qs[i].Subject < qs[j].Subject
		}
		return qs[i].QuestionNumber < qs[j].QuestionNumber
	})
}

// Collect gathers the questions of every successful result, sorted by
// subject and question number.
func Collect(results []BatchResult) []Question {
	var out []Question
	for _, r := range results {
		if r.Err == nil && r.Result != nil {
			out = append(out, r.Result.Questions...)
		}
	}
	SortQuestions(out)
	return out
}

// Rows returns the export rows of qs. Rows without an ID get one from seq.
func Rows(qs []Question, seq *export.Sequence) []export.Row {
	rows := make([]export.Row, len(qs))
	for i, q := range qs {
		rows[i] = q.Row
	}
	if seq != nil {
		seq.Assign(rows)
	}
	return rows
}

// SupportedFormats lists the paper formats Extract accepts.
func SupportedFormats() []string {
	return parser.NewRegistry(parser.DefaultLayout()).Formats()
}

// --- internals ---

func (e *engine) options(opts []ExtractOption) *extractOptions {
	o := &extractOptions{}
	for _, fn := range opts {
		fn(o)
	}
	return o
}

// run segments, extracts and validates text, then classifies the accepted
// questions.
func (e *engine) run(ctx context.Context, subject, source, text string, reporter *report.Reporter) (*ExtractResult, error) {
	p, err := pipeline.New(e.cfg.pipelineConfig(), reporter)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	results, err := p.Run(ctx, subject, text)
	if err != nil {
		return nil, err
	}

	res := &ExtractResult{Subject: subject, Blocks: len(results)}
	now := time.Now().UTC()
	for _, r := range results {
		if r.Outcome.Accepted() {
			res.Questions = append(res.Questions, newQuestion(r.Candidate, subject, source, now))
			continue
		}
		res.Rejected = append(res.Rejected, Reject{
			QuestionNumber: r.Outcome.QuestionNumber,
			Reasons:        r.Outcome.ReasonString(),
			Raw:            r.Block.Text,
		})
	}
	return res, nil
}

func newQuestion(c extract.Candidate, subject, source string, now time.Time) Question {
	row := export.NewRow(subject, source, now)
	row.Chapter, row.Topic = classify.Classify(c.Stem, subject)
	row.Stem = c.Stem
	row.Options = c.Options
	row.CorrectIndex = c.CorrectIndex
	row.Explanation = c.Explanation
	return Question{Row: row, QuestionNumber: c.QuestionNumber}
}

// documentText parses the file and returns its normalized text, falling
// back to OCR when the native text is sparse.
func (e *engine) documentText(ctx context.Context, path, format string) (text, method string, pages int, err error) {
	p, err := e.parsers.Get(format)
	if err != nil {
		return "", "", 0, fmt.Errorf("%w: %q", ErrUnsupportedFormat, format)
	}
	parsed, err := p.Parse(ctx, path)
	if err != nil {
		return "", "", 0, fmt.Errorf("%w: %w", ErrParsingFailed, err)
	}
	method, pages = parsed.Method, len(parsed.Pages)

	text, err = joinPages(ctx, parser.StripRunningLines(parsed.Pages, e.cfg.RunningLineShare, e.solution))
	if err != nil {
		return "", method, pages, err
	}
	if !normalize.IsSparse(text, e.cfg.MinChars) || format != "pdf" {
		if strings.TrimSpace(text) == "" {
			return "", method, pages, ErrNoText
		}
		return text, method, pages, nil
	}

	slog.Info("extract: sparse text, trying OCR", "file", filepath.Base(path), "chars", len(text))
	scanned, ocrErr := e.recognize(ctx, path)
	switch {
	case ocrErr != nil:
		slog.Warn("extract: OCR failed", "file", filepath.Base(path), "error", ocrErr)
	case len(strings.TrimSpace(scanned)) > len(strings.TrimSpace(text)):
		text, method = scanned, "ocr"
	}
	if strings.TrimSpace(text) == "" {
		if ocrErr != nil {
			return "", method, pages, fmt.Errorf("%w: %w", ErrNoText, ocrErr)
		}
		return "", method, pages, ErrNoText
	}
	return text, method, pages, nil
}

// recognize runs OCR over every page within the configured timeout.
func (e *engine) recognize(ctx context.Context, path string) (string, error) {
	if e.ocr == nil {
		return "", ErrOCRUnavailable
	}
	if e.cfg.OCR.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.cfg.OCR.Timeout)
		defer cancel()
	}
	texts, err := e.ocr.RecognizePages(ctx, path)
	if err != nil {
		if errors.Is(err, ocr.ErrOCRNotEnabled) {
			return "", fmt.Errorf("%w: %w", ErrOCRUnavailable, err)
		}
		return "", err
	}
	pages := make([]parser.Page, len(texts))
	for i, t := range texts {
		pages[i] = parser.Page{Number: i + 1, Text: t}
	}
	return joinPages(ctx, parser.StripRunningLines(pages, e.cfg.RunningLineShare, e.solution))
}

// joinPages normalizes pages concurrently and joins them in page order.
func joinPages(ctx context.Context, pages []parser.Page) (string, error) {
	texts := make([]string, len(pages))
	g, gctx := errgroup.WithContext(ctx)
	for i, p := range pages {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			texts[i] = normalize.Text(p.Text)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return "", err
	}
	return normalize.JoinPages(texts), nil
}

// unchanged returns the stored result when the paper was already extracted
// from identical content. The stored outcomes are replayed into reporter in
// question order so a skipped paper still shows up in tallies and
// diagnostics.
func (e *engine) unchanged(ctx context.Context, path, hash string, reporter *report.Reporter) (*ExtractResult, bool) {
	doc, err := e.store.GetDocumentByPath(ctx, path)
	if err != nil || doc.ContentHash != hash {
		return nil, false
	}
	if doc.Status != store.StatusReady && doc.Status != store.StatusEmpty {
		return nil, false
	}
	qs, err := e.store.GetQuestions(ctx, doc.ID)
	if err != nil {
		return nil, false
	}
	rejects, err := e.store.GetRejects(ctx, doc.ID)
	if err != nil {
		return nil, false
	}
	res := &ExtractResult{
		DocumentID: doc.ID,
		Path:       doc.Path,
		Subject:    doc.Subject,
		Method:     doc.ParseMethod,
		Skipped:    true,
		Blocks:     doc.Accepted + doc.Rejected,
	}
	for _, q := range qs {
		res.Questions = append(res.Questions, fromStore(q))
	}
	for _, r := range rejects {
		res.Rejected = append(res.Rejected, Reject{QuestionNumber: r.QuestionNumber, Reasons: r.Reasons, Raw: r.Raw})
	}
	if reporter != nil {
		replay(reporter, res)
	}
	return res, true
}

// replay records stored outcomes, merging accepted and rejected blocks by
// question number.
func replay(reporter *report.Reporter, res *ExtractResult) {
	qs, rj := res.Questions, res.Rejected
	for len(qs) > 0 || len(rj) > 0 {
		if len(rj) == 0 || (len(qs) > 0 && qs[0].QuestionNumber <= rj[0].QuestionNumber) {
			outcome := validate.Outcome{QuestionNumber: qs[0].QuestionNumber, Status: validate.Accepted}
			reporter.Record(res.Subject, outcome, qs[0].Stem)
			qs = qs[1:]
			continue
		}
		reporter.Record(res.Subject, validate.Rejection(rj[0].QuestionNumber, rj[0].Reasons), rj[0].Raw)
		rj = rj[1:]
	}
}

func (e *engine) persist(ctx context.Context, docID int64, res *ExtractResult) error {
	qs := make([]store.Question, len(res.Questions))
	for i, q := range res.Questions {
		qs[i] = toStore(q)
	}
	rejects := make([]store.Reject, len(res.Rejected))
	for i, r := range res.Rejected {
		rejects[i] = store.Reject{QuestionNumber: r.QuestionNumber, Reasons: r.Reasons, Raw: r.Raw}
	}
	ids, err := e.store.ReplaceQuestions(ctx, docID, qs, rejects)
	if err != nil {
		return fmt.Errorf("storing questions: %w", err)
	}
	for i := range res.Questions {
		res.Questions[i].ID = ids[i]
		res.Questions[i].DocumentID = docID
	}
	return nil
}

func (e *engine) markDocument(ctx context.Context, docID int64, status, method string, pages int) {
	if e.store == nil || docID == 0 {
		return
	}
	if method == "" {
		method = "none"
	}
	meta, _ := json.Marshal(map[string]string{"pages": fmt.Sprintf("%d", pages)})
	if err := e.store.FinishDocument(ctx, docID, status, method, string(meta)); err != nil {
		slog.Warn("extract: updating document status failed", "doc_id", docID, "error", err)
	}
}

func toStore(q Question) store.Question {
	return store.Question{
		ID:             q.ID,
		DocumentID:     q.DocumentID,
		QuestionNumber: q.QuestionNumber,
		Subject:        q.Subject,
		Chapter:        q.Chapter,
		Topic:          q.Topic,
		Stem:           q.Stem,
		Options:        q.Options,
		CorrectIndex:   q.CorrectIndex,
		Explanation:    q.Explanation,
		Difficulty:     q.Difficulty,
		Language:       q.Language,
		Source:         q.Source,
		Status:         q.Status,
		BloomLevel:     q.BloomLevel,
		Tags:           q.Tags,
		CreatedAt:      q.CreatedAt,
		UpdatedAt:      q.UpdatedAt,
	}
}

func fromStore(q store.Question) Question {
	return Question{
		Row: export.Row{
			ID:           q.ID,
			Subject:      q.Subject,
			Chapter:      q.Chapter,
			Topic:        q.Topic,
			Stem:         q.Stem,
			Options:      q.Options,
			CorrectIndex: q.CorrectIndex,
			Explanation:  q.Explanation,
			Difficulty:   q.Difficulty,
			Language:     q.Language,
			Source:       q.Source,
			Status:       q.Status,
			BloomLevel:   q.BloomLevel,
			Tags:         q.Tags,
			CreatedAt:    q.CreatedAt,
			UpdatedAt:    q.UpdatedAt,
		},
		DocumentID:     q.DocumentID,
		QuestionNumber: q.QuestionNumber,
	}
}

func hits(res []store.SearchResult) []Hit {
	out := make([]Hit, len(res))
	for i, r := range res {
		out[i] = Hit{Question: fromStore(r.Question), Filename: r.Filename, Score: r.Score}
	}
	return out
}

// fileHash computes the SHA-256 hash of a file's content.
func fileHash(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
