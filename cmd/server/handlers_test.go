package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/brunobiangulo/qbank"
	"github.com/brunobiangulo/qbank/export"
)

// fakeEngine records calls and returns canned results.
type fakeEngine struct {
	extractedPath string
	extractedBody string
	subject       string
	panicOnSearch bool
	statsErr      error
	questions     map[int64][]qbank.Question
}

func (f *fakeEngine) Extract(ctx context.Context, path string, opts ...qbank.ExtractOption) (*qbank.ExtractResult, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	f.extractedPath, f.extractedBody = path, string(data)
	if filepath.Ext(path) == ".bin" {
		return nil, fmt.Errorf("%w: %q", qbank.ErrUnsupportedFormat, "bin")
	}
	return &qbank.ExtractResult{Path: path, Subject: "Physics", Method: "native", Blocks: 1}, nil
}

func (f *fakeEngine) ExtractAll(ctx context.Context, paths []string, opts ...qbank.ExtractOption) []qbank.BatchResult {
	return nil
}

func (f *fakeEngine) ExtractText(ctx context.Context, subject, text string, opts ...qbank.ExtractOption) (*qbank.ExtractResult, error) {
	f.subject = subject
	return &qbank.ExtractResult{Subject: subject, Method: "text", Blocks: strings.Count(text, "?")}, nil
}

func (f *fakeEngine) Import(ctx context.Context, path string, opts ...qbank.ExtractOption) (*qbank.ImportResult, error) {
	return &qbank.ImportResult{Path: path, Total: 1}, nil
}

func (f *fakeEngine) Documents(ctx context.Context) ([]qbank.Document, error) {
	return []qbank.Document{{ID: 1, Filename: "phy.pdf", Status: "ready"}}, nil
}

func (f *fakeEngine) Questions(ctx context.Context, id int64) ([]qbank.Question, error) {
	qs, ok := f.questions[id]
	if !ok {
		return nil, fmt.Errorf("%w: %d", qbank.ErrDocumentNotFound, id)
	}
	return qs, nil
}

func (f *fakeEngine) Search(ctx context.Context, query string, limit int) ([]qbank.Hit, error) {
	if f.panicOnSearch {
		panic("index corrupted")
	}
	return []qbank.Hit{{Filename: "phy.pdf", Score: float64(limit)}}, nil
}

func (f *fakeEngine) Similar(ctx context.Context, stem string, k int) ([]qbank.Hit, error) {
	return nil, qbank.ErrStoreClosed
}

func (f *fakeEngine) Delete(ctx context.Context, id int64) error {
	if _, ok := f.questions[id]; !ok {
		return fmt.Errorf("%w: %d", qbank.ErrDocumentNotFound, id)
	}
	delete(f.questions, id)
	return nil
}

func (f *fakeEngine) Stats(ctx context.Context) (*qbank.Stats, error) {
	if f.statsErr != nil {
		return nil, f.statsErr
	}
	n := 0
	for _, qs := range f.questions {
		n += len(qs)
	}
	return &qbank.Stats{Documents: len(f.questions), Questions: n}, nil
}

func (f *fakeEngine) Close() error { return nil }

func newFake() *fakeEngine {
	row := export.Row{ID: 7, Subject: "Physics", Stem: "What is the SI unit of force?", CorrectIndex: -1}
	row.Options = [4]string{"newton", "joule", "watt", "pascal"}
	return &fakeEngine{questions: map[int64][]qbank.Question{
		1: {{Row: row, DocumentID: 1, QuestionNumber: 3}},
	}}
}

func serve(t *testing.T, h http.Handler, req *http.Request) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decoding %q: %v", rec.Body.String(), err)
	}
	return body
}

func TestRoutes(t *testing.T) {
	h := newServer(newFake(), "", "")

	tests := []struct {
		name   string
		method string
		target string
		body   string
		status int
	}{
		{"health", http.MethodGet, "/health", "", http.StatusOK},
		{"documents", http.MethodGet, "/documents", "", http.StatusOK},
		{"questions", http.MethodGet, "/documents/1/questions", "", http.StatusOK},
		{"questions missing", http.MethodGet, "/documents/9/questions", "", http.StatusNotFound},
		{"questions bad id", http.MethodGet, "/documents/x/questions", "", http.StatusBadRequest},
		{"search", http.MethodGet, "/search?q=force", "", http.StatusOK},
		{"search without query", http.MethodGet, "/search", "", http.StatusBadRequest},
		{"similar without store", http.MethodGet, "/similar?stem=force", "", http.StatusServiceUnavailable},
		{"delete missing", http.MethodDelete, "/documents/42", "", http.StatusNotFound},
		{"delete", http.MethodDelete, "/documents/1", "", http.StatusOK},
		{"extract-text", http.MethodPost, "/extract-text", `{"subject":"Physics","text":"1. Why?"}`, http.StatusOK},
		{"extract-text empty", http.MethodPost, "/extract-text", `{"subject":"Physics"}`, http.StatusBadRequest},
		{"extract bad json", http.MethodPost, "/extract", `{`, http.StatusBadRequest},
		{"extract missing file", http.MethodPost, "/extract", `{"path":"/no/such/file.pdf"}`, http.StatusBadRequest},
		{"export bad format", http.MethodGet, "/documents/1/export?format=pdf", "", http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, tt.target, strings.NewReader(tt.body))
			if tt.body != "" {
				req.Header.Set("Content-Type", "application/json")
			}
			rec := serve(t, h, req)
			if rec.Code != tt.status {
				t.Errorf("%s %s = %d, want %d (%s)", tt.method, tt.target, rec.Code, tt.status, rec.Body.String())
			}
		})
	}
}

func TestExtractByPath(t *testing.T) {
	fake := newFake()
	h := newServer(fake, "", "")

	path := filepath.Join(t.TempDir(), "phy_paper.txt")
	os.WriteFile(path, []byte("1. What?"), 0o644)
	body, _ := json.Marshal(map[string]any{"path": path, "force": true})

	rec := serve(t, h, httptest.NewRequest(http.MethodPost, "/extract", bytes.NewReader(body)))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}
	if fake.extractedPath != path {
		t.Errorf("extracted %q, want %q", fake.extractedPath, path)
	}
	if got := decode(t, rec)["subject"]; got != "Physics" {
		t.Errorf("subject = %v", got)
	}
}

func TestExtractUpload(t *testing.T) {
	fake := newFake()
	h := newServer(fake, "", "")

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, _ := mw.CreateFormFile("file", "../../etc/chem_2024.txt")
	fw.Write([]byte("1. Which gas?"))
	mw.WriteField("subject", "Chemistry")
	mw.Close()

	req := httptest.NewRequest(http.MethodPost, "/extract", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rec := serve(t, h, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}
	if filepath.Base(fake.extractedPath) != "chem_2024.txt" {
		t.Errorf("upload saved as %q", fake.extractedPath)
	}
	if fake.extractedBody != "1. Which gas?" {
		t.Errorf("upload body = %q", fake.extractedBody)
	}
	if _, err := os.Stat(fake.extractedPath); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("temp upload not removed: %v", err)
	}
}

func TestExtractUnsupportedUpload(t *testing.T) {
	h := newServer(newFake(), "", "")

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, _ := mw.CreateFormFile("file", "blob.bin")
	fw.Write([]byte{0, 1, 2})
	mw.Close()

	req := httptest.NewRequest(http.MethodPost, "/extract", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	if rec := serve(t, h, req); rec.Code != http.StatusUnsupportedMediaType {
		t.Errorf("status = %d, want 415", rec.Code)
	}
}

func TestExportCSV(t *testing.T) {
	h := newServer(newFake(), "", "")
	rec := serve(t, h, httptest.NewRequest(http.MethodGet, "/documents/1/export", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/csv") {
		t.Errorf("content type = %q", ct)
	}
	lines := strings.Split(strings.TrimSpace(rec.Body.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("got %d lines, want header plus one row:\n%s", len(lines), rec.Body.String())
	}
	if !strings.HasPrefix(lines[0], "id,subject,chapter") {
		t.Errorf("header = %q", lines[0])
	}
	if !strings.HasPrefix(lines[1], "7,Physics,") {
		t.Errorf("row = %q", lines[1])
	}
}

func TestSearchLimitBounds(t *testing.T) {
	h := newServer(newFake(), "", "")
	tests := []struct {
		query string
		want  float64
	}{
		{"/search?q=a", 10},
		{"/search?q=a&limit=3", 3},
		{"/search?q=a&limit=500", 10},
		{"/search?q=a&limit=-1", 10},
	}
	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			rec := serve(t, h, httptest.NewRequest(http.MethodGet, tt.query, nil))
			hits := decode(t, rec)["hits"].([]any)
			if got := hits[0].(map[string]any)["score"]; got != tt.want {
				t.Errorf("limit passed = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestAuthMiddleware(t *testing.T) {
	h := newServer(newFake(), "s3cret", "")

	tests := []struct {
		name   string
		target string
		auth   string
		status int
	}{
		{"health is open", "/health", "", http.StatusOK},
		{"missing key", "/documents", "", http.StatusUnauthorized},
		{"wrong key", "/documents", "Bearer nope", http.StatusUnauthorized},
		{"wrong scheme", "/documents", "Basic s3cret", http.StatusUnauthorized},
		{"valid key", "/documents", "Bearer s3cret", http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, tt.target, nil)
			if tt.auth != "" {
				req.Header.Set("Authorization", tt.auth)
			}
			if rec := serve(t, h, req); rec.Code != tt.status {
				t.Errorf("status = %d, want %d", rec.Code, tt.status)
			}
		})
	}
}

func TestCORSPreflight(t *testing.T) {
	h := newServer(newFake(), "s3cret", "https://review.example")
	req := httptest.NewRequest(http.MethodOptions, "/documents", nil)
	rec := serve(t, h, req)
	if rec.Code != http.StatusNoContent {
		t.Errorf("preflight status = %d, want 204", rec.Code)
	}
	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "https://review.example" {
		t.Errorf("allow origin = %q", got)
	}
}

func TestHealthReportsStats(t *testing.T) {
	f := newFake()
	h := newServer(f, "", "")

	rec := serve(t, h, httptest.NewRequest(http.MethodGet, "/health", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var body struct {
		Status string      `json:"status"`
		Stats  qbank.Stats `json:"stats"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	if body.Status != "ok" || body.Stats.Documents != 1 || body.Stats.Questions != 1 {
		t.Errorf("health = %+v", body)
	}

	f.statsErr = qbank.ErrStoreClosed
	rec = serve(t, h, httptest.NewRequest(http.MethodGet, "/health", nil))
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("closed store status = %d", rec.Code)
	}
}

func TestRecoveryMiddleware(t *testing.T) {
	fake := newFake()
	fake.panicOnSearch = true
	h := newServer(fake, "", "")

	rec := serve(t, h, httptest.NewRequest(http.MethodGet, "/search?q=force", nil))
	if rec.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", rec.Code)
	}
	if got := decode(t, rec)["error"]; got != "internal server error" {
		t.Errorf("error = %v", got)
	}
}

func TestBodyLimit(t *testing.T) {
	h := bodyLimitMiddleware(8, newServer(newFake(), "", ""))
	req := httptest.NewRequest(http.MethodPost, "/extract-text", strings.NewReader(`{"subject":"Physics","text":"1. Why?"}`))
	if rec := serve(t, h, req); rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{fmt.Errorf("%w: 3", qbank.ErrDocumentNotFound), http.StatusNotFound},
		{qbank.ErrUnsupportedFormat, http.StatusUnsupportedMediaType},
		{qbank.ErrNoText, http.StatusUnprocessableEntity},
		{fmt.Errorf("%w: bad xref", qbank.ErrParsingFailed), http.StatusUnprocessableEntity},
		{qbank.ErrStoreClosed, http.StatusServiceUnavailable},
		{context.DeadlineExceeded, http.StatusGatewayTimeout},
		{errors.New("disk full"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.err.Error(), func(t *testing.T) {
			if got := statusFor(tt.err); got != tt.want {
				t.Errorf("statusFor(%v) = %d, want %d", tt.err, got, tt.want)
			}
		})
	}
}

func TestLoadConfigFromEnv(t *testing.T) {
	t.Setenv("QBANK_ANSWER_POLICY", "allow")
	t.Setenv("QBANK_STORAGE_DIR", "local")
	cfg, err := loadConfig("")
	if err != nil {
		t.Fatal(err)
	}
	if cfg.AnswerPolicy != "allow" || cfg.StorageDir != "local" {
		t.Errorf("env not applied: %+v", cfg)
	}

	t.Setenv("QBANK_READING_ORDER", "sideways")
	if _, err := loadConfig(""); !errors.Is(err, qbank.ErrInvalidConfig) {
		t.Errorf("invalid env value: %v", err)
	}
}
