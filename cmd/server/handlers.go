package main

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/brunobiangulo/qbank"
	"github.com/brunobiangulo/qbank/export"
)

// maxUpload bounds multipart uploads.
const maxUpload = 100 << 20

type handler struct {
	engine qbank.Engine
}

func newHandler(e qbank.Engine) *handler {
	return &handler{engine: e}
}

// pathRequest is the JSON body of the file endpoints.
type pathRequest struct {
	Path    string `json:"path"`
	Subject string `json:"subject,omitempty"`
	Source  string `json:"source,omitempty"`
	Force   bool   `json:"force,omitempty"`
}

func (p pathRequest) options() []qbank.ExtractOption {
	var opts []qbank.ExtractOption
	if p.Force {
		opts = append(opts, qbank.WithForce())
	}
	if p.Subject != "" {
		opts = append(opts, qbank.WithSubject(p.Subject))
	}
	if p.Source != "" {
		opts = append(opts, qbank.WithSource(p.Source))
	}
	return opts
}

// POST /extract
// Accepts a multipart file upload or JSON with a file path.
func (h *handler) handleExtract(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 30*time.Minute)
	defer cancel()

	path, req, cleanup, ok := h.resolveFile(w, r)
	if !ok {
		return
	}
	defer cleanup()

	res, err := h.engine.Extract(ctx, path, req.options()...)
	if err != nil {
		writeError(w, statusFor(err), "extraction failed: "+err.Error())
		slog.Error("extract error", "path", path, "error", err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// POST /import
// Same request shapes as /extract, for CSV or XLSX question banks.
func (h *handler) handleImport(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Minute)
	defer cancel()

	path, req, cleanup, ok := h.resolveFile(w, r)
	if !ok {
		return
	}
	defer cleanup()

	res, err := h.engine.Import(ctx, path, req.options()...)
	if err != nil {
		writeError(w, statusFor(err), "import failed: "+err.Error())
		slog.Error("import error", "path", path, "error", err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// POST /extract-text
func (h *handler) handleExtractText(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Minute)
	defer cancel()

	var req struct {
		Subject string `json:"subject"`
		Source  string `json:"source,omitempty"`
		Text    string `json:"text"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if req.Text == "" {
		writeError(w, http.StatusBadRequest, "text is required")
		return
	}

	var opts []qbank.ExtractOption
	if req.Source != "" {
		opts = append(opts, qbank.WithSource(req.Source))
	}
	res, err := h.engine.ExtractText(ctx, req.Subject, req.Text, opts...)
	if err != nil {
		writeError(w, statusFor(err), "extraction failed")
		slog.Error("extract-text error", "subject", req.Subject, "error", err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// GET /documents
func (h *handler) handleListDocuments(w http.ResponseWriter, r *http.Request) {
	docs, err := h.engine.Documents(r.Context())
	if err != nil {
		writeError(w, statusFor(err), "failed to list documents")
		slog.Error("list documents error", "error", err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"documents": docs,
	})
}

// GET /documents/{id}/questions
func (h *handler) handleQuestions(w http.ResponseWriter, r *http.Request) {
	id, ok := documentID(w, r)
	if !ok {
		return
	}
	qs, err := h.engine.Questions(r.Context(), id)
	if err != nil {
		writeError(w, statusFor(err), "failed to load questions")
		slog.Error("questions error", "document_id", id, "error", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"document_id": id,
		"questions":   qs,
	})
}

// GET /documents/{id}/export?format=csv|xlsx
func (h *handler) handleExport(w http.ResponseWriter, r *http.Request) {
	id, ok := documentID(w, r)
	if !ok {
		return
	}
	format := r.URL.Query().Get("format")
	if format == "" {
		format = "csv"
	}
	exp, err := export.New(format)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	qs, err := h.engine.Questions(r.Context(), id)
	if err != nil {
		writeError(w, statusFor(err), "failed to load questions")
		slog.Error("export error", "document_id", id, "error", err)
		return
	}

	w.Header().Set("Content-Type", contentType(exp.Ext()))
	w.Header().Set("Content-Disposition", `attachment; filename="questions-`+strconv.FormatInt(id, 10)+exp.Ext()+`"`)
	if err := exp.Export(w, qbank.Rows(qs, nil)); err != nil {
		slog.Error("export write error", "document_id", id, "error", err)
	}
}

// DELETE /documents/{id}
func (h *handler) handleDeleteDocument(w http.ResponseWriter, r *http.Request) {
	id, ok := documentID(w, r)
	if !ok {
		return
	}

	if err := h.engine.Delete(r.Context(), id); err != nil {
		writeError(w, statusFor(err), "delete failed")
		slog.Error("delete error", "document_id", id, "error", err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

// GET /search?q=...&limit=N
func (h *handler) handleSearch(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query().Get("q")
	if q == "" {
		writeError(w, http.StatusBadRequest, "q is required")
		return
	}
	hits, err := h.engine.Search(r.Context(), q, boundedInt(r, "limit", 10, 100))
	if err != nil {
		writeError(w, statusFor(err), "search failed")
		slog.Error("search error", "query", q, "error", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"query": q,
		"hits":  hits,
	})
}

// GET /similar?stem=...&k=N
func (h *handler) handleSimilar(w http.ResponseWriter, r *http.Request) {
	stem := r.URL.Query().Get("stem")
	if stem == "" {
		writeError(w, http.StatusBadRequest, "stem is required")
		return
	}
	hits, err := h.engine.Similar(r.Context(), stem, boundedInt(r, "k", 5, 50))
	if err != nil {
		writeError(w, statusFor(err), "similarity lookup failed")
		slog.Error("similar error", "error", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"stem": stem,
		"hits": hits,
	})
}

// GET /health
// Reports store counts; an unreadable store answers 503.
func (h *handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	stats, err := h.engine.Stats(r.Context())
	if err != nil {
		slog.Error("health check failed", "error", err)
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"status": "unavailable",
			"error":  err.Error(),
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status": "ok",
		"stats":  stats,
	})
}

// resolveFile returns the path of an uploaded file, saved under its own
// name in a fresh temp dir, or of an existing file named in a JSON body.
// On failure it has already written the response.
func (h *handler) resolveFile(w http.ResponseWriter, r *http.Request) (string, pathRequest, func(), bool) {
	noop := func() {}

	if err := r.ParseMultipartForm(maxUpload); err == nil {
		file, header, err := r.FormFile("file")
		if err == nil {
			defer file.Close()
			req := pathRequest{
				Subject: r.FormValue("subject"),
				Source:  r.FormValue("source"),
				Force:   r.FormValue("force") == "true",
			}
			path, cleanup, err := saveUpload(file, header.Filename)
			if err != nil {
				writeError(w, http.StatusInternalServerError, "failed to save file")
				slog.Error("saving uploaded file", "error", err)
				return "", req, noop, false
			}
			return path, req, cleanup, true
		}
	}

	var req pathRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request: expected multipart file or JSON with 'path'")
		return "", req, noop, false
	}
	if req.Path == "" {
		writeError(w, http.StatusBadRequest, "path is required")
		return "", req, noop, false
	}

	// Only existing regular files are accepted.
	absPath, err := filepath.Abs(req.Path)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid path")
		return "", req, noop, false
	}
	info, err := os.Stat(absPath)
	if err != nil || info.IsDir() {
		writeError(w, http.StatusBadRequest, "path must be an existing file")
		return "", req, noop, false
	}
	return absPath, req, noop, true
}

// saveUpload copies an upload into a new temp dir, keeping the base name so
// the subject can still be read from it.
func saveUpload(src io.Reader, name string) (string, func(), error) {
	dir, err := os.MkdirTemp("", "qbank-upload-")
	if err != nil {
		return "", nil, err
	}
	cleanup := func() { os.RemoveAll(dir) }

	// Sanitise filename to prevent path traversal.
	path := filepath.Join(dir, filepath.Base(name))
	dst, err := os.Create(path)
	if err != nil {
		cleanup()
		return "", nil, err
	}
	if _, err := io.Copy(dst, src); err != nil {
		dst.Close()
		cleanup()
		return "", nil, err
	}
	if err := dst.Close(); err != nil {
		cleanup()
		return "", nil, err
	}
	return path, cleanup, nil
}

func documentID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid document id")
		return 0, false
	}
	return id, true
}

// boundedInt reads a positive query parameter, falling back to def when it
// is missing, malformed or above upper.
func boundedInt(r *http.Request, key string, def, upper int) int {
	n, err := strconv.Atoi(r.URL.Query().Get(key))
	if err != nil || n <= 0 || n > upper {
		return def
	}
	return n
}

// statusFor maps engine errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, qbank.ErrDocumentNotFound):
		return http.StatusNotFound
	case errors.Is(err, qbank.ErrUnsupportedFormat):
		return http.StatusUnsupportedMediaType
	case errors.Is(err, qbank.ErrNoText), errors.Is(err, qbank.ErrParsingFailed):
		return http.StatusUnprocessableEntity
	case errors.Is(err, qbank.ErrStoreClosed):
		return http.StatusServiceUnavailable
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	}
	return http.StatusInternalServerError
}

func contentType(ext string) string {
	if ext == ".xlsx" {
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	}
	return "text/csv; charset=utf-8"
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
