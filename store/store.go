package store

import (
	"context"
	"database/sql"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"
	"time"

	sqlite_vec "github.com/asg017/sqlite-vec-go-bindings/cgo"
	_ "github.com/mattn/go-sqlite3"
)

func init() {
	sqlite_vec.Auto()
}

// Document statuses.
const (
	StatusPending    = "pending"
	StatusProcessing = "processing"
	StatusReady      = "ready"
	StatusEmpty      = "empty"
	StatusError      = "error"
)

// DefaultVectorDim is the stem vector size used when none is given.
const DefaultVectorDim = 256

// ErrNotFound is returned when a looked-up row does not exist.
var ErrNotFound = errors.New("store: not found")

// Document represents a row in the documents table.
type Document struct {
	ID          int64  `json:"id"`
	Path        string `json:"path"`
	Filename    string `json:"filename"`
	Format      string `json:"format"`
	Subject     string `json:"subject"`
	ContentHash string `json:"content_hash"`
	ParseMethod string `json:"parse_method"`
	Status      string `json:"status"`
	Accepted    int    `json:"accepted"`
	Rejected    int    `json:"rejected"`
	Metadata    string `json:"metadata,omitempty"`
	CreatedAt   string `json:"created_at"`
	UpdatedAt   string `json:"updated_at"`
}

// Question represents a row in the questions table. CorrectIndex is -1 when
// the answer is unknown and is stored as NULL.
type Question struct {
	ID             int64     `json:"id"`
	DocumentID     int64     `json:"document_id"`
	QuestionNumber int       `json:"question_number"`
	Subject        string    `json:"subject"`
	Chapter        string    `json:"chapter"`
	Topic          string    `json:"topic"`
	Stem           string    `json:"stem"`
	Options        [4]string `json:"options"`
	CorrectIndex   int       `json:"correct_index"`
	Explanation    string    `json:"explanation"`
	Difficulty     int       `json:"difficulty"`
	Language       string    `json:"language"`
	Source         string    `json:"source"`
	Status         string    `json:"status"`
	BloomLevel     string    `json:"bloom_level"`
	Tags           []string  `json:"tags"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// Reject represents a row in the rejects table.
type Reject struct {
	ID             int64  `json:"id"`
	DocumentID     int64  `json:"document_id"`
	QuestionNumber int    `json:"question_number"`
	Reasons        string `json:"reasons"`
	Raw            string `json:"raw"`
}

// SearchResult holds a question with its search score and source file.
type SearchResult struct {
	Question
	Filename string  `json:"filename"`
	Score    float64 `json:"score"`
}

// Store wraps the SQLite database for all qbank persistence.
type Store struct {
	db        *sql.DB
	vectorDim int
}

// New opens (or creates) a SQLite database at the given path and
// initialises the schema including sqlite-vec and FTS5 virtual tables.
func New(dbPath string, vectorDim int) (*Store, error) {
	if vectorDim <= 0 {
		vectorDim = DefaultVectorDim
	}

	dir := filepath.Dir(dbPath)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("creating db directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_foreign_keys=on&_busy_timeout=30000")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	if _, err := db.Exec(schemaSQL(vectorDim)); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	db.SetMaxOpenConns(4)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(30 * time.Minute)

	s := &Store{db: db, vectorDim: vectorDim}

	if err := s.Migrate(context.Background()); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return s, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// DB returns the underlying *sql.DB for advanced queries.
func (s *Store) DB() *sql.DB {
	return s.db
}

// VectorDim returns the configured stem vector dimension.
func (s *Store) VectorDim() int {
	return s.vectorDim
}

// --- Document operations ---

const documentColumns = `id, path, filename, format, subject, content_hash, parse_method, status,
	accepted, rejected, metadata, created_at, updated_at`

// UpsertDocument inserts or updates a document record. Returns the document ID.
func (s *Store) UpsertDocument(ctx context.Context, doc Document) (int64, error) {
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO documents (path, filename, format, subject, content_hash, parse_method, status, metadata)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(path) DO UPDATE SET
			filename = excluded.filename,
			format = excluded.format,
			subject = excluded.subject,
			content_hash = excluded.content_hash,
			parse_method = excluded.parse_method,
			status = excluded.status,
			metadata = excluded.metadata,
			updated_at = CURRENT_TIMESTAMP
	`, doc.Path, doc.Filename, doc.Format, doc.Subject, doc.ContentHash, doc.ParseMethod, doc.Status, nullString(doc.Metadata))
	if err != nil {
		return 0, err
	}

	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}

	// If UPSERT did an UPDATE, LastInsertId may not reflect the existing row.
	if id == 0 {
		row := s.db.QueryRowContext(ctx, "SELECT id FROM documents WHERE path = ?", doc.Path)
		if err := row.Scan(&id); err != nil {
			return 0, err
		}
	}
	return id, nil
}

// GetDocumentByPath retrieves a document by its file path.
func (s *Store) GetDocumentByPath(ctx context.Context, path string) (*Document, error) {
	row := s.db.QueryRowContext(ctx, "SELECT "+documentColumns+" FROM documents WHERE path = ?", path)
	return scanDocument(row)
}

// GetDocument retrieves a document by ID.
func (s *Store) GetDocument(ctx context.Context, id int64) (*Document, error) {
	row := s.db.QueryRowContext(ctx, "SELECT "+documentColumns+" FROM documents WHERE id = ?", id)
	return scanDocument(row)
}

// ListDocuments returns all documents, newest first.
func (s *Store) ListDocuments(ctx context.Context) ([]Document, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT "+documentColumns+" FROM documents ORDER BY created_at DESC, id DESC")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var docs []Document
	for rows.Next() {
		d, err := scanDocument(rows)
		if err != nil {
			return nil, err
		}
		docs = append(docs, *d)
	}
	return docs, rows.Err()
}

// FinishDocument records how a document was parsed and where it ended up.
func (s *Store) FinishDocument(ctx context.Context, id int64, status, parseMethod, metadata string) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE documents SET status = ?, parse_method = ?, metadata = ?, updated_at = CURRENT_TIMESTAMP
		WHERE id = ?`, status, parseMethod, nullString(metadata), id)
	return err
}

// DeleteDocument removes a document together with its questions, vectors
// and rejects.
func (s *Store) DeleteDocument(ctx context.Context, id int64) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		if err := deleteDocumentData(ctx, tx, id); err != nil {
			return err
		}
		_, err := tx.ExecContext(ctx, "DELETE FROM documents WHERE id = ?", id)
		return err
	})
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanDocument(r rowScanner) (*Document, error) {
	var d Document
	var metadata sql.NullString
	err := r.Scan(&d.ID, &d.Path, &d.Filename, &d.Format, &d.Subject,
		&d.ContentHash, &d.ParseMethod, &d.Status, &d.Accepted, &d.Rejected,
		&metadata, &d.CreatedAt, &d.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	d.Metadata = metadata.String
	return &d, nil
}

// --- Question operations ---

// ReplaceQuestions swaps a document's questions and rejects for the given
// ones in a single transaction, storing a stem vector for every question.
// The document's accepted and rejected counts are updated to match.
// Returns the new question IDs in input order.
func (s *Store) ReplaceQuestions(ctx context.Context, docID int64, questions []Question, rejects []Reject) ([]int64, error) {
	ids := make([]int64, len(questions))
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		if err := deleteDocumentData(ctx, tx, docID); err != nil {
			return err
		}

		qStmt, err := tx.PrepareContext(ctx, `
			INSERT INTO questions (document_id, question_number, subject, chapter, topic, stem,
				options, correct_index, explanation, difficulty, language, source, status,
				bloom_level, tags, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		`)
		if err != nil {
			return err
		}
		defer qStmt.Close()

		vStmt, err := tx.PrepareContext(ctx,
			"INSERT INTO vec_questions (question_id, embedding) VALUES (?, ?)")
		if err != nil {
			return err
		}
		defer vStmt.Close()

		for i, q := range questions {
			options, err := json.Marshal(q.Options[:])
			if err != nil {
				return err
			}
			tags, err := json.Marshal(nonNilTags(q.Tags))
			if err != nil {
				return err
			}
			created, updated := q.CreatedAt, q.UpdatedAt
			if created.IsZero() {
				created = time.Now().UTC()
			}
			if updated.IsZero() {
				updated = created
			}

			res, err := qStmt.ExecContext(ctx, docID, q.QuestionNumber, q.Subject, q.Chapter,
				q.Topic, q.Stem, string(options), answerValue(q.CorrectIndex), q.Explanation,
				q.Difficulty, q.Language, q.Source, q.Status, q.BloomLevel, string(tags),
				created.UTC().Format(time.RFC3339), updated.UTC().Format(time.RFC3339))
			if err != nil {
				return fmt.Errorf("inserting question %d: %w", q.QuestionNumber, err)
			}
			id, err := res.LastInsertId()
			if err != nil {
				return err
			}
			ids[i] = id

			if vec := StemVector(q.Stem, s.vectorDim); vec != nil {
				if _, err := vStmt.ExecContext(ctx, id, serializeFloat32(vec)); err != nil {
					return fmt.Errorf("inserting stem vector %d: %w", q.QuestionNumber, err)
				}
			}
		}

		for _, r := range rejects {
			if _, err := tx.ExecContext(ctx,
				"INSERT INTO rejects (document_id, question_number, reasons, raw) VALUES (?, ?, ?, ?)",
				docID, r.QuestionNumber, r.Reasons, r.Raw); err != nil {
				return err
			}
		}

		_, err = tx.ExecContext(ctx, `
			UPDATE documents SET accepted = ?, rejected = ?, updated_at = CURRENT_TIMESTAMP
			WHERE id = ?`, len(questions), len(rejects), docID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return ids, nil
}

const questionColumns = `q.id, COALESCE(q.document_id, 0), q.question_number, q.subject, q.chapter,
	q.topic, q.stem, q.options, q.correct_index, COALESCE(q.explanation, ''), q.difficulty,
	COALESCE(q.language, ''), COALESCE(q.source, ''), q.status, COALESCE(q.bloom_level, ''),
	COALESCE(q.tags, '[]'), q.created_at, q.updated_at`

// GetQuestions returns a document's questions ordered by question number.
func (s *Store) GetQuestions(ctx context.Context, docID int64) ([]Question, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT "+questionColumns+`
		FROM questions q WHERE q.document_id = ? ORDER BY q.question_number, q.id`, docID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Question
	for rows.Next() {
		q, err := scanQuestion(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, q)
	}
	return out, rows.Err()
}

// GetRejects returns a document's rejected blocks ordered by question number.
func (s *Store) GetRejects(ctx context.Context, docID int64) ([]Reject, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, document_id, question_number, reasons, raw
		FROM rejects WHERE document_id = ? ORDER BY question_number, id`, docID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Reject
	for rows.Next() {
		var r Reject
		if err := rows.Scan(&r.ID, &r.DocumentID, &r.QuestionNumber, &r.Reasons, &r.Raw); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// SearchQuestions performs a full-text search over stems and options using
// FTS5 BM25 ranking. Every query word must appear.
func (s *Store) SearchQuestions(ctx context.Context, query string, limit int) ([]SearchResult, error) {
	match := ftsQuery(query)
	if match == "" {
		return nil, nil
	}
	rows, err := s.db.QueryContext(ctx, "SELECT "+questionColumns+`, f.rank, COALESCE(d.filename, '')
		FROM questions_fts f
		JOIN questions q ON q.id = f.rowid
		LEFT JOIN documents d ON d.id = q.document_id
		WHERE questions_fts MATCH ?
		ORDER BY f.rank
		LIMIT ?
	`, match, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []SearchResult
	for rows.Next() {
		var rank float64
		r, err := scanResult(rows, &rank)
		if err != nil {
			return nil, err
		}
		// FTS5 rank is negative (lower = better), convert to positive score
		r.Score = -rank
		results = append(results, r)
	}
	return results, rows.Err()
}

// SimilarQuestions returns the k stored questions whose stems are nearest to
// stem by cosine similarity of their stem vectors.
func (s *Store) SimilarQuestions(ctx context.Context, stem string, k int) ([]SearchResult, error) {
	vec := StemVector(stem, s.vectorDim)
	if vec == nil || k <= 0 {
		return nil, nil
	}
	rows, err := s.db.QueryContext(ctx, "SELECT "+questionColumns+`, v.distance, COALESCE(d.filename, '')
		FROM vec_questions v
		JOIN questions q ON q.id = v.question_id
		LEFT JOIN documents d ON d.id = q.document_id
		WHERE v.embedding MATCH ? AND k = ?
		ORDER BY v.distance
	`, serializeFloat32(vec), k)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []SearchResult
	for rows.Next() {
		var distance float64
		r, err := scanResult(rows, &distance)
		if err != nil {
			return nil, err
		}
		r.Score = 1.0 - distance
		results = append(results, r)
	}
	return results, rows.Err()
}

func scanQuestion(r rowScanner, extra ...any) (Question, error) {
	var q Question
	var options, tags, created, updated string
	var answer sql.NullInt64
	dest := []any{&q.ID, &q.DocumentID, &q.QuestionNumber, &q.Subject, &q.Chapter,
		&q.Topic, &q.Stem, &options, &answer, &q.Explanation, &q.Difficulty,
		&q.Language, &q.Source, &q.Status, &q.BloomLevel, &tags, &created, &updated}
	if err := r.Scan(append(dest, extra...)...); err != nil {
		return q, err
	}

	var opts []string
	if err := json.Unmarshal([]byte(options), &opts); err != nil {
		return q, fmt.Errorf("decoding options of question %d: %w", q.ID, err)
	}
	copy(q.Options[:], opts)
	if err := json.Unmarshal([]byte(tags), &q.Tags); err != nil {
		return q, fmt.Errorf("decoding tags of question %d: %w", q.ID, err)
	}
	q.CorrectIndex = -1
	if answer.Valid {
		q.CorrectIndex = int(answer.Int64)
	}
	q.CreatedAt = parseTime(created)
	q.UpdatedAt = parseTime(updated)
	return q, nil
}

func scanResult(r rowScanner, score *float64) (SearchResult, error) {
	var res SearchResult
	q, err := scanQuestion(r, score, &res.Filename)
	if err != nil {
		return res, err
	}
	res.Question = q
	return res, nil
}

// --- Stats ---

// DBStats holds counts of key database objects.
type DBStats struct {
	Documents int `json:"documents"`
	Questions int `json:"questions"`
	Vectors   int `json:"vectors"`
	Rejects   int `json:"rejects"`
}

// DBStats returns counts of documents, questions, stem vectors, and rejects.
func (s *Store) DBStats(ctx context.Context) (*DBStats, error) {
	stats := &DBStats{}
	queries := []struct {
		query string
		dest  *int
	}{
		{"SELECT COUNT(*) FROM documents", &stats.Documents},
		{"SELECT COUNT(*) FROM questions", &stats.Questions},
		{"SELECT COUNT(*) FROM vec_questions", &stats.Vectors},
		{"SELECT COUNT(*) FROM rejects", &stats.Rejects},
	}
	for _, q := range queries {
		if err := s.db.QueryRowContext(ctx, q.query).Scan(q.dest); err != nil {
			return nil, fmt.Errorf("counting %s: %w", q.query, err)
		}
	}
	return stats, nil
}

// --- helpers ---

func deleteDocumentData(ctx context.Context, tx *sql.Tx, docID int64) error {
	if _, err := tx.ExecContext(ctx, `
		DELETE FROM vec_questions WHERE question_id IN (
			SELECT id FROM questions WHERE document_id = ?
		)`, docID); err != nil {
		return err
	}
	// Triggers clean up FTS.
	if _, err := tx.ExecContext(ctx, "DELETE FROM questions WHERE document_id = ?", docID); err != nil {
		return err
	}
	_, err := tx.ExecContext(ctx, "DELETE FROM rejects WHERE document_id = ?", docID)
	return err
}

func (s *Store) inTx(ctx context.Context, fn func(*sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	if err := fn(tx); err != nil {
		tx.Rollback()
		return err
	}
	return tx.Commit()
}

// ftsQuery quotes every word of a free-text query so FTS5 operators and
// punctuation in it are matched literally.
func ftsQuery(q string) string {
	var terms []string
	for _, w := range strings.Fields(q) {
		w = strings.ReplaceAll(w, `"`, "")
		if w != "" {
			terms = append(terms, `"`+w+`"`)
		}
	}
	return strings.Join(terms, " ")
}

func answerValue(i int) any {
	if i < 0 || i > 3 {
		return nil
	}
	return i
}

func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func nonNilTags(tags []string) []string {
	if tags == nil {
		return []string{}
	}
	return tags
}

func parseTime(s string) time.Time {
	for _, layout := range []string{time.RFC3339, "2006-01-02 15:04:05"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return time.Time{}
}

// serializeFloat32 converts a float32 slice to little-endian bytes for sqlite-vec.
func serializeFloat32(v []float32) []byte {
	buf := make([]byte, len(v)*4)
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf
}
