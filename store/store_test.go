//go:build cgo

package store

import (
	"context"
	"errors"
	"math"
	"path/filepath"
	"testing"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	s, err := New(dbPath, 64)
	if err != nil {
		t.Fatalf("creating store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// ---------------------------------------------------------------------------
// Schema / construction
// ---------------------------------------------------------------------------

func TestNew(t *testing.T) {
	s := newTestStore(t)
	if s.VectorDim() != 64 {
		t.Fatalf("expected vector dim 64, got %d", s.VectorDim())
	}
	if s.DB() == nil {
		t.Fatal("expected non-nil *sql.DB")
	}
}

func TestNewDefaultsVectorDim(t *testing.T) {
	s, err := New(filepath.Join(t.TempDir(), "sub", "dir", "test.db"), 0)
	if err != nil {
		t.Fatalf("creating store in nested dir: %v", err)
	}
	defer s.Close()
	if s.VectorDim() != DefaultVectorDim {
		t.Errorf("VectorDim = %d, want %d", s.VectorDim(), DefaultVectorDim)
	}
}

func TestMigrationsRecorded(t *testing.T) {
	s := newTestStore(t)
	var version int
	if err := s.DB().QueryRow("SELECT MAX(version) FROM schema_version").Scan(&version); err != nil {
		t.Fatal(err)
	}
	if version != migrations[len(migrations)-1].version {
		t.Errorf("schema version = %d, want %d", version, migrations[len(migrations)-1].version)
	}
	// Running again is a no-op.
	if err := s.Migrate(context.Background()); err != nil {
		t.Errorf("second Migrate: %v", err)
	}
}

// ---------------------------------------------------------------------------
// Documents
// ---------------------------------------------------------------------------

func sampleDoc(path string) Document {
	return Document{
		Path:        path,
		Filename:    filepath.Base(path),
		Format:      "pdf",
		Subject:     "Physics",
		ContentHash: "abc123",
		ParseMethod: "native",
		Status:      StatusPending,
	}
}

func TestUpsertAndGetDocument(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	id, err := s.UpsertDocument(ctx, sampleDoc("/papers/phy_2022.pdf"))
	if err != nil {
		t.Fatalf("upserting document: %v", err)
	}
	if id == 0 {
		t.Fatal("expected non-zero document id")
	}

	got, err := s.GetDocumentByPath(ctx, "/papers/phy_2022.pdf")
	if err != nil {
		t.Fatalf("getting document by path: %v", err)
	}
	if got.ID != id || got.Subject != "Physics" || got.ContentHash != "abc123" {
		t.Errorf("got %+v", got)
	}

	doc := sampleDoc("/papers/phy_2022.pdf")
	doc.ContentHash = "def456"
	doc.Status = StatusReady
	id2, err := s.UpsertDocument(ctx, doc)
	if err != nil {
		t.Fatal(err)
	}
	if id2 != id {
		t.Errorf("upsert changed id: %d -> %d", id, id2)
	}
	got, _ = s.GetDocument(ctx, id)
	if got.ContentHash != "def456" || got.Status != StatusReady {
		t.Errorf("after update: %+v", got)
	}
}

func TestGetDocumentNotFound(t *testing.T) {
	s := newTestStore(t)
	if _, err := s.GetDocumentByPath(context.Background(), "/missing.pdf"); !errors.Is(err, ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
	if _, err := s.GetDocument(context.Background(), 99); !errors.Is(err, ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestListDocuments(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	for _, p := range []string{"/a.pdf", "/b.pdf", "/c.txt"} {
		if _, err := s.UpsertDocument(ctx, sampleDoc(p)); err != nil {
			t.Fatal(err)
		}
	}
	docs, err := s.ListDocuments(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(docs) != 3 {
		t.Fatalf("got %d documents, want 3", len(docs))
	}
	if docs[0].Path != "/c.txt" {
		t.Errorf("newest first: got %q", docs[0].Path)
	}
}

// ---------------------------------------------------------------------------
// Questions
// ---------------------------------------------------------------------------

func sampleQuestions() []Question {
	return []Question{
		{
			QuestionNumber: 1,
			Subject:        "Physics",
			Chapter:        "Kinematics",
			Topic:          "Motion in a straight line",
			Stem:           "A car accelerates uniformly from rest to a velocity of 20 m/s",
			Options:        [4]string{"2 s", "4 s", "5 s", "10 s"},
			CorrectIndex:   2,
			Explanation:    "Sol. Answer (3)",
			Difficulty:     3,
			Language:       "English",
			Source:         "phy_2022.pdf",
			Status:         "active",
			BloomLevel:     "Apply",
			Tags:           []string{"phy-2022-pdf", "physics"},
		},
		{
			QuestionNumber: 2,
			Subject:        "Physics",
			Chapter:        "Optics",
			Topic:          "Ray optics",
			Stem:           "The focal length of a convex lens in water compared to air",
			Options:        [4]string{"increases", "decreases", "unchanged", "zero"},
			CorrectIndex:   -1,
			Status:         "active",
		},
	}
}

func TestReplaceAndGetQuestions(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	docID, _ := s.UpsertDocument(ctx, sampleDoc("/phy_2022.pdf"))

	rejects := []Reject{{QuestionNumber: 3, Reasons: "option_count_mismatch(3)", Raw: "3. Broken\n(1) a"}}
	ids, err := s.ReplaceQuestions(ctx, docID, sampleQuestions(), rejects)
	if err != nil {
		t.Fatalf("ReplaceQuestions: %v", err)
	}
	if len(ids) != 2 || ids[0] == 0 || ids[1] == 0 {
		t.Fatalf("ids = %v", ids)
	}

	qs, err := s.GetQuestions(ctx, docID)
	if err != nil {
		t.Fatal(err)
	}
	if len(qs) != 2 {
		t.Fatalf("got %d questions, want 2", len(qs))
	}
	if qs[0].Options[2] != "5 s" || qs[0].CorrectIndex != 2 || qs[0].Chapter != "Kinematics" {
		t.Errorf("question 1 = %+v", qs[0])
	}
	if len(qs[0].Tags) != 2 || qs[0].Tags[1] != "physics" {
		t.Errorf("tags = %v", qs[0].Tags)
	}
	if qs[0].CreatedAt.IsZero() {
		t.Error("created_at not set")
	}
	if qs[1].CorrectIndex != -1 {
		t.Errorf("unknown answer read back as %d", qs[1].CorrectIndex)
	}

	var nulls int
	s.DB().QueryRow("SELECT COUNT(*) FROM questions WHERE correct_index IS NULL").Scan(&nulls)
	if nulls != 1 {
		t.Errorf("unknown answers stored as NULL: got %d rows", nulls)
	}

	rj, err := s.GetRejects(ctx, docID)
	if err != nil || len(rj) != 1 || rj[0].Reasons != "option_count_mismatch(3)" {
		t.Errorf("rejects = %+v, %v", rj, err)
	}

	doc, _ := s.GetDocument(ctx, docID)
	if doc.Accepted != 2 || doc.Rejected != 1 {
		t.Errorf("counts = %d/%d, want 2/1", doc.Accepted, doc.Rejected)
	}
}

func TestReplaceQuestionsClearsPrevious(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	docID, _ := s.UpsertDocument(ctx, sampleDoc("/phy.pdf"))

	if _, err := s.ReplaceQuestions(ctx, docID, sampleQuestions(), nil); err != nil {
		t.Fatal(err)
	}
	if _, err := s.ReplaceQuestions(ctx, docID, sampleQuestions()[:1], nil); err != nil {
		t.Fatal(err)
	}

	stats, err := s.DBStats(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if stats.Questions != 1 || stats.Vectors != 1 || stats.Documents != 1 {
		t.Errorf("stats = %+v", stats)
	}
	if res, _ := s.SearchQuestions(ctx, "convex lens", 10); len(res) != 0 {
		t.Errorf("stale FTS rows: %+v", res)
	}
}

func TestDeleteDocument(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	docID, _ := s.UpsertDocument(ctx, sampleDoc("/phy.pdf"))
	s.ReplaceQuestions(ctx, docID, sampleQuestions(), []Reject{{QuestionNumber: 9, Reasons: "bad_stem", Raw: "9."}})

	if err := s.DeleteDocument(ctx, docID); err != nil {
		t.Fatal(err)
	}
	stats, _ := s.DBStats(ctx)
	if *stats != (DBStats{}) {
		t.Errorf("stats after delete = %+v", stats)
	}
}

func TestSearchQuestions(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	docID, _ := s.UpsertDocument(ctx, sampleDoc("/phy.pdf"))
	s.ReplaceQuestions(ctx, docID, sampleQuestions(), nil)

	tests := []struct {
		query string
		want  int // question number of the top hit, 0 for none
	}{
		{"convex lens", 2},
		{"accelerates", 1},
		{"decreases", 2}, // options are indexed
		{`velocity "rest`, 1},
		{"quantum", 0},
		{"   ", 0},
	}
	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			res, err := s.SearchQuestions(ctx, tt.query, 5)
			if err != nil {
				t.Fatalf("SearchQuestions: %v", err)
			}
			if tt.want == 0 {
				if len(res) != 0 {
					t.Errorf("expected no results, got %d", len(res))
				}
				return
			}
			if len(res) == 0 || res[0].QuestionNumber != tt.want {
				t.Fatalf("results = %+v", res)
			}
			if res[0].Filename != "phy.pdf" || res[0].Score <= 0 {
				t.Errorf("result metadata = %q score %v", res[0].Filename, res[0].Score)
			}
		})
	}
}

func TestSimilarQuestions(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	docID, _ := s.UpsertDocument(ctx, sampleDoc("/phy.pdf"))
	s.ReplaceQuestions(ctx, docID, sampleQuestions(), nil)

	res, err := s.SimilarQuestions(ctx, "A car accelerates uniformly from rest to a velocity of 30 m/s", 2)
	if err != nil {
		t.Fatalf("SimilarQuestions: %v", err)
	}
	if len(res) != 2 {
		t.Fatalf("got %d results, want 2", len(res))
	}
	if res[0].QuestionNumber != 1 {
		t.Errorf("nearest = Q%d, want Q1", res[0].QuestionNumber)
	}
	if res[0].Score <= res[1].Score {
		t.Errorf("scores not descending: %v, %v", res[0].Score, res[1].Score)
	}

	if res, err := s.SimilarQuestions(ctx, "?!", 2); err != nil || res != nil {
		t.Errorf("wordless stem = %v, %v", res, err)
	}
}

// ---------------------------------------------------------------------------
// Stem vectors
// ---------------------------------------------------------------------------

func TestStemVector(t *testing.T) {
	v := StemVector("Find the value of g on Mars", 32)
	if len(v) != 32 {
		t.Fatalf("len = %d", len(v))
	}
	var norm float64
	for _, x := range v {
		norm += float64(x) * float64(x)
	}
	if math.Abs(norm-1) > 1e-5 {
		t.Errorf("norm = %v, want 1", norm)
	}

	same := StemVector("find THE value of g, on Mars!", 32)
	for i := range v {
		if v[i] != same[i] {
			t.Fatal("case and punctuation should not change the vector")
		}
	}

	if StemVector("", 32) != nil || StemVector("words", 0) != nil {
		t.Error("expected nil for empty text or zero dim")
	}
}

func TestFTSQuery(t *testing.T) {
	tests := []struct{ in, want string }{
		{"convex lens", `"convex" "lens"`},
		{`a "b" OR`, `"a" "b" "OR"`},
		{`""`, ""},
		{"", ""},
	}
	for _, tt := range tests {
		if got := ftsQuery(tt.in); got != tt.want {
			t.Errorf("ftsQuery(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestFinishDocument(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	id, _ := s.UpsertDocument(ctx, sampleDoc("/scan.pdf"))
	if err := s.FinishDocument(ctx, id, StatusReady, "ocr", `{"pages":"3"}`); err != nil {
		t.Fatal(err)
	}
	got, _ := s.GetDocument(ctx, id)
	if got.Status != StatusReady || got.ParseMethod != "ocr" || got.Metadata != `{"pages":"3"}` {
		t.Errorf("got %+v", got)
	}
}
