package export

import (
	"bytes"
	"encoding/csv"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/xuri/excelize/v2"
)

func sampleRows() []Row {
	now := time.Date(2022, 7, 17, 10, 0, 0, 0, time.UTC)
	a := NewRow("Physics", "NEET 2022", now)
	a.Chapter, a.Topic = "Optics", "Geometrical Optics"
	a.Stem = "A convex lens of focal length 20 cm forms"
	a.Options = [4]string{"a real image", "a virtual image", "no image", "two images"}
	a.CorrectIndex = 0
	a.Explanation = "Sol. Answer (1) u > f"

	b := NewRow("Biology", "NEET 2022", now)
	b.Stem = "Which organelle is the powerhouse of the cell?"
	b.Options = [4]string{"Nucleus", "Mitochondria", "Ribosome", "Golgi"}

	rows := []Row{a, b}
	NewSequence(500).Assign(rows)
	return rows
}

func TestRowRecord(t *testing.T) {
	rows := sampleRows()
	rec := rows[0].Record()
	if len(rec) != len(Header) {
		t.Fatalf("record has %d fields, header %d", len(rec), len(Header))
	}
	col := func(name string) string {
		for i, h := range Header {
			if h == name {
				return rec[i]
			}
		}
		t.Fatalf("no column %q", name)
		return ""
	}

	checks := map[string]string{
		"id":            "501",
		"correct_index": "0",
		"options":       `["a real image","a virtual image","no image","two images"]`,
		"explanation":   `{"text":"Sol. Answer (1) u > f"}`,
		"difficulty":    "3",
		"language":      "English",
		"status":        "active",
		"bloom_level":   "Apply",
		"tags":          `["neet-2022","physics"]`,
		"created_at":    "2022-07-17T10:00:00Z",
	}
	for name, want := range checks {
		if got := col(name); got != want {
			t.Errorf("%s = %q, want %q", name, got, want)
		}
	}

	unknown := rows[1].Record()
	if unknown[6] != "" {
		t.Errorf("unknown answer written as %q, want empty cell", unknown[6])
	}
	if rows[1].ID != 502 {
		t.Errorf("second id = %d, want 502", rows[1].ID)
	}
}

func TestTags(t *testing.T) {
	got := Tags("Kaggle import", " Chemistry ")
	if len(got) != 2 || got[0] != "kaggle-import" || got[1] != "chemistry" {
		t.Errorf("Tags = %q", got)
	}
	if got := Tags("", ""); len(got) != 0 {
		t.Errorf("Tags of empty = %q", got)
	}
}

func TestSequenceConcurrent(t *testing.T) {
	seq := NewSequence(0)
	var wg sync.WaitGroup
	seen := make(chan int64, 100)
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			seen <- seq.Next()
		}()
	}
	wg.Wait()
	close(seen)
	ids := make(map[int64]bool)
	for id := range seen {
		if ids[id] {
			t.Fatalf("duplicate id %d", id)
		}
		ids[id] = true
	}
	if len(ids) != 100 || !ids[1] || !ids[100] {
		t.Errorf("ids not 1..100")
	}
}

func TestCSVExporter(t *testing.T) {
	var buf bytes.Buffer
	if err := (CSVExporter{}).Export(&buf, sampleRows()); err != nil {
		t.Fatal(err)
	}
	records, err := csv.NewReader(&buf).ReadAll()
	if err != nil {
		t.Fatal(err)
	}
	if len(records) != 3 {
		t.Fatalf("got %d records, want 3", len(records))
	}
	if records[0][0] != "id" || records[1][0] != "501" || records[2][1] != "Biology" {
		t.Errorf("records = %q", records)
	}
}

func TestXLSXExporter(t *testing.T) {
	var buf bytes.Buffer
	if err := (XLSXExporter{}).Export(&buf, sampleRows()); err != nil {
		t.Fatal(err)
	}
	f, err := excelize.OpenReader(&buf)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()

	rows, err := f.GetRows(DefaultSheet)
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 3 {
		t.Fatalf("got %d rows, want 3", len(rows))
	}
	if rows[0][4] != "stem" || rows[2][4] != "Which organelle is the powerhouse of the cell?" {
		t.Errorf("rows = %q", rows)
	}
}

func TestWriteFile(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"out.csv", "out.xlsx"} {
		if err := WriteFile(filepath.Join(dir, name), sampleRows()); err != nil {
			t.Errorf("WriteFile(%s): %v", name, err)
		}
	}
	if err := WriteFile(filepath.Join(dir, "out.json"), nil); !errors.Is(err, ErrUnknownFormat) {
		t.Errorf("err = %v, want ErrUnknownFormat", err)
	}
}
