package importer

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/xuri/excelize/v2"
)

func TestParseEng(t *testing.T) {
	tests := []struct {
		name    string
		text    string
		stem    string
		options [4]string
		ok      bool
	}{
		{
			name:    "dotted labels on one line",
			text:    "Which is a noble gas? A. Neon B. Sodium C. Iron D. Carbon",
			stem:    "Which is a noble gas?",
			options: [4]string{"Neon", "Sodium", "Iron", "Carbon"},
			ok:      true,
		},
		{
			name:    "parenthesis labels across lines",
			text:    "The unit of force is\nA) newton\nB) joule\nC) watt\nD) pascal",
			stem:    "The unit of force is",
			options: [4]string{"newton", "joule", "watt", "pascal"},
			ok:      true,
		},
		{
			name:    "colon and space labels",
			text:    "  Pick the\nprime number  A: 4 B: 6 C 7 D: 9 ",
			stem:    "Pick the prime number",
			options: [4]string{"4", "6", "7", "9"},
			ok:      true,
		},
		{
			name: "two options only",
			text: "What is this? A. x B. y",
		},
		{
			name: "empty",
			text: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			stem, opts, ok := ParseEng(tt.text)
			if ok != tt.ok {
				t.Fatalf("ok = %v, want %v", ok, tt.ok)
			}
			if !ok {
				return
			}
			if stem != tt.stem {
				t.Errorf("stem = %q, want %q", stem, tt.stem)
			}
			if opts != tt.options {
				t.Errorf("options = %q, want %q", opts, tt.options)
			}
		})
	}
}

func TestCleanOption(t *testing.T) {
	tests := map[string]string{
		"A. Neon":        "Neon",
		"(B) joule":      "joule",
		"(b)joule":       "joule",
		"C ) watt":       "watt",
		"- D - pascal":   "pascal",
		"  . stray  dot": "stray dot",
		"a cat":          "a cat",
		"1 kg":           "1 kg",
		"1.5 kg":         "1.5 kg",
		"Apple":          "Apple",
	}
	for in, want := range tests {
		if got := CleanOption(in); got != want {
			t.Errorf("CleanOption(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestParseCSV(t *testing.T) {
	data := "id,eng,Subject\n" +
		"1,\"Which is a noble gas? A. Neon B. Sodium C. Iron D. Carbon\",Chemistry\n" +
		"2,not a question at all,Physics\n" +
		"3,\"The unit of force is\nA) newton\nB) joule\nC) watt\nD) pascal\",\n"

	res, err := ParseCSV(strings.NewReader(data))
	if err != nil {
		t.Fatal(err)
	}
	if res.Total != 3 {
		t.Errorf("Total = %d, want 3", res.Total)
	}
	if len(res.Rows) != 2 {
		t.Fatalf("Rows = %d, want 2", len(res.Rows))
	}
	if res.Rows[0].Subject != "Chemistry" || res.Rows[0].Line != 2 {
		t.Errorf("row 0 = %+v", res.Rows[0])
	}
	if res.Rows[1].Subject != DefaultSubject {
		t.Errorf("blank subject = %q, want %q", res.Rows[1].Subject, DefaultSubject)
	}
	if len(res.Failures) != 1 || res.Failures[0].Line != 3 || res.Failures[0].Subject != "Physics" {
		t.Errorf("Failures = %+v", res.Failures)
	}
}

func TestParseCSVHeader(t *testing.T) {
	if _, err := ParseCSV(strings.NewReader("question,subject\nx,y\n")); !errors.Is(err, ErrMissingColumns) {
		t.Errorf("err = %v, want ErrMissingColumns", err)
	}
	if _, err := ParseCSV(strings.NewReader("")); !errors.Is(err, ErrMissingColumns) {
		t.Errorf("empty input err = %v", err)
	}
	res, err := ParseCSV(strings.NewReader("\ufeffENG,subject\n"))
	if err != nil || res.Total != 0 {
		t.Errorf("bom header: %+v, %v", res, err)
	}
}

func TestParseXLSX(t *testing.T) {
	f := excelize.NewFile()
	defer f.Close()
	sheet := f.GetSheetName(0)
	rows := [][]any{
		{"Subject", "eng"},
		{"Biology", "The powerhouse of the cell is A. nucleus B. mitochondria C. ribosome D. vacuole"},
		{},
		{"Physics", "no options here"},
	}
	for i, r := range rows {
		cell, _ := excelize.CoordinatesToCellName(1, i+1)
		if err := f.SetSheetRow(sheet, cell, &r); err != nil {
			t.Fatal(err)
		}
	}
	var buf bytes.Buffer
	if _, err := f.WriteTo(&buf); err != nil {
		t.Fatal(err)
	}

	res, err := ParseXLSX(&buf)
	if err != nil {
		t.Fatal(err)
	}
	if res.Total != 2 {
		t.Errorf("Total = %d, want 2 (blank rows skipped)", res.Total)
	}
	if len(res.Rows) != 1 || res.Rows[0].Options[1] != "mitochondria" || res.Rows[0].Subject != "Biology" {
		t.Errorf("Rows = %+v", res.Rows)
	}
	if len(res.Failures) != 1 || res.Failures[0].Line != 4 {
		t.Errorf("Failures = %+v", res.Failures)
	}
}

func TestParseXLSXNotWorkbook(t *testing.T) {
	if _, err := ParseXLSX(strings.NewReader("eng,Subject\n")); err == nil {
		t.Error("expected error for non-workbook input")
	}
}
