package qbank

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestDefaultConfigIsValid(t *testing.T) {
	cfg := DefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("DefaultConfig().Validate() = %v", err)
	}
	if cfg.AnswerPolicy != "reject" || cfg.MinChars != 200 || cfg.MinStemTokens != 4 {
		t.Errorf("unexpected defaults: %+v", cfg)
	}
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"three columns", func(c *Config) { c.Columns = 3 }},
		{"negative padding", func(c *Config) { c.ColumnPadding = -1 }},
		{"reading order", func(c *Config) { c.ReadingOrder = "top-down" }},
		{"answer policy", func(c *Config) { c.AnswerPolicy = "guess" }},
		{"running share", func(c *Config) { c.RunningLineShare = 1.5 }},
		{"negative tokens", func(c *Config) { c.MinStemTokens = -1 }},
		{"negative workers", func(c *Config) { c.DocumentConcurrency = -2 }},
		{"blank marker", func(c *Config) { c.SolutionMarkers = []string{"Sol.", " "} }},
		{"negative timeout", func(c *Config) { c.OCR.Timeout = -time.Second }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)
			if err := cfg.Validate(); !errors.Is(err, ErrInvalidConfig) {
				t.Errorf("Validate() = %v, want ErrInvalidConfig", err)
			}
		})
	}
}

func TestLoadConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "qbank.yaml")
	data := `
columns: 2
column_padding: 12
reading_order: rtl
answer_policy: allow
solution_markers: ["Sol.", "Hint"]
ocr:
  language: eng+hin
  timeout: 90s
`
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatal(err)
	}
	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Columns != 2 || cfg.ColumnPadding != 12 || cfg.ReadingOrder != "rtl" || cfg.AnswerPolicy != "allow" {
		t.Errorf("layout fields = %+v", cfg)
	}
	if len(cfg.SolutionMarkers) != 2 || cfg.SolutionMarkers[1] != "Hint" {
		t.Errorf("markers = %v", cfg.SolutionMarkers)
	}
	if cfg.OCR.Language != "eng+hin" || cfg.OCR.Timeout != 90*time.Second {
		t.Errorf("ocr = %+v", cfg.OCR)
	}
	// Keys absent from the file keep their defaults.
	if cfg.MinChars != 200 || !cfg.OCR.Enabled || cfg.DBName != AppName {
		t.Errorf("defaults lost: %+v", cfg)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("loaded config invalid: %v", err)
	}
}

func TestLoadConfigErrors(t *testing.T) {
	if _, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml")); !errors.Is(err, ErrConfigNotFound) {
		t.Errorf("missing file: %v", err)
	}
	bad := filepath.Join(t.TempDir(), "bad.yaml")
	os.WriteFile(bad, []byte("columns: [1, 2"), 0o644)
	if _, err := LoadConfig(bad); !errors.Is(err, ErrInvalidConfig) {
		t.Errorf("malformed file: %v", err)
	}
}

func TestApplyEnv(t *testing.T) {
	env := map[string]string{
		"QBANK_DB_PATH":       "/tmp/q.db",
		"QBANK_COLUMNS":       "2",
		"QBANK_ANSWER_POLICY": "allow",
		"QBANK_OCR":           "false",
	}
	lookup := func(k string) (string, bool) {
		v, ok := env[k]
		return v, ok
	}
	cfg := DefaultConfig()
	if err := cfg.ApplyEnv(lookup); err != nil {
		t.Fatal(err)
	}
	if cfg.DBPath != "/tmp/q.db" || cfg.Columns != 2 || cfg.AnswerPolicy != "allow" || cfg.OCR.Enabled {
		t.Errorf("after ApplyEnv: %+v", cfg)
	}

	env["QBANK_COLUMNS"] = "two"
	if err := cfg.ApplyEnv(lookup); !errors.Is(err, ErrInvalidConfig) {
		t.Errorf("bad int: %v", err)
	}
}

func TestResolveDBPath(t *testing.T) {
	cfg := DefaultConfig()
	if got := cfg.ResolveDBPath(); !strings.HasSuffix(got, filepath.Join(AppName, "qbank.db")) {
		t.Errorf("default path = %q", got)
	}
	cfg.StorageDir = "local"
	cfg.DBName = "neet"
	if got := cfg.ResolveDBPath(); got != "neet.db" {
		t.Errorf("local path = %q", got)
	}
	cfg.DBPath = "/data/x.db"
	if got := cfg.ResolveDBPath(); got != "/data/x.db" {
		t.Errorf("explicit path = %q", got)
	}
}
