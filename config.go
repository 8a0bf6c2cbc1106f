package qbank

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/adrg/xdg"
	"gopkg.in/yaml.v3"

	"github.com/brunobiangulo/qbank/extract"
	"github.com/brunobiangulo/qbank/layout"
	"github.com/brunobiangulo/qbank/normalize"
	"github.com/brunobiangulo/qbank/ocr"
	"github.com/brunobiangulo/qbank/parser"
	"github.com/brunobiangulo/qbank/pipeline"
	"github.com/brunobiangulo/qbank/segment"
	"github.com/brunobiangulo/qbank/store"
	"github.com/brunobiangulo/qbank/validate"
)

// AppName names the storage directory and the default database.
const AppName = "qbank"

// ErrConfigNotFound is returned by LoadConfig when the file does not exist.
var ErrConfigNotFound = errors.New("qbank: configuration file not found")

// Config holds all configuration for the qbank engine.
type Config struct {
	// DBPath is the full path to the SQLite database file.
	// If empty, defaults to <storage dir>/<DBName>.db
	DBPath string `json:"db_path" yaml:"db_path"`

	// DBName is the database file name without extension. Defaults to "qbank".
	DBName string `json:"db_name" yaml:"db_name"`

	// StorageDir controls where the database is created when DBPath is not
	// set: "data" (default) uses the XDG data home, "local" the working
	// directory.
	StorageDir string `json:"storage_dir" yaml:"storage_dir"`

	// VectorDim is the size of the stem vectors used for similarity lookup.
	VectorDim int `json:"vector_dim" yaml:"vector_dim"`

	// Page layout
	Columns       int     `json:"columns" yaml:"columns"`               // 1 or 2
	ColumnPadding float64 `json:"column_padding" yaml:"column_padding"` // points removed on each side of the gutter
	ReadingOrder  string  `json:"reading_order" yaml:"reading_order"`   // ltr or rtl

	// RunningLineShare is the share of pages a header or footer line must
	// recur on to be stripped. Zero disables stripping.
	RunningLineShare float64 `json:"running_line_share" yaml:"running_line_share"`

	// MinChars is the document length under which text counts as sparse and
	// OCR is tried.
	MinChars int `json:"min_chars" yaml:"min_chars"`

	// Extraction
	MinStemTokens          int      `json:"min_stem_tokens" yaml:"min_stem_tokens"`
	SolutionMarkers        []string `json:"solution_markers" yaml:"solution_markers"`
	ExplanationAfterAnswer bool     `json:"explanation_after_answer" yaml:"explanation_after_answer"`
	Monotonic              bool     `json:"monotonic" yaml:"monotonic"`

	// AnswerPolicy is "reject" (default) or "allow" for questions whose
	// answer could not be resolved.
	AnswerPolicy string `json:"answer_policy" yaml:"answer_policy"`

	// Workers
	Concurrency         int `json:"concurrency" yaml:"concurrency"`                   // block workers per document
	DocumentConcurrency int `json:"document_concurrency" yaml:"document_concurrency"` // documents extracted at once

	OCR OCRConfig `json:"ocr" yaml:"ocr"`
}

// OCRConfig configures the fallback for scanned papers.
type OCRConfig struct {
	Enabled  bool          `json:"enabled" yaml:"enabled"`
	Language string        `json:"language" yaml:"language"`
	DPI      float64       `json:"dpi" yaml:"dpi"`
	Timeout  time.Duration `json:"timeout" yaml:"timeout"`
}

// DefaultConfig returns a Config with sensible defaults. The database is
// stored in the XDG data home by default.
func DefaultConfig() Config {
	ext := extract.DefaultConfig()
	return Config{
		DBName:              AppName,
		StorageDir:          "data",
		VectorDim:           store.DefaultVectorDim,
		Columns:             1,
		ReadingOrder:        string(layout.LeftToRight),
		RunningLineShare:    0.6,
		MinChars:            normalize.DefaultMinChars,
		MinStemTokens:       ext.MinStemTokens,
		SolutionMarkers:     ext.SolutionMarkers,
		AnswerPolicy:        string(validate.Reject),
		DocumentConcurrency: 4,
		OCR: OCRConfig{
			Enabled:  true,
			Language: ocr.DefaultLanguage,
			DPI:      ocr.DefaultDPI,
			Timeout:  5 * time.Minute,
		},
	}
}

// LoadConfig reads a YAML (or JSON) file over DefaultConfig. Keys missing
// from the file keep their defaults.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, fmt.Errorf("%w: %s", ErrConfigNotFound, path)
		}
		return cfg, err
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("%w: %s: %v", ErrInvalidConfig, path, err)
	}
	return cfg, nil
}

// Validate checks every field and returns the first problem found.
func (c Config) Validate() error {
	if c.Columns < 0 || c.Columns > 2 {
		return fmt.Errorf("%w: columns must be 1 or 2, got %d", ErrInvalidConfig, c.Columns)
	}
	if c.ColumnPadding < 0 {
		return fmt.Errorf("%w: column_padding must not be negative", ErrInvalidConfig)
	}
	if _, err := layout.ParseReadingOrder(c.ReadingOrder); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	if _, err := validate.ParsePolicy(c.AnswerPolicy); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	if c.RunningLineShare < 0 || c.RunningLineShare > 1 {
		return fmt.Errorf("%w: running_line_share must be within [0, 1]", ErrInvalidConfig)
	}
	if c.MinStemTokens < 0 || c.MinChars < 0 || c.VectorDim < 0 {
		return fmt.Errorf("%w: min_stem_tokens, min_chars and vector_dim must not be negative", ErrInvalidConfig)
	}
	if c.Concurrency < 0 || c.DocumentConcurrency < 0 {
		return fmt.Errorf("%w: concurrency must not be negative", ErrInvalidConfig)
	}
	for _, m := range c.SolutionMarkers {
		if strings.TrimSpace(m) == "" {
			return fmt.Errorf("%w: blank solution marker", ErrInvalidConfig)
		}
	}
	if c.OCR.Timeout < 0 {
		return fmt.Errorf("%w: ocr.timeout must not be negative", ErrInvalidConfig)
	}
	return nil
}

// ApplyEnv overrides fields from QBANK_* environment variables read through
// lookup, normally os.LookupEnv.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) error {
	str := map[string]*string{
		"QBANK_DB_PATH":       &c.DBPath,
		"QBANK_STORAGE_DIR":   &c.StorageDir,
		"QBANK_READING_ORDER": &c.ReadingOrder,
		"QBANK_ANSWER_POLICY": &c.AnswerPolicy,
		"QBANK_OCR_LANGUAGE":  &c.OCR.Language,
	}
	for key, dst := range str {
		if v, ok := lookup(key); ok && v != "" {
			*dst = v
		}
	}

	ints := map[string]*int{
		"QBANK_COLUMNS":         &c.Columns,
		"QBANK_MIN_STEM_TOKENS": &c.MinStemTokens,
		"QBANK_CONCURRENCY":     &c.Concurrency,
	}
	for key, dst := range ints {
		if v, ok := lookup(key); ok && v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				return fmt.Errorf("%w: %s=%q", ErrInvalidConfig, key, v)
			}
			*dst = n
		}
	}

	if v, ok := lookup("QBANK_OCR"); ok && v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("%w: QBANK_OCR=%q", ErrInvalidConfig, v)
		}
		c.OCR.Enabled = b
	}
	return nil
}

// ResolveDBPath computes the final database path from config fields.
func (c Config) ResolveDBPath() string {
	if c.DBPath != "" {
		return c.DBPath
	}

	name := c.DBName
	if name == "" {
		name = AppName
	}

	switch c.StorageDir {
	case "local", "cwd":
		return name + ".db"
	default:
		return filepath.Join(xdg.DataHome, AppName, name+".db")
	}
}

func (c Config) layout() parser.Layout {
	order, _ := layout.ParseReadingOrder(c.ReadingOrder)
	return parser.Layout{Columns: c.Columns, Padding: c.ColumnPadding, Order: order}
}

func (c Config) pipelineConfig() pipeline.Config {
	policy, _ := validate.ParsePolicy(c.AnswerPolicy)
	return pipeline.Config{
		Segment: segment.Config{Monotonic: c.Monotonic},
		Extract: extract.Config{
			SolutionMarkers:        c.SolutionMarkers,
			MinStemTokens:          c.MinStemTokens,
			ExplanationAfterAnswer: c.ExplanationAfterAnswer,
		},
		Policy:      policy,
		Concurrency: c.Concurrency,
	}
}

func (c Config) ocrOptions() ocr.Options {
	return ocr.Options{Language: c.OCR.Language, DPI: c.OCR.DPI}
}
