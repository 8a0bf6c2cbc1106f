// Package export writes accepted questions as tabular files.
package export

import (
	"encoding/json"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"time"
)

// Row field defaults for extracted questions.
const (
	DefaultDifficulty = 3
	DefaultLanguage   = "English"
	DefaultStatus     = "active"
	DefaultBloomLevel = "Apply"
)

// Header is the column order of every exported file.
var Header = []string{
	"id", "subject", "chapter", "topic", "stem", "options", "correct_index",
	"explanation", "difficulty", "language", "source", "status", "created_by",
	"created_at", "difficulty_ai", "bloom_level", "ai_flags", "reviewed_by",
	"reviewed_at", "updated_at", "tags",
}

// Row is one exported question. CorrectIndex below zero means the answer is
// unknown and is written as an empty cell.
type Row struct {
	ID           int64     `json:"id"`
	Subject      string    `json:"subject"`
	Chapter      string    `json:"chapter"`
	Topic        string    `json:"topic"`
	Stem         string    `json:"stem"`
	Options      [4]string `json:"options"`
	CorrectIndex int       `json:"correct_index"`
	Explanation  string    `json:"explanation"`
	Difficulty   int       `json:"difficulty"`
	Language     string    `json:"language"`
	Source       string    `json:"source"`
	Status       string    `json:"status"`
	BloomLevel   string    `json:"bloom_level"`
	Tags         []string  `json:"tags"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// NewRow fills the bookkeeping fields with their defaults.
func NewRow(subject, source string, now time.Time) Row {
	return Row{
		Subject:      subject,
		CorrectIndex: -1,
		Difficulty:   DefaultDifficulty,
		Language:     DefaultLanguage,
		Source:       source,
		Status:       DefaultStatus,
		BloomLevel:   DefaultBloomLevel,
		Tags:         Tags(source, subject),
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

var nonSlug = regexp.MustCompile(`[^a-z0-9]+`)

// Tags returns the default tags: the slug of the source and the lowercased
// subject. Empty parts are left out.
func Tags(source, subject string) []string {
	var tags []string
	if s := strings.Trim(nonSlug.ReplaceAllString(strings.ToLower(source), "-"), "-"); s != "" {
		tags = append(tags, s)
	}
	if s := strings.ToLower(strings.TrimSpace(subject)); s != "" {
		tags = append(tags, s)
	}
	return tags
}

// OptionsJSON returns the options as a JSON array.
func (r Row) OptionsJSON() string { return mustJSON(r.Options[:]) }

// ExplanationJSON returns the explanation wrapped as {"text": ...}.
func (r Row) ExplanationJSON() string {
	return mustJSON(map[string]string{"text": r.Explanation})
}

// TagsJSON returns the tags as a JSON array.
func (r Row) TagsJSON() string {
	if r.Tags == nil {
		return "[]"
	}
	return mustJSON(r.Tags)
}

// HasAnswer reports whether CorrectIndex names an option.
func (r Row) HasAnswer() bool { return r.CorrectIndex >= 0 && r.CorrectIndex <= 3 }

// Record returns the row as strings in Header order.
func (r Row) Record() []string {
	answer := ""
	if r.HasAnswer() {
		answer = strconv.Itoa(r.CorrectIndex)
	}
	return []string{
		strconv.FormatInt(r.ID, 10),
		r.Subject,
		r.Chapter,
		r.Topic,
		r.Stem,
		r.OptionsJSON(),
		answer,
		r.ExplanationJSON(),
		strconv.Itoa(r.Difficulty),
		r.Language,
		r.Source,
		r.Status,
		"",
		formatTime(r.CreatedAt),
		"",
		r.BloomLevel,
		"",
		"",
		"",
		formatTime(r.UpdatedAt),
		r.TagsJSON(),
	}
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(time.RFC3339)
}

// mustJSON encodes values that cannot fail to marshal, without escaping
// HTML characters.
func mustJSON(v any) string {
	var b strings.Builder
	enc := json.NewEncoder(&b)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return ""
	}
	return strings.TrimSuffix(b.String(), "\n")
}

// Sequence hands out row ids. The first id is start+1.
type Sequence struct {
	mu   sync.Mutex
	last int64
}

// NewSequence returns a Sequence whose first id is start+1.
func NewSequence(start int64) *Sequence {
	return &Sequence{last: start}
}

// Next returns the next id.
func (s *Sequence) Next() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.last++
	return s.last
}

// Assign gives every row without an id the next id, in slice order.
func (s *Sequence) Assign(rows []Row) {
	for i := range rows {
		if rows[i].ID == 0 {
			rows[i].ID = s.Next()
		}
	}
}
