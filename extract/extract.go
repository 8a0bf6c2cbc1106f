// Package extract turns one question block into a candidate record: stem,
// four options, answer index and explanation.
package extract

import (
	"fmt"
	"regexp"

	"github.com/brunobiangulo/qbank/segment"
)

// Unknown is the answer index of a candidate whose answer token could not
// be read.
const Unknown = -1

// Config controls field extraction.
type Config struct {
	// SolutionMarkers open the solution section when one starts a line.
	SolutionMarkers []string `json:"solution_markers" yaml:"solution_markers"`
	// MinStemTokens is the fewest tokens an accepted stem may have.
	MinStemTokens int `json:"min_stem_tokens" yaml:"min_stem_tokens"`
	// ExplanationAfterAnswer starts the explanation after the answer token
	// rather than at the solution marker.
	ExplanationAfterAnswer bool `json:"explanation_after_answer" yaml:"explanation_after_answer"`
}

// DefaultConfig returns the extraction defaults.
func DefaultConfig() Config {
	return Config{
		SolutionMarkers: append([]string(nil), DefaultSolutionMarkers...),
		MinStemTokens:   DefaultMinStemTokens,
	}
}

// Candidate is the extraction result for one block, before validation.
type Candidate struct {
	QuestionNumber int       `json:"question_number"`
	Stem           string    `json:"stem"`
	StemOK         bool      `json:"stem_ok"`
	Options        [4]string `json:"options"`
	OptionSources  [4]string `json:"option_sources"`
	CorrectIndex   int       `json:"correct_index"`
	AnswerToken    string    `json:"answer_token,omitempty"`
	Explanation    string    `json:"explanation"`
	Raw            string    `json:"-"`
}

// OptionCount returns the number of non-empty options.
func (c Candidate) OptionCount() int {
	return Options{Text: c.Options}.Count()
}

// HasAnswer reports whether the answer index was resolved.
func (c Candidate) HasAnswer() bool { return c.CorrectIndex != Unknown }

// Extractor extracts candidates from blocks. It is safe for concurrent use.
type Extractor struct {
	cfg      Config
	matchers []Matcher
	solution *regexp.Regexp
}

// New compiles an Extractor. Zero values in cfg take their defaults.
func New(cfg Config) (*Extractor, error) {
	def := DefaultConfig()
	if len(cfg.SolutionMarkers) == 0 {
		cfg.SolutionMarkers = def.SolutionMarkers
	}
	if cfg.MinStemTokens <= 0 {
		cfg.MinStemTokens = def.MinStemTokens
	}
	re, err := compileSolution(cfg.SolutionMarkers)
	if err != nil {
		return nil, fmt.Errorf("extract: %w", err)
	}
	return &Extractor{cfg: cfg, matchers: DefaultMatchers, solution: re}, nil
}

// Default returns an Extractor with DefaultConfig.
func Default() *Extractor {
	e, err := New(DefaultConfig())
	if err != nil {
		panic(err)
	}
	return e
}

// Config returns the effective configuration.
func (e *Extractor) Config() Config { return e.cfg }

// SolutionStart returns the offset of the solution section in body, or
// len(body) when there is none.
func (e *Extractor) SolutionStart(body string) int {
	if loc := e.solution.FindStringIndex(body); loc != nil {
		return loc[0]
	}
	return len(body)
}

// ExtractOptions resolves the four options of body. Only text before the
// solution section is searched.
func (e *Extractor) ExtractOptions(body string) Options {
	return extractOptions(e.matchers, body[:e.SolutionStart(body)])
}

// Extract builds the candidate for one block.
func (e *Extractor) Extract(b segment.Block) Candidate {
	body := b.Body
	sol := e.SolutionStart(body)
	region, tail := body[:sol], body[sol:]

	opts := extractOptions(e.matchers, region)
	stem, ok := ExtractStem(region, opts.Text, e.cfg.MinStemTokens)
	idx, token, end := ExtractAnswer(tail)

	return Candidate{
		QuestionNumber: b.QuestionNumber,
		Stem:           stem,
		StemOK:         ok,
		Options:        opts.Text,
		OptionSources:  opts.Source,
		CorrectIndex:   idx,
		AnswerToken:    token,
		Explanation:    explanation(tail, end, e.cfg.ExplanationAfterAnswer),
		Raw:            b.Text,
	}
}
