// Package pipeline runs segmentation, extraction and validation over one
// document's normalized text.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"runtime"

	"golang.org/x/sync/errgroup"

	"github.com/brunobiangulo/qbank/extract"
	"github.com/brunobiangulo/qbank/report"
	"github.com/brunobiangulo/qbank/segment"
	"github.com/brunobiangulo/qbank/validate"
)

// Config configures a Pipeline.
type Config struct {
	Segment     segment.Config
	Extract     extract.Config
	Policy      validate.Policy
	Concurrency int // block workers; <= 0 means GOMAXPROCS
}

// Result is the outcome of one block.
type Result struct {
	Subject   string            `json:"subject"`
	Block     segment.Block     `json:"-"`
	Candidate extract.Candidate `json:"candidate"`
	Outcome   validate.Outcome  `json:"outcome"`
}

// Pipeline is safe for concurrent use.
type Pipeline struct {
	seg      *segment.Segmenter
	ext      *extract.Extractor
	policy   validate.Policy
	limit    int
	reporter *report.Reporter

	extractFn func(segment.Block) extract.Candidate
}

// New builds a Pipeline. reporter may be nil.
func New(cfg Config, reporter *report.Reporter) (*Pipeline, error) {
	ext, err := extract.New(cfg.Extract)
	if err != nil {
		return nil, err
	}
	policy := cfg.Policy
	if policy == "" {
		policy = validate.Reject
	}
	limit := cfg.Concurrency
	if limit <= 0 {
		limit = runtime.GOMAXPROCS(0)
	}
	p := &Pipeline{
		seg:      segment.New(cfg.Segment),
		ext:      ext,
		policy:   policy,
		limit:    limit,
		reporter: reporter,
	}
	p.extractFn = ext.Extract
	return p, nil
}

// Run segments text and processes every block on a bounded worker pool.
// Results are returned, and handed to the reporter, in block order whatever
// the scheduling. A cancelled context stops outstanding blocks and is
// returned as the error.
func (p *Pipeline) Run(ctx context.Context, subject, text string) ([]Result, error) {
	blocks := p.seg.Segment(text)
	if len(blocks) == 0 {
		slog.Info("pipeline: no question markers found", "subject", subject, "chars", len(text))
		return nil, nil
	}

	results := make([]Result, len(blocks))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.limit)
	for i, b := range blocks {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			results[i] = p.process(subject, b)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("pipeline: %w", err)
	}

	accepted := 0
	for _, r := range results {
		if r.Outcome.Accepted() {
			accepted++
		}
		if p.reporter != nil {
			p.reporter.Record(subject, r.Outcome, r.Block.Text)
		}
	}
	slog.Info("pipeline: blocks processed",
		"subject", subject,
		"blocks", len(blocks),
		"accepted", accepted,
		"rejected", len(blocks)-accepted,
	)
	return results, nil
}

// process extracts and validates one block. A panic is confined to the
// block and recorded as an extraction error.
func (p *Pipeline) process(subject string, b segment.Block) (res Result) {
	res = Result{Subject: subject, Block: b}
	defer func() {
		if r := recover(); r != nil {
			slog.Error("pipeline: block extraction panicked",
				"subject", subject, "question", b.QuestionNumber, "panic", r)
			res.Candidate = extract.Candidate{
				QuestionNumber: b.QuestionNumber,
				CorrectIndex:   extract.Unknown,
				Raw:            b.Text,
			}
			res.Outcome = validate.Failed(b.QuestionNumber)
		}
	}()

	c := p.extractFn(b)
	res.Candidate = c
	res.Outcome = validate.Validate(c, p.policy)
	if !res.Outcome.Accepted() {
		slog.Debug("pipeline: block rejected",
			"subject", subject, "question", b.QuestionNumber, "reasons", res.Outcome.ReasonString())
	}
	return res
}

// Accepted returns the candidates of accepted results, in order.
func Accepted(results []Result) []Result {
	var out []Result
	for _, r := range results {
		if r.Outcome.Accepted() {
			out = append(out, r)
		}
	}
	return out
}
