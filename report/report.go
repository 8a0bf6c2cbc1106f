// Package report accumulates per-block validation outcomes and routes the
// raw text of rejected blocks to a diagnostic sink.
package report

import (
	"fmt"
	"sort"
	"sync"

	"github.com/brunobiangulo/qbank/validate"
)

// Entry is one recorded outcome.
type Entry struct {
	Subject string           `json:"subject"`
	Outcome validate.Outcome `json:"outcome"`
	Raw     string           `json:"-"`
}

// Key returns the diagnostic key of the entry.
func (e Entry) Key() string { return Key(e.Subject, e.Outcome.QuestionNumber) }

// Key formats the diagnostic key "<subject> Q<number>".
func Key(subject string, questionNumber int) string {
	return fmt.Sprintf("%s Q%d", subject, questionNumber)
}

// Tally counts outcomes for one subject.
type Tally struct {
	Subject  string                `json:"subject"`
	Accepted int                   `json:"accepted"`
	Rejected int                   `json:"rejected"`
	Reasons  map[validate.Code]int `json:"reasons,omitempty"`
}

// Total returns accepted plus rejected.
func (t Tally) Total() int { return t.Accepted + t.Rejected }

func (t *Tally) add(o validate.Outcome) {
	if o.Accepted() {
		t.Accepted++
		return
	}
	t.Rejected++
	if t.Reasons == nil {
		t.Reasons = make(map[validate.Code]int)
	}
	for _, r := range o.Reasons {
		t.Reasons[r.Code]++
	}
}

// DiagnosticSink receives the raw text of every rejected block.
type DiagnosticSink interface {
	Reject(key string, o validate.Outcome, raw string) error
}

// Reporter collects outcomes in arrival order. It is safe for concurrent use
// and never changes a validation decision.
type Reporter struct {
	mu      sync.Mutex
	entries []Entry
	tallies map[string]*Tally
	sink    DiagnosticSink
	sinkErr error
}

// New returns a Reporter. sink may be nil.
func New(sink DiagnosticSink) *Reporter {
	return &Reporter{tallies: make(map[string]*Tally), sink: sink}
}

// Record stores one outcome. Rejected blocks are forwarded to the sink; the
// first sink error is kept and returned by Err.
func (r *Reporter) Record(subject string, o validate.Outcome, raw string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.entries = append(r.entries, Entry{Subject: subject, Outcome: o, Raw: raw})
	t, ok := r.tallies[subject]
	if !ok {
		t = &Tally{Subject: subject}
		r.tallies[subject] = t
	}
	t.add(o)

	if r.sink != nil && !o.Accepted() {
		if err := r.sink.Reject(Key(subject, o.QuestionNumber), o, raw); err != nil && r.sinkErr == nil {
			r.sinkErr = fmt.Errorf("report: diagnostic sink: %w", err)
		}
	}
}

// Entries returns a copy of every recorded entry in arrival order.
func (r *Reporter) Entries() []Entry {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Entry(nil), r.entries...)
}

// Failures returns the rejected entries in arrival order.
func (r *Reporter) Failures() []Entry {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Entry
	for _, e := range r.entries {
		if !e.Outcome.Accepted() {
			out = append(out, e)
		}
	}
	return out
}

// Tallies returns one tally per subject, sorted by subject.
func (r *Reporter) Tallies() []Tally {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Tally, 0, len(r.tallies))
	for _, t := range r.tallies {
		c := *t
		if t.Reasons != nil {
			c.Reasons = make(map[validate.Code]int, len(t.Reasons))
			for k, v := range t.Reasons {
				c.Reasons[k] = v
			}
		}
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Subject < out[j].Subject })
	return out
}

// Total sums every subject's tally.
func (r *Reporter) Total() Tally {
	total := Tally{Subject: "Total"}
	for _, t := range r.Tallies() {
		total.Accepted += t.Accepted
		total.Rejected += t.Rejected
		for k, v := range t.Reasons {
			if total.Reasons == nil {
				total.Reasons = make(map[validate.Code]int)
			}
			total.Reasons[k] += v
		}
	}
	return total
}

// Err returns the first error reported by the sink.
func (r *Reporter) Err() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.sinkErr
}
