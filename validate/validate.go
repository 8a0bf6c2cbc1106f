// Package validate decides whether an extracted candidate becomes a
// question record.
package validate

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/brunobiangulo/qbank/extract"
)

// Code identifies one failed check.
type Code string

const (
	BadStem             Code = "bad_stem"
	OptionCountMismatch Code = "option_count_mismatch"
	AnswerUnresolved    Code = "answer_unresolved"
	ExtractionError     Code = "extraction_error"
)

// Reason is one failed check. Count is the number of options found and is
// only meaningful for OptionCountMismatch.
type Reason struct {
	Code  Code `json:"code"`
	Count int  `json:"count,omitempty"`
}

func (r Reason) String() string {
	if r.Code == OptionCountMismatch {
		return fmt.Sprintf("%s(%d)", r.Code, r.Count)
	}
	return string(r.Code)
}

// Status is the terminal state of a block.
type Status string

const (
	Accepted Status = "accepted"
	Rejected Status = "rejected"
)

// Policy says what to do with a candidate whose answer is Unknown.
type Policy string

const (
	// Reject fails the candidate with AnswerUnresolved.
	Reject Policy = "reject"
	// Allow accepts the candidate and keeps the Unknown index.
	Allow Policy = "allow"
)

// ParsePolicy parses a policy name. The empty string means Reject.
func ParsePolicy(s string) (Policy, error) {
	switch Policy(strings.ToLower(strings.TrimSpace(s))) {
	case "", Reject:
		return Reject, nil
	case Allow:
		return Allow, nil
	}
	return "", fmt.Errorf("validate: unknown answer policy %q", s)
}

// Outcome is the verdict for one block.
type Outcome struct {
	QuestionNumber int      `json:"question_number"`
	Status         Status   `json:"status"`
	Reasons        []Reason `json:"reasons,omitempty"`
}

// Accepted reports whether the block produced a record.
func (o Outcome) Accepted() bool { return o.Status == Accepted }

// ReasonString joins the reasons with ", ".
func (o Outcome) ReasonString() string {
	parts := make([]string, len(o.Reasons))
	for i, r := range o.Reasons {
		parts[i] = r.String()
	}
	return strings.Join(parts, ", ")
}

// Validate checks a candidate. Every failed check is reported, not only the
// first. StemOK is trusted as computed by the extractor.
func Validate(c extract.Candidate, policy Policy) Outcome {
	var reasons []Reason
	if c.Stem == "" || !c.StemOK {
		reasons = append(reasons, Reason{Code: BadStem})
	}
	if n := c.OptionCount(); n != 4 {
		reasons = append(reasons, Reason{Code: OptionCountMismatch, Count: n})
	}
	if !validIndex(c.CorrectIndex) && policy != Allow {
		reasons = append(reasons, Reason{Code: AnswerUnresolved})
	}
	return outcome(c.QuestionNumber, reasons)
}

// Rejection rebuilds the outcome of a rejected block from its stored reason
// string, as written by ReasonString.
func Rejection(questionNumber int, reasons string) Outcome {
	var rs []Reason
	for _, part := range strings.Split(reasons, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		r := Reason{Code: Code(part)}
		if name, count, ok := strings.Cut(part, "("); ok {
			if n, err := strconv.Atoi(strings.TrimSuffix(count, ")")); err == nil {
				r = Reason{Code: Code(name), Count: n}
			}
		}
		rs = append(rs, r)
	}
	if len(rs) == 0 {
		rs = []Reason{{Code: ExtractionError}}
	}
	return outcome(questionNumber, rs)
}

// Failed returns the outcome of a block whose extraction could not finish.
func Failed(questionNumber int) Outcome {
	return outcome(questionNumber, []Reason{{Code: ExtractionError}})
}

func validIndex(i int) bool { return i >= 0 && i <= 3 }

func outcome(num int, reasons []Reason) Outcome {
	o := Outcome{QuestionNumber: num, Status: Accepted}
	if len(reasons) > 0 {
		o.Status = Rejected
		o.Reasons = reasons
	}
	return o
}
