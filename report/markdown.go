package report

import (
	"io"
	"sort"
	"strconv"
	"strings"

	"github.com/nao1215/markdown"

	"github.com/brunobiangulo/qbank/validate"
)

// maxListedFailures caps the failure table of the Markdown summary.
const maxListedFailures = 50

// WriteMarkdown renders the per-subject breakdown and the rejected blocks as
// a Markdown document.
func WriteMarkdown(w io.Writer, title string, r *Reporter) error {
	md := markdown.NewMarkdown(w)

	md.H1(title)
	md.PlainText("")

	writeBreakdown(md, r)
	writeReasons(md, r.Total())
	writeFailures(md, r.Failures())

	return md.Build()
}

func writeBreakdown(md *markdown.Markdown, r *Reporter) {
	md.H2("Subjects")
	md.PlainText("")

	tallies := r.Tallies()
	if len(tallies) == 0 {
		md.PlainText("No question blocks found.")
		md.PlainText("")
		return
	}

	rows := make([][]string, 0, len(tallies)+1)
	for _, t := range tallies {
		rows = append(rows, []string{t.Subject, strconv.Itoa(t.Accepted), strconv.Itoa(t.Rejected), strconv.Itoa(t.Total())})
	}
	total := r.Total()
	rows = append(rows, []string{"**Total**", strconv.Itoa(total.Accepted), strconv.Itoa(total.Rejected), strconv.Itoa(total.Total())})

	md.Table(markdown.TableSet{
		Header: []string{"Subject", "Accepted", "Rejected", "Blocks"},
		Rows:   rows,
	})
	md.PlainText("")
}

func writeReasons(md *markdown.Markdown, total Tally) {
	if len(total.Reasons) == 0 {
		return
	}
	md.H2("Rejection Reasons")
	md.PlainText("")

	codes := make([]string, 0, len(total.Reasons))
	for c := range total.Reasons {
		codes = append(codes, string(c))
	}
	sort.Strings(codes)

	rows := make([][]string, 0, len(codes))
	for _, c := range codes {
		rows = append(rows, []string{"`" + c + "`", strconv.Itoa(total.Reasons[validate.Code(c)])})
	}
	md.Table(markdown.TableSet{Header: []string{"Reason", "Count"}, Rows: rows})
	md.PlainText("")
}

func writeFailures(md *markdown.Markdown, failures []Entry) {
	if len(failures) == 0 {
		return
	}
	md.H2("Rejected Blocks")
	md.PlainText("")

	shown := failures
	if len(shown) > maxListedFailures {
		shown = shown[:maxListedFailures]
	}
	rows := make([][]string, 0, len(shown))
	for _, f := range shown {
		rows = append(rows, []string{f.Key(), f.Outcome.ReasonString(), preview(f.Raw, 60)})
	}
	md.Table(markdown.TableSet{Header: []string{"Block", "Reasons", "Text"}, Rows: rows})
	if n := len(failures) - len(shown); n > 0 {
		md.PlainTextf("... and %d more", n)
	}
	md.PlainText("")
}

// preview returns the first line of s cut to maxLen runes, with table pipes
// escaped.
func preview(s string, maxLen int) string {
	s = strings.TrimSpace(s)
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[:i]
	}
	if r := []rune(s); len(r) > maxLen {
		s = string(r[:maxLen-3]) + "..."
	}
	return strings.ReplaceAll(s, "|", `\|`)
}
