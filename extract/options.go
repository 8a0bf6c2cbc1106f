package extract

import (
	"regexp"
	"sort"
	"strconv"

	"github.com/brunobiangulo/qbank/normalize"
)

// Match is one option claimed by a matcher: a 1-based index, its
// whitespace-collapsed text, and the byte offset of its marker in the body.
type Match struct {
	Index  int
	Text   string
	Offset int
}

// Matcher recognizes one option-numbering convention. Pattern must capture
// the option digit in group 1 and match only at the start of a line.
type Matcher struct {
	Name    string
	Pattern *regexp.Regexp
}

var (
	// ParenMatcher recognizes "(1)" .. "(4)".
	ParenMatcher = Matcher{
		Name:    "paren",
		Pattern: regexp.MustCompile(`(?m)^[ \t]*\([ \t]*([1-4])[ \t]*\)`),
	}

	// DottedMatcher recognizes "1." .. "4." and "1)" .. "4)".
	DottedMatcher = Matcher{
		Name:    "dotted",
		Pattern: regexp.MustCompile(`(?m)^[ \t]*([1-4])[.)]\s`),
	}

	// DefaultMatchers is the resolution order: parenthesized options win
	// over dotted ones index by index.
	DefaultMatchers = []Matcher{ParenMatcher, DottedMatcher}
)

// stopPatterns end an option's text: any parenthesized digit marker and any
// question-level or dotted marker at the start of a line.
var stopPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?m)^[ \t]*\([ \t]*\d[ \t]*\)`),
	regexp.MustCompile(`(?m)^[ \t]*\d{1,3}[.)]\s`),
}

// stopOffsets returns the sorted offsets at which option text must stop.
// limit is always included so the last option ends at the solution section
// or at the end of the region.
func stopOffsets(region string, limit int) []int {
	var stops []int
	for _, re := range stopPatterns {
		for _, loc := range re.FindAllStringIndex(region, -1) {
			stops = append(stops, loc[0])
		}
	}
	stops = append(stops, limit)
	sort.Ints(stops)
	return stops
}

func nextStop(stops []int, from int) int {
	i := sort.SearchInts(stops, from)
	if i < len(stops) {
		return stops[i]
	}
	return stops[len(stops)-1]
}

// Find returns every option this matcher sees in region, in order of
// appearance. Each option runs from the end of its marker to the next stop.
func (m Matcher) Find(region string) []Match {
	return m.find(region, stopOffsets(region, len(region)))
}

func (m Matcher) find(region string, stops []int) []Match {
	locs := m.Pattern.FindAllStringSubmatchIndex(region, -1)
	out := make([]Match, 0, len(locs))
	for _, loc := range locs {
		idx, err := strconv.Atoi(region[loc[2]:loc[3]])
		if err != nil || idx < 1 || idx > 4 {
			continue
		}
		end := nextStop(stops, loc[1])
		if end < loc[1] {
			end = loc[1]
		}
		out = append(out, Match{
			Index:  idx,
			Text:   normalize.CollapseSpaces(region[loc[1]:end]),
			Offset: loc[0],
		})
	}
	return out
}

// Options holds the resolved option texts by zero-based position, with the
// name of the matcher that supplied each one.
type Options struct {
	Text   [4]string
	Source [4]string
}

// Count returns the number of non-empty options.
func (o Options) Count() int {
	n := 0
	for _, t := range o.Text {
		if t != "" {
			n++
		}
	}
	return n
}

// Missing returns the 1-based indices that have no text.
func (o Options) Missing() []int {
	var out []int
	for i, t := range o.Text {
		if t == "" {
			out = append(out, i+1)
		}
	}
	return out
}

// Complete reports whether all four options are present.
func (o Options) Complete() bool { return o.Count() == 4 }

// Slice returns the option texts as a slice of length 4.
func (o Options) Slice() []string {
	out := make([]string, 4)
	copy(out, o.Text[:])
	return out
}

// Resolve merges per-matcher results. The first matcher (in the order of
// names) to claim an index keeps it; within one matcher the first match of
// an index wins. Matches with empty text never claim an index.
func Resolve(names []string, results [][]Match) Options {
	var o Options
	for mi, matches := range results {
		for _, m := range matches {
			i := m.Index - 1
			if i < 0 || i > 3 || m.Text == "" || o.Text[i] != "" {
				continue
			}
			o.Text[i] = m.Text
			if mi < len(names) {
				o.Source[i] = names[mi]
			}
		}
	}
	return o
}

// extractOptions runs the matchers over region (the block body before the
// solution section) and resolves their matches.
func extractOptions(matchers []Matcher, region string) Options {
	stops := stopOffsets(region, len(region))
	names := make([]string, len(matchers))
	results := make([][]Match, len(matchers))
	for i, m := range matchers {
		names[i] = m.Name
		results[i] = m.find(region, stops)
	}
	return Resolve(names, results)
}
