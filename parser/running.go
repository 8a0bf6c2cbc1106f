package parser

import (
	"regexp"
	"strings"
)

// edgeLines is how many non-empty lines at the top and at the bottom of a
// page are considered header or footer candidates.
const edgeLines = 2

// markerLine matches question and option markers, which are never treated
// as running text.
var markerLine = regexp.MustCompile(`^\s*(?:\d{1,3}[.)]\s|\(\s*\d\s*\))`)

var digitRun = regexp.MustCompile(`\d+`)

// StripRunningLines removes running headers and footers: lines near the top
// or bottom of a page that, with digits masked, recur on at least minShare
// of the pages. Lines matching keep, such as solution lines that close the
// last question of a page, are never removed. keep may be nil. Documents
// with fewer than three pages are returned as is.
func StripRunningLines(pages []Page, minShare float64, keep *regexp.Regexp) []Page {
	if len(pages) < 3 || minShare <= 0 {
		return pages
	}

	counts := make(map[string]int)
	for _, p := range pages {
		seen := make(map[string]bool)
		for _, l := range edgeCandidates(p.Text) {
			key := runningKey(l, keep)
			if key != "" && !seen[key] {
				seen[key] = true
				counts[key]++
			}
		}
	}

	threshold := minShare * float64(len(pages))
	running := make(map[string]bool)
	for k, n := range counts {
		if n >= 2 && float64(n) >= threshold {
			running[k] = true
		}
	}
	if len(running) == 0 {
		return pages
	}

	out := make([]Page, len(pages))
	for i, p := range pages {
		out[i] = p
		out[i].Text = dropRunning(p.Text, running, keep)
	}
	return out
}

func runningKey(line string, keep *regexp.Regexp) string {
	line = strings.TrimSpace(line)
	if line == "" || markerLine.MatchString(line) || (keep != nil && keep.MatchString(line)) {
		return ""
	}
	return digitRun.ReplaceAllString(strings.ToLower(strings.Join(strings.Fields(line), " ")), "#")
}

// edgeCandidates returns the first and last edgeLines non-empty lines.
func edgeCandidates(text string) []string {
	var lines []string
	for _, l := range strings.Split(text, "\n") {
		if strings.TrimSpace(l) != "" {
			lines = append(lines, l)
		}
	}
	if len(lines) <= 2*edgeLines {
		return lines
	}
	return append(append([]string{}, lines[:edgeLines]...), lines[len(lines)-edgeLines:]...)
}

func dropRunning(text string, running map[string]bool, keep *regexp.Regexp) string {
	lines := strings.Split(text, "\n")
	nonEmpty := make([]int, 0, len(lines))
	for i, l := range lines {
		if strings.TrimSpace(l) != "" {
			nonEmpty = append(nonEmpty, i)
		}
	}
	drop := make(map[int]bool)
	for pos, i := range nonEmpty {
		if pos >= edgeLines && pos < len(nonEmpty)-edgeLines {
			continue
		}
		if running[runningKey(lines[i], keep)] {
			drop[i] = true
		}
	}
	if len(drop) == 0 {
		return text
	}
	kept := make([]string, 0, len(lines)-len(drop))
	for i, l := range lines {
		if !drop[i] {
			kept = append(kept, l)
		}
	}
	return strings.Join(kept, "\n")
}
