package extract

import (
	"fmt"
	"regexp"
	"strings"
	"unicode"

	"github.com/brunobiangulo/qbank/normalize"
)

// DefaultSolutionMarkers open the solution section when they start a line.
var DefaultSolutionMarkers = []string{"Sol.", "Solution", "Answer", "Ans", "Explanation"}

// answerPattern finds the answer token in a solution section: "Sol. Answer
// (2)", "Answer (B)", "Ans: 3", "Answer - c". A bare letter or digit must
// stand alone so "Answer: Because" does not resolve to B.
var answerPattern = regexp.MustCompile(
	`(?i)(?:\bSol\.\s*)?\b(?:Answer|Ans\.?)\s*(?:\(\s*([1-4a-d])\s*\)|[:\-]\s*\(?\s*([1-4a-d])\b)`)

// SolutionPattern returns the line-anchored, case-insensitive pattern that
// matches a line opening a solution section. Markers ending in a letter or
// digit only match at a word boundary, so "Ans" matches "ANS: (d)" and
// "Ans." but not "Answered".
func SolutionPattern(markers []string) (*regexp.Regexp, error) {
	return compileSolution(markers)
}

func compileSolution(markers []string) (*regexp.Regexp, error) {
	if len(markers) == 0 {
		return nil, fmt.Errorf("no solution markers")
	}
	alts := make([]string, 0, len(markers))
	for _, m := range markers {
		m = strings.TrimSpace(m)
		if m == "" {
			return nil, fmt.Errorf("blank solution marker")
		}
		alt := regexp.QuoteMeta(m)
		last := []rune(m)[len([]rune(m))-1]
		if unicode.IsLetter(last) || unicode.IsDigit(last) {
			alt += `\b`
		}
		alts = append(alts, alt)
	}
	return regexp.Compile(`(?im)^[ \t]*(?:` + strings.Join(alts, "|") + `)`)
}

// answerIndex maps an answer token to a zero-based option index. Letters
// A-D map to 0-3; digits map to digit-1 clamped to [0, 3].
func answerIndex(token string) int {
	if token == "" {
		return Unknown
	}
	c := unicode.ToUpper(rune(token[0]))
	switch {
	case c >= 'A' && c <= 'D':
		return int(c - 'A')
	case c >= '0' && c <= '9':
		i := int(c-'0') - 1
		return max(0, min(i, 3))
	}
	return Unknown
}

// ExtractAnswer reads the answer token from a solution tail and returns the
// zero-based index, the raw token, and the offset just past the match.
// Without a recognizable token the index is Unknown and end is 0.
func ExtractAnswer(tail string) (index int, token string, end int) {
	m := answerPattern.FindStringSubmatchIndex(tail)
	if m == nil {
		return Unknown, "", 0
	}
	for g := 1; g <= 2; g++ {
		if m[2*g] >= 0 {
			token = tail[m[2*g]:m[2*g+1]]
			break
		}
	}
	return answerIndex(token), token, m[1]
}

// explanation returns the whitespace-collapsed solution text. When
// afterAnswer is set and an answer token was found, the text starts after
// the token instead of at the solution marker.
func explanation(tail string, answerEnd int, afterAnswer bool) string {
	if afterAnswer && answerEnd > 0 {
		rest := normalize.CollapseSpaces(tail[answerEnd:])
		return strings.TrimLeft(rest, " .:-")
	}
	return normalize.CollapseSpaces(tail)
}
