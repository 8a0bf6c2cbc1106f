package extract

import (
	"regexp"
	"strings"

	"github.com/brunobiangulo/qbank/normalize"
)

// stemAnchors mark the first option; the stem is everything before the
// earliest of them.
var stemAnchors = []*regexp.Regexp{
	regexp.MustCompile(`(?m)^[ \t]*\([ \t]*1[ \t]*\)`),
	regexp.MustCompile(`(?m)^[ \t]*1[.)]\s`),
}

// markerResidue is what is left of option markers once their text is cut.
var markerResidue = regexp.MustCompile(`\([ \t]*[1-4][ \t]*\)|(?:^|\s)[1-4][.)](?:\s|$)`)

// DefaultMinStemTokens is the fewest whitespace-separated tokens a stem
// must have to be accepted.
const DefaultMinStemTokens = 4

// ExtractStem returns the question stem of region (the body before any
// solution section) and whether it has at least minTokens tokens.
//
// The stem is the text before the first-option marker. Without one, the
// known option texts and their markers are cut out of the collapsed region
// and the rest is the stem.
func ExtractStem(region string, options [4]string, minTokens int) (string, bool) {
	anchor := -1
	for _, re := range stemAnchors {
		if loc := re.FindStringIndex(region); loc != nil && (anchor < 0 || loc[0] < anchor) {
			anchor = loc[0]
		}
	}

	var stem string
	if anchor >= 0 {
		stem = normalize.CollapseSpaces(region[:anchor])
	} else {
		stem = normalize.CollapseSpaces(region)
		for _, o := range options {
			if o == "" {
				continue
			}
			// Options follow the stem, so cut the last occurrence.
			if i := strings.LastIndex(stem, o); i >= 0 {
				stem = stem[:i] + " " + stem[i+len(o):]
			}
		}
		stem = normalize.CollapseSpaces(markerResidue.ReplaceAllString(stem, " "))
	}
	return stem, len(strings.Fields(stem)) >= minTokens
}
