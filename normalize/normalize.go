// Package normalize cleans extracted page text while keeping its line
// structure. Line breaks are load-bearing: every marker downstream is
// anchored at the start of a line.
package normalize

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// DefaultMinChars is the document length under which extracted text is
// treated as sparse (probably a scanned, image-only document).
const DefaultMinChars = 200

var (
	horizontalSpaceRe = regexp.MustCompile(`[ \t\f\v]+`)
	trailingSpaceRe   = regexp.MustCompile(`(?m) +$`)
	blankRunRe        = regexp.MustCompile(`\n{3,}`)
)

// punctuation maps typographic dashes, quotes and exotic spaces to ASCII.
func punctuation(r rune) rune {
	switch r {
	case '\u2010', '\u2011', '\u2012', '\u2013', '\u2014', '\u2015', '\u2212':
		return '-'
	case '\u2018', '\u2019', '\u201a', '\u201b', '\u2032':
		return '\''
	case '\u201c', '\u201d', '\u201e', '\u201f', '\u2033':
		return '"'
	case '\u00a0', '\u2000', '\u2001', '\u2002', '\u2003', '\u2004', '\u2005',
		'\u2006', '\u2007', '\u2008', '\u2009', '\u200a', '\u202f', '\u3000':
		return ' '
	case '\u200b', '\ufeff':
		return -1
	}
	return r
}

func newTransformer() transform.Transformer {
	return transform.Chain(runes.Map(punctuation), norm.NFC)
}

// Text normalizes one page or one document: ASCII punctuation, NFC,
// horizontal whitespace runs collapsed to a single space, trailing spaces
// removed from every line, three or more newlines collapsed to two.
func Text(s string) string {
	if s == "" {
		return ""
	}
	s = strings.ReplaceAll(s, "\r\n", "\n")
	s = strings.ReplaceAll(s, "\r", "\n")

	if out, _, err := transform.String(newTransformer(), s); err == nil {
		s = out
	}

	s = horizontalSpaceRe.ReplaceAllString(s, " ")
	s = trailingSpaceRe.ReplaceAllString(s, "")
	s = blankRunRe.ReplaceAllString(s, "\n\n")
	return strings.TrimSpace(s)
}

// JoinPages normalizes each page, joins the non-empty ones with a newline
// and normalizes the result once more.
func JoinPages(pages []string) string {
	parts := make([]string, 0, len(pages))
	for _, p := range pages {
		if p = Text(p); p != "" {
			parts = append(parts, p)
		}
	}
	return Text(strings.Join(parts, "\n"))
}

// IsSparse reports whether text has fewer than minChars characters once
// surrounding whitespace is removed. A non-positive minChars uses
// DefaultMinChars.
func IsSparse(text string, minChars int) bool {
	if minChars <= 0 {
		minChars = DefaultMinChars
	}
	return utf8.RuneCountInString(strings.TrimSpace(text)) < minChars
}

// CollapseSpaces folds every whitespace run, newlines included, into a
// single space.
func CollapseSpaces(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
