package qbank

import (
	"strings"
	"unicode"
)

// snippetMaxLen caps the length of a search hit snippet.
const snippetMaxLen = 240

// explanationSnippet returns the explanation sentence sharing the most
// significant words with query, joined with its best neighbour when both
// fit in snippetMaxLen. Returns "" when no sentence shares a word.
func explanationSnippet(explanation, query string) string {
	terms := significantWords(query)
	if len(terms) == 0 || explanation == "" {
		return ""
	}
	sentences := splitSentences(explanation)

	scores := make([]int, len(sentences))
	best := -1
	for i, s := range sentences {
		for w := range significantWords(s) {
			if terms[w] {
				scores[i]++
			}
		}
		if scores[i] > 0 && (best < 0 || scores[i] > scores[best]) {
			best = i
		}
	}
	if best < 0 {
		return ""
	}

	out := sentences[best]
	next, prev := best+1, best-1
	switch {
	case next < len(sentences) && scores[next] > 0 && (prev < 0 || scores[next] >= scores[prev]):
		if joined := out + " " + sentences[next]; len(joined) <= snippetMaxLen {
			out = joined
		}
	case prev >= 0 && scores[prev] > 0:
		if joined := sentences[prev] + " " + out; len(joined) <= snippetMaxLen {
			out = joined
		}
	}
	if len(out) > snippetMaxLen {
		out = strings.TrimSpace(out[:strings.LastIndex(out[:snippetMaxLen], " ")+1]) + "..."
	}
	return out
}

// significantWords returns the lowercased words of at least three letters,
// stop words excluded. Units and symbols such as "kg" are too short to rank.
func significantWords(text string) map[string]bool {
	words := make(map[string]bool)
	for _, w := range strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	}) {
		if len([]rune(w)) >= 3 && !stopWords[w] {
			words[w] = true
		}
	}
	return words
}

// splitSentences splits at '.', '?' or '!' followed by whitespace or the
// end of text. Decimal points such as "9.8" do not split.
func splitSentences(text string) []string {
	var sentences []string
	var cur strings.Builder
	runes := []rune(text)
	flush := func() {
		if s := strings.TrimSpace(cur.String()); s != "" {
			sentences = append(sentences, s)
		}
		cur.Reset()
	}
	for i, r := range runes {
		cur.WriteRune(r)
		if (r == '.' || r == '?' || r == '!') && (i+1 == len(runes) || unicode.IsSpace(runes[i+1])) {
			flush()
		}
	}
	flush()
	return sentences
}

var stopWords = map[string]bool{
	"the": true, "and": true, "for": true, "are": true, "was": true,
	"that": true, "this": true, "with": true, "from": true, "have": true,
	"which": true, "what": true, "when": true, "where": true, "then": true,
	"than": true, "its": true, "into": true, "each": true, "does": true,
	"sol": true, "ans": true, "answer": true, "solution": true,
}
