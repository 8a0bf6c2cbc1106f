package qbank

import (
	"strings"
	"testing"
)

func TestExplanationSnippet(t *testing.T) {
	expl := "Sol. Answer (2). The acceleration due to gravity on Mars is 3.7 m/s2. " +
		"Weight is mass times gravity. Hence the weight falls."

	tests := []struct {
		name, query, want string
	}{
		{"best sentence", "gravity mars", "The acceleration due to gravity on Mars is 3.7 m/s2. Weight is mass times gravity."},
		{"no overlap", "photosynthesis", ""},
		{"stop words only", "the and what", ""},
		{"empty explanation", "gravity", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := expl
			if tt.name == "empty explanation" {
				in = ""
			}
			if got := explanationSnippet(in, tt.query); got != tt.want {
				t.Errorf("explanationSnippet(%q) = %q, want %q", tt.query, got, tt.want)
			}
		})
	}
}

func TestExplanationSnippetMaxLen(t *testing.T) {
	long := strings.Repeat("gravity pulls every mass toward the planet ", 20) + "."
	got := explanationSnippet(long, "gravity")
	if len(got) > snippetMaxLen+3 || !strings.HasSuffix(got, "...") {
		t.Errorf("snippet not capped: %d chars %q", len(got), got)
	}
}

func TestSplitSentences(t *testing.T) {
	got := splitSentences("g is 9.8 m/s2. Is it? Yes!\nDone")
	want := []string{"g is 9.8 m/s2.", "Is it?", "Yes!", "Done"}
	if strings.Join(got, "|") != strings.Join(want, "|") {
		t.Errorf("splitSentences = %q, want %q", got, want)
	}
}

func TestSignificantWords(t *testing.T) {
	w := significantWords("The Velocity of a car, in km/h!")
	for _, want := range []string{"velocity", "car"} {
		if !w[want] {
			t.Errorf("missing %q in %v", want, w)
		}
	}
	for _, no := range []string{"the", "of", "km", "a"} {
		if w[no] {
			t.Errorf("unexpected %q in %v", no, w)
		}
	}
}
