// Package segment slices normalized document text into per-question blocks.
package segment

import (
	"regexp"
	"strconv"
)

// markerPattern matches a question marker: 1-3 digits at the start of a
// line, followed by "." or ")" and at least one space or tab. Numbers that
// are not line-anchored never open a block.
var markerPattern = regexp.MustCompile(`(?m)^[ \t]*(\d{1,3})[.)][ \t]+`)

// Block is the raw text span of one candidate question.
type Block struct {
	QuestionNumber int    `json:"question_number"`
	Text           string `json:"text"`  // marker line through the end of the block
	Body           string `json:"body"`  // Text without the leading marker
	Start          int    `json:"start"` // byte offset of the marker line in the document
}

// Config controls segmentation.
type Config struct {
	// Monotonic only accepts a marker as a boundary when its number is
	// greater than the previous block's number. Dot-style option runs
	// ("1." .. "4.") inside a later question then stay inside that question.
	Monotonic bool
}

// Segmenter splits documents into blocks.
type Segmenter struct {
	cfg Config
}

// New returns a Segmenter with the given configuration.
func New(cfg Config) *Segmenter {
	return &Segmenter{cfg: cfg}
}

type marker struct {
	num   int
	start int // line start
	end   int // end of marker, start of the body
}

// Segment returns the blocks of text in document order. Block i runs from
// its marker to the next accepted marker, the last block to the end of text.
// Text without any marker yields no blocks.
func (s *Segmenter) Segment(text string) []Block {
	markers := s.markers(text)
	if len(markers) == 0 {
		return nil
	}

	blocks := make([]Block, 0, len(markers))
	for i, m := range markers {
		end := len(text)
		if i+1 < len(markers) {
			end = markers[i+1].start
		}
		blocks = append(blocks, Block{
			QuestionNumber: m.num,
			Text:           text[m.start:end],
			Body:           text[m.end:end],
			Start:          m.start,
		})
	}
	return blocks
}

// Segment splits text with the default configuration.
func Segment(text string) []Block {
	return New(Config{}).Segment(text)
}

func (s *Segmenter) markers(text string) []marker {
	locs := markerPattern.FindAllStringSubmatchIndex(text, -1)
	out := make([]marker, 0, len(locs))
	last := -1
	for _, loc := range locs {
		num, err := strconv.Atoi(text[loc[2]:loc[3]])
		if err != nil {
			continue
		}
		if s.cfg.Monotonic && last >= 0 && num <= last {
			continue
		}
		out = append(out, marker{num: num, start: loc[0], end: loc[1]})
		last = num
	}
	return out
}
