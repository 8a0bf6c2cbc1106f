// Package layout splits positioned page text into reading-order columns.
//
// Everything here is a pure function of page geometry and text fragments,
// so column handling can be tested without a real document.
package layout

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"
)

var (
	// ErrInvalidGeometry is returned for non-positive page dimensions.
	ErrInvalidGeometry = errors.New("layout: invalid page geometry")

	// ErrInvalidColumns is returned for a column count other than 1 or 2,
	// or a padding that swallows a whole column.
	ErrInvalidColumns = errors.New("layout: invalid column configuration")
)

// BBox is an axis-aligned rectangle in PDF user space (origin bottom-left).
type BBox struct {
	X      float64 // Left
	Y      float64 // Bottom
	Width  float64
	Height float64
}

// Left returns the left edge X coordinate.
func (b BBox) Left() float64 { return b.X }

// Right returns the right edge X coordinate.
func (b BBox) Right() float64 { return b.X + b.Width }

// Bottom returns the bottom edge Y coordinate.
func (b BBox) Bottom() float64 { return b.Y }

// Top returns the top edge Y coordinate.
func (b BBox) Top() float64 { return b.Y + b.Height }

// ContainsX reports whether x lies in [Left, Right).
func (b BBox) ContainsX(x float64) bool {
	return x >= b.Left() && x < b.Right()
}

// ReadingOrder is the order in which column texts are concatenated.
type ReadingOrder string

const (
	LeftToRight ReadingOrder = "ltr"
	RightToLeft ReadingOrder = "rtl"
)

// ParseReadingOrder accepts "ltr", "rtl", "left-to-right" and "right-to-left".
// The empty string means left-to-right.
func ParseReadingOrder(s string) (ReadingOrder, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "ltr", "left-to-right":
		return LeftToRight, nil
	case "rtl", "right-to-left":
		return RightToLeft, nil
	}
	return "", fmt.Errorf("%w: unknown reading order %q", ErrInvalidColumns, s)
}

// ColumnBoxes returns the crop boxes for a page split into the given number
// of vertical columns, in reading order.
//
// With two columns the page is bisected at its midpoint and padding is
// removed on both sides of the gutter: the left box ends at mid-padding and
// the right box starts at mid+padding.
func ColumnBoxes(width, height float64, columns int, padding float64, order ReadingOrder) ([]BBox, error) {
	if width <= 0 || height <= 0 || math.IsNaN(width) || math.IsNaN(height) {
		return nil, fmt.Errorf("%w: %gx%g", ErrInvalidGeometry, width, height)
	}
	if padding < 0 {
		return nil, fmt.Errorf("%w: negative padding %g", ErrInvalidColumns, padding)
	}

	switch columns {
	case 1:
		return []BBox{{X: 0, Y: 0, Width: width, Height: height}}, nil
	case 2:
	default:
		return nil, fmt.Errorf("%w: %d columns", ErrInvalidColumns, columns)
	}

	mid := width / 2
	if padding >= mid {
		return nil, fmt.Errorf("%w: padding %g exceeds half width %g", ErrInvalidColumns, padding, mid)
	}

	left := BBox{X: 0, Y: 0, Width: mid - padding, Height: height}
	right := BBox{X: mid + padding, Y: 0, Width: width - mid - padding, Height: height}

	if order == RightToLeft {
		return []BBox{right, left}, nil
	}
	return []BBox{left, right}, nil
}

// Fragment is a run of text drawn at a position on the page. X and Y are the
// baseline origin, W the advance width.
type Fragment struct {
	X float64
	Y float64
	W float64
	S string
}

// Tolerances used when rebuilding lines from fragments, in points.
const (
	LineTolerance = 2.0
	WordGap       = 1.5
)

// BuildText rebuilds the text inside box from positioned fragments. A
// fragment belongs to the box when its starting X falls inside it; fragments
// in the gutter belong to no box. Lines run top to bottom, fragments on a line
// left to right, and a space is inserted where the horizontal gap exceeds
// WordGap.
func BuildText(frags []Fragment, box BBox) string {
	var in []Fragment
	for _, f := range frags {
		if f.S == "" || !box.ContainsX(f.X) {
			continue
		}
		if f.Y < box.Bottom() || f.Y > box.Top() {
			continue
		}
		in = append(in, f)
	}
	if len(in) == 0 {
		return ""
	}

	sort.SliceStable(in, func(i, j int) bool {
		if in[i].Y != in[j].Y {
			return in[i].Y > in[j].Y
		}
		return in[i].X < in[j].X
	})

	var lines [][]Fragment
	lineY := math.Inf(1)
	for _, f := range in {
		if len(lines) == 0 || math.Abs(f.Y-lineY) > LineTolerance {
			lines = append(lines, nil)
			lineY = f.Y
		}
		lines[len(lines)-1] = append(lines[len(lines)-1], f)
	}

	var b strings.Builder
	for i, line := range lines {
		if i > 0 {
			b.WriteByte('\n')
		}
		sort.SliceStable(line, func(a, c int) bool { return line[a].X < line[c].X })
		end := math.Inf(-1)
		for _, f := range line {
			if !math.IsInf(end, -1) && f.X-end > WordGap && !endsWithSpace(&b) && !strings.HasPrefix(f.S, " ") {
				b.WriteByte(' ')
			}
			b.WriteString(f.S)
			end = f.X + f.W
		}
	}
	return b.String()
}

// SplitColumns rebuilds each box's text and joins the columns with a newline
// in the order the boxes are given.
func SplitColumns(frags []Fragment, boxes []BBox) string {
	parts := make([]string, 0, len(boxes))
	for _, box := range boxes {
		if t := BuildText(frags, box); t != "" {
			parts = append(parts, t)
		}
	}
	return strings.Join(parts, "\n")
}

func endsWithSpace(b *strings.Builder) bool {
	s := b.String()
	return s != "" && s[len(s)-1] == ' '
}
