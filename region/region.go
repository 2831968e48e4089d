// Package region implements sets of pixels described by rectangles.
//
// Every rectangle is half-open: a point (x, y) belongs to the
// rectangle [x0, x1)×[y0, y1). A Region is always stored in a
// canonical form. Its rectangles are sorted in y-x bands. They never
// overlap, and horizontally or vertically adjacent pieces are merged.
// This makes the rectangle list of two equal regions identical, no
// matter which operations produced them.
package region

import (
	"image"
	"iter"
	"slices"
)

// Region is a set of pixels. The zero value is the empty region.
type Region struct {
	rects []image.Rectangle
}

// New returns the union of rects.
func New(rects ...image.Rectangle) *Region {
	var r Region
	for _, rect := range rects {
		r.Add(rect)
	}
	return &r
}

// Add adds rect to the region and returns the region. Empty
// rectangles leave the region untouched.
func (r *Region) Add(rect image.Rectangle) *Region {
	if rect.Empty() {
		return r
	}
	r.rects = combine(r.rects, []image.Rectangle{rect}, opUnion)
	return r
}

// Subtract removes rect from the region and returns the region.
func (r *Region) Subtract(rect image.Rectangle) *Region {
	if rect.Empty() || len(r.rects) == 0 {
		return r
	}
	r.rects = combine(r.rects, []image.Rectangle{rect}, opSubtract)
	return r
}

// Union adds every pixel of o to the region and returns the region.
func (r *Region) Union(o *Region) *Region {
	if o == nil || len(o.rects) == 0 {
		return r
	}
	r.rects = combine(r.rects, o.rects, opUnion)
	return r
}

// Intersect reduces the region to the pixels it shares with rect and
// returns the region.
func (r *Region) Intersect(rect image.Rectangle) *Region {
	if rect.Empty() {
		r.rects = nil
		return r
	}
	r.rects = combine(r.rects, []image.Rectangle{rect}, opIntersect)
	return r
}

// Translate moves the region by p and returns the region.
func (r *Region) Translate(p image.Point) *Region {
	for i := range r.rects {
		r.rects[i] = r.rects[i].Add(p)
	}
	return r
}

// Clear empties the region.
func (r *Region) Clear() *Region {
	r.rects = nil
	return r
}

// Contains reports whether p is in the region.
func (r *Region) Contains(p image.Point) bool {
	if r == nil {
		return false
	}
	for _, rect := range r.rects {
		if p.In(rect) {
			return true
		}
		if rect.Min.Y > p.Y {
			break
		}
	}
	return false
}

// ContainsClipped reports whether p is in both clip and the region.
// Both are half-open, so a point on the right or bottom edge of clip
// is outside even if the region extends past it. The region is not
// modified.
func (r *Region) ContainsClipped(clip image.Rectangle, p image.Point) bool {
	return p.In(clip) && r.Contains(p)
}

// All yields the rectangles of the region in band order. The sequence
// can be iterated any number of times and always reflects the region
// as it is when iteration starts.
func (r *Region) All() iter.Seq[image.Rectangle] {
	return func(yield func(image.Rectangle) bool) {
		if r == nil {
			return
		}
		for _, rect := range r.rects {
			if !yield(rect) {
				return
			}
		}
	}
}

// Rects returns a copy of the region's rectangles.
func (r *Region) Rects() []image.Rectangle {
	if r == nil {
		return nil
	}
	return slices.Clone(r.rects)
}

// Empty reports whether the region contains no pixels. A nil region
// is empty.
func (r *Region) Empty() bool {
	return r == nil || len(r.rects) == 0
}

// Bounds returns the smallest rectangle containing the region.
func (r *Region) Bounds() image.Rectangle {
	var b image.Rectangle
	if r == nil {
		return b
	}
	for _, rect := range r.rects {
		b = b.Union(rect)
	}
	return b
}

// Area returns the number of pixels in the region.
func (r *Region) Area() int {
	var area int
	if r == nil {
		return 0
	}
	for _, rect := range r.rects {
		area += rect.Dx() * rect.Dy()
	}
	return area
}

// Clone returns an independent copy of the region. Cloning nil
// returns nil.
func (r *Region) Clone() *Region {
	if r == nil {
		return nil
	}
	return &Region{rects: slices.Clone(r.rects)}
}

// Equal reports whether r and o contain the same pixels.
func (r *Region) Equal(o *Region) bool {
	if r.Empty() || o.Empty() {
		return r.Empty() == o.Empty()
	}
	return slices.Equal(r.rects, o.rects)
}

type op int

const (
	opUnion op = iota
	opSubtract
	opIntersect
)

func (op op) keep(inA, inB bool) bool {
	switch op {
	case opUnion:
		return inA || inB
	case opSubtract:
		return inA && !inB
	case opIntersect:
		return inA && inB
	default:
		panic("unknown region op")
	}
}

type span struct {
	x0, x1 int
}

// combine applies op to the pixel sets described by a and b, which may
// overlap internally, and returns the canonical rectangles of the
// result.
func combine(a, b []image.Rectangle, op op) []image.Rectangle {
	ys := make([]int, 0, 2*(len(a)+len(b)))
	for _, rect := range a {
		ys = append(ys, rect.Min.Y, rect.Max.Y)
	}
	for _, rect := range b {
		ys = append(ys, rect.Min.Y, rect.Max.Y)
	}
	slices.Sort(ys)
	ys = slices.Compact(ys)

	var out []image.Rectangle
	var prev []span
	var prevStart, prevEnd int
	flush := func() {
		for _, s := range prev {
			out = append(out, image.Rect(s.x0, prevStart, s.x1, prevEnd))
		}
	}

	for i := 0; i+1 < len(ys); i++ {
		y0, y1 := ys[i], ys[i+1]
		spans := combineSpans(spansIn(a, y0, y1), spansIn(b, y0, y1), op)

		if (len(prev) > 0) && (prevEnd == y0) && slices.Equal(prev, spans) {
			prevEnd = y1
			continue
		}
		flush()
		prev, prevStart, prevEnd = spans, y0, y1
	}
	flush()

	return out
}

// spansIn returns the sorted, merged horizontal spans of the
// rectangles that cover the band [y0, y1).
func spansIn(rects []image.Rectangle, y0, y1 int) []span {
	var spans []span
	for _, rect := range rects {
		if (rect.Min.Y <= y0) && (rect.Max.Y >= y1) {
			spans = append(spans, span{rect.Min.X, rect.Max.X})
		}
	}
	slices.SortFunc(spans, func(s1, s2 span) int { return s1.x0 - s2.x0 })

	merged := spans[:0]
	for _, s := range spans {
		if n := len(merged); (n > 0) && (s.x0 <= merged[n-1].x1) {
			merged[n-1].x1 = max(merged[n-1].x1, s.x1)
			continue
		}
		merged = append(merged, s)
	}
	return merged
}

func combineSpans(a, b []span, op op) []span {
	xs := make([]int, 0, 2*(len(a)+len(b)))
	for _, s := range a {
		xs = append(xs, s.x0, s.x1)
	}
	for _, s := range b {
		xs = append(xs, s.x0, s.x1)
	}
	slices.Sort(xs)
	xs = slices.Compact(xs)

	var out []span
	for i := 0; i+1 < len(xs); i++ {
		x0, x1 := xs[i], xs[i+1]
		if !op.keep(covers(a, x0), covers(b, x0)) {
			continue
		}
		if n := len(out); (n > 0) && (out[n-1].x1 == x0) {
			out[n-1].x1 = x1
			continue
		}
		out = append(out, span{x0, x1})
	}
	return out
}

func covers(spans []span, x int) bool {
	for _, s := range spans {
		if (x >= s.x0) && (x < s.x1) {
			return true
		}
	}
	return false
}
