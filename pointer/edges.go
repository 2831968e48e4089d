package pointer

import "image"

// Edges is a set of window edges, as used by interactive resizing.
type Edges uint32

const (
	EdgeNone   Edges = 0
	EdgeTop    Edges = 1
	EdgeBottom Edges = 2
	EdgeLeft   Edges = 4
	EdgeRight  Edges = 8

	EdgeTopLeft     = EdgeTop | EdgeLeft
	EdgeBottomLeft  = EdgeBottom | EdgeLeft
	EdgeTopRight    = EdgeTop | EdgeRight
	EdgeBottomRight = EdgeBottom | EdgeRight
)

// Valid reports whether e names an edge or corner, as opposed to, for
// example, both the top and the bottom.
func (e Edges) Valid() bool {
	switch e {
	case EdgeNone, EdgeTop, EdgeBottom, EdgeLeft, EdgeRight,
		EdgeTopLeft, EdgeBottomLeft, EdgeTopRight, EdgeBottomRight:
		return true
	}
	return false
}

// Resize returns the size that a window of the given size has after
// the edges in e have been dragged by delta. Neither dimension drops
// below 1.
func (e Edges) Resize(size, delta image.Point) image.Point {
	switch {
	case e&EdgeLeft != 0:
		size.X -= delta.X
	case e&EdgeRight != 0:
		size.X += delta.X
	}
	switch {
	case e&EdgeTop != 0:
		size.Y -= delta.Y
	case e&EdgeBottom != 0:
		size.Y += delta.Y
	}
	return image.Pt(max(size.X, 1), max(size.Y, 1))
}

// Anchor returns how far a window's origin has to move when it
// changes from size old to size new so that the edges opposite to e
// stay where they are.
func (e Edges) Anchor(old, new image.Point) image.Point {
	var d image.Point
	if e&EdgeLeft != 0 {
		d.X = old.X - new.X
	}
	if e&EdgeTop != 0 {
		d.Y = old.Y - new.Y
	}
	return d
}

func (e Edges) String() string {
	switch e {
	case EdgeNone:
		return "none"
	case EdgeTop:
		return "top"
	case EdgeBottom:
		return "bottom"
	case EdgeLeft:
		return "left"
	case EdgeRight:
		return "right"
	case EdgeTopLeft:
		return "top-left"
	case EdgeBottomLeft:
		return "bottom-left"
	case EdgeTopRight:
		return "top-right"
	case EdgeBottomRight:
		return "bottom-right"
	}
	return "invalid"
}
