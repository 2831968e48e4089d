package compositor

import (
	"image"
	"iter"

	"golang.org/x/exp/slices"
)

// Scene is the paint order of the top-level surfaces. Sub-surfaces
// and transients are not part of it directly; they are reached
// through their parents.
type Scene struct {
	comp *Compositor
	top  []Handle
}

// Add puts s on top of the scene. Adding a surface that is already in
// the scene raises it.
func (sc *Scene) Add(s *Surface) {
	sc.remove(s.handle)
	sc.top = append(sc.top, s.handle)
	sc.comp.RequestRepaint()
}

// Raise is Add under the name that callers raising a window expect.
func (sc *Scene) Raise(s *Surface) {
	if n := len(sc.top); (n > 0) && (sc.top[n-1] == s.handle) {
		return
	}
	sc.Add(s)
}

// Remove takes s, and with it all of its children, out of the scene.
func (sc *Scene) Remove(s *Surface) {
	if sc.remove(s.handle) {
		sc.comp.RequestRepaint()
	}
}

func (sc *Scene) remove(h Handle) bool {
	i := slices.Index(sc.top, h)
	if i < 0 {
		return false
	}
	sc.top = slices.Delete(sc.top, i, i+1)
	return true
}

func (sc *Scene) Contains(s *Surface) bool {
	return slices.Contains(sc.top, s.handle)
}

// Len returns the number of top-level surfaces.
func (sc *Scene) Len() int {
	return len(sc.top)
}

// Surfaces yields every surface in paint order, bottom to top. Each
// top-level surface is expanded in pre-order: a surface comes before
// its children unless a child was placed below it. Children of a
// surface without content are skipped.
func (sc *Scene) Surfaces() iter.Seq[*Surface] {
	return func(yield func(*Surface) bool) {
		for _, h := range slices.Clone(sc.top) {
			s, ok := sc.comp.surfaces.Get(h)
			if !ok {
				continue
			}
			if !sc.walk(s, yield) {
				return
			}
		}
	}
}

func (sc *Scene) walk(s *Surface, yield func(*Surface) bool) bool {
	for _, h := range s.stack {
		if h == s.handle {
			if !yield(s) {
				return false
			}
			continue
		}
		if !s.Mapped() {
			continue
		}
		child, ok := sc.comp.surfaces.Get(h)
		if !ok {
			continue
		}
		if !sc.walk(child, yield) {
			return false
		}
	}
	return true
}

// TopDown yields the surfaces of the scene from the top-most to the
// bottom-most.
func (sc *Scene) TopDown() iter.Seq[*Surface] {
	return func(yield func(*Surface) bool) {
		var all []*Surface
		for s := range sc.Surfaces() {
			all = append(all, s)
		}
		for i := len(all) - 1; i >= 0; i-- {
			if !yield(all[i]) {
				return
			}
		}
	}
}

// SurfaceAt returns the top-most surface whose input region contains
// the global point p.
func (sc *Scene) SurfaceAt(p image.Point) (*Surface, bool) {
	for s := range sc.TopDown() {
		if s.AcceptsInput(p) {
			return s, true
		}
	}
	return nil, false
}
