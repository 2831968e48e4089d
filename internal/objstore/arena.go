package objstore

import "iter"

// Handle refers to a slot in an Arena. The zero Handle never refers
// to anything.
type Handle struct {
	index uint32
	gen   uint32
}

// Valid reports whether h was ever issued by an arena. It does not
// say whether the slot is still live.
func (h Handle) Valid() bool {
	return h.gen != 0
}

type slot[T any] struct {
	val  T
	gen  uint32
	live bool
}

// Arena stores values in reusable slots. Each slot carries a
// generation that is bumped on deletion, so a Handle to a deleted
// value never resolves, even after the slot has been reused.
type Arena[T any] struct {
	slots []slot[T]
	free  []uint32
	len   int
}

func (a *Arena[T]) Add(v T) Handle {
	var i uint32
	if n := len(a.free); n > 0 {
		i = a.free[n-1]
		a.free = a.free[:n-1]
	} else {
		i = uint32(len(a.slots))
		a.slots = append(a.slots, slot[T]{})
	}

	s := &a.slots[i]
	s.gen++
	s.val = v
	s.live = true
	a.len++
	return Handle{index: i, gen: s.gen}
}

// Get returns the value h refers to if it is still live.
func (a *Arena[T]) Get(h Handle) (v T, ok bool) {
	if !h.Valid() || int(h.index) >= len(a.slots) {
		return v, false
	}
	s := &a.slots[h.index]
	if !s.live || (s.gen != h.gen) {
		return v, false
	}
	return s.val, true
}

// Delete frees the slot h refers to. It reports false if h was
// already dead.
func (a *Arena[T]) Delete(h Handle) bool {
	if _, ok := a.Get(h); !ok {
		return false
	}

	s := &a.slots[h.index]
	var zero T
	s.val = zero
	s.live = false
	a.free = append(a.free, h.index)
	a.len--
	return true
}

func (a *Arena[T]) Len() int {
	return a.len
}

func (a *Arena[T]) All() iter.Seq2[Handle, T] {
	return func(yield func(Handle, T) bool) {
		for i := range a.slots {
			s := &a.slots[i]
			if !s.live {
				continue
			}
			if !yield(Handle{index: uint32(i), gen: s.gen}, s.val) {
				return
			}
		}
	}
}
