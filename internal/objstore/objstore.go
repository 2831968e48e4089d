// Package objstore holds the tables that map identifiers to live
// objects: the per-client protocol ID space and the generational
// arena used for compositor-owned handles.
package objstore

import (
	"iter"
	"slices"
)

// Store maps protocol object IDs to objects. IDs allocated by the
// store itself start at the value given to New.
type Store[T any] struct {
	objects map[uint32]T
	nextID  uint32
}

func New[T any](start uint32) *Store[T] {
	return &Store[T]{
		objects: make(map[uint32]T),
		nextID:  start,
	}
}

// Add stores obj under id. If id is zero, a new ID is allocated. It
// returns the ID used.
func (s *Store[T]) Add(id uint32, obj T) uint32 {
	if id == 0 {
		for {
			id = s.nextID
			s.nextID++
			if _, ok := s.objects[id]; !ok {
				break
			}
		}
	}

	s.objects[id] = obj
	return id
}

func (s *Store[T]) Get(id uint32) (T, bool) {
	obj, ok := s.objects[id]
	return obj, ok
}

func (s *Store[T]) Delete(id uint32) {
	delete(s.objects, id)
}

func (s *Store[T]) Len() int {
	return len(s.objects)
}

// Descending yields the stored objects from the highest ID to the
// lowest.
func (s *Store[T]) Descending() iter.Seq2[uint32, T] {
	return func(yield func(uint32, T) bool) {
		ids := make([]uint32, 0, len(s.objects))
		for id := range s.objects {
			ids = append(ids, id)
		}
		slices.Sort(ids)

		for _, id := range slices.Backward(ids) {
			obj, ok := s.objects[id]
			if !ok {
				continue
			}
			if !yield(id, obj) {
				return
			}
		}
	}
}
