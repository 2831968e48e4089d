package objstore

import "testing"

func TestArenaStaleHandle(t *testing.T) {
	var a Arena[string]

	h1 := a.Add("one")
	if v, ok := a.Get(h1); !ok || v != "one" {
		t.Fatalf("got %q, %v", v, ok)
	}

	if !a.Delete(h1) {
		t.Fatal("delete of live handle failed")
	}
	if a.Delete(h1) {
		t.Fatal("second delete succeeded")
	}

	h2 := a.Add("two")
	if h2.index != h1.index {
		t.Fatalf("slot not reused: %v vs %v", h2.index, h1.index)
	}
	if _, ok := a.Get(h1); ok {
		t.Fatal("stale handle resolved after slot reuse")
	}
	if v, ok := a.Get(h2); !ok || v != "two" {
		t.Fatalf("got %q, %v", v, ok)
	}
	if a.Len() != 1 {
		t.Fatalf("len = %v", a.Len())
	}

	var zero Handle
	if _, ok := a.Get(zero); ok {
		t.Fatal("zero handle resolved")
	}
}

func TestStoreDescending(t *testing.T) {
	s := New[string](0xff000000)
	s.Add(3, "c")
	s.Add(1, "a")
	s.Add(2, "b")
	id := s.Add(0, "server")
	if id != 0xff000000 {
		t.Fatalf("allocated id %#x", id)
	}

	var got []uint32
	for id := range s.Descending() {
		got = append(got, id)
	}
	want := []uint32{0xff000000, 3, 2, 1}
	if len(got) != len(want) {
		t.Fatalf("got %v", got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("got %v, want %v", got, want)
		}
	}
}
