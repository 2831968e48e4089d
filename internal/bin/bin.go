// Package bin reads and writes the 32-bit words that the Wayland wire
// format is made of. Words are in host byte order.
package bin

import "encoding/binary"

type Word interface {
	~int32 | ~uint32
}

var order = binary.NativeEndian

// Append appends the words in v to b.
func Append[T Word](b []byte, v ...T) []byte {
	for _, w := range v {
		b = order.AppendUint32(b, uint32(w))
	}
	return b
}

// Put writes v to the start of b, which must be at least four bytes
// long.
func Put[T Word](b []byte, v T) {
	order.PutUint32(b, uint32(v))
}

// Get reads a word from the start of b, which must be at least four
// bytes long.
func Get[T Word](b []byte) T {
	return T(order.Uint32(b))
}
