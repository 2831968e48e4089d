// Package wire implements the Wayland wire format: the socket
// connection with its file descriptor queue, request decoding and
// event encoding. The protocol bindings in package wl are built on it.
package wire

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

const (
	headerSize = 8

	// maxMessageSize is the largest size the 16-bit size field of the
	// header can hold.
	maxMessageSize = 0xFFFF
)

// Object represents a Wayland protocol object.
type Object interface {
	// ID is the object's ID in the client's object space.
	ID() uint32

	// MethodName returns the name of the request with the given
	// opcode. It is used for debug output.
	MethodName(op uint16) string

	// Dispatch decodes the request in msg and hands it to the object's
	// handler.
	Dispatch(msg *MessageBuffer) error
}

// NewID is an untyped new_id argument, such as the one taken by
// wl_registry.bind.
type NewID struct {
	Interface string
	Version   uint32
	ID        uint32
}

// padding returns the number of bytes needed to pad n to a 32-bit
// boundary.
func padding(n uint32) uint32 {
	return (4 - n%4) % 4
}

func formatArgs(args []any) string {
	var sb strings.Builder
	for i, arg := range args {
		if i > 0 {
			sb.WriteString(", ")
		}
		switch arg := arg.(type) {
		case string:
			sb.WriteString(strconv.Quote(arg))
		case *os.File:
			fmt.Fprintf(&sb, "fd %v", arg.Fd())
		case []byte:
			fmt.Fprintf(&sb, "array[%v]", len(arg))
		default:
			fmt.Fprint(&sb, arg)
		}
	}
	return sb.String()
}
