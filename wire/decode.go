package wire

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/Zubnix/trinity/internal/bin"
)

// MessageBuffer is a request that has been read from a connection but
// not yet decoded. Arguments are read in order. The first failure is
// kept and later reads return zero values.
type MessageBuffer struct {
	conn   *Conn
	sender uint32
	op     uint16
	body   []byte
	off    int
	err    error
	args   []any
}

// ReadMessage reads the next request from c. File descriptor
// arguments are claimed from c when they are decoded.
func ReadMessage(c *Conn) (*MessageBuffer, error) {
	var header [headerSize]byte
	_, err := io.ReadFull(c, header[:])
	if err != nil {
		return nil, fmt.Errorf("read message header: %w", err)
	}

	msg := MessageBuffer{
		conn:   c,
		sender: bin.Get[uint32](header[0:]),
	}
	so := bin.Get[uint32](header[4:])
	size := int(so >> 16)
	msg.op = uint16(so)
	if (size < headerSize) || (size%4 != 0) {
		return nil, fmt.Errorf("object %v: invalid message size %v", msg.sender, size)
	}

	msg.body = make([]byte, size-headerSize)
	_, err = io.ReadFull(c, msg.body)
	if err != nil {
		return nil, fmt.Errorf("read message body: %w", err)
	}
	return &msg, nil
}

// Sender is the object ID of the sender of the message.
func (r *MessageBuffer) Sender() uint32 {
	return r.sender
}

// Op is the opcode of the message.
func (r *MessageBuffer) Op() uint16 {
	return r.op
}

// Size is the total size of the message, including the 8 byte header.
func (r *MessageBuffer) Size() uint16 {
	return uint16(headerSize + len(r.body))
}

func (r *MessageBuffer) Err() error {
	return r.err
}

// next consumes n bytes of the body, or fails with an ArgError naming
// typ if fewer remain.
func (r *MessageBuffer) next(typ string, n int) []byte {
	if r.err != nil {
		return nil
	}
	if (n < 0) || (len(r.body)-r.off < n) {
		r.err = ArgError{Type: typ, Err: io.ErrUnexpectedEOF}
		return nil
	}
	b := r.body[r.off : r.off+n : r.off+n]
	r.off += n
	return b
}

func (r *MessageBuffer) word(typ string) uint32 {
	b := r.next(typ, 4)
	if b == nil {
		return 0
	}
	return bin.Get[uint32](b)
}

func (r *MessageBuffer) ReadInt() int32 {
	v := int32(r.word("int"))
	r.args = append(r.args, v)
	return v
}

func (r *MessageBuffer) ReadUint() uint32 {
	v := r.word("uint")
	r.args = append(r.args, v)
	return v
}

// ReadObject reads an object ID. Zero is the null object.
func (r *MessageBuffer) ReadObject() uint32 {
	return r.ReadUint()
}

func (r *MessageBuffer) ReadNewID() NewID {
	return NewID{
		Interface: r.ReadString(),
		Version:   r.ReadUint(),
		ID:        r.ReadUint(),
	}
}

func (r *MessageBuffer) ReadFixed() Fixed {
	v := Fixed(r.word("fixed"))
	r.args = append(r.args, v)
	return v
}

// ReadString reads a string. A null string reads as "".
func (r *MessageBuffer) ReadString() string {
	n := r.word("string")
	if n == 0 {
		r.args = append(r.args, "")
		return ""
	}

	b := r.next("string", int(n)+int(padding(n)))
	if b == nil {
		return ""
	}
	if i := bytes.IndexByte(b, 0); i != int(n)-1 {
		r.err = ArgError{Type: "string", Err: errors.New("string is not null-terminated")}
		return ""
	}

	v := string(b[:n-1])
	r.args = append(r.args, v)
	return v
}

func (r *MessageBuffer) ReadArray() []byte {
	n := r.word("array")
	b := r.next("array", int(n)+int(padding(n)))
	if b == nil {
		return nil
	}

	v := bytes.Clone(b[:n])
	r.args = append(r.args, v)
	return v
}

// ReadFile claims the next file descriptor received on the
// connection. The caller owns the returned file.
func (r *MessageBuffer) ReadFile() *os.File {
	if r.err != nil {
		return nil
	}
	if r.conn == nil {
		r.err = ArgError{Type: "fd", Err: errors.New("message has no connection")}
		return nil
	}

	fd, ok := r.conn.popFD()
	if !ok {
		r.err = ArgError{Type: "fd", Err: errors.New("no more file descriptors")}
		return nil
	}

	f := os.NewFile(uintptr(fd), "")
	r.args = append(r.args, f)
	return f
}

// Debug formats the decoded request the way WAYLAND_DEBUG prints it.
func (r *MessageBuffer) Debug(sender Object) string {
	return fmt.Sprintf("%v.%v(%v)", sender, sender.MethodName(r.op), formatArgs(r.args))
}
