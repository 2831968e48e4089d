package wire

import (
	"errors"
	"fmt"
	"os"
	"reflect"
	"runtime"

	"github.com/Zubnix/trinity/internal/bin"
	"golang.org/x/sys/unix"
)

// MessageBuilder is an event under construction. Arguments are
// appended in order and Build writes the finished message to a
// connection.
type MessageBuilder struct {
	// Method and Args name the event and the values it was built from.
	// They are only used for debug output and by tests that inspect a
	// detached client's queue.
	Method string
	Args   []any

	sender Object
	op     uint16
	buf    []byte
	fds    []int
	err    error
}

// NewMessage starts an event with opcode op sent by sender. Room for
// the header is reserved and filled in by Build.
func NewMessage(sender Object, op uint16) *MessageBuilder {
	return &MessageBuilder{
		sender: sender,
		op:     op,
		buf:    make([]byte, headerSize, 32),
	}
}

func (mb *MessageBuilder) Sender() Object {
	return mb.sender
}

func (mb *MessageBuilder) Op() uint16 {
	return mb.op
}

// Len is the size of the message so far, header included.
func (mb *MessageBuilder) Len() int {
	return len(mb.buf)
}

func (mb *MessageBuilder) WriteInt(v int32) {
	if mb.err == nil {
		mb.buf = bin.Append(mb.buf, v)
	}
}

func (mb *MessageBuilder) WriteUint(v uint32) {
	if mb.err == nil {
		mb.buf = bin.Append(mb.buf, v)
	}
}

func (mb *MessageBuilder) WriteFixed(v Fixed) {
	if mb.err == nil {
		mb.buf = bin.Append(mb.buf, v)
	}
}

// WriteObject writes the ID of v, or zero if v is nil.
func (mb *MessageBuilder) WriteObject(v Object) {
	var id uint32
	if !isNil(v) {
		id = v.ID()
	}
	mb.WriteUint(id)
}

func (mb *MessageBuilder) WriteNewID(v NewID) {
	mb.WriteString(v.Interface)
	mb.WriteUint(v.Version)
	mb.WriteUint(v.ID)
}

// WriteString writes v with its terminating null byte.
func (mb *MessageBuilder) WriteString(v string) {
	if mb.err != nil {
		return
	}

	n := uint32(len(v) + 1)
	mb.buf = bin.Append(mb.buf, n)
	mb.buf = append(mb.buf, v...)
	mb.buf = append(mb.buf, make([]byte, 1+padding(n))...)
}

func (mb *MessageBuilder) WriteArray(v []byte) {
	if mb.err != nil {
		return
	}

	n := uint32(len(v))
	mb.buf = bin.Append(mb.buf, n)
	mb.buf = append(mb.buf, v...)
	mb.buf = append(mb.buf, make([]byte, padding(n))...)
}

// WriteFile attaches a duplicate of v's file descriptor to the
// message. The caller keeps ownership of v.
func (mb *MessageBuilder) WriteFile(v *os.File) {
	if mb.err != nil {
		return
	}

	fd, err := unix.Dup(int(v.Fd()))
	if err != nil {
		mb.err = err
		return
	}

	// Detached clients never build their messages, so the duplicates
	// are only closed when the builder is collected.
	if len(mb.fds) == 0 {
		runtime.SetFinalizer(mb, (*MessageBuilder).close)
	}
	mb.fds = append(mb.fds, fd)
}

// Build writes the message to c. The MessageBuilder must not be used
// again afterwards.
func (mb *MessageBuilder) Build(c *Conn) error {
	defer mb.close()

	if mb.err != nil {
		return mb.err
	}
	if len(mb.buf) > maxMessageSize {
		return fmt.Errorf("%v: message too large: %v bytes", mb, len(mb.buf))
	}

	bin.Put(mb.buf[0:], mb.sender.ID())
	bin.Put(mb.buf[4:], uint32(len(mb.buf))<<16|uint32(mb.op))

	var oob []byte
	if len(mb.fds) > 0 {
		oob = unix.UnixRights(mb.fds...)
	}
	mb.err = c.write(mb.buf, oob)
	return mb.err
}

func (mb *MessageBuilder) close() {
	var errs []error
	for _, fd := range mb.fds {
		errs = append(errs, unix.Close(fd))
	}
	if mb.err == nil {
		mb.err = errors.Join(errs...)
	}
	mb.fds = nil
	runtime.SetFinalizer(mb, nil)
}

func (mb *MessageBuilder) String() string {
	return fmt.Sprintf("%v.%v(%v)", mb.sender, mb.Method, formatArgs(mb.Args))
}

// isNil reports whether v is nil or a typed nil pointer.
func isNil(v Object) bool {
	if v == nil {
		return true
	}
	rv := reflect.ValueOf(v)
	return (rv.Kind() == reflect.Pointer) && rv.IsNil()
}
