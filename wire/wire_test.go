package wire

import (
	"errors"
	"io"
	"net"
	"os"
	"testing"

	"github.com/Zubnix/trinity/internal/bin"
	"golang.org/x/sys/unix"
)

type testObject uint32

func (obj testObject) ID() uint32                    { return uint32(obj) }
func (obj testObject) MethodName(uint16) string      { return "test" }
func (obj testObject) Dispatch(*MessageBuffer) error { return nil }

func socketPair(t *testing.T) (*Conn, *Conn) {
	t.Helper()

	fds, err := unix.Socketpair(unix.AF_UNIX, unix.SOCK_STREAM|unix.SOCK_CLOEXEC, 0)
	if err != nil {
		t.Fatal(err)
	}

	conns := make([]*Conn, 2)
	for i, fd := range fds {
		file := os.NewFile(uintptr(fd), "socketpair")
		c, err := net.FileConn(file)
		file.Close()
		if err != nil {
			t.Fatal(err)
		}
		conns[i] = NewConn(c.(*net.UnixConn))
		t.Cleanup(func() { conns[i].Close() })
	}
	return conns[0], conns[1]
}

func TestMessageRoundTrip(t *testing.T) {
	a, b := socketPair(t)

	file, err := os.CreateTemp(t.TempDir(), "fd")
	if err != nil {
		t.Fatal(err)
	}
	defer file.Close()
	file.WriteString("payload")

	mb := NewMessage(testObject(7), 3)
	mb.WriteInt(-12)
	mb.WriteString("wl_surface")
	mb.WriteString("")
	mb.WriteFixed(FixedFloat(1.5))
	mb.WriteArray([]byte{1, 2, 3})
	mb.WriteFile(file)
	if err := mb.Build(a); err != nil {
		t.Fatalf("build: %v", err)
	}

	msg, err := ReadMessage(b)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if msg.Sender() != 7 || msg.Op() != 3 {
		t.Fatalf("header: got sender %v op %v", msg.Sender(), msg.Op())
	}

	if v := msg.ReadInt(); v != -12 {
		t.Errorf("int: got %v", v)
	}
	if v := msg.ReadString(); v != "wl_surface" {
		t.Errorf("string: got %q", v)
	}
	if v := msg.ReadString(); v != "" {
		t.Errorf("empty string: got %q", v)
	}
	if v := msg.ReadFixed(); v.Float() != 1.5 {
		t.Errorf("fixed: got %v", v)
	}
	if v := msg.ReadArray(); len(v) != 3 || v[2] != 3 {
		t.Errorf("array: got %v", v)
	}
	f := msg.ReadFile()
	if err := msg.Err(); err != nil {
		t.Fatalf("decode: %v", err)
	}
	defer f.Close()

	data, err := io.ReadAll(io.NewSectionReader(f, 0, 7))
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "payload" {
		t.Errorf("fd contents: got %q", data)
	}
}

func TestReadFileWithoutDescriptor(t *testing.T) {
	a, b := socketPair(t)

	mb := NewMessage(testObject(1), 0)
	mb.WriteUint(1)
	if err := mb.Build(a); err != nil {
		t.Fatal(err)
	}

	msg, err := ReadMessage(b)
	if err != nil {
		t.Fatal(err)
	}
	msg.ReadUint()
	if f := msg.ReadFile(); f != nil {
		t.Fatalf("got file %v, expected none", f.Name())
	}
	if msg.Err() == nil {
		t.Fatal("expected error")
	}
}

func TestFixed(t *testing.T) {
	tests := []struct {
		in   float64
		int  int
		frac int
	}{
		{1.5, 1, 128},
		{-1.5, -2, 128},
		{0, 0, 0},
		{10.25, 10, 64},
	}

	for _, test := range tests {
		f := FixedFloat(test.in)
		if f.Float() != test.in {
			t.Errorf("%v: float round trip got %v", test.in, f.Float())
		}
		if f.Int() != test.int {
			t.Errorf("%v: int got %v, expected %v", test.in, f.Int(), test.int)
		}
		if f.Frac() != test.frac {
			t.Errorf("%v: frac got %v, expected %v", test.in, f.Frac(), test.frac)
		}
	}

	if FixedInt(3).Float() != 3 {
		t.Errorf("FixedInt(3) = %v", FixedInt(3))
	}
}

func TestMalformedArguments(t *testing.T) {
	tests := []struct {
		name string
		body []uint32
		read func(*MessageBuffer)
	}{
		{"short", nil, func(msg *MessageBuffer) { msg.ReadUint() }},
		{"string length", []uint32{64, 0x41414141}, func(msg *MessageBuffer) { msg.ReadString() }},
		{"unterminated", []uint32{4, 0x41414141}, func(msg *MessageBuffer) { msg.ReadString() }},
		{"array length", []uint32{0xFFFFFFFF}, func(msg *MessageBuffer) { msg.ReadArray() }},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			a, b := socketPair(t)

			size := uint32(headerSize + 4*len(test.body))
			raw := bin.Append(nil, 1, size<<16)
			raw = bin.Append(raw, test.body...)
			if err := a.write(raw, nil); err != nil {
				t.Fatal(err)
			}

			msg, err := ReadMessage(b)
			if err != nil {
				t.Fatal(err)
			}
			test.read(msg)
			var argErr ArgError
			if !errors.As(msg.Err(), &argErr) {
				t.Fatalf("got %v, expected an ArgError", msg.Err())
			}
		})
	}
}

func TestBuilderLength(t *testing.T) {
	mb := NewMessage(testObject(3), 1)
	mb.WriteString("abc")
	mb.WriteArray([]byte{1})
	// header, length and "abc\0", length and one padded byte.
	if mb.Len() != 8+8+8 {
		t.Fatalf("length %v", mb.Len())
	}
}
