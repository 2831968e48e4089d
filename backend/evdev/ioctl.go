package evdev

import (
	"fmt"
	"unsafe"

	"golang.org/x/sys/unix"
)

// Values from linux/input.h and linux/input-event-codes.h.
const (
	evSyn = 0x00
	evKey = 0x01
	evRel = 0x02
	evAbs = 0x03
	evMax = 0x1f

	synReport  = 0x00
	synDropped = 0x03

	relX      = 0x00
	relY      = 0x01
	relHWheel = 0x06
	relWheel  = 0x08
	relMax    = 0x0f

	absX            = 0x00
	absY            = 0x01
	absMTSlot       = 0x2f
	absMTPositionX  = 0x35
	absMTPositionY  = 0x36
	absMTTrackingID = 0x39
	absMax          = 0x3f
	keyA            = 30
	btnMouse        = 0x110
	btnTouch        = 0x14a
	keyMax          = 0x2ff
)

const (
	iocWrite = 1
	iocRead  = 2
)

func ioc(dir, nr, size uintptr) uintptr {
	return (dir << 30) | (size << 16) | ('E' << 8) | nr
}

func eviocgname(size int) uintptr { return ioc(iocRead, 0x06, uintptr(size)) }
func eviocgbit(ev, size int) uintptr { return ioc(iocRead, 0x20+uintptr(ev), uintptr(size)) }
func eviocgabs(abs int) uintptr { return ioc(iocRead, 0x40+uintptr(abs), unsafe.Sizeof(absInfo{})) }
func eviocgrab() uintptr { return ioc(iocWrite, 0x90, unsafe.Sizeof(int32(0))) }

type absInfo struct {
	Value      int32
	Minimum    int32
	Maximum    int32
	Fuzz       int32
	Flat       int32
	Resolution int32
}

func ioctl(fd uintptr, req uintptr, arg unsafe.Pointer) error {
	_, _, errno := unix.Syscall(unix.SYS_IOCTL, fd, req, uintptr(arg))
	if errno != 0 {
		return errno
	}
	return nil
}

// bits is a kernel bitmask as returned by EVIOCGBIT.
type bits []byte

func newBits(max int) bits {
	return make(bits, max/8+1)
}

func (b bits) has(i int) bool {
	if i/8 >= len(b) {
		return false
	}
	return b[i/8]&(1<<(i%8)) != 0
}

func queryBits(fd uintptr, ev, max int) (bits, error) {
	b := newBits(max)
	err := ioctl(fd, eviocgbit(ev, len(b)), unsafe.Pointer(&b[0]))
	if err != nil {
		return nil, fmt.Errorf("EVIOCGBIT %#x: %w", ev, err)
	}
	return b, nil
}

func queryName(fd uintptr) (string, error) {
	buf := make([]byte, 256)
	err := ioctl(fd, eviocgname(len(buf)), unsafe.Pointer(&buf[0]))
	if err != nil {
		return "", fmt.Errorf("EVIOCGNAME: %w", err)
	}
	return unix.ByteSliceToString(buf), nil
}

func queryAbs(fd uintptr, abs int) (absInfo, error) {
	var info absInfo
	err := ioctl(fd, eviocgabs(abs), unsafe.Pointer(&info))
	if err != nil {
		return info, fmt.Errorf("EVIOCGABS %#x: %w", abs, err)
	}
	return info, nil
}

func grab(fd uintptr, on bool) error {
	var v uintptr
	if on {
		v = 1
	}
	_, _, errno := unix.Syscall(unix.SYS_IOCTL, fd, eviocgrab(), v)
	if errno != 0 {
		return fmt.Errorf("EVIOCGRAB: %w", errno)
	}
	return nil
}
