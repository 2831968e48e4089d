package wl

import (
	"os"

	"github.com/Zubnix/trinity/wire"
)

// wl_seat

const SeatVersion = 4

const (
	SeatCapabilityPointer  = 1
	SeatCapabilityKeyboard = 2
	SeatCapabilityTouch    = 4
)

var SeatInterface = &Interface{
	Name:    "wl_seat",
	Version: SeatVersion,
	requests: []request{
		{name: "get_pointer", decode: func(c *Client, msg *wire.MessageBuffer) Request {
			return SeatGetPointer{ID: msg.ReadUint()}
		}},
		{name: "get_keyboard", decode: func(c *Client, msg *wire.MessageBuffer) Request {
			return SeatGetKeyboard{ID: msg.ReadUint()}
		}},
		{name: "get_touch", decode: func(c *Client, msg *wire.MessageBuffer) Request {
			return SeatGetTouch{ID: msg.ReadUint()}
		}},
		{name: "release", since: 5, decode: noArgs(SeatRelease{})},
	},
	events: []string{"capabilities", "name"},
}

type SeatGetPointer struct{ ID uint32 }
type SeatGetKeyboard struct{ ID uint32 }
type SeatGetTouch struct{ ID uint32 }
type SeatRelease struct{}

func (SeatGetPointer) request() *Interface  { return SeatInterface }
func (SeatGetKeyboard) request() *Interface { return SeatInterface }
func (SeatGetTouch) request() *Interface    { return SeatInterface }
func (SeatRelease) request() *Interface     { return SeatInterface }

func SeatCapabilities(r *Resource, caps uint32) {
	mb := r.newEvent(0, caps)
	mb.WriteUint(caps)
	r.send(mb)
}

func SeatName(r *Resource, name string) {
	if r.version < 2 {
		return
	}
	mb := r.newEvent(1, name)
	mb.WriteString(name)
	r.send(mb)
}

// wl_pointer

const PointerErrorRole = 0

const (
	PointerButtonStateReleased = 0
	PointerButtonStatePressed  = 1
)

const (
	PointerAxisVerticalScroll   = 0
	PointerAxisHorizontalScroll = 1
)

var PointerInterface = &Interface{
	Name:    "wl_pointer",
	Version: SeatVersion,
	requests: []request{
		{name: "set_cursor", decode: func(c *Client, msg *wire.MessageBuffer) Request {
			return PointerSetCursor{
				Serial:   msg.ReadUint(),
				Surface:  c.resolve(msg.ReadObject()),
				HotspotX: msg.ReadInt(),
				HotspotY: msg.ReadInt(),
			}
		}},
		{name: "release", since: 3, decode: noArgs(PointerRelease{})},
	},
	events: []string{"enter", "leave", "motion", "button", "axis"},
}

type PointerSetCursor struct {
	Serial             uint32
	Surface            *Resource
	HotspotX, HotspotY int32
}

type PointerRelease struct{}

func (PointerSetCursor) request() *Interface { return PointerInterface }
func (PointerRelease) request() *Interface   { return PointerInterface }

func PointerEnter(r *Resource, serial uint32, surface *Resource, x, y wire.Fixed) {
	mb := r.newEvent(0, serial, surface, x, y)
	mb.WriteUint(serial)
	mb.WriteObject(surface)
	mb.WriteFixed(x)
	mb.WriteFixed(y)
	r.send(mb)
}

func PointerLeave(r *Resource, serial uint32, surface *Resource) {
	mb := r.newEvent(1, serial, surface)
	mb.WriteUint(serial)
	mb.WriteObject(surface)
	r.send(mb)
}

func PointerMotion(r *Resource, time uint32, x, y wire.Fixed) {
	mb := r.newEvent(2, time, x, y)
	mb.WriteUint(time)
	mb.WriteFixed(x)
	mb.WriteFixed(y)
	r.send(mb)
}

func PointerButton(r *Resource, serial, time, button, state uint32) {
	mb := r.newEvent(3, serial, time, button, state)
	mb.WriteUint(serial)
	mb.WriteUint(time)
	mb.WriteUint(button)
	mb.WriteUint(state)
	r.send(mb)
}

func PointerAxis(r *Resource, time, axis uint32, value wire.Fixed) {
	mb := r.newEvent(4, time, axis, value)
	mb.WriteUint(time)
	mb.WriteUint(axis)
	mb.WriteFixed(value)
	r.send(mb)
}

// wl_keyboard

const (
	KeyboardKeymapFormatNoKeymap = 0
	KeyboardKeymapFormatXKBV1    = 1
)

const (
	KeyboardKeyStateReleased = 0
	KeyboardKeyStatePressed  = 1
)

var KeyboardInterface = &Interface{
	Name:    "wl_keyboard",
	Version: SeatVersion,
	requests: []request{
		{name: "release", since: 3, decode: noArgs(KeyboardRelease{})},
	},
	events: []string{"keymap", "enter", "leave", "key", "modifiers", "repeat_info"},
}

type KeyboardRelease struct{}

func (KeyboardRelease) request() *Interface { return KeyboardInterface }

func KeyboardKeymap(r *Resource, format uint32, file *os.File, size uint32) {
	mb := r.newEvent(0, format, file, size)
	mb.WriteUint(format)
	mb.WriteFile(file)
	mb.WriteUint(size)
	r.send(mb)
}

func KeyboardEnter(r *Resource, serial uint32, surface *Resource, keys []byte) {
	mb := r.newEvent(1, serial, surface, keys)
	mb.WriteUint(serial)
	mb.WriteObject(surface)
	mb.WriteArray(keys)
	r.send(mb)
}

func KeyboardLeave(r *Resource, serial uint32, surface *Resource) {
	mb := r.newEvent(2, serial, surface)
	mb.WriteUint(serial)
	mb.WriteObject(surface)
	r.send(mb)
}

func KeyboardKey(r *Resource, serial, time, key, state uint32) {
	mb := r.newEvent(3, serial, time, key, state)
	mb.WriteUint(serial)
	mb.WriteUint(time)
	mb.WriteUint(key)
	mb.WriteUint(state)
	r.send(mb)
}

func KeyboardModifiers(r *Resource, serial, depressed, latched, locked, group uint32) {
	mb := r.newEvent(4, serial, depressed, latched, locked, group)
	mb.WriteUint(serial)
	mb.WriteUint(depressed)
	mb.WriteUint(latched)
	mb.WriteUint(locked)
	mb.WriteUint(group)
	r.send(mb)
}

func KeyboardRepeatInfo(r *Resource, rate, delay int32) {
	if r.version < 4 {
		return
	}
	mb := r.newEvent(5, rate, delay)
	mb.WriteInt(rate)
	mb.WriteInt(delay)
	r.send(mb)
}

// wl_touch

var TouchInterface = &Interface{
	Name:    "wl_touch",
	Version: SeatVersion,
	requests: []request{
		{name: "release", since: 3, decode: noArgs(TouchRelease{})},
	},
	events: []string{"down", "up", "motion", "frame", "cancel"},
}

type TouchRelease struct{}

func (TouchRelease) request() *Interface { return TouchInterface }

func TouchDown(r *Resource, serial, time uint32, surface *Resource, id int32, x, y wire.Fixed) {
	mb := r.newEvent(0, serial, time, surface, id, x, y)
	mb.WriteUint(serial)
	mb.WriteUint(time)
	mb.WriteObject(surface)
	mb.WriteInt(id)
	mb.WriteFixed(x)
	mb.WriteFixed(y)
	r.send(mb)
}

func TouchUp(r *Resource, serial, time uint32, id int32) {
	mb := r.newEvent(1, serial, time, id)
	mb.WriteUint(serial)
	mb.WriteUint(time)
	mb.WriteInt(id)
	r.send(mb)
}

func TouchMotion(r *Resource, time uint32, id int32, x, y wire.Fixed) {
	mb := r.newEvent(2, time, id, x, y)
	mb.WriteUint(time)
	mb.WriteInt(id)
	mb.WriteFixed(x)
	mb.WriteFixed(y)
	r.send(mb)
}

func TouchFrame(r *Resource) {
	r.send(r.newEvent(3))
}

func TouchCancel(r *Resource) {
	r.send(r.newEvent(4))
}

// wl_output

const OutputVersion = 2

const (
	OutputModeCurrent   = 1
	OutputModePreferred = 2
)

var OutputInterface = &Interface{
	Name:    "wl_output",
	Version: OutputVersion,
	requests: []request{
		{name: "release", since: 3, decode: noArgs(OutputRelease{})},
	},
	events: []string{"geometry", "mode", "done", "scale"},
}

type OutputRelease struct{}

func (OutputRelease) request() *Interface { return OutputInterface }

func OutputGeometry(r *Resource, x, y, physicalWidth, physicalHeight, subpixel int32, make, model string, transform int32) {
	mb := r.newEvent(0, x, y, physicalWidth, physicalHeight, subpixel, make, model, transform)
	mb.WriteInt(x)
	mb.WriteInt(y)
	mb.WriteInt(physicalWidth)
	mb.WriteInt(physicalHeight)
	mb.WriteInt(subpixel)
	mb.WriteString(make)
	mb.WriteString(model)
	mb.WriteInt(transform)
	r.send(mb)
}

func OutputMode(r *Resource, flags uint32, width, height, refresh int32) {
	mb := r.newEvent(1, flags, width, height, refresh)
	mb.WriteUint(flags)
	mb.WriteInt(width)
	mb.WriteInt(height)
	mb.WriteInt(refresh)
	r.send(mb)
}

func OutputDone(r *Resource) {
	if r.version < 2 {
		return
	}
	r.send(r.newEvent(2))
}

func OutputScale(r *Resource, factor int32) {
	if r.version < 2 {
		return
	}
	mb := r.newEvent(3, factor)
	mb.WriteInt(factor)
	r.send(mb)
}
