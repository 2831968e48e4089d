// Package backend holds what the display and input backends have in
// common: the input events they produce and how those events reach
// the seat.
package backend

import (
	"github.com/Zubnix/trinity/seat"
)

// Event is an input event from a backend. Times are in milliseconds
// of an unspecified clock.
type Event interface {
	event()
}

// Key is a key press or release. Code is a Linux evdev key code.
type Key struct {
	Time    uint32
	Code    uint32
	Pressed bool
}

// Button is a pointer button press or release. Code is a Linux evdev
// button code.
type Button struct {
	Time    uint32
	Code    uint32
	Pressed bool
}

// Motion moves the pointer relative to its current position.
type Motion struct {
	Time   uint32
	DX, DY float64
}

// MotionAbsolute moves the pointer to a position in global
// coordinates.
type MotionAbsolute struct {
	Time uint32
	X, Y float64
}

// Axis is a scroll along a wl_pointer axis.
type Axis struct {
	Time  uint32
	Axis  uint32
	Value float64
}

// TouchDown, TouchMotion and TouchUp report a touch point by ID.
// TouchFrame ends a group of touch events that belong together.
type TouchDown struct {
	Time uint32
	ID   int32
	X, Y float64
}

type TouchMotion struct {
	Time uint32
	ID   int32
	X, Y float64
}

type TouchUp struct {
	Time uint32
	ID   int32
}

type TouchFrame struct{}

type TouchCancel struct{}

func (Key) event()            {}
func (Button) event()         {}
func (Motion) event()         {}
func (MotionAbsolute) event() {}
func (Axis) event()           {}
func (TouchDown) event()      {}
func (TouchMotion) event()    {}
func (TouchUp) event()        {}
func (TouchFrame) event()     {}
func (TouchCancel) event()    {}

// Deliver feeds ev to st. It must be called on the event loop.
func Deliver(st *seat.Seat, ev Event) {
	switch ev := ev.(type) {
	case Key:
		st.Keyboard().Key(ev.Time, ev.Code, ev.Pressed)
	case Button:
		st.Pointer().Button(ev.Time, ev.Code, ev.Pressed)
	case Motion:
		st.Pointer().MotionRelative(ev.Time, ev.DX, ev.DY)
	case MotionAbsolute:
		st.Pointer().MotionAbsolute(ev.Time, ev.X, ev.Y)
	case Axis:
		st.Pointer().Axis(ev.Time, ev.Axis, ev.Value)
	case TouchDown:
		st.Touch().Down(ev.Time, ev.ID, ev.X, ev.Y)
	case TouchMotion:
		st.Touch().Motion(ev.Time, ev.ID, ev.X, ev.Y)
	case TouchUp:
		st.Touch().Up(ev.Time, ev.ID)
	case TouchFrame:
		st.Touch().Frame()
	case TouchCancel:
		st.Touch().Cancel()
	}
}
