// Package pointer holds the pointer vocabulary shared by the input
// backends and the seat: Linux button codes, scroll steps and resize
// edges.
package pointer

// Button is a Linux input button code, as sent in wl_pointer.button.
type Button uint32

// From linux/input-event-codes.h.
const (
	ButtonLeft Button = 0x110 + iota
	ButtonRight
	ButtonMiddle
	ButtonSide
	ButtonExtra
	ButtonForward
	ButtonBack
	ButtonTask
)

// ScrollStep is the distance, in surface-local units, that one wheel
// click scrolls.
const ScrollStep = 10

var buttonNames = [...]string{"left", "right", "middle", "side", "extra", "forward", "back", "task"}

// Valid reports whether b is one of the mouse buttons above.
func (b Button) Valid() bool {
	return (b >= ButtonLeft) && (b <= ButtonTask)
}

func (b Button) String() string {
	if !b.Valid() {
		return "unknown"
	}
	return buttonNames[b-ButtonLeft]
}

// CoreButton translates an X11 core protocol button number. Buttons 4
// to 7 are the wheel and are reported through Wheel instead.
func CoreButton(n uint8) (Button, bool) {
	switch n {
	case 1:
		return ButtonLeft, true
	case 2:
		return ButtonMiddle, true
	case 3:
		return ButtonRight, true
	case 8:
		return ButtonSide, true
	case 9:
		return ButtonExtra, true
	}
	return 0, false
}

// Wheel translates an X11 core wheel button into a scroll along an
// axis. vertical is false for buttons 6 and 7.
func Wheel(n uint8) (vertical bool, value float64, ok bool) {
	switch n {
	case 4:
		return true, -ScrollStep, true
	case 5:
		return true, ScrollStep, true
	case 6:
		return false, -ScrollStep, true
	case 7:
		return false, ScrollStep, true
	}
	return false, 0, false
}
