package evdev

import (
	"image"
	"slices"

	"github.com/Zubnix/trinity/backend"
	"github.com/Zubnix/trinity/pointer"
	wl "github.com/Zubnix/trinity/server"
)

type absoluteKind int

const (
	absNone absoluteKind = iota
	absPointer
	absTouch
)

type touchSlot struct {
	id      int32
	x, y    int32
	down    bool
	changed bool
	started bool
	ended   bool
}

// translator turns a device's raw events into backend events. Events
// are collected until SYN_REPORT and then emitted together.
type translator struct {
	absolute       absoluteKind
	rangeX, rangeY [2]int32
	area           image.Rectangle

	out     []backend.Event
	dx, dy  int32
	absMove bool
	absPos  [2]int32

	slot     int32
	slots    []touchSlot
	dropping bool
}

func (t *translator) feed(ev rawEvent) []backend.Event {
	if t.dropping {
		if (ev.Type == evSyn) && (ev.Code == synReport) {
			t.dropping = false
		}
		return nil
	}

	switch ev.Type {
	case evSyn:
		switch ev.Code {
		case synReport:
			return t.report(ev.time())
		case synDropped:
			t.dropping = true
			return t.reset()
		}

	case evKey:
		t.key(ev)

	case evRel:
		switch ev.Code {
		case relX:
			t.dx += ev.Value
		case relY:
			t.dy += ev.Value
		case relWheel:
			t.out = append(t.out, backend.Axis{Time: ev.time(), Axis: wl.PointerAxisVerticalScroll, Value: float64(-ev.Value * pointer.ScrollStep)})
		case relHWheel:
			t.out = append(t.out, backend.Axis{Time: ev.time(), Axis: wl.PointerAxisHorizontalScroll, Value: float64(ev.Value * pointer.ScrollStep)})
		}

	case evAbs:
		t.abs(ev)
	}
	return nil
}

func (t *translator) key(ev rawEvent) {
	if ev.Value == 2 {
		// Autorepeat is left to clients.
		return
	}
	pressed := ev.Value == 1

	switch {
	case ev.Code == btnTouch:
		// Contacts are reported through the multi-touch slots.
	case pointer.Button(ev.Code).Valid():
		t.out = append(t.out, backend.Button{Time: ev.time(), Code: uint32(ev.Code), Pressed: pressed})
	default:
		t.out = append(t.out, backend.Key{Time: ev.time(), Code: uint32(ev.Code), Pressed: pressed})
	}
}

func (t *translator) abs(ev rawEvent) {
	switch t.absolute {
	case absPointer:
		switch ev.Code {
		case absX:
			t.absPos[0] = ev.Value
			t.absMove = true
		case absY:
			t.absPos[1] = ev.Value
			t.absMove = true
		}

	case absTouch:
		switch ev.Code {
		case absMTSlot:
			t.slot = ev.Value
		case absMTTrackingID:
			s := t.currentSlot()
			if ev.Value < 0 {
				s.ended = s.down
				s.down = false
				return
			}
			s.id = ev.Value
			s.down = true
			s.started = true
		case absMTPositionX:
			s := t.currentSlot()
			s.x = ev.Value
			s.changed = true
		case absMTPositionY:
			s := t.currentSlot()
			s.y = ev.Value
			s.changed = true
		}
	}
}

func (t *translator) currentSlot() *touchSlot {
	if t.slot < 0 {
		t.slot = 0
	}
	for int(t.slot) >= len(t.slots) {
		t.slots = append(t.slots, touchSlot{})
	}
	return &t.slots[t.slot]
}

func (t *translator) report(time uint32) []backend.Event {
	if (t.dx != 0) || (t.dy != 0) {
		t.out = append(t.out, backend.Motion{Time: time, DX: float64(t.dx), DY: float64(t.dy)})
		t.dx, t.dy = 0, 0
	}
	if t.absMove {
		x, y := t.scale(t.absPos[0], t.absPos[1])
		t.out = append(t.out, backend.MotionAbsolute{Time: time, X: x, Y: y})
		t.absMove = false
	}

	var touched bool
	for i := range t.slots {
		s := &t.slots[i]
		switch {
		case s.started && s.down:
			x, y := t.scale(s.x, s.y)
			t.out = append(t.out, backend.TouchDown{Time: time, ID: s.id, X: x, Y: y})
			touched = true
		case s.ended:
			t.out = append(t.out, backend.TouchUp{Time: time, ID: s.id})
			touched = true
		case s.changed && s.down:
			x, y := t.scale(s.x, s.y)
			t.out = append(t.out, backend.TouchMotion{Time: time, ID: s.id, X: x, Y: y})
			touched = true
		}
		s.started, s.ended, s.changed = false, false, false
	}
	if touched {
		t.out = append(t.out, backend.TouchFrame{})
	}

	out := slices.Clone(t.out)
	t.out = t.out[:0]
	return out
}

// scale maps a device position onto the area.
func (t *translator) scale(x, y int32) (float64, float64) {
	return scaleAxis(x, t.rangeX, t.area.Min.X, t.area.Dx()), scaleAxis(y, t.rangeY, t.area.Min.Y, t.area.Dy())
}

func scaleAxis(v int32, r [2]int32, origin, size int) float64 {
	span := r[1] - r[0]
	if span <= 0 {
		return float64(origin)
	}
	return float64(origin) + float64(v-r[0])*float64(size)/float64(span)
}

// reset drops partial state after the kernel reports lost events.
// Touches that were down are cancelled.
func (t *translator) reset() []backend.Event {
	t.out = t.out[:0]
	t.dx, t.dy = 0, 0
	t.absMove = false

	var down bool
	for i := range t.slots {
		down = down || t.slots[i].down
		t.slots[i] = touchSlot{}
	}
	if down {
		return []backend.Event{backend.TouchCancel{}}
	}
	return nil
}
