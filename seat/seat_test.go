package seat_test

import (
	"image"
	"testing"

	"github.com/Zubnix/trinity/compositor"
	"github.com/Zubnix/trinity/internal/wltest"
	"github.com/Zubnix/trinity/pointer"
	"github.com/Zubnix/trinity/seat"
	wl "github.com/Zubnix/trinity/server"
	"github.com/Zubnix/trinity/wire"
)

const btnLeft = uint32(pointer.ButtonLeft)

type fixture struct {
	comp   *compositor.Compositor
	client *wl.Client
	seat   *seat.Seat

	pointer, keyboard *wl.Resource
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	comp, client := wltest.Compositor(t)
	st := seat.New(comp, seat.Config{Capabilities: seat.CapPointer | seat.CapKeyboard | seat.CapTouch}, wltest.Log())

	sr, err := client.NewResource(wl.SeatInterface, wl.SeatVersion, 0, st)
	if err != nil {
		t.Fatal(err)
	}
	f := fixture{comp: comp, client: client, seat: st}
	for _, req := range []wl.Request{wl.SeatGetPointer{}, wl.SeatGetKeyboard{}} {
		if err := st.Handle(sr, req); err != nil {
			t.Fatal(err)
		}
	}
	f.pointer = f.find(t, wl.PointerInterface)
	f.keyboard = f.find(t, wl.KeyboardInterface)
	return &f
}

// find returns the most recently created resource of iface.
func (f *fixture) find(t *testing.T, iface *wl.Interface) *wl.Resource {
	t.Helper()

	for id := uint32(0xff0000ff); id >= 0xff000000; id-- {
		if r, ok := f.client.Get(id); ok && (r.Interface() == iface) {
			return r
		}
	}
	t.Fatalf("no %v resource", iface.Name)
	return nil
}

// window maps a w×h top-level surface at p.
func (f *fixture) window(t *testing.T, p image.Point, w, h int) *compositor.Surface {
	t.Helper()

	s := wltest.Surface(t, f.comp, f.client)
	s.SetPosition(p)
	wltest.Map(t, s, w, h)
	f.comp.Scene().Add(s)
	return s
}

func (f *fixture) events(sender *wl.Resource, method string) []*wire.MessageBuilder {
	var out []*wire.MessageBuilder
	for _, msg := range wltest.Events(f.client, method) {
		if msg.Sender() == sender {
			out = append(out, msg)
		}
	}
	return out
}

func TestFocusFollowsPointer(t *testing.T) {
	f := newFixture(t)
	a := f.window(t, image.Pt(0, 0), 10, 10)
	b := f.window(t, image.Pt(20, 0), 10, 10)

	p, k := f.seat.Pointer(), f.seat.Keyboard()

	p.MotionAbsolute(1, 5, 5)
	if s, _ := p.Focus(); s != a {
		t.Fatalf("pointer focus %v, want a", s)
	}
	if s, _ := k.Focus(); s != a {
		t.Fatalf("keyboard focus %v, want a", s)
	}

	p.MotionAbsolute(2, 25, 5)
	if s, _ := p.Focus(); s != b {
		t.Fatalf("pointer focus %v, want b", s)
	}
	if s, _ := k.Focus(); s != b {
		t.Fatalf("keyboard focus %v, want b", s)
	}

	if n := len(f.events(f.pointer, "leave")); n != 1 {
		t.Errorf("%v pointer leave events", n)
	}
	if n := len(f.events(f.keyboard, "enter")); n != 2 {
		t.Errorf("%v keyboard enter events", n)
	}
	if n := len(f.events(f.keyboard, "modifiers")); n != 2 {
		t.Errorf("%v modifier events sent on focus", n)
	}

	p.MotionAbsolute(3, 15, 5)
	if _, ok := p.Focus(); ok {
		t.Fatal("pointer still focused between surfaces")
	}
}

func TestFocusFilter(t *testing.T) {
	f := newFixture(t)
	a := f.window(t, image.Pt(0, 0), 10, 10)
	b := f.window(t, image.Pt(20, 0), 10, 10)
	f.seat.SetFocusFilter(func(s *compositor.Surface) bool { return s != b })

	p, k := f.seat.Pointer(), f.seat.Keyboard()
	p.MotionAbsolute(1, 5, 5)
	p.MotionAbsolute(2, 25, 5)
	if s, _ := k.Focus(); s != a {
		t.Fatalf("keyboard focus moved to a surface that refuses it")
	}
}

func TestMoveGrab(t *testing.T) {
	f := newFixture(t)
	a := f.window(t, image.Pt(0, 0), 10, 10)
	p := f.seat.Pointer()

	p.MotionAbsolute(1, 5, 5)
	p.Button(2, btnLeft, true)
	serial := p.PressSerial()

	if p.StartMove(a, serial+1) {
		t.Fatal("grab started with a stale serial")
	}
	if p.Grab() != nil {
		t.Fatal("stale serial left a grab behind")
	}

	if !p.StartMove(a, serial) {
		t.Fatal("grab with the press serial refused")
	}
	p.MotionRelative(3, 7, 3)
	if a.Position() != image.Pt(7, 3) {
		t.Fatalf("surface at %v after move", a.Position())
	}

	p.Button(4, btnLeft, false)
	if p.Grab() != nil {
		t.Fatal("grab survived its button release")
	}
	p.MotionRelative(5, 10, 10)
	if a.Position() != image.Pt(7, 3) {
		t.Fatalf("surface moved after grab ended: %v", a.Position())
	}
}

func TestGrabNeedsHeldButton(t *testing.T) {
	f := newFixture(t)
	a := f.window(t, image.Pt(0, 0), 10, 10)
	p := f.seat.Pointer()

	p.MotionAbsolute(1, 5, 5)
	p.Button(2, btnLeft, true)
	p.Button(3, btnLeft, false)
	if p.StartMove(a, p.PressSerial()) {
		t.Fatal("grab started after the button was released")
	}
}

func TestOtherButtonDoesNotEndGrab(t *testing.T) {
	f := newFixture(t)
	a := f.window(t, image.Pt(0, 0), 10, 10)
	p := f.seat.Pointer()

	p.MotionAbsolute(1, 5, 5)
	p.Button(2, btnLeft, true)
	p.StartMove(a, p.PressSerial())

	p.Button(3, uint32(pointer.ButtonRight), true)
	p.Button(4, uint32(pointer.ButtonRight), false)
	if p.Grab() == nil {
		t.Fatal("release of another button ended the grab")
	}
}

func TestResizeGrab(t *testing.T) {
	f := newFixture(t)
	a := f.window(t, image.Pt(0, 0), 100, 80)
	p := f.seat.Pointer()

	p.MotionAbsolute(1, 99, 79)
	p.Button(2, btnLeft, true)

	var sizes []image.Point
	ok := p.StartResize(a, p.PressSerial(), pointer.EdgeBottomRight, func(e pointer.Edges, size image.Point) {
		sizes = append(sizes, size)
	})
	if !ok {
		t.Fatal("resize refused")
	}

	p.MotionRelative(3, 10, 20)
	p.MotionRelative(4, -200, 0)
	if len(sizes) != 2 || sizes[0] != image.Pt(110, 100) || sizes[1] != image.Pt(1, 100) {
		t.Fatalf("configured sizes %v", sizes)
	}
}

func TestImplicitGrabAndRaise(t *testing.T) {
	f := newFixture(t)
	a := f.window(t, image.Pt(0, 0), 10, 10)
	b := f.window(t, image.Pt(20, 0), 10, 10)
	p := f.seat.Pointer()

	p.MotionAbsolute(1, 5, 5)
	p.Button(2, btnLeft, true)

	var order []*compositor.Surface
	for s := range f.comp.Scene().Surfaces() {
		order = append(order, s)
	}
	if len(order) != 2 || order[1] != a {
		t.Fatal("press did not raise the surface")
	}

	p.MotionAbsolute(3, 25, 5)
	if s, _ := p.Focus(); s != a {
		t.Fatal("focus left the surface while a button was held")
	}

	p.Button(4, btnLeft, false)
	if s, _ := p.Focus(); s != b {
		t.Fatal("focus did not move after release")
	}
}

func TestDestroyClearsFocusAndGrab(t *testing.T) {
	f := newFixture(t)
	a := f.window(t, image.Pt(0, 0), 10, 10)
	p, k := f.seat.Pointer(), f.seat.Keyboard()

	p.MotionAbsolute(1, 5, 5)
	p.Button(2, btnLeft, true)
	p.StartMove(a, p.PressSerial())

	a.Resource().Destroy()
	if _, ok := p.Focus(); ok {
		t.Fatal("pointer still focused on destroyed surface")
	}
	if _, ok := k.Focus(); ok {
		t.Fatal("keyboard still focused on destroyed surface")
	}
	if p.Grab() != nil {
		t.Fatal("grab on destroyed surface survived")
	}
	p.MotionRelative(3, 1, 1)
}

func TestModifiers(t *testing.T) {
	f := newFixture(t)
	f.window(t, image.Pt(0, 0), 10, 10)
	p, k := f.seat.Pointer(), f.seat.Keyboard()
	p.MotionAbsolute(1, 5, 5)

	const (
		leftShift = 42
		capsLock  = 58
		keyA      = 30
	)

	k.Key(2, leftShift, true)
	if k.Modifiers().Depressed != seat.ModShift {
		t.Fatalf("shift held: %+v", k.Modifiers())
	}
	k.Key(3, keyA, true)
	k.Key(4, keyA, false)
	k.Key(5, leftShift, false)
	if k.Modifiers().Depressed != 0 {
		t.Fatalf("shift released: %+v", k.Modifiers())
	}

	k.Key(6, capsLock, true)
	k.Key(7, capsLock, false)
	if k.Modifiers().Locked != seat.ModLock {
		t.Fatalf("caps lock: %+v", k.Modifiers())
	}
	k.Key(8, capsLock, true)
	if k.Modifiers().Locked != 0 {
		t.Fatalf("caps lock toggled twice: %+v", k.Modifiers())
	}

	if n := len(f.events(f.keyboard, "key")); n != 7 {
		t.Errorf("%v key events", n)
	}
}

func TestSetCursor(t *testing.T) {
	f := newFixture(t)
	f.window(t, image.Pt(0, 0), 10, 10)
	cursor := wltest.Surface(t, f.comp, f.client)
	p := f.seat.Pointer()
	p.MotionAbsolute(1, 5, 5)

	enters := f.events(f.pointer, "enter")
	if len(enters) != 1 {
		t.Fatalf("%v enter events", len(enters))
	}
	serial := enters[0].Args[0].(uint32)

	p.Handle(f.pointer, wl.PointerSetCursor{Serial: serial + 100, Surface: cursor.Resource()})
	if p.Cursor().Surface != nil {
		t.Fatal("cursor set with wrong serial")
	}

	p.Handle(f.pointer, wl.PointerSetCursor{Serial: serial, Surface: cursor.Resource(), HotspotX: 2, HotspotY: 3})
	if c := p.Cursor(); c.Surface != cursor || c.Hotspot != image.Pt(2, 3) {
		t.Fatalf("cursor %+v", c)
	}

	p.Handle(f.pointer, wl.PointerSetCursor{Serial: serial})
	if !p.Cursor().Hidden {
		t.Fatal("null cursor surface did not hide the cursor")
	}
}

func TestTouch(t *testing.T) {
	f := newFixture(t)
	a := f.window(t, image.Pt(0, 0), 10, 10)

	sr, _ := f.client.NewResource(wl.SeatInterface, wl.SeatVersion, 0, f.seat)
	f.seat.Handle(sr, wl.SeatGetTouch{})
	touch := f.find(t, wl.TouchInterface)

	tc := f.seat.Touch()
	tc.Down(1, 0, 5, 5)
	if s, _ := tc.Focus(0); s != a {
		t.Fatal("touch point not bound to surface")
	}
	tc.Motion(2, 0, 50, 50)
	tc.Up(3, 0)
	tc.Frame()

	for _, method := range []string{"down", "motion", "up", "frame"} {
		if n := len(f.events(touch, method)); n != 1 {
			t.Errorf("%v %v events", n, method)
		}
	}
}
