package seat

import (
	"image"
	"math"

	"github.com/Zubnix/trinity/compositor"
	"github.com/Zubnix/trinity/pointer"
	wl "github.com/Zubnix/trinity/server"
	"github.com/Zubnix/trinity/wire"
	"github.com/sirupsen/logrus"
	"golang.org/x/exp/slices"
)

type GrabKind int

const (
	GrabMove GrabKind = iota
	GrabResize
)

func (k GrabKind) String() string {
	switch k {
	case GrabMove:
		return "move"
	case GrabResize:
		return "resize"
	default:
		return "unknown"
	}
}

// Grab is an interactive move or resize. It ends when the button that
// was pressed to start it is released.
type Grab struct {
	Kind    GrabKind
	Surface compositor.Handle
	Serial  uint32
	Button  uint32
	Edges   pointer.Edges

	origin    image.Point
	startPos  image.Point
	startSize image.Point
	size      image.Point
	configure func(edges pointer.Edges, size image.Point)
}

// Cursor is what the focused client asked the pointer to look like.
type Cursor struct {
	// Surface is nil if the client has not set a cursor, in which case
	// the default cursor is shown.
	Surface *compositor.Surface
	Hotspot image.Point
	Hidden  bool
}

type PointerDevice struct {
	seat      *Seat
	resources wl.ResourceSet

	x, y        float64
	focus       compositor.Handle
	enterSerial uint32
	buttons     []uint32
	pressSerial uint32
	pressButton uint32
	grab        *Grab

	cursor       compositor.Handle
	cursorSet    bool
	cursorHidden bool
	hotspot      image.Point

	focusListeners []func(*compositor.Surface)
}

func newPointer(seat *Seat) *PointerDevice {
	return &PointerDevice{seat: seat}
}

// OnFocus registers f to be called whenever pointer focus changes. f
// receives nil when the pointer leaves all surfaces.
func (p *PointerDevice) OnFocus(f func(*compositor.Surface)) {
	p.focusListeners = append(p.focusListeners, f)
}

// Position returns the pointer's global position.
func (p *PointerDevice) Position() image.Point {
	return image.Pt(int(math.Floor(p.x)), int(math.Floor(p.y)))
}

// Focus returns the surface under the pointer.
func (p *PointerDevice) Focus() (*compositor.Surface, bool) {
	return p.seat.comp.Surface(p.focus)
}

// Grab returns the active grab, if any.
func (p *PointerDevice) Grab() *Grab {
	return p.grab
}

// PressSerial returns the serial of the most recent button press.
func (p *PointerDevice) PressSerial() uint32 {
	return p.pressSerial
}

// Cursor returns the cursor requested by the focused client.
func (p *PointerDevice) Cursor() Cursor {
	if !p.cursorSet {
		return Cursor{}
	}
	if p.cursorHidden {
		return Cursor{Hidden: true}
	}
	s, ok := p.seat.comp.Surface(p.cursor)
	if !ok {
		return Cursor{}
	}
	return Cursor{Surface: s, Hotspot: p.hotspot}
}

func (p *PointerDevice) Handle(r *wl.Resource, req wl.Request) error {
	switch req := req.(type) {
	case wl.PointerSetCursor:
		focus, ok := p.Focus()
		if !ok || (focus.Client() != r.Client()) || (req.Serial != p.enterSerial) {
			return nil
		}

		if req.Surface == nil {
			p.cursorSet, p.cursorHidden = true, true
			p.seat.comp.RequestRepaint()
			return nil
		}
		s, ok := wl.Impl[*compositor.Surface](req.Surface)
		if !ok {
			return nil
		}
		if (s.Role() != nil) && (s.Ref() != p.cursor) {
			return wl.NewProtocolError(r, wl.PointerErrorRole,
				"%v already has role %v", s.Resource(), compositor.RoleName(s.Role()))
		}

		p.cursor = s.Ref()
		p.cursorSet, p.cursorHidden = true, false
		p.hotspot = image.Pt(int(req.HotspotX), int(req.HotspotY))
		p.seat.comp.RequestRepaint()
		return nil

	case wl.PointerRelease:
		r.Destroy()
		return nil

	default:
		return wl.UnknownRequest(r, req)
	}
}

// MotionAbsolute moves the pointer to the global position (x, y).
func (p *PointerDevice) MotionAbsolute(time uint32, x, y float64) {
	p.x, p.y = p.clamp(x, y)
	p.motion(time)
}

// MotionRelative moves the pointer by (dx, dy).
func (p *PointerDevice) MotionRelative(time uint32, dx, dy float64) {
	p.MotionAbsolute(time, p.x+dx, p.y+dy)
}

func (p *PointerDevice) clamp(x, y float64) (float64, float64) {
	var bounds image.Rectangle
	for _, o := range p.seat.comp.Outputs() {
		bounds = bounds.Union(o.Bounds())
	}
	if bounds.Empty() {
		return x, y
	}
	x = min(max(x, float64(bounds.Min.X)), float64(bounds.Max.X-1))
	y = min(max(y, float64(bounds.Min.Y)), float64(bounds.Max.Y-1))
	return x, y
}

func (p *PointerDevice) motion(time uint32) {
	defer p.seat.comp.RequestRepaint()

	if p.grab != nil {
		p.updateGrab()
		return
	}

	p.updateFocus()
	s, ok := p.Focus()
	if !ok {
		return
	}
	x, y := p.local(s)
	for _, r := range p.seat.focused(&p.resources, p.focus) {
		wl.PointerMotion(r, time, x, y)
	}
}

func (p *PointerDevice) local(s *compositor.Surface) (x, y wire.Fixed) {
	pos := s.Position()
	return wire.FixedFloat(p.x - float64(pos.X)), wire.FixedFloat(p.y - float64(pos.Y))
}

// updateFocus focuses the top-most surface under the pointer. While a
// button is held, focus stays where the press happened.
func (p *PointerDevice) updateFocus() {
	cur, hasFocus := p.Focus()
	if hasFocus && (len(p.buttons) > 0) {
		return
	}

	s, ok := p.seat.comp.Scene().SurfaceAt(p.Position())
	if ok == hasFocus && s == cur {
		return
	}
	p.setFocus(s)
}

func (p *PointerDevice) setFocus(s *compositor.Surface) {
	serial := p.seat.server.NextSerial()
	if old, ok := p.Focus(); ok && old.Resource().Alive() {
		for _, r := range p.seat.focused(&p.resources, p.focus) {
			wl.PointerLeave(r, serial, old.Resource())
		}
	}

	p.focus = compositor.Handle{}
	p.cursorSet = false
	if s != nil {
		p.focus = s.Ref()
		p.enterSerial = serial
		x, y := p.local(s)
		for _, r := range p.seat.focused(&p.resources, p.focus) {
			wl.PointerEnter(r, serial, s.Resource(), x, y)
		}
	}

	p.seat.log.WithField("focus", surfaceName(s)).Debug("pointer focus")
	for _, f := range p.focusListeners {
		f(s)
	}
}

// Button handles a press or release of a Linux input button code.
func (p *PointerDevice) Button(time, button uint32, pressed bool) {
	state := uint32(wl.PointerButtonStateReleased)
	if pressed {
		if slices.Contains(p.buttons, button) {
			return
		}
		p.buttons = append(p.buttons, button)
		state = wl.PointerButtonStatePressed
	} else {
		if !slices.Contains(p.buttons, button) {
			return
		}
		p.buttons = without(p.buttons, button)
	}

	serial := p.seat.server.NextSerial()
	if pressed {
		p.pressSerial = serial
		p.pressButton = button
	}

	if g := p.grab; g != nil {
		if !pressed && (button == g.Button) {
			p.endGrab()
		}
		return
	}

	s, ok := p.Focus()
	if !ok {
		return
	}
	for _, r := range p.seat.focused(&p.resources, p.focus) {
		wl.PointerButton(r, serial, time, button, state)
	}

	if pressed {
		root := s.Root()
		if p.seat.comp.Scene().Contains(root) {
			p.seat.comp.Scene().Raise(root)
		}
	} else if len(p.buttons) == 0 {
		p.updateFocus()
	}
}

// Axis sends a scroll event. value is in surface-local units along
// axis.
func (p *PointerDevice) Axis(time, axis uint32, value float64) {
	if p.grab != nil {
		return
	}
	for _, r := range p.seat.focused(&p.resources, p.focus) {
		wl.PointerAxis(r, time, axis, wire.FixedFloat(value))
	}
}

// StartMove starts moving s with the pointer. serial has to be the
// serial of the latest button press, and the button must still be
// held; otherwise nothing happens and StartMove returns false.
func (p *PointerDevice) StartMove(s *compositor.Surface, serial uint32) bool {
	if !p.canGrab(s, serial) {
		return false
	}
	p.startGrab(&Grab{Kind: GrabMove}, s)
	return true
}

// StartResize starts resizing s by dragging edges. configure is
// called with each new size.
func (p *PointerDevice) StartResize(s *compositor.Surface, serial uint32, edges pointer.Edges, configure func(pointer.Edges, image.Point)) bool {
	if !p.canGrab(s, serial) {
		return false
	}
	p.startGrab(&Grab{Kind: GrabResize, Edges: edges, configure: configure}, s)
	return true
}

func (p *PointerDevice) canGrab(s *compositor.Surface, serial uint32) bool {
	return (p.grab == nil) &&
		s.Alive() &&
		(serial == p.pressSerial) &&
		slices.Contains(p.buttons, p.pressButton)
}

func (p *PointerDevice) startGrab(g *Grab, s *compositor.Surface) {
	g.Surface = s.Ref()
	g.Serial = p.pressSerial
	g.Button = p.pressButton
	g.origin = p.Position()
	g.startPos = s.LocalPosition()
	g.startSize = s.Size()
	g.size = g.startSize
	p.grab = g

	p.seat.log.WithFields(logrus.Fields{"kind": g.Kind, "surface": s.Resource(), "edges": g.Edges}).Debug("grab started")
}

func (p *PointerDevice) updateGrab() {
	g := p.grab
	s, ok := p.seat.comp.Surface(g.Surface)
	if !ok {
		p.grab = nil
		return
	}

	delta := p.Position().Sub(g.origin)
	switch g.Kind {
	case GrabMove:
		s.SetPosition(g.startPos.Add(delta))
	case GrabResize:
		size := g.Edges.Resize(g.startSize, delta)
		if size == g.size {
			return
		}
		g.size = size
		if g.configure != nil {
			g.configure(g.Edges, size)
		}
	}
}

func (p *PointerDevice) endGrab() {
	p.seat.log.WithField("kind", p.grab.Kind).Debug("grab ended")
	p.grab = nil
	p.updateFocus()
}

func (p *PointerDevice) surfaceDestroyed(s *compositor.Surface) {
	h := s.Ref()
	if (p.grab != nil) && (p.grab.Surface == h) {
		p.grab = nil
	}
	if p.cursor == h {
		p.cursor = compositor.Handle{}
		p.cursorSet = false
	}
	if p.focus == h {
		p.focus = compositor.Handle{}
		p.buttons = nil
		for _, f := range p.focusListeners {
			f(nil)
		}
	}
}
