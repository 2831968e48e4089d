package seat

import (
	"image"

	"github.com/Zubnix/trinity/compositor"
	wl "github.com/Zubnix/trinity/server"
	"github.com/Zubnix/trinity/wire"
)

type touchPoint struct {
	surface compositor.Handle
}

type TouchDevice struct {
	seat      *Seat
	resources wl.ResourceSet
	points    map[int32]touchPoint

	// unframed holds the clients that were sent events since the last
	// frame.
	unframed map[*wl.Client]struct{}
}

func newTouch(seat *Seat) *TouchDevice {
	return &TouchDevice{
		seat:     seat,
		points:   make(map[int32]touchPoint),
		unframed: make(map[*wl.Client]struct{}),
	}
}

func (t *TouchDevice) send(s compositor.Handle, f func(r *wl.Resource)) {
	rs := t.seat.focused(&t.resources, s)
	for _, r := range rs {
		f(r)
		t.unframed[r.Client()] = struct{}{}
	}
}

func (t *TouchDevice) Handle(r *wl.Resource, req wl.Request) error {
	switch req := req.(type) {
	case wl.TouchRelease:
		r.Destroy()
		return nil

	default:
		return wl.UnknownRequest(r, req)
	}
}

// Focus returns the surface that touch point id is bound to.
func (t *TouchDevice) Focus(id int32) (*compositor.Surface, bool) {
	tp, ok := t.points[id]
	if !ok {
		return nil, false
	}
	return t.seat.comp.Surface(tp.surface)
}

func (t *TouchDevice) local(s *compositor.Surface, x, y float64) (wire.Fixed, wire.Fixed) {
	pos := s.Position()
	return wire.FixedFloat(x - float64(pos.X)), wire.FixedFloat(y - float64(pos.Y))
}

// Down starts touch point id at the global position (x, y). The point
// stays bound to the surface it started on until it is lifted.
func (t *TouchDevice) Down(time uint32, id int32, x, y float64) {
	s, ok := t.seat.comp.Scene().SurfaceAt(image.Pt(int(x), int(y)))
	if !ok {
		return
	}
	t.points[id] = touchPoint{surface: s.Ref()}

	serial := t.seat.server.NextSerial()
	lx, ly := t.local(s, x, y)
	t.send(s.Ref(), func(r *wl.Resource) {
		wl.TouchDown(r, serial, time, s.Resource(), id, lx, ly)
	})
}

func (t *TouchDevice) Motion(time uint32, id int32, x, y float64) {
	s, ok := t.Focus(id)
	if !ok {
		return
	}
	lx, ly := t.local(s, x, y)
	t.send(s.Ref(), func(r *wl.Resource) {
		wl.TouchMotion(r, time, id, lx, ly)
	})
}

func (t *TouchDevice) Up(time uint32, id int32) {
	tp, ok := t.points[id]
	if !ok {
		return
	}
	delete(t.points, id)

	serial := t.seat.server.NextSerial()
	t.send(tp.surface, func(r *wl.Resource) {
		wl.TouchUp(r, serial, time, id)
	})
}

// Frame ends a set of touch events that belong together.
func (t *TouchDevice) Frame() {
	for client := range t.unframed {
		for _, r := range t.resources.ForClient(client) {
			wl.TouchFrame(r)
		}
	}
	clear(t.unframed)
}

// Cancel tells every client with an active touch point that the
// touch sequence is not theirs anymore.
func (t *TouchDevice) Cancel() {
	for _, tp := range t.points {
		if s, ok := t.seat.comp.Surface(tp.surface); ok {
			t.unframed[s.Client()] = struct{}{}
		}
	}
	for client := range t.unframed {
		for _, r := range t.resources.ForClient(client) {
			wl.TouchCancel(r)
		}
	}
	clear(t.points)
	clear(t.unframed)
}

func (t *TouchDevice) surfaceDestroyed(s *compositor.Surface) {
	for id, tp := range t.points {
		if tp.surface == s.Ref() {
			delete(t.points, id)
		}
	}
}
