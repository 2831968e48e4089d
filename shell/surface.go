package shell

import (
	"image"
	"time"

	"github.com/Zubnix/trinity/compositor"
	"github.com/Zubnix/trinity/pointer"
	"github.com/Zubnix/trinity/seat"
	wl "github.com/Zubnix/trinity/server"
	"github.com/sirupsen/logrus"
)

// State is what the user is currently doing to a shell surface.
type State int

const (
	Idle State = iota
	Moving
	Resizing
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Moving:
		return "moving"
	case Resizing:
		return "resizing"
	default:
		return "unknown"
	}
}

// ShellSurface is a wl_shell_surface.
type ShellSurface struct {
	shell    *Shell
	resource *wl.Resource
	surface  compositor.Handle
	log      *logrus.Entry

	title, class string
	inactive     bool
	placed       bool

	pingSerial   uint32
	pinging      bool
	unresponsive bool
	timer        *time.Timer

	// resizeEdges is set while sizes sent in configure events are
	// still expected to be committed.
	resizeEdges pointer.Edges
	configured  image.Point
}

// NewShellSurface gives s a shell role and creates the
// wl_shell_surface for it. The client is pinged right away.
func (shell *Shell) NewShellSurface(client *wl.Client, id uint32, s *compositor.Surface) (*ShellSurface, error) {
	if err := s.SetRole(compositor.ShellTopLevel{}); err != nil {
		return nil, err
	}

	ss := ShellSurface{
		shell:   shell,
		surface: s.Ref(),
		log:     shell.log.WithField("surface", s.Resource().String()),
	}
	r, err := client.NewResource(wl.ShellSurfaceInterface, 1, id, &ss)
	if err != nil {
		return nil, err
	}
	ss.resource = r
	shell.surfaces[s.Ref()] = &ss

	r.OnDestroy(func(*wl.Resource) { ss.destroy() })
	s.OnDestroy(func(*compositor.Surface) { r.Destroy() })
	s.OnCommit(ss.committed)

	ss.ping()
	return &ss, nil
}

func (ss *ShellSurface) Surface() (*compositor.Surface, bool) {
	return ss.shell.comp.Surface(ss.surface)
}

func (ss *ShellSurface) Title() string {
	return ss.title
}

func (ss *ShellSurface) Class() string {
	return ss.class
}

// Responsive reports whether the client answered the last ping in
// time.
func (ss *ShellSurface) Responsive() bool {
	return !ss.unresponsive
}

// State reports whether the surface is being moved or resized.
func (ss *ShellSurface) State() State {
	g := ss.shell.seat.Pointer().Grab()
	if (g == nil) || (g.Surface != ss.surface) {
		return Idle
	}
	switch g.Kind {
	case seat.GrabMove:
		return Moving
	case seat.GrabResize:
		return Resizing
	default:
		return Idle
	}
}

func (ss *ShellSurface) Handle(r *wl.Resource, req wl.Request) error {
	s, ok := ss.Surface()
	if !ok {
		return nil
	}

	switch req := req.(type) {
	case wl.ShellSurfacePong:
		ss.pong(req.Serial)
		return nil

	case wl.ShellSurfaceMove:
		st, ok := wl.Impl[*seat.Seat](req.Seat)
		if !ok {
			return nil
		}
		if st.Pointer().StartMove(s, req.Serial) {
			ss.resizeEdges = pointer.EdgeNone
		}
		return nil

	case wl.ShellSurfaceResize:
		st, ok := wl.Impl[*seat.Seat](req.Seat)
		if !ok {
			return nil
		}
		edges := pointer.Edges(req.Edges)
		if !edges.Valid() || (edges == pointer.EdgeNone) {
			return nil
		}
		st.Pointer().StartResize(s, req.Serial, edges, ss.configure)
		return nil

	case wl.ShellSurfaceSetToplevel:
		ss.setToplevel(s)
		return nil

	case wl.ShellSurfaceSetTransient:
		parent, ok := wl.Impl[*compositor.Surface](req.Parent)
		if !ok {
			return nil
		}
		ss.setTransient(s, parent, image.Pt(int(req.X), int(req.Y)), req.Flags)
		return nil

	case wl.ShellSurfaceSetFullscreen, wl.ShellSurfaceSetPopup, wl.ShellSurfaceSetMaximized:
		ss.log.Debugf("ignoring %T", req)
		return nil

	case wl.ShellSurfaceSetTitle:
		ss.title = req.Title
		ss.log.WithField("title", req.Title).Debug("title")
		return nil

	case wl.ShellSurfaceSetClass:
		ss.class = req.Class
		ss.log.WithField("class", req.Class).Debug("class")
		return nil

	default:
		return wl.UnknownRequest(r, req)
	}
}

func (ss *ShellSurface) setToplevel(s *compositor.Surface) {
	if err := s.SetShellMode(compositor.ShellTopLevel{}); err != nil {
		ss.log.WithError(err).Warn("set_toplevel")
		return
	}
	ss.inactive = false

	if _, ok := s.Parent(); ok {
		s.Detach()
	}
	if !ss.placed {
		s.SetPosition(ss.shell.comp.NextPlacement())
		ss.placed = true
	}
	ss.shell.comp.Scene().Add(s)
}

func (ss *ShellSurface) setTransient(s, parent *compositor.Surface, offset image.Point, flags uint32) {
	if (parent == s) || isDescendant(parent, s) {
		return
	}

	mode := compositor.ShellTransient{Parent: parent.Ref(), X: int32(offset.X), Y: int32(offset.Y), Flags: flags}
	if err := s.SetShellMode(mode); err != nil {
		ss.log.WithError(err).Warn("set_transient")
		return
	}
	ss.inactive = flags&wl.ShellSurfaceTransientInactive != 0
	ss.placed = true

	ss.shell.comp.Scene().Remove(s)
	s.Reparent(parent, offset)

	parent.OnDestroy(func(p *compositor.Surface) {
		t, ok := s.Role().(compositor.ShellTransient)
		if !ok || !ss.resource.Alive() || (t.Parent != p.Ref()) {
			return
		}
		s.Detach()
		s.SetShellMode(compositor.ShellTopLevel{})
		ss.shell.comp.Scene().Add(s)
	})
}

// isDescendant reports whether s is below ancestor in the surface
// tree.
func isDescendant(s, ancestor *compositor.Surface) bool {
	for {
		p, ok := s.Parent()
		if !ok {
			return false
		}
		if p == ancestor {
			return true
		}
		s = p
	}
}

// configure is called by the seat while a resize grab is active.
func (ss *ShellSurface) configure(edges pointer.Edges, size image.Point) {
	ss.resizeEdges = edges
	ss.configured = size
	wl.ShellSurfaceConfigure(ss.resource, uint32(edges), int32(size.X), int32(size.Y))
}

// committed keeps the edges opposite to the ones being dragged in
// place when the client commits a new size.
func (ss *ShellSurface) committed(s *compositor.Surface, prev compositor.SurfaceState) {
	if ss.resizeEdges == pointer.EdgeNone {
		return
	}

	old, cur := prev.Size(), s.Size()
	if (old != cur) && (prev.Buffer != nil) && (s.State().Buffer != nil) {
		s.SetPosition(s.LocalPosition().Add(ss.resizeEdges.Anchor(old, cur)))
	}
	if (cur == ss.configured) && (ss.State() != Resizing) {
		ss.resizeEdges = pointer.EdgeNone
	}
}

func (ss *ShellSurface) ping() {
	if !ss.resource.Alive() {
		return
	}

	ss.stopTimer()
	ss.pingSerial = ss.shell.comp.Server().NextSerial()
	ss.pinging = true
	wl.ShellSurfacePing(ss.resource, ss.pingSerial)
	ss.timer = ss.shell.loop.AfterFunc(PingInterval, ss.timeout)
}

func (ss *ShellSurface) pong(serial uint32) {
	if !ss.pinging || (serial != ss.pingSerial) {
		return
	}
	ss.pinging = false
	if ss.unresponsive {
		ss.log.Info("client is responding again")
		ss.unresponsive = false
	}

	ss.stopTimer()
	ss.timer = ss.shell.loop.AfterFunc(PingInterval, ss.ping)
}

func (ss *ShellSurface) timeout() {
	if !ss.pinging || ss.unresponsive {
		return
	}
	ss.unresponsive = true
	ss.log.WithField("serial", ss.pingSerial).Warn("client did not answer ping")
}

func (ss *ShellSurface) stopTimer() {
	if ss.timer != nil {
		ss.timer.Stop()
		ss.timer = nil
	}
}

func (ss *ShellSurface) destroy() {
	ss.stopTimer()
	delete(ss.shell.surfaces, ss.surface)

	if s, ok := ss.Surface(); ok {
		ss.shell.comp.Scene().Remove(s)
		if _, ok := s.Parent(); ok {
			s.Detach()
		}
	}
}
