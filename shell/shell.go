// Package shell implements wl_shell: top-level and transient windows
// that can be moved and resized interactively, and the ping/pong
// protocol used to notice clients that stopped responding.
package shell

import (
	"errors"
	"time"

	"github.com/Zubnix/trinity/compositor"
	"github.com/Zubnix/trinity/internal/ev"
	"github.com/Zubnix/trinity/seat"
	wl "github.com/Zubnix/trinity/server"
	"github.com/sirupsen/logrus"
)

// PingInterval is how long a client has to answer a ping, and how long
// the shell waits after a pong before pinging again.
const PingInterval = 5 * time.Second

type Shell struct {
	comp *compositor.Compositor
	seat *seat.Seat
	loop *ev.Loop
	log  *logrus.Entry

	surfaces map[compositor.Handle]*ShellSurface
}

// New creates the wl_shell global. Keyboard focus on seat is kept away
// from transients that asked not to be activated.
func New(comp *compositor.Compositor, st *seat.Seat, loop *ev.Loop, log *logrus.Entry) *Shell {
	shell := Shell{
		comp:     comp,
		seat:     st,
		loop:     loop,
		log:      log,
		surfaces: make(map[compositor.Handle]*ShellSurface),
	}
	st.SetFocusFilter(shell.acceptsFocus)
	comp.Server().AddGlobal(wl.ShellInterface, 1, shell.bind)
	return &shell
}

func (shell *Shell) bind(client *wl.Client, version, id uint32) error {
	_, err := client.NewResource(wl.ShellInterface, version, id, shell)
	return err
}

func (shell *Shell) Handle(r *wl.Resource, req wl.Request) error {
	switch req := req.(type) {
	case wl.ShellGetShellSurface:
		s, ok := wl.Impl[*compositor.Surface](req.Surface)
		if !ok {
			return nil
		}

		_, err := shell.NewShellSurface(r.Client(), req.ID, s)
		if errors.Is(err, compositor.ErrRoleConflict) {
			return wl.NewProtocolError(r, wl.ShellErrorRole, "%v", err)
		}
		return err

	default:
		return wl.UnknownRequest(r, req)
	}
}

// ShellSurfaceFor returns the shell surface that s belongs to.
func (shell *Shell) ShellSurfaceFor(s *compositor.Surface) (*ShellSurface, bool) {
	ss, ok := shell.surfaces[s.Ref()]
	return ss, ok
}

func (shell *Shell) acceptsFocus(s *compositor.Surface) bool {
	ss, ok := shell.surfaces[s.Ref()]
	if !ok {
		return true
	}
	return !ss.inactive
}
