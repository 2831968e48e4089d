// Package seat routes input to clients. A Seat owns a pointer, a
// keyboard and a touch device, tracks which surface each of them is
// focused on, and runs the interactive move and resize grabs.
package seat

import (
	"github.com/Zubnix/trinity/compositor"
	wl "github.com/Zubnix/trinity/server"
	"github.com/sirupsen/logrus"
	"gitlab.com/mstarongitlab/goutils/sliceutils"
)

// Capabilities of a seat, as advertised to clients.
const (
	CapPointer  = wl.SeatCapabilityPointer
	CapKeyboard = wl.SeatCapabilityKeyboard
	CapTouch    = wl.SeatCapabilityTouch
)

type Config struct {
	Name         string
	Capabilities uint32
	Keymap       *Keymap
	RepeatRate   int32
	RepeatDelay  int32
}

type Seat struct {
	comp      *compositor.Compositor
	server    *wl.Server
	log       *logrus.Entry
	name      string
	caps      uint32
	resources wl.ResourceSet

	pointer  *PointerDevice
	keyboard *KeyboardDevice
	touch    *TouchDevice
	data     *DataDeviceManager

	canFocus func(*compositor.Surface) bool
}

// New creates a seat and advertises it, along with
// wl_data_device_manager, on the compositor's server.
func New(comp *compositor.Compositor, config Config, log *logrus.Entry) *Seat {
	if config.Name == "" {
		config.Name = "seat0"
	}

	seat := Seat{
		comp:   comp,
		server: comp.Server(),
		log:    log.WithField("seat", config.Name),
		name:   config.Name,
		caps:   config.Capabilities,
	}
	seat.pointer = newPointer(&seat)
	seat.keyboard = newKeyboard(&seat, config.Keymap, config.RepeatRate, config.RepeatDelay)
	seat.touch = newTouch(&seat)
	seat.data = newDataDeviceManager(&seat)

	seat.pointer.OnFocus(seat.keyboard.followPointer)
	comp.OnSurfaceDestroy(seat.surfaceDestroyed)

	seat.server.AddGlobal(wl.SeatInterface, wl.SeatVersion, seat.bind)
	return &seat
}

func (seat *Seat) Compositor() *compositor.Compositor {
	return seat.comp
}

func (seat *Seat) Name() string {
	return seat.name
}

func (seat *Seat) Capabilities() uint32 {
	return seat.caps
}

// SetCapabilities changes what the seat advertises, for example when
// an input device appears or goes away.
func (seat *Seat) SetCapabilities(caps uint32) {
	if caps == seat.caps {
		return
	}
	seat.caps = caps
	seat.resources.Broadcast(func(r *wl.Resource) { wl.SeatCapabilities(r, caps) })
}

func (seat *Seat) Pointer() *PointerDevice {
	return seat.pointer
}

func (seat *Seat) Keyboard() *KeyboardDevice {
	return seat.keyboard
}

func (seat *Seat) Touch() *TouchDevice {
	return seat.touch
}

func (seat *Seat) DataDevices() *DataDeviceManager {
	return seat.data
}

// SetFocusFilter installs f to decide whether a surface may take
// keyboard focus when the pointer enters it.
func (seat *Seat) SetFocusFilter(f func(*compositor.Surface) bool) {
	seat.canFocus = f
}

func (seat *Seat) bind(client *wl.Client, version, id uint32) error {
	r, err := seat.resources.Create(client, wl.SeatInterface, version, id, seat)
	if err != nil {
		return err
	}
	wl.SeatCapabilities(r, seat.caps)
	wl.SeatName(r, seat.name)
	return nil
}

func (seat *Seat) Handle(r *wl.Resource, req wl.Request) error {
	switch req := req.(type) {
	case wl.SeatGetPointer:
		_, err := seat.pointer.resources.Create(r.Client(), wl.PointerInterface, r.Version(), req.ID, seat.pointer)
		return err

	case wl.SeatGetKeyboard:
		return seat.keyboard.bind(r.Client(), r.Version(), req.ID)

	case wl.SeatGetTouch:
		_, err := seat.touch.resources.Create(r.Client(), wl.TouchInterface, r.Version(), req.ID, seat.touch)
		return err

	case wl.SeatRelease:
		r.Destroy()
		return nil

	default:
		return wl.UnknownRequest(r, req)
	}
}

// surfaceDestroyed drops every reference the seat holds to s.
func (seat *Seat) surfaceDestroyed(s *compositor.Surface) {
	seat.pointer.surfaceDestroyed(s)
	seat.keyboard.surfaceDestroyed(s)
	seat.touch.surfaceDestroyed(s)
}

// focused returns the resources in set that belong to the client of
// the surface behind h.
func (seat *Seat) focused(set *wl.ResourceSet, h compositor.Handle) []*wl.Resource {
	s, ok := seat.comp.Surface(h)
	if !ok {
		return nil
	}
	return set.ForClient(s.Client())
}

// without returns s with every occurrence of v removed.
func without[T comparable](s []T, v T) []T {
	return sliceutils.Filter(s, func(e T) bool { return e != v })
}

func surfaceName(s *compositor.Surface) string {
	if s == nil {
		return "none"
	}
	return s.Resource().String()
}
