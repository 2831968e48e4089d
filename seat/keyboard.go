package seat

import (
	"github.com/Zubnix/trinity/compositor"
	"github.com/Zubnix/trinity/internal/bin"
	wl "github.com/Zubnix/trinity/server"
	"golang.org/x/exp/slices"
)

type KeyboardDevice struct {
	seat      *Seat
	resources wl.ResourceSet

	keymap      *Keymap
	repeatRate  int32
	repeatDelay int32

	focus compositor.Handle
	keys  []uint32
	mods  Modifiers

	focusListeners []func(*compositor.Surface)
}

func newKeyboard(seat *Seat, keymap *Keymap, rate, delay int32) *KeyboardDevice {
	return &KeyboardDevice{
		seat:        seat,
		keymap:      keymap,
		repeatRate:  rate,
		repeatDelay: delay,
	}
}

// Focus returns the surface that receives key events.
func (k *KeyboardDevice) Focus() (*compositor.Surface, bool) {
	return k.seat.comp.Surface(k.focus)
}

func (k *KeyboardDevice) Modifiers() Modifiers {
	return k.mods
}

// OnFocus registers f to be called whenever keyboard focus changes.
func (k *KeyboardDevice) OnFocus(f func(*compositor.Surface)) {
	k.focusListeners = append(k.focusListeners, f)
}

func (k *KeyboardDevice) bind(client *wl.Client, version, id uint32) error {
	r, err := k.resources.Create(client, wl.KeyboardInterface, version, id, k)
	if err != nil {
		return err
	}

	err = k.keymap.send(r)
	if err != nil {
		k.seat.log.WithError(err).Warn("send keymap")
	}
	wl.KeyboardRepeatInfo(r, k.repeatRate, k.repeatDelay)

	if s, ok := k.Focus(); ok && (s.Client() == client) {
		serial := k.seat.server.NextSerial()
		wl.KeyboardEnter(r, serial, s.Resource(), k.keyArray())
		wl.KeyboardModifiers(r, serial, k.mods.Depressed, k.mods.Latched, k.mods.Locked, k.mods.Group)
	}
	return nil
}

func (k *KeyboardDevice) Handle(r *wl.Resource, req wl.Request) error {
	switch req := req.(type) {
	case wl.KeyboardRelease:
		r.Destroy()
		return nil

	default:
		return wl.UnknownRequest(r, req)
	}
}

// followPointer moves keyboard focus to where the pointer went,
// unless the new surface refuses keyboard focus. Sub-surfaces pass
// focus on to the surface they belong to.
func (k *KeyboardDevice) followPointer(s *compositor.Surface) {
	for s != nil {
		if _, ok := s.Role().(compositor.SubSurface); !ok {
			break
		}
		p, ok := s.Parent()
		if !ok {
			break
		}
		s = p
	}

	if (s != nil) && (k.seat.canFocus != nil) && !k.seat.canFocus(s) {
		return
	}
	k.SetFocus(s)
}

// SetFocus moves keyboard focus to s, or removes it if s is nil. The
// newly focused client is told which keys are down and which
// modifiers are active.
func (k *KeyboardDevice) SetFocus(s *compositor.Surface) {
	if cur, ok := k.Focus(); (ok && cur == s) || (!ok && s == nil) {
		return
	}

	serial := k.seat.server.NextSerial()
	if old, ok := k.Focus(); ok && old.Resource().Alive() {
		for _, r := range k.seat.focused(&k.resources, k.focus) {
			wl.KeyboardLeave(r, serial, old.Resource())
		}
	}

	k.focus = compositor.Handle{}
	if s != nil {
		k.focus = s.Ref()
		keys := k.keyArray()
		for _, r := range k.seat.focused(&k.resources, k.focus) {
			wl.KeyboardEnter(r, serial, s.Resource(), keys)
			wl.KeyboardModifiers(r, serial, k.mods.Depressed, k.mods.Latched, k.mods.Locked, k.mods.Group)
		}
	}

	k.seat.log.WithField("focus", surfaceName(s)).Debug("keyboard focus")
	for _, f := range k.focusListeners {
		f(s)
	}
}

// Key handles a press or release of an evdev key code.
func (k *KeyboardDevice) Key(time, key uint32, pressed bool) {
	state := uint32(wl.KeyboardKeyStateReleased)
	if pressed {
		if slices.Contains(k.keys, key) {
			return
		}
		k.keys = append(k.keys, key)
		state = wl.KeyboardKeyStatePressed
	} else {
		if !slices.Contains(k.keys, key) {
			return
		}
		k.keys = without(k.keys, key)
	}

	serial := k.seat.server.NextSerial()
	focused := k.seat.focused(&k.resources, k.focus)
	for _, r := range focused {
		wl.KeyboardKey(r, serial, time, key, state)
	}

	mods := k.mods.update(key, pressed, k.keys)
	if mods == k.mods {
		return
	}
	k.mods = mods
	for _, r := range focused {
		wl.KeyboardModifiers(r, serial, mods.Depressed, mods.Latched, mods.Locked, mods.Group)
	}
}

// keyArray encodes the held keys as a wl_array of uint32.
func (k *KeyboardDevice) keyArray() []byte {
	return bin.Append(make([]byte, 0, 4*len(k.keys)), k.keys...)
}

func (k *KeyboardDevice) surfaceDestroyed(s *compositor.Surface) {
	if k.focus != s.Ref() {
		return
	}
	k.focus = compositor.Handle{}
	for _, f := range k.focusListeners {
		f(nil)
	}
}
