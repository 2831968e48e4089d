package seat

import (
	"fmt"
	"os"

	wl "github.com/Zubnix/trinity/server"
	"github.com/Zubnix/trinity/shm"
)

// Keymap is an xkb keymap in text form, handed to clients as is.
type Keymap struct {
	text []byte
}

// LoadKeymap reads a keymap from an xkb keymap file, such as one
// produced by xkbcomp.
func LoadKeymap(path string) (*Keymap, error) {
	text, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read keymap: %w", err)
	}
	return &Keymap{text: text}, nil
}

func NewKeymap(text []byte) *Keymap {
	return &Keymap{text: text}
}

// send sends the keymap to a wl_keyboard. A nil keymap tells the
// client that there is no keymap and raw key codes have to do.
func (km *Keymap) send(r *wl.Resource) error {
	if km == nil {
		file, err := shm.Create("keymap", 0)
		if err != nil {
			return err
		}
		defer file.Close()
		wl.KeyboardKeymap(r, wl.KeyboardKeymapFormatNoKeymap, file, 0)
		return nil
	}

	size := len(km.text) + 1
	file, err := shm.Create("keymap", size)
	if err != nil {
		return err
	}
	defer file.Close()

	_, err = file.WriteAt(km.text, 0)
	if err != nil {
		return fmt.Errorf("write keymap: %w", err)
	}
	err = shm.Seal(file)
	if err != nil {
		return fmt.Errorf("seal keymap: %w", err)
	}

	wl.KeyboardKeymap(r, wl.KeyboardKeymapFormatXKBV1, file, uint32(size))
	return nil
}

// xkb's real modifier bits, in the order of the default keymap.
const (
	ModShift   = 1 << 0
	ModLock    = 1 << 1
	ModControl = 1 << 2
	ModAlt     = 1 << 3
	ModNum     = 1 << 4
	ModSuper   = 1 << 6
)

// Evdev key codes of the modifier keys.
const (
	keyLeftCtrl   = 29
	keyLeftShift  = 42
	keyRightShift = 54
	keyLeftAlt    = 56
	keyCapsLock   = 58
	keyNumLock    = 69
	keyRightCtrl  = 97
	keyRightAlt   = 100
	keyLeftMeta   = 125
	keyRightMeta  = 126
)

var heldModifiers = map[uint32]uint32{
	keyLeftShift:  ModShift,
	keyRightShift: ModShift,
	keyLeftCtrl:   ModControl,
	keyRightCtrl:  ModControl,
	keyLeftAlt:    ModAlt,
	keyRightAlt:   ModAlt,
	keyLeftMeta:   ModSuper,
	keyRightMeta:  ModSuper,
}

var lockModifiers = map[uint32]uint32{
	keyCapsLock: ModLock,
	keyNumLock:  ModNum,
}

// Modifiers is the modifier state as sent in wl_keyboard.modifiers.
type Modifiers struct {
	Depressed, Latched, Locked, Group uint32
}

// update computes the modifier state after a key event, given the
// keys that are held down afterwards.
func (m Modifiers) update(key uint32, pressed bool, held []uint32) Modifiers {
	if bit, ok := lockModifiers[key]; ok && pressed {
		m.Locked ^= bit
	}

	m.Depressed = 0
	for _, k := range held {
		m.Depressed |= heldModifiers[k]
	}
	return m
}
