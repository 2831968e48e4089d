// Package x11 runs the compositor nested in a window of an X server.
// Frames are pushed with PutImage and the window's input is
// translated into backend events.
package x11

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"image"
	"sync"

	"github.com/BurntSushi/xgb"
	"github.com/BurntSushi/xgb/xproto"
	"github.com/Zubnix/trinity/backend"
	"github.com/Zubnix/trinity/pointer"
	wl "github.com/Zubnix/trinity/server"
	"github.com/sirupsen/logrus"
)

// X keycodes are evdev key codes shifted by this much.
const keycodeOffset = 8

// putImageHeader is the size of a PutImage request without its data.
const putImageHeader = 24

const eventMask = xproto.EventMaskExposure |
	xproto.EventMaskStructureNotify |
	xproto.EventMaskKeyPress |
	xproto.EventMaskKeyRelease |
	xproto.EventMaskButtonPress |
	xproto.EventMaskButtonRelease |
	xproto.EventMaskPointerMotion |
	xproto.EventMaskFocusChange

// Handler receives what happens to the window.
type Handler struct {
	Input  func(backend.Event)
	Expose func()
	Close  func()
}

// Window is a top-level X window that shows the compositor output.
type Window struct {
	conn   *xgb.Conn
	win    xproto.Window
	gc     xproto.Gcontext
	depth  byte
	size   image.Point
	origin image.Point
	log    *logrus.Entry
	close  sync.Once

	maxRequest  int
	wmProtocols xproto.Atom
	wmDeleteWin xproto.Atom
}

// Open connects to the X server named by $DISPLAY and maps a window of
// the given size. Pointer positions are reported relative to origin,
// which should be the position of the output the window shows.
func Open(title string, origin image.Point, size image.Point, log *logrus.Entry) (*Window, error) {
	if (size.X <= 0) || (size.Y <= 0) {
		return nil, fmt.Errorf("invalid window size %v", size)
	}

	conn, err := xgb.NewConn()
	if err != nil {
		return nil, fmt.Errorf("connect to X server: %w", err)
	}

	w := Window{
		conn:   conn,
		size:   size,
		origin: origin,
		log:    log.WithField("backend", "x11"),
	}
	if err := w.create(title); err != nil {
		conn.Close()
		return nil, err
	}
	return &w, nil
}

func (w *Window) create(title string) error {
	setup := xproto.Setup(w.conn)
	screen := setup.DefaultScreen(w.conn)
	w.depth = screen.RootDepth
	w.maxRequest = int(setup.MaximumRequestLength) * 4

	win, err := xproto.NewWindowId(w.conn)
	if err != nil {
		return fmt.Errorf("allocate window: %w", err)
	}
	w.win = win

	err = xproto.CreateWindowChecked(
		w.conn,
		screen.RootDepth,
		win,
		screen.Root,
		0, 0,
		uint16(w.size.X), uint16(w.size.Y),
		0,
		xproto.WindowClassInputOutput,
		screen.RootVisual,
		xproto.CwBackPixel|xproto.CwEventMask,
		[]uint32{screen.BlackPixel, eventMask},
	).Check()
	if err != nil {
		return fmt.Errorf("create window: %w", err)
	}

	gc, err := xproto.NewGcontextId(w.conn)
	if err != nil {
		return fmt.Errorf("allocate graphics context: %w", err)
	}
	w.gc = gc
	err = xproto.CreateGCChecked(w.conn, gc, xproto.Drawable(win), 0, nil).Check()
	if err != nil {
		return fmt.Errorf("create graphics context: %w", err)
	}

	xproto.ChangeProperty(w.conn, xproto.PropModeReplace, win, xproto.AtomWmName, xproto.AtomString, 8, uint32(len(title)), []byte(title))

	w.wmProtocols, err = w.atom("WM_PROTOCOLS")
	if err != nil {
		return err
	}
	w.wmDeleteWin, err = w.atom("WM_DELETE_WINDOW")
	if err != nil {
		return err
	}
	data := binary.LittleEndian.AppendUint32(nil, uint32(w.wmDeleteWin))
	xproto.ChangeProperty(w.conn, xproto.PropModeReplace, win, w.wmProtocols, xproto.AtomAtom, 32, 1, data)

	return xproto.MapWindowChecked(w.conn, win).Check()
}

func (w *Window) atom(name string) (xproto.Atom, error) {
	reply, err := xproto.InternAtom(w.conn, false, uint16(len(name)), name).Reply()
	if err != nil {
		return 0, fmt.Errorf("intern %v: %w", name, err)
	}
	return reply.Atom, nil
}

// Size returns the size of the window in pixels.
func (w *Window) Size() image.Point {
	return w.size
}

// Present copies a frame of 32-bit BGRX pixels into the window. The
// frame is split into strips that fit into a single request.
func (w *Window) Present(pix []byte, size image.Point) error {
	stride := size.X * 4
	if len(pix) < stride*size.Y {
		return fmt.Errorf("frame of %v bytes is too small for %v", len(pix), size)
	}

	rows := stripRows(w.maxRequest, stride)
	if rows == 0 {
		return errors.New("window is too wide for a single request")
	}

	for y := 0; y < size.Y; y += rows {
		n := min(rows, size.Y-y)
		xproto.PutImage(
			w.conn,
			xproto.ImageFormatZPixmap,
			xproto.Drawable(w.win),
			w.gc,
			uint16(size.X), uint16(n),
			0, int16(y),
			0,
			w.depth,
			pix[y*stride:(y+n)*stride],
		)
	}
	return nil
}

// stripRows returns how many rows of stride bytes fit into a request
// of at most limit bytes.
func stripRows(limit, stride int) int {
	if stride <= 0 {
		return 0
	}
	return (limit - putImageHeader) / stride
}

// Run reads X events until the window is closed or the connection
// fails. The handler is called from Run's goroutine. If ctx is
// canceled by the time the connection goes away, its error is
// returned.
func (w *Window) Run(ctx context.Context, h Handler) error {
	for {
		ev, xerr := w.conn.WaitForEvent()
		if (ev == nil) && (xerr == nil) {
			if err := ctx.Err(); err != nil {
				return err
			}
			return errors.New("X connection closed")
		}
		if xerr != nil {
			w.log.WithError(xerr).Warn("X error")
			continue
		}

		switch ev := ev.(type) {
		case xproto.ExposeEvent:
			if (ev.Count == 0) && (h.Expose != nil) {
				h.Expose()
			}
		case xproto.ClientMessageEvent:
			if w.isDeleteRequest(ev) && (h.Close != nil) {
				h.Close()
			}
		case xproto.DestroyNotifyEvent:
			if h.Close != nil {
				h.Close()
			}
		default:
			if in, ok := translate(ev, w.origin); ok && (h.Input != nil) {
				h.Input(in)
			}
		}
	}
}

func (w *Window) isDeleteRequest(ev xproto.ClientMessageEvent) bool {
	if (ev.Type != w.wmProtocols) || (ev.Format != 32) {
		return false
	}
	data := ev.Data.Data32
	return (len(data) > 0) && (xproto.Atom(data[0]) == w.wmDeleteWin)
}

// Close destroys the window and closes the connection, which makes
// Run return. No other method may be called concurrently or after.
func (w *Window) Close() error {
	w.close.Do(func() {
		xproto.FreeGC(w.conn, w.gc)
		xproto.DestroyWindow(w.conn, w.win)
		w.conn.Close()
	})
	return nil
}

// translate turns an X input event into a backend event.
func translate(ev xgb.Event, origin image.Point) (backend.Event, bool) {
	switch ev := ev.(type) {
	case xproto.KeyPressEvent:
		return key(ev.Time, ev.Detail, true)
	case xproto.KeyReleaseEvent:
		return key(ev.Time, ev.Detail, false)
	case xproto.ButtonPressEvent:
		return button(ev.Time, ev.Detail, true)
	case xproto.ButtonReleaseEvent:
		return button(ev.Time, ev.Detail, false)
	case xproto.MotionNotifyEvent:
		return backend.MotionAbsolute{
			Time: uint32(ev.Time),
			X:    float64(origin.X + int(ev.EventX)),
			Y:    float64(origin.Y + int(ev.EventY)),
		}, true
	}
	return nil, false
}

func key(t xproto.Timestamp, code xproto.Keycode, pressed bool) (backend.Event, bool) {
	if code < keycodeOffset {
		return nil, false
	}
	return backend.Key{Time: uint32(t), Code: uint32(code) - keycodeOffset, Pressed: pressed}, true
}

// button maps a core button to a pointer button or, for the wheel
// buttons, to a scroll step. Wheel releases are dropped.
func button(t xproto.Timestamp, b xproto.Button, pressed bool) (backend.Event, bool) {
	if vertical, value, ok := pointer.Wheel(uint8(b)); ok {
		if !pressed {
			return nil, false
		}
		var axis uint32 = wl.PointerAxisHorizontalScroll
		if vertical {
			axis = wl.PointerAxisVerticalScroll
		}
		return backend.Axis{Time: uint32(t), Axis: axis, Value: value}, true
	}

	code, ok := pointer.CoreButton(uint8(b))
	if !ok {
		return nil, false
	}
	return backend.Button{Time: uint32(t), Code: uint32(code), Pressed: pressed}, true
}
