// Package kms drives a display directly through the Linux kernel mode
// setting interface. Frames are drawn by the CPU into a pair of dumb
// buffers that are page flipped onto the screen.
package kms

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"image"
	"io"
	"math"
	"os"
	"time"
	"unsafe"

	"github.com/sirupsen/logrus"
	"golang.org/x/sys/unix"
)

// DefaultPath is the card opened when none is configured.
const DefaultPath = "/dev/dri/card0"

// ErrNoDisplay is returned by Open if no connected connector has a
// usable mode and CRTC.
var ErrNoDisplay = errors.New("no connected display")

// Mode describes the display mode the device was set up with.
type Mode struct {
	Name string
	Size image.Point

	// Refresh is in mHz.
	Refresh int32

	// PhysicalSize is in millimeters.
	PhysicalSize image.Point
}

// Framebuffer is CPU-visible memory holding 32-bit XRGB pixels in
// little-endian order, which is BGRX in memory.
type Framebuffer struct {
	Pix    []byte
	Stride int
}

type dumbBuffer struct {
	handle uint32
	fbID   uint32
	fb     Framebuffer
}

// Device is an open DRM card with one CRTC driving one connector.
type Device struct {
	file *os.File
	path string
	log  *logrus.Entry

	connector uint32
	crtc      uint32
	mode      modeInfo
	info      Mode
	saved     crtc

	buffers [2]dumbBuffer
	front   int
	pending bool
}

// Open opens the card at path, becomes its master, and shows a black
// frame on the first connected display.
func Open(path string, log *logrus.Entry) (*Device, error) {
	if path == "" {
		path = DefaultPath
	}
	file, err := os.OpenFile(path, os.O_RDWR|unix.O_CLOEXEC, 0)
	if err != nil {
		return nil, err
	}

	d := Device{
		file: file,
		path: path,
		log:  log.WithFields(logrus.Fields{"backend": "drm", "device": path}),
	}
	if err := d.setup(); err != nil {
		d.release()
		file.Close()
		return nil, fmt.Errorf("set up %v: %w", path, err)
	}

	d.log.WithFields(logrus.Fields{
		"mode":    d.info.Name,
		"size":    d.info.Size,
		"refresh": d.info.Refresh,
	}).Info("display ready")
	return &d, nil
}

func (d *Device) fd() uintptr {
	return d.file.Fd()
}

func (d *Device) setup() error {
	err := ioctl(d.fd(), ioctlSetMaster, nil)
	if err != nil {
		// Without a session manager another process may already be
		// master. Mode setting fails later if that matters.
		d.log.WithError(err).Debug("DRM_IOCTL_SET_MASTER")
	}

	res, err := getResources(d.fd())
	if err != nil {
		return err
	}
	conn, crtcID, err := d.pickConnector(res)
	if err != nil {
		return err
	}
	d.connector = conn.id
	d.crtc = crtcID
	d.mode = conn.modes[0]
	d.info = modeFromInfo(d.mode, conn.physical)

	d.saved = crtc{CrtcID: crtcID}
	if err := ioctl(d.fd(), ioctlGetCrtc, unsafe.Pointer(&d.saved)); err != nil {
		d.log.WithError(err).Debug("DRM_IOCTL_MODE_GETCRTC")
	}

	for i := range d.buffers {
		b, err := d.createBuffer(d.info.Size)
		if err != nil {
			return err
		}
		d.buffers[i] = b
	}

	return d.setCrtc(d.buffers[0].fbID)
}

// pickConnector finds the first connected connector with at least one
// mode, and a CRTC that can drive it. The connector's current encoder
// is preferred.
func (d *Device) pickConnector(res resources) (connectorInfo, uint32, error) {
	for _, id := range res.connectors {
		conn, err := getConnector(d.fd(), id)
		if err != nil {
			d.log.WithError(err).Debug("skipping connector")
			continue
		}
		if !conn.connected || (len(conn.modes) == 0) {
			continue
		}

		encoders := conn.encoders
		if conn.encoderID != 0 {
			encoders = append([]uint32{conn.encoderID}, encoders...)
		}
		for _, encID := range encoders {
			enc, err := getEncoder(d.fd(), encID)
			if err != nil {
				continue
			}
			if (encID == conn.encoderID) && (enc.CrtcID != 0) {
				return conn, enc.CrtcID, nil
			}
			for i, crtcID := range res.crtcs {
				if enc.PossibleCrtcs&(1<<i) != 0 {
					return conn, crtcID, nil
				}
			}
		}
	}
	return connectorInfo{}, 0, ErrNoDisplay
}

func (d *Device) createBuffer(size image.Point) (dumbBuffer, error) {
	create := createDumb{
		Width:  uint32(size.X),
		Height: uint32(size.Y),
		BPP:    dumbBitsPerPixel,
	}
	err := ioctl(d.fd(), ioctlCreateDumb, unsafe.Pointer(&create))
	if err != nil {
		return dumbBuffer{}, fmt.Errorf("DRM_IOCTL_MODE_CREATE_DUMB: %w", err)
	}
	b := dumbBuffer{handle: create.Handle}

	cmd := fbCmd{
		Width:  create.Width,
		Height: create.Height,
		Pitch:  create.Pitch,
		BPP:    dumbBitsPerPixel,
		Depth:  framebufferDepth,
		Handle: create.Handle,
	}
	err = ioctl(d.fd(), ioctlAddFB, unsafe.Pointer(&cmd))
	if err != nil {
		d.destroyBuffer(b)
		return dumbBuffer{}, fmt.Errorf("DRM_IOCTL_MODE_ADDFB: %w", err)
	}
	b.fbID = cmd.FBID

	m := mapDumb{Handle: create.Handle}
	err = ioctl(d.fd(), ioctlMapDumb, unsafe.Pointer(&m))
	if err != nil {
		d.destroyBuffer(b)
		return dumbBuffer{}, fmt.Errorf("DRM_IOCTL_MODE_MAP_DUMB: %w", err)
	}
	pix, err := unix.Mmap(int(d.fd()), int64(m.Offset), int(create.Size), unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		d.destroyBuffer(b)
		return dumbBuffer{}, fmt.Errorf("map framebuffer: %w", err)
	}
	clear(pix)
	b.fb = Framebuffer{Pix: pix, Stride: int(create.Pitch)}

	return b, nil
}

func (d *Device) destroyBuffer(b dumbBuffer) {
	if b.fb.Pix != nil {
		unix.Munmap(b.fb.Pix)
	}
	if b.fbID != 0 {
		id := b.fbID
		ioctl(d.fd(), ioctlRmFB, unsafe.Pointer(&id))
	}
	if b.handle != 0 {
		destroy := destroyDumb{Handle: b.handle}
		ioctl(d.fd(), ioctlDestroyDumb, unsafe.Pointer(&destroy))
	}
}

func (d *Device) setCrtc(fbID uint32) error {
	connectors := []uint32{d.connector}
	set := crtc{
		SetConnectorsPtr: ptr(connectors),
		CountConnectors:  1,
		CrtcID:           d.crtc,
		FBID:             fbID,
		ModeValid:        1,
		Mode:             d.mode,
	}
	err := ioctl(d.fd(), ioctlSetCrtc, unsafe.Pointer(&set))
	if err != nil {
		return fmt.Errorf("DRM_IOCTL_MODE_SETCRTC: %w", err)
	}
	return nil
}

// Mode returns the mode the display is driven with.
func (d *Device) Mode() Mode {
	return d.info
}

// BackBuffer returns the buffer that is not on screen. It may be drawn
// into until the next PageFlip.
func (d *Device) BackBuffer() Framebuffer {
	return d.buffers[1-d.front].fb
}

// PageFlip schedules the back buffer to be shown at the next vertical
// blank. ReadEvents reports when that has happened. Only one flip can
// be pending at a time.
func (d *Device) PageFlip() error {
	if d.pending {
		return errors.New("page flip already pending")
	}

	back := 1 - d.front
	flip := pageFlip{
		CrtcID: d.crtc,
		FBID:   d.buffers[back].fbID,
		Flags:  pageFlipEvent,
	}
	err := ioctl(d.fd(), ioctlPageFlip, unsafe.Pointer(&flip))
	if err != nil {
		return fmt.Errorf("DRM_IOCTL_MODE_PAGE_FLIP: %w", err)
	}
	d.front = back
	d.pending = true
	return nil
}

// ReadEvents reads DRM events until ctx is canceled or the device is
// closed. onFlip is called with the time of the flip in milliseconds
// for every completed page flip. It runs on ReadEvents's goroutine,
// so it must hand the result to the event loop itself.
func (d *Device) ReadEvents(ctx context.Context, onFlip func(ms uint32)) error {
	stop := context.AfterFunc(ctx, func() { d.file.SetReadDeadline(time.Now()) })
	defer stop()

	buf := make([]byte, 1024)
	for {
		n, err := d.file.Read(buf)
		if err != nil {
			if (ctx.Err() != nil) || errors.Is(err, os.ErrClosed) {
				return ctx.Err()
			}
			if errors.Is(err, io.EOF) {
				return nil
			}
			return fmt.Errorf("read %v: %w", d.path, err)
		}

		for _, ms := range decodeFlips(buf[:n]) {
			onFlip(ms)
		}
	}
}

// FlipDone marks the pending page flip as complete. It must be called
// from the goroutine that calls PageFlip, after ReadEvents reported
// the flip.
func (d *Device) FlipDone() {
	d.pending = false
}

// decodeFlips returns the times of the page flip events in buf. Other
// events are skipped.
func decodeFlips(buf []byte) []uint32 {
	var flips []uint32
	for len(buf) >= eventHeaderSize {
		typ := binary.NativeEndian.Uint32(buf[0:])
		length := int(binary.NativeEndian.Uint32(buf[4:]))
		if (length < eventHeaderSize) || (length > len(buf)) {
			break
		}

		if (typ == eventFlipComplete) && (length >= vblankEventSize) {
			sec := binary.NativeEndian.Uint32(buf[16:])
			usec := binary.NativeEndian.Uint32(buf[20:])
			flips = append(flips, uint32(uint64(sec)*1000+uint64(usec)/1000))
		}
		buf = buf[length:]
	}
	return flips
}

func (d *Device) release() {
	for _, b := range d.buffers {
		d.destroyBuffer(b)
	}
	d.buffers = [2]dumbBuffer{}
}

// Close restores the CRTC to what it showed before Open, frees the
// buffers and gives up master.
func (d *Device) Close() error {
	if d.saved.FBID != 0 {
		connectors := []uint32{d.connector}
		d.saved.SetConnectorsPtr = ptr(connectors)
		d.saved.CountConnectors = 1
		if err := ioctl(d.fd(), ioctlSetCrtc, unsafe.Pointer(&d.saved)); err != nil {
			d.log.WithError(err).Debug("restore CRTC")
		}
	}
	d.release()
	ioctl(d.fd(), ioctlDropMaster, nil)
	return d.file.Close()
}

// modeFromInfo converts a kernel mode. The refresh rate is computed
// from the pixel clock when possible since VRefresh is rounded to
// whole hertz. Missing physical sizes are derived assuming 96 DPI.
func modeFromInfo(m modeInfo, physical [2]uint32) Mode {
	mode := Mode{
		Name: unix.ByteSliceToString(m.Name[:]),
		Size: image.Pt(int(m.HDisplay), int(m.VDisplay)),
	}

	if (m.HTotal != 0) && (m.VTotal != 0) {
		refresh := (int64(m.Clock)*1000000/int64(m.HTotal) + int64(m.VTotal)/2) / int64(m.VTotal)
		mode.Refresh = int32(refresh)
	} else {
		mode.Refresh = int32(m.VRefresh * 1000)
	}

	mode.PhysicalSize = image.Pt(int(physical[0]), int(physical[1]))
	if (physical[0] == 0) || (physical[1] == 0) {
		mode.PhysicalSize = image.Pt(
			int(math.Round(float64(mode.Size.X)*mmPerInch/fallbackDPI)),
			int(math.Round(float64(mode.Size.Y)*mmPerInch/fallbackDPI)),
		)
	}
	return mode
}
