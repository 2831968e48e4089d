// Package evdev reads Linux input devices and turns their events into
// backend input events.
package evdev

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"image"
	"io"
	"os"
	"path/filepath"

	"github.com/Zubnix/trinity/backend"
	wl "github.com/Zubnix/trinity/server"
	"github.com/sirupsen/logrus"
)

// DefaultPattern matches every event device.
const DefaultPattern = "/dev/input/event*"

// Device is an open evdev device.
type Device struct {
	file *os.File
	path string
	name string
	caps uint32
	log  *logrus.Entry

	tr translator
}

// Open opens the device at path and grabs it so that no one else sees
// its events.
func Open(path string, log *logrus.Entry) (*Device, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}

	d := Device{
		file: file,
		path: path,
	}
	err = d.probe()
	if err != nil {
		file.Close()
		return nil, fmt.Errorf("probe %v: %w", path, err)
	}
	d.log = log.WithFields(logrus.Fields{"device": path, "name": d.name})

	if d.caps != 0 {
		if err := grab(d.file.Fd(), true); err != nil {
			file.Close()
			return nil, fmt.Errorf("grab %v: %w", path, err)
		}
	}

	return &d, nil
}

func (d *Device) probe() error {
	fd := d.file.Fd()

	name, err := queryName(fd)
	if err != nil {
		return err
	}
	d.name = name

	types, err := queryBits(fd, 0, evMax)
	if err != nil {
		return err
	}
	var keys, rels, abs bits
	if types.has(evKey) {
		if keys, err = queryBits(fd, evKey, keyMax); err != nil {
			return err
		}
	}
	if types.has(evRel) {
		if rels, err = queryBits(fd, evRel, relMax); err != nil {
			return err
		}
	}
	if types.has(evAbs) {
		if abs, err = queryBits(fd, evAbs, absMax); err != nil {
			return err
		}
	}
	d.caps = capabilities(keys, rels, abs)

	switch {
	case abs.has(absMTPositionX):
		d.tr.absolute = absTouch
		err = d.queryRange(absMTPositionX, absMTPositionY)
	case abs.has(absX) && (d.caps&wl.SeatCapabilityPointer != 0):
		d.tr.absolute = absPointer
		err = d.queryRange(absX, absY)
	}
	return err
}

func (d *Device) queryRange(xcode, ycode int) error {
	x, err := queryAbs(d.file.Fd(), xcode)
	if err != nil {
		return err
	}
	y, err := queryAbs(d.file.Fd(), ycode)
	if err != nil {
		return err
	}
	d.tr.rangeX = [2]int32{x.Minimum, x.Maximum}
	d.tr.rangeY = [2]int32{y.Minimum, y.Maximum}
	return nil
}

// capabilities derives wl_seat capabilities from a device's event
// bits.
func capabilities(keys, rels, abs bits) uint32 {
	var caps uint32
	if keys.has(keyA) {
		caps |= wl.SeatCapabilityKeyboard
	}
	if (rels.has(relX) && rels.has(relY)) || (abs.has(absX) && keys.has(btnMouse)) {
		caps |= wl.SeatCapabilityPointer
	}
	if abs.has(absMTPositionX) && abs.has(absMTPositionY) {
		caps |= wl.SeatCapabilityTouch
	}
	return caps
}

func (d *Device) Path() string {
	return d.path
}

func (d *Device) Name() string {
	return d.name
}

// Capabilities returns the wl_seat capabilities the device provides.
func (d *Device) Capabilities() uint32 {
	return d.caps
}

// SetArea sets the global rectangle that absolute positions are
// mapped onto, usually the bounds of the output.
func (d *Device) SetArea(r image.Rectangle) {
	d.tr.area = r
}

// Run reads events until ctx is canceled or the device goes away,
// passing each translated event to emit. emit is called on Run's
// goroutine.
func (d *Device) Run(ctx context.Context, emit func(backend.Event)) error {
	stop := context.AfterFunc(ctx, func() { d.file.Close() })
	defer stop()

	var buf [rawEventSize]byte
	for {
		_, err := io.ReadFull(d.file, buf[:])
		if err != nil {
			if (ctx.Err() != nil) || errors.Is(err, os.ErrClosed) {
				return ctx.Err()
			}
			return fmt.Errorf("read %v: %w", d.path, err)
		}

		for _, ev := range d.tr.feed(decodeRaw(buf)) {
			emit(ev)
		}
	}
}

func (d *Device) Close() error {
	grab(d.file.Fd(), false)
	return d.file.Close()
}

// Scan opens every device matching the patterns that provides at
// least one seat capability. Devices that cannot be opened are
// logged and skipped.
func Scan(patterns []string, log *logrus.Entry) []*Device {
	if len(patterns) == 0 {
		patterns = []string{DefaultPattern}
	}

	var devices []*Device
	seen := make(map[string]struct{})
	for _, pattern := range patterns {
		paths, err := filepath.Glob(pattern)
		if err != nil {
			log.WithError(err).WithField("pattern", pattern).Warn("bad device pattern")
			continue
		}
		for _, path := range paths {
			if _, ok := seen[path]; ok {
				continue
			}
			seen[path] = struct{}{}

			d, err := Open(path, log)
			if err != nil {
				log.WithError(err).Debug("skipping input device")
				continue
			}
			if d.Capabilities() == 0 {
				d.Close()
				continue
			}
			d.log.WithField("caps", d.Capabilities()).Info("input device")
			devices = append(devices, d)
		}
	}
	return devices
}

// rawEventSize is the size of struct input_event on 64-bit systems.
const rawEventSize = 24

type rawEvent struct {
	Sec, Usec int64
	Type      uint16
	Code      uint16
	Value     int32
}

func decodeRaw(buf [rawEventSize]byte) rawEvent {
	return rawEvent{
		Sec:   int64(binary.NativeEndian.Uint64(buf[0:])),
		Usec:  int64(binary.NativeEndian.Uint64(buf[8:])),
		Type:  binary.NativeEndian.Uint16(buf[16:]),
		Code:  binary.NativeEndian.Uint16(buf[18:]),
		Value: int32(binary.NativeEndian.Uint32(buf[20:])),
	}
}

func (ev rawEvent) time() uint32 {
	return uint32(ev.Sec*1000 + ev.Usec/1000)
}
