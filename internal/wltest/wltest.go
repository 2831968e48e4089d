// Package wltest provides helpers for tests that need a compositor
// with clients but no sockets. Clients are detached: their events are
// kept in memory and can be inspected with Events.
package wltest

import (
	"image"
	"io"
	"testing"

	"github.com/Zubnix/trinity/compositor"
	"github.com/Zubnix/trinity/internal/ev"
	wl "github.com/Zubnix/trinity/server"
	"github.com/Zubnix/trinity/shm"
	"github.com/Zubnix/trinity/wire"
	"github.com/sirupsen/logrus"
)

// Log returns a logger that discards everything.
func Log() *logrus.Entry {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return logrus.NewEntry(log)
}

// Loop returns an event loop that is stopped when the test ends.
func Loop(t testing.TB) *ev.Loop {
	loop := ev.NewLoop()
	t.Cleanup(loop.Stop)
	return loop
}

// Compositor returns a compositor with one connected client.
func Compositor(t testing.TB) (*compositor.Compositor, *wl.Client) {
	t.Helper()

	server := wl.NewServer(nil, Loop(t), Log())
	comp := compositor.New(server, Log())
	return comp, server.Connect(nil)
}

func Surface(t testing.TB, comp *compositor.Compositor, client *wl.Client) *compositor.Surface {
	t.Helper()

	s, err := comp.CreateSurface(client, wl.CompositorVersion, 0)
	if err != nil {
		t.Fatal(err)
	}
	return s
}

// Buffer returns a w×h SHM buffer in format, filled with pixel.
func Buffer(t testing.TB, client *wl.Client, w, h int, format uint32, pixel uint32) *compositor.Buffer {
	t.Helper()

	size := w * h * 4
	file, err := shm.Create("wltest", size)
	if err != nil {
		t.Fatal(err)
	}

	data := make([]byte, size)
	for i := 0; i < size; i += 4 {
		data[i+0] = byte(pixel)
		data[i+1] = byte(pixel >> 8)
		data[i+2] = byte(pixel >> 16)
		data[i+3] = byte(pixel >> 24)
	}
	if _, err := file.WriteAt(data, 0); err != nil {
		t.Fatal(err)
	}

	shmResource, err := client.NewResource(wl.ShmInterface, 1, 0, nil)
	if err != nil {
		t.Fatal(err)
	}
	pool, err := compositor.CreatePool(shmResource, 0, file, int32(size))
	if err != nil {
		t.Fatal(err)
	}
	buf, err := pool.CreateBuffer(0, 0, int32(w), int32(h), int32(w*4), format)
	if err != nil {
		t.Fatal(err)
	}
	return buf
}

// Map gives s an opaque w×h buffer and commits it.
func Map(t testing.TB, s *compositor.Surface, w, h int) *compositor.Buffer {
	t.Helper()

	buf := Buffer(t, s.Client(), w, h, wl.ShmFormatARGB8888, 0xFF808080)
	Attach(s, buf)
	return buf
}

// Attach attaches buf to s, damages all of it and commits.
func Attach(s *compositor.Surface, buf *compositor.Buffer) {
	s.Attach(buf, image.Point{})
	s.Damage(image.Rectangle{Max: buf.Size()})
	s.Commit()
}

// Events returns the queued events of client named method.
func Events(client *wl.Client, method string) []*wire.MessageBuilder {
	var out []*wire.MessageBuilder
	for _, msg := range client.Outgoing() {
		if msg.Method == method {
			out = append(out, msg)
		}
	}
	return out
}

// Methods returns the names of client's queued events in order.
func Methods(client *wl.Client) []string {
	var out []string
	for _, msg := range client.Outgoing() {
		out = append(out, msg.Method)
	}
	return out
}

// Drain discards client's queued events.
func Drain(client *wl.Client) {
	client.Flush()
}
