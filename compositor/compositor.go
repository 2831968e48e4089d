// Package compositor holds the compositor's data model: surfaces and
// their double-buffered state, the roles they can take on, the scene
// that orders them for painting, client buffers, and outputs.
//
// Everything in this package is owned by the event loop and must only
// be touched from it.
package compositor

import (
	"image"

	"github.com/Zubnix/trinity/internal/objstore"
	"github.com/Zubnix/trinity/region"
	wl "github.com/Zubnix/trinity/server"
	"github.com/sirupsen/logrus"
)

// Handle is a weak reference to a surface. It stays safe to hold after
// the surface is gone; lookups through a stale handle fail.
type Handle = objstore.Handle

type Compositor struct {
	server *wl.Server
	log    *logrus.Entry

	surfaces objstore.Arena[*Surface]
	scene    Scene
	outputs  []*Output

	destroyListeners []func(*Surface)
	repaintListeners []func()
	placed           int
}

// New creates a compositor and advertises wl_compositor,
// wl_subcompositor and wl_shm on server.
func New(server *wl.Server, log *logrus.Entry) *Compositor {
	c := Compositor{
		server: server,
		log:    log,
	}
	c.scene.comp = &c

	server.AddGlobal(wl.CompositorInterface, wl.CompositorVersion, c.bind)
	server.AddGlobal(wl.SubcompositorInterface, 1, c.bindSubcompositor)
	server.AddGlobal(wl.ShmInterface, 1, c.bindShm)

	return &c
}

func (c *Compositor) Server() *wl.Server {
	return c.server
}

func (c *Compositor) Scene() *Scene {
	return &c.scene
}

// Surface returns the live surface behind h.
func (c *Compositor) Surface(h Handle) (*Surface, bool) {
	return c.surfaces.Get(h)
}

// OnSurfaceDestroy registers f to be called whenever a surface is
// destroyed. Listeners run synchronously, before the surface's handle
// becomes stale, in registration order.
func (c *Compositor) OnSurfaceDestroy(f func(*Surface)) {
	c.destroyListeners = append(c.destroyListeners, f)
}

// OnRepaint registers f to be called when something visible changed.
func (c *Compositor) OnRepaint(f func()) {
	c.repaintListeners = append(c.repaintListeners, f)
}

// RequestRepaint tells the repaint listeners that a new frame is
// needed.
func (c *Compositor) RequestRepaint() {
	for _, f := range c.repaintListeners {
		f()
	}
}

// Outputs returns the outputs in the order they were added.
func (c *Compositor) Outputs() []*Output {
	return c.outputs
}

// NextPlacement returns a position for a newly mapped top-level
// surface. Windows cascade from the top-left corner of the first
// output.
func (c *Compositor) NextPlacement() image.Point {
	var origin image.Point
	if len(c.outputs) > 0 {
		origin = c.outputs[0].Bounds().Min
	}

	step := 32 * (c.placed % 8)
	c.placed++
	return origin.Add(image.Pt(step, step))
}

// SendFrameDone fires and destroys the committed frame callbacks of
// the surfaces in drawn.
func (c *Compositor) SendFrameDone(drawn []Handle, ms uint32) {
	for _, h := range drawn {
		s, ok := c.surfaces.Get(h)
		if !ok {
			continue
		}
		s.frameDone(ms)
	}
}

func (c *Compositor) bind(client *wl.Client, version, id uint32) error {
	_, err := client.NewResource(wl.CompositorInterface, version, id, c)
	return err
}

func (c *Compositor) Handle(r *wl.Resource, req wl.Request) error {
	switch req := req.(type) {
	case wl.CompositorCreateSurface:
		_, err := c.CreateSurface(r.Client(), r.Version(), req.ID)
		return err

	case wl.CompositorCreateRegion:
		_, err := r.Client().NewResource(wl.RegionInterface, 1, req.ID, new(regionObject))
		return err

	default:
		return wl.UnknownRequest(r, req)
	}
}

// CreateSurface creates a surface resource for client. An id of zero
// allocates one from the server's range.
func (c *Compositor) CreateSurface(client *wl.Client, version, id uint32) (*Surface, error) {
	s := Surface{
		comp:         c,
		pending:      initialState(),
		state:        initialState(),
		pendingStack: nil,
	}
	r, err := client.NewResource(wl.SurfaceInterface, version, id, &s)
	if err != nil {
		return nil, err
	}

	s.resource = r
	s.handle = c.surfaces.Add(&s)
	s.stack = []Handle{s.handle}
	s.pendingStack = []Handle{s.handle}
	s.log = c.log.WithField("surface", r.String())
	r.OnDestroy(func(*wl.Resource) { s.destroy() })

	return &s, nil
}

func (c *Compositor) destroyed(s *Surface) {
	for _, f := range c.destroyListeners {
		f(s)
	}
	c.surfaces.Delete(s.handle)
}

// regionObject implements wl_region.
type regionObject struct {
	region region.Region
}

func (obj *regionObject) Handle(r *wl.Resource, req wl.Request) error {
	switch req := req.(type) {
	case wl.RegionDestroy:
		r.Destroy()
		return nil

	case wl.RegionAdd:
		obj.region.Add(rect(req.X, req.Y, req.Width, req.Height))
		return nil

	case wl.RegionSubtract:
		obj.region.Subtract(rect(req.X, req.Y, req.Width, req.Height))
		return nil

	default:
		return wl.UnknownRequest(r, req)
	}
}

// regionOf copies the region behind r. The null region yields nil.
func regionOf(r *wl.Resource) *region.Region {
	obj, ok := wl.Impl[*regionObject](r)
	if !ok {
		return nil
	}
	return obj.region.Clone()
}

func rect(x, y, w, h int32) image.Rectangle {
	return image.Rect(int(x), int(y), int(x)+int(w), int(y)+int(h))
}
