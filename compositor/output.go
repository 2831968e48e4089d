package compositor

import (
	"image"

	wl "github.com/Zubnix/trinity/server"
	"github.com/sirupsen/logrus"
)

// Geometry describes where an output is and what it physically is.
type Geometry struct {
	Position image.Point

	// PhysicalSize is in millimeters.
	PhysicalSize image.Point
	Subpixel     int32
	Make, Model  string
	Transform    Transform
}

type Mode struct {
	Size image.Point

	// Refresh is in mHz.
	Refresh int32
}

// Output is a wl_output: one display that the scene is shown on.
type Output struct {
	comp      *Compositor
	global    *wl.Global
	resources wl.ResourceSet
	log       *logrus.Entry

	geometry   Geometry
	mode       Mode
	scale      int32
	modeSerial uint64
}

// AddOutput creates an output and advertises it to clients.
func (c *Compositor) AddOutput(geometry Geometry, mode Mode, scale int32) *Output {
	o := Output{
		comp:       c,
		geometry:   geometry,
		mode:       mode,
		scale:      max(scale, 1),
		modeSerial: 1,
	}
	o.log = c.log.WithField("output", geometry.Model)
	o.global = c.server.AddGlobal(wl.OutputInterface, wl.OutputVersion, o.bind)
	c.outputs = append(c.outputs, &o)

	o.log.WithFields(logrus.Fields{"size": mode.Size, "refresh": mode.Refresh}).Info("output added")
	c.updateAllOutputs()
	return &o
}

func (o *Output) Geometry() Geometry {
	return o.geometry
}

func (o *Output) Mode() Mode {
	return o.mode
}

func (o *Output) Scale() int32 {
	return o.scale
}

// ModeSerial changes whenever the mode does.
func (o *Output) ModeSerial() uint64 {
	return o.modeSerial
}

// Bounds is the area of the global coordinate space that the output
// shows.
func (o *Output) Bounds() image.Rectangle {
	size := o.mode.Size
	if o.geometry.Transform.SwapsAxes() {
		size.X, size.Y = size.Y, size.X
	}
	return image.Rectangle{Min: o.geometry.Position, Max: o.geometry.Position.Add(size.Div(int(o.scale)))}
}

// SetMode changes the output's mode and tells clients about it.
func (o *Output) SetMode(mode Mode) {
	if mode == o.mode {
		return
	}
	o.mode = mode
	o.modeSerial++

	o.resources.Broadcast(func(r *wl.Resource) {
		wl.OutputMode(r, wl.OutputModeCurrent|wl.OutputModePreferred, int32(mode.Size.X), int32(mode.Size.Y), mode.Refresh)
		wl.OutputDone(r)
	})
	o.comp.updateAllOutputs()
	o.comp.RequestRepaint()
}

// Remove withdraws the output.
func (o *Output) Remove() {
	o.comp.server.RemoveGlobal(o.global)
	for i, other := range o.comp.outputs {
		if other == o {
			o.comp.outputs = append(o.comp.outputs[:i], o.comp.outputs[i+1:]...)
			break
		}
	}

	for _, s := range o.comp.surfaces.All() {
		for i, other := range s.outputs {
			if other != o {
				continue
			}
			s.outputs = append(s.outputs[:i], s.outputs[i+1:]...)
			for _, r := range o.resources.ForClient(s.Client()) {
				wl.SurfaceLeave(s.resource, r)
			}
			break
		}
	}
}

func (o *Output) bind(client *wl.Client, version, id uint32) error {
	r, err := o.resources.Create(client, wl.OutputInterface, version, id, o)
	if err != nil {
		return err
	}

	g := o.geometry
	wl.OutputGeometry(r,
		int32(g.Position.X), int32(g.Position.Y),
		int32(g.PhysicalSize.X), int32(g.PhysicalSize.Y),
		g.Subpixel, g.Make, g.Model, int32(g.Transform),
	)
	wl.OutputMode(r, wl.OutputModeCurrent|wl.OutputModePreferred, int32(o.mode.Size.X), int32(o.mode.Size.Y), o.mode.Refresh)
	wl.OutputScale(r, o.scale)
	wl.OutputDone(r)

	for _, s := range o.comp.surfaces.All() {
		if s.Client() != client {
			continue
		}
		for _, on := range s.outputs {
			if on == o {
				wl.SurfaceEnter(s.resource, r)
			}
		}
	}
	return nil
}

func (o *Output) Handle(r *wl.Resource, req wl.Request) error {
	switch req := req.(type) {
	case wl.OutputRelease:
		r.Destroy()
		return nil

	default:
		return wl.UnknownRequest(r, req)
	}
}

func (c *Compositor) updateAllOutputs() {
	for s := range c.scene.Surfaces() {
		if _, ok := s.Parent(); !ok {
			s.updateOutputs()
		}
	}
}
