// Package render turns the scene into frames. The Engine walks the
// scene's paint order, keeps a texture per surface and composes them
// for one of a fixed set of platforms.
package render

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"os"
	"path/filepath"

	"github.com/Zubnix/trinity/compositor"
	"github.com/Zubnix/trinity/cursor"
	"github.com/Zubnix/trinity/seat"
	"github.com/gogpu/gg"
	"github.com/sirupsen/logrus"
	xdraw "golang.org/x/image/draw"
)

var background = color.RGBA{R: 0x33, G: 0x33, B: 0x33, A: 0xFF}

type Engine struct {
	comp     *compositor.Compositor
	output   *compositor.Output
	platform Platform
	log      *logrus.Entry

	cache *cache

	proj        projection
	modeSerial  uint64
	projected   bool
	projections int

	frame *image.RGBA
	bgrx  []byte
	ctx   *gg.Context

	pointer       *seat.PointerDevice
	defaultCursor *cursor.Image
	cursorBuf     *gg.ImageBuf

	drawn []compositor.Handle
}

// NewEngine creates an engine that draws the part of the scene that
// lies on output and presents it on platform.
func NewEngine(comp *compositor.Compositor, output *compositor.Output, platform Platform, log *logrus.Entry) *Engine {
	_, remote := platform.(*Remote)
	e := Engine{
		comp:     comp,
		output:   output,
		platform: platform,
		log:      log,
		cache:    newCache(log, remote),
	}
	comp.OnSurfaceDestroy(func(s *compositor.Surface) {
		e.cache.delete(s.Ref())
	})
	return &e
}

func (e *Engine) Platform() Platform {
	return e.platform
}

// SetPointer makes the engine draw p's cursor on top of every frame.
// theme supplies the image used while no client has set a cursor; it
// may be nil.
func (e *Engine) SetPointer(p *seat.PointerDevice, theme *cursor.Theme) {
	e.pointer = p
	e.defaultCursor = nil
	e.cursorBuf = nil
	if theme == nil {
		return
	}

	c, ok := theme.Cursor("left_ptr")
	if !ok || (len(c.Frames) == 0) {
		e.log.WithField("theme", theme.Name).Warn("theme has no left_ptr cursor")
		return
	}
	e.defaultCursor = c.Frames[0]
	if _, remote := e.platform.(*Remote); remote {
		e.cursorBuf = gg.ImageBufFromImage(e.defaultCursor.Image)
	}
}

// Texture returns the cached texture of the surface h.
func (e *Engine) Texture(h compositor.Handle) (*Texture, bool) {
	return e.cache.get(h)
}

// Render draws and presents one frame. It returns the surfaces that
// were drawn. Surfaces that fail to draw are logged and left out;
// only a failure of the platform itself is returned as an error.
func (e *Engine) Render() ([]compositor.Handle, error) {
	err := e.begin()
	if err != nil {
		return nil, fmt.Errorf("begin frame: %w", err)
	}

	e.drawn = e.drawn[:0]
	for s := range e.comp.Scene().Surfaces() {
		err := e.render(s, s.Position())
		if err != nil {
			e.log.WithError(err).WithField("surface", s.Resource()).Warn("skipping surface")
		}
	}
	e.renderCursor()

	drawn := append([]compositor.Handle(nil), e.drawn...)
	if err := e.end(); err != nil {
		return drawn, fmt.Errorf("end frame: %w", err)
	}
	return drawn, nil
}

func (e *Engine) begin() error {
	if !e.projected || (e.output.ModeSerial() != e.modeSerial) {
		e.project()
	}

	switch e.platform.(type) {
	case *DRM, *X11:
		draw.Draw(e.frame, e.frame.Rect, image.NewUniform(background), image.Point{}, draw.Src)
		return nil
	case *Remote:
		e.ctx.ClearWithColor(gg.FromColor(background))
		return nil
	default:
		return fmt.Errorf("unsupported platform %T", e.platform)
	}
}

// project sets up the frame for the output's current mode.
func (e *Engine) project() {
	mode := e.output.Mode()
	e.proj = projection{
		origin: e.output.Bounds().Min,
		size:   mode.Size,
	}
	e.modeSerial = e.output.ModeSerial()
	e.projected = true
	e.projections++

	switch e.platform.(type) {
	case *DRM, *X11:
		e.frame = image.NewRGBA(image.Rectangle{Max: mode.Size})
		e.bgrx = make([]byte, 4*mode.Size.X*mode.Size.Y)
	case *Remote:
		e.ctx = gg.NewContext(mode.Size.X, mode.Size.Y)
	}
	e.log.WithFields(logrus.Fields{"size": mode.Size, "origin": e.proj.origin}).Debug("projection updated")
}

func (e *Engine) render(s *compositor.Surface, pos image.Point) error {
	if !s.Mapped() {
		return nil
	}

	t, err := e.cache.update(s)
	if err != nil {
		return err
	}

	dst := e.proj.rect(image.Rectangle{Min: pos, Max: pos.Add(s.Size())})
	if !dst.Overlaps(image.Rectangle{Max: e.proj.size}) {
		return nil
	}
	e.draw(t.img, t.buf, dst)
	e.drawn = append(e.drawn, s.Ref())
	return nil
}

func (e *Engine) draw(img *image.RGBA, buf *gg.ImageBuf, dst image.Rectangle) {
	switch e.platform.(type) {
	case *DRM, *X11:
		drawSoftware(e.frame, img, dst)
	case *Remote:
		e.ctx.DrawImageEx(buf, gg.DrawImageOptions{
			X:         float64(dst.Min.X),
			Y:         float64(dst.Min.Y),
			DstWidth:  float64(dst.Dx()),
			DstHeight: float64(dst.Dy()),
		})
	}
}

func (e *Engine) renderCursor() {
	if e.pointer == nil {
		return
	}
	c := e.pointer.Cursor()
	if c.Hidden {
		return
	}
	pos := e.pointer.Position()

	if c.Surface != nil {
		err := e.render(c.Surface, pos.Sub(c.Hotspot))
		if err != nil {
			e.log.WithError(err).Debug("skipping cursor surface")
		}
		return
	}

	if e.defaultCursor == nil {
		return
	}
	hot := image.Pt(e.defaultCursor.XHot, e.defaultCursor.YHot)
	at := pos.Sub(hot).Sub(e.proj.origin)
	e.draw(e.defaultCursor.Image, e.cursorBuf, image.Rectangle{Min: at, Max: at.Add(e.defaultCursor.Image.Rect.Size())})
}

func (e *Engine) end() error {
	switch p := e.platform.(type) {
	case *DRM:
		fb := p.Device.BackBuffer()
		toBGRX(fb.Pix, fb.Stride, e.frame)
		return p.Device.PageFlip()

	case *X11:
		toBGRX(e.bgrx, 4*e.frame.Rect.Dx(), e.frame)
		return p.Window.Present(e.bgrx, e.frame.Rect.Size())

	case *Remote:
		return e.writeFrame(p.Dir)

	default:
		return fmt.Errorf("unsupported platform %T", e.platform)
	}
}

// writeFrame writes the frame to dir/frame.png. Readers never see a
// partially written file.
func (e *Engine) writeFrame(dir string) (err error) {
	tmp, err := os.CreateTemp(dir, ".frame-*.png")
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			os.Remove(tmp.Name())
		}
	}()

	err = e.ctx.EncodePNG(tmp)
	err = errors.Join(err, tmp.Close())
	if err != nil {
		return fmt.Errorf("encode: %w", err)
	}
	return os.Rename(tmp.Name(), filepath.Join(dir, "frame.png"))
}

func drawSoftware(dst, src *image.RGBA, r image.Rectangle) {
	if r.Size() == src.Rect.Size() {
		draw.Draw(dst, r, src, src.Rect.Min, draw.Over)
		return
	}
	xdraw.ApproxBiLinear.Scale(dst, r, src, src.Rect, xdraw.Over, nil)
}

// toBGRX converts src into 32-bit little-endian XRGB pixels, the
// layout of both DRM dumb buffers and 24-bit X11 visuals.
func toBGRX(dst []byte, stride int, src *image.RGBA) {
	size := src.Rect.Size()
	for y := 0; y < size.Y; y++ {
		srow := src.Pix[y*src.Stride : y*src.Stride+4*size.X]
		drow := dst[y*stride : y*stride+4*size.X]
		for x := 0; x < len(srow); x += 4 {
			drow[x+0] = srow[x+2]
			drow[x+1] = srow[x+1]
			drow[x+2] = srow[x+0]
			drow[x+3] = 0xFF
		}
	}
}
