package render

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"

	"github.com/Zubnix/trinity/compositor"
	"github.com/gogpu/gg"
	"github.com/sirupsen/logrus"
)

// Texture is the engine's copy of the last buffer committed to a
// surface, with the buffer transform already undone.
type Texture struct {
	size      image.Point
	format    uint32
	transform compositor.Transform
	serial    uint64

	img *image.RGBA
	// buf mirrors img for the remote platform. Its pixels are not
	// premultiplied.
	buf *gg.ImageBuf
}

// Size is the size of the buffer the texture was made from.
func (t *Texture) Size() image.Point {
	return t.size
}

func (t *Texture) Format() uint32 {
	return t.format
}

// Image returns the texture's pixels, oriented like the surface.
func (t *Texture) Image() *image.RGBA {
	return t.img
}

// cache holds one texture per surface.
type cache struct {
	log      *logrus.Entry
	mirror   bool
	textures map[compositor.Handle]*Texture
}

func newCache(log *logrus.Entry, mirror bool) *cache {
	return &cache{
		log:      log,
		mirror:   mirror,
		textures: make(map[compositor.Handle]*Texture),
	}
}

func (c *cache) get(h compositor.Handle) (*Texture, bool) {
	t, ok := c.textures[h]
	return t, ok
}

func (c *cache) delete(h compositor.Handle) {
	t, ok := c.textures[h]
	if !ok {
		return
	}
	delete(c.textures, h)
	c.release(t)
}

func (c *cache) release(t *Texture) {
	t.img = nil
	t.buf = nil
	c.log.WithFields(logrus.Fields{"size": t.size, "format": t.format}).Debug("texture deleted")
}

// update brings the texture of s up to date with its committed
// buffer and returns it. A texture whose size, format or transform no
// longer match is deleted and replaced; otherwise only the damaged
// part is uploaded again. If the committed buffer has been destroyed
// since it was uploaded, the existing texture is kept as it is.
func (c *cache) update(s *compositor.Surface) (*Texture, error) {
	state := s.State()
	buf := state.Buffer
	if buf == nil {
		return nil, fmt.Errorf("no buffer")
	}

	t, ok := c.textures[s.Ref()]
	if ok && (t.serial == s.Serial()) {
		return t, nil
	}
	if !buf.Alive() {
		if ok {
			return t, nil
		}
		return nil, fmt.Errorf("%v: buffer destroyed before upload", buf.Resource())
	}

	src, err := buf.Image()
	if err != nil {
		return nil, fmt.Errorf("map buffer: %w", err)
	}

	full := image.Rectangle{Max: textureSize(state.Transform, buf.Size())}
	damage := full
	if ok && ((t.size != buf.Size()) || (t.format != buf.Format()) || (t.transform != state.Transform)) {
		c.delete(s.Ref())
		ok = false
	}
	if !ok {
		t, err = c.create(buf.Size(), buf.Format(), state.Transform)
		if err != nil {
			return nil, err
		}
		c.textures[s.Ref()] = t
	} else {
		damage = textureDamage(state, buf.Size()).Intersect(full)
	}

	upload(t, src, damage)
	if c.mirror {
		mirror(t, damage)
	}
	t.serial = s.Serial()
	buf.Release()
	return t, nil
}

func (c *cache) create(size image.Point, format uint32, transform compositor.Transform) (*Texture, error) {
	tsize := textureSize(transform, size)
	t := Texture{
		size:      size,
		format:    format,
		transform: transform,
		img:       image.NewRGBA(image.Rectangle{Max: tsize}),
	}
	if c.mirror {
		buf, err := gg.NewImageBuf(tsize.X, tsize.Y, gg.FormatRGBA8)
		if err != nil {
			return nil, fmt.Errorf("create image buffer: %w", err)
		}
		t.buf = buf
	}
	c.log.WithFields(logrus.Fields{"size": size, "format": format}).Debug("texture created")
	return &t, nil
}

// textureDamage returns the bounds of the damage of state in texture
// coordinates.
func textureDamage(state compositor.SurfaceState, buf image.Point) image.Rectangle {
	scale := int(state.Scale)
	d := bufferRect(state.Transform, state.BufferDamage.Bounds(), buf)
	sd := state.Damage.Bounds()
	sd = image.Rect(sd.Min.X*scale, sd.Min.Y*scale, sd.Max.X*scale, sd.Max.Y*scale)
	return d.Union(sd)
}

// upload copies the part of src that lands in the texture rectangle r.
func upload(t *Texture, src image.Image, r image.Rectangle) {
	if r.Empty() {
		return
	}
	if t.transform == compositor.TransformNormal {
		draw.Draw(t.img, r, src, r.Min, draw.Src)
		return
	}

	size := t.img.Rect.Size()
	for y := r.Min.Y; y < r.Max.Y; y++ {
		for x := r.Min.X; x < r.Max.X; x++ {
			sp := sourcePoint(t.transform, image.Pt(x, y), size)
			t.img.Set(x, y, src.At(sp.X, sp.Y))
		}
	}
}

func mirror(t *Texture, r image.Rectangle) {
	if r.Empty() || (t.buf == nil) {
		return
	}
	for y := r.Min.Y; y < r.Max.Y; y++ {
		for x := r.Min.X; x < r.Max.X; x++ {
			c := color.NRGBAModel.Convert(t.img.RGBAAt(x, y)).(color.NRGBA)
			t.buf.SetRGBA(x, y, c.R, c.G, c.B, c.A)
		}
	}
}
