// Package shmimage provides draw.Image views over the pixel formats
// that clients put into shared memory.
package shmimage

import (
	"encoding/binary"
	"image"
	"image/color"
	"image/draw"
)

// ARGB8888 is an image of little-endian 32-bit premultiplied ARGB
// words, so B, G, R, A in memory.
type ARGB8888 struct {
	// Pix holds the pixels. The pixel at (x, y) starts at
	// Pix[(y-Rect.Min.Y)*Stride + (x-Rect.Min.X)*4].
	Pix []uint8

	// Stride is the distance in bytes between vertically adjacent
	// pixels. Clients may pad rows, so it can exceed 4*Rect.Dx().
	Stride int
	Rect   image.Rectangle
}

func NewARGB8888(r image.Rectangle) *ARGB8888 {
	return &ARGB8888{
		Pix:    make([]uint8, r.Dx()*r.Dy()*4),
		Stride: 4 * r.Dx(),
		Rect:   r,
	}
}

func (p *ARGB8888) Bounds() image.Rectangle { return p.Rect }

func (p *ARGB8888) ColorModel() color.Model { return ARGB8888Model }

func (p *ARGB8888) At(x, y int) color.Color {
	return p.ARGB8888At(x, y)
}

func (p *ARGB8888) ARGB8888At(x, y int) ARGB8888Color {
	return load(p.Pix, p.Stride, p.Rect, x, y)
}

// PixOffset returns the index of the first element of Pix that
// corresponds to the pixel at (x, y).
func (p *ARGB8888) PixOffset(x, y int) int {
	return offset(p.Stride, p.Rect, x, y)
}

func (p *ARGB8888) Set(x, y int, c color.Color) {
	store(p.Pix, p.Stride, p.Rect, x, y, ARGB8888Model.Convert(c).(ARGB8888Color))
}

// SubImage returns the part of p visible through r. It shares pixels
// with p.
func (p *ARGB8888) SubImage(r image.Rectangle) draw.Image {
	pix, r := sub(p.Pix, p.Stride, p.Rect, r)
	return &ARGB8888{Pix: pix, Stride: p.Stride, Rect: r}
}

// XRGB8888 has the layout of ARGB8888, but the alpha byte is
// undefined and every pixel is opaque.
type XRGB8888 struct {
	Pix    []uint8
	Stride int
	Rect   image.Rectangle
}

func (p *XRGB8888) Bounds() image.Rectangle { return p.Rect }

func (p *XRGB8888) ColorModel() color.Model { return XRGB8888Model }

func (p *XRGB8888) At(x, y int) color.Color {
	if !(image.Point{x, y}.In(p.Rect)) {
		return ARGB8888Color(0)
	}
	return load(p.Pix, p.Stride, p.Rect, x, y).Opaque()
}

func (p *XRGB8888) PixOffset(x, y int) int {
	return offset(p.Stride, p.Rect, x, y)
}

func (p *XRGB8888) Set(x, y int, c color.Color) {
	store(p.Pix, p.Stride, p.Rect, x, y, XRGB8888Model.Convert(c).(ARGB8888Color))
}

func (p *XRGB8888) SubImage(r image.Rectangle) draw.Image {
	pix, r := sub(p.Pix, p.Stride, p.Rect, r)
	return &XRGB8888{Pix: pix, Stride: p.Stride, Rect: r}
}

func offset(stride int, rect image.Rectangle, x, y int) int {
	return (y-rect.Min.Y)*stride + (x-rect.Min.X)*4
}

func load(pix []uint8, stride int, rect image.Rectangle, x, y int) ARGB8888Color {
	if !(image.Point{x, y}.In(rect)) {
		return ARGB8888Color(0)
	}
	i := offset(stride, rect, x, y)
	return ARGB8888Color(binary.LittleEndian.Uint32(pix[i : i+4 : i+4]))
}

func store(pix []uint8, stride int, rect image.Rectangle, x, y int, c ARGB8888Color) {
	if !(image.Point{x, y}.In(rect)) {
		return
	}
	i := offset(stride, rect, x, y)
	binary.LittleEndian.PutUint32(pix[i:i+4:i+4], uint32(c))
}

// sub clips r to rect and returns the pixels starting at its origin.
// An empty intersection yields no pixels, since Pix[i:] could
// otherwise be out of range.
func sub(pix []uint8, stride int, rect, r image.Rectangle) ([]uint8, image.Rectangle) {
	r = r.Intersect(rect)
	if r.Empty() {
		return nil, image.Rectangle{}
	}
	return pix[offset(stride, rect, r.Min.X, r.Min.Y):], r
}
