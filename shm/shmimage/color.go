package shmimage

import "image/color"

// ARGB8888Color is a premultiplied 0xAARRGGBB pixel, which is how
// wl_shm defines the argb8888 format.
type ARGB8888Color uint32

func NewARGB8888Color(r, g, b, a uint8) ARGB8888Color {
	return ARGB8888Color(uint32(a)<<24 | uint32(r)<<16 | uint32(g)<<8 | uint32(b))
}

func (c ARGB8888Color) channel(shift uint) uint32 {
	v := (uint32(c) >> shift) & 0xFF
	return v | v<<8
}

func (c ARGB8888Color) RGBA() (r, g, b, a uint32) {
	a = c.channel(24)
	// Channels above alpha are not valid premultiplied values.
	r = min(c.channel(16), a)
	g = min(c.channel(8), a)
	b = min(c.channel(0), a)
	return r, g, b, a
}

// Opaque returns c with its alpha forced to 0xFF, as for xrgb8888.
func (c ARGB8888Color) Opaque() ARGB8888Color {
	return c | 0xFF000000
}

var (
	ARGB8888Model color.Model = color.ModelFunc(argb8888Model)
	XRGB8888Model color.Model = color.ModelFunc(xrgb8888Model)
)

func argb8888Model(c color.Color) color.Color {
	if c, ok := c.(ARGB8888Color); ok {
		return c
	}
	r, g, b, a := c.RGBA()
	return NewARGB8888Color(uint8(r>>8), uint8(g>>8), uint8(b>>8), uint8(a>>8))
}

// xrgb8888Model composites c over black.
func xrgb8888Model(c color.Color) color.Color {
	return argb8888Model(c).(ARGB8888Color).Opaque()
}
