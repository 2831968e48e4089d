package render

import (
	"image"

	"github.com/Zubnix/trinity/compositor"
)

// sourcePoint returns the buffer pixel that ends up at p in a texture
// of size size after t has been undone. A transform describes how the
// client already rotated its content: Transform90 means the buffer
// holds the surface turned 90 degrees counter-clockwise, and the
// flipped variants mirror horizontally before rotating.
func sourcePoint(t compositor.Transform, p, size image.Point) image.Point {
	w, h := size.X, size.Y
	switch t {
	case compositor.Transform90:
		return image.Pt(p.Y, w-1-p.X)
	case compositor.Transform180:
		return image.Pt(w-1-p.X, h-1-p.Y)
	case compositor.Transform270:
		return image.Pt(h-1-p.Y, p.X)
	case compositor.TransformFlipped:
		return image.Pt(w-1-p.X, p.Y)
	case compositor.TransformFlipped90:
		return image.Pt(p.Y, p.X)
	case compositor.TransformFlipped180:
		return image.Pt(p.X, h-1-p.Y)
	case compositor.TransformFlipped270:
		return image.Pt(h-1-p.Y, w-1-p.X)
	default:
		return p
	}
}

// textureSize is the size of a buffer of size buf after t is undone.
func textureSize(t compositor.Transform, buf image.Point) image.Point {
	if t.SwapsAxes() {
		return image.Pt(buf.Y, buf.X)
	}
	return buf
}

// bufferRect returns the texture rectangle covering the buffer
// rectangle r.
func bufferRect(t compositor.Transform, r image.Rectangle, buf image.Point) image.Rectangle {
	if t == compositor.TransformNormal {
		return r
	}
	size := textureSize(t, buf)
	var out image.Rectangle
	for _, c := range []image.Point{r.Min, {r.Max.X - 1, r.Min.Y}, {r.Min.X, r.Max.Y - 1}, r.Max.Sub(image.Pt(1, 1))} {
		p := inversePoint(t, c, size)
		out = out.Union(image.Rectangle{Min: p, Max: p.Add(image.Pt(1, 1))})
	}
	return out
}

// inversePoint returns the texture pixel that the buffer pixel p
// lands on.
func inversePoint(t compositor.Transform, p, size image.Point) image.Point {
	w, h := size.X, size.Y
	switch t {
	case compositor.Transform90:
		return image.Pt(w-1-p.Y, p.X)
	case compositor.Transform180:
		return image.Pt(w-1-p.X, h-1-p.Y)
	case compositor.Transform270:
		return image.Pt(p.Y, h-1-p.X)
	case compositor.TransformFlipped:
		return image.Pt(w-1-p.X, p.Y)
	case compositor.TransformFlipped90:
		return image.Pt(p.Y, p.X)
	case compositor.TransformFlipped180:
		return image.Pt(p.X, h-1-p.Y)
	case compositor.TransformFlipped270:
		return image.Pt(w-1-p.Y, h-1-p.X)
	default:
		return p
	}
}
