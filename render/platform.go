package render

import (
	"image"

	"github.com/Zubnix/trinity/backend/kms"
	"github.com/Zubnix/trinity/backend/x11"
)

// Platform is where the engine presents frames. It is one of *DRM,
// *X11 or *Remote.
type Platform interface {
	platform()
}

// DRM composes frames in software into the back buffer of a KMS
// device and page flips to it. The frame counts as presented when the
// device reports the flip.
type DRM struct {
	Device *kms.Device
}

// X11 composes frames in software and pushes them into a window.
type X11 struct {
	Window *x11.Window
}

// Remote composes frames with gg and writes each one to frame.png in
// Dir.
type Remote struct {
	Dir string
}

func (*DRM) platform()    {}
func (*X11) platform()    {}
func (*Remote) platform() {}

// PlatformName returns a short name for p, for logging.
func PlatformName(p Platform) string {
	switch p.(type) {
	case *DRM:
		return "drm"
	case *X11:
		return "x11"
	case *Remote:
		return "remote"
	default:
		return "unknown"
	}
}

// projection maps global coordinates onto the frame.
type projection struct {
	origin image.Point
	size   image.Point
}

func (p projection) rect(global image.Rectangle) image.Rectangle {
	return global.Sub(p.origin)
}
