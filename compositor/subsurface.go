package compositor

import (
	"errors"
	"fmt"
	"image"

	wl "github.com/Zubnix/trinity/server"
)

var errBadParent = errors.New("bad sub-surface parent")

func (c *Compositor) bindSubcompositor(client *wl.Client, version, id uint32) error {
	_, err := client.NewResource(wl.SubcompositorInterface, version, id, subcompositor{comp: c})
	return err
}

type subcompositor struct {
	comp *Compositor
}

func (sc subcompositor) Handle(r *wl.Resource, req wl.Request) error {
	switch req := req.(type) {
	case wl.SubcompositorDestroy:
		r.Destroy()
		return nil

	case wl.SubcompositorGetSubsurface:
		surface, ok := wl.Impl[*Surface](req.Surface)
		if !ok {
			return nil
		}
		parent, ok := wl.Impl[*Surface](req.Parent)
		if !ok {
			return nil
		}

		_, err := sc.comp.NewSubsurface(r.Client(), req.ID, surface, parent)
		if errors.Is(err, ErrRoleConflict) || errors.Is(err, errBadParent) {
			return wl.NewProtocolError(r, wl.SubcompositorErrorBadSurface, "%v", err)
		}
		return err

	default:
		return wl.UnknownRequest(r, req)
	}
}

// NewSubsurface turns surface into a sub-surface of parent and
// creates the wl_subsurface resource controlling it. The new
// sub-surface is synchronized and stacked above its siblings.
func (c *Compositor) NewSubsurface(client *wl.Client, id uint32, surface, parent *Surface) (*wl.Resource, error) {
	if surface.isAncestorOf(parent) {
		return nil, fmt.Errorf("%w: %v is %v or one of its ancestors", errBadParent, surface.resource, parent.resource)
	}
	if err := surface.SetRole(SubSurface{Parent: parent.handle}); err != nil {
		return nil, err
	}

	sub := subsurface{
		comp:    c,
		surface: surface.handle,
		sync:    true,
	}
	r, err := client.NewResource(wl.SubsurfaceInterface, 1, id, &sub)
	if err != nil {
		return nil, err
	}
	r.OnDestroy(func(*wl.Resource) { sub.unmap() })

	surface.sub = &sub
	parent.addChild(surface)
	c.RequestRepaint()
	return r, nil
}

// subsurface implements wl_subsurface.
type subsurface struct {
	comp    *Compositor
	surface Handle
	sync    bool

	position    image.Point
	hasPosition bool
}

func (sub *subsurface) Handle(r *wl.Resource, req wl.Request) error {
	switch req := req.(type) {
	case wl.SubsurfaceDestroy:
		r.Destroy()
		return nil

	case wl.SubsurfaceSetPosition:
		sub.position = image.Pt(int(req.X), int(req.Y))
		sub.hasPosition = true
		return nil

	case wl.SubsurfacePlaceAbove:
		return sub.place(r, req.Sibling, true)

	case wl.SubsurfacePlaceBelow:
		return sub.place(r, req.Sibling, false)

	case wl.SubsurfaceSetSync:
		sub.sync = true
		return nil

	case wl.SubsurfaceSetDesync:
		sub.sync = false
		if s, ok := sub.comp.surfaces.Get(sub.surface); ok {
			s.flushDesynced()
		}
		return nil

	default:
		return wl.UnknownRequest(r, req)
	}
}

func (sub *subsurface) place(r *wl.Resource, sibling *wl.Resource, above bool) error {
	s, ok := sub.comp.surfaces.Get(sub.surface)
	if !ok {
		return nil
	}
	parent, ok := s.Parent()
	if !ok {
		return nil
	}
	other, ok := wl.Impl[*Surface](sibling)
	if !ok {
		return nil
	}

	if !parent.restack(s.handle, other.handle, above) {
		return wl.NewProtocolError(r, wl.SubsurfaceErrorBadSurface,
			"%v is not a sibling or the parent of %v", other.resource, s.resource)
	}
	return nil
}

// applyPosition is called when the parent commits.
func (sub *subsurface) applyPosition() {
	if !sub.hasPosition {
		return
	}
	sub.hasPosition = false

	if s, ok := sub.comp.surfaces.Get(sub.surface); ok {
		s.position = sub.position
		s.updateOutputs()
	}
}

// unmap is called when the wl_subsurface is destroyed. The surface
// keeps its role but disappears from its parent.
func (sub *subsurface) unmap() {
	s, ok := sub.comp.surfaces.Get(sub.surface)
	if !ok || (s.sub != sub) {
		return
	}
	s.sub = nil
	s.dropCached()
	if p, ok := s.Parent(); ok {
		p.removeChild(s.handle)
		s.parent = Handle{}
	}
	sub.comp.RequestRepaint()
}

// orphan is called when the parent goes away. The sub-surface stays
// unmapped until it is destroyed.
func (sub *subsurface) orphan() {
	s, ok := sub.comp.surfaces.Get(sub.surface)
	if !ok {
		return
	}
	s.sub = nil
	s.dropCached()
}
