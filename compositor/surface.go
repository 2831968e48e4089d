package compositor

import (
	"image"
	"iter"

	"github.com/Zubnix/trinity/region"
	wl "github.com/Zubnix/trinity/server"
	"github.com/sirupsen/logrus"
	"golang.org/x/exp/slices"
)

// Surface is a wl_surface. Clients change its pending state, and a
// commit publishes the pending state as the committed state, which is
// what gets drawn.
type Surface struct {
	comp     *Compositor
	handle   Handle
	resource *wl.Resource
	log      *logrus.Entry

	pending       SurfaceState
	pendingDirty  bool
	pendingAttach bool
	pendingFrames []*wl.Resource

	state  SurfaceState
	serial uint64
	frames []*wl.Resource

	// A synchronized sub-surface keeps its commits here until its
	// parent commits. hasCached is set by any such commit, even one
	// that changed nothing.
	hasCached    bool
	cached       *SurfaceState
	cachedAttach bool
	cachedFrames []*wl.Resource

	role     Role
	parent   Handle
	position image.Point
	sub      *subsurface

	// stack is the paint order of the surface and its children,
	// bottom to top. It always contains the surface's own handle.
	stack        []Handle
	pendingStack []Handle

	outputs          []*Output
	commitListeners  []func(*Surface, SurfaceState)
	destroyListeners []func(*Surface)
	destroyed        bool
}

// Ref returns a weak reference to the surface.
func (s *Surface) Ref() Handle {
	return s.handle
}

func (s *Surface) Resource() *wl.Resource {
	return s.resource
}

func (s *Surface) Client() *wl.Client {
	return s.resource.Client()
}

func (s *Surface) Alive() bool {
	return !s.destroyed
}

// State returns the committed state.
func (s *Surface) State() SurfaceState {
	return s.state
}

// Pending returns the state that the next commit would publish.
func (s *Surface) Pending() SurfaceState {
	return s.pending
}

// Serial changes every time a commit changes the committed state.
func (s *Surface) Serial() uint64 {
	return s.serial
}

// Size is the committed size in surface-local coordinates.
func (s *Surface) Size() image.Point {
	return s.state.Size()
}

// Mapped reports whether the surface has committed content.
func (s *Surface) Mapped() bool {
	return s.state.Buffer != nil
}

// Parent returns the surface that s is positioned relative to, if
// any.
func (s *Surface) Parent() (*Surface, bool) {
	return s.comp.surfaces.Get(s.parent)
}

// Root returns the top-most ancestor of s, which is s itself if it has
// no parent.
func (s *Surface) Root() *Surface {
	for {
		p, ok := s.Parent()
		if !ok {
			return s
		}
		s = p
	}
}

// Position returns the global position of the surface's top-left
// corner.
func (s *Surface) Position() image.Point {
	if p, ok := s.Parent(); ok {
		return p.Position().Add(s.position)
	}
	return s.position
}

// LocalPosition returns the position relative to the parent, or the
// global position for surfaces without one.
func (s *Surface) LocalPosition() image.Point {
	return s.position
}

// SetPosition moves the surface. p is relative to the parent if the
// surface has one.
func (s *Surface) SetPosition(p image.Point) {
	if p == s.position {
		return
	}
	s.position = p
	s.updateOutputs()
	s.comp.RequestRepaint()
}

// Bounds returns the global rectangle covered by the surface.
func (s *Surface) Bounds() image.Rectangle {
	p := s.Position()
	return image.Rectangle{Min: p, Max: p.Add(s.Size())}
}

// AcceptsInput reports whether the global point p falls inside the
// surface's input region, clipped to the surface.
func (s *Surface) AcceptsInput(p image.Point) bool {
	if !s.Mapped() {
		return false
	}

	local := p.Sub(s.Position())
	clip := image.Rectangle{Max: s.Size()}
	if s.state.Input == nil {
		return local.In(clip)
	}
	return s.state.Input.ContainsClipped(clip, local)
}

// Children yields the surface's children in paint order.
func (s *Surface) Children() iter.Seq[*Surface] {
	return func(yield func(*Surface) bool) {
		for _, h := range s.stack {
			if h == s.handle {
				continue
			}
			child, ok := s.comp.surfaces.Get(h)
			if !ok {
				continue
			}
			if !yield(child) {
				return
			}
		}
	}
}

// OnCommit registers f to be called whenever a commit changes the
// committed state. f receives the state that was replaced.
func (s *Surface) OnCommit(f func(s *Surface, prev SurfaceState)) {
	s.commitListeners = append(s.commitListeners, f)
}

// OnDestroy registers f to be called when the surface is destroyed,
// before it is taken out of the scene.
func (s *Surface) OnDestroy(f func(*Surface)) {
	if s.destroyed {
		return
	}
	s.destroyListeners = append(s.destroyListeners, f)
}

func (s *Surface) Handle(r *wl.Resource, req wl.Request) error {
	switch req := req.(type) {
	case wl.SurfaceDestroy:
		r.Destroy()
		return nil

	case wl.SurfaceAttach:
		buf, _ := wl.Impl[*Buffer](req.Buffer)
		s.Attach(buf, image.Pt(int(req.X), int(req.Y)))
		return nil

	case wl.SurfaceDamage:
		s.Damage(rect(req.X, req.Y, req.Width, req.Height))
		return nil

	case wl.SurfaceFrame:
		cb, err := r.Client().NewResource(wl.CallbackInterface, 1, req.Callback, nil)
		if err != nil {
			return err
		}
		s.Frame(cb)
		return nil

	case wl.SurfaceSetOpaqueRegion:
		s.SetOpaqueRegion(regionOf(req.Region))
		return nil

	case wl.SurfaceSetInputRegion:
		s.SetInputRegion(regionOf(req.Region))
		return nil

	case wl.SurfaceCommit:
		s.Commit()
		return nil

	case wl.SurfaceSetBufferTransform:
		t := Transform(req.Transform)
		if !t.Valid() {
			return wl.NewProtocolError(r, wl.SurfaceErrorInvalidTransform, "invalid buffer transform %v", req.Transform)
		}
		s.SetBufferTransform(t)
		return nil

	case wl.SurfaceSetBufferScale:
		if req.Scale < 1 {
			return wl.NewProtocolError(r, wl.SurfaceErrorInvalidScale, "invalid buffer scale %v", req.Scale)
		}
		s.SetBufferScale(req.Scale)
		return nil

	case wl.SurfaceDamageBuffer:
		s.DamageBuffer(rect(req.X, req.Y, req.Width, req.Height))
		return nil

	default:
		return wl.UnknownRequest(r, req)
	}
}

// Attach sets the pending buffer. A nil buffer unmaps the surface on
// the next commit. offset moves the surface relative to its current
// position.
func (s *Surface) Attach(buf *Buffer, offset image.Point) {
	s.pending.Buffer = buf
	s.pending.Offset = offset
	s.pendingAttach = true
	s.pendingDirty = true
}

// Damage adds rect, in surface coordinates, to the pending damage.
func (s *Surface) Damage(rect image.Rectangle) {
	s.pending.Damage.Add(rect)
	s.pendingDirty = true
}

// DamageBuffer adds rect, in buffer coordinates, to the pending
// buffer damage.
func (s *Surface) DamageBuffer(rect image.Rectangle) {
	s.pending.BufferDamage.Add(rect)
	s.pendingDirty = true
}

// SetOpaqueRegion sets the pending opaque region. nil means empty.
func (s *Surface) SetOpaqueRegion(r *region.Region) {
	if r == nil {
		r = new(region.Region)
	}
	s.pending.Opaque = r
	s.pendingDirty = true
}

// SetInputRegion sets the pending input region. nil means that the
// whole surface accepts input.
func (s *Surface) SetInputRegion(r *region.Region) {
	s.pending.Input = r
	s.pendingDirty = true
}

func (s *Surface) SetBufferTransform(t Transform) {
	s.pending.Transform = t
	s.pendingDirty = true
}

func (s *Surface) SetBufferScale(scale int32) {
	s.pending.Scale = scale
	s.pendingDirty = true
}

// Frame queues cb to be signalled when the content of the next commit
// has been presented.
func (s *Surface) Frame(cb *wl.Resource) {
	s.pendingFrames = append(s.pendingFrames, cb)
}

// Commit publishes the pending state. Synchronized sub-surfaces only
// cache it until their parent commits.
func (s *Surface) Commit() {
	if s.destroyed {
		return
	}

	if s.Synchronized() {
		s.cacheState()
		return
	}
	if s.hasCached {
		// Left over from before the surface became desynchronized. It
		// is older than pending and must not be applied after it.
		s.cacheState()
		s.flushCached()
		return
	}

	st, changed := s.takePending()
	attached := s.pendingAttach
	s.pendingAttach = false
	s.apply(st, changed, attached, s.takeFrames())
}

// Synchronized reports whether commits to s wait for its parent. This
// is the case if s or any of its sub-surface ancestors is in
// synchronized mode.
func (s *Surface) Synchronized() bool {
	for cur := s; cur.sub != nil; {
		if cur.sub.sync {
			return true
		}
		p, ok := cur.Parent()
		if !ok {
			return false
		}
		cur = p
	}
	return false
}

// takePending returns the pending state and starts a fresh pending
// state from it with empty damage. If nothing is pending it returns
// the committed state unchanged.
func (s *Surface) takePending() (SurfaceState, bool) {
	if !s.pendingDirty {
		return s.state, false
	}

	st := s.pending
	s.pending = st.clone()
	s.pending.Damage = new(region.Region)
	s.pending.BufferDamage = new(region.Region)
	s.pending.Offset = image.Point{}
	s.pendingDirty = false
	return st, true
}

func (s *Surface) takeFrames() []*wl.Resource {
	frames := s.pendingFrames
	s.pendingFrames = nil
	return frames
}

func (s *Surface) cacheState() {
	st, changed := s.takePending()
	if changed {
		if s.cached != nil {
			st = s.cached.merge(st)
		}
		s.cached = &st
	}
	s.hasCached = true
	s.cachedAttach = s.cachedAttach || s.pendingAttach
	s.pendingAttach = false
	s.cachedFrames = append(s.cachedFrames, s.takeFrames()...)
}

// flushCached applies state cached by a synchronized commit.
func (s *Surface) flushCached() {
	if !s.hasCached {
		return
	}

	var st SurfaceState
	changed := s.cached != nil
	if changed {
		st = *s.cached
	}
	attached, frames := s.cachedAttach, s.cachedFrames
	s.hasCached, s.cached, s.cachedAttach, s.cachedFrames = false, nil, false, nil

	s.apply(st, changed, attached, frames)
}

// dropCached discards cached state without applying it.
func (s *Surface) dropCached() {
	for _, cb := range s.cachedFrames {
		cb.Destroy()
	}
	s.hasCached, s.cached, s.cachedAttach, s.cachedFrames = false, nil, false, nil
}

// flushDesynced applies the cached state of s and of every descendant
// that is no longer synchronized, parents first.
func (s *Surface) flushDesynced() {
	if s.Synchronized() {
		return
	}
	s.flushCached()
	for child := range s.Children() {
		child.flushDesynced()
	}
}

func (s *Surface) apply(st SurfaceState, changed, attached bool, frames []*wl.Resource) {
	prev := s.state
	if changed {
		s.state = st
		s.serial++
		s.position = s.position.Add(st.Offset)
		if attached && (st.Buffer != nil) {
			st.Buffer.busy = true
		}
	}
	s.frames = append(s.frames, frames...)

	if !slices.Equal(s.stack, s.pendingStack) {
		s.stack = slices.Clone(s.pendingStack)
		changed = true
	}
	for child := range s.Children() {
		if child.sub == nil {
			continue
		}
		child.sub.applyPosition()
		if child.Synchronized() {
			child.flushCached()
		}
	}

	if changed {
		for _, f := range s.commitListeners {
			f(s, prev)
		}
		s.updateOutputs()
	}
	s.comp.RequestRepaint()
}

// frameDone signals and destroys the committed frame callbacks.
func (s *Surface) frameDone(ms uint32) {
	frames := s.frames
	s.frames = nil
	for _, cb := range frames {
		wl.CallbackDone(cb, ms)
		cb.Destroy()
	}
}

// addChild places child on top of the surface's children.
func (s *Surface) addChild(child *Surface) {
	child.parent = s.handle
	s.stack = append(s.stack, child.handle)
	s.pendingStack = append(s.pendingStack, child.handle)
}

func (s *Surface) removeChild(h Handle) {
	if i := slices.Index(s.stack, h); i >= 0 {
		s.stack = slices.Delete(s.stack, i, i+1)
	}
	if i := slices.Index(s.pendingStack, h); i >= 0 {
		s.pendingStack = slices.Delete(s.pendingStack, i, i+1)
	}
}

// detach takes s out of its parent's stack. Its position becomes
// global.
func (s *Surface) detach() {
	p, ok := s.Parent()
	if !ok {
		s.parent = Handle{}
		return
	}
	s.position = s.Position()
	p.removeChild(s.handle)
	s.parent = Handle{}
	s.updateOutputs()
	s.comp.RequestRepaint()
}

// Reparent makes s a child of parent, stacked above parent's other
// children, at pos relative to parent.
func (s *Surface) Reparent(parent *Surface, pos image.Point) {
	s.Detach()
	parent.addChild(s)
	s.position = pos
	s.updateOutputs()
	s.comp.RequestRepaint()
}

// Detach takes s out of its parent. It keeps its global position.
func (s *Surface) Detach() {
	s.detach()
}

// restack moves child directly above or below sibling in the pending
// order. sibling may be s itself. It reports false if either is not
// part of the stack.
func (s *Surface) restack(child, sibling Handle, above bool) bool {
	if (child == sibling) || (child == s.handle) {
		return false
	}
	i := slices.Index(s.pendingStack, child)
	if (i < 0) || !slices.Contains(s.pendingStack, sibling) {
		return false
	}

	stack := slices.Delete(s.pendingStack, i, i+1)
	j := slices.Index(stack, sibling)
	if above {
		j++
	}
	s.pendingStack = slices.Insert(stack, j, child)
	return true
}

// isAncestorOf reports whether s is o or one of o's ancestors.
func (s *Surface) isAncestorOf(o *Surface) bool {
	for {
		if o == s {
			return true
		}
		p, ok := o.Parent()
		if !ok {
			return false
		}
		o = p
	}
}

// updateOutputs sends enter and leave events as the surface and its
// children start or stop overlapping outputs.
func (s *Surface) updateOutputs() {
	bounds := s.Bounds()
	for _, o := range s.comp.outputs {
		i := slices.Index(s.outputs, o)
		on := s.Mapped() && bounds.Overlaps(o.Bounds())
		switch {
		case on && (i < 0):
			s.outputs = append(s.outputs, o)
			for _, r := range o.resources.ForClient(s.Client()) {
				wl.SurfaceEnter(s.resource, r)
			}
		case !on && (i >= 0):
			s.outputs = slices.Delete(s.outputs, i, i+1)
			for _, r := range o.resources.ForClient(s.Client()) {
				wl.SurfaceLeave(s.resource, r)
			}
		}
	}

	for child := range s.Children() {
		child.updateOutputs()
	}
}

// Outputs returns the outputs that the surface is currently on.
func (s *Surface) Outputs() []*Output {
	return s.outputs
}

func (s *Surface) destroy() {
	if s.destroyed {
		return
	}
	s.destroyed = true
	s.log.Debug("destroyed")

	listeners := s.destroyListeners
	s.destroyListeners = nil
	for _, f := range listeners {
		f(s)
	}

	if p, ok := s.Parent(); ok {
		p.removeChild(s.handle)
	}
	for _, h := range slices.Clone(s.pendingStack) {
		child, ok := s.comp.surfaces.Get(h)
		if !ok || (child == s) {
			continue
		}
		child.detach()
		if child.sub != nil {
			child.sub.orphan()
		}
	}
	s.comp.scene.Remove(s)

	for _, frames := range [][]*wl.Resource{s.pendingFrames, s.cachedFrames, s.frames} {
		for _, cb := range frames {
			cb.Destroy()
		}
	}
	s.pendingFrames, s.cachedFrames, s.frames = nil, nil, nil

	s.comp.destroyed(s)
	s.comp.RequestRepaint()
}
