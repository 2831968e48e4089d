package compositor

import (
	"errors"
	"image"
	"io"
	"slices"
	"testing"

	"github.com/Zubnix/trinity/region"
	wl "github.com/Zubnix/trinity/server"
	"github.com/Zubnix/trinity/shm"
	"github.com/sirupsen/logrus"
)

func testCompositor(t *testing.T) (*Compositor, *wl.Client) {
	t.Helper()

	log := logrus.New()
	log.SetOutput(io.Discard)

	server := wl.NewServer(nil, nil, logrus.NewEntry(log))
	comp := New(server, logrus.NewEntry(log))
	return comp, server.Connect(nil)
}

func testSurface(t *testing.T, comp *Compositor, client *wl.Client) *Surface {
	t.Helper()

	s, err := comp.CreateSurface(client, wl.CompositorVersion, 0)
	if err != nil {
		t.Fatal(err)
	}
	return s
}

func testBuffer(t *testing.T, client *wl.Client, w, h int) *Buffer {
	t.Helper()

	size := w * h * 4
	file, err := shm.Create("test-buffer", size)
	if err != nil {
		t.Fatal(err)
	}
	shmResource, err := client.NewResource(wl.ShmInterface, 1, 0, nil)
	if err != nil {
		t.Fatal(err)
	}
	pool, err := CreatePool(shmResource, 0, file, int32(size))
	if err != nil {
		t.Fatal(err)
	}
	buf, err := pool.CreateBuffer(0, 0, int32(w), int32(h), int32(w*4), wl.ShmFormatARGB8888)
	if err != nil {
		t.Fatal(err)
	}
	return buf
}

func mapSurface(t *testing.T, s *Surface, w, h int) *Buffer {
	t.Helper()

	buf := testBuffer(t, s.Client(), w, h)
	s.Attach(buf, image.Point{})
	s.Damage(image.Rect(0, 0, w, h))
	s.Commit()
	return buf
}

func paintOrder(comp *Compositor) []*Surface {
	var order []*Surface
	for s := range comp.Scene().Surfaces() {
		order = append(order, s)
	}
	return order
}

func TestRoleExclusive(t *testing.T) {
	comp, client := testCompositor(t)
	s := testSurface(t, comp, client)

	if err := s.SetRole(ShellTopLevel{}); err != nil {
		t.Fatalf("first role: %v", err)
	}
	err := s.SetRole(SubSurface{})
	if !errors.Is(err, ErrRoleConflict) {
		t.Fatalf("second role: got %v, want ErrRoleConflict", err)
	}
	if _, ok := s.Role().(ShellTopLevel); !ok {
		t.Fatalf("role changed to %v", RoleName(s.Role()))
	}
}

func TestShellModeSwitch(t *testing.T) {
	comp, client := testCompositor(t)
	s := testSurface(t, comp, client)

	if err := s.SetShellMode(ShellTopLevel{}); !errors.Is(err, ErrRoleConflict) {
		t.Fatalf("mode switch without shell role: %v", err)
	}
	s.SetRole(ShellTopLevel{})
	if err := s.SetShellMode(ShellTransient{X: 3}); err != nil {
		t.Fatal(err)
	}
	if err := s.SetShellMode(SubSurface{}); !errors.Is(err, ErrRoleConflict) {
		t.Fatalf("switch to sub-surface: %v", err)
	}
}

func TestSceneOrder(t *testing.T) {
	comp, client := testCompositor(t)
	s1 := testSurface(t, comp, client)
	s2 := testSurface(t, comp, client)
	s3 := testSurface(t, comp, client)

	sc := comp.Scene()
	sc.Add(s1)
	sc.Add(s2)
	sc.Add(s3)
	if got := paintOrder(comp); !slices.Equal(got, []*Surface{s1, s2, s3}) {
		t.Fatalf("order after adds: %v", got)
	}

	sc.Add(s1)
	if got := paintOrder(comp); !slices.Equal(got, []*Surface{s2, s3, s1}) {
		t.Fatalf("order after re-add: %v", got)
	}

	sc.Remove(s3)
	if got := paintOrder(comp); !slices.Equal(got, []*Surface{s2, s1}) {
		t.Fatalf("order after remove: %v", got)
	}
}

func TestCommitIdempotent(t *testing.T) {
	comp, client := testCompositor(t)
	s := testSurface(t, comp, client)

	mapSurface(t, s, 10, 10)
	first, serial := s.State(), s.Serial()

	s.Commit()
	if s.State() != first {
		t.Fatal("second commit changed committed state")
	}
	if s.Serial() != serial {
		t.Fatal("second commit bumped the state serial")
	}
}

func TestDamageIsNotCarriedForward(t *testing.T) {
	comp, client := testCompositor(t)
	s := testSurface(t, comp, client)

	s.Damage(image.Rect(0, 0, 4, 4))
	s.Damage(image.Rect(4, 0, 8, 4))
	s.Commit()
	if got := s.State().Damage.Area(); got != 32 {
		t.Fatalf("committed damage area %v, want 32", got)
	}
	if !s.Pending().Damage.Empty() {
		t.Fatal("pending damage not cleared by commit")
	}

	s.Damage(image.Rect(0, 0, 1, 1))
	s.Commit()
	if got := s.State().Damage.Area(); got != 1 {
		t.Fatalf("damage carried forward: area %v", got)
	}
}

func TestAttachNullUnmaps(t *testing.T) {
	comp, client := testCompositor(t)
	s := testSurface(t, comp, client)

	mapSurface(t, s, 4, 4)
	if !s.Mapped() {
		t.Fatal("surface not mapped")
	}
	s.Attach(nil, image.Point{})
	s.Commit()
	if s.Mapped() {
		t.Fatal("surface still mapped after null attach")
	}
}

func TestSyncSubsurfaceCascade(t *testing.T) {
	comp, client := testCompositor(t)
	parent := testSurface(t, comp, client)
	child := testSurface(t, comp, client)
	grandchild := testSurface(t, comp, client)

	if _, err := comp.NewSubsurface(client, 0, child, parent); err != nil {
		t.Fatal(err)
	}
	if _, err := comp.NewSubsurface(client, 0, grandchild, child); err != nil {
		t.Fatal(err)
	}

	mapSurface(t, grandchild, 2, 2)
	if grandchild.Mapped() {
		t.Fatal("synchronized commit applied immediately")
	}

	child.Commit()
	if grandchild.Mapped() {
		t.Fatal("grandchild applied on its parent's cached commit")
	}

	parent.Commit()
	if !grandchild.Mapped() {
		t.Fatal("grandchild not applied when the root committed")
	}
}

func TestDesyncFlushesCache(t *testing.T) {
	comp, client := testCompositor(t)
	parent := testSurface(t, comp, client)
	child := testSurface(t, comp, client)

	r, err := comp.NewSubsurface(client, 0, child, parent)
	if err != nil {
		t.Fatal(err)
	}
	mapSurface(t, child, 2, 2)
	if child.Mapped() {
		t.Fatal("synchronized commit applied immediately")
	}

	if err := r.Handler().Handle(r, wl.SubsurfaceSetDesync{}); err != nil {
		t.Fatal(err)
	}
	if !child.Mapped() {
		t.Fatal("set_desync did not apply cached state")
	}

	child.Attach(nil, image.Point{})
	child.Commit()
	if child.Mapped() {
		t.Fatal("desynchronized commit was cached")
	}
}

func TestDesyncKeepsLatestCommit(t *testing.T) {
	comp, client := testCompositor(t)
	root := testSurface(t, comp, client)
	mid := testSurface(t, comp, client)
	leaf := testSurface(t, comp, client)

	rmid, err := comp.NewSubsurface(client, 0, mid, root)
	if err != nil {
		t.Fatal(err)
	}
	rleaf, err := comp.NewSubsurface(client, 0, leaf, mid)
	if err != nil {
		t.Fatal(err)
	}
	if err := rleaf.Handler().Handle(rleaf, wl.SubsurfaceSetDesync{}); err != nil {
		t.Fatal(err)
	}

	old := mapSurface(t, leaf, 2, 2)
	if leaf.Mapped() {
		t.Fatal("commit under a synchronized parent applied immediately")
	}

	if err := rmid.Handler().Handle(rmid, wl.SubsurfaceSetDesync{}); err != nil {
		t.Fatal(err)
	}
	if leaf.State().Buffer != old {
		t.Fatal("set_desync on the parent did not apply the cached commit")
	}

	latest := mapSurface(t, leaf, 2, 2)
	if leaf.State().Buffer != latest {
		t.Fatal("desynchronized commit not applied")
	}

	if err := rmid.Handler().Handle(rmid, wl.SubsurfaceSetSync{}); err != nil {
		t.Fatal(err)
	}
	mid.Commit()
	root.Commit()
	if leaf.State().Buffer != latest {
		t.Fatal("older cached state replaced a later commit")
	}
}

func TestDesyncCommitMergesCache(t *testing.T) {
	comp, client := testCompositor(t)
	root := testSurface(t, comp, client)
	mid := testSurface(t, comp, client)
	leaf := testSurface(t, comp, client)

	rmid, _ := comp.NewSubsurface(client, 0, mid, root)
	rleaf, _ := comp.NewSubsurface(client, 0, leaf, mid)
	rleaf.Handler().Handle(rleaf, wl.SubsurfaceSetDesync{})

	mapSurface(t, leaf, 2, 2)

	// The parent stops being synchronized without going through
	// set_desync on it.
	rmid.Destroy()
	if leaf.Mapped() {
		t.Fatal("cached state applied without a commit")
	}

	latest := testBuffer(t, client, 4, 4)
	leaf.Attach(latest, image.Point{})
	leaf.Damage(image.Rect(3, 3, 4, 4))
	leaf.Commit()
	if leaf.State().Buffer != latest {
		t.Fatal("cached state applied over the new commit")
	}
	if !leaf.State().Damage.Contains(image.Pt(0, 0)) {
		t.Fatal("damage from the cached commit lost")
	}
}

func TestSubsurfaceDestroyUnmaps(t *testing.T) {
	comp, client := testCompositor(t)
	parent := testSurface(t, comp, client)
	child := testSurface(t, comp, client)

	comp.Scene().Add(parent)
	mapSurface(t, parent, 8, 8)
	r, err := comp.NewSubsurface(client, 0, child, parent)
	if err != nil {
		t.Fatal(err)
	}
	parent.Commit()
	mapSurface(t, child, 2, 2)
	parent.Commit()

	cb, err := client.NewResource(wl.CallbackInterface, 1, 0, nil)
	if err != nil {
		t.Fatal(err)
	}
	child.Frame(cb)
	child.Commit()
	if !cb.Alive() {
		t.Fatal("cached frame callback gone before destroy")
	}

	r.Destroy()
	if cb.Alive() {
		t.Fatal("cached frame callback outlived the sub-surface")
	}
	if slices.Contains(paintOrder(comp), child) {
		t.Fatal("destroyed sub-surface still painted")
	}
	if _, ok := child.Parent(); ok {
		t.Fatal("destroyed sub-surface still has a parent")
	}

	parent.Commit()
	if slices.Contains(paintOrder(comp), child) {
		t.Fatal("parent commit brought the sub-surface back")
	}
	if slices.Contains(slices.Collect(parent.Children()), child) {
		t.Fatal("sub-surface still among the parent's children")
	}
}

func TestSubsurfaceBadParent(t *testing.T) {
	comp, client := testCompositor(t)
	s := testSurface(t, comp, client)
	child := testSurface(t, comp, client)

	sc, err := client.NewResource(wl.SubcompositorInterface, 1, 0, subcompositor{comp: comp})
	if err != nil {
		t.Fatal(err)
	}

	var perr *wl.ProtocolError
	err = sc.Handler().Handle(sc, wl.SubcompositorGetSubsurface{Surface: s.Resource(), Parent: s.Resource()})
	if !errors.As(err, &perr) || (perr.Code != wl.SubcompositorErrorBadSurface) {
		t.Fatalf("surface as its own parent: %v", err)
	}

	if _, err := comp.NewSubsurface(client, 0, child, s); err != nil {
		t.Fatal(err)
	}
	err = sc.Handler().Handle(sc, wl.SubcompositorGetSubsurface{Surface: s.Resource(), Parent: child.Resource()})
	if !errors.As(err, &perr) || (perr.Code != wl.SubcompositorErrorBadSurface) {
		t.Fatalf("parent is a descendant: %v", err)
	}
}

func TestPlaceBelowAppliesOnParentCommit(t *testing.T) {
	comp, client := testCompositor(t)
	parent := testSurface(t, comp, client)
	a := testSurface(t, comp, client)
	b := testSurface(t, comp, client)

	comp.Scene().Add(parent)
	mapSurface(t, parent, 8, 8)
	comp.NewSubsurface(client, 0, a, parent)
	rb, _ := comp.NewSubsurface(client, 0, b, parent)

	if got := paintOrder(comp); !slices.Equal(got, []*Surface{parent, a, b}) {
		t.Fatalf("initial order: %v", got)
	}

	err := rb.Handler().Handle(rb, wl.SubsurfacePlaceBelow{Sibling: parent.Resource()})
	if err != nil {
		t.Fatal(err)
	}
	if got := paintOrder(comp); !slices.Equal(got, []*Surface{parent, a, b}) {
		t.Fatalf("order changed before parent commit: %v", got)
	}

	parent.Commit()
	if got := paintOrder(comp); !slices.Equal(got, []*Surface{b, parent, a}) {
		t.Fatalf("order after parent commit: %v", got)
	}
}

func TestSubsurfacePositionIsRelative(t *testing.T) {
	comp, client := testCompositor(t)
	parent := testSurface(t, comp, client)
	child := testSurface(t, comp, client)

	parent.SetPosition(image.Pt(100, 100))
	r, _ := comp.NewSubsurface(client, 0, child, parent)
	r.Handler().Handle(r, wl.SubsurfaceSetPosition{X: 5, Y: 6})
	if child.Position() != image.Pt(100, 100) {
		t.Fatalf("position applied before parent commit: %v", child.Position())
	}

	parent.Commit()
	if child.Position() != image.Pt(105, 106) {
		t.Fatalf("child position %v", child.Position())
	}
}

func TestSurfaceDestroy(t *testing.T) {
	comp, client := testCompositor(t)
	parent := testSurface(t, comp, client)
	child := testSurface(t, comp, client)
	comp.Scene().Add(parent)
	comp.NewSubsurface(client, 0, child, parent)

	var destroyed []*Surface
	comp.OnSurfaceDestroy(func(s *Surface) { destroyed = append(destroyed, s) })

	ref := parent.Ref()
	parent.Resource().Destroy()

	if !slices.Equal(destroyed, []*Surface{parent}) {
		t.Fatalf("destroy listeners saw %v", destroyed)
	}
	if _, ok := comp.Surface(ref); ok {
		t.Fatal("handle still resolves after destroy")
	}
	if comp.Scene().Len() != 0 {
		t.Fatal("destroyed surface still in scene")
	}
	if _, ok := child.Parent(); ok {
		t.Fatal("child still attached to destroyed parent")
	}
	if child.Synchronized() {
		t.Fatal("orphaned child still synchronized")
	}
}

func TestInputRegion(t *testing.T) {
	comp, client := testCompositor(t)
	s := testSurface(t, comp, client)
	comp.Scene().Add(s)

	s.SetInputRegion(region.New(image.Rect(0, 0, 5, 5)))
	mapSurface(t, s, 10, 10)

	if got, ok := comp.Scene().SurfaceAt(image.Pt(2, 2)); !ok || (got != s) {
		t.Fatal("point inside input region missed")
	}
	if _, ok := comp.Scene().SurfaceAt(image.Pt(7, 7)); ok {
		t.Fatal("point outside input region hit")
	}

	s.SetInputRegion(nil)
	s.Commit()
	if _, ok := comp.Scene().SurfaceAt(image.Pt(9, 9)); !ok {
		t.Fatal("infinite input region missed a point on the surface")
	}
	if _, ok := comp.Scene().SurfaceAt(image.Pt(10, 9)); ok {
		t.Fatal("point past the surface edge hit")
	}
}

func TestFrameCallbacks(t *testing.T) {
	comp, client := testCompositor(t)
	s := testSurface(t, comp, client)

	cb, err := client.NewResource(wl.CallbackInterface, 1, 0, nil)
	if err != nil {
		t.Fatal(err)
	}
	s.Frame(cb)

	comp.SendFrameDone([]Handle{s.Ref()}, 7)
	if !cb.Alive() {
		t.Fatal("uncommitted frame callback fired")
	}

	s.Commit()
	comp.SendFrameDone([]Handle{s.Ref()}, 7)
	if cb.Alive() {
		t.Fatal("frame callback not destroyed after done")
	}

	var done bool
	for _, msg := range client.Outgoing() {
		if msg.Method == "done" && slices.Equal(msg.Args, []any{uint32(7)}) {
			done = true
		}
	}
	if !done {
		t.Fatal("no done event")
	}
}

func TestBufferReleasedOncePerCommit(t *testing.T) {
	comp, client := testCompositor(t)
	s := testSurface(t, comp, client)
	buf := mapSurface(t, s, 2, 2)

	if !buf.Busy() {
		t.Fatal("committed buffer not busy")
	}
	buf.Release()
	buf.Release()

	var n int
	for _, msg := range client.Outgoing() {
		if msg.Method == "release" {
			n++
		}
	}
	if n != 1 {
		t.Fatalf("%v release events", n)
	}
}

func TestBufferValidation(t *testing.T) {
	_, client := testCompositor(t)

	file, err := shm.Create("test-pool", 64)
	if err != nil {
		t.Fatal(err)
	}
	shmResource, _ := client.NewResource(wl.ShmInterface, 1, 0, nil)
	pool, err := CreatePool(shmResource, 0, file, 64)
	if err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name                          string
		offset, width, height, stride int32
		format                        uint32
		code                          uint32
	}{
		{"format", 0, 2, 2, 8, 0x34325258, wl.ShmErrorInvalidFormat},
		{"stride", 0, 4, 2, 8, wl.ShmFormatARGB8888, wl.ShmErrorInvalidStride},
		{"overflow", 32, 4, 4, 16, wl.ShmFormatARGB8888, wl.ShmErrorInvalidStride},
		{"negative", -4, 1, 1, 4, wl.ShmFormatXRGB8888, wl.ShmErrorInvalidStride},
		{"wide", 0, 1 << 30, 1, 4, wl.ShmFormatARGB8888, wl.ShmErrorInvalidStride},
		{"tall", 0, 1, 1 << 30, 1 << 3, wl.ShmFormatARGB8888, wl.ShmErrorInvalidStride},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			_, err := pool.CreateBuffer(0, test.offset, test.width, test.height, test.stride, test.format)
			var perr *wl.ProtocolError
			if !errors.As(err, &perr) || (perr.Code != test.code) {
				t.Fatalf("got %v, want error code %v", err, test.code)
			}
		})
	}

	if _, err := pool.CreateBuffer(0, 0, 4, 4, 16, wl.ShmFormatXRGB8888); err != nil {
		t.Fatalf("valid buffer: %v", err)
	}
	if err := pool.Resize(32); err == nil {
		t.Fatal("pool shrank")
	}
	if err := pool.Resize(128); err != nil || pool.Size() != 128 {
		t.Fatalf("grow pool: %v, size %v", err, pool.Size())
	}
}

func TestInvalidScaleAndTransform(t *testing.T) {
	comp, client := testCompositor(t)
	s := testSurface(t, comp, client)

	var perr *wl.ProtocolError
	err := s.Handle(s.Resource(), wl.SurfaceSetBufferScale{Scale: 0})
	if !errors.As(err, &perr) || (perr.Code != wl.SurfaceErrorInvalidScale) {
		t.Fatalf("scale 0: %v", err)
	}
	err = s.Handle(s.Resource(), wl.SurfaceSetBufferTransform{Transform: 8})
	if !errors.As(err, &perr) || (perr.Code != wl.SurfaceErrorInvalidTransform) {
		t.Fatalf("transform 8: %v", err)
	}
}

func TestScaledTransformedSize(t *testing.T) {
	comp, client := testCompositor(t)
	s := testSurface(t, comp, client)

	s.SetBufferScale(2)
	s.SetBufferTransform(Transform90)
	mapSurface(t, s, 40, 20)
	if s.Size() != image.Pt(10, 20) {
		t.Fatalf("size %v", s.Size())
	}
}

func TestOutputEnterAndBind(t *testing.T) {
	comp, client := testCompositor(t)
	o := comp.AddOutput(Geometry{Model: "test"}, Mode{Size: image.Pt(100, 100), Refresh: 60000}, 1)

	for range 2 {
		before := len(client.Outgoing())
		if err := o.bind(client, wl.OutputVersion, 0); err != nil {
			t.Fatal(err)
		}
		var got []string
		for _, msg := range client.Outgoing()[before:] {
			got = append(got, msg.Method)
		}
		if !slices.Equal(got, []string{"geometry", "mode", "scale", "done"}) {
			t.Fatalf("bind sent %v", got)
		}
	}

	s := testSurface(t, comp, client)
	comp.Scene().Add(s)
	before := len(client.Outgoing())
	mapSurface(t, s, 10, 10)
	var enters int
	for _, msg := range client.Outgoing()[before:] {
		if msg.Method == "enter" {
			enters++
		}
	}
	if enters != 2 {
		t.Fatalf("%v enter events, want one per output resource", enters)
	}

	before = len(client.Outgoing())
	s.SetPosition(image.Pt(500, 500))
	var leaves int
	for _, msg := range client.Outgoing()[before:] {
		if msg.Method == "leave" {
			leaves++
		}
	}
	if leaves != 2 {
		t.Fatalf("%v leave events", leaves)
	}
}
