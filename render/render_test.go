package render

import (
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"slices"
	"testing"

	"github.com/Zubnix/trinity/compositor"
	"github.com/Zubnix/trinity/internal/wltest"
	wl "github.com/Zubnix/trinity/server"
)

type fixture struct {
	comp   *compositor.Compositor
	client *wl.Client
	output *compositor.Output
	engine *Engine
	dir    string
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	comp, client := wltest.Compositor(t)
	output := comp.AddOutput(
		compositor.Geometry{Make: "trinity", Model: "test"},
		compositor.Mode{Size: image.Pt(200, 150), Refresh: 60000},
		1,
	)
	dir := t.TempDir()
	engine := NewEngine(comp, output, &Remote{Dir: dir}, wltest.Log())
	return &fixture{comp: comp, client: client, output: output, engine: engine, dir: dir}
}

func (f *fixture) window(t *testing.T, p image.Point, w, h int) *compositor.Surface {
	t.Helper()

	s := wltest.Surface(t, f.comp, f.client)
	s.SetPosition(p)
	wltest.Map(t, s, w, h)
	f.comp.Scene().Add(s)
	return s
}

func (f *fixture) render(t *testing.T) []compositor.Handle {
	t.Helper()

	drawn, err := f.engine.Render()
	if err != nil {
		t.Fatal(err)
	}
	return drawn
}

func TestTextureCache(t *testing.T) {
	f := newFixture(t)
	s := f.window(t, image.Pt(0, 0), 100, 100)

	f.render(t)
	first, ok := f.engine.Texture(s.Ref())
	if !ok || first.Size() != image.Pt(100, 100) {
		t.Fatalf("no 100x100 texture after first frame")
	}

	wltest.Map(t, s, 100, 100)
	f.render(t)
	second, ok := f.engine.Texture(s.Ref())
	if !ok || second != first {
		t.Fatal("same-sized buffer replaced the texture")
	}

	wltest.Map(t, s, 50, 50)
	f.render(t)
	third, ok := f.engine.Texture(s.Ref())
	if !ok || third == first {
		t.Fatal("resized buffer reused the texture")
	}
	if third.Size() != image.Pt(50, 50) {
		t.Fatalf("texture size %v", third.Size())
	}
	if first.Image() != nil {
		t.Fatal("old texture not released")
	}
}

func TestTexturePurgedWithSurface(t *testing.T) {
	f := newFixture(t)
	s := f.window(t, image.Pt(0, 0), 10, 10)
	h := s.Ref()

	f.render(t)
	s.Resource().Destroy()
	if _, ok := f.engine.Texture(h); ok {
		t.Fatal("texture outlived its surface")
	}
}

func TestBufferReleasedAfterUpload(t *testing.T) {
	f := newFixture(t)
	s := f.window(t, image.Pt(0, 0), 10, 10)
	buf := s.State().Buffer

	if !buf.Busy() {
		t.Fatal("committed buffer not busy")
	}
	f.render(t)
	if buf.Busy() {
		t.Fatal("buffer not released after upload")
	}

	f.comp.RequestRepaint()
	f.render(t)
	var releases int
	for _, msg := range wltest.Events(f.client, "release") {
		if msg.Sender() == buf.Resource() {
			releases++
		}
	}
	if releases != 1 {
		t.Fatalf("%v releases", releases)
	}
}

func TestSkipsBrokenSurface(t *testing.T) {
	f := newFixture(t)
	good := f.window(t, image.Pt(0, 0), 10, 10)

	bad := wltest.Surface(t, f.comp, f.client)
	buf := wltest.Buffer(t, f.client, 10, 10, wl.ShmFormatARGB8888, 0xFFFFFFFF)
	wltest.Attach(bad, buf)
	f.comp.Scene().Add(bad)
	buf.Resource().Destroy()

	drawn := f.render(t)
	if !slices.Equal(drawn, []compositor.Handle{good.Ref()}) {
		t.Fatalf("drawn %v", drawn)
	}
	if _, err := os.Stat(filepath.Join(f.dir, "frame.png")); err != nil {
		t.Fatalf("frame not presented: %v", err)
	}
}

func TestKeepsTextureOfDestroyedBuffer(t *testing.T) {
	f := newFixture(t)
	s := f.window(t, image.Pt(0, 0), 10, 10)

	f.render(t)
	s.State().Buffer.Resource().Destroy()
	drawn := f.render(t)
	if !slices.Contains(drawn, s.Ref()) {
		t.Fatal("surface with destroyed buffer not drawn")
	}
}

func TestProjectionFollowsMode(t *testing.T) {
	f := newFixture(t)

	f.render(t)
	f.render(t)
	if f.engine.projections != 1 {
		t.Fatalf("%v projections for an unchanged mode", f.engine.projections)
	}

	f.output.SetMode(compositor.Mode{Size: image.Pt(320, 240), Refresh: 60000})
	f.render(t)
	if f.engine.projections != 2 {
		t.Fatalf("%v projections after mode change", f.engine.projections)
	}

	file, err := os.Open(filepath.Join(f.dir, "frame.png"))
	if err != nil {
		t.Fatal(err)
	}
	defer file.Close()
	img, err := png.Decode(file)
	if err != nil {
		t.Fatal(err)
	}
	if size := img.Bounds().Size(); size != image.Pt(320, 240) {
		t.Fatalf("frame size %v", size)
	}
}

func TestOffscreenSurfaceNotDrawn(t *testing.T) {
	f := newFixture(t)
	on := f.window(t, image.Pt(10, 10), 10, 10)
	f.window(t, image.Pt(1000, 1000), 10, 10)

	drawn := f.render(t)
	if !slices.Equal(drawn, []compositor.Handle{on.Ref()}) {
		t.Fatalf("drawn %v", drawn)
	}
}

func TestSchedulerFiresFrameCallbacks(t *testing.T) {
	f := newFixture(t)
	s := f.window(t, image.Pt(0, 0), 10, 10)
	sched := NewScheduler(f.engine, wltest.Loop(t), wltest.Log())

	cb, err := f.client.NewResource(wl.CallbackInterface, 1, 0, nil)
	if err != nil {
		t.Fatal(err)
	}
	s.Frame(cb)
	s.Commit()

	sched.Run()
	if sched.Frames() != 1 {
		t.Fatalf("%v frames", sched.Frames())
	}
	f.comp.RequestRepaint()
	sched.Run()
	if sched.Frames() != 1 {
		t.Fatal("rendered while a frame was in flight")
	}

	sched.Presented(16)
	if cb.Alive() {
		t.Fatal("frame callback not fired")
	}
	sched.Run()
	if sched.Frames() != 2 || sched.Pending() {
		t.Fatal("queued repaint not drawn after presentation")
	}
}

func TestTransformRoundTrip(t *testing.T) {
	buf := image.Pt(3, 2)
	for tr := compositor.TransformNormal; tr <= compositor.TransformFlipped270; tr++ {
		size := textureSize(tr, buf)
		seen := make(map[image.Point]bool)
		for y := 0; y < size.Y; y++ {
			for x := 0; x < size.X; x++ {
				p := image.Pt(x, y)
				sp := sourcePoint(tr, p, size)
				if !sp.In(image.Rectangle{Max: buf}) {
					t.Fatalf("transform %v: %v maps outside the buffer to %v", tr, p, sp)
				}
				if seen[sp] {
					t.Fatalf("transform %v: buffer pixel %v used twice", tr, sp)
				}
				seen[sp] = true
				if back := inversePoint(tr, sp, size); back != p {
					t.Fatalf("transform %v: %v -> %v -> %v", tr, p, sp, back)
				}
			}
		}
	}
}

func TestUploadRotated(t *testing.T) {
	red := color.RGBA{R: 0xFF, A: 0xFF}
	blue := color.RGBA{B: 0xFF, A: 0xFF}

	src := image.NewRGBA(image.Rect(0, 0, 2, 1))
	src.SetRGBA(0, 0, red)
	src.SetRGBA(1, 0, blue)

	c := newCache(wltest.Log(), false)
	tex, err := c.create(image.Pt(2, 1), wl.ShmFormatARGB8888, compositor.Transform90)
	if err != nil {
		t.Fatal(err)
	}
	upload(tex, src, tex.img.Rect)

	if tex.img.Rect.Size() != image.Pt(1, 2) {
		t.Fatalf("texture size %v", tex.img.Rect.Size())
	}
	if tex.img.RGBAAt(0, 0) != red || tex.img.RGBAAt(0, 1) != blue {
		t.Fatalf("pixels %v %v", tex.img.RGBAAt(0, 0), tex.img.RGBAAt(0, 1))
	}
}

func TestSoftwareComposition(t *testing.T) {
	frame := image.NewRGBA(image.Rect(0, 0, 4, 4))
	src := image.NewRGBA(image.Rect(0, 0, 2, 2))
	for i := range src.Pix {
		src.Pix[i] = 0xFF
	}

	drawSoftware(frame, src, image.Rect(1, 1, 3, 3))
	if frame.RGBAAt(1, 1).A != 0xFF || frame.RGBAAt(0, 0).A != 0 {
		t.Fatal("texture drawn in the wrong place")
	}

	out := make([]byte, 4*4*4)
	src.SetRGBA(0, 0, color.RGBA{R: 1, G: 2, B: 3, A: 0xFF})
	frame = image.NewRGBA(image.Rect(0, 0, 4, 4))
	drawSoftware(frame, src, image.Rect(0, 0, 2, 2))
	toBGRX(out, 16, frame)
	if got := out[:4]; !slices.Equal(got, []byte{3, 2, 1, 0xFF}) {
		t.Fatalf("BGRX pixel %v", got)
	}
}
