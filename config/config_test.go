package config

import (
	"image"
	"os"
	"path/filepath"
	"slices"
	"testing"

	"github.com/Zubnix/trinity/compositor"
	"github.com/sirupsen/logrus"
)

func TestParseOverridesDefaults(t *testing.T) {
	c, err := Parse([]byte(`
backend = "remote"
socket = "wayland-test"

[log]
level = "debug"

[output]
width = 800
height = 600
transform = "flipped-90"

[input]
devices = ["/dev/input/event3", "/dev/input/event4"]

[remote]
dir = "/tmp/frames"
`))
	if err != nil {
		t.Fatal(err)
	}

	if (c.Backend != BackendRemote) || (c.Socket != "wayland-test") {
		t.Errorf("got backend %q, socket %q", c.Backend, c.Socket)
	}
	if c.Level() != logrus.DebugLevel {
		t.Errorf("level %v", c.Level())
	}
	if c.Output.Size() != image.Pt(800, 600) {
		t.Errorf("size %v", c.Output.Size())
	}
	if c.Output.Refresh != 60000 {
		t.Errorf("refresh lost its default: %v", c.Output.Refresh)
	}
	if tr, _ := c.Output.TransformValue(); tr != compositor.TransformFlipped90 {
		t.Errorf("transform %v", tr)
	}
	if !slices.Equal(c.Input.Devices, []string{"/dev/input/event3", "/dev/input/event4"}) {
		t.Errorf("devices %v", c.Input.Devices)
	}
	if c.Remote.Dir != "/tmp/frames" {
		t.Errorf("remote dir %q", c.Remote.Dir)
	}
	if (c.Keyboard.RepeatRate != 25) || (c.Cursor.Theme != "default") {
		t.Errorf("untouched sections lost their defaults: %+v %+v", c.Keyboard, c.Cursor)
	}
}

func TestParseInvalid(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{"backend", `backend = "wayland"`},
		{"level", "[log]\nlevel = \"loud\""},
		{"size", "[output]\nwidth = -1"},
		{"transform", "[output]\ntransform = \"45\""},
		{"scale", "[output]\nscale = -2"},
		{"repeat", "[keyboard]\nrepeat_rate = -1"},
		{"syntax", `backend = `},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			if _, err := Parse([]byte(test.data)); err == nil {
				t.Fatal("no error")
			}
		})
	}
}

func TestGeometry(t *testing.T) {
	o := Default().Output
	g := o.Geometry()
	if g.PhysicalSize != image.Pt(271, 203) {
		t.Errorf("physical size %v", g.PhysicalSize)
	}

	o.PhysicalWidth, o.PhysicalHeight = 300, 200
	o.X, o.Y = 10, 20
	g = o.Geometry()
	if (g.PhysicalSize != image.Pt(300, 200)) || (g.Position != image.Pt(10, 20)) {
		t.Errorf("geometry %+v", g)
	}

	m := o.Mode()
	if (m.Size != image.Pt(1024, 768)) || (m.Refresh != 60000) {
		t.Errorf("mode %+v", m)
	}
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	err := os.WriteFile(path, []byte("backend = \"drm\"\n[drm]\ndevice = \"/dev/dri/card1\"\n"), 0o644)
	if err != nil {
		t.Fatal(err)
	}

	c, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if (c.Backend != BackendDRM) || (c.DRM.Device != "/dev/dri/card1") {
		t.Fatalf("got %+v", c)
	}

	if _, err := Load(filepath.Join(t.TempDir(), "missing.toml")); err == nil {
		t.Fatal("explicit missing file accepted")
	}
}
