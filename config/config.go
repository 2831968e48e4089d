// Package config loads the compositor's TOML configuration.
package config

import (
	"errors"
	"fmt"
	"image"
	"io/fs"
	"math"
	"os"

	"github.com/Zubnix/trinity/compositor"
	"github.com/adrg/xdg"
	"github.com/pelletier/go-toml"
	"github.com/sirupsen/logrus"
)

// File is where the configuration is searched for in the XDG config
// directories.
const File = "trinity/config.toml"

const (
	BackendX11    = "x11"
	BackendDRM    = "drm"
	BackendRemote = "remote"
)

const (
	mmPerInch   = 25.4
	fallbackDPI = 96
)

type Config struct {
	Backend string `toml:"backend"`

	// Socket is the name of the listening socket. If it is empty, the
	// first free wayland-N is used.
	Socket string `toml:"socket"`

	Log      Log      `toml:"log"`
	Output   Output   `toml:"output"`
	DRM      DRM      `toml:"drm"`
	Input    Input    `toml:"input"`
	Keyboard Keyboard `toml:"keyboard"`
	Cursor   Cursor   `toml:"cursor"`
	Remote   Remote   `toml:"remote"`
}

type Log struct {
	Level string `toml:"level"`
}

// Output describes the single output. For the drm backend, the mode
// is taken from the display and only the position, make, model,
// transform and scale are used.
type Output struct {
	X      int `toml:"x"`
	Y      int `toml:"y"`
	Width  int `toml:"width"`
	Height int `toml:"height"`

	// Refresh is in mHz.
	Refresh int32 `toml:"refresh"`

	PhysicalWidth  int    `toml:"physical_width"`
	PhysicalHeight int    `toml:"physical_height"`
	Make           string `toml:"make"`
	Model          string `toml:"model"`
	Transform      string `toml:"transform"`
	Scale          int32  `toml:"scale"`
}

type DRM struct {
	Device string `toml:"device"`
}

type Input struct {
	// Devices are glob patterns of evdev device nodes.
	Devices []string `toml:"devices"`
}

type Keyboard struct {
	// Keymap is the path of an XKB keymap in text form. If it is empty,
	// clients are told that there is no keymap.
	Keymap      string `toml:"keymap"`
	RepeatRate  int32  `toml:"repeat_rate"`
	RepeatDelay int32  `toml:"repeat_delay"`
}

type Cursor struct {
	Theme string `toml:"theme"`
	Size  int    `toml:"size"`
}

type Remote struct {
	Dir string `toml:"dir"`
}

// Default returns the configuration used for everything that the file
// does not set.
func Default() Config {
	return Config{
		Backend: BackendX11,
		Log:     Log{Level: "info"},
		Output: Output{
			Width:     1024,
			Height:    768,
			Refresh:   60000,
			Make:      "trinity",
			Model:     "virtual",
			Transform: "normal",
			Scale:     1,
		},
		Input: Input{
			Devices: []string{"/dev/input/event*"},
		},
		Keyboard: Keyboard{
			RepeatRate:  25,
			RepeatDelay: 600,
		},
		Cursor: Cursor{
			Theme: "default",
			Size:  24,
		},
		Remote: Remote{
			Dir: ".",
		},
	}
}

// Load reads the configuration at path. If path is empty, the XDG
// config directories are searched, and if no file is found there the
// defaults are returned.
func Load(path string) (Config, error) {
	if path == "" {
		p, err := xdg.SearchConfigFile(File)
		if err != nil {
			return Default(), nil
		}
		path = p
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return Config{}, fmt.Errorf("config file %q not found", path)
		}
		return Config{}, err
	}

	c, err := Parse(data)
	if err != nil {
		return Config{}, fmt.Errorf("%v: %w", path, err)
	}
	return c, nil
}

// Parse decodes a configuration. Keys that are missing keep their
// defaults.
func Parse(data []byte) (Config, error) {
	c := Default()
	err := toml.Unmarshal(data, &c)
	if err != nil {
		return Config{}, err
	}
	c.fill()
	return c, c.Validate()
}

// fill replaces zero values that are not meaningful with defaults.
func (c *Config) fill() {
	d := Default()
	if c.Backend == "" {
		c.Backend = d.Backend
	}
	if c.Log.Level == "" {
		c.Log.Level = d.Log.Level
	}
	if c.Output.Refresh == 0 {
		c.Output.Refresh = d.Output.Refresh
	}
	if c.Output.Transform == "" {
		c.Output.Transform = d.Output.Transform
	}
	if c.Output.Scale == 0 {
		c.Output.Scale = d.Output.Scale
	}
	if c.Cursor.Size == 0 {
		c.Cursor.Size = d.Cursor.Size
	}
	if c.Remote.Dir == "" {
		c.Remote.Dir = d.Remote.Dir
	}
}

// Validate reports the first setting that cannot be used.
func (c Config) Validate() error {
	switch c.Backend {
	case BackendX11, BackendDRM, BackendRemote:
	default:
		return fmt.Errorf("unknown backend %q", c.Backend)
	}
	if _, err := logrus.ParseLevel(c.Log.Level); err != nil {
		return err
	}
	if (c.Output.Width <= 0) || (c.Output.Height <= 0) {
		return fmt.Errorf("invalid output size %vx%v", c.Output.Width, c.Output.Height)
	}
	if c.Output.Refresh < 0 {
		return fmt.Errorf("invalid refresh rate %v", c.Output.Refresh)
	}
	if c.Output.Scale < 1 {
		return fmt.Errorf("invalid output scale %v", c.Output.Scale)
	}
	if _, err := c.Output.TransformValue(); err != nil {
		return err
	}
	if (c.Keyboard.RepeatRate < 0) || (c.Keyboard.RepeatDelay < 0) {
		return errors.New("keyboard repeat settings must not be negative")
	}
	return nil
}

// Level returns the configured log level, or info if it is invalid.
func (c Config) Level() logrus.Level {
	level, err := logrus.ParseLevel(c.Log.Level)
	if err != nil {
		return logrus.InfoLevel
	}
	return level
}

var transforms = map[string]compositor.Transform{
	"normal":      compositor.TransformNormal,
	"90":          compositor.Transform90,
	"180":         compositor.Transform180,
	"270":         compositor.Transform270,
	"flipped":     compositor.TransformFlipped,
	"flipped-90":  compositor.TransformFlipped90,
	"flipped-180": compositor.TransformFlipped180,
	"flipped-270": compositor.TransformFlipped270,
}

func (o Output) TransformValue() (compositor.Transform, error) {
	t, ok := transforms[o.Transform]
	if !ok {
		return 0, fmt.Errorf("unknown output transform %q", o.Transform)
	}
	return t, nil
}

func (o Output) Size() image.Point {
	return image.Pt(o.Width, o.Height)
}

// PhysicalSize returns the configured physical size in millimeters.
// Missing dimensions are derived from the pixel size at 96 DPI.
func (o Output) PhysicalSize() image.Point {
	size := image.Pt(o.PhysicalWidth, o.PhysicalHeight)
	if size.X <= 0 {
		size.X = int(math.Round(float64(o.Width) * mmPerInch / fallbackDPI))
	}
	if size.Y <= 0 {
		size.Y = int(math.Round(float64(o.Height) * mmPerInch / fallbackDPI))
	}
	return size
}

// Geometry returns the output's geometry for the compositor.
func (o Output) Geometry() compositor.Geometry {
	t, _ := o.TransformValue()
	return compositor.Geometry{
		Position:     image.Pt(o.X, o.Y),
		PhysicalSize: o.PhysicalSize(),
		Make:         o.Make,
		Model:        o.Model,
		Transform:    t,
	}
}

func (o Output) Mode() compositor.Mode {
	return compositor.Mode{Size: o.Size(), Refresh: o.Refresh}
}
