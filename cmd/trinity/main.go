// Command trinity is a Wayland compositor. It shows its output in an
// X11 window, directly on a display through KMS, or as PNG files.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"image"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/Zubnix/trinity/backend"
	"github.com/Zubnix/trinity/backend/evdev"
	"github.com/Zubnix/trinity/backend/kms"
	"github.com/Zubnix/trinity/backend/x11"
	"github.com/Zubnix/trinity/compositor"
	"github.com/Zubnix/trinity/config"
	"github.com/Zubnix/trinity/cursor"
	"github.com/Zubnix/trinity/internal/ev"
	"github.com/Zubnix/trinity/render"
	"github.com/Zubnix/trinity/seat"
	wl "github.com/Zubnix/trinity/server"
	"github.com/Zubnix/trinity/shell"
	"github.com/Zubnix/trinity/wire"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

type state struct {
	cfg    config.Config
	log    *logrus.Logger
	cancel context.CancelFunc
	g      *errgroup.Group

	loop   *ev.Loop
	server *wl.Server
	comp   *compositor.Compositor
	output *compositor.Output
	seat   *seat.Seat
	shell  *shell.Shell
	engine *render.Engine
	sched  *render.Scheduler

	window  *x11.Window
	drm     *kms.Device
	devices []*evdev.Device
	closers []io.Closer
}

func (s *state) component(name string) *logrus.Entry {
	return s.log.WithField("component", name)
}

func (s *state) init(ctx context.Context) error {
	s.loop = ev.NewLoop()

	lis, err := wire.Listen(s.cfg.Socket)
	if err != nil {
		return fmt.Errorf("listen: %w", err)
	}
	s.server = wl.NewServer(lis, s.loop, s.component("server"))
	s.comp = compositor.New(s.server, s.component("compositor"))
	s.component("server").WithField("socket", lis.Name()).Info("listening")

	platform, caps, err := s.initBackend()
	if err != nil {
		return err
	}

	var keymap *seat.Keymap
	if s.cfg.Keyboard.Keymap != "" {
		keymap, err = seat.LoadKeymap(s.cfg.Keyboard.Keymap)
		if err != nil {
			return err
		}
	}
	s.seat = seat.New(s.comp, seat.Config{
		Capabilities: caps,
		Keymap:       keymap,
		RepeatRate:   s.cfg.Keyboard.RepeatRate,
		RepeatDelay:  s.cfg.Keyboard.RepeatDelay,
	}, s.component("seat"))
	s.shell = shell.New(s.comp, s.seat, s.loop, s.component("shell"))

	s.engine = render.NewEngine(s.comp, s.output, platform, s.component("render"))
	s.sched = render.NewScheduler(s.engine, s.loop, s.component("render"))

	theme, err := cursor.LoadTheme(s.cfg.Cursor.Theme, s.cfg.Cursor.Size)
	if err != nil {
		s.component("cursor").WithError(err).Warn("load cursor theme")
		theme = nil
	}
	s.engine.SetPointer(s.seat.Pointer(), theme)

	s.startInput(ctx)
	return nil
}

// initBackend opens the configured backend, adds the output it shows
// and returns the platform to render to along with the seat
// capabilities its input provides.
func (s *state) initBackend() (render.Platform, uint32, error) {
	o := s.cfg.Output
	log := s.component("backend")

	switch s.cfg.Backend {
	case config.BackendX11:
		window, err := x11.Open("trinity", image.Pt(o.X, o.Y), o.Size(), log)
		if err != nil {
			return nil, 0, fmt.Errorf("open X11 window: %w", err)
		}
		s.window = window
		s.closers = append(s.closers, window)
		s.output = s.comp.AddOutput(o.Geometry(), o.Mode(), o.Scale)
		return &render.X11{Window: window}, seat.CapPointer | seat.CapKeyboard, nil

	case config.BackendDRM:
		dev, err := kms.Open(s.cfg.DRM.Device, log)
		if err != nil {
			return nil, 0, fmt.Errorf("open DRM device: %w", err)
		}
		s.drm = dev
		s.closers = append(s.closers, dev)

		mode := dev.Mode()
		geometry := o.Geometry()
		geometry.PhysicalSize = mode.PhysicalSize
		geometry.Model = mode.Name
		s.output = s.comp.AddOutput(geometry, compositor.Mode{Size: mode.Size, Refresh: mode.Refresh}, o.Scale)

		var caps uint32
		s.devices = evdev.Scan(s.cfg.Input.Devices, log)
		for _, d := range s.devices {
			caps |= d.Capabilities()
			d.SetArea(s.output.Bounds())
			s.closers = append(s.closers, d)
		}
		return &render.DRM{Device: dev}, caps, nil

	case config.BackendRemote:
		err := os.MkdirAll(s.cfg.Remote.Dir, 0o755)
		if err != nil {
			return nil, 0, fmt.Errorf("create frame directory: %w", err)
		}
		s.output = s.comp.AddOutput(o.Geometry(), o.Mode(), o.Scale)
		return &render.Remote{Dir: s.cfg.Remote.Dir}, 0, nil

	default:
		return nil, 0, fmt.Errorf("unknown backend %q", s.cfg.Backend)
	}
}

// deliver hands a backend input event to the seat on the loop.
func (s *state) deliver(ev backend.Event) {
	s.loop.Enqueue(func() error {
		backend.Deliver(s.seat, ev)
		return nil
	})
}

func (s *state) startInput(ctx context.Context) {
	s.goFunc(func() error {
		// Kick off the first frame.
		s.loop.Enqueue(func() error { return nil })
		return nil
	})

	if s.window != nil {
		s.goFunc(func() error {
			return s.window.Run(ctx, x11.Handler{
				Input: s.deliver,
				Expose: func() {
					s.loop.Enqueue(func() error {
						s.sched.Request()
						return nil
					})
				},
				Close: s.cancel,
			})
		})
	}

	if s.drm != nil {
		s.goFunc(func() error {
			return s.drm.ReadEvents(ctx, func(ms uint32) {
				s.loop.Enqueue(func() error {
					s.drm.FlipDone()
					s.sched.Presented(ms)
					return nil
				})
			})
		})
	}

	for _, d := range s.devices {
		s.goFunc(func() error {
			err := d.Run(ctx, s.deliver)
			if err != nil {
				s.component("backend").WithError(err).WithField("device", d.Path()).Warn("input device stopped")
			}
			return nil
		})
	}
}

// goFunc runs f in the background. An error from f cancels the
// group's context, which stops the compositor.
func (s *state) goFunc(f func() error) {
	s.g.Go(func() error {
		err := f()
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	})
}

func (s *state) run(ctx context.Context) {
	log := s.component("loop")
	for {
		select {
		case <-ctx.Done():
			return

		case events := <-s.loop.Events():
			err := events.Flush()
			if err != nil {
				log.WithError(err).Error("event handler")
			}
			err = s.server.Flush()
			if err != nil {
				log.WithError(err).Debug("flush clients")
			}
			s.sched.Run()
		}
	}
}

func (s *state) stop() error {
	if s.server != nil {
		s.server.Close()
	}
	if s.loop != nil {
		s.loop.Stop()
	}
	for i := len(s.closers) - 1; i >= 0; i-- {
		s.closers[i].Close()
	}
	return s.g.Wait()
}

func main() {
	configPath := flag.String("config", "", "path to the configuration file (default: search XDG config dirs)")
	verbose := flag.Bool("v", false, "log debug messages")
	flag.Parse()

	log := logrus.New()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	log.SetLevel(cfg.Level())
	if *verbose {
		log.SetLevel(logrus.DebugLevel)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	g, gctx := errgroup.WithContext(ctx)
	s := state{
		cfg:    cfg,
		log:    log,
		cancel: cancel,
		g:      g,
	}

	err = s.init(gctx)
	if err != nil {
		cancel()
		s.stop()
		log.Fatalf("start compositor: %v", err)
	}

	s.run(gctx)
	cancel()
	err = s.stop()
	if err != nil {
		log.WithError(err).Fatal("backend failed")
	}
	log.Info("exiting")
}
