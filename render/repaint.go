package render

import (
	"time"

	"github.com/Zubnix/trinity/compositor"
	"github.com/Zubnix/trinity/internal/ev"
	"github.com/sirupsen/logrus"
)

// Scheduler decides when the engine renders. A frame is drawn only if
// something asked for a repaint and the previous frame has been
// presented.
type Scheduler struct {
	engine *Engine
	loop   *ev.Loop
	log    *logrus.Entry
	start  time.Time

	wanted   bool
	inFlight bool
	drawn    []compositor.Handle
	frames   uint64
}

func NewScheduler(engine *Engine, loop *ev.Loop, log *logrus.Entry) *Scheduler {
	s := Scheduler{
		engine: engine,
		loop:   loop,
		log:    log,
		start:  time.Now(),
		wanted: true,
	}
	engine.comp.OnRepaint(s.Request)
	return &s
}

// Request asks for a frame to be drawn on the next Run.
func (s *Scheduler) Request() {
	s.wanted = true
}

// Pending reports whether a repaint has been requested but not drawn
// yet.
func (s *Scheduler) Pending() bool {
	return s.wanted
}

// Frames returns the number of frames rendered so far.
func (s *Scheduler) Frames() uint64 {
	return s.frames
}

// Run renders a frame if one is wanted and none is in flight. It is
// called once per loop iteration, after clients have been flushed.
func (s *Scheduler) Run() {
	if !s.wanted || s.inFlight {
		return
	}
	s.wanted = false

	drawn, err := s.engine.Render()
	if err != nil {
		s.log.WithError(err).Error("render frame")
		return
	}
	s.frames++
	s.drawn = drawn
	s.inFlight = true

	switch s.engine.platform.(type) {
	case *DRM:
		// The device's page flip event calls Presented.
	case *X11, *Remote:
		s.loop.AfterFunc(s.refreshInterval(), func() {
			s.Presented(s.Now())
		})
	}
}

// Presented tells the scheduler that the last frame reached the
// screen at ms, in the clock returned by Now. Frame callbacks of the
// surfaces in that frame are fired.
func (s *Scheduler) Presented(ms uint32) {
	if !s.inFlight {
		return
	}
	s.inFlight = false
	s.engine.comp.SendFrameDone(s.drawn, ms)
	s.drawn = nil
}

// Now returns the milliseconds since the scheduler was created.
func (s *Scheduler) Now() uint32 {
	return uint32(time.Since(s.start).Milliseconds())
}

func (s *Scheduler) refreshInterval() time.Duration {
	refresh := s.engine.output.Mode().Refresh
	if refresh <= 0 {
		refresh = 60000
	}
	return time.Duration(int64(time.Second) * 1000 / int64(refresh))
}
