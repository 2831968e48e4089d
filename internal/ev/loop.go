// Package ev implements the compositor's event loop. Any goroutine
// may hand work to the loop, but the work itself only ever runs on
// the goroutine that drains Events, one function at a time.
package ev

import (
	"sync"
	"time"
)

// Loop serializes work from many goroutines onto one.
type Loop struct {
	done  chan struct{}
	close sync.Once
	queue *workQueue
}

func NewLoop() *Loop {
	return &Loop{
		done:  make(chan struct{}),
		queue: newQueue(),
	}
}

// Enqueue schedules f to run on the loop. It blocks until f has been
// queued and reports false if the loop was stopped first.
func (loop *Loop) Enqueue(f func() error) bool {
	select {
	case <-loop.done:
		return false
	default:
	}

	select {
	case <-loop.done:
		return false
	case loop.queue.Add() <- f:
		return true
	}
}

// AfterFunc runs f on the loop after d has elapsed. Stopping the
// returned timer before it fires cancels f.
func (loop *Loop) AfterFunc(d time.Duration, f func()) *time.Timer {
	return time.AfterFunc(d, func() {
		loop.Enqueue(func() error {
			f()
			return nil
		})
	})
}

// Events returns a channel that yields batches of queued work. The
// owner of the loop must Flush every batch it receives.
func (loop *Loop) Events() <-chan *Events {
	return loop.queue.Get()
}

// Done is closed when the loop is stopped.
func (loop *Loop) Done() <-chan struct{} {
	return loop.done
}

func (loop *Loop) Stop() {
	loop.close.Do(func() {
		close(loop.done)
		loop.queue.Stop()
	})
}
