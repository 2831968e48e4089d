package ev

import (
	"errors"

	"deedles.dev/xsync/cq"
)

type workQueue = cq.BulkQueue[func() error, *Events]

func newQueue() *workQueue {
	return cq.New(func(work []func() error) *Events {
		return &Events{work: work}
	})
}

// Events is a batch of work taken from the loop in the order it was
// enqueued.
type Events struct {
	work []func() error
}

// Flush runs the batch. A failing function does not stop the ones
// after it. Their errors are joined.
func (q *Events) Flush() error {
	var errs []error
	for _, f := range q.work {
		if err := f(); err != nil {
			errs = append(errs, err)
		}
	}
	q.work = nil
	return errors.Join(errs...)
}
