package notify

import (
	"context"
	"sync"
	"time"
)

// Future is the single-assignment result of a submitted task.
type Future struct {
	once  sync.Once
	done  chan struct{}
	value string
	err   error
}

func newFuture() *Future {
	return &Future{done: make(chan struct{})}
}

// Resolved returns a Future that already holds value.
func Resolved(value string) *Future {
	f := newFuture()
	f.resolve(value, nil)
	return f
}

func (f *Future) resolve(value string, err error) {
	f.once.Do(func() {
		f.value = value
		f.err = err
		close(f.done)
	})
}

// Wait returns the task result, or ErrNotReady once timeout elapses or ctx
// is done. A task that panicked or was dropped resolves with ErrDropped.
func (f *Future) Wait(ctx context.Context, timeout time.Duration) (string, error) {
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-f.done:
		return f.value, f.err
	case <-timer.C:
		return "", ErrNotReady
	case <-ctx.Done():
		return "", ErrNotReady
	}
}
