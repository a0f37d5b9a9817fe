// Package notify runs side effects detached from the reply path: inbox
// labeling, conversation notifications and anything else that must never
// delay or fail a reply.
package notify

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/tailored-agentic-units/concierge/observability"
)

// Recorder receives the outcome of every detached task.
type Recorder interface {
	ObserveSideEffect(task, status string)
}

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithLimit bounds the number of tasks running at once. Tasks beyond the
// limit wait for a slot until their timeout expires and are then dropped.
func WithLimit(n int64) Option {
	return func(d *Dispatcher) {
		if n > 0 {
			d.limit = n
		}
	}
}

// WithTaskTimeout bounds each task, including the time spent waiting for
// a slot.
func WithTaskTimeout(timeout time.Duration) Option {
	return func(d *Dispatcher) {
		if timeout > 0 {
			d.timeout = timeout
		}
	}
}

func WithObserver(o observability.Observer) Option {
	return func(d *Dispatcher) { d.observer = o }
}

func WithRecorder(r Recorder) Option {
	return func(d *Dispatcher) { d.recorder = r }
}

// Dispatcher owns detached tasks. A task runs on its own context derived
// from context.Background, so a finished or cancelled request never cancels
// it. Failures are logged and counted, never returned.
type Dispatcher struct {
	limit    int64
	timeout  time.Duration
	sem      *semaphore.Weighted
	wg       sync.WaitGroup
	observer observability.Observer
	recorder Recorder
}

// NewDispatcher creates a Dispatcher. Defaults: 64 concurrent tasks, 15s per
// task.
func NewDispatcher(opts ...Option) *Dispatcher {
	d := &Dispatcher{
		limit:    64,
		timeout:  15 * time.Second,
		observer: observability.NoOpObserver{},
	}
	for _, opt := range opts {
		opt(d)
	}
	d.sem = semaphore.NewWeighted(d.limit)
	return d
}

// Go starts task in the background and returns immediately.
func (d *Dispatcher) Go(name string, task func(ctx context.Context) error) {
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		d.run(name, task)
	}()
}

// Submit starts a task whose string result a caller may later join through
// the returned Future.
func (d *Dispatcher) Submit(name string, task func(ctx context.Context) (string, error)) *Future {
	f := newFuture()
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		defer f.resolve("", ErrDropped)
		d.run(name, func(ctx context.Context) error {
			value, err := task(ctx)
			f.resolve(value, err)
			return err
		})
	}()
	return f
}

// Wait blocks until every started task has finished or ctx is done.
func (d *Dispatcher) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (d *Dispatcher) run(name string, task func(ctx context.Context) error) {
	ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
	defer cancel()

	if err := d.sem.Acquire(ctx, 1); err != nil {
		d.observer.OnEvent(ctx, observability.NewEvent(EventTaskDropped, observability.LevelWarning, "notify.Dispatcher", map[string]any{
			"task":  name,
			"error": err.Error(),
		}))
		d.record(name, "dropped")
		return
	}
	defer d.sem.Release(1)

	start := time.Now()
	err := safely(ctx, task)
	elapsed := time.Since(start)

	if err != nil {
		d.observer.OnEvent(ctx, observability.NewEvent(EventTaskFailed, observability.LevelWarning, "notify.Dispatcher", map[string]any{
			"task":     name,
			"error":    err.Error(),
			"duration": elapsed.String(),
		}))
		d.record(name, "error")
		return
	}

	d.observer.OnEvent(ctx, observability.NewEvent(EventTaskComplete, observability.LevelVerbose, "notify.Dispatcher", map[string]any{
		"task":     name,
		"duration": elapsed.String(),
	}))
	d.record(name, "success")
}

func (d *Dispatcher) record(name, status string) {
	if d.recorder != nil {
		d.recorder.ObserveSideEffect(name, status)
	}
}

func safely(ctx context.Context, task func(ctx context.Context) error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %v", ErrTaskPanic, r)
		}
	}()
	return task(ctx)
}
