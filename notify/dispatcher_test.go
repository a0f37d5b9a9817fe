package notify_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tailored-agentic-units/concierge/notify"
)

type countingRecorder struct {
	mu     sync.Mutex
	counts map[string]int
}

func (r *countingRecorder) ObserveSideEffect(task, status string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.counts == nil {
		r.counts = map[string]int{}
	}
	r.counts[task+"/"+status]++
}

func (r *countingRecorder) get(key string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.counts[key]
}

func TestDispatcher_GoRecordsOutcome(t *testing.T) {
	rec := &countingRecorder{}
	d := notify.NewDispatcher(notify.WithRecorder(rec))

	d.Go("ok", func(context.Context) error { return nil })
	d.Go("fail", func(context.Context) error { return errors.New("boom") })
	d.Go("panic", func(context.Context) error { panic("kaboom") })

	require.NoError(t, d.Wait(context.Background()))
	assert.Equal(t, 1, rec.get("ok/success"))
	assert.Equal(t, 1, rec.get("fail/error"))
	assert.Equal(t, 1, rec.get("panic/error"))
}

func TestDispatcher_TaskOutlivesCaller(t *testing.T) {
	d := notify.NewDispatcher()

	ctx, cancel := context.WithCancel(context.Background())
	var ran atomic.Bool
	d.Go("detached", func(taskCtx context.Context) error {
		<-ctx.Done()
		if taskCtx.Err() == nil {
			ran.Store(true)
		}
		return nil
	})
	cancel()

	require.NoError(t, d.Wait(context.Background()))
	assert.True(t, ran.Load())
}

func TestDispatcher_Limit(t *testing.T) {
	d := notify.NewDispatcher(notify.WithLimit(2))

	var current, peak atomic.Int32
	for range 8 {
		d.Go("bounded", func(context.Context) error {
			n := current.Add(1)
			for {
				p := peak.Load()
				if n <= p || peak.CompareAndSwap(p, n) {
					break
				}
			}
			time.Sleep(10 * time.Millisecond)
			current.Add(-1)
			return nil
		})
	}

	require.NoError(t, d.Wait(context.Background()))
	assert.LessOrEqual(t, peak.Load(), int32(2))
}

func TestDispatcher_DropsWhenSaturated(t *testing.T) {
	rec := &countingRecorder{}
	d := notify.NewDispatcher(
		notify.WithLimit(1),
		notify.WithTaskTimeout(50*time.Millisecond),
		notify.WithRecorder(rec),
	)

	release := make(chan struct{})
	started := make(chan struct{})
	d.Go("holder", func(context.Context) error {
		close(started)
		<-release
		return nil
	})
	<-started

	f := d.Submit("starved", func(context.Context) (string, error) { return "never", nil })
	_, err := f.Wait(context.Background(), time.Second)
	assert.ErrorIs(t, err, notify.ErrDropped)

	close(release)
	require.NoError(t, d.Wait(context.Background()))
	assert.Equal(t, 1, rec.get("starved/dropped"))
}

func TestDispatcher_WaitHonorsContext(t *testing.T) {
	d := notify.NewDispatcher()
	release := make(chan struct{})
	d.Go("slow", func(context.Context) error {
		<-release
		return nil
	})

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, d.Wait(ctx), context.DeadlineExceeded)

	close(release)
	require.NoError(t, d.Wait(context.Background()))
}

func TestFuture(t *testing.T) {
	d := notify.NewDispatcher()

	t.Run("value", func(t *testing.T) {
		f := d.Submit("id", func(context.Context) (string, error) { return "4821", nil })
		v, err := f.Wait(context.Background(), time.Second)
		require.NoError(t, err)
		assert.Equal(t, "4821", v)
	})

	t.Run("error", func(t *testing.T) {
		sentinel := errors.New("sink down")
		f := d.Submit("id", func(context.Context) (string, error) { return "", sentinel })
		_, err := f.Wait(context.Background(), time.Second)
		assert.ErrorIs(t, err, sentinel)
	})

	t.Run("bounded join", func(t *testing.T) {
		release := make(chan struct{})
		f := d.Submit("slow", func(context.Context) (string, error) {
			<-release
			return "late", nil
		})
		_, err := f.Wait(context.Background(), 20*time.Millisecond)
		assert.ErrorIs(t, err, notify.ErrNotReady)

		close(release)
		v, err := f.Wait(context.Background(), time.Second)
		require.NoError(t, err)
		assert.Equal(t, "late", v)
	})

	t.Run("panic", func(t *testing.T) {
		f := d.Submit("panic", func(context.Context) (string, error) { panic("kaboom") })
		_, err := f.Wait(context.Background(), time.Second)
		assert.ErrorIs(t, err, notify.ErrDropped)
	})

	t.Run("resolved", func(t *testing.T) {
		v, err := notify.Resolved("s1").Wait(context.Background(), time.Millisecond)
		require.NoError(t, err)
		assert.Equal(t, "s1", v)
	})

	require.NoError(t, d.Wait(context.Background()))
}
