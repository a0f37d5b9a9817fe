package memory_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/tailored-agentic-units/concierge/core/protocol"
	"github.com/tailored-agentic-units/concierge/memory"
	"github.com/tailored-agentic-units/concierge/observability"
)

var errDown = errors.New("backend down")

// flakyStore wraps a LocalStore and fails every call while down is set.
type flakyStore struct {
	*memory.LocalStore
	down atomic.Bool
}

func newFlakyStore() *flakyStore {
	return &flakyStore{LocalStore: memory.NewLocalStore()}
}

func (f *flakyStore) Append(ctx context.Context, id string, turns ...protocol.Turn) error {
	if f.down.Load() {
		return errDown
	}
	return f.LocalStore.Append(ctx, id, turns...)
}

func (f *flakyStore) Turns(ctx context.Context, id string) ([]protocol.Turn, error) {
	if f.down.Load() {
		return nil, errDown
	}
	return f.LocalStore.Turns(ctx, id)
}

func (f *flakyStore) Recent(ctx context.Context, id string, n int) ([]protocol.Turn, error) {
	if f.down.Load() {
		return nil, errDown
	}
	return f.LocalStore.Recent(ctx, id, n)
}

func (f *flakyStore) LoadSummary(ctx context.Context, id string) (memory.Summary, error) {
	if f.down.Load() {
		return memory.Summary{}, errDown
	}
	return f.LocalStore.LoadSummary(ctx, id)
}

func (f *flakyStore) SaveSummary(ctx context.Context, id string, s memory.Summary) error {
	if f.down.Load() {
		return errDown
	}
	return f.LocalStore.SaveSummary(ctx, id, s)
}

func (f *flakyStore) Ping(ctx context.Context) error {
	if f.down.Load() {
		return errDown
	}
	return nil
}

type captureObserver struct {
	mu     sync.Mutex
	events []observability.Event
}

func (c *captureObserver) OnEvent(_ context.Context, e observability.Event) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, e)
}

func (c *captureObserver) types() []observability.EventType {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]observability.EventType, len(c.events))
	for i, e := range c.events {
		out[i] = e.Type
	}
	return out
}

func TestResilient_Contract(t *testing.T) {
	testStoreContract(t, func(t *testing.T) memory.Store {
		return memory.NewResilient(memory.NewLocalStore())
	})
}

func TestResilient_DegradesOnWriteFailure(t *testing.T) {
	ctx := context.Background()
	primary := newFlakyStore()
	obs := &captureObserver{}

	var hookCalls []bool
	r := memory.NewResilient(primary,
		memory.WithObserver(obs),
		memory.WithStateHook(func(d bool) { hookCalls = append(hookCalls, d) }),
	)

	primary.down.Store(true)

	if err := r.Append(ctx, "s1", protocol.NewTurn(protocol.RoleUser, "hola")); err != nil {
		t.Fatalf("Append() error = %v, want nil in degraded mode", err)
	}
	if !r.Degraded() {
		t.Fatal("Degraded() = false after primary failure")
	}

	got, err := r.Turns(ctx, "s1")
	if err != nil {
		t.Fatalf("Turns() error = %v", err)
	}
	assertContents(t, got, "hola")

	if err := r.Append(ctx, "s1", protocol.NewTurn(protocol.RoleUser, "otra vez")); err != nil {
		t.Fatalf("Append() error = %v", err)
	}

	types := obs.types()
	if len(types) != 1 || types[0] != memory.EventDegraded {
		t.Errorf("events = %v, want exactly one %s", types, memory.EventDegraded)
	}
	if len(hookCalls) != 1 || !hookCalls[0] {
		t.Errorf("hook calls = %v, want [true]", hookCalls)
	}
}

func TestResilient_DegradesOnReadFailure(t *testing.T) {
	ctx := context.Background()
	primary := newFlakyStore()
	r := memory.NewResilient(primary)

	primary.down.Store(true)

	got, err := r.Recent(ctx, "s1", 5)
	if err != nil {
		t.Fatalf("Recent() error = %v", err)
	}
	if len(got) != 0 {
		t.Errorf("Recent() = %d turns, want 0", len(got))
	}

	summary, err := r.LoadSummary(ctx, "s1")
	if err != nil {
		t.Fatalf("LoadSummary() error = %v", err)
	}
	if !summary.IsZero() {
		t.Errorf("LoadSummary() = %+v, want zero", summary)
	}
	if !r.Degraded() {
		t.Error("Degraded() = false after read failure")
	}
}

func TestResilient_ProbeWhileDown(t *testing.T) {
	ctx := context.Background()
	primary := newFlakyStore()
	obs := &captureObserver{}
	r := memory.NewResilient(primary, memory.WithObserver(obs))

	primary.down.Store(true)
	_ = r.Append(ctx, "s1", protocol.NewTurn(protocol.RoleUser, "x"))

	if err := r.Probe(ctx); !errors.Is(err, errDown) {
		t.Errorf("Probe() error = %v, want %v", err, errDown)
	}
	if !r.Degraded() {
		t.Error("Degraded() = false after failed probe")
	}

	types := obs.types()
	if types[len(types)-1] != memory.EventProbeFailed {
		t.Errorf("last event = %s, want %s", types[len(types)-1], memory.EventProbeFailed)
	}
}

func TestResilient_ProbeRecoversAndReplays(t *testing.T) {
	ctx := context.Background()
	primary := newFlakyStore()
	_ = primary.LocalStore.Append(ctx, "s1", protocol.NewTurn(protocol.RoleUser, "before"))
	_ = primary.LocalStore.SaveSummary(ctx, "s2", memory.Summary{Text: "primary summary"})

	var degraded atomic.Bool
	r := memory.NewResilient(primary, memory.WithStateHook(degraded.Store))

	primary.down.Store(true)
	_ = r.Append(ctx, "s1", protocol.NewTurn(protocol.RoleUser, "during"))
	_ = r.SaveSummary(ctx, "s1", memory.Summary{Text: "fallback summary", Version: 1})
	_ = r.SaveSummary(ctx, "s2", memory.Summary{Text: "stale", Version: 1})
	_ = r.Append(ctx, "s3", protocol.NewTurn(protocol.RoleUser, "new session"))

	if !degraded.Load() {
		t.Fatal("state hook not told about degradation")
	}

	primary.down.Store(false)
	if err := r.Probe(ctx); err != nil {
		t.Fatalf("Probe() error = %v", err)
	}
	if r.Degraded() || degraded.Load() {
		t.Fatal("store still degraded after successful probe")
	}

	s1, _ := r.Turns(ctx, "s1")
	assertContents(t, s1, "before", "during")

	s3, _ := r.Turns(ctx, "s3")
	assertContents(t, s3, "new session")

	sum1, _ := r.LoadSummary(ctx, "s1")
	if sum1.Text != "fallback summary" {
		t.Errorf("s1 summary = %q, want fallback summary replayed", sum1.Text)
	}
	sum2, _ := r.LoadSummary(ctx, "s2")
	if sum2.Text != "primary summary" {
		t.Errorf("s2 summary = %q, want primary summary kept", sum2.Text)
	}

	if err := r.Append(ctx, "s1", protocol.NewTurn(protocol.RoleUser, "after")); err != nil {
		t.Fatalf("Append() error = %v", err)
	}
	direct, _ := primary.LocalStore.Turns(ctx, "s1")
	assertContents(t, direct, "before", "during", "after")
}

func TestResilient_ProbeHealthyIsNoop(t *testing.T) {
	primary := newFlakyStore()
	r := memory.NewResilient(primary)
	primary.down.Store(true)

	if err := r.Probe(context.Background()); err != nil {
		t.Errorf("Probe() on healthy store error = %v", err)
	}
}

func TestResilient_NilPrimary(t *testing.T) {
	ctx := context.Background()
	r := memory.NewResilient(nil)

	if err := r.Append(ctx, "s1", protocol.NewTurn(protocol.RoleUser, "x")); err != nil {
		t.Fatalf("Append() error = %v", err)
	}
	got, _ := r.Turns(ctx, "s1")
	assertContents(t, got, "x")
	if err := r.Ping(ctx); err != nil {
		t.Errorf("Ping() error = %v", err)
	}
}

func TestResilient_ConcurrentWritesDuringOutage(t *testing.T) {
	ctx := context.Background()
	primary := newFlakyStore()
	r := memory.NewResilient(primary)
	primary.down.Store(true)

	var wg sync.WaitGroup
	for range 20 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := r.Append(ctx, "s1", protocol.NewTurn(protocol.RoleUser, "x")); err != nil {
				t.Errorf("Append() error = %v", err)
			}
		}()
	}
	wg.Wait()

	primary.down.Store(false)
	if err := r.Probe(ctx); err != nil {
		t.Fatalf("Probe() error = %v", err)
	}

	got, _ := primary.LocalStore.Turns(ctx, "s1")
	if len(got) != 20 {
		t.Errorf("primary holds %d turns after replay, want 20", len(got))
	}
}
