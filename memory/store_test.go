package memory_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/tailored-agentic-units/concierge/core/protocol"
	"github.com/tailored-agentic-units/concierge/memory"
)

// testStoreContract runs the behavior every Store implementation shares.
func testStoreContract(t *testing.T, newStore func(t *testing.T) memory.Store) {
	t.Helper()
	ctx := context.Background()

	t.Run("unknown session reads empty", func(t *testing.T) {
		s := newStore(t)

		turns, err := s.Turns(ctx, "missing")
		if err != nil {
			t.Fatalf("Turns() error = %v", err)
		}
		if len(turns) != 0 {
			t.Errorf("Turns() returned %d turns, want 0", len(turns))
		}

		summary, err := s.LoadSummary(ctx, "missing")
		if err != nil {
			t.Fatalf("LoadSummary() error = %v", err)
		}
		if !summary.IsZero() {
			t.Errorf("LoadSummary() = %+v, want zero", summary)
		}
	})

	t.Run("append then read back in order", func(t *testing.T) {
		s := newStore(t)

		in := []protocol.Turn{
			protocol.NewTurn(protocol.RoleUser, "Hola"),
			protocol.NewTurn(protocol.RoleAssistant, "¡Hola! ¿En qué te ayudo?"),
		}
		if err := s.Append(ctx, "s1", in...); err != nil {
			t.Fatalf("Append() error = %v", err)
		}
		if err := s.Append(ctx, "s1", protocol.NewTurn(protocol.RoleUser, "¿Tienen tallas?")); err != nil {
			t.Fatalf("Append() error = %v", err)
		}

		got, err := s.Turns(ctx, "s1")
		if err != nil {
			t.Fatalf("Turns() error = %v", err)
		}
		assertContents(t, got, "Hola", "¡Hola! ¿En qué te ayudo?", "¿Tienen tallas?")
		if got[0].Role != protocol.RoleUser || got[1].Role != protocol.RoleAssistant {
			t.Errorf("roles = %s, %s", got[0].Role, got[1].Role)
		}
		if !got[0].Timestamp.Equal(in[0].Timestamp) {
			t.Errorf("timestamp = %v, want %v", got[0].Timestamp, in[0].Timestamp)
		}
	})

	t.Run("recent returns newest in insertion order", func(t *testing.T) {
		s := newStore(t)
		for i := range 5 {
			if err := s.Append(ctx, "s1", protocol.NewTurn(protocol.RoleUser, fmt.Sprintf("m%d", i))); err != nil {
				t.Fatalf("Append() error = %v", err)
			}
		}

		tests := []struct {
			n    int
			want []string
		}{
			{n: 2, want: []string{"m3", "m4"}},
			{n: 5, want: []string{"m0", "m1", "m2", "m3", "m4"}},
			{n: 10, want: []string{"m0", "m1", "m2", "m3", "m4"}},
			{n: 0, want: nil},
		}
		for _, tt := range tests {
			got, err := s.Recent(ctx, "s1", tt.n)
			if err != nil {
				t.Fatalf("Recent(%d) error = %v", tt.n, err)
			}
			assertContents(t, got, tt.want...)
		}
	})

	t.Run("sessions are isolated", func(t *testing.T) {
		s := newStore(t)
		_ = s.Append(ctx, "a", protocol.NewTurn(protocol.RoleUser, "from a"))
		_ = s.Append(ctx, "b", protocol.NewTurn(protocol.RoleUser, "from b"))

		got, _ := s.Turns(ctx, "a")
		assertContents(t, got, "from a")
	})

	t.Run("summary round trip", func(t *testing.T) {
		s := newStore(t)
		want := memory.Summary{
			Text:    "El cliente pregunta por tallas.",
			Buffer:  []protocol.Turn{protocol.NewTurn(protocol.RoleUser, "¿y en azul?")},
			Covered: 4,
			Version: 2,
		}
		if err := s.SaveSummary(ctx, "s1", want); err != nil {
			t.Fatalf("SaveSummary() error = %v", err)
		}

		got, err := s.LoadSummary(ctx, "s1")
		if err != nil {
			t.Fatalf("LoadSummary() error = %v", err)
		}
		if got.Text != want.Text || got.Covered != want.Covered || got.Version != want.Version {
			t.Errorf("LoadSummary() = %+v, want %+v", got, want)
		}
		assertContents(t, got.Buffer, "¿y en azul?")
	})

	t.Run("empty session id rejected", func(t *testing.T) {
		s := newStore(t)
		if err := s.Append(ctx, "", protocol.NewTurn(protocol.RoleUser, "x")); !errors.Is(err, memory.ErrEmptySessionID) {
			t.Errorf("Append() error = %v, want ErrEmptySessionID", err)
		}
		if err := s.SaveSummary(ctx, "", memory.Summary{Text: "x"}); !errors.Is(err, memory.ErrEmptySessionID) {
			t.Errorf("SaveSummary() error = %v, want ErrEmptySessionID", err)
		}
	})

	t.Run("concurrent appends keep every turn", func(t *testing.T) {
		s := newStore(t)

		var wg sync.WaitGroup
		for i := range 8 {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_ = s.Append(ctx, "s1", protocol.NewTurn(protocol.RoleUser, fmt.Sprintf("m%d", i)))
			}()
		}
		wg.Wait()

		got, err := s.Turns(ctx, "s1")
		if err != nil {
			t.Fatalf("Turns() error = %v", err)
		}
		if len(got) != 8 {
			t.Errorf("Turns() returned %d turns, want 8", len(got))
		}
	})

	t.Run("ping", func(t *testing.T) {
		s := newStore(t)
		if err := s.Ping(ctx); err != nil {
			t.Errorf("Ping() error = %v", err)
		}
	})
}

func assertContents(t *testing.T, turns []protocol.Turn, want ...string) {
	t.Helper()
	if len(turns) != len(want) {
		t.Fatalf("got %d turns, want %d", len(turns), len(want))
	}
	for i, turn := range turns {
		if turn.Content != want[i] {
			t.Errorf("turn[%d] = %q, want %q", i, turn.Content, want[i])
		}
	}
}
