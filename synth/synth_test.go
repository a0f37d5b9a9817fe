package synth_test

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/tailored-agentic-units/concierge/provider"
	"github.com/tailored-agentic-units/concierge/provider/mock"
	"github.com/tailored-agentic-units/concierge/synth"
)

func TestParseMode(t *testing.T) {
	tests := []struct {
		in      string
		want    synth.Mode
		wantErr bool
	}{
		{in: "", want: synth.Passthrough},
		{in: "passthrough", want: synth.Passthrough},
		{in: " Refine ", want: synth.Refine},
		{in: "summarize", wantErr: true},
	}

	for _, tt := range tests {
		got, err := synth.ParseMode(tt.in)
		if (err != nil) != tt.wantErr {
			t.Fatalf("ParseMode(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
		}
		if got != tt.want {
			t.Errorf("ParseMode(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestSynthesize_Passthrough(t *testing.T) {
	p := mock.New(mock.WithResponse("should not be used"))
	s := synth.New(synth.Passthrough, p, "m")

	got, err := s.Synthesize(context.Background(), "raw reply")
	if err != nil || got != "raw reply" {
		t.Errorf("Synthesize() = %q, %v", got, err)
	}
	if len(p.Calls()) != 0 {
		t.Errorf("provider called %d times in passthrough mode", len(p.Calls()))
	}
}

func TestSynthesize_Refine(t *testing.T) {
	tests := []struct {
		name    string
		opts    []mock.Option
		want    string
		wantErr error
	}{
		{name: "refined", opts: []mock.Option{mock.WithResponse(" ¡Claro! Tenemos tenis negros. ")}, want: "¡Claro! Tenemos tenis negros."},
		{name: "empty output", opts: []mock.Option{mock.WithResponse("   ")}, want: "raw"},
		{name: "model error", opts: []mock.Option{mock.WithError(errors.New("bad request"))}, want: "raw"},
		{name: "unavailable", opts: []mock.Option{mock.WithError(fmt.Errorf("%w: 503", provider.ErrUnavailable))}, want: "raw", wantErr: provider.ErrUnavailable},
		{name: "deadline", opts: []mock.Option{mock.WithError(context.DeadlineExceeded)}, want: "raw", wantErr: context.DeadlineExceeded},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := synth.New(synth.Refine, mock.New(tt.opts...), "m", synth.WithTemperature(0.3))

			got, err := s.Synthesize(context.Background(), "raw")
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("Synthesize() error = %v, want %v", err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("Synthesize() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestSynthesize_RefineSendsRawOutput(t *testing.T) {
	p := mock.New(mock.WithResponse("ok"))
	_, _ = synth.New(synth.Refine, p, "gpt-4o-mini", synth.WithTemperature(0.3)).Synthesize(context.Background(), "raw text")

	calls := p.Calls()
	if len(calls) != 1 {
		t.Fatalf("calls = %d, want 1", len(calls))
	}
	if calls[0].Messages[1].Content != "raw text" || calls[0].Temperature != 0.3 {
		t.Errorf("call = %+v", calls[0])
	}
}
