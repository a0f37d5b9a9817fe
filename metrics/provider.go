package metrics

import (
	"context"
	"errors"
	"time"
	"unicode/utf8"

	"github.com/tailored-agentic-units/concierge/core/protocol"
	"github.com/tailored-agentic-units/concierge/provider"
)

// InstrumentedProvider reports every model call to a Recorder. Token counts
// are estimated at four characters per token.
type InstrumentedProvider struct {
	provider.Provider
	recorder *Recorder
}

// Instrument wraps p. Optional capabilities of p remain reachable through
// the wrapper.
func Instrument(p provider.Provider, r *Recorder) *InstrumentedProvider {
	return &InstrumentedProvider{Provider: p, recorder: r}
}

func (p *InstrumentedProvider) Invoke(ctx context.Context, messages []protocol.Message, model string, temperature float64) (string, error) {
	start := time.Now()
	out, err := p.Provider.Invoke(ctx, messages, model, temperature)

	prompt := 0
	for _, m := range messages {
		prompt += estimate(m.Content)
	}
	p.recorder.ObserveLLM(model, callStatus(err), time.Since(start), prompt, estimate(out))
	return out, err
}

func (p *InstrumentedProvider) Transcribe(ctx context.Context, audio []byte, filename string) (string, error) {
	t, err := provider.AsTranscriber(p.Provider)
	if err != nil {
		return "", err
	}

	start := time.Now()
	out, err := t.Transcribe(ctx, audio, filename)
	p.recorder.ObserveLLM("transcription", callStatus(err), time.Since(start), 0, estimate(out))
	return out, err
}

func (p *InstrumentedProvider) ReadImage(ctx context.Context, image []byte, mimeType, prompt, model string) (string, error) {
	r, err := provider.AsImageReader(p.Provider)
	if err != nil {
		return "", err
	}

	start := time.Now()
	out, err := r.ReadImage(ctx, image, mimeType, prompt, model)
	p.recorder.ObserveLLM("vision", callStatus(err), time.Since(start), estimate(prompt), estimate(out))
	return out, err
}

func callStatus(err error) string {
	switch {
	case err == nil:
		return "success"
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	case errors.Is(err, provider.ErrUnavailable):
		return "unavailable"
	default:
		return "error"
	}
}

func estimate(s string) int {
	return (utf8.RuneCountInString(s) + 3) / 4
}
