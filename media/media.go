// Package media converts inbound message payloads into plain text before
// they reach the orchestration engine. Text passes through; audio is
// transcribed and images are read through the provider's optional
// capabilities.
package media

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"mime"
	"strings"

	"github.com/tailored-agentic-units/concierge/observability"
	"github.com/tailored-agentic-units/concierge/provider"
)

// OCRPrompt is the instruction sent alongside images.
const OCRPrompt = "Extrae el texto de esta imagen usando OCR."

var (
	ErrInvalidPayload = errors.New("invalid media payload")
	ErrEmptyText      = errors.New("media produced no text")
)

// UnsupportedTypeError reports a content type that is neither text, audio
// nor image.
type UnsupportedTypeError struct {
	ContentType string
}

func (e *UnsupportedTypeError) Error() string {
	return fmt.Sprintf("unsupported content type %q", e.ContentType)
}

// Input is an inbound payload. For audio and image content Data holds
// base64, optionally as a data URL.
type Input struct {
	Data        string
	ContentType string
	Filename    string
}

// Preprocessor turns Input into text.
type Preprocessor struct {
	provider provider.Provider
	ocrModel string
	observer observability.Observer
}

// Option configures a Preprocessor.
type Option func(*Preprocessor)

// WithOCRModel sets the vision model used for images.
func WithOCRModel(model string) Option {
	return func(p *Preprocessor) { p.ocrModel = model }
}

// WithObserver sets the observer for media events.
func WithObserver(o observability.Observer) Option {
	return func(p *Preprocessor) { p.observer = o }
}

// New creates a Preprocessor over p.
func New(p provider.Provider, opts ...Option) *Preprocessor {
	pp := &Preprocessor{
		provider: p,
		observer: observability.NoOpObserver{},
	}
	for _, opt := range opts {
		opt(pp)
	}
	return pp
}

// Text returns the textual content of in. An empty content type is treated
// as text/plain.
func (p *Preprocessor) Text(ctx context.Context, in Input) (string, error) {
	kind, err := mediaKind(in.ContentType)
	if err != nil {
		return "", err
	}

	switch kind {
	case "text":
		return in.Data, nil
	case "audio":
		return p.transcribe(ctx, in)
	case "image":
		return p.readImage(ctx, in)
	default:
		return "", &UnsupportedTypeError{ContentType: in.ContentType}
	}
}

func (p *Preprocessor) transcribe(ctx context.Context, in Input) (string, error) {
	t, err := provider.AsTranscriber(p.provider)
	if err != nil {
		return "", err
	}

	audio, err := decode(in.Data)
	if err != nil {
		return "", err
	}

	text, err := t.Transcribe(ctx, audio, in.Filename)
	if err != nil {
		return "", fmt.Errorf("transcribe: %w", err)
	}

	p.observer.OnEvent(ctx, observability.NewEvent(EventTranscribed, observability.LevelVerbose, "media.Preprocessor", map[string]any{
		"bytes": len(audio),
		"chars": len(text),
	}))
	return nonEmpty(text)
}

func (p *Preprocessor) readImage(ctx context.Context, in Input) (string, error) {
	r, err := provider.AsImageReader(p.provider)
	if err != nil {
		return "", err
	}

	image, err := decode(in.Data)
	if err != nil {
		return "", err
	}

	mediaType, _, _ := mime.ParseMediaType(in.ContentType)
	text, err := r.ReadImage(ctx, image, mediaType, OCRPrompt, p.ocrModel)
	if err != nil {
		return "", fmt.Errorf("read image: %w", err)
	}

	p.observer.OnEvent(ctx, observability.NewEvent(EventImageRead, observability.LevelVerbose, "media.Preprocessor", map[string]any{
		"bytes": len(image),
		"chars": len(text),
	}))
	return nonEmpty(text)
}

// UserMessage returns the reply shown to the user when Text fails.
func UserMessage(err error) string {
	var typeErr *UnsupportedTypeError
	if errors.As(err, &typeErr) {
		return fmt.Sprintf("Tipo de mensaje no soportado: %s. Por favor use texto, audio o imagen.", typeErr.ContentType)
	}

	var capErr *provider.UnsupportedCapabilityError
	if errors.As(err, &capErr) {
		return "Por ahora no puedo procesar este tipo de mensaje. Por favor escríbenos tu consulta en texto."
	}

	return "No pude procesar tu mensaje. Por favor intenta de nuevo o escríbenos tu consulta en texto."
}

func mediaKind(contentType string) (string, error) {
	if strings.TrimSpace(contentType) == "" {
		return "text", nil
	}

	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return "", &UnsupportedTypeError{ContentType: contentType}
	}

	kind, _, _ := strings.Cut(mediaType, "/")
	return kind, nil
}

func decode(data string) ([]byte, error) {
	if strings.HasPrefix(data, "data:") {
		_, payload, ok := strings.Cut(data, ",")
		if !ok {
			return nil, fmt.Errorf("%w: malformed data url", ErrInvalidPayload)
		}
		data = payload
	}

	raw, err := base64.StdEncoding.DecodeString(strings.TrimSpace(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	if len(raw) == 0 {
		return nil, fmt.Errorf("%w: empty", ErrInvalidPayload)
	}
	return raw, nil
}

func nonEmpty(text string) (string, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return "", ErrEmptyText
	}
	return text, nil
}
