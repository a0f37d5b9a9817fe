package provider

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"math"
	"net"
	"net/http"

	openai "github.com/sashabaranov/go-openai"

	"github.com/tailored-agentic-units/concierge/core/protocol"
)

const ocrModel = openai.GPT4oMini

// OpenAI is a Provider over the OpenAI chat completions API, or any
// compatible endpoint reachable at Config.BaseURL. It supports chat, audio
// transcription (whisper) and vision.
type OpenAI struct {
	client *openai.Client
}

// NewOpenAI creates an OpenAI provider. An API key is required.
func NewOpenAI(cfg *Config) (*OpenAI, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("%w: %s", ErrMissingAPIKey, OpenAIName)
	}

	oc := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		oc.BaseURL = cfg.BaseURL
	}
	oc.HTTPClient = &http.Client{Timeout: cfg.Timeout.Std()}

	return &OpenAI{client: openai.NewClientWithConfig(oc)}, nil
}

func (o *OpenAI) Name() string { return OpenAIName }

func (o *OpenAI) Capabilities() []protocol.Capability {
	return []protocol.Capability{protocol.Chat, protocol.Vision, protocol.Audio}
}

func (o *OpenAI) Invoke(ctx context.Context, messages []protocol.Message, model string, temperature float64) (string, error) {
	req := openai.ChatCompletionRequest{
		Model:       model,
		Messages:    make([]openai.ChatCompletionMessage, 0, len(messages)),
		Temperature: float32(temperature),
	}
	// A zero temperature is dropped by omitempty and the API applies its own default.
	if temperature == 0 {
		req.Temperature = math.SmallestNonzeroFloat32
	}
	for _, m := range messages {
		req.Messages = append(req.Messages, openai.ChatCompletionMessage{
			Role:    string(m.Role),
			Content: m.Content,
		})
	}

	return o.complete(ctx, req)
}

// Transcribe converts speech to text with whisper. The filename extension
// tells the API the audio format.
func (o *OpenAI) Transcribe(ctx context.Context, audio []byte, filename string) (string, error) {
	if filename == "" {
		filename = "audio.ogg"
	}

	resp, err := o.client.CreateTranscription(ctx, openai.AudioRequest{
		Model:    openai.Whisper1,
		FilePath: filename,
		Reader:   bytes.NewReader(audio),
	})
	if err != nil {
		return "", classify(err)
	}
	return resp.Text, nil
}

// ReadImage sends the image inline as a data URL alongside prompt.
func (o *OpenAI) ReadImage(ctx context.Context, image []byte, mimeType, prompt, model string) (string, error) {
	if model == "" {
		model = ocrModel
	}
	dataURL := "data:" + mimeType + ";base64," + base64.StdEncoding.EncodeToString(image)

	req := openai.ChatCompletionRequest{
		Model: model,
		Messages: []openai.ChatCompletionMessage{{
			Role: openai.ChatMessageRoleUser,
			MultiContent: []openai.ChatMessagePart{
				{Type: openai.ChatMessagePartTypeText, Text: prompt},
				{Type: openai.ChatMessagePartTypeImageURL, ImageURL: &openai.ChatMessageImageURL{URL: dataURL}},
			},
		}},
	}

	return o.complete(ctx, req)
}

func (o *OpenAI) complete(ctx context.Context, req openai.ChatCompletionRequest) (string, error) {
	resp, err := o.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return "", classify(err)
	}
	if len(resp.Choices) == 0 {
		return "", ErrEmptyResponse
	}
	return resp.Choices[0].Message.Content, nil
}

// classify marks rate limits, server errors and network failures as
// ErrUnavailable. Context errors pass through unchanged.
func classify(err error) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return err
	}

	var apiErr *openai.APIError
	if errors.As(err, &apiErr) && transientStatus(apiErr.HTTPStatusCode) {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) && transientStatus(reqErr.HTTPStatusCode) {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	return err
}

func transientStatus(code int) bool {
	return code == http.StatusTooManyRequests || code >= 500
}
