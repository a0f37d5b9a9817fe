package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/tailored-agentic-units/concierge/core/protocol"
)

const defaultOllamaURL = "http://localhost:11434"

// Ollama is a chat-only Provider over a local Ollama server.
type Ollama struct {
	baseURL    string
	httpClient *http.Client
}

// NewOllama creates an Ollama provider. An empty BaseURL targets localhost.
func NewOllama(cfg *Config) *Ollama {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = defaultOllamaURL
	}

	return &Ollama{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: cfg.Timeout.Std()},
	}
}

func (o *Ollama) Name() string { return OllamaName }

func (o *Ollama) Capabilities() []protocol.Capability {
	return []protocol.Capability{protocol.Chat}
}

type ollamaMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type ollamaChatRequest struct {
	Model    string          `json:"model"`
	Messages []ollamaMessage `json:"messages"`
	Stream   bool            `json:"stream"`
	Options  map[string]any  `json:"options,omitempty"`
}

type ollamaChatResponse struct {
	Model   string        `json:"model"`
	Message ollamaMessage `json:"message"`
	Done    bool          `json:"done"`
}

func (o *Ollama) Invoke(ctx context.Context, messages []protocol.Message, model string, temperature float64) (string, error) {
	chatReq := ollamaChatRequest{
		Model:    model,
		Messages: make([]ollamaMessage, 0, len(messages)),
		Options:  map[string]any{"temperature": temperature},
	}
	for _, m := range messages {
		chatReq.Messages = append(chatReq.Messages, ollamaMessage{Role: string(m.Role), Content: m.Content})
	}

	body, err := json.Marshal(chatReq)
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, o.baseURL+"/api/chat", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := o.httpClient.Do(httpReq)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
			return "", err
		}
		return "", fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		err := fmt.Errorf("ollama returned status %d: %s", resp.StatusCode, string(data))
		if transientStatus(resp.StatusCode) {
			return "", fmt.Errorf("%w: %v", ErrUnavailable, err)
		}
		return "", err
	}

	var chatResp ollamaChatResponse
	if err := json.NewDecoder(resp.Body).Decode(&chatResp); err != nil {
		return "", fmt.Errorf("failed to decode response: %w", err)
	}
	if chatResp.Message.Content == "" {
		return "", ErrEmptyResponse
	}

	return chatResp.Message.Content, nil
}
