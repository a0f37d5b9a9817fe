package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// Direction tells the notification sink which side sent a message.
type Direction string

const (
	Incoming Direction = "incoming"
	Outgoing Direction = "outgoing"
)

// Webhook posts conversation messages to an external automation endpoint.
// The payload is {user, mensaje, type, conversation_id}; user is the
// session id.
type Webhook struct {
	url        string
	httpClient *http.Client
}

// NewWebhook creates a Webhook notifier posting to url.
func NewWebhook(url string, timeout time.Duration) *Webhook {
	return &Webhook{
		url:        url,
		httpClient: &http.Client{Timeout: timeout},
	}
}

type webhookPayload struct {
	User           string    `json:"user"`
	Message        string    `json:"mensaje"`
	Type           Direction `json:"type"`
	ConversationID string    `json:"conversation_id"`
}

type webhookResponse struct {
	ConversationID json.RawMessage `json:"conversation_id"`
}

// Notify sends message for the session identified by conversationID and
// returns the conversation id the sink assigned. A sink that answers
// without one keeps conversationID.
func (w *Webhook) Notify(ctx context.Context, conversationID, message string, direction Direction) (string, error) {
	if w.url == "" {
		return conversationID, fmt.Errorf("%w: webhook", ErrNotConfigured)
	}

	body, err := json.Marshal(webhookPayload{
		User:           conversationID,
		Message:        message,
		Type:           direction,
		ConversationID: conversationID,
	})
	if err != nil {
		return conversationID, fmt.Errorf("failed to marshal notification: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.url, bytes.NewReader(body))
	if err != nil {
		return conversationID, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := w.httpClient.Do(req)
	if err != nil {
		return conversationID, fmt.Errorf("notification failed: %w", err)
	}
	defer resp.Body.Close()

	data, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return conversationID, &StatusError{Sink: "webhook", StatusCode: resp.StatusCode}
	}

	return assignedID(data, conversationID), nil
}

// assignedID extracts conversation_id (string or number) from a JSON
// object body.
func assignedID(data []byte, fallback string) string {
	var out webhookResponse
	if err := json.Unmarshal(data, &out); err != nil || len(out.ConversationID) == 0 {
		return fallback
	}

	var s string
	if err := json.Unmarshal(out.ConversationID, &s); err == nil {
		if s = strings.TrimSpace(s); s != "" {
			return s
		}
		return fallback
	}

	var n json.Number
	if err := json.Unmarshal(out.ConversationID, &n); err == nil && n.String() != "" {
		return n.String()
	}
	return fallback
}
