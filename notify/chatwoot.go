package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Chatwoot labels conversations through the Chatwoot application API.
type Chatwoot struct {
	baseURL    string
	token      string
	accountID  string
	httpClient *http.Client
}

// NewChatwoot creates a labeler for the given Chatwoot instance and account.
func NewChatwoot(baseURL, token, accountID string, timeout time.Duration) *Chatwoot {
	return &Chatwoot{
		baseURL:    strings.TrimRight(baseURL, "/"),
		token:      token,
		accountID:  accountID,
		httpClient: &http.Client{Timeout: timeout},
	}
}

type labelRequest struct {
	Labels []string `json:"labels"`
}

// Label adds label to the conversation.
func (c *Chatwoot) Label(ctx context.Context, conversationID, label string) error {
	if c.baseURL == "" {
		return fmt.Errorf("%w: chatwoot", ErrNotConfigured)
	}

	body, err := json.Marshal(labelRequest{Labels: []string{label}})
	if err != nil {
		return fmt.Errorf("failed to marshal labels: %w", err)
	}

	endpoint := fmt.Sprintf("%s/api/v1/accounts/%s/conversations/%s/labels",
		c.baseURL, url.PathEscape(c.accountID), url.PathEscape(conversationID))

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("api_access_token", c.token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("label request failed: %w", err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &StatusError{Sink: "chatwoot", StatusCode: resp.StatusCode}
	}
	return nil
}
