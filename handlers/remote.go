package handlers

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

// Remote forwards the user text to a sub-agent service: POST {"text": ...}
// answered with {"result": ...}.
type Remote struct {
	name       string
	url        string
	httpClient *http.Client
}

// NewRemote creates a Remote handler posting to url.
func NewRemote(name, url string, timeout time.Duration) *Remote {
	return &Remote{
		name:       name,
		url:        url,
		httpClient: &http.Client{Timeout: timeout},
	}
}

func (h *Remote) Name() string { return h.name }

type remoteRequest struct {
	Text string `json:"text"`
}

type remoteResponse struct {
	Result string `json:"result"`
}

func (h *Remote) Handle(ctx context.Context, in Input) (string, error) {
	body, err := json.Marshal(remoteRequest{Text: in.UserText})
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, h.url, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := h.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return "", &RemoteStatusError{Handler: h.name, StatusCode: resp.StatusCode}
	}

	var out remoteResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("failed to decode response: %w", err)
	}
	if strings.TrimSpace(out.Result) == "" {
		return "", fmt.Errorf("%w: %s", ErrEmptyResult, h.name)
	}
	return out.Result, nil
}
