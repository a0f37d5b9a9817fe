package handlers_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tailored-agentic-units/concierge/handlers"
)

func TestRemote_Handle(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/products_agent_search", r.URL.Path)

		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "busco tenis negros", body["text"])

		io.WriteString(w, `{"result":"Tenemos tenis negros en talla 25 a 28."}`)
	}))
	defer srv.Close()

	h := handlers.NewRemote("products", srv.URL+"/products_agent_search", 5*time.Second)
	out, err := h.Handle(context.Background(), handlers.Input{UserText: "busco tenis negros"})
	require.NoError(t, err)
	assert.Equal(t, "Tenemos tenis negros en talla 25 a 28.", out)
	assert.Equal(t, "products", h.Name())
}

func TestRemote_Errors(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		check  func(t *testing.T, err error)
	}{
		{
			name:   "non 2xx",
			status: http.StatusServiceUnavailable,
			body:   "down",
			check: func(t *testing.T, err error) {
				var statusErr *handlers.RemoteStatusError
				require.ErrorAs(t, err, &statusErr)
				assert.Equal(t, http.StatusServiceUnavailable, statusErr.StatusCode)
			},
		},
		{
			name:   "missing result",
			status: http.StatusOK,
			body:   `{}`,
			check: func(t *testing.T, err error) {
				assert.ErrorIs(t, err, handlers.ErrEmptyResult)
			},
		},
		{
			name:   "invalid json",
			status: http.StatusOK,
			body:   `<html>`,
			check: func(t *testing.T, err error) {
				assert.Error(t, err)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				io.WriteString(w, tt.body)
			}))
			defer srv.Close()

			_, err := handlers.NewRemote("payments", srv.URL, time.Second).Handle(context.Background(), handlers.Input{UserText: "x"})
			tt.check(t, err)
		})
	}
}

type fakeLabeler struct {
	mu     sync.Mutex
	labels map[string]string
	err    error
}

func (f *fakeLabeler) Label(_ context.Context, conversationID, label string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.labels == nil {
		f.labels = map[string]string{}
	}
	f.labels[conversationID] = label
	return f.err
}

// syncSpawner runs tasks inline and records their errors.
type syncSpawner struct {
	errs []error
}

func (s *syncSpawner) Go(_ string, task func(ctx context.Context) error) {
	s.errs = append(s.errs, task(context.Background()))
}

func TestEscalation(t *testing.T) {
	tests := []struct {
		name     string
		in       handlers.Input
		labelErr error
		wantID   string
	}{
		{name: "conversation id", in: handlers.Input{SessionID: "+52155", ConversationID: "981"}, wantID: "981"},
		{name: "session id fallback", in: handlers.Input{SessionID: "+52155"}, wantID: "+52155"},
		{name: "label failure", in: handlers.Input{ConversationID: "981"}, labelErr: errors.New("chatwoot down"), wantID: "981"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			labeler := &fakeLabeler{err: tt.labelErr}
			spawner := &syncSpawner{}
			h := handlers.NewEscalation(handlers.HumanReply, handlers.HumanLabel, labeler, spawner)

			out, err := h.Handle(context.Background(), tt.in)
			require.NoError(t, err)
			assert.Equal(t, handlers.HumanReply, out)
			assert.Equal(t, "humano", labeler.labels[tt.wantID])
			require.Len(t, spawner.errs, 1)
			assert.Equal(t, tt.labelErr, spawner.errs[0])
		})
	}
}

func TestEscalation_WithoutLabeler(t *testing.T) {
	h := handlers.NewEscalation(handlers.HumanReply, handlers.HumanLabel, nil, nil)
	out, err := h.Handle(context.Background(), handlers.Input{})
	require.NoError(t, err)
	assert.Equal(t, handlers.HumanReply, out)
}
