package handlers

import (
	"context"
)

// Labeler tags a conversation in the support inbox.
type Labeler interface {
	Label(ctx context.Context, conversationID, label string) error
}

// Spawner runs a task detached from the current request.
type Spawner interface {
	Go(name string, task func(ctx context.Context) error)
}

// Escalation replies with a handoff message and, in the background, labels
// the conversation so a human agent picks it up. Labeling never affects the
// reply.
type Escalation struct {
	text    string
	label   string
	labeler Labeler
	spawner Spawner
}

// NewEscalation creates an Escalation handler. With a nil labeler or
// spawner it only replies.
func NewEscalation(text, label string, labeler Labeler, spawner Spawner) *Escalation {
	return &Escalation{text: text, label: label, labeler: labeler, spawner: spawner}
}

func (h *Escalation) Name() string { return "human" }

func (h *Escalation) Handle(_ context.Context, in Input) (string, error) {
	if h.labeler != nil && h.spawner != nil {
		conversationID := in.ConversationID
		if conversationID == "" {
			conversationID = in.SessionID
		}
		h.spawner.Go("label:"+h.label, func(ctx context.Context) error {
			return h.labeler.Label(ctx, conversationID, h.label)
		})
	}
	return h.text, nil
}
