// Package protocol defines the message and turn types shared by the
// provider adapters, the session memory model, and the orchestration engine.
package protocol

import (
	"strings"
	"time"
)

// Role identifies the sender of a conversation message.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// IsConversational reports whether the role may be recorded as a session turn.
// System messages only exist inside prompts.
func (r Role) IsConversational() bool {
	return r == RoleUser || r == RoleAssistant
}

// Message is a single prompt message sent to a model provider.
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// NewMessage creates a Message with the given role and content.
//
// Example:
//
//	msg := protocol.NewMessage(protocol.RoleUser, "Hola")
func NewMessage(role Role, content string) Message {
	return Message{Role: role, Content: content}
}

// InitMessages creates a prompt from a system instruction followed by a
// single user message. An empty system instruction is omitted.
func InitMessages(system, user string) []Message {
	messages := make([]Message, 0, 2)
	if system != "" {
		messages = append(messages, NewMessage(RoleSystem, system))
	}
	return append(messages, NewMessage(RoleUser, user))
}

// Turn is one recorded message in a session's history. Turns are immutable
// once appended; insertion order is the only ordering guarantee.
type Turn struct {
	Role      Role      `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// NewTurn creates a Turn stamped with the current UTC time.
func NewTurn(role Role, content string) Turn {
	return Turn{Role: role, Content: content, Timestamp: time.Now().UTC()}
}

// Message converts the turn into a prompt message.
func (t Turn) Message() Message {
	return Message{Role: t.Role, Content: t.Content}
}

// RenderTurns formats turns as "role: content" lines for inclusion in a prompt.
func RenderTurns(turns []Turn) string {
	var b strings.Builder
	for i, t := range turns {
		if i > 0 {
			b.WriteByte('\n')
		}
		b.WriteString(string(t.Role))
		b.WriteString(": ")
		b.WriteString(t.Content)
	}
	return b.String()
}
