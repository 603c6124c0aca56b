package domain

import "time"

// Role identifies the author of a conversation turn.
type Role string

// Conversation turn roles.
const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Turn is a single conversation turn within a session (immutable value object).
type Turn struct {
	role Role
	text string
	at   time.Time
}

// NewTurn creates a conversation turn.
func NewTurn(role Role, text string, at time.Time) Turn {
	return Turn{role: role, text: text, at: at}
}

// Role returns the turn's author role.
func (t Turn) Role() Role { return t.role }

// Text returns the turn's text.
func (t Turn) Text() string { return t.text }

// At returns the turn's timestamp.
func (t Turn) At() time.Time { return t.at }
