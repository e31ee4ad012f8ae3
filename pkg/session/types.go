package session

import (
	"context"
	"time"
)

// Role identifies the author of a turn.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

// Valid reports whether the role is one of the known turn authors.
func (r Role) Valid() bool {
	switch r {
	case RoleUser, RoleAssistant, RoleSystem:
		return true
	}
	return false
}

// Turn is a single message within a session. Turns are immutable once
// created; ids and timestamps are assigned at append time.
type Turn struct {
	ID        string    `json:"id"`
	Role      Role      `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// TurnDraft is the caller-supplied portion of a turn, before the
// synchronizer assigns an id and timestamp.
type TurnDraft struct {
	Role    Role
	Content string
}

// Session is one ongoing storytelling conversation with its turn history.
type Session struct {
	ID        string    `json:"id"`
	StoryID   string    `json:"storyId,omitempty"`
	Title     string    `json:"title"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
	Turns     []Turn    `json:"turns"`
	IsActive  bool      `json:"isActive"`
}

// clone returns a deep copy so callers can never alias the canonical state.
func (s Session) clone() Session {
	out := s
	out.Turns = make([]Turn, len(s.Turns))
	copy(out.Turns, s.Turns)
	return out
}

// State is a point-in-time snapshot of the session collection.
// Sessions are ordered newest-updated-first.
type State struct {
	Sessions         []Session `json:"sessions"`
	CurrentSessionID string    `json:"currentSessionId,omitempty"`
	IsLoading        bool      `json:"isLoading"`
}

// LocalStore is the durable key-value substrate for anonymous persistence.
// Get returns ok=false when the key has never been written.
type LocalStore interface {
	Get(key string) (value string, ok bool, err error)
	Set(key, value string) error
}

// RemoteStore is the relational store of record for authenticated users.
// All operations are scoped by user id; sessions load newest-updated-first
// with turns oldest-first.
type RemoteStore interface {
	LoadSessions(ctx context.Context, userID string) ([]Session, error)
	InsertSession(ctx context.Context, userID string, s Session) error
	InsertTurn(ctx context.Context, sessionID string, t Turn) error
	TouchSession(ctx context.Context, userID, sessionID string) error
	SetSessionActive(ctx context.Context, userID, sessionID string, active bool) error
	DeactivateAll(ctx context.Context, userID string) error
	DeactivateOthers(ctx context.Context, userID, keepSessionID string) error
	DeleteSession(ctx context.Context, userID, sessionID string) error
}

// IDSource generates collision-resistant unique ids for sessions and turns.
type IDSource func() string
