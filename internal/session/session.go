// Package session holds the transient conversational state of one
// diagnostic interview attempt.
package session

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Role identifies who produced a turn.
type Role string

const (
	RoleUser  Role = "user"
	RoleModel Role = "model"
)

// Turn is one message in a session's history. Turns are never edited once
// appended.
type Turn struct {
	Role Role   `json:"role"`
	Text string `json:"text"`
}

// Session is the conversation state for one diagnostic attempt. It is owned
// by exactly one caller (the company running the interview) and is deleted
// once the interview is finalized.
type Session struct {
	ID        string
	OwnerID   string
	History   []Turn
	CreatedAt time.Time
	UpdatedAt time.Time
}

// New returns a session owned by ownerID with an empty history.
func New(ownerID string, now time.Time) *Session {
	return &Session{
		ID:        uuid.NewString(),
		OwnerID:   ownerID,
		History:   []Turn{},
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// OwnedBy reports whether callerID is the session owner.
func (s *Session) OwnedBy(callerID string) bool {
	return s.OwnerID == callerID
}

// Append adds turns to the end of the history.
func (s *Session) Append(now time.Time, turns ...Turn) {
	s.History = append(s.History, turns...)
	s.UpdatedAt = now
}

// Snapshot returns a copy of the history that later appends cannot alter.
func (s *Session) Snapshot() []Turn {
	out := make([]Turn, len(s.History))
	copy(out, s.History)
	return out
}

// Repository persists sessions.
type Repository interface {
	// Create stores a new session.
	Create(ctx context.Context, s *Session) error

	// FindByID returns the session, or nil if it does not exist.
	FindByID(ctx context.Context, id string) (*Session, error)

	// Save overwrites the history of an existing session.
	Save(ctx context.Context, s *Session) error

	// Delete removes the session. Deleting a missing session is not an error.
	Delete(ctx context.Context, id string) error
}
