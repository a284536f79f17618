package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// SessionTTL is how long an OAuth session may be honored after creation.
// Callbacks presenting a state older than this must fail deterministically.
const SessionTTL = time.Hour

// OAuthSession correlates an in-flight authorization request with its
// eventual callback. The state value is the CSRF correlation key and is
// globally unique and immutable after creation.
type OAuthSession struct {
	ID       uuid.UUID
	UserID   uuid.UUID
	Platform Platform

	State        string
	CodeVerifier string // set only for platforms using PKCE
	RedirectURI  string

	IsActive    bool
	CreatedAt   time.Time
	CompletedAt *time.Time
}

// SessionRepository is the persistence contract for OAuth sessions.
type SessionRepository interface {
	// Create stores a new active session. The state uniqueness constraint
	// rejects duplicates.
	Create(ctx context.Context, session *OAuthSession) error

	// FindActive returns the active session for (state, platform). A session
	// created at or before notBefore is treated as not found and deactivated
	// as a side effect. Returns ErrSessionNotFound otherwise.
	FindActive(ctx context.Context, state string, platform Platform, notBefore time.Time) (*OAuthSession, error)

	// Complete atomically transitions the session from active to completed.
	// At most one caller succeeds per session; losers get ErrSessionNotFound.
	Complete(ctx context.Context, state string, completedAt time.Time) error

	// SweepExpired removes all sessions created before cutoff, active or not,
	// and returns how many were removed.
	SweepExpired(ctx context.Context, cutoff time.Time) (int64, error)
}
