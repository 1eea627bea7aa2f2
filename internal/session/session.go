package session

import (
	"context"
	"errors"
	"time"
)

// Domain errors
var (
	ErrSessionNotFound = errors.New("session not found")
	ErrSessionExpired  = errors.New("session expired")
	ErrSessionInvalid  = errors.New("session invalid")
)

// Session represents a browser login session. The row is the source of
// truth: a signed cookie is only a pointer to it, so logout takes effect
// immediately regardless of the cookie's lifetime.
type Session struct {
	ID         string
	UserID     string
	IPAddress  string
	UserAgent  string
	ExpiresAt  time.Time
	CreatedAt  time.Time
	LastSeenAt time.Time
}

// IsExpired checks if the session has expired
func (s *Session) IsExpired() bool {
	return time.Now().After(s.ExpiresAt)
}

// Repository defines the interface for session persistence
type Repository interface {
	// Create creates a new session
	Create(ctx context.Context, session *Session) error

	// Get retrieves a session by ID
	Get(ctx context.Context, sessionID string) (*Session, error)

	// Touch updates the session's last seen time
	Touch(ctx context.Context, sessionID string, seenAt time.Time) error

	// Delete deletes a session
	Delete(ctx context.Context, sessionID string) error

	// DeleteByUserID deletes all sessions for a user
	DeleteByUserID(ctx context.Context, userID string) error

	// DeleteExpired deletes all expired sessions and reports the count
	DeleteExpired(ctx context.Context) (int64, error)
}
