// Copyright 2026 The MemVault Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/memvault/memvault/internal/session"
)

// SessionRepository implements session.Repository
type SessionRepository struct {
	db *DB
}

// NewSessionRepository creates a new session repository
func NewSessionRepository(db *DB) *SessionRepository {
	return &SessionRepository{db: db}
}

// Create creates a new session
func (r *SessionRepository) Create(ctx context.Context, sess *session.Session) error {
	_, err := r.db.pool.Exec(ctx, `
		INSERT INTO sessions (id, user_id, ip_address, user_agent, expires_at, created_at, last_seen_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`,
		sess.ID, sess.UserID, sess.IPAddress, sess.UserAgent,
		sess.ExpiresAt, sess.CreatedAt, sess.LastSeenAt,
	)

	if err != nil {
		return fmt.Errorf("failed to create session: %w", err)
	}

	return nil
}

// Get retrieves a session by ID
func (r *SessionRepository) Get(ctx context.Context, sessionID string) (*session.Session, error) {
	var sess session.Session

	err := r.db.pool.QueryRow(ctx, `
		SELECT id, user_id, ip_address, user_agent, expires_at, created_at, last_seen_at
		FROM sessions
		WHERE id = $1
	`, sessionID).Scan(
		&sess.ID, &sess.UserID, &sess.IPAddress, &sess.UserAgent,
		&sess.ExpiresAt, &sess.CreatedAt, &sess.LastSeenAt,
	)

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, session.ErrSessionNotFound
		}
		return nil, fmt.Errorf("failed to get session: %w", err)
	}

	return &sess, nil
}

// Touch updates the session's last seen time. A missing row is not an
// error; the caller treats touches as best effort.
func (r *SessionRepository) Touch(ctx context.Context, sessionID string, seenAt time.Time) error {
	_, err := r.db.pool.Exec(ctx, `
		UPDATE sessions SET last_seen_at = $2
		WHERE id = $1
	`, sessionID, seenAt)

	if err != nil {
		return fmt.Errorf("failed to touch session: %w", err)
	}

	return nil
}

// Delete deletes a session. Deleting an absent session is a no-op so that
// logout stays idempotent.
func (r *SessionRepository) Delete(ctx context.Context, sessionID string) error {
	_, err := r.db.pool.Exec(ctx, `
		DELETE FROM sessions WHERE id = $1
	`, sessionID)

	if err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}

	return nil
}

// DeleteByUserID deletes all sessions for a user
func (r *SessionRepository) DeleteByUserID(ctx context.Context, userID string) error {
	_, err := r.db.pool.Exec(ctx, `
		DELETE FROM sessions WHERE user_id = $1
	`, userID)

	if err != nil {
		return fmt.Errorf("failed to delete user sessions: %w", err)
	}

	return nil
}

// DeleteExpired deletes all expired sessions and reports the count
func (r *SessionRepository) DeleteExpired(ctx context.Context) (int64, error) {
	result, err := r.db.pool.Exec(ctx, `
		DELETE FROM sessions WHERE expires_at < $1
	`, time.Now().UTC())

	if err != nil {
		return 0, fmt.Errorf("failed to delete expired sessions: %w", err)
	}

	return result.RowsAffected(), nil
}
