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
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/memvault/memvault/internal/oauth2"
)

const tokenColumns = `id, access_token_hash, refresh_token_hash, client_id, user_id,
		scope, access_token_expires_at, refresh_token_expires_at,
		is_revoked, revoked_at, created_at, updated_at`

// TokenRepository implements oauth2.TokenRepository
type TokenRepository struct {
	db *DB
}

// NewTokenRepository creates a new token repository
func NewTokenRepository(db *DB) *TokenRepository {
	return &TokenRepository{db: db}
}

// GetByAccessTokenHash retrieves a token row by access digest
func (r *TokenRepository) GetByAccessTokenHash(ctx context.Context, hash string) (*oauth2.Token, error) {
	return r.getByColumn(ctx, "access_token_hash", hash)
}

// GetByRefreshTokenHash retrieves a token row by refresh digest
func (r *TokenRepository) GetByRefreshTokenHash(ctx context.Context, hash string) (*oauth2.Token, error) {
	return r.getByColumn(ctx, "refresh_token_hash", hash)
}

func (r *TokenRepository) getByColumn(ctx context.Context, column, hash string) (*oauth2.Token, error) {
	row := r.db.pool.QueryRow(ctx, `
		SELECT `+tokenColumns+`
		FROM tokens
		WHERE `+column+` = $1
	`, hash)

	token, err := scanToken(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, oauth2.ErrTokenNotFound
		}
		return nil, fmt.Errorf("failed to get token: %w", err)
	}

	return token, nil
}

// Rotate locks the row holding refreshTokenHash, applies rotate, and writes
// the mutated hashes, scope and expiries back in the same transaction. The
// losing side of a concurrent rotation blocks on the lock and, once the
// winner commits, no longer matches the old hash: ErrTokenNotFound. An
// error from rotate rolls back, leaving the old strings valid.
func (r *TokenRepository) Rotate(ctx context.Context, refreshTokenHash string, rotate oauth2.RotateFunc) (*oauth2.Token, error) {
	tx, err := r.db.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	row := tx.QueryRow(ctx, `
		SELECT `+tokenColumns+`
		FROM tokens
		WHERE refresh_token_hash = $1
		FOR UPDATE
	`, refreshTokenHash)

	token, err := scanToken(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, oauth2.ErrTokenNotFound
		}
		return nil, fmt.Errorf("failed to lock token: %w", err)
	}

	if err := rotate(token); err != nil {
		return nil, err
	}

	_, err = tx.Exec(ctx, `
		UPDATE tokens SET
			access_token_hash = $2,
			refresh_token_hash = $3,
			scope = $4,
			access_token_expires_at = $5,
			refresh_token_expires_at = $6,
			updated_at = $7
		WHERE id = $1
	`,
		token.ID, token.AccessTokenHash, token.RefreshTokenHash, token.Scope,
		token.AccessTokenExpiresAt, token.RefreshTokenExpiresAt, token.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to rotate token: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit rotation: %w", err)
	}

	return token, nil
}

// Revoke marks the token revoked and inserts the blacklist entry in a
// single transaction. Both statements are idempotent, so re-revoking an
// already revoked token is a no-op.
func (r *TokenRepository) Revoke(ctx context.Context, tokenID string, entry *oauth2.BlacklistEntry) error {
	tx, err := r.db.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	_, err = tx.Exec(ctx, `
		UPDATE tokens SET is_revoked = TRUE, revoked_at = $2, updated_at = $2
		WHERE id = $1 AND is_revoked = FALSE
	`, tokenID, entry.BlacklistedAt)
	if err != nil {
		return fmt.Errorf("failed to mark token revoked: %w", err)
	}

	var reason sql.NullString
	if entry.Reason != "" {
		reason = sql.NullString{String: entry.Reason, Valid: true}
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO token_blacklist (token_hash, blacklisted_at, expires_at, reason)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (token_hash) DO NOTHING
	`, entry.TokenHash, entry.BlacklistedAt, entry.ExpiresAt, reason)
	if err != nil {
		return fmt.Errorf("failed to insert blacklist entry: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit revocation: %w", err)
	}

	return nil
}

// DeleteExpired deletes rows whose refresh expiry has passed
func (r *TokenRepository) DeleteExpired(ctx context.Context) (int64, error) {
	result, err := r.db.pool.Exec(ctx, `
		DELETE FROM tokens WHERE refresh_token_expires_at < $1
	`, time.Now().UTC())

	if err != nil {
		return 0, fmt.Errorf("failed to delete expired tokens: %w", err)
	}

	return result.RowsAffected(), nil
}

// insertToken writes a freshly minted token row inside the exchange
// transaction.
func insertToken(ctx context.Context, tx pgx.Tx, token *oauth2.Token) error {
	_, err := tx.Exec(ctx, `
		INSERT INTO tokens (
			id, access_token_hash, refresh_token_hash, client_id, user_id,
			scope, access_token_expires_at, refresh_token_expires_at,
			is_revoked, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`,
		token.ID, token.AccessTokenHash, token.RefreshTokenHash, token.ClientID, token.UserID,
		token.Scope, token.AccessTokenExpiresAt, token.RefreshTokenExpiresAt,
		token.IsRevoked, token.CreatedAt, token.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert token: %w", err)
	}
	return nil
}

// scanToken reads one token row.
func scanToken(row pgx.Row) (*oauth2.Token, error) {
	var token oauth2.Token
	var revokedAt sql.NullTime

	err := row.Scan(
		&token.ID, &token.AccessTokenHash, &token.RefreshTokenHash, &token.ClientID, &token.UserID,
		&token.Scope, &token.AccessTokenExpiresAt, &token.RefreshTokenExpiresAt,
		&token.IsRevoked, &revokedAt, &token.CreatedAt, &token.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if revokedAt.Valid {
		token.RevokedAt = &revokedAt.Time
	}

	return &token, nil
}
