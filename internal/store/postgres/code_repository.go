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
	"github.com/memvault/memvault/internal/oauth2"
)

// CodeRepository implements oauth2.CodeRepository
type CodeRepository struct {
	db *DB
}

// NewCodeRepository creates a new authorization code repository
func NewCodeRepository(db *DB) *CodeRepository {
	return &CodeRepository{db: db}
}

// Create creates a new authorization code
func (r *CodeRepository) Create(ctx context.Context, code *oauth2.AuthorizationCode) error {
	_, err := r.db.pool.Exec(ctx, `
		INSERT INTO authorization_codes (
			id, code, client_id, user_id, redirect_uri, scope,
			code_challenge, code_challenge_method, expires_at, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`,
		code.ID, code.Code, code.ClientID, code.UserID, code.RedirectURI, code.Scope,
		code.CodeChallenge, code.CodeChallengeMethod, code.ExpiresAt, code.CreatedAt,
	)

	if err != nil {
		return fmt.Errorf("failed to create authorization code: %w", err)
	}

	return nil
}

// Exchange atomically consumes an authorization code. The row is locked
// with FOR UPDATE, mint runs against it while the lock is held, then the
// code is deleted and the minted token inserted before the commit. A
// concurrent exchanger blocks on the lock and, once the winner commits,
// finds the row gone: ErrCodeNotFound. mint returning ErrCodeExpired
// deletes the code and commits that deletion; any other mint error rolls
// the transaction back, leaving the code in place.
func (r *CodeRepository) Exchange(ctx context.Context, code, clientID string, mint oauth2.MintFunc) (*oauth2.Token, error) {
	tx, err := r.db.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var ac oauth2.AuthorizationCode
	err = tx.QueryRow(ctx, `
		SELECT id, code, client_id, user_id, redirect_uri, scope,
			code_challenge, code_challenge_method, expires_at, created_at
		FROM authorization_codes
		WHERE code = $1 AND client_id = $2
		FOR UPDATE
	`, code, clientID).Scan(
		&ac.ID, &ac.Code, &ac.ClientID, &ac.UserID, &ac.RedirectURI, &ac.Scope,
		&ac.CodeChallenge, &ac.CodeChallengeMethod, &ac.ExpiresAt, &ac.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, oauth2.ErrCodeNotFound
		}
		return nil, fmt.Errorf("failed to lock authorization code: %w", err)
	}

	token, err := mint(&ac)
	if err != nil {
		if errors.Is(err, oauth2.ErrCodeExpired) {
			// An expired code is spent either way: keep the deletion even
			// though the exchange fails.
			if _, delErr := tx.Exec(ctx, `DELETE FROM authorization_codes WHERE id = $1`, ac.ID); delErr != nil {
				return nil, fmt.Errorf("failed to delete expired code: %w", delErr)
			}
			if commitErr := tx.Commit(ctx); commitErr != nil {
				return nil, fmt.Errorf("failed to commit expired code deletion: %w", commitErr)
			}
		}
		return nil, err
	}

	if _, err := tx.Exec(ctx, `DELETE FROM authorization_codes WHERE id = $1`, ac.ID); err != nil {
		return nil, fmt.Errorf("failed to consume authorization code: %w", err)
	}

	if err := insertToken(ctx, tx, token); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit exchange: %w", err)
	}

	return token, nil
}

// DeleteExpired deletes all expired authorization codes
func (r *CodeRepository) DeleteExpired(ctx context.Context) (int64, error) {
	result, err := r.db.pool.Exec(ctx, `
		DELETE FROM authorization_codes WHERE expires_at < $1
	`, time.Now().UTC())

	if err != nil {
		return 0, fmt.Errorf("failed to delete expired codes: %w", err)
	}

	return result.RowsAffected(), nil
}
