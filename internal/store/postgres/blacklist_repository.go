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
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
)

// BlacklistRepository implements oauth2.BlacklistRepository
type BlacklistRepository struct {
	db *DB
}

// NewBlacklistRepository creates a new blacklist repository
func NewBlacklistRepository(db *DB) *BlacklistRepository {
	return &BlacklistRepository{db: db}
}

// IsBlacklisted reports whether tokenHash has a live blacklist entry. An
// entry past its expiry is deleted in the same transaction (lazy sweep)
// and reported as absent.
func (r *BlacklistRepository) IsBlacklisted(ctx context.Context, tokenHash string) (bool, error) {
	var blacklisted bool

	err := pgx.BeginFunc(ctx, r.db.pool, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, `
			DELETE FROM token_blacklist WHERE token_hash = $1 AND expires_at < $2
		`, tokenHash, time.Now().UTC())
		if err != nil {
			return err
		}

		return tx.QueryRow(ctx, `
			SELECT EXISTS (SELECT 1 FROM token_blacklist WHERE token_hash = $1)
		`, tokenHash).Scan(&blacklisted)
	})
	if err != nil {
		return false, fmt.Errorf("failed to check blacklist: %w", err)
	}

	return blacklisted, nil
}

// DeleteExpired deletes all blacklist entries past their expiry
func (r *BlacklistRepository) DeleteExpired(ctx context.Context) (int64, error) {
	result, err := r.db.pool.Exec(ctx, `
		DELETE FROM token_blacklist WHERE expires_at < $1
	`, time.Now().UTC())

	if err != nil {
		return 0, fmt.Errorf("failed to delete expired blacklist entries: %w", err)
	}

	return result.RowsAffected(), nil
}
