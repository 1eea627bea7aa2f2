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

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/memvault/memvault/internal/identity"
)

// UserRepository implements identity.UserRepository
type UserRepository struct {
	db *DB
}

// NewUserRepository creates a new user repository
func NewUserRepository(db *DB) *UserRepository {
	return &UserRepository{db: db}
}

// Create creates a new user
func (r *UserRepository) Create(ctx context.Context, user *identity.User) error {
	_, err := r.db.pool.Exec(ctx, `
		INSERT INTO users (
			id, email, username, password_hash, is_active, is_superuser,
			created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`,
		user.ID, user.Email, user.Username, user.PasswordHash,
		user.IsActive, user.IsSuperuser, user.CreatedAt, user.UpdatedAt,
	)

	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return identity.ErrDuplicateUser
		}
		return fmt.Errorf("failed to create user: %w", err)
	}

	return nil
}

// GetByID retrieves a user by ID
func (r *UserRepository) GetByID(ctx context.Context, id string) (*identity.User, error) {
	return r.getByColumn(ctx, "id", id)
}

// GetByEmail retrieves a user by email
func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*identity.User, error) {
	return r.getByColumn(ctx, "email", email)
}

// GetByUsername retrieves a user by username
func (r *UserRepository) GetByUsername(ctx context.Context, username string) (*identity.User, error) {
	return r.getByColumn(ctx, "username", username)
}

func (r *UserRepository) getByColumn(ctx context.Context, column, value string) (*identity.User, error) {
	var user identity.User

	err := r.db.pool.QueryRow(ctx, `
		SELECT id, email, username, password_hash, is_active, is_superuser,
			created_at, updated_at
		FROM users
		WHERE `+column+` = $1
	`, value).Scan(
		&user.ID, &user.Email, &user.Username, &user.PasswordHash,
		&user.IsActive, &user.IsSuperuser, &user.CreatedAt, &user.UpdatedAt,
	)

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, identity.ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	return &user, nil
}

// Update persists changes to email, username, password hash and flags
func (r *UserRepository) Update(ctx context.Context, user *identity.User) error {
	result, err := r.db.pool.Exec(ctx, `
		UPDATE users SET
			email = $2,
			username = $3,
			password_hash = $4,
			is_active = $5,
			is_superuser = $6,
			updated_at = $7
		WHERE id = $1
	`,
		user.ID, user.Email, user.Username, user.PasswordHash,
		user.IsActive, user.IsSuperuser, user.UpdatedAt,
	)

	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return identity.ErrDuplicateUser
		}
		return fmt.Errorf("failed to update user: %w", err)
	}

	if result.RowsAffected() == 0 {
		return identity.ErrUserNotFound
	}

	return nil
}
