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

package identity

import (
	"context"
	"errors"
	"time"
)

// Domain errors
var (
	ErrUserNotFound       = errors.New("user not found")
	ErrDuplicateUser      = errors.New("user already exists")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrInvalidEmail       = errors.New("invalid email address")
	ErrInvalidUsername    = errors.New("invalid username")
	ErrWeakPassword       = errors.New("password does not meet security requirements")
	ErrAccountDisabled    = errors.New("account is disabled")
	ErrNotSuperuser       = errors.New("user is not a superuser")
)

// User represents a resource owner. Superusers may additionally manage
// OAuth clients through the admin API.
type User struct {
	ID           string
	Email        string
	Username     string
	PasswordHash string
	IsActive     bool
	IsSuperuser  bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// ProfileUpdate carries a partial update to a user's own account.
// Nil fields are left unchanged.
type ProfileUpdate struct {
	Email    *string
	Username *string
	Password *string
}

// UserRepository defines the interface for user persistence
type UserRepository interface {
	// Create creates a new user. Returns ErrDuplicateUser when the email
	// or username is already taken.
	Create(ctx context.Context, user *User) error

	// GetByID retrieves a user by ID
	GetByID(ctx context.Context, id string) (*User, error)

	// GetByEmail retrieves a user by email
	GetByEmail(ctx context.Context, email string) (*User, error)

	// GetByUsername retrieves a user by username
	GetByUsername(ctx context.Context, username string) (*User, error)

	// Update persists changes to email, username, password hash and flags
	Update(ctx context.Context, user *User) error
}
