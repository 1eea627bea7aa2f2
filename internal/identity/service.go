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
	"fmt"
	"strings"
	"time"

	"github.com/memvault/memvault/internal/audit"
	"github.com/memvault/memvault/internal/crypto"
	"github.com/memvault/memvault/internal/id"
)

// Service provides identity-related business logic
type Service struct {
	repo        UserRepository
	hasher      *crypto.PasswordHasher
	auditLogger audit.Logger
}

// NewService creates a new identity service
func NewService(repo UserRepository, hasher *crypto.PasswordHasher, auditLogger audit.Logger) *Service {
	return &Service{
		repo:        repo,
		hasher:      hasher,
		auditLogger: auditLogger,
	}
}

// Register creates a new active, non-superuser account.
func (s *Service) Register(ctx context.Context, email, username, password string) (*User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	username = strings.TrimSpace(username)

	if !isValidEmail(email) {
		return nil, ErrInvalidEmail
	}
	if !isValidUsername(username) {
		return nil, ErrInvalidUsername
	}
	if !isStrongPassword(password) {
		return nil, ErrWeakPassword
	}

	passwordHash, err := s.hasher.Hash(password)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	now := time.Now().UTC()
	user := &User{
		ID:           id.NewUUIDv7(),
		Email:        email,
		Username:     username,
		PasswordHash: passwordHash,
		IsActive:     true,
		IsSuperuser:  false,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := s.repo.Create(ctx, user); err != nil {
		return nil, err
	}

	s.auditLogger.Log(ctx, audit.Event{
		Type:    audit.TypeUserRegistered,
		ActorID: user.ID,
		Metadata: map[string]any{
			"username": username,
		},
	})

	return user, nil
}

// Authenticate verifies a login name (username or email) and password.
// Lookup failures and bad passwords are indistinguishable to the caller.
func (s *Service) Authenticate(ctx context.Context, login, password string) (*User, error) {
	user, err := s.lookup(ctx, login)
	if err != nil {
		s.auditLogger.Log(ctx, audit.Event{
			Type:     audit.TypeLoginFailed,
			Resource: login,
			Metadata: map[string]any{"reason": "user_not_found"},
		})
		return nil, ErrInvalidCredentials
	}

	valid, err := s.hasher.Verify(password, user.PasswordHash)
	if err != nil || !valid {
		s.auditLogger.Log(ctx, audit.Event{
			Type:    audit.TypeLoginFailed,
			ActorID: user.ID,
			Metadata: map[string]any{"reason": "invalid_password"},
		})
		return nil, ErrInvalidCredentials
	}

	if !user.IsActive {
		s.auditLogger.Log(ctx, audit.Event{
			Type:    audit.TypeLoginFailed,
			ActorID: user.ID,
			Metadata: map[string]any{"reason": "account_disabled"},
		})
		return nil, ErrAccountDisabled
	}

	s.auditLogger.Log(ctx, audit.Event{
		Type:    audit.TypeLoginSuccess,
		ActorID: user.ID,
	})

	return user, nil
}

// lookup resolves a login string to a user. Anything containing an "@"
// is treated as an email, everything else as a username.
func (s *Service) lookup(ctx context.Context, login string) (*User, error) {
	login = strings.TrimSpace(login)
	if strings.Contains(login, "@") {
		return s.repo.GetByEmail(ctx, strings.ToLower(login))
	}
	return s.repo.GetByUsername(ctx, login)
}

// GetUser retrieves a user by ID
func (s *Service) GetUser(ctx context.Context, userID string) (*User, error) {
	user, err := s.repo.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	return user, nil
}

// UpdateProfile applies a partial update to the user's own account.
func (s *Service) UpdateProfile(ctx context.Context, userID string, update ProfileUpdate) (*User, error) {
	user, err := s.repo.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}

	if update.Email != nil {
		email := strings.ToLower(strings.TrimSpace(*update.Email))
		if !isValidEmail(email) {
			return nil, ErrInvalidEmail
		}
		user.Email = email
	}
	if update.Username != nil {
		username := strings.TrimSpace(*update.Username)
		if !isValidUsername(username) {
			return nil, ErrInvalidUsername
		}
		user.Username = username
	}
	if update.Password != nil {
		if !isStrongPassword(*update.Password) {
			return nil, ErrWeakPassword
		}
		hash, err := s.hasher.Hash(*update.Password)
		if err != nil {
			return nil, fmt.Errorf("failed to hash password: %w", err)
		}
		user.PasswordHash = hash
	}
	user.UpdatedAt = time.Now().UTC()

	if err := s.repo.Update(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

// VerifyAdmin authenticates login+password and additionally requires the
// superuser flag. The HTTP Basic admin surface is built on this; callers
// map ErrNotSuperuser to 403 and everything else to 401.
func (s *Service) VerifyAdmin(ctx context.Context, login, password string) (*User, error) {
	user, err := s.Authenticate(ctx, login, password)
	if err != nil {
		return nil, err
	}
	if !user.IsSuperuser {
		s.auditLogger.Log(ctx, audit.Event{
			Type:    audit.TypeAdminDenied,
			ActorID: user.ID,
			Metadata: map[string]any{"reason": "not_superuser"},
		})
		return nil, ErrNotSuperuser
	}
	return user, nil
}

// Helper functions
func isValidEmail(email string) bool {
	// Shape check only; deliverability is out of scope here
	at := strings.Index(email, "@")
	return len(email) >= 3 && len(email) < 255 &&
		at > 0 && at < len(email)-1 && strings.Count(email, "@") == 1
}

func isValidUsername(username string) bool {
	if len(username) < 3 || len(username) > 64 {
		return false
	}
	for _, c := range username {
		switch {
		case c >= 'a' && c <= 'z':
		case c >= 'A' && c <= 'Z':
		case c >= '0' && c <= '9':
		case c == '.' || c == '_' || c == '-':
		default:
			return false
		}
	}
	return true
}

func isStrongPassword(password string) bool {
	return len(password) >= 8
}
