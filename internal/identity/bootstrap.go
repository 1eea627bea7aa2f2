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
	"fmt"
	"time"

	"github.com/memvault/memvault/internal/audit"
	"github.com/memvault/memvault/internal/crypto"
	"github.com/memvault/memvault/internal/id"
)

// BootstrapService provisions the initial administrator account
type BootstrapService struct {
	repo        UserRepository
	hasher      *crypto.PasswordHasher
	auditLogger audit.Logger
}

// NewBootstrapService creates a new bootstrap service
func NewBootstrapService(repo UserRepository, hasher *crypto.PasswordHasher, auditLogger audit.Logger) *BootstrapService {
	return &BootstrapService{
		repo:        repo,
		hasher:      hasher,
		auditLogger: auditLogger,
	}
}

// Bootstrap ensures a superuser with the given username exists. Safe to
// run on every startup: an existing account is promoted and reactivated
// if needed, never recreated, and its password is left untouched.
func (s *BootstrapService) Bootstrap(ctx context.Context, email, username, password string) error {
	existing, err := s.repo.GetByUsername(ctx, username)
	switch {
	case err == nil:
		if existing.IsSuperuser && existing.IsActive {
			return nil
		}
		existing.IsSuperuser = true
		existing.IsActive = true
		existing.UpdatedAt = time.Now().UTC()
		if err := s.repo.Update(ctx, existing); err != nil {
			return fmt.Errorf("failed to promote bootstrap admin: %w", err)
		}
		s.auditLogger.Log(ctx, audit.Event{
			Type:     audit.TypeAdminBootstrap,
			ActorID:  existing.ID,
			Resource: username,
			Metadata: map[string]any{"promoted": true},
		})
		return nil
	case !errors.Is(err, ErrUserNotFound):
		return fmt.Errorf("failed to look up bootstrap admin: %w", err)
	}

	if !isValidEmail(email) {
		return ErrInvalidEmail
	}
	if !isStrongPassword(password) {
		return ErrWeakPassword
	}

	passwordHash, err := s.hasher.Hash(password)
	if err != nil {
		return fmt.Errorf("failed to hash bootstrap admin password: %w", err)
	}

	now := time.Now().UTC()
	admin := &User{
		ID:           id.NewUUIDv7(),
		Email:        email,
		Username:     username,
		PasswordHash: passwordHash,
		IsActive:     true,
		IsSuperuser:  true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.repo.Create(ctx, admin); err != nil {
		return fmt.Errorf("failed to create bootstrap admin: %w", err)
	}

	s.auditLogger.Log(ctx, audit.Event{
		Type:     audit.TypeAdminBootstrap,
		ActorID:  admin.ID,
		Resource: username,
	})

	return nil
}
