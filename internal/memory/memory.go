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

// Package memory implements the protected resource guarded by the
// authorization server: per-user text memories with private or public
// visibility.
package memory

import (
	"context"
	"errors"
	"time"
)

// Domain errors
var (
	ErrMemoryNotFound = errors.New("memory not found")
	ErrNotOwner       = errors.New("memory belongs to another user")
	ErrEmptyText      = errors.New("memory text must not be empty")
	ErrTextTooLong    = errors.New("memory text exceeds the maximum length")
	ErrBadPermission  = errors.New("permission must be private or public")
)

// MaxTextLength bounds a single memory's text.
const MaxTextLength = 10000

// Visibility levels.
const (
	PermissionPrivate = "private"
	PermissionPublic  = "public"
)

// ValidPermission reports whether p is a known visibility level.
func ValidPermission(p string) bool {
	return p == PermissionPrivate || p == PermissionPublic
}

// Memory represents a stored text memory owned by a user.
type Memory struct {
	ID         string
	UserID     string
	Text       string
	Permission string
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// Update carries a partial change to a memory. Nil fields are left
// unchanged.
type Update struct {
	Text       *string
	Permission *string
}

// Repository defines the interface for memory persistence
type Repository interface {
	// Create creates a new memory
	Create(ctx context.Context, m *Memory) error

	// GetByID retrieves a memory by ID regardless of owner
	GetByID(ctx context.Context, id string) (*Memory, error)

	// ListByUser retrieves a page of a user's memories, newest first
	ListByUser(ctx context.Context, userID string, limit, offset int) ([]*Memory, error)

	// Update persists changes to text and permission
	Update(ctx context.Context, m *Memory) error

	// Delete removes a memory
	Delete(ctx context.Context, id string) error
}
