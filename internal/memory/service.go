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

package memory

import (
	"context"
	"strings"
	"time"

	"github.com/memvault/memvault/internal/id"
)

// Service provides owner-scoped memory operations. Callers supply the
// acting user's ID; scope checks happen at the transport layer.
type Service struct {
	repo Repository
}

// NewService creates a new memory service
func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// Create stores a new memory for userID.
func (s *Service) Create(ctx context.Context, userID, text, permission string) (*Memory, error) {
	if permission == "" {
		permission = PermissionPrivate
	}
	if err := validateText(text); err != nil {
		return nil, err
	}
	if !ValidPermission(permission) {
		return nil, ErrBadPermission
	}

	now := time.Now().UTC()
	m := &Memory{
		ID:         id.NewUUIDv7(),
		UserID:     userID,
		Text:       text,
		Permission: permission,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := s.repo.Create(ctx, m); err != nil {
		return nil, err
	}
	return m, nil
}

// Get returns a memory visible to userID: their own, or anyone's public
// memory. Private memories of other users are reported as not found so
// their existence does not leak.
func (s *Service) Get(ctx context.Context, userID, memoryID string) (*Memory, error) {
	m, err := s.repo.GetByID(ctx, memoryID)
	if err != nil {
		return nil, err
	}
	if m.UserID != userID && m.Permission != PermissionPublic {
		return nil, ErrMemoryNotFound
	}
	return m, nil
}

// List returns a page of the user's own memories, newest first.
func (s *Service) List(ctx context.Context, userID string, limit, offset int) ([]*Memory, error) {
	if limit <= 0 {
		limit = 50
	}
	if limit > 100 {
		limit = 100
	}
	if offset < 0 {
		offset = 0
	}
	return s.repo.ListByUser(ctx, userID, limit, offset)
}

// UpdateMemory applies a partial update to a memory owned by userID.
func (s *Service) UpdateMemory(ctx context.Context, userID, memoryID string, update Update) (*Memory, error) {
	m, err := s.authorizeOwner(ctx, userID, memoryID)
	if err != nil {
		return nil, err
	}

	if update.Text != nil {
		if err := validateText(*update.Text); err != nil {
			return nil, err
		}
		m.Text = *update.Text
	}
	if update.Permission != nil {
		if !ValidPermission(*update.Permission) {
			return nil, ErrBadPermission
		}
		m.Permission = *update.Permission
	}
	m.UpdatedAt = time.Now().UTC()

	if err := s.repo.Update(ctx, m); err != nil {
		return nil, err
	}
	return m, nil
}

// DeleteMemory removes a memory owned by userID.
func (s *Service) DeleteMemory(ctx context.Context, userID, memoryID string) error {
	if _, err := s.authorizeOwner(ctx, userID, memoryID); err != nil {
		return err
	}
	return s.repo.Delete(ctx, memoryID)
}

// authorizeOwner loads a memory and enforces ownership for mutation.
// Another user's public memory yields ErrNotOwner; their private one is
// reported as not found.
func (s *Service) authorizeOwner(ctx context.Context, userID, memoryID string) (*Memory, error) {
	m, err := s.repo.GetByID(ctx, memoryID)
	if err != nil {
		return nil, err
	}
	if m.UserID != userID {
		if m.Permission == PermissionPublic {
			return nil, ErrNotOwner
		}
		return nil, ErrMemoryNotFound
	}
	return m, nil
}

func validateText(text string) error {
	if strings.TrimSpace(text) == "" {
		return ErrEmptyText
	}
	if len(text) > MaxTextLength {
		return ErrTextTooLong
	}
	return nil
}
