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
	"github.com/memvault/memvault/internal/memory"
)

// MemoryRepository implements memory.Repository
type MemoryRepository struct {
	db *DB
}

// NewMemoryRepository creates a new memory repository
func NewMemoryRepository(db *DB) *MemoryRepository {
	return &MemoryRepository{db: db}
}

// Create creates a new memory
func (r *MemoryRepository) Create(ctx context.Context, m *memory.Memory) error {
	_, err := r.db.pool.Exec(ctx, `
		INSERT INTO memories (id, user_id, text, permission, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`,
		m.ID, m.UserID, m.Text, m.Permission, m.CreatedAt, m.UpdatedAt,
	)

	if err != nil {
		return fmt.Errorf("failed to create memory: %w", err)
	}

	return nil
}

// GetByID retrieves a memory by ID regardless of owner
func (r *MemoryRepository) GetByID(ctx context.Context, id string) (*memory.Memory, error) {
	var m memory.Memory

	err := r.db.pool.QueryRow(ctx, `
		SELECT id, user_id, text, permission, created_at, updated_at
		FROM memories
		WHERE id = $1
	`, id).Scan(
		&m.ID, &m.UserID, &m.Text, &m.Permission, &m.CreatedAt, &m.UpdatedAt,
	)

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, memory.ErrMemoryNotFound
		}
		return nil, fmt.Errorf("failed to get memory: %w", err)
	}

	return &m, nil
}

// ListByUser retrieves a page of a user's memories, newest first
func (r *MemoryRepository) ListByUser(ctx context.Context, userID string, limit, offset int) ([]*memory.Memory, error) {
	rows, err := r.db.pool.Query(ctx, `
		SELECT id, user_id, text, permission, created_at, updated_at
		FROM memories
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`, userID, limit, offset)

	if err != nil {
		return nil, fmt.Errorf("failed to query memories: %w", err)
	}
	defer rows.Close()

	var memories []*memory.Memory
	for rows.Next() {
		var m memory.Memory
		err := rows.Scan(&m.ID, &m.UserID, &m.Text, &m.Permission, &m.CreatedAt, &m.UpdatedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan memory: %w", err)
		}
		memories = append(memories, &m)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return memories, nil
}

// Update persists changes to text and permission
func (r *MemoryRepository) Update(ctx context.Context, m *memory.Memory) error {
	result, err := r.db.pool.Exec(ctx, `
		UPDATE memories SET text = $2, permission = $3, updated_at = $4
		WHERE id = $1
	`, m.ID, m.Text, m.Permission, m.UpdatedAt)

	if err != nil {
		return fmt.Errorf("failed to update memory: %w", err)
	}

	if result.RowsAffected() == 0 {
		return memory.ErrMemoryNotFound
	}

	return nil
}

// Delete removes a memory
func (r *MemoryRepository) Delete(ctx context.Context, id string) error {
	result, err := r.db.pool.Exec(ctx, `
		DELETE FROM memories WHERE id = $1
	`, id)

	if err != nil {
		return fmt.Errorf("failed to delete memory: %w", err)
	}

	if result.RowsAffected() == 0 {
		return memory.ErrMemoryNotFound
	}

	return nil
}
