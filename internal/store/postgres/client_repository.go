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
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/memvault/memvault/internal/oauth2"
)

// ClientRepository implements oauth2.ClientRepository
type ClientRepository struct {
	db *DB
}

// NewClientRepository creates a new client repository
func NewClientRepository(db *DB) *ClientRepository {
	return &ClientRepository{db: db}
}

// Create creates a new OAuth2 client
func (r *ClientRepository) Create(ctx context.Context, client *oauth2.Client) error {
	redirectURIs, err := json.Marshal(client.RedirectURIs)
	if err != nil {
		return fmt.Errorf("failed to marshal redirect URIs: %w", err)
	}

	allowedScopes, err := json.Marshal(client.AllowedScopes)
	if err != nil {
		return fmt.Errorf("failed to marshal allowed scopes: %w", err)
	}

	_, err = r.db.pool.Exec(ctx, `
		INSERT INTO clients (
			id, client_id, client_secret_hash, client_name,
			redirect_uris, allowed_scopes, is_confidential, is_active,
			created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`,
		client.ID, client.ClientID, client.ClientSecretHash, client.ClientName,
		redirectURIs, allowedScopes, client.IsConfidential, client.IsActive,
		client.CreatedAt, client.UpdatedAt,
	)

	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return oauth2.ErrClientAlreadyExists
		}
		return fmt.Errorf("failed to create client: %w", err)
	}

	return nil
}

// GetByClientID retrieves a client by client_id
func (r *ClientRepository) GetByClientID(ctx context.Context, clientID string) (*oauth2.Client, error) {
	row := r.db.pool.QueryRow(ctx, `
		SELECT id, client_id, client_secret_hash, client_name,
			redirect_uris, allowed_scopes, is_confidential, is_active,
			created_at, updated_at
		FROM clients
		WHERE client_id = $1
	`, clientID)

	client, err := scanClient(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, oauth2.ErrClientNotFound
		}
		return nil, fmt.Errorf("failed to get client: %w", err)
	}

	return client, nil
}

// List retrieves a page of clients, newest first
func (r *ClientRepository) List(ctx context.Context, limit, offset int) ([]*oauth2.Client, error) {
	rows, err := r.db.pool.Query(ctx, `
		SELECT id, client_id, client_secret_hash, client_name,
			redirect_uris, allowed_scopes, is_confidential, is_active,
			created_at, updated_at
		FROM clients
		ORDER BY created_at DESC
		LIMIT $1 OFFSET $2
	`, limit, offset)

	if err != nil {
		return nil, fmt.Errorf("failed to query clients: %w", err)
	}
	defer rows.Close()

	var clients []*oauth2.Client
	for rows.Next() {
		client, err := scanClient(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan client: %w", err)
		}
		clients = append(clients, client)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return clients, nil
}

// Update updates client information
func (r *ClientRepository) Update(ctx context.Context, client *oauth2.Client) error {
	redirectURIs, err := json.Marshal(client.RedirectURIs)
	if err != nil {
		return fmt.Errorf("failed to marshal redirect URIs: %w", err)
	}

	allowedScopes, err := json.Marshal(client.AllowedScopes)
	if err != nil {
		return fmt.Errorf("failed to marshal allowed scopes: %w", err)
	}

	result, err := r.db.pool.Exec(ctx, `
		UPDATE clients SET
			client_name = $2,
			redirect_uris = $3,
			allowed_scopes = $4,
			is_active = $5,
			updated_at = $6
		WHERE client_id = $1
	`,
		client.ClientID, client.ClientName, redirectURIs, allowedScopes,
		client.IsActive, client.UpdatedAt,
	)

	if err != nil {
		return fmt.Errorf("failed to update client: %w", err)
	}

	if result.RowsAffected() == 0 {
		return oauth2.ErrClientNotFound
	}

	return nil
}

// Delete removes a client
func (r *ClientRepository) Delete(ctx context.Context, clientID string) error {
	result, err := r.db.pool.Exec(ctx, `
		DELETE FROM clients WHERE client_id = $1
	`, clientID)

	if err != nil {
		return fmt.Errorf("failed to delete client: %w", err)
	}

	if result.RowsAffected() == 0 {
		return oauth2.ErrClientNotFound
	}

	return nil
}

// scanClient reads one client row, unmarshalling the JSON array columns.
func scanClient(row pgx.Row) (*oauth2.Client, error) {
	var client oauth2.Client
	var redirectURIsJSON, allowedScopesJSON []byte

	err := row.Scan(
		&client.ID, &client.ClientID, &client.ClientSecretHash, &client.ClientName,
		&redirectURIsJSON, &allowedScopesJSON, &client.IsConfidential, &client.IsActive,
		&client.CreatedAt, &client.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal(redirectURIsJSON, &client.RedirectURIs); err != nil {
		return nil, fmt.Errorf("failed to unmarshal redirect URIs: %w", err)
	}
	if err := json.Unmarshal(allowedScopesJSON, &client.AllowedScopes); err != nil {
		return nil, fmt.Errorf("failed to unmarshal allowed scopes: %w", err)
	}

	return &client, nil
}
