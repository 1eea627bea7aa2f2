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

package oauth2

import (
	"context"
	"errors"
	"strings"
	"time"
)

// Domain errors. Stores translate their engine-specific failures into these
// sentinels; the service maps them onto the wire taxonomy.
var (
	ErrClientNotFound      = errors.New("client not found")
	ErrClientAlreadyExists = errors.New("client already exists")
	ErrCodeNotFound        = errors.New("authorization code not found")
	ErrCodeExpired         = errors.New("authorization code expired")
	ErrTokenNotFound       = errors.New("token not found")
	ErrTokenExpired        = errors.New("token expired")
	ErrTokenRevoked        = errors.New("token revoked")
)

// TokenTypeBearer is the token_type of every token this server issues.
const TokenTypeBearer = "bearer"

// CodeChallengeMethodS256 is the only accepted PKCE transform. A request
// that omits code_challenge_method gets this value.
const CodeChallengeMethodS256 = "S256"

// Client is a registered confidential OAuth2 client.
type Client struct {
	ID               string    `json:"id"`
	ClientID         string    `json:"client_id"`
	ClientSecretHash string    `json:"-"`
	ClientName       string    `json:"client_name"`
	RedirectURIs     []string  `json:"redirect_uris"`
	AllowedScopes    []string  `json:"allowed_scopes"`
	IsConfidential   bool      `json:"is_confidential"`
	IsActive         bool      `json:"is_active"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

// ValidateRedirectURI reports whether redirectURI exactly matches one of the
// client's registered URIs. No prefix or wildcard matching.
func (c *Client) ValidateRedirectURI(redirectURI string) bool {
	for _, uri := range c.RedirectURIs {
		if uri == redirectURI {
			return true
		}
	}
	return false
}

// ValidateScope reports whether every whitespace-separated token of the
// requested scope is an element of the client's allowed scopes.
func (c *Client) ValidateScope(requestedScope string) bool {
	for _, req := range strings.Fields(requestedScope) {
		allowed := false
		for _, s := range c.AllowedScopes {
			if s == req {
				allowed = true
				break
			}
		}
		if !allowed {
			return false
		}
	}
	return true
}

// AuthorizationCode is a single-use grant minted at consent. It is destroyed
// by its first successful exchange or by expiry; PKCE fields are always set.
type AuthorizationCode struct {
	ID                  string
	Code                string
	ClientID            string
	UserID              string
	RedirectURI         string
	Scope               string
	CodeChallenge       string
	CodeChallengeMethod string
	ExpiresAt           time.Time
	CreatedAt           time.Time
}

// IsExpired reports whether the code is past its expiry.
func (a *AuthorizationCode) IsExpired() bool {
	return time.Now().After(a.ExpiresAt)
}

// Token is an issued access/refresh pair. Only SHA-256 digests of the two
// strings are persisted; refresh rotation overwrites both digests and both
// expiries in place, so the row's identity survives rotation.
type Token struct {
	ID                    string
	AccessTokenHash       string
	RefreshTokenHash      string
	ClientID              string
	UserID                string
	Scope                 string
	AccessTokenExpiresAt  time.Time
	RefreshTokenExpiresAt time.Time
	IsRevoked             bool
	RevokedAt             *time.Time
	CreatedAt             time.Time
	UpdatedAt             time.Time
}

// AccessTokenExpired reports whether the access half is past its expiry.
func (t *Token) AccessTokenExpired() bool {
	return time.Now().After(t.AccessTokenExpiresAt)
}

// RefreshTokenExpired reports whether the refresh half is past its expiry.
func (t *Token) RefreshTokenExpired() bool {
	return time.Now().After(t.RefreshTokenExpiresAt)
}

// TokenPair carries the raw strings of a freshly issued or rotated token.
// They exist in memory only for the duration of the response.
type TokenPair struct {
	AccessToken  string
	RefreshToken string
}

// BlacklistEntry marks a revoked token string. ExpiresAt is copied from the
// revoked string's own expiry so entries can be swept once the token would
// be rejected as expired anyway.
type BlacklistEntry struct {
	TokenHash     string
	BlacklistedAt time.Time
	ExpiresAt     time.Time
	Reason        string
}

// Expired reports whether the entry has outlived the token it blocks.
func (e *BlacklistEntry) Expired() bool {
	return time.Now().After(e.ExpiresAt)
}

// MintFunc builds the token a code exchange issues. It runs while the code
// row is locked inside the exchange transaction.
type MintFunc func(code *AuthorizationCode) (*Token, error)

// RotateFunc mutates a token row during refresh rotation. It runs while the
// row is locked; the mutated row is written back in the same transaction.
type RotateFunc func(token *Token) error

// ClientRepository persists OAuth2 clients.
type ClientRepository interface {
	// Create stores a new client. A client_id collision returns
	// ErrClientAlreadyExists.
	Create(ctx context.Context, client *Client) error

	// GetByClientID retrieves a client by its public identifier.
	GetByClientID(ctx context.Context, clientID string) (*Client, error)

	// List returns clients ordered by creation time.
	List(ctx context.Context, limit, offset int) ([]*Client, error)

	// Update persists mutable client fields.
	Update(ctx context.Context, client *Client) error

	// Delete removes a client.
	Delete(ctx context.Context, clientID string) error
}

// CodeRepository persists authorization codes.
type CodeRepository interface {
	// Create stores a new authorization code.
	Create(ctx context.Context, code *AuthorizationCode) error

	// Exchange atomically consumes the code issued to clientID: the row is
	// locked, mint runs against it, and on success the code is deleted and
	// the minted token inserted before the transaction commits. Concurrent
	// exchanges of one code resolve to exactly one winner; losers see
	// ErrCodeNotFound. mint returning ErrCodeExpired deletes the code and
	// reports the error; any other error rolls the transaction back,
	// leaving the code in place.
	Exchange(ctx context.Context, code, clientID string, mint MintFunc) (*Token, error)

	// DeleteExpired removes codes past their expiry, returning the count.
	DeleteExpired(ctx context.Context) (int64, error)
}

// TokenRepository persists issued tokens and their blacklist entries.
type TokenRepository interface {
	// GetByAccessTokenHash retrieves a token row by access digest.
	GetByAccessTokenHash(ctx context.Context, hash string) (*Token, error)

	// GetByRefreshTokenHash retrieves a token row by refresh digest.
	GetByRefreshTokenHash(ctx context.Context, hash string) (*Token, error)

	// Rotate locks the row holding refreshTokenHash, applies rotate, and
	// writes the mutated row back in the same transaction. A missing row
	// returns ErrTokenNotFound; an error from rotate rolls back, leaving
	// the old strings valid. At most one concurrent rotation of a given
	// refresh token succeeds.
	Rotate(ctx context.Context, refreshTokenHash string, rotate RotateFunc) (*Token, error)

	// Revoke marks the token revoked and inserts the blacklist entry in a
	// single transaction. Re-revoking is a no-op, keeping revocation
	// idempotent.
	Revoke(ctx context.Context, tokenID string, entry *BlacklistEntry) error

	// DeleteExpired removes rows whose refresh expiry has passed.
	DeleteExpired(ctx context.Context) (int64, error)
}

// BlacklistRepository consults and sweeps the revocation blacklist.
type BlacklistRepository interface {
	// IsBlacklisted reports whether tokenHash has a live entry. An entry
	// past its expiry is deleted in the same transaction (lazy sweep) and
	// reported as absent.
	IsBlacklisted(ctx context.Context, tokenHash string) (bool, error)

	// DeleteExpired removes entries past their expiry, returning the count.
	DeleteExpired(ctx context.Context) (int64, error)
}
