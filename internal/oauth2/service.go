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
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/memvault/memvault/internal/audit"
	"github.com/memvault/memvault/internal/crypto"
	"github.com/memvault/memvault/internal/id"
	"github.com/memvault/memvault/internal/observability/metrics"
)

// Config carries the issuance policy. Zero values fall back to the
// protocol defaults (10 minute codes, 1 hour access, 30 day refresh).
type Config struct {
	AuthCodeTTL     time.Duration
	AccessTokenTTL  time.Duration
	RefreshTokenTTL time.Duration
	ValidScopes     []string
	RequiredScopes  []string
}

func (c *Config) withDefaults() {
	if c.AuthCodeTTL <= 0 {
		c.AuthCodeTTL = 10 * time.Minute
	}
	if c.AccessTokenTTL <= 0 {
		c.AccessTokenTTL = time.Hour
	}
	if c.RefreshTokenTTL <= 0 {
		c.RefreshTokenTTL = 30 * 24 * time.Hour
	}
	if len(c.ValidScopes) == 0 {
		c.ValidScopes = DefaultValidScopes
	}
}

// Service implements the authorization server: client registry,
// authorization code issuance, token exchange and rotation, bearer
// validation, and revocation.
type Service struct {
	clients     ClientRepository
	codes       CodeRepository
	tokens      TokenRepository
	blacklist   BlacklistRepository
	auditLogger audit.Logger
	metrics     *metrics.OAuth

	cfg Config
}

// NewService creates a new OAuth2 service.
func NewService(
	clients ClientRepository,
	codes CodeRepository,
	tokens TokenRepository,
	blacklist BlacklistRepository,
	auditLogger audit.Logger,
	oauthMetrics *metrics.OAuth,
	cfg Config,
) *Service {
	cfg.withDefaults()

	return &Service{
		clients:     clients,
		codes:       codes,
		tokens:      tokens,
		blacklist:   blacklist,
		auditLogger: auditLogger,
		metrics:     oauthMetrics,
		cfg:         cfg,
	}
}

// AuthorizeRequest represents the query parameters of an authorization
// request (RFC 6749 section 4.1.1).
type AuthorizeRequest struct {
	ResponseType        string
	ClientID            string
	RedirectURI         string
	Scope               string
	State               string
	CodeChallenge       string
	CodeChallengeMethod string
}

// TokenRequest represents the form parameters of a token request.
type TokenRequest struct {
	GrantType    string
	Code         string
	RedirectURI  string
	ClientID     string
	ClientSecret string
	CodeVerifier string
	RefreshToken string
	Scope        string
}

// TokenResponse is the success body of the token endpoint.
type TokenResponse struct {
	AccessToken  string `json:"access_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int    `json:"expires_in"`
	RefreshToken string `json:"refresh_token,omitempty"`
	Scope        string `json:"scope,omitempty"`
}

// Introspection is the body of an introspection response (RFC 7662 shape).
// When Active is false every other field is omitted so revocation state
// never leaks.
type Introspection struct {
	Active   bool   `json:"active"`
	Scope    string `json:"scope,omitempty"`
	ClientID string `json:"client_id,omitempty"`
	UserID   string `json:"user_id,omitempty"`
	Exp      int64  `json:"exp,omitempty"`
}

// ---------------------------------------------------------------------------
// Client registry
// ---------------------------------------------------------------------------

// RegisterClient validates the client metadata, generates the identifier and
// secret, and persists the client. The raw secret is returned exactly once;
// only its digest is stored.
func (s *Service) RegisterClient(ctx context.Context, client *Client) (string, error) {
	if err := s.validateClientMetadata(client); err != nil {
		return "", err
	}

	secret := crypto.GenerateSecret()

	client.ID = id.NewUUIDv7()
	client.ClientID = id.NewUUIDv7()
	client.ClientSecretHash = crypto.HashToken(secret)
	client.IsConfidential = true
	client.IsActive = true
	now := time.Now().UTC()
	client.CreatedAt = now
	client.UpdatedAt = now

	if err := s.clients.Create(ctx, client); err != nil {
		if errors.Is(err, ErrClientAlreadyExists) {
			return "", NewError(ErrClientRegistrationFailed, "client_id already exists")
		}
		return "", fmt.Errorf("failed to persist client: %w", err)
	}

	s.auditLogger.Log(ctx, audit.Event{
		Type:     audit.TypeClientRegistered,
		Resource: "client",
		Metadata: map[string]any{
			"client_id":   client.ClientID,
			"client_name": client.ClientName,
			"scopes":      strings.Join(client.AllowedScopes, " "),
		},
	})

	return secret, nil
}

// GetClient retrieves a client by its public identifier.
func (s *Service) GetClient(ctx context.Context, clientID string) (*Client, error) {
	return s.clients.GetByClientID(ctx, clientID)
}

// ListClients returns registered clients ordered by creation time.
func (s *Service) ListClients(ctx context.Context, limit, offset int) ([]*Client, error) {
	if limit <= 0 || limit > 100 {
		limit = 100
	}
	if offset < 0 {
		offset = 0
	}
	return s.clients.List(ctx, limit, offset)
}

// ClientUpdate is a partial update of client metadata. Nil fields are left
// unchanged; slices replace the stored value wholesale.
type ClientUpdate struct {
	ClientName    *string
	RedirectURIs  []string
	AllowedScopes []string
	IsActive      *bool
}

// UpdateClient applies a metadata patch and re-validates the result.
func (s *Service) UpdateClient(ctx context.Context, clientID string, upd ClientUpdate) (*Client, error) {
	client, err := s.clients.GetByClientID(ctx, clientID)
	if err != nil {
		return nil, err
	}

	if upd.ClientName != nil {
		client.ClientName = *upd.ClientName
	}
	if upd.RedirectURIs != nil {
		client.RedirectURIs = upd.RedirectURIs
	}
	if upd.AllowedScopes != nil {
		client.AllowedScopes = upd.AllowedScopes
	}
	if upd.IsActive != nil {
		client.IsActive = *upd.IsActive
	}

	if err := s.validateClientMetadata(client); err != nil {
		return nil, err
	}
	client.UpdatedAt = time.Now().UTC()

	if err := s.clients.Update(ctx, client); err != nil {
		return nil, fmt.Errorf("failed to update client: %w", err)
	}

	s.auditLogger.Log(ctx, audit.Event{
		Type:     audit.TypeClientUpdated,
		Resource: "client",
		Metadata: map[string]any{"client_id": client.ClientID},
	})

	return client, nil
}

// DeleteClient removes a client from the registry.
func (s *Service) DeleteClient(ctx context.Context, clientID string) error {
	if err := s.clients.Delete(ctx, clientID); err != nil {
		return err
	}

	s.auditLogger.Log(ctx, audit.Event{
		Type:     audit.TypeClientDeleted,
		Resource: "client",
		Metadata: map[string]any{"client_id": clientID},
	})

	return nil
}

// AuthenticateClient authenticates a confidential client by id and secret.
// The secret comparison runs in constant time over SHA-256 digests. Unknown
// and disabled clients fail with the same message as a wrong secret.
func (s *Service) AuthenticateClient(ctx context.Context, clientID, clientSecret string) (*Client, error) {
	client, err := s.clients.GetByClientID(ctx, clientID)
	if err != nil {
		if errors.Is(err, ErrClientNotFound) {
			return nil, NewError(ErrInvalidClient, "invalid client credentials")
		}
		return nil, fmt.Errorf("failed to load client: %w", err)
	}

	if !client.IsActive {
		return nil, NewError(ErrInvalidClient, "invalid client credentials")
	}
	if !client.IsConfidential {
		return nil, NewError(ErrUnauthorizedClient, "only confidential clients may authenticate")
	}
	if clientSecret == "" {
		return nil, NewError(ErrInvalidClient, "client_secret is required")
	}

	if !crypto.Equal(crypto.HashToken(clientSecret), client.ClientSecretHash) {
		return nil, NewError(ErrInvalidClient, "invalid client credentials")
	}

	return client, nil
}

func (s *Service) validateClientMetadata(client *Client) error {
	if strings.TrimSpace(client.ClientName) == "" {
		return NewError(ErrInvalidRequest, "client_name is required")
	}
	if len(client.RedirectURIs) == 0 {
		return NewError(ErrInvalidRequest, "at least one redirect_uri is required")
	}
	for _, raw := range client.RedirectURIs {
		u, err := url.Parse(raw)
		if err != nil || !u.IsAbs() || u.Host == "" {
			return NewError(ErrInvalidRequest, fmt.Sprintf("redirect_uri %q is not an absolute URI", raw))
		}
		if u.Fragment != "" {
			return NewError(ErrInvalidRequest, fmt.Sprintf("redirect_uri %q must not contain a fragment", raw))
		}
	}
	if len(client.AllowedScopes) == 0 {
		return NewError(ErrInvalidRequest, "at least one allowed scope is required")
	}
	for _, scope := range client.AllowedScopes {
		if !contains(s.cfg.ValidScopes, scope) {
			return NewError(ErrInvalidScope, fmt.Sprintf("scope %q is not recognized", scope))
		}
	}
	for _, required := range s.cfg.RequiredScopes {
		if !contains(client.AllowedScopes, required) {
			return NewError(ErrInvalidScope, fmt.Sprintf("allowed_scopes must include required scope %q", required))
		}
	}
	return nil
}

// ---------------------------------------------------------------------------
// Authorization endpoint
// ---------------------------------------------------------------------------

// ValidateAuthorizeRequest runs the authorization request checks in strict
// order; the first failure terminates. The returned protocol error carries a
// redirect target only when the client resolved and the redirect URI matched
// a registered one, so the transport never redirects to an unvalidated URI.
func (s *Service) ValidateAuthorizeRequest(ctx context.Context, req *AuthorizeRequest) (*Client, error) {
	// Establish redirect trust before evaluating the ordered rules: the
	// transport for a failure depends on it regardless of which rule fired.
	client, lookupErr := s.clients.GetByClientID(ctx, req.ClientID)
	if lookupErr != nil && !errors.Is(lookupErr, ErrClientNotFound) {
		return nil, fmt.Errorf("failed to load client: %w", lookupErr)
	}
	trusted := lookupErr == nil && client.IsActive && client.ValidateRedirectURI(req.RedirectURI)

	fail := func(code, description string) error {
		e := NewError(code, description).WithState(req.State)
		if trusted {
			e.RedirectURI = req.RedirectURI
		}
		s.metrics.AuthorizeRequest(ctx, "rejected")
		return e
	}

	if req.ResponseType != "code" {
		return nil, fail(ErrUnsupportedResponseType, "response_type must be 'code'")
	}
	if lookupErr != nil {
		return nil, fail(ErrInvalidClient, "unknown client_id")
	}
	if !client.IsActive {
		return nil, fail(ErrInvalidClient, "client is disabled")
	}
	if !client.ValidateRedirectURI(req.RedirectURI) {
		return nil, fail(ErrInvalidRequest, "redirect_uri is not registered for this client")
	}
	if strings.TrimSpace(req.Scope) == "" {
		return nil, fail(ErrInvalidScope, "scope is required")
	}
	if !client.ValidateScope(req.Scope) {
		return nil, fail(ErrInvalidScope, "requested scope exceeds the client's allowed scopes")
	}
	if missing := MissingScopes(req.Scope, s.cfg.RequiredScopes); len(missing) > 0 {
		return nil, fail(ErrInvalidScope, "scope must include: "+strings.Join(missing, " "))
	}
	if req.CodeChallenge == "" {
		return nil, fail(ErrInvalidRequest, "code_challenge is required")
	}
	switch req.CodeChallengeMethod {
	case "", CodeChallengeMethodS256:
		// Absent defaults to S256.
	default:
		return nil, fail(ErrInvalidRequest, "code_challenge_method must be S256")
	}

	return client, nil
}

// CreateAuthorizationCode mints and persists a single-use code after consent
// was granted (RFC 6749 section 4.1.2).
func (s *Service) CreateAuthorizationCode(ctx context.Context, client *Client, userID string, req *AuthorizeRequest) (*AuthorizationCode, error) {
	now := time.Now().UTC()
	code := &AuthorizationCode{
		ID:                  id.NewUUIDv7(),
		Code:                crypto.GenerateToken(),
		ClientID:            client.ClientID,
		UserID:              userID,
		RedirectURI:         req.RedirectURI,
		Scope:               NormalizeScope(req.Scope),
		CodeChallenge:       req.CodeChallenge,
		CodeChallengeMethod: CodeChallengeMethodS256,
		ExpiresAt:           now.Add(s.cfg.AuthCodeTTL),
		CreatedAt:           now,
	}

	if err := s.codes.Create(ctx, code); err != nil {
		return nil, fmt.Errorf("failed to persist authorization code: %w", err)
	}

	s.metrics.AuthorizeRequest(ctx, "code_issued")
	s.auditLogger.Log(ctx, audit.Event{
		Type:     audit.TypeCodeIssued,
		ActorID:  userID,
		Resource: "authorization_code",
		Metadata: map[string]any{
			"client_id": client.ClientID,
			"scope":     code.Scope,
		},
	})

	return code, nil
}

// ---------------------------------------------------------------------------
// Token endpoint
// ---------------------------------------------------------------------------

// ExchangeCodeForToken implements the authorization_code grant (RFC 6749
// section 4.1.3) with mandatory S256 PKCE. Code consumption and token
// insertion happen inside one store transaction: concurrent exchanges of the
// same code yield exactly one token pair.
func (s *Service) ExchangeCodeForToken(ctx context.Context, req *TokenRequest) (*TokenResponse, error) {
	client, err := s.AuthenticateClient(ctx, req.ClientID, req.ClientSecret)
	if err != nil {
		return nil, s.tokenFailure(ctx, err)
	}

	if req.Code == "" || req.RedirectURI == "" || req.CodeVerifier == "" {
		return nil, s.tokenFailure(ctx, NewError(ErrInvalidRequest, "code, redirect_uri and code_verifier are required"))
	}

	var pair TokenPair
	token, err := s.codes.Exchange(ctx, req.Code, client.ClientID, func(code *AuthorizationCode) (*Token, error) {
		if code.IsExpired() {
			return nil, ErrCodeExpired
		}
		if code.RedirectURI != req.RedirectURI {
			return nil, NewError(ErrInvalidGrant, "redirect_uri does not match the authorization request")
		}
		if !crypto.VerifyS256(req.CodeVerifier, code.CodeChallenge) {
			return nil, NewError(ErrInvalidGrant, "PKCE verification failed")
		}

		pair.AccessToken = crypto.GenerateToken()
		pair.RefreshToken = crypto.GenerateToken()
		now := time.Now().UTC()
		return &Token{
			ID:                    id.NewUUIDv7(),
			AccessTokenHash:       crypto.HashToken(pair.AccessToken),
			RefreshTokenHash:      crypto.HashToken(pair.RefreshToken),
			ClientID:              client.ClientID,
			UserID:                code.UserID,
			Scope:                 code.Scope,
			AccessTokenExpiresAt:  now.Add(s.cfg.AccessTokenTTL),
			RefreshTokenExpiresAt: now.Add(s.cfg.RefreshTokenTTL),
			CreatedAt:             now,
			UpdatedAt:             now,
		}, nil
	})
	if err != nil {
		switch {
		case errors.Is(err, ErrCodeNotFound):
			return nil, s.tokenFailure(ctx, NewError(ErrInvalidGrant, "authorization code not found"))
		case errors.Is(err, ErrCodeExpired):
			return nil, s.tokenFailure(ctx, NewError(ErrInvalidGrant, "authorization code expired"))
		default:
			return nil, s.tokenFailure(ctx, err)
		}
	}

	s.metrics.TokenIssued(ctx, "authorization_code")
	s.auditLogger.Log(ctx, audit.Event{
		Type:     audit.TypeTokenIssued,
		ActorID:  token.UserID,
		Resource: "token",
		Metadata: map[string]any{
			"client_id": client.ClientID,
			"scope":     token.Scope,
		},
	})

	return &TokenResponse{
		AccessToken:  pair.AccessToken,
		TokenType:    TokenTypeBearer,
		ExpiresIn:    int(s.cfg.AccessTokenTTL.Seconds()),
		RefreshToken: pair.RefreshToken,
		Scope:        token.Scope,
	}, nil
}

// RefreshAccessToken implements the refresh_token grant (RFC 6749 section 6)
// with rotation: both strings are overwritten in place inside one store
// transaction, so the replaced refresh token never authenticates again. A
// failed rotation rolls back and leaves the prior refresh token valid.
func (s *Service) RefreshAccessToken(ctx context.Context, req *TokenRequest) (*TokenResponse, error) {
	client, err := s.AuthenticateClient(ctx, req.ClientID, req.ClientSecret)
	if err != nil {
		return nil, s.tokenFailure(ctx, err)
	}

	if req.RefreshToken == "" {
		return nil, s.tokenFailure(ctx, NewError(ErrInvalidRequest, "refresh_token is required"))
	}

	var pair TokenPair
	token, err := s.tokens.Rotate(ctx, crypto.HashToken(req.RefreshToken), func(t *Token) error {
		if t.ClientID != client.ClientID {
			return NewError(ErrInvalidGrant, "refresh token was not issued to this client")
		}
		if t.IsRevoked {
			return NewError(ErrInvalidGrant, "refresh token revoked")
		}
		if t.RefreshTokenExpired() {
			return NewError(ErrInvalidGrant, "refresh token expired")
		}
		if req.Scope != "" {
			if !ScopeSubset(req.Scope, t.Scope) {
				return NewError(ErrInvalidScope, "requested scope exceeds the granted scope")
			}
			t.Scope = NormalizeScope(req.Scope)
		}

		pair.AccessToken = crypto.GenerateToken()
		pair.RefreshToken = crypto.GenerateToken()
		now := time.Now().UTC()
		t.AccessTokenHash = crypto.HashToken(pair.AccessToken)
		t.RefreshTokenHash = crypto.HashToken(pair.RefreshToken)
		t.AccessTokenExpiresAt = now.Add(s.cfg.AccessTokenTTL)
		t.RefreshTokenExpiresAt = now.Add(s.cfg.RefreshTokenTTL)
		t.UpdatedAt = now
		return nil
	})
	if err != nil {
		if errors.Is(err, ErrTokenNotFound) {
			return nil, s.tokenFailure(ctx, NewError(ErrInvalidGrant, "refresh token not found"))
		}
		return nil, s.tokenFailure(ctx, err)
	}

	s.metrics.TokenIssued(ctx, "refresh_token")
	s.auditLogger.Log(ctx, audit.Event{
		Type:     audit.TypeTokenRefreshed,
		ActorID:  token.UserID,
		Resource: "token",
		Metadata: map[string]any{
			"client_id": client.ClientID,
			"scope":     token.Scope,
		},
	})

	return &TokenResponse{
		AccessToken:  pair.AccessToken,
		TokenType:    TokenTypeBearer,
		ExpiresIn:    int(s.cfg.AccessTokenTTL.Seconds()),
		RefreshToken: pair.RefreshToken,
		Scope:        token.Scope,
	}, nil
}

// tokenFailure counts a token endpoint failure and passes the error through.
func (s *Service) tokenFailure(ctx context.Context, err error) error {
	if e, ok := AsError(err); ok {
		s.metrics.TokenFailure(ctx, e.Code)
	} else {
		s.metrics.TokenFailure(ctx, ErrServerError)
	}
	return err
}

// ---------------------------------------------------------------------------
// Bearer validation, revocation, introspection
// ---------------------------------------------------------------------------

// ValidateAccessToken resolves a presented bearer string. It fails with
// ErrTokenNotFound, ErrTokenRevoked, or ErrTokenExpired; the transport maps
// all three to 401 without distinguishing them to the caller.
func (s *Service) ValidateAccessToken(ctx context.Context, rawToken string) (*Token, error) {
	hash := crypto.HashToken(rawToken)

	token, err := s.tokens.GetByAccessTokenHash(ctx, hash)
	if err != nil {
		if errors.Is(err, ErrTokenNotFound) {
			return nil, ErrTokenNotFound
		}
		return nil, fmt.Errorf("failed to load token: %w", err)
	}

	if token.IsRevoked {
		return nil, ErrTokenRevoked
	}
	if token.AccessTokenExpired() {
		return nil, ErrTokenExpired
	}

	// The blacklist catches revocations that raced this lookup; entries past
	// their expiry are swept inside the check.
	blacklisted, err := s.blacklist.IsBlacklisted(ctx, hash)
	if err != nil {
		return nil, fmt.Errorf("failed to consult blacklist: %w", err)
	}
	if blacklisted {
		return nil, ErrTokenRevoked
	}

	return token, nil
}

// RevokeToken revokes the presented token string (access or refresh).
// Unknown strings succeed silently so the endpoint stays idempotent and
// does not reveal token existence.
func (s *Service) RevokeToken(ctx context.Context, rawToken, reason string) error {
	hash := crypto.HashToken(rawToken)

	token, expiresAt, err := s.lookupByEitherHash(ctx, hash)
	if err != nil {
		if errors.Is(err, ErrTokenNotFound) {
			return nil
		}
		return err
	}

	entry := &BlacklistEntry{
		TokenHash:     hash,
		BlacklistedAt: time.Now().UTC(),
		ExpiresAt:     expiresAt,
		Reason:        reason,
	}
	if err := s.tokens.Revoke(ctx, token.ID, entry); err != nil {
		return fmt.Errorf("failed to revoke token: %w", err)
	}

	s.metrics.TokenRevoked(ctx)
	s.auditLogger.Log(ctx, audit.Event{
		Type:     audit.TypeTokenRevoked,
		ActorID:  token.UserID,
		Resource: "token",
		Metadata: map[string]any{
			"client_id": token.ClientID,
			"reason":    reason,
		},
	})

	return nil
}

// Introspect reports the state of a presented token string. Any validation
// failure yields {active: false} with no further detail.
func (s *Service) Introspect(ctx context.Context, rawToken string) (*Introspection, error) {
	inactive := &Introspection{Active: false}

	hash := crypto.HashToken(rawToken)
	token, expiresAt, err := s.lookupByEitherHash(ctx, hash)
	if err != nil {
		if errors.Is(err, ErrTokenNotFound) {
			return inactive, nil
		}
		return nil, err
	}

	if token.IsRevoked || time.Now().After(expiresAt) {
		return inactive, nil
	}

	blacklisted, err := s.blacklist.IsBlacklisted(ctx, hash)
	if err != nil {
		return nil, fmt.Errorf("failed to consult blacklist: %w", err)
	}
	if blacklisted {
		return inactive, nil
	}

	return &Introspection{
		Active:   true,
		Scope:    token.Scope,
		ClientID: token.ClientID,
		UserID:   token.UserID,
		Exp:      expiresAt.Unix(),
	}, nil
}

// lookupByEitherHash finds the token row holding hash as either its access
// or refresh digest, along with the expiry of the matched string.
func (s *Service) lookupByEitherHash(ctx context.Context, hash string) (*Token, time.Time, error) {
	token, err := s.tokens.GetByAccessTokenHash(ctx, hash)
	if err == nil {
		return token, token.AccessTokenExpiresAt, nil
	}
	if !errors.Is(err, ErrTokenNotFound) {
		return nil, time.Time{}, fmt.Errorf("failed to load token: %w", err)
	}

	token, err = s.tokens.GetByRefreshTokenHash(ctx, hash)
	if err == nil {
		return token, token.RefreshTokenExpiresAt, nil
	}
	if !errors.Is(err, ErrTokenNotFound) {
		return nil, time.Time{}, fmt.Errorf("failed to load token: %w", err)
	}
	return nil, time.Time{}, ErrTokenNotFound
}

// ---------------------------------------------------------------------------
// Maintenance
// ---------------------------------------------------------------------------

// SweepStats counts the rows removed by one maintenance sweep.
type SweepStats struct {
	Codes            int64
	Tokens           int64
	BlacklistEntries int64
}

// SweepExpired deletes expired authorization codes, tokens whose refresh
// expiry has passed, and blacklist entries past their expiry.
func (s *Service) SweepExpired(ctx context.Context) (SweepStats, error) {
	var stats SweepStats
	var err error

	if stats.Codes, err = s.codes.DeleteExpired(ctx); err != nil {
		return stats, fmt.Errorf("failed to sweep authorization codes: %w", err)
	}
	if stats.Tokens, err = s.tokens.DeleteExpired(ctx); err != nil {
		return stats, fmt.Errorf("failed to sweep tokens: %w", err)
	}
	if stats.BlacklistEntries, err = s.blacklist.DeleteExpired(ctx); err != nil {
		return stats, fmt.Errorf("failed to sweep blacklist: %w", err)
	}

	return stats, nil
}

func contains(set []string, want string) bool {
	for _, s := range set {
		if s == want {
			return true
		}
	}
	return false
}
