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
	"testing"
	"time"

	"github.com/memvault/memvault/internal/audit"
	"github.com/memvault/memvault/internal/crypto"
)

// Mock repos for OAuth2. The mocks reproduce the store's transactional
// contracts: Exchange deletes the code and inserts the token together,
// Rotate writes back only when the callback succeeds, Revoke inserts the
// blacklist entry alongside the flag.

type MockClientRepo struct {
	clients map[string]*Client
}

func NewMockClientRepo() *MockClientRepo {
	return &MockClientRepo{clients: make(map[string]*Client)}
}

func (m *MockClientRepo) Create(ctx context.Context, client *Client) error {
	if _, ok := m.clients[client.ClientID]; ok {
		return ErrClientAlreadyExists
	}
	cp := *client
	m.clients[client.ClientID] = &cp
	return nil
}

func (m *MockClientRepo) GetByClientID(ctx context.Context, clientID string) (*Client, error) {
	c, ok := m.clients[clientID]
	if !ok {
		return nil, ErrClientNotFound
	}
	cp := *c
	return &cp, nil
}

func (m *MockClientRepo) List(ctx context.Context, limit, offset int) ([]*Client, error) {
	var out []*Client
	for _, c := range m.clients {
		cp := *c
		out = append(out, &cp)
	}
	if offset >= len(out) {
		return nil, nil
	}
	out = out[offset:]
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *MockClientRepo) Update(ctx context.Context, client *Client) error {
	if _, ok := m.clients[client.ClientID]; !ok {
		return ErrClientNotFound
	}
	cp := *client
	m.clients[client.ClientID] = &cp
	return nil
}

func (m *MockClientRepo) Delete(ctx context.Context, clientID string) error {
	if _, ok := m.clients[clientID]; !ok {
		return ErrClientNotFound
	}
	delete(m.clients, clientID)
	return nil
}

type MockBlacklistRepo struct {
	entries map[string]*BlacklistEntry
}

func NewMockBlacklistRepo() *MockBlacklistRepo {
	return &MockBlacklistRepo{entries: make(map[string]*BlacklistEntry)}
}

func (m *MockBlacklistRepo) IsBlacklisted(ctx context.Context, tokenHash string) (bool, error) {
	e, ok := m.entries[tokenHash]
	if !ok {
		return false, nil
	}
	if e.Expired() {
		delete(m.entries, tokenHash)
		return false, nil
	}
	return true, nil
}

func (m *MockBlacklistRepo) DeleteExpired(ctx context.Context) (int64, error) {
	var n int64
	for hash, e := range m.entries {
		if e.Expired() {
			delete(m.entries, hash)
			n++
		}
	}
	return n, nil
}

type MockTokenRepo struct {
	tokens    map[string]*Token
	blacklist *MockBlacklistRepo
}

func NewMockTokenRepo(blacklist *MockBlacklistRepo) *MockTokenRepo {
	return &MockTokenRepo{tokens: make(map[string]*Token), blacklist: blacklist}
}

func (m *MockTokenRepo) insert(t *Token) {
	cp := *t
	m.tokens[t.ID] = &cp
}

func (m *MockTokenRepo) GetByAccessTokenHash(ctx context.Context, hash string) (*Token, error) {
	for _, t := range m.tokens {
		if t.AccessTokenHash == hash {
			cp := *t
			return &cp, nil
		}
	}
	return nil, ErrTokenNotFound
}

func (m *MockTokenRepo) GetByRefreshTokenHash(ctx context.Context, hash string) (*Token, error) {
	for _, t := range m.tokens {
		if t.RefreshTokenHash == hash {
			cp := *t
			return &cp, nil
		}
	}
	return nil, ErrTokenNotFound
}

func (m *MockTokenRepo) Rotate(ctx context.Context, refreshTokenHash string, rotate RotateFunc) (*Token, error) {
	for _, t := range m.tokens {
		if t.RefreshTokenHash == refreshTokenHash {
			cp := *t
			if err := rotate(&cp); err != nil {
				return nil, err
			}
			m.tokens[cp.ID] = &cp
			out := cp
			return &out, nil
		}
	}
	return nil, ErrTokenNotFound
}

func (m *MockTokenRepo) Revoke(ctx context.Context, tokenID string, entry *BlacklistEntry) error {
	t, ok := m.tokens[tokenID]
	if !ok {
		return ErrTokenNotFound
	}
	if !t.IsRevoked {
		now := time.Now()
		t.IsRevoked = true
		t.RevokedAt = &now
	}
	if _, exists := m.blacklist.entries[entry.TokenHash]; !exists {
		m.blacklist.entries[entry.TokenHash] = entry
	}
	return nil
}

func (m *MockTokenRepo) DeleteExpired(ctx context.Context) (int64, error) {
	var n int64
	for id, t := range m.tokens {
		if t.RefreshTokenExpired() {
			delete(m.tokens, id)
			n++
		}
	}
	return n, nil
}

type MockCodeRepo struct {
	codes  map[string]*AuthorizationCode
	tokens *MockTokenRepo
}

func NewMockCodeRepo(tokens *MockTokenRepo) *MockCodeRepo {
	return &MockCodeRepo{codes: make(map[string]*AuthorizationCode), tokens: tokens}
}

func (m *MockCodeRepo) Create(ctx context.Context, code *AuthorizationCode) error {
	cp := *code
	m.codes[code.Code] = &cp
	return nil
}

func (m *MockCodeRepo) Exchange(ctx context.Context, code, clientID string, mint MintFunc) (*Token, error) {
	c, ok := m.codes[code]
	if !ok || c.ClientID != clientID {
		return nil, ErrCodeNotFound
	}
	token, err := mint(c)
	if err != nil {
		if errors.Is(err, ErrCodeExpired) {
			delete(m.codes, code)
		}
		return nil, err
	}
	delete(m.codes, code)
	m.tokens.insert(token)
	cp := *token
	return &cp, nil
}

func (m *MockCodeRepo) DeleteExpired(ctx context.Context) (int64, error) {
	var n int64
	for code, c := range m.codes {
		if c.IsExpired() {
			delete(m.codes, code)
			n++
		}
	}
	return n, nil
}

type testEnv struct {
	service   *Service
	clients   *MockClientRepo
	codes     *MockCodeRepo
	tokens    *MockTokenRepo
	blacklist *MockBlacklistRepo
}

const (
	testClientID     = "client-1"
	testClientSecret = "test-client-secret"
	testRedirectURI  = "https://app.example.com/callback"
	testVerifier     = "dBjftJeZ4CVP-mB92K27uhbUJU1p1r_wW1gFWFOEjXk"
)

func newTestEnv() *testEnv {
	blacklist := NewMockBlacklistRepo()
	tokens := NewMockTokenRepo(blacklist)
	codes := NewMockCodeRepo(tokens)
	clients := NewMockClientRepo()

	clients.clients[testClientID] = &Client{
		ID:               "row-1",
		ClientID:         testClientID,
		ClientSecretHash: crypto.HashToken(testClientSecret),
		ClientName:       "Test App",
		RedirectURIs:     []string{testRedirectURI},
		AllowedScopes:    []string{ScopeMemoriesRead, ScopeMemoriesWrite, ScopeOfflineAccess},
		IsConfidential:   true,
		IsActive:         true,
	}

	svc := NewService(clients, codes, tokens, blacklist, audit.NewSlogLogger(), nil, Config{
		AuthCodeTTL:     10 * time.Minute,
		AccessTokenTTL:  time.Hour,
		RefreshTokenTTL: 30 * 24 * time.Hour,
	})

	return &testEnv{service: svc, clients: clients, codes: codes, tokens: tokens, blacklist: blacklist}
}

// issueCode walks the authorize path for the fixture client and returns a
// fresh code bound to the RFC 7636 test verifier.
func issueCode(t *testing.T, env *testEnv, scope string) *AuthorizationCode {
	t.Helper()
	ctx := context.Background()

	req := &AuthorizeRequest{
		ResponseType:        "code",
		ClientID:            testClientID,
		RedirectURI:         testRedirectURI,
		Scope:               scope,
		State:               "xyz",
		CodeChallenge:       crypto.S256Challenge(testVerifier),
		CodeChallengeMethod: CodeChallengeMethodS256,
	}
	client, err := env.service.ValidateAuthorizeRequest(ctx, req)
	if err != nil {
		t.Fatalf("authorize validation failed: %v", err)
	}
	code, err := env.service.CreateAuthorizationCode(ctx, client, "user-1", req)
	if err != nil {
		t.Fatalf("code issuance failed: %v", err)
	}
	return code
}

// exchange performs a standard code exchange for the fixture client.
func exchange(env *testEnv, code, verifier string) (*TokenResponse, error) {
	return env.service.ExchangeCodeForToken(context.Background(), &TokenRequest{
		GrantType:    "authorization_code",
		Code:         code,
		RedirectURI:  testRedirectURI,
		ClientID:     testClientID,
		ClientSecret: testClientSecret,
		CodeVerifier: verifier,
	})
}

// TestPurpose: Validates client registration returns a one-time secret and stores only its digest.
// Scope: Unit Test
// Security: Secrets at rest (hashing)
// Expected: Raw secret returned once, digest persisted, registration audited.
func TestOAuth2_Service_RegisterClient(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()

	client := &Client{
		ClientName:    "New App",
		RedirectURIs:  []string{"https://new.example.com/cb"},
		AllowedScopes: []string{ScopeMemoriesRead},
	}
	secret, err := env.service.RegisterClient(ctx, client)
	if err != nil {
		t.Fatalf("RegisterClient failed: %v", err)
	}
	if secret == "" {
		t.Fatal("no secret returned")
	}
	if client.ClientID == "" || client.ID == "" {
		t.Error("identifiers not assigned")
	}

	stored, err := env.clients.GetByClientID(ctx, client.ClientID)
	if err != nil {
		t.Fatalf("client not persisted: %v", err)
	}
	if stored.ClientSecretHash == secret {
		t.Error("raw secret stored instead of digest")
	}
	if stored.ClientSecretHash != crypto.HashToken(secret) {
		t.Error("stored digest does not match the returned secret")
	}
	if !stored.IsConfidential || !stored.IsActive {
		t.Error("new client must be confidential and active")
	}
}

// TestPurpose: Validates client metadata rules at registration.
// Scope: Unit Test
// Security: Redirect URI and scope policy enforcement
// Expected: invalid_request / invalid_scope for each malformed input.
func TestOAuth2_Service_RegisterClient_Validation(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()

	tests := []struct {
		name     string
		client   *Client
		wantCode string
	}{
		{
			"missing name",
			&Client{RedirectURIs: []string{"https://a.example.com/cb"}, AllowedScopes: []string{ScopeMemoriesRead}},
			ErrInvalidRequest,
		},
		{
			"no redirect uris",
			&Client{ClientName: "App", AllowedScopes: []string{ScopeMemoriesRead}},
			ErrInvalidRequest,
		},
		{
			"relative redirect uri",
			&Client{ClientName: "App", RedirectURIs: []string{"/cb"}, AllowedScopes: []string{ScopeMemoriesRead}},
			ErrInvalidRequest,
		},
		{
			"fragment in redirect uri",
			&Client{ClientName: "App", RedirectURIs: []string{"https://a.example.com/cb#frag"}, AllowedScopes: []string{ScopeMemoriesRead}},
			ErrInvalidRequest,
		},
		{
			"no scopes",
			&Client{ClientName: "App", RedirectURIs: []string{"https://a.example.com/cb"}},
			ErrInvalidRequest,
		},
		{
			"unknown scope",
			&Client{ClientName: "App", RedirectURIs: []string{"https://a.example.com/cb"}, AllowedScopes: []string{"galaxy:admin"}},
			ErrInvalidScope,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := env.service.RegisterClient(ctx, tt.client)
			oe, ok := AsError(err)
			if !ok {
				t.Fatalf("expected *Error, got %v", err)
			}
			if oe.Code != tt.wantCode {
				t.Errorf("error code = %s, want %s", oe.Code, tt.wantCode)
			}
		})
	}
}

// TestPurpose: Validates confidential client authentication.
// Scope: Unit Test
// Security: Client credential verification, uniform failure responses
// Expected: Success only for the right id/secret pair; identical invalid_client otherwise.
func TestOAuth2_Service_AuthenticateClient(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()

	if _, err := env.service.AuthenticateClient(ctx, testClientID, testClientSecret); err != nil {
		t.Fatalf("valid credentials rejected: %v", err)
	}

	for name, creds := range map[string][2]string{
		"wrong secret":   {testClientID, "wrong"},
		"unknown client": {"ghost", testClientSecret},
		"empty secret":   {testClientID, ""},
	} {
		_, err := env.service.AuthenticateClient(ctx, creds[0], creds[1])
		oe, ok := AsError(err)
		if !ok || oe.Code != ErrInvalidClient {
			t.Errorf("%s: expected invalid_client, got %v", name, err)
		}
	}

	env.clients.clients[testClientID].IsActive = false
	_, err := env.service.AuthenticateClient(ctx, testClientID, testClientSecret)
	oe, ok := AsError(err)
	if !ok || oe.Code != ErrInvalidClient {
		t.Errorf("disabled client: expected invalid_client, got %v", err)
	}
}

// TestPurpose: Validates the ordered authorize checks and the redirect trust rule.
// Scope: Unit Test
// Security: Open-redirect prevention (RFC 6749 section 4.1.2.1)
// Expected: Errors carry a redirect target only after client and redirect_uri validated.
func TestOAuth2_Service_ValidateAuthorizeRequest(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()

	base := func() *AuthorizeRequest {
		return &AuthorizeRequest{
			ResponseType:        "code",
			ClientID:            testClientID,
			RedirectURI:         testRedirectURI,
			Scope:               ScopeMemoriesRead,
			State:               "state-1",
			CodeChallenge:       crypto.S256Challenge(testVerifier),
			CodeChallengeMethod: CodeChallengeMethodS256,
		}
	}

	tests := []struct {
		name         string
		mutate       func(*AuthorizeRequest)
		wantCode     string
		wantRedirect bool
	}{
		{"token response type", func(r *AuthorizeRequest) { r.ResponseType = "token" }, ErrUnsupportedResponseType, true},
		{"unknown client", func(r *AuthorizeRequest) { r.ClientID = "ghost" }, ErrInvalidClient, false},
		{"unregistered redirect uri", func(r *AuthorizeRequest) { r.RedirectURI = "https://evil.example.com/cb" }, ErrInvalidRequest, false},
		{"empty scope", func(r *AuthorizeRequest) { r.Scope = "" }, ErrInvalidScope, true},
		{"scope beyond allowed", func(r *AuthorizeRequest) { r.Scope = ScopeMemoriesRead + " " + ScopeMemoriesDelete }, ErrInvalidScope, true},
		{"missing code challenge", func(r *AuthorizeRequest) { r.CodeChallenge = "" }, ErrInvalidRequest, true},
		{"plain challenge method", func(r *AuthorizeRequest) { r.CodeChallengeMethod = "plain" }, ErrInvalidRequest, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := base()
			tt.mutate(req)
			_, err := env.service.ValidateAuthorizeRequest(ctx, req)
			oe, ok := AsError(err)
			if !ok {
				t.Fatalf("expected *Error, got %v", err)
			}
			if oe.Code != tt.wantCode {
				t.Errorf("error code = %s, want %s", oe.Code, tt.wantCode)
			}
			if got := oe.RedirectURI != ""; got != tt.wantRedirect {
				t.Errorf("redirect carried = %v, want %v", got, tt.wantRedirect)
			}
			if oe.State != "state-1" {
				t.Errorf("state = %q, want state-1", oe.State)
			}
		})
	}

	// Absent method defaults to S256.
	req := base()
	req.CodeChallengeMethod = ""
	if _, err := env.service.ValidateAuthorizeRequest(ctx, req); err != nil {
		t.Errorf("absent code_challenge_method rejected: %v", err)
	}
}

// TestPurpose: Validates the full code-for-token exchange with PKCE.
// Scope: Unit Test
// Security: OAuth2 Authorization Code Grant (RFC 6749 section 4.1.3, RFC 7636)
// Expected: Bearer pair issued, digests stored, raw strings never persisted.
func TestOAuth2_Service_ExchangeCodeForToken_Success(t *testing.T) {
	env := newTestEnv()
	code := issueCode(t, env, ScopeMemoriesRead+" "+ScopeOfflineAccess)

	resp, err := exchange(env, code.Code, testVerifier)
	if err != nil {
		t.Fatalf("exchange failed: %v", err)
	}
	if resp.TokenType != TokenTypeBearer {
		t.Errorf("token_type = %q, want bearer", resp.TokenType)
	}
	if resp.ExpiresIn != 3600 {
		t.Errorf("expires_in = %d, want 3600", resp.ExpiresIn)
	}
	if resp.AccessToken == "" || resp.RefreshToken == "" {
		t.Fatal("token strings missing")
	}
	if resp.Scope != ScopeMemoriesRead+" "+ScopeOfflineAccess {
		t.Errorf("scope = %q", resp.Scope)
	}

	stored, err := env.tokens.GetByAccessTokenHash(context.Background(), crypto.HashToken(resp.AccessToken))
	if err != nil {
		t.Fatalf("token row not found by access digest: %v", err)
	}
	if stored.AccessTokenHash == resp.AccessToken || stored.RefreshTokenHash == resp.RefreshToken {
		t.Error("raw token string persisted")
	}
	if stored.UserID != "user-1" || stored.ClientID != testClientID {
		t.Errorf("token row = %+v", stored)
	}
}

// TestPurpose: Validates single-use enforcement for authorization codes.
// Scope: Unit Test
// Security: Replay prevention for codes
// Expected: Second exchange of the same code fails with invalid_grant.
func TestOAuth2_Service_ExchangeCode_SingleUse(t *testing.T) {
	env := newTestEnv()
	code := issueCode(t, env, ScopeMemoriesRead)

	if _, err := exchange(env, code.Code, testVerifier); err != nil {
		t.Fatalf("first exchange failed: %v", err)
	}
	_, err := exchange(env, code.Code, testVerifier)
	oe, ok := AsError(err)
	if !ok || oe.Code != ErrInvalidGrant {
		t.Errorf("replayed code: expected invalid_grant, got %v", err)
	}
}

// TestPurpose: Validates PKCE verifier and redirect_uri binding at exchange.
// Scope: Unit Test
// Security: Code interception defense (RFC 7636)
// Expected: invalid_grant for wrong verifier or mismatched redirect_uri.
func TestOAuth2_Service_ExchangeCode_BindingFailures(t *testing.T) {
	env := newTestEnv()
	code := issueCode(t, env, ScopeMemoriesRead)

	_, err := exchange(env, code.Code, "wrong-verifier-wrong-verifier-wrong-verifier")
	oe, ok := AsError(err)
	if !ok || oe.Code != ErrInvalidGrant {
		t.Errorf("wrong verifier: expected invalid_grant, got %v", err)
	}

	_, err = env.service.ExchangeCodeForToken(context.Background(), &TokenRequest{
		GrantType:    "authorization_code",
		Code:         code.Code,
		RedirectURI:  "https://evil.example.com/cb",
		ClientID:     testClientID,
		ClientSecret: testClientSecret,
		CodeVerifier: testVerifier,
	})
	oe, ok = AsError(err)
	if !ok || oe.Code != ErrInvalidGrant {
		t.Errorf("redirect mismatch: expected invalid_grant, got %v", err)
	}

	// A code issued to one client cannot be redeemed by another.
	other := &Client{
		ClientName:    "Other App",
		RedirectURIs:  []string{testRedirectURI},
		AllowedScopes: []string{ScopeMemoriesRead},
	}
	otherSecret, err := env.service.RegisterClient(context.Background(), other)
	if err != nil {
		t.Fatalf("second client registration failed: %v", err)
	}
	_, err = env.service.ExchangeCodeForToken(context.Background(), &TokenRequest{
		GrantType:    "authorization_code",
		Code:         code.Code,
		RedirectURI:  testRedirectURI,
		ClientID:     other.ClientID,
		ClientSecret: otherSecret,
		CodeVerifier: testVerifier,
	})
	oe, ok = AsError(err)
	if !ok || oe.Code != ErrInvalidGrant {
		t.Errorf("cross-client redemption: expected invalid_grant, got %v", err)
	}
}

// TestPurpose: Validates expired codes are rejected and burned.
// Scope: Unit Test
// Security: Code lifetime enforcement
// Expected: invalid_grant, and the expired row is gone afterwards.
func TestOAuth2_Service_ExchangeCode_Expired(t *testing.T) {
	env := newTestEnv()
	code := issueCode(t, env, ScopeMemoriesRead)
	env.codes.codes[code.Code].ExpiresAt = time.Now().Add(-time.Minute)

	_, err := exchange(env, code.Code, testVerifier)
	oe, ok := AsError(err)
	if !ok || oe.Code != ErrInvalidGrant {
		t.Errorf("expired code: expected invalid_grant, got %v", err)
	}
	if _, exists := env.codes.codes[code.Code]; exists {
		t.Error("expired code not deleted on rejection")
	}
}

// TestPurpose: Validates refresh rotation semantics.
// Scope: Unit Test
// Security: Refresh token replay prevention (rotation in place)
// Expected: New pair issued on the same row; the replaced refresh token stops working.
func TestOAuth2_Service_RefreshAccessToken_Rotation(t *testing.T) {
	env := newTestEnv()
	code := issueCode(t, env, ScopeMemoriesRead+" "+ScopeOfflineAccess)
	first, err := exchange(env, code.Code, testVerifier)
	if err != nil {
		t.Fatalf("exchange failed: %v", err)
	}

	ctx := context.Background()
	rowBefore, _ := env.tokens.GetByAccessTokenHash(ctx, crypto.HashToken(first.AccessToken))

	second, err := env.service.RefreshAccessToken(ctx, &TokenRequest{
		GrantType:    "refresh_token",
		RefreshToken: first.RefreshToken,
		ClientID:     testClientID,
		ClientSecret: testClientSecret,
	})
	if err != nil {
		t.Fatalf("refresh failed: %v", err)
	}
	if second.AccessToken == first.AccessToken || second.RefreshToken == first.RefreshToken {
		t.Error("rotation reissued an old string")
	}

	rowAfter, err := env.tokens.GetByAccessTokenHash(ctx, crypto.HashToken(second.AccessToken))
	if err != nil {
		t.Fatalf("rotated row not found: %v", err)
	}
	if rowAfter.ID != rowBefore.ID {
		t.Error("rotation created a new row instead of updating in place")
	}

	// Old strings no longer resolve.
	if _, err := env.service.ValidateAccessToken(ctx, first.AccessToken); !errors.Is(err, ErrTokenNotFound) {
		t.Errorf("old access token: expected ErrTokenNotFound, got %v", err)
	}
	_, err = env.service.RefreshAccessToken(ctx, &TokenRequest{
		GrantType:    "refresh_token",
		RefreshToken: first.RefreshToken,
		ClientID:     testClientID,
		ClientSecret: testClientSecret,
	})
	oe, ok := AsError(err)
	if !ok || oe.Code != ErrInvalidGrant {
		t.Errorf("replayed refresh token: expected invalid_grant, got %v", err)
	}
}

// TestPurpose: Validates scope narrowing on refresh.
// Scope: Unit Test
// Security: Privilege reduction only, never escalation
// Expected: Subset persisted; superset rejected with invalid_scope.
func TestOAuth2_Service_RefreshAccessToken_ScopeNarrowing(t *testing.T) {
	env := newTestEnv()
	code := issueCode(t, env, ScopeMemoriesRead+" "+ScopeMemoriesWrite)
	first, err := exchange(env, code.Code, testVerifier)
	if err != nil {
		t.Fatalf("exchange failed: %v", err)
	}

	ctx := context.Background()
	narrowed, err := env.service.RefreshAccessToken(ctx, &TokenRequest{
		GrantType:    "refresh_token",
		RefreshToken: first.RefreshToken,
		ClientID:     testClientID,
		ClientSecret: testClientSecret,
		Scope:        ScopeMemoriesRead,
	})
	if err != nil {
		t.Fatalf("narrowing refresh failed: %v", err)
	}
	if narrowed.Scope != ScopeMemoriesRead {
		t.Errorf("scope = %q, want %q", narrowed.Scope, ScopeMemoriesRead)
	}

	// The narrowed grant is now the ceiling.
	_, err = env.service.RefreshAccessToken(ctx, &TokenRequest{
		GrantType:    "refresh_token",
		RefreshToken: narrowed.RefreshToken,
		ClientID:     testClientID,
		ClientSecret: testClientSecret,
		Scope:        ScopeMemoriesRead + " " + ScopeMemoriesWrite,
	})
	oe, ok := AsError(err)
	if !ok || oe.Code != ErrInvalidScope {
		t.Errorf("widening refresh: expected invalid_scope, got %v", err)
	}
}

// TestPurpose: Validates bearer token resolution states.
// Scope: Unit Test
// Security: Resource access gating
// Expected: Valid token resolves; unknown, expired, revoked and blacklisted fail typed.
func TestOAuth2_Service_ValidateAccessToken(t *testing.T) {
	env := newTestEnv()
	code := issueCode(t, env, ScopeMemoriesRead)
	resp, err := exchange(env, code.Code, testVerifier)
	if err != nil {
		t.Fatalf("exchange failed: %v", err)
	}
	ctx := context.Background()

	token, err := env.service.ValidateAccessToken(ctx, resp.AccessToken)
	if err != nil {
		t.Fatalf("valid token rejected: %v", err)
	}
	if token.UserID != "user-1" {
		t.Errorf("user = %q, want user-1", token.UserID)
	}

	if _, err := env.service.ValidateAccessToken(ctx, "unknown-token"); !errors.Is(err, ErrTokenNotFound) {
		t.Errorf("unknown token: expected ErrTokenNotFound, got %v", err)
	}

	env.tokens.tokens[token.ID].AccessTokenExpiresAt = time.Now().Add(-time.Minute)
	if _, err := env.service.ValidateAccessToken(ctx, resp.AccessToken); !errors.Is(err, ErrTokenExpired) {
		t.Errorf("expired token: expected ErrTokenExpired, got %v", err)
	}
	env.tokens.tokens[token.ID].AccessTokenExpiresAt = time.Now().Add(time.Hour)

	// A blacklist entry alone blocks the token even before the row flag is
	// visible (revocation racing validation).
	env.blacklist.entries[crypto.HashToken(resp.AccessToken)] = &BlacklistEntry{
		TokenHash:     crypto.HashToken(resp.AccessToken),
		BlacklistedAt: time.Now(),
		ExpiresAt:     time.Now().Add(time.Hour),
	}
	if _, err := env.service.ValidateAccessToken(ctx, resp.AccessToken); !errors.Is(err, ErrTokenRevoked) {
		t.Errorf("blacklisted token: expected ErrTokenRevoked, got %v", err)
	}
}

// TestPurpose: Validates revocation by either token string and its idempotency.
// Scope: Unit Test
// Security: RFC 7009 semantics
// Expected: Token unusable after revoke; unknown strings succeed silently.
func TestOAuth2_Service_RevokeToken(t *testing.T) {
	env := newTestEnv()
	code := issueCode(t, env, ScopeMemoriesRead)
	resp, err := exchange(env, code.Code, testVerifier)
	if err != nil {
		t.Fatalf("exchange failed: %v", err)
	}
	ctx := context.Background()

	if err := env.service.RevokeToken(ctx, resp.AccessToken, "logout"); err != nil {
		t.Fatalf("revoke failed: %v", err)
	}
	if _, err := env.service.ValidateAccessToken(ctx, resp.AccessToken); !errors.Is(err, ErrTokenRevoked) {
		t.Errorf("revoked token: expected ErrTokenRevoked, got %v", err)
	}

	// Refresh after revocation fails.
	_, err = env.service.RefreshAccessToken(ctx, &TokenRequest{
		GrantType:    "refresh_token",
		RefreshToken: resp.RefreshToken,
		ClientID:     testClientID,
		ClientSecret: testClientSecret,
	})
	oe, ok := AsError(err)
	if !ok || oe.Code != ErrInvalidGrant {
		t.Errorf("refresh after revoke: expected invalid_grant, got %v", err)
	}

	// Revoking again and revoking garbage both succeed.
	if err := env.service.RevokeToken(ctx, resp.AccessToken, "logout"); err != nil {
		t.Errorf("second revoke errored: %v", err)
	}
	if err := env.service.RevokeToken(ctx, "never-issued", ""); err != nil {
		t.Errorf("unknown token revoke errored: %v", err)
	}

	// Revocation by refresh string works too.
	code2 := issueCode(t, env, ScopeMemoriesRead)
	resp2, err := exchange(env, code2.Code, testVerifier)
	if err != nil {
		t.Fatalf("second exchange failed: %v", err)
	}
	if err := env.service.RevokeToken(ctx, resp2.RefreshToken, ""); err != nil {
		t.Fatalf("revoke by refresh string failed: %v", err)
	}
	if _, err := env.service.ValidateAccessToken(ctx, resp2.AccessToken); !errors.Is(err, ErrTokenRevoked) {
		t.Errorf("access token after refresh-string revoke: expected ErrTokenRevoked, got %v", err)
	}
}

// TestPurpose: Validates introspection responses and the non-leak rule.
// Scope: Unit Test
// Security: RFC 7662; inactive responses carry no metadata
// Expected: Active tokens report scope/client/user/exp; everything else is bare {active:false}.
func TestOAuth2_Service_Introspect(t *testing.T) {
	env := newTestEnv()
	code := issueCode(t, env, ScopeMemoriesRead)
	resp, err := exchange(env, code.Code, testVerifier)
	if err != nil {
		t.Fatalf("exchange failed: %v", err)
	}
	ctx := context.Background()

	active, err := env.service.Introspect(ctx, resp.AccessToken)
	if err != nil {
		t.Fatalf("introspect failed: %v", err)
	}
	if !active.Active || active.ClientID != testClientID || active.UserID != "user-1" || active.Exp == 0 {
		t.Errorf("active introspection = %+v", active)
	}

	unknown, err := env.service.Introspect(ctx, "never-issued")
	if err != nil {
		t.Fatalf("introspect unknown failed: %v", err)
	}
	if unknown.Active || unknown.Scope != "" || unknown.ClientID != "" || unknown.UserID != "" || unknown.Exp != 0 {
		t.Errorf("inactive introspection leaks fields: %+v", unknown)
	}

	if err := env.service.RevokeToken(ctx, resp.AccessToken, ""); err != nil {
		t.Fatalf("revoke failed: %v", err)
	}
	revoked, err := env.service.Introspect(ctx, resp.AccessToken)
	if err != nil {
		t.Fatalf("introspect revoked failed: %v", err)
	}
	if revoked.Active || revoked.Scope != "" || revoked.ClientID != "" {
		t.Errorf("revoked introspection leaks fields: %+v", revoked)
	}
}

// TestPurpose: Validates the maintenance sweep across all three tables.
// Scope: Unit Test
// Security: Bounded storage of dead rows
// Expected: Expired codes, tokens and blacklist entries counted and removed.
func TestOAuth2_Service_SweepExpired(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()

	env.codes.codes["dead"] = &AuthorizationCode{
		Code: "dead", ClientID: testClientID, ExpiresAt: time.Now().Add(-time.Minute),
	}
	env.tokens.tokens["dead-token"] = &Token{
		ID: "dead-token", RefreshTokenExpiresAt: time.Now().Add(-time.Minute),
	}
	env.blacklist.entries["dead-hash"] = &BlacklistEntry{
		TokenHash: "dead-hash", ExpiresAt: time.Now().Add(-time.Minute),
	}
	env.codes.codes["live"] = &AuthorizationCode{
		Code: "live", ClientID: testClientID, ExpiresAt: time.Now().Add(time.Minute),
	}

	stats, err := env.service.SweepExpired(ctx)
	if err != nil {
		t.Fatalf("sweep failed: %v", err)
	}
	if stats.Codes != 1 || stats.Tokens != 1 || stats.BlacklistEntries != 1 {
		t.Errorf("sweep stats = %+v, want 1/1/1", stats)
	}
	if _, ok := env.codes.codes["live"]; !ok {
		t.Error("live code swept")
	}
}

// TestPurpose: Validates client listing pagination clamps.
// Scope: Unit Test
// Expected: Limit defaults applied, offsets honored.
func TestOAuth2_Service_ListClients(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()

	clients, err := env.service.ListClients(ctx, 0, 0)
	if err != nil {
		t.Fatalf("ListClients failed: %v", err)
	}
	if len(clients) != 1 {
		t.Errorf("clients = %d, want 1", len(clients))
	}
	if clients, _ := env.service.ListClients(ctx, 10, 5); len(clients) != 0 {
		t.Errorf("offset past end returned %d clients", len(clients))
	}
}

// TestPurpose: Validates client metadata patch semantics.
// Scope: Unit Test
// Expected: Nil fields untouched, patched result re-validated.
func TestOAuth2_Service_UpdateClient(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()

	name := "Renamed App"
	updated, err := env.service.UpdateClient(ctx, testClientID, ClientUpdate{ClientName: &name})
	if err != nil {
		t.Fatalf("UpdateClient failed: %v", err)
	}
	if updated.ClientName != "Renamed App" {
		t.Errorf("name = %q", updated.ClientName)
	}
	if len(updated.RedirectURIs) != 1 || updated.RedirectURIs[0] != testRedirectURI {
		t.Error("redirect URIs changed unexpectedly")
	}

	_, err = env.service.UpdateClient(ctx, testClientID, ClientUpdate{AllowedScopes: []string{"galaxy:admin"}})
	oe, ok := AsError(err)
	if !ok || oe.Code != ErrInvalidScope {
		t.Errorf("bad patch: expected invalid_scope, got %v", err)
	}

	inactive := false
	if _, err := env.service.UpdateClient(ctx, testClientID, ClientUpdate{IsActive: &inactive}); err != nil {
		t.Fatalf("deactivation failed: %v", err)
	}
	_, err = env.service.AuthenticateClient(ctx, testClientID, testClientSecret)
	oe, ok = AsError(err)
	if !ok || oe.Code != ErrInvalidClient {
		t.Errorf("deactivated client still authenticates: %v", err)
	}
}
