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

package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/memvault/memvault/internal/audit"
	"github.com/memvault/memvault/internal/crypto"
	"github.com/memvault/memvault/internal/identity"
	"github.com/memvault/memvault/internal/memory"
	"github.com/memvault/memvault/internal/oauth2"
	"github.com/memvault/memvault/internal/session"
)

// Stub repositories backing the full router in tests. They reproduce the
// store's transactional contracts the same way the service-level mocks do:
// Exchange consumes the code and inserts the token together, Rotate writes
// back only when the callback succeeds, Revoke inserts the blacklist entry
// alongside the flag.

type stubUserRepo struct {
	users map[string]*identity.User // keyed by ID
}

func newStubUserRepo() *stubUserRepo {
	return &stubUserRepo{users: make(map[string]*identity.User)}
}

func (m *stubUserRepo) Create(ctx context.Context, user *identity.User) error {
	for _, u := range m.users {
		if u.Email == user.Email || u.Username == user.Username {
			return identity.ErrDuplicateUser
		}
	}
	cp := *user
	m.users[user.ID] = &cp
	return nil
}

func (m *stubUserRepo) GetByID(ctx context.Context, id string) (*identity.User, error) {
	u, ok := m.users[id]
	if !ok {
		return nil, identity.ErrUserNotFound
	}
	cp := *u
	return &cp, nil
}

func (m *stubUserRepo) GetByEmail(ctx context.Context, email string) (*identity.User, error) {
	for _, u := range m.users {
		if u.Email == email {
			cp := *u
			return &cp, nil
		}
	}
	return nil, identity.ErrUserNotFound
}

func (m *stubUserRepo) GetByUsername(ctx context.Context, username string) (*identity.User, error) {
	for _, u := range m.users {
		if u.Username == username {
			cp := *u
			return &cp, nil
		}
	}
	return nil, identity.ErrUserNotFound
}

func (m *stubUserRepo) Update(ctx context.Context, user *identity.User) error {
	if _, ok := m.users[user.ID]; !ok {
		return identity.ErrUserNotFound
	}
	for _, u := range m.users {
		if u.ID != user.ID && (u.Email == user.Email || u.Username == user.Username) {
			return identity.ErrDuplicateUser
		}
	}
	cp := *user
	m.users[user.ID] = &cp
	return nil
}

type stubSessionRepo struct {
	sessions map[string]*session.Session
}

func newStubSessionRepo() *stubSessionRepo {
	return &stubSessionRepo{sessions: make(map[string]*session.Session)}
}

func (m *stubSessionRepo) Create(ctx context.Context, s *session.Session) error {
	cp := *s
	m.sessions[s.ID] = &cp
	return nil
}

func (m *stubSessionRepo) Get(ctx context.Context, sessionID string) (*session.Session, error) {
	s, ok := m.sessions[sessionID]
	if !ok {
		return nil, session.ErrSessionNotFound
	}
	cp := *s
	return &cp, nil
}

func (m *stubSessionRepo) Touch(ctx context.Context, sessionID string, seenAt time.Time) error {
	if s, ok := m.sessions[sessionID]; ok {
		s.LastSeenAt = seenAt
	}
	return nil
}

func (m *stubSessionRepo) Delete(ctx context.Context, sessionID string) error {
	delete(m.sessions, sessionID)
	return nil
}

func (m *stubSessionRepo) DeleteByUserID(ctx context.Context, userID string) error {
	for id, s := range m.sessions {
		if s.UserID == userID {
			delete(m.sessions, id)
		}
	}
	return nil
}

func (m *stubSessionRepo) DeleteExpired(ctx context.Context) (int64, error) {
	var n int64
	for id, s := range m.sessions {
		if s.IsExpired() {
			delete(m.sessions, id)
			n++
		}
	}
	return n, nil
}

type stubClientRepo struct {
	clients map[string]*oauth2.Client
}

func newStubClientRepo() *stubClientRepo {
	return &stubClientRepo{clients: make(map[string]*oauth2.Client)}
}

func (m *stubClientRepo) Create(ctx context.Context, client *oauth2.Client) error {
	if _, ok := m.clients[client.ClientID]; ok {
		return oauth2.ErrClientAlreadyExists
	}
	cp := *client
	m.clients[client.ClientID] = &cp
	return nil
}

func (m *stubClientRepo) GetByClientID(ctx context.Context, clientID string) (*oauth2.Client, error) {
	c, ok := m.clients[clientID]
	if !ok {
		return nil, oauth2.ErrClientNotFound
	}
	cp := *c
	return &cp, nil
}

func (m *stubClientRepo) List(ctx context.Context, limit, offset int) ([]*oauth2.Client, error) {
	var out []*oauth2.Client
	for _, c := range m.clients {
		cp := *c
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if offset >= len(out) {
		return nil, nil
	}
	out = out[offset:]
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *stubClientRepo) Update(ctx context.Context, client *oauth2.Client) error {
	if _, ok := m.clients[client.ClientID]; !ok {
		return oauth2.ErrClientNotFound
	}
	cp := *client
	m.clients[client.ClientID] = &cp
	return nil
}

func (m *stubClientRepo) Delete(ctx context.Context, clientID string) error {
	if _, ok := m.clients[clientID]; !ok {
		return oauth2.ErrClientNotFound
	}
	delete(m.clients, clientID)
	return nil
}

type stubBlacklistRepo struct {
	entries map[string]*oauth2.BlacklistEntry
}

func newStubBlacklistRepo() *stubBlacklistRepo {
	return &stubBlacklistRepo{entries: make(map[string]*oauth2.BlacklistEntry)}
}

func (m *stubBlacklistRepo) IsBlacklisted(ctx context.Context, tokenHash string) (bool, error) {
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

func (m *stubBlacklistRepo) DeleteExpired(ctx context.Context) (int64, error) {
	var n int64
	for hash, e := range m.entries {
		if e.Expired() {
			delete(m.entries, hash)
			n++
		}
	}
	return n, nil
}

type stubTokenRepo struct {
	tokens    map[string]*oauth2.Token
	blacklist *stubBlacklistRepo
}

func newStubTokenRepo(blacklist *stubBlacklistRepo) *stubTokenRepo {
	return &stubTokenRepo{tokens: make(map[string]*oauth2.Token), blacklist: blacklist}
}

func (m *stubTokenRepo) GetByAccessTokenHash(ctx context.Context, hash string) (*oauth2.Token, error) {
	for _, t := range m.tokens {
		if t.AccessTokenHash == hash {
			cp := *t
			return &cp, nil
		}
	}
	return nil, oauth2.ErrTokenNotFound
}

func (m *stubTokenRepo) GetByRefreshTokenHash(ctx context.Context, hash string) (*oauth2.Token, error) {
	for _, t := range m.tokens {
		if t.RefreshTokenHash == hash {
			cp := *t
			return &cp, nil
		}
	}
	return nil, oauth2.ErrTokenNotFound
}

func (m *stubTokenRepo) Rotate(ctx context.Context, refreshTokenHash string, rotate oauth2.RotateFunc) (*oauth2.Token, error) {
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
	return nil, oauth2.ErrTokenNotFound
}

func (m *stubTokenRepo) Revoke(ctx context.Context, tokenID string, entry *oauth2.BlacklistEntry) error {
	t, ok := m.tokens[tokenID]
	if !ok {
		return oauth2.ErrTokenNotFound
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

func (m *stubTokenRepo) DeleteExpired(ctx context.Context) (int64, error) {
	var n int64
	for id, t := range m.tokens {
		if t.RefreshTokenExpired() {
			delete(m.tokens, id)
			n++
		}
	}
	return n, nil
}

type stubCodeRepo struct {
	codes  map[string]*oauth2.AuthorizationCode
	tokens *stubTokenRepo
}

func newStubCodeRepo(tokens *stubTokenRepo) *stubCodeRepo {
	return &stubCodeRepo{codes: make(map[string]*oauth2.AuthorizationCode), tokens: tokens}
}

func (m *stubCodeRepo) Create(ctx context.Context, code *oauth2.AuthorizationCode) error {
	cp := *code
	m.codes[code.Code] = &cp
	return nil
}

func (m *stubCodeRepo) Exchange(ctx context.Context, code, clientID string, mint oauth2.MintFunc) (*oauth2.Token, error) {
	c, ok := m.codes[code]
	if !ok || c.ClientID != clientID {
		return nil, oauth2.ErrCodeNotFound
	}
	token, err := mint(c)
	if err != nil {
		if errors.Is(err, oauth2.ErrCodeExpired) {
			delete(m.codes, code)
		}
		return nil, err
	}
	delete(m.codes, code)
	cp := *token
	m.tokens.tokens[token.ID] = &cp
	out := *token
	return &out, nil
}

func (m *stubCodeRepo) DeleteExpired(ctx context.Context) (int64, error) {
	var n int64
	for code, c := range m.codes {
		if c.IsExpired() {
			delete(m.codes, code)
			n++
		}
	}
	return n, nil
}

type stubMemoryRepo struct {
	memories map[string]*memory.Memory
}

func newStubMemoryRepo() *stubMemoryRepo {
	return &stubMemoryRepo{memories: make(map[string]*memory.Memory)}
}

func (m *stubMemoryRepo) Create(ctx context.Context, mem *memory.Memory) error {
	cp := *mem
	m.memories[mem.ID] = &cp
	return nil
}

func (m *stubMemoryRepo) GetByID(ctx context.Context, id string) (*memory.Memory, error) {
	mem, ok := m.memories[id]
	if !ok {
		return nil, memory.ErrMemoryNotFound
	}
	cp := *mem
	return &cp, nil
}

func (m *stubMemoryRepo) ListByUser(ctx context.Context, userID string, limit, offset int) ([]*memory.Memory, error) {
	var out []*memory.Memory
	for _, mem := range m.memories {
		if mem.UserID == userID {
			cp := *mem
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if offset >= len(out) {
		return nil, nil
	}
	out = out[offset:]
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *stubMemoryRepo) Update(ctx context.Context, mem *memory.Memory) error {
	if _, ok := m.memories[mem.ID]; !ok {
		return memory.ErrMemoryNotFound
	}
	cp := *mem
	m.memories[mem.ID] = &cp
	return nil
}

func (m *stubMemoryRepo) Delete(ctx context.Context, id string) error {
	if _, ok := m.memories[id]; !ok {
		return memory.ErrMemoryNotFound
	}
	delete(m.memories, id)
	return nil
}

// ---------------------------------------------------------------------------
// Test server
// ---------------------------------------------------------------------------

const (
	testClientID     = "client-1"
	testClientSecret = "test-client-secret"
	testRedirectURI  = "https://app.example.com/callback"
	testVerifier     = "dBjftJeZ4CVP-mB92K27uhbUJU1p1r_wW1gFWFOEjXk"

	testUserEmail    = "alice@example.com"
	testUserName     = "alice"
	testUserPassword = "correct horse battery"

	testAdminEmail    = "root@example.com"
	testAdminName     = "root"
	testAdminPassword = "an admin passphrase"

	testCookieName = "memvault_session"
)

// testHasher uses cheap Argon2 parameters to keep handler tests fast.
func testHasher() *crypto.PasswordHasher {
	return crypto.NewPasswordHasher(8*1024, 1, 1, 16, 32)
}

type testServer struct {
	router http.Handler

	users     *stubUserRepo
	sessions  *stubSessionRepo
	clients   *stubClientRepo
	codes     *stubCodeRepo
	tokens    *stubTokenRepo
	blacklist *stubBlacklistRepo
	memories  *stubMemoryRepo

	identitySvc *identity.Service
	sessionSvc  *session.Service
	oauth2Svc   *oauth2.Service
	memorySvc   *memory.Service

	user  *identity.User
	admin *identity.User
}

// newTestServer wires the stub repositories into real services and the real
// router, pre-seeding one confidential client granted every default scope,
// one regular account, and one superuser.
func newTestServer(t *testing.T) *testServer {
	t.Helper()
	ctx := context.Background()

	users := newStubUserRepo()
	sessions := newStubSessionRepo()
	clients := newStubClientRepo()
	blacklist := newStubBlacklistRepo()
	tokens := newStubTokenRepo(blacklist)
	codes := newStubCodeRepo(tokens)
	memories := newStubMemoryRepo()

	auditLogger := audit.NewSlogLogger()
	identitySvc := identity.NewService(users, testHasher(), auditLogger)
	sessionSvc := session.NewService(sessions, []byte("0123456789abcdef0123456789abcdef"), "http://localhost:8080", 24*time.Hour)
	oauth2Svc := oauth2.NewService(clients, codes, tokens, blacklist, auditLogger, nil, oauth2.Config{
		AuthCodeTTL:     10 * time.Minute,
		AccessTokenTTL:  time.Hour,
		RefreshTokenTTL: 30 * 24 * time.Hour,
	})
	memorySvc := memory.NewService(memories)

	clients.clients[testClientID] = &oauth2.Client{
		ID:               "row-1",
		ClientID:         testClientID,
		ClientSecretHash: crypto.HashToken(testClientSecret),
		ClientName:       "Test App",
		RedirectURIs:     []string{testRedirectURI},
		AllowedScopes:    oauth2.DefaultValidScopes,
		IsConfidential:   true,
		IsActive:         true,
		CreatedAt:        time.Now().UTC(),
		UpdatedAt:        time.Now().UTC(),
	}

	user, err := identitySvc.Register(ctx, testUserEmail, testUserName, testUserPassword)
	if err != nil {
		t.Fatalf("fixture user registration failed: %v", err)
	}

	admin, err := identitySvc.Register(ctx, testAdminEmail, testAdminName, testAdminPassword)
	if err != nil {
		t.Fatalf("fixture admin registration failed: %v", err)
	}
	stored := users.users[admin.ID]
	stored.IsSuperuser = true
	admin.IsSuperuser = true

	h := NewHandler(identitySvc, sessionSvc, oauth2Svc, memorySvc, auditLogger, pingOK{}, SessionConfig{
		CookieName:     testCookieName,
		CookiePath:     "/",
		CookieHTTPOnly: true,
		CookieSameSite: http.SameSiteLaxMode,
		CookieMaxAge:   86400,
	})
	router := NewRouter(h, NewRateLimiter(1000, 1000))

	return &testServer{
		router:      router,
		users:       users,
		sessions:    sessions,
		clients:     clients,
		codes:       codes,
		tokens:      tokens,
		blacklist:   blacklist,
		memories:    memories,
		identitySvc: identitySvc,
		sessionSvc:  sessionSvc,
		oauth2Svc:   oauth2Svc,
		memorySvc:   memorySvc,
		user:        user,
		admin:       admin,
	}
}

// pingOK satisfies the health endpoint's Pinger without a database.
type pingOK struct{}

func (pingOK) Ping(ctx context.Context) error { return nil }

func (ts *testServer) do(req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	ts.router.ServeHTTP(w, req)
	return w
}

// login authenticates through the JSON endpoint and returns the session
// cookie it set.
func (ts *testServer) login(t *testing.T, login, password string) *http.Cookie {
	t.Helper()

	body, _ := json.Marshal(LoginRequest{Login: login, Password: password})
	req := httptest.NewRequest(http.MethodPost, "/api/auth/login", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := ts.do(req)

	if w.Code != http.StatusOK {
		t.Fatalf("login failed: status %d, body %s", w.Code, w.Body.String())
	}
	for _, c := range w.Result().Cookies() {
		if c.Name == testCookieName {
			return c
		}
	}
	t.Fatal("login response did not set the session cookie")
	return nil
}

// authorizeQuery builds a complete, valid authorization request for the
// fixture client; callers mutate individual keys to probe failures.
func authorizeQuery(scope string) url.Values {
	return url.Values{
		"response_type":         {"code"},
		"client_id":             {testClientID},
		"redirect_uri":          {testRedirectURI},
		"scope":                 {scope},
		"state":                 {"xyz"},
		"code_challenge":        {crypto.S256Challenge(testVerifier)},
		"code_challenge_method": {oauth2.CodeChallengeMethodS256},
	}
}

// obtainCode walks authorize + consent with a logged-in session and returns
// the authorization code from the redirect back to the client.
func (ts *testServer) obtainCode(t *testing.T, cookie *http.Cookie, scope string) string {
	t.Helper()

	req := httptest.NewRequest(http.MethodGet, "/api/oauth/authorize?"+authorizeQuery(scope).Encode(), nil)
	req.AddCookie(cookie)
	w := ts.do(req)
	if w.Code != http.StatusOK {
		t.Fatalf("authorize did not render consent: status %d, body %s", w.Code, w.Body.String())
	}

	form := authorizeQuery(scope)
	form.Set("decision", "approve")
	req = httptest.NewRequest(http.MethodPost, "/api/oauth/consent", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.AddCookie(cookie)
	w = ts.do(req)
	if w.Code != http.StatusFound {
		t.Fatalf("consent did not redirect: status %d, body %s", w.Code, w.Body.String())
	}

	loc, err := url.Parse(w.Header().Get("Location"))
	if err != nil {
		t.Fatalf("consent redirect location unparseable: %v", err)
	}
	code := loc.Query().Get("code")
	if code == "" {
		t.Fatalf("consent redirect carries no code: %s", loc)
	}
	return code
}

// postToken submits a token request with form-encoded client credentials.
func (ts *testServer) postToken(form url.Values) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/api/oauth/token", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return ts.do(req)
}

// exchangeCode redeems an authorization code and decodes the token response.
func (ts *testServer) exchangeCode(t *testing.T, code string) *oauth2.TokenResponse {
	t.Helper()

	w := ts.postToken(url.Values{
		"grant_type":    {"authorization_code"},
		"code":          {code},
		"redirect_uri":  {testRedirectURI},
		"client_id":     {testClientID},
		"client_secret": {testClientSecret},
		"code_verifier": {testVerifier},
	})
	if w.Code != http.StatusOK {
		t.Fatalf("code exchange failed: status %d, body %s", w.Code, w.Body.String())
	}

	var resp oauth2.TokenResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("token response unparseable: %v", err)
	}
	return &resp
}

// issueTokens runs the complete login → authorize → consent → exchange flow
// for the fixture user and returns the issued pair.
func (ts *testServer) issueTokens(t *testing.T, scope string) *oauth2.TokenResponse {
	t.Helper()
	cookie := ts.login(t, testUserName, testUserPassword)
	code := ts.obtainCode(t, cookie, scope)
	return ts.exchangeCode(t, code)
}

// getJSON runs a bearer-authenticated request and decodes the error body
// convention {"error": ..., "error_description": ...} when present.
func errorCode(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	var body map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("error body unparseable: %v (body %q)", err, w.Body.String())
	}
	code, _ := body["error"].(string)
	return code
}

func jsonBody(t *testing.T, v any) *bytes.Reader {
	t.Helper()
	b, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}
	return bytes.NewReader(b)
}
