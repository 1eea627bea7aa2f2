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

package session

import (
	"context"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/memvault/memvault/internal/id"
)

// Service issues and resolves session tokens. The token is an HS256 JWT
// whose jti names a session row; the row decides validity.
type Service struct {
	repo     Repository
	secret   []byte
	issuer   string
	lifetime time.Duration
}

// NewService creates a new session service
func NewService(repo Repository, secret []byte, issuer string, lifetime time.Duration) *Service {
	return &Service{
		repo:     repo,
		secret:   secret,
		issuer:   issuer,
		lifetime: lifetime,
	}
}

// Issue creates a session row and returns the signed token for it.
func (s *Service) Issue(ctx context.Context, userID, ipAddress, userAgent string) (*Session, string, error) {
	now := time.Now()
	sess := &Session{
		ID:         id.NewUUIDv7(),
		UserID:     userID,
		IPAddress:  ipAddress,
		UserAgent:  userAgent,
		ExpiresAt:  now.Add(s.lifetime),
		CreatedAt:  now,
		LastSeenAt: now,
	}
	if err := s.repo.Create(ctx, sess); err != nil {
		return nil, "", fmt.Errorf("failed to create session: %w", err)
	}

	claims := jwt.MapClaims{
		"iss": s.issuer,
		"sub": userID,
		"jti": sess.ID,
		"iat": now.Unix(),
		"exp": sess.ExpiresAt.Unix(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return nil, "", fmt.Errorf("failed to sign session token: %w", err)
	}

	return sess, signed, nil
}

// Resolve verifies a session token and loads its backing row. The last
// seen time is touched on success; touch failures are not fatal.
func (s *Service) Resolve(ctx context.Context, tokenString string) (*Session, error) {
	claims := jwt.MapClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return s.secret, nil
	}, jwt.WithValidMethods([]string{"HS256"}), jwt.WithIssuer(s.issuer), jwt.WithExpirationRequired())
	if err != nil || !token.Valid {
		return nil, ErrSessionInvalid
	}

	sessionID, ok := claims["jti"].(string)
	if !ok || sessionID == "" {
		return nil, ErrSessionInvalid
	}

	sess, err := s.repo.Get(ctx, sessionID)
	if err != nil {
		return nil, ErrSessionNotFound
	}
	if sess.IsExpired() {
		return nil, ErrSessionExpired
	}

	_ = s.repo.Touch(ctx, sess.ID, time.Now())

	return sess, nil
}

// Revoke deletes a session row, ending the login everywhere.
func (s *Service) Revoke(ctx context.Context, sessionID string) error {
	return s.repo.Delete(ctx, sessionID)
}

// RevokeAll deletes every session for a user.
func (s *Service) RevokeAll(ctx context.Context, userID string) error {
	return s.repo.DeleteByUserID(ctx, userID)
}

// DeleteExpired removes expired session rows and reports the count.
func (s *Service) DeleteExpired(ctx context.Context) (int64, error) {
	return s.repo.DeleteExpired(ctx)
}
