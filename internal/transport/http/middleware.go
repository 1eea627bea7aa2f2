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
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5/middleware"

	"github.com/memvault/memvault/internal/identity"
	"github.com/memvault/memvault/internal/oauth2"
	"github.com/memvault/memvault/internal/observability/logger"
)

// LoggingMiddleware logs HTTP requests
func LoggingMiddleware() func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			slog.InfoContext(r.Context(), "http_request_start",
				logger.RequestID(middleware.GetReqID(r.Context())),
				logger.Method(r.Method),
				logger.Path(r.URL.Path),
				logger.RemoteAddr(r.RemoteAddr),
			)

			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

			defer func() {
				slog.InfoContext(r.Context(), "http_request_end",
					logger.RequestID(middleware.GetReqID(r.Context())),
					logger.Method(r.Method),
					logger.Path(r.URL.Path),
					logger.RemoteAddr(r.RemoteAddr),
					logger.UserAgent(r.UserAgent()),
					logger.StatusCode(ww.Status()),
					logger.Duration(time.Since(start).Milliseconds()),
				)
			}()

			next.ServeHTTP(ww, r)
		})
	}
}

// bearerExempt enumerates the exact paths reachable without a bearer token.
// The guard fails closed: a new route is protected until it is listed here.
var bearerExempt = map[string]struct{}{
	"/":                    {},
	"/health":              {},
	"/login":               {},
	"/api/oauth/authorize": {},
	"/api/oauth/consent":   {},
	"/api/oauth/token":     {},
	"/api/auth/register":   {},
	"/api/auth/login":      {},
	"/api/auth/logout":     {},
}

func bearerExemptPath(path string) bool {
	if _, ok := bearerExempt[path]; ok {
		return true
	}
	if path == "/docs" || strings.HasPrefix(path, "/docs/") {
		return true
	}
	if strings.HasPrefix(path, "/static/") {
		return true
	}
	// Admin routes authenticate with HTTP Basic, not bearer tokens.
	return strings.HasPrefix(path, "/api/admin/")
}

// BearerGuard validates the bearer token on every request outside the
// exempt list and loads the token into the request context. All validation
// failures answer with the same 401 so a caller cannot distinguish revoked
// from unknown tokens.
func (h *Handler) BearerGuard(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if bearerExemptPath(r.URL.Path) {
			next.ServeHTTP(w, r)
			return
		}

		raw, ok := bearerToken(r)
		if !ok {
			w.Header().Set("WWW-Authenticate", "Bearer")
			respondError(w, http.StatusUnauthorized, oauth2.ErrUnauthorized, "missing or malformed Authorization header")
			return
		}

		token, err := h.oauth2Service.ValidateAccessToken(r.Context(), raw)
		if err != nil {
			w.Header().Set("WWW-Authenticate", `Bearer error="invalid_token"`)
			respondError(w, http.StatusUnauthorized, oauth2.ErrUnauthorized, "invalid or expired token")
			return
		}

		ctx := context.WithValue(r.Context(), userIDKey, token.UserID)
		ctx = context.WithValue(ctx, tokenKey, token)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// bearerToken extracts the credential from an "Authorization: Bearer x"
// header (RFC 6750 section 2.1).
func bearerToken(r *http.Request) (string, bool) {
	header := r.Header.Get("Authorization")
	const prefix = "Bearer "
	if len(header) <= len(prefix) || !strings.EqualFold(header[:len(prefix)], prefix) {
		return "", false
	}
	token := strings.TrimSpace(header[len(prefix):])
	return token, token != ""
}

// RequireScopes rejects requests whose bearer token lacks any of the
// route's scopes (RFC 6750 section 3.1). The challenge names exactly the
// missing scopes.
func RequireScopes(scopes ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := GetToken(r.Context())
			if token == nil {
				w.Header().Set("WWW-Authenticate", "Bearer")
				respondError(w, http.StatusUnauthorized, oauth2.ErrUnauthorized, "missing bearer token")
				return
			}

			if missing := oauth2.MissingScopes(token.Scope, scopes); len(missing) > 0 {
				w.Header().Set("WWW-Authenticate", `Bearer scope="`+strings.Join(missing, " ")+`"`)
				respondError(w, http.StatusForbidden, oauth2.ErrInsufficientScope,
					"Required scopes: "+strings.Join(missing, " "))
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// RequireAdmin authenticates the request with HTTP Basic and requires a
// superuser account. Missing or wrong credentials get a 401 challenge; a
// valid non-superuser gets a 403 without one, since re-prompting cannot
// help.
func (h *Handler) RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		login, password, ok := r.BasicAuth()
		if !ok {
			w.Header().Set("WWW-Authenticate", `Basic realm="memvault admin", charset="UTF-8"`)
			respondError(w, http.StatusUnauthorized, oauth2.ErrUnauthorized, "admin credentials required")
			return
		}

		user, err := h.identityService.VerifyAdmin(r.Context(), login, password)
		if err != nil {
			if errors.Is(err, identity.ErrNotSuperuser) {
				respondError(w, http.StatusForbidden, "forbidden", "superuser privileges required")
				return
			}
			w.Header().Set("WWW-Authenticate", `Basic realm="memvault admin", charset="UTF-8"`)
			respondError(w, http.StatusUnauthorized, oauth2.ErrUnauthorized, "invalid admin credentials")
			return
		}

		ctx := context.WithValue(r.Context(), userIDKey, user.ID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
