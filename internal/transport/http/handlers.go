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

// @title MemVault API
// @version 1.0.0
// @description OAuth 2.1 authorization server guarding a personal memory store

// @license.name Apache 2.0
// @license.url http://www.apache.org/licenses/LICENSE-2.0.html

// @host localhost:8080
// @BasePath /

// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization

// @securityDefinitions.basic AdminBasicAuth

package http

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/memvault/memvault/internal/audit"
	"github.com/memvault/memvault/internal/identity"
	"github.com/memvault/memvault/internal/memory"
	"github.com/memvault/memvault/internal/oauth2"
	"github.com/memvault/memvault/internal/session"
)

// Pinger reports backend liveness for the health endpoint.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Handler holds HTTP handlers and dependencies
type Handler struct {
	identityService *identity.Service
	sessionService  *session.Service
	oauth2Service   *oauth2.Service
	memoryService   *memory.Service
	auditLogger     audit.Logger
	db              Pinger
	sessionConfig   SessionConfig
}

// SessionConfig holds session cookie configuration
type SessionConfig struct {
	CookieName     string
	CookieDomain   string
	CookiePath     string
	CookieSecure   bool
	CookieHTTPOnly bool
	CookieSameSite http.SameSite
	CookieMaxAge   int // seconds
}

// NewHandler creates a new HTTP handler
func NewHandler(
	identityService *identity.Service,
	sessionService *session.Service,
	oauth2Service *oauth2.Service,
	memoryService *memory.Service,
	auditLogger audit.Logger,
	db Pinger,
	sessionConfig SessionConfig,
) *Handler {
	return &Handler{
		identityService: identityService,
		sessionService:  sessionService,
		oauth2Service:   oauth2Service,
		memoryService:   memoryService,
		auditLogger:     auditLogger,
		db:              db,
		sessionConfig:   sessionConfig,
	}
}

// NewRouter creates a new HTTP router
func NewRouter(h *Handler, rateLimiter *RateLimiter) *chi.Mux {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(LoggingMiddleware())
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))
	r.Use(func(handler http.Handler) http.Handler {
		return otelhttp.NewHandler(handler, "http_request",
			otelhttp.WithSpanNameFormatter(func(operation string, r *http.Request) string {
				return r.Method + " " + r.URL.Path
			}),
		)
	})
	r.Use(h.BearerGuard)

	// Credential-accepting endpoints are the only rate-limited ones.
	limited := RateLimitMiddleware(rateLimiter)

	r.Get("/", h.Index)
	r.Get("/health", h.HealthCheck)

	// Browser login for the consent round-trip
	r.Get("/login", h.LoginPage)
	r.Post("/login", h.LoginSubmit)

	r.Route("/api", func(r chi.Router) {
		// OAuth2 protocol endpoints (RFC 6749)
		r.Route("/oauth", func(r chi.Router) {
			r.Get("/authorize", h.Authorize)
			r.Post("/consent", h.Consent)
			r.With(limited).Post("/token", h.Token)
			r.Route("/tokens", func(r chi.Router) {
				r.Post("/revoke", h.RevokeToken)
				r.Post("/introspect", h.IntrospectToken)
			})
		})

		// Session authentication
		r.Route("/auth", func(r chi.Router) {
			r.Post("/register", h.Register)
			r.With(limited).Post("/login", h.Login)
			r.Post("/logout", h.Logout)
		})

		// Profile (bearer + scope)
		r.Route("/users/me", func(r chi.Router) {
			r.With(RequireScopes(oauth2.ScopeProfileRead)).Get("/", h.GetProfile)
			r.With(RequireScopes(oauth2.ScopeProfileWrite)).Put("/", h.UpdateProfile)
		})

		// Memories (bearer + scope)
		r.Route("/memories", func(r chi.Router) {
			r.With(RequireScopes(oauth2.ScopeMemoriesRead)).Get("/", h.ListMemories)
			r.With(RequireScopes(oauth2.ScopeMemoriesWrite)).Post("/", h.CreateMemory)
			r.Route("/{memoryID}", func(r chi.Router) {
				r.With(RequireScopes(oauth2.ScopeMemoriesRead)).Get("/", h.GetMemory)
				r.With(RequireScopes(oauth2.ScopeMemoriesWrite)).Put("/", h.UpdateMemory)
				r.With(RequireScopes(oauth2.ScopeMemoriesDelete)).Delete("/", h.DeleteMemory)
			})
		})

		// Client administration (HTTP Basic + superuser)
		r.Route("/admin", func(r chi.Router) {
			r.Use(h.RequireAdmin)
			r.Post("/clients/register", h.RegisterClient)
			r.Get("/clients", h.ListClients)
			r.Route("/clients/{clientID}", func(r chi.Router) {
				r.Get("/", h.GetClient)
				r.Put("/", h.UpdateClient)
				r.Delete("/", h.DeleteClient)
			})
		})
	})

	// Documentation and static assets
	r.Get("/docs", h.Docs)
	r.Get("/docs/openapi.json", h.OpenAPI)
	r.Get("/static/*", h.Static)

	return r
}

// Index describes the service
// @Summary Service Index
// @Description Service name and entry points
// @Tags System
// @Produce json
// @Success 200 {object} map[string]string
// @Router / [get]
func (h *Handler) Index(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{
		"service": "memvault",
		"docs":    "/docs",
	})
}

// HealthCheck returns the health status
// @Summary Health Check
// @Description Checks that the service and its database are up
// @Tags System
// @Produce json
// @Success 200 {object} map[string]string
// @Failure 503 {object} map[string]string
// @Router /health [get]
func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	if err := h.db.Ping(r.Context()); err != nil {
		respondJSON(w, http.StatusServiceUnavailable, map[string]string{
			"status": "unavailable",
		})
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{
		"status": "ok",
	})
}

// currentUser resolves the browser session cookie to an active user. Both
// returns are nil when the request carries no usable session; an inactive
// user counts as absent.
func (h *Handler) currentUser(r *http.Request) (*identity.User, *session.Session) {
	raw := h.getSessionFromCookie(r)
	if raw == "" {
		return nil, nil
	}
	sess, err := h.sessionService.Resolve(r.Context(), raw)
	if err != nil {
		return nil, nil
	}
	user, err := h.identityService.GetUser(r.Context(), sess.UserID)
	if err != nil || !user.IsActive {
		return nil, nil
	}
	return user, sess
}

// Helper functions
func (h *Handler) setSessionCookie(w http.ResponseWriter, token string) {
	http.SetCookie(w, &http.Cookie{
		Name:     h.sessionConfig.CookieName,
		Value:    token,
		Path:     h.sessionConfig.CookiePath,
		Domain:   h.sessionConfig.CookieDomain,
		Secure:   h.sessionConfig.CookieSecure,
		HttpOnly: h.sessionConfig.CookieHTTPOnly,
		SameSite: h.sessionConfig.CookieSameSite,
		MaxAge:   h.sessionConfig.CookieMaxAge,
	})
}

func (h *Handler) clearSessionCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:   h.sessionConfig.CookieName,
		Value:  "",
		Path:   h.sessionConfig.CookiePath,
		Domain: h.sessionConfig.CookieDomain,
		MaxAge: -1,
	})
}

func (h *Handler) getSessionFromCookie(r *http.Request) string {
	cookie, err := r.Cookie(h.sessionConfig.CookieName)
	if err != nil {
		return ""
	}
	return cookie.Value
}

func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, code, description string) {
	respondJSON(w, status, map[string]string{
		"error":             code,
		"error_description": description,
	})
}

func getIPAddress(r *http.Request) string {
	// First hop of X-Forwarded-For is the original client.
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		if i := strings.IndexByte(xff, ','); i >= 0 {
			return strings.TrimSpace(xff[:i])
		}
		return xff
	}
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return xri
	}
	return r.RemoteAddr
}
