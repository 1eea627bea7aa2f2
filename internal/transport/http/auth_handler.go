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
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/url"

	"github.com/memvault/memvault/internal/audit"
	"github.com/memvault/memvault/internal/identity"
	"github.com/memvault/memvault/internal/observability/logger"
)

// RegisterRequest represents registration data
type RegisterRequest struct {
	Email    string `json:"email" example:"ada@example.com"`
	Username string `json:"username" example:"ada"`
	Password string `json:"password" example:"correct-horse-battery-staple"`
}

// Register handles user registration
// @Summary Register a new user
// @Description Create a resource owner account
// @Tags Auth
// @Accept json
// @Produce json
// @Param request body RegisterRequest true "Registration Data"
// @Success 201 {object} map[string]any
// @Failure 400 {object} map[string]string
// @Failure 409 {object} map[string]string
// @Router /api/auth/register [post]
func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid request body")
		return
	}

	user, err := h.identityService.Register(r.Context(), req.Email, req.Username, req.Password)
	if err != nil {
		switch {
		case errors.Is(err, identity.ErrDuplicateUser):
			respondError(w, http.StatusConflict, "duplicate_user", "email or username is already taken")
		case errors.Is(err, identity.ErrInvalidEmail),
			errors.Is(err, identity.ErrInvalidUsername),
			errors.Is(err, identity.ErrWeakPassword):
			respondError(w, http.StatusBadRequest, "invalid_request", err.Error())
		default:
			slog.ErrorContext(r.Context(), "failed to register user",
				logger.Error(err),
				logger.Email(req.Email),
			)
			respondError(w, http.StatusInternalServerError, "server_error", "failed to register user")
		}
		return
	}

	respondJSON(w, http.StatusCreated, map[string]any{
		"user_id":  user.ID,
		"email":    user.Email,
		"username": user.Username,
	})
}

// LoginRequest represents login credentials
type LoginRequest struct {
	Login    string `json:"login" example:"ada@example.com"` // email or username
	Password string `json:"password" example:"correct-horse-battery-staple"`
}

// Login handles user login
// @Summary Login
// @Description Authenticate a user and set the session cookie
// @Tags Auth
// @Accept json
// @Produce json
// @Param request body LoginRequest true "Credentials"
// @Success 200 {object} map[string]any
// @Failure 400 {object} map[string]string
// @Failure 401 {object} map[string]string
// @Router /api/auth/login [post]
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid request body")
		return
	}

	user, err := h.identityService.Authenticate(r.Context(), req.Login, req.Password)
	if err != nil {
		respondError(w, http.StatusUnauthorized, "invalid_credentials", "login or password is incorrect")
		return
	}

	_, signed, err := h.sessionService.Issue(r.Context(), user.ID, getIPAddress(r), r.UserAgent())
	if err != nil {
		slog.ErrorContext(r.Context(), "failed to create session",
			logger.Error(err),
			logger.UserID(user.ID),
		)
		respondError(w, http.StatusInternalServerError, "server_error", "failed to create session")
		return
	}

	h.setSessionCookie(w, signed)

	respondJSON(w, http.StatusOK, map[string]any{
		"user_id":  user.ID,
		"email":    user.Email,
		"username": user.Username,
	})
}

// Logout handles user logout
// @Summary Logout
// @Description Destroy the current session
// @Tags Auth
// @Produce json
// @Success 200 {object} map[string]string
// @Failure 401 {object} map[string]string
// @Router /api/auth/logout [post]
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	raw := h.getSessionFromCookie(r)
	if raw == "" {
		respondError(w, http.StatusUnauthorized, "unauthorized", "not authenticated")
		return
	}

	if sess, err := h.sessionService.Resolve(r.Context(), raw); err == nil {
		h.auditLogger.Log(r.Context(), audit.Event{
			Type:      audit.TypeLogout,
			ActorID:   sess.UserID,
			Resource:  "session",
			IPAddress: getIPAddress(r),
			UserAgent: r.UserAgent(),
			Metadata:  map[string]any{"session_id": sess.ID},
		})
		if err := h.sessionService.Revoke(r.Context(), sess.ID); err != nil {
			slog.ErrorContext(r.Context(), "failed to revoke session", logger.Error(err))
		}
	}

	// Clear the cookie even when the session was already gone; logout
	// stays idempotent from the browser's point of view.
	h.clearSessionCookie(w)

	respondJSON(w, http.StatusOK, map[string]string{
		"message": "logged out",
	})
}

// LoginPage renders the browser login form
// @Summary Login Page
// @Description HTML login form for the authorization consent round-trip
// @Tags Auth
// @Produce html
// @Param return_to query string false "Local authorize URL to resume after login"
// @Success 200 {string} string "Login form"
// @Router /login [get]
func (h *Handler) LoginPage(w http.ResponseWriter, r *http.Request) {
	returnTo := safeReturnTo(r.URL.Query().Get("return_to"))

	// Already signed in mid-flow: resume the authorization request.
	if returnTo != "" {
		if user, _ := h.currentUser(r); user != nil {
			http.Redirect(w, r, returnTo, http.StatusFound)
			return
		}
	}

	h.renderLogin(w, http.StatusOK, returnTo, "")
}

// LoginSubmit handles the browser login form
// @Summary Submit Login Form
// @Description Authenticates the form credentials and resumes the authorization flow
// @Tags Auth
// @Accept x-www-form-urlencoded
// @Param login formData string true "Email or username"
// @Param password formData string true "Password"
// @Param return_to formData string false "Local authorize URL to resume after login"
// @Success 303 {string} string "Redirects to return_to or /"
// @Failure 401 {string} string "Login form with an error message"
// @Router /login [post]
func (h *Handler) LoginSubmit(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "malformed form body")
		return
	}

	returnTo := safeReturnTo(r.PostForm.Get("return_to"))

	user, err := h.identityService.Authenticate(r.Context(), r.PostForm.Get("login"), r.PostForm.Get("password"))
	if err != nil {
		h.renderLogin(w, http.StatusUnauthorized, returnTo, "Login or password is incorrect.")
		return
	}

	_, signed, err := h.sessionService.Issue(r.Context(), user.ID, getIPAddress(r), r.UserAgent())
	if err != nil {
		slog.ErrorContext(r.Context(), "failed to create session",
			logger.Error(err),
			logger.UserID(user.ID),
		)
		h.renderLogin(w, http.StatusInternalServerError, returnTo, "Something went wrong, try again.")
		return
	}

	h.setSessionCookie(w, signed)

	if returnTo == "" {
		returnTo = "/"
	}
	http.Redirect(w, r, returnTo, http.StatusSeeOther)
}

// safeReturnTo restricts post-login redirects to the local authorize
// endpoint; anything else would make the login form an open redirector.
func safeReturnTo(raw string) string {
	if raw == "" {
		return ""
	}
	u, err := url.Parse(raw)
	if err != nil || u.IsAbs() || u.Host != "" {
		return ""
	}
	if u.Path != "/api/oauth/authorize" {
		return ""
	}
	return u.String()
}
