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
	"log/slog"
	"net/http"
	"net/url"

	"github.com/memvault/memvault/internal/audit"
	"github.com/memvault/memvault/internal/oauth2"
	"github.com/memvault/memvault/internal/observability/logger"
)

// Authorize starts the authorization code flow
// @Summary OAuth2 Authorize Endpoint
// @Description Validates the authorization request and renders the consent page (RFC 6749 section 4.1.1)
// @Tags OAuth2
// @Produce html
// @Param response_type query string true "Response Type (must be 'code')"
// @Param client_id query string true "Client ID"
// @Param redirect_uri query string true "Redirect URI"
// @Param scope query string true "Requested scopes (space-separated)"
// @Param state query string false "Opaque client state"
// @Param code_challenge query string true "PKCE Challenge"
// @Param code_challenge_method query string false "PKCE Method (S256)"
// @Success 200 {string} string "Consent page"
// @Success 302 {string} string "Redirects to login or back with an error"
// @Failure 400 {object} oauth2.Error
// @Router /api/oauth/authorize [get]
func (h *Handler) Authorize(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	req := &oauth2.AuthorizeRequest{
		ResponseType:        query.Get("response_type"),
		ClientID:            query.Get("client_id"),
		RedirectURI:         query.Get("redirect_uri"),
		Scope:               query.Get("scope"),
		State:               query.Get("state"),
		CodeChallenge:       query.Get("code_challenge"),
		CodeChallengeMethod: query.Get("code_challenge_method"),
	}

	client, err := h.oauth2Service.ValidateAuthorizeRequest(r.Context(), req)
	if err != nil {
		h.authorizeFailure(w, r, err)
		return
	}

	user, _ := h.currentUser(r)
	if user == nil {
		// Send the browser to the login form with the complete
		// authorization request preserved for the round-trip.
		returnTo := url.QueryEscape(r.URL.RequestURI())
		http.Redirect(w, r, "/login?return_to="+returnTo, http.StatusFound)
		return
	}

	h.renderConsent(w, r, user, client, req)
}

// Consent records the resource owner's decision
// @Summary OAuth2 Consent Endpoint
// @Description Accepts the consent form and issues the authorization code (RFC 6749 section 4.1.2)
// @Tags OAuth2
// @Accept x-www-form-urlencoded
// @Param decision formData string true "approve or deny"
// @Param response_type formData string true "Response Type (must be 'code')"
// @Param client_id formData string true "Client ID"
// @Param redirect_uri formData string true "Redirect URI"
// @Param scope formData string true "Requested scopes"
// @Param state formData string false "Opaque client state"
// @Param code_challenge formData string true "PKCE Challenge"
// @Param code_challenge_method formData string false "PKCE Method (S256)"
// @Success 302 {string} string "Redirects back to the client"
// @Failure 400 {object} oauth2.Error
// @Router /api/oauth/consent [post]
func (h *Handler) Consent(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		respondJSON(w, http.StatusBadRequest, oauth2.NewError(oauth2.ErrInvalidRequest, "malformed form body"))
		return
	}

	// The form parameters are attacker-controlled: nothing from the
	// consent page render is trusted, so validation runs again from
	// scratch.
	req := &oauth2.AuthorizeRequest{
		ResponseType:        r.PostForm.Get("response_type"),
		ClientID:            r.PostForm.Get("client_id"),
		RedirectURI:         r.PostForm.Get("redirect_uri"),
		Scope:               r.PostForm.Get("scope"),
		State:               r.PostForm.Get("state"),
		CodeChallenge:       r.PostForm.Get("code_challenge"),
		CodeChallengeMethod: r.PostForm.Get("code_challenge_method"),
	}

	client, err := h.oauth2Service.ValidateAuthorizeRequest(r.Context(), req)
	if err != nil {
		h.authorizeFailure(w, r, err)
		return
	}

	user, _ := h.currentUser(r)
	if user == nil {
		redirectOAuthError(w, r, oauth2.NewError(oauth2.ErrLoginRequired, "session expired during consent").
			WithState(req.State).WithRedirect(req.RedirectURI))
		return
	}

	if r.PostForm.Get("decision") != "approve" {
		h.auditLogger.Log(r.Context(), audit.Event{
			Type:      audit.TypeConsentDenied,
			ActorID:   user.ID,
			Resource:  req.ClientID,
			IPAddress: getIPAddress(r),
			UserAgent: r.UserAgent(),
			Metadata:  map[string]any{"scope": req.Scope},
		})
		redirectOAuthError(w, r, oauth2.NewError(oauth2.ErrAccessDenied, "the resource owner denied the request").
			WithState(req.State).WithRedirect(req.RedirectURI))
		return
	}

	code, err := h.oauth2Service.CreateAuthorizationCode(r.Context(), client, user.ID, req)
	if err != nil {
		slog.ErrorContext(r.Context(), "failed to issue authorization code",
			logger.Error(err),
			logger.ClientID(req.ClientID),
		)
		redirectOAuthError(w, r, oauth2.NewError(oauth2.ErrServerError, "failed to issue authorization code").
			WithState(req.State).WithRedirect(req.RedirectURI))
		return
	}

	params := url.Values{"code": {code.Code}}
	if req.State != "" {
		params.Set("state", req.State)
	}
	http.Redirect(w, r, addQueryParams(req.RedirectURI, params), http.StatusFound)
}

// Token exchanges a grant for tokens
// @Summary OAuth2 Token Endpoint
// @Description Exchanges an authorization code or refresh token for tokens (RFC 6749 section 4.1.3 / 6)
// @Tags OAuth2
// @Accept x-www-form-urlencoded
// @Produce json
// @Param grant_type formData string true "authorization_code or refresh_token"
// @Param code formData string false "Authorization code"
// @Param redirect_uri formData string false "Redirect URI used at /authorize"
// @Param code_verifier formData string false "PKCE verifier"
// @Param refresh_token formData string false "Refresh token"
// @Param scope formData string false "Narrowed scope (refresh only)"
// @Param client_id formData string false "Client ID (when not using Basic auth)"
// @Param client_secret formData string false "Client secret (when not using Basic auth)"
// @Success 200 {object} oauth2.TokenResponse
// @Failure 400 {object} oauth2.Error
// @Failure 401 {object} oauth2.Error
// @Router /api/oauth/token [post]
func (h *Handler) Token(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		h.respondTokenError(w, oauth2.NewError(oauth2.ErrInvalidRequest, "malformed form body"), false)
		return
	}

	// client_secret_post first, client_secret_basic as the fallback
	// (RFC 6749 section 2.3.1). The channel decides the failure status.
	clientID := r.PostForm.Get("client_id")
	clientSecret := r.PostForm.Get("client_secret")
	viaHeader := false
	if clientID == "" {
		if username, password, ok := r.BasicAuth(); ok {
			clientID = username
			clientSecret = password
			viaHeader = true
		}
	}

	req := &oauth2.TokenRequest{
		GrantType:    r.PostForm.Get("grant_type"),
		Code:         r.PostForm.Get("code"),
		RedirectURI:  r.PostForm.Get("redirect_uri"),
		ClientID:     clientID,
		ClientSecret: clientSecret,
		CodeVerifier: r.PostForm.Get("code_verifier"), // RFC 7636 section 4.5
		RefreshToken: r.PostForm.Get("refresh_token"),
		Scope:        r.PostForm.Get("scope"),
	}

	var resp *oauth2.TokenResponse
	var err error

	switch req.GrantType {
	case "authorization_code":
		resp, err = h.oauth2Service.ExchangeCodeForToken(r.Context(), req)
	case "refresh_token":
		resp, err = h.oauth2Service.RefreshAccessToken(r.Context(), req)
	default:
		h.respondTokenError(w, oauth2.NewError(oauth2.ErrUnsupportedGrantType,
			"grant_type must be authorization_code or refresh_token"), viaHeader)
		return
	}

	if err != nil {
		slog.WarnContext(r.Context(), "token request failed",
			logger.Error(err),
			logger.GrantType(req.GrantType),
			logger.ClientID(req.ClientID),
		)
		h.respondTokenError(w, err, viaHeader)
		return
	}

	// Token responses must never be cached (RFC 6749 section 5.1).
	w.Header().Set("Cache-Control", "no-store")
	w.Header().Set("Pragma", "no-cache")

	respondJSON(w, http.StatusOK, resp)
}

// RevokeRequest is the body of a revocation request.
type RevokeRequest struct {
	Token  string `json:"token" example:"dGhlLXJlZnJlc2gtdG9rZW4"`
	Reason string `json:"reason,omitempty" example:"user logged out"`
}

// RevokeToken revokes a token
// @Summary Revoke Token
// @Description Revokes an access or refresh token; unknown tokens succeed (RFC 7009)
// @Tags OAuth2
// @Accept json
// @Security BearerAuth
// @Param request body RevokeRequest true "Token to revoke"
// @Success 200 {string} string "OK"
// @Failure 400 {object} map[string]string
// @Router /api/oauth/tokens/revoke [post]
func (h *Handler) RevokeToken(w http.ResponseWriter, r *http.Request) {
	var req RevokeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, oauth2.ErrInvalidRequest, "invalid request body")
		return
	}
	if req.Token == "" {
		respondError(w, http.StatusBadRequest, oauth2.ErrInvalidRequest, "token is required")
		return
	}

	if err := h.oauth2Service.RevokeToken(r.Context(), req.Token, req.Reason); err != nil {
		slog.ErrorContext(r.Context(), "failed to revoke token", logger.Error(err))
		respondError(w, http.StatusInternalServerError, oauth2.ErrServerError, "failed to revoke token")
		return
	}

	// Revoking an unknown or already revoked token reports success
	// (RFC 7009 section 2.2).
	w.WriteHeader(http.StatusOK)
}

// IntrospectRequest is the body of an introspection request.
type IntrospectRequest struct {
	Token string `json:"token" example:"dGhlLWFjY2Vzcy10b2tlbg"`
}

// IntrospectToken reports token state
// @Summary Introspect Token
// @Description Reports whether a token is active; inactive tokens reveal nothing else (RFC 7662)
// @Tags OAuth2
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body IntrospectRequest true "Token to introspect"
// @Success 200 {object} oauth2.Introspection
// @Failure 400 {object} map[string]string
// @Router /api/oauth/tokens/introspect [post]
func (h *Handler) IntrospectToken(w http.ResponseWriter, r *http.Request) {
	var req IntrospectRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, oauth2.ErrInvalidRequest, "invalid request body")
		return
	}

	info, err := h.oauth2Service.Introspect(r.Context(), req.Token)
	if err != nil {
		slog.ErrorContext(r.Context(), "introspection failed", logger.Error(err))
		respondError(w, http.StatusInternalServerError, oauth2.ErrServerError, "introspection failed")
		return
	}

	respondJSON(w, http.StatusOK, info)
}

// authorizeFailure delivers an authorization error either as a 302 to the
// validated redirect URI or as a direct 400. Redirecting to an unvalidated
// URI would hand out an open redirect, so the protocol error itself says
// whether redirect trust was established.
func (h *Handler) authorizeFailure(w http.ResponseWriter, r *http.Request, err error) {
	oe, ok := oauth2.AsError(err)
	if !ok {
		slog.ErrorContext(r.Context(), "authorize request failed", logger.Error(err))
		respondJSON(w, http.StatusInternalServerError,
			oauth2.NewError(oauth2.ErrServerError, "internal server error"))
		return
	}

	slog.WarnContext(r.Context(), "authorize request rejected",
		logger.ErrorType(oe.Code),
		logger.Error(oe),
	)

	if oe.RedirectURI == "" {
		respondJSON(w, http.StatusBadRequest, oe)
		return
	}
	redirectOAuthError(w, r, oe)
}

// respondTokenError writes a token endpoint protocol error. invalid_client
// answers 401 with a Basic challenge only when the credentials arrived in
// the Authorization header (RFC 6749 section 5.2); otherwise 400.
func (h *Handler) respondTokenError(w http.ResponseWriter, err error, viaHeader bool) {
	oe, ok := oauth2.AsError(err)
	if !ok {
		respondJSON(w, http.StatusInternalServerError,
			oauth2.NewError(oauth2.ErrServerError, "internal server error"))
		return
	}

	status := http.StatusBadRequest
	switch oe.Code {
	case oauth2.ErrInvalidClient:
		if viaHeader {
			w.Header().Set("WWW-Authenticate", `Basic realm="memvault"`)
			status = http.StatusUnauthorized
		}
	case oauth2.ErrServerError:
		status = http.StatusInternalServerError
	}

	w.Header().Set("Cache-Control", "no-store")
	w.Header().Set("Pragma", "no-cache")
	respondJSON(w, status, oe)
}

func redirectOAuthError(w http.ResponseWriter, r *http.Request, oe *oauth2.Error) {
	params := url.Values{"error": {oe.Code}}
	if oe.Description != "" {
		params.Set("error_description", oe.Description)
	}
	if oe.State != "" {
		params.Set("state", oe.State)
	}
	http.Redirect(w, r, addQueryParams(oe.RedirectURI, params), http.StatusFound)
}

// addQueryParams appends params to rawURL, keeping any query it already
// carries.
func addQueryParams(rawURL string, params url.Values) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return rawURL
	}
	q := u.Query()
	for key, values := range params {
		for _, v := range values {
			q.Set(key, v)
		}
	}
	u.RawQuery = q.Encode()
	return u.String()
}
