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
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/memvault/memvault/internal/oauth2"
	"github.com/memvault/memvault/internal/observability/logger"
)

// RegisterClientRequest represents the data for registering an OAuth2 client
type RegisterClientRequest struct {
	ClientName    string   `json:"client_name" example:"My Application"`
	RedirectURIs  []string `json:"redirect_uris" example:"https://app.example.com/callback"`
	AllowedScopes []string `json:"allowed_scopes" example:"memories:read,memories:write"`
}

// RegisterClientResponse carries the one-time secret alongside the client
// metadata. The secret is never retrievable again.
type RegisterClientResponse struct {
	ClientID      string   `json:"client_id"`
	ClientSecret  string   `json:"client_secret"`
	ClientName    string   `json:"client_name"`
	RedirectURIs  []string `json:"redirect_uris"`
	AllowedScopes []string `json:"allowed_scopes"`
}

// RegisterClient handles OAuth2 client registration
// @Summary Register Client
// @Description Register a confidential OAuth2 client; the secret is returned exactly once
// @Tags Admin
// @Accept json
// @Produce json
// @Security AdminBasicAuth
// @Param request body RegisterClientRequest true "Client Data"
// @Success 201 {object} RegisterClientResponse
// @Failure 400 {object} oauth2.Error
// @Failure 401 {object} map[string]string
// @Failure 403 {object} map[string]string
// @Router /api/admin/clients/register [post]
func (h *Handler) RegisterClient(w http.ResponseWriter, r *http.Request) {
	var req RegisterClientRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid request body")
		return
	}

	client := &oauth2.Client{
		ClientName:    req.ClientName,
		RedirectURIs:  req.RedirectURIs,
		AllowedScopes: req.AllowedScopes,
	}

	secret, err := h.oauth2Service.RegisterClient(r.Context(), client)
	if err != nil {
		h.respondClientError(w, r, err)
		return
	}

	respondJSON(w, http.StatusCreated, RegisterClientResponse{
		ClientID:      client.ClientID,
		ClientSecret:  secret,
		ClientName:    client.ClientName,
		RedirectURIs:  client.RedirectURIs,
		AllowedScopes: client.AllowedScopes,
	})
}

// ListClients lists registered clients
// @Summary List Clients
// @Description List registered OAuth2 clients, newest first
// @Tags Admin
// @Produce json
// @Security AdminBasicAuth
// @Param limit query int false "Page size (default 100)"
// @Param offset query int false "Page offset"
// @Success 200 {object} map[string]any
// @Router /api/admin/clients [get]
func (h *Handler) ListClients(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))

	clients, err := h.oauth2Service.ListClients(r.Context(), limit, offset)
	if err != nil {
		slog.ErrorContext(r.Context(), "failed to list clients", logger.Error(err))
		respondError(w, http.StatusInternalServerError, "server_error", "failed to list clients")
		return
	}

	items := make([]map[string]any, 0, len(clients))
	for _, c := range clients {
		items = append(items, clientJSON(c))
	}

	respondJSON(w, http.StatusOK, map[string]any{
		"clients": items,
		"count":   len(items),
	})
}

// GetClient fetches one client
// @Summary Get Client
// @Description Fetch a registered client by its client_id
// @Tags Admin
// @Produce json
// @Security AdminBasicAuth
// @Param client_id path string true "Client ID"
// @Success 200 {object} map[string]any
// @Failure 404 {object} map[string]string
// @Router /api/admin/clients/{client_id} [get]
func (h *Handler) GetClient(w http.ResponseWriter, r *http.Request) {
	client, err := h.oauth2Service.GetClient(r.Context(), chi.URLParam(r, "clientID"))
	if err != nil {
		h.respondClientError(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, clientJSON(client))
}

// UpdateClientRequest carries a partial client update. Absent fields are
// left unchanged; lists replace the stored value wholesale.
type UpdateClientRequest struct {
	ClientName    *string  `json:"client_name,omitempty"`
	RedirectURIs  []string `json:"redirect_uris,omitempty"`
	AllowedScopes []string `json:"allowed_scopes,omitempty"`
	IsActive      *bool    `json:"is_active,omitempty"`
}

// UpdateClient modifies client metadata
// @Summary Update Client
// @Description Change a client's name, redirect URIs, allowed scopes, or active flag
// @Tags Admin
// @Accept json
// @Produce json
// @Security AdminBasicAuth
// @Param client_id path string true "Client ID"
// @Param request body UpdateClientRequest true "Fields to change"
// @Success 200 {object} map[string]any
// @Failure 400 {object} oauth2.Error
// @Failure 404 {object} map[string]string
// @Router /api/admin/clients/{client_id} [put]
func (h *Handler) UpdateClient(w http.ResponseWriter, r *http.Request) {
	var req UpdateClientRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid request body")
		return
	}

	client, err := h.oauth2Service.UpdateClient(r.Context(), chi.URLParam(r, "clientID"), oauth2.ClientUpdate{
		ClientName:    req.ClientName,
		RedirectURIs:  req.RedirectURIs,
		AllowedScopes: req.AllowedScopes,
		IsActive:      req.IsActive,
	})
	if err != nil {
		h.respondClientError(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, clientJSON(client))
}

// DeleteClient removes a client
// @Summary Delete Client
// @Description Remove a client from the registry; outstanding tokens die at their natural expiry
// @Tags Admin
// @Security AdminBasicAuth
// @Param client_id path string true "Client ID"
// @Success 204 {string} string "Deleted"
// @Failure 404 {object} map[string]string
// @Router /api/admin/clients/{client_id} [delete]
func (h *Handler) DeleteClient(w http.ResponseWriter, r *http.Request) {
	if err := h.oauth2Service.DeleteClient(r.Context(), chi.URLParam(r, "clientID")); err != nil {
		h.respondClientError(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) respondClientError(w http.ResponseWriter, r *http.Request, err error) {
	if oe, ok := oauth2.AsError(err); ok {
		respondJSON(w, http.StatusBadRequest, oe)
		return
	}
	if errors.Is(err, oauth2.ErrClientNotFound) {
		respondError(w, http.StatusNotFound, "not_found", "client not found")
		return
	}
	slog.ErrorContext(r.Context(), "client operation failed", logger.Error(err))
	respondError(w, http.StatusInternalServerError, "server_error", "client operation failed")
}

func clientJSON(c *oauth2.Client) map[string]any {
	return map[string]any{
		"client_id":       c.ClientID,
		"client_name":     c.ClientName,
		"redirect_uris":   c.RedirectURIs,
		"allowed_scopes":  c.AllowedScopes,
		"is_confidential": c.IsConfidential,
		"is_active":       c.IsActive,
		"created_at":      c.CreatedAt,
		"updated_at":      c.UpdatedAt,
	}
}
