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

	"github.com/memvault/memvault/internal/identity"
	"github.com/memvault/memvault/internal/observability/logger"
)

// GetProfile returns the token owner's profile
// @Summary Get Profile
// @Description Retrieve the profile of the token's resource owner (scope profile:read)
// @Tags Users
// @Produce json
// @Security BearerAuth
// @Success 200 {object} map[string]any
// @Failure 401 {object} map[string]string
// @Failure 403 {object} map[string]string
// @Router /api/users/me [get]
func (h *Handler) GetProfile(w http.ResponseWriter, r *http.Request) {
	user, err := h.identityService.GetUser(r.Context(), GetUserID(r.Context()))
	if err != nil {
		respondError(w, http.StatusNotFound, "not_found", "user not found")
		return
	}

	respondJSON(w, http.StatusOK, userJSON(user))
}

// UpdateProfileRequest carries a partial profile update. Absent fields are
// left unchanged.
type UpdateProfileRequest struct {
	Email    *string `json:"email,omitempty" example:"ada@example.com"`
	Username *string `json:"username,omitempty" example:"ada"`
	Password *string `json:"password,omitempty"`
}

// UpdateProfile updates the token owner's profile
// @Summary Update Profile
// @Description Update email, username, or password (scope profile:write)
// @Tags Users
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body UpdateProfileRequest true "Fields to change"
// @Success 200 {object} map[string]any
// @Failure 400 {object} map[string]string
// @Failure 409 {object} map[string]string
// @Router /api/users/me [put]
func (h *Handler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	var req UpdateProfileRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid request body")
		return
	}

	user, err := h.identityService.UpdateProfile(r.Context(), GetUserID(r.Context()), identity.ProfileUpdate{
		Email:    req.Email,
		Username: req.Username,
		Password: req.Password,
	})
	if err != nil {
		switch {
		case errors.Is(err, identity.ErrUserNotFound):
			respondError(w, http.StatusNotFound, "not_found", "user not found")
		case errors.Is(err, identity.ErrDuplicateUser):
			respondError(w, http.StatusConflict, "duplicate_user", "email or username is already taken")
		case errors.Is(err, identity.ErrInvalidEmail),
			errors.Is(err, identity.ErrInvalidUsername),
			errors.Is(err, identity.ErrWeakPassword):
			respondError(w, http.StatusBadRequest, "invalid_request", err.Error())
		default:
			slog.ErrorContext(r.Context(), "failed to update profile", logger.Error(err))
			respondError(w, http.StatusInternalServerError, "server_error", "failed to update profile")
		}
		return
	}

	respondJSON(w, http.StatusOK, userJSON(user))
}

func userJSON(user *identity.User) map[string]any {
	return map[string]any{
		"user_id":      user.ID,
		"email":        user.Email,
		"username":     user.Username,
		"is_superuser": user.IsSuperuser,
		"created_at":   user.CreatedAt,
		"updated_at":   user.UpdatedAt,
	}
}
