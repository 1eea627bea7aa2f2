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

	"github.com/memvault/memvault/internal/memory"
	"github.com/memvault/memvault/internal/observability/logger"
)

// CreateMemoryRequest is the body for creating a memory.
type CreateMemoryRequest struct {
	Text       string `json:"text" example:"The wifi password at the cabin is hunter2"`
	Permission string `json:"permission,omitempty" example:"private"`
}

// CreateMemory stores a new memory
// @Summary Create Memory
// @Description Store a new memory for the token's owner (scope memories:write)
// @Tags Memories
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body CreateMemoryRequest true "Memory"
// @Success 201 {object} map[string]any
// @Failure 400 {object} map[string]string
// @Router /api/memories [post]
func (h *Handler) CreateMemory(w http.ResponseWriter, r *http.Request) {
	var req CreateMemoryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid request body")
		return
	}

	m, err := h.memoryService.Create(r.Context(), GetUserID(r.Context()), req.Text, req.Permission)
	if err != nil {
		h.respondMemoryError(w, r, err)
		return
	}

	respondJSON(w, http.StatusCreated, memoryJSON(m))
}

// ListMemories lists the owner's memories
// @Summary List Memories
// @Description List the token owner's memories, newest first (scope memories:read)
// @Tags Memories
// @Produce json
// @Security BearerAuth
// @Param limit query int false "Page size (default 50, max 100)"
// @Param offset query int false "Page offset"
// @Success 200 {object} map[string]any
// @Router /api/memories [get]
func (h *Handler) ListMemories(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))

	memories, err := h.memoryService.List(r.Context(), GetUserID(r.Context()), limit, offset)
	if err != nil {
		slog.ErrorContext(r.Context(), "failed to list memories", logger.Error(err))
		respondError(w, http.StatusInternalServerError, "server_error", "failed to list memories")
		return
	}

	items := make([]map[string]any, 0, len(memories))
	for _, m := range memories {
		items = append(items, memoryJSON(m))
	}

	respondJSON(w, http.StatusOK, map[string]any{
		"memories": items,
		"count":    len(items),
	})
}

// GetMemory fetches one memory
// @Summary Get Memory
// @Description Fetch a memory by ID; other users' private memories read as missing (scope memories:read)
// @Tags Memories
// @Produce json
// @Security BearerAuth
// @Param id path string true "Memory ID"
// @Success 200 {object} map[string]any
// @Failure 404 {object} map[string]string
// @Router /api/memories/{id} [get]
func (h *Handler) GetMemory(w http.ResponseWriter, r *http.Request) {
	m, err := h.memoryService.Get(r.Context(), GetUserID(r.Context()), chi.URLParam(r, "memoryID"))
	if err != nil {
		h.respondMemoryError(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, memoryJSON(m))
}

// UpdateMemoryRequest carries a partial memory update. Absent fields are
// left unchanged.
type UpdateMemoryRequest struct {
	Text       *string `json:"text,omitempty"`
	Permission *string `json:"permission,omitempty" example:"public"`
}

// UpdateMemory modifies a memory
// @Summary Update Memory
// @Description Change a memory's text or visibility; owner only (scope memories:write)
// @Tags Memories
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Memory ID"
// @Param request body UpdateMemoryRequest true "Fields to change"
// @Success 200 {object} map[string]any
// @Failure 403 {object} map[string]string
// @Failure 404 {object} map[string]string
// @Router /api/memories/{id} [put]
func (h *Handler) UpdateMemory(w http.ResponseWriter, r *http.Request) {
	var req UpdateMemoryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid request body")
		return
	}

	m, err := h.memoryService.UpdateMemory(r.Context(), GetUserID(r.Context()), chi.URLParam(r, "memoryID"), memory.Update{
		Text:       req.Text,
		Permission: req.Permission,
	})
	if err != nil {
		h.respondMemoryError(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, memoryJSON(m))
}

// DeleteMemory removes a memory
// @Summary Delete Memory
// @Description Delete a memory; owner only (scope memories:delete)
// @Tags Memories
// @Security BearerAuth
// @Param id path string true "Memory ID"
// @Success 204 {string} string "Deleted"
// @Failure 403 {object} map[string]string
// @Failure 404 {object} map[string]string
// @Router /api/memories/{id} [delete]
func (h *Handler) DeleteMemory(w http.ResponseWriter, r *http.Request) {
	if err := h.memoryService.DeleteMemory(r.Context(), GetUserID(r.Context()), chi.URLParam(r, "memoryID")); err != nil {
		h.respondMemoryError(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) respondMemoryError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, memory.ErrMemoryNotFound):
		respondError(w, http.StatusNotFound, "not_found", "memory not found")
	case errors.Is(err, memory.ErrNotOwner):
		respondError(w, http.StatusForbidden, "forbidden", "memory belongs to another user")
	case errors.Is(err, memory.ErrEmptyText),
		errors.Is(err, memory.ErrTextTooLong),
		errors.Is(err, memory.ErrBadPermission):
		respondError(w, http.StatusBadRequest, "invalid_request", err.Error())
	default:
		slog.ErrorContext(r.Context(), "memory operation failed", logger.Error(err))
		respondError(w, http.StatusInternalServerError, "server_error", "memory operation failed")
	}
}

func memoryJSON(m *memory.Memory) map[string]any {
	return map[string]any{
		"id":         m.ID,
		"user_id":    m.UserID,
		"text":       m.Text,
		"permission": m.Permission,
		"created_at": m.CreatedAt,
		"updated_at": m.UpdatedAt,
	}
}
