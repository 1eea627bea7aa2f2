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
	"embed"
	"html/template"
	"log/slog"
	"net/http"

	"github.com/memvault/memvault/internal/identity"
	"github.com/memvault/memvault/internal/oauth2"
	"github.com/memvault/memvault/internal/observability/logger"
)

//go:embed templates/*.html
var templateFS embed.FS

//go:embed static
var staticFS embed.FS

//go:embed openapi.json
var openapiJSON []byte

var pageTemplates = template.Must(template.ParseFS(templateFS, "templates/*.html"))

type loginPage struct {
	ReturnTo string
	Error    string
}

func (h *Handler) renderLogin(w http.ResponseWriter, status int, returnTo, errorMessage string) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if err := pageTemplates.ExecuteTemplate(w, "login.html", loginPage{
		ReturnTo: returnTo,
		Error:    errorMessage,
	}); err != nil {
		slog.Error("failed to render login page", logger.Error(err))
	}
}

type consentScope struct {
	Scope       string
	Description string
}

type consentPage struct {
	Username   string
	ClientName string
	Scopes     []consentScope
	Request    *oauth2.AuthorizeRequest
}

// renderConsent shows the approval form. Every parameter of the validated
// request rides along as a hidden field and is re-validated on submit.
func (h *Handler) renderConsent(w http.ResponseWriter, r *http.Request, user *identity.User, client *oauth2.Client, req *oauth2.AuthorizeRequest) {
	requested := oauth2.SplitScope(req.Scope)
	scopes := make([]consentScope, 0, len(requested))
	for _, s := range requested {
		scopes = append(scopes, consentScope{Scope: s, Description: oauth2.DescribeScope(s)})
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	if err := pageTemplates.ExecuteTemplate(w, "consent.html", consentPage{
		Username:   user.Username,
		ClientName: client.ClientName,
		Scopes:     scopes,
		Request:    req,
	}); err != nil {
		slog.ErrorContext(r.Context(), "failed to render consent page", logger.Error(err))
	}
}

// Docs serves the API documentation page
// @Summary API Documentation
// @Description Minimal HTML page referencing the OpenAPI document
// @Tags System
// @Produce html
// @Success 200 {string} string "Documentation page"
// @Router /docs [get]
func (h *Handler) Docs(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	if err := pageTemplates.ExecuteTemplate(w, "docs.html", nil); err != nil {
		slog.ErrorContext(r.Context(), "failed to render docs page", logger.Error(err))
	}
}

// OpenAPI serves the OpenAPI 3 document
// @Summary OpenAPI Document
// @Description The machine-readable API description
// @Tags System
// @Produce json
// @Success 200 {string} string "OpenAPI 3 document"
// @Router /docs/openapi.json [get]
func (h *Handler) OpenAPI(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write(openapiJSON)
}

// Static serves embedded static assets under /static/.
func (h *Handler) Static(w http.ResponseWriter, r *http.Request) {
	http.FileServer(http.FS(staticFS)).ServeHTTP(w, r)
}
