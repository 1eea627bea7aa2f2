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

// Package audit records security-relevant actions. Every credential grant,
// denial, and revocation leaves exactly one event here.
package audit

import (
	"context"
	"log/slog"
	"strings"
	"time"
)

// Event types
const (
	TypeUserRegistered   = "user_registered"
	TypeLoginSuccess     = "login_success"
	TypeLoginFailed      = "login_failed"
	TypeLogout           = "logout"
	TypeClientRegistered = "client_registered"
	TypeClientUpdated    = "client_updated"
	TypeClientDeleted    = "client_deleted"
	TypeCodeIssued       = "authorization_code_issued"
	TypeConsentDenied    = "consent_denied"
	TypeTokenIssued      = "token_issued"
	TypeTokenRefreshed   = "token_refreshed"
	TypeTokenRevoked     = "token_revoked"
	TypeAdminDenied      = "admin_access_denied"
	TypeAdminBootstrap   = "admin_bootstrapped"
)

// Event represents an auditable action.
type Event struct {
	Type      string
	ActorID   string
	Resource  string
	Metadata  map[string]any
	Timestamp time.Time
	IPAddress string
	UserAgent string
}

// Logger defines the interface for audit logging.
type Logger interface {
	Log(ctx context.Context, event Event)
}

// SlogLogger implements Logger using slog.
type SlogLogger struct{}

// NewSlogLogger creates a new audit logger.
func NewSlogLogger() *SlogLogger {
	return &SlogLogger{}
}

// Log records an audit event.
func (l *SlogLogger) Log(ctx context.Context, event Event) {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	attrs := []any{
		slog.String("audit_type", event.Type),
		slog.String("actor_id", event.ActorID),
		slog.String("resource", event.Resource),
		slog.Time("timestamp", event.Timestamp),
	}

	if event.IPAddress != "" {
		attrs = append(attrs, slog.String("ip_address", event.IPAddress))
	}
	if event.UserAgent != "" {
		attrs = append(attrs, slog.String("user_agent", event.UserAgent))
	}

	if len(event.Metadata) > 0 {
		group := []any{}
		for k, v := range event.Metadata {
			// Never let a raw credential reach the log stream.
			if isSecret(k) {
				v = "[REDACTED]"
			}
			group = append(group, slog.Any(k, v))
		}
		attrs = append(attrs, slog.Group("metadata", group...))
	}

	slog.InfoContext(ctx, "AUDIT_EVENT", append(attrs, slog.String("component", "audit"))...)
}

// isSecret checks if a key likely contains a secret.
func isSecret(key string) bool {
	k := strings.ToLower(key)
	for _, s := range []string{"password", "secret", "token", "credential", "authorization", "hash", "key", "verifier"} {
		if strings.Contains(k, s) {
			return true
		}
	}
	return false
}
