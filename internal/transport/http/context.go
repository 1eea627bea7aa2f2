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

	"github.com/memvault/memvault/internal/oauth2"
)

type contextKey string

const (
	userIDKey    contextKey = "user_id"
	sessionIDKey contextKey = "session_id"
	tokenKey     contextKey = "token"
)

// GetUserID retrieves the authenticated user ID from context. The bearer
// guard and the admin Basic guard both store one.
func GetUserID(ctx context.Context) string {
	if val, ok := ctx.Value(userIDKey).(string); ok {
		return val
	}
	return ""
}

// GetSessionID retrieves the browser session ID from context.
func GetSessionID(ctx context.Context) string {
	if val, ok := ctx.Value(sessionIDKey).(string); ok {
		return val
	}
	return ""
}

// GetToken retrieves the validated bearer token from context. Nil when the
// request reached the handler through an exempt path.
func GetToken(ctx context.Context) *oauth2.Token {
	if val, ok := ctx.Value(tokenKey).(*oauth2.Token); ok {
		return val
	}
	return nil
}
