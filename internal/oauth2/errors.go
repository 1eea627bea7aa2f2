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

package oauth2

import (
	"errors"
	"fmt"
)

// Error is a protocol-level OAuth2 error (RFC 6749 section 5.2). RedirectURI
// carries the validated redirect target when the error may be delivered as a
// 302 to the client; when empty the transport must answer directly, because
// redirecting protocol errors to an unvalidated URI is an open redirect.
type Error struct {
	Code        string `json:"error"`
	Description string `json:"error_description,omitempty"`
	State       string `json:"state,omitempty"`
	RedirectURI string `json:"-"`
}

func (e *Error) Error() string {
	return fmt.Sprintf("oauth2 error: %s (%s)", e.Code, e.Description)
}

// Wire error codes.
const (
	ErrInvalidRequest          = "invalid_request"
	ErrInvalidClient           = "invalid_client"
	ErrInvalidGrant            = "invalid_grant"
	ErrUnauthorizedClient      = "unauthorized_client"
	ErrUnsupportedGrantType    = "unsupported_grant_type"
	ErrInvalidScope            = "invalid_scope"
	ErrAccessDenied            = "access_denied"
	ErrUnsupportedResponseType = "unsupported_response_type"
	ErrServerError             = "server_error"
	ErrInsufficientScope       = "insufficient_scope"
	ErrLoginRequired           = "login_required"

	// ErrUnauthorized is the body code for bearer-validation failures at
	// protected resources (401), outside the RFC 6749 redirect taxonomy.
	ErrUnauthorized = "unauthorized"

	// ErrClientRegistrationFailed is returned by the admin registration
	// endpoint on a client_id collision.
	ErrClientRegistrationFailed = "client_registration_failed"
)

// NewError creates a new protocol error.
func NewError(code, description string) *Error {
	return &Error{
		Code:        code,
		Description: description,
	}
}

// WithState attaches the request's state parameter; it is echoed verbatim in
// every error reply.
func (e *Error) WithState(state string) *Error {
	e.State = state
	return e
}

// WithRedirect marks the error deliverable to a validated redirect URI.
func (e *Error) WithRedirect(redirectURI string) *Error {
	e.RedirectURI = redirectURI
	return e
}

// AsError unwraps err into a protocol error if it carries one.
func AsError(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}
