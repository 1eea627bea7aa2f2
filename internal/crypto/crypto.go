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

// Package crypto holds the primitives the authorization server is built on:
// high-entropy token generation, token digests for at-rest storage, S256
// PKCE computation, and constant-time comparison. Every comparison of secret
// material in the codebase goes through this package.
package crypto

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
)

const tokenBytes = 32

// GenerateToken returns a fresh 256-bit token encoded as unpadded base64url.
// Used for authorization codes, access tokens, and refresh tokens.
func GenerateToken() string {
	b := make([]byte, tokenBytes)
	rand.Read(b)
	return base64.RawURLEncoding.EncodeToString(b)
}

// GenerateSecret returns a fresh client secret. Same entropy as tokens; a
// separate name keeps call sites honest about what they are minting.
func GenerateSecret() string {
	return GenerateToken()
}

// HashToken returns the SHA-256 digest of a token string, encoded as
// unpadded base64url. Tokens and client secrets are persisted only in this
// form; the raw string is returned to the caller exactly once.
func HashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return base64.RawURLEncoding.EncodeToString(sum[:])
}

// S256Challenge computes the PKCE code challenge for a verifier:
// base64url(sha256(verifier)) with no padding (RFC 7636 section 4.2).
func S256Challenge(verifier string) string {
	sum := sha256.Sum256([]byte(verifier))
	return base64.RawURLEncoding.EncodeToString(sum[:])
}

// VerifyS256 reports whether verifier proves possession of challenge. The
// comparison runs over the recomputed digest in constant time.
func VerifyS256(verifier, challenge string) bool {
	return Equal(S256Challenge(verifier), challenge)
}

// Equal compares two strings in constant time for equal lengths. Unequal
// lengths return false immediately; the secrets compared here are
// fixed-length digests, so length itself is not secret.
func Equal(a, b string) bool {
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}
