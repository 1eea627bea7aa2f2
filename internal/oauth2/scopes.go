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

import "strings"

// Scopes recognized by the memory API. The authoritative set for a
// deployment comes from configuration; these constants name the defaults.
const (
	ScopeMemoriesRead   = "memories:read"
	ScopeMemoriesWrite  = "memories:write"
	ScopeMemoriesDelete = "memories:delete"
	ScopeProfileRead    = "profile:read"
	ScopeProfileWrite   = "profile:write"
	ScopeOfflineAccess  = "offline_access"
)

// DefaultValidScopes is the scope set served when configuration does not
// override it.
var DefaultValidScopes = []string{
	ScopeMemoriesRead,
	ScopeMemoriesWrite,
	ScopeMemoriesDelete,
	ScopeProfileRead,
	ScopeProfileWrite,
	ScopeOfflineAccess,
}

var scopeDescriptions = map[string]string{
	ScopeMemoriesRead:   "Read your memories",
	ScopeMemoriesWrite:  "Create and update your memories",
	ScopeMemoriesDelete: "Delete your memories",
	ScopeProfileRead:    "View your profile information",
	ScopeProfileWrite:   "Update your profile information",
	ScopeOfflineAccess:  "Keep access when you are offline",
}

// DescribeScope returns the human-readable consent-page description of a
// scope. Unknown scopes get a generic fallback so the page never breaks on
// a newly configured scope.
func DescribeScope(scope string) string {
	if d, ok := scopeDescriptions[scope]; ok {
		return d
	}
	return "Access to " + scope
}

// SplitScope splits a space-separated scope string into its tokens.
func SplitScope(scope string) []string {
	return strings.Fields(scope)
}

// NormalizeScope collapses whitespace so the stored scope round-trips as a
// single-space-separated string.
func NormalizeScope(scope string) string {
	return strings.Join(strings.Fields(scope), " ")
}

// HasScope reports whether the space-separated scope string contains want.
func HasScope(scope, want string) bool {
	for _, s := range strings.Fields(scope) {
		if s == want {
			return true
		}
	}
	return false
}

// MissingScopes returns the members of want absent from the space-separated
// scope string, in want's order.
func MissingScopes(scope string, want []string) []string {
	var missing []string
	for _, w := range want {
		if !HasScope(scope, w) {
			missing = append(missing, w)
		}
	}
	return missing
}

// ScopeSubset reports whether every token of requested appears in granted.
// An empty requested scope is a subset of anything.
func ScopeSubset(requested, granted string) bool {
	for _, r := range strings.Fields(requested) {
		if !HasScope(granted, r) {
			return false
		}
	}
	return true
}
