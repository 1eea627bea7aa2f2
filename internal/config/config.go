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

package config

import (
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all application configuration
type Config struct {
	Server        ServerConfig
	Database      DatabaseConfig
	OAuth         OAuthConfig
	Session       SessionConfig
	Admin         AdminConfig
	Security      SecurityConfig
	RateLimit     RateLimitConfig
	Sweeper       SweeperConfig
	Observability ObservabilityConfig
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host         string
	Port         string
	BaseURL      string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

// Addr returns the host:port listen address.
func (s ServerConfig) Addr() string {
	return net.JoinHostPort(s.Host, s.Port)
}

// DatabaseConfig holds database configuration. URL, when set, takes
// precedence over the discrete fields.
type DatabaseConfig struct {
	URL             string
	Host            string
	Port            string
	User            string
	Password        string
	Database        string
	SSLMode         string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// OAuthConfig holds token lifetimes and the scope policy
type OAuthConfig struct {
	AccessTokenTTL  time.Duration
	RefreshTokenTTL time.Duration
	AuthCodeTTL     time.Duration
	ValidScopes     []string
	RequiredScopes  []string
}

// SessionConfig holds browser session configuration
type SessionConfig struct {
	Secret         string
	Lifetime       time.Duration
	CookieName     string
	CookieDomain   string
	CookiePath     string
	CookieSecure   bool
	CookieHTTPOnly bool
	CookieSameSite string
}

// AdminConfig holds the bootstrap administrator account
type AdminConfig struct {
	Bootstrap bool
	Email     string
	Username  string
	Password  string
}

// SecurityConfig holds password hashing parameters
type SecurityConfig struct {
	Argon2Memory      uint32
	Argon2Iterations  uint32
	Argon2Parallelism uint8
	Argon2SaltLength  uint32
	Argon2KeyLength   uint32
}

// RateLimitConfig holds rate limiting configuration
type RateLimitConfig struct {
	RequestsPerSecond float64
	Burst             int
}

// SweeperConfig holds the expired-row sweeper configuration
type SweeperConfig struct {
	Interval time.Duration
}

// ObservabilityConfig holds logging and tracing configuration
type ObservabilityConfig struct {
	LogLevel       string
	LogFormat      string
	OTLPEndpoint   string
	ServiceName    string
	ServiceVersion string
}

// TracingEnabled reports whether an OTLP endpoint was configured.
func (o ObservabilityConfig) TracingEnabled() bool {
	return o.OTLPEndpoint != ""
}

// Load loads configuration from the environment. A .env file in the
// working directory is honored when present; a missing file is not an
// error.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		Server: ServerConfig{
			Host:         getEnv("MEMVAULT_HOST", "0.0.0.0"),
			Port:         getEnv("MEMVAULT_PORT", "8080"),
			BaseURL:      getEnv("MEMVAULT_BASE_URL", "http://localhost:8080"),
			ReadTimeout:  parseDuration("MEMVAULT_READ_TIMEOUT", "15s"),
			WriteTimeout: parseDuration("MEMVAULT_WRITE_TIMEOUT", "15s"),
			IdleTimeout:  parseDuration("MEMVAULT_IDLE_TIMEOUT", "60s"),
		},
		Database: DatabaseConfig{
			URL:             getEnv("DATABASE_URL", ""),
			Host:            getEnv("MEMVAULT_DB_HOST", "localhost"),
			Port:            getEnv("MEMVAULT_DB_PORT", "5432"),
			User:            getEnv("MEMVAULT_DB_USER", "memvault"),
			Password:        getEnv("MEMVAULT_DB_PASSWORD", ""),
			Database:        getEnv("MEMVAULT_DB_NAME", "memvault"),
			SSLMode:         getEnv("MEMVAULT_DB_SSLMODE", "disable"),
			MaxOpenConns:    parseInt("MEMVAULT_DB_MAX_OPEN_CONNS", 25),
			MaxIdleConns:    parseInt("MEMVAULT_DB_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: parseDuration("MEMVAULT_DB_CONN_MAX_LIFETIME", "5m"),
		},
		OAuth: OAuthConfig{
			AccessTokenTTL:  time.Duration(parseInt("MEMVAULT_ACCESS_TOKEN_TTL_MINUTES", 60)) * time.Minute,
			RefreshTokenTTL: time.Duration(parseInt("MEMVAULT_REFRESH_TOKEN_TTL_DAYS", 30)) * 24 * time.Hour,
			AuthCodeTTL:     time.Duration(parseInt("MEMVAULT_AUTH_CODE_TTL_MINUTES", 10)) * time.Minute,
			ValidScopes:     parseScopes("MEMVAULT_VALID_SCOPES", defaultValidScopes),
			RequiredScopes:  parseScopes("MEMVAULT_REQUIRED_SCOPES", ""),
		},
		Session: SessionConfig{
			Secret:         getEnv("MEMVAULT_SESSION_SECRET", ""),
			Lifetime:       time.Duration(parseInt("MEMVAULT_SESSION_TTL_HOURS", 24)) * time.Hour,
			CookieName:     getEnv("MEMVAULT_SESSION_COOKIE_NAME", "memvault_session"),
			CookieDomain:   getEnv("MEMVAULT_SESSION_COOKIE_DOMAIN", ""),
			CookiePath:     getEnv("MEMVAULT_SESSION_COOKIE_PATH", "/"),
			CookieSecure:   parseBool("MEMVAULT_SESSION_COOKIE_SECURE", false),
			CookieHTTPOnly: parseBool("MEMVAULT_SESSION_COOKIE_HTTP_ONLY", true),
			CookieSameSite: getEnv("MEMVAULT_SESSION_COOKIE_SAME_SITE", "Lax"),
		},
		Admin: AdminConfig{
			Bootstrap: parseBool("MEMVAULT_ADMIN_BOOTSTRAP", true),
			Email:     getEnv("MEMVAULT_ADMIN_EMAIL", "admin@memvault.local"),
			Username:  getEnv("MEMVAULT_ADMIN_USERNAME", "admin"),
			Password:  getEnv("MEMVAULT_ADMIN_PASSWORD", ""),
		},
		Security: SecurityConfig{
			Argon2Memory:      uint32(parseInt("MEMVAULT_ARGON2_MEMORY", 65536)),
			Argon2Iterations:  uint32(parseInt("MEMVAULT_ARGON2_ITERATIONS", 3)),
			Argon2Parallelism: uint8(parseInt("MEMVAULT_ARGON2_PARALLELISM", 4)),
			Argon2SaltLength:  uint32(parseInt("MEMVAULT_ARGON2_SALT_LENGTH", 16)),
			Argon2KeyLength:   uint32(parseInt("MEMVAULT_ARGON2_KEY_LENGTH", 32)),
		},
		RateLimit: RateLimitConfig{
			RequestsPerSecond: parseFloat("MEMVAULT_RATE_LIMIT_RPS", 10),
			Burst:             parseInt("MEMVAULT_RATE_LIMIT_BURST", 20),
		},
		Sweeper: SweeperConfig{
			Interval: time.Duration(parseInt("MEMVAULT_SWEEP_INTERVAL_MINUTES", 60)) * time.Minute,
		},
		Observability: ObservabilityConfig{
			LogLevel:       getEnv("MEMVAULT_LOG_LEVEL", "info"),
			LogFormat:      getEnv("MEMVAULT_LOG_FORMAT", "json"),
			OTLPEndpoint:   getEnv("MEMVAULT_OTLP_ENDPOINT", ""),
			ServiceName:    getEnv("MEMVAULT_SERVICE_NAME", "memvault"),
			ServiceVersion: getEnv("MEMVAULT_SERVICE_VERSION", "0.1.0"),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// defaultValidScopes is the scope set granted to new deployments.
const defaultValidScopes = "memories:read memories:write memories:delete profile:read profile:write offline_access"

// LoadDatabase loads only the database section, honoring .env. CLI
// commands use it so that running a migration or sweep does not require
// the full server configuration to be present.
func LoadDatabase() DatabaseConfig {
	_ = godotenv.Load()

	return DatabaseConfig{
		URL:             getEnv("DATABASE_URL", ""),
		Host:            getEnv("MEMVAULT_DB_HOST", "localhost"),
		Port:            getEnv("MEMVAULT_DB_PORT", "5432"),
		User:            getEnv("MEMVAULT_DB_USER", "memvault"),
		Password:        getEnv("MEMVAULT_DB_PASSWORD", ""),
		Database:        getEnv("MEMVAULT_DB_NAME", "memvault"),
		SSLMode:         getEnv("MEMVAULT_DB_SSLMODE", "disable"),
		MaxOpenConns:    parseInt("MEMVAULT_DB_MAX_OPEN_CONNS", 5),
		MaxIdleConns:    parseInt("MEMVAULT_DB_MAX_IDLE_CONNS", 1),
		ConnMaxLifetime: parseDuration("MEMVAULT_DB_CONN_MAX_LIFETIME", "5m"),
	}
}

// LoadOAuth loads only the token-policy section, honoring .env.
func LoadOAuth() OAuthConfig {
	_ = godotenv.Load()

	return OAuthConfig{
		AccessTokenTTL:  time.Duration(parseInt("MEMVAULT_ACCESS_TOKEN_TTL_MINUTES", 60)) * time.Minute,
		RefreshTokenTTL: time.Duration(parseInt("MEMVAULT_REFRESH_TOKEN_TTL_DAYS", 30)) * 24 * time.Hour,
		AuthCodeTTL:     time.Duration(parseInt("MEMVAULT_AUTH_CODE_TTL_MINUTES", 10)) * time.Minute,
		ValidScopes:     parseScopes("MEMVAULT_VALID_SCOPES", defaultValidScopes),
		RequiredScopes:  parseScopes("MEMVAULT_REQUIRED_SCOPES", ""),
	}
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if port, err := strconv.Atoi(c.Server.Port); err != nil || port < 1 || port > 65535 {
		return fmt.Errorf("MEMVAULT_PORT must be a port number, got %q", c.Server.Port)
	}
	if c.Database.URL == "" && c.Database.Password == "" {
		return fmt.Errorf("DATABASE_URL or MEMVAULT_DB_PASSWORD is required")
	}
	if len(c.Session.Secret) < 32 {
		return fmt.Errorf("MEMVAULT_SESSION_SECRET must be at least 32 bytes, got %d", len(c.Session.Secret))
	}
	if c.Admin.Bootstrap && c.Admin.Password == "" {
		return fmt.Errorf("MEMVAULT_ADMIN_PASSWORD is required while bootstrap is enabled")
	}
	if c.OAuth.RefreshTokenTTL < c.OAuth.AccessTokenTTL {
		return fmt.Errorf("refresh token TTL (%s) must not be shorter than access token TTL (%s)",
			c.OAuth.RefreshTokenTTL, c.OAuth.AccessTokenTTL)
	}
	if c.OAuth.AuthCodeTTL <= 0 {
		return fmt.Errorf("MEMVAULT_AUTH_CODE_TTL_MINUTES must be positive")
	}
	if len(c.OAuth.ValidScopes) == 0 {
		return fmt.Errorf("MEMVAULT_VALID_SCOPES must not be empty")
	}
	valid := make(map[string]struct{}, len(c.OAuth.ValidScopes))
	for _, s := range c.OAuth.ValidScopes {
		valid[s] = struct{}{}
	}
	for _, s := range c.OAuth.RequiredScopes {
		if _, ok := valid[s]; !ok {
			return fmt.Errorf("required scope %q is not in MEMVAULT_VALID_SCOPES", s)
		}
	}
	return nil
}

// Helper functions
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func parseInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func parseFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func parseBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func parseDuration(key string, defaultValue string) time.Duration {
	value := getEnv(key, defaultValue)
	d, err := time.ParseDuration(value)
	if err != nil {
		// Fallback to default
		d, _ = time.ParseDuration(defaultValue)
	}
	return d
}

func parseScopes(key, defaultValue string) []string {
	return strings.Fields(getEnv(key, defaultValue))
}
