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

package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/memvault/memvault/internal/audit"
	"github.com/memvault/memvault/internal/config"
	"github.com/memvault/memvault/internal/crypto"
	"github.com/memvault/memvault/internal/identity"
	"github.com/memvault/memvault/internal/memory"
	"github.com/memvault/memvault/internal/oauth2"
	"github.com/memvault/memvault/internal/observability/logger"
	"github.com/memvault/memvault/internal/observability/metrics"
	"github.com/memvault/memvault/internal/observability/tracing"
	"github.com/memvault/memvault/internal/session"
	"github.com/memvault/memvault/internal/store/postgres"
	transportHTTP "github.com/memvault/memvault/internal/transport/http"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logger.InitLogger(logger.Config{
		Level:       cfg.Observability.LogLevel,
		Format:      cfg.Observability.LogFormat,
		ServiceName: cfg.Observability.ServiceName,
	})
	slog.Info("starting memvault authorization server")

	ctx := context.Background()

	tracer, err := tracing.New(ctx, tracing.Config{
		Endpoint:       cfg.Observability.OTLPEndpoint,
		ServiceName:    cfg.Observability.ServiceName,
		ServiceVersion: cfg.Observability.ServiceVersion,
		SamplingRate:   1.0,
	})
	if err != nil {
		slog.Error("failed to initialize tracer", logger.Error(err))
		os.Exit(1)
	}
	defer tracer.Shutdown(ctx)

	meter, err := metrics.New(ctx, metrics.Config{
		Enabled: cfg.Observability.TracingEnabled(),
	}, cfg.Observability.ServiceName)
	if err != nil {
		slog.Error("failed to initialize meter", logger.Error(err))
		os.Exit(1)
	}
	oauthMetrics, err := meter.NewOAuth()
	if err != nil {
		// Counters are optional; the service treats nil as a no-op.
		slog.Error("failed to register oauth metrics", logger.Error(err))
		oauthMetrics = nil
	}

	db, err := postgres.New(ctx, postgres.Config{
		URL:             cfg.Database.URL,
		Host:            cfg.Database.Host,
		Port:            cfg.Database.Port,
		User:            cfg.Database.User,
		Password:        cfg.Database.Password,
		Database:        cfg.Database.Database,
		SSLMode:         cfg.Database.SSLMode,
		MaxOpenConns:    cfg.Database.MaxOpenConns,
		MaxIdleConns:    cfg.Database.MaxIdleConns,
		ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
	})
	if err != nil {
		slog.Error("failed to connect to database", logger.Error(err))
		os.Exit(1)
	}
	defer db.Close()
	slog.Info("connected to database")

	if err := db.Migrate(ctx); err != nil {
		slog.Error("failed to apply migrations", logger.Error(err))
		os.Exit(1)
	}

	userRepo := postgres.NewUserRepository(db)
	sessionRepo := postgres.NewSessionRepository(db)
	clientRepo := postgres.NewClientRepository(db)
	codeRepo := postgres.NewCodeRepository(db)
	tokenRepo := postgres.NewTokenRepository(db)
	blacklistRepo := postgres.NewBlacklistRepository(db)
	memoryRepo := postgres.NewMemoryRepository(db)

	auditLogger := audit.NewSlogLogger()
	passwordHasher := crypto.NewPasswordHasher(
		cfg.Security.Argon2Memory,
		cfg.Security.Argon2Iterations,
		cfg.Security.Argon2Parallelism,
		cfg.Security.Argon2SaltLength,
		cfg.Security.Argon2KeyLength,
	)

	identityService := identity.NewService(userRepo, passwordHasher, auditLogger)
	sessionService := session.NewService(
		sessionRepo,
		[]byte(cfg.Session.Secret),
		cfg.Server.BaseURL,
		cfg.Session.Lifetime,
	)
	oauth2Service := oauth2.NewService(
		clientRepo,
		codeRepo,
		tokenRepo,
		blacklistRepo,
		auditLogger,
		oauthMetrics,
		oauth2.Config{
			AuthCodeTTL:     cfg.OAuth.AuthCodeTTL,
			AccessTokenTTL:  cfg.OAuth.AccessTokenTTL,
			RefreshTokenTTL: cfg.OAuth.RefreshTokenTTL,
			ValidScopes:     cfg.OAuth.ValidScopes,
			RequiredScopes:  cfg.OAuth.RequiredScopes,
		},
	)
	memoryService := memory.NewService(memoryRepo)

	if cfg.Admin.Bootstrap {
		bootstrap := identity.NewBootstrapService(userRepo, passwordHasher, auditLogger)
		if err := bootstrap.Bootstrap(ctx, cfg.Admin.Email, cfg.Admin.Username, cfg.Admin.Password); err != nil {
			slog.Error("failed to bootstrap admin account", logger.Error(err))
			os.Exit(1)
		}
	}

	rateLimiter := transportHTTP.NewRateLimiter(cfg.RateLimit.RequestsPerSecond, cfg.RateLimit.Burst)

	sameSite := http.SameSiteLaxMode
	switch cfg.Session.CookieSameSite {
	case "Strict":
		sameSite = http.SameSiteStrictMode
	case "None":
		sameSite = http.SameSiteNoneMode
	}

	handler := transportHTTP.NewHandler(
		identityService,
		sessionService,
		oauth2Service,
		memoryService,
		auditLogger,
		db,
		transportHTTP.SessionConfig{
			CookieName:     cfg.Session.CookieName,
			CookieDomain:   cfg.Session.CookieDomain,
			CookiePath:     cfg.Session.CookiePath,
			CookieSecure:   cfg.Session.CookieSecure,
			CookieHTTPOnly: cfg.Session.CookieHTTPOnly,
			CookieSameSite: sameSite,
			CookieMaxAge:   int(cfg.Session.Lifetime.Seconds()),
		},
	)

	router := transportHTTP.NewRouter(handler, rateLimiter)

	server := &http.Server{
		Addr:         cfg.Server.Addr(),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	// Expired codes, tokens, sessions, and blacklist rows are swept in the
	// background; the lazy sweep on blacklist reads keeps correctness in
	// between runs.
	sweepCtx, stopSweeper := context.WithCancel(ctx)
	defer stopSweeper()
	go runSweeper(sweepCtx, cfg.Sweeper.Interval, oauth2Service, sessionService)

	go func() {
		slog.Info("starting http server", logger.Component("server"), slog.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("server error", logger.Error(err))
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.Error("server shutdown error", logger.Error(err))
	}

	slog.Info("server stopped")
}

func runSweeper(ctx context.Context, interval time.Duration, oauth2Service *oauth2.Service, sessionService *session.Service) {
	if interval <= 0 {
		interval = time.Hour
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			stats, err := oauth2Service.SweepExpired(ctx)
			if err != nil {
				slog.ErrorContext(ctx, "sweep failed", logger.Error(err))
				continue
			}
			sessions, err := sessionService.DeleteExpired(ctx)
			if err != nil {
				slog.ErrorContext(ctx, "session sweep failed", logger.Error(err))
				continue
			}
			slog.InfoContext(ctx, "sweep completed",
				slog.Int64("codes", stats.Codes),
				slog.Int64("tokens", stats.Tokens),
				slog.Int64("blacklist_entries", stats.BlacklistEntries),
				slog.Int64("sessions", sessions),
			)
		}
	}
}
