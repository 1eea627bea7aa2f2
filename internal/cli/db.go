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

package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/memvault/memvault/internal/config"
	"github.com/memvault/memvault/internal/store/postgres"
)

// openDB connects using the env-derived database settings, with the
// --database-url flag taking precedence. The caller owns Close.
func openDB(ctx context.Context, cmd *cobra.Command) (*postgres.DB, error) {
	cfg := config.LoadDatabase()
	if url, _ := cmd.Flags().GetString("database-url"); url != "" {
		cfg.URL = url
	}
	if cfg.URL == "" && cfg.Password == "" {
		return nil, fmt.Errorf("no database configured (set DATABASE_URL, MEMVAULT_DB_* variables, or --database-url)")
	}

	db, err := postgres.New(ctx, postgres.Config{
		URL:             cfg.URL,
		Host:            cfg.Host,
		Port:            cfg.Port,
		User:            cfg.User,
		Password:        cfg.Password,
		Database:        cfg.Database,
		SSLMode:         cfg.SSLMode,
		MaxOpenConns:    cfg.MaxOpenConns,
		MaxIdleConns:    cfg.MaxIdleConns,
		ConnMaxLifetime: cfg.ConnMaxLifetime,
	})
	if err != nil {
		return nil, fmt.Errorf("connecting to database: %w", err)
	}
	return db, nil
}
