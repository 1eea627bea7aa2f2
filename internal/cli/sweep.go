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

	"github.com/memvault/memvault/internal/audit"
	"github.com/memvault/memvault/internal/oauth2"
	"github.com/memvault/memvault/internal/session"
	"github.com/memvault/memvault/internal/store/postgres"
)

var sweepCmd = &cobra.Command{
	Use:   "sweep",
	Short: "Delete expired codes, tokens, sessions, and blacklist rows",
	Long: `Run one maintenance sweep. The server runs the same sweep on a timer;
this command exists for cron-style deployments and manual cleanup.

Example:
  memvaultctl sweep`,
	RunE: runSweep,
}

func runSweep(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	db, err := openDB(ctx, cmd)
	if err != nil {
		return err
	}
	defer db.Close()

	oauth2Service := oauth2.NewService(
		postgres.NewClientRepository(db),
		postgres.NewCodeRepository(db),
		postgres.NewTokenRepository(db),
		postgres.NewBlacklistRepository(db),
		audit.NewSlogLogger(),
		nil,
		oauth2.Config{},
	)

	stats, err := oauth2Service.SweepExpired(ctx)
	if err != nil {
		return fmt.Errorf("sweeping oauth rows: %w", err)
	}

	// Session lifetime and signing key are irrelevant for deletion, so the
	// service is built with placeholders.
	sessionService := session.NewService(postgres.NewSessionRepository(db), nil, "", 0)
	sessions, err := sessionService.DeleteExpired(ctx)
	if err != nil {
		return fmt.Errorf("sweeping sessions: %w", err)
	}

	fmt.Printf("Swept %d codes, %d tokens, %d blacklist entries, %d sessions.\n",
		stats.Codes, stats.Tokens, stats.BlacklistEntries, sessions)
	return nil
}
