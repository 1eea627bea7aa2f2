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
	"github.com/memvault/memvault/internal/crypto"
	"github.com/memvault/memvault/internal/identity"
	"github.com/memvault/memvault/internal/store/postgres"
)

var adminCmd = &cobra.Command{
	Use:   "admin",
	Short: "Administrator account management",
}

var adminCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create or promote a superuser account",
	Long: `Ensure a superuser with the given username exists. An existing account
is promoted and reactivated with its password left untouched; otherwise a
new account is created.

Example:
  memvaultctl admin create --email admin@example.com --username admin --password 'a long passphrase'`,
	RunE: runAdminCreate,
}

func init() {
	adminCmd.AddCommand(adminCreateCmd)

	adminCreateCmd.Flags().String("email", "", "Administrator email address")
	adminCreateCmd.Flags().String("username", "", "Administrator username")
	adminCreateCmd.Flags().String("password", "", "Administrator password (min 12 characters)")
	adminCreateCmd.MarkFlagRequired("email")
	adminCreateCmd.MarkFlagRequired("username")
	adminCreateCmd.MarkFlagRequired("password")
}

func runAdminCreate(cmd *cobra.Command, args []string) error {
	email, _ := cmd.Flags().GetString("email")
	username, _ := cmd.Flags().GetString("username")
	password, _ := cmd.Flags().GetString("password")

	ctx := context.Background()

	db, err := openDB(ctx, cmd)
	if err != nil {
		return err
	}
	defer db.Close()

	bootstrap := identity.NewBootstrapService(
		postgres.NewUserRepository(db),
		crypto.DefaultPasswordHasher(),
		audit.NewSlogLogger(),
	)
	if err := bootstrap.Bootstrap(ctx, email, username, password); err != nil {
		return fmt.Errorf("creating admin account: %w", err)
	}

	fmt.Printf("Superuser %q is ready.\n", username)
	return nil
}
