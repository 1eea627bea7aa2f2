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
	"strings"

	"github.com/spf13/cobra"

	"github.com/memvault/memvault/internal/audit"
	"github.com/memvault/memvault/internal/config"
	"github.com/memvault/memvault/internal/oauth2"
	"github.com/memvault/memvault/internal/store/postgres"
)

var clientCmd = &cobra.Command{
	Use:   "client",
	Short: "OAuth2 client management",
}

var clientRegisterCmd = &cobra.Command{
	Use:   "register",
	Short: "Register an OAuth2 client",
	Long: `Register a client and print its credentials. The secret is shown exactly
once; only a digest is stored, so copy it now.

Example:
  memvaultctl client register --name "My App" \
    --redirect-uri https://app.example.com/callback \
    --scope memories:read --scope memories:write`,
	RunE: runClientRegister,
}

func init() {
	clientCmd.AddCommand(clientRegisterCmd)

	clientRegisterCmd.Flags().String("name", "", "Human-readable client name")
	clientRegisterCmd.Flags().StringArray("redirect-uri", nil, "Allowed redirect URI (repeatable)")
	clientRegisterCmd.Flags().StringArray("scope", nil, "Grantable scope (repeatable)")
	clientRegisterCmd.MarkFlagRequired("name")
	clientRegisterCmd.MarkFlagRequired("redirect-uri")
	clientRegisterCmd.MarkFlagRequired("scope")
}

func runClientRegister(cmd *cobra.Command, args []string) error {
	name, _ := cmd.Flags().GetString("name")
	redirectURIs, _ := cmd.Flags().GetStringArray("redirect-uri")
	scopes, _ := cmd.Flags().GetStringArray("scope")

	ctx := context.Background()

	db, err := openDB(ctx, cmd)
	if err != nil {
		return err
	}
	defer db.Close()

	// The scope policy comes from the environment so the CLI accepts the
	// same scopes the running server would.
	oauthCfg := config.LoadOAuth()
	oauth2Service := oauth2.NewService(
		postgres.NewClientRepository(db),
		postgres.NewCodeRepository(db),
		postgres.NewTokenRepository(db),
		postgres.NewBlacklistRepository(db),
		audit.NewSlogLogger(),
		nil,
		oauth2.Config{
			AuthCodeTTL:     oauthCfg.AuthCodeTTL,
			AccessTokenTTL:  oauthCfg.AccessTokenTTL,
			RefreshTokenTTL: oauthCfg.RefreshTokenTTL,
			ValidScopes:     oauthCfg.ValidScopes,
			RequiredScopes:  oauthCfg.RequiredScopes,
		},
	)

	client := &oauth2.Client{
		ClientName:    name,
		RedirectURIs:  redirectURIs,
		AllowedScopes: scopes,
	}
	secret, err := oauth2Service.RegisterClient(ctx, client)
	if err != nil {
		return fmt.Errorf("registering client: %w", err)
	}

	fmt.Printf("Client registered.\n\n")
	fmt.Printf("  client_id:      %s\n", client.ClientID)
	fmt.Printf("  client_secret:  %s\n", secret)
	fmt.Printf("  redirect_uris:  %s\n", strings.Join(client.RedirectURIs, ", "))
	fmt.Printf("  allowed_scopes: %s\n", strings.Join(client.AllowedScopes, " "))
	fmt.Printf("\nThe secret is not retrievable again. Store it now.\n")
	return nil
}
