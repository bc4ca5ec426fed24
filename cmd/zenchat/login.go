package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/trantuankiet5980/zenroom-chatsync/internal/api"
	"github.com/trantuankiet5980/zenroom-chatsync/internal/config"
	"github.com/trantuankiet5980/zenroom-chatsync/internal/session"
)

func newLoginCmd() *cobra.Command {
	var email, password string

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Authenticate and store the session credential",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.Load()
			client := api.NewClient(cfg.APIBaseURL)

			res, err := client.Login(cmd.Context(), email, password)
			if err != nil {
				return fmt.Errorf("login failed: %w", err)
			}
			creds := session.CredentialsFromToken(res.Token)
			if err := session.SaveCredentials(cfg.StatePath, creds); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "logged in as %s, credential stored in %s\n", email, cfg.StatePath)
			if !creds.ExpiresAt.IsZero() {
				fmt.Fprintf(cmd.OutOrStdout(), "session expires %s\n", creds.ExpiresAt.Local())
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&email, "email", "e", "", "account email")
	cmd.Flags().StringVarP(&password, "password", "p", "", "account password")
	cmd.MarkFlagRequired("email")
	cmd.MarkFlagRequired("password")
	return cmd
}
