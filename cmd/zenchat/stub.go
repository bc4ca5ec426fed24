package main

import (
	"fmt"
	"log"
	"net/http"

	"github.com/spf13/cobra"

	"github.com/trantuankiet5980/zenroom-chatsync/internal/stubserver"
)

func newStubCmd() *cobra.Command {
	var (
		addr   string
		origin string
		secret string
	)

	cmd := &cobra.Command{
		Use:   "stub",
		Short: "Run the in-memory development backend",
		RunE: func(cmd *cobra.Command, args []string) error {
			srv := stubserver.New(secret)

			tenant, err := srv.Store.AddUser("tenant@zenroom.local", "password", "Demo Tenant", "tenant")
			if err != nil {
				return err
			}
			landlord, err := srv.Store.AddUser("landlord@zenroom.local", "password", "Demo Landlord", "landlord")
			if err != nil {
				return err
			}
			conv := srv.Store.StartOrGetConversation(tenant.ID, landlord.ID, "")
			if _, err := srv.Store.AddMessage(conv.ID, landlord.ID, "Hi, the apartment is still available.", nil); err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "demo accounts: tenant@zenroom.local / landlord@zenroom.local (password: password)\n")
			log.Printf("[Stub] listening on %s", addr)
			return http.ListenAndServe(addr, srv.Handler(origin))
		},
	}

	cmd.Flags().StringVar(&addr, "addr", ":8080", "listen address")
	cmd.Flags().StringVar(&origin, "origin", "http://127.0.0.1:5173", "allowed CORS origin")
	cmd.Flags().StringVar(&secret, "secret", "zenroom-dev-secret", "JWT signing secret")
	return cmd
}
