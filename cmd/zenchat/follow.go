package main

import (
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/trantuankiet5980/zenroom-chatsync/internal/api"
	"github.com/trantuankiet5980/zenroom-chatsync/internal/config"
	"github.com/trantuankiet5980/zenroom-chatsync/internal/models"
	"github.com/trantuankiet5980/zenroom-chatsync/internal/session"
	"github.com/trantuankiet5980/zenroom-chatsync/internal/transport"
)

func newFollowCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "follow",
		Short: "Follow all conversations in real time",
		Long:  "Connects to the ZenRoom socket endpoint and prints new messages as they arrive, keeping unread state in sync.",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.Load()

			creds, err := session.LoadCredentials(cfg.StatePath)
			if err != nil {
				return err
			}
			if !creds.Valid(time.Now()) {
				return fmt.Errorf("no valid session, run `zenchat login` first")
			}

			var sess *session.Session
			client := api.NewClient(cfg.APIBaseURL, api.WithAuthExpiredHook(func() {
				log.Printf("[API] session expired, forcing logout")
				if err := session.ClearCredentials(cfg.StatePath); err != nil {
					log.Printf("[API] clearing credentials failed: %v", err)
				}
				if sess != nil {
					go sess.Stop()
				}
			}))
			conn := transport.NewManager(cfg.SocketURL, transport.WithRetryDelay(cfg.RetryDelay))

			sess = session.New(client, conn, creds, newTerminalAlerter(cmd.OutOrStdout()),
				session.WithPollInterval(cfg.PollInterval),
				session.WithOnMessage(func(msg models.Message) {
					fmt.Fprintf(cmd.OutOrStdout(), "[%s] %s: %s\n",
						msg.CreatedAt.Local().Format("15:04:05"), msg.SenderID, msg.Body)
				}),
			)

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			if err := sess.Start(ctx); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "following conversations, ctrl-c to quit")

			<-ctx.Done()
			sess.Stop()
			<-sess.Done()
			return nil
		},
	}
	return cmd
}
