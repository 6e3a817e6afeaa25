package cli

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/jemch/startpage/internal/types"
)

// newRunCmd creates the run command
func newRunCmd() *cobra.Command {
	var userID string

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the startpage daemon in the foreground",
		Long: `Run the startpage daemon. The daemon owns the configuration state,
persists edits to the local store and, when a user identity is configured,
keeps the remote copy in sync.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := buildApp()
			if err != nil {
				return err
			}
			defer app.close()

			ctx := context.Background()

			// Identity handoff: flag wins, then the stored remote config
			if userID == "" && cfg.Remote.AutoLogin {
				userID = cfg.Remote.UserID
			}
			if userID != "" {
				id := types.Identity{UserID: userID, Authenticated: true}
				if err := app.engine.Login(ctx, id); err != nil {
					logger.Warn("Login failed, continuing anonymous", zap.Error(err))
				}
			}

			logger.Info("Startpage daemon running",
				zap.String("state", string(app.engine.State())),
				zap.Strings("events", app.dispatch.Events()))

			// Block until interrupted; the deferred close performs the
			// final scoped flush.
			c := make(chan os.Signal, 1)
			signal.Notify(c, os.Interrupt, syscall.SIGTERM)
			<-c

			logger.Info("Shutdown signal received")
			return nil
		},
	}

	cmd.Flags().StringVar(&userID, "user", "", "user identity to sync as")
	return cmd
}
