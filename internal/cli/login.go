package cli

import (
	"context"
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/jemch/startpage/internal/syncengine"
	"github.com/jemch/startpage/internal/types"
)

// newLoginCmd creates the login command. Credential exchange happens
// outside the core; this command receives the resulting user identity and
// runs the reconciliation pass.
func newLoginCmd() *cobra.Command {
	var remember bool

	cmd := &cobra.Command{
		Use:   "login <user-id>",
		Short: "Attach this device's configuration to a user identity",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := buildApp()
			if err != nil {
				return err
			}
			defer app.close()

			userID := args[0]
			id := types.Identity{UserID: userID, Authenticated: true}
			if err := app.engine.Login(context.Background(), id); err != nil {
				return err
			}

			switch app.engine.State() {
			case syncengine.StateSynced:
				fmt.Printf("Logged in as %s, configuration %s\n", userID, color.GreenString("synced"))
			case syncengine.StateDetached:
				fmt.Printf("Logged in as %s, but the remote store is unreachable (%s)\n",
					userID, color.RedString("detached"))
			case syncengine.StateAnonymous:
				return fmt.Errorf("identity %s was rejected by the remote store", userID)
			}

			if remember {
				cfg.Remote.UserID = userID
				cfg.Remote.AutoLogin = true
				if err := saveConfig(); err != nil {
					return fmt.Errorf("failed to remember identity: %w", err)
				}
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&remember, "remember", false, "log in automatically on the next run")
	return cmd
}
