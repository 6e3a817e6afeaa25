package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jemch/startpage/internal/config"
)

// newLogoutCmd creates the logout command. Logging out drops the identity
// and remote persistence only; the local configuration is untouched.
func newLogoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Detach this device from its user identity",
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := buildApp()
			if err != nil {
				return err
			}
			defer app.close()

			app.engine.Logout()

			if cfg.Remote.AutoLogin || cfg.Remote.UserID != "" {
				cfg.Remote.AutoLogin = false
				cfg.Remote.UserID = ""
				if err := saveConfig(); err != nil {
					return err
				}
			}

			fmt.Println("Logged out. Local configuration retained.")
			return nil
		},
	}
}

// saveConfig persists the app config to its active path
func saveConfig() error {
	path := cfgFile
	if path == "" {
		paths, err := config.GetConfigPaths()
		if err != nil {
			return err
		}
		path = paths.ActiveConfig
	}
	return cfg.Save(path)
}
