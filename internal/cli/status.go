package cli

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

// newStatusCmd creates the status command
func newStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the configuration and sync status",
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := buildApp()
			if err != nil {
				return err
			}
			defer app.close()

			snap := app.store.Snapshot()
			anchor := app.store.Anchor()

			bold := color.New(color.Bold).SprintFunc()
			fmt.Printf("%s %s\n", bold("Sync state:"), stateColor(string(app.engine.State())))
			if id := app.engine.Identity(); id.Authenticated {
				fmt.Printf("%s %s\n", bold("User:"), id.UserID)
			} else {
				fmt.Printf("%s %s\n", bold("User:"), color.YellowString("anonymous"))
			}
			fmt.Printf("%s %d\n", bold("Pages:"), len(snap.Pages))
			bookmarks := 0
			for _, p := range snap.Pages {
				bookmarks += len(p.Bookmarks)
			}
			fmt.Printf("%s %d\n", bold("Bookmarks:"), bookmarks)
			fmt.Printf("%s %s / %s\n", bold("Theme:"), snap.Theme.Color, snap.Theme.Pattern)
			fmt.Printf("%s %d\n", bold("Schema version:"), snap.SchemaVersion)
			if !anchor.LastModifiedAt.IsZero() {
				fmt.Printf("%s %s (%s)\n", bold("Last modified:"),
					anchor.LastModifiedAt.Format("2006-01-02 15:04:05"), anchor.Origin)
			}
			return nil
		},
	}
}

func stateColor(state string) string {
	switch state {
	case "synced":
		return color.GreenString(state)
	case "detached":
		return color.RedString(state)
	default:
		return color.YellowString(state)
	}
}
