package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/jemch/startpage/internal/types"
)

// newExportCmd creates the export command
func newExportCmd() *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export the configuration to a portable document",
		Long: `Export writes the current configuration as a versioned JSON document
that can be imported on another installation. It is a pure read and does
not touch any store.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := buildApp()
			if err != nil {
				return err
			}
			defer app.close()

			data, err := app.engine.Export()
			if err != nil {
				return err
			}

			if output == "" {
				fmt.Println(string(data))
				return nil
			}
			if err := os.WriteFile(output, data, 0644); err != nil {
				return fmt.Errorf("failed to write export file: %w", err)
			}
			fmt.Printf("Configuration exported to %s\n", output)
			return nil
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "write the document to a file instead of stdout")
	return cmd
}

// newImportCmd creates the import command
func newImportCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "import <file>",
		Short: "Import a configuration document, replacing the current one",
		Long: fmt.Sprintf(`Import validates the supplied document and replaces the configuration
wholesale. Documents from schema versions older than %d are upgraded;
newer ones are rejected. On validation failure nothing changes.`, types.SchemaVersion),
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("failed to read import file: %w", err)
			}

			app, err := buildApp()
			if err != nil {
				return err
			}
			defer app.close()

			if err := app.engine.Import(context.Background(), data); err != nil {
				return err
			}

			snap := app.store.Snapshot()
			fmt.Printf("Imported %d pages (schema version %d)\n", len(snap.Pages), snap.SchemaVersion)
			return nil
		},
	}
}
