// Package cli implements the startpage command line interface
package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/jemch/startpage/internal/config"
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "startpage",
	Short: "A personal start-page daemon with cloud-synced configuration",
	Long: `Startpage keeps a personal dashboard configuration on this device:
  • Bookmarks organized into ordered pages
  • Theme and preference settings
  • Local-first persistence with optional sync to a remote backend
  • Import and export of the configuration as a portable document`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		setupLogger()

		var err error
		cfg, err = config.Load(cfgFile)
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		return nil
	},
}

// Execute adds all child commands to the root command and sets flags
// appropriately. Called once from main.
func Execute() {
	defer func() {
		if logger != nil {
			logger.Sync()
		}
	}()

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// SetVersionInfo sets the version information used by the version command
func SetVersionInfo(v, bt, c string) {
	version = v
	buildTime = bt
	commit = c
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.config/startpage/config.yaml)")
	rootCmd.PersistentFlags().BoolVar(&verbose, "verbose", false, "enable verbose output")
	rootCmd.PersistentFlags().BoolVar(&quiet, "quiet", false, "minimize output")

	rootCmd.AddCommand(GetCommands()...)
}

// GetCommands returns all commands for registration
func GetCommands() []*cobra.Command {
	return []*cobra.Command{
		newRunCmd(),
		newStatusCmd(),
		newLoginCmd(),
		newLogoutCmd(),
		newImportCmd(),
		newExportCmd(),
		newConfigCmd(),
		newVersionCmd(),
	}
}

func setupLogger() {
	var err error
	var zcfg zap.Config

	switch {
	case verbose:
		zcfg = zap.NewDevelopmentConfig()
	case quiet:
		zcfg = zap.NewProductionConfig()
		zcfg.Level = zap.NewAtomicLevelAt(zap.WarnLevel)
	default:
		zcfg = zap.NewProductionConfig()
		zcfg.Level = zap.NewAtomicLevelAt(zap.InfoLevel)
	}

	// Log to a file unless running verbose in the foreground
	if !verbose {
		logDir := filepath.Join(os.Getenv("HOME"), ".local/share/startpage/logs")
		os.MkdirAll(logDir, 0755)
		zcfg.OutputPaths = []string{
			filepath.Join(logDir, "startpage.log"),
		}
	}

	logger, err = zcfg.Build()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error initializing logger: %v\n", err)
		os.Exit(1)
	}
}
