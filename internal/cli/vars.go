package cli

import (
	"go.uber.org/zap"

	"github.com/jemch/startpage/internal/config"
)

// Shared variables across all commands
var (
	cfg    *config.Config
	logger *zap.Logger

	cfgFile string
	verbose bool
	quiet   bool

	// Version information - set by main
	version   = "dev"
	buildTime = "unknown"
	commit    = "none"
)
