// Package config loads and persists the daemon's own settings: storage
// paths, remote backend location and sync tuning. Distinct from the user's
// start-page configuration, which lives in the state package.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"time"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"github.com/jemch/startpage/pkg/utils"
)

// ConfigPaths holds all relevant paths for the application
type ConfigPaths struct {
	BaseDir      string // Base directory for config files
	ActiveConfig string // Path to the active config file
	DataDir      string // Directory for application data
	DBFile       string // Path to the local configuration database
	LogDir       string // Directory for log files
}

// Config holds all application configuration
type Config struct {
	// General settings
	DeviceID   string `yaml:"device_id"`
	DeviceName string `yaml:"device_name"`

	// System paths
	SystemPaths ConfigPaths `yaml:"system_paths"`

	// Logging configuration
	Log LogConfig `yaml:"log"`

	// Local storage configuration
	Storage StorageConfig `yaml:"storage"`

	// Remote backend configuration
	Remote RemoteConfig `yaml:"remote"`

	// Sync engine tuning
	Sync SyncConfig `yaml:"sync"`
}

// LogConfig holds logging-related configuration
type LogConfig struct {
	EnableFileLogging bool   `yaml:"enable_file_logging"`
	Level             string `yaml:"level"`
}

// StorageConfig holds local storage configuration
type StorageConfig struct {
	DBPath string `yaml:"db_path"`
}

// RemoteConfig holds remote backend configuration
type RemoteConfig struct {
	BaseURL   string        `yaml:"base_url"`
	Timeout   time.Duration `yaml:"timeout"`
	AutoLogin bool          `yaml:"auto_login"`
	UserID    string        `yaml:"user_id"`
}

// SyncConfig holds sync engine tuning
type SyncConfig struct {
	DebounceWindowMS int64 `yaml:"debounce_window_ms"`
}

// GetConfigPaths returns the platform-specific configuration paths
func GetConfigPaths() (*ConfigPaths, error) {
	baseDir := os.Getenv("STARTPAGE_CONFIG_DIR")
	if baseDir == "" {
		configDir, err := os.UserConfigDir()
		if err != nil {
			return nil, err
		}
		switch runtime.GOOS {
		case "windows":
			baseDir = filepath.Join(configDir, "Startpage")
		case "darwin":
			baseDir = filepath.Join(configDir, "com.jemch.startpage")
		default:
			baseDir = filepath.Join(configDir, "startpage")
		}
	}

	dataDir := os.Getenv("STARTPAGE_DATA_DIR")
	if dataDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return nil, err
		}
		switch runtime.GOOS {
		case "windows":
			dataDir = filepath.Join(baseDir, "Data")
		case "darwin":
			dataDir = filepath.Join(homeDir, "Library", "Application Support", "Startpage")
		default:
			if xdgDataHome := os.Getenv("XDG_DATA_HOME"); xdgDataHome != "" {
				dataDir = filepath.Join(xdgDataHome, "startpage")
			} else {
				dataDir = filepath.Join(homeDir, ".startpage")
			}
		}
	}

	paths := &ConfigPaths{
		BaseDir:      baseDir,
		ActiveConfig: filepath.Join(baseDir, "config.yaml"),
		DataDir:      dataDir,
		DBFile:       filepath.Join(dataDir, "startpage.db"),
		LogDir:       filepath.Join(dataDir, "logs"),
	}

	for _, dir := range []string{paths.BaseDir, paths.DataDir, paths.LogDir} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, err
		}
	}

	return paths, nil
}

// DefaultConfig returns a new Config with default values
func DefaultConfig() *Config {
	paths, _ := GetConfigPaths() // Ignore error, will use fallback paths
	if paths == nil {
		paths = &ConfigPaths{DBFile: "startpage.db"}
	}

	return &Config{
		DeviceID:    uuid.New().String(),
		DeviceName:  utils.GetHostname(),
		SystemPaths: *paths,
		Log: LogConfig{
			EnableFileLogging: true,
			Level:             "info",
		},
		Storage: StorageConfig{
			DBPath: paths.DBFile,
		},
		Remote: RemoteConfig{
			BaseURL: "https://sync.startpage.jemch.dev/api/v1",
			Timeout: 10 * time.Second,
		},
		Sync: SyncConfig{
			DebounceWindowMS: 500,
		},
	}
}

// Load loads the configuration from the specified file or creates the
// default if it does not exist
func Load(configPath string) (*Config, error) {
	if configPath == "" {
		paths, err := GetConfigPaths()
		if err != nil {
			return nil, err
		}
		configPath = paths.ActiveConfig
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		if os.IsNotExist(err) {
			cfg := DefaultConfig()
			if err := cfg.Save(configPath); err != nil {
				return nil, fmt.Errorf("failed to create default config: %w", err)
			}
			overrideFromEnv(cfg)
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	overrideFromEnv(&cfg)

	return &cfg, nil
}

// Save saves the configuration to the specified file
func (c *Config) Save(configPath string) error {
	dir := filepath.Dir(configPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(configPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// DebounceWindow returns the sync debounce window as a duration
func (c *Config) DebounceWindow() time.Duration {
	if c.Sync.DebounceWindowMS <= 0 {
		return 500 * time.Millisecond
	}
	return time.Duration(c.Sync.DebounceWindowMS) * time.Millisecond
}

// overrideFromEnv overrides configuration values from environment variables
func overrideFromEnv(cfg *Config) {
	if val := os.Getenv("STARTPAGE_DEVICE_ID"); val != "" {
		cfg.DeviceID = val
	}
	if val := os.Getenv("STARTPAGE_DEVICE_NAME"); val != "" {
		cfg.DeviceName = val
	}
	if val := os.Getenv("STARTPAGE_DB_PATH"); val != "" {
		cfg.Storage.DBPath = val
	}
	if val := os.Getenv("STARTPAGE_REMOTE_URL"); val != "" {
		cfg.Remote.BaseURL = val
	}
	if val := os.Getenv("STARTPAGE_REMOTE_USER"); val != "" {
		cfg.Remote.UserID = val
	}
	if val := os.Getenv("STARTPAGE_DEBOUNCE_MS"); val != "" {
		if ms, err := strconv.ParseInt(val, 10, 64); err == nil {
			cfg.Sync.DebounceWindowMS = ms
		}
	}
}
