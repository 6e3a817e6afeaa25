package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setTestDirs(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("STARTPAGE_CONFIG_DIR", filepath.Join(dir, "config"))
	t.Setenv("STARTPAGE_DATA_DIR", filepath.Join(dir, "data"))
	return dir
}

func TestGetConfigPaths(t *testing.T) {
	dir := setTestDirs(t)

	paths, err := GetConfigPaths()
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(dir, "config"), paths.BaseDir)
	assert.Equal(t, filepath.Join(dir, "config", "config.yaml"), paths.ActiveConfig)
	assert.Equal(t, filepath.Join(dir, "data", "startpage.db"), paths.DBFile)

	for _, p := range []string{paths.BaseDir, paths.DataDir, paths.LogDir} {
		info, err := os.Stat(p)
		require.NoError(t, err)
		assert.True(t, info.IsDir())
	}
}

func TestDefaultConfig(t *testing.T) {
	setTestDirs(t)

	cfg := DefaultConfig()
	assert.NotEmpty(t, cfg.DeviceID)
	assert.NotEmpty(t, cfg.DeviceName)
	assert.NotEmpty(t, cfg.Storage.DBPath)
	assert.NotEmpty(t, cfg.Remote.BaseURL)
	assert.Equal(t, 10*time.Second, cfg.Remote.Timeout)
	assert.Equal(t, int64(500), cfg.Sync.DebounceWindowMS)
	assert.Equal(t, "info", cfg.Log.Level)
}

func TestLoadCreatesDefaultWhenMissing(t *testing.T) {
	dir := setTestDirs(t)
	path := filepath.Join(dir, "config", "config.yaml")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.NotEmpty(t, cfg.DeviceID)

	// The default was written out
	_, err = os.Stat(path)
	assert.NoError(t, err)
}

func TestSaveAndLoadRoundTrip(t *testing.T) {
	dir := setTestDirs(t)
	path := filepath.Join(dir, "roundtrip.yaml")

	cfg := DefaultConfig()
	cfg.DeviceName = "test-device"
	cfg.Remote.BaseURL = "https://sync.test.example.com"
	cfg.Remote.AutoLogin = true
	cfg.Remote.UserID = "user-1"
	cfg.Sync.DebounceWindowMS = 250
	require.NoError(t, cfg.Save(path))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, cfg.DeviceID, loaded.DeviceID)
	assert.Equal(t, "test-device", loaded.DeviceName)
	assert.Equal(t, "https://sync.test.example.com", loaded.Remote.BaseURL)
	assert.True(t, loaded.Remote.AutoLogin)
	assert.Equal(t, "user-1", loaded.Remote.UserID)
	assert.Equal(t, 250*time.Millisecond, loaded.DebounceWindow())
}

func TestLoadRejectsMalformedFile(t *testing.T) {
	dir := setTestDirs(t)
	path := filepath.Join(dir, "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("{not yaml"), 0644))

	_, err := Load(path)
	assert.Error(t, err)
}

func TestEnvOverrides(t *testing.T) {
	dir := setTestDirs(t)
	path := filepath.Join(dir, "env.yaml")
	require.NoError(t, DefaultConfig().Save(path))

	t.Setenv("STARTPAGE_DEVICE_NAME", "env-device")
	t.Setenv("STARTPAGE_REMOTE_URL", "https://env.example.com")
	t.Setenv("STARTPAGE_REMOTE_USER", "env-user")
	t.Setenv("STARTPAGE_DEBOUNCE_MS", "100")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "env-device", cfg.DeviceName)
	assert.Equal(t, "https://env.example.com", cfg.Remote.BaseURL)
	assert.Equal(t, "env-user", cfg.Remote.UserID)
	assert.Equal(t, 100*time.Millisecond, cfg.DebounceWindow())
}

func TestEnvOverridesApplyOnFirstRun(t *testing.T) {
	dir := setTestDirs(t)
	path := filepath.Join(dir, "firstrun.yaml")

	t.Setenv("STARTPAGE_DEVICE_NAME", "env-device")
	t.Setenv("STARTPAGE_REMOTE_URL", "https://env.example.com")

	// No file exists yet: the default is created and the overrides still win
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "env-device", cfg.DeviceName)
	assert.Equal(t, "https://env.example.com", cfg.Remote.BaseURL)
}

func TestDebounceWindowFallback(t *testing.T) {
	cfg := &Config{}
	assert.Equal(t, 500*time.Millisecond, cfg.DebounceWindow())
}
