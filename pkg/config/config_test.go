package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, BackendBlueZ, cfg.Backend)
	assert.Equal(t, 5*time.Minute, cfg.ScanCooldown)
	assert.Equal(t, 10*time.Second, cfg.DiscoveryDuration)
	assert.Empty(t, cfg.PrefsDir)
}

func TestLoad_MissingFileReturnsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `
log_level: debug
backend: goble
scan_cooldown: 2m
discovery_duration: 30s
prefs_dir: /tmp/btman-test
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, BackendGoBLE, cfg.Backend)
	assert.Equal(t, 2*time.Minute, cfg.ScanCooldown)
	assert.Equal(t, 30*time.Second, cfg.DiscoveryDuration)
	assert.Equal(t, "/tmp/btman-test", cfg.PrefsDir)
}

func TestLoad_PartialFileKeepsDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("log_level: warn\n"), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "warn", cfg.LogLevel)
	assert.Equal(t, BackendBlueZ, cfg.Backend)
	assert.Equal(t, 5*time.Minute, cfg.ScanCooldown)
}

func TestLoad_RejectsBadDuration(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("scan_cooldown: fivemins\n"), 0o600))

	_, err := Load(path)
	assert.ErrorContains(t, err, "scan_cooldown")
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{name: "defaults are valid", mutate: func(*Config) {}},
		{name: "goble backend", mutate: func(c *Config) { c.Backend = BackendGoBLE }},
		{name: "unknown backend", mutate: func(c *Config) { c.Backend = "winrt" }, wantErr: true},
		{name: "bad log level", mutate: func(c *Config) { c.LogLevel = "loud" }, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestResolvePrefsDir_ExplicitWins(t *testing.T) {
	cfg := Default()
	cfg.PrefsDir = "/tmp/explicit"

	dir, err := cfg.ResolvePrefsDir()
	require.NoError(t, err)
	assert.Equal(t, "/tmp/explicit", dir)
}

func TestNewLogger(t *testing.T) {
	cfg := Default()
	cfg.LogLevel = "debug"

	logger, err := cfg.NewLogger()
	require.NoError(t, err)
	assert.Equal(t, logrus.DebugLevel, logger.GetLevel())

	formatter, ok := logger.Formatter.(*logrus.TextFormatter)
	require.True(t, ok)
	assert.True(t, formatter.FullTimestamp)
}

func TestNewLogger_InvalidLevel(t *testing.T) {
	cfg := Default()
	cfg.LogLevel = "loud"

	_, err := cfg.NewLogger()
	assert.Error(t, err)
}
