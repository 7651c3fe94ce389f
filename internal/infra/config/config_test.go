package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bluehood/internal/domain"
)

func TestLoadDefaultsWithoutFile(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, DefaultScanInterval, cfg.Scan.Interval)
	assert.Equal(t, DefaultScanWindow, cfg.Scan.Window)
	assert.Equal(t, DefaultRetentionDays, cfg.Scan.RetentionDays)
	assert.Equal(t, DefaultPruneSchedule, cfg.Scan.PruneSchedule)
	assert.True(t, cfg.Vendor.Enabled)
	assert.False(t, cfg.Notify.Enabled)
	assert.False(t, cfg.Tracer.Enabled)
	assert.Equal(t, "noop", cfg.Tracer.Exporter)
	assert.NotEmpty(t, cfg.DataDir)
	assert.Equal(t, filepath.Join(cfg.DataDir, "bluehoodd.sock"), cfg.Socket)
	assert.Equal(t, filepath.Join(cfg.DataDir, "bluehood.db"), cfg.StorePath())
}

func TestLoadExplicitMissingFileFails(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.ErrorIs(t, err, domain.ErrConfig)
}

func TestLoadFileOverridesDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bluehood.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
data_dir: `+dir+`
scan:
  interval: 30s
  window: 10s
  retention_days: 14
logger:
  level: debug
`), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 30*time.Second, cfg.Scan.Interval)
	assert.Equal(t, 10*time.Second, cfg.Scan.Window)
	assert.Equal(t, 14, cfg.Scan.RetentionDays)
	assert.Equal(t, "debug", cfg.Logger.Level)
	// Untouched sections keep their defaults.
	assert.Equal(t, DefaultPruneSchedule, cfg.Scan.PruneSchedule)
	assert.Equal(t, DefaultVendorAPIURL, cfg.Vendor.APIURL)
}

func TestLoadMalformedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("scan: [not a map"), 0o644))

	_, err := Load(path)
	assert.ErrorIs(t, err, domain.ErrConfig)
}

func TestEnvOverrides(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("BLUEHOOD_DATA_DIR", dir)
	t.Setenv("BLUEHOOD_SCAN_INTERVAL", "42s")
	t.Setenv("BLUEHOOD_ADAPTER", "hci2")
	t.Setenv("BLUEHOOD_NTFY_TOPIC", "my-topic")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, dir, cfg.DataDir)
	assert.Equal(t, 42*time.Second, cfg.Scan.Interval)
	assert.Equal(t, "hci2", cfg.Scan.Adapter)
	assert.Equal(t, "my-topic", cfg.Notify.Topic)
	assert.True(t, cfg.Notify.Enabled, "setting a topic enables notifications")
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"empty data dir", func(c *Config) { c.DataDir = "" }},
		{"zero interval", func(c *Config) { c.Scan.Interval = 0 }},
		{"zero window", func(c *Config) { c.Scan.Window = 0 }},
		{"window exceeds interval", func(c *Config) { c.Scan.Window = c.Scan.Interval + time.Second }},
		{"negative retention", func(c *Config) { c.Scan.RetentionDays = -1 }},
		{"notify without topic", func(c *Config) { c.Notify.Enabled = true; c.Notify.Topic = "" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			assert.ErrorIs(t, cfg.Validate(), domain.ErrConfig)
		})
	}

	assert.NoError(t, Default().Validate())
}

func TestEnsureDataDir(t *testing.T) {
	cfg := Default()
	cfg.DataDir = filepath.Join(t.TempDir(), "nested", "data")

	require.NoError(t, cfg.EnsureDataDir())
	info, err := os.Stat(cfg.DataDir)
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}
