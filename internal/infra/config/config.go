package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"bluehood/internal/domain"
)

// Defaults applied by Load when the file or a field is absent.
const (
	DefaultScanInterval  = 10 * time.Second
	DefaultScanWindow    = 5 * time.Second
	DefaultActiveWindow  = 5 * time.Minute
	DefaultRetentionDays = 90
	DefaultPruneSchedule = "30 3 * * *"
	DefaultVendorAPIURL  = "https://api.macvendors.com/"
	DefaultVendorTimeout = 5 * time.Second
	DefaultNtfyServer    = "https://ntfy.sh"
	DefaultAbsenceGap    = 30 * time.Minute
)

// ScanConfig holds scan loop settings.
type ScanConfig struct {
	// Interval between scan cycles. A new cycle never starts before the
	// previous one finished processing.
	Interval time.Duration `yaml:"interval"`
	// Window is how long each radio scan listens.
	Window time.Duration `yaml:"window"`
	// ActiveWindow defines "active" for device listings: a device is
	// active when last seen within this duration.
	ActiveWindow time.Duration `yaml:"active_window"`
	// RetentionDays bounds sighting log growth; 0 disables pruning.
	RetentionDays int `yaml:"retention_days"`
	// PruneSchedule is a cron expression for the retention job.
	PruneSchedule string `yaml:"prune_schedule"`
	// Adapter names the local HCI adapter (e.g. "hci0"); empty uses the default.
	Adapter string `yaml:"adapter"`
}

// VendorConfig holds OUI vendor lookup settings.
type VendorConfig struct {
	Enabled bool          `yaml:"enabled"`
	APIURL  string        `yaml:"api_url"`
	Timeout time.Duration `yaml:"timeout"`
}

// NotifyConfig holds ntfy.sh push notification settings.
type NotifyConfig struct {
	Enabled bool   `yaml:"enabled"`
	Server  string `yaml:"server"`
	Topic   string `yaml:"topic"`
	// AbsenceGap is the minimum gap before a watched device's return is
	// announced again.
	AbsenceGap time.Duration `yaml:"absence_gap"`
}

// TracerConfig holds tracing settings.
type TracerConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Exporter string `yaml:"exporter"` // stdout or noop
}

// LoggerConfig holds logging settings.
type LoggerConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // text or json
	Output string `yaml:"output"` // stdout, stderr, or a file path
}

// Config is the top-level application configuration.
type Config struct {
	// DataDir holds the store file and the default socket.
	DataDir string `yaml:"data_dir"`
	// Socket is the control channel path; defaults to
	// <data_dir>/bluehoodd.sock.
	Socket string       `yaml:"socket"`
	Scan   ScanConfig   `yaml:"scan"`
	Vendor VendorConfig `yaml:"vendor"`
	Notify NotifyConfig `yaml:"notify"`
	Logger LoggerConfig `yaml:"logger"`
	Tracer TracerConfig `yaml:"tracer"`
}

// StorePath returns the SQLite store file location.
func (c *Config) StorePath() string {
	return filepath.Join(c.DataDir, "bluehood.db")
}

// Default returns a configuration with every field at its default value.
func Default() *Config {
	dataDir := "./bluehood-data"
	if home, err := os.UserHomeDir(); err == nil {
		dataDir = filepath.Join(home, ".local", "share", "bluehood")
	}
	return &Config{
		DataDir: dataDir,
		Scan: ScanConfig{
			Interval:      DefaultScanInterval,
			Window:        DefaultScanWindow,
			ActiveWindow:  DefaultActiveWindow,
			RetentionDays: DefaultRetentionDays,
			PruneSchedule: DefaultPruneSchedule,
		},
		Vendor: VendorConfig{
			Enabled: true,
			APIURL:  DefaultVendorAPIURL,
			Timeout: DefaultVendorTimeout,
		},
		Notify: NotifyConfig{
			Server:     DefaultNtfyServer,
			AbsenceGap: DefaultAbsenceGap,
		},
		Logger: LoggerConfig{Level: "info", Format: "text", Output: "stderr"},
		Tracer: TracerConfig{Enabled: false, Exporter: "noop"},
	}
}

// Load reads the YAML file at path, falling back to defaults when path is
// empty or the default file does not exist, then applies BLUEHOOD_* env
// overrides and validates.
func Load(path string) (*Config, error) {
	cfg := Default()

	explicit := path != ""
	if path == "" {
		path = "./bluehood.yaml"
	}

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, domain.NewDomainError("config.Load", domain.ErrConfig,
				fmt.Sprintf("parse %s: %v", path, err))
		}
	case errors.Is(err, os.ErrNotExist) && !explicit:
		// Run on defaults when no config file is present.
	default:
		return nil, domain.NewDomainError("config.Load", domain.ErrConfig,
			fmt.Sprintf("read %s: %v", path, err))
	}

	applyEnv(cfg)

	if cfg.Socket == "" {
		cfg.Socket = filepath.Join(cfg.DataDir, "bluehoodd.sock")
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyEnv overrides fields from BLUEHOOD_* environment variables.
func applyEnv(cfg *Config) {
	if v := os.Getenv("BLUEHOOD_DATA_DIR"); v != "" {
		cfg.DataDir = v
	}
	if v := os.Getenv("BLUEHOOD_SOCKET"); v != "" {
		cfg.Socket = v
	}
	if v := os.Getenv("BLUEHOOD_SCAN_INTERVAL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Scan.Interval = d
		}
	}
	if v := os.Getenv("BLUEHOOD_ADAPTER"); v != "" {
		cfg.Scan.Adapter = v
	}
	if v := os.Getenv("BLUEHOOD_LOG_LEVEL"); v != "" {
		cfg.Logger.Level = v
	}
	if v := os.Getenv("BLUEHOOD_NTFY_TOPIC"); v != "" {
		cfg.Notify.Topic = v
		cfg.Notify.Enabled = true
	}
}

// Validate checks invariants that would make the daemon misbehave.
// Violations are fatal at startup.
func (c *Config) Validate() error {
	fail := func(detail string) error {
		return domain.NewDomainError("config.Validate", domain.ErrConfig, detail)
	}
	if c.DataDir == "" {
		return fail("data_dir must not be empty")
	}
	if c.Scan.Interval <= 0 {
		return fail("scan.interval must be positive")
	}
	if c.Scan.Window <= 0 {
		return fail("scan.window must be positive")
	}
	if c.Scan.Window > c.Scan.Interval {
		return fail("scan.window must not exceed scan.interval")
	}
	if c.Scan.ActiveWindow <= 0 {
		return fail("scan.active_window must be positive")
	}
	if c.Scan.RetentionDays < 0 {
		return fail("scan.retention_days must not be negative")
	}
	if c.Notify.Enabled && c.Notify.Topic == "" {
		return fail("notify.topic is required when notifications are enabled")
	}
	return nil
}

// EnsureDataDir creates the data directory if needed and verifies it is
// writable. Failure here is a startup error, not a runtime one.
func (c *Config) EnsureDataDir() error {
	if err := os.MkdirAll(c.DataDir, 0o755); err != nil {
		return domain.NewDomainError("config.EnsureDataDir", domain.ErrConfig, err.Error())
	}
	probe := filepath.Join(c.DataDir, ".write-probe")
	f, err := os.Create(probe)
	if err != nil {
		return domain.NewDomainError("config.EnsureDataDir", domain.ErrConfig,
			fmt.Sprintf("data dir %s not writable: %v", c.DataDir, err))
	}
	f.Close()
	os.Remove(probe)
	return nil
}
