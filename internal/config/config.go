// Package config loads and validates the apkbuilder configuration.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the application configuration.
type Config struct {
	Server  ServerConfig  `yaml:"server"`
	Builds  BuildsConfig  `yaml:"builds"`
	Ledger  LedgerConfig  `yaml:"ledger"`
	Source  SourceConfig  `yaml:"source"`
	Events  EventsConfig  `yaml:"events"`
	Janitor JanitorConfig `yaml:"janitor"`
}

// ServerConfig holds the HTTP listener settings.
type ServerConfig struct {
	Listen string `yaml:"listen"` // address the HTTP server binds to
	// PublicHost overrides the request Host when constructing download URLs
	// (useful behind a reverse proxy). Empty means trust the request Host.
	PublicHost string `yaml:"public_host,omitempty"`
}

// BuildsConfig controls the build pipeline.
type BuildsConfig struct {
	// DataDir is the root for per-build output directories (served downloads).
	DataDir string `yaml:"data_dir"`
	// TempDir is the root for ephemeral clone/archive workspaces.
	TempDir string `yaml:"temp_dir"`
	// Workers bounds the number of concurrently running pipelines.
	Workers int `yaml:"workers"`
	// ToolTimeout bounds each external command invocation. Zero disables it.
	ToolTimeout time.Duration `yaml:"tool_timeout,omitempty"`
}

// LedgerConfig controls the persistent build history.
type LedgerConfig struct {
	Path       string `yaml:"path"`
	MaxRecords int    `yaml:"max_records"`
}

// SourceConfig controls repository acquisition.
type SourceConfig struct {
	// AllowedHost is the only hosting domain accepted in submitted URLs.
	AllowedHost string `yaml:"allowed_host"`
	// ArchiveAPIBase is the API root used for snapshot zipball downloads.
	ArchiveAPIBase string `yaml:"archive_api_base"`
	// Branches are the default branch names tried for snapshot downloads.
	Branches []string `yaml:"branches"`
	// DownloadTimeout bounds each snapshot HTTP request.
	DownloadTimeout time.Duration `yaml:"download_timeout"`
}

// EventsConfig controls the transition journal and the optional NATS publisher.
type EventsConfig struct {
	JournalPath string `yaml:"journal_path"` // SQLite file, empty disables the journal
	NATSURL     string `yaml:"nats_url,omitempty"`
	Subject     string `yaml:"subject,omitempty"`
}

// JanitorConfig controls the orphan-workspace sweeper.
type JanitorConfig struct {
	Interval time.Duration `yaml:"interval"`
	// TTL is the minimum age before an abandoned workspace is removed.
	TTL time.Duration `yaml:"ttl"`
}

// Default returns a configuration with all defaults applied.
func Default() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}

// Load loads configuration from the specified file. A missing file yields the
// defaults; a present but malformed file is an error.
func Load(configPath string) (*Config, error) {
	data, err := os.ReadFile(configPath)
	if err != nil {
		if os.IsNotExist(err) {
			return Default(), nil
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	// Expand environment variables in the YAML content
	expandedData := os.ExpandEnv(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expandedData), &cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Server.Listen == "" {
		c.Server.Listen = ":8080"
	}
	if c.Builds.DataDir == "" {
		c.Builds.DataDir = filepath.Join(os.TempDir(), "apkbuilder-downloads")
	}
	if c.Builds.TempDir == "" {
		c.Builds.TempDir = filepath.Join(os.TempDir(), "apkbuilder")
	}
	if c.Builds.Workers <= 0 {
		c.Builds.Workers = 4
	}
	if c.Ledger.Path == "" {
		c.Ledger.Path = filepath.Join(os.TempDir(), "apkbuilder-logs", "builds.json")
	}
	if c.Ledger.MaxRecords <= 0 {
		c.Ledger.MaxRecords = 100
	}
	if c.Source.AllowedHost == "" {
		c.Source.AllowedHost = "github.com"
	}
	if c.Source.ArchiveAPIBase == "" {
		c.Source.ArchiveAPIBase = "https://api.github.com"
	}
	if len(c.Source.Branches) == 0 {
		c.Source.Branches = []string{"main", "master"}
	}
	if c.Source.DownloadTimeout <= 0 {
		c.Source.DownloadTimeout = 30 * time.Second
	}
	if c.Events.Subject == "" {
		c.Events.Subject = "apkbuilder.builds"
	}
	if c.Janitor.Interval <= 0 {
		c.Janitor.Interval = 15 * time.Minute
	}
	if c.Janitor.TTL <= 0 {
		c.Janitor.TTL = time.Hour
	}
}

// Validate checks cross-field constraints.
func (c *Config) Validate() error {
	if c.Builds.Workers > 64 {
		return fmt.Errorf("builds.workers %d exceeds sane limit 64", c.Builds.Workers)
	}
	if c.Ledger.MaxRecords > 10000 {
		return fmt.Errorf("ledger.max_records %d exceeds sane limit 10000", c.Ledger.MaxRecords)
	}
	if c.Janitor.TTL < time.Minute {
		return fmt.Errorf("janitor.ttl %s is below the 1m minimum", c.Janitor.TTL)
	}
	return nil
}
