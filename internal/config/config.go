// Package config handles application configuration
package config

import (
	_ "embed"
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"kairon/internal/notification"
	"kairon/internal/reminder"
	"kairon/internal/widgets"
)

//go:embed config.sample.yaml
var sampleConfig string

// GetSampleConfig returns the embedded sample configuration content
func GetSampleConfig() string {
	return sampleConfig
}

// DatabaseConfig locates the SQLite file.
type DatabaseConfig struct {
	Path string `yaml:"path"`
}

// ServerConfig holds local HTTP API settings.
type ServerConfig struct {
	Addr string `yaml:"addr"`
}

// Config represents the application configuration
type Config struct {
	Database     DatabaseConfig      `yaml:"database"`
	OutputFormat string              `yaml:"output_format"`
	Reminder     reminder.Config     `yaml:"reminder"`
	Notification notification.Config `yaml:"notification"`
	Widgets      widgets.Config      `yaml:"widgets"`
	Server       ServerConfig        `yaml:"server"`
	Watch        *bool               `yaml:"watch"`

	// path is where the config was loaded from.
	path string
}

// DefaultConfig returns a config with sensible defaults
func DefaultConfig() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}

func (c *Config) applyDefaults() {
	if c.Database.Path == "" {
		c.Database.Path = filepath.Join(GetDataDir(), "kairon.db")
	}
	if c.OutputFormat == "" {
		c.OutputFormat = "text"
	}
	if c.Server.Addr == "" {
		c.Server.Addr = "127.0.0.1:7420"
	}
	if c.Widgets.QuoteURL == "" {
		c.Widgets.QuoteURL = widgets.DefaultQuoteURL
	}
	if c.Widgets.WeatherURL == "" {
		c.Widgets.WeatherURL = widgets.DefaultWeatherURL
	}
	if c.Widgets.Units == "" {
		c.Widgets.Units = "metric"
	}
	if c.Watch == nil {
		on := true
		c.Watch = &on
	}
}

// Load reads configuration from configPath, or the default XDG path if empty.
// A missing file is created from the embedded sample.
func Load(configPath string) (*Config, error) {
	if configPath == "" {
		configPath = DefaultPath()
	}

	data, err := os.ReadFile(configPath)
	if errors.Is(err, os.ErrNotExist) {
		if err := writeSample(configPath); err != nil {
			return nil, fmt.Errorf("failed to create default config: %w", err)
		}
		data = []byte(sampleConfig)
	} else if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg, err := Parse(data)
	if err != nil {
		return nil, err
	}
	cfg.path = configPath
	return cfg, nil
}

// Parse decodes YAML and fills defaults.
func Parse(data []byte) (*Config, error) {
	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("invalid YAML in config file: %w", err)
	}
	cfg.applyDefaults()
	cfg.Database.Path = ExpandPath(cfg.Database.Path)
	cfg.Notification.LogNotification.Path = ExpandPath(cfg.Notification.LogNotification.Path)
	return cfg, nil
}

func writeSample(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	return os.WriteFile(path, []byte(sampleConfig), 0644)
}

// Path returns the file the config was loaded from, if any.
func (c *Config) Path() string { return c.path }

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.OutputFormat != "text" && c.OutputFormat != "json" {
		return fmt.Errorf("invalid output_format: %q (must be 'text' or 'json')", c.OutputFormat)
	}
	if c.Reminder.DefaultLead != "" {
		if _, err := reminder.ParseLead(c.Reminder.DefaultLead); err != nil {
			return fmt.Errorf("invalid reminder.default_lead: %w", err)
		}
	}
	if c.Widgets.Timeout < 0 {
		return fmt.Errorf("widgets.timeout must not be negative")
	}
	if _, _, err := net.SplitHostPort(c.Server.Addr); err != nil {
		return fmt.Errorf("invalid server.addr %q: %w", c.Server.Addr, err)
	}
	return nil
}

// ApplyFlags applies CLI flag overrides to the configuration
func (c *Config) ApplyFlags(dbPath string, jsonOutput bool) {
	if dbPath != "" {
		c.Database.Path = ExpandPath(dbPath)
	}
	if jsonOutput {
		c.OutputFormat = "json"
	}
}

// WatchEnabled reports whether serve/tui sessions watch the database.
func (c *Config) WatchEnabled() bool {
	return c.Watch == nil || *c.Watch
}

// DefaultLeadMinutes returns the configured default reminder lead, or 0.
func (c *Config) DefaultLeadMinutes() int {
	if !c.Reminder.Enabled || c.Reminder.DefaultLead == "" {
		return 0
	}
	n, err := reminder.ParseLead(c.Reminder.DefaultLead)
	if err != nil {
		return 0
	}
	return n
}

// LoadEnv loads .env files from the working directory and the config
// directory. Existing environment variables win.
func LoadEnv() []string {
	var loaded []string
	for _, p := range []string{".env", filepath.Join(GetConfigDir(), ".env")} {
		if _, err := os.Stat(p); err != nil {
			continue
		}
		if err := godotenv.Load(p); err == nil {
			loaded = append(loaded, p)
		}
	}
	return loaded
}

// DefaultPath returns the XDG config file location.
func DefaultPath() string {
	return filepath.Join(GetConfigDir(), "config.yaml")
}

// getXDGDir returns a directory path following XDG spec.
func getXDGDir(envVar, fallbackPath string) string {
	if xdgDir := os.Getenv(envVar); xdgDir != "" {
		return filepath.Join(xdgDir, "kairon")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", fallbackPath, "kairon")
	}
	return filepath.Join(home, fallbackPath, "kairon")
}

// GetConfigDir returns the configuration directory following XDG spec
func GetConfigDir() string {
	return getXDGDir("XDG_CONFIG_HOME", ".config")
}

// GetDataDir returns the data directory following XDG spec
func GetDataDir() string {
	return getXDGDir("XDG_DATA_HOME", filepath.Join(".local", "share"))
}

// GetCacheDir returns the cache directory following XDG spec
func GetCacheDir() string {
	return getXDGDir("XDG_CACHE_HOME", ".cache")
}

// ExpandPath expands ~ and environment variables in a path
func ExpandPath(path string) string {
	if path == "" {
		return path
	}
	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err == nil {
			path = filepath.Join(home, path[2:])
		}
	}
	return os.ExpandEnv(path)
}
