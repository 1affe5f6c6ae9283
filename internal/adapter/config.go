package adapter

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// SourceType identifies the catalog backend
type SourceType string

const (
	SourceTypeHTTP SourceType = "http"
	SourceTypeMock SourceType = "mock"
)

// DefaultBaseURL is the public autoinstaller API
const DefaultBaseURL = "https://autoinstaller.qkdny.com/api/autoinstaller"

// Config holds all application configuration
type Config struct {
	Source   SourceConfig   `mapstructure:"source"`
	Download DownloadConfig `mapstructure:"download"`
	Storage  StorageConfig  `mapstructure:"storage"`
	Session  SessionConfig  `mapstructure:"session"`
	Metrics  MetricsConfig  `mapstructure:"metrics"`
	Logging  LoggingConfig  `mapstructure:"logging"`
}

// SourceConfig selects and configures the catalog backend
type SourceConfig struct {
	Type     SourceType    `mapstructure:"type"`     // "http" or "mock"
	BaseURL  string        `mapstructure:"base_url"` // API root, http only
	Timeout  time.Duration `mapstructure:"timeout"`  // per catalog request
	Fixtures string        `mapstructure:"fixtures"` // YAML file, mock only (optional)

	// MockStepDelay is the pause between simulated progress steps (mock only)
	MockStepDelay time.Duration `mapstructure:"mock_step_delay"`
}

// DownloadConfig holds transfer configuration
type DownloadConfig struct {
	Dir          string        `mapstructure:"dir"`
	RetryCount   int           `mapstructure:"retry_count"`
	RetryBackoff string        `mapstructure:"retry_backoff"` // fixed, linear or exponential
	RetryInitial time.Duration `mapstructure:"retry_initial"`
	RetryMax     time.Duration `mapstructure:"retry_max"`
}

// StorageConfig holds the preference/history database location
type StorageConfig struct {
	DataDir string `mapstructure:"data_dir"` // empty = memory only
}

// SessionConfig tunes the download session
type SessionConfig struct {
	PreferredServer  string `mapstructure:"preferred_server"`
	ArchiveCancelled bool   `mapstructure:"archive_cancelled"`
	HistoryLimit     int    `mapstructure:"history_limit"`
}

// MetricsConfig controls the Prometheus endpoint
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Addr    string `mapstructure:"addr"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	File  string `mapstructure:"file"`
	Level string `mapstructure:"level"`
}

// DefaultConfig returns the default configuration
func DefaultConfig() *Config {
	return &Config{
		Source: SourceConfig{
			Type:    SourceTypeHTTP,
			BaseURL: DefaultBaseURL,
			Timeout: 30 * time.Second,

			MockStepDelay: 100 * time.Millisecond,
		},
		Download: DownloadConfig{
			Dir:          "downloads",
			RetryCount:   3,
			RetryBackoff: "linear",
			RetryInitial: time.Second,
			RetryMax:     30 * time.Second,
		},
		Storage: StorageConfig{
			DataDir: defaultDataPath(),
		},
		Session: SessionConfig{
			HistoryLimit: 100,
		},
		Metrics: MetricsConfig{
			Enabled: false,
			Addr:    "127.0.0.1:9464",
		},
		Logging: LoggingConfig{
			File:  filepath.Join(defaultDataPath(), "vhdget.log"),
			Level: "INFO",
		},
	}
}

// defaultDataPath returns the default data directory for the current OS
func defaultDataPath() string {
	switch runtime.GOOS {
	case "windows":
		return filepath.Join(os.Getenv("LOCALAPPDATA"), "vhdget")
	default:
		home, _ := os.UserHomeDir()
		return filepath.Join(home, ".local", "share", "vhdget")
	}
}

// defaultConfigPath returns the default config directory for the current OS
func defaultConfigPath() string {
	switch runtime.GOOS {
	case "windows":
		return filepath.Join(os.Getenv("APPDATA"), "vhdget")
	default:
		home, _ := os.UserHomeDir()
		return filepath.Join(home, ".config", "vhdget")
	}
}

// LoadConfig loads configuration from file and environment. A .env file in
// the working directory is applied to the environment first.
func LoadConfig() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("error reading .env file: %w", err)
	}
	return loadConfig(viper.New(), defaultConfigPath(), ".")
}

func loadConfig(v *viper.Viper, paths ...string) (*Config, error) {
	cfg := DefaultConfig()

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	for _, p := range paths {
		v.AddConfigPath(p)
	}

	// Environment variable overrides, e.g. VHDGET_SOURCE_BASE_URL
	v.SetEnvPrefix("VHDGET")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v, cfg)

	// Read config file if it exists
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		// Config file not found is OK, use defaults
	}

	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("error parsing config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// setDefaults registers every key so AutomaticEnv can override it
func setDefaults(v *viper.Viper, cfg *Config) {
	for key, value := range cfg.settings() {
		v.SetDefault(key, value)
	}
}

// settings flattens cfg into viper keys (snake_case)
func (c *Config) settings() map[string]any {
	return map[string]any{
		"source.type":               string(c.Source.Type),
		"source.base_url":           c.Source.BaseURL,
		"source.timeout":            c.Source.Timeout.String(),
		"source.fixtures":           c.Source.Fixtures,
		"source.mock_step_delay":    c.Source.MockStepDelay.String(),
		"download.dir":              c.Download.Dir,
		"download.retry_count":      c.Download.RetryCount,
		"download.retry_backoff":    c.Download.RetryBackoff,
		"download.retry_initial":    c.Download.RetryInitial.String(),
		"download.retry_max":        c.Download.RetryMax.String(),
		"storage.data_dir":          c.Storage.DataDir,
		"session.preferred_server":  c.Session.PreferredServer,
		"session.archive_cancelled": c.Session.ArchiveCancelled,
		"session.history_limit":     c.Session.HistoryLimit,
		"metrics.enabled":           c.Metrics.Enabled,
		"metrics.addr":              c.Metrics.Addr,
		"logging.file":              c.Logging.File,
		"logging.level":             c.Logging.Level,
	}
}

// Validate rejects configurations the application cannot run with
func (c *Config) Validate() error {
	switch c.Source.Type {
	case SourceTypeHTTP:
		if c.Source.BaseURL == "" {
			return errors.New("source.base_url is required for the http source")
		}
	case SourceTypeMock:
	default:
		return fmt.Errorf("unsupported source type: %q", c.Source.Type)
	}
	if c.Download.Dir == "" {
		return errors.New("download.dir is required")
	}
	if c.Download.RetryCount < 0 {
		return fmt.Errorf("download.retry_count must be >= 0, got %d", c.Download.RetryCount)
	}
	if c.Session.HistoryLimit < 0 {
		return fmt.Errorf("session.history_limit must be >= 0, got %d", c.Session.HistoryLimit)
	}
	return nil
}

// ConfigFile returns the path SaveConfig writes to
func ConfigFile() string {
	return filepath.Join(defaultConfigPath(), "config.yaml")
}

// SaveConfig saves the configuration to the default config directory
func SaveConfig(cfg *Config) (string, error) {
	return saveConfig(cfg, defaultConfigPath())
}

func saveConfig(cfg *Config, configPath string) (string, error) {
	if err := os.MkdirAll(configPath, 0755); err != nil {
		return "", fmt.Errorf("failed to create config directory: %w", err)
	}

	v := viper.New()
	for key, value := range cfg.settings() {
		v.Set(key, value)
	}

	configFile := filepath.Join(configPath, "config.yaml")
	if err := v.WriteConfigAs(configFile); err != nil {
		return "", fmt.Errorf("failed to write config file: %w", err)
	}
	return configFile, nil
}

// ExpandHome replaces a leading ~ with the user's home directory
func ExpandHome(path string) (string, error) {
	if !strings.HasPrefix(path, "~") {
		return path, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(home, path[1:]), nil
}
