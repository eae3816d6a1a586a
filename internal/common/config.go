package common

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/pelletier/go-toml/v2"
)

// Config represents the application configuration
type Config struct {
	Environment string          `toml:"environment" validate:"oneof=development production"`
	Server      ServerConfig    `toml:"server"`
	Storage     StorageConfig   `toml:"storage"`
	Logging     LoggingConfig   `toml:"logging"`
	SSO         SSOAppConfig    `toml:"sso"`
	Dispatch    DispatchConfig  `toml:"dispatch"`
	Units       UnitsConfig     `toml:"units"`
	Keepalive   KeepaliveConfig `toml:"keepalive"`
	WebSocket   WebSocketConfig `toml:"websocket"`
}

type ServerConfig struct {
	Port int    `toml:"port" validate:"gt=0,lt=65536"`
	Host string `toml:"host" validate:"required"`
}

type StorageConfig struct {
	Badger BadgerConfig `toml:"badger"`
}

// BadgerConfig represents BadgerDB-specific configuration
type BadgerConfig struct {
	Path           string `toml:"path"` // Database directory path
	ResetOnStartup bool   `toml:"reset_on_startup"`
}

type LoggingConfig struct {
	Level      string   `toml:"level" validate:"oneof=debug info warn error"`
	Output     []string `toml:"output"` // "stdout", "file"
	TimeFormat string   `toml:"time_format"`
}

// SSOAppConfig holds the host-side settings for the SSO login flow. The SSO
// document itself (endpoints, selectors, accounts) lives in a JSON side file
// at ConfigPath and is managed by the credential store.
type SSOAppConfig struct {
	ConfigPath      string        `toml:"config_path"`      // Persisted SSO document (JSON)
	PartitionDir    string        `toml:"partition_dir"`    // Chrome user-data-dir for the isolated login partition
	WatchdogTimeout time.Duration `toml:"watchdog_timeout"` // Reveal delay for silent auto-login attempts
	ExchangeTimeout time.Duration `toml:"exchange_timeout"` // Ticket exchange HTTP timeout
	ChromePath      string        `toml:"chrome_path"`      // Optional explicit Chrome binary
	NoSandbox       bool          `toml:"no_sandbox"`
}

// DispatchConfig controls the pass-through request dispatcher.
type DispatchConfig struct {
	Timeout   time.Duration `toml:"timeout"`
	RateLimit time.Duration `toml:"rate_limit"` // Minimum spacing between dispatched requests, 0 disables
	RateBurst int           `toml:"rate_burst"`
}

// UnitsConfig holds the downstream accounting-unit endpoints, relative to the
// callback URL's host.
type UnitsConfig struct {
	FindUnitPath    string        `toml:"find_unit_path"`
	SaveSessionPath string        `toml:"save_session_path"`
	Timeout         time.Duration `toml:"timeout"`
}

// KeepaliveConfig controls the scheduled session staleness probe.
type KeepaliveConfig struct {
	Enabled  bool   `toml:"enabled"`
	Schedule string `toml:"schedule"` // Cron schedule format
}

// WebSocketConfig contains configuration for the UI push channel
type WebSocketConfig struct {
	MinLevel         string `toml:"min_level"`         // Minimum log level to broadcast
	ThrottleInterval string `toml:"throttle_interval"` // Spacing for high-frequency events, "" disables
}

// NewDefaultConfig creates a configuration with default values.
// Technical parameters are hardcoded here for production stability.
// Only user-facing settings should be exposed in aditus.toml.
func NewDefaultConfig() *Config {
	return &Config{
		Environment: "development",
		Server: ServerConfig{
			Port: 8099,
			Host: "localhost",
		},
		Storage: StorageConfig{
			Badger: BadgerConfig{
				Path: "./data/db",
			},
		},
		Logging: LoggingConfig{
			Level:      "info",
			Output:     []string{"stdout", "file"},
			TimeFormat: "15:04:05",
		},
		SSO: SSOAppConfig{
			ConfigPath:      "./data/sso-config.json",
			PartitionDir:    "./data/sso-partition",
			WatchdogTimeout: 18 * time.Second, // Reveal fallback for silent auto-login failures
			ExchangeTimeout: 30 * time.Second,
		},
		Dispatch: DispatchConfig{
			Timeout:   60 * time.Second,
			RateLimit: 0, // Unlimited unless configured
			RateBurst: 5,
		},
		Units: UnitsConfig{
			FindUnitPath:    "/api/v1/accountant/financial/acc-accounting-data/find-unit",
			SaveSessionPath: "/api/v1/accountant/financial/acc-accounting-data/save-session",
			Timeout:         30 * time.Second,
		},
		Keepalive: KeepaliveConfig{
			Enabled:  false,
			Schedule: "0 */5 * * * *", // Every 5 minutes (cron format with seconds)
		},
		WebSocket: WebSocketConfig{
			MinLevel:         "info",
			ThrottleInterval: "500ms",
		},
	}
}

// LoadFromFile loads configuration with priority: defaults -> file -> env -> CLI
func LoadFromFile(path string) (*Config, error) {
	if path == "" {
		return LoadFromFiles()
	}
	return LoadFromFiles(path)
}

// LoadFromFiles loads configuration from multiple files, later files override
// earlier files. Priority: CLI flags > environment > last file > ... > defaults.
func LoadFromFiles(paths ...string) (*Config, error) {
	config := NewDefaultConfig()

	for i, path := range paths {
		if path == "" {
			continue
		}

		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}

		if err := toml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s (file %d of %d): %w", path, i+1, len(paths), err)
		}
	}

	applyEnvOverrides(config)

	if err := Validate(config); err != nil {
		return nil, err
	}

	return config, nil
}

// Validate checks the assembled configuration for structural errors.
func Validate(config *Config) error {
	v := validator.New()
	if err := v.Struct(config); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return nil
}

// applyEnvOverrides applies environment variable overrides to config
func applyEnvOverrides(config *Config) {
	if env := os.Getenv("ADITUS_ENV"); env != "" {
		config.Environment = env
	} else if env := os.Getenv("GO_ENV"); env != "" {
		config.Environment = env
	}

	if port := os.Getenv("ADITUS_SERVER_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			config.Server.Port = p
		}
	}
	if host := os.Getenv("ADITUS_SERVER_HOST"); host != "" {
		config.Server.Host = host
	}

	if level := os.Getenv("ADITUS_LOG_LEVEL"); level != "" {
		config.Logging.Level = level
	}

	if path := os.Getenv("ADITUS_SSO_CONFIG"); path != "" {
		config.SSO.ConfigPath = path
	}
	if dir := os.Getenv("ADITUS_SSO_PARTITION"); dir != "" {
		config.SSO.PartitionDir = dir
	}
	if chrome := os.Getenv("ADITUS_CHROME_PATH"); chrome != "" {
		config.SSO.ChromePath = chrome
	}

	if path := os.Getenv("ADITUS_BADGER_PATH"); path != "" {
		config.Storage.Badger.Path = path
	}
}

// ApplyFlagOverrides applies command-line flag values to config.
// Command-line flags have highest priority.
func ApplyFlagOverrides(config *Config, port int, host string) {
	if port > 0 {
		config.Server.Port = port
	}
	if host != "" {
		config.Server.Host = host
	}
}

// IsProduction returns true when running in production mode
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}
