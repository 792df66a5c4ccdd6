package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"
)

// Environment variables that override the config file.
const (
	EnvAPIURL        = "CHORE_BOARD_API_URL"
	EnvAuthToken     = "CHORE_BOARD_AUTH_TOKEN"
	EnvTimeout       = "CHORE_BOARD_TIMEOUT"
	EnvLogFile       = "CHORE_BOARD_LOG_FILE"
	EnvLogLevel      = "CHORE_BOARD_LOG_LEVEL"
	EnvListen        = "CHORE_BOARD_LISTEN"
	EnvDatabase      = "CHORE_BOARD_DB"
	EnvMetricsListen = "CHORE_BOARD_METRICS_LISTEN"
)

// ErrInvalidConfig is returned by Validate.
var ErrInvalidConfig = errors.New("invalid configuration")

// APIConfig configures the board service client.
type APIConfig struct {
	BaseURL   string        `yaml:"baseUrl"`
	AuthToken string        `yaml:"authToken"`
	Timeout   time.Duration `yaml:"timeout"`
}

// LogConfig configures logging. The terminal UI owns stdout, so logs go to a file.
type LogConfig struct {
	File  string `yaml:"file"`
	Level string `yaml:"level"`
}

// ServerConfig configures the development board service.
type ServerConfig struct {
	Listen   string `yaml:"listen"`
	Database string `yaml:"database"`
	// MetricsListen serves /metrics when set.
	MetricsListen string `yaml:"metricsListen"`
}

// Config is the application configuration.
type Config struct {
	API    APIConfig    `yaml:"api"`
	Log    LogConfig    `yaml:"log"`
	Server ServerConfig `yaml:"server"`
}

// Default returns the configuration used when nothing is set.
func Default() *Config {
	return &Config{
		API: APIConfig{
			BaseURL: "http://localhost:8108/api",
			Timeout: 10 * time.Second,
		},
		Log: LogConfig{
			File:  "chore-board.log",
			Level: "info",
		},
		Server: ServerConfig{
			Listen:   ":8108",
			Database: "chore-board.sqlite",
		},
	}
}

// Load builds the configuration from defaults, the YAML file at path (skipped when path is
// empty), the dotenv file at envFile (".env" when empty; a missing file is ignored) and
// finally the process environment. The result is validated.
func Load(path, envFile string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("error reading config file %s: %w", path, err)
		}

		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("error parsing config file %s: %w", path, err)
		}
	}

	if envFile == "" {
		envFile = ".env"
	}

	// godotenv never overrides variables that are already set
	if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("error loading env file %s: %w", envFile, err)
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) applyEnv() error {
	setString := func(key string, target *string) {
		if v, ok := os.LookupEnv(key); ok {
			*target = v
		}
	}

	setString(EnvAPIURL, &c.API.BaseURL)
	setString(EnvAuthToken, &c.API.AuthToken)
	setString(EnvLogFile, &c.Log.File)
	setString(EnvLogLevel, &c.Log.Level)
	setString(EnvListen, &c.Server.Listen)
	setString(EnvDatabase, &c.Server.Database)
	setString(EnvMetricsListen, &c.Server.MetricsListen)

	if v, ok := os.LookupEnv(EnvTimeout); ok {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("%w: %s: %w", ErrInvalidConfig, EnvTimeout, err)
		}

		c.API.Timeout = d
	}

	return nil
}

// Validate checks the configuration for values that cannot work.
func (c *Config) Validate() error {
	u, err := url.Parse(c.API.BaseURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("%w: api base url %q must be an http(s) url", ErrInvalidConfig, c.API.BaseURL)
	}

	if c.API.Timeout <= 0 {
		return fmt.Errorf("%w: api timeout must be positive, got %s", ErrInvalidConfig, c.API.Timeout)
	}

	if _, err := zerolog.ParseLevel(c.Log.Level); err != nil {
		return fmt.Errorf("%w: log level %q: %w", ErrInvalidConfig, c.Log.Level, err)
	}

	return nil
}

// LogLevel returns the configured zerolog level. Validate must have passed.
func (c *Config) LogLevel() zerolog.Level {
	level, err := zerolog.ParseLevel(c.Log.Level)
	if err != nil {
		return zerolog.InfoLevel
	}

	return level
}
