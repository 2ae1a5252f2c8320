// Package config provides application configuration management.
// It loads settings from environment variables (optionally from a .env file)
// and applies defaults for the server, the LINE channels and the data store.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Default LINE endpoints.
const (
	DefaultLineAPIEndpoint = "https://api.line.me"
	DefaultLoginFallback   = "https://www.google.com/"
	DefaultLoginSuccess    = "綁定成功"
)

// Config holds all application configuration
type Config struct {
	// Messaging API channel
	LineChannelToken  string
	LineChannelSecret string // Empty disables webhook signature verification
	LineBotBasicID    string // Basic ID used for the line://ti/p/ deep link
	LineAPIEndpoint   string
	LineAPITimeout    time.Duration

	// LINE Login channel
	Login LoginConfig

	// Server Configuration
	Port            string
	LogLevel        string
	ShutdownTimeout time.Duration

	// Data Configuration
	DataDir string // Directory for the bindings SQLite database

	// Metrics Authentication (empty password = no auth)
	MetricsUsername string
	MetricsPassword string

	// Better Stack
	BetterStackToken string
	SentryToken      string
	SentryHost       string
	SentryEnv        string

	// Webhook limits
	MaxEventsPerWebhook int
	MaxWebhookBodyBytes int64
}

// LoginConfig holds the LINE Login channel settings used by /login and /callback.
type LoginConfig struct {
	ChannelID      string
	ChannelSecret  string
	CallbackURL    string
	FallbackURL    string
	SuccessMessage string
}

// Enabled reports whether the login channel is configured.
func (l LoginConfig) Enabled() bool {
	return l.ChannelID != ""
}

// Load reads configuration from environment variables
// It attempts to load .env file first, then reads from env vars
func Load() (*Config, error) {
	// Try to load .env file (ignore error if file doesn't exist)
	_ = godotenv.Load()

	cfg := &Config{
		LineChannelToken:  getEnv(EnvLineChannelAccessToken, ""),
		LineChannelSecret: getEnv(EnvLineChannelSecret, ""),
		LineBotBasicID:    getEnv(EnvLineBotBasicID, ""),
		LineAPIEndpoint:   getEnv(EnvLineAPIEndpoint, DefaultLineAPIEndpoint),
		LineAPITimeout:    getDurationEnv(EnvLineAPITimeout, LINEAPIRequest),

		Login: LoginConfig{
			ChannelID:      getEnv(EnvLoginChannelID, ""),
			ChannelSecret:  getEnv(EnvLoginChannelSecret, ""),
			CallbackURL:    getEnv(EnvLoginCallbackURL, ""),
			FallbackURL:    getEnv(EnvLoginFallbackURL, DefaultLoginFallback),
			SuccessMessage: getEnv(EnvLoginSuccessText, DefaultLoginSuccess),
		},

		Port:            getEnv(EnvPort, "10000"),
		LogLevel:        getEnv(EnvLogLevel, "info"),
		ShutdownTimeout: getDurationEnv(EnvShutdownTimeout, GracefulShutdown),

		DataDir: getEnv(EnvDataDir, getDefaultDataDir()),

		MetricsUsername: getEnv(EnvMetricsUsername, "prometheus"),
		MetricsPassword: getEnv(EnvMetricsPassword, ""),

		BetterStackToken: getEnv(EnvBetterStackToken, ""),
		SentryToken:      getEnv(EnvSentryToken, ""),
		SentryHost:       getEnv(EnvSentryHost, ""),
		SentryEnv:        getEnv(EnvSentryEnvironment, "production"),

		MaxEventsPerWebhook: getIntEnv(EnvMaxEventsPerWebhook, LINEMaxEventsPerWebhook),
		MaxWebhookBodyBytes: LINEMaxWebhookBodyBytes,
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// Validate checks if required configuration values are set
func (c *Config) Validate() error {
	var errs []error

	if c.LineChannelToken == "" {
		errs = append(errs, fmt.Errorf("%s is required", EnvLineChannelAccessToken))
	}
	if c.Port == "" {
		errs = append(errs, fmt.Errorf("%s is required", EnvPort))
	}
	if c.DataDir == "" {
		errs = append(errs, fmt.Errorf("%s is required", EnvDataDir))
	}
	if c.LineAPITimeout <= 0 {
		errs = append(errs, fmt.Errorf("%s must be positive, got %v", EnvLineAPITimeout, c.LineAPITimeout))
	}
	if c.ShutdownTimeout <= 0 {
		errs = append(errs, fmt.Errorf("%s must be positive, got %v", EnvShutdownTimeout, c.ShutdownTimeout))
	}
	if _, err := url.ParseRequestURI(c.LineAPIEndpoint); err != nil {
		errs = append(errs, fmt.Errorf("%s is not a valid URL: %w", EnvLineAPIEndpoint, err))
	}
	if c.MaxEventsPerWebhook <= 0 {
		errs = append(errs, errors.New("max events per webhook must be positive"))
	}
	if c.SentryToken != "" && c.SentryHost == "" {
		errs = append(errs, fmt.Errorf("%s is required when %s is set", EnvSentryHost, EnvSentryToken))
	}
	if err := c.Login.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("login config: %w", err))
	}

	return errors.Join(errs...)
}

// Validate checks the login channel settings. An unconfigured channel is valid.
func (l LoginConfig) Validate() error {
	if !l.Enabled() {
		return nil
	}

	var errs []error
	if l.ChannelSecret == "" {
		errs = append(errs, fmt.Errorf("%s is required when %s is set", EnvLoginChannelSecret, EnvLoginChannelID))
	}
	if l.CallbackURL == "" {
		errs = append(errs, fmt.Errorf("%s is required when %s is set", EnvLoginCallbackURL, EnvLoginChannelID))
	}
	if l.FallbackURL == "" {
		errs = append(errs, fmt.Errorf("%s must not be empty", EnvLoginFallbackURL))
	}
	return errors.Join(errs...)
}

// getEnv retrieves environment variable with fallback to default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getIntEnv retrieves integer environment variable with fallback to default value
func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

// getDurationEnv retrieves duration environment variable with fallback to default value
func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

// getDefaultDataDir returns platform-specific default data directory
func getDefaultDataDir() string {
	if runtime.GOOS == "windows" {
		return "./data"
	}
	return "/data"
}

// SQLitePath returns the full path to the SQLite database file
func (c *Config) SQLitePath() string {
	return filepath.Join(c.DataDir, "bindings.db")
}

// MetricsAuthEnabled reports whether /metrics requires Basic Auth.
func (c *Config) MetricsAuthEnabled() bool {
	return c.MetricsPassword != ""
}
