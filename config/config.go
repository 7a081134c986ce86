package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"

	"options-flow-tracker/notifications"
)

// Config holds application configuration
type Config struct {
	StreamWSURL string `yaml:"stream_ws_url"`
	APIBaseURL  string `yaml:"api_base_url"`
	HTTPPort    int    `yaml:"http_port"`

	// Symbol universe declared in the subscribe message
	FuturesSymbols []string `yaml:"futures_symbols"`
	EquitySymbols  []string `yaml:"equity_symbols"`

	Flow      FlowConfig      `yaml:"flow"`
	Reconnect ReconnectConfig `yaml:"reconnect"`
	Timeouts  TimeoutConfig   `yaml:"timeouts"`
	Log       LogConfig       `yaml:"log"`

	// Redis configuration
	Redis RedisConfig `yaml:"redis"`

	// Database configuration
	Archive ArchiveConfig `yaml:"archive"`

	// Large-flow alerts and webhook destinations
	Alerts AlertConfig `yaml:"alerts"`
}

// FlowConfig holds buffer and sentiment policy
type FlowConfig struct {
	BufferCapacity      int     `yaml:"buffer_capacity"`
	BullishThreshold    float64 `yaml:"bullish_threshold"`
	BearishThreshold    float64 `yaml:"bearish_threshold"`
	SnapshotPollSeconds int     `yaml:"snapshot_poll_seconds"` // 0 disables periodic refresh
	CommandRatePerSec   float64 `yaml:"command_rate_per_second"`
}

// ReconnectConfig holds stream reconnection backoff
type ReconnectConfig struct {
	Enabled        bool `yaml:"enabled"`
	InitialDelayMs int  `yaml:"initial_delay_ms"`
	MaxDelayMs     int  `yaml:"max_delay_ms"`
	MaxAttempts    int  `yaml:"max_attempts"` // -1 for infinite
	JitterMs       int  `yaml:"jitter_ms"`
}

// TimeoutConfig holds transport timeouts passed to the stream and REST collaborators
type TimeoutConfig struct {
	PingIntervalSeconds int `yaml:"ping_interval_seconds"`
	DialSeconds         int `yaml:"dial_seconds"`
	FetchSeconds        int `yaml:"fetch_seconds"`
}

// LogConfig holds logger settings
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // text | json
}

// RedisConfig holds snapshot cache settings
type RedisConfig struct {
	Enabled         bool   `yaml:"enabled"`
	Host            string `yaml:"host"`
	Port            string `yaml:"port"`
	Password        string `yaml:"password"`
	SnapshotTTLMins int    `yaml:"snapshot_ttl_minutes"`
}

// ArchiveConfig holds flow archive database settings
type ArchiveConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Name     string `yaml:"name"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
}

// AlertConfig holds flow alert thresholds and webhook destinations
type AlertConfig struct {
	Enabled         bool                    `yaml:"enabled"`
	MinSweepPremium float64                 `yaml:"min_sweep_premium"`
	MinBlockPremium float64                 `yaml:"min_block_premium"`
	MinPremium      float64                 `yaml:"min_premium"`
	Webhooks        []notifications.Webhook `yaml:"webhooks"`
}

// LoadFromEnv loads configuration from .env and environment variables
func LoadFromEnv() *Config {
	// Load .env file if exists
	if err := godotenv.Load(); err != nil {
		logrus.Debug("No .env file found, using environment variables")
	}

	return &Config{
		StreamWSURL: getEnvOrDefault("STREAM_WS_URL", "ws://localhost:3000/ws"),
		APIBaseURL:  strings.TrimRight(getEnvOrDefault("API_BASE_URL", "http://localhost:3000"), "/"),
		HTTPPort:    getEnvInt("HTTP_PORT", 8080),

		FuturesSymbols: getEnvList("FUTURES_SYMBOLS", []string{"/ES", "/NQ"}),
		EquitySymbols:  getEnvList("EQUITY_SYMBOLS", []string{"SPY", "QQQ", "AAPL", "TSLA"}),

		Flow: FlowConfig{
			BufferCapacity:      getEnvInt("FLOW_BUFFER_CAPACITY", 100),
			BullishThreshold:    getEnvFloat("SENTIMENT_BULLISH_THRESHOLD", 30),
			BearishThreshold:    getEnvFloat("SENTIMENT_BEARISH_THRESHOLD", -30),
			SnapshotPollSeconds: getEnvInt("SNAPSHOT_POLL_SECONDS", 0),
			CommandRatePerSec:   getEnvFloat("COMMAND_RATE_PER_SECOND", 5),
		},

		Reconnect: ReconnectConfig{
			Enabled:        getEnvBool("RECONNECT_ENABLED", true),
			InitialDelayMs: getEnvInt("RECONNECT_INITIAL_DELAY_MS", 1000),
			MaxDelayMs:     getEnvInt("RECONNECT_MAX_DELAY_MS", 30000),
			MaxAttempts:    getEnvInt("RECONNECT_MAX_ATTEMPTS", -1),
			JitterMs:       getEnvInt("RECONNECT_JITTER_MS", 250),
		},

		Timeouts: TimeoutConfig{
			PingIntervalSeconds: getEnvInt("PING_INTERVAL_SECONDS", 25),
			DialSeconds:         getEnvInt("DIAL_TIMEOUT_SECONDS", 10),
			FetchSeconds:        getEnvInt("FETCH_TIMEOUT_SECONDS", 10),
		},

		Log: LogConfig{
			Level:  getEnvOrDefault("LOG_LEVEL", "info"),
			Format: getEnvOrDefault("LOG_FORMAT", "text"),
		},

		// Redis configuration
		Redis: RedisConfig{
			Enabled:         getEnvBool("REDIS_ENABLED", false),
			Host:            getEnvOrDefault("REDIS_HOST", "localhost"),
			Port:            getEnvOrDefault("REDIS_PORT", "6379"),
			Password:        getEnvOrDefault("REDIS_PASSWORD", ""),
			SnapshotTTLMins: getEnvInt("SNAPSHOT_CACHE_TTL_MINUTES", 60),
		},

		// Database configuration
		Archive: ArchiveConfig{
			Enabled:  getEnvBool("ARCHIVE_ENABLED", false),
			Host:     getEnvOrDefault("DB_HOST", "localhost"),
			Port:     getEnvInt("DB_PORT", 5432),
			Name:     getEnvOrDefault("DB_NAME", "options_flow"),
			User:     getEnvOrDefault("DB_USER", "flow"),
			Password: getEnvOrDefault("DB_PASSWORD", "flow123"),
		},

		Alerts: AlertConfig{
			Enabled:         getEnvBool("ALERTS_ENABLED", false),
			MinSweepPremium: getEnvFloat("ALERT_MIN_SWEEP_PREMIUM", 250_000),
			MinBlockPremium: getEnvFloat("ALERT_MIN_BLOCK_PREMIUM", 500_000),
			MinPremium:      getEnvFloat("ALERT_MIN_PREMIUM", 1_000_000),
			Webhooks:        webhooksFromEnv(),
		},
	}
}

// webhooksFromEnv builds a single webhook from WEBHOOK_URL when set
func webhooksFromEnv() []notifications.Webhook {
	url := os.Getenv("WEBHOOK_URL")
	if url == "" {
		return nil
	}
	return []notifications.Webhook{{
		URL:        url,
		AuthHeader: os.Getenv("WEBHOOK_AUTH_HEADER"),
		AuthValue:  os.Getenv("WEBHOOK_AUTH_VALUE"),
		RetryCount: getEnvInt("WEBHOOK_RETRY_COUNT", 3),
		RetryDelay: time.Duration(getEnvInt("WEBHOOK_RETRY_DELAY_SECONDS", 2)) * time.Second,
	}}
}

// Load reads env configuration and overlays the YAML file named by path (or CONFIG_FILE)
func Load(path string) (*Config, error) {
	cfg := LoadFromEnv()

	if path == "" {
		path = os.Getenv("CONFIG_FILE")
	}
	if path != "" {
		if err := cfg.MergeFile(path); err != nil {
			return nil, err
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// MergeFile overlays values present in a YAML file
func (c *Config) MergeFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	c.APIBaseURL = strings.TrimRight(c.APIBaseURL, "/")
	return nil
}

// Validate rejects configurations the core cannot run with
func (c *Config) Validate() error {
	var errs []error
	if c.StreamWSURL == "" {
		errs = append(errs, errors.New("stream_ws_url is required"))
	}
	if c.APIBaseURL == "" {
		errs = append(errs, errors.New("api_base_url is required"))
	}
	if c.Flow.BufferCapacity < 1 {
		errs = append(errs, fmt.Errorf("buffer_capacity must be >= 1, got %d", c.Flow.BufferCapacity))
	}
	if c.Flow.BullishThreshold < c.Flow.BearishThreshold {
		errs = append(errs, fmt.Errorf("bullish_threshold %.2f is below bearish_threshold %.2f",
			c.Flow.BullishThreshold, c.Flow.BearishThreshold))
	}
	if c.Reconnect.InitialDelayMs < 0 || c.Reconnect.MaxDelayMs < c.Reconnect.InitialDelayMs {
		errs = append(errs, errors.New("reconnect delays must satisfy 0 <= initial <= max"))
	}
	for i, hook := range c.Alerts.Webhooks {
		if hook.URL == "" {
			errs = append(errs, fmt.Errorf("alerts.webhooks[%d]: url is required", i))
		}
	}
	return errors.Join(errs...)
}

// FetchTimeout returns the REST timeout
func (c *Config) FetchTimeout() time.Duration {
	return time.Duration(c.Timeouts.FetchSeconds) * time.Second
}

// DialTimeout returns the websocket handshake timeout
func (c *Config) DialTimeout() time.Duration {
	return time.Duration(c.Timeouts.DialSeconds) * time.Second
}

// PingInterval returns the keep-alive interval, 0 disables pings
func (c *Config) PingInterval() time.Duration {
	return time.Duration(c.Timeouts.PingIntervalSeconds) * time.Second
}

// SnapshotPollInterval returns the periodic refresh interval, 0 when disabled
func (c *Config) SnapshotPollInterval() time.Duration {
	return time.Duration(c.Flow.SnapshotPollSeconds) * time.Second
}

// getEnvInt gets environment variable as int or returns default value
func getEnvInt(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var intValue int
	if _, err := fmt.Sscanf(value, "%d", &intValue); err != nil {
		return defaultValue
	}
	return intValue
}

// getEnvFloat gets environment variable as float64 or returns default value
func getEnvFloat(key string, defaultValue float64) float64 {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var floatValue float64
	if _, err := fmt.Sscanf(value, "%f", &floatValue); err != nil {
		return defaultValue
	}
	return floatValue
}

// getEnvBool accepts true/false/1/0
func getEnvBool(key string, defaultValue bool) bool {
	switch strings.ToLower(os.Getenv(key)) {
	case "true", "1", "yes":
		return true
	case "false", "0", "no":
		return false
	default:
		return defaultValue
	}
}

// getEnvList splits a comma separated variable, dropping blanks
func getEnvList(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if s := strings.TrimSpace(part); s != "" {
			out = append(out, s)
		}
	}
	return out
}

// getEnvOrDefault gets environment variable or returns default value
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
