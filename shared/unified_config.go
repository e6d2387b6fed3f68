package shared

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
)

// UnifiedConfiguration holds all configuration parameters for the entire application
type UnifiedConfiguration struct {
	Remote   RemoteConfig   `json:"remote"`
	Database DatabaseConfig `json:"database"`
	Sync     SyncConfig     `json:"sync"`
	Logging  LoggingConfig  `json:"logging"`
}

// RemoteConfig holds configuration for the remote system of record client
type RemoteConfig struct {
	BaseURL            string        `json:"base_url"`
	APIToken           string        `json:"-"`
	HTTPRequestTimeout time.Duration `json:"http_timeout"`
	RequestRateLimit   time.Duration `json:"rate_limit"`
	MaxRetryAttempts   int           `json:"max_retries"`
	EnableMetrics      bool          `json:"enable_metrics"`
}

// DatabaseConfig holds database connection configuration
type DatabaseConfig struct {
	MaxOpenConns    int           `json:"max_open_conns"`
	MaxIdleConns    int           `json:"max_idle_conns"`
	ConnMaxLifetime time.Duration `json:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `json:"conn_max_idle_time"`
	PingTimeout     time.Duration `json:"ping_timeout"`
}

// SyncConfig holds cache refresh and write-back synchronization configuration
type SyncConfig struct {
	RefreshInterval  time.Duration `json:"refresh_interval"`
	FlushInterval    time.Duration `json:"flush_interval"`
	MaxFlushAttempts int           `json:"max_flush_attempts"`
	AwaitTimeout     time.Duration `json:"await_timeout"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level       string `json:"level"`
	Format      string `json:"format"`
	Output      string `json:"output"`
	EnableJSON  bool   `json:"enable_json"`
	ServiceName string `json:"service_name"`
}

// NewDefaultUnifiedConfiguration returns production-ready default configuration
func NewDefaultUnifiedConfiguration() *UnifiedConfiguration {
	return &UnifiedConfiguration{
		Remote: RemoteConfig{
			BaseURL:            "http://localhost:9090",
			HTTPRequestTimeout: 60 * time.Second,
			RequestRateLimit:   500 * time.Millisecond,
			MaxRetryAttempts:   3,
			EnableMetrics:      true,
		},
		Database: DatabaseConfig{
			MaxOpenConns:    25,
			MaxIdleConns:    5,
			ConnMaxLifetime: 5 * time.Minute,
			ConnMaxIdleTime: 5 * time.Minute,
			PingTimeout:     5 * time.Second,
		},
		Sync: SyncConfig{
			RefreshInterval:  30 * time.Minute,
			FlushInterval:    1 * time.Minute,
			MaxFlushAttempts: 5,
			AwaitTimeout:     2 * time.Minute,
		},
		Logging: LoggingConfig{
			Level:       "info",
			Format:      "json",
			Output:      "stdout",
			EnableJSON:  true,
			ServiceName: "invgov-backend",
		},
	}
}

// ValidateAndApplyDefaults validates configuration and applies defaults for invalid values
func (c *UnifiedConfiguration) ValidateAndApplyDefaults() {
	logger := logrus.WithField("component", "UnifiedConfiguration")

	// Validate Remote Config
	if c.Remote.BaseURL == "" {
		c.Remote.BaseURL = "http://localhost:9090"
		logger.Debug("Applied default Remote.BaseURL")
	}

	if c.Remote.HTTPRequestTimeout <= 0 {
		c.Remote.HTTPRequestTimeout = 60 * time.Second
		logger.Debug("Applied default Remote.HTTPRequestTimeout")
	}

	if c.Remote.RequestRateLimit <= 0 {
		c.Remote.RequestRateLimit = 500 * time.Millisecond
		logger.Debug("Applied default Remote.RequestRateLimit")
	}

	if c.Remote.MaxRetryAttempts <= 0 {
		c.Remote.MaxRetryAttempts = 3
		logger.Debug("Applied default Remote.MaxRetryAttempts")
	}

	// Validate Database Config
	if c.Database.MaxOpenConns <= 0 {
		c.Database.MaxOpenConns = 25
		logger.Debug("Applied default Database.MaxOpenConns")
	}

	if c.Database.MaxIdleConns <= 0 {
		c.Database.MaxIdleConns = 5
		logger.Debug("Applied default Database.MaxIdleConns")
	}

	if c.Database.ConnMaxLifetime <= 0 {
		c.Database.ConnMaxLifetime = 5 * time.Minute
		logger.Debug("Applied default Database.ConnMaxLifetime")
	}

	// Validate Sync Config
	if c.Sync.RefreshInterval <= 0 {
		c.Sync.RefreshInterval = 30 * time.Minute
		logger.Debug("Applied default Sync.RefreshInterval")
	}

	if c.Sync.FlushInterval <= 0 {
		c.Sync.FlushInterval = 1 * time.Minute
		logger.Debug("Applied default Sync.FlushInterval")
	}

	if c.Sync.MaxFlushAttempts <= 0 {
		c.Sync.MaxFlushAttempts = 5
		logger.Debug("Applied default Sync.MaxFlushAttempts")
	}

	if c.Sync.AwaitTimeout <= 0 {
		c.Sync.AwaitTimeout = 2 * time.Minute
		logger.Debug("Applied default Sync.AwaitTimeout")
	}

	// Validate Logging Config
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
		logger.Debug("Applied default Logging.Level")
	}

	if c.Logging.Format == "" {
		c.Logging.Format = "json"
		logger.Debug("Applied default Logging.Format")
	}

	if c.Logging.ServiceName == "" {
		c.Logging.ServiceName = "invgov-backend"
		logger.Debug("Applied default Logging.ServiceName")
	}
}

// ToJSON serializes the configuration to JSON
func (c *UnifiedConfiguration) ToJSON() ([]byte, error) {
	return json.MarshalIndent(c, "", "  ")
}

// LoadFromJSON deserializes configuration from JSON
func (c *UnifiedConfiguration) LoadFromJSON(jsonData []byte) error {
	if err := json.Unmarshal(jsonData, c); err != nil {
		return fmt.Errorf("failed to unmarshal configuration: %w", err)
	}
	c.ValidateAndApplyDefaults()
	return nil
}
