package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
)

type Config struct {
	ServerPort     string
	DatabaseURL    string
	AdminToken     string
	RemoteBaseURL  string
	RemoteAPIToken string
	LogLevel       string

	remoteTimeoutSeconds   string
	refreshIntervalMinutes string
	flushIntervalSeconds   string
	awaitTimeoutSeconds    string
}

// GetRemoteTimeout returns the remote HTTP timeout from environment or default.
// The system of record routinely takes tens of seconds on list endpoints.
func (c *Config) GetRemoteTimeout() time.Duration {
	return durationFromEnv(c.remoteTimeoutSeconds, "REMOTE_TIMEOUT_SECONDS", 60, time.Second)
}

// GetRefreshInterval returns the scheduled cache refresh interval
func (c *Config) GetRefreshInterval() time.Duration {
	return durationFromEnv(c.refreshIntervalMinutes, "REFRESH_INTERVAL_MINUTES", 30, time.Minute)
}

// GetFlushInterval returns the pending write-back flush interval
func (c *Config) GetFlushInterval() time.Duration {
	return durationFromEnv(c.flushIntervalSeconds, "FLUSH_INTERVAL_SECONDS", 60, time.Second)
}

// GetAwaitTimeout returns how long reads block waiting for a first load
func (c *Config) GetAwaitTimeout() time.Duration {
	return durationFromEnv(c.awaitTimeoutSeconds, "AWAIT_TIMEOUT_SECONDS", 120, time.Second)
}

func durationFromEnv(raw, name string, fallback int, unit time.Duration) time.Duration {
	if raw == "" {
		return time.Duration(fallback) * unit
	}

	value, err := strconv.Atoi(raw)
	if err != nil || value <= 0 {
		logrus.Warnf("Invalid %s value: %s, using default %d", name, raw, fallback)
		return time.Duration(fallback) * unit
	}

	return time.Duration(value) * unit
}

func LoadConfig() *Config {
	err := godotenv.Load()
	if err != nil {
		logrus.Warn("Error loading .env file, using system environment variables")
	}

	return &Config{
		ServerPort:     getEnv("SERVER_PORT", "8080"),
		DatabaseURL:    getEnv("DATABASE_URL", ""),
		AdminToken:     getEnv("ADMIN_TOKEN", ""),
		RemoteBaseURL:  getEnv("REMOTE_BASE_URL", "http://localhost:9090"),
		RemoteAPIToken: getEnv("REMOTE_API_TOKEN", ""),
		LogLevel:       getEnv("LOG_LEVEL", "info"),

		remoteTimeoutSeconds:   getEnv("REMOTE_TIMEOUT_SECONDS", "60"),
		refreshIntervalMinutes: getEnv("REFRESH_INTERVAL_MINUTES", "30"),
		flushIntervalSeconds:   getEnv("FLUSH_INTERVAL_SECONDS", "60"),
		awaitTimeoutSeconds:    getEnv("AWAIT_TIMEOUT_SECONDS", "120"),
	}
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}
