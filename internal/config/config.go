package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all configuration for the workspace adapter server.
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Redis    RedisConfig
	Coder    CoderConfig
	Keystone KeystoneConfig
	Deletion DeletionConfig
}

type ServerConfig struct {
	Port int
	Env  string
	// APITokenHash is the bcrypt hash of the bearer token the host framework
	// presents on every request.
	APITokenHash string
}

type DatabaseConfig struct {
	URL             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

type RedisConfig struct {
	URL string
}

type CoderConfig struct {
	Host        string
	Token       string
	ServiceUser string
	// Username prefixes generated workspace names. Resolved by the caller
	// (usually the process owner) and injected here; never looked up lazily.
	Username string
	Timeout  time.Duration
}

type KeystoneConfig struct {
	BaseURL string
	Token   string
	UserID  string
	Timeout time.Duration
}

type DeletionConfig struct {
	MaxAttempts int
	Interval    time.Duration
}

// Load reads configuration from environment variables and returns a validated Config.
// Returns an error with a descriptive message if any required value is missing or invalid.
func Load() (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Port:         envInt("ADAPTER_PORT", 8080),
			Env:          envString("ADAPTER_ENV", "development"),
			APITokenHash: os.Getenv("ADAPTER_API_TOKEN_HASH"),
		},
		Database: DatabaseConfig{
			URL:             os.Getenv("DATABASE_URL"),
			MaxOpenConns:    envInt("DATABASE_MAX_OPEN_CONNS", 25),
			MaxIdleConns:    envInt("DATABASE_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: envDuration("DATABASE_CONN_MAX_LIFETIME", 5*time.Minute),
		},
		Redis: RedisConfig{
			URL: os.Getenv("REDIS_URL"),
		},
		Coder: CoderConfig{
			Host:        os.Getenv("CODER_HOST"),
			Token:       os.Getenv("CODER_SESSION_TOKEN"),
			ServiceUser: envString("CODER_SERVICE_USER", "ondemand"),
			Username:    os.Getenv("ADAPTER_USERNAME"),
			Timeout:     envDuration("CODER_TIMEOUT", 30*time.Second),
		},
		Keystone: KeystoneConfig{
			BaseURL: os.Getenv("KEYSTONE_BASE_URL"),
			Token:   os.Getenv("KEYSTONE_TOKEN"),
			UserID:  os.Getenv("KEYSTONE_USER_ID"),
			Timeout: envDuration("KEYSTONE_TIMEOUT", 30*time.Second),
		},
		Deletion: DeletionConfig{
			MaxAttempts: envInt("DELETION_MAX_ATTEMPTS", 5),
			Interval:    envDurationSecs("DELETION_TIMEOUT_INTERVAL_SECONDS", 10*time.Second),
		},
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) validate() error {
	if c.Database.URL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}

	if c.Redis.URL == "" {
		return fmt.Errorf("REDIS_URL is required")
	}

	if c.Coder.Host == "" {
		return fmt.Errorf("CODER_HOST is required")
	}
	if !strings.HasPrefix(c.Coder.Host, "http://") && !strings.HasPrefix(c.Coder.Host, "https://") {
		return fmt.Errorf("CODER_HOST must start with http:// or https://, got %q", c.Coder.Host)
	}
	if c.Coder.Token == "" {
		return fmt.Errorf("CODER_SESSION_TOKEN is required")
	}

	if c.Keystone.BaseURL == "" {
		return fmt.Errorf("KEYSTONE_BASE_URL is required")
	}
	if !strings.HasPrefix(c.Keystone.BaseURL, "http://") && !strings.HasPrefix(c.Keystone.BaseURL, "https://") {
		return fmt.Errorf("KEYSTONE_BASE_URL must start with http:// or https://, got %q", c.Keystone.BaseURL)
	}
	if c.Keystone.Token == "" {
		return fmt.Errorf("KEYSTONE_TOKEN is required")
	}
	if c.Keystone.UserID == "" {
		return fmt.Errorf("KEYSTONE_USER_ID is required")
	}

	if c.Server.APITokenHash == "" {
		return fmt.Errorf("ADAPTER_API_TOKEN_HASH is required")
	}

	if c.Deletion.MaxAttempts <= 0 {
		return fmt.Errorf("DELETION_MAX_ATTEMPTS must be positive, got %d", c.Deletion.MaxAttempts)
	}

	return nil
}

func envString(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func envInt(key string, defaultVal int) int {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return defaultVal
	}
	return i
}

func envDuration(key string, defaultVal time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return defaultVal
	}
	return d
}

func envDurationSecs(key string, defaultVal time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	secs, err := strconv.Atoi(v)
	if err != nil {
		return defaultVal
	}
	return time.Duration(secs) * time.Second
}
