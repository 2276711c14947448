// Package config loads process configuration from an optional .env file and
// the environment.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	platformstrings "donorlink/pkg/platform/strings"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"

	devSigningKey = "dev-secret-key-change-in-production"
)

// Server captures HTTP server level configuration.
type Server struct {
	Addr     string `mapstructure:"HTTP_ADDR"`
	Env      string `mapstructure:"APP_ENV"`
	LogLevel string `mapstructure:"LOG_LEVEL"`
}

// Auth configures bearer token verification.
type Auth struct {
	JWTSigningKey string `mapstructure:"JWT_SIGNING_KEY"`
	JWTIssuer     string `mapstructure:"JWT_ISSUER"`
	JWTAudience   string `mapstructure:"JWT_AUDIENCE"`
}

// Database selects the store. An empty URL runs on the in-memory store.
type Database struct {
	URL string `mapstructure:"DATABASE_URL"`
}

// RedisConfig configures the search cache backend. An empty URL keeps the
// cache in process.
type RedisConfig struct {
	URL          string        `mapstructure:"REDIS_URL"`
	PoolSize     int           `mapstructure:"REDIS_POOL_SIZE"`
	MinIdleConns int           `mapstructure:"REDIS_MIN_IDLE_CONNS"`
	DialTimeout  time.Duration `mapstructure:"REDIS_DIAL_TIMEOUT"`
	ReadTimeout  time.Duration `mapstructure:"REDIS_READ_TIMEOUT"`
	WriteTimeout time.Duration `mapstructure:"REDIS_WRITE_TIMEOUT"`
}

// Donors tunes eligibility and search.
type Donors struct {
	CooldownDays        int           `mapstructure:"DONATION_COOLDOWN_DAYS"`
	SearchCacheTTL      time.Duration `mapstructure:"SEARCH_CACHE_TTL"`
	SearchCacheCapacity int           `mapstructure:"SEARCH_CACHE_CAPACITY"`
	SearchMaxPageSize   int           `mapstructure:"SEARCH_MAX_PAGE_SIZE"`
	SearchDefaultPage   int           `mapstructure:"SEARCH_DEFAULT_PAGE_SIZE"`
}

// Requests tunes admission, fan-out and the active listing.
type Requests struct {
	Limit        int           `mapstructure:"REQUEST_LIMIT"`
	Window       time.Duration `mapstructure:"REQUEST_WINDOW"`
	FanOutCap    int           `mapstructure:"FANOUT_CEILING"`
	ActiveWindow time.Duration `mapstructure:"ACTIVE_REQUEST_WINDOW"`
}

// Push configures delivery. With no brokers, pushes are only logged.
type Push struct {
	KafkaBrokers string `mapstructure:"KAFKA_BROKERS"`
	Topic        string `mapstructure:"PUSH_TOPIC"`
	QueueSize    int    `mapstructure:"PUSH_QUEUE_SIZE"`
}

type Config struct {
	Server   `mapstructure:",squash"`
	Auth     `mapstructure:",squash"`
	Database `mapstructure:",squash"`
	Redis    RedisConfig `mapstructure:",squash"`
	Donors   `mapstructure:",squash"`
	Requests `mapstructure:",squash"`
	Push     `mapstructure:",squash"`
}

var defaults = map[string]any{
	"HTTP_ADDR":                ":8080",
	"APP_ENV":                  EnvDevelopment,
	"LOG_LEVEL":                "info",
	"JWT_SIGNING_KEY":          "",
	"JWT_ISSUER":               "",
	"JWT_AUDIENCE":             "",
	"DATABASE_URL":             "",
	"REDIS_URL":                "",
	"REDIS_POOL_SIZE":          10,
	"REDIS_MIN_IDLE_CONNS":     2,
	"REDIS_DIAL_TIMEOUT":       5 * time.Second,
	"REDIS_READ_TIMEOUT":       3 * time.Second,
	"REDIS_WRITE_TIMEOUT":      3 * time.Second,
	"DONATION_COOLDOWN_DAYS":   90,
	"SEARCH_CACHE_TTL":         5 * time.Minute,
	"SEARCH_CACHE_CAPACITY":    100,
	"SEARCH_MAX_PAGE_SIZE":     50,
	"SEARCH_DEFAULT_PAGE_SIZE": 20,
	"REQUEST_LIMIT":            3,
	"REQUEST_WINDOW":           time.Hour,
	"FANOUT_CEILING":           1000,
	"ACTIVE_REQUEST_WINDOW":    7 * 24 * time.Hour,
	"KAFKA_BROKERS":            "",
	"PUSH_TOPIC":               "donorlink-push",
	"PUSH_QUEUE_SIZE":          1024,
}

// Load reads .env when present, lets the environment override it, and
// validates the result. Outside production a missing signing key falls back to
// a development key.
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigFile(".env")
	v.SetConfigType("env")
	_ = v.ReadInConfig()

	v.AutomaticEnv()
	for key, value := range defaults {
		v.SetDefault(key, value)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	if cfg.JWTSigningKey == "" && !cfg.IsProduction() {
		cfg.JWTSigningKey = devSigningKey
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects settings the services cannot run with.
func (c *Config) Validate() error {
	var errs []error
	if c.Addr == "" {
		errs = append(errs, errors.New("config: HTTP_ADDR must be set"))
	}
	if c.JWTSigningKey == "" {
		errs = append(errs, errors.New("config: JWT_SIGNING_KEY must be set"))
	}
	if c.IsProduction() && c.JWTSigningKey == devSigningKey {
		errs = append(errs, errors.New("config: JWT_SIGNING_KEY must not use the development key in production"))
	}
	for _, f := range []struct {
		name  string
		value int
	}{
		{"DONATION_COOLDOWN_DAYS", c.CooldownDays},
		{"SEARCH_CACHE_CAPACITY", c.SearchCacheCapacity},
		{"SEARCH_MAX_PAGE_SIZE", c.SearchMaxPageSize},
		{"SEARCH_DEFAULT_PAGE_SIZE", c.SearchDefaultPage},
		{"REQUEST_LIMIT", c.Limit},
		{"FANOUT_CEILING", c.FanOutCap},
		{"PUSH_QUEUE_SIZE", c.QueueSize},
	} {
		if f.value <= 0 {
			errs = append(errs, fmt.Errorf("config: %s must be positive", f.name))
		}
	}
	for _, f := range []struct {
		name  string
		value time.Duration
	}{
		{"SEARCH_CACHE_TTL", c.SearchCacheTTL},
		{"REQUEST_WINDOW", c.Window},
		{"ACTIVE_REQUEST_WINDOW", c.ActiveWindow},
	} {
		if f.value <= 0 {
			errs = append(errs, fmt.Errorf("config: %s must be positive", f.name))
		}
	}
	if c.SearchDefaultPage > c.SearchMaxPageSize {
		errs = append(errs, errors.New("config: SEARCH_DEFAULT_PAGE_SIZE must not exceed SEARCH_MAX_PAGE_SIZE"))
	}
	return errors.Join(errs...)
}

func (c *Config) IsProduction() bool {
	return strings.EqualFold(c.Env, EnvProduction)
}

// Cooldown is the donation cooldown as a duration.
func (c *Config) Cooldown() time.Duration {
	return time.Duration(c.CooldownDays) * 24 * time.Hour
}

// KafkaBrokerList splits the comma-separated broker list, dropping blanks and
// duplicates.
func (c *Config) KafkaBrokerList() []string {
	if c == nil || c.KafkaBrokers == "" {
		return nil
	}
	return platformstrings.DedupeAndTrim(strings.Split(c.KafkaBrokers, ","))
}
