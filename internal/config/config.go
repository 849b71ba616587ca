package config

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/sethvargo/go-envconfig"

	"github.com/tadeportfolio/portfolio/pkg"
)

const (
	SessionBackendRedis  = "redis"
	SessionBackendMemory = "memory"

	defaultTokenTTLSeconds           = 60
	defaultSessionMaxAgeSeconds      = 60 * 60
	defaultLoginRateLimitAllowedPerM = 15
)

type Config struct {
	Environment string `toml:"environment"`
	Host        string `toml:"host"`
	Port        int    `toml:"port" env:"PORTFOLIO_PORT, overwrite"`

	// logging
	LogLevel      string `toml:"log_level"`
	LogsPath      string `toml:"logs_path"`
	LogToStdout   bool   `toml:"log_to_stdout"`
	LogFormatJSON bool   `toml:"log_format_json"`
	SentryEnabled bool   `toml:"sentry_enabled"`

	// postgres
	PostgresHost   string `toml:"postgres_host"`
	PostgresPort   string `toml:"postgres_port"`
	PostgresDBName string `toml:"postgres_db_name"`
	PostgresUser   string `toml:"postgres_user"`

	// redis
	RedisHost string `toml:"redis_host"`
	RedisPort string `toml:"redis_port"`

	// metrics
	PrometheusMetricsHost string `toml:"prometheus_metrics_host"`
	PrometheusMetricsPort string `toml:"prometheus_metrics_port"`

	// auth & session
	TokenTTLSeconds             int    `toml:"token_ttl_seconds"`
	SessionMaxAgeSeconds        int    `toml:"session_max_age_seconds"`
	SessionBackend              string `toml:"session_backend"`
	SecureCookies               bool   `toml:"secure_cookies"`
	LoginRateLimitAllowedPerMin int    `toml:"login_rate_limit_per_min"`

	// reverse proxies (IPs or CIDRs) allowed to set X-Real-Ip / X-Forwarded-For
	TrustedProxies []string `toml:"trusted_proxies"`
}

// Secrets are never kept in the TOML file, only read from the environment
type Secrets struct {
	PostgresPassword string `env:"PORTFOLIO_DB_PASSWORD"`
	RedisPassword    string `env:"PORTFOLIO_REDIS_PASS"`
	SessionSecret    string `env:"PORTFOLIO_SESSION_SECRET"`
	TokenSecret      string `env:"PORTFOLIO_TOKEN_SECRET"`
	SentryDSN        string `env:"SENTRY_DSN"`
	HoneycombEnabled bool   `env:"HONEYCOMB_ENABLED"`
}

func (c *Config) TokenTTL() time.Duration {
	return time.Duration(c.TokenTTLSeconds) * time.Second
}

func (c *Config) SessionMaxAge() time.Duration {
	return time.Duration(c.SessionMaxAgeSeconds) * time.Second
}

func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

func (c *Config) setDefaults() {
	if c.TokenTTLSeconds <= 0 {
		c.TokenTTLSeconds = defaultTokenTTLSeconds
	}
	if c.SessionMaxAgeSeconds <= 0 {
		c.SessionMaxAgeSeconds = defaultSessionMaxAgeSeconds
	}
	if c.SessionBackend == "" {
		c.SessionBackend = SessionBackendRedis
	}
	if c.LoginRateLimitAllowedPerMin <= 0 {
		c.LoginRateLimitAllowedPerMin = defaultLoginRateLimitAllowedPerM
	}
	if c.PostgresUser == "" {
		c.PostgresUser = "postgres"
	}
}

func (c *Config) validate() error {
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("invalid port: %d", c.Port)
	}
	switch c.SessionBackend {
	case SessionBackendRedis, SessionBackendMemory:
	default:
		return fmt.Errorf("unknown session backend: %s", c.SessionBackend)
	}
	if _, err := pkg.ParseTrustedProxies(c.TrustedProxies); err != nil {
		return err
	}
	if c.PostgresHost == "" || c.PostgresDBName == "" {
		return errors.New("postgres host and db name must be set")
	}
	return nil
}

type Toml struct {
	Development *Config
	DockerDev   *Config `toml:"dockerdev"`
	Production  *Config
}

func (t *Toml) Get(env string) (*Config, error) {
	var cfg *Config
	switch strings.ToLower(env) {
	case "dev", "development":
		cfg = t.Development
		if cfg != nil {
			cfg.Environment = "development"
		}
	case "ddev", "dockerdev":
		cfg = t.DockerDev
		if cfg != nil {
			cfg.Environment = "dockerdev"
		}
	case "prod", "production":
		cfg = t.Production
		if cfg != nil {
			cfg.Environment = "production"
		}
	default:
		return nil, fmt.Errorf("unknown env: %s", env)
	}

	if cfg == nil {
		return nil, fmt.Errorf("config for env [%s] not found", env)
	}
	return cfg, nil
}

// Load reads the TOML config for the given env, and then applies env var overrides
func Load(ctx context.Context, env, path string) (*Config, error) {
	var t Toml
	if _, err := toml.DecodeFile(path, &t); err != nil {
		return nil, fmt.Errorf("decode toml config: %w", err)
	}

	cfg, err := t.Get(env)
	if err != nil {
		return nil, err
	}

	if err := envconfig.Process(ctx, cfg); err != nil {
		return nil, fmt.Errorf("process env overrides: %w", err)
	}

	cfg.setDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func LoadSecrets(ctx context.Context) (*Secrets, error) {
	var s Secrets
	if err := envconfig.Process(ctx, &s); err != nil {
		return nil, fmt.Errorf("process secrets: %w", err)
	}
	return &s, nil
}
