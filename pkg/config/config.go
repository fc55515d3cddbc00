package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
	"go.uber.org/multierr"
)

const (
	EnvPrefix = "STOREFRONT"

	AppEnvDev  = "dev"
	AppEnvProd = "prod"

	SessionDriverSQLite = "sqlite"
	SessionDriverRedis  = "redis"
	SessionDriverMemory = "memory"
)

type Config struct {
	App       AppConfig
	API       APIConfig
	Session   SessionConfig
	Redis     RedisConfig
	Metrics   MetricsConfig
	DevServer DevServerConfig
	Password  PasswordConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	var errs error
	if _, err := url.Parse(c.API.BaseURL); err != nil {
		errs = multierr.Append(errs, fmt.Errorf("invalid api base url: %w", err))
	}
	switch c.Session.Driver {
	case SessionDriverSQLite, SessionDriverMemory:
	case SessionDriverRedis:
		if c.Redis.URL == "" && c.Redis.Address == "" {
			errs = multierr.Append(errs, fmt.Errorf("redis session driver requires %s_REDIS_URL or %s_REDIS_ADDR", EnvPrefix, EnvPrefix))
		}
	default:
		errs = multierr.Append(errs, fmt.Errorf("unknown session driver %q", c.Session.Driver))
	}
	if c.Session.LogoutGrace < 0 {
		errs = multierr.Append(errs, fmt.Errorf("logout grace window must not be negative"))
	}
	return errs
}

type AppConfig struct {
	Env          string `envconfig:"STOREFRONT_APP_ENV" default:"dev"`
	LogLevel     string `envconfig:"STOREFRONT_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"STOREFRONT_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type APIConfig struct {
	BaseURL   string        `envconfig:"STOREFRONT_API_BASE_URL" required:"true"`
	Timeout   time.Duration `envconfig:"STOREFRONT_API_TIMEOUT" default:"10s"`
	UserAgent string        `envconfig:"STOREFRONT_API_USER_AGENT" default:"packfinderz-storefront"`
}

type SessionConfig struct {
	Driver      string        `envconfig:"STOREFRONT_SESSION_DRIVER" default:"sqlite"`
	SQLitePath  string        `envconfig:"STOREFRONT_SESSION_SQLITE_PATH" default:"storefront.db"`
	RecordKey   string        `envconfig:"STOREFRONT_SESSION_RECORD_KEY" default:"current"`
	LogoutGrace time.Duration `envconfig:"STOREFRONT_SESSION_LOGOUT_GRACE" default:"3s"`
}

type RedisConfig struct {
	URL          string        `envconfig:"STOREFRONT_REDIS_URL"`
	Address      string        `envconfig:"STOREFRONT_REDIS_ADDR"`
	Password     string        `envconfig:"STOREFRONT_REDIS_PASSWORD"`
	DB           int           `envconfig:"STOREFRONT_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"STOREFRONT_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"STOREFRONT_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"STOREFRONT_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"STOREFRONT_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"STOREFRONT_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type MetricsConfig struct {
	Enabled bool   `envconfig:"STOREFRONT_METRICS_ENABLED" default:"false"`
	Addr    string `envconfig:"STOREFRONT_METRICS_ADDR" default:":9190"`
}

// DevServerConfig drives the local API stub used for development and tests.
type DevServerConfig struct {
	Addr              string `envconfig:"STOREFRONT_DEVSERVER_ADDR" default:":8480"`
	JWTSecret         string `envconfig:"STOREFRONT_DEVSERVER_JWT_SECRET" default:"dev-only-secret"`
	JWTIssuer         string `envconfig:"STOREFRONT_DEVSERVER_JWT_ISSUER" default:"packfinderz-devserver"`
	ExpirationMinutes int    `envconfig:"STOREFRONT_DEVSERVER_JWT_EXPIRATION_MINUTES" default:"15"`
	SeedEmail         string `envconfig:"STOREFRONT_DEVSERVER_SEED_EMAIL" default:"demo@packfinderz.dev"`
	SeedPassword      string `envconfig:"STOREFRONT_DEVSERVER_SEED_PASSWORD" default:"demo-password"`
}

// AccessTokenTTL returns the configured access token lifetime.
func (d DevServerConfig) AccessTokenTTL() time.Duration {
	if d.ExpirationMinutes <= 0 {
		return 0
	}
	return time.Duration(d.ExpirationMinutes) * time.Minute
}

type PasswordConfig struct {
	ArgonMemoryKB    int `envconfig:"STOREFRONT_ARGON_MEMORY_KB" default:"65536"`
	ArgonTime        int `envconfig:"STOREFRONT_ARGON_TIME" default:"3"`
	ArgonParallelism int `envconfig:"STOREFRONT_ARGON_PARALLELISM" default:"2"`
	ArgonSaltLen     int `envconfig:"STOREFRONT_ARGON_SALT_LEN" default:"16"`
	ArgonKeyLen      int `envconfig:"STOREFRONT_ARGON_KEY_LEN" default:"32"`
}
