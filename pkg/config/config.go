package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

const (
	// EnvPrefix namespaces every environment variable consumed by the service.
	EnvPrefix = "OTESTA"

	AppEnvDev  = "dev"
	AppEnvProd = "prod"

	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

type Config struct {
	App          AppConfig
	DB           DBConfig
	Redis        RedisConfig
	JWT          JWTConfig
	Password     PasswordConfig
	Chat         ChatConfig
	Seed         SeedConfig
	FeatureFlags FeatureFlagsConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.DB.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"OTESTA_APP_ENV" default:"dev"`
	Port         string `envconfig:"OTESTA_APP_PORT" default:"8080"`
	LogLevel     string `envconfig:"OTESTA_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"OTESTA_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type DBConfig struct {
	Driver string `envconfig:"OTESTA_DB_DRIVER" default:"sqlite"`
	DSN    string `envconfig:"OTESTA_DB_DSN" default:"otesta.db"`

	MaxOpenConns    int           `envconfig:"OTESTA_DB_MAX_OPEN_CONNS" default:"10"`
	MaxIdleConns    int           `envconfig:"OTESTA_DB_MAX_IDLE_CONNS" default:"5"`
	ConnMaxLifetime time.Duration `envconfig:"OTESTA_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"OTESTA_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

func (d DBConfig) validate() error {
	switch d.Driver {
	case DriverSQLite, DriverPostgres:
	default:
		return fmt.Errorf("unsupported db driver %q", d.Driver)
	}
	if d.DSN == "" {
		return fmt.Errorf("database DSN is required")
	}
	return nil
}

// RedisConfig is optional: when URL and Address are both empty the service
// runs with the in-process notifier only.
type RedisConfig struct {
	URL          string        `envconfig:"OTESTA_REDIS_URL"`
	Address      string        `envconfig:"OTESTA_REDIS_ADDR"`
	Password     string        `envconfig:"OTESTA_REDIS_PASSWORD"`
	DB           int           `envconfig:"OTESTA_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"OTESTA_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"OTESTA_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"OTESTA_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"OTESTA_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"OTESTA_REDIS_WRITE_TIMEOUT" default:"5s"`
}

// Enabled reports whether a redis endpoint was configured.
func (r RedisConfig) Enabled() bool {
	return r.URL != "" || r.Address != ""
}

type JWTConfig struct {
	Secret            string `envconfig:"OTESTA_JWT_SECRET" default:"dev-only-secret"`
	Issuer            string `envconfig:"OTESTA_JWT_ISSUER" default:"otesta"`
	ExpirationMinutes int    `envconfig:"OTESTA_JWT_EXPIRATION_MINUTES" default:"720"`
}

// AccessTokenTTL returns the configured access token lifetime.
func (j JWTConfig) AccessTokenTTL() time.Duration {
	if j.ExpirationMinutes <= 0 {
		return 0
	}
	return time.Duration(j.ExpirationMinutes) * time.Minute
}

type PasswordConfig struct {
	ArgonMemoryKB    int `envconfig:"OTESTA_ARGON_MEMORY_KB" default:"65536"`
	ArgonTime        int `envconfig:"OTESTA_ARGON_TIME" default:"3"`
	ArgonParallelism int `envconfig:"OTESTA_ARGON_PARALLELISM" default:"2"`
	ArgonSaltLen     int `envconfig:"OTESTA_ARGON_SALT_LEN" default:"16"`
	ArgonKeyLen      int `envconfig:"OTESTA_ARGON_KEY_LEN" default:"32"`
}

// ChatConfig carries the simulated transport delays. The defaults mirror the
// storefront widget timings.
type ChatConfig struct {
	MaxMessageLength int           `envconfig:"OTESTA_CHAT_MAX_MESSAGE_LENGTH" default:"500"`
	AutoReplyDelay   time.Duration `envconfig:"OTESTA_CHAT_AUTO_REPLY_DELAY" default:"800ms"`
	ThreadReplyDelay time.Duration `envconfig:"OTESTA_CHAT_THREAD_REPLY_DELAY" default:"500ms"`
}

// SeedConfig holds the demo accounts created at startup.
type SeedConfig struct {
	AdminEmail    string `envconfig:"OTESTA_SEED_ADMIN_EMAIL" default:"admin@otesta.it"`
	AdminName     string `envconfig:"OTESTA_SEED_ADMIN_NAME" default:"Otesta Admin"`
	AdminPassword string `envconfig:"OTESTA_SEED_ADMIN_PASSWORD" default:"admin123"`
	DemoEmail     string `envconfig:"OTESTA_SEED_DEMO_EMAIL" default:"demo@otesta.it"`
	DemoName      string `envconfig:"OTESTA_SEED_DEMO_NAME" default:"Demo Shopper"`
	DemoPassword  string `envconfig:"OTESTA_SEED_DEMO_PASSWORD" default:"demo123"`
}

type FeatureFlagsConfig struct {
	AutoMigrate bool `envconfig:"OTESTA_AUTO_MIGRATE" default:"true"`
}
