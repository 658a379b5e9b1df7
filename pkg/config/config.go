package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

const (
	EnvPrefix = ""

	AppEnvDev  = "dev"
	AppEnvProd = "prod"
)

type Config struct {
	App          AppConfig
	DB           DBConfig
	Redis        RedisConfig
	Identity     IdentityConfig
	Razorpay     RazorpayConfig
	Checkout     CheckoutConfig
	Sweep        SweepConfig
	Eventing     EventingConfig
	FeatureFlags FeatureFlagsConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.DB.ensureDSN(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"PERENNIS_APP_ENV" required:"true"`
	Port         string `envconfig:"PERENNIS_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"PERENNIS_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"PERENNIS_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type DBConfig struct {
	DSN    string `envconfig:"PERENNIS_DB_DSN"`
	Driver string `envconfig:"PERENNIS_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"PERENNIS_DB_HOST"`
	LegacyPort     int    `envconfig:"PERENNIS_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"PERENNIS_DB_USER"`
	LegacyPassword string `envconfig:"PERENNIS_DB_PASSWORD"`
	LegacyName     string `envconfig:"PERENNIS_DB_NAME"`
	LegacySSLMode  string `envconfig:"PERENNIS_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"PERENNIS_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"PERENNIS_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"PERENNIS_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"PERENNIS_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"PERENNIS_REDIS_URL" required:"true"`
	Address      string        `envconfig:"PERENNIS_REDIS_ADDR"`
	Password     string        `envconfig:"PERENNIS_REDIS_PASSWORD"`
	DB           int           `envconfig:"PERENNIS_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"PERENNIS_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"PERENNIS_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"PERENNIS_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"PERENNIS_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"PERENNIS_REDIS_WRITE_TIMEOUT" default:"5s"`
}

// IdentityConfig points at the external identity service that owns users,
// sessions and the admin role.
type IdentityConfig struct {
	BaseURL string        `envconfig:"PERENNIS_IDENTITY_BASE_URL" required:"true"`
	Timeout time.Duration `envconfig:"PERENNIS_IDENTITY_TIMEOUT" default:"5s"`
}

type RazorpayConfig struct {
	KeyID         string `envconfig:"PERENNIS_RAZORPAY_KEY_ID"`
	KeySecret     string `envconfig:"PERENNIS_RAZORPAY_KEY_SECRET"`
	WebhookSecret string `envconfig:"PERENNIS_RAZORPAY_WEBHOOK_SECRET"`
	Enabled       bool   `envconfig:"PERENNIS_RAZORPAY_ENABLED" default:"false"`
}

type CheckoutConfig struct {
	Currency   string        `envconfig:"PERENNIS_CHECKOUT_CURRENCY" default:"INR"`
	PendingTTL time.Duration `envconfig:"PERENNIS_CHECKOUT_PENDING_TTL" default:"30m"`
}

type SweepConfig struct {
	Interval time.Duration `envconfig:"PERENNIS_SWEEP_INTERVAL" default:"5m"`
	LockTTL  time.Duration `envconfig:"PERENNIS_SWEEP_LOCK_TTL" default:"10m"`
}

type EventingConfig struct {
	RequestIdempotencyTTL time.Duration `envconfig:"PERENNIS_REQUEST_IDEMPOTENCY_TTL" default:"168h"`
}

type FeatureFlagsConfig struct {
	AutoMigrate bool `envconfig:"PERENNIS_AUTO_MIGRATE" default:"false"`
}

func (db *DBConfig) ensureDSN() error {
	if db.DSN != "" {
		return nil
	}

	missing := []string{}
	legacyValues := map[string]string{
		"PERENNIS_DB_HOST": db.LegacyHost,
		"PERENNIS_DB_USER": db.LegacyUser,
		"PERENNIS_DB_NAME": db.LegacyName,
	}
	for _, env := range []string{"PERENNIS_DB_HOST", "PERENNIS_DB_USER", "PERENNIS_DB_NAME"} {
		if legacyValues[env] == "" {
			missing = append(missing, env)
		}
	}

	if len(missing) > 0 {
		return fmt.Errorf("either PERENNIS_DB_DSN or %s are required", strings.Join(missing, ", "))
	}

	userInfo := url.User(db.LegacyUser)
	if db.LegacyPassword != "" {
		userInfo = url.UserPassword(db.LegacyUser, db.LegacyPassword)
	}

	u := &url.URL{
		Scheme: "postgres",
		User:   userInfo,
		Host:   fmt.Sprintf("%s:%d", db.LegacyHost, db.LegacyPort),
		Path:   db.LegacyName,
	}

	if db.LegacySSLMode != "" {
		q := u.Query()
		q.Set("sslmode", db.LegacySSLMode)
		u.RawQuery = q.Encode()
	}

	db.DSN = u.String()
	return nil
}
