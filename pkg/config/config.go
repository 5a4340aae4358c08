package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

const EnvPrefix = ""

const (
	AppEnvDev  = "dev"
	AppEnvProd = "prod"
)

type Config struct {
	App          AppConfig
	DB           DBConfig
	Redis        RedisConfig
	JWT          JWTConfig
	Stripe       StripeConfig
	Circle       CircleConfig
	Payouts      PayoutsConfig
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
	Env          string `envconfig:"LUMAPAY_APP_ENV" required:"true"`
	Port         string `envconfig:"LUMAPAY_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"LUMAPAY_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"LUMAPAY_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type DBConfig struct {
	DSN    string `envconfig:"LUMAPAY_DB_DSN"`
	Driver string `envconfig:"LUMAPAY_DB_DRIVER" default:"postgres"`

	Host     string `envconfig:"LUMAPAY_DB_HOST"`
	Port     int    `envconfig:"LUMAPAY_DB_PORT" default:"5432"`
	User     string `envconfig:"LUMAPAY_DB_USER"`
	Password string `envconfig:"LUMAPAY_DB_PASSWORD"`
	Name     string `envconfig:"LUMAPAY_DB_NAME"`
	SSLMode  string `envconfig:"LUMAPAY_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"LUMAPAY_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"LUMAPAY_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"LUMAPAY_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"LUMAPAY_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"LUMAPAY_REDIS_URL" required:"true"`
	Address      string        `envconfig:"LUMAPAY_REDIS_ADDR"`
	Password     string        `envconfig:"LUMAPAY_REDIS_PASSWORD"`
	DB           int           `envconfig:"LUMAPAY_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"LUMAPAY_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"LUMAPAY_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"LUMAPAY_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"LUMAPAY_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"LUMAPAY_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type JWTConfig struct {
	Secret string `envconfig:"LUMAPAY_JWT_SECRET" required:"true"`
	Issuer string `envconfig:"LUMAPAY_JWT_ISSUER" required:"true"`
}

type StripeConfig struct {
	APIKey string `envconfig:"LUMAPAY_STRIPE_API_KEY"`
	Secret string `envconfig:"LUMAPAY_STRIPE_WEBHOOK_SECRET"`
	Env    string `envconfig:"LUMAPAY_STRIPE_ENV" default:"test"`
}

// Environment returns the normalized Stripe environment (test/live).
func (s StripeConfig) Environment() string {
	env := strings.TrimSpace(strings.ToLower(s.Env))
	if env == "" {
		return "test"
	}
	return env
}

type CircleConfig struct {
	BaseURL        string        `envconfig:"LUMAPAY_CIRCLE_BASE_URL" default:"https://api.circle.com"`
	APIKey         string        `envconfig:"LUMAPAY_CIRCLE_API_KEY"`
	WebhookSecret  string        `envconfig:"LUMAPAY_CIRCLE_WEBHOOK_SECRET"`
	RequestTimeout time.Duration `envconfig:"LUMAPAY_CIRCLE_REQUEST_TIMEOUT" default:"30s"`
	MasterWalletID string        `envconfig:"LUMAPAY_CIRCLE_MASTER_WALLET_ID"`
}

type PayoutsConfig struct {
	Currency string `envconfig:"LUMAPAY_PAYOUT_CURRENCY" default:"USD"`
	Chain    string `envconfig:"LUMAPAY_PAYOUT_CHAIN" default:"ETH"`
}

type FeatureFlagsConfig struct {
	UseSQLite   bool   `envconfig:"LUMAPAY_USE_SQLITE" default:"false"`
	SQLitePath  string `envconfig:"LUMAPAY_SQLITE_PATH" default:"lumapay.db"`
	AutoMigrate bool   `envconfig:"LUMAPAY_AUTO_MIGRATE" default:"false"`
}

func (db *DBConfig) ensureDSN() error {
	if db.DSN != "" {
		return nil
	}

	missing := []string{}
	values := map[string]string{
		"LUMAPAY_DB_HOST": db.Host,
		"LUMAPAY_DB_USER": db.User,
		"LUMAPAY_DB_NAME": db.Name,
	}
	for _, key := range []string{"LUMAPAY_DB_HOST", "LUMAPAY_DB_USER", "LUMAPAY_DB_NAME"} {
		if values[key] == "" {
			missing = append(missing, key)
		}
	}

	if len(missing) > 0 {
		return fmt.Errorf("either LUMAPAY_DB_DSN or %s are required", strings.Join(missing, ", "))
	}

	userInfo := url.User(db.User)
	if db.Password != "" {
		userInfo = url.UserPassword(db.User, db.Password)
	}

	u := &url.URL{
		Scheme: "postgres",
		User:   userInfo,
		Host:   fmt.Sprintf("%s:%d", db.Host, db.Port),
		Path:   db.Name,
	}

	if db.SSLMode != "" {
		q := u.Query()
		q.Set("sslmode", db.SSLMode)
		u.RawQuery = q.Encode()
	}

	db.DSN = u.String()
	return nil
}
