package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	App          AppConfig
	DB           DBConfig
	Redis        RedisConfig
	Basket       BasketConfig
	Checkout     CheckoutConfig
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
	Env          string `envconfig:"SHOPMALL_APP_ENV" required:"true"`
	Port         string `envconfig:"SHOPMALL_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"SHOPMALL_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"SHOPMALL_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type DBConfig struct {
	DSN    string `envconfig:"SHOPMALL_DB_DSN"`
	Driver string `envconfig:"SHOPMALL_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"SHOPMALL_DB_HOST"`
	LegacyPort     int    `envconfig:"SHOPMALL_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"SHOPMALL_DB_USER"`
	LegacyPassword string `envconfig:"SHOPMALL_DB_PASSWORD"`
	LegacyName     string `envconfig:"SHOPMALL_DB_NAME"`
	LegacySSLMode  string `envconfig:"SHOPMALL_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"SHOPMALL_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"SHOPMALL_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"SHOPMALL_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"SHOPMALL_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"SHOPMALL_REDIS_URL" required:"true"`
	Address      string        `envconfig:"SHOPMALL_REDIS_ADDR"`
	Password     string        `envconfig:"SHOPMALL_REDIS_PASSWORD"`
	DB           int           `envconfig:"SHOPMALL_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"SHOPMALL_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"SHOPMALL_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"SHOPMALL_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"SHOPMALL_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"SHOPMALL_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type BasketConfig struct {
	AnonymousCartTTL time.Duration `envconfig:"SHOPMALL_BASKET_ANON_CART_TTL" default:"72h"`
	MaxLineQuantity  int           `envconfig:"SHOPMALL_BASKET_MAX_LINE_QTY" default:"999"`
}

type CheckoutConfig struct {
	DefaultDeliveryPeriodDays int           `envconfig:"SHOPMALL_CHECKOUT_DELIVERY_PERIOD_DAYS" default:"3"`
	DeliveryFee               int64         `envconfig:"SHOPMALL_CHECKOUT_DELIVERY_FEE" default:"3000"`
	FreeDeliveryThreshold     int64         `envconfig:"SHOPMALL_CHECKOUT_FREE_DELIVERY_THRESHOLD" default:"50000"`
	RateLimitWindow           time.Duration `envconfig:"SHOPMALL_CHECKOUT_RATE_LIMIT_WINDOW" default:"1m"`
	RateLimitPerUser          int64         `envconfig:"SHOPMALL_CHECKOUT_RATE_LIMIT_PER_USER" default:"10"`
}

type FeatureFlagsConfig struct {
	AutoMigrate bool `envconfig:"SHOPMALL_AUTO_MIGRATE" default:"false"`
}

func (db *DBConfig) ensureDSN() error {
	if db.DSN != "" {
		return nil
	}

	missing := []string{}
	legacyValues := map[string]string{
		EnvDBHost: db.LegacyHost,
		EnvDBUser: db.LegacyUser,
		EnvDBName: db.LegacyName,
	}
	for _, env := range legacyDBEnvVars {
		if legacyValues[env] == "" {
			missing = append(missing, env)
		}
	}

	if len(missing) > 0 {
		return fmt.Errorf("either %s or %s are required", EnvDBDSN, strings.Join(missing, ", "))
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
