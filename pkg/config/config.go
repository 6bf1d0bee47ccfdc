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
	Service      ServiceConfig
	DB           DBConfig
	Redis        RedisConfig
	JWT          JWTConfig
	PayHere      PayHereConfig
	Billing      BillingConfig
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
	Env          string `envconfig:"RENTPAY_APP_ENV" required:"true"`
	Port         string `envconfig:"RENTPAY_APP_PORT" default:"8080"`
	LogLevel     string `envconfig:"RENTPAY_LOG_LEVEL" default:"info"`
	LogFormat    string `envconfig:"RENTPAY_LOG_FORMAT" default:"json"`
	LogWarnStack bool   `envconfig:"RENTPAY_LOG_WARN_STACK" default:"false"`

	CORSAllowedOrigins []string `envconfig:"RENTPAY_CORS_ALLOWED_ORIGINS" default:"http://localhost:3000"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type ServiceConfig struct {
	Kind        string `envconfig:"RENTPAY_SERVICE_KIND" default:"api"`
	MetricsAddr string `envconfig:"RENTPAY_METRICS_ADDR"`
}

type DBConfig struct {
	DSN    string `envconfig:"RENTPAY_DB_DSN"`
	Driver string `envconfig:"RENTPAY_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"RENTPAY_DB_HOST"`
	LegacyPort     int    `envconfig:"RENTPAY_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"RENTPAY_DB_USER"`
	LegacyPassword string `envconfig:"RENTPAY_DB_PASSWORD"`
	LegacyName     string `envconfig:"RENTPAY_DB_NAME"`
	LegacySSLMode  string `envconfig:"RENTPAY_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"RENTPAY_DB_MAX_OPEN_CONNS" default:"10"`
	MaxIdleConns    int           `envconfig:"RENTPAY_DB_MAX_IDLE_CONNS" default:"5"`
	ConnMaxLifetime time.Duration `envconfig:"RENTPAY_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"RENTPAY_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"RENTPAY_REDIS_URL"`
	Address      string        `envconfig:"RENTPAY_REDIS_ADDR"`
	Password     string        `envconfig:"RENTPAY_REDIS_PASSWORD"`
	DB           int           `envconfig:"RENTPAY_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"RENTPAY_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"RENTPAY_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"RENTPAY_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"RENTPAY_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"RENTPAY_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type JWTConfig struct {
	Secret            string `envconfig:"RENTPAY_JWT_SECRET" required:"true"`
	Issuer            string `envconfig:"RENTPAY_JWT_ISSUER" required:"true"`
	ExpirationMinutes int    `envconfig:"RENTPAY_JWT_EXPIRATION_MINUTES" default:"60"`
}

// PayHereConfig holds the gateway defaults. When settings are read from the
// database these values are only the fallback for keys the table lacks.
type PayHereConfig struct {
	MerchantID     string        `envconfig:"RENTPAY_PAYHERE_MERCHANT_ID"`
	MerchantSecret string        `envconfig:"RENTPAY_PAYHERE_MERCHANT_SECRET"`
	Mode           string        `envconfig:"RENTPAY_PAYHERE_MODE" default:"sandbox"`
	AppID          string        `envconfig:"RENTPAY_PAYHERE_APP_ID"`
	AppSecret      string        `envconfig:"RENTPAY_PAYHERE_APP_SECRET"`
	Currency       string        `envconfig:"RENTPAY_PAYHERE_CURRENCY" default:"LKR"`
	BaseURL        string        `envconfig:"RENTPAY_PAYHERE_BASE_URL"`
	HTTPTimeout    time.Duration `envconfig:"RENTPAY_PAYHERE_HTTP_TIMEOUT" default:"20s"`
	DefaultAddress string        `envconfig:"RENTPAY_PAYHERE_DEFAULT_ADDRESS" default:"N/A"`
	DefaultCity    string        `envconfig:"RENTPAY_PAYHERE_DEFAULT_CITY" default:"Colombo"`
	DefaultCountry string        `envconfig:"RENTPAY_PAYHERE_DEFAULT_COUNTRY" default:"Sri Lanka"`
}

// NormalizedMode returns the lowercased gateway mode (sandbox/live).
func (p PayHereConfig) NormalizedMode() string {
	mode := strings.TrimSpace(strings.ToLower(p.Mode))
	if mode == "" {
		return "sandbox"
	}
	return mode
}

type BillingConfig struct {
	CommissionPercentage string        `envconfig:"RENTPAY_COMMISSION_PERCENTAGE" default:"10"`
	SweepInterval        time.Duration `envconfig:"RENTPAY_BILLING_SWEEP_INTERVAL" default:"24h"`
	ChargeTimeout        time.Duration `envconfig:"RENTPAY_BILLING_CHARGE_TIMEOUT" default:"30s"`
	PeriodLockTTL        time.Duration `envconfig:"RENTPAY_BILLING_PERIOD_LOCK_TTL" default:"10m"`
	WebhookIdempotency   time.Duration `envconfig:"RENTPAY_WEBHOOK_IDEMPOTENCY_TTL" default:"72h"`
}

type FeatureFlagsConfig struct {
	AutoMigrate      bool `envconfig:"RENTPAY_AUTO_MIGRATE" default:"false"`
	SettingsFromDB   bool `envconfig:"RENTPAY_SETTINGS_FROM_DB" default:"true"`
	BillingPeriodLck bool `envconfig:"RENTPAY_BILLING_PERIOD_LOCK" default:"true"`
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
