package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// EnvPrefix namespaces every environment variable the service reads.
const EnvPrefix = "JODISE"

const (
	AppEnvDev  = "dev"
	AppEnvProd = "prod"
)

// Environment variable names shared with tests and deploy tooling.
const (
	EnvAppEnv    = "JODISE_APP_ENV"
	EnvPort      = "JODISE_APP_PORT"
	EnvDBDSN     = "JODISE_DB_DSN"
	EnvDBHost    = "JODISE_DB_HOST"
	EnvDBUser    = "JODISE_DB_USER"
	EnvDBName    = "JODISE_DB_NAME"
	EnvRedisURL  = "JODISE_REDIS_URL"
	EnvJWTSecret = "JODISE_JWT_SECRET"
	EnvJWTIssuer = "JODISE_JWT_ISSUER"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}

type Config struct {
	App         AppConfig
	Service     ServiceConfig
	DB          DBConfig
	Redis       RedisConfig
	JWT         JWTConfig
	Marketplace MarketplaceConfig
	Paystack    PaystackConfig
	Stripe      StripeConfig
	GCP         GCPConfig
	PubSub      PubSubConfig
	Outbox      OutboxConfig
	Eventing    EventingConfig
	Flags       FeatureFlagsConfig
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
	Env          string `envconfig:"JODISE_APP_ENV" required:"true"`
	Port         string `envconfig:"JODISE_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"JODISE_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"JODISE_LOG_WARN_STACK" default:"false"`
}

type ServiceConfig struct {
	Kind string `envconfig:"JODISE_SERVICE_KIND" default:"api"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type DBConfig struct {
	DSN    string `envconfig:"JODISE_DB_DSN"`
	Driver string `envconfig:"JODISE_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"JODISE_DB_HOST"`
	LegacyPort     int    `envconfig:"JODISE_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"JODISE_DB_USER"`
	LegacyPassword string `envconfig:"JODISE_DB_PASSWORD"`
	LegacyName     string `envconfig:"JODISE_DB_NAME"`
	LegacySSLMode  string `envconfig:"JODISE_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"JODISE_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"JODISE_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"JODISE_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"JODISE_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"JODISE_REDIS_URL" required:"true"`
	Address      string        `envconfig:"JODISE_REDIS_ADDR"`
	Password     string        `envconfig:"JODISE_REDIS_PASSWORD"`
	DB           int           `envconfig:"JODISE_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"JODISE_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"JODISE_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"JODISE_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"JODISE_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"JODISE_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type JWTConfig struct {
	Secret            string `envconfig:"JODISE_JWT_SECRET" required:"true"`
	Issuer            string `envconfig:"JODISE_JWT_ISSUER" required:"true"`
	ExpirationMinutes int    `envconfig:"JODISE_JWT_EXPIRATION_MINUTES" default:"60"`
}

// MarketplaceConfig carries the platform rates applied to every order.
// Fulfillment resolves these once per call and passes them down as a value
// object so a mid-flight config change can never split an order's math.
type MarketplaceConfig struct {
	VATPercent        string `envconfig:"JODISE_VAT_PERCENT" default:"7.5"`
	CommissionPercent string `envconfig:"JODISE_COMMISSION_PERCENT" default:"10"`
	DeliveryFee       string `envconfig:"JODISE_DELIVERY_FEE" default:"0"`
	Currency          string `envconfig:"JODISE_CURRENCY" default:"NGN"`
	ActiveGateway     string `envconfig:"JODISE_ACTIVE_GATEWAY" default:"paystack"`
}

type PaystackConfig struct {
	SecretKey string        `envconfig:"JODISE_PAYSTACK_SECRET_KEY"`
	BaseURL   string        `envconfig:"JODISE_PAYSTACK_BASE_URL" default:"https://api.paystack.co"`
	Timeout   time.Duration `envconfig:"JODISE_PAYSTACK_TIMEOUT" default:"25s"`
}

type StripeConfig struct {
	SecretKey     string        `envconfig:"JODISE_STRIPE_SECRET_KEY"`
	WebhookSecret string        `envconfig:"JODISE_STRIPE_WEBHOOK_SECRET"`
	BaseURL       string        `envconfig:"JODISE_STRIPE_BASE_URL" default:"https://api.stripe.com"`
	SuccessURL    string        `envconfig:"JODISE_STRIPE_SUCCESS_URL" default:"https://jodise.com/checkout/success"`
	CancelURL     string        `envconfig:"JODISE_STRIPE_CANCEL_URL" default:"https://jodise.com/checkout/cancel"`
	Timeout       time.Duration `envconfig:"JODISE_STRIPE_TIMEOUT" default:"25s"`
}

type GCPConfig struct {
	ProjectID              string `envconfig:"JODISE_GCP_PROJECT_ID"`
	CredentialsJSON        string `envconfig:"JODISE_GCP_CREDENTIALS_JSON"`
	ApplicationCredentials string `envconfig:"JODISE_GOOGLE_APPLICATION_CREDENTIALS"`
}

type PubSubConfig struct {
	OrdersTopic        string `envconfig:"JODISE_PUBSUB_ORDERS_TOPIC" default:"jod-order-events"`
	OrdersSubscription string `envconfig:"JODISE_PUBSUB_ORDERS_SUBSCRIPTION" default:"jod-order-events-worker"`
}

type OutboxConfig struct {
	BatchSize      int `envconfig:"JODISE_OUTBOX_PUBLISH_BATCH_SIZE" default:"50"`
	PollIntervalMS int `envconfig:"JODISE_OUTBOX_PUBLISH_POLL_MS" default:"500"`
	MaxAttempts    int `envconfig:"JODISE_OUTBOX_MAX_ATTEMPTS" default:"10"`
}

type EventingConfig struct {
	OutboxIdempotencyTTL time.Duration `envconfig:"JODISE_EVENTING_IDEMPOTENCY_TTL" default:"720h"`
}

type FeatureFlagsConfig struct {
	UseSQLite   bool `envconfig:"JODISE_USE_SQLITE" default:"false"`
	AutoMigrate bool `envconfig:"JODISE_AUTO_MIGRATE" default:"false"`
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
