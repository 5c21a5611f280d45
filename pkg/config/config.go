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
	FeatureFlags FeatureFlagsConfig
	Checkout     CheckoutConfig
	Eventing     EventingConfig
	GCP          GCPConfig
	PubSub       PubSubConfig
	Stripe       StripeConfig
	Square       SquareConfig
	Outbox       OutboxConfig
	Cron         CronConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.DB.ensureDSN(); err != nil {
		return nil, err
	}
	if err := cfg.Checkout.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// LoadJWT reads only the staff token settings, for tooling that mints tokens.
func LoadJWT() (JWTConfig, error) {
	var cfg JWTConfig
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return JWTConfig{}, fmt.Errorf("parsing jwt config: %w", err)
	}
	return cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"ORDERING_APP_ENV" required:"true"`
	Port         string `envconfig:"ORDERING_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"ORDERING_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"ORDERING_LOG_WARN_STACK" default:"false"`
	CORSOrigin   string `envconfig:"ORDERING_APP_CORS_ORIGIN"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type ServiceConfig struct {
	Kind string `envconfig:"ORDERING_SERVICE_KIND" default:"api"`
}

type DBConfig struct {
	DSN    string `envconfig:"ORDERING_DB_DSN"`
	Driver string `envconfig:"ORDERING_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"ORDERING_DB_HOST"`
	LegacyPort     int    `envconfig:"ORDERING_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"ORDERING_DB_USER"`
	LegacyPassword string `envconfig:"ORDERING_DB_PASSWORD"`
	LegacyName     string `envconfig:"ORDERING_DB_NAME"`
	LegacySSLMode  string `envconfig:"ORDERING_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"ORDERING_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"ORDERING_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"ORDERING_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"ORDERING_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"ORDERING_REDIS_URL" required:"true"`
	Address      string        `envconfig:"ORDERING_REDIS_ADDR"`
	Password     string        `envconfig:"ORDERING_REDIS_PASSWORD"`
	DB           int           `envconfig:"ORDERING_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"ORDERING_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"ORDERING_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"ORDERING_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"ORDERING_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"ORDERING_REDIS_WRITE_TIMEOUT" default:"5s"`
}

// JWTConfig verifies staff tokens. ExpirationMinutes applies to tokens minted by checkoutctl.
type JWTConfig struct {
	Secret            string `envconfig:"ORDERING_JWT_SECRET" required:"true"`
	Issuer            string `envconfig:"ORDERING_JWT_ISSUER" required:"true"`
	ExpirationMinutes int    `envconfig:"ORDERING_JWT_EXPIRATION_MINUTES" default:"60"`
}

type FeatureFlagsConfig struct {
	UseSQLite   bool `envconfig:"ORDERING_USE_SQLITE" default:"false"`
	AutoMigrate bool `envconfig:"ORDERING_AUTO_MIGRATE" default:"false"`
}

// CheckoutConfig drives the payment flow: processor choice, retry budget and redirect targets.
type CheckoutConfig struct {
	Provider           string        `envconfig:"ORDERING_CHECKOUT_PROVIDER" default:"stripe"`
	MaxAttempts        int           `envconfig:"ORDERING_CHECKOUT_MAX_ATTEMPTS" default:"3"`
	FailOpenLimit      int           `envconfig:"ORDERING_CHECKOUT_FAIL_OPEN_LIMIT" default:"3"`
	RetryCheckTimeout  time.Duration `envconfig:"ORDERING_CHECKOUT_RETRY_CHECK_TIMEOUT" default:"5s"`
	SuccessURL         string        `envconfig:"ORDERING_CHECKOUT_SUCCESS_URL" required:"true"`
	FailureURL         string        `envconfig:"ORDERING_CHECKOUT_FAILURE_URL" required:"true"`
	SupportPath        string        `envconfig:"ORDERING_CHECKOUT_SUPPORT_PATH" default:"/contact"`
	OrdersPath         string        `envconfig:"ORDERING_CHECKOUT_ORDERS_PATH" default:"/orders"`
	DefaultCurrency    string        `envconfig:"ORDERING_CHECKOUT_DEFAULT_CURRENCY" default:"EUR"`
	OutcomeGuardTTL    time.Duration `envconfig:"ORDERING_CHECKOUT_OUTCOME_GUARD_TTL" default:"5m"`
	IdempotencyTTL     time.Duration `envconfig:"ORDERING_CHECKOUT_IDEMPOTENCY_TTL" default:"24h"`
	CartTTL            time.Duration `envconfig:"ORDERING_CHECKOUT_CART_TTL" default:"720h"`
	CartLeaseTTL       time.Duration `envconfig:"ORDERING_CHECKOUT_CART_LEASE_TTL" default:"5s"`
	CartLeaseWait      time.Duration `envconfig:"ORDERING_CHECKOUT_CART_LEASE_WAIT" default:"2s"`
	EstimatedPrepTime  time.Duration `envconfig:"ORDERING_CHECKOUT_ESTIMATED_PREP_TIME" default:"45m"`
	ReconcileAfter     time.Duration `envconfig:"ORDERING_CHECKOUT_RECONCILE_AFTER" default:"30m"`
	ReconcileBatchSize int           `envconfig:"ORDERING_CHECKOUT_RECONCILE_BATCH_SIZE" default:"50"`
	RateLimitWindow    time.Duration `envconfig:"ORDERING_CHECKOUT_RATE_LIMIT_WINDOW" default:"1m"`
	RateLimitPerIP     int           `envconfig:"ORDERING_CHECKOUT_RATE_LIMIT_PER_IP" default:"30"`
	RateLimitPerCart   int           `envconfig:"ORDERING_CHECKOUT_RATE_LIMIT_PER_CART" default:"10"`
}

func (c CheckoutConfig) validate() error {
	switch strings.ToLower(strings.TrimSpace(c.Provider)) {
	case ProviderStripe, ProviderSquare:
	default:
		return fmt.Errorf("%s must be %q or %q", EnvCheckoutProvider, ProviderStripe, ProviderSquare)
	}
	if c.MaxAttempts <= 0 {
		return fmt.Errorf("%s must be positive", EnvCheckoutMaxAttempts)
	}
	return nil
}

// NormalizedProvider returns the configured processor name in lower case.
func (c CheckoutConfig) NormalizedProvider() string {
	return strings.ToLower(strings.TrimSpace(c.Provider))
}

type EventingConfig struct {
	OutboxIdempotencyTTL time.Duration `envconfig:"ORDERING_EVENTING_IDEMPOTENCY_TTL" default:"720h"`
}

type GCPConfig struct {
	ProjectID string `envconfig:"ORDERING_GCP_PROJECT_ID"`
}

type PubSubConfig struct {
	OrdersTopic  string `envconfig:"ORDERING_PUBSUB_ORDERS_TOPIC" default:"ordering-orders"`
	PaymentTopic string `envconfig:"ORDERING_PUBSUB_PAYMENTS_TOPIC" default:"ordering-payments"`
	RefundsTopic string `envconfig:"ORDERING_PUBSUB_REFUNDS_TOPIC" default:"ordering-refunds"`
}

type OutboxConfig struct {
	BatchSize      int `envconfig:"ORDERING_OUTBOX_PUBLISH_BATCH_SIZE" default:"50"`
	PollIntervalMS int `envconfig:"ORDERING_OUTBOX_PUBLISH_POLL_MS" default:"500"`
	MaxAttempts    int `envconfig:"ORDERING_OUTBOX_MAX_ATTEMPTS" default:"10"`
	RetentionDays  int `envconfig:"ORDERING_OUTBOX_RETENTION_DAYS" default:"30"`
}

type CronConfig struct {
	Interval   time.Duration `envconfig:"ORDERING_CRON_INTERVAL" default:"5m"`
	LockTTL    time.Duration `envconfig:"ORDERING_CRON_LOCK_TTL" default:"10m"`
	JobTimeout time.Duration `envconfig:"ORDERING_CRON_JOB_TIMEOUT" default:"4m"`
}

type StripeConfig struct {
	APIKey string `envconfig:"ORDERING_STRIPE_API_KEY"`
	Secret string `envconfig:"ORDERING_STRIPE_SECRET"`
	Env    string `envconfig:"ORDERING_STRIPE_ENV" default:"test"`
}

// Environment returns the normalized Stripe environment (test/live).
func (s StripeConfig) Environment() string {
	env := strings.TrimSpace(strings.ToLower(s.Env))
	if env == "" {
		return "test"
	}
	return env
}

type SquareConfig struct {
	AccessToken   string `envconfig:"ORDERING_SQUARE_ACCESS_TOKEN"`
	LocationID    string `envconfig:"ORDERING_SQUARE_LOCATION_ID"`
	WebhookSecret string `envconfig:"ORDERING_SQUARE_WEBHOOK_SECRET"`
	Env           string `envconfig:"ORDERING_SQUARE_ENV" default:"sandbox"`
}

// Environment returns the normalized Square environment (sandbox/production).
func (s SquareConfig) Environment() string {
	env := strings.TrimSpace(strings.ToLower(s.Env))
	if env == "" {
		return "sandbox"
	}
	return env
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
