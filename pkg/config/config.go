package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
	"github.com/shopspring/decimal"
)

type Config struct {
	App          AppConfig
	Service      ServiceConfig
	DB           DBConfig
	Redis        RedisConfig
	JWT          JWTConfig
	Password     PasswordConfig
	RateLimit    RateLimitConfig
	FeatureFlags FeatureFlagsConfig
	Razorpay     RazorpayConfig
	Checkout     CheckoutConfig
	Reaper       ReaperConfig
	Eventing     EventingConfig
	GCP          GCPConfig
	PubSub       PubSubConfig
	BigQuery     BigQueryConfig
	Outbox       OutboxConfig
	SMTP         SMTPConfig
	Operator     OperatorConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.DB.ensureDSN(cfg.FeatureFlags.UseSQLite); err != nil {
		return nil, err
	}
	if err := cfg.Checkout.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env            string   `envconfig:"MERCH_APP_ENV" required:"true"`
	Port           string   `envconfig:"MERCH_APP_PORT" required:"true"`
	LogLevel       string   `envconfig:"MERCH_LOG_LEVEL" default:"info"`
	LogWarnStack   bool     `envconfig:"MERCH_LOG_WARN_STACK" default:"false"`
	PublicBaseURL  string   `envconfig:"MERCH_PUBLIC_BASE_URL" default:"http://localhost:3000"`
	AllowedOrigins []string `envconfig:"MERCH_ALLOWED_ORIGINS" default:"http://localhost:3000"`
	StoreName      string   `envconfig:"MERCH_STORE_NAME" default:"Exclusive Merch"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd) || strings.EqualFold(a.Env, "production")
}

type ServiceConfig struct {
	Kind string `envconfig:"MERCH_SERVICE_KIND" default:"api"`
}

type DBConfig struct {
	DSN    string `envconfig:"MERCH_DB_DSN"`
	Driver string `envconfig:"MERCH_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"MERCH_DB_HOST"`
	LegacyPort     int    `envconfig:"MERCH_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"MERCH_DB_USER"`
	LegacyPassword string `envconfig:"MERCH_DB_PASSWORD"`
	LegacyName     string `envconfig:"MERCH_DB_NAME"`
	LegacySSLMode  string `envconfig:"MERCH_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"MERCH_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"MERCH_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"MERCH_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"MERCH_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"MERCH_REDIS_URL"`
	Address      string        `envconfig:"MERCH_REDIS_ADDR"`
	Password     string        `envconfig:"MERCH_REDIS_PASSWORD"`
	DB           int           `envconfig:"MERCH_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"MERCH_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"MERCH_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"MERCH_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"MERCH_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"MERCH_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type JWTConfig struct {
	Secret            string `envconfig:"MERCH_JWT_SECRET" required:"true"`
	Issuer            string `envconfig:"MERCH_JWT_ISSUER" required:"true"`
	ExpirationMinutes int    `envconfig:"MERCH_JWT_EXPIRATION_MINUTES" required:"true"`
}

// AccessTokenTTL returns the access token lifetime.
func (j JWTConfig) AccessTokenTTL() time.Duration {
	if j.ExpirationMinutes <= 0 {
		return 0
	}
	return time.Duration(j.ExpirationMinutes) * time.Minute
}

type PasswordConfig struct {
	ArgonMemoryKB    int `envconfig:"MERCH_ARGON_MEMORY_KB" default:"65536"`
	ArgonTime        int `envconfig:"MERCH_ARGON_TIME" default:"3"`
	ArgonParallelism int `envconfig:"MERCH_ARGON_PARALLELISM" default:"2"`
	ArgonSaltLen     int `envconfig:"MERCH_ARGON_SALT_LEN" default:"16"`
	ArgonKeyLen      int `envconfig:"MERCH_ARGON_KEY_LEN" default:"32"`
}

// RateLimitConfig holds the fixed-window throttles. A zero limit disables that scope.
type RateLimitConfig struct {
	LoginWindow        time.Duration `envconfig:"MERCH_RATE_LIMIT_LOGIN_WINDOW" default:"1m"`
	LoginEmailLimit    int           `envconfig:"MERCH_RATE_LIMIT_LOGIN_EMAIL_LIMIT" default:"5"`
	LoginIPLimit       int           `envconfig:"MERCH_RATE_LIMIT_LOGIN_IP_LIMIT" default:"20"`
	RegisterWindow     time.Duration `envconfig:"MERCH_RATE_LIMIT_REGISTER_WINDOW" default:"5m"`
	RegisterEmailLimit int           `envconfig:"MERCH_RATE_LIMIT_REGISTER_EMAIL_LIMIT" default:"3"`
	RegisterIPLimit    int           `envconfig:"MERCH_RATE_LIMIT_REGISTER_IP_LIMIT" default:"20"`
	CheckoutWindow     time.Duration `envconfig:"MERCH_RATE_LIMIT_CHECKOUT_WINDOW" default:"1m"`
	CheckoutUserLimit  int           `envconfig:"MERCH_RATE_LIMIT_CHECKOUT_USER_LIMIT" default:"5"`
}

type FeatureFlagsConfig struct {
	UseSQLite   bool `envconfig:"MERCH_USE_SQLITE" default:"false"`
	AutoMigrate bool `envconfig:"MERCH_AUTO_MIGRATE" default:"false"`
}

type RazorpayConfig struct {
	KeyID         string        `envconfig:"MERCH_RAZORPAY_KEY_ID" required:"true"`
	KeySecret     string        `envconfig:"MERCH_RAZORPAY_KEY_SECRET" required:"true"`
	WebhookSecret string        `envconfig:"MERCH_RAZORPAY_WEBHOOK_SECRET" required:"true"`
	BaseURL       string        `envconfig:"MERCH_RAZORPAY_BASE_URL" default:"https://api.razorpay.com/v1"`
	Timeout       time.Duration `envconfig:"MERCH_RAZORPAY_TIMEOUT" default:"10s"`
	// TransferAccountID enables the linked-account split when set.
	TransferAccountID string `envconfig:"MERCH_RAZORPAY_TRANSFER_ACCOUNT_ID"`
}

type CheckoutConfig struct {
	Currency              string          `envconfig:"MERCH_CHECKOUT_CURRENCY" default:"INR"`
	DeliveryCharge        decimal.Decimal `envconfig:"MERCH_CHECKOUT_DELIVERY_CHARGE" default:"50"`
	FreeDeliveryThreshold decimal.Decimal `envconfig:"MERCH_CHECKOUT_FREE_DELIVERY_THRESHOLD" default:"500"`
	GatewayFeePercent     decimal.Decimal `envconfig:"MERCH_CHECKOUT_GATEWAY_FEE_PERCENT" default:"2"`
	TransferFeePercent    decimal.Decimal `envconfig:"MERCH_CHECKOUT_TRANSFER_FEE_PERCENT" default:"0.25"`
	TaxPercent            decimal.Decimal `envconfig:"MERCH_CHECKOUT_TAX_PERCENT" default:"18"`
}

func (c CheckoutConfig) validate() error {
	checks := map[string]decimal.Decimal{
		EnvCheckoutDeliveryCharge:    c.DeliveryCharge,
		EnvCheckoutFreeDelivery:      c.FreeDeliveryThreshold,
		EnvCheckoutGatewayFeePercent: c.GatewayFeePercent,
		EnvCheckoutTransferFeePct:    c.TransferFeePercent,
		EnvCheckoutTaxPercent:        c.TaxPercent,
	}
	for name, value := range checks {
		if value.IsNegative() {
			return fmt.Errorf("%s must not be negative", name)
		}
	}
	if strings.TrimSpace(c.Currency) == "" {
		return fmt.Errorf("%s is required", EnvCheckoutCurrency)
	}
	return nil
}

type ReaperConfig struct {
	MaxOrderPending time.Duration `envconfig:"MERCH_MAX_ORDER_PENDING" default:"30m"`
	Interval        time.Duration `envconfig:"MERCH_CRON_INTERVAL" default:"5m"`
	LockTTL         time.Duration `envconfig:"MERCH_CRON_LOCK_TTL" default:"4m"`
}

type EventingConfig struct {
	OutboxIdempotencyTTL  time.Duration `envconfig:"MERCH_EVENTING_IDEMPOTENCY_TTL" default:"720h"`
	WebhookIdempotencyTTL time.Duration `envconfig:"MERCH_WEBHOOK_IDEMPOTENCY_TTL" default:"72h"`
}

type GCPConfig struct {
	ProjectID              string `envconfig:"MERCH_GCP_PROJECT_ID" required:"true"`
	CredentialsJSON        string `envconfig:"MERCH_GCP_CREDENTIALS_JSON"`
	ApplicationCredentials string `envconfig:"MERCH_GOOGLE_APPLICATION_CREDENTIALS"`
}

type PubSubConfig struct {
	OrdersTopic              string `envconfig:"MERCH_PUBSUB_ORDERS_TOPIC" required:"true"`
	NotificationSubscription string `envconfig:"MERCH_PUBSUB_NOTIFICATION_SUBSCRIPTION" required:"true"`
	AnalyticsSubscription    string `envconfig:"MERCH_PUBSUB_ANALYTICS_SUBSCRIPTION" required:"true"`
}

type BigQueryConfig struct {
	Dataset          string `envconfig:"MERCH_BIGQUERY_DATASET" default:"merch"`
	OrderEventsTable string `envconfig:"MERCH_BIGQUERY_ORDER_EVENTS_TABLE" default:"order_events"`
}

type OutboxConfig struct {
	BatchSize      int `envconfig:"MERCH_OUTBOX_PUBLISH_BATCH_SIZE" default:"50"`
	PollIntervalMS int `envconfig:"MERCH_OUTBOX_PUBLISH_POLL_MS" default:"500"`
	MaxAttempts    int `envconfig:"MERCH_OUTBOX_MAX_ATTEMPTS" default:"10"`
}

type SMTPConfig struct {
	Host     string `envconfig:"MERCH_SMTP_HOST" default:"smtp.gmail.com"`
	Port     int    `envconfig:"MERCH_SMTP_PORT" default:"587"`
	Username string `envconfig:"MERCH_SMTP_USERNAME"`
	Password string `envconfig:"MERCH_SMTP_PASSWORD"`
	From     string `envconfig:"MERCH_SMTP_FROM"`
}

// Addr returns host:port for net/smtp.
func (s SMTPConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

type OperatorConfig struct {
	Email string `envconfig:"MERCH_OPERATOR_EMAIL"`
}

func (db *DBConfig) ensureDSN(useSQLite bool) error {
	if db.DSN != "" {
		return nil
	}
	if useSQLite {
		db.DSN = "file:merch.db?cache=shared"
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
