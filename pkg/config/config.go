package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
	"go.uber.org/multierr"
)

type Config struct {
	App     AppConfig
	Service ServiceConfig
	DB      DBConfig
	Redis   RedisConfig
	GCP     GCPConfig
	PubSub  PubSubConfig
	Outbox  OutboxConfig
	Cron    CronConfig
	Orders  OrdersConfig
	Penalty PenaltyConfig
	Rating  RatingConfig
	Ops     OpsConfig
	Flags   FeatureFlagsConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := process(&cfg); err != nil {
		return nil, err
	}
	if err := cfg.DB.ensureDSN(); err != nil {
		return nil, err
	}
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &cfg, nil
}

func process(cfg *Config) error {
	if err := envconfig.Process(EnvPrefix, cfg); err != nil {
		return fmt.Errorf("parsing config: %w", err)
	}
	return nil
}

// validate reports every bad setting at once.
func (c *Config) validate() error {
	return multierr.Combine(
		c.App.validate(),
		c.Outbox.validate(),
		c.Cron.validate(),
		c.Orders.validate(),
		c.Penalty.validate(),
		c.Rating.validate(),
	)
}

func positive(name string, d time.Duration) error {
	if d <= 0 {
		return fmt.Errorf("%s must be > 0", name)
	}
	return nil
}

type AppConfig struct {
	Env          string `envconfig:"HOMECOOK_APP_ENV" required:"true"`
	LogLevel     string `envconfig:"HOMECOOK_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"HOMECOOK_LOG_WARN_STACK" default:"false"`
	LogFormat    string `envconfig:"HOMECOOK_LOG_FORMAT" default:"json"`
}

func (a AppConfig) validate() error {
	switch strings.ToLower(a.LogFormat) {
	case "json", "console":
		return nil
	}
	return fmt.Errorf("%s must be json or console, got %q", EnvLogFormat, a.LogFormat)
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd) || strings.EqualFold(a.Env, "production")
}

type ServiceConfig struct {
	Kind string `envconfig:"HOMECOOK_SERVICE_KIND" default:"cron-worker"`
}

type DBConfig struct {
	DSN    string `envconfig:"HOMECOOK_DB_DSN"`
	Driver string `envconfig:"HOMECOOK_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"HOMECOOK_DB_HOST"`
	LegacyPort     int    `envconfig:"HOMECOOK_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"HOMECOOK_DB_USER"`
	LegacyPassword string `envconfig:"HOMECOOK_DB_PASSWORD"`
	LegacyName     string `envconfig:"HOMECOOK_DB_NAME"`
	LegacySSLMode  string `envconfig:"HOMECOOK_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"HOMECOOK_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"HOMECOOK_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"HOMECOOK_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"HOMECOOK_DB_CONN_MAX_IDLE_TIME" default:"10m"`
	SlowQuery       time.Duration `envconfig:"HOMECOOK_DB_SLOW_QUERY" default:"200ms"`
	LockTimeout     time.Duration `envconfig:"HOMECOOK_DB_LOCK_TIMEOUT" default:"5s"`
}

type RedisConfig struct {
	URL          string        `envconfig:"HOMECOOK_REDIS_URL" required:"true"`
	Address      string        `envconfig:"HOMECOOK_REDIS_ADDR"`
	Password     string        `envconfig:"HOMECOOK_REDIS_PASSWORD"`
	DB           int           `envconfig:"HOMECOOK_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"HOMECOOK_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"HOMECOOK_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"HOMECOOK_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"HOMECOOK_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"HOMECOOK_REDIS_WRITE_TIMEOUT" default:"5s"`
	KeyPrefix    string        `envconfig:"HOMECOOK_REDIS_KEY_PREFIX" default:"hc"`
}

type GCPConfig struct {
	ProjectID              string `envconfig:"HOMECOOK_GCP_PROJECT_ID" required:"true"`
	CredentialsJSON        string `envconfig:"HOMECOOK_GCP_CREDENTIALS_JSON"`
	ApplicationCredentials string `envconfig:"HOMECOOK_GOOGLE_APPLICATION_CREDENTIALS"`
}

type PubSubConfig struct {
	GiftTopic    string `envconfig:"HOMECOOK_PUBSUB_GIFT_TOPIC" default:"homecook-gift-events"`
	OrderedByKey bool   `envconfig:"HOMECOOK_PUBSUB_ORDERED" default:"true"`
	Endpoint     string `envconfig:"HOMECOOK_PUBSUB_ENDPOINT"`
	VerifyTopics bool   `envconfig:"HOMECOOK_PUBSUB_VERIFY_TOPICS" default:"true"`
}

type OutboxConfig struct {
	BatchSize      int           `envconfig:"HOMECOOK_OUTBOX_PUBLISH_BATCH_SIZE" default:"50"`
	PollIntervalMS int           `envconfig:"HOMECOOK_OUTBOX_PUBLISH_POLL_MS" default:"500"`
	MaxAttempts    int           `envconfig:"HOMECOOK_OUTBOX_MAX_ATTEMPTS" default:"10"`
	RetryBase      time.Duration `envconfig:"HOMECOOK_OUTBOX_RETRY_BASE" default:"30s"`
	RetryMax       time.Duration `envconfig:"HOMECOOK_OUTBOX_RETRY_MAX" default:"1h"`
	RetentionDays  int           `envconfig:"HOMECOOK_OUTBOX_RETENTION_DAYS" default:"30"`
	StaleAfter     time.Duration `envconfig:"HOMECOOK_OUTBOX_STALE_AFTER" default:"15m"`
}

func (o OutboxConfig) validate() error {
	var err error
	if o.BatchSize <= 0 {
		err = multierr.Append(err, fmt.Errorf("%s must be > 0", EnvOutboxBatchSize))
	}
	if o.MaxAttempts <= 0 {
		err = multierr.Append(err, fmt.Errorf("%s must be > 0", EnvOutboxMaxAttempts))
	}
	if o.RetryBase > o.RetryMax {
		err = multierr.Append(err, fmt.Errorf("%s must not exceed %s", EnvOutboxRetryBase, EnvOutboxRetryMax))
	}
	return err
}

type CronConfig struct {
	Interval                  time.Duration `envconfig:"HOMECOOK_CRON_INTERVAL" default:"2m"`
	LockTTL                   time.Duration `envconfig:"HOMECOOK_CRON_LOCK_TTL" default:"5m"`
	JobTimeout                time.Duration `envconfig:"HOMECOOK_CRON_JOB_TIMEOUT" default:"90s"`
	DryRun                    bool          `envconfig:"HOMECOOK_CRON_DRY_RUN" default:"false"`
	TimeoutBatches            int           `envconfig:"HOMECOOK_CRON_TIMEOUT_BATCHES" default:"10"`
	NotificationRetentionDays int           `envconfig:"HOMECOOK_CRON_NOTIFICATION_RETENTION_DAYS" default:"30"`
}

// validate requires the lease to outlive a single job; the lease is only
// refreshed between jobs.
func (c CronConfig) validate() error {
	err := multierr.Combine(
		positive(EnvCronInterval, c.Interval),
		positive(EnvCronJobTimeout, c.JobTimeout),
	)
	if c.LockTTL <= c.JobTimeout {
		err = multierr.Append(err, fmt.Errorf("%s must exceed %s", EnvCronLockTTL, EnvCronJobTimeout))
	}
	return err
}

// OrdersConfig holds lifecycle timing and compensation policy.
type OrdersConfig struct {
	AcceptanceWindowUrgent   time.Duration `envconfig:"HOMECOOK_ORDERS_ACCEPTANCE_URGENT" default:"30m"`
	AcceptanceWindowNormal   time.Duration `envconfig:"HOMECOOK_ORDERS_ACCEPTANCE_NORMAL" default:"60m"`
	CookingGrace             time.Duration `envconfig:"HOMECOOK_ORDERS_COOKING_GRACE" default:"10m"`
	DeliveryGrace            time.Duration `envconfig:"HOMECOOK_ORDERS_DELIVERY_GRACE" default:"15m"`
	DeliveryWindow           time.Duration `envconfig:"HOMECOOK_ORDERS_DELIVERY_WINDOW" default:"60m"`
	LateDeliveryGrace        time.Duration `envconfig:"HOMECOOK_ORDERS_LATE_DELIVERY_GRACE" default:"30m"`
	GiftTokenTTL             time.Duration `envconfig:"HOMECOOK_ORDERS_GIFT_TOKEN_TTL" default:"48h"`
	BuyerCancelCompensation  string        `envconfig:"HOMECOOK_ORDERS_BUYER_CANCEL_COMPENSATION" default:"0.10"`
	ProblemBuyerThreshold    int           `envconfig:"HOMECOOK_ORDERS_PROBLEM_BUYER_THRESHOLD" default:"3"`
	SellerWinCompensation    string        `envconfig:"HOMECOOK_ORDERS_SELLER_WIN_COMPENSATION" default:"0.10"`
	PaymentProvider          string        `envconfig:"HOMECOOK_PAYMENT_PROVIDER" default:"simulated"`
	PaymentReturnURLTemplate string        `envconfig:"HOMECOOK_PAYMENT_RETURN_URL" default:"https://homecook.local/orders/%s/paid"`
}

func (o OrdersConfig) validate() error {
	err := multierr.Combine(
		positive(EnvOrdersAcceptUrgent, o.AcceptanceWindowUrgent),
		positive(EnvOrdersAcceptNormal, o.AcceptanceWindowNormal),
		positive(EnvOrdersDeliveryWindow, o.DeliveryWindow),
		positive(EnvOrdersGiftTokenTTL, o.GiftTokenTTL),
	)
	if o.AcceptanceWindowUrgent > o.AcceptanceWindowNormal {
		err = multierr.Append(err, fmt.Errorf("%s must not exceed %s", EnvOrdersAcceptUrgent, EnvOrdersAcceptNormal))
	}
	return err
}

type PenaltyConfig struct {
	RejectionRate         string        `envconfig:"HOMECOOK_PENALTY_REJECTION_RATE" default:"0.30"`
	BanThreshold          int           `envconfig:"HOMECOOK_PENALTY_BAN_THRESHOLD" default:"3"`
	BanThresholdAfterFine int           `envconfig:"HOMECOOK_PENALTY_BAN_THRESHOLD_AFTER_FINE" default:"4"`
	FineCooldown          time.Duration `envconfig:"HOMECOOK_PENALTY_FINE_COOLDOWN" default:"720h"`
}

func (p PenaltyConfig) validate() error {
	var err error
	if p.BanThreshold <= 0 {
		err = multierr.Append(err, fmt.Errorf("%s must be > 0", EnvPenaltyBanThreshold))
	}
	if p.BanThresholdAfterFine < p.BanThreshold {
		err = multierr.Append(err, fmt.Errorf("%s must be >= %s", EnvPenaltyBanAfterFine, EnvPenaltyBanThreshold))
	}
	return err
}

// RatingConfig mirrors ratings.Config; decimals are kept as strings and parsed by the caller.
type RatingConfig struct {
	TasteWeight      string `envconfig:"HOMECOOK_RATING_TASTE_WEIGHT" default:"0.5"`
	AppearanceWeight string `envconfig:"HOMECOOK_RATING_APPEARANCE_WEIGHT" default:"0.3"`
	ServiceWeight    string `envconfig:"HOMECOOK_RATING_SERVICE_WEIGHT" default:"0.2"`
	PriorMean        string `envconfig:"HOMECOOK_RATING_PRIOR_MEAN" default:"4.7"`
	PriorCount       int    `envconfig:"HOMECOOK_RATING_PRIOR_COUNT" default:"10"`
	WindowDays       int    `envconfig:"HOMECOOK_RATING_WINDOW_DAYS" default:"90"`
	PenaltyPerPoint  string `envconfig:"HOMECOOK_RATING_PENALTY_PER_POINT" default:"0.1"`
}

func (r RatingConfig) validate() error {
	var err error
	if r.PriorCount < 0 {
		err = multierr.Append(err, fmt.Errorf("%s must be >= 0", EnvRatingPriorCount))
	}
	if r.WindowDays <= 0 {
		err = multierr.Append(err, fmt.Errorf("%s must be > 0", EnvRatingWindowDays))
	}
	return err
}

type OpsConfig struct {
	Port string `envconfig:"HOMECOOK_OPS_PORT" default:"9090"`
}

type FeatureFlagsConfig struct {
	AutoMigrate bool `envconfig:"HOMECOOK_AUTO_MIGRATE" default:"false"`
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
