package config

const EnvPrefix = "HOMECOOK"

const (
	AppEnvDev  = "dev"
	AppEnvProd = "prod"
)

const (
	EnvAppEnv    = "HOMECOOK_APP_ENV"
	EnvLogLevel  = "HOMECOOK_LOG_LEVEL"
	EnvLogFormat = "HOMECOOK_LOG_FORMAT"

	EnvDBDSN  = "HOMECOOK_DB_DSN"
	EnvDBHost = "HOMECOOK_DB_HOST"
	EnvDBUser = "HOMECOOK_DB_USER"
	EnvDBName = "HOMECOOK_DB_NAME"

	EnvRedisURL     = "HOMECOOK_REDIS_URL"
	EnvGCPProjectID = "HOMECOOK_GCP_PROJECT_ID"
	EnvGiftTopic    = "HOMECOOK_PUBSUB_GIFT_TOPIC"

	EnvOutboxBatchSize   = "HOMECOOK_OUTBOX_PUBLISH_BATCH_SIZE"
	EnvOutboxMaxAttempts = "HOMECOOK_OUTBOX_MAX_ATTEMPTS"
	EnvOutboxRetryBase   = "HOMECOOK_OUTBOX_RETRY_BASE"
	EnvOutboxRetryMax    = "HOMECOOK_OUTBOX_RETRY_MAX"

	EnvCronInterval   = "HOMECOOK_CRON_INTERVAL"
	EnvCronLockTTL    = "HOMECOOK_CRON_LOCK_TTL"
	EnvCronJobTimeout = "HOMECOOK_CRON_JOB_TIMEOUT"

	EnvOrdersAcceptUrgent   = "HOMECOOK_ORDERS_ACCEPTANCE_URGENT"
	EnvOrdersAcceptNormal   = "HOMECOOK_ORDERS_ACCEPTANCE_NORMAL"
	EnvOrdersDeliveryWindow = "HOMECOOK_ORDERS_DELIVERY_WINDOW"
	EnvOrdersGiftTokenTTL   = "HOMECOOK_ORDERS_GIFT_TOKEN_TTL"

	EnvPenaltyBanThreshold = "HOMECOOK_PENALTY_BAN_THRESHOLD"
	EnvPenaltyBanAfterFine = "HOMECOOK_PENALTY_BAN_THRESHOLD_AFTER_FINE"

	EnvRatingPriorCount = "HOMECOOK_RATING_PRIOR_COUNT"
	EnvRatingWindowDays = "HOMECOOK_RATING_WINDOW_DAYS"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
