package config

const EnvPrefix = "ORDERING"

const (
	AppEnvDev  = "dev"
	AppEnvProd = "prod"
)

const (
	ProviderStripe = "stripe"
	ProviderSquare = "square"
)

const (
	EnvAppEnv   = "ORDERING_APP_ENV"
	EnvPort     = "ORDERING_APP_PORT"
	EnvLogLevel = "ORDERING_LOG_LEVEL"

	EnvDBDSN  = "ORDERING_DB_DSN"
	EnvDBHost = "ORDERING_DB_HOST"
	EnvDBUser = "ORDERING_DB_USER"
	EnvDBName = "ORDERING_DB_NAME"

	EnvRedisURL = "ORDERING_REDIS_URL"

	EnvJWTSecret = "ORDERING_JWT_SECRET"
	EnvJWTIssuer = "ORDERING_JWT_ISSUER"

	EnvCheckoutProvider    = "ORDERING_CHECKOUT_PROVIDER"
	EnvCheckoutMaxAttempts = "ORDERING_CHECKOUT_MAX_ATTEMPTS"
	EnvCheckoutSuccessURL  = "ORDERING_CHECKOUT_SUCCESS_URL"
	EnvCheckoutFailureURL  = "ORDERING_CHECKOUT_FAILURE_URL"

	EnvPubSubOrdersTopic = "ORDERING_PUBSUB_ORDERS_TOPIC"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
