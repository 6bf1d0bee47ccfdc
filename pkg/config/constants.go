package config

// EnvPrefix is empty because every field tag spells out its full variable name.
const EnvPrefix = ""

const (
	AppEnvDev  = "dev"
	AppEnvProd = "prod"
)

const (
	EnvAppEnv   = "RENTPAY_APP_ENV"
	EnvPort     = "RENTPAY_APP_PORT"
	EnvLogLevel = "RENTPAY_LOG_LEVEL"

	EnvDBDSN  = "RENTPAY_DB_DSN"
	EnvDBHost = "RENTPAY_DB_HOST"
	EnvDBUser = "RENTPAY_DB_USER"
	EnvDBName = "RENTPAY_DB_NAME"

	EnvRedisURL = "RENTPAY_REDIS_URL"

	EnvJWTSecret = "RENTPAY_JWT_SECRET"
	EnvJWTIssuer = "RENTPAY_JWT_ISSUER"

	EnvPayHereMerchantID     = "RENTPAY_PAYHERE_MERCHANT_ID"
	EnvPayHereMerchantSecret = "RENTPAY_PAYHERE_MERCHANT_SECRET"
	EnvPayHereMode           = "RENTPAY_PAYHERE_MODE"
	EnvPayHereAppID          = "RENTPAY_PAYHERE_APP_ID"
	EnvPayHereAppSecret      = "RENTPAY_PAYHERE_APP_SECRET"
	EnvPayHereHTTPTimeout    = "RENTPAY_PAYHERE_HTTP_TIMEOUT"

	EnvCommissionPercentage = "RENTPAY_COMMISSION_PERCENTAGE"
	EnvBillingChargeTimeout = "RENTPAY_BILLING_CHARGE_TIMEOUT"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
