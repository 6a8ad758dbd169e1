package config

const (
	EnvPrefix = "CYBERCAFE"

	AppEnvDev  = "dev"
	AppEnvProd = "prod"

	EnvAppEnv     = "CYBERCAFE_APP_ENV"
	EnvPort       = "CYBERCAFE_APP_PORT"
	EnvRedisURL   = "CYBERCAFE_REDIS_URL"
	EnvJWTSecret  = "CYBERCAFE_JWT_SECRET"
	EnvJWTIssuer  = "CYBERCAFE_JWT_ISSUER"
	EnvJWTExpMins = "CYBERCAFE_JWT_EXPIRATION_MINUTES"

	EnvDBDSN  = "CYBERCAFE_DB_DSN"
	EnvDBHost = "CYBERCAFE_DB_HOST"
	EnvDBUser = "CYBERCAFE_DB_USER"
	EnvDBName = "CYBERCAFE_DB_NAME"

	EnvDarajaConsumerKey    = "CYBERCAFE_DARAJA_CONSUMER_KEY"
	EnvDarajaConsumerSecret = "CYBERCAFE_DARAJA_CONSUMER_SECRET"
	EnvDarajaShortCode      = "CYBERCAFE_DARAJA_SHORTCODE"
	EnvDarajaPasskey        = "CYBERCAFE_DARAJA_PASSKEY"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
