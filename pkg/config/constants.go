package config

const EnvPrefix = "SHOPMALL"

const (
	AppEnvDev  = "dev"
	AppEnvProd = "prod"
)

const (
	EnvAppEnv   = "SHOPMALL_APP_ENV"
	EnvPort     = "SHOPMALL_APP_PORT"
	EnvDBDSN    = "SHOPMALL_DB_DSN"
	EnvDBHost   = "SHOPMALL_DB_HOST"
	EnvDBUser   = "SHOPMALL_DB_USER"
	EnvDBName   = "SHOPMALL_DB_NAME"
	EnvRedisURL = "SHOPMALL_REDIS_URL"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
