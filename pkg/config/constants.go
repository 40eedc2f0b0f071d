package config

const (
	EnvPrefix = "BREWPOS"

	AppEnvDev  = "dev"
	AppEnvProd = "prod"

	DBDriverPostgres = "postgres"
	DBDriverSQLite   = "sqlite"
	DefaultSQLiteDSN = "file:brewpos.db?_busy_timeout=5000"

	LedgerLockMemory = "memory"
	LedgerLockRedis  = "redis"
)

const (
	EnvAppEnv   = "BREWPOS_APP_ENV"
	EnvLogLevel = "BREWPOS_LOG_LEVEL"

	EnvDBDSN    = "BREWPOS_DB_DSN"
	EnvDBDriver = "BREWPOS_DB_DRIVER"
	EnvDBHost   = "BREWPOS_DB_HOST"
	EnvDBPort   = "BREWPOS_DB_PORT"
	EnvDBUser   = "BREWPOS_DB_USER"
	EnvDBPass   = "BREWPOS_DB_PASSWORD"
	EnvDBName   = "BREWPOS_DB_NAME"

	EnvRedisURL = "BREWPOS_REDIS_URL"

	EnvLedgerLock       = "BREWPOS_LEDGER_LOCK"
	EnvLedgerMaxRetries = "BREWPOS_LEDGER_MAX_CONFLICT_RETRIES"

	EnvUseSQLite          = "BREWPOS_USE_SQLITE"
	EnvAllowNegativeStock = "BREWPOS_ALLOW_NEGATIVE_STOCK"
)

var discreteDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
