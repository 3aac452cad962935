package config

// EnvPrefix is passed to envconfig; every field carries an explicit PLAYGATE_ key.
const EnvPrefix = "PLAYGATE"

const (
	AppEnvDev  = "dev"
	AppEnvProd = "prod"
)

const (
	EnvAppEnv           = "PLAYGATE_APP_ENV"
	EnvPort             = "PLAYGATE_APP_PORT"
	EnvDBDSN            = "PLAYGATE_DB_DSN"
	EnvDBHost           = "PLAYGATE_DB_HOST"
	EnvDBUser           = "PLAYGATE_DB_USER"
	EnvDBName           = "PLAYGATE_DB_NAME"
	EnvUseSQLite        = "PLAYGATE_USE_SQLITE"
	EnvRedisURL         = "PLAYGATE_REDIS_URL"
	EnvJWTSecret        = "PLAYGATE_JWT_SECRET"
	EnvJWTIssuer        = "PLAYGATE_JWT_ISSUER"
	EnvLedgerBackend    = "PLAYGATE_PLAYBACK_LEDGER_BACKEND"
	EnvDeviceSessionTTL = "PLAYGATE_PLAYBACK_DEVICE_SESSION_TTL"
	EnvCascadeLockTTL   = "PLAYGATE_CASCADE_LOCK_TTL"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
