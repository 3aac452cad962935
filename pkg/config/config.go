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
	Playback     PlaybackConfig
	Cascade      CascadeConfig
	Cron         CronConfig
	FeatureFlags FeatureFlagsConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if cfg.FeatureFlags.UseSQLite {
		cfg.DB.Driver = DBDriverSQLite
	}
	if err := cfg.DB.ensureDSN(cfg.FeatureFlags.UseSQLite); err != nil {
		return nil, err
	}
	if err := cfg.Playback.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string   `envconfig:"PLAYGATE_APP_ENV" required:"true"`
	Port         string   `envconfig:"PLAYGATE_APP_PORT" required:"true"`
	LogLevel     string   `envconfig:"PLAYGATE_LOG_LEVEL" default:"info"`
	LogWarnStack bool     `envconfig:"PLAYGATE_LOG_WARN_STACK" default:"false"`
	CORSOrigins  []string `envconfig:"PLAYGATE_CORS_ORIGINS"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type ServiceConfig struct {
	Kind string `envconfig:"PLAYGATE_SERVICE_KIND" default:"api"`
}

type DBConfig struct {
	DSN    string `envconfig:"PLAYGATE_DB_DSN"`
	Driver string `envconfig:"PLAYGATE_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"PLAYGATE_DB_HOST"`
	LegacyPort     int    `envconfig:"PLAYGATE_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"PLAYGATE_DB_USER"`
	LegacyPassword string `envconfig:"PLAYGATE_DB_PASSWORD"`
	LegacyName     string `envconfig:"PLAYGATE_DB_NAME"`
	LegacySSLMode  string `envconfig:"PLAYGATE_DB_SSLMODE" default:"disable"`

	SQLitePath string `envconfig:"PLAYGATE_SQLITE_PATH" default:"playgate.db"`

	MaxOpenConns    int           `envconfig:"PLAYGATE_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"PLAYGATE_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"PLAYGATE_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"PLAYGATE_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

// Database drivers accepted by PLAYGATE_DB_DRIVER.
const (
	DBDriverPostgres = "postgres"
	DBDriverSQLite   = "sqlite"
)

// IsSQLite reports whether the sqlite dialector should be used.
func (db DBConfig) IsSQLite() bool {
	return strings.EqualFold(strings.TrimSpace(db.Driver), DBDriverSQLite)
}

type RedisConfig struct {
	URL          string        `envconfig:"PLAYGATE_REDIS_URL" required:"true"`
	Address      string        `envconfig:"PLAYGATE_REDIS_ADDR"`
	Password     string        `envconfig:"PLAYGATE_REDIS_PASSWORD"`
	DB           int           `envconfig:"PLAYGATE_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"PLAYGATE_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"PLAYGATE_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"PLAYGATE_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"PLAYGATE_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"PLAYGATE_REDIS_WRITE_TIMEOUT" default:"5s"`
}

// JWTConfig verifies bearer tokens issued by the account service.
type JWTConfig struct {
	Secret            string `envconfig:"PLAYGATE_JWT_SECRET" required:"true"`
	Issuer            string `envconfig:"PLAYGATE_JWT_ISSUER" required:"true"`
	ExpirationMinutes int    `envconfig:"PLAYGATE_JWT_EXPIRATION_MINUTES" default:"60"`
}

type PlaybackConfig struct {
	LedgerBackend    string        `envconfig:"PLAYGATE_PLAYBACK_LEDGER_BACKEND" default:"redis"`
	DeviceSessionTTL time.Duration `envconfig:"PLAYGATE_PLAYBACK_DEVICE_SESSION_TTL" default:"4h"`
}

// Ledger backends accepted by PLAYGATE_PLAYBACK_LEDGER_BACKEND.
const (
	LedgerBackendRedis  = "redis"
	LedgerBackendSQL    = "sql"
	LedgerBackendMemory = "memory"
)

// Backend returns the normalized ledger backend name.
func (p PlaybackConfig) Backend() string {
	backend := strings.TrimSpace(strings.ToLower(p.LedgerBackend))
	if backend == "" {
		return LedgerBackendRedis
	}
	return backend
}

func (p PlaybackConfig) validate() error {
	switch p.Backend() {
	case LedgerBackendRedis, LedgerBackendSQL, LedgerBackendMemory:
	default:
		return fmt.Errorf("unsupported ledger backend %q", p.LedgerBackend)
	}
	if p.DeviceSessionTTL <= 0 {
		return fmt.Errorf("%s must be positive", EnvDeviceSessionTTL)
	}
	return nil
}

type CascadeConfig struct {
	LockTTL       time.Duration `envconfig:"PLAYGATE_CASCADE_LOCK_TTL" default:"10m"`
	ProgressEvery int           `envconfig:"PLAYGATE_CASCADE_PROGRESS_EVERY" default:"25"`
}

type CronConfig struct {
	Interval time.Duration `envconfig:"PLAYGATE_CRON_INTERVAL" default:"5m"`
}

type FeatureFlagsConfig struct {
	UseSQLite   bool `envconfig:"PLAYGATE_USE_SQLITE" default:"false"`
	AutoMigrate bool `envconfig:"PLAYGATE_AUTO_MIGRATE" default:"false"`
}

func (db *DBConfig) ensureDSN(useSQLite bool) error {
	if db.DSN != "" || useSQLite {
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
