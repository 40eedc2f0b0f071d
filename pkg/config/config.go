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
	DB           DBConfig
	Redis        RedisConfig
	Password     PasswordConfig
	Ledger       LedgerConfig
	FeatureFlags FeatureFlagsConfig
	Ops          OpsConfig
	GCP          GCPConfig
	PubSub       PubSubConfig
	Outbox       OutboxConfig
	Cron         CronConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if cfg.FeatureFlags.UseSQLite {
		cfg.DB.Driver = DBDriverSQLite
	}
	if err := cfg.DB.ensureDSN(); err != nil {
		return nil, err
	}
	if err := cfg.Ledger.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"BREWPOS_APP_ENV" required:"true"`
	LogLevel     string `envconfig:"BREWPOS_LOG_LEVEL" default:"info"`
	LogFormat    string `envconfig:"BREWPOS_LOG_FORMAT" default:"json"`
	LogWarnStack bool   `envconfig:"BREWPOS_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type DBConfig struct {
	DSN    string `envconfig:"BREWPOS_DB_DSN"`
	Driver string `envconfig:"BREWPOS_DB_DRIVER" default:"postgres"`

	Host     string `envconfig:"BREWPOS_DB_HOST"`
	Port     int    `envconfig:"BREWPOS_DB_PORT" default:"5432"`
	User     string `envconfig:"BREWPOS_DB_USER"`
	Password string `envconfig:"BREWPOS_DB_PASSWORD"`
	Name     string `envconfig:"BREWPOS_DB_NAME"`
	SSLMode  string `envconfig:"BREWPOS_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"BREWPOS_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"BREWPOS_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"BREWPOS_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"BREWPOS_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

// IsSQLite reports whether the configured driver is the embedded SQLite one.
func (db DBConfig) IsSQLite() bool {
	return strings.EqualFold(db.Driver, DBDriverSQLite)
}

type RedisConfig struct {
	URL          string        `envconfig:"BREWPOS_REDIS_URL"`
	Address      string        `envconfig:"BREWPOS_REDIS_ADDR"`
	Password     string        `envconfig:"BREWPOS_REDIS_PASSWORD"`
	DB           int           `envconfig:"BREWPOS_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"BREWPOS_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"BREWPOS_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"BREWPOS_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"BREWPOS_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"BREWPOS_REDIS_WRITE_TIMEOUT" default:"5s"`
}

// Enabled reports whether enough settings exist to dial Redis.
func (r RedisConfig) Enabled() bool {
	return strings.TrimSpace(r.URL) != "" || strings.TrimSpace(r.Address) != ""
}

type PasswordConfig struct {
	ArgonMemoryKB    int `envconfig:"BREWPOS_ARGON_MEMORY_KB" default:"65536"`
	ArgonTime        int `envconfig:"BREWPOS_ARGON_TIME" default:"3"`
	ArgonParallelism int `envconfig:"BREWPOS_ARGON_PARALLELISM" default:"2"`
	ArgonSaltLen     int `envconfig:"BREWPOS_ARGON_SALT_LEN" default:"16"`
	ArgonKeyLen      int `envconfig:"BREWPOS_ARGON_KEY_LEN" default:"32"`
}

// LedgerConfig controls how ledger writers are serialized.
type LedgerConfig struct {
	Key                string        `envconfig:"BREWPOS_LEDGER_KEY" default:"main"`
	Lock               string        `envconfig:"BREWPOS_LEDGER_LOCK" default:"memory"`
	LockTTL            time.Duration `envconfig:"BREWPOS_LEDGER_LOCK_TTL" default:"30s"`
	LockPollInterval   time.Duration `envconfig:"BREWPOS_LEDGER_LOCK_POLL" default:"25ms"`
	MaxConflictRetries int           `envconfig:"BREWPOS_LEDGER_MAX_CONFLICT_RETRIES" default:"3"`
}

func (l LedgerConfig) validate() error {
	switch strings.ToLower(strings.TrimSpace(l.Lock)) {
	case LedgerLockMemory, LedgerLockRedis:
	default:
		return fmt.Errorf("%s must be %q or %q, got %q", EnvLedgerLock, LedgerLockMemory, LedgerLockRedis, l.Lock)
	}
	if l.MaxConflictRetries < 0 {
		return fmt.Errorf("%s cannot be negative", EnvLedgerMaxRetries)
	}
	return nil
}

// UsesRedisLock reports whether ledger writers coordinate through Redis.
func (l LedgerConfig) UsesRedisLock() bool {
	return strings.EqualFold(strings.TrimSpace(l.Lock), LedgerLockRedis)
}

type FeatureFlagsConfig struct {
	UseSQLite          bool `envconfig:"BREWPOS_USE_SQLITE" default:"false"`
	AutoMigrate        bool `envconfig:"BREWPOS_AUTO_MIGRATE" default:"false"`
	AllowNegativeStock bool `envconfig:"BREWPOS_ALLOW_NEGATIVE_STOCK" default:"true"`
}

// OpsConfig configures the health/metrics listener of long-running binaries.
type OpsConfig struct {
	Port string `envconfig:"BREWPOS_OPS_PORT" default:"9090"`
}

type GCPConfig struct {
	ProjectID string `envconfig:"BREWPOS_GCP_PROJECT_ID"`
}

type PubSubConfig struct {
	LedgerTopic string `envconfig:"BREWPOS_PUBSUB_LEDGER_TOPIC" default:"brewpos-ledger-events"`
}

type OutboxConfig struct {
	BatchSize      int `envconfig:"BREWPOS_OUTBOX_PUBLISH_BATCH_SIZE" default:"50"`
	PollIntervalMS int `envconfig:"BREWPOS_OUTBOX_PUBLISH_POLL_MS" default:"500"`
	MaxAttempts    int `envconfig:"BREWPOS_OUTBOX_MAX_ATTEMPTS" default:"10"`
}

// CronConfig drives the maintenance worker.
type CronConfig struct {
	Interval        time.Duration `envconfig:"BREWPOS_CRON_INTERVAL" default:"1h"`
	OutboxRetention time.Duration `envconfig:"BREWPOS_OUTBOX_RETENTION" default:"720h"`
}

func (db *DBConfig) ensureDSN() error {
	if db.DSN != "" {
		return nil
	}
	if db.IsSQLite() {
		db.DSN = DefaultSQLiteDSN
		return nil
	}

	missing := []string{}
	values := map[string]string{
		EnvDBHost: db.Host,
		EnvDBUser: db.User,
		EnvDBName: db.Name,
	}
	for _, env := range discreteDBEnvVars {
		if values[env] == "" {
			missing = append(missing, env)
		}
	}

	if len(missing) > 0 {
		return fmt.Errorf("either %s or %s are required", EnvDBDSN, strings.Join(missing, ", "))
	}

	userInfo := url.User(db.User)
	if db.Password != "" {
		userInfo = url.UserPassword(db.User, db.Password)
	}

	u := &url.URL{
		Scheme: "postgres",
		User:   userInfo,
		Host:   fmt.Sprintf("%s:%d", db.Host, db.Port),
		Path:   db.Name,
	}

	if db.SSLMode != "" {
		q := u.Query()
		q.Set("sslmode", db.SSLMode)
		u.RawQuery = q.Encode()
	}

	db.DSN = u.String()
	return nil
}
