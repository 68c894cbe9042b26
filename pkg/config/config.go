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
	Password     PasswordConfig
	FeatureFlags FeatureFlagsConfig
	Inventory    InventoryConfig
	GCP          GCPConfig
	PubSub       PubSubConfig
	Outbox       OutboxConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.DB.ensureDSN(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"HOTPOS_APP_ENV" required:"true"`
	Port         string `envconfig:"HOTPOS_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"HOTPOS_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"HOTPOS_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type ServiceConfig struct {
	Kind string `envconfig:"HOTPOS_SERVICE_KIND" default:"api"`
}

type DBConfig struct {
	DSN    string `envconfig:"HOTPOS_DB_DSN"`
	Driver string `envconfig:"HOTPOS_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"HOTPOS_DB_HOST"`
	LegacyPort     int    `envconfig:"HOTPOS_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"HOTPOS_DB_USER"`
	LegacyPassword string `envconfig:"HOTPOS_DB_PASSWORD"`
	LegacyName     string `envconfig:"HOTPOS_DB_NAME"`
	LegacySSLMode  string `envconfig:"HOTPOS_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"HOTPOS_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"HOTPOS_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"HOTPOS_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"HOTPOS_DB_CONN_MAX_IDLE_TIME" default:"10m"`

	LockTimeout time.Duration `envconfig:"HOTPOS_DB_LOCK_TIMEOUT" default:"3s"`
}

type RedisConfig struct {
	URL          string        `envconfig:"HOTPOS_REDIS_URL" required:"true"`
	Address      string        `envconfig:"HOTPOS_REDIS_ADDR"`
	Password     string        `envconfig:"HOTPOS_REDIS_PASSWORD"`
	DB           int           `envconfig:"HOTPOS_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"HOTPOS_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"HOTPOS_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"HOTPOS_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"HOTPOS_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"HOTPOS_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type JWTConfig struct {
	Secret                 string `envconfig:"HOTPOS_JWT_SECRET" required:"true"`
	Issuer                 string `envconfig:"HOTPOS_JWT_ISSUER" required:"true"`
	ExpirationMinutes      int    `envconfig:"HOTPOS_JWT_EXPIRATION_MINUTES" required:"true"`
	RefreshTokenTTLMinutes int    `envconfig:"HOTPOS_REFRESH_TOKEN_TTL_MINUTES" default:"43200"`
}

// RefreshTokenTTL returns the refresh token TTL configured in minutes.
func (j JWTConfig) RefreshTokenTTL() time.Duration {
	if j.RefreshTokenTTLMinutes <= 0 {
		return 0
	}
	return time.Duration(j.RefreshTokenTTLMinutes) * time.Minute
}

type PasswordConfig struct {
	ArgonMemoryKB    int `envconfig:"HOTPOS_ARGON_MEMORY_KB" default:"65536"`
	ArgonTime        int `envconfig:"HOTPOS_ARGON_TIME" default:"3"`
	ArgonParallelism int `envconfig:"HOTPOS_ARGON_PARALLELISM" default:"2"`
	ArgonSaltLen     int `envconfig:"HOTPOS_ARGON_SALT_LEN" default:"16"`
	ArgonKeyLen      int `envconfig:"HOTPOS_ARGON_KEY_LEN" default:"32"`
}

type FeatureFlagsConfig struct {
	UseSQLite   bool `envconfig:"HOTPOS_USE_SQLITE" default:"false"`
	AutoMigrate bool `envconfig:"HOTPOS_AUTO_MIGRATE" default:"false"`
}

type InventoryConfig struct {
	LowStockThreshold   int           `envconfig:"HOTPOS_LOW_STOCK_THRESHOLD" default:"5"`
	TransferAutoExpire  time.Duration `envconfig:"HOTPOS_TRANSFER_AUTO_EXPIRE" default:"0"`
	ReportsCacheTTL     time.Duration `envconfig:"HOTPOS_REPORTS_CACHE_TTL" default:"60s"`
	SequencePrefixWidth int           `envconfig:"HOTPOS_SEQUENCE_PREFIX_WIDTH" default:"5"`
}

type GCPConfig struct {
	ProjectID              string `envconfig:"HOTPOS_GCP_PROJECT_ID"`
	CredentialsJSON        string `envconfig:"HOTPOS_GCP_CREDENTIALS_JSON"`
	ApplicationCredentials string `envconfig:"HOTPOS_GOOGLE_APPLICATION_CREDENTIALS"`
}

type PubSubConfig struct {
	StockEventsTopic string `envconfig:"HOTPOS_PUBSUB_STOCK_EVENTS_TOPIC" default:"hotpos-stock-events"`
	SalesEventsTopic string `envconfig:"HOTPOS_PUBSUB_SALES_EVENTS_TOPIC" default:"hotpos-sales-events"`
}

type OutboxConfig struct {
	BatchSize      int `envconfig:"HOTPOS_OUTBOX_PUBLISH_BATCH_SIZE" default:"50"`
	PollIntervalMS int `envconfig:"HOTPOS_OUTBOX_PUBLISH_POLL_MS" default:"500"`
	MaxAttempts    int `envconfig:"HOTPOS_OUTBOX_MAX_ATTEMPTS" default:"10"`
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
