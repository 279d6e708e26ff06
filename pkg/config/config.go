package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

const (
	EnvPrefix = ""

	AppEnvDev  = "dev"
	AppEnvProd = "prod"

	EnvDBDSN  = "SUBTRACK_DB_DSN"
	EnvDBHost = "SUBTRACK_DB_HOST"
	EnvDBUser = "SUBTRACK_DB_USER"
	EnvDBName = "SUBTRACK_DB_NAME"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}

type Config struct {
	App           AppConfig
	Service       ServiceConfig
	DB            DBConfig
	Redis         RedisConfig
	JWT           JWTConfig
	MagicLink     MagicLinkConfig
	AuthRateLimit AuthRateLimitConfig
	FeatureFlags  FeatureFlagsConfig
	GCP           GCPConfig
	PubSub        PubSubConfig
	Mailer        MailerConfig
	Cron          CronConfig
	Outbox        OutboxConfig
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
	Env          string `envconfig:"SUBTRACK_APP_ENV" required:"true"`
	Port         string `envconfig:"SUBTRACK_APP_PORT" required:"true"`
	BaseURL      string `envconfig:"SUBTRACK_APP_BASE_URL" default:"http://localhost:5173"`
	LogLevel     string `envconfig:"SUBTRACK_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"SUBTRACK_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type ServiceConfig struct {
	Kind string `envconfig:"SUBTRACK_SERVICE_KIND" default:"api"`
}

type DBConfig struct {
	DSN    string `envconfig:"SUBTRACK_DB_DSN"`
	Driver string `envconfig:"SUBTRACK_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"SUBTRACK_DB_HOST"`
	LegacyPort     int    `envconfig:"SUBTRACK_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"SUBTRACK_DB_USER"`
	LegacyPassword string `envconfig:"SUBTRACK_DB_PASSWORD"`
	LegacyName     string `envconfig:"SUBTRACK_DB_NAME"`
	LegacySSLMode  string `envconfig:"SUBTRACK_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"SUBTRACK_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"SUBTRACK_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"SUBTRACK_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"SUBTRACK_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"SUBTRACK_REDIS_URL" required:"true"`
	Address      string        `envconfig:"SUBTRACK_REDIS_ADDR"`
	Password     string        `envconfig:"SUBTRACK_REDIS_PASSWORD"`
	DB           int           `envconfig:"SUBTRACK_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"SUBTRACK_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"SUBTRACK_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"SUBTRACK_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"SUBTRACK_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"SUBTRACK_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type JWTConfig struct {
	Secret                 string `envconfig:"SUBTRACK_JWT_SECRET" required:"true"`
	Issuer                 string `envconfig:"SUBTRACK_JWT_ISSUER" required:"true"`
	ExpirationMinutes      int    `envconfig:"SUBTRACK_JWT_EXPIRATION_MINUTES" required:"true"`
	RefreshTokenTTLMinutes int    `envconfig:"SUBTRACK_REFRESH_TOKEN_TTL_MINUTES" default:"43200"`
}

// RefreshTokenTTL returns the refresh token TTL configured in minutes.
func (j JWTConfig) RefreshTokenTTL() time.Duration {
	if j.RefreshTokenTTLMinutes <= 0 {
		return 0
	}
	return time.Duration(j.RefreshTokenTTLMinutes) * time.Minute
}

type MagicLinkConfig struct {
	TokenTTL time.Duration `envconfig:"SUBTRACK_MAGIC_LINK_TOKEN_TTL" default:"30m"`
}

type AuthRateLimitConfig struct {
	MagicLinkWindow     time.Duration `envconfig:"SUBTRACK_AUTH_RATE_LIMIT_MAGIC_LINK_WINDOW" default:"1m"`
	MagicLinkEmailLimit int           `envconfig:"SUBTRACK_AUTH_RATE_LIMIT_MAGIC_LINK_EMAIL_LIMIT" default:"3"`
	MagicLinkIPLimit    int           `envconfig:"SUBTRACK_AUTH_RATE_LIMIT_MAGIC_LINK_IP_LIMIT" default:"20"`
}

type FeatureFlagsConfig struct {
	UseSQLite   bool `envconfig:"SUBTRACK_USE_SQLITE" default:"false"`
	AutoMigrate bool `envconfig:"SUBTRACK_AUTO_MIGRATE" default:"false"`
}

type GCPConfig struct {
	ProjectID       string `envconfig:"SUBTRACK_GCP_PROJECT_ID" required:"true"`
	CredentialsJSON string `envconfig:"SUBTRACK_GCP_CREDENTIALS_JSON"`
}

type PubSubConfig struct {
	EmailTopic        string `envconfig:"SUBTRACK_PUBSUB_EMAIL_TOPIC" default:"st-email-events"`
	EmailSubscription string `envconfig:"SUBTRACK_PUBSUB_EMAIL_SUBSCRIPTION" required:"true"`
}

type MailerConfig struct {
	FromAddress string `envconfig:"SUBTRACK_MAILER_FROM" default:"no-reply@subtrack.io"`
	FromName    string `envconfig:"SUBTRACK_MAILER_FROM_NAME" default:"Subtrack"`
}

type CronConfig struct {
	Interval time.Duration `envconfig:"SUBTRACK_CRON_INTERVAL" default:"1h"`
}

type OutboxConfig struct {
	BatchSize      int `envconfig:"SUBTRACK_OUTBOX_PUBLISH_BATCH_SIZE" default:"50"`
	PollIntervalMS int `envconfig:"SUBTRACK_OUTBOX_PUBLISH_POLL_MS" default:"500"`
	MaxAttempts    int `envconfig:"SUBTRACK_OUTBOX_MAX_ATTEMPTS" default:"10"`
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
