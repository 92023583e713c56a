package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/kelseyhightower/envconfig"
)

const (
	EnvPrefix = "ROUTER"

	AppEnvDev  = "dev"
	AppEnvProd = "prod"

	EnvAppEnv            = "ROUTER_APP_ENV"
	EnvDBDSN             = "ROUTER_DB_DSN"
	EnvDBHost            = "ROUTER_DB_HOST"
	EnvDBUser            = "ROUTER_DB_USER"
	EnvDBName            = "ROUTER_DB_NAME"
	EnvRedisURL          = "ROUTER_REDIS_URL"
	EnvNotifierTransport = "ROUTER_NOTIFIER_TRANSPORT"
	EnvAMQPURL           = "ROUTER_AMQP_URL"
	EnvGCPProjectID      = "ROUTER_GCP_PROJECT_ID"
	EnvPubSubTopic       = "ROUTER_PUBSUB_NOTIFICATION_TOPIC"

	TransportAMQP   = "amqp"
	TransportPubSub = "pubsub"
	TransportLog    = "log"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}

type Config struct {
	App          AppConfig
	Service      ServiceConfig
	DB           DBConfig
	Redis        RedisConfig
	FeatureFlags FeatureFlagsConfig
	Scheduler    SchedulerConfig
	Routing      RoutingConfig
	Notifier     NotifierConfig
	AMQP         AMQPConfig
	GCP          GCPConfig
	PubSub       PubSubConfig
	Ops          OpsConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.DB.ensureDSN(); err != nil {
		return nil, err
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	switch c.Notifier.Transport {
	case TransportAMQP:
		if strings.TrimSpace(c.AMQP.URL) == "" {
			return fmt.Errorf("%s is required when %s=%s", EnvAMQPURL, EnvNotifierTransport, TransportAMQP)
		}
	case TransportPubSub:
		if strings.TrimSpace(c.GCP.ProjectID) == "" {
			return fmt.Errorf("%s is required when %s=%s", EnvGCPProjectID, EnvNotifierTransport, TransportPubSub)
		}
		if strings.TrimSpace(c.PubSub.NotificationTopic) == "" {
			return fmt.Errorf("%s is required when %s=%s", EnvPubSubTopic, EnvNotifierTransport, TransportPubSub)
		}
	}
	return nil
}

type AppConfig struct {
	Env          string `envconfig:"ROUTER_APP_ENV" required:"true"`
	LogLevel     string `envconfig:"ROUTER_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"ROUTER_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type ServiceConfig struct {
	Kind string `envconfig:"ROUTER_SERVICE_KIND" default:"router-worker"`
}

type DBConfig struct {
	DSN    string `envconfig:"ROUTER_DB_DSN"`
	Driver string `envconfig:"ROUTER_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"ROUTER_DB_HOST"`
	LegacyPort     int    `envconfig:"ROUTER_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"ROUTER_DB_USER"`
	LegacyPassword string `envconfig:"ROUTER_DB_PASSWORD"`
	LegacyName     string `envconfig:"ROUTER_DB_NAME"`
	LegacySSLMode  string `envconfig:"ROUTER_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"ROUTER_DB_MAX_OPEN_CONNS" default:"10"`
	MaxIdleConns    int           `envconfig:"ROUTER_DB_MAX_IDLE_CONNS" default:"5"`
	ConnMaxLifetime time.Duration `envconfig:"ROUTER_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"ROUTER_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"ROUTER_REDIS_URL" required:"true"`
	Address      string        `envconfig:"ROUTER_REDIS_ADDR"`
	Password     string        `envconfig:"ROUTER_REDIS_PASSWORD"`
	DB           int           `envconfig:"ROUTER_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"ROUTER_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"ROUTER_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"ROUTER_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"ROUTER_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"ROUTER_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type FeatureFlagsConfig struct {
	AutoMigrate bool `envconfig:"ROUTER_AUTO_MIGRATE" default:"false"`
}

// SchedulerConfig drives the periodic worker.
type SchedulerConfig struct {
	Interval         time.Duration `envconfig:"ROUTER_SCHEDULER_INTERVAL" default:"1m" validate:"gt=0"`
	BatchSize        int           `envconfig:"ROUTER_SCHEDULER_BATCH_SIZE" default:"50" validate:"min=1,max=1000"`
	BackfillLookback time.Duration `envconfig:"ROUTER_SCHEDULER_BACKFILL_LOOKBACK" default:"48h" validate:"gt=0"`
	SingleFlight     bool          `envconfig:"ROUTER_SCHEDULER_SINGLE_FLIGHT" default:"false"`
}

// RoutingConfig holds the fallback values used when router_settings is
// missing or malformed.
type RoutingConfig struct {
	DefaultSLAMinutes  int `envconfig:"ROUTER_DEFAULT_SLA_MINUTES" default:"15" validate:"min=1"`
	DefaultMaxAttempts int `envconfig:"ROUTER_DEFAULT_MAX_ATTEMPTS" default:"2" validate:"min=1"`
}

type NotifierConfig struct {
	Transport        string        `envconfig:"ROUTER_NOTIFIER_TRANSPORT" default:"log" validate:"oneof=amqp pubsub log"`
	FailureCooldown  time.Duration `envconfig:"ROUTER_NOTIFIER_FAILURE_COOLDOWN" default:"15m" validate:"gt=0"`
	LogRetentionDays int           `envconfig:"ROUTER_NOTIFIER_LOG_RETENTION_DAYS" default:"30" validate:"min=1"`
	PublishTimeout   time.Duration `envconfig:"ROUTER_NOTIFIER_PUBLISH_TIMEOUT" default:"10s" validate:"gt=0"`
	AssignedTemplate string        `envconfig:"ROUTER_NOTIFIER_ASSIGNED_TEMPLATE" default:"lead_assigned"`
	LostLeadTemplate string        `envconfig:"ROUTER_NOTIFIER_LOST_TEMPLATE" default:"lead_lost_sla_timeout"`
	ProducerName     string        `envconfig:"ROUTER_NOTIFIER_PRODUCER" default:"lead-router"`
}

type AMQPConfig struct {
	URL                string `envconfig:"ROUTER_AMQP_URL"`
	Exchange           string `envconfig:"ROUTER_AMQP_EXCHANGE" default:"notifications"`
	RoutingKey         string `envconfig:"ROUTER_AMQP_ROUTING_KEY" default:"notifications.email.v1"`
	PublishPoolSize    int    `envconfig:"ROUTER_AMQP_PUBLISH_POOL_SIZE" default:"4"`
	ConnTimeoutSeconds int    `envconfig:"ROUTER_AMQP_CONN_TIMEOUT_SECONDS" default:"30"`
	PoolRetryDelayMs   int    `envconfig:"ROUTER_AMQP_POOL_RETRY_DELAY_MS" default:"50"`
}

type GCPConfig struct {
	ProjectID string `envconfig:"ROUTER_GCP_PROJECT_ID"`
}

type PubSubConfig struct {
	NotificationTopic string `envconfig:"ROUTER_PUBSUB_NOTIFICATION_TOPIC"`
}

type OpsConfig struct {
	ListenAddr string `envconfig:"ROUTER_OPS_LISTEN_ADDR" default:":9090"`
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
