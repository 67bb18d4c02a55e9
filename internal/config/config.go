package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config aggregates runtime configuration for the service.
type Config struct {
	App          AppConfig
	Postgres     PostgresConfig
	Redis        RedisConfig
	Logger       LoggerConfig
	Auth         AuthConfig
	Routing      RoutingConfig
	TAT          TATConfig
	Outbox       OutboxConfig
	Notification NotificationConfig
}

// AppConfig controls server level behavior.
type AppConfig struct {
	Name                  string
	Env                   string
	Host                  string
	Port                  string
	Version               string
	RequestTimeoutSeconds int
}

// PostgresConfig holds DB connection values.
type PostgresConfig struct {
	DSN            string
	MaxConns       int32
	MinConns       int32
	RunMigrations  bool
	ConnMaxIdleSec int32
	ConnMaxLifeSec int32
}

// RedisConfig holds Redis connection values.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// LoggerConfig configures logging behavior.
type LoggerConfig struct {
	Level  string
	Format string
}

// AuthConfig defines authentication parameters.
type AuthConfig struct {
	JWTSecret             string
	AccessTokenTTLMinutes int
	BcryptCost            int
}

// RoutingConfig bounds the assignment and forwarding behavior.
type RoutingConfig struct {
	ForwardCeiling         int
	MaxMetadataBytes       int
	StatusCacheTTLSeconds  int
	SuperAdminCacheTTLSecs int
}

// TATConfig defines turnaround-time defaults.
type TATConfig struct {
	DefaultHours int
	AckHours     int
}

// OutboxConfig bounds the dispatcher and the overdue sweeper.
type OutboxConfig struct {
	BatchSize             int
	MaxAttempts           int
	PollIntervalSeconds   int
	HandlerTimeoutSeconds int
	SweepIntervalSeconds  int
	SweepBatchSize        int
}

// NotificationConfig holds outbound channel endpoints.
type NotificationConfig struct {
	EmailFrom  string
	WebhookURL string
}

// Load reads configuration from environment variables, applying defaults where possible.
func Load() (*Config, error) {
	_ = godotenv.Load()

	redisDB, err := strconv.Atoi(getEnv("REDIS_DB", "0"))
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_DB: %w", err)
	}

	cfg := &Config{
		App: AppConfig{
			Name:                  getEnv("APP_NAME", "helpdesk-service"),
			Env:                   getEnv("APP_ENV", "development"),
			Host:                  getEnv("APP_HOST", "0.0.0.0"),
			Port:                  getEnv("APP_PORT", "8080"),
			Version:               getEnv("APP_VERSION", "dev"),
			RequestTimeoutSeconds: getEnvAsInt("HTTP_REQUEST_TIMEOUT_SECONDS", 30),
		},
		Postgres: PostgresConfig{
			DSN:            os.Getenv("POSTGRES_DSN"),
			MaxConns:       int32(getEnvAsInt("POSTGRES_MAX_CONNS", 10)),
			MinConns:       int32(getEnvAsInt("POSTGRES_MIN_CONNS", 2)),
			RunMigrations:  getEnvAsBool("POSTGRES_RUN_MIGRATIONS", true),
			ConnMaxIdleSec: int32(getEnvAsInt("POSTGRES_CONN_MAX_IDLE_SECONDS", 30)),
			ConnMaxLifeSec: int32(getEnvAsInt("POSTGRES_CONN_MAX_LIFE_SECONDS", 300)),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "127.0.0.1:6379"),
			Password: os.Getenv("REDIS_PASSWORD"),
			DB:       redisDB,
		},
		Logger: LoggerConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "json"),
		},
		Auth: AuthConfig{
			JWTSecret:             getEnv("AUTH_JWT_SECRET", "dev-secret"),
			AccessTokenTTLMinutes: getEnvAsInt("AUTH_ACCESS_TOKEN_TTL_MINUTES", 60),
			BcryptCost:            getEnvAsInt("AUTH_BCRYPT_COST", 12),
		},
		Routing: RoutingConfig{
			ForwardCeiling:         getEnvAsInt("ROUTING_FORWARD_CEILING", 3),
			MaxMetadataBytes:       getEnvAsInt("ROUTING_MAX_METADATA_BYTES", 16384),
			StatusCacheTTLSeconds:  getEnvAsInt("STATUS_CACHE_TTL_SECONDS", 60),
			SuperAdminCacheTTLSecs: getEnvAsInt("SUPER_ADMIN_CACHE_TTL_SECONDS", 300),
		},
		TAT: TATConfig{
			DefaultHours: getEnvAsInt("TAT_DEFAULT_HOURS", 48),
			AckHours:     getEnvAsInt("TAT_ACK_HOURS", 24),
		},
		Outbox: OutboxConfig{
			BatchSize:             getEnvAsInt("OUTBOX_BATCH_SIZE", 10),
			MaxAttempts:           getEnvAsInt("OUTBOX_MAX_ATTEMPTS", 3),
			PollIntervalSeconds:   getEnvAsInt("OUTBOX_POLL_INTERVAL_SECONDS", 5),
			HandlerTimeoutSeconds: getEnvAsInt("OUTBOX_HANDLER_TIMEOUT_SECONDS", 5),
			SweepIntervalSeconds:  getEnvAsInt("TAT_SWEEP_INTERVAL_SECONDS", 300),
			SweepBatchSize:        getEnvAsInt("TAT_SWEEP_BATCH_SIZE", 100),
		},
		Notification: NotificationConfig{
			EmailFrom:  getEnv("NOTIFY_EMAIL_FROM", "helpdesk@example.edu"),
			WebhookURL: getEnv("NOTIFY_WEBHOOK_URL", ""),
		},
	}

	return cfg, nil
}

// Addr returns the HTTP bind address.
func (a AppConfig) Addr() string {
	return fmt.Sprintf("%s:%s", a.Host, a.Port)
}

// RequestTimeout returns the configured request timeout duration.
func (a AppConfig) RequestTimeout() time.Duration {
	if a.RequestTimeoutSeconds <= 0 {
		return 0
	}
	return time.Duration(a.RequestTimeoutSeconds) * time.Second
}

// DefaultTAT returns the default resolution window.
func (t TATConfig) DefaultTAT() time.Duration {
	if t.DefaultHours <= 0 {
		return 48 * time.Hour
	}
	return time.Duration(t.DefaultHours) * time.Hour
}

// AckTAT returns the acknowledgement window.
func (t TATConfig) AckTAT() time.Duration {
	if t.AckHours <= 0 {
		return 24 * time.Hour
	}
	return time.Duration(t.AckHours) * time.Hour
}

// PollInterval returns the dispatcher poll interval.
func (o OutboxConfig) PollInterval() time.Duration {
	return time.Duration(o.PollIntervalSeconds) * time.Second
}

// HandlerTimeout returns the per-handler timeout.
func (o OutboxConfig) HandlerTimeout() time.Duration {
	return time.Duration(o.HandlerTimeoutSeconds) * time.Second
}

// SweepInterval returns the overdue sweep interval.
func (o OutboxConfig) SweepInterval() time.Duration {
	return time.Duration(o.SweepIntervalSeconds) * time.Second
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(val)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvAsBool(key string, fallback bool) bool {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(val)
	if err != nil {
		return fallback
	}
	return parsed
}
