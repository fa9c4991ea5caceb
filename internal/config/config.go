package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const defaultJWTSecret = "dev-secret"

// Supported DB_DRIVER values.
const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

// Config aggregates runtime configuration for the service.
type Config struct {
	App      AppConfig
	Database DatabaseConfig
	Redis    RedisConfig
	Logger   LoggerConfig
	Auth     AuthConfig
	Events   EventsConfig
	Seed     SeedConfig
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

// DatabaseConfig selects and configures the account store.
type DatabaseConfig struct {
	Driver     string
	Postgres   PostgresConfig
	SQLitePath string
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
	Addr                     string
	Password                 string
	DB                       int
	DashboardCacheTTLSeconds int
}

// LoggerConfig configures logging behavior.
type LoggerConfig struct {
	Level       string
	Development bool
}

// AuthConfig defines authentication parameters.
type AuthConfig struct {
	JWTSecret           string
	TokenTTLHours       int
	BcryptCost          int
	MaxLoginAttempts    int
	LockDurationMinutes int
	MinPasswordLength   int
}

// EventsConfig configures forwarding of account events.
type EventsConfig struct {
	RabbitMQURL string
	Queue       string
}

// SeedConfig holds the bootstrap administrator credentials.
type SeedConfig struct {
	AdminEmail    string
	AdminPassword string
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
			Name:                  getEnv("APP_NAME", "attendance-service"),
			Env:                   getEnv("APP_ENV", "development"),
			Host:                  getEnv("APP_HOST", "0.0.0.0"),
			Port:                  getEnv("APP_PORT", "5000"),
			Version:               getEnv("APP_VERSION", "dev"),
			RequestTimeoutSeconds: getEnvAsInt("HTTP_REQUEST_TIMEOUT_SECONDS", 30),
		},
		Database: DatabaseConfig{
			Driver: strings.ToLower(getEnv("DB_DRIVER", DriverPostgres)),
			Postgres: PostgresConfig{
				DSN:            os.Getenv("POSTGRES_DSN"),
				MaxConns:       int32(getEnvAsInt("POSTGRES_MAX_CONNS", 10)),
				MinConns:       int32(getEnvAsInt("POSTGRES_MIN_CONNS", 2)),
				RunMigrations:  getEnvAsBool("POSTGRES_RUN_MIGRATIONS", true),
				ConnMaxIdleSec: int32(getEnvAsInt("POSTGRES_CONN_MAX_IDLE_SECONDS", 30)),
				ConnMaxLifeSec: int32(getEnvAsInt("POSTGRES_CONN_MAX_LIFE_SECONDS", 300)),
			},
			SQLitePath: getEnv("SQLITE_PATH", "attendance.db"),
		},
		Redis: RedisConfig{
			Addr:                     getEnv("REDIS_ADDR", "127.0.0.1:6379"),
			Password:                 os.Getenv("REDIS_PASSWORD"),
			DB:                       redisDB,
			DashboardCacheTTLSeconds: getEnvAsInt("DASHBOARD_CACHE_TTL_SECONDS", 60),
		},
		Logger: LoggerConfig{
			Level:       getEnv("LOG_LEVEL", "info"),
			Development: getEnvAsBool("LOG_DEVELOPMENT", false),
		},
		Auth: AuthConfig{
			JWTSecret:           getEnv("AUTH_JWT_SECRET", defaultJWTSecret),
			TokenTTLHours:       getEnvAsInt("AUTH_TOKEN_TTL_HOURS", 7*24),
			BcryptCost:          getEnvAsInt("AUTH_BCRYPT_COST", 12),
			MaxLoginAttempts:    getEnvAsInt("AUTH_MAX_LOGIN_ATTEMPTS", 5),
			LockDurationMinutes: getEnvAsInt("AUTH_LOCK_DURATION_MINUTES", 30),
			MinPasswordLength:   getEnvAsInt("AUTH_MIN_PASSWORD_LENGTH", 8),
		},
		Events: EventsConfig{
			RabbitMQURL: os.Getenv("RABBITMQ_URL"),
			Queue:       getEnv("EVENTS_QUEUE", "account.events"),
		},
		Seed: SeedConfig{
			AdminEmail:    getEnv("SEED_ADMIN_EMAIL", "admin@rsams.edu"),
			AdminPassword: getEnv("SEED_ADMIN_PASSWORD", "admin12345"),
		},
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	switch c.Database.Driver {
	case DriverPostgres, DriverSQLite:
	default:
		return fmt.Errorf("unsupported DB_DRIVER %q", c.Database.Driver)
	}
	if c.App.IsProduction() && c.Auth.JWTSecret == defaultJWTSecret {
		return errors.New("AUTH_JWT_SECRET must be set in production")
	}
	if c.Auth.MaxLoginAttempts <= 0 {
		return fmt.Errorf("invalid AUTH_MAX_LOGIN_ATTEMPTS: %d", c.Auth.MaxLoginAttempts)
	}
	return nil
}

// Addr returns the HTTP bind address.
func (a AppConfig) Addr() string {
	return fmt.Sprintf("%s:%s", a.Host, a.Port)
}

// IsProduction reports whether the service runs with production settings.
func (a AppConfig) IsProduction() bool {
	return strings.EqualFold(a.Env, "production")
}

// RequestTimeout returns the configured request timeout duration.
func (a AppConfig) RequestTimeout() time.Duration {
	if a.RequestTimeoutSeconds <= 0 {
		return 0
	}
	return time.Duration(a.RequestTimeoutSeconds) * time.Second
}

// TokenTTL returns the bearer token lifetime.
func (a AuthConfig) TokenTTL() time.Duration {
	return time.Duration(a.TokenTTLHours) * time.Hour
}

// LockDuration returns how long an account stays locked after too many failures.
func (a AuthConfig) LockDuration() time.Duration {
	return time.Duration(a.LockDurationMinutes) * time.Minute
}

// DashboardCacheTTL returns the dashboard stats cache lifetime.
func (r RedisConfig) DashboardCacheTTL() time.Duration {
	return time.Duration(r.DashboardCacheTTLSeconds) * time.Second
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
