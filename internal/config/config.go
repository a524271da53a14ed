package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Store backends accepted by STORE_BACKEND.
const (
	StoreBackendPostgres = "postgres"
	StoreBackendMongo    = "mongo"
	StoreBackendMemory   = "memory"
)

// Config aggregates runtime configuration for the bot.
type Config struct {
	App      AppConfig
	Discord  DiscordConfig
	Store    StoreConfig
	Postgres PostgresConfig
	Mongo    MongoConfig
	Redis    RedisConfig
	Logger   LoggerConfig
	Auth     AuthConfig
	Ticket   TicketConfig
}

// AppConfig controls the admin HTTP server.
type AppConfig struct {
	Name                  string
	Env                   string
	Host                  string
	Port                  string
	Version               string
	RequestTimeoutSeconds int
}

// DiscordConfig holds gateway credentials.
type DiscordConfig struct {
	Token         string
	ApplicationID string
	// DevGuildID registers commands on a single guild instead of globally.
	DevGuildID string
}

// StoreConfig selects the document store backend.
type StoreConfig struct {
	Backend string
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

// MongoConfig holds MongoDB connection values.
type MongoConfig struct {
	URI      string
	Database string
}

// RedisConfig holds Redis connection values.
type RedisConfig struct {
	Addr         string
	Password     string
	DB           int
	EventChannel string
}

// LoggerConfig configures logging behavior.
type LoggerConfig struct {
	Level string
}

// AuthConfig defines admin API authentication parameters.
type AuthConfig struct {
	JWTSecret             string
	AccessTokenTTLMinutes int
	AdminUsername         string
	AdminPasswordHash     string
}

// TicketConfig tunes the ticket lifecycle.
type TicketConfig struct {
	ChannelPrefix      string
	TranscriptPageSize int
	PromptTimeout      time.Duration
	TranscriptTimezone *time.Location
}

// Load reads configuration from environment variables, applying defaults where possible.
func Load() (*Config, error) {
	_ = godotenv.Load()

	redisDB, err := strconv.Atoi(getEnv("REDIS_DB", "0"))
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_DB: %w", err)
	}

	backend := strings.ToLower(getEnv("STORE_BACKEND", StoreBackendPostgres))
	switch backend {
	case StoreBackendPostgres, StoreBackendMongo, StoreBackendMemory:
	default:
		return nil, fmt.Errorf("invalid STORE_BACKEND %q", backend)
	}

	tz, err := time.LoadLocation(getEnv("TICKET_TRANSCRIPT_TIMEZONE", "UTC"))
	if err != nil {
		return nil, fmt.Errorf("invalid TICKET_TRANSCRIPT_TIMEZONE: %w", err)
	}

	maxConns := int32(getEnvAsInt("POSTGRES_MAX_CONNS", 10))
	minConns := int32(getEnvAsInt("POSTGRES_MIN_CONNS", 2))
	runMigrations := getEnvAsBool("POSTGRES_RUN_MIGRATIONS", true)
	connMaxIdle := int32(getEnvAsInt("POSTGRES_CONN_MAX_IDLE_SECONDS", 30))
	connMaxLife := int32(getEnvAsInt("POSTGRES_CONN_MAX_LIFE_SECONDS", 300))

	cfg := &Config{
		App: AppConfig{
			Name:                  getEnv("APP_NAME", "ticket-bot"),
			Env:                   getEnv("APP_ENV", "development"),
			Host:                  getEnv("APP_HOST", "0.0.0.0"),
			Port:                  getEnv("APP_PORT", "8080"),
			Version:               getEnv("APP_VERSION", "dev"),
			RequestTimeoutSeconds: getEnvAsInt("HTTP_REQUEST_TIMEOUT_SECONDS", 30),
		},
		Discord: DiscordConfig{
			Token:         os.Getenv("DISCORD_TOKEN"),
			ApplicationID: os.Getenv("DISCORD_APPLICATION_ID"),
			DevGuildID:    os.Getenv("DISCORD_DEV_GUILD_ID"),
		},
		Store: StoreConfig{
			Backend: backend,
		},
		Postgres: PostgresConfig{
			DSN:            os.Getenv("POSTGRES_DSN"),
			MaxConns:       maxConns,
			MinConns:       minConns,
			RunMigrations:  runMigrations,
			ConnMaxIdleSec: connMaxIdle,
			ConnMaxLifeSec: connMaxLife,
		},
		Mongo: MongoConfig{
			URI:      getEnv("MONGO_URI", "mongodb://127.0.0.1:27017"),
			Database: getEnv("MONGO_DATABASE", "ticketbot"),
		},
		Redis: RedisConfig{
			Addr:         getEnv("REDIS_ADDR", "127.0.0.1:6379"),
			Password:     os.Getenv("REDIS_PASSWORD"),
			DB:           redisDB,
			EventChannel: getEnv("REDIS_EVENT_CHANNEL", "ticketbot:events"),
		},
		Logger: LoggerConfig{
			Level: getEnv("LOG_LEVEL", "info"),
		},
		Auth: AuthConfig{
			JWTSecret:             getEnv("AUTH_JWT_SECRET", "dev-secret"),
			AccessTokenTTLMinutes: getEnvAsInt("AUTH_ACCESS_TOKEN_TTL_MINUTES", 60),
			AdminUsername:         getEnv("AUTH_ADMIN_USERNAME", "admin"),
			AdminPasswordHash:     os.Getenv("AUTH_ADMIN_PASSWORD_HASH"),
		},
		Ticket: TicketConfig{
			ChannelPrefix:      getEnv("TICKET_CHANNEL_PREFIX", "ticket"),
			TranscriptPageSize: getEnvAsInt("TICKET_TRANSCRIPT_PAGE_SIZE", 100),
			PromptTimeout:      getEnvAsDuration("TICKET_PROMPT_TIMEOUT", 2*time.Minute),
			TranscriptTimezone: tz,
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

func getEnvAsDuration(key string, fallback time.Duration) time.Duration {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := time.ParseDuration(val)
	if err != nil || parsed <= 0 {
		return fallback
	}
	return parsed
}
