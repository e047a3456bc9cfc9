package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Draft storage backends.
const (
	DraftBackendRedis    = "redis"
	DraftBackendPostgres = "postgres"
	DraftBackendSQLite   = "sqlite"
	DraftBackendMemory   = "memory"
)

// Config holds all application configuration.
type Config struct {
	ServerPort  string
	GinMode     string
	LogLevel    string
	LogFormat   string
	DatabaseURL string
	MaxDBConns  int32
	// ConnectAttempts bounds startup retries for Postgres and Redis so the
	// gateway can come up before its stores do.
	ConnectAttempts int
	RedisURL        string
	JWTSecret       string
	JWTIssuer       string
	// AllowedOrigins controls HTTP CORS and WebSocket origin validation.
	// Empty slice means all origins are permitted (dev default).
	AllowedOrigins []string

	// UpstreamBaseURL is the root of the remote assessment REST API.
	UpstreamBaseURL string
	UpstreamTimeout time.Duration

	// DraftBackend selects where in-flight drafts live: redis, postgres, sqlite or memory.
	DraftBackend string
	// DraftMirror mirrors Redis drafts into Postgres through the draft worker.
	DraftMirror bool
	DraftTTL    time.Duration
	SQLitePath  string

	SubmitTimeout   time.Duration
	SessionIdle     time.Duration
	SweepSchedule   string
	RateLimitPerMin int

	// MockPort and MockFixtures configure cmd/mock-upstream. An empty
	// fixtures path serves the built-in sample.
	MockPort     string
	MockFixtures string
}

// Load reads configuration from environment variables with sensible defaults.
// It loads .env file if present but does not fail if missing.
func Load() *Config {
	_ = godotenv.Load() // .env is optional

	return &Config{
		ServerPort:      getEnv("SERVER_PORT", "8080"),
		GinMode:         getEnv("GIN_MODE", "debug"),
		LogLevel:        getEnv("LOG_LEVEL", "info"),
		LogFormat:       getEnv("LOG_FORMAT", "pretty"),
		DatabaseURL:     getEnv("DATABASE_URL", ""),
		MaxDBConns:      int32(getEnvInt("MAX_DB_CONNS", 16)),
		ConnectAttempts: getEnvInt("CONNECT_ATTEMPTS", 5),
		RedisURL:        getEnv("REDIS_URL", ""),
		JWTSecret:       getEnv("JWT_SECRET", "change-this-to-a-secure-random-string"),
		JWTIssuer:       getEnv("JWT_ISSUER", ""),
		AllowedOrigins:  parseOrigins(getEnv("ALLOWED_ORIGINS", "")),
		UpstreamBaseURL: strings.TrimRight(getEnv("UPSTREAM_BASE_URL", "http://localhost:8090/api"), "/"),
		UpstreamTimeout: time.Duration(getEnvInt("UPSTREAM_TIMEOUT_SECONDS", 10)) * time.Second,
		DraftBackend:    strings.ToLower(getEnv("DRAFT_BACKEND", DraftBackendMemory)),
		DraftMirror:     getEnvBool("DRAFT_MIRROR", false),
		DraftTTL:        time.Duration(getEnvInt("DRAFT_TTL_HOURS", 72)) * time.Hour,
		SQLitePath:      getEnv("SQLITE_PATH", "./drafts.db"),
		SubmitTimeout:   time.Duration(getEnvInt("SUBMIT_TIMEOUT_SECONDS", 30)) * time.Second,
		SessionIdle:     time.Duration(getEnvInt("SESSION_IDLE_MINUTES", 30)) * time.Minute,
		SweepSchedule:   getEnv("SWEEP_SCHEDULE", "@every 1m"),
		RateLimitPerMin: getEnvInt("RATE_LIMIT_PER_MINUTE", 120),
		MockPort:        getEnv("MOCK_PORT", "8090"),
		MockFixtures:    getEnv("MOCK_FIXTURES", ""),
	}
}

// HasPostgres reports whether a database URL was configured.
func (c *Config) HasPostgres() bool { return c.DatabaseURL != "" }

// HasRedis reports whether a Redis URL was configured.
func (c *Config) HasRedis() bool { return c.RedisURL != "" }

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func getEnvBool(key string, fallback bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return b
}

// parseOrigins splits a comma-separated origins string into a trimmed slice.
// Returns nil (allow-all) if the input is empty.
func parseOrigins(raw string) []string {
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	origins := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			origins = append(origins, trimmed)
		}
	}
	return origins
}
