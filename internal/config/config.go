package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	ServerPort              string
	ServerReadHeaderTimeout time.Duration
	ServerWriteTimeout      time.Duration
	ServerIdleTimeout       time.Duration
	RequestTimeout          time.Duration

	BackendURL string
	APITimeout time.Duration

	DatabaseURL string
	DBMaxConns  int32
	DBMinConns  int32

	RedisURL     string
	RedisPrefix  string
	EphemeralTTL time.Duration
	// DurableRetention is how long untouched durable entries are kept.
	DurableRetention time.Duration

	ContextCookieName string
	CookieSecure      bool

	SessionIdleTimeout time.Duration
	SessionCacheTTL    time.Duration
	GuardWaitTimeout   time.Duration

	CORSOrigins      []string
	RateLimitRPM     int
	AuthRateLimitRPM int

	LogLevel  string
	LogFormat string
}

// MockConfig configures the development backend.
type MockConfig struct {
	Port       string
	JWTSecret  string
	AccessTTL  time.Duration
	RefreshTTL time.Duration
	LogLevel   string
	LogFormat  string
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		ServerPort:              getEnv("SERVER_PORT", "8080"),
		ServerReadHeaderTimeout: getDuration("SERVER_READ_HEADER_TIMEOUT", 10*time.Second),
		ServerWriteTimeout:      getDuration("SERVER_WRITE_TIMEOUT", 60*time.Second),
		ServerIdleTimeout:       getDuration("SERVER_IDLE_TIMEOUT", 120*time.Second),
		RequestTimeout:          getDuration("REQUEST_TIMEOUT", 30*time.Second),
		BackendURL:              strings.TrimRight(getEnv("BACKEND_URL", ""), "/"),
		APITimeout:              getDuration("API_TIMEOUT", 15*time.Second),
		DatabaseURL:             strings.TrimSpace(os.Getenv("DATABASE_URL")),
		DBMaxConns:              int32(getInt("DB_MAX_CONNS", 10)),
		DBMinConns:              int32(getInt("DB_MIN_CONNS", 1)),
		RedisURL:                strings.TrimSpace(os.Getenv("REDIS_URL")),
		RedisPrefix:             getEnv("REDIS_PREFIX", "cc:ephemeral:"),
		EphemeralTTL:            getDuration("EPHEMERAL_TTL", 12*time.Hour),
		DurableRetention:        getDuration("DURABLE_RETENTION", 30*24*time.Hour),
		ContextCookieName:       getEnv("CONTEXT_COOKIE_NAME", "cc_ctx"),
		CookieSecure:            getBool("COOKIE_SECURE", false),
		SessionIdleTimeout:      getDuration("SESSION_IDLE_TIMEOUT", 20*time.Minute),
		SessionCacheTTL:         getDuration("SESSION_CACHE_TTL", 30*time.Minute),
		GuardWaitTimeout:        getDuration("GUARD_WAIT_TIMEOUT", 3*time.Second),
		CORSOrigins:             splitCSV(getEnv("CORS_ORIGINS", "http://localhost:5173")),
		RateLimitRPM:            getInt("RATE_LIMIT_RPM", 300),
		AuthRateLimitRPM:        getInt("AUTH_RATE_LIMIT_RPM", 10),
		LogLevel:                getEnv("LOG_LEVEL", "info"),
		LogFormat:               getEnv("LOG_FORMAT", "pretty"),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) Validate() error {
	if c.ServerPort == "" {
		return fmt.Errorf("SERVER_PORT cannot be empty")
	}

	if strings.TrimSpace(c.BackendURL) == "" {
		return fmt.Errorf("BACKEND_URL is required")
	}
	parsed, err := url.Parse(c.BackendURL)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return fmt.Errorf("BACKEND_URL must be an absolute URL")
	}

	if c.RequestTimeout <= 0 {
		return fmt.Errorf("REQUEST_TIMEOUT must be positive")
	}

	if c.APITimeout <= 0 {
		return fmt.Errorf("API_TIMEOUT must be positive")
	}

	if c.DBMinConns < 0 || c.DBMaxConns < c.DBMinConns {
		return fmt.Errorf("DB_MAX_CONNS must be at least DB_MIN_CONNS")
	}

	if c.EphemeralTTL <= 0 {
		return fmt.Errorf("EPHEMERAL_TTL must be positive")
	}

	if c.SessionIdleTimeout < 0 {
		return fmt.Errorf("SESSION_IDLE_TIMEOUT cannot be negative")
	}

	if strings.TrimSpace(c.ContextCookieName) == "" {
		return fmt.Errorf("CONTEXT_COOKIE_NAME cannot be empty")
	}

	return nil
}

func LoadMock() (*MockConfig, error) {
	_ = godotenv.Load()

	cfg := &MockConfig{
		Port:       getEnv("MOCK_PORT", "9090"),
		JWTSecret:  getEnv("MOCK_JWT_SECRET", "mock-secret"),
		AccessTTL:  getDuration("MOCK_ACCESS_TTL", 5*time.Minute),
		RefreshTTL: getDuration("MOCK_REFRESH_TTL", 24*time.Hour),
		LogLevel:   getEnv("LOG_LEVEL", "debug"),
		LogFormat:  getEnv("LOG_FORMAT", "pretty"),
	}

	if cfg.Port == "" {
		return nil, fmt.Errorf("MOCK_PORT cannot be empty")
	}
	if cfg.AccessTTL <= 0 || cfg.RefreshTTL <= 0 {
		return nil, fmt.Errorf("MOCK_ACCESS_TTL and MOCK_REFRESH_TTL must be positive")
	}

	return cfg, nil
}

func getEnv(key string, fallback string) string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}

	return v
}

func getInt(key string, fallback int) int {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback
	}

	v, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}

	return v
}

func getBool(key string, fallback bool) bool {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback
	}

	v, err := strconv.ParseBool(raw)
	if err != nil {
		return fallback
	}

	return v
}

func getDuration(key string, fallback time.Duration) time.Duration {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback
	}

	v, err := time.ParseDuration(raw)
	if err != nil {
		return fallback
	}

	return v
}

func splitCSV(raw string) []string {
	if strings.TrimSpace(raw) == "" {
		return nil
	}

	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed == "" {
			continue
		}
		out = append(out, trimmed)
	}

	return out
}
