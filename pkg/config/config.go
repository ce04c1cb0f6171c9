package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds the application configuration
type Config struct {
	Environment          string
	ServerPort           int
	LogLevel             string
	CORSAllowedOrigins   []string
	RedisURL             string
	JWTSecret            string
	TokenIssuer          string
	TokenDuration        time.Duration
	PwnedBaseURL         string
	PwnedTimeout         time.Duration
	StaleCheckInterval   time.Duration
	StaleThreshold       time.Duration
	DatabaseHost         string
	DatabasePort         int
	DatabaseUser         string
	DatabasePassword     string
	DatabaseName         string
	DatabaseSSLMode      string
	RateLimit            int
	RateLimitWindow      time.Duration
	AuthRateLimit        int
}

// DefaultTokenDuration is used when TOKEN_DURATION_MINUTES is absent or
// does not parse as a positive integer.
const DefaultTokenDuration = 15 * time.Minute

// Load reads configuration from environment variables
func Load() (*Config, error) {
	port, err := strconv.Atoi(getEnv("SERVER_PORT", "8080"))
	if err != nil {
		return nil, fmt.Errorf("invalid SERVER_PORT: %w", err)
	}

	dbPort, err := strconv.Atoi(getEnv("DB_PORT", "5432"))
	if err != nil {
		return nil, fmt.Errorf("invalid DB_PORT: %w", err)
	}

	pwnedTimeout, err := strconv.Atoi(getEnv("PWNED_TIMEOUT_SECONDS", "10"))
	if err != nil {
		return nil, fmt.Errorf("invalid PWNED_TIMEOUT_SECONDS: %w", err)
	}

	staleInterval, err := strconv.Atoi(getEnv("STALE_CHECK_INTERVAL_MINUTES", "15"))
	if err != nil {
		return nil, fmt.Errorf("invalid STALE_CHECK_INTERVAL_MINUTES: %w", err)
	}

	staleThreshold, err := strconv.Atoi(getEnv("STALE_THRESHOLD_HOURS", "48"))
	if err != nil {
		return nil, fmt.Errorf("invalid STALE_THRESHOLD_HOURS: %w", err)
	}

	rateLimit, err := strconv.Atoi(getEnv("RATE_LIMIT", "100"))
	if err != nil {
		return nil, fmt.Errorf("invalid RATE_LIMIT: %w", err)
	}

	rateLimitWindow, err := strconv.Atoi(getEnv("RATE_LIMIT_WINDOW_SECONDS", "60"))
	if err != nil {
		return nil, fmt.Errorf("invalid RATE_LIMIT_WINDOW_SECONDS: %w", err)
	}

	authRateLimit, err := strconv.Atoi(getEnv("AUTH_RATE_LIMIT", "10"))
	if err != nil {
		return nil, fmt.Errorf("invalid AUTH_RATE_LIMIT: %w", err)
	}

	return &Config{
		Environment:         getEnv("ENVIRONMENT", "development"),
		ServerPort:          port,
		LogLevel:            getEnv("LOG_LEVEL", "info"),
		CORSAllowedOrigins:  parseCSVEnv("CORS_ALLOWED_ORIGINS", []string{"http://localhost:5173", "http://localhost:3000"}),
		RedisURL:            getEnv("REDIS_URL", "redis://localhost:6379"),
		JWTSecret:           os.Getenv("JWT_SECRET"),
		TokenIssuer:         getEnv("TOKEN_ISSUER", "aquamonitor"),
		TokenDuration:       tokenDuration(),
		PwnedBaseURL:        getEnv("PWNED_BASE_URL", "https://api.pwnedpasswords.com"),
		PwnedTimeout:        time.Duration(pwnedTimeout) * time.Second,
		StaleCheckInterval:  time.Duration(staleInterval) * time.Minute,
		StaleThreshold:      time.Duration(staleThreshold) * time.Hour,
		DatabaseHost:        getEnv("DB_HOST", "localhost"),
		DatabasePort:        dbPort,
		DatabaseUser:        getEnv("DB_USER", "aquamonitor"),
		DatabasePassword:    getEnv("DB_PASSWORD", "dev"),
		DatabaseName:        getEnv("DB_NAME", "aquamonitor"),
		DatabaseSSLMode:     getEnv("DB_SSLMODE", "disable"),
		RateLimit:           rateLimit,
		RateLimitWindow:     time.Duration(rateLimitWindow) * time.Second,
		AuthRateLimit:       authRateLimit,
	}, nil
}

// tokenDuration never fails: an absent or malformed TOKEN_DURATION_MINUTES
// falls back to the 15-minute default instead of refusing to start.
func tokenDuration() time.Duration {
	raw := os.Getenv("TOKEN_DURATION_MINUTES")
	if raw == "" {
		return DefaultTokenDuration
	}
	minutes, err := strconv.Atoi(raw)
	if err != nil || minutes <= 0 {
		return DefaultTokenDuration
	}
	return time.Duration(minutes) * time.Minute
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func parseCSVEnv(key string, defaultValue []string) []string {
	if value := os.Getenv(key); value != "" {
		parts := strings.Split(value, ",")
		out := make([]string, 0, len(parts))
		for _, p := range parts {
			trimmed := strings.TrimSpace(p)
			if trimmed != "" {
				out = append(out, trimmed)
			}
		}
		if len(out) > 0 {
			return out
		}
	}
	return defaultValue
}
