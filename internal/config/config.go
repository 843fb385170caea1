package config

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the frontend server
type Config struct {
	// HTTP listener
	Server ServerConfig

	// Backend REST API
	Backend BackendConfig

	// Browser-facing session cookie and OAuth state
	Session SessionConfig

	// Current-user cache
	Cache CacheConfig

	// Logging Configuration
	Logging LoggingConfig
}

// ServerConfig holds HTTP listener configuration
type ServerConfig struct {
	Port        string
	CORSOrigins []string
}

// BackendConfig holds the backend base URL and call limits
type BackendConfig struct {
	URL        string
	Timeout    time.Duration
	CookieName string
}

// SessionConfig holds settings for cookies written to the browser
type SessionConfig struct {
	CookieSecure bool
	StateSecret  string
}

// CacheConfig holds the "who am I" cache settings
type CacheConfig struct {
	RedisAddress string // empty = in-process cache
	TTL          time.Duration
}

// LoggingConfig holds logging-related configuration
type LoggingConfig struct {
	Level  string
	Format string // json, console
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	// Load .env files (fails silently if files don't exist)
	_ = godotenv.Load(".env")
	_ = godotenv.Load(".env.local")

	backendURL := strings.TrimRight(getEnv("BACKEND_URL", "http://localhost:8080/api"), "/")
	parsed, err := url.Parse(backendURL)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return nil, fmt.Errorf("invalid BACKEND_URL %q", backendURL)
	}

	timeout, err := getDuration("BACKEND_TIMEOUT", 15*time.Second)
	if err != nil {
		return nil, err
	}

	cacheTTL, err := getDuration("USER_CACHE_TTL", 5*time.Minute)
	if err != nil {
		return nil, err
	}

	secure, err := getBool("SESSION_COOKIE_SECURE", false)
	if err != nil {
		return nil, err
	}

	// OAuth state is short-lived, so a per-process secret is acceptable when unset
	stateSecret := os.Getenv("STATE_SECRET")
	if stateSecret == "" {
		secretBytes := make([]byte, 32)
		if _, err := rand.Read(secretBytes); err != nil {
			return nil, fmt.Errorf("failed to generate state secret: %w", err)
		}
		stateSecret = hex.EncodeToString(secretBytes)
	}

	return &Config{
		Server: ServerConfig{
			Port:        getEnv("PORT", "8081"),
			CORSOrigins: splitList(getEnv("CORS_ORIGINS", "http://localhost:5173")),
		},
		Backend: BackendConfig{
			URL:        backendURL,
			Timeout:    timeout,
			CookieName: getEnv("BACKEND_SESSION_COOKIE", "session"),
		},
		Session: SessionConfig{
			CookieSecure: secure,
			StateSecret:  stateSecret,
		},
		Cache: CacheConfig{
			RedisAddress: os.Getenv("REDIS_ADDRESS"),
			TTL:          cacheTTL,
		},
		Logging: LoggingConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "json"),
		},
	}, nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getDuration(key string, fallback time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, v, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("invalid %s %q: must be positive", key, v)
	}
	return d, nil
}

func getBool(key string, fallback bool) (bool, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("invalid %s %q: %w", key, v, err)
	}
	return b, nil
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
