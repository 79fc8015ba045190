// Package config handles loading application configuration from environment
// variables. All config is centralized here so no other package reads env
// vars directly. Sensible defaults are provided for development.
package config

import (
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"
)

// Config holds all application configuration. Populated from environment
// variables at startup. Passed to other packages via dependency injection.
type Config struct {
	// Env is the runtime environment: "development" or "production".
	Env string

	// Port is the HTTP listen port (default: 8080).
	Port int

	// BaseURL is the public-facing URL used for links and OAuth redirects.
	BaseURL string

	// LogLevel controls log verbosity: "debug", "info", "warn", "error".
	LogLevel string

	// AllowedOrigins are the browser origins permitted by CORS.
	AllowedOrigins []string

	// Upstream holds settings for the Vinsmoke bot backend.
	Upstream UpstreamConfig

	// Database holds MariaDB connection settings (audit trail).
	Database DatabaseConfig

	// Redis holds Redis connection settings (cache, sessions, rate limits).
	Redis RedisConfig

	// Auth holds authentication-related settings.
	Auth AuthConfig

	// Likes holds like-batching settings.
	Likes LikesConfig
}

// UpstreamConfig holds connection settings for the remote bot backend that
// owns the actual WhatsApp sessions, plugin registry, and FAQ store.
type UpstreamConfig struct {
	// BaseURL is the backend REST base URL (no trailing slash).
	BaseURL string

	// SocketURL is the push-event channel URL. Defaults to BaseURL with
	// the scheme switched to ws/wss when unset.
	SocketURL string

	// Timeout bounds every upstream REST call.
	Timeout time.Duration
}

// WebsocketURL returns the push-event channel URL, deriving it from the
// REST base URL when no explicit socket URL is configured.
func (u UpstreamConfig) WebsocketURL() string {
	if u.SocketURL != "" {
		return u.SocketURL
	}
	url := u.BaseURL
	switch {
	case strings.HasPrefix(url, "https://"):
		return "wss://" + strings.TrimPrefix(url, "https://")
	case strings.HasPrefix(url, "http://"):
		return "ws://" + strings.TrimPrefix(url, "http://")
	}
	return url
}

// DatabaseConfig holds MariaDB connection parameters. Individual fields
// (Host, User, Password, Name) are read from separate env vars so container
// orchestrators can manage each independently. If DATABASE_URL is set, it
// takes precedence over the individual fields.
type DatabaseConfig struct {
	// Host is the MariaDB address in host:port format (default: "localhost:3306").
	// If no port is specified, 3306 is appended automatically.
	Host string

	// User is the MariaDB username (default: "vinsmoke").
	User string

	// Password is the MariaDB password (default: "vinsmoke").
	Password string

	// Name is the database name (default: "vinsmoke").
	Name string

	// dsnOverride is set when DATABASE_URL is provided, bypassing individual fields.
	dsnOverride string

	// MaxOpenConns is the maximum number of open connections in the pool.
	MaxOpenConns int

	// MaxIdleConns is the maximum number of idle connections in the pool.
	MaxIdleConns int

	// ConnMaxLifetime is how long a connection can be reused.
	ConnMaxLifetime time.Duration
}

// DSN returns the go-sql-driver/mysql connection string. If DATABASE_URL was
// set, it is returned as-is. Otherwise the DSN is built from the individual
// Host/User/Password/Name fields using the driver's Config.FormatDSN()
// to safely handle special characters in passwords.
func (d DatabaseConfig) DSN() string {
	if d.dsnOverride != "" {
		return d.dsnOverride
	}
	cfg := mysql.NewConfig()
	cfg.User = d.User
	cfg.Passwd = d.Password
	cfg.Net = "tcp"
	cfg.Addr = ensurePort(d.Host, "3306")
	cfg.DBName = d.Name
	cfg.ParseTime = true
	return cfg.FormatDSN()
}

// ensurePort appends the default port if the host string doesn't include one.
func ensurePort(host, defaultPort string) string {
	_, _, err := net.SplitHostPort(host)
	if err != nil {
		return net.JoinHostPort(host, defaultPort)
	}
	return host
}

// RedisConfig holds Redis connection parameters.
type RedisConfig struct {
	// URL is the Redis connection URL (e.g., "redis://localhost:6379").
	URL string
}

// AuthConfig holds authentication settings.
type AuthConfig struct {
	// GitHubClientID is the OAuth app client id.
	GitHubClientID string

	// GitHubClientSecret is the OAuth app client secret.
	GitHubClientSecret string

	// AdminLogins lists the GitHub logins granted admin console access.
	// This check is advisory only -- the upstream backend re-validates
	// every admin call.
	AdminLogins []string

	// SessionTTL is the rolling expiry applied to stored user sessions.
	SessionTTL time.Duration

	// MaxLoginAttempts is the failed-attempt budget per identifier.
	MaxLoginAttempts int

	// LockoutDuration is the lockout window after the budget is exhausted.
	LockoutDuration time.Duration
}

// LikesConfig holds settings for the like-batching queue.
type LikesConfig struct {
	// BatchDelay is the debounce window before pending likes are flushed.
	BatchDelay time.Duration
}

// Load reads configuration from environment variables with sensible defaults.
// Returns an error if required variables are missing.
func Load() (*Config, error) {
	cfg := &Config{
		Env:            getEnv("ENV", "development"),
		Port:           getEnvInt("PORT", 8080),
		BaseURL:        getEnv("BASE_URL", "http://localhost:8080"),
		LogLevel:       getEnv("LOG_LEVEL", "debug"),
		AllowedOrigins: splitList(getEnv("ALLOWED_ORIGINS", "http://localhost:5173,http://localhost:3000")),

		Upstream: UpstreamConfig{
			BaseURL:   strings.TrimRight(getEnv("UPSTREAM_BASE_URL", "http://localhost:9090"), "/"),
			SocketURL: getEnv("UPSTREAM_SOCKET_URL", ""),
			Timeout:   getEnvDuration("UPSTREAM_TIMEOUT", 20*time.Second),
		},

		Database: DatabaseConfig{
			Host:            getEnv("DB_HOST", "localhost:3306"),
			User:            getEnv("DB_USER", "vinsmoke"),
			Password:        getEnv("DB_PASSWORD", "vinsmoke"),
			Name:            getEnv("DB_NAME", "vinsmoke"),
			dsnOverride:     getEnv("DATABASE_URL", ""),
			MaxOpenConns:    getEnvInt("DB_MAX_OPEN_CONNS", 25),
			MaxIdleConns:    getEnvInt("DB_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: getEnvDuration("DB_CONN_MAX_LIFETIME", 5*time.Minute),
		},

		Redis: RedisConfig{
			URL: getEnv("REDIS_URL", "redis://localhost:6379"),
		},

		Auth: AuthConfig{
			GitHubClientID:     getEnv("GITHUB_CLIENT_ID", ""),
			GitHubClientSecret: getEnv("GITHUB_CLIENT_SECRET", ""),
			AdminLogins:        splitList(getEnv("ADMIN_LOGINS", "")),
			SessionTTL:         getEnvDuration("SESSION_TTL", 24*time.Hour),
			MaxLoginAttempts:   getEnvInt("MAX_LOGIN_ATTEMPTS", 5),
			LockoutDuration:    getEnvDuration("LOCKOUT_DURATION", 15*time.Minute),
		},

		Likes: LikesConfig{
			BatchDelay: getEnvDuration("LIKE_BATCH_DELAY", 5*time.Minute),
		},
	}

	// Validate required fields in production. Case-insensitive check catches
	// common variants like "Production", "prod", etc.
	envLower := strings.ToLower(cfg.Env)
	if envLower == "production" || envLower == "prod" {
		if cfg.Auth.GitHubClientID == "" || cfg.Auth.GitHubClientSecret == "" {
			return nil, fmt.Errorf("GITHUB_CLIENT_ID and GITHUB_CLIENT_SECRET are required in production")
		}
		if len(cfg.Auth.AdminLogins) == 0 {
			return nil, fmt.Errorf("ADMIN_LOGINS is required in production")
		}
	}

	return cfg, nil
}

// IsDevelopment returns true if running in development mode.
func (c *Config) IsDevelopment() bool {
	env := strings.ToLower(c.Env)
	return env == "development" || env == "dev"
}

// --- Helper functions for reading environment variables ---

// getEnv reads a string env var or returns the default.
func getEnv(key, defaultVal string) string {
	if val, ok := os.LookupEnv(key); ok {
		return val
	}
	return defaultVal
}

// getEnvInt reads an integer env var or returns the default.
func getEnvInt(key string, defaultVal int) int {
	if val, ok := os.LookupEnv(key); ok {
		if i, err := strconv.Atoi(val); err == nil {
			return i
		}
	}
	return defaultVal
}

// getEnvDuration reads a duration env var (e.g., "30m") or returns the default.
func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	if val, ok := os.LookupEnv(key); ok {
		if d, err := time.ParseDuration(val); err == nil {
			return d
		}
	}
	return defaultVal
}

// splitList splits a comma-separated env value into trimmed, non-empty parts.
func splitList(val string) []string {
	var out []string
	for _, part := range strings.Split(val, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
