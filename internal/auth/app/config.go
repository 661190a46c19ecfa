package app

import (
	"os"
	"strconv"
	"time"
)

type Config struct {
	AccessSecret  string // Required: HMAC secret for access tokens
	RefreshSecret string // Required: HMAC secret for refresh tokens, must differ from AccessSecret

	AccessTTL  time.Duration // Optional: access token lifetime (default: 15m)
	RefreshTTL time.Duration // Optional: refresh token lifetime (default: 168h)

	DatabaseFile  string // Optional: path to SQLite database file (default: ./auth.db)
	PepperFile    string // Optional: path to file containing pepper for password hashing (default: ./pepper)
	RedisAddr     string // Optional: Redis host:port (default: localhost:6379)
	RedisPassword string // Optional: Redis password
	RedisDB       int    // Optional: Redis database index (default: 0)

	RequestCeiling int64 // Optional: per-host requests per minute (default: 20)

	GoogleClientID     string // Optional: enables Google sign-in when set
	GoogleClientSecret string
	GoogleRedirectURL  string
	YandexClientID     string // Optional: enables Yandex sign-in when set
	YandexClientSecret string
	YandexRedirectURL  string

	Env                 string        // Environment (dev, staging, prod) (default: dev)
	LogLevel            string        // Log level (debug, info, warn, error) (default: info)
	LogFormat           string        // Log format (json, text) (default: json)
	Port                int           // HTTP server port (default: 8080)
	ShutdownGracePeriod time.Duration // Graceful shutdown timeout (default: 10s)
}

func LoadConfig() Config {
	return Config{
		AccessSecret:  os.Getenv("AUTH_ACCESS_SECRET"),
		RefreshSecret: os.Getenv("AUTH_REFRESH_SECRET"),

		AccessTTL:  getEnvDurationOrDefault("AUTH_ACCESS_TTL", 15*time.Minute),
		RefreshTTL: getEnvDurationOrDefault("AUTH_REFRESH_TTL", 7*24*time.Hour),

		DatabaseFile:  getEnvOrDefault("AUTH_DATABASE_FILE", "auth.db"),
		PepperFile:    getEnvOrDefault("AUTH_PEPPER_FILE", "pepper"),
		RedisAddr:     getEnvOrDefault("REDIS_ADDR", "localhost:6379"),
		RedisPassword: os.Getenv("REDIS_PASSWORD"),
		RedisDB:       getEnvIntOrDefault("REDIS_DB", 0),

		RequestCeiling: int64(getEnvIntOrDefault("REQUEST_LIMIT_PER_MINUTE", 20)),

		GoogleClientID:     os.Getenv("OAUTH_GOOGLE_CLIENT_ID"),
		GoogleClientSecret: os.Getenv("OAUTH_GOOGLE_CLIENT_SECRET"),
		GoogleRedirectURL:  os.Getenv("OAUTH_GOOGLE_REDIRECT_URL"),
		YandexClientID:     os.Getenv("OAUTH_YANDEX_CLIENT_ID"),
		YandexClientSecret: os.Getenv("OAUTH_YANDEX_CLIENT_SECRET"),
		YandexRedirectURL:  os.Getenv("OAUTH_YANDEX_REDIRECT_URL"),

		Env:                 getEnvOrDefault("ENV", "dev"),
		LogLevel:            getEnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:           getEnvOrDefault("LOG_FORMAT", "json"),
		Port:                getEnvIntOrDefault("PORT", 8080),
		ShutdownGracePeriod: getEnvDurationOrDefault("SHUTDOWN_GRACE_PERIOD", 10*time.Second),
	}
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvIntOrDefault(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	if intValue, err := strconv.Atoi(value); err == nil {
		return intValue
	}

	return defaultValue
}

func getEnvDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	if duration, err := time.ParseDuration(value); err == nil {
		return duration
	}

	// Bare integers are taken as minutes.
	if minutes, err := strconv.Atoi(value); err == nil {
		return time.Duration(minutes) * time.Minute
	}

	return defaultValue
}
