package config

import (
	"context"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config is built once in main and injected into everything that needs it.
// Nothing reads the environment after Load returns.
type Config struct {
	Env  string
	Port int

	DBURL string

	JWTSecret         string
	JWTAccessTTLHours int

	RedisAddr     string
	RedisPassword string
	RedisDB       int
	CacheTTL      time.Duration

	CORSAllowedOrigins []string

	AuthRateLimit  int
	AuthRateWindow time.Duration
	APIRateLimit   int
	APIRateWindow  time.Duration

	OTLPEndpoint string

	// optional admin seed, skipped when email or password is empty
	AdminEmail    string
	AdminPassword string
	AdminName     string
	AdminRole     string

	WorkerPollInterval  time.Duration
	WorkerShutdownGrace time.Duration
}

func Load() Config {
	// .env is a development convenience; a missing file is fine
	_ = godotenv.Load()

	return Config{
		Env:   getEnv("APP_ENV", "dev"),
		Port:  getEnvInt("PORT", 8080),
		DBURL: buildDBURL(),

		JWTSecret:         getEnv("JWT_SECRET", "dev-secret-change-me"),
		JWTAccessTTLHours: getEnvInt("JWT_ACCESS_TTL_HOURS", 24),

		RedisAddr:     getEnv("REDIS_ADDR", ""),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getEnvInt("REDIS_DB", 0),
		CacheTTL:      time.Duration(getEnvInt("CACHE_TTL_SECONDS", 30)) * time.Second,

		CORSAllowedOrigins: splitCSV(getEnv("CORS_ALLOWED_ORIGINS", "http://localhost:3000")),

		AuthRateLimit:  getEnvInt("AUTH_RATE_LIMIT", 10),
		AuthRateWindow: time.Duration(getEnvInt("AUTH_RATE_WINDOW_SECONDS", 60)) * time.Second,
		APIRateLimit:   getEnvInt("API_RATE_LIMIT", 120),
		APIRateWindow:  time.Duration(getEnvInt("API_RATE_WINDOW_SECONDS", 60)) * time.Second,

		OTLPEndpoint: getEnv("OTLP_ENDPOINT", ""),

		AdminEmail:    getEnv("ADMIN_EMAIL", ""),
		AdminPassword: getEnv("ADMIN_PASSWORD", ""),
		AdminName:     getEnv("ADMIN_NAME", "Admin"),
		AdminRole:     getEnv("ADMIN_ROLE", "admin"),

		WorkerPollInterval:  time.Duration(getEnvInt("WORKER_POLL_MS", 500)) * time.Millisecond,
		WorkerShutdownGrace: time.Duration(getEnvInt("WORKER_SHUTDOWN_GRACE_SECONDS", 10)) * time.Second,
	}
}

func buildDBURL() string {
	if url := getEnv("DATABASE_URL", ""); url != "" {
		return url
	}

	host := getEnv("DB_HOST", "127.0.0.1")
	port := getEnv("DB_PORT", "5432")
	user := getEnv("DB_USER", "taskhub")
	pass := getEnv("DB_PASSWORD", "taskhub")
	name := getEnv("DB_NAME", "taskhub")
	ssl := getEnv("DB_SSLMODE", "disable")

	return "postgres://" + user + ":" + pass + "@" + host + ":" + port + "/" + name + "?sslmode=" + ssl
}

// AccessTTL is the lifetime of an issued bearer token.
func (c Config) AccessTTL() time.Duration {
	return time.Duration(c.JWTAccessTTLHours) * time.Hour
}

func WithTimeout(duration time.Duration) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), duration)
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}

	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		num, err := strconv.Atoi(v)

		if err != nil {
			return fallback
		}

		return num
	}
	return fallback
}

func splitCSV(v string) []string {
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))

	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}

	return out
}
