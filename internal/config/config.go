package config

import (
	"os"
	"strconv"
	"time"

	"rankpilot-service/internal/domain/usage"
	"rankpilot-service/internal/pkg/jwt"
	"rankpilot-service/internal/pkg/signature"
)

type AppConfig struct {
	// Server
	HTTPAddr  string
	RedisAddr string
	RedisPass string
	RedisDB   int

	// JWT
	JWT jwt.Config

	// Webhook ingestion
	WebhookSigningSecret string
	WebhookTolerance     time.Duration
	IdempotencyRetention time.Duration

	// Usage metering
	UsagePeriod usage.Period
}

// Load loads environment variables into AppConfig.
func Load() AppConfig {
	return AppConfig{
		HTTPAddr:  getEnv("HTTP_ADDR", ":8080"),
		RedisAddr: getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPass: getEnv("REDIS_PASS", ""),
		RedisDB:   getEnvInt("REDIS_DB", 0),

		JWT: jwt.Config{
			Secret:   getEnv("JWT_SECRET", ""),
			Issuer:   "rankpilot",
			Audience: "rankpilot-admin",
			TTL:      24 * time.Hour,
		},

		WebhookSigningSecret: getEnv("WEBHOOK_SIGNING_SECRET", ""),
		WebhookTolerance:     getEnvDuration("WEBHOOK_TOLERANCE", signature.DefaultTolerance),
		IdempotencyRetention: getEnvDuration("WEBHOOK_IDEMPOTENCY_RETENTION", 24*time.Hour),

		UsagePeriod: usage.Period(getEnv("USAGE_PERIOD", string(usage.PeriodMonthly))),
	}
}

// --- Helper functions ---

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}
