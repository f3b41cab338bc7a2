package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds application configuration.
type Config struct {
	Port            string
	CORSAllowOrigin []string
	Env             string
	LogLevel        string
	DatabaseURL     string
	RedisURL        string
	PublicBaseURL   string

	ObjectStoreType string
	LocalStoreDir   string
	AWSRegion       string
	S3Bucket        string
	S3Prefix        string
	SSEKMSKeyID     string
	MaxUploadBytes  int64

	LLMProvider       string
	LLMModel          string
	OpenAIAPIKey      string
	ExtractionTimeout time.Duration

	JWTSecret string
	TokenTTL  time.Duration

	QuotaMonthlyLimit  int
	QuotaWindow        time.Duration
	QuotaSweepSchedule string

	PaddleAPIBaseURL       string
	PaddleAPIKey           string
	PaddlePriceID          string
	PaddleWebhookSecret    string
	PaddleWebhookTolerance time.Duration
	PaddleTimeout          time.Duration
}

// Load reads configuration from environment variables with sensible defaults.
func Load() Config {
	// Best-effort load of local env files for dev convenience.
	loadEnvFiles(".env", "cmd/.env")

	env := normalizeEnv(getEnv("ENV", "dev"))
	dbURL := os.Getenv("DATABASE_URL")

	if env == "production" && dbURL == "" {
		log.Printf("DATABASE_URL is required in production")
	}

	return Config{
		Port:            getEnv("PORT", "8080"),
		CORSAllowOrigin: splitAndTrim(getEnv("CORS_ALLOW_ORIGINS", "http://localhost:3000")),
		Env:             env,
		LogLevel:        getEnv("LOG_LEVEL", "info"),
		DatabaseURL:     dbURL,
		RedisURL:        getEnv("REDIS_URL", ""),
		PublicBaseURL:   strings.TrimRight(getEnv("PUBLIC_BASE_URL", "http://localhost:8080"), "/"),

		ObjectStoreType: normalizeStoreType(getEnv("OBJECT_STORE", "local")),
		LocalStoreDir:   getEnv("LOCAL_STORE_DIR", "./data"),
		AWSRegion:       getEnv("AWS_REGION", ""),
		S3Bucket:        getEnv("S3_BUCKET", ""),
		S3Prefix:        getEnv("S3_PREFIX", ""),
		SSEKMSKeyID:     getEnv("SSE_KMS_KEY_ID", ""),
		MaxUploadBytes:  int64(getEnvInt("MAX_UPLOAD_BYTES", 5<<20)),

		LLMProvider:       strings.ToLower(getEnv("LLM_PROVIDER", "openai")),
		LLMModel:          getEnv("LLM_MODEL", "gpt-4o-mini"),
		OpenAIAPIKey:      getEnv("OPENAI_API_KEY", ""),
		ExtractionTimeout: getEnvDuration("EXTRACTION_TIMEOUT", 60*time.Second),

		JWTSecret: getEnv("JWT_SECRET", ""),
		TokenTTL:  getEnvDuration("TOKEN_TTL", 24*time.Hour),

		QuotaMonthlyLimit:  getEnvInt("QUOTA_MONTHLY_LIMIT", 1000),
		QuotaWindow:        getEnvDuration("QUOTA_WINDOW", 30*24*time.Hour),
		QuotaSweepSchedule: os.Getenv("QUOTA_SWEEP_SCHEDULE"),

		PaddleAPIBaseURL:       strings.TrimRight(getEnv("PADDLE_API_BASE_URL", "https://sandbox-api.paddle.com"), "/"),
		PaddleAPIKey:           strings.TrimSpace(getEnv("PADDLE_API_KEY", "")),
		PaddlePriceID:          strings.TrimSpace(getEnv("PADDLE_PRICE_ID", "")),
		PaddleWebhookSecret:    getEnv("PADDLE_WEBHOOK_SECRET", ""),
		PaddleWebhookTolerance: getEnvDuration("PADDLE_WEBHOOK_TOLERANCE", 0),
		PaddleTimeout:          getEnvDuration("PADDLE_TIMEOUT", 15*time.Second),
	}
}

// SweepSchedule returns the cron spec for the monthly counter sweep.
// An unset variable means the default schedule; "off" disables the sweep.
func (c Config) SweepSchedule() string {
	raw := strings.TrimSpace(c.QuotaSweepSchedule)
	switch strings.ToLower(raw) {
	case "":
		return "0 0 1 * *"
	case "off", "disabled", "none":
		return ""
	default:
		return raw
	}
}

func getEnv(key, def string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return def
}

func getEnvInt(key string, def int) int {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	val, err := strconv.Atoi(raw)
	if err != nil || val < 0 {
		log.Printf("config %s invalid int %q, using %d", key, raw, def)
		return def
	}
	return val
}

func getEnvDuration(key string, def time.Duration) time.Duration {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	val, err := time.ParseDuration(raw)
	if err != nil || val < 0 {
		log.Printf("config %s invalid duration %q, using %s", key, raw, def)
		return def
	}
	return val
}

func splitAndTrim(raw string) []string {
	parts := strings.Split(raw, ",")
	var out []string
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func normalizeEnv(raw string) string {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "production", "prod":
		return "production"
	case "staging":
		return "staging"
	case "local":
		return "local"
	case "development", "dev":
		return "dev"
	default:
		return "dev"
	}
}

func normalizeStoreType(raw string) string {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "s3":
		return "s3"
	default:
		return "local"
	}
}
