package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds process configuration for the companion service.
type Config struct {
	Port            string
	Env             string
	CORSAllowOrigin []string
	LocalToken      string

	StoreType   string
	BadgerDir   string
	DatabaseURL string

	ObjectStoreType string
	LocalStoreDir   string
	AWSRegion       string
	S3Bucket        string
	S3Prefix        string
	SQSQueueURL     string

	Poll           PollConfig
	BackendTimeout time.Duration

	// Seed values used when no settings have been saved yet.
	SeedBackendURL string
	SeedAPIKey     string
}

// PollConfig controls the status poll schedule.
type PollConfig struct {
	BaseInterval time.Duration
	Multiplier   float64
	MaxExponent  int
	MaxAttempts  int
}

// DefaultPollConfig returns the default poll schedule.
func DefaultPollConfig() PollConfig {
	return PollConfig{
		BaseInterval: 2 * time.Second,
		Multiplier:   1.5,
		MaxExponent:  5,
		MaxAttempts:  60,
	}
}

// Load reads configuration from environment variables with sensible defaults.
func Load() Config {
	// Best-effort load of local env files for dev convenience.
	loadEnvFiles(".env", "cmd/.env")

	env := normalizeEnv(getEnv("ENV", "dev"))
	storeType := normalizeStoreType(getEnv("LCA_STORE", "badger"))
	dbURL := os.Getenv("DATABASE_URL")

	if storeType == "postgres" && dbURL == "" {
		log.Printf("LCA_STORE=postgres requires DATABASE_URL")
	}

	poll := DefaultPollConfig()
	poll.BaseInterval = getEnvDuration("LCA_POLL_BASE_INTERVAL", poll.BaseInterval)
	poll.Multiplier = getEnvFloat("LCA_POLL_MULTIPLIER", poll.Multiplier)
	poll.MaxExponent = getEnvInt("LCA_POLL_MAX_EXPONENT", poll.MaxExponent)
	poll.MaxAttempts = getEnvInt("LCA_POLL_MAX_ATTEMPTS", poll.MaxAttempts)

	return Config{
		Port:            getEnv("PORT", "8787"),
		Env:             env,
		CORSAllowOrigin: splitAndTrim(getEnv("CORS_ALLOW_ORIGINS", "chrome-extension://*,moz-extension://*")),
		LocalToken:      strings.TrimSpace(os.Getenv("LCA_LOCAL_TOKEN")),
		StoreType:       storeType,
		BadgerDir:       getEnv("LCA_BADGER_DIR", "./data/kv"),
		DatabaseURL:     dbURL,
		ObjectStoreType: normalizeObjectStoreType(getEnv("OBJECT_STORE", "local")),
		LocalStoreDir:   getEnv("LOCAL_STORE_DIR", "./data"),
		AWSRegion:       getEnv("AWS_REGION", ""),
		S3Bucket:        getEnv("S3_BUCKET", ""),
		S3Prefix:        getEnv("S3_PREFIX", ""),
		SQSQueueURL:     strings.TrimSpace(os.Getenv("LCA_SQS_QUEUE_URL")),
		Poll:            poll,
		BackendTimeout:  getEnvDuration("LCA_BACKEND_TIMEOUT", 30*time.Second),
		SeedBackendURL:  strings.TrimSpace(os.Getenv("LCA_BACKEND_URL")),
		SeedAPIKey:      strings.TrimSpace(os.Getenv("LCA_API_KEY")),
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
	if err != nil || val <= 0 {
		log.Printf("config %s invalid int %q; using %d", key, raw, def)
		return def
	}
	return val
}

func getEnvFloat(key string, def float64) float64 {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	val, err := strconv.ParseFloat(raw, 64)
	if err != nil || val < 1 {
		log.Printf("config %s invalid multiplier %q; using %g", key, raw, def)
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
	if err != nil || val <= 0 {
		log.Printf("config %s invalid duration %q; using %s", key, raw, def)
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
	case "local":
		return "local"
	default:
		return "dev"
	}
}

func normalizeStoreType(raw string) string {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "memory", "mem":
		return "memory"
	case "postgres", "pg":
		return "postgres"
	default:
		return "badger"
	}
}

func normalizeObjectStoreType(raw string) string {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "s3":
		return "s3"
	case "none", "off":
		return "none"
	default:
		return "local"
	}
}
