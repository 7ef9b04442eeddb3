package config

import (
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// Config centralizes runtime settings for the client.
type Config struct {
	APIBaseURL    string
	APIToken      string
	APITimeoutMS  int
	APIMaxRetries int

	PollIntervalMS int

	SubmitMaxInFlight int
	SubmitRPS         float64
	SubmitBurst       int

	CacheTTLSeconds int
	CacheMaxEntries int

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	DatabaseURL string

	DownloadDir string

	MinioEndpoint  string
	MinioAccessKey string
	MinioSecretKey string
	MinioBucket    string
	MinioUseSSL    bool
}

// LoadDotEnv loads .env-like files. Existing process environment variables
// keep precedence.
func LoadDotEnv(paths ...string) {
	for _, path := range paths {
		if _, err := os.Stat(path); err != nil {
			continue
		}
		_ = godotenv.Load(path)
	}
}

func Load() Config {
	return Config{
		APIBaseURL:    getEnv("REDACT_API_BASE_URL", "http://localhost:8000"),
		APIToken:      getEnv("REDACT_API_TOKEN", ""),
		APITimeoutMS:  getEnvInt("REDACT_API_TIMEOUT_MS", 15000),
		APIMaxRetries: getEnvInt("REDACT_API_MAX_RETRIES", 2),

		PollIntervalMS: getEnvInt("REDACT_POLL_INTERVAL_MS", 3000),

		SubmitMaxInFlight: getEnvInt("REDACT_SUBMIT_MAX_IN_FLIGHT", 4),
		SubmitRPS:         getEnvFloat("REDACT_SUBMIT_RPS", 10),
		SubmitBurst:       getEnvInt("REDACT_SUBMIT_BURST", 10),

		CacheTTLSeconds: getEnvInt("REDACT_CACHE_TTL_SECONDS", 900),
		CacheMaxEntries: getEnvInt("REDACT_CACHE_MAX_ENTRIES", 500),

		RedisAddr:     getEnv("REDIS_ADDR", ""),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getEnvInt("REDIS_DB", 0),

		DatabaseURL: getEnv("DATABASE_URL", ""),

		DownloadDir: getEnv("REDACT_DOWNLOAD_DIR", "downloads"),

		MinioEndpoint:  getEnv("MINIO_ENDPOINT", ""),
		MinioAccessKey: getEnv("MINIO_ACCESS_KEY", ""),
		MinioSecretKey: getEnv("MINIO_SECRET_KEY", ""),
		MinioBucket:    getEnv("MINIO_BUCKET", "redacted-documents"),
		MinioUseSSL:    getEnvBool("MINIO_USE_SSL", false),
	}
}

func getEnv(key, fallback string) string {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	return value
}

func getEnvInt(key string, fallback int) int {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvFloat(key string, fallback float64) float64 {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvBool(key string, fallback bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return fallback
	}
	return parsed
}
