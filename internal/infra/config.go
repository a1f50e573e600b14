package infra

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config represents application configuration loaded from environment variables.
type Config struct {
	AppEnv      string
	Port        string
	DatabaseURL string
	DBMaxConns  int32

	CORSAllowedOrigins []string
	RateLimitRequests  int
	RateLimitWindow    time.Duration

	HTTPReadTimeout  time.Duration
	HTTPWriteTimeout time.Duration
	HTTPIdleTimeout  time.Duration

	QueueMaxConcurrent  int
	QueueMaxRetries     int
	QueueRetryBaseDelay time.Duration
	QueueRetryMaxDelay  time.Duration
	QueueJobTimeout     time.Duration
	QueuePollInterval   time.Duration
	EmbeddedWorker      bool

	SchedulerInterval     time.Duration
	SchedulerEntryTimeout time.Duration

	DirectorInterval           time.Duration
	DirectorTopCharacters      int
	DirectorTopTrends          int
	DirectorLookbackDays       int
	DirectorRelevanceThreshold float64
	DirectorPlansPerCharacter  int
	DirectorPlanPriority       int

	GenerationBaseURL string
	GenerationAPIKey  string

	TikTokBaseURL     string
	TikTokAccessToken string

	StorageBackend string
	StoragePath    string
	MinIOEndpoint  string
	MinIOAccessKey string
	MinIOSecretKey string
	MinIOBucket    string
	MinIOUseSSL    bool
}

// LoadConfig loads configuration from environment variables and applies defaults where needed.
func LoadConfig() (*Config, error) {
	cfg := &Config{
		AppEnv:      getEnv("APP_ENV", "development"),
		Port:        getEnv("PORT", "8080"),
		DatabaseURL: os.Getenv("DATABASE_URL"),
		DBMaxConns:  int32(getEnvInt("DB_MAX_CONNS", 10)),

		CORSAllowedOrigins: getEnvList("CORS_ALLOWED_ORIGINS", []string{"http://localhost:3000"}),
		RateLimitRequests:  getEnvInt("RATE_LIMIT_REQUESTS", 120),
		RateLimitWindow:    getEnvDuration("RATE_LIMIT_WINDOW", time.Minute),

		HTTPReadTimeout:  time.Second * time.Duration(getEnvInt("HTTP_READ_TIMEOUT_SECONDS", 15)),
		HTTPWriteTimeout: time.Second * time.Duration(getEnvInt("HTTP_WRITE_TIMEOUT_SECONDS", 30)),
		HTTPIdleTimeout:  time.Second * time.Duration(getEnvInt("HTTP_IDLE_TIMEOUT_SECONDS", 60)),

		QueueMaxConcurrent:  getEnvInt("QUEUE_MAX_CONCURRENT", 2),
		QueueMaxRetries:     getEnvInt("QUEUE_MAX_RETRIES", 3),
		QueueRetryBaseDelay: getEnvDuration("QUEUE_RETRY_BASE_DELAY", 5*time.Second),
		QueueRetryMaxDelay:  getEnvDuration("QUEUE_RETRY_MAX_DELAY", 5*time.Minute),
		QueueJobTimeout:     getEnvDuration("QUEUE_JOB_TIMEOUT", 10*time.Minute),
		QueuePollInterval:   getEnvDuration("QUEUE_POLL_INTERVAL", 2*time.Second),
		EmbeddedWorker:      getEnvBool("EMBEDDED_WORKER", true),

		SchedulerInterval:     getEnvDuration("SCHEDULER_INTERVAL", 60*time.Second),
		SchedulerEntryTimeout: getEnvDuration("SCHEDULER_ENTRY_TIMEOUT", 60*time.Second),

		DirectorInterval:           getEnvDuration("DIRECTOR_INTERVAL", 2*time.Hour),
		DirectorTopCharacters:      getEnvInt("DIRECTOR_TOP_CHARACTERS", 6),
		DirectorTopTrends:          getEnvInt("DIRECTOR_TOP_TRENDS", 10),
		DirectorLookbackDays:       getEnvInt("DIRECTOR_LOOKBACK_DAYS", 7),
		DirectorRelevanceThreshold: getEnvFloat("DIRECTOR_RELEVANCE_THRESHOLD", 0.3),
		DirectorPlansPerCharacter:  getEnvInt("DIRECTOR_PLANS_PER_CHARACTER", 3),
		DirectorPlanPriority:       getEnvInt("DIRECTOR_PLAN_PRIORITY", 5),

		GenerationBaseURL: os.Getenv("GENERATION_BASE_URL"),
		GenerationAPIKey:  os.Getenv("GENERATION_API_KEY"),

		TikTokBaseURL:     getEnv("TIKTOK_BASE_URL", "https://open-api.tiktok.com"),
		TikTokAccessToken: os.Getenv("TIKTOK_ACCESS_TOKEN"),

		StorageBackend: getEnv("STORAGE_BACKEND", "file"),
		StoragePath:    getEnv("STORAGE_PATH", "./storage"),
		MinIOEndpoint:  os.Getenv("MINIO_ENDPOINT"),
		MinIOAccessKey: os.Getenv("MINIO_ACCESS_KEY"),
		MinIOSecretKey: os.Getenv("MINIO_SECRET_KEY"),
		MinIOBucket:    getEnv("MINIO_BUCKET", "generated-media"),
		MinIOUseSSL:    getEnvBool("MINIO_USE_SSL", false),
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	if cfg.StorageBackend != "file" && cfg.StorageBackend != "minio" {
		return nil, fmt.Errorf("STORAGE_BACKEND must be file or minio, got %q", cfg.StorageBackend)
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}

func getEnvList(key string, fallback []string) []string {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return fallback
	}
	var out []string
	for _, part := range strings.Split(v, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	if len(out) == 0 {
		return fallback
	}
	return out
}

func getEnvInt(key string, fallback int) int {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func getEnvFloat(key string, fallback float64) float64 {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}
