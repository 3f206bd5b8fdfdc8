package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type R2 struct {
	AccountID  string
	AccessKey  string
	SecretKey  string
	BucketName string
	PresignTTL time.Duration
}

type Log struct {
	Level  string
	Format string
	File   string
}

// PlatformWorker tunes one platform's queue consumer.
type PlatformWorker struct {
	Concurrency   int
	JobsPerMinute int
	APIBaseURL    string
}

type Config struct {
	HTTPAddr             string
	PostgresURI          string
	RedisURI             string
	FrontendURL          string
	R2                   R2
	Log                  Log
	SecretKey            string
	CookieName           string
	NotifyWebhookURL     string
	RateLimitStore       string
	Instagram            PlatformWorker
	Facebook             PlatformWorker
	LinkedIn             PlatformWorker
	X                    PlatformWorker
	ReconcileInterval    time.Duration
	StalePublishingAfter time.Duration
	ShutdownTimeout      time.Duration
}

// Load reads envFile when it exists and then builds the config from the environment.
func Load(envFile string) (*Config, error) {
	if envFile != "" {
		if _, err := os.Stat(envFile); err == nil {
			if err := godotenv.Load(envFile); err != nil {
				return nil, err
			}
		}
	}
	return LoadConfig(), nil
}

func LoadConfig() *Config {
	return &Config{
		HTTPAddr:    getEnv("HTTP_ADDR", ":8000"),
		PostgresURI: getEnv("POSTGRES_URI", ""),
		RedisURI:    getEnv("REDIS_URI", "redis://localhost:6379/0"),
		FrontendURL: getEnv("FRONTEND_URL", "http://localhost:5173"),
		R2: R2{
			AccountID:  getEnv("R2_ACCOUNT_ID", ""),
			AccessKey:  getEnv("R2_ACCESS_KEY", ""),
			SecretKey:  getEnv("R2_SECRET_KEY", ""),
			BucketName: getEnv("R2_BUCKET_NAME", ""),
			PresignTTL: getEnvDuration("R2_PRESIGN_TTL", 15*time.Minute),
		},
		Log: Log{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "console"),
			File:   getEnv("LOG_FILE", ""),
		},
		SecretKey:        getEnv("SECRET_KEY", ""),
		CookieName:       getEnv("COOKIE_NAME", "postflow_session"),
		NotifyWebhookURL: getEnv("NOTIFY_WEBHOOK_URL", ""),
		RateLimitStore:   getEnv("RATE_LIMIT_STORE", "redis"),
		Instagram: PlatformWorker{
			Concurrency:   getEnvInt("INSTAGRAM_CONCURRENCY", 5),
			JobsPerMinute: getEnvInt("INSTAGRAM_JOBS_PER_MINUTE", 60),
			APIBaseURL:    getEnv("INSTAGRAM_API_BASE_URL", "https://graph.instagram.com/v21.0"),
		},
		Facebook: PlatformWorker{
			Concurrency:   getEnvInt("FACEBOOK_CONCURRENCY", 5),
			JobsPerMinute: getEnvInt("FACEBOOK_JOBS_PER_MINUTE", 60),
			APIBaseURL:    getEnv("FACEBOOK_API_BASE_URL", "https://graph.facebook.com/v21.0"),
		},
		LinkedIn: PlatformWorker{
			Concurrency:   getEnvInt("LINKEDIN_CONCURRENCY", 2),
			JobsPerMinute: getEnvInt("LINKEDIN_JOBS_PER_MINUTE", 30),
			APIBaseURL:    getEnv("LINKEDIN_API_BASE_URL", "https://api.linkedin.com"),
		},
		X: PlatformWorker{
			Concurrency:   getEnvInt("X_CONCURRENCY", 1),
			JobsPerMinute: getEnvInt("X_JOBS_PER_MINUTE", 15),
			APIBaseURL:    getEnv("X_API_BASE_URL", "https://api.x.com"),
		},
		ReconcileInterval:    getEnvDuration("RECONCILE_INTERVAL", 5*time.Minute),
		StalePublishingAfter: getEnvDuration("STALE_PUBLISHING_AFTER", 15*time.Minute),
		ShutdownTimeout:      getEnvDuration("SHUTDOWN_TIMEOUT", 30*time.Second),
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
