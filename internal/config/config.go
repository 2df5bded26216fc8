package config

import (
	"os"
	"strconv"
	"time"

	"go.uber.org/zap"
)

// Config holds all configuration for the platform binaries.
type Config struct {
	AppEnv      string
	ListenAddr  string
	DatabaseURL string
	RedisAddr   string

	JWTSecret         string
	AccessTokenExpiry time.Duration

	S3Bucket    string
	S3Region    string
	S3AccessKey string
	S3SecretKey string
	S3Endpoint  string // optional, set for minio in dev

	StripeSecretKey     string
	StripeWebhookSecret string

	SendgridAPIKey string
	FromEmail      string
	FrontendURL    string
}

// LoadFromEnv loads configuration from environment variables.
func LoadFromEnv() *Config {
	expiryMin, err := strconv.Atoi(getEnv("ACCESS_TOKEN_EXPIRE_MINUTES", "30"))
	if err != nil {
		expiryMin = 30
	}

	return &Config{
		AppEnv:            getEnv("APP_ENV", "development"),
		ListenAddr:        getEnv("LISTEN_ADDR", ":8000"),
		DatabaseURL:       os.Getenv("DATABASE_URL"),
		RedisAddr:         getEnv("REDIS_ADDR", "localhost:6379"),
		JWTSecret:         getEnv("JWT_SECRET", "dev-secret-change-in-production"),
		AccessTokenExpiry: time.Duration(expiryMin) * time.Minute,

		S3Bucket:    os.Getenv("S3_BUCKET"),
		S3Region:    getEnv("S3_REGION", "us-east-1"),
		S3AccessKey: os.Getenv("S3_ACCESS_KEY"),
		S3SecretKey: os.Getenv("S3_SECRET_KEY"),
		S3Endpoint:  os.Getenv("S3_ENDPOINT"),

		StripeSecretKey:     os.Getenv("STRIPE_SECRET_KEY"),
		StripeWebhookSecret: os.Getenv("STRIPE_WEBHOOK_SECRET"),

		SendgridAPIKey: os.Getenv("SENDGRID_API_KEY"),
		FromEmail:      getEnv("FROM_EMAIL", "no-reply@tryseedling.live"),
		FrontendURL:    getEnv("FRONTEND_URL", "http://localhost:3000"),
	}
}

// NewLogger creates a zap logger based on the config.
func NewLogger(cfg *Config) (*zap.Logger, error) {
	if cfg.AppEnv == "production" {
		return zap.NewProduction()
	}
	return zap.NewDevelopment()
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}
