package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds application configuration
type Config struct {
	ServerPort      string
	DatabaseType    string // sqlite, postgres, or mysql
	DatabasePath    string // sqlite only
	DatabaseURL     string // postgres/mysql DSN
	SessionDuration time.Duration
	UploadMaxSize   int64

	// Proof image storage
	StorageBackend string // local or s3
	StoragePath    string // local backend root directory
	S3Bucket       string
	S3Region       string
	ProofURLSecret string // signs local download URLs
	ProofURLTTL    time.Duration

	// AI verification gateway
	VerifierURL     string
	VerifierAPIKey  string
	VerifierModel   string
	VerifierTimeout time.Duration

	// Email notifications (Amazon SES)
	SESFromEmail string
	AWSRegion    string
	AppBaseURL   string
}

// Load reads configuration from environment variables with sensible defaults.
// A .env file in the working directory is loaded first if present.
func Load() *Config {
	// Ignore error: .env is optional, real env vars still apply
	_ = godotenv.Load()

	return &Config{
		ServerPort:      getEnv("PORT", "8080"),
		DatabaseType:    getEnv("DB_TYPE", "sqlite"),
		DatabasePath:    getEnv("DB_PATH", "./questkeeper.db"),
		DatabaseURL:     getEnv("DB_URL", ""),
		SessionDuration: getEnvDuration("SESSION_DURATION", 24*time.Hour),
		UploadMaxSize:   getEnvInt64("UPLOAD_MAX_SIZE", 10*1024*1024), // 10MB

		StorageBackend: getEnv("STORAGE_BACKEND", "local"),
		StoragePath:    getEnv("STORAGE_PATH", "./data/proofs"),
		S3Bucket:       getEnv("S3_BUCKET", ""),
		S3Region:       getEnv("S3_REGION", ""),
		ProofURLSecret: getEnv("PROOF_URL_SECRET", ""),
		ProofURLTTL:    getEnvDuration("PROOF_URL_TTL", time.Hour),

		VerifierURL:     getEnv("VERIFIER_URL", ""),
		VerifierAPIKey:  getEnv("VERIFIER_API_KEY", ""),
		VerifierModel:   getEnv("VERIFIER_MODEL", "gpt-4o-mini"),
		VerifierTimeout: getEnvDuration("VERIFIER_TIMEOUT", 30*time.Second),

		SESFromEmail: getEnv("SES_FROM_EMAIL", ""),
		AWSRegion:    getEnv("AWS_REGION", "us-east-1"),
		AppBaseURL:   getEnv("APP_BASE_URL", "http://localhost:8080"),
	}
}

// getEnv reads an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvInt64 reads an integer environment variable or returns a default value
func getEnvInt64(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseInt(value, 10, 64); err == nil {
			return parsed
		}
	}
	return defaultValue
}

// getEnvDuration reads a duration environment variable or returns a default value
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if parsed, err := time.ParseDuration(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}
