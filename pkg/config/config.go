package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Port        string
	JWTSecret   string
	DatabaseURL string

	// Remote mailbox provider (Nylas-compatible delta sync API)
	NylasAPIBaseURL    string
	WebhookCallbackURL string

	// Sync tuning
	SyncDaysWithin      int
	SyncMaxPages        int
	SyncPollInterval    time.Duration
	SyncPollMaxAttempts int
	SyncResyncInterval  time.Duration
	RemoteTimeout       time.Duration

	// Embeddings
	EmbeddingProvider string
	OpenAIAPIKey      string
	OllamaBaseURL     string
	OllamaModel       string
}

func Load() *Config {
	// Load .env file if it exists
	_ = godotenv.Load()

	return &Config{
		Port:                getEnv("PORT", "8080"),
		JWTSecret:           getEnv("JWT_SECRET", "your-secret-key-change-in-production"),
		DatabaseURL:         getEnv("DATABASE_URL", ""),
		NylasAPIBaseURL:     getEnv("NYLAS_API_BASE_URL", "https://api.eu.nylas.com/v3"),
		WebhookCallbackURL:  getEnv("WEBHOOK_CALLBACK_URL", ""),
		SyncDaysWithin:      getEnvInt("SYNC_DAYS_WITHIN", 3),
		SyncMaxPages:        getEnvInt("SYNC_MAX_PAGES", 100),
		SyncPollInterval:    getEnvDuration("SYNC_POLL_INTERVAL", 1*time.Second),
		SyncPollMaxAttempts: getEnvInt("SYNC_POLL_MAX_ATTEMPTS", 60),
		SyncResyncInterval:  getEnvDuration("SYNC_RESYNC_INTERVAL", 5*time.Minute),
		RemoteTimeout:       getEnvDuration("REMOTE_TIMEOUT", 30*time.Second),
		EmbeddingProvider:   getEnv("EMBEDDING_PROVIDER", "auto"),
		OpenAIAPIKey:        getEnv("OPENAI_API_KEY", ""),
		OllamaBaseURL:       getEnv("OLLAMA_BASE_URL", "http://localhost:11434"),
		OllamaModel:         getEnv("OLLAMA_EMBED_MODEL", "nomic-embed-text"),
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
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if parsed, err := time.ParseDuration(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}
