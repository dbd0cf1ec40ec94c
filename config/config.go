// Package config loads medrag's runtime configuration from environment
// variables, optionally seeded from a .env file.
package config

import (
	"errors"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all application configuration.
type Config struct {
	// Server configuration
	ServerHost string
	ServerPort string

	// LLM configuration
	APIKey     string
	BaseURL    string
	ChatModel  string
	EmbedModel string

	// Store URLs. Each accepts the schemes understood by the store
	// package factories (memory://, redis://, mongodb://, sqlite://,
	// postgres://, falkordb://).
	VectorStoreURL   string
	DocumentStoreURL string
	GraphStoreURL    string

	// Ingestion and retrieval tuning
	ChunkSize           int
	EmbeddingDim        int
	VectorTopK          int
	MaxResults          int
	SimilarityThreshold float64

	// Synthesis
	MaxRetries     int
	RetryDelay     time.Duration
	RequestTimeout time.Duration

	// Rate limiting
	MaxRequestsPerMinute int
	RequestInterval      time.Duration

	LogLevel string
}

// Load reads configuration from the environment. A .env file in the
// working directory is loaded first when present; missing files are
// not an error.
func Load() *Config {
	_ = godotenv.Load()

	return &Config{
		ServerHost: getEnv("SERVER_HOST", "0.0.0.0"),
		ServerPort: getEnv("SERVER_PORT", "8080"),

		APIKey:     os.Getenv("OPENAI_API_KEY"),
		BaseURL:    getEnv("OPENAI_BASE_URL", ""),
		ChatModel:  getEnv("OPENAI_MODEL", "gpt-4o-mini"),
		EmbedModel: getEnv("OPENAI_EMBED_MODEL", "text-embedding-3-small"),

		VectorStoreURL:   getEnv("VECTOR_STORE_URL", "memory://"),
		DocumentStoreURL: getEnv("DOCUMENT_STORE_URL", "memory://"),
		GraphStoreURL:    getEnv("GRAPH_STORE_URL", "memory://"),

		ChunkSize:           getIntEnv("CHUNK_SIZE", 100000),
		EmbeddingDim:        getIntEnv("EMBEDDING_DIM", 384),
		VectorTopK:          getIntEnv("VECTOR_TOP_K", 50),
		MaxResults:          getIntEnv("MAX_RESULTS", 5),
		SimilarityThreshold: getFloatEnv("SIMILARITY_THRESHOLD", 0.3),

		MaxRetries:     getIntEnv("MAX_RETRIES", 3),
		RetryDelay:     getDurationEnv("RETRY_DELAY", 2*time.Second),
		RequestTimeout: getDurationEnv("REQUEST_TIMEOUT", 60*time.Second),

		MaxRequestsPerMinute: getIntEnv("MAX_REQUESTS_PER_MINUTE", 10),
		RequestInterval:      getDurationEnv("REQUEST_INTERVAL", 6*time.Second),

		LogLevel: getEnv("LOG_LEVEL", "info"),
	}
}

// Validate checks that required configuration is present.
func (c *Config) Validate() error {
	if c.APIKey == "" {
		return errors.New("OPENAI_API_KEY environment variable is required")
	}
	if c.ChunkSize <= 0 {
		return errors.New("CHUNK_SIZE must be positive")
	}
	if c.EmbeddingDim <= 0 {
		return errors.New("EMBEDDING_DIM must be positive")
	}
	return nil
}

// getEnv retrieves an environment variable or returns a default value.
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getFloatEnv(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseFloat(value, 64); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if parsed, err := time.ParseDuration(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}
