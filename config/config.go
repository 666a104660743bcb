package config

import (
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

const (
	ProviderOpenAI = "openai"
	ProviderOllama = "ollama"
)

type Config struct {
	Port        string
	CORSOrigins []string
	Debug       bool

	// Knowledge index (Postgres + pgvector)
	PostgresDSN     string
	ChunksTable     string
	VectorDimension int

	// Chunking
	ChunkSize    int
	ChunkOverlap int

	// Embedding backend (OpenAI-compatible)
	EmbeddingsBaseURL string
	EmbeddingsAPIKey  string
	EmbeddingModel    string

	// LLM backend
	LLMProvider string
	LLMBaseURL  string
	LLMAPIKey   string
	LLMModel    string
	OllamaHost  string

	// History store (Redis)
	RedisAddr     string
	RedisPassword string
	RedisDB       int
}

// Load reads configuration from the environment, honoring a local .env file
// when present.
func Load() *Config {
	if _, err := os.Stat(".env"); err == nil {
		_ = godotenv.Load()
	}

	return &Config{
		Port:        getEnv("PORT", "8001"),
		CORSOrigins: strings.Split(getEnv("CORS_ORIGINS", "http://localhost:3000"), ","),
		Debug:       getEnvBool("DEBUG", true),

		PostgresDSN:     getEnv("POSTGRES_DSN", "postgres://localhost:5432/nexusai?sslmode=disable"),
		ChunksTable:     getEnv("CHUNKS_TABLE", "kb_chunks"),
		VectorDimension: getEnvInt("VECTOR_DIMENSION", 1024),

		ChunkSize:    getEnvInt("CHUNK_SIZE", 1000),
		ChunkOverlap: getEnvInt("CHUNK_OVERLAP", 200),

		EmbeddingsBaseURL: getEnv("EMBEDDINGS_BASE_URL", "http://localhost:8080/v1"),
		EmbeddingsAPIKey:  getEnv("EMBEDDINGS_API_KEY", ""),
		EmbeddingModel:    getEnv("EMBEDDING_MODEL", "Qwen/Qwen3-VL-Embedding-2B"),

		LLMProvider: getEnv("LLM_PROVIDER", ProviderOllama),
		LLMBaseURL:  getEnv("LLM_BASE_URL", "https://api.deepseek.com/v1"),
		LLMAPIKey:   getEnv("LLM_API_KEY", ""),
		LLMModel:    getEnv("LLM_MODEL", "qwen2.5:14b"),
		OllamaHost:  getEnv("OLLAMA_HOST", "http://localhost:11434"),

		RedisAddr:     getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getEnvInt("REDIS_DB", 0),
	}
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return fallback
}
