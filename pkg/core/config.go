package core

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/joho/godotenv"
)

// Config contains the complete configuration for a session.
type Config struct {
	// LettaToken is the agent platform API token.
	LettaToken string

	// LettaBaseURL overrides the agent platform endpoint.
	LettaBaseURL string

	// TavilyAPIKey is the web search API key.
	TavilyAPIKey string

	// AgentConfigPath is where the agent reference file lives.
	AgentConfigPath string

	// Database selects and configures the storage backend.
	Database DatabaseConfig

	// Embedding selects and configures the embedding provider.
	Embedding EmbeddingConfig
}

// DatabaseConfig configures the storage backend.
type DatabaseConfig struct {
	// Provider is one of "mongodb", "sqlite", "postgres".
	Provider string

	// MongoDB settings.
	MongoURI        string
	MongoDatabase   string
	MongoCollection string

	// SQLite settings.
	SQLitePath string

	// PostgreSQL settings.
	PostgresHost     string
	PostgresPort     int
	PostgresUser     string
	PostgresPassword string
	PostgresDBName   string
	PostgresSSLMode  string
}

// EmbeddingConfig configures the embedding provider.
type EmbeddingConfig struct {
	// Provider is one of "voyage", "openai".
	Provider string

	// APIKey authenticates with the provider.
	APIKey string

	// Model overrides the provider default model.
	Model string

	// Dimensions overrides the model's default dimensionality.
	Dimensions int

	// BaseURL overrides the provider endpoint. Used by tests.
	BaseURL string
}

// LoadConfigFromEnv loads configuration from environment variables.
//
// A .env file is loaded first when one is found in the current directory or
// up to 5 levels above it.
func LoadConfigFromEnv() (*Config, error) {
	if envPath, found := FindEnvFile(); found {
		_ = godotenv.Load(envPath)
	} else {
		_ = godotenv.Load()
	}

	cfg := &Config{
		LettaToken:      os.Getenv("LETTA_API_TOKEN"),
		LettaBaseURL:    os.Getenv("LETTA_BASE_URL"),
		TavilyAPIKey:    os.Getenv("TAVILY_API_KEY"),
		AgentConfigPath: getEnvOrDefault("AGENT_CONFIG_PATH", "agent_config.json"),
		Database: DatabaseConfig{
			Provider:         getEnvOrDefault("DATABASE_PROVIDER", "mongodb"),
			MongoURI:         os.Getenv("MONGO_CONNECTION_STRING"),
			MongoDatabase:    getEnvOrDefault("MONGO_DATABASE", "toolmemory"),
			MongoCollection:  getEnvOrDefault("MONGO_COLLECTION", "memories"),
			SQLitePath:       getEnvOrDefault("SQLITE_DB_PATH", "sleepmem.db"),
			PostgresHost:     getEnvOrDefault("POSTGRES_HOST", "localhost"),
			PostgresPort:     getEnvIntOrDefault("POSTGRES_PORT", 5432),
			PostgresUser:     os.Getenv("POSTGRES_USER"),
			PostgresPassword: os.Getenv("POSTGRES_PASSWORD"),
			PostgresDBName:   os.Getenv("POSTGRES_DB"),
			PostgresSSLMode:  os.Getenv("POSTGRES_SSL_MODE"),
		},
		Embedding: EmbeddingConfig{
			Provider:   getEnvOrDefault("EMBEDDING_PROVIDER", "voyage"),
			Model:      os.Getenv("EMBEDDING_MODEL"),
			Dimensions: getEnvIntOrDefault("EMBEDDING_DIMENSIONS", 0),
		},
	}

	// VOYAGE_API_KEY takes precedence for the voyage provider; the generic
	// EMBEDDING_API_KEY covers the rest.
	cfg.Embedding.APIKey = os.Getenv("EMBEDDING_API_KEY")
	if cfg.Embedding.Provider == "voyage" {
		if key := os.Getenv("VOYAGE_API_KEY"); key != "" {
			cfg.Embedding.APIKey = key
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that the configuration is complete enough to start.
func (c *Config) Validate() error {
	if c.LettaToken == "" {
		return fmt.Errorf("%w: LETTA_API_TOKEN is required", ErrInvalidConfig)
	}
	if c.TavilyAPIKey == "" {
		return fmt.Errorf("%w: TAVILY_API_KEY is required", ErrInvalidConfig)
	}

	switch c.Database.Provider {
	case "mongodb":
		if c.Database.MongoURI == "" {
			return fmt.Errorf("%w: MONGO_CONNECTION_STRING is required for the mongodb provider", ErrInvalidConfig)
		}
	case "sqlite":
		if c.Database.SQLitePath == "" {
			return fmt.Errorf("%w: SQLITE_DB_PATH is required for the sqlite provider", ErrInvalidConfig)
		}
	case "postgres":
		if c.Database.PostgresUser == "" || c.Database.PostgresDBName == "" {
			return fmt.Errorf("%w: POSTGRES_USER and POSTGRES_DB are required for the postgres provider", ErrInvalidConfig)
		}
	default:
		return fmt.Errorf("%w: unsupported database provider: %s", ErrInvalidConfig, c.Database.Provider)
	}

	switch c.Embedding.Provider {
	case "voyage", "openai":
		if c.Embedding.APIKey == "" {
			return fmt.Errorf("%w: embedding API key is required for the %s provider", ErrInvalidConfig, c.Embedding.Provider)
		}
	default:
		return fmt.Errorf("%w: unsupported embedding provider: %s", ErrInvalidConfig, c.Embedding.Provider)
	}

	return nil
}

// FindEnvFile searches for a .env file in the current directory and up to 5
// directory levels above it.
func FindEnvFile() (string, bool) {
	if _, err := os.Stat(".env"); err == nil {
		return ".env", true
	}

	dir, err := os.Getwd()
	if err != nil {
		return "", false
	}

	for i := 0; i < 5; i++ {
		envPath := filepath.Join(dir, ".env")
		if _, err := os.Stat(envPath); err == nil {
			return envPath, true
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}

	return "", false
}

func getEnvOrDefault(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getEnvIntOrDefault(key string, fallback int) int {
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
