package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// Config holds all application configuration.
type Config struct {
	Env        string
	DataDir    string
	Server     ServerConfig
	Database   DatabaseConfig
	Store      StoreConfig
	Embedding  EmbeddingConfig
	Emotion    EmotionConfig
	Memory     MemoryConfig
	Encryption EncryptionConfig
}

// productionEnv is the RHYTHM_ENV value that triggers fail-closed
// validation of secrets that otherwise default for local development.
const productionEnv = "production"

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Port string
}

// DatabaseConfig holds the optional ingestion-ledger database configuration.
// The vector store itself never touches Postgres; only the ingestion audit
// ledger does, and only when DB_NAME is set.
type DatabaseConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
	SSLMode  string
}

// Enabled reports whether a ledger database was configured.
func (d DatabaseConfig) Enabled() bool {
	return d.DBName != ""
}

// StoreConfig configures the vector store backend.
type StoreConfig struct {
	// Kind selects the backend: "hnsw" or "flat".
	Kind string
	Path string
	Dim  int
}

// EmbeddingConfig names the embedding model identifier and dimension used
// both to tag stored vectors and to key the prototype cache.
type EmbeddingConfig struct {
	ModelID   string
	Dimension int
}

// EmotionConfig names the sentiment model identifier the EmotionAnalyzer's
// sentiment wrapper depends on (spec.md §6 EMOTION_MODEL).
type EmotionConfig struct {
	ModelID string
}

// MemoryConfig configures per-user encrypted conversation/profile storage.
type MemoryConfig struct {
	Dir                string
	MaxConversationLen int
	// Window bounds how many recent emotion snapshots ContextManager
	// surfaces in EnrichedContext (spec.md §6 MEMORY_WINDOW).
	Window int
}

// EncryptionConfig configures the AES-256-GCM + PBKDF2 encryptor shared by
// conversation memory and user profiles.
type EncryptionConfig struct {
	MasterKey string
}

// Load loads configuration from environment variables, optionally seeded
// from a .env file.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		fmt.Println("Warning: .env file not found, using system environment variables")
	}

	dim, err := strconv.Atoi(getEnvWithDefault("EMBEDDING_DIMENSION", "384"))
	if err != nil {
		return nil, fmt.Errorf("parsing EMBEDDING_DIMENSION: %w", err)
	}

	maxHistory, err := strconv.Atoi(getEnvWithDefault("MAX_CONVERSATION_HISTORY", "50"))
	if err != nil {
		return nil, fmt.Errorf("parsing MAX_CONVERSATION_HISTORY: %w", err)
	}

	memoryWindow, err := strconv.Atoi(getEnvWithDefault("MEMORY_WINDOW", "10"))
	if err != nil {
		return nil, fmt.Errorf("parsing MEMORY_WINDOW: %w", err)
	}

	env := getEnvWithDefault("RHYTHM_ENV", "development")
	masterKey := os.Getenv("RHYTHM_MASTER_KEY")
	if masterKey == "" {
		if env == productionEnv {
			return nil, fmt.Errorf("config: RHYTHM_MASTER_KEY must be set when RHYTHM_ENV=%s", productionEnv)
		}
		masterKey = "default_master_key_change_in_production"
	}

	cfg := &Config{
		Env:     env,
		DataDir: getEnvWithDefault("DATA_DIR", "./data"),
		Server: ServerConfig{
			Port: getEnvWithDefault("PORT", "8080"),
		},
		Database: DatabaseConfig{
			Host:     getEnvWithDefault("DB_HOST", "localhost"),
			Port:     getEnvWithDefault("DB_PORT", "5432"),
			User:     getEnvWithDefault("DB_USER", ""),
			Password: getEnvWithDefault("DB_PASSWORD", ""),
			DBName:   getEnvWithDefault("DB_NAME", ""),
			SSLMode:  getEnvWithDefault("DB_SSL_MODE", "disable"),
		},
		Store: StoreConfig{
			Kind: getEnvWithDefault("VECTOR_STORE", "hnsw"),
			Path: getEnvWithDefault("STORE_DIR", "./data/store"),
			Dim:  dim,
		},
		Embedding: EmbeddingConfig{
			ModelID:   getEnvWithDefault("EMBEDDING_MODEL", "rhythmai-hash-embedder-v1"),
			Dimension: dim,
		},
		Emotion: EmotionConfig{
			ModelID: getEnvWithDefault("EMOTION_MODEL", "rhythmai-lexicon-sentiment-v1"),
		},
		Memory: MemoryConfig{
			Dir:                getEnvWithDefault("MEMORY_DIR", "./data/memory"),
			MaxConversationLen: maxHistory,
			Window:             memoryWindow,
		},
		Encryption: EncryptionConfig{
			MasterKey: masterKey,
		},
	}

	return cfg, nil
}

func getEnvWithDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// GetDatabaseURL returns the formatted Postgres connection string for the
// ingestion ledger.
func (c *Config) GetDatabaseURL() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s",
		c.Database.User,
		c.Database.Password,
		c.Database.Host,
		c.Database.Port,
		c.Database.DBName,
		c.Database.SSLMode,
	)
}
