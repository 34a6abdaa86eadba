package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/spf13/viper"
)

// Config holds all configuration for the application
type Config struct {
	// Log configuration
	Log LogConfig `mapstructure:"log"`

	// Server configuration
	Server ServerConfig `mapstructure:"server"`

	// Graph database configuration
	Graph GraphConfig `mapstructure:"graph"`

	// Vector store configuration
	Vector VectorConfig `mapstructure:"vector"`

	// Embedding configuration
	Embedding EmbeddingConfig `mapstructure:"embedding"`

	// Retrieval configuration
	Retrieval RetrievalConfig `mapstructure:"retrieval"`

	// EntityContext configuration
	EntityContext EntityContextConfig `mapstructure:"entity_context"`

	// CircuitBreaker configuration
	CircuitBreaker CircuitBreakerConfig `mapstructure:"circuit_breaker"`
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// ServerConfig holds server configuration
type ServerConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
	Mode string `mapstructure:"mode"` // gin mode: debug, release, test
}

// GraphConfig holds graph database configuration
type GraphConfig struct {
	URI      string `mapstructure:"uri"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
	Database string `mapstructure:"database"`
}

// VectorConfig holds vector store configuration
type VectorConfig struct {
	// DSN is the Postgres connection string of the pgvector database.
	DSN string `mapstructure:"dsn"`
	// ChunkTable is the table backing the chunk index.
	ChunkTable string `mapstructure:"chunk_table"`
}

// EmbeddingConfig holds embedding configuration
type EmbeddingConfig struct {
	Provider string `mapstructure:"provider"` // openai, etc.
	Model    string `mapstructure:"model"`
	APIKey   string `mapstructure:"api_key"`
	BaseURL  string `mapstructure:"base_url"`
}

// RetrievalConfig holds chunk retrieval tuning knobs
type RetrievalConfig struct {
	BeamWidth       int  `mapstructure:"beam_width"`
	BeamMaxDepth    int  `mapstructure:"beam_max_depth"`
	TopK            int  `mapstructure:"top_k"`
	ShareResults    bool `mapstructure:"share_results"`
	CacheMaxEntries int  `mapstructure:"cache_max_entries"` // 0 means unbounded
}

// EntityContextConfig holds entity context pipeline tuning knobs
type EntityContextConfig struct {
	MaxDepth       int     `mapstructure:"max_depth"`
	MaxContexts    int     `mapstructure:"max_contexts"`
	MinScoreFactor float64 `mapstructure:"min_score_factor"`
	MaxScoreFactor float64 `mapstructure:"max_score_factor"`
	EnrichQuery    bool    `mapstructure:"enrich_query"`
}

// CircuitBreakerConfig holds configuration for circuit breaking
type CircuitBreakerConfig struct {
	Enabled             bool `mapstructure:"enabled"`
	ConsecutiveFailures int  `mapstructure:"consecutive_failures"`
	Timeout             int  `mapstructure:"timeout"` // in seconds
}

// Load loads configuration from file and environment variables
func Load() (*Config, error) {
	// Set defaults
	setDefaults()

	config := &Config{}
	if err := viper.Unmarshal(config); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}

	// Override with environment variables if present
	overrideWithEnv(config)

	return config, nil
}

// setDefaults sets default configuration values
func setDefaults() {
	// Log defaults
	viper.SetDefault("log.level", "info")
	viper.SetDefault("log.format", "text")

	// Server defaults
	viper.SetDefault("server.host", "localhost")
	viper.SetDefault("server.port", 8080)
	viper.SetDefault("server.mode", "debug")

	// Graph database defaults
	viper.SetDefault("graph.uri", "bolt://localhost:7687")
	viper.SetDefault("graph.username", "neo4j")
	viper.SetDefault("graph.password", "")
	viper.SetDefault("graph.database", "neo4j")

	// Vector store defaults
	viper.SetDefault("vector.dsn", "postgres://localhost:5432/graphweave?sslmode=disable")
	viper.SetDefault("vector.chunk_table", "chunks")

	// Embedding defaults
	viper.SetDefault("embedding.provider", "openai")
	viper.SetDefault("embedding.model", "text-embedding-3-small")

	// Retrieval defaults
	viper.SetDefault("retrieval.beam_width", 10)
	viper.SetDefault("retrieval.beam_max_depth", 3)
	viper.SetDefault("retrieval.top_k", 100)
	viper.SetDefault("retrieval.share_results", true)
	viper.SetDefault("retrieval.cache_max_entries", 0)

	// Entity context defaults
	viper.SetDefault("entity_context.max_depth", 3)
	viper.SetDefault("entity_context.max_contexts", 5)
	viper.SetDefault("entity_context.min_score_factor", 0.2)
	viper.SetDefault("entity_context.max_score_factor", 1.0)
	viper.SetDefault("entity_context.enrich_query", false)

	// Circuit breaker defaults
	viper.SetDefault("circuit_breaker.enabled", false)
	viper.SetDefault("circuit_breaker.consecutive_failures", 5)
	viper.SetDefault("circuit_breaker.timeout", 30)
}

// overrideWithEnv overrides config with environment variables
func overrideWithEnv(config *Config) {
	// Graph database credentials
	if uri := os.Getenv("NEO4J_URI"); uri != "" {
		config.Graph.URI = uri
	}
	if user := os.Getenv("NEO4J_USER"); user != "" {
		config.Graph.Username = user
	}
	if pass := os.Getenv("NEO4J_PASSWORD"); pass != "" {
		config.Graph.Password = pass
	}
	if db := os.Getenv("NEO4J_DATABASE"); db != "" {
		config.Graph.Database = db
	}

	// Vector store settings
	if dsn := os.Getenv("PGVECTOR_DSN"); dsn != "" {
		config.Vector.DSN = dsn
	}

	// Embedding credentials
	if apiKey := os.Getenv("OPENAI_API_KEY"); apiKey != "" {
		config.Embedding.APIKey = apiKey
	}
	if baseURL := os.Getenv("OPENAI_BASE_URL"); baseURL != "" {
		config.Embedding.BaseURL = baseURL
	}

	// Server settings
	if host := os.Getenv("SERVER_HOST"); host != "" {
		config.Server.Host = host
	}
	if port := os.Getenv("SERVER_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			config.Server.Port = p
		}
	}
}
