package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v10"
	"github.com/joho/godotenv"
)

// Config holds all environmentally dependent settings for cubegraph.
type Config struct {
	SPARQLEndpoint string `env:"CG_SPARQL_ENDPOINT" envDefault:"http://statistics.gov.scot/sparql.csv"`
	// SPARQLTimeout caps a single request. Zero leaves only the run deadline (CG_TIMEOUT).
	SPARQLTimeout time.Duration `env:"CG_SPARQL_TIMEOUT" envDefault:"0s"`

	// Neo4j Graph DB
	Neo4jURI      string `env:"CG_NEO4J_URI" envDefault:"bolt://localhost:7687"`
	Neo4jUser     string `env:"CG_NEO4J_USER" envDefault:"neo4j"`
	Neo4jPassword string `env:"CG_NEO4J_PASSWORD" envDefault:"neo4j"`
	Neo4jDatabase string `env:"CG_NEO4J_DATABASE" envDefault:"neo4j"`

	Timeout     time.Duration `env:"CG_TIMEOUT" envDefault:"30m"`
	Concurrency int           `env:"CG_CONCURRENCY" envDefault:"8"`
	BatchSize   int           `env:"CG_BATCH_SIZE" envDefault:"500"`

	RowLimit    int    `env:"CG_ROW_LIMIT" envDefault:"0"`
	DatasetName string `env:"CG_DATASET_NAME"`
	ExportDir   string `env:"CG_EXPORT_DIR"`

	LedgerPath string `env:"CG_LEDGER_PATH" envDefault:"cubegraph.db"`
	LogLevel   string `env:"CG_LOG_LEVEL" envDefault:"info"`

	BreakerThreshold int           `env:"CG_BREAKER_THRESHOLD" envDefault:"3"`
	BreakerTimeout   time.Duration `env:"CG_BREAKER_TIMEOUT" envDefault:"30s"`
}

// Validate ensures that all required configuration is present and valid.
func (c *Config) Validate() error {
	if c.SPARQLEndpoint == "" {
		return fmt.Errorf("CG_SPARQL_ENDPOINT is required")
	}
	if c.SPARQLTimeout < 0 {
		return fmt.Errorf("CG_SPARQL_TIMEOUT cannot be negative")
	}
	if c.Neo4jURI == "" {
		return fmt.Errorf("CG_NEO4J_URI is required")
	}
	if c.Timeout <= 0 {
		return fmt.Errorf("CG_TIMEOUT must be positive")
	}
	if c.Concurrency < 1 {
		return fmt.Errorf("CG_CONCURRENCY must be at least 1")
	}
	if c.BatchSize < 1 {
		return fmt.Errorf("CG_BATCH_SIZE must be at least 1")
	}
	if c.RowLimit < 0 {
		return fmt.Errorf("CG_ROW_LIMIT cannot be negative")
	}
	if c.BreakerThreshold < 1 {
		return fmt.Errorf("CG_BREAKER_THRESHOLD must be at least 1")
	}
	if c.BreakerTimeout <= 0 {
		return fmt.Errorf("CG_BREAKER_TIMEOUT must be positive")
	}
	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("CG_LOG_LEVEL must be one of debug, info, warn, error")
	}
	return nil
}

// Debug reports whether verbose request logging is enabled.
func (c *Config) Debug() bool {
	return c.LogLevel == "debug"
}

// Load reads an optional .env file, then parses the environment. The result is not validated so
// callers can apply flag overrides first.
func Load() (*Config, error) {
	_ = godotenv.Load()
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return cfg, nil
}
