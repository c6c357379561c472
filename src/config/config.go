package config

import (
	"fmt"
	"strings"
	"time"
)

// Config is the top-level application configuration.
type Config struct {
	ConfigVersion int             `mapstructure:"config_version" yaml:"config_version"`
	Provider      string          `mapstructure:"provider" yaml:"provider"`
	Model         string          `mapstructure:"model" yaml:"model"`
	Describer     DescriberConfig `mapstructure:"describer" yaml:"describer"`
	Limits        LimitsConfig    `mapstructure:"limits" yaml:"limits"`
	History       History         `mapstructure:"history" yaml:"history"`
	Cache         CacheConfig     `mapstructure:"cache" yaml:"cache"`
	HTTP          HTTPConfig      `mapstructure:"http" yaml:"http"`
}

// CurrentConfigVersion marks the supported config version.
const CurrentConfigVersion = 1

// DescriberConfig selects the model that suggests reference descriptions.
type DescriberConfig struct {
	Provider string `mapstructure:"provider" yaml:"provider"`
	Model    string `mapstructure:"model" yaml:"model"`
}

// LimitsConfig bounds concurrent generation work.
type LimitsConfig struct {
	MaxInFlight int `mapstructure:"max_in_flight" yaml:"max_in_flight"`
	MaxBatch    int `mapstructure:"max_batch" yaml:"max_batch"`
}

// History selects where generated images are mirrored.
type History struct {
	Store           string `mapstructure:"store" yaml:"store"`
	PostgresDSN     string `mapstructure:"postgres_dsn" yaml:"postgres_dsn"`
	MongoURI        string `mapstructure:"mongo_uri" yaml:"mongo_uri"`
	MongoDatabase   string `mapstructure:"mongo_database" yaml:"mongo_database"`
	MongoCollection string `mapstructure:"mongo_collection" yaml:"mongo_collection"`
	Neo4jURI        string `mapstructure:"neo4j_uri" yaml:"neo4j_uri"`
	Neo4jUser       string `mapstructure:"neo4j_user" yaml:"neo4j_user"`
	Neo4jPassword   string `mapstructure:"neo4j_password" yaml:"neo4j_password"`
	Neo4jDatabase   string `mapstructure:"neo4j_database" yaml:"neo4j_database"`
	Neo4jBase       string `mapstructure:"neo4j_base" yaml:"neo4j_base"`
}

// CacheConfig controls the optional response cache in front of the image provider.
type CacheConfig struct {
	Size       int    `mapstructure:"size" yaml:"size"`
	TTLSeconds int    `mapstructure:"ttl_seconds" yaml:"ttl_seconds"`
	Path       string `mapstructure:"path" yaml:"path"`
}

// TTL returns the cache entry lifetime.
func (c CacheConfig) TTL() time.Duration {
	return time.Duration(c.TTLSeconds) * time.Second
}

// HTTPConfig controls the API listener.
type HTTPConfig struct {
	Addr string `mapstructure:"addr" yaml:"addr"`
}

// DefaultConfig returns the built-in configuration.
func DefaultConfig() Config {
	return Config{
		ConfigVersion: CurrentConfigVersion,
		Provider:      "gemini",
		Describer: DescriberConfig{
			Provider: "none",
		},
		Limits: LimitsConfig{
			MaxInFlight: 2,
			MaxBatch:    4,
		},
		History: History{
			Store:           "memory",
			MongoDatabase:   "backdrop",
			MongoCollection: "generation_history",
			Neo4jDatabase:   "neo4j",
			Neo4jBase:       "memory",
		},
		Cache: CacheConfig{
			TTLSeconds: 3600,
		},
		HTTP: HTTPConfig{
			Addr: ":8080",
		},
	}
}

var (
	providers     = []string{"gemini", "google", "openai", "dummy"}
	describers    = []string{"none", "anthropic", "claude", "ollama", "gemini", "google"}
	historyStores = []string{"memory", "postgres", "mongo", "neo4j"}
	neo4jBases    = []string{"memory", "postgres", "mongo"}
)

// Validate checks values that viper cannot type-check.
func (c Config) Validate() error {
	if !oneOf(c.Provider, providers) {
		return fmt.Errorf("unsupported provider %q", c.Provider)
	}
	if !oneOf(c.Describer.Provider, describers) {
		return fmt.Errorf("unsupported describer.provider %q", c.Describer.Provider)
	}
	if c.Limits.MaxInFlight < 1 {
		return fmt.Errorf("limits.max_in_flight must be at least 1, got %d", c.Limits.MaxInFlight)
	}
	if c.Limits.MaxBatch < 1 {
		return fmt.Errorf("limits.max_batch must be at least 1, got %d", c.Limits.MaxBatch)
	}
	if c.Cache.Size < 0 {
		return fmt.Errorf("cache.size must not be negative, got %d", c.Cache.Size)
	}
	if c.Cache.Size > 0 && c.Cache.TTLSeconds <= 0 {
		return fmt.Errorf("cache.ttl_seconds must be positive when the cache is enabled")
	}
	return c.History.Validate()
}

// Validate checks that the selected store has the settings it needs.
func (h History) Validate() error {
	if !oneOf(h.Store, historyStores) {
		return fmt.Errorf("unsupported history.store %q", h.Store)
	}
	if h.Store == "neo4j" {
		if strings.TrimSpace(h.Neo4jURI) == "" {
			return fmt.Errorf("history.neo4j_uri is required for the neo4j store")
		}
		if !oneOf(h.Neo4jBase, neo4jBases) {
			return fmt.Errorf("unsupported history.neo4j_base %q", h.Neo4jBase)
		}
	}
	switch h.base() {
	case "postgres":
		if strings.TrimSpace(h.PostgresDSN) == "" {
			return fmt.Errorf("history.postgres_dsn is required for the postgres store")
		}
	case "mongo":
		if strings.TrimSpace(h.MongoURI) == "" {
			return fmt.Errorf("history.mongo_uri is required for the mongo store")
		}
	}
	return nil
}

// base returns the store that holds the records themselves.
func (h History) base() string {
	if h.Store == "neo4j" {
		return h.Neo4jBase
	}
	return h.Store
}

func oneOf(value string, allowed []string) bool {
	value = strings.ToLower(strings.TrimSpace(value))
	for _, candidate := range allowed {
		if value == candidate {
			return true
		}
	}
	return false
}
