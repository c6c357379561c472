package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// EnvPrefix namespaces environment overrides, e.g. BACKDROP_LIMITS_MAX_IN_FLIGHT.
const EnvPrefix = "BACKDROP"

// DefaultConfigPath returns the per-user config location.
func DefaultConfigPath() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "backdrop", "config.yaml"), nil
}

// Load reads configuration from path, applying defaults and BACKDROP_* environment
// overrides. A missing file is not an error; an empty path uses DefaultConfigPath.
func Load(path string) (Config, error) {
	if path == "" {
		defaultPath, err := DefaultConfigPath()
		if err != nil {
			return Config{}, err
		}
		path = defaultPath
	}

	cfg := DefaultConfig()

	v := viper.New()
	v.SetConfigType("yaml")
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("config_version", cfg.ConfigVersion)
	v.SetDefault("provider", cfg.Provider)
	v.SetDefault("model", cfg.Model)
	v.SetDefault("describer.provider", cfg.Describer.Provider)
	v.SetDefault("describer.model", cfg.Describer.Model)
	v.SetDefault("limits.max_in_flight", cfg.Limits.MaxInFlight)
	v.SetDefault("limits.max_batch", cfg.Limits.MaxBatch)
	v.SetDefault("history.store", cfg.History.Store)
	v.SetDefault("history.postgres_dsn", cfg.History.PostgresDSN)
	v.SetDefault("history.mongo_uri", cfg.History.MongoURI)
	v.SetDefault("history.mongo_database", cfg.History.MongoDatabase)
	v.SetDefault("history.mongo_collection", cfg.History.MongoCollection)
	v.SetDefault("history.neo4j_uri", cfg.History.Neo4jURI)
	v.SetDefault("history.neo4j_user", cfg.History.Neo4jUser)
	v.SetDefault("history.neo4j_password", cfg.History.Neo4jPassword)
	v.SetDefault("history.neo4j_database", cfg.History.Neo4jDatabase)
	v.SetDefault("history.neo4j_base", cfg.History.Neo4jBase)
	v.SetDefault("cache.size", cfg.Cache.Size)
	v.SetDefault("cache.ttl_seconds", cfg.Cache.TTLSeconds)
	v.SetDefault("cache.path", cfg.Cache.Path)
	v.SetDefault("http.addr", cfg.HTTP.Addr)

	configLoaded := false
	if _, err := os.Stat(path); err == nil {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return Config{}, fmt.Errorf("read config %s: %w", path, err)
			}
		} else {
			configLoaded = true
		}
	} else if !errors.Is(err, os.ErrNotExist) {
		return Config{}, err
	}

	if configLoaded {
		if !v.InConfig("config_version") {
			return Config{}, fmt.Errorf("config_version is required; expected %d", CurrentConfigVersion)
		}
		if got := v.GetInt("config_version"); got != CurrentConfigVersion {
			return Config{}, fmt.Errorf("unsupported config_version %d; expected %d", got, CurrentConfigVersion)
		}
	}

	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, err
	}
	cfg.Provider = strings.ToLower(strings.TrimSpace(cfg.Provider))
	cfg.Describer.Provider = strings.ToLower(strings.TrimSpace(cfg.Describer.Provider))
	cfg.History.Store = strings.ToLower(strings.TrimSpace(cfg.History.Store))
	cfg.History.Neo4jBase = strings.ToLower(strings.TrimSpace(cfg.History.Neo4jBase))
	cfg.Cache.Path = os.ExpandEnv(cfg.Cache.Path)

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// WriteDefault writes the default configuration as YAML to path. Existing files are left
// alone unless overwrite is set.
func WriteDefault(path string, overwrite bool) error {
	if !overwrite {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("config already exists: %s", path)
		}
	}
	data, err := yaml.Marshal(DefaultConfig())
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o600)
}
