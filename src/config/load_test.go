package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.Limits.MaxInFlight != 2 || cfg.Limits.MaxBatch != 4 {
		t.Fatalf("unexpected limits: %+v", cfg.Limits)
	}
	if cfg.History.Store != "memory" {
		t.Fatalf("expected memory history store, got %q", cfg.History.Store)
	}
}

func TestLoadRejectsUnsupportedConfigVersion(t *testing.T) {
	path := writeConfig(t, `
config_version: 3
provider: dummy
`)
	if _, err := Load(path); err == nil || !strings.Contains(err.Error(), "unsupported config_version") {
		t.Fatalf("expected config_version error, got %v", err)
	}
}

func TestLoadRequiresConfigVersion(t *testing.T) {
	path := writeConfig(t, `
provider: dummy
`)
	if _, err := Load(path); err == nil || !strings.Contains(err.Error(), "config_version is required") {
		t.Fatalf("expected missing config_version error, got %v", err)
	}
}

func TestLoadReadsFile(t *testing.T) {
	path := writeConfig(t, `
config_version: 1
provider: openai
model: gpt-image-1
limits:
  max_in_flight: 3
history:
  store: postgres
  postgres_dsn: postgres://localhost/backdrop
cache:
  size: 16
  ttl_seconds: 60
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.Provider != "openai" || cfg.Model != "gpt-image-1" {
		t.Fatalf("unexpected provider settings: %q %q", cfg.Provider, cfg.Model)
	}
	if cfg.Limits.MaxInFlight != 3 || cfg.Limits.MaxBatch != 4 {
		t.Fatalf("expected file value merged with defaults, got %+v", cfg.Limits)
	}
	if cfg.Cache.TTL().Seconds() != 60 {
		t.Fatalf("unexpected cache ttl %v", cfg.Cache.TTL())
	}
}

func TestLoadEnvOverride(t *testing.T) {
	t.Setenv("BACKDROP_PROVIDER", "dummy")
	t.Setenv("BACKDROP_LIMITS_MAX_BATCH", "2")
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.Provider != "dummy" {
		t.Fatalf("expected env provider override, got %q", cfg.Provider)
	}
	if cfg.Limits.MaxBatch != 2 {
		t.Fatalf("expected env max_batch override, got %d", cfg.Limits.MaxBatch)
	}
}

func TestLoadRejectsStoreWithoutConnection(t *testing.T) {
	path := writeConfig(t, `
config_version: 1
history:
  store: mongo
`)
	if _, err := Load(path); err == nil || !strings.Contains(err.Error(), "history.mongo_uri") {
		t.Fatalf("expected mongo_uri error, got %v", err)
	}
}

func TestValidateNeo4jNeedsBase(t *testing.T) {
	h := DefaultConfig().History
	h.Store = "neo4j"
	h.Neo4jURI = "neo4j://localhost:7687"
	h.Neo4jBase = "neo4j"
	if err := h.Validate(); err == nil || !strings.Contains(err.Error(), "neo4j_base") {
		t.Fatalf("expected neo4j_base error, got %v", err)
	}
	h.Neo4jBase = "postgres"
	if err := h.Validate(); err == nil || !strings.Contains(err.Error(), "postgres_dsn") {
		t.Fatalf("expected postgres_dsn error, got %v", err)
	}
}

func TestWriteDefaultRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")
	if err := WriteDefault(path, false); err != nil {
		t.Fatalf("WriteDefault returned error: %v", err)
	}
	if err := WriteDefault(path, false); err == nil {
		t.Fatalf("expected refusal to overwrite existing config")
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load of default config returned error: %v", err)
	}
	if cfg.HTTP.Addr != ":8080" {
		t.Fatalf("unexpected http addr %q", cfg.HTTP.Addr)
	}
}

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(strings.TrimSpace(body)+"\n"), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}
