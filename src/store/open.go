package store

import (
	"context"
	"fmt"

	"github.com/Protocol-Lattice/backdrop/src/config"
)

// Open builds the HistoryStore selected by cfg and bootstraps its schema.
func Open(ctx context.Context, cfg config.History) (HistoryStore, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.Store != "neo4j" {
		return openBase(ctx, cfg.Store, cfg)
	}

	base, err := openBase(ctx, cfg.Neo4jBase, cfg)
	if err != nil {
		return nil, err
	}
	driver, err := DialNeo4j(ctx, cfg.Neo4jURI, cfg.Neo4jUser, cfg.Neo4jPassword)
	if err != nil {
		_ = base.Close(ctx)
		return nil, fmt.Errorf("connect neo4j: %w", err)
	}
	graph, err := NewNeo4jStore(base, driver, cfg.Neo4jDatabase)
	if err != nil {
		_ = base.Close(ctx)
		_ = driver.Close(ctx)
		return nil, err
	}
	if err := graph.EnsureSchema(ctx); err != nil {
		_ = graph.Close(ctx)
		return nil, err
	}
	return graph, nil
}

func openBase(ctx context.Context, kind string, cfg config.History) (HistoryStore, error) {
	var (
		hs  HistoryStore
		err error
	)
	switch kind {
	case "", "memory":
		return NewMemoryStore(), nil
	case "postgres":
		hs, err = NewPostgresStore(ctx, cfg.PostgresDSN)
	case "mongo":
		hs, err = NewMongoStore(ctx, cfg.MongoURI, cfg.MongoDatabase, cfg.MongoCollection)
	default:
		return nil, fmt.Errorf("unknown history store: %s", kind)
	}
	if err != nil {
		return nil, err
	}
	// The neo4j wrapper bootstraps its base itself.
	if cfg.Store != "neo4j" {
		if initializer, ok := hs.(SchemaInitializer); ok {
			if err := initializer.EnsureSchema(ctx); err != nil {
				_ = hs.Close(ctx)
				return nil, fmt.Errorf("%s schema: %w", kind, err)
			}
		}
	}
	return hs, nil
}
