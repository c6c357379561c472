package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Neo4jAccessMode controls whether a session is opened for read or write operations.
type Neo4jAccessMode string

const (
	AccessModeWrite Neo4jAccessMode = "write"
	AccessModeRead  Neo4jAccessMode = "read"
)

// Neo4jSessionConfig mirrors the minimal subset of Neo4j session configuration we require.
type Neo4jSessionConfig struct {
	AccessMode   Neo4jAccessMode
	DatabaseName string
}

// neo4jDriver abstracts the driver capabilities the store uses so tests can supply fakes.
type neo4jDriver interface {
	NewSession(ctx context.Context, config Neo4jSessionConfig) (neo4jSession, error)
	Close(ctx context.Context) error
}

type neo4jSession interface {
	BeginTransaction(ctx context.Context) (neo4jTransaction, error)
	Run(ctx context.Context, query string, params map[string]any) (neo4jResult, error)
	Close(ctx context.Context) error
}

type neo4jTransaction interface {
	Run(ctx context.Context, query string, params map[string]any) (neo4jResult, error)
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
	Close(ctx context.Context) error
}

type neo4jResult interface {
	Next(ctx context.Context) bool
	Record() neo4jRecord
	Err() error
	Close(ctx context.Context) error
}

type neo4jRecord interface {
	Get(key string) (any, bool)
}

// Neo4jStore composes a HistoryStore with a lineage graph kept in Neo4j.
//
// Image bytes and listing stay with the base store. Every appended record also becomes a
// (:Generation) node, linked to its parent with a DERIVED_FROM edge when it was produced
// by a refine or reframe.
type Neo4jStore struct {
	base     HistoryStore
	driver   neo4jDriver
	database string
	nowFn    func() time.Time
}

// ErrNeo4jUnavailable is returned when graph operations are attempted without a configured driver.
var ErrNeo4jUnavailable = errors.New("neo4j driver not configured")

// MaxLineageDepth bounds how many DERIVED_FROM hops a lineage query follows.
const MaxLineageDepth = 32

const (
	neo4jConstraintCypher = `CREATE CONSTRAINT generation_id IF NOT EXISTS FOR (g:Generation) REQUIRE g.id IS UNIQUE`

	neo4jUpsertNodeCypher = `
MERGE (g:Generation {id: $id})
SET g.tab_id = $tab_id,
    g.kind = $kind,
    g.mode = $mode,
    g.prompt = $prompt,
    g.variant = $variant,
    g.created_at = $created_at,
    g.updated_at = $updated_at`

	neo4jUpsertEdgeCypher = `
MATCH (child:Generation {id: $id})
MERGE (parent:Generation {id: $parent_id})
MERGE (child)-[r:DERIVED_FROM]->(parent)
SET r.updated_at = $updated_at`

	neo4jLineageQueryFmt = `
MATCH path = (:Generation {id: $id})-[:DERIVED_FROM*1..%d]->(a:Generation)
RETURN a.id AS id, a.tab_id AS tab_id, a.kind AS kind, a.mode AS mode, a.prompt AS prompt,
       a.variant AS variant, a.created_at AS created_at, length(path) AS depth
ORDER BY depth ASC`
)

// NewNeo4jStore constructs a store that delegates persistence to base and records lineage
// through driver.
func NewNeo4jStore(base HistoryStore, driver neo4jDriver, database string) (*Neo4jStore, error) {
	if base == nil {
		return nil, errors.New("base history store is required")
	}
	if driver == nil {
		return nil, ErrNeo4jUnavailable
	}
	return &Neo4jStore{base: base, driver: driver, database: strings.TrimSpace(database), nowFn: time.Now}, nil
}

func (s *Neo4jStore) Append(ctx context.Context, rec Record) error {
	if err := s.base.Append(ctx, rec); err != nil {
		return err
	}
	return s.upsertGeneration(ctx, rec)
}

func (s *Neo4jStore) List(ctx context.Context, q Query) ([]Record, error) {
	return s.base.List(ctx, q)
}

// EnsureSchema bootstraps the base store when it supports it, then the node constraint.
func (s *Neo4jStore) EnsureSchema(ctx context.Context) error {
	if initializer, ok := s.base.(SchemaInitializer); ok {
		if err := initializer.EnsureSchema(ctx); err != nil {
			return err
		}
	}
	if s.driver == nil {
		return ErrNeo4jUnavailable
	}
	session, err := s.driver.NewSession(ctx, Neo4jSessionConfig{AccessMode: AccessModeWrite, DatabaseName: s.database})
	if err != nil {
		return fmt.Errorf("neo4j new session: %w", err)
	}
	defer session.Close(ctx)
	res, err := session.Run(ctx, neo4jConstraintCypher, nil)
	if err != nil {
		return fmt.Errorf("neo4j constraint: %w", err)
	}
	if res != nil {
		_ = res.Close(ctx)
	}
	return nil
}

func (s *Neo4jStore) Close(ctx context.Context) error {
	var errs []error
	if s.base != nil {
		if err := s.base.Close(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	if s.driver != nil {
		if err := s.driver.Close(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (s *Neo4jStore) upsertGeneration(ctx context.Context, rec Record) error {
	if s.driver == nil {
		return ErrNeo4jUnavailable
	}
	if rec.ID == "" {
		return nil
	}
	session, err := s.driver.NewSession(ctx, Neo4jSessionConfig{AccessMode: AccessModeWrite, DatabaseName: s.database})
	if err != nil {
		return fmt.Errorf("neo4j new session: %w", err)
	}
	defer session.Close(ctx)
	tx, err := session.BeginTransaction(ctx)
	if err != nil {
		return fmt.Errorf("neo4j begin tx: %w", err)
	}
	defer tx.Close(ctx)

	now := s.now()
	createdAt := rec.CreatedAt
	if createdAt.IsZero() {
		createdAt = now
	}
	params := map[string]any{
		"id":         rec.ID,
		"tab_id":     rec.TabID,
		"kind":       rec.Kind,
		"mode":       rec.Mode,
		"prompt":     rec.Prompt,
		"variant":    int64(rec.Variant),
		"created_at": createdAt.UTC().Format(time.RFC3339Nano),
		"updated_at": now.UTC().Format(time.RFC3339Nano),
	}
	res, err := tx.Run(ctx, neo4jUpsertNodeCypher, params)
	if err != nil {
		tx.Rollback(ctx)
		return fmt.Errorf("neo4j upsert node: %w", err)
	}
	if res != nil {
		_ = res.Close(ctx)
	}
	if rec.ParentID != "" {
		res, err = tx.Run(ctx, neo4jUpsertEdgeCypher, map[string]any{
			"id":         rec.ID,
			"parent_id":  rec.ParentID,
			"updated_at": now.UTC().Format(time.RFC3339Nano),
		})
		if err != nil {
			tx.Rollback(ctx)
			return fmt.Errorf("neo4j upsert edge: %w", err)
		}
		if res != nil {
			_ = res.Close(ctx)
		}
	}
	if err := tx.Commit(ctx); err != nil {
		tx.Rollback(ctx)
		return fmt.Errorf("neo4j commit: %w", err)
	}
	return nil
}

// Lineage walks DERIVED_FROM edges from id and returns its ancestors, nearest first.
// Returned records carry metadata only; image bytes live in the base store.
func (s *Neo4jStore) Lineage(ctx context.Context, id string, depth int) ([]Record, error) {
	if s.driver == nil {
		return nil, ErrNeo4jUnavailable
	}
	if id == "" || depth <= 0 {
		return nil, nil
	}
	depth = min(depth, MaxLineageDepth)

	session, err := s.driver.NewSession(ctx, Neo4jSessionConfig{AccessMode: AccessModeRead, DatabaseName: s.database})
	if err != nil {
		return nil, fmt.Errorf("neo4j new session: %w", err)
	}
	defer session.Close(ctx)
	result, err := session.Run(ctx, fmt.Sprintf(neo4jLineageQueryFmt, depth), map[string]any{"id": id})
	if err != nil {
		return nil, fmt.Errorf("neo4j lineage: %w", err)
	}
	defer result.Close(ctx)

	var records []Record
	for result.Next(ctx) {
		rec, recErr := mapNeo4jRecord(result.Record())
		if recErr != nil {
			return nil, recErr
		}
		records = append(records, rec)
	}
	if err := result.Err(); err != nil {
		return nil, err
	}
	return records, nil
}

func (s *Neo4jStore) now() time.Time {
	if s.nowFn != nil {
		return s.nowFn()
	}
	return time.Now()
}

func mapNeo4jRecord(rec neo4jRecord) (Record, error) {
	if rec == nil {
		return Record{}, errors.New("neo4j record is nil")
	}
	var out Record
	if v, ok := rec.Get("id"); ok {
		out.ID = toString(v)
	}
	if v, ok := rec.Get("tab_id"); ok {
		out.TabID = toString(v)
	}
	if v, ok := rec.Get("kind"); ok {
		out.Kind = toString(v)
	}
	if v, ok := rec.Get("mode"); ok {
		out.Mode = toString(v)
	}
	if v, ok := rec.Get("prompt"); ok {
		out.Prompt = toString(v)
	}
	if v, ok := rec.Get("variant"); ok {
		out.Variant = int(toInt64(v))
	}
	if v, ok := rec.Get("created_at"); ok {
		out.CreatedAt = parseTime(toString(v))
	}
	return out, nil
}

func toString(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case fmt.Stringer:
		return t.String()
	}
	return fmt.Sprintf("%v", v)
}

func toInt64(v any) int64 {
	switch t := v.(type) {
	case int:
		return int64(t)
	case int32:
		return int64(t)
	case int64:
		return t
	case float64:
		return int64(t)
	case jsonNumber:
		if i, err := t.Int64(); err == nil {
			return i
		}
	}
	return 0
}

func parseTime(value string) time.Time {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}
	}
	if ts, err := time.Parse(time.RFC3339Nano, value); err == nil {
		return ts
	}
	return time.Time{}
}

type jsonNumber interface {
	Int64() (int64, error)
}

var (
	_ HistoryStore      = (*Neo4jStore)(nil)
	_ SchemaInitializer = (*Neo4jStore)(nil)
)
