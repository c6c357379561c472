package store

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"
)

type runCall struct {
	query  string
	params map[string]any
}

type fakeDriver struct {
	writeSession *fakeSession
	readSession  *fakeSession
	configs      []Neo4jSessionConfig
	closed       bool
	closeErr     error
}

func (d *fakeDriver) NewSession(_ context.Context, config Neo4jSessionConfig) (neo4jSession, error) {
	d.configs = append(d.configs, config)
	switch config.AccessMode {
	case AccessModeWrite:
		if d.writeSession == nil {
			d.writeSession = &fakeSession{}
		}
		return d.writeSession, nil
	case AccessModeRead:
		if d.readSession == nil {
			d.readSession = &fakeSession{}
		}
		return d.readSession, nil
	default:
		return nil, errors.New("unknown access mode")
	}
}

func (d *fakeDriver) Close(context.Context) error {
	d.closed = true
	return d.closeErr
}

type fakeSession struct {
	tx       *fakeTx
	runCalls []runCall
	runErr   error
	result   neo4jResult
	closed   bool
}

func (s *fakeSession) BeginTransaction(context.Context) (neo4jTransaction, error) {
	if s.tx == nil {
		s.tx = &fakeTx{}
	}
	return s.tx, nil
}

func (s *fakeSession) Run(_ context.Context, query string, params map[string]any) (neo4jResult, error) {
	s.runCalls = append(s.runCalls, runCall{query: query, params: params})
	if s.runErr != nil {
		return nil, s.runErr
	}
	if s.result != nil {
		return s.result, nil
	}
	return &fakeResult{}, nil
}

func (s *fakeSession) Close(context.Context) error {
	s.closed = true
	return nil
}

type fakeTx struct {
	runs       []runCall
	runErrs    []error
	commitErr  error
	committed  bool
	rolledBack bool
	closed     bool
}

func (tx *fakeTx) Run(_ context.Context, query string, params map[string]any) (neo4jResult, error) {
	tx.runs = append(tx.runs, runCall{query: query, params: params})
	if len(tx.runErrs) > 0 {
		err := tx.runErrs[0]
		tx.runErrs = tx.runErrs[1:]
		if err != nil {
			return nil, err
		}
	}
	return &fakeResult{}, nil
}

func (tx *fakeTx) Commit(context.Context) error {
	if tx.commitErr != nil {
		return tx.commitErr
	}
	tx.committed = true
	return nil
}

func (tx *fakeTx) Rollback(context.Context) error {
	tx.rolledBack = true
	return nil
}

func (tx *fakeTx) Close(context.Context) error {
	tx.closed = true
	return nil
}

type fakeResult struct {
	records []map[string]any
	idx     int
	err     error
	closed  bool
}

func (r *fakeResult) Next(context.Context) bool {
	if r.idx >= len(r.records) {
		return false
	}
	r.idx++
	return true
}

func (r *fakeResult) Record() neo4jRecord {
	if r.idx == 0 || r.idx > len(r.records) {
		return fakeRecord(nil)
	}
	return fakeRecord(r.records[r.idx-1])
}

func (r *fakeResult) Err() error { return r.err }

func (r *fakeResult) Close(context.Context) error {
	r.closed = true
	return nil
}

type fakeRecord map[string]any

func (r fakeRecord) Get(key string) (any, bool) {
	if r == nil {
		return nil, false
	}
	v, ok := r[key]
	return v, ok
}

type closableMemory struct {
	*MemoryStore
	closed      bool
	schemaCalls int
}

func (c *closableMemory) Close(context.Context) error {
	c.closed = true
	return nil
}

func (c *closableMemory) EnsureSchema(context.Context) error {
	c.schemaCalls++
	return nil
}

func newTestNeo4jStore(t *testing.T) (*Neo4jStore, *closableMemory, *fakeDriver) {
	t.Helper()
	base := &closableMemory{MemoryStore: NewMemoryStore()}
	driver := &fakeDriver{}
	s, err := NewNeo4jStore(base, driver, "graph")
	if err != nil {
		t.Fatalf("NewNeo4jStore: %v", err)
	}
	s.nowFn = func() time.Time { return time.Date(2026, 2, 3, 4, 5, 6, 0, time.UTC) }
	return s, base, driver
}

func TestNewNeo4jStoreValidatesArguments(t *testing.T) {
	if _, err := NewNeo4jStore(nil, &fakeDriver{}, ""); err == nil {
		t.Fatal("expected error for nil base")
	}
	if _, err := NewNeo4jStore(NewMemoryStore(), nil, ""); !errors.Is(err, ErrNeo4jUnavailable) {
		t.Fatalf("expected ErrNeo4jUnavailable, got %v", err)
	}
}

func TestNeo4jAppendWritesNodeAndEdge(t *testing.T) {
	ctx := context.Background()
	s, base, driver := newTestNeo4jStore(t)

	rec := Record{ID: "child", TabID: "t1", Kind: "refine", ParentID: "parent", Prompt: "warmer"}
	if err := s.Append(ctx, rec); err != nil {
		t.Fatalf("Append: %v", err)
	}

	stored, _ := base.List(ctx, Query{})
	if len(stored) != 1 || stored[0].ID != "child" {
		t.Fatalf("expected record in base store, got %+v", stored)
	}
	tx := driver.writeSession.tx
	if tx == nil || !tx.committed {
		t.Fatal("expected committed transaction")
	}
	if len(tx.runs) != 2 {
		t.Fatalf("expected node and edge writes, got %d runs", len(tx.runs))
	}
	if !strings.Contains(tx.runs[0].query, "MERGE (g:Generation") {
		t.Fatalf("unexpected node query: %s", tx.runs[0].query)
	}
	if tx.runs[0].params["created_at"] != "2026-02-03T04:05:06Z" {
		t.Fatalf("expected clock-derived created_at, got %v", tx.runs[0].params["created_at"])
	}
	if tx.runs[1].params["parent_id"] != "parent" {
		t.Fatalf("unexpected edge params: %v", tx.runs[1].params)
	}
	if driver.configs[0].DatabaseName != "graph" {
		t.Fatalf("expected database name to propagate, got %q", driver.configs[0].DatabaseName)
	}
}

func TestNeo4jAppendWithoutParentSkipsEdge(t *testing.T) {
	s, _, driver := newTestNeo4jStore(t)
	if err := s.Append(context.Background(), Record{ID: "root", Kind: "generate"}); err != nil {
		t.Fatalf("Append: %v", err)
	}
	if runs := len(driver.writeSession.tx.runs); runs != 1 {
		t.Fatalf("expected a single node write, got %d", runs)
	}
}

func TestNeo4jAppendRollsBackOnEdgeFailure(t *testing.T) {
	s, _, driver := newTestNeo4jStore(t)
	driver.writeSession = &fakeSession{tx: &fakeTx{runErrs: []error{nil, errors.New("boom")}}}

	err := s.Append(context.Background(), Record{ID: "c", ParentID: "p"})
	if err == nil || !strings.Contains(err.Error(), "upsert edge") {
		t.Fatalf("expected edge error, got %v", err)
	}
	if !driver.writeSession.tx.rolledBack || driver.writeSession.tx.committed {
		t.Fatal("expected rollback without commit")
	}
}

func TestNeo4jLineage(t *testing.T) {
	s, _, driver := newTestNeo4jStore(t)
	driver.readSession = &fakeSession{result: &fakeResult{records: []map[string]any{
		{"id": "p1", "kind": "refine", "variant": int64(0), "created_at": "2026-01-01T00:00:00Z", "depth": int64(1)},
		{"id": "p0", "kind": "generate", "variant": int64(2), "created_at": "2026-01-01T00:00:00Z", "depth": int64(2)},
	}}}

	got, err := s.Lineage(context.Background(), "child", 100)
	if err != nil {
		t.Fatalf("Lineage: %v", err)
	}
	if len(got) != 2 || got[0].ID != "p1" || got[1].Variant != 2 {
		t.Fatalf("unexpected lineage: %+v", got)
	}
	if got[0].CreatedAt.IsZero() {
		t.Fatal("expected created_at to be parsed")
	}
	call := driver.readSession.runCalls[0]
	if !strings.Contains(call.query, "DERIVED_FROM*1..32") {
		t.Fatalf("expected depth clamp in query, got %s", call.query)
	}
	if call.params["id"] != "child" {
		t.Fatalf("unexpected params: %v", call.params)
	}
}

func TestNeo4jLineageNoopForEmptyInput(t *testing.T) {
	s, _, driver := newTestNeo4jStore(t)
	got, err := s.Lineage(context.Background(), "", 3)
	if err != nil || got != nil {
		t.Fatalf("expected nil result, got %v %v", got, err)
	}
	if len(driver.configs) != 0 {
		t.Fatal("expected no session for empty input")
	}
}

func TestNeo4jEnsureSchemaAndClose(t *testing.T) {
	ctx := context.Background()
	s, base, driver := newTestNeo4jStore(t)
	if err := s.EnsureSchema(ctx); err != nil {
		t.Fatalf("EnsureSchema: %v", err)
	}
	if base.schemaCalls != 1 {
		t.Fatalf("expected base schema bootstrap, got %d calls", base.schemaCalls)
	}
	if !strings.Contains(driver.writeSession.runCalls[0].query, "CREATE CONSTRAINT") {
		t.Fatalf("unexpected schema query: %s", driver.writeSession.runCalls[0].query)
	}

	driver.closeErr = errors.New("close failed")
	if err := s.Close(ctx); err == nil {
		t.Fatal("expected driver close error to surface")
	}
	if !base.closed || !driver.closed {
		t.Fatal("expected base and driver to be closed")
	}
}
