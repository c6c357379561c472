package store

import (
	"context"
	"time"
)

const defaultListLimit = 100

// Record is the persisted form of one generated image and where it came from.
type Record struct {
	ID        string    `json:"id"`
	TabID     string    `json:"tab_id"`
	Kind      string    `json:"kind"`
	Mode      string    `json:"mode"`
	Prompt    string    `json:"prompt"`
	ParentID  string    `json:"parent_id,omitempty"`
	Variant   int       `json:"variant,omitempty"`
	MIME      string    `json:"mime"`
	Image     []byte    `json:"image,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// Query filters List results. Empty fields match everything.
type Query struct {
	TabID string
	Kind  string
	Limit int
}

func (q Query) limit() int {
	if q.Limit <= 0 {
		return defaultListLimit
	}
	return q.Limit
}

func (q Query) matches(rec Record) bool {
	if q.TabID != "" && rec.TabID != q.TabID {
		return false
	}
	if q.Kind != "" && rec.Kind != q.Kind {
		return false
	}
	return true
}

// HistoryStore defines the contract for durable history backends. List returns newest
// records first.
type HistoryStore interface {
	Append(ctx context.Context, rec Record) error
	List(ctx context.Context, q Query) ([]Record, error)
	Close(ctx context.Context) error
}

// SchemaInitializer allows stores to expose optional schema/bootstrap routines.
type SchemaInitializer interface {
	EnsureSchema(ctx context.Context) error
}
