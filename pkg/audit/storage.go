package audit

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Writer persists one entry.
type Writer interface {
	Store(ctx context.Context, e Entry) error
}

// BatchWriter persists many entries at once. All or nothing.
type BatchWriter interface {
	StoreBatch(ctx context.Context, entries []Entry) error
}

// Criteria filters entries. Zero fields match everything; results are
// newest first.
type Criteria struct {
	TenantID *uuid.UUID
	UserID   *uuid.UUID
	Levels   []Level
	Action   string
	Since    time.Time
	Limit    int
	Offset   int
}

// Querier reads entries back.
type Querier interface {
	Query(ctx context.Context, c Criteria) ([]Entry, error)
}
