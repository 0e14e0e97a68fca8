package domain

import (
	"context"
	"time"
)

// ListOpts provides pagination and filtering for list queries.
type ListOpts struct {
	Limit  int
	Offset int
	Since  *time.Time
	Until  *time.Time
}

// AuditEntry is a single audit log row.
type AuditEntry struct {
	ID        int64
	Event     string
	MarketID  string
	Detail    map[string]any
	CreatedAt time.Time
}

// AuditStore persists an append-only audit log of market mutations.
type AuditStore interface {
	Log(ctx context.Context, event, marketID string, detail map[string]any) error
	List(ctx context.Context, opts ListOpts) ([]AuditEntry, error)
}

// SettlementStore persists computed settlements and their transfers.
type SettlementStore interface {
	Save(ctx context.Context, s Settlement) error
	GetByMarket(ctx context.Context, marketID string) (Settlement, error)
	ListRecent(ctx context.Context, limit int) ([]Settlement, error)
}
