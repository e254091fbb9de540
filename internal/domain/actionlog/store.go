package actionlog

import (
	"context"
	"time"
)

// Store persists action log records and serves compliance report queries.
type Store interface {
	// Append stores one record.
	Append(ctx context.Context, rec Record) error
	// QueryPeriod returns records within [start, end], optionally filtered
	// by agent ID (empty string means all agents), ordered by timestamp.
	QueryPeriod(ctx context.Context, start, end time.Time, agentID string) ([]Record, error)
	// Stats aggregates records within [start, end] across all agents.
	Stats(ctx context.Context, start, end time.Time) (PeriodStats, error)
	// Close releases resources.
	Close() error
}
