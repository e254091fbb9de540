package audit

import "context"

// Store persists decision audit records.
// Implementations handle batching and rotation; Append must be cheap.
type Store interface {
	// Append stores audit records.
	Append(ctx context.Context, records ...DecisionRecord) error
	// Flush forces pending records to storage. Called during shutdown.
	Flush(ctx context.Context) error
	// Close releases resources.
	Close() error
}
