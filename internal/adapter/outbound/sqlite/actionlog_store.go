// Package sqlite provides the SQLite-backed action log store used by the
// action submission path and compliance report queries.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/Suyash-Gaurav/gaas-system/internal/domain/actionlog"
)

const schema = `
CREATE TABLE IF NOT EXISTS action_logs (
	log_id            TEXT PRIMARY KEY,
	agent_id          TEXT NOT NULL,
	action_type       TEXT NOT NULL,
	description       TEXT NOT NULL,
	timestamp         INTEGER NOT NULL,
	resource_accessed TEXT NOT NULL DEFAULT '',
	violation_count   INTEGER NOT NULL DEFAULT 0,
	violation_types   TEXT NOT NULL DEFAULT '[]'
);
CREATE INDEX IF NOT EXISTS idx_action_logs_timestamp ON action_logs(timestamp);
CREATE INDEX IF NOT EXISTS idx_action_logs_agent ON action_logs(agent_id, timestamp);
`

// ActionLogStore implements actionlog.Store on SQLite. Timestamps are stored
// as Unix nanoseconds so range queries avoid string comparison.
type ActionLogStore struct {
	db *sql.DB
}

// NewActionLogStore opens (or creates) the database at dbPath with WAL mode
// and applies the schema.
func NewActionLogStore(dbPath string) (*ActionLogStore, error) {
	if dbPath == "" {
		return nil, fmt.Errorf("db path cannot be empty")
	}

	dsn := fmt.Sprintf("%s?_journal_mode=WAL&_busy_timeout=5000&_synchronous=NORMAL", dbPath)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite only supports a single writer.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}

	return &ActionLogStore{db: db}, nil
}

// Append stores one action log record.
func (s *ActionLogStore) Append(ctx context.Context, rec actionlog.Record) error {
	types, err := json.Marshal(rec.ViolationTypes)
	if err != nil {
		return fmt.Errorf("encode violation types: %w", err)
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO action_logs
		 (log_id, agent_id, action_type, description, timestamp, resource_accessed, violation_count, violation_types)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.LogID, rec.AgentID, rec.ActionType, rec.Description,
		rec.Timestamp.UnixNano(), rec.ResourceAccessed, rec.ViolationCount, string(types),
	)
	if err != nil {
		return fmt.Errorf("insert action log %s: %w", rec.LogID, err)
	}
	return nil
}

// QueryPeriod returns records within [start, end] ordered by timestamp
// ascending, optionally filtered by agent ID.
func (s *ActionLogStore) QueryPeriod(ctx context.Context, start, end time.Time, agentID string) ([]actionlog.Record, error) {
	query := `SELECT log_id, agent_id, action_type, description, timestamp, resource_accessed, violation_count, violation_types
	          FROM action_logs WHERE timestamp >= ? AND timestamp <= ?`
	args := []any{start.UnixNano(), end.UnixNano()}
	if agentID != "" {
		query += ` AND agent_id = ?`
		args = append(args, agentID)
	}
	query += ` ORDER BY timestamp ASC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query action logs: %w", err)
	}
	defer rows.Close()

	var records []actionlog.Record
	for rows.Next() {
		var rec actionlog.Record
		var ts int64
		var types string
		if err := rows.Scan(&rec.LogID, &rec.AgentID, &rec.ActionType, &rec.Description,
			&ts, &rec.ResourceAccessed, &rec.ViolationCount, &types); err != nil {
			return nil, fmt.Errorf("scan action log: %w", err)
		}
		rec.Timestamp = time.Unix(0, ts)
		if err := json.Unmarshal([]byte(types), &rec.ViolationTypes); err != nil {
			rec.ViolationTypes = nil
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

// Stats aggregates records within [start, end] across all agents.
func (s *ActionLogStore) Stats(ctx context.Context, start, end time.Time) (actionlog.PeriodStats, error) {
	stats := actionlog.PeriodStats{ViolationTypes: make(map[string]int)}

	row := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*),
		        COALESCE(SUM(CASE WHEN violation_count = 0 THEN 1 ELSE 0 END), 0),
		        COALESCE(SUM(violation_count), 0)
		 FROM action_logs WHERE timestamp >= ? AND timestamp <= ?`,
		start.UnixNano(), end.UnixNano(),
	)
	if err := row.Scan(&stats.TotalActions, &stats.CompliantActions, &stats.TotalViolations); err != nil {
		return stats, fmt.Errorf("aggregate action logs: %w", err)
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT violation_types FROM action_logs
		 WHERE timestamp >= ? AND timestamp <= ? AND violation_count > 0`,
		start.UnixNano(), end.UnixNano(),
	)
	if err != nil {
		return stats, fmt.Errorf("query violation types: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var encoded string
		if err := rows.Scan(&encoded); err != nil {
			return stats, fmt.Errorf("scan violation types: %w", err)
		}
		var types []string
		if err := json.Unmarshal([]byte(encoded), &types); err != nil {
			continue
		}
		for _, t := range types {
			stats.ViolationTypes[t]++
		}
	}
	return stats, rows.Err()
}

// Close closes the underlying database.
func (s *ActionLogStore) Close() error {
	return s.db.Close()
}

// Compile-time interface verification.
var _ actionlog.Store = (*ActionLogStore)(nil)
