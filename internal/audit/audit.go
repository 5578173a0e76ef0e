// Package audit provides the append-only audit trail. Every privileged
// supervisor operation and every routing decision writes exactly one entry.
// The runtime only ever writes; reading is left to external tooling.
package audit

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	_ "modernc.org/sqlite"
)

// Entry is one audit record.
type Entry struct {
	Timestamp  time.Time
	Action     string
	Category   string
	Identity   string
	Plugin     string
	Details    map[string]any
	Success    bool
	DurationMS int64
	Error      string
}

// Sink accepts audit entries. Implementations must tolerate concurrent
// writers and never block the caller on failure.
type Sink interface {
	Record(e Entry)
	Close() error
}

// Discard is a Sink that drops everything. Used by tests and by components
// constructed without an audit store.
var Discard Sink = discardSink{}

type discardSink struct{}

func (discardSink) Record(Entry) {}
func (discardSink) Close() error { return nil }

const schema = `
CREATE TABLE IF NOT EXISTS audit_log (
    id           INTEGER PRIMARY KEY AUTOINCREMENT,
    timestamp    TEXT NOT NULL,
    action       TEXT NOT NULL,
    category     TEXT NOT NULL,
    identity     TEXT NOT NULL DEFAULT '',
    plugin       TEXT NOT NULL DEFAULT '',
    details_json TEXT NOT NULL DEFAULT '{}',
    success      INTEGER NOT NULL DEFAULT 1,
    duration_ms  INTEGER NOT NULL DEFAULT 0,
    error        TEXT NOT NULL DEFAULT ''
);
CREATE INDEX IF NOT EXISTS idx_audit_timestamp ON audit_log(timestamp);
CREATE INDEX IF NOT EXISTS idx_audit_action ON audit_log(action);
CREATE INDEX IF NOT EXISTS idx_audit_category ON audit_log(category);
`

// SQLiteSink appends entries to a local sqlite database.
type SQLiteSink struct {
	db *sql.DB
	mu sync.Mutex
}

// Open creates (or reuses) the audit database at path.
func Open(path string) (*SQLiteSink, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("audit: open %s: %w", path, err)
	}
	// One writer at a time keeps sqlite happy under concurrent handlers.
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("audit: create schema: %w", err)
	}
	return &SQLiteSink{db: db}, nil
}

// Record appends one entry. Failures are logged and swallowed: a broken
// audit store must not take the fleet down.
func (s *SQLiteSink) Record(e Entry) {
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now().UTC()
	}
	details := "{}"
	if len(e.Details) > 0 {
		if data, err := json.Marshal(e.Details); err == nil {
			details = string(data)
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.db.Exec(
		`INSERT INTO audit_log (timestamp, action, category, identity, plugin, details_json, success, duration_ms, error)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.Timestamp.Format(time.RFC3339Nano), e.Action, e.Category, e.Identity,
		e.Plugin, details, boolToInt(e.Success), e.DurationMS, e.Error,
	)
	if err != nil {
		slog.Warn("audit write failed", "action", e.Action, "error", err)
	}
}

// Close flushes and closes the underlying database.
func (s *SQLiteSink) Close() error {
	return s.db.Close()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
