package store

import (
	"fmt"
	"time"
)

// TickLog summarizes one completed loop tick.
type TickLog struct {
	ID                int64
	TickNumber        int64
	StartedAt         time.Time
	CompletedAt       time.Time
	ObservationsCount int
	ActionsPlanned    int
	ActionsExecuted   int
	ActionsSucceeded  int
	// ReasoningSummary is truncated to 500 chars before persisting.
	ReasoningSummary string
	DurationMS       int64
}

const reasoningSummaryMax = 500

// AppendTick persists one tick log row.
func (s *Store) AppendTick(tl TickLog) error {
	summary := tl.ReasoningSummary
	if len(summary) > reasoningSummaryMax {
		summary = summary[:reasoningSummaryMax]
	}
	_, err := s.db.Exec(
		`INSERT INTO tick_log (tick_number, started_at, completed_at, observations_count, actions_planned, actions_executed, actions_succeeded, reasoning_summary, duration_ms)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		tl.TickNumber, tl.StartedAt.UTC().Format(time.RFC3339Nano),
		tl.CompletedAt.UTC().Format(time.RFC3339Nano), tl.ObservationsCount,
		tl.ActionsPlanned, tl.ActionsExecuted, tl.ActionsSucceeded, summary, tl.DurationMS,
	)
	if err != nil {
		return fmt.Errorf("store: append tick: %w", err)
	}
	return nil
}

// LastTickNumber returns the highest persisted tick number, 0 when none.
// Tick numbers survive restarts through this query: the loop allocates
// LastTickNumber()+1 and only persists on successful completion.
func (s *Store) LastTickNumber() (int64, error) {
	var n int64
	err := s.db.QueryRow(`SELECT COALESCE(MAX(tick_number), 0) FROM tick_log`).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("store: last tick number: %w", err)
	}
	return n, nil
}
