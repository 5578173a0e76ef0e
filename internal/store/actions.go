package store

import (
	"fmt"
	"time"
)

// ActionRecord is one executed action's outcome in the action log.
type ActionRecord struct {
	ID         int64
	TickNumber int64
	ActionType string
	Target     string
	TargetNum  int64
	Repo       string
	Priority   int
	Reasoning  string
	Success    bool
	Result     string
	Error      string
	DurationMS int64
	CreatedAt  time.Time
}

// AppendAction writes one action outcome row.
func (s *Store) AppendAction(a ActionRecord) error {
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.Exec(
		`INSERT INTO action_log (tick_number, action_type, target, target_number, repo, priority, reasoning, success, result, error, duration_ms, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		a.TickNumber, a.ActionType, a.Target, a.TargetNum, a.Repo, a.Priority,
		a.Reasoning, boolToInt(a.Success), a.Result, a.Error, a.DurationMS,
		a.CreatedAt.Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("store: append action: %w", err)
	}
	return nil
}

// RecentActions returns the newest action rows, most recent first.
func (s *Store) RecentActions(limit int) ([]ActionRecord, error) {
	if limit <= 0 {
		limit = 10
	}
	rows, err := s.db.Query(
		`SELECT id, tick_number, action_type, target, target_number, repo, priority, reasoning, success, result, error, duration_ms, created_at
		 FROM action_log ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("store: query recent actions: %w", err)
	}
	defer rows.Close()

	var out []ActionRecord
	for rows.Next() {
		var a ActionRecord
		var success int
		var created string
		if err := rows.Scan(&a.ID, &a.TickNumber, &a.ActionType, &a.Target, &a.TargetNum,
			&a.Repo, &a.Priority, &a.Reasoning, &success, &a.Result, &a.Error,
			&a.DurationMS, &created); err != nil {
			return nil, fmt.Errorf("store: scan action: %w", err)
		}
		a.Success = success != 0
		a.CreatedAt, _ = time.Parse(time.RFC3339Nano, created)
		out = append(out, a)
	}
	return out, rows.Err()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
