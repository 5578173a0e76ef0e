package store

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// Goal status values.
const (
	GoalActive    = "active"
	GoalPaused    = "paused"
	GoalCompleted = "completed"
)

// Goal is one persistent agent objective. Names are unique per store.
type Goal struct {
	ID          int64
	Name        string
	Description string
	// Priority is 0-100; higher is more important.
	Priority int
	Status   string
	// Progress is clamped to [0, 1].
	Progress  float64
	Metadata  map[string]any
	CreatedAt time.Time
	UpdatedAt time.Time
}

// InsertGoal adds a goal, skipping silently when the name already exists.
// Returns true when a row was inserted.
func (s *Store) InsertGoal(g Goal) (bool, error) {
	if g.Status == "" {
		g.Status = GoalActive
	}
	meta := "{}"
	if len(g.Metadata) > 0 {
		data, err := json.Marshal(g.Metadata)
		if err != nil {
			return false, fmt.Errorf("store: marshal goal metadata: %w", err)
		}
		meta = string(data)
	}
	now := time.Now().UTC().Format(time.RFC3339Nano)

	res, err := s.db.Exec(
		`INSERT OR IGNORE INTO agent_goals (name, description, priority, status, progress, metadata_json, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		g.Name, g.Description, g.Priority, g.Status, clamp01(g.Progress), meta, now, now,
	)
	if err != nil {
		return false, fmt.Errorf("store: insert goal %q: %w", g.Name, err)
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

// ActiveGoals returns active goals sorted by priority descending.
func (s *Store) ActiveGoals() ([]Goal, error) {
	rows, err := s.db.Query(
		`SELECT id, name, description, priority, status, progress, metadata_json, created_at, updated_at
		 FROM agent_goals WHERE status = ? ORDER BY priority DESC, name ASC`, GoalActive)
	if err != nil {
		return nil, fmt.Errorf("store: query active goals: %w", err)
	}
	defer rows.Close()
	return scanGoals(rows)
}

// GetGoal loads one goal by name. Returns sql.ErrNoRows when absent.
func (s *Store) GetGoal(name string) (*Goal, error) {
	rows, err := s.db.Query(
		`SELECT id, name, description, priority, status, progress, metadata_json, created_at, updated_at
		 FROM agent_goals WHERE name = ?`, name)
	if err != nil {
		return nil, fmt.Errorf("store: get goal %q: %w", name, err)
	}
	defer rows.Close()
	goals, err := scanGoals(rows)
	if err != nil {
		return nil, err
	}
	if len(goals) == 0 {
		return nil, sql.ErrNoRows
	}
	return &goals[0], nil
}

// UpdateGoalProgress sets a goal's progress, clamped to [0, 1].
func (s *Store) UpdateGoalProgress(name string, progress float64) error {
	return s.updateGoal(name, `progress = ?`, clamp01(progress))
}

// UpdateGoalStatus transitions a goal's status.
func (s *Store) UpdateGoalStatus(name, status string) error {
	return s.updateGoal(name, `status = ?`, status)
}

func (s *Store) updateGoal(name, setClause string, value any) error {
	now := time.Now().UTC().Format(time.RFC3339Nano)
	res, err := s.db.Exec(
		`UPDATE agent_goals SET `+setClause+`, updated_at = ? WHERE name = ?`,
		value, now, name)
	if err != nil {
		return fmt.Errorf("store: update goal %q: %w", name, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("store: update goal %q: %w", name, errors.New("no such goal"))
	}
	return nil
}

func scanGoals(rows *sql.Rows) ([]Goal, error) {
	var out []Goal
	for rows.Next() {
		var g Goal
		var meta, created, updated string
		if err := rows.Scan(&g.ID, &g.Name, &g.Description, &g.Priority, &g.Status,
			&g.Progress, &meta, &created, &updated); err != nil {
			return nil, fmt.Errorf("store: scan goal: %w", err)
		}
		if meta != "" && meta != "{}" {
			json.Unmarshal([]byte(meta), &g.Metadata)
		}
		g.CreatedAt, _ = time.Parse(time.RFC3339Nano, created)
		g.UpdatedAt, _ = time.Parse(time.RFC3339Nano, updated)
		out = append(out, g)
	}
	return out, rows.Err()
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
