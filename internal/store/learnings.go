package store

import (
	"fmt"
	"time"
)

// Learning is one extracted insight kept for tick contextualization.
type Learning struct {
	ID         int64
	Category   string
	Insight    string
	Confidence float64
	Source     string
	SourceTick int64
	SourceRef  string
	CreatedAt  time.Time
}

// InsertLearning writes one learning row. Confidence is clamped to [0, 1].
func (s *Store) InsertLearning(l Learning) error {
	if l.CreatedAt.IsZero() {
		l.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.Exec(
		`INSERT INTO agent_learnings (category, insight, confidence, source, source_tick, source_ref, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		l.Category, l.Insight, clamp01(l.Confidence), l.Source, l.SourceTick,
		l.SourceRef, l.CreatedAt.Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("store: insert learning: %w", err)
	}
	return nil
}

// RecentLearnings returns the newest learnings, most recent first.
func (s *Store) RecentLearnings(limit int) ([]Learning, error) {
	if limit <= 0 {
		limit = 10
	}
	rows, err := s.db.Query(
		`SELECT id, category, insight, confidence, source, source_tick, source_ref, created_at
		 FROM agent_learnings ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("store: query learnings: %w", err)
	}
	defer rows.Close()

	var out []Learning
	for rows.Next() {
		var l Learning
		var created string
		if err := rows.Scan(&l.ID, &l.Category, &l.Insight, &l.Confidence,
			&l.Source, &l.SourceTick, &l.SourceRef, &created); err != nil {
			return nil, fmt.Errorf("store: scan learning: %w", err)
		}
		l.CreatedAt, _ = time.Parse(time.RFC3339Nano, created)
		out = append(out, l)
	}
	return out, rows.Err()
}
