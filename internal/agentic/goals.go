package agentic

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/nextlevelbuilder/overblick/internal/store"
)

// GoalTracker manages the agent's persistent goals on top of the store.
type GoalTracker struct {
	store *store.Store
}

// NewGoalTracker wraps the agent's store.
func NewGoalTracker(s *store.Store) *GoalTracker {
	return &GoalTracker{store: s}
}

// Setup seeds the plugin-supplied default goals when the store holds no
// active goals yet. Goals persisted by earlier runs win; duplicates by
// name are skipped either way.
func (g *GoalTracker) Setup(defaults []store.Goal) error {
	active, err := g.store.ActiveGoals()
	if err != nil {
		return fmt.Errorf("goal tracker: %w", err)
	}
	if len(active) > 0 {
		return nil
	}
	for _, goal := range defaults {
		inserted, err := g.store.InsertGoal(goal)
		if err != nil {
			return fmt.Errorf("goal tracker: seed %q: %w", goal.Name, err)
		}
		if inserted {
			slog.Info("goal seeded", "name", goal.Name, "priority", goal.Priority)
		}
	}
	return nil
}

// ActiveGoals returns active goals sorted by priority descending.
func (g *GoalTracker) ActiveGoals() ([]store.Goal, error) {
	return g.store.ActiveGoals()
}

// UpdateProgress persists a goal's progress, clamped to [0, 1].
func (g *GoalTracker) UpdateProgress(name string, progress float64) error {
	return g.store.UpdateGoalProgress(name, progress)
}

// FormatForPlanner renders active goals as a prompt section.
func (g *GoalTracker) FormatForPlanner() (string, error) {
	goals, err := g.store.ActiveGoals()
	if err != nil {
		return "", err
	}
	if len(goals) == 0 {
		return "(no active goals)", nil
	}
	var b strings.Builder
	for _, goal := range goals {
		fmt.Fprintf(&b, "- [priority %d] %s: %s (progress %.0f%%)\n",
			goal.Priority, goal.Name, goal.Description, goal.Progress*100)
	}
	return strings.TrimRight(b.String(), "\n"), nil
}
