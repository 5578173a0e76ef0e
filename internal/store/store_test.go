package store

import (
	"database/sql"
	"errors"
	"path/filepath"
	"testing"
	"time"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "agent.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestMigrate_Idempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "agent.db")
	for i := 0; i < 3; i++ {
		if err := Migrate(path); err != nil {
			t.Fatalf("Migrate #%d: %v", i, err)
		}
	}
	v, err := SchemaVersion(path)
	if err != nil {
		t.Fatalf("SchemaVersion: %v", err)
	}
	if v != 900 {
		t.Errorf("schema version = %d, want 900", v)
	}
}

func TestGoals_InsertAndDuplicates(t *testing.T) {
	s := openTestStore(t)

	inserted, err := s.InsertGoal(Goal{Name: "watch-logs", Description: "keep an eye on logs", Priority: 80})
	if err != nil || !inserted {
		t.Fatalf("first insert = %v, %v", inserted, err)
	}
	inserted, err = s.InsertGoal(Goal{Name: "watch-logs", Priority: 10})
	if err != nil {
		t.Fatalf("duplicate insert errored: %v", err)
	}
	if inserted {
		t.Error("duplicate name should be skipped")
	}

	g, err := s.GetGoal("watch-logs")
	if err != nil {
		t.Fatalf("GetGoal: %v", err)
	}
	if g.Priority != 80 || g.Status != GoalActive {
		t.Errorf("goal = %+v", g)
	}
}

func TestGoals_ActiveSortedByPriority(t *testing.T) {
	s := openTestStore(t)
	s.InsertGoal(Goal{Name: "low", Priority: 10})
	s.InsertGoal(Goal{Name: "high", Priority: 90})
	s.InsertGoal(Goal{Name: "mid", Priority: 50})
	s.InsertGoal(Goal{Name: "done", Priority: 99, Status: GoalCompleted})

	goals, err := s.ActiveGoals()
	if err != nil {
		t.Fatalf("ActiveGoals: %v", err)
	}
	var names []string
	for _, g := range goals {
		names = append(names, g.Name)
	}
	want := []string{"high", "mid", "low"}
	if len(names) != len(want) {
		t.Fatalf("names = %v", names)
	}
	for i := range want {
		if names[i] != want[i] {
			t.Errorf("position %d = %q, want %q", i, names[i], want[i])
		}
	}
}

func TestGoals_ProgressClamped(t *testing.T) {
	s := openTestStore(t)
	s.InsertGoal(Goal{Name: "g"})

	if err := s.UpdateGoalProgress("g", 1.7); err != nil {
		t.Fatalf("UpdateGoalProgress: %v", err)
	}
	g, _ := s.GetGoal("g")
	if g.Progress != 1.0 {
		t.Errorf("progress = %v, want 1.0", g.Progress)
	}

	s.UpdateGoalProgress("g", -0.3)
	g, _ = s.GetGoal("g")
	if g.Progress != 0.0 {
		t.Errorf("progress = %v, want 0.0", g.Progress)
	}

	if err := s.UpdateGoalProgress("absent", 0.5); err == nil {
		t.Error("updating a missing goal should fail")
	}
	if _, err := s.GetGoal("absent"); !errors.Is(err, sql.ErrNoRows) {
		t.Errorf("GetGoal(absent) err = %v", err)
	}
}

func TestActions_AppendAndRecent(t *testing.T) {
	s := openTestStore(t)
	for i := 1; i <= 15; i++ {
		err := s.AppendAction(ActionRecord{
			TickNumber: int64(i),
			ActionType: "inspect",
			Success:    i%2 == 0,
			DurationMS: int64(i * 10),
		})
		if err != nil {
			t.Fatalf("AppendAction: %v", err)
		}
	}

	recent, err := s.RecentActions(10)
	if err != nil {
		t.Fatalf("RecentActions: %v", err)
	}
	if len(recent) != 10 {
		t.Fatalf("len = %d, want 10", len(recent))
	}
	if recent[0].TickNumber != 15 {
		t.Errorf("newest first: got tick %d", recent[0].TickNumber)
	}
}

func TestLearnings_RoundTrip(t *testing.T) {
	s := openTestStore(t)
	err := s.InsertLearning(Learning{
		Category:   "timing",
		Insight:    "deploys fail on fridays",
		Confidence: 2.0, // clamped
		Source:     "reflection",
		SourceTick: 7,
	})
	if err != nil {
		t.Fatalf("InsertLearning: %v", err)
	}

	got, err := s.RecentLearnings(10)
	if err != nil || len(got) != 1 {
		t.Fatalf("RecentLearnings = %v, %v", got, err)
	}
	l := got[0]
	if l.Insight != "deploys fail on fridays" || l.Confidence != 1.0 || l.SourceTick != 7 {
		t.Errorf("learning = %+v", l)
	}
}

func TestTicks_NumberSurvivesReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "agent.db")
	s, err := Open(path)
	if err != nil {
		t.Fatal(err)
	}

	now := time.Now().UTC()
	for i := int64(1); i <= 3; i++ {
		if err := s.AppendTick(TickLog{TickNumber: i, StartedAt: now, CompletedAt: now}); err != nil {
			t.Fatalf("AppendTick: %v", err)
		}
	}
	s.Close()

	s2, err := Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer s2.Close()

	n, err := s2.LastTickNumber()
	if err != nil {
		t.Fatalf("LastTickNumber: %v", err)
	}
	if n != 3 {
		t.Errorf("last tick = %d, want 3", n)
	}
}

func TestTicks_ReasoningSummaryTruncated(t *testing.T) {
	s := openTestStore(t)
	long := make([]byte, 1000)
	for i := range long {
		long[i] = 'r'
	}
	now := time.Now().UTC()
	if err := s.AppendTick(TickLog{TickNumber: 1, StartedAt: now, CompletedAt: now, ReasoningSummary: string(long)}); err != nil {
		t.Fatalf("AppendTick: %v", err)
	}

	var summary string
	if err := s.db.QueryRow(`SELECT reasoning_summary FROM tick_log`).Scan(&summary); err != nil {
		t.Fatal(err)
	}
	if len(summary) != 500 {
		t.Errorf("summary length = %d, want 500", len(summary))
	}
}
