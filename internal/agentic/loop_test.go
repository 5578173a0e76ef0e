package agentic

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"testing"

	"github.com/nextlevelbuilder/overblick/internal/providers"
	"github.com/nextlevelbuilder/overblick/internal/store"
)

type stubObserver struct {
	observation any
	err         error
}

func (o *stubObserver) Observe(ctx context.Context) (any, error) {
	if o.err != nil {
		return nil, o.err
	}
	return o.observation, nil
}

func (o *stubObserver) FormatForPlanner(observation any) string {
	return "stub observation"
}

func openTestStore(t *testing.T) *store.Store {
	t.Helper()
	s, err := store.Open(filepath.Join(t.TempDir(), "agent.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func testLoop(t *testing.T, s *store.Store, obs Observer, provider providers.Provider, ex *Executor) *Loop {
	t.Helper()
	if ex == nil {
		ex = NewExecutor(5)
	}
	return NewLoop(LoopConfig{
		Identity: "test-agent",
		Observer: obs,
		Planner:  NewPlanner(provider, PromptSpec{RolePrompt: "test"}, 5),
		Executor: ex,
		Store:    s,
	})
}

// An empty plan still completes the tick: a tick log row is written and
// the tick number is consumed.
func TestTickEmptyPlanPersisted(t *testing.T) {
	s := openTestStore(t)
	provider := &stubProvider{resp: &providers.ChatResponse{
		Content: `{"reasoning": "nothing to do", "actions": []}`,
	}}
	l := testLoop(t, s, &stubObserver{observation: map[string]any{"inbox": []any{}}}, provider, nil)

	tl, err := l.Tick(context.Background())
	if err != nil {
		t.Fatalf("tick: %v", err)
	}
	if tl.TickNumber != 1 {
		t.Fatalf("tick number %d, want 1", tl.TickNumber)
	}
	if tl.ActionsPlanned != 0 || tl.ActionsExecuted != 0 || tl.ActionsSucceeded != 0 {
		t.Fatalf("counts should be zero: %+v", tl)
	}
	if tl.ReasoningSummary != "nothing to do" {
		t.Fatalf("summary %q", tl.ReasoningSummary)
	}

	n, err := s.LastTickNumber()
	if err != nil || n != 1 {
		t.Fatalf("persisted tick number %d (%v)", n, err)
	}
}

// A failed observation aborts the tick without consuming a tick number.
func TestTickObservationFailureSkipsTickNumber(t *testing.T) {
	s := openTestStore(t)
	failing := &stubObserver{err: errors.New("imap timeout")}
	provider := &stubProvider{resp: &providers.ChatResponse{Content: `{"actions": []}`}}
	l := testLoop(t, s, failing, provider, nil)

	if _, err := l.Tick(context.Background()); err == nil {
		t.Fatal("expected observation error")
	}
	if n, _ := s.LastTickNumber(); n != 0 {
		t.Fatalf("failed tick must not persist, got %d", n)
	}

	// Recovery: the next successful tick is still number 1.
	failing.err = nil
	failing.observation = "ok"
	tl, err := l.Tick(context.Background())
	if err != nil {
		t.Fatalf("tick: %v", err)
	}
	if tl.TickNumber != 1 {
		t.Fatalf("tick number %d, want 1", tl.TickNumber)
	}
}

// A handler failure is recorded as a failed outcome; the tick completes.
func TestTickHandlerFailureRecorded(t *testing.T) {
	s := openTestStore(t)
	provider := &stubProvider{resp: &providers.ChatResponse{
		Content: `{"reasoning": "try it", "actions": [{"action_type": "flaky", "priority": 60}]}`,
	}}
	ex := NewExecutor(5)
	ex.Register("flaky", HandlerFunc(func(ctx context.Context, a Action, obs any) (string, error) {
		return "", errors.New("smtp unreachable")
	}))
	l := testLoop(t, s, &stubObserver{observation: "state"}, provider, ex)

	tl, err := l.Tick(context.Background())
	if err != nil {
		t.Fatalf("tick: %v", err)
	}
	if tl.ActionsExecuted != 1 || tl.ActionsSucceeded != 0 {
		t.Fatalf("counts %+v", tl)
	}

	recs, err := s.RecentActions(5)
	if err != nil || len(recs) != 1 {
		t.Fatalf("action log rows %d (%v)", len(recs), err)
	}
	if recs[0].Success {
		t.Fatal("failed action logged as success")
	}
	if !strings.HasPrefix(recs[0].Error, "Unhandled error: ") {
		t.Fatalf("error %q", recs[0].Error)
	}
	if recs[0].TickNumber != 1 {
		t.Fatalf("tick number %d", recs[0].TickNumber)
	}
}

func TestTickNumbersIncrement(t *testing.T) {
	s := openTestStore(t)
	provider := &stubProvider{resp: &providers.ChatResponse{Content: `{"actions": []}`}}
	l := testLoop(t, s, &stubObserver{observation: "x"}, provider, nil)

	for want := int64(1); want <= 3; want++ {
		tl, err := l.Tick(context.Background())
		if err != nil {
			t.Fatalf("tick %d: %v", want, err)
		}
		if tl.TickNumber != want {
			t.Fatalf("tick number %d, want %d", tl.TickNumber, want)
		}
	}
}

// A planner that cannot reach the LLM degrades to an empty plan; the
// tick still completes and is persisted.
func TestTickSurvivesLLMOutage(t *testing.T) {
	s := openTestStore(t)
	provider := &stubProvider{err: errors.New("connection refused")}
	l := testLoop(t, s, &stubObserver{observation: "x"}, provider, nil)

	tl, err := l.Tick(context.Background())
	if err != nil {
		t.Fatalf("tick: %v", err)
	}
	if tl.ActionsPlanned != 0 {
		t.Fatalf("planned %d", tl.ActionsPlanned)
	}
}

// The planner context carries the last 10 learnings, newest first.
func TestLearningsSectionWindow(t *testing.T) {
	s := openTestStore(t)
	provider := &stubProvider{resp: &providers.ChatResponse{Content: `{"actions": []}`}}
	l := testLoop(t, s, &stubObserver{observation: "x"}, provider, nil)

	for i := 1; i <= 12; i++ {
		err := s.InsertLearning(store.Learning{
			Category:   "timing",
			Insight:    fmt.Sprintf("insight-%d", i),
			Confidence: 0.5,
			Source:     "reflection",
		})
		if err != nil {
			t.Fatalf("insert learning %d: %v", i, err)
		}
	}

	section := l.learningsSection()
	if got := strings.Count(section, "insight-"); got != 10 {
		t.Fatalf("learnings in section = %d, want 10:\n%s", got, section)
	}
	if !strings.Contains(section, "insight-12") || !strings.Contains(section, "insight-3") {
		t.Fatalf("newest learnings missing:\n%s", section)
	}
	if strings.Contains(section, "insight-2\n") || strings.HasSuffix(section, "insight-2") {
		t.Fatalf("oldest learnings should be dropped:\n%s", section)
	}
}

func TestGoalTrackerSeedsOnce(t *testing.T) {
	s := openTestStore(t)
	g := NewGoalTracker(s)

	defaults := []store.Goal{
		{Name: "stay-responsive", Description: "answer routed messages promptly", Priority: 80, Status: store.GoalActive},
		{Name: "keep-inbox-clean", Description: "triage incoming mail", Priority: 60, Status: store.GoalActive},
	}
	if err := g.Setup(defaults); err != nil {
		t.Fatalf("setup: %v", err)
	}
	active, err := g.ActiveGoals()
	if err != nil || len(active) != 2 {
		t.Fatalf("active %d (%v)", len(active), err)
	}

	// Second setup with different defaults must not add goals.
	extra := append(defaults, store.Goal{Name: "new-goal", Priority: 10, Status: store.GoalActive})
	if err := g.Setup(extra); err != nil {
		t.Fatalf("setup again: %v", err)
	}
	active, _ = g.ActiveGoals()
	if len(active) != 2 {
		t.Fatalf("re-setup added goals, got %d", len(active))
	}
}

func TestGoalTrackerFormatForPlanner(t *testing.T) {
	s := openTestStore(t)
	g := NewGoalTracker(s)

	text, err := g.FormatForPlanner()
	if err != nil {
		t.Fatalf("format: %v", err)
	}
	if text != "(no active goals)" {
		t.Fatalf("got %q", text)
	}

	if err := g.Setup([]store.Goal{{Name: "triage", Description: "keep inbox empty", Priority: 70, Progress: 0.5, Status: store.GoalActive}}); err != nil {
		t.Fatalf("setup: %v", err)
	}
	text, _ = g.FormatForPlanner()
	if !strings.Contains(text, "[priority 70] triage") || !strings.Contains(text, "50%") {
		t.Fatalf("got %q", text)
	}
}
