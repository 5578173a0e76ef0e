package agentic

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/nextlevelbuilder/overblick/internal/providers"
)

type stubProvider struct {
	resp  *providers.ChatResponse
	err   error
	calls int
	last  providers.ChatRequest
}

func (s *stubProvider) Chat(ctx context.Context, req providers.ChatRequest) (*providers.ChatResponse, error) {
	s.calls++
	s.last = req
	if s.err != nil {
		return nil, s.err
	}
	return s.resp, nil
}

func (s *stubProvider) DefaultModel() string { return "stub-model" }
func (s *stubProvider) Name() string         { return "stub" }

func plannerSpec() PromptSpec {
	return PromptSpec{
		RolePrompt:   "You are a test agent.",
		ActionDocs:   "- noop: do nothing",
		ValidActions: []string{"noop", "notify"},
	}
}

func TestPlannerParsesFencedPlan(t *testing.T) {
	p := NewPlanner(&stubProvider{resp: &providers.ChatResponse{
		Content: "```json\n{\"reasoning\": \"quiet day\", \"actions\": [{\"action_type\": \"noop\", \"priority\": 30}]}\n```",
	}}, plannerSpec(), 5)

	plan := p.Plan(context.Background(), PlanInput{Observations: "nothing", Goals: "(no active goals)"})
	if plan.Reasoning != "quiet day" {
		t.Fatalf("reasoning %q", plan.Reasoning)
	}
	if len(plan.Actions) != 1 || plan.Actions[0].ActionType != "noop" || plan.Actions[0].Priority != 30 {
		t.Fatalf("actions %+v", plan.Actions)
	}
}

func TestPlannerFiltersInvalidActions(t *testing.T) {
	p := NewPlanner(&stubProvider{resp: &providers.ChatResponse{
		Content: `{"reasoning": "r", "actions": [{"action_type": "rm_rf"}, {"action_type": "notify"}]}`,
	}}, plannerSpec(), 5)

	plan := p.Plan(context.Background(), PlanInput{})
	if len(plan.Actions) != 1 || plan.Actions[0].ActionType != "notify" {
		t.Fatalf("invalid actions must be dropped, got %+v", plan.Actions)
	}
}

func TestPlannerDefaultPriorityAndSort(t *testing.T) {
	p := NewPlanner(&stubProvider{resp: &providers.ChatResponse{
		Content: `{"actions": [{"action_type": "noop"}, {"action_type": "notify", "priority": 90}]}`,
	}}, plannerSpec(), 5)

	plan := p.Plan(context.Background(), PlanInput{})
	if len(plan.Actions) != 2 {
		t.Fatalf("got %d actions", len(plan.Actions))
	}
	if plan.Actions[0].ActionType != "notify" {
		t.Fatalf("expected priority sort, got %+v", plan.Actions)
	}
	if plan.Actions[1].Priority != 50 {
		t.Fatalf("missing priority should default to 50, got %d", plan.Actions[1].Priority)
	}
}

func TestPlannerTruncatesToCap(t *testing.T) {
	p := NewPlanner(&stubProvider{resp: &providers.ChatResponse{
		Content: `{"actions": [{"action_type": "noop"}, {"action_type": "noop"}, {"action_type": "noop"}]}`,
	}}, plannerSpec(), 2)

	plan := p.Plan(context.Background(), PlanInput{})
	if len(plan.Actions) != 2 {
		t.Fatalf("got %d actions, want 2", len(plan.Actions))
	}
}

func TestPlannerEmptyOnLLMFailure(t *testing.T) {
	p := NewPlanner(&stubProvider{err: errors.New("connection refused")}, plannerSpec(), 5)
	plan := p.Plan(context.Background(), PlanInput{})
	if len(plan.Actions) != 0 {
		t.Fatalf("llm failure must yield empty plan, got %+v", plan.Actions)
	}
}

func TestPlannerEmptyOnBlockedResponse(t *testing.T) {
	p := NewPlanner(&stubProvider{resp: &providers.ChatResponse{
		Content: "refused", FinishReason: "content_filter",
	}}, plannerSpec(), 5)
	plan := p.Plan(context.Background(), PlanInput{})
	if len(plan.Actions) != 0 {
		t.Fatal("blocked response must yield empty plan")
	}
}

func TestPlannerEmptyOnUnparseableResponse(t *testing.T) {
	p := NewPlanner(&stubProvider{resp: &providers.ChatResponse{
		Content: "I think we should probably wait and see.",
	}}, plannerSpec(), 5)
	plan := p.Plan(context.Background(), PlanInput{})
	if len(plan.Actions) != 0 {
		t.Fatal("prose response must yield empty plan")
	}
}

func TestPlannerPromptSections(t *testing.T) {
	stub := &stubProvider{resp: &providers.ChatResponse{Content: `{"actions": []}`}}
	p := NewPlanner(stub, plannerSpec(), 5)
	p.Plan(context.Background(), PlanInput{
		Observations: "OBS",
		Goals:        "GOALS",
		ExtraContext: "URGENT",
	})

	if len(stub.last.Messages) != 2 {
		t.Fatalf("got %d messages", len(stub.last.Messages))
	}
	user := stub.last.Messages[1].Content
	for _, want := range []string{"PRIORITY CONTEXT:", "URGENT", "CURRENT STATE:", "OBS", "ACTIVE GOALS:", "GOALS", "Plan your actions now."} {
		if !strings.Contains(user, want) {
			t.Fatalf("user prompt missing %q:\n%s", want, user)
		}
	}
}
