package agentic

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/nextlevelbuilder/overblick/internal/providers"
)

// PromptSpec is the plugin's contribution to the planning prompt.
type PromptSpec struct {
	// RolePrompt opens the system message: who this agent is.
	RolePrompt string
	// ActionDocs describes each available action for the LLM.
	ActionDocs string
	// SafetyRules are appended verbatim to the system message.
	SafetyRules string
	// ValidActions filters planned actions; empty allows everything.
	ValidActions []string
}

// PlanInput carries the assembled THINK-phase context into planning.
type PlanInput struct {
	Observations  string
	Goals         string
	RecentActions string
	Learnings     string
	ExtraContext  string
}

// Planner turns observations and goals into a prioritized action plan via
// the LLM. LLM failures are swallowed: an unreachable model yields an
// empty plan, never an aborted tick.
type Planner struct {
	provider   providers.Provider
	spec       PromptSpec
	maxActions int
	valid      map[string]bool
}

// NewPlanner builds a planner producing at most maxActions per tick.
func NewPlanner(provider providers.Provider, spec PromptSpec, maxActions int) *Planner {
	if maxActions <= 0 {
		maxActions = DefaultMaxActionsPerTick
	}
	p := &Planner{provider: provider, spec: spec, maxActions: maxActions}
	if len(spec.ValidActions) > 0 {
		p.valid = make(map[string]bool, len(spec.ValidActions))
		for _, a := range spec.ValidActions {
			p.valid[a] = true
		}
	}
	return p
}

// Plan asks the LLM for the next actions. The returned plan is validated,
// sorted by priority descending, and truncated to the per-tick cap.
func (p *Planner) Plan(ctx context.Context, in PlanInput) *ActionPlan {
	if p.provider == nil {
		return &ActionPlan{}
	}

	req := providers.ChatRequest{
		Messages: []providers.Message{
			{Role: "system", Content: p.systemPrompt()},
			{Role: "user", Content: p.userPrompt(in)},
		},
		// Planning is trusted internal traffic: schedule it below
		// interactive work and skip pre-flight content checks.
		Options: map[string]any{
			"complexity":        "planning",
			"priority":          "low",
			"skip_safety_check": true,
			"temperature":       0.7,
		},
	}

	resp, err := p.provider.Chat(ctx, req)
	if err != nil {
		slog.Warn("planner: llm call failed", "error", err)
		return &ActionPlan{}
	}
	if resp.Content == "" || resp.Blocked() {
		slog.Warn("planner: empty or blocked response", "finish_reason", resp.FinishReason)
		return &ActionPlan{}
	}

	return p.parsePlan(resp.Content)
}

func (p *Planner) systemPrompt() string {
	var b strings.Builder
	b.WriteString(p.spec.RolePrompt)
	b.WriteString("\n\nAvailable actions:\n")
	b.WriteString(p.spec.ActionDocs)
	if p.spec.SafetyRules != "" {
		b.WriteString("\n\nSafety rules:\n")
		b.WriteString(p.spec.SafetyRules)
	}
	fmt.Fprintf(&b, "\n\nPlan at most %d actions, ordered by priority (highest first).", p.maxActions)
	b.WriteString("\nRespond with strict JSON only, no prose:\n")
	b.WriteString(`{"reasoning": "...", "actions": [{"action_type": "...", "target": "...", "target_number": 0, "repo": "", "priority": 50, "reasoning": "..."}]}`)
	return b.String()
}

func (p *Planner) userPrompt(in PlanInput) string {
	var b strings.Builder
	if in.ExtraContext != "" {
		b.WriteString("PRIORITY CONTEXT:\n")
		b.WriteString(in.ExtraContext)
		b.WriteString("\n\n")
	}
	b.WriteString("CURRENT STATE:\n")
	b.WriteString(in.Observations)
	b.WriteString("\n\nACTIVE GOALS:\n")
	b.WriteString(in.Goals)
	if in.RecentActions != "" {
		b.WriteString("\n\nRECENT ACTIONS:\n")
		b.WriteString(in.RecentActions)
	}
	if in.Learnings != "" {
		b.WriteString("\n\nLEARNINGS:\n")
		b.WriteString(in.Learnings)
	}
	b.WriteString("\n\nPlan your actions now.")
	return b.String()
}

// rawAction tolerates the numeric sloppiness of model output: every
// number arrives as a float64.
type rawAction struct {
	ActionType string         `json:"action_type"`
	Target     string         `json:"target"`
	TargetNum  float64        `json:"target_number"`
	Repo       string         `json:"repo"`
	Priority   *float64       `json:"priority"`
	Reasoning  string         `json:"reasoning"`
	Parameters map[string]any `json:"parameters"`
}

type rawPlan struct {
	Reasoning string      `json:"reasoning"`
	Actions   []rawAction `json:"actions"`
}

func (p *Planner) parsePlan(content string) *ActionPlan {
	var raw rawPlan
	if !ExtractJSON(content, &raw) {
		slog.Warn("planner: no parseable JSON in response", "length", len(content))
		return &ActionPlan{}
	}

	plan := &ActionPlan{Reasoning: raw.Reasoning}
	for _, ra := range raw.Actions {
		if ra.ActionType == "" {
			continue
		}
		if p.valid != nil && !p.valid[ra.ActionType] {
			slog.Debug("planner: dropping invalid action", "action_type", ra.ActionType)
			continue
		}
		priority := 50
		if ra.Priority != nil {
			priority = int(*ra.Priority)
		}
		plan.Actions = append(plan.Actions, Action{
			ActionType: ra.ActionType,
			Target:     ra.Target,
			TargetNum:  int64(ra.TargetNum),
			Repo:       ra.Repo,
			Priority:   priority,
			Reasoning:  ra.Reasoning,
			Parameters: ra.Parameters,
		})
	}

	sort.SliceStable(plan.Actions, func(i, j int) bool {
		return plan.Actions[i].Priority > plan.Actions[j].Priority
	})
	if len(plan.Actions) > p.maxActions {
		plan.Actions = plan.Actions[:p.maxActions]
	}
	return plan
}
