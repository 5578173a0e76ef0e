package agentic

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// Action is one planned step. ActionType keys handler dispatch; the rest
// is advisory context the handler may use.
type Action struct {
	ActionType string         `json:"action_type"`
	Target     string         `json:"target,omitempty"`
	TargetNum  int64          `json:"target_number,omitempty"`
	Repo       string         `json:"repo,omitempty"`
	Priority   int            `json:"priority"`
	Reasoning  string         `json:"reasoning,omitempty"`
	Parameters map[string]any `json:"parameters,omitempty"`
}

// ActionPlan is the planner's output for one tick.
type ActionPlan struct {
	Reasoning string   `json:"reasoning"`
	Actions   []Action `json:"actions"`
}

// Outcome is the result of executing one action.
type Outcome struct {
	Action   Action
	Success  bool
	Result   string
	Error    string
	Duration time.Duration
}

// Handler executes a single action type against an observation.
type Handler interface {
	Handle(ctx context.Context, action Action, observation any) (string, error)
}

// HandlerFunc adapts a function to the Handler interface.
type HandlerFunc func(ctx context.Context, action Action, observation any) (string, error)

func (f HandlerFunc) Handle(ctx context.Context, action Action, observation any) (string, error) {
	return f(ctx, action, observation)
}

// DefaultMaxActionsPerTick caps execution when the executor is built with
// a non-positive limit.
const DefaultMaxActionsPerTick = 5

// Executor dispatches planned actions to registered handlers. A handler
// failure never aborts the tick; it becomes a failed outcome.
type Executor struct {
	handlers   map[string]Handler
	maxActions int
}

// NewExecutor builds an executor capped at maxActions per tick.
func NewExecutor(maxActions int) *Executor {
	if maxActions <= 0 {
		maxActions = DefaultMaxActionsPerTick
	}
	return &Executor{
		handlers:   map[string]Handler{},
		maxActions: maxActions,
	}
}

// Register installs a handler for one action type.
func (e *Executor) Register(actionType string, h Handler) {
	e.handlers[actionType] = h
}

// HandlerTypes returns the registered action types, for planner prompts.
func (e *Executor) HandlerTypes() []string {
	types := make([]string, 0, len(e.handlers))
	for t := range e.handlers {
		types = append(types, t)
	}
	return types
}

// Execute runs the plan's actions in order, at most maxActions of them.
// Every dispatched action yields exactly one outcome.
func (e *Executor) Execute(ctx context.Context, plan *ActionPlan, observation any) []Outcome {
	actions := plan.Actions
	if len(actions) > e.maxActions {
		slog.Warn("plan truncated to per-tick cap", "planned", len(actions), "cap", e.maxActions)
		actions = actions[:e.maxActions]
	}

	outcomes := make([]Outcome, 0, len(actions))
	for _, action := range actions {
		outcomes = append(outcomes, e.executeOne(ctx, action, observation))
	}
	return outcomes
}

func (e *Executor) executeOne(ctx context.Context, action Action, observation any) (out Outcome) {
	out.Action = action
	start := time.Now()
	defer func() {
		out.Duration = time.Since(start)
		// A panicking handler is a failed outcome, not a dead loop.
		if r := recover(); r != nil {
			out.Success = false
			out.Result = ""
			out.Error = fmt.Sprintf("Unhandled error: %v", r)
			slog.Error("action handler panicked", "action_type", action.ActionType, "panic", r)
		}
	}()

	h, ok := e.handlers[action.ActionType]
	if !ok {
		out.Error = "No handler registered for action type: " + action.ActionType
		return out
	}

	result, err := h.Handle(ctx, action, observation)
	if err != nil {
		out.Error = "Unhandled error: " + err.Error()
		return out
	}
	out.Success = true
	out.Result = result
	return out
}
