package agentic

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/nextlevelbuilder/overblick/internal/store"
)

const (
	recentActionsWindow = 10
	learningsWindow     = 10
)

// ExtraContextFunc supplies high-priority prompt context for the next
// tick, typically pending operator directives. Empty string means none.
type ExtraContextFunc func(ctx context.Context) string

// Loop drives one agent through the observe, think, plan, act, reflect
// cycle. Tick numbers are allocated as LastTickNumber()+1 and persisted
// only when a tick completes, so a failed observation never consumes one.
type Loop struct {
	identity     string
	observer     Observer
	planner      *Planner
	executor     *Executor
	reflector    *Reflector
	goals        *GoalTracker
	store        *store.Store
	extraContext ExtraContextFunc
	tracer       trace.Tracer
}

// LoopConfig assembles a Loop. Observer, Planner, Executor and Store are
// required; Reflector, Goals and ExtraContext may be nil.
type LoopConfig struct {
	Identity     string
	Observer     Observer
	Planner      *Planner
	Executor     *Executor
	Reflector    *Reflector
	Goals        *GoalTracker
	Store        *store.Store
	ExtraContext ExtraContextFunc
}

// NewLoop builds the per-agent control loop.
func NewLoop(cfg LoopConfig) *Loop {
	return &Loop{
		identity:     cfg.Identity,
		observer:     cfg.Observer,
		planner:      cfg.Planner,
		executor:     cfg.Executor,
		reflector:    cfg.Reflector,
		goals:        cfg.Goals,
		store:        cfg.Store,
		extraContext: cfg.ExtraContext,
		tracer:       otel.Tracer("overblick/agentic"),
	}
}

// Tick runs one full cycle. A failed observation aborts the tick and
// returns an error; every later stage degrades instead of aborting. The
// returned TickLog is nil exactly when no tick number was consumed.
func (l *Loop) Tick(ctx context.Context) (*store.TickLog, error) {
	ctx, span := l.tracer.Start(ctx, "agent.tick",
		trace.WithAttributes(attribute.String("agent.identity", l.identity)))
	defer span.End()

	last, err := l.store.LastTickNumber()
	if err != nil {
		return nil, fmt.Errorf("tick: %w", err)
	}
	tickNumber := last + 1
	span.SetAttributes(attribute.Int64("agent.tick_number", tickNumber))
	started := time.Now()

	// OBSERVE
	observation, err := l.observer.Observe(ctx)
	if err != nil {
		slog.Warn("observation failed, tick skipped", "agent", l.identity, "error", err)
		return nil, fmt.Errorf("tick: observe: %w", err)
	}
	obsCount := CountObservations(observation)

	// THINK
	in := PlanInput{
		Observations: l.observer.FormatForPlanner(observation),
		Goals:        l.goalsSection(),
	}
	in.RecentActions = l.recentActionsSection()
	in.Learnings = l.learningsSection()
	if l.extraContext != nil {
		in.ExtraContext = l.extraContext(ctx)
	}

	// PLAN
	plan := l.planner.Plan(ctx, in)
	slog.Info("tick planned", "agent", l.identity, "tick", tickNumber,
		"observations", obsCount, "actions", len(plan.Actions))

	// ACT
	var outcomes []Outcome
	if len(plan.Actions) > 0 {
		outcomes = l.executor.Execute(ctx, plan, observation)
		for _, o := range outcomes {
			rec := store.ActionRecord{
				TickNumber: tickNumber,
				ActionType: o.Action.ActionType,
				Target:     o.Action.Target,
				TargetNum:  o.Action.TargetNum,
				Repo:       o.Action.Repo,
				Priority:   o.Action.Priority,
				Reasoning:  o.Action.Reasoning,
				Success:    o.Success,
				Result:     o.Result,
				Error:      o.Error,
				DurationMS: o.Duration.Milliseconds(),
			}
			if err := l.store.AppendAction(rec); err != nil {
				slog.Warn("persist action outcome", "agent", l.identity, "error", err)
			}
		}
	}

	// REFLECT
	if l.reflector != nil {
		l.reflector.Reflect(ctx, tickNumber, plan, outcomes)
	}

	succeeded := 0
	for _, o := range outcomes {
		if o.Success {
			succeeded++
		}
	}
	tl := &store.TickLog{
		TickNumber:        tickNumber,
		StartedAt:         started,
		CompletedAt:       time.Now(),
		ObservationsCount: obsCount,
		ActionsPlanned:    len(plan.Actions),
		ActionsExecuted:   len(outcomes),
		ActionsSucceeded:  succeeded,
		ReasoningSummary:  plan.Reasoning,
		DurationMS:        time.Since(started).Milliseconds(),
	}
	if err := l.store.AppendTick(*tl); err != nil {
		return nil, fmt.Errorf("tick: persist: %w", err)
	}
	slog.Info("tick completed", "agent", l.identity, "tick", tickNumber,
		"executed", len(outcomes), "succeeded", succeeded,
		"duration_ms", tl.DurationMS)
	return tl, nil
}

func (l *Loop) goalsSection() string {
	if l.goals == nil {
		return "(no active goals)"
	}
	s, err := l.goals.FormatForPlanner()
	if err != nil {
		slog.Warn("format goals", "agent", l.identity, "error", err)
		return "(no active goals)"
	}
	return s
}

func (l *Loop) recentActionsSection() string {
	actions, err := l.store.RecentActions(recentActionsWindow)
	if err != nil || len(actions) == 0 {
		return ""
	}
	var b strings.Builder
	for _, a := range actions {
		status := "ok"
		if !a.Success {
			status = "failed: " + a.Error
		}
		fmt.Fprintf(&b, "- tick %d: %s %s (%s)\n", a.TickNumber, a.ActionType, a.Target, status)
	}
	return strings.TrimRight(b.String(), "\n")
}

func (l *Loop) learningsSection() string {
	learnings, err := l.store.RecentLearnings(learningsWindow)
	if err != nil || len(learnings) == 0 {
		return ""
	}
	var b strings.Builder
	for _, learned := range learnings {
		fmt.Fprintf(&b, "- [%s, confidence %.1f] %s\n", learned.Category, learned.Confidence, learned.Insight)
	}
	return strings.TrimRight(b.String(), "\n")
}
