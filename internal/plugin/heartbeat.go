package plugin

import (
	"context"
	"errors"
	"fmt"

	"github.com/nextlevelbuilder/overblick/internal/agentic"
	"github.com/nextlevelbuilder/overblick/internal/health"
	"github.com/nextlevelbuilder/overblick/internal/store"
)

// heartbeat is the built-in reference plugin: it observes host health and
// can report a status summary to the supervisor. It doubles as the live
// smoke test of the whole loop wiring.
type heartbeat struct {
	deps Deps
}

func init() {
	Register("heartbeat", func(deps Deps) (Plugin, error) {
		return &heartbeat{deps: deps}, nil
	})
}

func (h *heartbeat) Name() string { return "heartbeat" }

func (h *heartbeat) Observer() agentic.Observer { return &heartbeatObserver{} }

func (h *heartbeat) Handlers() map[string]agentic.Handler {
	return map[string]agentic.Handler{
		"report_status": agentic.HandlerFunc(h.reportStatus),
	}
}

func (h *heartbeat) DefaultGoals() []store.Goal {
	return []store.Goal{
		{
			Name:        "monitor-host",
			Description: "keep an eye on host health and report status when it degrades",
			Priority:    50,
			Status:      store.GoalActive,
		},
	}
}

func (h *heartbeat) Prompts() agentic.PromptSpec {
	return agentic.PromptSpec{
		RolePrompt:   "You monitor the health of the machine you run on.",
		ActionDocs:   "- report_status: send the current host health summary to the supervisor. Use when the grade is fair or poor, or when explicitly asked.",
		ValidActions: []string{"report_status"},
	}
}

func (h *heartbeat) reportStatus(ctx context.Context, action agentic.Action, observation any) (string, error) {
	snap := snapshotFrom(observation)
	if snap == nil {
		snap = health.Collect()
	}
	if h.deps.Supervisor == nil {
		return "no supervisor; health: " + snap.Grade, nil
	}

	resp := h.deps.Supervisor.RouteMessage("supervisor", "status_report", map[string]any{
		"grade":   snap.Grade,
		"summary": snap.Summary(),
	}, 0)
	if resp == nil {
		return "", errors.New("supervisor unreachable")
	}
	return fmt.Sprintf("status reported (grade %s)", snap.Grade), nil
}

// snapshotFrom digs the heartbeat snapshot out of a composite observation.
func snapshotFrom(observation any) *health.Snapshot {
	if snap, ok := observation.(*health.Snapshot); ok {
		return snap
	}
	if m, ok := observation.(map[string]any); ok {
		if snap, ok := m["heartbeat"].(*health.Snapshot); ok {
			return snap
		}
	}
	return nil
}

type heartbeatObserver struct{}

func (heartbeatObserver) Observe(ctx context.Context) (any, error) {
	return health.Collect(), nil
}

func (heartbeatObserver) FormatForPlanner(observation any) string {
	snap, ok := observation.(*health.Snapshot)
	if !ok {
		return fmt.Sprintf("%v", observation)
	}
	return snap.Summary()
}
