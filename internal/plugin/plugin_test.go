package plugin

import (
	"context"
	"strings"
	"testing"

	"github.com/nextlevelbuilder/overblick/internal/agentic"
	"github.com/nextlevelbuilder/overblick/internal/store"
)

type fakePlugin struct {
	name     string
	handlers map[string]agentic.Handler
	spec     agentic.PromptSpec
	goals    []store.Goal
	obs      any
}

func (f *fakePlugin) Name() string                         { return f.name }
func (f *fakePlugin) Observer() agentic.Observer           { return fakeObserver{obs: f.obs} }
func (f *fakePlugin) Handlers() map[string]agentic.Handler { return f.handlers }
func (f *fakePlugin) DefaultGoals() []store.Goal           { return f.goals }
func (f *fakePlugin) Prompts() agentic.PromptSpec          { return f.spec }

type fakeObserver struct{ obs any }

func (f fakeObserver) Observe(ctx context.Context) (any, error) { return f.obs, nil }
func (f fakeObserver) FormatForPlanner(observation any) string  { return "formatted" }

func noopHandler() agentic.Handler {
	return agentic.HandlerFunc(func(ctx context.Context, a agentic.Action, obs any) (string, error) {
		return "", nil
	})
}

func TestResolveHeartbeat(t *testing.T) {
	plugins, err := Resolve([]string{"heartbeat"}, Deps{Identity: "tester"})
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if len(plugins) != 1 || plugins[0].Name() != "heartbeat" {
		t.Fatalf("got %v", plugins)
	}
	if len(plugins[0].DefaultGoals()) == 0 {
		t.Fatal("heartbeat should seed a default goal")
	}
	if _, ok := plugins[0].Handlers()["report_status"]; !ok {
		t.Fatal("heartbeat should handle report_status")
	}
}

func TestResolveUnknown(t *testing.T) {
	_, err := Resolve([]string{"heartbeat", "nope"}, Deps{})
	if err == nil {
		t.Fatal("unknown plugin must fail resolution")
	}
	if !strings.Contains(err.Error(), `"nope"`) {
		t.Fatalf("error should name the plugin: %v", err)
	}
}

func TestCompositeObserver(t *testing.T) {
	plugins := []Plugin{
		&fakePlugin{name: "a", obs: []any{1, 2}},
		&fakePlugin{name: "b", obs: "scalar"},
	}
	c := NewCompositeObserver(plugins)

	obs, err := c.Observe(context.Background())
	if err != nil {
		t.Fatalf("observe: %v", err)
	}
	m, ok := obs.(map[string]any)
	if !ok || len(m) != 2 {
		t.Fatalf("got %#v", obs)
	}
	if agentic.CountObservations(obs) != 3 {
		t.Fatalf("count %d, want 3", agentic.CountObservations(obs))
	}

	text := c.FormatForPlanner(obs)
	if !strings.Contains(text, "[a]") || !strings.Contains(text, "[b]") {
		t.Fatalf("format %q", text)
	}
}

func TestMergeHandlersDuplicate(t *testing.T) {
	ex := agentic.NewExecutor(5)
	plugins := []Plugin{
		&fakePlugin{name: "a", handlers: map[string]agentic.Handler{"send": noopHandler()}},
		&fakePlugin{name: "b", handlers: map[string]agentic.Handler{"send": noopHandler()}},
	}
	if err := MergeHandlers(ex, plugins); err == nil {
		t.Fatal("duplicate action type must fail")
	}
}

func TestMergePrompts(t *testing.T) {
	plugins := []Plugin{
		&fakePlugin{name: "a", spec: agentic.PromptSpec{
			RolePrompt:   "You read mail.",
			ActionDocs:   "- send: send mail",
			ValidActions: []string{"send"},
		}},
		&fakePlugin{name: "b", spec: agentic.PromptSpec{
			ActionDocs:   "- wait: do nothing",
			ValidActions: []string{"wait"},
		}},
	}
	spec := MergePrompts("postmaster", plugins)
	if !strings.Contains(spec.RolePrompt, `"postmaster"`) || !strings.Contains(spec.RolePrompt, "You read mail.") {
		t.Fatalf("role %q", spec.RolePrompt)
	}
	if !strings.Contains(spec.ActionDocs, "send") || !strings.Contains(spec.ActionDocs, "wait") {
		t.Fatalf("docs %q", spec.ActionDocs)
	}
	if len(spec.ValidActions) != 2 {
		t.Fatalf("valid %v", spec.ValidActions)
	}
}
