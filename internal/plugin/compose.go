package plugin

import (
	"context"
	"fmt"
	"strings"

	"github.com/nextlevelbuilder/overblick/internal/agentic"
	"github.com/nextlevelbuilder/overblick/internal/store"
)

// CompositeObserver merges per-plugin observations into one map keyed by
// plugin name. One failing plugin fails the whole observation, which
// skips the tick rather than planning on partial state.
type CompositeObserver struct {
	plugins []Plugin
}

// NewCompositeObserver observes through every given plugin each tick.
func NewCompositeObserver(plugins []Plugin) *CompositeObserver {
	return &CompositeObserver{plugins: plugins}
}

func (c *CompositeObserver) Observe(ctx context.Context) (any, error) {
	out := map[string]any{}
	for _, p := range c.plugins {
		obs, err := p.Observer().Observe(ctx)
		if err != nil {
			return nil, fmt.Errorf("observe %s: %w", p.Name(), err)
		}
		out[p.Name()] = obs
	}
	return out, nil
}

func (c *CompositeObserver) FormatForPlanner(observation any) string {
	m, ok := observation.(map[string]any)
	if !ok {
		return fmt.Sprintf("%v", observation)
	}
	var b strings.Builder
	for _, p := range c.plugins {
		obs, present := m[p.Name()]
		if !present {
			continue
		}
		fmt.Fprintf(&b, "[%s]\n%s\n", p.Name(), p.Observer().FormatForPlanner(obs))
	}
	return strings.TrimRight(b.String(), "\n")
}

// MergeHandlers registers every plugin's handlers on the executor.
// A duplicate action type across plugins is a configuration error.
func MergeHandlers(ex *agentic.Executor, plugins []Plugin) error {
	seen := map[string]string{}
	for _, p := range plugins {
		for actionType, h := range p.Handlers() {
			if owner, dup := seen[actionType]; dup {
				return fmt.Errorf("plugin: action type %q claimed by both %s and %s", actionType, owner, p.Name())
			}
			seen[actionType] = p.Name()
			ex.Register(actionType, h)
		}
	}
	return nil
}

// MergePrompts concatenates plugin prompt specs into one. Role prompts
// and action docs are joined in plugin order; valid-action lists union.
func MergePrompts(identity string, plugins []Plugin) agentic.PromptSpec {
	var roles, docs, rules []string
	var valid []string
	for _, p := range plugins {
		spec := p.Prompts()
		if spec.RolePrompt != "" {
			roles = append(roles, spec.RolePrompt)
		}
		if spec.ActionDocs != "" {
			docs = append(docs, spec.ActionDocs)
		}
		if spec.SafetyRules != "" {
			rules = append(rules, spec.SafetyRules)
		}
		valid = append(valid, spec.ValidActions...)
	}
	role := fmt.Sprintf("You are %q, an autonomous agent.", identity)
	if len(roles) > 0 {
		role += "\n\n" + strings.Join(roles, "\n\n")
	}
	return agentic.PromptSpec{
		RolePrompt:   role,
		ActionDocs:   strings.Join(docs, "\n"),
		SafetyRules:  strings.Join(rules, "\n"),
		ValidActions: valid,
	}
}

// MergeGoals concatenates plugin default goals in plugin order.
func MergeGoals(plugins []Plugin) []store.Goal {
	var out []store.Goal
	for _, p := range plugins {
		out = append(out, p.DefaultGoals()...)
	}
	return out
}
