// Package plugin is the seam between the domain-agnostic loop and domain
// behavior. A plugin contributes an observer, action handlers, default
// goals, and prompt text; the agent command assembles the loop from the
// plugins named on its command line.
package plugin

import (
	"fmt"
	"sort"
	"sync"

	"github.com/nextlevelbuilder/overblick/internal/agentic"
	"github.com/nextlevelbuilder/overblick/internal/ipc"
	"github.com/nextlevelbuilder/overblick/internal/store"
)

// Plugin supplies the domain content for one agent capability.
type Plugin interface {
	// Name identifies the plugin in config and on the command line.
	Name() string

	// Observer gathers this plugin's slice of world state each tick.
	Observer() agentic.Observer

	// Handlers maps action types to their executors.
	Handlers() map[string]agentic.Handler

	// DefaultGoals seeds the goal store on first run.
	DefaultGoals() []store.Goal

	// Prompts contributes role text, action docs, and safety rules.
	Prompts() agentic.PromptSpec
}

// Deps is what a plugin factory gets to work with.
type Deps struct {
	// Identity is the agent name the plugin runs under.
	Identity string
	// Supervisor talks to the supervisor socket; nil when running
	// standalone without one.
	Supervisor *ipc.AgentClient
}

// Factory constructs a plugin instance for one agent.
type Factory func(deps Deps) (Plugin, error)

var (
	registryMu sync.RWMutex
	registry   = map[string]Factory{}
)

// Register installs a plugin factory under name. Registration happens in
// init functions; duplicate names panic.
func Register(name string, f Factory) {
	registryMu.Lock()
	defer registryMu.Unlock()
	if _, dup := registry[name]; dup {
		panic("plugin: duplicate registration of " + name)
	}
	registry[name] = f
}

// Names lists the registered plugin names, sorted.
func Names() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()
	names := make([]string, 0, len(registry))
	for n := range registry {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Resolve instantiates the named plugins in order. An unknown name fails
// the whole resolution; an agent with a misspelled plugin list should not
// start half-configured.
func Resolve(names []string, deps Deps) ([]Plugin, error) {
	registryMu.RLock()
	defer registryMu.RUnlock()

	registered := make([]string, 0, len(registry))
	for n := range registry {
		registered = append(registered, n)
	}
	sort.Strings(registered)

	out := make([]Plugin, 0, len(names))
	for _, name := range names {
		f, ok := registry[name]
		if !ok {
			return nil, fmt.Errorf("plugin: unknown plugin %q (registered: %v)", name, registered)
		}
		p, err := f(deps)
		if err != nil {
			return nil, fmt.Errorf("plugin: init %q: %w", name, err)
		}
		out = append(out, p)
	}
	return out, nil
}
