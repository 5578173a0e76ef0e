package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/nextlevelbuilder/overblick/internal/agentic"
	"github.com/nextlevelbuilder/overblick/internal/ipc"
	"github.com/nextlevelbuilder/overblick/internal/plugin"
	"github.com/nextlevelbuilder/overblick/internal/providers"
	"github.com/nextlevelbuilder/overblick/internal/store"
	"github.com/nextlevelbuilder/overblick/internal/tracing"
)

func agentCmd() *cobra.Command {
	var (
		name      string
		plugins   []string
		socketDir string
	)
	cmd := &cobra.Command{
		Use:   "agent",
		Short: "Run one agent process (normally spawned by the supervisor)",
		RunE: func(cmd *cobra.Command, args []string) error {
			if name == "" {
				return fmt.Errorf("--name is required")
			}
			if len(plugins) == 0 {
				plugins = []string{"heartbeat"}
			}
			return runAgent(name, plugins, socketDir)
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "agent identity")
	cmd.Flags().StringSliceVar(&plugins, "plugins", nil, "plugins to load (default: heartbeat)")
	cmd.Flags().StringVar(&socketDir, "socket-dir", "", "supervisor socket directory")
	return cmd
}

func runAgent(name string, pluginNames []string, socketDir string) error {
	cfg := loadConfig()
	setupLogging(cfg)
	if socketDir != "" {
		cfg.Supervisor.SocketDir = socketDir
	}

	shutdownTracing, err := tracing.Setup(context.Background(), "overblick-agent-"+name, Version, cfg.Tracing)
	if err != nil {
		return fmt.Errorf("set up tracing: %w", err)
	}
	defer shutdownTracing(context.Background())

	// The supervisor may not exist when running standalone; plugins get a
	// nil client and degrade.
	sup, err := ipc.NewAgentClient(name, cfg.SocketDir())
	if err != nil {
		slog.Warn("no supervisor token found, running standalone", "error", err)
		sup = nil
	}

	loaded, err := plugin.Resolve(pluginNames, plugin.Deps{Identity: name, Supervisor: sup})
	if err != nil {
		return err
	}

	dataDir := cfg.AgentDataDir(name)
	if err := os.MkdirAll(dataDir, 0o700); err != nil {
		return fmt.Errorf("create data dir: %w", err)
	}
	st, err := store.Open(filepath.Join(dataDir, "agent.db"))
	if err != nil {
		return err
	}
	defer st.Close()

	goals := agentic.NewGoalTracker(st)
	if err := goals.Setup(plugin.MergeGoals(loaded)); err != nil {
		return err
	}

	executor := agentic.NewExecutor(cfg.Agents.MaxActionsPerTick)
	if err := plugin.MergeHandlers(executor, loaded); err != nil {
		return err
	}

	llm := providers.NewOpenAIProvider("agent-llm", cfg.LLM.APIKey, cfg.LLM.APIBase,
		cfg.LLM.Model, cfg.LLM.Timeout()).WithRateLimit(cfg.LLM.RateLimitRPM)

	loop := agentic.NewLoop(agentic.LoopConfig{
		Identity:     name,
		Observer:     plugin.NewCompositeObserver(loaded),
		Planner:      agentic.NewPlanner(llm, plugin.MergePrompts(name, loaded), cfg.Agents.MaxActionsPerTick),
		Executor:     executor,
		Reflector:    agentic.NewReflector(llm, st),
		Goals:        goals,
		Store:        st,
		ExtraContext: routedMessagesContext(sup),
	})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	slog.Info("agent starting", "name", name, "plugins", strings.Join(pluginNames, ","))
	agentic.NewRunner(loop, cfg.Agents.TickInterval()).Run(ctx)
	return nil
}

// routedMessagesContext drains the agent's inter-agent queue before each
// tick and surfaces the messages as priority prompt context.
func routedMessagesContext(sup *ipc.AgentClient) agentic.ExtraContextFunc {
	if sup == nil {
		return nil
	}
	return func(ctx context.Context) string {
		messages := sup.CollectMessages()
		if len(messages) == 0 {
			return ""
		}
		var b strings.Builder
		b.WriteString("Messages routed to you since the last tick:\n")
		for _, m := range messages {
			fmt.Fprintf(&b, "- from %v (%v): %v\n", m["source_agent"], m["message_type"], m["payload"])
		}
		return strings.TrimRight(b.String(), "\n")
	}
}
