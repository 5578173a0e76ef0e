package cmd

import (
	"context"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/nextlevelbuilder/overblick/internal/config"
	"github.com/nextlevelbuilder/overblick/internal/supervisor"
	"github.com/nextlevelbuilder/overblick/internal/tracing"
)

func supervisorCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "supervisor",
		Short: "Run the supervisor (also the default command)",
		Run: func(cmd *cobra.Command, args []string) {
			runSupervisor()
		},
	}
}

func runSupervisor() {
	cfg := loadConfig()
	setupLogging(cfg)

	shutdownTracing, err := tracing.Setup(context.Background(), "overblick-supervisor", Version, cfg.Tracing)
	if err != nil {
		slog.Error("failed to set up tracing", "error", err)
		os.Exit(1)
	}
	defer shutdownTracing(context.Background())

	// Hot-reload verbosity on config file changes.
	stopWatch, err := config.Watch(resolveConfigPath(), func(updated *config.Config) {
		if updated.Verbose || verbose {
			logLevel.Set(slog.LevelDebug)
		} else {
			logLevel.Set(slog.LevelInfo)
		}
	})
	if err != nil {
		slog.Warn("config watch unavailable", "error", err)
	} else {
		defer stopWatch()
	}

	s, err := supervisor.New(cfg)
	if err != nil {
		slog.Error("failed to build supervisor", "error", err)
		os.Exit(1)
	}
	if err := s.Run(); err != nil {
		slog.Error("supervisor failed", "error", err)
		os.Exit(1)
	}
}
