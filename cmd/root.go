package cmd

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/nextlevelbuilder/overblick/internal/config"
)

// Version is set at build time via -ldflags "-X github.com/nextlevelbuilder/overblick/cmd.Version=v1.0.0"
var Version = "dev"

var (
	cfgFile string
	verbose bool
)

var rootCmd = &cobra.Command{
	Use:   "overblick",
	Short: "Overblick — multi-agent supervisor runtime",
	Long:  "Overblick runs a fleet of autonomous agent processes under one supervisor: authenticated unix-socket IPC, inter-agent message routing, and an LLM-driven planning loop per agent.",
	Run: func(cmd *cobra.Command, args []string) {
		runSupervisor()
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: config.json or $OVERBLICK_CONFIG)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")

	rootCmd.AddCommand(supervisorCmd())
	rootCmd.AddCommand(agentCmd())
	rootCmd.AddCommand(statusCmd())
	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(versionCmd())
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("overblick %s\n", Version)
		},
	}
}

func resolveConfigPath() string {
	if cfgFile != "" {
		return cfgFile
	}
	if v := os.Getenv("OVERBLICK_CONFIG"); v != "" {
		return v
	}
	return "config.json"
}

// logLevel is runtime-adjustable so a config reload can flip verbosity
// without a restart.
var logLevel = new(slog.LevelVar)

func setupLogging(cfg *config.Config) {
	if verbose || cfg.Verbose {
		logLevel.Set(slog.LevelDebug)
	} else {
		logLevel.Set(slog.LevelInfo)
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel,
	})))
}

func loadConfig() *config.Config {
	cfg, err := config.Load(resolveConfigPath())
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	return cfg
}

// Execute runs the root cobra command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
