package cmd

import (
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/nextlevelbuilder/overblick/internal/store"
)

func migrateCmd() *cobra.Command {
	var name string
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Agent store migration management",
	}
	cmd.PersistentFlags().StringVar(&name, "name", "", "agent identity (required)")

	dbPath := func() (string, error) {
		if name == "" {
			return "", fmt.Errorf("--name is required")
		}
		cfg := loadConfig()
		setupLogging(cfg)
		return filepath.Join(cfg.AgentDataDir(name), "agent.db"), nil
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "up",
		Short: "Apply all pending migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := dbPath()
			if err != nil {
				return err
			}
			if err := store.Migrate(path); err != nil {
				return err
			}
			v, err := store.SchemaVersion(path)
			if err != nil {
				return err
			}
			slog.Info("migration complete", "path", path, "version", v)
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Show current migration version",
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := dbPath()
			if err != nil {
				return err
			}
			v, err := store.SchemaVersion(path)
			if err != nil {
				return err
			}
			fmt.Printf("version: %d\n", v)
			return nil
		},
	})

	return cmd
}
