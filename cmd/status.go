package cmd

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/nextlevelbuilder/overblick/internal/ipc"
	"github.com/nextlevelbuilder/overblick/internal/supervisor"
	"github.com/nextlevelbuilder/overblick/pkg/protocol"
)

func statusCmd() *cobra.Command {
	var socketDir string
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Print the running supervisor's status",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := loadConfig()
			setupLogging(cfg)
			if socketDir != "" {
				cfg.Supervisor.SocketDir = socketDir
			}

			token, err := ipc.ReadTokenFile(ipc.TokenPath(cfg.SocketDir(), supervisor.Identity))
			if err != nil {
				return fmt.Errorf("no supervisor running? %w", err)
			}
			client := ipc.NewClient(supervisor.Identity, cfg.SocketDir(), token)

			resp := client.Send(ipc.NewMessage(protocol.MsgStatusRequest, "cli", nil), 0)
			if resp == nil {
				return fmt.Errorf("supervisor did not respond")
			}

			out, err := json.MarshalIndent(resp.Payload, "", "  ")
			if err != nil {
				return err
			}
			fmt.Fprintln(os.Stdout, string(out))
			return nil
		},
	}
	cmd.Flags().StringVar(&socketDir, "socket-dir", "", "supervisor socket directory")
	return cmd
}
