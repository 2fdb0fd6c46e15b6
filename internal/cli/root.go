package cli

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/dwizi/room-companion/internal/adminclient"
	"github.com/dwizi/room-companion/internal/app"
	"github.com/dwizi/room-companion/internal/config"
)

const version = "0.1.0"

func NewRoot(logger *slog.Logger) *cobra.Command {
	root := &cobra.Command{
		Use:   "room-companion",
		Short: "Room Companion is a moderating chat companion for Telegram and Discord",
	}
	root.PersistentFlags().String("api-url", "", "admin API base URL (defaults to ROOM_COMPANION_ADMIN_API_URL)")

	root.AddCommand(newServeCommand(logger))
	root.AddCommand(newChatCommand(logger))
	root.AddCommand(newGameCommand())
	root.AddCommand(newLedgerCommand())
	root.AddCommand(newEnforcementCommand())
	root.AddCommand(newContextCommand())
	root.AddCommand(newRoomsCommand())
	root.AddCommand(newVersionCommand())

	return root
}

func newServeCommand(logger *slog.Logger) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the connectors, companion engine and admin API",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.FromEnv()
			runtime, err := app.New(cfg, logger)
			if err != nil {
				return err
			}
			defer runtime.Close()

			ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer cancel()
			return runtime.Run(ctx)
		},
	}
}

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print CLI version",
		Run: func(cmd *cobra.Command, args []string) {
			cmd.Println(version)
		},
	}
}

// clientFor builds an admin client, letting --api-url override the
// environment.
func clientFor(cmd *cobra.Command) (*adminclient.Client, error) {
	cfg := config.FromEnv()
	if flag := cmd.Flags().Lookup("api-url"); flag != nil {
		if value := strings.TrimSpace(flag.Value.String()); value != "" {
			cfg.AdminAPIURL = value
		}
	}
	return adminclient.New(cfg)
}
