package main

import (
	"log/slog"
	"os"

	"github.com/dwizi/room-companion/internal/cli"
	"github.com/dwizi/room-companion/internal/config"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	if err := config.LoadDotEnv(os.Getenv("ROOM_COMPANION_ENV_FILE")); err != nil {
		logger.Error("load env file failed", "error", err)
		os.Exit(1)
	}
	if err := cli.NewRoot(logger).Execute(); err != nil {
		logger.Error("command failed", "error", err)
		os.Exit(1)
	}
}
