package app

import (
	"context"
	"log/slog"
	"time"
)

type sweeper interface {
	Sweep(gameIdle time.Duration) (windows, sessions int)
}

// runJanitor periodically drops idle rate windows and abandoned game sessions.
func runJanitor(ctx context.Context, target sweeper, interval, gameIdle time.Duration, logger *slog.Logger) error {
	if interval <= 0 {
		interval = time.Minute
	}
	if gameIdle <= 0 {
		gameIdle = 30 * time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			windows, sessions := target.Sweep(gameIdle)
			if windows > 0 || sessions > 0 {
				logger.Info("swept idle state", "rate_windows", windows, "game_sessions", sessions)
			}
		}
	}
}
