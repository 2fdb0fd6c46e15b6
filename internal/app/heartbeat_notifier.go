package app

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/dwizi/room-companion/internal/heartbeat"
)

type alertPublisher interface {
	Publish(ctx context.Context, room, text string) error
}

// heartbeatNotifier posts degraded and recovered transitions to an operator
// room. Without a room it only logs.
type heartbeatNotifier struct {
	publisher alertPublisher
	room      string
	logger    *slog.Logger
}

func newHeartbeatNotifier(publisher alertPublisher, room string, logger *slog.Logger) *heartbeatNotifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &heartbeatNotifier{
		publisher: publisher,
		room:      strings.TrimSpace(room),
		logger:    logger,
	}
}

func (n *heartbeatNotifier) HandleTransition(ctx context.Context, transition heartbeat.Transition) {
	eventType := heartbeatTransitionType(transition)
	if eventType == "" {
		return
	}
	if eventType == "degraded" {
		n.logger.Warn("component degraded", "component", transition.Component, "from", transition.FromState, "to", transition.ToState, "error", transition.Error)
	} else {
		n.logger.Info("component recovered", "component", transition.Component, "from", transition.FromState)
	}
	if n.publisher == nil || n.room == "" {
		return
	}
	publishCtx, cancel := context.WithTimeout(ctx, 8*time.Second)
	defer cancel()
	if err := n.publisher.Publish(publishCtx, n.room, buildHeartbeatTransitionMessage(eventType, transition)); err != nil {
		n.logger.Error("heartbeat alert publish failed", "room", n.room, "error", err)
	}
}

func isDegradedState(state string) bool {
	switch strings.ToLower(strings.TrimSpace(state)) {
	case heartbeat.StateDegraded, heartbeat.StateStale:
		return true
	default:
		return false
	}
}

func heartbeatTransitionType(transition heartbeat.Transition) string {
	fromDegraded := isDegradedState(transition.FromState)
	toDegraded := isDegradedState(transition.ToState)
	switch {
	case !fromDegraded && toDegraded:
		return "degraded"
	case fromDegraded && strings.EqualFold(strings.TrimSpace(transition.ToState), heartbeat.StateHealthy):
		return "recovered"
	default:
		return ""
	}
}

func buildHeartbeatTransitionMessage(eventType string, transition heartbeat.Transition) string {
	title := "Heartbeat recovered"
	if eventType == "degraded" {
		title = "Heartbeat degraded"
	}
	builder := strings.Builder{}
	builder.WriteString(title)
	builder.WriteString("\n- component: ")
	builder.WriteString(strings.TrimSpace(transition.Component))
	builder.WriteString("\n- state: ")
	builder.WriteString(strings.TrimSpace(transition.FromState))
	builder.WriteString(" -> ")
	builder.WriteString(strings.TrimSpace(transition.ToState))
	if errText := strings.TrimSpace(transition.Error); errText != "" {
		builder.WriteString("\n- error: ")
		builder.WriteString(errText)
	}
	return builder.String()
}
