package heartbeat

import (
	"context"
	"log/slog"
	"time"
)

type Transition struct {
	Component string `json:"component"`
	FromState string `json:"from_state"`
	ToState   string `json:"to_state"`
	Message   string `json:"message,omitempty"`
	Error     string `json:"error,omitempty"`
}

type MonitorConfig struct {
	Interval     time.Duration
	StaleAfter   time.Duration
	Logger       *slog.Logger
	OnTransition func(context.Context, Transition)
}

// Monitor polls a registry and reports component state changes.
type Monitor struct {
	registry     *Registry
	cfg          MonitorConfig
	lastStates   map[string]string
	onTransition func(context.Context, Transition)
}

func NewMonitor(registry *Registry, cfg MonitorConfig) *Monitor {
	if cfg.Interval <= 0 {
		cfg.Interval = 30 * time.Second
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Monitor{
		registry:     registry,
		cfg:          cfg,
		lastStates:   map[string]string{},
		onTransition: cfg.OnTransition,
	}
}

func (m *Monitor) Start(ctx context.Context) error {
	if m.registry == nil {
		<-ctx.Done()
		return nil
	}
	ticker := time.NewTicker(m.cfg.Interval)
	defer ticker.Stop()
	m.cfg.Logger.Info("heartbeat monitor started", "interval", m.cfg.Interval.String(), "stale_after", m.cfg.StaleAfter.String())

	for {
		m.check(ctx)
		select {
		case <-ctx.Done():
			m.cfg.Logger.Info("heartbeat monitor stopped")
			return nil
		case <-ticker.C:
		}
	}
}

func (m *Monitor) check(ctx context.Context) {
	snapshot := m.registry.Snapshot(m.cfg.StaleAfter)
	for _, status := range snapshot.Components {
		before, seen := m.lastStates[status.Name]
		m.lastStates[status.Name] = status.State
		if !seen || before == status.State {
			continue
		}
		transition := Transition{
			Component: status.Name,
			FromState: before,
			ToState:   status.State,
			Message:   status.Message,
			Error:     status.Error,
		}
		m.cfg.Logger.Info("component state changed", "component", transition.Component, "from", transition.FromState, "to", transition.ToState)
		if m.onTransition != nil {
			m.onTransition(ctx, transition)
		}
	}
}
