package heartbeat

import (
	"sort"
	"strings"
	"sync"
	"time"
)

const (
	StateStarting = "starting"
	StateHealthy  = "healthy"
	StateDegraded = "degraded"
	StateDisabled = "disabled"
	StateStopped  = "stopped"
	StateStale    = "stale"

	OverallIdle    = "idle"
	OverallUnknown = "unknown"
)

// Reporter is how long-running components announce their health.
type Reporter interface {
	Starting(component, message string)
	Beat(component, message string)
	Degrade(component, message string, err error)
	Disabled(component, message string)
	Stopped(component, message string)
}

type ComponentStatus struct {
	Name           string `json:"name"`
	State          string `json:"state"`
	BaseState      string `json:"base_state"`
	Message        string `json:"message,omitempty"`
	Error          string `json:"error,omitempty"`
	LastBeatAtUnix int64  `json:"last_beat_at_unix,omitempty"`
	UpdatedAtUnix  int64  `json:"updated_at_unix"`
	Stale          bool   `json:"stale,omitempty"`
}

type Snapshot struct {
	GeneratedAtUnix int64             `json:"generated_at_unix"`
	Overall         string            `json:"overall"`
	Components      []ComponentStatus `json:"components"`
}

// Ready reports whether nothing is degraded or stale and at least one
// component is serving.
func (s Snapshot) Ready() bool {
	return s.Overall == StateHealthy
}

type component struct {
	state     string
	message   string
	lastError string
	beatAt    time.Time
	updatedAt time.Time
}

type Registry struct {
	mu         sync.RWMutex
	components map[string]component
	now        func() time.Time
}

func NewRegistry() *Registry {
	return &Registry{
		components: map[string]component{},
		now:        func() time.Time { return time.Now().UTC() },
	}
}

func (r *Registry) Starting(name, message string) {
	r.update(name, StateStarting, message, nil, false)
}

func (r *Registry) Beat(name, message string) {
	r.update(name, StateHealthy, message, nil, true)
}

func (r *Registry) Degrade(name, message string, err error) {
	r.update(name, StateDegraded, message, err, false)
}

func (r *Registry) Disabled(name, message string) {
	r.update(name, StateDisabled, message, nil, false)
}

func (r *Registry) Stopped(name, message string) {
	r.update(name, StateStopped, message, nil, false)
}

func (r *Registry) update(name, state, message string, err error, beat bool) {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "" {
		return
	}
	now := r.now()
	r.mu.Lock()
	defer r.mu.Unlock()
	current := r.components[name]
	current.state = state
	current.message = strings.TrimSpace(message)
	current.lastError = ""
	if err != nil {
		current.lastError = strings.TrimSpace(err.Error())
	}
	current.updatedAt = now
	if beat || current.beatAt.IsZero() {
		current.beatAt = now
	}
	r.components[name] = current
}

// Snapshot marks healthy or starting components whose last beat is older
// than staleAfter as stale. A non-positive staleAfter disables that check.
func (r *Registry) Snapshot(staleAfter time.Duration) Snapshot {
	now := r.now()
	r.mu.RLock()
	statuses := make([]ComponentStatus, 0, len(r.components))
	for name, current := range r.components {
		status := ComponentStatus{
			Name:          name,
			State:         current.state,
			BaseState:     current.state,
			Message:       current.message,
			Error:         current.lastError,
			UpdatedAtUnix: current.updatedAt.Unix(),
		}
		if !current.beatAt.IsZero() {
			status.LastBeatAtUnix = current.beatAt.Unix()
		}
		live := current.state == StateHealthy || current.state == StateStarting
		if staleAfter > 0 && live && now.Sub(current.beatAt) > staleAfter {
			status.State = StateStale
			status.Stale = true
		}
		statuses = append(statuses, status)
	}
	r.mu.RUnlock()

	sort.Slice(statuses, func(left, right int) bool {
		return statuses[left].Name < statuses[right].Name
	})
	return Snapshot{
		GeneratedAtUnix: now.Unix(),
		Overall:         overall(statuses),
		Components:      statuses,
	}
}

func overall(statuses []ComponentStatus) string {
	if len(statuses) == 0 {
		return OverallUnknown
	}
	healthy, starting := false, false
	for _, status := range statuses {
		switch status.State {
		case StateDegraded, StateStale:
			return StateDegraded
		case StateHealthy:
			healthy = true
		case StateStarting:
			starting = true
		}
	}
	switch {
	case starting:
		return StateStarting
	case healthy:
		return StateHealthy
	default:
		return OverallIdle
	}
}
