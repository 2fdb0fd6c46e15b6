package connectors

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/dwizi/room-companion/internal/companion"
	"github.com/dwizi/room-companion/internal/roomerr"
)

var ErrUnknownConnector = errors.New("unknown connector")

type Connector interface {
	Name() string
	Start(ctx context.Context) error
}

// Endpoint is a connector that can act on rooms it owns.
type Endpoint interface {
	Name() string
	Restrict(ctx context.Context, restriction companion.Restriction) error
	Release(ctx context.Context, room, participant string) error
	Publish(ctx context.Context, room, text string) error
}

// ConnectorOf returns the connector prefix of a room id such as
// "telegram:-100123".
func ConnectorOf(room string) string {
	prefix, _, found := strings.Cut(strings.TrimSpace(room), ":")
	if !found {
		return ""
	}
	return strings.ToLower(prefix)
}

// Router sends restrictions and publications to the endpoint that owns the
// room.
type Router struct {
	mu        sync.RWMutex
	endpoints map[string]Endpoint
}

func NewRouter(endpoints ...Endpoint) *Router {
	router := &Router{endpoints: map[string]Endpoint{}}
	for _, endpoint := range endpoints {
		router.Register(endpoint)
	}
	return router
}

func (r *Router) Register(endpoint Endpoint) {
	if endpoint == nil {
		return
	}
	name := strings.ToLower(strings.TrimSpace(endpoint.Name()))
	if name == "" {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.endpoints[name] = endpoint
}

func (r *Router) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.endpoints))
	for name := range r.endpoints {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (r *Router) Restrict(ctx context.Context, restriction companion.Restriction) error {
	endpoint, err := r.lookup(restriction.Room)
	if err != nil {
		return fmt.Errorf("%w: %w", roomerr.ErrActuatorFailure, err)
	}
	if err := endpoint.Restrict(ctx, restriction); err != nil {
		return fmt.Errorf("%w: %w", roomerr.ErrActuatorFailure, err)
	}
	return nil
}

func (r *Router) Release(ctx context.Context, room, participant string) error {
	endpoint, err := r.lookup(room)
	if err != nil {
		return fmt.Errorf("%w: %w", roomerr.ErrActuatorFailure, err)
	}
	if err := endpoint.Release(ctx, room, participant); err != nil {
		return fmt.Errorf("%w: %w", roomerr.ErrActuatorFailure, err)
	}
	return nil
}

func (r *Router) Publish(ctx context.Context, room, text string) error {
	endpoint, err := r.lookup(room)
	if err != nil {
		return err
	}
	return endpoint.Publish(ctx, room, text)
}

func (r *Router) lookup(room string) (Endpoint, error) {
	name := ConnectorOf(room)
	r.mu.RLock()
	endpoint, ok := r.endpoints[name]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w for room %q", ErrUnknownConnector, room)
	}
	return endpoint, nil
}
