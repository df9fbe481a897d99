// Package pipeline models the running data pipeline the API observes: named
// components with health and flow counters, directed edges between them,
// and a change feed for topology and state transitions. The schema exposed
// by APISchema resolves against this model.
package pipeline

import (
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/songlinshu/vector/errors"
)

// Kind discriminates component roles. Values match the API's enum.
type Kind string

const (
	KindInput     Kind = "INPUT"
	KindProcessor Kind = "PROCESSOR"
	KindOutput    Kind = "OUTPUT"
)

// HealthState is a component's coarse health. Values match the API's enum.
type HealthState string

const (
	StateHealthy   HealthState = "HEALTHY"
	StateDegraded  HealthState = "DEGRADED"
	StateUnhealthy HealthState = "UNHEALTHY"
)

// rank orders states worst-last for aggregation.
func (s HealthState) rank() int {
	switch s {
	case StateHealthy:
		return 0
	case StateDegraded:
		return 1
	default:
		return 2
	}
}

// HealthStatus is a point-in-time health snapshot.
type HealthStatus struct {
	State   HealthState
	Message string
	Since   time.Time
}

// FlowStats is a point-in-time counter snapshot for one component.
type FlowStats struct {
	MessagesIn  uint64
	MessagesOut uint64
	Errors      uint64
	ObservedAt  time.Time
}

// Component is one pipeline stage. Counters are updated from the hot path
// and use atomics; health transitions are rare and take the mutex.
type Component struct {
	name string
	kind Kind

	paused      atomic.Bool
	messagesIn  atomic.Uint64
	messagesOut atomic.Uint64
	errs        atomic.Uint64

	mu     sync.RWMutex
	health HealthStatus
}

// Name returns the component's unique name.
func (c *Component) Name() string { return c.name }

// Kind returns the component's role.
func (c *Component) Kind() Kind { return c.kind }

// Paused reports whether the component is administratively paused.
func (c *Component) Paused() bool { return c.paused.Load() }

// RecordIn counts one received message.
func (c *Component) RecordIn() { c.messagesIn.Add(1) }

// RecordOut counts one emitted message.
func (c *Component) RecordOut() { c.messagesOut.Add(1) }

// RecordError counts one processing error.
func (c *Component) RecordError() { c.errs.Add(1) }

// Flow returns the current counter snapshot.
func (c *Component) Flow() FlowStats {
	return FlowStats{
		MessagesIn:  c.messagesIn.Load(),
		MessagesOut: c.messagesOut.Load(),
		Errors:      c.errs.Load(),
		ObservedAt:  time.Now().UTC(),
	}
}

// Health returns the current health snapshot.
func (c *Component) Health() HealthStatus {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.health
}

// Edge is a directed connection between two components.
type Edge struct {
	From string
	To   string
}

// ChangeType classifies topology change events. Values match the API's enum.
type ChangeType string

const (
	ChangeComponentAdded   ChangeType = "COMPONENT_ADDED"
	ChangeEdgeAdded        ChangeType = "EDGE_ADDED"
	ChangeComponentPaused  ChangeType = "COMPONENT_PAUSED"
	ChangeComponentResumed ChangeType = "COMPONENT_RESUMED"
	ChangeHealthChanged    ChangeType = "HEALTH_CHANGED"
)

// ChangeEvent is one entry of the topology change feed.
type ChangeEvent struct {
	Type      ChangeType
	Component string
	At        time.Time
}

// Pipeline is the observed system: a named set of components and edges with
// an uptime clock and a change feed.
type Pipeline struct {
	name    string
	version string
	started time.Time
	logger  *slog.Logger

	mu         sync.RWMutex
	components map[string]*Component
	order      []string
	edges      []Edge

	watchMu   sync.Mutex
	watchers  map[int]chan ChangeEvent
	nextWatch int
}

// New creates an empty pipeline. The uptime clock starts immediately.
func New(name, version string, logger *slog.Logger) *Pipeline {
	if logger == nil {
		logger = slog.Default()
	}
	return &Pipeline{
		name:       name,
		version:    version,
		started:    time.Now().UTC(),
		logger:     logger.With("component", "pipeline"),
		components: make(map[string]*Component),
		watchers:   make(map[int]chan ChangeEvent),
	}
}

// Name returns the pipeline's name.
func (p *Pipeline) Name() string { return p.name }

// Version returns the host-supplied version string, possibly empty.
func (p *Pipeline) Version() string { return p.version }

// StartedAt returns when the pipeline came up.
func (p *Pipeline) StartedAt() time.Time { return p.started }

// Uptime returns how long the pipeline has been up.
func (p *Pipeline) Uptime() time.Duration { return time.Since(p.started) }

// AddComponent registers a new component. Names are unique.
func (p *Pipeline) AddComponent(name string, kind Kind) (*Component, error) {
	p.mu.Lock()
	if _, exists := p.components[name]; exists {
		p.mu.Unlock()
		return nil, errors.WrapInvalid(errors.ErrDuplicateType, "Pipeline", "AddComponent",
			fmt.Sprintf("component %q", name))
	}
	c := &Component{
		name: name,
		kind: kind,
		health: HealthStatus{
			State: StateHealthy,
			Since: time.Now().UTC(),
		},
	}
	p.components[name] = c
	p.order = append(p.order, name)
	p.mu.Unlock()

	p.notify(ChangeEvent{Type: ChangeComponentAdded, Component: name, At: time.Now().UTC()})
	return c, nil
}

// Connect adds a directed edge. Both endpoints must be registered.
func (p *Pipeline) Connect(from, to string) error {
	p.mu.Lock()
	if _, ok := p.components[from]; !ok {
		p.mu.Unlock()
		return errors.WrapInvalid(errors.ErrTypeNotFound, "Pipeline", "Connect",
			fmt.Sprintf("source component %q", from))
	}
	if _, ok := p.components[to]; !ok {
		p.mu.Unlock()
		return errors.WrapInvalid(errors.ErrTypeNotFound, "Pipeline", "Connect",
			fmt.Sprintf("target component %q", to))
	}
	p.edges = append(p.edges, Edge{From: from, To: to})
	p.mu.Unlock()

	p.notify(ChangeEvent{Type: ChangeEdgeAdded, Component: from, At: time.Now().UTC()})
	return nil
}

// Component returns the named component, or nil.
func (p *Pipeline) Component(name string) *Component {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.components[name]
}

// Components returns components in registration order, optionally filtered
// by kind, capped at limit (0 means no cap).
func (p *Pipeline) Components(kind Kind, limit int) []*Component {
	p.mu.RLock()
	defer p.mu.RUnlock()

	out := make([]*Component, 0, len(p.order))
	for _, name := range p.order {
		c := p.components[name]
		if kind != "" && c.kind != kind {
			continue
		}
		out = append(out, c)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out
}

// Edges returns a copy of the edge list.
func (p *Pipeline) Edges() []Edge {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return append([]Edge(nil), p.edges...)
}

// SetHealth transitions a component's health and feeds the change stream.
func (p *Pipeline) SetHealth(name string, state HealthState, message string) error {
	c := p.Component(name)
	if c == nil {
		return errors.WrapInvalid(errors.ErrTypeNotFound, "Pipeline", "SetHealth",
			fmt.Sprintf("component %q", name))
	}

	c.mu.Lock()
	changed := c.health.State != state || c.health.Message != message
	if changed {
		c.health = HealthStatus{State: state, Message: message, Since: time.Now().UTC()}
	}
	c.mu.Unlock()

	if changed {
		p.logger.Info("component health changed", "name", name, "state", string(state), "message", message)
		p.notify(ChangeEvent{Type: ChangeHealthChanged, Component: name, At: time.Now().UTC()})
	}
	return nil
}

// Pause marks a component paused. Returns the component for the mutation
// response; pausing an already paused component is a no-op.
func (p *Pipeline) Pause(name string) (*Component, error) {
	c := p.Component(name)
	if c == nil {
		return nil, errors.WrapInvalid(errors.ErrTypeNotFound, "Pipeline", "Pause",
			fmt.Sprintf("component %q", name))
	}
	if c.paused.CompareAndSwap(false, true) {
		p.logger.Info("component paused", "name", name)
		p.notify(ChangeEvent{Type: ChangeComponentPaused, Component: name, At: time.Now().UTC()})
	}
	return c, nil
}

// Resume clears a component's paused flag.
func (p *Pipeline) Resume(name string) (*Component, error) {
	c := p.Component(name)
	if c == nil {
		return nil, errors.WrapInvalid(errors.ErrTypeNotFound, "Pipeline", "Resume",
			fmt.Sprintf("component %q", name))
	}
	if c.paused.CompareAndSwap(true, false) {
		p.logger.Info("component resumed", "name", name)
		p.notify(ChangeEvent{Type: ChangeComponentResumed, Component: name, At: time.Now().UTC()})
	}
	return c, nil
}

// Health aggregates component health: the worst individual state wins, and
// the message names the worst offender.
func (p *Pipeline) Health() HealthStatus {
	p.mu.RLock()
	defer p.mu.RUnlock()

	agg := HealthStatus{State: StateHealthy, Since: p.started}
	for _, name := range p.order {
		h := p.components[name].Health()
		if h.State.rank() > agg.State.rank() {
			agg = HealthStatus{
				State:   h.State,
				Message: fmt.Sprintf("%s: %s", name, h.Message),
				Since:   h.Since,
			}
		}
	}
	return agg
}

// Watch subscribes to the change feed. The returned cancel must be called;
// events are dropped rather than block the pipeline when the subscriber
// falls behind its buffer.
func (p *Pipeline) Watch(buf int) (<-chan ChangeEvent, func()) {
	if buf < 1 {
		buf = 16
	}
	ch := make(chan ChangeEvent, buf)

	p.watchMu.Lock()
	id := p.nextWatch
	p.nextWatch++
	p.watchers[id] = ch
	p.watchMu.Unlock()

	cancel := func() {
		p.watchMu.Lock()
		if existing, ok := p.watchers[id]; ok {
			delete(p.watchers, id)
			close(existing)
		}
		p.watchMu.Unlock()
	}
	return ch, cancel
}

func (p *Pipeline) notify(ev ChangeEvent) {
	p.watchMu.Lock()
	defer p.watchMu.Unlock()
	for _, ch := range p.watchers {
		select {
		case ch <- ev:
		default:
			// Slow watcher; the event is dropped for this subscriber only.
		}
	}
}
