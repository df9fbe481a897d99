// Package subscription runs the streaming half of the engine: long-lived
// operations whose event sources emit values that are resolved per emission
// and delivered in order through a bounded per-subscription queue.
//
// Each accepted subscription gets two goroutines. The producer pulls the
// event source, resolves every emission through the executor, and pushes
// the envelope into the queue; overflow is handled by the configured
// backpressure policy. The deliverer drains the queue into the transport
// sink, so one slow subscriber never stalls production or its siblings.
package subscription

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/songlinshu/vector/engine"
	"github.com/songlinshu/vector/errors"
	"github.com/songlinshu/vector/metric"
	"github.com/songlinshu/vector/pkg/buffer"
)

// Sink delivers subscription traffic to one client. Implementations are the
// transport layer; methods are called from delivery goroutines, one per
// subscription, and must be safe for concurrent use across subscriptions.
type Sink interface {
	// Next delivers one resolved emission envelope.
	Next(id string, env *engine.Envelope) error
	// Error delivers a terminal error envelope. No message follows it.
	Error(id string, env *engine.Envelope) error
	// Complete signals graceful end of the stream. No message follows it.
	Complete(id string) error
}

// Config controls per-subscription queueing.
type Config struct {
	// QueueCapacity bounds the emission queue of each subscription.
	QueueCapacity int `json:"queueCapacity" yaml:"queueCapacity"`
	// QueuePolicy is applied when the queue is full: "drop-newest" (default),
	// "drop-oldest", or "block".
	QueuePolicy string `json:"queuePolicy" yaml:"queuePolicy"`

	policy buffer.Policy
}

// Validate checks the configuration and fills defaults.
func (c *Config) Validate() error {
	if c.QueueCapacity == 0 {
		c.QueueCapacity = 16
	}
	if c.QueueCapacity < 1 {
		return errors.WrapInvalid(errors.ErrInvalidConfig, "Session", "Validate",
			fmt.Sprintf("queue capacity %d", c.QueueCapacity))
	}
	if c.QueuePolicy == "" {
		c.QueuePolicy = buffer.DropNewest.String()
	}
	policy, err := buffer.ParsePolicy(c.QueuePolicy)
	if err != nil {
		return errors.WrapInvalid(err, "Session", "Validate", "queue policy")
	}
	c.policy = policy
	return nil
}

// Session owns every subscription of one client connection. Subscriptions
// are independent: cancelling one leaves the others untouched, and all are
// torn down together when the session closes.
type Session struct {
	exec    *engine.Executor
	sink    Sink
	cfg     Config
	logger  *slog.Logger
	metrics *metric.Metrics

	mu      sync.Mutex
	handles map[string]*Handle
	closed  bool
	wg      sync.WaitGroup
}

// NewSession creates a session delivering through sink. metrics may be nil.
func NewSession(exec *engine.Executor, sink Sink, cfg Config, logger *slog.Logger, metrics *metric.Metrics) (*Session, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Session{
		exec:    exec,
		sink:    sink,
		cfg:     cfg,
		logger:  logger.With("component", "subscription"),
		metrics: metrics,
		handles: make(map[string]*Handle),
	}, nil
}

// Subscribe validates and starts one subscription under the given
// connection-scoped id. A validation failure (bad arguments, not a
// subscription, duplicate id) is returned without creating any handle, so a
// rejected subscription never reaches StateActive.
func (s *Session) Subscribe(ctx context.Context, id string, op *engine.Operation) error {
	fieldDef, astField, args, err := s.exec.SubscriptionField(op)
	if err != nil {
		return err
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return errors.WrapTransient(errors.ErrShuttingDown, "Session", "Subscribe", "accept subscription")
	}
	if _, exists := s.handles[id]; exists {
		s.mu.Unlock()
		return errors.WrapInvalid(errors.ErrDuplicateOperationID, "Session", "Subscribe",
			fmt.Sprintf("operation id %q", id))
	}

	hctx, cancel := context.WithCancel(ctx)
	h := &Handle{
		id:       id,
		op:       op,
		fieldDef: fieldDef,
		astField: astField,
		args:     args,
		cancel:   cancel,
	}
	h.state.Store(int32(StatePending))
	s.handles[id] = h
	s.mu.Unlock()

	source, err := fieldDef.Subscribe(hctx, args)
	if err != nil {
		cancel()
		s.remove(id)
		return errors.Wrap(err, "Session", "Subscribe", "establish event source")
	}
	h.source = source

	queue, err := buffer.New[*engine.Envelope](s.cfg.QueueCapacity, s.cfg.policy, func(*engine.Envelope) {
		if s.metrics != nil {
			s.metrics.EmissionsDropped.WithLabelValues(h.Field(), s.cfg.policy.String()).Inc()
		}
	})
	if err != nil {
		cancel()
		s.remove(id)
		return errors.WrapFatal(err, "Session", "Subscribe", "create emission queue")
	}
	h.queue = queue

	// Cancel may land between registration and activation; the cancelled
	// state is terminal, so a lost race means tearing down instead of
	// starting the pipeline goroutines.
	if !h.state.CompareAndSwap(int32(StatePending), int32(StateActive)) {
		queue.Close()
		if cerr := source.Close(); cerr != nil {
			s.logger.Warn("event source close failed", "id", id, "error", cerr)
		}
		s.remove(id)
		s.logger.Debug("subscription cancelled before activation", "id", id, "field", h.Field())
		return nil
	}
	if s.metrics != nil {
		s.metrics.SubscriptionsTotal.WithLabelValues(h.Field()).Inc()
		s.metrics.SubscriptionsActive.Inc()
	}
	s.logger.Debug("subscription started", "id", id, "field", h.Field())

	s.wg.Add(2)
	go s.produce(hctx, h)
	go s.deliver(hctx, h)
	return nil
}

// Unsubscribe cancels one subscription. Unknown ids are ignored; a client
// unsubscribing twice races its own completion.
func (s *Session) Unsubscribe(id string) {
	s.mu.Lock()
	h := s.handles[id]
	s.mu.Unlock()
	if h != nil {
		h.Cancel()
	}
}

// Handle returns the live handle for id, or nil.
func (s *Session) Handle(id string) *Handle {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.handles[id]
}

// Len returns the number of live subscriptions.
func (s *Session) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.handles)
}

// Close cancels every subscription and waits up to timeout for their
// goroutines to drain.
func (s *Session) Close(timeout time.Duration) error {
	s.mu.Lock()
	s.closed = true
	handles := make([]*Handle, 0, len(s.handles))
	for _, h := range s.handles {
		handles = append(handles, h)
	}
	s.mu.Unlock()

	for _, h := range handles {
		h.Cancel()
	}

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-time.After(timeout):
		return errors.WrapTransient(errors.ErrConnectionTimeout, "Session", "Close",
			"wait for subscription teardown")
	}
}

func (s *Session) remove(id string) {
	s.mu.Lock()
	delete(s.handles, id)
	s.mu.Unlock()
}

// produce pulls the event source until it terminates, resolving each
// emission through the executor and queuing the envelope.
func (s *Session) produce(ctx context.Context, h *Handle) {
	defer s.wg.Done()
	defer h.queue.Close()
	defer func() {
		if err := h.source.Close(); err != nil {
			s.logger.Warn("event source close failed", "id", h.id, "error", err)
		}
	}()

	for {
		value, err := h.source.Next(ctx)
		if err != nil {
			graceful, cancelled := terminal(ctx, err)
			switch {
			case cancelled:
			case graceful:
				h.completed = true
			default:
				h.termErr = err
				s.logger.Warn("event source failed", "id", h.id, "field", h.Field(), "error", err)
			}
			return
		}

		env := s.exec.ResolveEmission(ctx, h.op, h.fieldDef, h.astField, h.args, value)
		if s.metrics != nil {
			s.metrics.EmissionsTotal.WithLabelValues(h.Field()).Inc()
		}
		if err := h.queue.Push(env); err != nil {
			// Queue closed under us: the handle was cancelled.
			return
		}
	}
}

// deliver drains the queue into the sink in emission order, then sends the
// terminal message the producer left behind.
func (s *Session) deliver(ctx context.Context, h *Handle) {
	defer s.wg.Done()
	defer s.finish(h)

	for {
		for {
			env, ok := h.queue.Pop()
			if !ok {
				break
			}
			if h.State() == StateCancelled {
				return
			}
			if err := s.sink.Next(h.id, env); err != nil {
				s.logger.Warn("emission delivery failed", "id", h.id, "error", err)
				h.Cancel()
				return
			}
		}

		if h.queue.Closed() {
			if h.queue.Len() == 0 {
				break
			}
			// Items slipped in between the drain and the close; go around.
			continue
		}
		select {
		case <-ctx.Done():
			return
		case <-h.queue.Ready():
		}
	}

	if h.State() == StateCancelled || ctx.Err() != nil {
		return
	}
	switch {
	case h.termErr != nil:
		if err := s.sink.Error(h.id, engine.ErrorEnvelope(h.termErr)); err != nil {
			s.logger.Warn("terminal error delivery failed", "id", h.id, "error", err)
		}
	case h.completed:
		if err := s.sink.Complete(h.id); err != nil {
			s.logger.Warn("completion delivery failed", "id", h.id, "error", err)
		}
	}
}

// finish retires the handle once delivery ends, whatever the path. Closing
// the queue here unblocks a producer parked in Push under the block policy;
// Close is idempotent, so the producer's own deferred close stays safe.
func (s *Session) finish(h *Handle) {
	h.Cancel()
	h.queue.Close()
	s.remove(h.id)
	if s.metrics != nil {
		s.metrics.SubscriptionsActive.Dec()
	}
	s.logger.Debug("subscription finished", "id", h.id, "field", h.Field(),
		"dropped", h.queue.Dropped())
}
