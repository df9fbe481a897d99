package subscription

import (
	"context"
	"io"
	"sync/atomic"

	"github.com/vektah/gqlparser/v2/ast"

	"github.com/songlinshu/vector/engine"
	"github.com/songlinshu/vector/pkg/buffer"
	"github.com/songlinshu/vector/schema"
)

// State is the lifecycle position of one subscription.
type State int32

const (
	// StatePending means the subscription is accepted but its event source
	// is not yet established.
	StatePending State = iota
	// StateActive means the source is established and emissions flow.
	StateActive
	// StateCancelled is terminal: no further emission will be delivered.
	StateCancelled
)

// String returns the string representation of State.
func (s State) String() string {
	switch s {
	case StatePending:
		return "pending"
	case StateActive:
		return "active"
	case StateCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// Handle is one live subscription: the retained operation, its established
// event source, and the bounded queue decoupling production from delivery.
type Handle struct {
	id string

	op       *engine.Operation
	fieldDef *schema.Field
	astField *ast.Field
	args     map[string]any

	source schema.EventSource
	queue  *buffer.Queue[*engine.Envelope]
	cancel context.CancelFunc
	state  atomic.Int32

	// termErr and completed are written by the producer before it closes
	// the queue and read by the deliverer after the queue reports closed;
	// the queue's internal lock orders the two sides. termErr selects the
	// Error terminal, completed the Complete terminal; neither is set when
	// the subscription was cancelled.
	termErr   error
	completed bool
}

// ID returns the connection-scoped operation id.
func (h *Handle) ID() string { return h.id }

// Field returns the subscribed root field name.
func (h *Handle) Field() string { return h.fieldDef.Name }

// State returns the handle's current lifecycle state.
func (h *Handle) State() State { return State(h.state.Load()) }

// Cancel moves the handle to StateCancelled and stops both of its loops.
// Emissions already queued are discarded; none produced after the call is
// delivered. Idempotent.
func (h *Handle) Cancel() {
	if h.state.Swap(int32(StateCancelled)) == int32(StateCancelled) {
		return
	}
	h.cancel()
}

// Dropped returns the number of emissions discarded by backpressure.
func (h *Handle) Dropped() uint64 { return h.queue.Dropped() }

// terminal classifies a producer-side error from EventSource.Next.
// io.EOF is graceful completion; context cancellation means the handle was
// cancelled and needs no terminal message.
func terminal(ctx context.Context, err error) (graceful, cancelled bool) {
	if ctx.Err() != nil {
		return false, true
	}
	if err == io.EOF {
		return true, false
	}
	return false, false
}
