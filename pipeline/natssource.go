package pipeline

import (
	"context"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/songlinshu/vector/errors"
	"github.com/songlinshu/vector/schema"
)

// BusMessage is one raw message observed on the pipeline's NATS bus.
type BusMessage struct {
	Subject    string
	Data       string
	ReceivedAt time.Time
}

// NATSSource streams raw bus messages for one subject through a channel
// subscription, decoupling NATS delivery from subscription consumption.
type NATSSource struct {
	sub *nats.Subscription
	ch  chan *nats.Msg
}

var _ schema.EventSource = (*NATSSource)(nil)

// NewNATSSource subscribes to subject on the given connection.
func NewNATSSource(conn *nats.Conn, subject string, buf int) (*NATSSource, error) {
	if conn == nil || !conn.IsConnected() {
		return nil, errors.WrapTransient(errors.ErrConnectionClosed, "NATSSource", "New",
			"pipeline bus not connected")
	}
	if buf < 1 {
		buf = 64
	}

	ch := make(chan *nats.Msg, buf)
	sub, err := conn.ChanSubscribe(subject, ch)
	if err != nil {
		return nil, errors.WrapTransient(err, "NATSSource", "New",
			"subscribe to subject "+subject)
	}
	return &NATSSource{sub: sub, ch: ch}, nil
}

// Next blocks until the next bus message or cancellation.
func (s *NATSSource) Next(ctx context.Context) (any, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case msg, ok := <-s.ch:
		if !ok {
			return nil, errors.WrapTransient(errors.ErrConnectionClosed, "NATSSource", "Next",
				"bus channel closed")
		}
		return &BusMessage{
			Subject:    msg.Subject,
			Data:       string(msg.Data),
			ReceivedAt: time.Now().UTC(),
		}, nil
	}
}

// Close drops the NATS subscription.
func (s *NATSSource) Close() error {
	if err := s.sub.Unsubscribe(); err != nil {
		return errors.WrapTransient(err, "NATSSource", "Close", "unsubscribe")
	}
	return nil
}
