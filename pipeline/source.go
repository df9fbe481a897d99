package pipeline

import (
	"context"
	"io"
	"time"

	"github.com/songlinshu/vector/schema"
)

// IntervalSource emits one value per tick. The first emission comes after
// one full interval, never immediately, so N emissions span roughly
// N*interval from subscription start.
type IntervalSource struct {
	ticker *time.Ticker
	build  func(seq uint64, at time.Time) any
	seq    uint64
}

var _ schema.EventSource = (*IntervalSource)(nil)

// NewIntervalSource creates a timer source; build produces each emission from
// a 1-based sequence number and the tick time.
func NewIntervalSource(interval time.Duration, build func(seq uint64, at time.Time) any) *IntervalSource {
	return &IntervalSource{
		ticker: time.NewTicker(interval),
		build:  build,
	}
}

// Next blocks until the next tick or cancellation.
func (s *IntervalSource) Next(ctx context.Context) (any, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case at := <-s.ticker.C:
		s.seq++
		return s.build(s.seq, at.UTC()), nil
	}
}

// Close stops the underlying ticker.
func (s *IntervalSource) Close() error {
	s.ticker.Stop()
	return nil
}

// WatchSource adapts a pipeline change feed to an event source. A closed
// feed completes the stream gracefully.
type WatchSource struct {
	ch     <-chan ChangeEvent
	cancel func()
}

var _ schema.EventSource = (*WatchSource)(nil)

// NewWatchSource subscribes to the pipeline's change feed.
func NewWatchSource(p *Pipeline, buf int) *WatchSource {
	ch, cancel := p.Watch(buf)
	return &WatchSource{ch: ch, cancel: cancel}
}

// Next blocks until the next change event or cancellation.
func (s *WatchSource) Next(ctx context.Context) (any, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case ev, ok := <-s.ch:
		if !ok {
			return nil, io.EOF
		}
		return ev, nil
	}
}

// Close unsubscribes from the change feed.
func (s *WatchSource) Close() error {
	s.cancel()
	return nil
}
