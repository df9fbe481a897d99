package pipeline

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// The first tick arrives after one full interval, never immediately.
func TestIntervalSourceFirstEmissionWaits(t *testing.T) {
	interval := 50 * time.Millisecond
	src := NewIntervalSource(interval, func(seq uint64, at time.Time) any {
		return seq
	})
	defer func() { require.NoError(t, src.Close()) }()

	start := time.Now()
	v, err := src.Next(context.Background())
	require.NoError(t, err)

	assert.Equal(t, uint64(1), v)
	assert.GreaterOrEqual(t, time.Since(start), interval-5*time.Millisecond)
}

func TestIntervalSourceSequence(t *testing.T) {
	src := NewIntervalSource(5*time.Millisecond, func(seq uint64, at time.Time) any {
		return map[string]any{"seq": seq, "at": at}
	})
	defer func() { require.NoError(t, src.Close()) }()

	var last time.Time
	for want := uint64(1); want <= 3; want++ {
		v, err := src.Next(context.Background())
		require.NoError(t, err)
		m := v.(map[string]any)
		assert.Equal(t, want, m["seq"])

		at := m["at"].(time.Time)
		assert.True(t, at.After(last) || at.Equal(last), "tick timestamps are monotonic")
		last = at
	}
}

func TestIntervalSourceCancellation(t *testing.T) {
	src := NewIntervalSource(time.Hour, func(seq uint64, at time.Time) any { return seq })
	defer func() { require.NoError(t, src.Close()) }()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := src.Next(ctx)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestNATSSourceRequiresConnection(t *testing.T) {
	_, err := NewNATSSource(nil, "pipeline.events.>", 0)
	require.Error(t, err)
}

func TestWatchSourceStreamsChanges(t *testing.T) {
	p := New("ingest", "", nil)
	src := NewWatchSource(p, 16)

	_, err := p.AddComponent("udp-in", KindInput)
	require.NoError(t, err)

	v, err := src.Next(context.Background())
	require.NoError(t, err)
	ev := v.(ChangeEvent)
	assert.Equal(t, ChangeComponentAdded, ev.Type)
	assert.Equal(t, "udp-in", ev.Component)

	// Closing the source unsubscribes; its own channel closes and a
	// subsequent Next reports graceful end of stream.
	require.NoError(t, src.Close())
	_, err = src.Next(context.Background())
	assert.ErrorIs(t, err, io.EOF)
}
