package buffer

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFIFOOrder(t *testing.T) {
	q, err := New[int](4, DropNewest, nil)
	require.NoError(t, err)

	for i := 1; i <= 4; i++ {
		require.NoError(t, q.Push(i))
	}

	for i := 1; i <= 4; i++ {
		v, ok := q.Pop()
		require.True(t, ok)
		assert.Equal(t, i, v)
	}

	_, ok := q.Pop()
	assert.False(t, ok)
}

func TestDropNewestKeepsQueuedItems(t *testing.T) {
	var dropped []int
	q, err := New[int](2, DropNewest, func(v int) { dropped = append(dropped, v) })
	require.NoError(t, err)

	require.NoError(t, q.Push(1))
	require.NoError(t, q.Push(2))
	require.NoError(t, q.Push(3)) // full: 3 is discarded

	assert.Equal(t, []int{3}, dropped)
	assert.Equal(t, uint64(1), q.Dropped())

	v, _ := q.Pop()
	assert.Equal(t, 1, v)
	v, _ = q.Pop()
	assert.Equal(t, 2, v)
}

func TestDropOldestFavorsFreshness(t *testing.T) {
	var dropped []int
	q, err := New[int](2, DropOldest, func(v int) { dropped = append(dropped, v) })
	require.NoError(t, err)

	require.NoError(t, q.Push(1))
	require.NoError(t, q.Push(2))
	require.NoError(t, q.Push(3)) // full: 1 is discarded

	assert.Equal(t, []int{1}, dropped)

	v, _ := q.Pop()
	assert.Equal(t, 2, v)
	v, _ = q.Pop()
	assert.Equal(t, 3, v)
}

func TestBlockPolicyWaitsForConsumer(t *testing.T) {
	q, err := New[int](1, Block, nil)
	require.NoError(t, err)

	require.NoError(t, q.Push(1))

	var wg sync.WaitGroup
	wg.Add(1)
	pushed := make(chan struct{})
	go func() {
		defer wg.Done()
		assert.NoError(t, q.Push(2)) // blocks until Pop
		close(pushed)
	}()

	select {
	case <-pushed:
		t.Fatal("Push returned while queue was full")
	case <-time.After(20 * time.Millisecond):
	}

	v, ok := q.Pop()
	require.True(t, ok)
	assert.Equal(t, 1, v)

	select {
	case <-pushed:
	case <-time.After(time.Second):
		t.Fatal("blocked Push never completed")
	}
	wg.Wait()
}

func TestCloseReleasesBlockedProducer(t *testing.T) {
	q, err := New[int](1, Block, nil)
	require.NoError(t, err)
	require.NoError(t, q.Push(1))

	errCh := make(chan error, 1)
	go func() { errCh <- q.Push(2) }()

	time.Sleep(10 * time.Millisecond)
	q.Close()

	select {
	case err := <-errCh:
		assert.Error(t, err)
	case <-time.After(time.Second):
		t.Fatal("blocked Push not released by Close")
	}

	// Queued items stay readable after Close.
	v, ok := q.Pop()
	require.True(t, ok)
	assert.Equal(t, 1, v)
}

func TestReadyWakesConsumer(t *testing.T) {
	q, err := New[string](4, DropNewest, nil)
	require.NoError(t, err)

	got := make(chan string, 1)
	go func() {
		<-q.Ready()
		v, ok := q.Pop()
		if ok {
			got <- v
		}
	}()

	require.NoError(t, q.Push("hello"))

	select {
	case v := <-got:
		assert.Equal(t, "hello", v)
	case <-time.After(time.Second):
		t.Fatal("consumer was not woken")
	}
}

func TestInvalidCapacity(t *testing.T) {
	_, err := New[int](0, DropNewest, nil)
	assert.Error(t, err)
}

func TestParsePolicy(t *testing.T) {
	tests := []struct {
		in      string
		want    Policy
		wantErr bool
	}{
		{"", DropNewest, false},
		{"drop-newest", DropNewest, false},
		{"drop-oldest", DropOldest, false},
		{"block", Block, false},
		{"latest", DropNewest, true},
	}
	for _, tt := range tests {
		got, err := ParsePolicy(tt.in)
		if tt.wantErr {
			assert.Error(t, err, tt.in)
			continue
		}
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}
}
