package queue

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSerialRunsInOrder(t *testing.T) {
	q := New(8)
	defer q.Close(context.Background())

	var mu sync.Mutex
	var order []int
	var wg sync.WaitGroup
	wg.Add(5)

	for i := 0; i < 5; i++ {
		i := i
		require.NoError(t, q.Submit(func() {
			mu.Lock()
			order = append(order, i)
			mu.Unlock()
			wg.Done()
		}))
	}

	wg.Wait()
	assert.Equal(t, []int{0, 1, 2, 3, 4}, order)
}

func TestSerialCloseRejectsSubmit(t *testing.T) {
	q := New(1)
	require.NoError(t, q.Close(context.Background()))
	assert.ErrorIs(t, q.Submit(func() {}), ErrClosed)
}

func TestSerialCloseTimesOutOnSlowWork(t *testing.T) {
	q := New(1)
	release := make(chan struct{})
	require.NoError(t, q.Submit(func() { <-release }))

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, q.Close(ctx), context.DeadlineExceeded)
	close(release)
}

func TestDepthGaugeReportsBacklog(t *testing.T) {
	var mu sync.Mutex
	var peak int
	q := New(8, WithDepthGauge(func(d int) {
		mu.Lock()
		if d > peak {
			peak = d
		}
		mu.Unlock()
	}))
	defer q.Close(context.Background())

	block := make(chan struct{})
	require.NoError(t, q.Submit(func() { <-block }))
	require.NoError(t, q.Submit(func() {}))
	require.NoError(t, q.Submit(func() {}))

	close(block)
	time.Sleep(20 * time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	// The first item blocks the worker, so the second Submit reports at
	// least one item still waiting.
	assert.GreaterOrEqual(t, peak, 1)
}
