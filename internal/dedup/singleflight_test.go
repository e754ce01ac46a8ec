package dedup

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDoCoalescesConcurrentCallers(t *testing.T) {
	sf := NewSingleflight(time.Minute)
	defer sf.Close()

	var runs int32
	release := make(chan struct{})
	started := make(chan struct{})

	fn := func(ctx context.Context) (interface{}, error) {
		if atomic.AddInt32(&runs, 1) == 1 {
			close(started)
		}
		<-release
		return "result", nil
	}

	results := make([]Result, 5)
	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		results[0] = sf.Do(context.Background(), "k", fn)
	}()
	<-started

	for i := 1; i < len(results); i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i] = sf.Do(context.Background(), "k", fn)
		}(i)
	}

	require.Eventually(t, func() bool {
		return sf.Stats()["waiting_callers"].(int) == 4
	}, time.Second, 5*time.Millisecond)
	close(release)
	wg.Wait()

	assert.Equal(t, int32(1), atomic.LoadInt32(&runs))
	shared := 0
	for _, r := range results {
		require.NoError(t, r.Err)
		assert.Equal(t, "result", r.Val)
		if r.Shared {
			shared++
		}
	}
	assert.Equal(t, 4, shared)
	assert.Equal(t, 0, sf.InFlight())
}

func TestDoRunsAgainAfterCompletion(t *testing.T) {
	sf := NewSingleflight(time.Minute)
	defer sf.Close()

	var runs int32
	fn := func(ctx context.Context) (interface{}, error) {
		atomic.AddInt32(&runs, 1)
		return nil, errors.New("boom")
	}

	r1 := sf.Do(context.Background(), "k", fn)
	r2 := sf.Do(context.Background(), "k", fn)

	assert.EqualError(t, r1.Err, "boom")
	assert.EqualError(t, r2.Err, "boom")
	assert.Equal(t, int32(2), runs)
}

func TestCancelledWaiterDoesNotCancelWork(t *testing.T) {
	sf := NewSingleflight(time.Minute)
	defer sf.Close()

	release := make(chan struct{})
	var workErr atomic.Value

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan Result)
	go func() {
		done <- sf.Do(ctx, "k", func(ctx context.Context) (interface{}, error) {
			<-release
			workErr.Store(ctx.Err() == nil)
			return 1, nil
		})
	}()

	require.Eventually(t, func() bool { return sf.InFlight() == 1 }, time.Second, 5*time.Millisecond)
	cancel()
	r := <-done
	assert.ErrorIs(t, r.Err, context.Canceled)

	close(release)
	require.Eventually(t, func() bool { return sf.InFlight() == 0 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, true, workErr.Load())
}
