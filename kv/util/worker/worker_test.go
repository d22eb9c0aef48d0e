package worker

import (
	"context"
	"sync"
	"testing"

	"github.com/pingcap/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/atomic"
)

func TestPoolRunsEveryTask(t *testing.T) {
	var sum atomic.Int64
	p := NewPool("test", 4)
	p.Start(context.Background(), TaskHandlerFunc(func(_ context.Context, t Task) error {
		sum.Add(int64(t.(int)))
		return nil
	}))
	for i := 1; i <= 1000; i++ {
		require.NoError(t, p.Submit(i))
	}
	p.Stop()
	require.NoError(t, p.Wait())
	assert.Equal(t, int64(500500), sum.Load())
}

func TestPoolBoundsConcurrency(t *testing.T) {
	var mu sync.Mutex
	running, peak := 0, 0
	release := make(chan struct{})
	p := NewPool("test", 3)
	p.Start(context.Background(), TaskHandlerFunc(func(context.Context, Task) error {
		mu.Lock()
		running++
		if running > peak {
			peak = running
		}
		mu.Unlock()
		<-release
		mu.Lock()
		running--
		mu.Unlock()
		return nil
	}))
	for i := 0; i < 10; i++ {
		require.NoError(t, p.Submit(i))
	}
	close(release)
	p.Stop()
	require.NoError(t, p.Wait())
	assert.True(t, peak <= 3)
}

func TestPoolStopsOnError(t *testing.T) {
	boom := errors.New("boom")
	p := NewPool("test", 2)
	p.Start(context.Background(), TaskHandlerFunc(func(_ context.Context, t Task) error {
		if t.(int) == 3 {
			return boom
		}
		return nil
	}))
	var submitErr error
	for i := 0; i < 10000 && submitErr == nil; i++ {
		submitErr = p.Submit(i)
	}
	assert.Error(t, submitErr)
	assert.Equal(t, boom, p.Wait())
	assert.Error(t, p.Context().Err())
}

func TestPoolCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	p := NewPool("test", 2)
	p.Start(ctx, TaskHandlerFunc(func(ctx context.Context, _ Task) error {
		<-ctx.Done()
		return nil
	}))
	require.NoError(t, p.Submit(1))
	cancel()
	assert.NoError(t, p.Wait())
	assert.Error(t, p.Submit(2))
}
