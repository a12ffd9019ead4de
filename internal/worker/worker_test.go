package worker

import (
	"context"
	"runtime"
	"sync/atomic"
	"testing"
	"time"

	"github.com/go-kit/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewManager_Strategies(t *testing.T) {
	testCases := []struct {
		name         string
		strategy     string
		expectedType interface{}
	}{
		{"pool", "pool", &PoolStrategy{}},
		{"all", "all", &AllStrategy{}},
		{"unknown falls back to pool", "bogus", &PoolStrategy{}},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			manager, err := NewManager(tc.strategy, log.NewNopLogger(), 1, 1, time.Second)
			require.NoError(t, err)
			defer manager.Shutdown(time.Second)

			assert.IsType(t, tc.expectedType, manager.strategy)
		})
	}
}

func TestManager_SubmitRunsJob(t *testing.T) {
	for _, strategy := range []string{"pool", "all"} {
		t.Run(strategy, func(t *testing.T) {
			manager, err := NewManager(strategy, log.NewNopLogger(), 1, 10, time.Second)
			require.NoError(t, err)
			defer manager.Shutdown(time.Second)

			done := make(chan struct{})
			require.True(t, manager.Submit(func(ctx context.Context) { close(done) }))

			select {
			case <-done:
			case <-time.After(time.Second):
				t.Fatal("job did not run")
			}
		})
	}
}

func TestManager_ShutdownWaitsForJobs(t *testing.T) {
	manager, err := NewManager("pool", log.NewNopLogger(), 1, 1, 5*time.Second)
	require.NoError(t, err)

	var finished atomic.Bool
	manager.Submit(func(ctx context.Context) {
		time.Sleep(50 * time.Millisecond)
		finished.Store(true)
	})

	require.NoError(t, manager.Shutdown(time.Second))
	assert.True(t, finished.Load())
}

func TestManager_ShutdownTimeout(t *testing.T) {
	manager, err := NewManager("pool", log.NewNopLogger(), 1, 1, 5*time.Second)
	require.NoError(t, err)

	manager.Submit(func(ctx context.Context) {
		time.Sleep(200 * time.Millisecond)
	})

	err = manager.Shutdown(50 * time.Millisecond)
	assert.ErrorIs(t, err, ErrShutdownTimeout)
}

func TestManager_SubmitAfterShutdown(t *testing.T) {
	for _, strategy := range []string{"pool", "all"} {
		t.Run(strategy, func(t *testing.T) {
			manager, err := NewManager(strategy, log.NewNopLogger(), 1, 1, time.Second)
			require.NoError(t, err)
			require.NoError(t, manager.Shutdown(time.Second))

			assert.False(t, manager.Submit(func(ctx context.Context) {}))
			assert.NoError(t, manager.Shutdown(time.Second), "second shutdown is a no-op")
		})
	}
}

func TestManager_JobTimeoutCancelsContext(t *testing.T) {
	manager, err := NewManager("pool", log.NewNopLogger(), 1, 1, 10*time.Millisecond)
	require.NoError(t, err)
	defer manager.Shutdown(time.Second)

	canceled := make(chan struct{})
	manager.Submit(func(ctx context.Context) {
		select {
		case <-time.After(time.Second):
		case <-ctx.Done():
			close(canceled)
		}
	})

	select {
	case <-canceled:
	case <-time.After(500 * time.Millisecond):
		t.Fatal("job context was not canceled")
	}
}

func TestPoolStrategy_DropsWhenQueueFull(t *testing.T) {
	manager, err := NewManager("pool", log.NewNopLogger(), 1, 1, time.Second)
	require.NoError(t, err)
	defer manager.Shutdown(time.Second)

	started := make(chan struct{})
	release := make(chan struct{})
	require.True(t, manager.Submit(func(ctx context.Context) {
		close(started)
		<-release
	}))
	<-started

	assert.True(t, manager.Submit(func(ctx context.Context) {}), "fills the queue")
	assert.False(t, manager.Submit(func(ctx context.Context) {}), "queue is full")
	close(release)
}

func TestPoolStrategy_ShutdownDrainsQueue(t *testing.T) {
	manager, err := NewManager("pool", log.NewNopLogger(), 2, 4, time.Second)
	require.NoError(t, err)

	var ran atomic.Int32
	var accepted int32
	for i := 0; i < 6; i++ {
		if manager.Submit(func(ctx context.Context) { ran.Add(1) }) {
			accepted++
		}
		runtime.Gosched()
	}

	require.NoError(t, manager.Shutdown(time.Second))
	assert.Equal(t, accepted, ran.Load())
}
