package jobs

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestRunner_ExecutesSubmittedJobs(t *testing.T) {
	r := NewRunner(Config{MaxWorkers: 4, QueueSize: 16}, zap.NewNop())
	defer r.Close()

	var ran atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		require.NoError(t, r.Submit(func(ctx context.Context) {
			defer wg.Done()
			ran.Add(1)
		}))
	}
	wg.Wait()

	assert.Equal(t, int32(10), ran.Load())
	stats := r.Stats()
	assert.Equal(t, int64(10), stats.Submitted)
}

func TestRunner_SubmitAfterClose(t *testing.T) {
	r := NewRunner(Config{}, zap.NewNop())
	r.Close()

	err := r.Submit(func(ctx context.Context) {})
	assert.ErrorIs(t, err, ErrRunnerClosed)
}

func TestRunner_RejectsWhenSaturated(t *testing.T) {
	r := NewRunner(Config{MaxWorkers: 1, QueueSize: 1}, zap.NewNop())
	defer r.Close()

	block := make(chan struct{})
	done := make(chan struct{})
	require.NoError(t, r.Submit(func(ctx context.Context) {
		<-block
		close(done)
	}))

	// Wait for the worker to pick up the blocking job, then fill the queue.
	require.Eventually(t, func() bool { return r.Stats().Active == 1 }, time.Second, time.Millisecond)
	require.NoError(t, r.Submit(func(ctx context.Context) {}))

	err := r.Submit(func(ctx context.Context) {})
	assert.ErrorIs(t, err, ErrRunnerFull)
	assert.Equal(t, int64(1), r.Stats().Rejected)

	close(block)
	<-done
}

func TestRunner_SurvivesPanickingJob(t *testing.T) {
	r := NewRunner(Config{MaxWorkers: 1, QueueSize: 4}, zap.NewNop())
	defer r.Close()

	var wg sync.WaitGroup
	wg.Add(1)
	require.NoError(t, r.Submit(func(ctx context.Context) {
		defer wg.Done()
		panic("job bug")
	}))
	wg.Wait()

	var ranAfter atomic.Bool
	var after sync.WaitGroup
	after.Add(1)
	require.NoError(t, r.Submit(func(ctx context.Context) {
		defer after.Done()
		ranAfter.Store(true)
	}))
	after.Wait()

	assert.True(t, ranAfter.Load(), "runner keeps working after a panic")
	assert.Equal(t, int64(1), r.Stats().Panicked)
}

func TestRunner_JobContextOutlivesSubmitter(t *testing.T) {
	r := NewRunner(Config{MaxWorkers: 2, QueueSize: 4}, zap.NewNop())
	defer r.Close()

	got := make(chan error, 1)
	require.NoError(t, r.Submit(func(ctx context.Context) {
		got <- ctx.Err()
	}))

	select {
	case err := <-got:
		assert.NoError(t, err, "job context must not carry the request's cancellation")
	case <-time.After(time.Second):
		t.Fatal("job did not run")
	}
}

func TestRunner_CloseWaitsForRunningJobs(t *testing.T) {
	r := NewRunner(Config{MaxWorkers: 2, QueueSize: 4}, zap.NewNop())

	var finished atomic.Bool
	require.NoError(t, r.Submit(func(ctx context.Context) {
		time.Sleep(50 * time.Millisecond)
		finished.Store(true)
	}))

	r.Close()
	assert.True(t, finished.Load(), "Close returns only after running jobs finish")
}

func TestRunner_ConcurrentSubmitAndClose(t *testing.T) {
	r := NewRunner(Config{MaxWorkers: 4, QueueSize: 64}, zap.NewNop())

	start := make(chan struct{})
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			for j := 0; j < 50; j++ {
				switch err := r.Submit(func(ctx context.Context) {}); err {
				case nil, ErrRunnerFull:
				case ErrRunnerClosed:
					return
				default:
					assert.Fail(t, "unexpected submit error", "%v", err)
					return
				}
			}
		}()
	}

	wg.Add(1)
	go func() {
		defer wg.Done()
		<-start
		r.Close()
	}()

	close(start)
	wg.Wait()

	assert.ErrorIs(t, r.Submit(func(ctx context.Context) {}), ErrRunnerClosed)
}
