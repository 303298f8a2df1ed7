package loop

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestLoop(t *testing.T) *Loop {
	t.Helper()
	l, err := New(WithName(t.Name()))
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = l.Shutdown(context.Background())
	})
	return l
}

func TestLoop_CreatedIdle(t *testing.T) {
	l, err := New()
	require.NoError(t, err)
	defer l.Shutdown(context.Background())
	assert.Equal(t, StateIdle, l.State())
}

func TestLoop_ExecuteRunsOnWorker(t *testing.T) {
	l := newTestLoop(t)

	var ran atomic.Bool
	var onLoop atomic.Bool
	tok := l.Execute(func() {
		ran.Store(true)
		onLoop.Store(l.InEventLoop())
	})

	_, err := tok.Await(context.Background())
	require.NoError(t, err)
	assert.True(t, ran.Load())
	assert.True(t, onLoop.Load())
	assert.False(t, l.InEventLoop(), "calling goroutine is not the worker")
}

func TestLoop_ExecuteOrderingFIFO(t *testing.T) {
	l := newTestLoop(t)

	var mu sync.Mutex
	var order []int
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		i := i
		wg.Add(1)
		l.Execute(func() {
			mu.Lock()
			order = append(order, i)
			mu.Unlock()
			wg.Done()
		})
	}
	wg.Wait()

	for i := 1; i < len(order); i++ {
		assert.Less(t, order[i-1], order[i], "tasks submitted from one goroutine must run FIFO")
	}
}

func TestLoop_ExecuteAfterShutdownRejected(t *testing.T) {
	l, err := New()
	require.NoError(t, err)
	require.NoError(t, l.Shutdown(context.Background()))

	tok := l.Execute(func() {})
	_, err = tok.Await(context.Background())
	assert.ErrorIs(t, err, ErrRejectedExecution)
}

func TestLoop_ScheduleRespectsMinimumDelay(t *testing.T) {
	l := newTestLoop(t)

	start := time.Now()
	fired := make(chan time.Time, 1)
	l.Schedule(func() {
		fired <- time.Now()
	}, 50*time.Millisecond)

	select {
	case at := <-fired:
		assert.GreaterOrEqual(t, at.Sub(start), 50*time.Millisecond)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for scheduled task")
	}
}

func TestLoop_ScheduleCancelBeforeFire(t *testing.T) {
	l := newTestLoop(t)

	var fired atomic.Bool
	task := l.Schedule(func() { fired.Store(true) }, 200*time.Millisecond)
	task.Cancel()

	err := task.Await(context.Background())
	assert.Error(t, err)

	time.Sleep(300 * time.Millisecond)
	assert.False(t, fired.Load())
}

func TestLoop_ScheduleAtFixedRateFiresExpectedCount(t *testing.T) {
	l := newTestLoop(t)

	var count atomic.Int32
	var mu sync.Mutex
	var gaps []time.Duration
	var last time.Time

	task := l.ScheduleAtFixedRate(func() {
		now := time.Now()
		mu.Lock()
		if !last.IsZero() {
			gaps = append(gaps, now.Sub(last))
		}
		last = now
		mu.Unlock()
		count.Add(1)
	}, 10*time.Millisecond, 100*time.Millisecond)

	time.Sleep(560 * time.Millisecond)
	task.Cancel()
	time.Sleep(20 * time.Millisecond)

	n := count.Load()
	assert.GreaterOrEqual(t, n, int32(5))
	assert.LessOrEqual(t, n, int32(6))

	mu.Lock()
	defer mu.Unlock()
	for _, g := range gaps {
		assert.GreaterOrEqual(t, g, 85*time.Millisecond, "fixed-rate gaps should stay near the period")
	}
}

func TestLoop_ScheduleWithFixedDelayGapFromCompletion(t *testing.T) {
	l := newTestLoop(t)

	var mu sync.Mutex
	var gaps []time.Duration
	var lastEnd time.Time
	var count atomic.Int32

	task := l.ScheduleWithFixedDelay(func() {
		start := time.Now()
		time.Sleep(20 * time.Millisecond) // simulate slow work
		mu.Lock()
		if !lastEnd.IsZero() {
			gaps = append(gaps, start.Sub(lastEnd))
		}
		lastEnd = time.Now()
		mu.Unlock()
		count.Add(1)
	}, 0, 30*time.Millisecond)

	time.Sleep(300 * time.Millisecond)
	task.Cancel()

	mu.Lock()
	defer mu.Unlock()
	for _, g := range gaps {
		assert.GreaterOrEqual(t, g, 25*time.Millisecond)
	}
}

func TestLoop_ShutdownDrainsPendingTasksThenTerminates(t *testing.T) {
	l, err := New()
	require.NoError(t, err)

	var ran [3]atomic.Bool
	l.Execute(func() { ran[0].Store(true) })
	l.Execute(func() { ran[1].Store(true) })
	l.Execute(func() { ran[2].Store(true) })

	require.NoError(t, l.Shutdown(context.Background()))

	assert.True(t, ran[0].Load())
	assert.True(t, ran[1].Load())
	assert.True(t, ran[2].Load())
	assert.True(t, l.IsTerminated())
	assert.Equal(t, 1, l.CleanupCount())
}

func TestLoop_ShutdownTerminatesWithUncancelledFixedRateTask(t *testing.T) {
	l, err := New()
	require.NoError(t, err)

	var count atomic.Int32
	l.ScheduleAtFixedRate(func() { count.Add(1) }, 0, 10*time.Millisecond)
	time.Sleep(25 * time.Millisecond) // let at least one firing happen first

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, l.Shutdown(ctx), "an uncancelled periodic task must not block shutdown")
	assert.True(t, l.IsTerminated())

	fired := count.Load()
	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, fired, count.Load(), "shutdown must stop further firings of the periodic task")
}

func TestLoop_CancelDuringShutdownStillSettles(t *testing.T) {
	l, err := New()
	require.NoError(t, err)

	block := make(chan struct{})
	l.Execute(func() { <-block }) // keeps the worker busy draining
	task := l.Schedule(func() {}, time.Hour)

	go l.Shutdown(context.Background())
	time.Sleep(10 * time.Millisecond) // let the state reach StateShuttingDown
	task.Cancel()
	close(block)

	err = task.Await(context.Background())
	assert.Error(t, err, "Cancel must still reach the worker once shutdown has begun")
	require.True(t, l.AwaitTermination(time.Second))
}

func TestLoop_ShutdownOnNeverStartedLoopTerminatesSynchronously(t *testing.T) {
	l, err := New()
	require.NoError(t, err)
	require.NoError(t, l.Shutdown(context.Background()))
	assert.True(t, l.IsTerminated())
	assert.Equal(t, 1, l.CleanupCount())
}

func TestLoop_ShutdownRespectsContextTimeout(t *testing.T) {
	l, err := New()
	require.NoError(t, err)
	defer l.Shutdown(context.Background())

	block := make(chan struct{})
	l.Execute(func() {
		<-block
	})

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err = l.Shutdown(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	close(block)
}

func TestLoop_AwaitTerminationTimesOut(t *testing.T) {
	l, err := New()
	require.NoError(t, err)

	block := make(chan struct{})
	l.Execute(func() { <-block })
	go l.Shutdown(context.Background())

	assert.False(t, l.AwaitTermination(10*time.Millisecond))
	close(block)
	assert.True(t, l.AwaitTermination(time.Second))
}

func TestLoop_PanicInTaskDoesNotCrashWorker(t *testing.T) {
	l := newTestLoop(t)

	tok := l.Execute(func() {
		panic("boom")
	})
	_, err := tok.Await(context.Background())
	require.NoError(t, err, "the task's own token still settles; the panic is only logged")

	var ran atomic.Bool
	tok2 := l.Execute(func() { ran.Store(true) })
	_, err = tok2.Await(context.Background())
	require.NoError(t, err)
	assert.True(t, ran.Load(), "worker must keep processing after a recovered panic")
}
