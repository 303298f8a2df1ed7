// Package loop implements a single-threaded, cooperative event-loop
// scheduler: task submission, one-shot/fixed-rate/fixed-delay scheduling,
// and graceful shutdown, all executed on exactly one worker goroutine per
// Loop. Cross-goroutine interaction happens only through Execute/Schedule*
// and the futures they return; everything else about a Loop's state is only
// ever touched from its own worker goroutine.
//
// Grounded on the teacher package's (joeycumines/go-eventloop) worker/state
// machine/ingress-queue/timer-heap/wake-pipe shape, retargeted at the
// execute/schedule/scheduleAtFixedRate/scheduleWithFixedDelay/shutdown/
// awaitTermination/inEventLoop contract instead of a JS-compatible
// promise/microtask runtime.
package loop

import (
	"container/heap"
	"context"
	"fmt"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/corenet-go/reactor/future"
	"github.com/corenet-go/reactor/misuse"
)

type waker interface {
	Wake()
	C() <-chan struct{}
	Drain()
	Close() error
}

// Loop is a single-threaded task/timer scheduler. The zero value is not
// usable; construct with New.
type Loop struct {
	opts loopOptions

	state *fastState

	submitMu sync.Mutex
	queue    taskQueue

	timerMu sync.Mutex
	timers  timerHeap

	wake waker

	workerStarted sync.Once
	workerDone    chan struct{}

	// workerGoroutineID is set once, from the worker goroutine itself, the
	// same getGoroutineID-via-runtime.Stack trick the teacher uses to back
	// InEventLoop without a context-value or thread-local.
	workerGoroutineMu sync.RWMutex
	workerGoroutineID int64

	shutdownOnce sync.Once
	shutdownReq  chan struct{}

	cleanupOnce  sync.Once
	cleanupCount int

	misuseHandle *misuse.Handle
	liveness     *struct{}

	started atomic.Bool
}

// New constructs a Loop in the idle state. The worker goroutine is not
// started until the first task is submitted, matching the "created idle"
// data-model requirement.
func New(opts ...Option) (*Loop, error) {
	resolved, err := resolveOptions(opts)
	if err != nil {
		return nil, err
	}

	w, err := newUnixWaker()
	if err != nil {
		return nil, fmt.Errorf("loop: creating wake primitive: %w", err)
	}

	l := &Loop{
		opts:        resolved,
		state:       newFastState(StateIdle),
		wake:        w,
		workerDone:  make(chan struct{}),
		shutdownReq: make(chan struct{}),
		liveness:    new(struct{}),
	}
	l.misuseHandle = misuse.Global.Register(resolved.misuseKey, l.liveness)
	return l, nil
}

// InEventLoop reports whether the calling goroutine is this Loop's worker.
func (l *Loop) InEventLoop() bool {
	l.workerGoroutineMu.RLock()
	defer l.workerGoroutineMu.RUnlock()
	if l.workerGoroutineID == 0 {
		return false
	}
	return l.workerGoroutineID == currentGoroutineID()
}

// State returns the Loop's current lifecycle state.
func (l *Loop) State() State {
	return l.state.Load()
}

// IsShutdown reports whether shutdown has been requested (regardless of
// whether termination has completed).
func (l *Loop) IsShutdown() bool {
	return l.state.IsShutdown()
}

// IsTerminated reports whether the worker has fully exited and cleanup ran.
func (l *Loop) IsTerminated() bool {
	return l.state.IsTerminal()
}

// ensureStarted lazily starts the worker goroutine exactly once, on first
// submission, per the data model's "created idle -> first submission starts
// worker" requirement.
func (l *Loop) ensureStarted() {
	l.workerStarted.Do(func() {
		l.started.Store(true)
		l.state.TryTransition(StateIdle, StateRunning)
		go l.workerMain()
	})
}

// Execute submits fn to run on the loop's worker goroutine. If called from
// within the loop itself, fn still queues rather than running inline,
// guaranteeing FIFO ordering relative to other Execute calls made from the
// same tick. Returns a future.Token settled (with no value) once fn has run,
// or failed with ErrRejectedExecution if submitted after shutdown began.
func (l *Loop) Execute(fn func()) *future.Token[struct{}] {
	tok := future.New[struct{}]()
	if !l.state.CanAcceptWork() {
		tok.Fail(ErrRejectedExecution)
		return tok
	}
	l.ensureStarted()

	wrapped := func() {
		l.safeExecute("task", fn)
		tok.Complete(struct{}{})
	}

	l.submitMu.Lock()
	l.queue.Push(wrapped)
	l.submitMu.Unlock()

	l.wake.Wake()
	return tok
}

// Schedule runs fn once, no earlier than delay from now. Returns a
// *ScheduledTask usable to Cancel before it fires.
func (l *Loop) Schedule(fn func(), delay time.Duration) *ScheduledTask {
	return l.scheduleInternal(fn, delay, 0, false, true)
}

// ScheduleAtFixedRate runs fn repeatedly with firings at
// start+k*period (k=0,1,2,...), catching up (running back-to-back, without
// sleeping) if a firing falls behind rather than skipping it.
func (l *Loop) ScheduleAtFixedRate(fn func(), initialDelay, period time.Duration) *ScheduledTask {
	return l.scheduleInternal(fn, initialDelay, period, false, false)
}

// ScheduleWithFixedDelay runs fn repeatedly, with each next firing scheduled
// `delay` after the previous firing's completion rather than at a fixed
// cadence.
func (l *Loop) ScheduleWithFixedDelay(fn func(), initialDelay, delay time.Duration) *ScheduledTask {
	return l.scheduleInternal(fn, initialDelay, delay, true, false)
}

func (l *Loop) scheduleInternal(fn func(), initialDelay, period time.Duration, fixedDelay, oneShot bool) *ScheduledTask {
	t := &ScheduledTask{
		loop:       l,
		fn:         fn,
		deadline:   time.Now().Add(initialDelay),
		period:     period,
		fixedDelay: fixedDelay,
		oneShot:    oneShot,
	}
	if oneShot {
		t.token = &scheduleToken{done: make(chan struct{})}
	}

	if !l.state.CanAcceptWork() {
		t.cancelled = true
		if t.token != nil {
			t.token.err = ErrRejectedExecution
			close(t.token.done)
		}
		return t
	}
	l.ensureStarted()

	l.Execute(func() {
		l.timerMu.Lock()
		l.timers.add(t)
		l.timerMu.Unlock()
	})
	return t
}

// executeIgnoringShutdown queues fn unconditionally, even once shutdown has
// begun. Execute itself rejects new work once shutdown starts, but
// shutdown-time control operations — chiefly ScheduledTask.Cancel — must
// still reach the worker thread while it is draining, or there would be no
// way to stop a periodic task from a goroutine other than the worker's own.
// Safe to call after the worker has already exited: fn is queued but never
// runs, the same best-effort behavior Execute has for work submitted too
// late.
func (l *Loop) executeIgnoringShutdown(fn func()) {
	l.ensureStarted()
	l.submitMu.Lock()
	l.queue.Push(fn)
	l.submitMu.Unlock()
	l.wake.Wake()
}

// AwaitTermination blocks until the loop reaches StateTerminated or timeout
// elapses, returning true if terminated in time.
func (l *Loop) AwaitTermination(timeout time.Duration) bool {
	if l.IsTerminated() {
		return true
	}
	select {
	case <-l.workerDone:
		return true
	case <-time.After(timeout):
		return l.IsTerminated()
	}
}

// Shutdown requests a graceful stop: no new work is accepted, but everything
// already queued (tasks and due timers) is drained before the loop
// transitions to Terminated. Blocks until termination or ctx is cancelled.
func (l *Loop) Shutdown(ctx context.Context) error {
	l.shutdownOnce.Do(func() {
		l.state.TransitionAny([]State{StateIdle, StateRunning, StateSleeping}, StateShuttingDown)
		close(l.shutdownReq)

		if !l.started.Load() {
			// worker was never started: nothing queued can ever run, so
			// terminate synchronously right here instead of spinning one up
			// just to have it immediately exit.
			l.state.Store(StateTerminated)
			l.runCleanup()
			close(l.workerDone)
			return
		}

		l.wake.Wake()
	})

	select {
	case <-l.workerDone:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (l *Loop) workerMain() {
	l.workerGoroutineMu.Lock()
	l.workerGoroutineID = currentGoroutineID()
	l.workerGoroutineMu.Unlock()

	for {
		tickStart := time.Now()
		didWork := l.runDueTimers()
		didWork = l.drainTaskBatch() || didWork
		if l.opts.tickMetricsHook != nil && didWork {
			l.opts.tickMetricsHook(time.Since(tickStart))
		}

		if l.state.Load() == StateShuttingDown {
			if l.queue.Len() == 0 && len(l.timers) == 0 {
				break
			}
			continue
		}

		if !didWork {
			l.park()
		}
	}

	l.state.Store(StateTerminated)
	l.runCleanup()
	close(l.workerDone)
}

// park puts the worker to sleep until woken by a submission or a timer
// deadline, mirroring the teacher's poll()/calculateTimeout shape without a
// real I/O poller (out of scope for this module; see SPEC_FULL.md §4.E/§1).
func (l *Loop) park() {
	if !l.state.TryTransition(StateRunning, StateSleeping) {
		return
	}

	timeout := l.nextTimeout()

	if timeout <= 0 {
		l.state.TryTransition(StateSleeping, StateRunning)
		return
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-timer.C:
	case <-l.wake.C():
	case <-l.shutdownReq:
	}
	l.wake.Drain()
	l.state.TryTransition(StateSleeping, StateRunning)
}

func (l *Loop) nextTimeout() time.Duration {
	l.timerMu.Lock()
	defer l.timerMu.Unlock()
	if len(l.timers) == 0 {
		return 10 * time.Second
	}
	d := time.Until(l.timers[0].deadline)
	if d < time.Millisecond {
		d = time.Millisecond
	}
	if d > 10*time.Second {
		d = 10 * time.Second
	}
	return d
}

// runDueTimers fires every timer whose deadline has arrived, rescheduling
// periodic tasks per their fixed-rate/fixed-delay semantics. Returns true if
// any timer fired.
func (l *Loop) runDueTimers() bool {
	ran := false
	now := time.Now()
	for {
		l.timerMu.Lock()
		if len(l.timers) == 0 || l.timers[0].deadline.After(now) {
			l.timerMu.Unlock()
			break
		}
		t := heap.Pop(&l.timers).(*ScheduledTask)
		l.timerMu.Unlock()

		if t.cancelled {
			continue
		}

		ran = true
		l.safeExecute("timer", t.fn)

		if t.oneShot {
			if t.token != nil {
				select {
				case <-t.token.done:
				default:
					close(t.token.done)
				}
			}
			continue
		}
		if t.cancelled {
			continue
		}

		if l.state.Load() == StateShuttingDown {
			// Shutdown drains what is already due, but a periodic task has
			// no single completion to wait for; re-arming it here would
			// make len(l.timers)==0 unreachable and shutdown would never
			// complete. Stop it instead, same as an implicit Cancel.
			t.cancelled = true
			continue
		}

		if t.fixedDelay {
			t.deadline = time.Now().Add(t.period)
		} else {
			// fixed rate: advance by exactly one period from the previous
			// deadline. If that is already past, the task is due again on
			// the next pass of this loop, so a slow tick catches up with
			// back-to-back firings and never skips one.
			t.deadline = t.deadline.Add(t.period)
		}
		l.timerMu.Lock()
		l.timers.add(t)
		l.timerMu.Unlock()
	}
	return ran
}

const taskBatchBudget = 1024

// drainTaskBatch pops and runs up to taskBatchBudget queued tasks per tick,
// the same batching the teacher's processExternal uses to bound how long a
// single tick can run before re-checking timers.
func (l *Loop) drainTaskBatch() bool {
	ran := false
	for i := 0; i < taskBatchBudget; i++ {
		l.submitMu.Lock()
		fn, ok := l.queue.Pop()
		l.submitMu.Unlock()
		if !ok {
			break
		}
		ran = true
		fn()
	}
	return ran
}

// safeExecute runs fn with panic recovery, logging recovered panics via the
// configured Logger rather than letting them crash the worker goroutine.
func (l *Loop) safeExecute(category string, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			l.opts.logger.Log(LogEntry{
				Level:     LevelError,
				Category:  CategoryTask,
				LoopName:  l.opts.name,
				Message:   category + " panicked",
				Err:       &PanicError{Value: r},
				Timestamp: time.Now(),
			})
		}
	}()
	fn()
}

// runCleanup invokes teardown exactly once: rejects any still-pending
// one-shot scheduled tasks, releases the misuse-detector registration, and
// closes the wake primitive.
func (l *Loop) runCleanup() {
	l.cleanupOnce.Do(func() {
		l.cleanupCount++

		l.timerMu.Lock()
		pending := make([]*ScheduledTask, len(l.timers))
		copy(pending, l.timers)
		l.timerMu.Unlock()
		for _, t := range pending {
			if t.oneShot && t.token != nil {
				select {
				case <-t.token.done:
				default:
					t.token.err = ErrLoopTerminated
					close(t.token.done)
				}
			}
		}

		if l.misuseHandle != nil {
			l.misuseHandle.Release()
		}
		_ = l.wake.Close()
	})
}

// CleanupCount reports how many times runCleanup has executed (test-only
// visibility into the exactly-once guarantee; always 0 or 1).
func (l *Loop) CleanupCount() int {
	return l.cleanupCount
}

// currentGoroutineID parses the calling goroutine's numeric ID out of
// runtime.Stack, the same technique the teacher's getGoroutineID uses, since
// Go has no first-class goroutine-local storage.
func currentGoroutineID() int64 {
	var buf [64]byte
	n := runtime.Stack(buf[:], false)
	return parseGoroutineID(buf[:n])
}

func parseGoroutineID(b []byte) int64 {
	// expected prefix: "goroutine 123 ["
	const prefix = "goroutine "
	if len(b) < len(prefix) {
		return 0
	}
	b = b[len(prefix):]
	var id int64
	for _, c := range b {
		if c < '0' || c > '9' {
			break
		}
		id = id*10 + int64(c-'0')
	}
	return id
}
