// Package loop is Component A of the reactor module: the single-threaded
// event-loop scheduler every Channel is bound to.
//
// A Loop starts idle; its worker goroutine is lazily started by the first
// call to Execute, Schedule, ScheduleAtFixedRate, or ScheduleWithFixedDelay.
// All four return a value for observing completion (future.Token or
// *ScheduledTask) rather than blocking the caller, since submissions are
// expected from arbitrary goroutines while only the worker itself ever
// touches loop-owned state.
//
// Shutdown is graceful: once requested, no further work is accepted, but
// anything already queued — including due timers — runs to completion
// before the loop reports Terminated.
package loop
