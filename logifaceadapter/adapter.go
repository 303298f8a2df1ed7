// Package logifaceadapter bridges loop.Logger to a real logiface-backed
// sink. The teacher repo only ever exercises this integration from its test
// files (coverage_extra_test.go, coverage_phase2_test.go), wiring a minimal
// Event implementation purely to drive coverage; here the same
// Event/EventFactory/Writer wiring is promoted to a production adapter, so
// applications get real structured logging rather than the teacher's
// test-only stub.
package logifaceadapter

import (
	"fmt"

	"github.com/joeycumines/logiface"

	"github.com/corenet-go/reactor/loop"
)

// event is the minimal logiface.Event implementation backing this adapter,
// shaped after the teacher's testEvent: a level plus a flat field map.
type event struct {
	logiface.UnimplementedEvent
	level   logiface.Level
	message string
	err     error
	fields  map[string]any
}

func newEvent(level logiface.Level) *event {
	return &event{level: level, fields: make(map[string]any, 8)}
}

func (e *event) Level() logiface.Level { return e.level }

func (e *event) AddField(key string, val any) {
	e.fields[key] = val
}

func (e *event) AddMessage(msg string) bool {
	e.message = msg
	return true
}

func (e *event) AddError(err error) bool {
	e.err = err
	return true
}

type eventFactory struct{}

func (eventFactory) NewEvent(level logiface.Level) *event { return newEvent(level) }

// Sink receives fully-built events; Write builds the on-wire representation.
// Implementations are expected to be safe for concurrent use, since
// loop.Logger.Log may be called from any goroutine submitting to a Loop.
type Sink interface {
	Write(level loop.Level, message string, err error, fields map[string]any) error
}

type eventWriter struct {
	sink Sink
}

func (w eventWriter) Write(e *event) error {
	return w.sink.Write(fromLogifaceLevel(e.level), e.message, e.err, e.fields)
}

// Adapter implements loop.Logger on top of a logiface.Logger, translating
// loop.LogEntry into logiface field calls.
type Adapter struct {
	logger *logiface.Logger[*event]
	level  loop.Level
}

// New builds an Adapter that forwards every built event to sink via a
// logiface.Logger[*event], constructed the same way the teacher's tests
// construct one (WithEventFactory + WithWriter), except wired for
// production use.
func New(minLevel loop.Level, sink Sink) *Adapter {
	l := logiface.New[*event](
		logiface.WithEventFactory[*event](eventFactory{}),
		logiface.WithWriter[*event](eventWriter{sink: sink}),
	)
	return &Adapter{logger: l, level: minLevel}
}

func toLogifaceLevel(l loop.Level) logiface.Level {
	switch l {
	case loop.LevelDebug:
		return logiface.LevelDebug
	case loop.LevelInfo:
		return logiface.LevelInformational
	case loop.LevelWarn:
		return logiface.LevelWarning
	case loop.LevelError:
		return logiface.LevelError
	default:
		return logiface.LevelInformational
	}
}

func fromLogifaceLevel(l logiface.Level) loop.Level {
	switch {
	case l <= logiface.LevelError:
		return loop.LevelError
	case l <= logiface.LevelWarning:
		return loop.LevelWarn
	case l <= logiface.LevelInformational:
		return loop.LevelInfo
	default:
		return loop.LevelDebug
	}
}

// IsEnabled implements loop.Logger.
func (a *Adapter) IsEnabled(level loop.Level) bool {
	return level >= a.level
}

// Log implements loop.Logger, translating entry's structured context into
// logiface Builder field calls before emitting.
func (a *Adapter) Log(entry loop.LogEntry) {
	if !a.IsEnabled(entry.Level) {
		return
	}
	b := a.logger.Build(toLogifaceLevel(entry.Level))
	if entry.LoopName != "" {
		b = b.Str("loop", entry.LoopName)
	}
	if entry.TaskID != "" {
		b = b.Str("task_id", entry.TaskID)
	}
	if entry.TimerID != "" {
		b = b.Str("timer_id", entry.TimerID)
	}
	if entry.Category != "" {
		b = b.Str("category", string(entry.Category))
	}
	for k, v := range entry.Context {
		b = b.Any(k, v)
	}
	if entry.Err != nil {
		b = b.Err(entry.Err)
	}
	b.Log(entry.Message)
}

// Warnf makes Adapter satisfy misuse.Warner structurally (no import of the
// misuse package is needed), so it can be passed to misuse.SetGlobalWarner.
func (a *Adapter) Warnf(format string, args ...any) {
	a.Log(loop.LogEntry{
		Level:    loop.LevelWarn,
		Category: loop.CategoryMisuse,
		Message:  fmt.Sprintf(format, args...),
	})
}
