package loop

import (
	"fmt"
	"time"
)

// Level mirrors the teacher's LogLevel enum.
type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
)

func (l Level) String() string {
	switch l {
	case LevelDebug:
		return "debug"
	case LevelInfo:
		return "info"
	case LevelWarn:
		return "warn"
	case LevelError:
		return "error"
	default:
		return "unknown"
	}
}

// Category labels which subsystem produced a LogEntry, for filtering.
type Category string

const (
	CategoryWorker    Category = "worker"
	CategoryTask      Category = "task"
	CategoryTimer     Category = "timer"
	CategoryShutdown  Category = "shutdown"
	CategoryMisuse    Category = "misuse"
	CategoryChannel   Category = "channel"
	CategoryPipeline  Category = "pipeline"
	CategoryCodec     Category = "codec"
)

// LogEntry is the structured record passed to Logger.Log, matching the
// teacher's logging.go field-for-field (LoopID/TaskID/TimerID generalized to
// strings since this module's IDs are not globally unique integers the way
// the teacher's are).
type LogEntry struct {
	Level     Level
	Category  Category
	LoopName  string
	TaskID    string
	TimerID   string
	Context   map[string]any
	Message   string
	Err       error
	Timestamp time.Time
}

// Logger is the sink for structured log entries. Satisfied by noopLogger by
// default, or by a real backend such as logifaceadapter.Adapter.
type Logger interface {
	Log(entry LogEntry)
	IsEnabled(level Level) bool
}

type loggerWarner struct {
	l        Logger
	category Category
	loopName string
}

func (w loggerWarner) Warnf(format string, args ...any) {
	if !w.l.IsEnabled(LevelWarn) {
		return
	}
	w.l.Log(LogEntry{
		Level:     LevelWarn,
		Category:  w.category,
		LoopName:  w.loopName,
		Message:   fmt.Sprintf(format, args...),
		Timestamp: time.Now(),
	})
}

type noopLogger struct{}

func (noopLogger) Log(LogEntry) {}

func (noopLogger) IsEnabled(Level) bool { return false }

// DefaultLogger writes entries via a pluggable write function, which
// NewStdLogger takes from the caller; nothing is written if it is nil.
type DefaultLogger struct {
	MinLevel Level
	write    func(string)
}

// NewStdLogger builds a DefaultLogger that writes formatted lines via write.
// Passing fmt.Println-style sinks keeps this dependency-free; production
// code is expected to use logifaceadapter instead.
func NewStdLogger(minLevel Level, write func(string)) *DefaultLogger {
	return &DefaultLogger{MinLevel: minLevel, write: write}
}

func (d *DefaultLogger) IsEnabled(level Level) bool {
	return level >= d.MinLevel
}

func (d *DefaultLogger) Log(entry LogEntry) {
	if !d.IsEnabled(entry.Level) || d.write == nil {
		return
	}
	line := fmt.Sprintf("[%s] %s loop=%s", entry.Level, entry.Category, entry.LoopName)
	if entry.TaskID != "" {
		line += " task=" + entry.TaskID
	}
	if entry.TimerID != "" {
		line += " timer=" + entry.TimerID
	}
	line += " msg=" + entry.Message
	if entry.Err != nil {
		line += " err=" + entry.Err.Error()
	}
	d.write(line)
}
