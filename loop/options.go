package loop

import "time"

type loopOptions struct {
	name            string
	logger          Logger
	misuseKey       string
	tickMetricsHook func(busyFor time.Duration)
}

// Option configures a Loop at construction, the same applyLoop-closure shape
// as the teacher's LoopOption.
type Option interface {
	applyLoop(*loopOptions) error
}

type optionFunc func(*loopOptions) error

func (f optionFunc) applyLoop(o *loopOptions) error { return f(o) }

// WithName attaches a label used in log entries and panics.
func WithName(name string) Option {
	return optionFunc(func(o *loopOptions) error {
		o.name = name
		return nil
	})
}

// WithLogger installs a structured logger. Defaults to a no-op logger.
func WithLogger(l Logger) Option {
	return optionFunc(func(o *loopOptions) error {
		o.logger = l
		return nil
	})
}

// WithMisuseKey overrides the key this Loop registers itself under with the
// package-level misuse detector. Defaults to "loop.Loop".
func WithMisuseKey(key string) Option {
	return optionFunc(func(o *loopOptions) error {
		o.misuseKey = key
		return nil
	})
}

// WithTickMetricsHook installs a callback invoked after each worker tick with
// how long that tick was busy, for callers that want lightweight metrics
// without pulling in a full metrics dependency.
func WithTickMetricsHook(fn func(busyFor time.Duration)) Option {
	return optionFunc(func(o *loopOptions) error {
		o.tickMetricsHook = fn
		return nil
	})
}

func resolveOptions(opts []Option) (loopOptions, error) {
	o := loopOptions{
		logger:    noopLogger{},
		misuseKey: "loop.Loop",
	}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		if err := opt.applyLoop(&o); err != nil {
			return o, err
		}
	}
	return o, nil
}
