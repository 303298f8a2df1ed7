package httpclient

// options holds the Codec's tunables, per SPEC_FULL.md §6's named defaults.
type options struct {
	maxInitialLineLength  int
	maxHeaderSize         int
	maxChunkSize          int
	failOnMissingResponse bool
}

// Option configures a Codec at construction, the same functional-options
// shape as loop.Option.
type Option interface {
	applyCodec(*options)
}

type optionFunc func(*options)

func (f optionFunc) applyCodec(o *options) { f(o) }

// WithMaxInitialLineLength bounds the request/status line length the decoder
// will buffer before giving up on finding it, guarding against a peer that
// never sends a line terminator. Default 4096.
func WithMaxInitialLineLength(n int) Option {
	return optionFunc(func(o *options) { o.maxInitialLineLength = n })
}

// WithMaxHeaderSize bounds the total header block size. Default 8192.
func WithMaxHeaderSize(n int) Option {
	return optionFunc(func(o *options) { o.maxHeaderSize = n })
}

// WithMaxChunkSize bounds a single chunk's declared size when decoding
// chunked transfer-encoding. Default 8192.
func WithMaxChunkSize(n int) Option {
	return optionFunc(func(o *options) { o.maxChunkSize = n })
}

// WithFailOnMissingResponse enables the outstanding counter and
// premature-closure detection described in spec.md §4.D. Default false.
func WithFailOnMissingResponse(enabled bool) Option {
	return optionFunc(func(o *options) { o.failOnMissingResponse = enabled })
}

func resolveOptions(opts []Option) options {
	o := options{
		maxInitialLineLength: 4096,
		maxHeaderSize:        8192,
		maxChunkSize:         8192,
	}
	for _, opt := range opts {
		opt.applyCodec(&o)
	}
	return o
}
