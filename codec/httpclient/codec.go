// Package httpclient implements Component D: the paired HTTP/1.1
// request-encoder/response-decoder handler described in spec.md §4.D. A
// single Codec value plays both roles — Go's pipeline.Handler interface
// already carries one HandleInbound and one HandleOutbound method, which is
// the natural home for the "two paired handlers sharing three pieces of
// state" the spec describes, rather than two separate types needing an
// out-of-band channel to share the correlation queue.
package httpclient

import (
	"github.com/corenet-go/reactor/buffer"
	"github.com/corenet-go/reactor/pipeline"
)

var _ pipeline.Handler = (*Codec)(nil)

// Codec is a pipeline.Handler implementing method-correlated HTTP/1.1
// request encoding and response decoding, per spec.md §4.D.
type Codec struct {
	pipeline.BaseHandler
	name string

	opts options

	// methods is the correlation FIFO: one entry per request written whose
	// response has not yet been matched.
	methods []string

	// done latches true once a CONNECT tunnel is established; from then on
	// the decoder is raw pass-through and the encoder stops correlating.
	done bool

	// outstanding is signed, active only when opts.failOnMissingResponse.
	outstanding int

	// pending holds bytes accumulated across HandleInbound calls that do not
	// yet form a complete response (or complete tunnel chunk).
	pending []byte
}

// NewCodec constructs a Codec with the given name (for pipeline diagnostics)
// and options. Defaults: MaxInitialLineLength=4096, MaxHeaderSize=8192,
// MaxChunkSize=8192, FailOnMissingResponse=false, per SPEC_FULL.md §6.
func NewCodec(name string, opts ...Option) *Codec {
	return &Codec{
		name: name,
		opts: resolveOptions(opts),
	}
}

func (c *Codec) Name() string             { return c.name }
func (c *Codec) InboundKind() buffer.Kind  { return buffer.KindBytes }
func (c *Codec) OutboundKind() buffer.Kind { return buffer.KindMessages }

// HandleInbound decodes as many complete responses (or tunnel pass-through
// chunks) as the accumulated bytes allow, firing one message downstream per
// complete decode.
func (c *Codec) HandleInbound(ctx *pipeline.HandlerContext) {
	bb := ctx.InboundBuffer().(*buffer.ByteBuffer)
	c.pending = append(c.pending, bb.Drain()...)

	for {
		if c.done {
			if len(c.pending) == 0 {
				return
			}
			data := c.pending
			c.pending = nil
			ctx.FireInbound(data)
			return
		}

		msg, consumed, ok := c.decodeOne(c.pending)
		if !ok {
			return
		}
		c.pending = c.pending[consumed:]
		switch m := msg.(type) {
		case nil:
		case error:
			ctx.FireExceptionCaught(m)
		default:
			ctx.FireInbound(m)
		}
		if len(c.pending) == 0 {
			return
		}
	}
}

// HandleOutbound encodes every message queued for this handler, in order,
// firing the encoded bytes downstream (toward the channel's outbound byte
// holder) per message.
func (c *Codec) HandleOutbound(ctx *pipeline.HandlerContext) {
	mq := ctx.OutboundBuffer().(*buffer.MessageQueue)
	for _, msg := range mq.Drain() {
		encoded, err := c.encodeOne(msg)
		if err != nil {
			ctx.FireExceptionCaught(err)
			continue
		}
		if len(encoded) > 0 {
			ctx.FireOutbound(encoded)
		}
	}
}

// HandleChannelInactive implements premature-closure detection: if
// fail-on-missing-response is enabled and responses are still outstanding,
// an exception is fired before the inactive event continues propagating.
func (c *Codec) HandleChannelInactive(ctx *pipeline.HandlerContext) {
	if c.opts.failOnMissingResponse && c.outstanding > 0 {
		ctx.FireExceptionCaught(&PrematureClosureError{Missing: c.outstanding})
	}
	ctx.FireChannelInactive()
}

func (c *Codec) dequeueMethod() (string, bool) {
	if len(c.methods) == 0 {
		return "", false
	}
	m := c.methods[0]
	c.methods = c.methods[1:]
	return m, true
}
