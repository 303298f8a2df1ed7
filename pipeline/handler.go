package pipeline

import "github.com/corenet-go/reactor/buffer"

// Direction is which traversal a Handler participates in.
type Direction int

const (
	DirectionInbound Direction = iota
	DirectionOutbound
)

// Handler is one pipeline stage. It declares the BufferHolder kind it reads
// on each direction (spec.md §4.C: "each handler declares its inbound input
// kind ... and its outbound input kind"), and is invoked by the pipeline
// whenever its own input buffer (held by its HandlerContext) has new data.
type Handler interface {
	// Name identifies the handler within its pipeline, for diagnostics; the
	// pipeline does not look handlers up by name.
	Name() string
	// InboundKind is the BufferHolder variant this handler's inbound
	// HandlerContext should allocate.
	InboundKind() buffer.Kind
	// OutboundKind is the BufferHolder variant this handler's outbound
	// HandlerContext should allocate.
	OutboundKind() buffer.Kind

	// HandleInbound is invoked when this handler's inbound buffer has new
	// data; it consumes what it can from ctx.InboundBuffer() and writes
	// decoded output via ctx.FireInbound, which places it in the next
	// handler's inbound buffer and invokes that handler in turn.
	HandleInbound(ctx *HandlerContext)
	// HandleOutbound is the outbound-direction analogue, consuming
	// ctx.OutboundBuffer() and calling ctx.FireOutbound.
	HandleOutbound(ctx *HandlerContext)

	// Lifecycle/event hooks. A handler that doesn't care about an event
	// should simply call the matching ctx.FireXxx to pass it through
	// unchanged, per spec.md §4.C ("a handler that does not override passes
	// it through unchanged").
	HandleChannelActive(ctx *HandlerContext)
	HandleChannelInactive(ctx *HandlerContext)
	HandleExceptionCaught(ctx *HandlerContext, err error)
	HandleUserEventTriggered(ctx *HandlerContext, evt any)
}

// BaseHandler can be embedded by handlers that only care about one or two
// of the Handler methods; it forwards everything else unchanged, the same
// "passes through unchanged" default spec.md calls for.
type BaseHandler struct{}

// HandleInbound drains whatever accumulated in this context's inbound
// buffer and forwards it downstream unchanged, the "passes through
// unchanged" default. Byte and message holders drain as a single unit;
// a Discard holder has nothing to forward.
func (BaseHandler) HandleInbound(ctx *HandlerContext) {
	switch h := ctx.InboundBuffer().(type) {
	case *buffer.ByteBuffer:
		if data := h.Drain(); len(data) > 0 {
			ctx.FireInbound(data)
		}
	case *buffer.MessageQueue:
		for _, msg := range h.Drain() {
			ctx.FireInbound(msg)
		}
	}
}

func (BaseHandler) HandleOutbound(ctx *HandlerContext) {
	switch h := ctx.OutboundBuffer().(type) {
	case *buffer.ByteBuffer:
		if data := h.Drain(); len(data) > 0 {
			ctx.FireOutbound(data)
		}
	case *buffer.MessageQueue:
		for _, msg := range h.Drain() {
			ctx.FireOutbound(msg)
		}
	}
}
func (BaseHandler) HandleChannelActive(ctx *HandlerContext) {
	ctx.FireChannelActive()
}
func (BaseHandler) HandleChannelInactive(ctx *HandlerContext) {
	ctx.FireChannelInactive()
}
func (BaseHandler) HandleExceptionCaught(ctx *HandlerContext, err error) {
	ctx.FireExceptionCaught(err)
}
func (BaseHandler) HandleUserEventTriggered(ctx *HandlerContext, evt any) {
	ctx.FireUserEventTriggered(evt)
}
