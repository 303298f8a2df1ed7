package pipeline

import "github.com/corenet-go/reactor/buffer"

// HandlerContext is one arena slot: a handler plus its directional buffers
// and neighbour indices, per spec.md design note 9 ("Implement as an arena
// of contexts addressed by indices; the pipeline owns the arena; contexts
// hold neighbour indices, not owning references"). The zero value is not
// meaningful outside the arena Pipeline builds.
type HandlerContext struct {
	pipeline *Pipeline
	index    int
	handler  Handler

	inbound  buffer.Holder
	outbound buffer.Holder
}

// Pipeline returns the owning Pipeline.
func (c *HandlerContext) Pipeline() *Pipeline { return c.pipeline }

// Handler returns the handler this context belongs to.
func (c *HandlerContext) Handler() Handler { return c.handler }

// InboundBuffer returns this context's inbound BufferHolder, typed per the
// handler's declared InboundKind.
func (c *HandlerContext) InboundBuffer() buffer.Holder { return c.inbound }

// OutboundBuffer returns this context's outbound BufferHolder, typed per the
// handler's declared OutboundKind.
func (c *HandlerContext) OutboundBuffer() buffer.Holder { return c.outbound }

// hasNextInbound reports whether a next-inbound neighbour exists (this
// context is not the tail).
func (c *HandlerContext) hasNextInbound() bool {
	return c.index+1 < len(c.pipeline.contexts)
}

// nextInbound returns the next context in inbound (head-to-tail) order.
func (c *HandlerContext) nextInbound() *HandlerContext {
	return c.pipeline.contexts[c.index+1]
}

// hasNextOutbound reports whether a next-outbound neighbour exists (this
// context is not the head).
func (c *HandlerContext) hasNextOutbound() bool {
	return c.index-1 >= 0
}

// nextOutbound returns the next context in outbound (tail-to-head) order.
func (c *HandlerContext) nextOutbound() *HandlerContext {
	return c.pipeline.contexts[c.index-1]
}

// FireInbound delivers msg to the next handler's inbound buffer and invokes
// it, or — if this context is the tail — delivers msg to the pipeline's
// application-facing inbound sink. Per spec.md §4.C, this is the
// "inbound-fire primitive" that wakes the next handler.
func (c *HandlerContext) FireInbound(msg any) {
	if c.hasNextInbound() {
		next := c.nextInbound()
		writeInto(next.inbound, msg)
		next.handler.HandleInbound(next)
		return
	}
	c.pipeline.deliverToApplication(msg)
}

// FireOutbound delivers msg to the previous handler's outbound buffer (the
// next stage in tail-to-head order) and invokes it, or — if this context is
// the head — delivers msg as the final encoded output to the channel's
// outbound byte holder via the pipeline's flush sink.
func (c *HandlerContext) FireOutbound(msg any) {
	if c.hasNextOutbound() {
		prev := c.nextOutbound()
		writeInto(prev.outbound, msg)
		prev.handler.HandleOutbound(prev)
		return
	}
	c.pipeline.deliverToTransport(msg)
}

// FireChannelActive propagates the event to the next inbound neighbour, or
// stops if this context is the tail.
func (c *HandlerContext) FireChannelActive() {
	if c.hasNextInbound() {
		next := c.nextInbound()
		next.handler.HandleChannelActive(next)
	}
}

// FireChannelInactive propagates the event to the next inbound neighbour.
func (c *HandlerContext) FireChannelInactive() {
	if c.hasNextInbound() {
		next := c.nextInbound()
		next.handler.HandleChannelInactive(next)
	} else {
		c.pipeline.notifyInactiveObservedByTail()
	}
}

// FireExceptionCaught propagates err to the next inbound neighbour, or logs
// it via the pipeline's logger if unhandled at the tail.
func (c *HandlerContext) FireExceptionCaught(err error) {
	if c.hasNextInbound() {
		next := c.nextInbound()
		next.handler.HandleExceptionCaught(next, err)
	} else {
		c.pipeline.logUnhandledException(err)
	}
}

// FireUserEventTriggered propagates evt to the next inbound neighbour.
func (c *HandlerContext) FireUserEventTriggered(evt any) {
	if c.hasNextInbound() {
		next := c.nextInbound()
		next.handler.HandleUserEventTriggered(next, evt)
	}
}

// writeInto appends msg to holder per its concrete kind. Handlers are
// expected to keep their declared Kind consistent with what they push here;
// a mismatch panics rather than silently corrupting state, since it can
// only originate from a wiring bug.
func writeInto(holder buffer.Holder, msg any) {
	switch h := holder.(type) {
	case *buffer.ByteBuffer:
		b, ok := msg.([]byte)
		if !ok {
			panic("pipeline: byte-kind context received non-[]byte message")
		}
		_, _ = h.Write(b)
	case *buffer.MessageQueue:
		h.Push(msg)
	case *buffer.Discard:
		switch v := msg.(type) {
		case []byte:
			_, _ = h.Write(v)
		default:
			h.Push(v)
		}
	default:
		panic("pipeline: unknown buffer holder kind")
	}
}
