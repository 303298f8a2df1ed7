// Package pipeline implements Component C: the linear handler chain inbound
// bytes ascend and outbound messages descend, per spec.md §4.C. Handler
// contexts are held in an arena addressed by index (design note 9) rather
// than by pointer, so the pipeline/context cycle never needs owning
// pointers in both directions.
package pipeline

import (
	"github.com/corenet-go/reactor/buffer"
)

// Logger is the narrow logging capability Pipeline needs; satisfied by a
// Warnf-capable loop.Logger adapter such as logifaceadapter.Adapter,
// without importing the loop package here (pipeline only needs to log, not
// schedule).
type Logger interface {
	Warnf(format string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Warnf(string, ...any) {}

// Pipeline is an ordered list of Handlers bound to one channel. The zero
// value is not usable; construct with New.
type Pipeline struct {
	contexts []*HandlerContext
	logger   Logger

	onMessage    func(msg any)
	onFlush      func(msg any)
	onInactive   func()
	onException  func(err error)
}

// New constructs an empty Pipeline. onMessage receives inbound messages that
// reach the tail (the application-facing sink); onFlush receives outbound
// messages that reach the head (the channel-facing sink, normally []byte
// ready for the transport).
func New(onMessage func(msg any), onFlush func(msg any)) *Pipeline {
	return &Pipeline{
		logger:    noopLogger{},
		onMessage: onMessage,
		onFlush:   onFlush,
	}
}

// SetLogger installs a logger for unhandled exceptions reaching the tail.
func (p *Pipeline) SetLogger(l Logger) {
	if l != nil {
		p.logger = l
	}
}

// SetInactiveListener installs a callback invoked once the channelInactive
// event reaches the tail without being handled further; channel.New uses it
// to release the channel's misuse-detector registration.
func (p *Pipeline) SetInactiveListener(fn func()) {
	p.onInactive = fn
}

// SetExceptionListener installs a callback invoked whenever an
// exceptionCaught event reaches the tail unhandled, in addition to the
// default log line.
func (p *Pipeline) SetExceptionListener(fn func(err error)) {
	p.onException = fn
}

// AddLast appends h as the new tail handler.
func (p *Pipeline) AddLast(h Handler) *HandlerContext {
	ctx := &HandlerContext{
		pipeline: p,
		handler:  h,
		inbound:  newHolder(h.InboundKind()),
		outbound: newHolder(h.OutboundKind()),
	}
	p.contexts = append(p.contexts, ctx)
	p.reindex()
	return ctx
}

// AddFirst prepends h as the new head handler.
func (p *Pipeline) AddFirst(h Handler) *HandlerContext {
	ctx := &HandlerContext{
		pipeline: p,
		handler:  h,
		inbound:  newHolder(h.InboundKind()),
		outbound: newHolder(h.OutboundKind()),
	}
	p.contexts = append([]*HandlerContext{ctx}, p.contexts...)
	p.reindex()
	return ctx
}

func (p *Pipeline) reindex() {
	for i, ctx := range p.contexts {
		ctx.index = i
	}
}

func newHolder(kind buffer.Kind) buffer.Holder {
	switch kind {
	case buffer.KindBytes:
		return buffer.NewByteBuffer()
	case buffer.KindMessages:
		return buffer.NewMessageQueue()
	default:
		return buffer.NewDiscard()
	}
}

// FireChannelRead is called by the Channel when new inbound bytes have
// arrived; it notifies the head context, the pipeline's entry point for
// inbound traversal.
func (p *Pipeline) FireChannelRead(data []byte) {
	if len(p.contexts) == 0 {
		p.deliverToApplication(data)
		return
	}
	head := p.contexts[0]
	writeInto(head.inbound, data)
	head.handler.HandleInbound(head)
}

// Write is the application-facing outbound entry point: msg enters the tail
// context, the pipeline's entry point for outbound traversal.
func (p *Pipeline) Write(msg any) {
	if len(p.contexts) == 0 {
		p.deliverToTransport(msg)
		return
	}
	tail := p.contexts[len(p.contexts)-1]
	writeInto(tail.outbound, msg)
	tail.handler.HandleOutbound(tail)
}

// FireChannelActive notifies the head context of channelActive.
func (p *Pipeline) FireChannelActive() {
	if len(p.contexts) == 0 {
		return
	}
	head := p.contexts[0]
	head.handler.HandleChannelActive(head)
}

// FireChannelInactive notifies the head context of channelInactive.
func (p *Pipeline) FireChannelInactive() {
	if len(p.contexts) == 0 {
		p.notifyInactiveObservedByTail()
		return
	}
	head := p.contexts[0]
	head.handler.HandleChannelInactive(head)
}

// FireExceptionCaught notifies the head context of an exception.
func (p *Pipeline) FireExceptionCaught(err error) {
	if len(p.contexts) == 0 {
		p.logUnhandledException(err)
		return
	}
	head := p.contexts[0]
	head.handler.HandleExceptionCaught(head, err)
}

// FireUserEventTriggered notifies the head context of a user event.
func (p *Pipeline) FireUserEventTriggered(evt any) {
	if len(p.contexts) == 0 {
		return
	}
	head := p.contexts[0]
	head.handler.HandleUserEventTriggered(head, evt)
}

func (p *Pipeline) deliverToApplication(msg any) {
	if p.onMessage != nil {
		p.onMessage(msg)
	}
}

func (p *Pipeline) deliverToTransport(msg any) {
	if p.onFlush != nil {
		p.onFlush(msg)
	}
}

func (p *Pipeline) notifyInactiveObservedByTail() {
	if p.onInactive != nil {
		p.onInactive()
	}
}

func (p *Pipeline) logUnhandledException(err error) {
	if p.onException != nil {
		p.onException(err)
	}
	p.logger.Warnf("pipeline: unhandled exception reached tail: %v", err)
}
