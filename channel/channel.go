// Package channel implements Component B: a bidirectional transport endpoint
// bound to exactly one event loop, per spec.md §4.B. Grounded on
// other_examples/434f6f36_mervinkid-matcha__net-tcp-peer-pipeline.go.go's
// Channel/Pipeline split, adapted from its goroutine-per-connection model
// (separate inbound/outbound worker goroutines reading off channels) to this
// module's single-event-loop-thread execution discipline: every mutating
// operation either already runs on the assigned loop, or is re-dispatched
// there via Execute before it touches any Channel state.
package channel

import (
	"errors"
	"net"
	"sync/atomic"

	"github.com/corenet-go/reactor/buffer"
	"github.com/corenet-go/reactor/future"
	"github.com/corenet-go/reactor/loop"
	"github.com/corenet-go/reactor/misuse"
	"github.com/corenet-go/reactor/pipeline"
)

var nextID atomic.Int64

// ErrNotRegistered is returned (and used to fail the returned Token) by any
// operation that requires a bound loop before Register has completed.
var ErrNotRegistered = errors.New("channel: not yet registered with an event loop")

// Transport is the collaborator a Channel drives to move bytes across a real
// socket. No concrete implementation ships in this module (spec.md scopes out
// an actual network stack); production use supplies one backed by net.Conn or
// golang.org/x/sys/unix raw fds.
type Transport interface {
	// DoFlush writes p to the underlying connection.
	DoFlush(p []byte) error
	// DoRegisterReadiness arranges for onReadable to be invoked, with
	// whatever bytes it read, whenever new inbound data is available. The
	// transport may call onReadable from any goroutine; Channel marshals it
	// onto its assigned loop before touching pipeline state.
	DoRegisterReadiness(onReadable func(data []byte)) error
	// DoClose releases the underlying connection.
	DoClose() error
}

// Initializer populates a freshly registered Channel's pipeline, the
// ChannelInitializer-equivalent named in SPEC_FULL.md §9.1. Invoked exactly
// once, synchronously by New (or NewServer) on the constructing goroutine,
// before the channel is registered with any loop.
type Initializer func(ch *Channel)

// Channel is a bidirectional transport endpoint bound to exactly one event
// loop, per spec.md §4.B. The zero value is not usable; construct with New.
type Channel struct {
	id     int64
	parent *Channel

	loop      *loop.Loop
	registered atomic.Bool

	localAddr  atomic.Pointer[net.Addr]
	remoteAddr atomic.Pointer[net.Addr]

	inbound  buffer.Holder
	outbound buffer.Holder

	pipeline *pipeline.Pipeline

	transport Transport

	closed      atomic.Bool
	closeToken  atomic.Pointer[future.Token[struct{}]]

	misuseHandle *misuse.Handle
	liveness     *struct{}
}

// New constructs an unregistered Channel wrapping transport, with parent as
// its optional owning Channel (nil for a root channel, e.g. one accepted by a
// listener has the listener's ServerChannel as parent). The pipeline starts
// empty; init, if non-nil, populates it before New returns.
func New(transport Transport, parent *Channel, init Initializer) *Channel {
	c := &Channel{
		id:        nextID.Add(1),
		parent:    parent,
		transport: transport,
		inbound:   buffer.NewByteBuffer(),
		outbound:  buffer.NewByteBuffer(),
	}
	c.pipeline = pipeline.New(c.deliverInboundToApplication, c.flushOutbound)
	c.pipeline.SetInactiveListener(c.onPipelineObservedInactive)
	c.liveness = &struct{}{}
	c.misuseHandle = misuse.Global.Register("channel.Channel", c.liveness)
	if init != nil {
		init(c)
	}
	return c
}

// ID returns the channel's stable, process-wide-unique integer identity.
func (c *Channel) ID() int64 { return c.id }

// Parent returns the owning Channel, or nil for a root channel.
func (c *Channel) Parent() *Channel { return c.parent }

// Pipeline returns the Channel's handler pipeline, for attaching handlers
// either from an Initializer or after construction.
func (c *Channel) Pipeline() *pipeline.Pipeline { return c.pipeline }

// Loop returns the event loop this Channel is bound to, or nil if it has not
// been registered yet.
func (c *Channel) Loop() *loop.Loop { return c.loop }

// RemoteAddress returns the remote socket address, or nil if unknown (not yet
// connected).
func (c *Channel) RemoteAddress() net.Addr {
	if p := c.remoteAddr.Load(); p != nil {
		return *p
	}
	return nil
}

// LocalAddress returns the local socket address, or nil if unknown.
func (c *Channel) LocalAddress() net.Addr {
	if p := c.localAddr.Load(); p != nil {
		return *p
	}
	return nil
}

// IsClosed reports whether Close has completed (or is in flight as of the
// moment this was checked — definitive only once the returned token settles).
func (c *Channel) IsClosed() bool { return c.closed.Load() }

// Register binds the channel to l. One-shot: the returned token fails if the
// channel is already registered.
func (c *Channel) Register(l *loop.Loop) *future.Token[struct{}] {
	tok := future.New[struct{}]()
	c.dispatch(l, func() {
		if !c.registered.CompareAndSwap(false, true) {
			tok.Fail(&loop.UnsupportedOperationError{Op: "register", Message: "channel already registered"})
			return
		}
		c.loop = l
		if c.transport != nil {
			if err := c.transport.DoRegisterReadiness(func(data []byte) {
				c.dispatch(c.loop, func() { c.FireChannelRead(data) })
			}); err != nil {
				tok.Fail(err)
				return
			}
		}
		tok.Complete(struct{}{})
	})
	return tok
}

// Connect dispatches to the transport; ServerChannel overrides this to
// reject. remote/local may be nil if the transport discovers them itself.
func (c *Channel) Connect(remote, local net.Addr) *future.Token[struct{}] {
	tok := future.New[struct{}]()
	c.withLoop(tok, func() {
		if remote != nil {
			c.remoteAddr.Store(&remote)
		}
		if local != nil {
			c.localAddr.Store(&local)
		}
		c.pipeline.FireChannelActive()
		tok.Complete(struct{}{})
	})
	return tok
}

// Disconnect clears the remote address and fires channelInactive.
func (c *Channel) Disconnect() *future.Token[struct{}] {
	tok := future.New[struct{}]()
	c.withLoop(tok, func() {
		c.remoteAddr.Store(nil)
		c.pipeline.FireChannelInactive()
		tok.Complete(struct{}{})
	})
	return tok
}

// Flush drains the outbound byte holder to the transport.
func (c *Channel) Flush() *future.Token[struct{}] {
	tok := future.New[struct{}]()
	c.withLoop(tok, func() {
		c.doFlush()
		tok.Complete(struct{}{})
	})
	return tok
}

// Close is idempotent; it completes after the pipeline has observed the
// inactive event, per spec.md §4.B.
func (c *Channel) Close() *future.Token[struct{}] {
	if existing := c.closeToken.Load(); existing != nil {
		return existing
	}
	tok := future.New[struct{}]()
	if !c.closeToken.CompareAndSwap(nil, tok) {
		return c.closeToken.Load()
	}
	c.dispatch(c.loop, func() {
		if !c.closed.CompareAndSwap(false, true) {
			tok.Complete(struct{}{})
			return
		}
		c.pipeline.FireChannelInactive()
		if c.transport != nil {
			_ = c.transport.DoClose()
		}
		c.releaseMisuse()
		tok.Complete(struct{}{})
	})
	return tok
}

// FireChannelRead feeds newly arrived inbound bytes to the pipeline. Called
// by the transport's readiness callback, already running on the Channel's
// loop.
func (c *Channel) FireChannelRead(data []byte) {
	c.pipeline.FireChannelRead(data)
}

// FireExceptionCaught notifies the pipeline of an out-of-band error (e.g. a
// transport read failure) not raised by a handler.
func (c *Channel) FireExceptionCaught(err error) {
	c.pipeline.FireExceptionCaught(err)
}

func (c *Channel) deliverInboundToApplication(msg any) {
	// Root channels have no further application sink beyond the pipeline
	// itself; subclasses (e.g. a codec's terminal handler) consume inbound
	// messages by being the tail handler, not by overriding this.
}

func (c *Channel) flushOutbound(msg any) {
	data, ok := msg.([]byte)
	if !ok {
		return
	}
	if w, ok := c.outbound.(interface{ Write([]byte) (int, error) }); ok {
		_, _ = w.Write(data)
	}
	c.doFlush()
}

func (c *Channel) doFlush() {
	bb, ok := c.outbound.(*buffer.ByteBuffer)
	if !ok || c.transport == nil {
		return
	}
	data := bb.Drain()
	if len(data) == 0 {
		return
	}
	if err := c.transport.DoFlush(data); err != nil {
		c.pipeline.FireExceptionCaught(err)
	}
}

func (c *Channel) onPipelineObservedInactive() {
	c.releaseMisuse()
}

func (c *Channel) releaseMisuse() {
	if c.misuseHandle != nil {
		c.misuseHandle.Release()
		c.misuseHandle = nil
	}
}

// dispatch runs fn on l inline if the caller is already on l's loop thread,
// otherwise re-dispatches it via l.Execute. Per spec.md §4.B's execution
// discipline.
func (c *Channel) dispatch(l *loop.Loop, fn func()) {
	if l == nil {
		fn()
		return
	}
	if l.InEventLoop() {
		fn()
		return
	}
	l.Execute(fn)
}

// withLoop runs fn on the channel's assigned loop (inline or re-dispatched),
// or fails tok immediately if the channel has not been registered yet.
func (c *Channel) withLoop(tok *future.Token[struct{}], fn func()) {
	if c.loop == nil {
		tok.Fail(ErrNotRegistered)
		return
	}
	c.dispatch(c.loop, fn)
}
