package channel

import (
	"net"

	"github.com/corenet-go/reactor/buffer"
	"github.com/corenet-go/reactor/future"
	"github.com/corenet-go/reactor/loop"
)

// ServerChannel is the listening-socket specialization of Channel: it never
// carries outbound application data, so its outbound BufferHolder is a fixed
// Discard, and Connect/Disconnect/Flush are unsupported per spec.md §4.B.
type ServerChannel struct {
	*Channel
}

// NewServer constructs an unregistered ServerChannel. The Initializer
// typically attaches an accept-handling Handler that turns each accepted
// connection into a child Channel via New, with this ServerChannel as parent.
func NewServer(transport Transport, init Initializer) *ServerChannel {
	sc := &ServerChannel{Channel: New(transport, nil, nil)}
	sc.Channel.outbound = buffer.NewDiscard()
	if init != nil {
		init(sc.Channel)
	}
	return sc
}

// Connect always fails with UnsupportedOperationError and fires an
// exception-caught event through the pipeline, per spec.md §4.B.
func (sc *ServerChannel) Connect(net.Addr, net.Addr) *future.Token[struct{}] {
	return sc.rejectUnsupported("connect")
}

// Disconnect always fails with UnsupportedOperationError.
func (sc *ServerChannel) Disconnect() *future.Token[struct{}] {
	return sc.rejectUnsupported("disconnect")
}

// Flush always fails with UnsupportedOperationError; writes to the Discard
// outbound holder are silently dropped regardless, but Flush itself must
// still surface rejection on the token, per spec.md §4.B.
func (sc *ServerChannel) Flush() *future.Token[struct{}] {
	return sc.rejectUnsupported("flush")
}

func (sc *ServerChannel) rejectUnsupported(op string) *future.Token[struct{}] {
	tok := future.New[struct{}]()
	err := &loop.UnsupportedOperationError{Op: op, Message: "not supported on a server channel"}
	sc.dispatch(sc.Channel.loop, func() {
		sc.Channel.pipeline.FireExceptionCaught(err)
		tok.Fail(err)
	})
	return tok
}
