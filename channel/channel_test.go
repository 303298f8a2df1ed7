package channel

import (
	"context"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/corenet-go/reactor/buffer"
	"github.com/corenet-go/reactor/loop"
	"github.com/corenet-go/reactor/pipeline"
)

// activeRecorder notes whether a channelActive event reached it.
type activeRecorder struct {
	pipeline.BaseHandler
	active bool
}

func (h *activeRecorder) Name() string              { return "active-recorder" }
func (h *activeRecorder) InboundKind() buffer.Kind  { return buffer.KindBytes }
func (h *activeRecorder) OutboundKind() buffer.Kind { return buffer.KindBytes }

func (h *activeRecorder) HandleChannelActive(ctx *pipeline.HandlerContext) {
	h.active = true
	ctx.FireChannelActive()
}

// fakeTransport records flushed bytes and closes without touching any real
// socket, enough to exercise Channel's dispatch/flush/close plumbing.
type fakeTransport struct {
	mu      sync.Mutex
	flushed []byte
	closed  bool
}

func (f *fakeTransport) DoFlush(p []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.flushed = append(f.flushed, p...)
	return nil
}

func (f *fakeTransport) DoRegisterReadiness(func([]byte)) error { return nil }

func (f *fakeTransport) DoClose() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

func newTestLoop(t *testing.T) *loop.Loop {
	t.Helper()
	l, err := loop.New(loop.WithName("channel-test"))
	require.NoError(t, err)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = l.Shutdown(ctx)
	})
	return l
}

func TestChannel_IdentityIsUniqueAndStable(t *testing.T) {
	c1 := New(&fakeTransport{}, nil, nil)
	c2 := New(&fakeTransport{}, nil, nil)
	assert.NotEqual(t, c1.ID(), c2.ID())
	assert.Equal(t, c1.ID(), c1.ID())
}

func TestChannel_RegisterBindsLoopOnce(t *testing.T) {
	l := newTestLoop(t)
	c := New(&fakeTransport{}, nil, nil)

	_, err := c.Register(l).Await(context.Background())
	require.NoError(t, err)
	assert.Same(t, l, c.Loop())

	_, err = c.Register(l).Await(context.Background())
	assert.Error(t, err, "second registration must fail")
}

func TestChannel_ConnectSetsAddressesAndFiresActive(t *testing.T) {
	l := newTestLoop(t)
	rec := &activeRecorder{}
	c := New(&fakeTransport{}, nil, func(ch *Channel) { ch.Pipeline().AddLast(rec) })
	_, err := c.Register(l).Await(context.Background())
	require.NoError(t, err)

	remote := &net.TCPAddr{IP: net.IPv4(127, 0, 0, 1), Port: 9999}
	_, err = c.Connect(remote, nil).Await(context.Background())
	require.NoError(t, err)
	assert.Equal(t, remote, c.RemoteAddress())
	assert.True(t, rec.active, "Connect must fire channelActive through the pipeline")
}

func TestChannel_FlushWritesToTransport(t *testing.T) {
	l := newTestLoop(t)
	transport := &fakeTransport{}
	c := New(transport, nil, nil)
	_, err := c.Register(l).Await(context.Background())
	require.NoError(t, err)

	c.Pipeline().Write([]byte("hello"))
	_, err = c.Flush().Await(context.Background())
	require.NoError(t, err)

	transport.mu.Lock()
	defer transport.mu.Unlock()
	assert.Equal(t, "hello", string(transport.flushed))
}

func TestChannel_CloseIsIdempotentAndClosesTransport(t *testing.T) {
	l := newTestLoop(t)
	transport := &fakeTransport{}
	c := New(transport, nil, nil)
	_, err := c.Register(l).Await(context.Background())
	require.NoError(t, err)

	tok1 := c.Close()
	tok2 := c.Close()
	assert.Same(t, tok1, tok2, "concurrent Close calls share one token")

	_, err = tok1.Await(context.Background())
	require.NoError(t, err)
	assert.True(t, c.IsClosed())

	transport.mu.Lock()
	defer transport.mu.Unlock()
	assert.True(t, transport.closed)
}

func TestServerChannel_OutboundOpsRejectedWithException(t *testing.T) {
	l := newTestLoop(t)
	var caught error
	sc := NewServer(&fakeTransport{}, func(ch *Channel) {
		ch.Pipeline().SetExceptionListener(func(err error) { caught = err })
	})
	_, err := sc.Register(l).Await(context.Background())
	require.NoError(t, err)

	_, err = sc.Connect(nil, nil).Await(context.Background())
	assert.Error(t, err)
	var unsupported *loop.UnsupportedOperationError
	assert.ErrorAs(t, err, &unsupported)

	// Give the loop a turn to run the dispatched exception-firing closure.
	_, _ = sc.Flush().Await(context.Background())
	assert.Error(t, caught)
}
