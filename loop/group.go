package loop

import (
	"context"
	"sync/atomic"
)

// Group is a fixed-size, round-robin set of Loops, the supplemented
// EventLoopGroup-equivalent this module adds because a single Loop is never
// how channels get assigned to loops in practice: the spec's own "Channel
// ... assigned Event Loop" wording presumes a pool to assign from. Grounded
// on generalizing the teacher's New() constructor to N instances.
type Group struct {
	loops []*Loop
	next  atomic.Uint64
}

// NewGroup constructs size Loops, each configured with opts.
func NewGroup(size int, opts ...Option) (*Group, error) {
	if size <= 0 {
		size = 1
	}
	g := &Group{loops: make([]*Loop, size)}
	for i := range g.loops {
		l, err := New(opts...)
		if err != nil {
			_ = g.Shutdown(context.Background())
			return nil, err
		}
		g.loops[i] = l
	}
	return g, nil
}

// Next returns the next Loop in round-robin order, for assigning a freshly
// accepted channel.
func (g *Group) Next() *Loop {
	i := g.next.Add(1) - 1
	return g.loops[i%uint64(len(g.loops))]
}

// Loops returns the group's member loops in assignment order.
func (g *Group) Loops() []*Loop {
	out := make([]*Loop, len(g.loops))
	copy(out, g.loops)
	return out
}

// Shutdown requests shutdown on every member loop and waits for all of them,
// returning the first error encountered (if any), but always attempting
// every member regardless of earlier failures.
func (g *Group) Shutdown(ctx context.Context) error {
	var firstErr error
	for _, l := range g.loops {
		if err := l.Shutdown(ctx); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
