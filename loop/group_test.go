package loop

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGroup_NextRoundRobinsAcrossMembers(t *testing.T) {
	g, err := NewGroup(3, WithName(t.Name()))
	require.NoError(t, err)
	defer g.Shutdown(context.Background())

	members := g.Loops()
	require.Len(t, members, 3)

	var seen []*Loop
	for i := 0; i < 6; i++ {
		seen = append(seen, g.Next())
	}
	for i, l := range seen {
		assert.Same(t, members[i%3], l, "Next must cycle through members in assignment order")
	}
}

func TestGroup_NextOnSingleMemberAlwaysReturnsIt(t *testing.T) {
	g, err := NewGroup(1)
	require.NoError(t, err)
	defer g.Shutdown(context.Background())

	only := g.Loops()[0]
	for i := 0; i < 3; i++ {
		assert.Same(t, only, g.Next())
	}
}

func TestGroup_NewGroupClampsNonPositiveSizeToOne(t *testing.T) {
	g, err := NewGroup(0)
	require.NoError(t, err)
	defer g.Shutdown(context.Background())
	assert.Len(t, g.Loops(), 1)
}

func TestGroup_ShutdownTerminatesEveryMember(t *testing.T) {
	g, err := NewGroup(3)
	require.NoError(t, err)

	members := g.Loops()
	for _, l := range members {
		l.Execute(func() {})
	}

	require.NoError(t, g.Shutdown(context.Background()))
	for _, l := range members {
		assert.True(t, l.IsTerminated())
	}
}
