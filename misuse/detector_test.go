package misuse

import (
	"fmt"
	"runtime"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeWarner struct {
	mu    sync.Mutex
	lines []string
}

func (w *fakeWarner) Warnf(format string, args ...any) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.lines = append(w.lines, fmt.Sprintf(format, args...))
}

func (w *fakeWarner) count() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.lines)
}

func TestDetector_RegisterReleaseTracksCount(t *testing.T) {
	d := New(4, nil)
	anchor := new(struct{})
	h1 := d.Register("widget", anchor)
	h2 := d.Register("widget", anchor)
	assert.EqualValues(t, 2, d.Count("widget"))

	h1.Release()
	assert.EqualValues(t, 1, d.Count("widget"))
	h1.Release() // idempotent
	assert.EqualValues(t, 1, d.Count("widget"))

	h2.Release()
	assert.EqualValues(t, 0, d.Count("widget"))
}

func TestDetector_WarnsOnceThresholdExceeded(t *testing.T) {
	w := &fakeWarner{}
	d := New(2, w)
	anchor := new(struct{})

	var handles []*Handle
	for i := 0; i < 5; i++ {
		handles = append(handles, d.Register("gadget", anchor))
	}
	require.EqualValues(t, 5, d.Count("gadget"))
	assert.Equal(t, 1, w.count(), "should warn exactly once while above threshold")

	for _, h := range handles {
		h.Release()
	}
	assert.EqualValues(t, 0, d.Count("gadget"))

	for i := 0; i < 3; i++ {
		d.Register("gadget", anchor)
	}
	assert.Equal(t, 2, w.count(), "re-crossing the threshold should warn again")
}

func TestDetector_UnknownKeyCountsZero(t *testing.T) {
	d := New(1, nil)
	assert.EqualValues(t, 0, d.Count("nope"))
}

func TestDetector_CollectedAnchorReclaimsCount(t *testing.T) {
	d := New(1000, nil)

	func() {
		anchor := new(struct{})
		d.Register("ephemeral", anchor)
		runtime.KeepAlive(anchor)
	}()

	// Give the GC a chance to collect the anchor; weak pointers clear async,
	// so this is a best-effort check rather than a hard guarantee.
	for i := 0; i < 5; i++ {
		runtime.GC()
		if d.Count("ephemeral") == 0 {
			break
		}
		time.Sleep(time.Millisecond)
	}
	assert.EqualValues(t, 0, d.Count("ephemeral"))
}
