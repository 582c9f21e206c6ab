package bufferpool

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLRUReplacerOrdersByRecency(t *testing.T) {
	l := newLRUReplacer()
	a, b, c := newPageEntry(nil), newPageEntry(nil), newPageEntry(nil)

	l.markRecentlyUsed(a)
	l.markRecentlyUsed(b)
	l.markRecentlyUsed(c)

	require.True(t, l.waitUntilNonEmpty())
	victim := l.pickVictim()
	assert.Same(t, a, victim, "least recently used entry should be evicted first")

	l.markRecentlyUsed(b) // touch b again, pushing it back to the MRU end
	victim = l.pickVictim()
	assert.Same(t, c, victim)
}

func TestLRUReplacerPinnedNeverVictim(t *testing.T) {
	l := newLRUReplacer()
	pinned := newPageEntry(nil)
	pinned.pinCount = 1
	unpinned := newPageEntry(nil)

	l.markRecentlyUsed(pinned)
	l.markRecentlyUsed(unpinned)

	victim := l.pickVictim()
	require.NotNil(t, victim)
	assert.Same(t, unpinned, victim)

	victim = l.pickVictim()
	assert.Nil(t, victim, "pinned entry must never be reachable from the replacer")
}

func TestLRUReplacerMarkStaleGoesToFront(t *testing.T) {
	l := newLRUReplacer()
	a, b := newPageEntry(nil), newPageEntry(nil)
	l.markRecentlyUsed(a)
	l.markRecentlyUsed(b)

	l.markStale(b)
	victim := l.pickVictim()
	assert.Same(t, b, victim, "a just-cleaned entry should be the next eviction candidate")
}

func TestLRUReplacerWaitUnblocksOnClose(t *testing.T) {
	l := newLRUReplacer()
	done := make(chan bool, 1)
	go func() {
		done <- l.waitUntilNonEmpty()
	}()
	l.close()
	assert.False(t, <-done)
}
