package bufferpool

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestPool(t *testing.T, frames, blocksPerPage int) *Pool {
	t.Helper()
	disk := NewMemDiskFile(DefaultBlockSize)
	p, err := NewPool(disk, frames, blocksPerPage)
	require.NoError(t, err)
	t.Cleanup(func() { _ = p.Close() })
	return p
}

func writePage(t *testing.T, p *Pool, id PageID, content string) {
	t.Helper()
	buf, err := p.GetForWrite(id)
	require.NoError(t, err)
	copy(buf, content)
	require.NoError(t, p.ReleaseWrite(id))
}

func readPage(t *testing.T, p *Pool, id PageID, n int) string {
	t.Helper()
	buf, err := p.GetForRead(id)
	require.NoError(t, err)
	out := string(buf[:n])
	require.NoError(t, p.ReleaseRead(id))
	return out
}

func TestWriteThenReadRoundTrips(t *testing.T) {
	p := newTestPool(t, 4, 1)

	id, err := p.AllocateNewPage()
	require.NoError(t, err)

	writePage(t, p, id, "hello")
	assert.Equal(t, "hello", readPage(t, p, id, 5))
}

func TestEvictionWritesBackDirtyVictim(t *testing.T) {
	p := newTestPool(t, 2, 1)

	a, err := p.AllocateNewPage()
	require.NoError(t, err)
	b, err := p.AllocateNewPage()
	require.NoError(t, err)
	c, err := p.AllocateNewPage()
	require.NoError(t, err)

	writePage(t, p, a, "aaaaa")
	writePage(t, p, b, "bbbbb")
	// pool only has 2 frames; faulting in c must evict one of a/b,
	// flushing it first since it is dirty.
	writePage(t, p, c, "ccccc")

	assert.Equal(t, "aaaaa", readPage(t, p, a, 5))
	assert.Equal(t, "bbbbb", readPage(t, p, b, 5))
	assert.Equal(t, "ccccc", readPage(t, p, c, 5))
}

func TestPinnedPageIsNeverEvicted(t *testing.T) {
	p := newTestPool(t, 1, 1)

	a, err := p.AllocateNewPage()
	require.NoError(t, err)
	b, err := p.AllocateNewPage()
	require.NoError(t, err)

	buf, err := p.GetForRead(a)
	require.NoError(t, err)
	_ = buf

	faulted := make(chan error, 1)
	go func() {
		_, err := p.GetForRead(b)
		faulted <- err
	}()

	select {
	case <-faulted:
		t.Fatal("fault for b completed while the only frame was pinned by a")
	case <-time.After(100 * time.Millisecond):
	}

	require.NoError(t, p.ReleaseRead(a))

	select {
	case err := <-faulted:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("fault for b never completed after a was released")
	}
	require.NoError(t, p.ReleaseRead(b))
}

func TestShutdownFlushesDirtyPages(t *testing.T) {
	disk := NewMemDiskFile(DefaultBlockSize)
	p, err := NewPool(disk, 4, 1)
	require.NoError(t, err)

	id, err := p.AllocateNewPage()
	require.NoError(t, err)
	writePage(t, p, id, "flush-me")

	require.NoError(t, p.Shutdown())

	raw := make([]byte, DefaultBlockSize)
	require.NoError(t, disk.ReadAt(raw, int64(id), 1))
	assert.Equal(t, "flush-me", string(raw[:8]))
}

func TestForceFlushWritesDirtyPageBeforeClose(t *testing.T) {
	disk := NewMemDiskFile(DefaultBlockSize)
	p, err := NewPool(disk, 4, 1)
	require.NoError(t, err)
	t.Cleanup(func() { _ = p.Close() })

	id, err := p.AllocateNewPage()
	require.NoError(t, err)
	writePage(t, p, id, "persisted")

	require.NoError(t, p.ForceFlush(id))

	raw := make([]byte, DefaultBlockSize)
	require.NoError(t, disk.ReadAt(raw, int64(id), 1))
	assert.Equal(t, "persisted", string(raw[:9]))
}

func TestReleaseOnUnresidentPageIsAnError(t *testing.T) {
	p := newTestPool(t, 2, 1)
	err := p.ReleaseRead(999)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestAllFaultsServicedUnderAgingWithSingleWorker(t *testing.T) {
	// a single dispatcher worker services faults one at a time while
	// every newly created request ages the ones already pending; all ten
	// concurrent faults must still complete.
	disk := NewMemDiskFile(DefaultBlockSize)
	p, err := NewPoolWithWorkers(disk, 2, 1, 1)
	require.NoError(t, err)
	t.Cleanup(func() { _ = p.Close() })

	const n = 10
	ids := make([]PageID, n)
	for i := 0; i < n; i++ {
		ids[i], err = p.AllocateNewPage()
		require.NoError(t, err)
	}

	results := make(chan PageID, n)
	for _, id := range ids {
		id := id
		go func() {
			buf, err := p.GetForRead(id)
			require.NoError(t, err)
			_ = buf
			require.NoError(t, p.ReleaseRead(id))
			results <- id
		}()
	}

	seen := make(map[PageID]bool, n)
	for i := 0; i < n; i++ {
		select {
		case id := <-results:
			seen[id] = true
		case <-time.After(2 * time.Second):
			t.Fatalf("only %d/%d faults completed before timeout", len(seen), n)
		}
	}
	assert.Len(t, seen, n)
}
