package bufferpool

import (
	"container/list"
	"sync"
)

// lruReplacer tracks unpinned entries ordered from least- to
// most-recently-used. Per I2, an entry is a member of this list only
// while its pin_count is zero; pickVictim hands out entries from the
// least-recently-used end.
type lruReplacer struct {
	mu     sync.Mutex
	cond   *sync.Cond
	order  *list.List
	closed bool
}

func newLRUReplacer() *lruReplacer {
	l := &lruReplacer{order: list.New()}
	l.cond = sync.NewCond(&l.mu)
	return l
}

func (l *lruReplacer) removeLocked(e *pageEntry) {
	if e.lruElem != nil {
		l.order.Remove(e.lruElem)
		e.lruElem = nil
	}
}

// markRecentlyUsed reinserts e at the most-recently-used end if it is
// currently unpinned, otherwise it is removed: a pinned entry must never
// be an eviction candidate.
func (l *lruReplacer) markRecentlyUsed(e *pageEntry) {
	l.mu.Lock()
	defer l.mu.Unlock()

	e.metaLock.Lock()
	pinned := e.pinCount > 0
	e.metaLock.Unlock()

	l.removeLocked(e)
	if !pinned {
		e.lruElem = l.order.PushBack(e)
		l.cond.Broadcast()
	}
}

// markStale inserts e at the least-recently-used end. Used after a
// cleanup job finishes, so a just-flushed page is the next eviction
// candidate ahead of pages nobody has touched yet.
func (l *lruReplacer) markStale(e *pageEntry) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.removeLocked(e)
	e.lruElem = l.order.PushFront(e)
	l.cond.Broadcast()
}

func (l *lruReplacer) removeIfPresent(e *pageEntry) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.removeLocked(e)
}

func (l *lruReplacer) pickVictim() *pageEntry {
	l.mu.Lock()
	defer l.mu.Unlock()
	elem := l.order.Front()
	if elem == nil {
		return nil
	}
	e := elem.Value.(*pageEntry)
	l.order.Remove(elem)
	e.lruElem = nil
	return e
}

// waitUntilNonEmpty blocks until a victim candidate exists, or the
// replacer is closed. It reports false in the latter case, telling the
// caller to abandon its search: the pool is shutting down.
func (l *lruReplacer) waitUntilNonEmpty() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	for l.order.Len() == 0 && !l.closed {
		l.cond.Wait()
	}
	return !l.closed
}

func (l *lruReplacer) close() {
	l.mu.Lock()
	l.closed = true
	l.mu.Unlock()
	l.cond.Broadcast()
}
