// Package bufferpool implements a fixed-capacity, concurrent buffer pool
// over a block-addressed heap file: a page table, an LRU replacer, a
// priority-aging request queue and an async I/O dispatcher, wired behind
// a single Pool facade.
package bufferpool

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/avbraun/heapbuf/src/internal/poollog"
)

const defaultDispatcherWorkers = 4

// Pool is the external, goroutine-safe entry point. All of its methods
// may be called concurrently from any number of goroutines.
type Pool struct {
	disk          DiskFile
	arena         *frameArena
	frameSize     int
	blocksPerPage int

	table       *pageTable
	lru         *lruReplacer
	prioritizer *requestPrioritizer
	disp        *dispatcher
	entries     []*pageEntry

	logger *poollog.Logger

	fatalFlag atomic.Bool
	fatalMu   sync.Mutex
	fatalErr  error
}

// Open opens (creating if necessary) the heap file named by cfg.Path and
// returns a ready Pool.
func Open(cfg Config) (*Pool, error) {
	if cfg.Path == "" {
		return nil, fmt.Errorf("bufferpool: config path must not be empty")
	}
	disk, err := OpenDiskFile(cfg.Path, DefaultBlockSize)
	if err != nil {
		return nil, fmt.Errorf("bufferpool: open %q: %w", cfg.Path, err)
	}
	workers := cfg.Workers
	if workers <= 0 {
		workers = defaultDispatcherWorkers
	}
	p, err := newPool(disk, cfg.Frames, cfg.BlocksPerPage, workers)
	if err != nil {
		_ = disk.Close()
		return nil, err
	}
	return p, nil
}

// NewPool builds a Pool directly over an already-open DiskFile, using
// the default worker count. Primarily for tests driving a MemDiskFile.
func NewPool(disk DiskFile, frames, blocksPerPage int) (*Pool, error) {
	return newPool(disk, frames, blocksPerPage, defaultDispatcherWorkers)
}

// NewPoolWithWorkers is like NewPool but lets the caller pin the
// dispatcher's worker count, e.g. to 1 for deterministic ordering tests.
func NewPoolWithWorkers(disk DiskFile, frames, blocksPerPage, workers int) (*Pool, error) {
	return newPool(disk, frames, blocksPerPage, workers)
}

func newPool(disk DiskFile, frames, blocksPerPage, workers int) (*Pool, error) {
	if frames <= 0 {
		return nil, fmt.Errorf("bufferpool: frames must be positive, got %d", frames)
	}
	if blocksPerPage <= 0 {
		return nil, fmt.Errorf("bufferpool: blocks per page must be positive, got %d", blocksPerPage)
	}

	frameSize := blocksPerPage * disk.BlockSize()
	arena := newFrameArena(frames, frameSize)

	p := &Pool{
		disk:          disk,
		arena:         arena,
		frameSize:     frameSize,
		blocksPerPage: blocksPerPage,
		table:         newPageTable(),
		lru:           newLRUReplacer(),
		prioritizer:   newRequestPrioritizer(0),
		logger:        poollog.Default(),
	}

	p.entries = make([]*pageEntry, frames)
	for i := 0; i < frames; i++ {
		e := newPageEntry(arena.slice(i))
		p.entries[i] = e
		p.lru.markRecentlyUsed(e)
	}

	p.disp = newDispatcher(workers)
	return p, nil
}

// GetForRead resolves pageID, pinning it and taking its frame lock for
// shared read access. Blocks until the page is resident; never returns
// ErrNotFound.
func (p *Pool) GetForRead(pageID PageID) ([]byte, error) {
	if p.isFatal() {
		return nil, ErrFatal
	}
	e, err := p.resolveEntry(pageID)
	if err != nil {
		return nil, err
	}
	p.pin(e)
	e.frameLock.RLock()
	return e.frame, nil
}

// GetForWrite is GetForRead but takes the frame lock exclusively and
// marks the page dirty, since the caller is about to mutate it.
func (p *Pool) GetForWrite(pageID PageID) ([]byte, error) {
	if p.isFatal() {
		return nil, ErrFatal
	}
	e, err := p.resolveEntry(pageID)
	if err != nil {
		return nil, err
	}
	p.pin(e)
	e.frameLock.Lock()
	e.metaLock.Lock()
	e.isDirty = true
	e.metaLock.Unlock()
	return e.frame, nil
}

// ReleaseRead releases a frame lock taken by GetForRead and unpins the
// page. Once the pin count reaches zero the entry becomes eligible for
// eviction again.
func (p *Pool) ReleaseRead(pageID PageID) error {
	e, ok := p.table.lookup(pageID)
	if !ok {
		return fmt.Errorf("bufferpool: release_read on unresident page %d: %w", pageID, ErrNotFound)
	}
	e.frameLock.RUnlock()
	p.unpin(e)
	return nil
}

// ReleaseWrite releases a frame lock taken by GetForWrite and unpins the
// page. If the page is dirty, a fire-and-forget cleanup job may be
// submitted to write it back early.
func (p *Pool) ReleaseWrite(pageID PageID) error {
	e, ok := p.table.lookup(pageID)
	if !ok {
		return fmt.Errorf("bufferpool: release_write on unresident page %d: %w", pageID, ErrNotFound)
	}
	e.frameLock.Unlock()
	p.unpin(e)
	p.submitCleanup(e)
	return nil
}

func (p *Pool) pin(e *pageEntry) {
	e.metaLock.Lock()
	e.pinCount++
	e.metaLock.Unlock()
	p.lru.removeIfPresent(e)
}

func (p *Pool) unpin(e *pageEntry) {
	e.metaLock.Lock()
	e.pinCount--
	reachedZero := e.pinCount == 0
	e.metaLock.Unlock()
	if reachedZero {
		p.lru.markRecentlyUsed(e)
	}
}

// resolveEntry returns the resident entry for pageID, running the async
// fault protocol if it is currently absent.
func (p *Pool) resolveEntry(pageID PageID) (*pageEntry, error) {
	if e, ok := p.table.lookup(pageID); ok {
		return e, nil
	}
	req, err := p.prioritizer.enqueue(pageID, basePriority)
	if err != nil {
		return nil, err
	}
	p.disp.submit(p.replaceTask)
	e := req.wait()
	if e == nil {
		if p.isFatal() {
			return nil, fmt.Errorf("bufferpool: fault for page %d: %w", pageID, p.lastFatalErr())
		}
		return nil, ErrFatal
	}
	return e, nil
}

// replaceTask is the page-fault protocol. It pops the highest-priority
// pending request, reads the page into a scratch buffer with no entry
// lock held, then finds an unpinned victim to install it into.
func (p *Pool) replaceTask() {
	req := p.prioritizer.popHighest()
	if req == nil {
		return
	}
	pageID := req.pageID

	if e, ok := p.table.lookup(pageID); ok {
		req.fulfill(e)
		return
	}

	tmp := make([]byte, p.frameSize)
	if err := p.readPageFromDisk(tmp, pageID); err != nil {
		p.markFatal(fmt.Errorf("bufferpool: fault read page %d: %w", pageID, err))
		req.fulfill(nil)
		return
	}

	var victim *pageEntry
outer:
	for {
		if !p.lru.waitUntilNonEmpty() {
			req.fulfill(nil)
			return
		}
		for {
			cand := p.lru.pickVictim()
			if cand == nil {
				break
			}
			cand.metaLock.Lock()
			if cand.pinCount != 0 {
				cand.metaLock.Unlock()
				continue
			}
			if cand.isFree {
				victim = cand
				break outer
			}
			if cand.isDirty {
				cand.frameLock.RLock()
				if err := p.writePageToDisk(cand.frame, cand.pageID); err != nil {
					p.logger.Printf("eviction writeback for page %d failed, evicting anyway: %v", cand.pageID, err)
				}
				cand.frameLock.RUnlock()
				cand.isDirty = false
			}
			if p.prioritizer.discardIfUnreferenced(cand.pageID) {
				// page_table.remove is called here, with cand.metaLock
				// still held, deliberately: it mirrors the fault
				// protocol's own eviction step exactly. No other path
				// holds the page table lock while waiting on a
				// specific entry's metaLock, so this does not open a
				// deadlock cycle despite reversing the usual order.
				p.table.remove(cand.pageID)
				victim = cand
				break outer
			}
			cand.metaLock.Unlock()
		}
	}

	// Another task may have raced ahead and already installed K while
	// this one was reading from disk without holding any entry lock.
	if e, ok := p.table.lookup(pageID); ok {
		victim.isFree = true
		victim.metaLock.Unlock()
		p.lru.markStale(victim)
		req.fulfill(e)
		return
	}

	victim.frameLock.Lock()
	copy(victim.frame, tmp)
	victim.pageID = pageID
	victim.expectedPageID = pageID
	victim.isFree = false
	victim.frameLock.Unlock()
	victim.metaLock.Unlock()

	p.table.insert(pageID, victim)
	p.lru.markRecentlyUsed(victim)
	req.fulfill(victim)
}

// submitCleanup fires off a write-back job for e if it is dirty and no
// cleanup job is already outstanding for it. Fire-and-forget: the
// caller does not wait for the write to land.
func (p *Pool) submitCleanup(e *pageEntry) {
	e.metaLock.Lock()
	shouldQueue := e.isDirty && !e.isQueuedForCleanup
	if shouldQueue {
		e.isQueuedForCleanup = true
	}
	e.metaLock.Unlock()
	if !shouldQueue {
		return
	}
	p.disp.submit(func() { p.cleanupTask(e) })
}

// submitCleanupAndWait is submitCleanup's synchronous sibling: it blocks
// until the write-back completes, then re-inserts e at the LRU's stale
// end if it is currently unpinned. If a fire-and-forget job is already
// outstanding for a dirty e, it writes e directly instead of queueing a
// second job, so it still returns only after a write has landed.
func (p *Pool) submitCleanupAndWait(e *pageEntry) {
	e.metaLock.Lock()
	dirty := e.isDirty
	shouldQueue := dirty && !e.isQueuedForCleanup
	if shouldQueue {
		e.isQueuedForCleanup = true
	}
	e.metaLock.Unlock()
	if !shouldQueue {
		if dirty {
			e.frameLock.RLock()
			err := p.writePageToDisk(e.frame, e.pageID)
			e.frameLock.RUnlock()
			if err != nil {
				p.markFatal(fmt.Errorf("bufferpool: force flush page %d: %w", e.pageID, err))
			}
		}
		return
	}

	done := make(chan struct{})
	p.disp.submit(func() {
		p.cleanupTask(e)
		close(done)
	})
	<-done

	e.metaLock.Lock()
	unpinned := e.pinCount == 0
	e.metaLock.Unlock()
	if unpinned {
		p.lru.markStale(e)
	}
}

func (p *Pool) cleanupTask(e *pageEntry) {
	e.metaLock.Lock()
	dirty := e.isDirty
	e.metaLock.Unlock()

	if dirty {
		e.frameLock.RLock()
		err := p.writePageToDisk(e.frame, e.pageID)
		e.frameLock.RUnlock()
		if err != nil {
			p.logger.Printf("cleanup writeback for page %d failed: %v", e.pageID, err)
			p.markFatal(fmt.Errorf("bufferpool: cleanup writeback page %d: %w", e.pageID, err))
		} else {
			e.metaLock.Lock()
			e.isDirty = false
			e.metaLock.Unlock()
		}
	}

	e.metaLock.Lock()
	e.isQueuedForCleanup = false
	e.metaLock.Unlock()
}

// ForceFlush synchronously writes pageID back to disk if it is resident
// and dirty, via the submit-and-wait cleanup job, and is a no-op if the
// page is absent or clean.
func (p *Pool) ForceFlush(pageID PageID) error {
	e, ok := p.table.lookup(pageID)
	if !ok {
		return nil
	}
	p.submitCleanupAndWait(e)
	if p.isFatal() {
		return fmt.Errorf("bufferpool: force flush page %d: %w", pageID, p.lastFatalErr())
	}
	return nil
}

// AllocateNewPage extends the heap file by one page and returns its ID.
func (p *Pool) AllocateNewPage() (PageID, error) {
	p.table.lockExclusive()
	defer p.table.unlockExclusive()

	blockCount, err := p.disk.BlockCount()
	if err != nil {
		return 0, fmt.Errorf("bufferpool: allocate page: %w", err)
	}
	if err := p.disk.Extend(int64(p.blocksPerPage)); err != nil {
		return 0, fmt.Errorf("bufferpool: allocate page: %w", err)
	}
	return PageID(blockCount / int64(p.blocksPerPage)), nil
}

// Prefetch hints that the n pages starting at pageID will likely be
// needed soon, and enqueues fault requests for any not already resident,
// at a lower priority than ordinary reads/writes. Best-effort: a
// resource-exhausted prioritizer simply drops the remaining hints.
func (p *Pool) Prefetch(pageID PageID, n int) {
	for i := 0; i < n; i++ {
		target := pageID + PageID(i)
		if _, ok := p.table.lookup(target); ok {
			continue
		}
		if _, err := p.prioritizer.enqueue(target, prefetchPriority); err != nil {
			return
		}
		p.disp.submit(p.replaceTask)
	}
}

// Shutdown flushes every dirty resident page, stops the dispatcher and
// closes the underlying DiskFile. It returns an error if any flush, or
// any operation recorded earlier, failed fatally.
func (p *Pool) Shutdown() error {
	var resident []*pageEntry
	p.table.forEach(func(e *pageEntry) { resident = append(resident, e) })
	for _, e := range resident {
		e.metaLock.Lock()
		dirty := e.isDirty
		e.metaLock.Unlock()
		if dirty {
			e.frameLock.RLock()
			err := p.writePageToDisk(e.frame, e.pageID)
			e.frameLock.RUnlock()
			if err != nil {
				p.markFatal(fmt.Errorf("bufferpool: shutdown flush page %d: %w", e.pageID, err))
			} else {
				e.metaLock.Lock()
				e.isDirty = false
				e.metaLock.Unlock()
			}
		}
	}

	p.lru.close()
	p.disp.shutdown()

	if err := p.disk.Close(); err != nil {
		p.markFatal(fmt.Errorf("bufferpool: close disk file: %w", err))
	}

	if p.isFatal() {
		return fmt.Errorf("bufferpool: shutdown completed with a prior fatal error: %w", p.lastFatalErr())
	}
	return nil
}

// Close is an alias for Shutdown.
func (p *Pool) Close() error {
	return p.Shutdown()
}

// Capacity returns M, the fixed number of resident frames.
func (p *Pool) Capacity() int {
	return len(p.entries)
}

func (p *Pool) readPageFromDisk(buf []byte, pageID PageID) error {
	if err := p.disk.ReadAt(buf, int64(pageID)*int64(p.blocksPerPage), int64(p.blocksPerPage)); err != nil {
		return fmt.Errorf("%w: read page %d: %v", ErrIO, pageID, err)
	}
	return nil
}

func (p *Pool) writePageToDisk(buf []byte, pageID PageID) error {
	if err := p.disk.WriteAt(buf, int64(pageID)*int64(p.blocksPerPage), int64(p.blocksPerPage)); err != nil {
		return fmt.Errorf("%w: write page %d: %v", ErrIO, pageID, err)
	}
	return nil
}

func (p *Pool) markFatal(err error) {
	p.fatalMu.Lock()
	if p.fatalErr == nil {
		p.fatalErr = err
	}
	p.fatalMu.Unlock()
	p.fatalFlag.Store(true)
}

func (p *Pool) isFatal() bool { return p.fatalFlag.Load() }

func (p *Pool) lastFatalErr() error {
	p.fatalMu.Lock()
	defer p.fatalMu.Unlock()
	return p.fatalErr
}
