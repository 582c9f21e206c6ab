package bufferpool

import (
	"container/list"
	"sync"
)

// PageID identifies a fixed-size page within the heap file.
type PageID int64

// pageEntry is one resident frame slot. Its frame byte slice is assigned
// once, at pool construction, and never moves; only the page_id it
// currently holds changes across its lifetime.
//
// Lock order for a single entry: frameLock is acquired by readers/writers
// of the page bytes, metaLock guards everything else (pageID, isDirty,
// isQueuedForCleanup, pinCount, lruElem). A caller may hold metaLock and
// then take frameLock. The one path that nests them the other way is
// GetForWrite: after pinning the entry it holds frameLock exclusively and
// takes metaLock briefly to set isDirty.
type pageEntry struct {
	pageID             PageID
	expectedPageID     PageID
	frame              []byte
	isFree             bool
	isDirty            bool
	isQueuedForCleanup bool
	pinCount           int

	frameLock sync.RWMutex
	metaLock  sync.Mutex

	lruElem *list.Element
}

func newPageEntry(frame []byte) *pageEntry {
	return &pageEntry{frame: frame, isFree: true}
}
