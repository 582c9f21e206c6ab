package bufferpool

import (
	"container/heap"
	"sync"
)

const (
	basePriority     = 0
	prefetchPriority = -1
)

// pageRequest represents one or more callers waiting on the same page_id
// to be faulted in. refCount tracks how many callers are attached; done
// is closed exactly once, broadcasting the resolved entry to every
// waiter.
type pageRequest struct {
	pageID      PageID
	priority    int
	refCount    int
	done        chan struct{}
	result      *pageEntry
	indexInHeap int
}

func newPageRequest(id PageID, priority int) *pageRequest {
	return &pageRequest{pageID: id, priority: priority, refCount: 1, done: make(chan struct{}), indexInHeap: -1}
}

func (r *pageRequest) wait() *pageEntry {
	<-r.done
	return r.result
}

func (r *pageRequest) fulfill(e *pageEntry) {
	r.result = e
	close(r.done)
}

// requestHeap is a max-heap on priority, implementing container/heap.
type requestHeap []*pageRequest

func (h requestHeap) Len() int            { return len(h) }
func (h requestHeap) Less(i, j int) bool  { return h[i].priority > h[j].priority }
func (h requestHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].indexInHeap = i
	h[j].indexInHeap = j
}

func (h *requestHeap) Push(x any) {
	r := x.(*pageRequest)
	r.indexInHeap = len(*h)
	*h = append(*h, r)
}

func (h *requestHeap) Pop() any {
	old := *h
	n := len(old)
	r := old[n-1]
	old[n-1] = nil
	r.indexInHeap = -1
	*h = old[:n-1]
	return r
}

// requestPrioritizer holds the set of page faults currently awaiting
// service. Every enqueue that creates a new request ages every other
// queued request by one, so a request that keeps losing to newer arrivals
// eventually outranks them; no request starves indefinitely. An enqueue
// that attaches to an already-pending request bumps that request alone
// and does not age the others.
type requestPrioritizer struct {
	mu          sync.Mutex
	h           requestHeap
	index       map[PageID]*pageRequest
	maxRequests int
}

func newRequestPrioritizer(maxRequests int) *requestPrioritizer {
	return &requestPrioritizer{index: make(map[PageID]*pageRequest), maxRequests: maxRequests}
}

// enqueue attaches the caller to the existing request for pageID if one
// is pending and bumps it. Otherwise it ages every other pending request
// by one and creates a new request at the given priority. maxRequests
// == 0 means unbounded.
func (p *requestPrioritizer) enqueue(pageID PageID, priority int) (*pageRequest, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if req, ok := p.index[pageID]; ok {
		req.refCount++
		p.bumpLocked(req)
		return req, nil
	}
	if p.maxRequests > 0 && len(p.h) >= p.maxRequests {
		return nil, ErrResourceExhausted
	}

	for _, r := range p.h {
		r.priority++
	}
	heap.Init(&p.h)

	req := newPageRequest(pageID, priority)
	heap.Push(&p.h, req)
	p.index[pageID] = req
	return req, nil
}

// bump raises req's priority by one and re-seats it in the heap in
// O(log n), for a request that just gained another waiter rather than
// aging the whole queue.
func (p *requestPrioritizer) bump(req *pageRequest) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.bumpLocked(req)
}

// bumpLocked is bump's body, for callers that already hold p.mu.
func (p *requestPrioritizer) bumpLocked(req *pageRequest) {
	if req.indexInHeap < 0 {
		return
	}
	req.priority++
	heap.Fix(&p.h, req.indexInHeap)
}

// popHighest removes and returns the request with the greatest priority,
// or nil if none are queued. Once popped, the request is no longer
// discoverable by enqueue: a later fault for the same page_id starts a
// fresh request.
func (p *requestPrioritizer) popHighest() *pageRequest {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.h) == 0 {
		return nil
	}
	req := heap.Pop(&p.h).(*pageRequest)
	delete(p.index, req.pageID)
	return req
}

// discardIfUnreferenced reports whether it is safe to evict pageID: true
// unless some other caller currently has a live fault request pending
// for that exact page_id.
func (p *requestPrioritizer) discardIfUnreferenced(pageID PageID) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	_, stillReferenced := p.index[pageID]
	return !stillReferenced
}
