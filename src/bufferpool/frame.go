package bufferpool

// frameArena is a single contiguous allocation sliced into fixed-size
// frames, one per resident entry. The arena is sized once at pool
// construction and never resized or reshuffled; a frame's byte slice
// keeps the same backing address for the lifetime of the pool, only the
// page_id and contents it holds change.
type frameArena struct {
	buf       []byte
	frameSize int
}

func newFrameArena(count, frameSize int) *frameArena {
	return &frameArena{
		buf:       make([]byte, count*frameSize),
		frameSize: frameSize,
	}
}

func (a *frameArena) slice(idx int) []byte {
	return a.buf[idx*a.frameSize : (idx+1)*a.frameSize]
}
