package bufferpool

import "errors"

var (
	// ErrIO wraps a failure from the underlying DiskFile.
	ErrIO = errors.New("bufferpool: io error")
	// ErrNotFound is returned by release operations on a page_id that
	// is not currently resident.
	ErrNotFound = errors.New("bufferpool: page not resident")
	// ErrResourceExhausted is returned by enqueue when the request
	// prioritizer's bound has been reached.
	ErrResourceExhausted = errors.New("bufferpool: request prioritizer exhausted")
	// ErrFatal is returned once the pool has recorded an unrecoverable
	// I/O failure; see Pool.markFatal.
	ErrFatal = errors.New("bufferpool: fatal pool state")
)
