package bufferpool

import (
	"fmt"
	"os"
	"sync"
)

// DefaultBlockSize is the block size assumed by Open when the caller
// does not manage the underlying file directly.
const DefaultBlockSize = 512

// DiskFile is the minimal block-addressed storage surface the pool
// drives. A page spans a fixed run of blocks starting at pageID *
// blocksPerPage.
type DiskFile interface {
	BlockSize() int
	BlockCount() (int64, error)
	Extend(nBlocks int64) error
	ReadAt(buf []byte, startBlock, nBlocks int64) error
	WriteAt(buf []byte, startBlock, nBlocks int64) error
	Close() error
}

// osDiskFile backs a DiskFile with a real file on disk.
type osDiskFile struct {
	f         *os.File
	blockSize int
	mu        sync.Mutex
}

// OpenDiskFile opens (creating if necessary) the file at path as a
// DiskFile with the given block size.
func OpenDiskFile(path string, blockSize int) (DiskFile, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0o600)
	if err != nil {
		return nil, err
	}
	return &osDiskFile{f: f, blockSize: blockSize}, nil
}

func (d *osDiskFile) BlockSize() int { return d.blockSize }

func (d *osDiskFile) BlockCount() (int64, error) {
	info, err := d.f.Stat()
	if err != nil {
		return 0, err
	}
	return info.Size() / int64(d.blockSize), nil
}

func (d *osDiskFile) Extend(nBlocks int64) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	info, err := d.f.Stat()
	if err != nil {
		return err
	}
	return d.f.Truncate(info.Size() + nBlocks*int64(d.blockSize))
}

func (d *osDiskFile) ReadAt(buf []byte, startBlock, nBlocks int64) error {
	need := nBlocks * int64(d.blockSize)
	if int64(len(buf)) < need {
		return fmt.Errorf("bufferpool: read buffer too small: need %d, have %d", need, len(buf))
	}
	_, err := d.f.ReadAt(buf[:need], startBlock*int64(d.blockSize))
	return err
}

func (d *osDiskFile) WriteAt(buf []byte, startBlock, nBlocks int64) error {
	need := nBlocks * int64(d.blockSize)
	if int64(len(buf)) < need {
		return fmt.Errorf("bufferpool: write buffer too small: need %d, have %d", need, len(buf))
	}
	_, err := d.f.WriteAt(buf[:need], startBlock*int64(d.blockSize))
	return err
}

func (d *osDiskFile) Close() error { return d.f.Close() }

// MemDiskFile is an in-memory DiskFile, for tests that want to exercise
// the pool's fault and eviction paths without touching a real file.
type MemDiskFile struct {
	mu        sync.Mutex
	blockSize int
	blocks    [][]byte
}

func NewMemDiskFile(blockSize int) *MemDiskFile {
	return &MemDiskFile{blockSize: blockSize}
}

func (d *MemDiskFile) BlockSize() int { return d.blockSize }

func (d *MemDiskFile) BlockCount() (int64, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return int64(len(d.blocks)), nil
}

func (d *MemDiskFile) Extend(nBlocks int64) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	for i := int64(0); i < nBlocks; i++ {
		d.blocks = append(d.blocks, make([]byte, d.blockSize))
	}
	return nil
}

func (d *MemDiskFile) ReadAt(buf []byte, startBlock, nBlocks int64) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	for i := int64(0); i < nBlocks; i++ {
		dst := buf[i*int64(d.blockSize) : (i+1)*int64(d.blockSize)]
		idx := startBlock + i
		if idx < int64(len(d.blocks)) {
			copy(dst, d.blocks[idx])
		} else {
			for j := range dst {
				dst[j] = 0
			}
		}
	}
	return nil
}

func (d *MemDiskFile) WriteAt(buf []byte, startBlock, nBlocks int64) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	for i := int64(0); i < nBlocks; i++ {
		idx := startBlock + i
		for idx >= int64(len(d.blocks)) {
			d.blocks = append(d.blocks, make([]byte, d.blockSize))
		}
		copy(d.blocks[idx], buf[i*int64(d.blockSize):(i+1)*int64(d.blockSize)])
	}
	return nil
}

func (d *MemDiskFile) Close() error { return nil }
