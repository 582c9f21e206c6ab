package bufferpool

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemDiskFileExtendAndReadWrite(t *testing.T) {
	d := NewMemDiskFile(512)

	count, err := d.BlockCount()
	require.NoError(t, err)
	assert.Equal(t, int64(0), count)

	require.NoError(t, d.Extend(4))
	count, err = d.BlockCount()
	require.NoError(t, err)
	assert.Equal(t, int64(4), count)

	buf := make([]byte, 512)
	copy(buf, "payload")
	require.NoError(t, d.WriteAt(buf, 2, 1))

	out := make([]byte, 512)
	require.NoError(t, d.ReadAt(out, 2, 1))
	assert.Equal(t, "payload", string(out[:7]))
}

func TestMemDiskFileReadPastEndReturnsZeros(t *testing.T) {
	d := NewMemDiskFile(512)
	require.NoError(t, d.Extend(1))

	out := make([]byte, 1024)
	for i := range out {
		out[i] = 0xFF
	}
	require.NoError(t, d.ReadAt(out, 0, 2))
	assert.Equal(t, make([]byte, 512), out[512:])
}

func TestOSDiskFilePersistsAcrossOpens(t *testing.T) {
	path := filepath.Join(t.TempDir(), "heap.db")

	d, err := OpenDiskFile(path, 512)
	require.NoError(t, err)
	require.NoError(t, d.Extend(1))

	buf := make([]byte, 512)
	copy(buf, "durable")
	require.NoError(t, d.WriteAt(buf, 0, 1))
	require.NoError(t, d.Close())

	reopened, err := OpenDiskFile(path, 512)
	require.NoError(t, err)
	defer reopened.Close()

	out := make([]byte, 512)
	require.NoError(t, reopened.ReadAt(out, 0, 1))
	assert.Equal(t, "durable", string(out[:7]))
}
