package bufferpool

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigReadsYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bufferpool.yaml")
	contents := "path: /tmp/heap.db\nframes: 64\nblocks_per_page: 4\nworkers: 2\n"
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o600))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "/tmp/heap.db", cfg.Path)
	assert.Equal(t, 64, cfg.Frames)
	assert.Equal(t, 4, cfg.BlocksPerPage)
	assert.Equal(t, 2, cfg.Workers)
}

func TestLoadConfigAppliesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bufferpool.yaml")
	require.NoError(t, os.WriteFile(path, []byte("path: /tmp/heap.db\nframes: 16\n"), 0o600))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, 8, cfg.BlocksPerPage)
	assert.Equal(t, defaultDispatcherWorkers, cfg.Workers)
}

func TestLoadConfigMissingFile(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "does-not-exist.yaml"))
	assert.Error(t, err)
}
