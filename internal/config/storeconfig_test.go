package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultStoreConfigMatchesStatedDefaults(t *testing.T) {
	cfg := DefaultStoreConfig()
	assert.Equal(t, 10000, cfg.CacheSize)
	assert.False(t, cfg.SyncOnWrite)
	assert.Equal(t, 512, cfg.DuplicateLimit)
}

func TestSaveAndLoadStoreConfigRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "partition.yaml")

	cfg := DefaultStoreConfig()
	cfg.Name = "example"
	cfg.SuffixDN = "dc=example,dc=com"
	cfg.IndexedAttributes = []string{"cn", "sn"}

	require.NoError(t, cfg.Save(path))

	loaded, err := LoadStoreConfig(path)
	require.NoError(t, err)
	assert.Equal(t, cfg.Name, loaded.Name)
	assert.Equal(t, cfg.SuffixDN, loaded.SuffixDN)
	assert.Equal(t, cfg.IndexedAttributes, loaded.IndexedAttributes)
	assert.Equal(t, cfg.CacheSize, loaded.CacheSize)
}

func TestLoadStoreConfigFillsInMissingDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "partial.yaml")
	require.NoError(t, os.WriteFile(path, []byte("name: bare\nsuffixDn: dc=bare\n"), 0644))

	cfg, err := LoadStoreConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "bare", cfg.Name)
	assert.Equal(t, DefaultStoreConfig().CacheSize, cfg.CacheSize)
	assert.Equal(t, DefaultStoreConfig().DuplicateLimit, cfg.DuplicateLimit)
}

func TestLoadStoreConfigRejectsMissingFile(t *testing.T) {
	_, err := LoadStoreConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestLifecycleAcquireReleaseAndBusy(t *testing.T) {
	dir := t.TempDir()

	l1 := NewLifecycle(dir)
	require.NoError(t, l1.Acquire())

	l2 := NewLifecycle(dir)
	err := l2.Acquire()
	assert.ErrorIs(t, err, ErrDirectoryBusy)

	require.NoError(t, l1.Release())
	require.NoError(t, l2.Acquire())
	require.NoError(t, l2.Release())
}

func TestLifecycleReleaseWithoutAcquireIsNoOp(t *testing.T) {
	l := NewLifecycle(t.TempDir())
	assert.NoError(t, l.Release())
}
