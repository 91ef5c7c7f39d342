package wasmine

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

// emptyModule is the smallest valid Wasm binary: just the magic and version.
var emptyModule = []byte{0x00, 0x61, 0x73, 0x6d, 0x01, 0x00, 0x00, 0x00}

func TestCacheGetOrDecodeInMemoryHit(t *testing.T) {
	c := NewCache()
	m1, err := c.getOrDecode(emptyModule)
	require.NoError(t, err)

	m2, err := c.getOrDecode(emptyModule)
	require.NoError(t, err)
	require.Same(t, m1, m2)
}

func TestCacheGetOrDecodeInvalidBytes(t *testing.T) {
	c := NewCache()
	_, err := c.getOrDecode([]byte{0x00, 0x00, 0x00, 0x00})
	require.Error(t, err)
}

func TestCacheWithFileDirPersistsAcrossCaches(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "cache")

	c1, err := NewCache().WithFileDir(dir)
	require.NoError(t, err)
	_, err = c1.getOrDecode(emptyModule)
	require.NoError(t, err)

	c2, err := NewCache().WithFileDir(dir)
	require.NoError(t, err)
	m, err := c2.getOrDecode(emptyModule)
	require.NoError(t, err)
	require.NotNil(t, m)

	// Confirms the file tier, not just the in-memory tier, was populated.
	key := cacheKey(emptyModule)
	_, ok, err := c1.file.Get(key)
	require.NoError(t, err)
	require.True(t, ok)
}
