package wasmine

import (
	"bytes"
	"context"
	"crypto/sha256"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/wasmine/wasmine/internal/compilationcache"
	"github.com/wasmine/wasmine/internal/wasm"
)

// Cache persists decoded module metadata across Runtime.CompileModule calls,
// keyed by the sha256 of the input bytes. Unlike the teacher's JIT-era
// cache, there is no machine code to persist: what's expensive here is
// re-running decode's section walk and the type-registry interning, so the
// cache's on-disk payload is the already-decoded binary itself, re-decoded
// from a trusted source on hit instead of re-parsed from an untrusted one.
type Cache struct {
	mu      sync.RWMutex
	inMem   map[compilationcache.Key]*wasm.Module
	file    compilationcache.Cache
	decodeCfg wasm.DecodeConfig
}

// NewCache returns an in-memory-only Cache. Add a file-backed tier with
// WithFileDir.
func NewCache() *Cache {
	return &Cache{inMem: make(map[compilationcache.Key]*wasm.Module)}
}

// WithFileDir adds a file-backed tier rooted at dir, surviving process
// restarts. The directory is created if absent.
func (c *Cache) WithFileDir(dir string) (*Cache, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(abs, 0o700); err != nil {
		return nil, fmt.Errorf("wasmine: creating cache dir %s: %w", abs, err)
	}
	ctx := context.WithValue(context.Background(), compilationcache.FileCachePathKey{}, abs)
	c.file = compilationcache.NewFileCache(ctx)
	return c, nil
}

func cacheKey(wasmBytes []byte) compilationcache.Key {
	return sha256.Sum256(wasmBytes)
}

// getOrDecode returns the Module for wasmBytes, decoding and populating the
// cache on a miss.
func (c *Cache) getOrDecode(wasmBytes []byte) (*wasm.Module, error) {
	key := cacheKey(wasmBytes)

	c.mu.RLock()
	if m, ok := c.inMem[key]; ok {
		c.mu.RUnlock()
		return m, nil
	}
	c.mu.RUnlock()

	if c.file != nil {
		if rc, ok, err := c.file.Get(key); err == nil && ok {
			cached, readErr := io.ReadAll(rc)
			rc.Close()
			if readErr == nil {
				if m, decErr := wasm.DecodeModule(cached, c.decodeCfg); decErr == nil {
					c.store(key, m)
					return m, nil
				}
			}
		}
	}

	m, err := wasm.DecodeModule(wasmBytes, c.decodeCfg)
	if err != nil {
		return nil, err
	}
	c.store(key, m)
	if c.file != nil {
		_ = c.file.Add(key, bytes.NewReader(wasmBytes))
	}
	return m, nil
}

func (c *Cache) store(key compilationcache.Key, m *wasm.Module) {
	c.mu.Lock()
	c.inMem[key] = m
	c.mu.Unlock()
}
