package wasm

import (
	"sync"

	"golang.org/x/sys/unix"

	"github.com/wasmine/wasmine/internal/moduleerrors"
)

// PageSize is the Wasm linear-memory page size (spec C6).
const PageSize = 65536

// maxPages bounds memory.grow's argument range: 4GiB of address space is the
// largest a 32-bit Wasm memory can ever reach.
const maxPages = (1 << 32) / PageSize

// Memory is a growable linear memory backed by a single virtual-memory
// reservation of the full 4GiB address range; growing commits additional
// pages via mprotect instead of reallocating and copying, so pointers handed
// to host code remain valid across growth (spec C6 "Memory").
type Memory struct {
	mu sync.Mutex

	reserved []byte // mmap'd PROT_NONE reservation, len == 4GiB
	pages    uint32 // pages currently committed (PROT_READ|PROT_WRITE)
	min, max uint32
	hasMax   bool
}

// NewMemory reserves a Memory's full address space and commits its initial
// pages. The reservation itself costs no physical memory until pages are
// committed.
func NewMemory(lim Limits) (*Memory, error) {
	reserved, err := unix.Mmap(-1, 0, maxPages*PageSize, unix.PROT_NONE, unix.MAP_PRIVATE|unix.MAP_ANON)
	if err != nil {
		return nil, moduleerrors.Unlinkable("reserving memory address space: %v", err)
	}
	m := &Memory{reserved: reserved, min: lim.Min, max: lim.Max, hasMax: lim.HasMax}
	if lim.Min > 0 {
		if err := unix.Mprotect(reserved[:uint64(lim.Min)*PageSize], unix.PROT_READ|unix.PROT_WRITE); err != nil {
			unix.Munmap(reserved)
			return nil, moduleerrors.Unlinkable("committing initial memory pages: %v", err)
		}
	}
	m.pages = lim.Min
	return m, nil
}

// Close releases the memory's virtual address reservation. Safe to call
// once per Memory, typically from Cluster teardown.
func (m *Memory) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.reserved == nil {
		return nil
	}
	err := unix.Munmap(m.reserved)
	m.reserved = nil
	return err
}

// Size returns the current size in pages.
func (m *Memory) Size() uint32 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.pages
}

// Bytes returns a slice over the currently committed region. Callers must
// not retain it across a concurrent Grow, since the slice bounds (not the
// backing array) change.
func (m *Memory) Bytes() []byte {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.reserved[:uint64(m.pages)*PageSize]
}

// Grow attempts to add delta pages, returning the previous size on success
// or -1 if the request would exceed the memory's max (explicit or the
// 4GiB/32-bit implicit ceiling), per spec C6 "Grow".
func (m *Memory) Grow(delta uint32) int32 {
	m.mu.Lock()
	defer m.mu.Unlock()
	if delta == 0 {
		return int32(m.pages)
	}
	newPages := uint64(m.pages) + uint64(delta)
	if newPages > maxPages {
		return -1
	}
	if m.hasMax && newPages > uint64(m.max) {
		return -1
	}
	old := m.pages
	start := uint64(m.pages) * PageSize
	length := uint64(delta) * PageSize
	if err := unix.Mprotect(m.reserved[start:start+length], unix.PROT_READ|unix.PROT_WRITE); err != nil {
		return -1
	}
	m.pages = uint32(newPages)
	return int32(old)
}
