package wasm

import (
	"sync"

	"github.com/wasmine/wasmine/internal/ir"
)

// TableItem is one slot of a Table: either the null reference or a
// reference to a funcref (an index into the owning instance's function
// list) or externref (an opaque host-provided handle).
type TableItem struct {
	Null    bool
	FuncRef uint32 // valid funcref index when !Null and the table's ElemType is funcref
	ExternRef ir.Reference
}

var nullItem = TableItem{Null: true}

// Table is a growable, typed array of references (spec C6 "Table").
type Table struct {
	mu       sync.Mutex
	elemType ir.ValType
	items    []TableItem
	max      uint32
	hasMax   bool
}

// NewTable allocates a Table of lim.Min null references.
func NewTable(elemType ir.ValType, lim Limits) *Table {
	items := make([]TableItem, lim.Min)
	for i := range items {
		items[i] = nullItem
	}
	return &Table{elemType: elemType, items: items, max: lim.Max, hasMax: lim.HasMax}
}

// Size returns the current number of elements.
func (t *Table) Size() uint32 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return uint32(len(t.items))
}

// Get returns the item at idx, or ok=false if idx is out of bounds.
func (t *Table) Get(idx uint32) (TableItem, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if idx >= uint32(len(t.items)) {
		return TableItem{}, false
	}
	return t.items[idx], true
}

// Set overwrites the item at idx, returning ok=false if idx is out of bounds.
func (t *Table) Set(idx uint32, v TableItem) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if idx >= uint32(len(t.items)) {
		return false
	}
	t.items[idx] = v
	return true
}

// Grow appends delta copies of fill, returning the previous size or -1 if
// the request would exceed the table's max.
func (t *Table) Grow(delta uint32, fill TableItem) int32 {
	t.mu.Lock()
	defer t.mu.Unlock()
	old := uint32(len(t.items))
	newSize := uint64(old) + uint64(delta)
	if t.hasMax && newSize > uint64(t.max) {
		return -1
	}
	if newSize > (1 << 32) {
		return -1
	}
	grown := make([]TableItem, newSize)
	copy(grown, t.items)
	for i := old; uint64(i) < newSize; i++ {
		grown[i] = fill
	}
	t.items = grown
	return int32(old)
}

// Fill overwrites [dest, dest+size) with fill, reporting ok=false (no
// mutation performed) if the range is out of bounds.
func (t *Table) Fill(dest, size uint32, fill TableItem) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if uint64(dest)+uint64(size) > uint64(len(t.items)) {
		return false
	}
	for i := uint32(0); i < size; i++ {
		t.items[dest+i] = fill
	}
	return true
}

// CopyWithin copies size items from src to dest, handling overlap the same
// way table.copy requires (as-if through a temporary), reporting ok=false
// if either range is out of bounds.
func (t *Table) CopyWithin(dest, src, size uint32) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	n := uint64(len(t.items))
	if uint64(dest)+uint64(size) > n || uint64(src)+uint64(size) > n {
		return false
	}
	tmp := make([]TableItem, size)
	copy(tmp, t.items[src:src+size])
	copy(t.items[dest:dest+size], tmp)
	return true
}

// ElemType reports the table's declared element type.
func (t *Table) ElemType() ir.ValType { return t.elemType }
