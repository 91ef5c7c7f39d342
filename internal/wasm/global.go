package wasm

import (
	"sync/atomic"

	"github.com/wasmine/wasmine/internal/ir"
)

// GlobalInstance is an instantiated global variable slot: a typed,
// optionally-mutable holder of a RawValue (spec C6 "Global"). Mutable
// globals are written from both interpreter-owned instructions and
// potentially concurrent host accessors, so the value is stored atomically
// rather than behind a mutex.
type GlobalInstance struct {
	Type    GlobalType
	rawBits uint64
}

// NewGlobalInstance creates a global initialized to init.
func NewGlobalInstance(t GlobalType, init ir.RawValue) *GlobalInstance {
	return &GlobalInstance{Type: t, rawBits: init}
}

// Get reads the current value.
func (g *GlobalInstance) Get() ir.RawValue {
	return atomic.LoadUint64(&g.rawBits)
}

// Set writes a new value. Callers (the validator) are responsible for
// rejecting writes to immutable globals before this is ever called; Set
// itself performs no mutability check, matching the interpreter's general
// policy of trusting validated IR.
func (g *GlobalInstance) Set(v ir.RawValue) {
	atomic.StoreUint64(&g.rawBits, v)
}
