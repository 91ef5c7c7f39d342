// Package validator implements the function body decoder and validator
// (spec C5): a single forward pass over a function's instruction stream that
// simultaneously performs Wasm's stack-polymorphic type checking and lowers
// the validated structure directly into the basic-block IR (internal/ir),
// wiring phi nodes at every block join. This is the hardest piece of the
// decoder: structured control (block/loop/if/else) has no explicit target
// labels in the binary format, so the decoder maintains an implicit control
// stack and only discovers a branch's real target once the matching `end`
// (or, for loops, the loop header itself) is reached.
package validator

import "github.com/wasmine/wasmine/internal/ir"

// ModuleEnv is the read-only view of module-level context a function body
// needs to validate against: its own signature plus every other index space
// (types, globals, tables, memory, data/elem segment counts) in the
// combined import+internal numbering. internal/wasm's Module type satisfies
// this without validator importing wasm, avoiding an import cycle between
// decode-time metadata and function-body lowering.
type ModuleEnv interface {
	TypeOf(funcIdx uint32) *ir.FuncType
	NumFuncs() int
	GlobalTypeAt(idx uint32) (t ir.ValType, mutable bool, ok bool)
	NumGlobals() int
	TableTypeAt(idx uint32) (ir.ValType, bool)
	NumTables() int
	HasMemory() bool
	DataSegmentCount() uint32
	ElemSegmentCount() uint32
	TypeAtIndex(idx uint32) (*ir.FuncType, bool)
	TypeIDAtIndex(idx uint32) (ir.TypeID, bool)
}
