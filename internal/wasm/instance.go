package wasm

import (
	"sync"

	"github.com/wasmine/wasmine/internal/ir"
	"github.com/wasmine/wasmine/internal/moduleerrors"
	"github.com/wasmine/wasmine/internal/validator"
)

// HostFunction is the raw calling convention every host-provided import
// reduces to: positional RawValue arguments in, positional RawValue results
// out. The root package's builder wraps idiomatic Go functions into this
// shape via reflection (spec's "Host" extern kind), keeping the interpreter
// itself free of any reflection.
type HostFunction func(inst *Instance, args []ir.RawValue) ([]ir.RawValue, error)

// FunctionInstance is one entry in an instance's combined function index
// space: either a reference to another instance's internal function
// (imported) or a lazily-lowered local function body.
type FunctionInstance struct {
	TypeID ir.TypeID

	// Exactly one of the following identifies the callable body.
	Host HostFunction // set for host/imported-host functions
	Home *Instance    // set for functions imported from another instance; Host/IR come from Home.Functions[HomeIndex]
	HomeIndex uint32

	mu   sync.Mutex
	ir   *ir.FunctionIR // set once Lower succeeds, for internal functions only
	code Code           // retained to lower lazily
	env  validator.ModuleEnv
	numParams int
	results   []ir.ValType
}

// IR lazily validates and lowers this function's body on first call,
// mirroring the teacher's lazy-compile-on-first-call engine behavior.
func (f *FunctionInstance) IR() (*ir.FunctionIR, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.ir != nil {
		return f.ir, nil
	}
	if f.Home != nil {
		return f.Home.Functions[f.HomeIndex].IR()
	}
	if f.Host != nil {
		return nil, nil
	}
	fn, err := validator.Lower(f.env, f.code.Locals, f.numParams, f.results, f.code.Body)
	if err != nil {
		return nil, err
	}
	f.ir = fn
	return fn, nil
}

// ExportInstance names one item visible to other instances.
type ExportInstance struct {
	Name string
	Kind ExternKind

	Function *FunctionInstance
	Table    *Table
	Memory   *Memory
	Global   *GlobalInstance
}

// Instance is a fully linked, instantiated module: every import resolved,
// every runtime object allocated, every element/data segment applied (spec
// C6/C7). It is the unit of execution the interpreter operates over.
type Instance struct {
	Module *Module

	Functions []*FunctionInstance
	Tables    []*Table
	Memories  []*Memory
	Globals   []*GlobalInstance

	Exports map[string]ExportInstance

	// DataSegments/ElemSegments share Module.Data/Elements. data.drop and
	// elem.drop leave them unchanged and mark the segment in droppedData or
	// droppedElem instead, after which DataBytes/ElemFuncs report ok=false.
	DataSegments []DataSegment
	ElemSegments []ElementSegment

	droppedData map[uint32]bool
	droppedElem map[uint32]bool

	Name string
}

// DropData marks a data segment dropped, per spec's data.drop.
func (inst *Instance) DropData(idx uint32) {
	if inst.droppedData == nil {
		inst.droppedData = make(map[uint32]bool)
	}
	inst.droppedData[idx] = true
}

// DataBytes returns segment idx's bytes, or ok=false if it was dropped.
func (inst *Instance) DataBytes(idx uint32) ([]byte, bool) {
	if inst.droppedData[idx] {
		return nil, false
	}
	return inst.DataSegments[idx].Bytes, true
}

// DropElem marks an element segment dropped, per spec's elem.drop.
func (inst *Instance) DropElem(idx uint32) {
	if inst.droppedElem == nil {
		inst.droppedElem = make(map[uint32]bool)
	}
	inst.droppedElem[idx] = true
}

// ElemFuncs returns segment idx's function indices, or ok=false if dropped.
func (inst *Instance) ElemFuncs(idx uint32) ([]uint32, bool) {
	if inst.droppedElem[idx] {
		return nil, false
	}
	return inst.ElemSegments[idx].Funcs, true
}

// ExportedFunction looks up a function export by name.
func (inst *Instance) ExportedFunction(name string) (*FunctionInstance, error) {
	e, ok := inst.Exports[name]
	if !ok || e.Kind != ExternKindFunc {
		return nil, moduleerrors.Unlinkable("no exported function named %q", name)
	}
	return e.Function, nil
}
