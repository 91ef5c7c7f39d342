// Package wasm holds decoded module metadata (spec C3), the runtime object
// model instantiation produces (spec C6: Memory, Table, Global), and the
// Cluster and Instantiate (linker.go) that wire imports together (spec C7);
// running the start function is left to the caller. Function bodies are validated and lowered to IR lazily
// by internal/validator; this package only decodes the binary container.
package wasm

import (
	"github.com/wasmine/wasmine/internal/ir"
	"github.com/wasmine/wasmine/internal/typeregistry"
)

// ExternKind discriminates the four kinds of importable/exportable surface.
type ExternKind byte

const (
	ExternKindFunc ExternKind = iota
	ExternKindTable
	ExternKindMemory
	ExternKindGlobal
)

func (k ExternKind) String() string {
	switch k {
	case ExternKindFunc:
		return "func"
	case ExternKindTable:
		return "table"
	case ExternKindMemory:
		return "memory"
	case ExternKindGlobal:
		return "global"
	default:
		return "unknown"
	}
}

// Limits bounds a Table's or Memory's size, in table elements or 64KiB
// memory pages respectively.
type Limits struct {
	Min     uint32
	Max     uint32
	HasMax  bool
}

// Import names a module/field pair to resolve at instantiation time, with
// the extern description pinning what kind of item it must resolve to.
type Import struct {
	Module string
	Name   string
	Kind   ExternKind

	// Exactly one of the following is populated, selected by Kind.
	TypeID     ir.TypeID // ExternKindFunc
	TableType  TableType // ExternKindTable
	MemoryType Limits    // ExternKindMemory
	GlobalType GlobalType
}

// TableType describes a table's element type and size limits.
type TableType struct {
	ElemType ir.ValType
	Limits   Limits
}

// GlobalType describes a global's value type and mutability.
type GlobalType struct {
	Type    ir.ValType
	Mutable bool
}

// ConstExpr is a decoded constant expression: exactly one instruction
// (i32/i64/f32/f64.const, global.get of an imported global, ref.null,
// ref.func), per spec 4.1 "constant expressions are not general bytecode".
type ConstExpr struct {
	Opcode byte
	// Exactly one field below is meaningful, selected by Opcode.
	I32Value    int32
	I64Value    int64
	F32Value    float32
	F64Value    float64
	GlobalIndex uint32
	FuncIndex   uint32
	RefType     ir.ValType // for ref.null
}

// Global is a module-defined (non-imported) global.
type Global struct {
	Type GlobalType
	Init ConstExpr
}

// ElementMode discriminates how an element segment is installed (spec's
// active/passive/declarative, bulk-memory-operations).
type ElementMode byte

const (
	ElementModeActive ElementMode = iota
	ElementModePassive
	ElementModeDeclarative
)

// ElementSegment initializes a table range (active) or stages function
// references for later table.init (passive), or exists only to mark
// functions reference-able without a live table write (declarative).
type ElementSegment struct {
	Mode       ElementMode
	TableIndex uint32 // ElementModeActive only
	Offset     ConstExpr // ElementModeActive only
	ElemType   ir.ValType
	// Funcs holds direct function indices when every init expr is ref.func;
	// Exprs holds arbitrary const exprs otherwise (reference-types allows
	// ref.null and imported-global-sourced funcrefs inside element segments).
	Funcs []uint32
	Exprs []ConstExpr
}

// DataMode discriminates active vs. passive data segments.
type DataMode byte

const (
	DataModeActive DataMode = iota
	DataModePassive
)

// DataSegment initializes a memory range (active) or stages bytes for later
// memory.init (passive).
type DataSegment struct {
	Mode       DataMode
	MemoryIndex uint32 // DataModeActive only
	Offset      ConstExpr // DataModeActive only
	Bytes       []byte
}

// Code is an internal function's undecoded body: its declared local groups
// plus the raw instruction byte stream, kept lazy until internal/validator
// lowers it to IR on first use (spec C5 is invoked per-function, not
// eagerly for the whole module, mirroring the teacher's lazy compilation).
type Code struct {
	Locals []ir.ValType // expanded from (count, valtype) pairs, params excluded
	Body   []byte
}

// Export names a module-internal item visible to instantiators.
type Export struct {
	Name  string
	Kind  ExternKind
	Index uint32
}

// Module is the fully decoded, section-level metadata of one Wasm binary.
// Nothing here has been validated against index bounds or stack-typing
// rules yet beyond what decoding itself enforces (spec 4.4.5 malformed vs.
// invalid split); internal/validator performs the rest.
type Module struct {
	TypeSection []ir.TypeID // FuncType already interned via typeregistry

	Imports []Import

	// FunctionTypes[i] is the TypeID of internally-defined function i (module
	// index space continues after imported functions).
	FunctionTypes []ir.TypeID
	Codes         []Code // parallel to FunctionTypes

	Tables  []TableType
	Memories []Limits
	Globals []Global
	Exports []Export

	HasStart bool
	Start    uint32

	Elements []ElementSegment

	HasDataCount bool
	DataCount    uint32
	Data         []DataSegment

	// NumImportedFuncs/.../NumImportedGlobals let callers translate a module
	// index into "imported" vs. "internal" without rescanning Imports.
	NumImportedFuncs    int
	NumImportedTables   int
	NumImportedMemories int
	NumImportedGlobals  int

	registry *typeregistry.Registry
}

// TypeOf resolves the FuncType of function idx in the combined index space,
// satisfying internal/validator's ModuleEnv interface.
func (m *Module) TypeOf(idx uint32) *ir.FuncType {
	return m.registry.Lookup(m.FuncTypeID(idx))
}

// GlobalTypeAt resolves global idx (imported or internal) in the combined
// index space.
func (m *Module) GlobalTypeAt(idx uint32) (ir.ValType, bool, bool) {
	if int(idx) < m.NumImportedGlobals {
		i := 0
		for _, imp := range m.Imports {
			if imp.Kind != ExternKindGlobal {
				continue
			}
			if uint32(i) == idx {
				return imp.GlobalType.Type, imp.GlobalType.Mutable, true
			}
			i++
		}
		return 0, false, false
	}
	j := int(idx) - m.NumImportedGlobals
	if j >= len(m.Globals) {
		return 0, false, false
	}
	g := m.Globals[j]
	return g.Type.Type, g.Type.Mutable, true
}

// TableTypeAt resolves table idx (imported or internal) in the combined
// index space.
func (m *Module) TableTypeAt(idx uint32) (ir.ValType, bool) {
	if int(idx) < m.NumImportedTables {
		i := 0
		for _, imp := range m.Imports {
			if imp.Kind != ExternKindTable {
				continue
			}
			if uint32(i) == idx {
				return imp.TableType.ElemType, true
			}
			i++
		}
		return 0, false
	}
	j := int(idx) - m.NumImportedTables
	if j >= len(m.Tables) {
		return 0, false
	}
	return m.Tables[j].ElemType, true
}

// NumTables reports the combined import+internal table count.
func (m *Module) NumTables() int { return m.NumImportedTables + len(m.Tables) }

// NumGlobals reports the combined import+internal global count.
func (m *Module) NumGlobals() int { return m.NumImportedGlobals + len(m.Globals) }

// HasMemory reports whether the module has a memory (imported or internal);
// decode already enforces at most one.
func (m *Module) HasMemory() bool {
	return m.NumImportedMemories+len(m.Memories) > 0
}

// DataSegmentCount reports the number of data segments, used by the
// validator to bounds-check data.drop/memory.init segment indices ahead of
// the DataCount section being mandatory under bulk-memory-operations.
func (m *Module) DataSegmentCount() uint32 { return uint32(len(m.Data)) }

// ElemSegmentCount reports the number of element segments.
func (m *Module) ElemSegmentCount() uint32 { return uint32(len(m.Elements)) }

// TypeByID exposes the registry lookup for types resolved via the Type
// section, used when validating call_indirect's declared type index.
func (m *Module) TypeByID(id ir.TypeID) *ir.FuncType { return m.registry.Lookup(id) }

// TypeAtIndex resolves a raw type-section index to its FuncType.
func (m *Module) TypeAtIndex(idx uint32) (*ir.FuncType, bool) {
	if int(idx) >= len(m.TypeSection) {
		return nil, false
	}
	return m.registry.Lookup(m.TypeSection[idx]), true
}

// TypeIDAtIndex resolves a raw type-section index to its interned TypeID.
func (m *Module) TypeIDAtIndex(idx uint32) (ir.TypeID, bool) {
	if int(idx) >= len(m.TypeSection) {
		return 0, false
	}
	return m.TypeSection[idx], true
}

// FuncTypeID returns the interned TypeID of function idx in the combined
// (imported ++ internal) function index space.
func (m *Module) FuncTypeID(idx uint32) ir.TypeID {
	if int(idx) < m.NumImportedFuncs {
		i := 0
		for _, imp := range m.Imports {
			if imp.Kind != ExternKindFunc {
				continue
			}
			if uint32(i) == idx {
				return imp.TypeID
			}
			i++
		}
		panic("wasm: imported function index out of range after validation")
	}
	return m.FunctionTypes[int(idx)-m.NumImportedFuncs]
}

// NumFuncs returns the total size of the function index space.
func (m *Module) NumFuncs() int {
	return m.NumImportedFuncs + len(m.FunctionTypes)
}
