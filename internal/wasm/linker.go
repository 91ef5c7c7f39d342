package wasm

import (
	"github.com/wasmine/wasmine/internal/ir"
	"github.com/wasmine/wasmine/internal/moduleerrors"
)

// Instantiate resolves m's imports against imports (instances keyed by the
// module name they are imported from; cluster is not consulted), allocates every runtime
// object, applies active element/data segments, and returns the linked
// Instance (spec C7). It does not invoke the start function: callers that
// need spec 4.1's "instantiation implicitly calls start" behavior do so
// after Instantiate returns successfully, via an interpreter Engine, since
// this package has no dependency on instruction execution.
func Instantiate(m *Module, cluster *Cluster, imports map[string]*Instance) (*Instance, error) {
	inst := &Instance{
		Module:  m,
		Exports: make(map[string]ExportInstance),
	}

	if err := resolveImports(m, imports, inst); err != nil {
		return nil, err
	}

	for _, tt := range m.Tables {
		inst.Tables = append(inst.Tables, NewTable(tt.ElemType, tt.Limits))
	}
	for _, lim := range m.Memories {
		mem, err := NewMemory(lim)
		if err != nil {
			return nil, err
		}
		inst.Memories = append(inst.Memories, mem)
	}
	for _, g := range m.Globals {
		v, err := inst.evalConst(g.Init)
		if err != nil {
			return nil, err
		}
		inst.Globals = append(inst.Globals, NewGlobalInstance(g.Type, v))
	}
	for i, tid := range m.FunctionTypes {
		code := m.Codes[i]
		ft := m.registry.Lookup(tid)
		// Lower takes the full local space: params first, then declared locals.
		code.Locals = append(append([]ir.ValType(nil), ft.Params...), code.Locals...)
		inst.Functions = append(inst.Functions, &FunctionInstance{
			TypeID: tid, code: code, env: m,
			numParams: len(ft.Params), results: ft.Results,
		})
	}

	inst.DataSegments = m.Data
	inst.ElemSegments = m.Elements

	if err := buildExports(m, inst); err != nil {
		return nil, err
	}
	if err := applySegments(m, inst); err != nil {
		return nil, err
	}
	return inst, nil
}

// resolveImports walks m.Imports and populates inst's prefix of each
// combined index space from the named instances in imports, verifying the
// imported item's actual type/limits are compatible with what m declared
// (spec C7 "Unlinkable on mismatch").
func resolveImports(m *Module, imports map[string]*Instance, inst *Instance) error {
	for _, imp := range m.Imports {
		src, ok := imports[imp.Module]
		if !ok {
			return moduleerrors.Unlinkable("unresolved import module %q", imp.Module)
		}
		exp, ok := src.Exports[imp.Name]
		if !ok {
			return moduleerrors.Unlinkable("unresolved import %q.%q", imp.Module, imp.Name)
		}
		if exp.Kind != imp.Kind {
			return moduleerrors.Unlinkable("import %q.%q kind mismatch: want %s, got %s", imp.Module, imp.Name, imp.Kind, exp.Kind)
		}
		switch imp.Kind {
		case ExternKindFunc:
			wantType := m.registry.Lookup(imp.TypeID)
			gotType := exp.Function.TypeIDOrNil(m)
			if gotType != nil && !gotType.EqualSignature(wantType.Params, wantType.Results) {
				return moduleerrors.Unlinkable("import %q.%q function type mismatch", imp.Module, imp.Name)
			}
			fn := exp.Function
			if fn.Host == nil && fn.Home == nil {
				for j, f := range src.Functions {
					if f == fn {
						fn = &FunctionInstance{TypeID: f.TypeID, Home: src, HomeIndex: uint32(j)}
						break
					}
				}
			}
			inst.Functions = append(inst.Functions, fn)
		case ExternKindTable:
			if err := checkLimits(imp.TableType.Limits, exp.Table.limitsSnapshot()); err != nil {
				return moduleerrors.Unlinkable("import %q.%q table limits: %v", imp.Module, imp.Name, err)
			}
			if exp.Table.ElemType() != imp.TableType.ElemType {
				return moduleerrors.Unlinkable("import %q.%q table element type mismatch", imp.Module, imp.Name)
			}
			inst.Tables = append(inst.Tables, exp.Table)
		case ExternKindMemory:
			if err := checkLimits(imp.MemoryType, Limits{Min: exp.Memory.Size()}); err != nil {
				return moduleerrors.Unlinkable("import %q.%q memory limits: %v", imp.Module, imp.Name, err)
			}
			inst.Memories = append(inst.Memories, exp.Memory)
		case ExternKindGlobal:
			if exp.Global.Type.Type != imp.GlobalType.Type || exp.Global.Type.Mutable != imp.GlobalType.Mutable {
				return moduleerrors.Unlinkable("import %q.%q global type mismatch", imp.Module, imp.Name)
			}
			inst.Globals = append(inst.Globals, exp.Global)
		}
	}
	return nil
}

// TypeIDOrNil exposes a function's type for cross-instance signature
// checking during import resolution; host functions (constructed outside
// decode-time type interning) return nil and are trusted as-is, matching
// how builder-declared host functions are typed by the caller, not by a
// module's own type section.
func (f *FunctionInstance) TypeIDOrNil(m *Module) *ir.FuncType {
	if f.Host != nil {
		return nil
	}
	return m.registry.Lookup(f.TypeID)
}

func checkLimits(want, got Limits) error {
	if got.Min < want.Min {
		return moduleerrors.Unlinkable("minimum size %d below required %d", got.Min, want.Min)
	}
	if want.HasMax {
		if !got.HasMax || got.Max > want.Max {
			return moduleerrors.Unlinkable("maximum size exceeds required bound %d", want.Max)
		}
	}
	return nil
}

func (t *Table) limitsSnapshot() Limits {
	return Limits{Min: t.Size(), Max: t.max, HasMax: t.hasMax}
}

func buildExports(m *Module, inst *Instance) error {
	for _, exp := range m.Exports {
		ei := ExportInstance{Name: exp.Name, Kind: exp.Kind}
		switch exp.Kind {
		case ExternKindFunc:
			if int(exp.Index) >= len(inst.Functions) {
				return moduleerrors.Invalid("export %q: function index %d out of range", exp.Name, exp.Index)
			}
			ei.Function = inst.Functions[exp.Index]
		case ExternKindTable:
			if int(exp.Index) >= len(inst.Tables) {
				return moduleerrors.Invalid("export %q: table index %d out of range", exp.Name, exp.Index)
			}
			ei.Table = inst.Tables[exp.Index]
		case ExternKindMemory:
			if int(exp.Index) >= len(inst.Memories) {
				return moduleerrors.Invalid("export %q: memory index %d out of range", exp.Name, exp.Index)
			}
			ei.Memory = inst.Memories[exp.Index]
		case ExternKindGlobal:
			if int(exp.Index) >= len(inst.Globals) {
				return moduleerrors.Invalid("export %q: global index %d out of range", exp.Name, exp.Index)
			}
			ei.Global = inst.Globals[exp.Index]
		}
		inst.Exports[exp.Name] = ei
	}
	return nil
}

// evalConst evaluates a constant expression in inst's context: numeric
// consts are direct, global.get reads an already-resolved (necessarily
// imported, since internal globals can't reference each other) global,
// ref.null produces the null reference, and ref.func captures a function
// index as an opaque funcref handle.
func (inst *Instance) evalConst(ce ConstExpr) (ir.RawValue, error) {
	switch ce.Opcode {
	case 0x41:
		return ir.EncodeI32(ce.I32Value), nil
	case 0x42:
		return ir.EncodeI64(ce.I64Value), nil
	case 0x43:
		return ir.EncodeF32(ce.F32Value), nil
	case 0x44:
		return ir.EncodeF64(ce.F64Value), nil
	case 0x23:
		if int(ce.GlobalIndex) >= len(inst.Globals) {
			return 0, moduleerrors.Invalid("const expr: global index %d out of range", ce.GlobalIndex)
		}
		return inst.Globals[ce.GlobalIndex].Get(), nil
	case 0xd0:
		return 0, nil
	case 0xd2:
		return ir.RawValue(ce.FuncIndex), nil
	default:
		return 0, moduleerrors.Invalid("unsupported constant expression opcode %#x", ce.Opcode)
	}
}

// applySegments installs every active element segment into its table and
// every active data segment into its memory (spec C7's final instantiation
// step, before start runs).
func applySegments(m *Module, inst *Instance) error {
	for _, seg := range m.Elements {
		if seg.Mode != ElementModeActive {
			continue
		}
		if int(seg.TableIndex) >= len(inst.Tables) {
			return moduleerrors.Invalid("element segment: table index %d out of range", seg.TableIndex)
		}
		off, err := inst.evalConst(seg.Offset)
		if err != nil {
			return err
		}
		items, err := inst.elemItems(seg)
		if err != nil {
			return err
		}
		table := inst.Tables[seg.TableIndex]
		base := ir.DecodeU32(off)
		for i, item := range items {
			if !table.Set(base+uint32(i), item) {
				return moduleerrors.Unlinkable("element segment write out of table bounds")
			}
		}
	}
	for _, seg := range m.Data {
		if seg.Mode != DataModeActive {
			continue
		}
		if int(seg.MemoryIndex) >= len(inst.Memories) {
			return moduleerrors.Invalid("data segment: memory index %d out of range", seg.MemoryIndex)
		}
		off, err := inst.evalConst(seg.Offset)
		if err != nil {
			return err
		}
		mem := inst.Memories[seg.MemoryIndex]
		base := ir.DecodeU32(off)
		dst := mem.Bytes()
		if uint64(base)+uint64(len(seg.Bytes)) > uint64(len(dst)) {
			return moduleerrors.Unlinkable("data segment write out of memory bounds")
		}
		copy(dst[base:], seg.Bytes)
	}
	return nil
}

func (inst *Instance) elemItems(seg ElementSegment) ([]TableItem, error) {
	if seg.Funcs != nil {
		items := make([]TableItem, len(seg.Funcs))
		for i, fi := range seg.Funcs {
			items[i] = TableItem{FuncRef: fi}
		}
		return items, nil
	}
	items := make([]TableItem, len(seg.Exprs))
	for i, ce := range seg.Exprs {
		switch ce.Opcode {
		case 0xd0:
			items[i] = TableItem{Null: true}
		case 0xd2:
			items[i] = TableItem{FuncRef: ce.FuncIndex}
		default:
			v, err := inst.evalConst(ce)
			if err != nil {
				return nil, err
			}
			items[i] = TableItem{ExternRef: ir.Reference(v)}
		}
	}
	return items, nil
}
