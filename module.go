package wasmine

import (
	"context"
	"fmt"
	"reflect"

	"github.com/wasmine/wasmine/api"
	"github.com/wasmine/wasmine/internal/interpreter"
	"github.com/wasmine/wasmine/internal/ir"
	"github.com/wasmine/wasmine/internal/wasm"
)

// moduleInstance adapts an internal/wasm.Instance plus the engine that runs
// it to the api.Module surface embedders consume.
type moduleInstance struct {
	inst    *wasm.Instance
	engine  *interpreter.Engine
	cluster *wasm.Cluster
}

var _ api.Module = (*moduleInstance)(nil)

func (m *moduleInstance) String() string { return fmt.Sprintf("Module[%s]", m.inst.Name) }

func (m *moduleInstance) Name() string { return m.inst.Name }

func (m *moduleInstance) Memory() api.Memory {
	if len(m.inst.Memories) == 0 {
		return nil
	}
	return &memoryInstance{mem: m.inst.Memories[0]}
}

func (m *moduleInstance) ExportedFunction(name string) api.Function {
	e, ok := m.inst.Exports[name]
	if !ok || e.Kind != wasm.ExternKindFunc {
		return nil
	}
	return &functionInstance{inst: m.inst, fn: e.Function, engine: m.engine, name: name}
}

func (m *moduleInstance) ExportedMemory(name string) api.Memory {
	e, ok := m.inst.Exports[name]
	if !ok || e.Kind != wasm.ExternKindMemory {
		return nil
	}
	return &memoryInstance{mem: e.Memory}
}

func (m *moduleInstance) ExportedGlobal(name string) api.Global {
	e, ok := m.inst.Exports[name]
	if !ok || e.Kind != wasm.ExternKindGlobal {
		return nil
	}
	return &globalInstance{g: e.Global}
}

func (m *moduleInstance) ExportedTable(name string) api.Table {
	e, ok := m.inst.Exports[name]
	if !ok || e.Kind != wasm.ExternKindTable {
		return nil
	}
	return &tableInstance{t: e.Table}
}

func (m *moduleInstance) Close(ctx context.Context) error {
	return m.CloseWithExitCode(ctx, 0)
}

func (m *moduleInstance) CloseWithExitCode(_ context.Context, _ uint32) error {
	if m.inst.Name == "" || m.cluster == nil {
		return nil
	}
	return m.cluster.Remove(m.inst.Name)
}

type functionInstance struct {
	inst   *wasm.Instance
	fn     *wasm.FunctionInstance
	engine *interpreter.Engine
	name   string
}

var _ api.Function = (*functionInstance)(nil)

func (f *functionInstance) Definition() api.FunctionDefinition {
	return &functionDefinition{fn: f.fn, name: f.name}
}

func (f *functionInstance) Call(_ context.Context, params ...uint64) ([]uint64, error) {
	results, err := f.engine.Call(f.inst, f.fn, []ir.RawValue(params))
	if err != nil {
		return nil, err
	}
	return []uint64(results), nil
}

// functionDefinition carries only the export name it was looked up by and
// the function instance: ModuleName is empty, Index is 0, Import reports no
// module or field name, and ParamTypes, ParamNames and ResultTypes are nil.
type functionDefinition struct {
	fn   *wasm.FunctionInstance
	name string
}

var _ api.FunctionDefinition = (*functionDefinition)(nil)

func (d *functionDefinition) ModuleName() string { return "" }
func (d *functionDefinition) Index() uint32      { return 0 }
func (d *functionDefinition) Name() string       { return d.name }
func (d *functionDefinition) DebugName() string  { return "." + d.name }

func (d *functionDefinition) Import() (moduleName, name string, isImport bool) {
	return "", "", d.fn.Home != nil
}

func (d *functionDefinition) ExportNames() []string { return []string{d.name} }

func (d *functionDefinition) GoFunc() *reflect.Value {
	if d.fn.Host == nil {
		return nil
	}
	v := reflect.ValueOf(d.fn.Host)
	return &v
}

func (d *functionDefinition) ParamTypes() []api.ValueType  { return nil }
func (d *functionDefinition) ParamNames() []string         { return nil }
func (d *functionDefinition) ResultTypes() []api.ValueType { return nil }

type globalInstance struct {
	g *wasm.GlobalInstance
}

var _ api.MutableGlobal = (*globalInstance)(nil)

func (g *globalInstance) String() string { return fmt.Sprintf("Global(%v)", g.g.Get()) }

func (g *globalInstance) Type() api.ValueType { return valTypeToAPI(g.g.Type.Type) }

func (g *globalInstance) Get(context.Context) uint64 { return g.g.Get() }

func (g *globalInstance) Set(_ context.Context, v uint64) { g.g.Set(v) }

type tableInstance struct {
	t *wasm.Table
}

var _ api.Table = (*tableInstance)(nil)

func (t *tableInstance) Type() api.ValueType { return valTypeToAPI(t.t.ElemType()) }

func (t *tableInstance) Size(context.Context) uint32 { return t.t.Size() }

func (t *tableInstance) Grow(_ context.Context, delta uint32) (uint32, bool) {
	prev := t.t.Grow(delta, wasm.TableItem{Null: true})
	if prev < 0 {
		return 0, false
	}
	return uint32(prev), true
}

type memoryInstance struct {
	mem *wasm.Memory
}

var _ api.Memory = (*memoryInstance)(nil)

func (m *memoryInstance) Size(context.Context) uint32 { return m.mem.Size() * wasm.PageSize }

func (m *memoryInstance) Grow(_ context.Context, deltaPages uint32) (uint32, bool) {
	prev := m.mem.Grow(deltaPages)
	if prev < 0 {
		return 0, false
	}
	return uint32(prev), true
}

func (m *memoryInstance) byteRange(offset, n uint32) ([]byte, bool) {
	buf := m.mem.Bytes()
	if uint64(offset)+uint64(n) > uint64(len(buf)) {
		return nil, false
	}
	return buf[offset : offset+n], true
}

func (m *memoryInstance) ReadByte(_ context.Context, offset uint32) (byte, bool) {
	b, ok := m.byteRange(offset, 1)
	if !ok {
		return 0, false
	}
	return b[0], true
}

func (m *memoryInstance) ReadUint16Le(_ context.Context, offset uint32) (uint16, bool) {
	b, ok := m.byteRange(offset, 2)
	if !ok {
		return 0, false
	}
	return uint16(b[0]) | uint16(b[1])<<8, true
}

func (m *memoryInstance) ReadUint32Le(_ context.Context, offset uint32) (uint32, bool) {
	b, ok := m.byteRange(offset, 4)
	if !ok {
		return 0, false
	}
	return uint32(readLEBytes(b)), true
}

func (m *memoryInstance) ReadUint64Le(_ context.Context, offset uint32) (uint64, bool) {
	b, ok := m.byteRange(offset, 8)
	if !ok {
		return 0, false
	}
	return readLEBytes(b), true
}

func (m *memoryInstance) ReadFloat32Le(ctx context.Context, offset uint32) (float32, bool) {
	v, ok := m.ReadUint32Le(ctx, offset)
	return ir.DecodeF32(ir.RawValue(v)), ok
}

func (m *memoryInstance) ReadFloat64Le(ctx context.Context, offset uint32) (float64, bool) {
	v, ok := m.ReadUint64Le(ctx, offset)
	return ir.DecodeF64(v), ok
}

func (m *memoryInstance) Read(_ context.Context, offset, byteCount uint32) ([]byte, bool) {
	return m.byteRange(offset, byteCount)
}

func (m *memoryInstance) WriteByte(_ context.Context, offset uint32, v byte) bool {
	b, ok := m.byteRange(offset, 1)
	if !ok {
		return false
	}
	b[0] = v
	return true
}

func (m *memoryInstance) WriteUint16Le(_ context.Context, offset uint32, v uint16) bool {
	b, ok := m.byteRange(offset, 2)
	if !ok {
		return false
	}
	b[0], b[1] = byte(v), byte(v>>8)
	return true
}

func (m *memoryInstance) WriteUint32Le(_ context.Context, offset, v uint32) bool {
	b, ok := m.byteRange(offset, 4)
	if !ok {
		return false
	}
	writeLEBytes(b, uint64(v))
	return true
}

func (m *memoryInstance) WriteUint64Le(_ context.Context, offset uint32, v uint64) bool {
	b, ok := m.byteRange(offset, 8)
	if !ok {
		return false
	}
	writeLEBytes(b, v)
	return true
}

func (m *memoryInstance) WriteFloat32Le(ctx context.Context, offset uint32, v float32) bool {
	return m.WriteUint32Le(ctx, offset, ir.DecodeU32(ir.EncodeF32(v)))
}

func (m *memoryInstance) WriteFloat64Le(ctx context.Context, offset uint32, v float64) bool {
	return m.WriteUint64Le(ctx, offset, ir.EncodeF64(v))
}

func (m *memoryInstance) Write(_ context.Context, offset uint32, v []byte) bool {
	b, ok := m.byteRange(offset, uint32(len(v)))
	if !ok {
		return false
	}
	copy(b, v)
	return true
}

func readLEBytes(b []byte) uint64 {
	var v uint64
	for i := len(b) - 1; i >= 0; i-- {
		v = v<<8 | uint64(b[i])
	}
	return v
}

func writeLEBytes(b []byte, v uint64) {
	for i := range b {
		b[i] = byte(v)
		v >>= 8
	}
}

func valTypeToAPI(t ir.ValType) api.ValueType {
	switch t {
	case ir.ValTypeI32:
		return api.ValueTypeI32
	case ir.ValTypeI64:
		return api.ValueTypeI64
	case ir.ValTypeF32:
		return api.ValueTypeF32
	case ir.ValTypeF64:
		return api.ValueTypeF64
	case ir.ValTypeFuncRef:
		return api.ValueTypeFuncref
	default:
		return api.ValueTypeExternref
	}
}
