package interpreter

import (
	"github.com/wasmine/wasmine/internal/ir"
	"github.com/wasmine/wasmine/internal/trap"
	"github.com/wasmine/wasmine/internal/wasm"
)

// effectiveAddr computes a load/store's byte address, trapping on the
// 33-bit-offset overflow the bulk-memory-operations proposal explicitly
// allows a producer to encode (spec 4.4.2's "addr+offset doesn't trap until
// the access itself is attempted").
func effectiveAddr(addr ir.RawValue, off uint32, width int) (uint64, bool) {
	base := uint64(ir.DecodeU32(addr))
	ea := base + uint64(off)
	if ea+uint64(width) < ea {
		return 0, false
	}
	return ea, true
}

func execLoad(f *frame, in ir.InstrLoad) {
	width := widthBytes(in.Width)
	mem := f.inst.Memories[0]
	buf := mem.Bytes()
	ea, ok := effectiveAddr(f.vars[in.Addr], in.Mem.Offset, width)
	if !ok || ea+uint64(width) > uint64(len(buf)) {
		panic(trap.New(trap.CodeOutOfBoundsMemoryAccess))
	}
	raw := readLE(buf[ea : ea+uint64(width)])
	f.vars[in.Result] = signExtendLoad(raw, in.Width, in.Signed, in.Type)
}

func execStore(f *frame, in ir.InstrStore) {
	width := widthBytes(in.Width)
	mem := f.inst.Memories[0]
	buf := mem.Bytes()
	ea, ok := effectiveAddr(f.vars[in.Addr], in.Mem.Offset, width)
	if !ok || ea+uint64(width) > uint64(len(buf)) {
		panic(trap.New(trap.CodeOutOfBoundsMemoryAccess))
	}
	writeLE(buf[ea:ea+uint64(width)], f.vars[in.Value])
}

func widthBytes(w ir.LoadWidth) int {
	switch w {
	case ir.Width8:
		return 1
	case ir.Width16:
		return 2
	case ir.Width32:
		return 4
	default:
		return 8
	}
}

func readLE(b []byte) uint64 {
	var v uint64
	for i := len(b) - 1; i >= 0; i-- {
		v = v<<8 | uint64(b[i])
	}
	return v
}

func writeLE(b []byte, v uint64) {
	for i := range b {
		b[i] = byte(v)
		v >>= 8
	}
}

// signExtendLoad widens a narrow load's raw bytes to the full result Type,
// sign- or zero-extending per Signed (spec 4.4.2's iNN.loadM_sx family).
func signExtendLoad(raw uint64, w ir.LoadWidth, signed bool, t ir.ValType) ir.RawValue {
	if w == ir.Width64 {
		return raw
	}
	bits := widthBytes(w) * 8
	if !signed {
		return raw
	}
	shift := 64 - bits
	v := int64(raw<<shift) >> shift
	if t == ir.ValTypeI32 {
		return ir.RawValue(uint32(int32(v)))
	}
	return ir.RawValue(v)
}

func execMemoryFill(f *frame, in ir.InstrMemoryFill) {
	mem := f.inst.Memories[0]
	buf := mem.Bytes()
	dest := ir.DecodeU32(f.vars[in.Dest])
	val := byte(ir.DecodeU32(f.vars[in.Value]))
	size := ir.DecodeU32(f.vars[in.Size])
	if uint64(dest)+uint64(size) > uint64(len(buf)) {
		panic(trap.New(trap.CodeOutOfBoundsMemoryAccess))
	}
	for i := uint32(0); i < size; i++ {
		buf[dest+i] = val
	}
}

func execMemoryCopy(f *frame, in ir.InstrMemoryCopy) {
	mem := f.inst.Memories[0]
	buf := mem.Bytes()
	dest := ir.DecodeU32(f.vars[in.Dest])
	src := ir.DecodeU32(f.vars[in.Src])
	size := ir.DecodeU32(f.vars[in.Size])
	n := uint64(len(buf))
	if uint64(dest)+uint64(size) > n || uint64(src)+uint64(size) > n {
		panic(trap.New(trap.CodeOutOfBoundsMemoryAccess))
	}
	copy(buf[dest:uint64(dest)+uint64(size)], buf[src:uint64(src)+uint64(size)])
}

func execMemoryInit(f *frame, in ir.InstrMemoryInit) {
	mem := f.inst.Memories[0]
	buf := mem.Bytes()
	dest := ir.DecodeU32(f.vars[in.Dest])
	src := ir.DecodeU32(f.vars[in.Src])
	size := ir.DecodeU32(f.vars[in.Size])
	data, ok := f.inst.DataBytes(in.DataIdx)
	if !ok {
		if size != 0 {
			panic(trap.New(trap.CodeOutOfBoundsDataAccess))
		}
		return
	}
	if uint64(src)+uint64(size) > uint64(len(data)) || uint64(dest)+uint64(size) > uint64(len(buf)) {
		panic(trap.New(trap.CodeOutOfBoundsMemoryAccess))
	}
	copy(buf[dest:uint64(dest)+uint64(size)], data[src:uint64(src)+uint64(size)])
}

// rawToTableItem decodes a reference-typed SSA value into a table slot,
// following the same zero-is-null convention the instantiate-time const-expr
// evaluator uses (see wasm.Instance.evalConst).
func rawToTableItem(elemType ir.ValType, v ir.RawValue) wasm.TableItem {
	if v == 0 {
		return wasm.TableItem{Null: true}
	}
	if elemType == ir.ValTypeFuncRef {
		return wasm.TableItem{FuncRef: uint32(v)}
	}
	return wasm.TableItem{ExternRef: ir.Reference(v)}
}

func tableItemToRaw(item wasm.TableItem) ir.RawValue {
	if item.Null {
		return 0
	}
	if item.ExternRef != 0 {
		return ir.RawValue(item.ExternRef)
	}
	return ir.RawValue(item.FuncRef)
}

func execTableGet(f *frame, in ir.InstrTableGet) {
	t := f.inst.Tables[in.TableIdx]
	item, ok := t.Get(ir.DecodeU32(f.vars[in.Index]))
	if !ok {
		panic(trap.New(trap.CodeOutOfBoundsTableAccess))
	}
	f.vars[in.Result] = tableItemToRaw(item)
}

func execTableSet(f *frame, in ir.InstrTableSet) {
	t := f.inst.Tables[in.TableIdx]
	item := rawToTableItem(t.ElemType(), f.vars[in.Value])
	if !t.Set(ir.DecodeU32(f.vars[in.Index]), item) {
		panic(trap.New(trap.CodeOutOfBoundsTableAccess))
	}
}

func execTableGrow(f *frame, in ir.InstrTableGrow) {
	t := f.inst.Tables[in.TableIdx]
	item := rawToTableItem(t.ElemType(), f.vars[in.Value])
	delta := ir.DecodeU32(f.vars[in.Delta])
	f.vars[in.Result] = ir.EncodeI32(t.Grow(delta, item))
}

func execTableFill(f *frame, in ir.InstrTableFill) {
	t := f.inst.Tables[in.TableIdx]
	item := rawToTableItem(t.ElemType(), f.vars[in.Value])
	dest := ir.DecodeU32(f.vars[in.Dest])
	size := ir.DecodeU32(f.vars[in.Size])
	if !t.Fill(dest, size, item) {
		panic(trap.New(trap.CodeOutOfBoundsTableAccess))
	}
}

func execTableCopy(f *frame, in ir.InstrTableCopy) {
	dest := ir.DecodeU32(f.vars[in.Dest])
	src := ir.DecodeU32(f.vars[in.Src])
	size := ir.DecodeU32(f.vars[in.Size])
	if in.DstTableIdx == in.SrcTableIdx {
		if !f.inst.Tables[in.DstTableIdx].CopyWithin(dest, src, size) {
			panic(trap.New(trap.CodeOutOfBoundsTableAccess))
		}
		return
	}
	dstT := f.inst.Tables[in.DstTableIdx]
	srcT := f.inst.Tables[in.SrcTableIdx]
	// Bounds-check both ranges up front so a failing copy leaves neither
	// table mutated, matching CopyWithin's same-table behavior.
	if uint64(src)+uint64(size) > uint64(srcT.Size()) || uint64(dest)+uint64(size) > uint64(dstT.Size()) {
		panic(trap.New(trap.CodeOutOfBoundsTableAccess))
	}
	items := make([]wasm.TableItem, size)
	for i := uint32(0); i < size; i++ {
		items[i], _ = srcT.Get(src + i)
	}
	for i := uint32(0); i < size; i++ {
		dstT.Set(dest+i, items[i])
	}
}

func execTableInit(f *frame, in ir.InstrTableInit) {
	dest := ir.DecodeU32(f.vars[in.Dest])
	src := ir.DecodeU32(f.vars[in.Src])
	size := ir.DecodeU32(f.vars[in.Size])
	funcs, ok := f.inst.ElemFuncs(in.ElemIdx)
	if !ok {
		if size != 0 {
			panic(trap.New(trap.CodeOutOfBoundsElementAccess))
		}
		return
	}
	if uint64(src)+uint64(size) > uint64(len(funcs)) {
		panic(trap.New(trap.CodeOutOfBoundsElementAccess))
	}
	t := f.inst.Tables[in.TableIdx]
	// Bounds-check the destination range up front so a failing init leaves
	// the table unmutated.
	if uint64(dest)+uint64(size) > uint64(t.Size()) {
		panic(trap.New(trap.CodeOutOfBoundsTableAccess))
	}
	for i := uint32(0); i < size; i++ {
		t.Set(dest+i, wasm.TableItem{FuncRef: funcs[src+i]})
	}
}
