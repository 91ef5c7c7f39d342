package validator

import (
	"github.com/wasmine/wasmine/internal/ir"
	"github.com/wasmine/wasmine/internal/moduleerrors"
)

// decodeInstr handles every opcode that is not structured control: it
// always appends exactly one instruction (or zero, for drop) to the current
// block and never changes d.cur.
func (d *funcDecoder) decodeInstr(op byte) error {
	switch op {
	case opDrop:
		_, _, err := d.pop()
		return err
	case opSelect, opSelectT:
		if op == opSelectT {
			if _, err := binaryReadVecValType(d); err != nil {
				return err
			}
		}
		cond, err := d.popExpect(ir.ValTypeI32)
		if err != nil {
			return err
		}
		y, ty, err := d.pop()
		if err != nil {
			return err
		}
		x, _, err := d.pop()
		if err != nil {
			return err
		}
		res := d.newVar()
		d.appendInstr(ir.InstrSelect{Result: res, Type: ty, Cond: cond, X: x, Y: y})
		d.push(res, ty)
		return nil

	case opLocalGet:
		idx, err := d.r.ReadU32()
		if err != nil {
			return err
		}
		if int(idx) >= len(d.fn.Locals) {
			return moduleerrors.Invalid("local index %d out of range", idx)
		}
		res := d.newVar()
		d.appendInstr(ir.InstrLocalGet{Result: res, Local: idx})
		d.push(res, d.fn.Locals[idx])
		return nil
	case opLocalSet:
		idx, err := d.r.ReadU32()
		if err != nil {
			return err
		}
		if int(idx) >= len(d.fn.Locals) {
			return moduleerrors.Invalid("local index %d out of range", idx)
		}
		v, err := d.popExpect(d.fn.Locals[idx])
		if err != nil {
			return err
		}
		d.appendInstr(ir.InstrLocalSet{Local: idx, Value: v})
		return nil
	case opLocalTee:
		idx, err := d.r.ReadU32()
		if err != nil {
			return err
		}
		if int(idx) >= len(d.fn.Locals) {
			return moduleerrors.Invalid("local index %d out of range", idx)
		}
		v, err := d.popExpect(d.fn.Locals[idx])
		if err != nil {
			return err
		}
		res := d.newVar()
		d.appendInstr(ir.InstrLocalTee{Result: res, Local: idx, Value: v})
		d.push(res, d.fn.Locals[idx])
		return nil

	case opGlobalGet:
		idx, err := d.r.ReadU32()
		if err != nil {
			return err
		}
		t, _, ok := d.env.GlobalTypeAt(idx)
		if !ok {
			return moduleerrors.Invalid("global index %d out of range", idx)
		}
		res := d.newVar()
		d.appendInstr(ir.InstrGlobalGet{Result: res, Global: idx})
		d.push(res, t)
		return nil
	case opGlobalSet:
		idx, err := d.r.ReadU32()
		if err != nil {
			return err
		}
		t, mutable, ok := d.env.GlobalTypeAt(idx)
		if !ok {
			return moduleerrors.Invalid("global index %d out of range", idx)
		}
		if !mutable {
			return moduleerrors.Invalid("global.set on immutable global %d", idx)
		}
		v, err := d.popExpect(t)
		if err != nil {
			return err
		}
		d.appendInstr(ir.InstrGlobalSet{Global: idx, Value: v})
		return nil

	case opTableGet:
		idx, err := d.r.ReadU32()
		if err != nil {
			return err
		}
		elem, ok := d.env.TableTypeAt(idx)
		if !ok {
			return moduleerrors.Invalid("table index %d out of range", idx)
		}
		i, err := d.popExpect(ir.ValTypeI32)
		if err != nil {
			return err
		}
		res := d.newVar()
		d.appendInstr(ir.InstrTableGet{Result: res, TableIdx: idx, Index: i})
		d.push(res, elem)
		return nil
	case opTableSet:
		idx, err := d.r.ReadU32()
		if err != nil {
			return err
		}
		elem, ok := d.env.TableTypeAt(idx)
		if !ok {
			return moduleerrors.Invalid("table index %d out of range", idx)
		}
		v, err := d.popExpect(elem)
		if err != nil {
			return err
		}
		i, err := d.popExpect(ir.ValTypeI32)
		if err != nil {
			return err
		}
		d.appendInstr(ir.InstrTableSet{TableIdx: idx, Index: i, Value: v})
		return nil

	case opI32Const:
		v, err := d.r.ReadI32()
		if err != nil {
			return err
		}
		res := d.newVar()
		d.appendInstr(ir.InstrConst{Result: res, Type: ir.ValTypeI32, Bits: ir.EncodeI32(v)})
		d.push(res, ir.ValTypeI32)
		return nil
	case opI64Const:
		v, err := d.r.ReadI64()
		if err != nil {
			return err
		}
		res := d.newVar()
		d.appendInstr(ir.InstrConst{Result: res, Type: ir.ValTypeI64, Bits: ir.EncodeI64(v)})
		d.push(res, ir.ValTypeI64)
		return nil
	case opF32Const:
		v, err := d.r.ReadF32LE()
		if err != nil {
			return err
		}
		res := d.newVar()
		d.appendInstr(ir.InstrConst{Result: res, Type: ir.ValTypeF32, Bits: ir.EncodeF32(v)})
		d.push(res, ir.ValTypeF32)
		return nil
	case opF64Const:
		v, err := d.r.ReadF64LE()
		if err != nil {
			return err
		}
		res := d.newVar()
		d.appendInstr(ir.InstrConst{Result: res, Type: ir.ValTypeF64, Bits: ir.EncodeF64(v)})
		d.push(res, ir.ValTypeF64)
		return nil

	case opRefNull:
		t, err := readValTypeByte(d)
		if err != nil {
			return err
		}
		res := d.newVar()
		d.appendInstr(ir.InstrRefNull{Result: res, Type: t})
		d.push(res, t)
		return nil
	case opRefIsNull:
		v, _, err := d.pop()
		if err != nil {
			return err
		}
		res := d.newVar()
		d.appendInstr(ir.InstrRefIsNull{Result: res, X: v})
		d.push(res, ir.ValTypeI32)
		return nil
	case opRefFunc:
		idx, err := d.r.ReadU32()
		if err != nil {
			return err
		}
		res := d.newVar()
		d.appendInstr(ir.InstrRefFunc{Result: res, FuncIdx: idx})
		d.push(res, ir.ValTypeFuncRef)
		return nil

	case opMemorySize:
		if _, err := d.r.ReadByte(); err != nil { // memidx, always 0
			return err
		}
		if !d.env.HasMemory() {
			return moduleerrors.Invalid("memory.size without a memory")
		}
		res := d.newVar()
		d.appendInstr(ir.InstrMemorySize{Result: res})
		d.push(res, ir.ValTypeI32)
		return nil
	case opMemoryGrow:
		if _, err := d.r.ReadByte(); err != nil {
			return err
		}
		if !d.env.HasMemory() {
			return moduleerrors.Invalid("memory.grow without a memory")
		}
		delta, err := d.popExpect(ir.ValTypeI32)
		if err != nil {
			return err
		}
		res := d.newVar()
		d.appendInstr(ir.InstrMemoryGrow{Result: res, Delta: delta})
		d.push(res, ir.ValTypeI32)
		return nil

	case opExtPrefix:
		return d.decodeExtInstr()
	}

	if h, ok := loadHandlers[op]; ok {
		return d.decodeLoad(h)
	}
	if h, ok := storeHandlers[op]; ok {
		return d.decodeStore(h)
	}
	if h, ok := binOpHandlers[op]; ok {
		return d.decodeBinOp(h)
	}
	if h, ok := unOpHandlers[op]; ok {
		return d.decodeUnOp(h)
	}
	if h, ok := cmpOpHandlers[op]; ok {
		return d.decodeCompare(h)
	}
	if h, ok := eqzHandlers[op]; ok {
		res, x, err := d.unary(h.operand)
		if err != nil {
			return err
		}
		d.appendInstr(ir.InstrEqz{Result: res, Type: h.operand, X: x})
		d.push(res, ir.ValTypeI32)
		return nil
	}
	if h, ok := convertHandlers[op]; ok {
		return d.decodeConvert(h)
	}

	return moduleerrors.Malformed("unrecognized opcode %#x", op)
}

func readValTypeByte(d *funcDecoder) (ir.ValType, error) {
	b, err := d.r.ReadByte()
	if err != nil {
		return 0, err
	}
	t := ir.ValType(b)
	if !t.IsValid() {
		return 0, moduleerrors.Malformed("invalid value type byte %#x", b)
	}
	return t, nil
}

func binaryReadVecValType(d *funcDecoder) ([]ir.ValType, error) {
	n, err := d.r.ReadU32()
	if err != nil {
		return nil, err
	}
	out := make([]ir.ValType, n)
	for i := range out {
		out[i], err = readValTypeByte(d)
		if err != nil {
			return nil, err
		}
	}
	return out, nil
}

func (d *funcDecoder) unary(t ir.ValType) (res, x ir.VarID, err error) {
	x, err = d.popExpect(t)
	if err != nil {
		return 0, 0, err
	}
	return d.newVar(), x, nil
}

// readMemArg reads the alignment hint and offset shared by every
// load/store instruction.
func (d *funcDecoder) readMemArg() (ir.MemArg, error) {
	align, err := d.r.ReadU32()
	if err != nil {
		return ir.MemArg{}, err
	}
	offset, err := d.r.ReadU32()
	if err != nil {
		return ir.MemArg{}, err
	}
	if !d.env.HasMemory() {
		return ir.MemArg{}, moduleerrors.Invalid("memory instruction without a memory")
	}
	return ir.MemArg{Align: align, Offset: offset}, nil
}
