package validator

import (
	"github.com/wasmine/wasmine/internal/ir"
	"github.com/wasmine/wasmine/internal/moduleerrors"
)

type loadSpec struct {
	Type   ir.ValType
	Width  ir.LoadWidth
	Signed bool
}

var loadHandlers = map[byte]loadSpec{
	opI32Load:    {ir.ValTypeI32, ir.Width32, false},
	opI64Load:    {ir.ValTypeI64, ir.Width64, false},
	opF32Load:    {ir.ValTypeF32, ir.Width32, false},
	opF64Load:    {ir.ValTypeF64, ir.Width64, false},
	opI32Load8S:  {ir.ValTypeI32, ir.Width8, true},
	opI32Load8U:  {ir.ValTypeI32, ir.Width8, false},
	opI32Load16S: {ir.ValTypeI32, ir.Width16, true},
	opI32Load16U: {ir.ValTypeI32, ir.Width16, false},
	opI64Load8S:  {ir.ValTypeI64, ir.Width8, true},
	opI64Load8U:  {ir.ValTypeI64, ir.Width8, false},
	opI64Load16S: {ir.ValTypeI64, ir.Width16, true},
	opI64Load16U: {ir.ValTypeI64, ir.Width16, false},
	opI64Load32S: {ir.ValTypeI64, ir.Width32, true},
	opI64Load32U: {ir.ValTypeI64, ir.Width32, false},
}

type storeSpec struct {
	Type  ir.ValType
	Width ir.LoadWidth
}

var storeHandlers = map[byte]storeSpec{
	opI32Store:   {ir.ValTypeI32, ir.Width32},
	opI64Store:   {ir.ValTypeI64, ir.Width64},
	opF32Store:   {ir.ValTypeF32, ir.Width32},
	opF64Store:   {ir.ValTypeF64, ir.Width64},
	opI32Store8:  {ir.ValTypeI32, ir.Width8},
	opI32Store16: {ir.ValTypeI32, ir.Width16},
	opI64Store8:  {ir.ValTypeI64, ir.Width8},
	opI64Store16: {ir.ValTypeI64, ir.Width16},
	opI64Store32: {ir.ValTypeI64, ir.Width32},
}

func (d *funcDecoder) decodeLoad(s loadSpec) error {
	mem, err := d.readMemArg()
	if err != nil {
		return err
	}
	addr, err := d.popExpect(ir.ValTypeI32)
	if err != nil {
		return err
	}
	res := d.newVar()
	d.appendInstr(ir.InstrLoad{Result: res, Type: s.Type, Width: s.Width, Signed: s.Signed, Mem: mem, Addr: addr})
	d.push(res, s.Type)
	return nil
}

func (d *funcDecoder) decodeStore(s storeSpec) error {
	mem, err := d.readMemArg()
	if err != nil {
		return err
	}
	v, err := d.popExpect(s.Type)
	if err != nil {
		return err
	}
	addr, err := d.popExpect(ir.ValTypeI32)
	if err != nil {
		return err
	}
	d.appendInstr(ir.InstrStore{Type: s.Type, Width: s.Width, Mem: mem, Addr: addr, Value: v})
	return nil
}

type binSpec struct {
	Op   ir.BinOp
	Type ir.ValType
}

var binOpHandlers = map[byte]binSpec{
	opI32Add: {ir.BinOpAdd, ir.ValTypeI32}, opI32Sub: {ir.BinOpSub, ir.ValTypeI32}, opI32Mul: {ir.BinOpMul, ir.ValTypeI32},
	opI32DivS: {ir.BinOpDivS, ir.ValTypeI32}, opI32DivU: {ir.BinOpDivU, ir.ValTypeI32},
	opI32RemS: {ir.BinOpRemS, ir.ValTypeI32}, opI32RemU: {ir.BinOpRemU, ir.ValTypeI32},
	opI32And: {ir.BinOpAnd, ir.ValTypeI32}, opI32Or: {ir.BinOpOr, ir.ValTypeI32}, opI32Xor: {ir.BinOpXor, ir.ValTypeI32},
	opI32Shl: {ir.BinOpShl, ir.ValTypeI32}, opI32ShrS: {ir.BinOpShrS, ir.ValTypeI32}, opI32ShrU: {ir.BinOpShrU, ir.ValTypeI32},
	opI32Rotl: {ir.BinOpRotl, ir.ValTypeI32}, opI32Rotr: {ir.BinOpRotr, ir.ValTypeI32},

	opI64Add: {ir.BinOpAdd, ir.ValTypeI64}, opI64Sub: {ir.BinOpSub, ir.ValTypeI64}, opI64Mul: {ir.BinOpMul, ir.ValTypeI64},
	opI64DivS: {ir.BinOpDivS, ir.ValTypeI64}, opI64DivU: {ir.BinOpDivU, ir.ValTypeI64},
	opI64RemS: {ir.BinOpRemS, ir.ValTypeI64}, opI64RemU: {ir.BinOpRemU, ir.ValTypeI64},
	opI64And: {ir.BinOpAnd, ir.ValTypeI64}, opI64Or: {ir.BinOpOr, ir.ValTypeI64}, opI64Xor: {ir.BinOpXor, ir.ValTypeI64},
	opI64Shl: {ir.BinOpShl, ir.ValTypeI64}, opI64ShrS: {ir.BinOpShrS, ir.ValTypeI64}, opI64ShrU: {ir.BinOpShrU, ir.ValTypeI64},
	opI64Rotl: {ir.BinOpRotl, ir.ValTypeI64}, opI64Rotr: {ir.BinOpRotr, ir.ValTypeI64},

	opF32Add: {ir.BinOpAdd, ir.ValTypeF32}, opF32Sub: {ir.BinOpSub, ir.ValTypeF32}, opF32Mul: {ir.BinOpMul, ir.ValTypeF32},
	opF32Div: {ir.BinOpFDiv, ir.ValTypeF32}, opF32Min: {ir.BinOpFMin, ir.ValTypeF32}, opF32Max: {ir.BinOpFMax, ir.ValTypeF32},
	opF32Copysign: {ir.BinOpFCopysign, ir.ValTypeF32},

	opF64Add: {ir.BinOpAdd, ir.ValTypeF64}, opF64Sub: {ir.BinOpSub, ir.ValTypeF64}, opF64Mul: {ir.BinOpMul, ir.ValTypeF64},
	opF64Div: {ir.BinOpFDiv, ir.ValTypeF64}, opF64Min: {ir.BinOpFMin, ir.ValTypeF64}, opF64Max: {ir.BinOpFMax, ir.ValTypeF64},
	opF64Copysign: {ir.BinOpFCopysign, ir.ValTypeF64},
}

func (d *funcDecoder) decodeBinOp(s binSpec) error {
	y, err := d.popExpect(s.Type)
	if err != nil {
		return err
	}
	x, err := d.popExpect(s.Type)
	if err != nil {
		return err
	}
	res := d.newVar()
	d.appendInstr(ir.InstrBinOp{Result: res, Op: s.Op, Type: s.Type, X: x, Y: y})
	d.push(res, s.Type)
	return nil
}

type unSpec struct {
	Op   ir.UnOp
	Type ir.ValType
}

var unOpHandlers = map[byte]unSpec{
	opI32Clz: {ir.UnOpClz, ir.ValTypeI32}, opI32Ctz: {ir.UnOpCtz, ir.ValTypeI32}, opI32Popcnt: {ir.UnOpPopcnt, ir.ValTypeI32},
	opI64Clz: {ir.UnOpClz, ir.ValTypeI64}, opI64Ctz: {ir.UnOpCtz, ir.ValTypeI64}, opI64Popcnt: {ir.UnOpPopcnt, ir.ValTypeI64},

	opF32Abs: {ir.UnOpFAbs, ir.ValTypeF32}, opF32Neg: {ir.UnOpFNeg, ir.ValTypeF32}, opF32Ceil: {ir.UnOpFCeil, ir.ValTypeF32},
	opF32Floor: {ir.UnOpFFloor, ir.ValTypeF32}, opF32Trunc: {ir.UnOpFTrunc, ir.ValTypeF32}, opF32Nearest: {ir.UnOpFNearest, ir.ValTypeF32},
	opF32Sqrt: {ir.UnOpFSqrt, ir.ValTypeF32},

	opF64Abs: {ir.UnOpFAbs, ir.ValTypeF64}, opF64Neg: {ir.UnOpFNeg, ir.ValTypeF64}, opF64Ceil: {ir.UnOpFCeil, ir.ValTypeF64},
	opF64Floor: {ir.UnOpFFloor, ir.ValTypeF64}, opF64Trunc: {ir.UnOpFTrunc, ir.ValTypeF64}, opF64Nearest: {ir.UnOpFNearest, ir.ValTypeF64},
	opF64Sqrt: {ir.UnOpFSqrt, ir.ValTypeF64},
}

func (d *funcDecoder) decodeUnOp(s unSpec) error {
	res, x, err := d.unary(s.Type)
	if err != nil {
		return err
	}
	d.appendInstr(ir.InstrUnOp{Result: res, Op: s.Op, Type: s.Type, X: x})
	d.push(res, s.Type)
	return nil
}

type cmpSpec struct {
	Op   ir.CompareOp
	Type ir.ValType
}

var cmpOpHandlers = map[byte]cmpSpec{
	opI32Eq: {ir.CmpEq, ir.ValTypeI32}, opI32Ne: {ir.CmpNe, ir.ValTypeI32},
	opI32LtS: {ir.CmpLtS, ir.ValTypeI32}, opI32LtU: {ir.CmpLtU, ir.ValTypeI32},
	opI32GtS: {ir.CmpGtS, ir.ValTypeI32}, opI32GtU: {ir.CmpGtU, ir.ValTypeI32},
	opI32LeS: {ir.CmpLeS, ir.ValTypeI32}, opI32LeU: {ir.CmpLeU, ir.ValTypeI32},
	opI32GeS: {ir.CmpGeS, ir.ValTypeI32}, opI32GeU: {ir.CmpGeU, ir.ValTypeI32},

	opI64Eq: {ir.CmpEq, ir.ValTypeI64}, opI64Ne: {ir.CmpNe, ir.ValTypeI64},
	opI64LtS: {ir.CmpLtS, ir.ValTypeI64}, opI64LtU: {ir.CmpLtU, ir.ValTypeI64},
	opI64GtS: {ir.CmpGtS, ir.ValTypeI64}, opI64GtU: {ir.CmpGtU, ir.ValTypeI64},
	opI64LeS: {ir.CmpLeS, ir.ValTypeI64}, opI64LeU: {ir.CmpLeU, ir.ValTypeI64},
	opI64GeS: {ir.CmpGeS, ir.ValTypeI64}, opI64GeU: {ir.CmpGeU, ir.ValTypeI64},

	opF32Eq: {ir.CmpEq, ir.ValTypeF32}, opF32Ne: {ir.CmpNe, ir.ValTypeF32},
	opF32Lt: {ir.CmpFLt, ir.ValTypeF32}, opF32Gt: {ir.CmpFGt, ir.ValTypeF32},
	opF32Le: {ir.CmpFLe, ir.ValTypeF32}, opF32Ge: {ir.CmpFGe, ir.ValTypeF32},

	opF64Eq: {ir.CmpEq, ir.ValTypeF64}, opF64Ne: {ir.CmpNe, ir.ValTypeF64},
	opF64Lt: {ir.CmpFLt, ir.ValTypeF64}, opF64Gt: {ir.CmpFGt, ir.ValTypeF64},
	opF64Le: {ir.CmpFLe, ir.ValTypeF64}, opF64Ge: {ir.CmpFGe, ir.ValTypeF64},
}

func (d *funcDecoder) decodeCompare(s cmpSpec) error {
	y, err := d.popExpect(s.Type)
	if err != nil {
		return err
	}
	x, err := d.popExpect(s.Type)
	if err != nil {
		return err
	}
	res := d.newVar()
	d.appendInstr(ir.InstrCompare{Result: res, Op: s.Op, Type: s.Type, X: x, Y: y})
	d.push(res, ir.ValTypeI32)
	return nil
}

type eqzSpec struct{ operand ir.ValType }

var eqzHandlers = map[byte]eqzSpec{
	opI32Eqz: {ir.ValTypeI32},
	opI64Eqz: {ir.ValTypeI64},
}

type convSpec struct {
	Op         ir.ConvertOp
	From, To   ir.ValType
	Saturating bool
}

var convertHandlers = map[byte]convSpec{
	opI32WrapI64:        {ir.ConvI32WrapI64, ir.ValTypeI64, ir.ValTypeI32, false},
	opI64ExtendI32S:     {ir.ConvI64ExtendI32S, ir.ValTypeI32, ir.ValTypeI64, false},
	opI64ExtendI32U:     {ir.ConvI64ExtendI32U, ir.ValTypeI32, ir.ValTypeI64, false},
	opI32TruncF32S:      {ir.ConvI32TruncF32S, ir.ValTypeF32, ir.ValTypeI32, false},
	opI32TruncF32U:      {ir.ConvI32TruncF32U, ir.ValTypeF32, ir.ValTypeI32, false},
	opI32TruncF64S:      {ir.ConvI32TruncF64S, ir.ValTypeF64, ir.ValTypeI32, false},
	opI32TruncF64U:      {ir.ConvI32TruncF64U, ir.ValTypeF64, ir.ValTypeI32, false},
	opI64TruncF32S:      {ir.ConvI64TruncF32S, ir.ValTypeF32, ir.ValTypeI64, false},
	opI64TruncF32U:      {ir.ConvI64TruncF32U, ir.ValTypeF32, ir.ValTypeI64, false},
	opI64TruncF64S:      {ir.ConvI64TruncF64S, ir.ValTypeF64, ir.ValTypeI64, false},
	opI64TruncF64U:      {ir.ConvI64TruncF64U, ir.ValTypeF64, ir.ValTypeI64, false},
	opF32ConvertI32S:    {ir.ConvF32ConvertI32S, ir.ValTypeI32, ir.ValTypeF32, false},
	opF32ConvertI32U:    {ir.ConvF32ConvertI32U, ir.ValTypeI32, ir.ValTypeF32, false},
	opF32ConvertI64S:    {ir.ConvF32ConvertI64S, ir.ValTypeI64, ir.ValTypeF32, false},
	opF32ConvertI64U:    {ir.ConvF32ConvertI64U, ir.ValTypeI64, ir.ValTypeF32, false},
	opF64ConvertI32S:    {ir.ConvF64ConvertI32S, ir.ValTypeI32, ir.ValTypeF64, false},
	opF64ConvertI32U:    {ir.ConvF64ConvertI32U, ir.ValTypeI32, ir.ValTypeF64, false},
	opF64ConvertI64S:    {ir.ConvF64ConvertI64S, ir.ValTypeI64, ir.ValTypeF64, false},
	opF64ConvertI64U:    {ir.ConvF64ConvertI64U, ir.ValTypeI64, ir.ValTypeF64, false},
	opF32DemoteF64:      {ir.ConvF32DemoteF64, ir.ValTypeF64, ir.ValTypeF32, false},
	opF64PromoteF32:     {ir.ConvF64PromoteF32, ir.ValTypeF32, ir.ValTypeF64, false},
	opI32ReinterpretF32: {ir.ConvI32ReinterpretF32, ir.ValTypeF32, ir.ValTypeI32, false},
	opI64ReinterpretF64: {ir.ConvI64ReinterpretF64, ir.ValTypeF64, ir.ValTypeI64, false},
	opF32ReinterpretI32: {ir.ConvF32ReinterpretI32, ir.ValTypeI32, ir.ValTypeF32, false},
	opF64ReinterpretI64: {ir.ConvF64ReinterpretI64, ir.ValTypeI64, ir.ValTypeF64, false},
	opI32Extend8S:       {ir.ConvI32Extend8S, ir.ValTypeI32, ir.ValTypeI32, false},
	opI32Extend16S:      {ir.ConvI32Extend16S, ir.ValTypeI32, ir.ValTypeI32, false},
	opI64Extend8S:       {ir.ConvI64Extend8S, ir.ValTypeI64, ir.ValTypeI64, false},
	opI64Extend16S:      {ir.ConvI64Extend16S, ir.ValTypeI64, ir.ValTypeI64, false},
	opI64Extend32S:      {ir.ConvI64Extend32S, ir.ValTypeI64, ir.ValTypeI64, false},
}

func (d *funcDecoder) decodeConvert(s convSpec) error {
	x, err := d.popExpect(s.From)
	if err != nil {
		return err
	}
	res := d.newVar()
	d.appendInstr(ir.InstrConvert{Result: res, Op: s.Op, X: x, Saturating: s.Saturating})
	d.push(res, s.To)
	return nil
}

// extConvertHandlers covers the 0xfc-prefixed saturating truncation family
// introduced by the nontrapping-float-to-int-conversion proposal.
var extConvertHandlers = map[byte]convSpec{
	extI32TruncSatF32S: {ir.ConvI32TruncF32S, ir.ValTypeF32, ir.ValTypeI32, true},
	extI32TruncSatF32U: {ir.ConvI32TruncF32U, ir.ValTypeF32, ir.ValTypeI32, true},
	extI32TruncSatF64S: {ir.ConvI32TruncF64S, ir.ValTypeF64, ir.ValTypeI32, true},
	extI32TruncSatF64U: {ir.ConvI32TruncF64U, ir.ValTypeF64, ir.ValTypeI32, true},
	extI64TruncSatF32S: {ir.ConvI64TruncF32S, ir.ValTypeF32, ir.ValTypeI64, true},
	extI64TruncSatF32U: {ir.ConvI64TruncF32U, ir.ValTypeF32, ir.ValTypeI64, true},
	extI64TruncSatF64S: {ir.ConvI64TruncF64S, ir.ValTypeF64, ir.ValTypeI64, true},
	extI64TruncSatF64U: {ir.ConvI64TruncF64U, ir.ValTypeF64, ir.ValTypeI64, true},
}

// decodeExtInstr handles the 0xfc extended opcode space: saturating
// conversions, and the bulk-memory-operations / reference-types table and
// memory instructions.
func (d *funcDecoder) decodeExtInstr() error {
	sub, err := d.r.ReadU32()
	if err != nil {
		return err
	}
	subByte := byte(sub)

	if s, ok := extConvertHandlers[subByte]; ok {
		return d.decodeConvert(s)
	}

	switch subByte {
	case extMemoryInit:
		dataIdx, err := d.r.ReadU32()
		if err != nil {
			return err
		}
		if _, err := d.r.ReadByte(); err != nil { // memidx
			return err
		}
		if uint32(dataIdx) >= d.env.DataSegmentCount() {
			return moduleerrors.Invalid("memory.init: data index %d out of range", dataIdx)
		}
		size, err := d.popExpect(ir.ValTypeI32)
		if err != nil {
			return err
		}
		src, err := d.popExpect(ir.ValTypeI32)
		if err != nil {
			return err
		}
		dest, err := d.popExpect(ir.ValTypeI32)
		if err != nil {
			return err
		}
		d.appendInstr(ir.InstrMemoryInit{DataIdx: dataIdx, Dest: dest, Src: src, Size: size})
		return nil
	case extDataDrop:
		idx, err := d.r.ReadU32()
		if err != nil {
			return err
		}
		if idx >= d.env.DataSegmentCount() {
			return moduleerrors.Invalid("data.drop: index %d out of range", idx)
		}
		d.appendInstr(ir.InstrDataDrop{DataIdx: idx})
		return nil
	case extMemoryCopy:
		if _, err := d.r.ReadByte(); err != nil {
			return err
		}
		if _, err := d.r.ReadByte(); err != nil {
			return err
		}
		size, err := d.popExpect(ir.ValTypeI32)
		if err != nil {
			return err
		}
		src, err := d.popExpect(ir.ValTypeI32)
		if err != nil {
			return err
		}
		dest, err := d.popExpect(ir.ValTypeI32)
		if err != nil {
			return err
		}
		d.appendInstr(ir.InstrMemoryCopy{Dest: dest, Src: src, Size: size})
		return nil
	case extMemoryFill:
		if _, err := d.r.ReadByte(); err != nil {
			return err
		}
		size, err := d.popExpect(ir.ValTypeI32)
		if err != nil {
			return err
		}
		val, err := d.popExpect(ir.ValTypeI32)
		if err != nil {
			return err
		}
		dest, err := d.popExpect(ir.ValTypeI32)
		if err != nil {
			return err
		}
		d.appendInstr(ir.InstrMemoryFill{Dest: dest, Value: val, Size: size})
		return nil
	case extTableInit:
		elemIdx, err := d.r.ReadU32()
		if err != nil {
			return err
		}
		tableIdx, err := d.r.ReadU32()
		if err != nil {
			return err
		}
		if elemIdx >= d.env.ElemSegmentCount() {
			return moduleerrors.Invalid("table.init: element index %d out of range", elemIdx)
		}
		size, err := d.popExpect(ir.ValTypeI32)
		if err != nil {
			return err
		}
		src, err := d.popExpect(ir.ValTypeI32)
		if err != nil {
			return err
		}
		dest, err := d.popExpect(ir.ValTypeI32)
		if err != nil {
			return err
		}
		d.appendInstr(ir.InstrTableInit{TableIdx: tableIdx, ElemIdx: elemIdx, Dest: dest, Src: src, Size: size})
		return nil
	case extElemDrop:
		idx, err := d.r.ReadU32()
		if err != nil {
			return err
		}
		if idx >= d.env.ElemSegmentCount() {
			return moduleerrors.Invalid("elem.drop: index %d out of range", idx)
		}
		d.appendInstr(ir.InstrElemDrop{ElemIdx: idx})
		return nil
	case extTableCopy:
		dstIdx, err := d.r.ReadU32()
		if err != nil {
			return err
		}
		srcIdx, err := d.r.ReadU32()
		if err != nil {
			return err
		}
		size, err := d.popExpect(ir.ValTypeI32)
		if err != nil {
			return err
		}
		src, err := d.popExpect(ir.ValTypeI32)
		if err != nil {
			return err
		}
		dest, err := d.popExpect(ir.ValTypeI32)
		if err != nil {
			return err
		}
		d.appendInstr(ir.InstrTableCopy{DstTableIdx: dstIdx, SrcTableIdx: srcIdx, Dest: dest, Src: src, Size: size})
		return nil
	case extTableGrow:
		idx, err := d.r.ReadU32()
		if err != nil {
			return err
		}
		elemType, ok := d.env.TableTypeAt(idx)
		if !ok {
			return moduleerrors.Invalid("table.grow: index %d out of range", idx)
		}
		delta, err := d.popExpect(ir.ValTypeI32)
		if err != nil {
			return err
		}
		val, err := d.popExpect(elemType)
		if err != nil {
			return err
		}
		res := d.newVar()
		d.appendInstr(ir.InstrTableGrow{Result: res, TableIdx: idx, Value: val, Delta: delta})
		d.push(res, ir.ValTypeI32)
		return nil
	case extTableSize:
		idx, err := d.r.ReadU32()
		if err != nil {
			return err
		}
		if _, ok := d.env.TableTypeAt(idx); !ok {
			return moduleerrors.Invalid("table.size: index %d out of range", idx)
		}
		res := d.newVar()
		d.appendInstr(ir.InstrTableSize{Result: res, TableIdx: idx})
		d.push(res, ir.ValTypeI32)
		return nil
	case extTableFill:
		idx, err := d.r.ReadU32()
		if err != nil {
			return err
		}
		elemType, ok := d.env.TableTypeAt(idx)
		if !ok {
			return moduleerrors.Invalid("table.fill: index %d out of range", idx)
		}
		size, err := d.popExpect(ir.ValTypeI32)
		if err != nil {
			return err
		}
		val, err := d.popExpect(elemType)
		if err != nil {
			return err
		}
		dest, err := d.popExpect(ir.ValTypeI32)
		if err != nil {
			return err
		}
		d.appendInstr(ir.InstrTableFill{TableIdx: idx, Dest: dest, Value: val, Size: size})
		return nil
	}
	return moduleerrors.Malformed("unrecognized 0xfc sub-opcode %d", subByte)
}
