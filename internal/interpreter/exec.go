package interpreter

import (
	"github.com/wasmine/wasmine/internal/ir"
	"github.com/wasmine/wasmine/internal/trap"
)

// execInstr executes one straight-line instruction, mutating f's locals/vars
// in place. It never touches f.block/f.instrIdx: control transfer is the
// run loop's job, driven by the block's terminator.
func execInstr(f *frame, instr ir.Instruction) {
	switch in := instr.(type) {
	case ir.InstrConst:
		f.vars[in.Result] = in.Bits

	case ir.InstrLocalGet:
		f.vars[in.Result] = f.locals[in.Local]

	case ir.InstrLocalSet:
		f.locals[in.Local] = f.vars[in.Value]

	case ir.InstrLocalTee:
		v := f.vars[in.Value]
		f.locals[in.Local] = v
		f.vars[in.Result] = v

	case ir.InstrGlobalGet:
		f.vars[in.Result] = f.inst.Globals[in.Global].Get()

	case ir.InstrGlobalSet:
		f.inst.Globals[in.Global].Set(f.vars[in.Value])

	case ir.InstrBinOp:
		f.vars[in.Result] = execBinOp(in.Op, in.Type, f.vars[in.X], f.vars[in.Y])

	case ir.InstrUnOp:
		f.vars[in.Result] = execUnOp(in.Op, in.Type, f.vars[in.X])

	case ir.InstrCompare:
		f.vars[in.Result] = execCompare(in.Op, in.Type, f.vars[in.X], f.vars[in.Y])

	case ir.InstrEqz:
		var z bool
		if in.Type == ir.ValTypeI64 {
			z = ir.DecodeI64(f.vars[in.X]) == 0
		} else {
			z = ir.DecodeI32(f.vars[in.X]) == 0
		}
		f.vars[in.Result] = boolVal(z)

	case ir.InstrConvert:
		f.vars[in.Result] = execConvert(in.Op, f.vars[in.X], in.Saturating)

	case ir.InstrLoad:
		execLoad(f, in)

	case ir.InstrStore:
		execStore(f, in)

	case ir.InstrMemorySize:
		f.vars[in.Result] = ir.RawValue(uint32(f.inst.Memories[0].Size()))

	case ir.InstrMemoryGrow:
		delta := ir.DecodeU32(f.vars[in.Delta])
		f.vars[in.Result] = ir.EncodeI32(f.inst.Memories[0].Grow(delta))

	case ir.InstrMemoryFill:
		execMemoryFill(f, in)

	case ir.InstrMemoryCopy:
		execMemoryCopy(f, in)

	case ir.InstrMemoryInit:
		execMemoryInit(f, in)

	case ir.InstrDataDrop:
		f.inst.DropData(in.DataIdx)

	case ir.InstrSelect:
		if ir.DecodeU32(f.vars[in.Cond]) != 0 {
			f.vars[in.Result] = f.vars[in.X]
		} else {
			f.vars[in.Result] = f.vars[in.Y]
		}

	case ir.InstrRefNull:
		f.vars[in.Result] = 0

	case ir.InstrRefIsNull:
		f.vars[in.Result] = boolVal(f.vars[in.X] == 0)

	case ir.InstrRefFunc:
		f.vars[in.Result] = ir.RawValue(in.FuncIdx)

	case ir.InstrTableGet:
		execTableGet(f, in)

	case ir.InstrTableSet:
		execTableSet(f, in)

	case ir.InstrTableSize:
		f.vars[in.Result] = ir.RawValue(f.inst.Tables[in.TableIdx].Size())

	case ir.InstrTableGrow:
		execTableGrow(f, in)

	case ir.InstrTableFill:
		execTableFill(f, in)

	case ir.InstrTableCopy:
		execTableCopy(f, in)

	case ir.InstrTableInit:
		execTableInit(f, in)

	case ir.InstrElemDrop:
		f.inst.DropElem(in.ElemIdx)

	default:
		panic(trap.New(trap.CodeUnreachable))
	}
}

func boolVal(b bool) ir.RawValue {
	if b {
		return 1
	}
	return 0
}
