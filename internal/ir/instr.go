package ir

// VarID identifies an SSA variable produced exactly once within a function.
// Variable ids are dense in [0, FunctionIR.NumVars).
type VarID uint32

// NoVar marks the absence of a result (e.g. a store has no destination
// variable). It is never a valid VarID since ids start at 0 and every
// definition precedes any use, so a real producer always exists before
// NoVar could be read.
const NoVar VarID = 1<<32 - 1

// Instruction is one entry in a basic block's instruction buffer. Control
// instructions (block/loop/if/br/return/call/...) never appear here: they
// rewrite the block's Terminator instead (see block.go).
type Instruction interface {
	instruction()
}

// InstrConst materializes a constant of the given type into Result.
type InstrConst struct {
	Result VarID
	Type   ValType
	Bits   RawValue
}

// InstrLocalGet reads function local Local into a fresh variable.
type InstrLocalGet struct {
	Result VarID
	Local  uint32
}

// InstrLocalSet writes Value into function local Local.
type InstrLocalSet struct {
	Local uint32
	Value VarID
}

// InstrLocalTee is local.set that also produces the stored value as Result,
// so callers don't need a following local.get.
type InstrLocalTee struct {
	Result VarID
	Local  uint32
	Value  VarID
}

// InstrGlobalGet reads module global Global into a fresh variable.
type InstrGlobalGet struct {
	Result VarID
	Global uint32
}

// InstrGlobalSet writes Value into module global Global.
type InstrGlobalSet struct {
	Global uint32
	Value  VarID
}

// BinOp identifies a binary numeric operator; the operand/result type is
// carried on the owning InstrBinOp, not encoded in the kind, mirroring how
// the Wasm opcode space itself separates type from operation.
type BinOp byte

const (
	BinOpAdd BinOp = iota
	BinOpSub
	BinOpMul
	BinOpDivS
	BinOpDivU
	BinOpRemS
	BinOpRemU
	BinOpAnd
	BinOpOr
	BinOpXor
	BinOpShl
	BinOpShrS
	BinOpShrU
	BinOpRotl
	BinOpRotr
	BinOpFDiv
	BinOpFMin
	BinOpFMax
	BinOpFCopysign
)

// InstrBinOp applies a binary operator of Type to X and Y.
type InstrBinOp struct {
	Result VarID
	Op     BinOp
	Type   ValType
	X, Y   VarID
}

// UnOp identifies a unary numeric operator.
type UnOp byte

const (
	UnOpClz UnOp = iota
	UnOpCtz
	UnOpPopcnt
	UnOpFAbs
	UnOpFNeg
	UnOpFCeil
	UnOpFFloor
	UnOpFTrunc
	UnOpFNearest
	UnOpFSqrt
)

// InstrUnOp applies a unary operator of Type to X.
type InstrUnOp struct {
	Result VarID
	Op     UnOp
	Type   ValType
	X      VarID
}

// CompareOp identifies a comparison operator, producing an i32 boolean.
type CompareOp byte

const (
	CmpEq CompareOp = iota
	CmpNe
	CmpLtS
	CmpLtU
	CmpGtS
	CmpGtU
	CmpLeS
	CmpLeU
	CmpGeS
	CmpGeU
	CmpFLt
	CmpFGt
	CmpFLe
	CmpFGe
)

// InstrCompare compares X and Y of Type (the operand type, not the i32
// boolean result type) and writes 0/1 into Result.
type InstrCompare struct {
	Result VarID
	Op     CompareOp
	Type   ValType
	X, Y   VarID
}

// InstrEqz is the dedicated "is this integer zero" test (i32.eqz/i64.eqz),
// kept distinct from InstrCompare because it is unary.
type InstrEqz struct {
	Result VarID
	Type   ValType
	X      VarID
}

// ConvertOp enumerates the numeric conversion family: wrap, extend, trunc
// (trapping and saturating), convert, demote/promote, reinterpret, and the
// sign-extension-ops proposal's narrow-to-wide sign extensions.
type ConvertOp byte

const (
	ConvI32WrapI64 ConvertOp = iota
	ConvI64ExtendI32S
	ConvI64ExtendI32U
	ConvI32TruncF32S
	ConvI32TruncF32U
	ConvI32TruncF64S
	ConvI32TruncF64U
	ConvI64TruncF32S
	ConvI64TruncF32U
	ConvI64TruncF64S
	ConvI64TruncF64U
	ConvF32ConvertI32S
	ConvF32ConvertI32U
	ConvF32ConvertI64S
	ConvF32ConvertI64U
	ConvF64ConvertI32S
	ConvF64ConvertI32U
	ConvF64ConvertI64S
	ConvF64ConvertI64U
	ConvF32DemoteF64
	ConvF64PromoteF32
	ConvI32ReinterpretF32
	ConvI64ReinterpretF64
	ConvF32ReinterpretI32
	ConvF64ReinterpretI64
	ConvI32Extend8S
	ConvI32Extend16S
	ConvI64Extend8S
	ConvI64Extend16S
	ConvI64Extend32S
)

// InstrConvert applies Op to X. Saturating is only meaningful for the
// ConvI32Trunc*/ConvI64Trunc* family: when set, out-of-range/NaN inputs
// saturate to the representable extreme instead of trapping (the
// "nontrapping-float-to-int-conversion" extension).
type InstrConvert struct {
	Result     VarID
	Op         ConvertOp
	X          VarID
	Saturating bool
}

// MemArg is the alignment hint and static offset carried by every memory
// instruction. Alignment is accepted even when it exceeds natural alignment
// (non-semantic) per spec 4.4.2.
type MemArg struct {
	Align  uint32
	Offset uint32
}

// LoadWidth is the number of bytes a load/store instruction transfers,
// which may be narrower than the result ValType (e.g. i32.load8_s).
type LoadWidth byte

const (
	Width8 LoadWidth = iota
	Width16
	Width32
	Width64
)

// InstrLoad reads Width bytes at Addr+MemArg.Offset and zero/sign-extends
// (per Signed) to the full Type.
type InstrLoad struct {
	Result VarID
	Type   ValType
	Width  LoadWidth
	Signed bool
	Mem    MemArg
	Addr   VarID
}

// InstrStore writes the low Width bytes of Value to Addr+MemArg.Offset.
type InstrStore struct {
	Type  ValType
	Width LoadWidth
	Mem   MemArg
	Addr  VarID
	Value VarID
}

// InstrMemorySize implements memory.size.
type InstrMemorySize struct{ Result VarID }

// InstrMemoryGrow implements memory.grow.
type InstrMemoryGrow struct {
	Result VarID
	Delta  VarID
}

// InstrMemoryFill implements memory.fill (bulk-memory-operations).
type InstrMemoryFill struct {
	Dest  VarID
	Value VarID
	Size  VarID
}

// InstrMemoryCopy implements memory.copy (bulk-memory-operations).
type InstrMemoryCopy struct {
	Dest VarID
	Src  VarID
	Size VarID
}

// InstrMemoryInit implements memory.init from data segment DataIdx.
type InstrMemoryInit struct {
	DataIdx uint32
	Dest    VarID
	Src     VarID
	Size    VarID
}

// InstrDataDrop implements data.drop on segment DataIdx.
type InstrDataDrop struct {
	DataIdx uint32
}

// InstrSelect implements select (and typed select T): picks X if Cond != 0
// else Y.
type InstrSelect struct {
	Result VarID
	Type   ValType
	Cond   VarID
	X, Y   VarID
}

// InstrRefNull produces a null reference of Type.
type InstrRefNull struct {
	Result VarID
	Type   ValType
}

// InstrRefIsNull tests whether X is the null reference.
type InstrRefIsNull struct {
	Result VarID
	X      VarID
}

// InstrRefFunc produces a funcref to function FuncIdx.
type InstrRefFunc struct {
	Result   VarID
	FuncIdx  uint32
}

// InstrTableGet reads table TableIdx at Index.
type InstrTableGet struct {
	Result   VarID
	TableIdx uint32
	Index    VarID
}

// InstrTableSet writes Value into table TableIdx at Index.
type InstrTableSet struct {
	TableIdx uint32
	Index    VarID
	Value    VarID
}

// InstrTableSize implements table.size.
type InstrTableSize struct {
	Result   VarID
	TableIdx uint32
}

// InstrTableGrow implements table.grow.
type InstrTableGrow struct {
	Result   VarID
	TableIdx uint32
	Value    VarID
	Delta    VarID
}

// InstrTableFill implements table.fill.
type InstrTableFill struct {
	TableIdx uint32
	Dest     VarID
	Value    VarID
	Size     VarID
}

// InstrTableCopy implements table.copy between two (possibly equal) tables.
type InstrTableCopy struct {
	DstTableIdx uint32
	SrcTableIdx uint32
	Dest        VarID
	Src         VarID
	Size        VarID
}

// InstrTableInit implements table.init from element segment ElemIdx into
// table TableIdx.
type InstrTableInit struct {
	TableIdx uint32
	ElemIdx  uint32
	Dest     VarID
	Src      VarID
	Size     VarID
}

// InstrElemDrop implements elem.drop on segment ElemIdx.
type InstrElemDrop struct {
	ElemIdx uint32
}

func (InstrConst) instruction()      {}
func (InstrLocalGet) instruction()   {}
func (InstrLocalSet) instruction()   {}
func (InstrLocalTee) instruction()   {}
func (InstrGlobalGet) instruction()  {}
func (InstrGlobalSet) instruction()  {}
func (InstrBinOp) instruction()      {}
func (InstrUnOp) instruction()       {}
func (InstrCompare) instruction()    {}
func (InstrEqz) instruction()        {}
func (InstrConvert) instruction()    {}
func (InstrLoad) instruction()       {}
func (InstrStore) instruction()      {}
func (InstrMemorySize) instruction() {}
func (InstrMemoryGrow) instruction() {}
func (InstrMemoryFill) instruction() {}
func (InstrMemoryCopy) instruction() {}
func (InstrMemoryInit) instruction() {}
func (InstrDataDrop) instruction()   {}
func (InstrSelect) instruction()     {}
func (InstrRefNull) instruction()    {}
func (InstrRefIsNull) instruction()  {}
func (InstrRefFunc) instruction()    {}
func (InstrTableGet) instruction()   {}
func (InstrTableSet) instruction()   {}
func (InstrTableSize) instruction()  {}
func (InstrTableGrow) instruction()  {}
func (InstrTableFill) instruction()  {}
func (InstrTableCopy) instruction()  {}
func (InstrTableInit) instruction()  {}
func (InstrElemDrop) instruction()   {}
