package interpreter

import (
	"math"
	"math/bits"

	"github.com/wasmine/wasmine/internal/ir"
	"github.com/wasmine/wasmine/internal/trap"
)

func execBinOp(op ir.BinOp, t ir.ValType, x, y ir.RawValue) ir.RawValue {
	switch t {
	case ir.ValTypeI32:
		return binOpI32(op, ir.DecodeI32(x), ir.DecodeI32(y))
	case ir.ValTypeI64:
		return binOpI64(op, ir.DecodeI64(x), ir.DecodeI64(y))
	case ir.ValTypeF32:
		return binOpF32(op, ir.DecodeF32(x), ir.DecodeF32(y))
	default:
		return binOpF64(op, ir.DecodeF64(x), ir.DecodeF64(y))
	}
}

func binOpI32(op ir.BinOp, x, y int32) ir.RawValue {
	ux, uy := uint32(x), uint32(y)
	switch op {
	case ir.BinOpAdd:
		return ir.RawValue(ux + uy)
	case ir.BinOpSub:
		return ir.RawValue(ux - uy)
	case ir.BinOpMul:
		return ir.RawValue(ux * uy)
	case ir.BinOpDivS:
		if y == 0 {
			panic(trap.New(trap.CodeIntegerDivideByZero))
		}
		if x == math.MinInt32 && y == -1 {
			panic(trap.New(trap.CodeIntegerOverflow))
		}
		return ir.EncodeI32(x / y)
	case ir.BinOpDivU:
		if uy == 0 {
			panic(trap.New(trap.CodeIntegerDivideByZero))
		}
		return ir.RawValue(ux / uy)
	case ir.BinOpRemS:
		if y == 0 {
			panic(trap.New(trap.CodeIntegerDivideByZero))
		}
		if x == math.MinInt32 && y == -1 {
			return 0
		}
		return ir.EncodeI32(x % y)
	case ir.BinOpRemU:
		if uy == 0 {
			panic(trap.New(trap.CodeIntegerDivideByZero))
		}
		return ir.RawValue(ux % uy)
	case ir.BinOpAnd:
		return ir.RawValue(ux & uy)
	case ir.BinOpOr:
		return ir.RawValue(ux | uy)
	case ir.BinOpXor:
		return ir.RawValue(ux ^ uy)
	case ir.BinOpShl:
		return ir.RawValue(ux << (uy & 31))
	case ir.BinOpShrS:
		return ir.EncodeI32(x >> (uy & 31))
	case ir.BinOpShrU:
		return ir.RawValue(ux >> (uy & 31))
	case ir.BinOpRotl:
		return ir.RawValue(bits.RotateLeft32(ux, int(uy&31)))
	case ir.BinOpRotr:
		return ir.RawValue(bits.RotateLeft32(ux, -int(uy&31)))
	default:
		panic(trap.New(trap.CodeUnreachable))
	}
}

func binOpI64(op ir.BinOp, x, y int64) ir.RawValue {
	ux, uy := uint64(x), uint64(y)
	switch op {
	case ir.BinOpAdd:
		return ux + uy
	case ir.BinOpSub:
		return ux - uy
	case ir.BinOpMul:
		return ux * uy
	case ir.BinOpDivS:
		if y == 0 {
			panic(trap.New(trap.CodeIntegerDivideByZero))
		}
		if x == math.MinInt64 && y == -1 {
			panic(trap.New(trap.CodeIntegerOverflow))
		}
		return ir.EncodeI64(x / y)
	case ir.BinOpDivU:
		if uy == 0 {
			panic(trap.New(trap.CodeIntegerDivideByZero))
		}
		return ux / uy
	case ir.BinOpRemS:
		if y == 0 {
			panic(trap.New(trap.CodeIntegerDivideByZero))
		}
		if x == math.MinInt64 && y == -1 {
			return 0
		}
		return ir.EncodeI64(x % y)
	case ir.BinOpRemU:
		if uy == 0 {
			panic(trap.New(trap.CodeIntegerDivideByZero))
		}
		return ux % uy
	case ir.BinOpAnd:
		return ux & uy
	case ir.BinOpOr:
		return ux | uy
	case ir.BinOpXor:
		return ux ^ uy
	case ir.BinOpShl:
		return ux << (uy & 63)
	case ir.BinOpShrS:
		return ir.EncodeI64(x >> (uy & 63))
	case ir.BinOpShrU:
		return ux >> (uy & 63)
	case ir.BinOpRotl:
		return bits.RotateLeft64(ux, int(uy&63))
	case ir.BinOpRotr:
		return bits.RotateLeft64(ux, -int(uy&63))
	default:
		panic(trap.New(trap.CodeUnreachable))
	}
}

func binOpF32(op ir.BinOp, x, y float32) ir.RawValue {
	var r float32
	switch op {
	case ir.BinOpAdd:
		r = x + y
	case ir.BinOpSub:
		r = x - y
	case ir.BinOpMul:
		r = x * y
	case ir.BinOpFDiv:
		r = x / y
	case ir.BinOpFMin:
		r = fMin32(x, y)
	case ir.BinOpFMax:
		r = fMax32(x, y)
	case ir.BinOpFCopysign:
		// copysign is a pure sign-bit copy: NaN payloads must survive untouched.
		return ir.EncodeF32(float32(math.Copysign(float64(x), float64(y))))
	default:
		panic(trap.New(trap.CodeUnreachable))
	}
	return ir.EncodeF32(ir.CanonicalizeF32(r))
}

func binOpF64(op ir.BinOp, x, y float64) ir.RawValue {
	var r float64
	switch op {
	case ir.BinOpAdd:
		r = x + y
	case ir.BinOpSub:
		r = x - y
	case ir.BinOpMul:
		r = x * y
	case ir.BinOpFDiv:
		r = x / y
	case ir.BinOpFMin:
		r = fMin64(x, y)
	case ir.BinOpFMax:
		r = fMax64(x, y)
	case ir.BinOpFCopysign:
		// copysign is a pure sign-bit copy: NaN payloads must survive untouched.
		return ir.EncodeF64(math.Copysign(x, y))
	default:
		panic(trap.New(trap.CodeUnreachable))
	}
	return ir.EncodeF64(ir.CanonicalizeF64(r))
}

// fMin32/fMax32/fMin64/fMax64 implement Wasm's min/max: either NaN operand
// propagates (as a canonicalized NaN, via the caller), and -0 < +0.
func fMin32(x, y float32) float32 {
	if math.IsNaN(float64(x)) || math.IsNaN(float64(y)) {
		return float32(math.NaN())
	}
	if x == 0 && y == 0 {
		if math.Signbit(float64(x)) {
			return x
		}
		return y
	}
	if x < y {
		return x
	}
	return y
}

func fMax32(x, y float32) float32 {
	if math.IsNaN(float64(x)) || math.IsNaN(float64(y)) {
		return float32(math.NaN())
	}
	if x == 0 && y == 0 {
		if math.Signbit(float64(x)) {
			return y
		}
		return x
	}
	if x > y {
		return x
	}
	return y
}

func fMin64(x, y float64) float64 {
	if math.IsNaN(x) || math.IsNaN(y) {
		return math.NaN()
	}
	if x == 0 && y == 0 {
		if math.Signbit(x) {
			return x
		}
		return y
	}
	if x < y {
		return x
	}
	return y
}

func fMax64(x, y float64) float64 {
	if math.IsNaN(x) || math.IsNaN(y) {
		return math.NaN()
	}
	if x == 0 && y == 0 {
		if math.Signbit(x) {
			return y
		}
		return x
	}
	if x > y {
		return x
	}
	return y
}

func execUnOp(op ir.UnOp, t ir.ValType, x ir.RawValue) ir.RawValue {
	switch t {
	case ir.ValTypeI32:
		return unOpI32(op, ir.DecodeU32(x))
	case ir.ValTypeI64:
		return unOpI64(op, ir.DecodeU64(x))
	case ir.ValTypeF32:
		return unOpF32(op, ir.DecodeF32(x))
	default:
		return unOpF64(op, ir.DecodeF64(x))
	}
}

func unOpI32(op ir.UnOp, x uint32) ir.RawValue {
	switch op {
	case ir.UnOpClz:
		return ir.RawValue(bits.LeadingZeros32(x))
	case ir.UnOpCtz:
		return ir.RawValue(bits.TrailingZeros32(x))
	case ir.UnOpPopcnt:
		return ir.RawValue(bits.OnesCount32(x))
	default:
		panic(trap.New(trap.CodeUnreachable))
	}
}

func unOpI64(op ir.UnOp, x uint64) ir.RawValue {
	switch op {
	case ir.UnOpClz:
		return ir.RawValue(bits.LeadingZeros64(x))
	case ir.UnOpCtz:
		return ir.RawValue(bits.TrailingZeros64(x))
	case ir.UnOpPopcnt:
		return ir.RawValue(bits.OnesCount64(x))
	default:
		panic(trap.New(trap.CodeUnreachable))
	}
}

func unOpF32(op ir.UnOp, x float32) ir.RawValue {
	var r float32
	switch op {
	case ir.UnOpFAbs:
		// abs/neg are sign-bit flips, not arithmetic: NaN payloads must survive untouched.
		return ir.EncodeF32(float32(math.Abs(float64(x))))
	case ir.UnOpFNeg:
		return ir.EncodeF32(-x)
	case ir.UnOpFCeil:
		r = float32(math.Ceil(float64(x)))
	case ir.UnOpFFloor:
		r = float32(math.Floor(float64(x)))
	case ir.UnOpFTrunc:
		r = float32(math.Trunc(float64(x)))
	case ir.UnOpFNearest:
		r = float32(math.RoundToEven(float64(x)))
	case ir.UnOpFSqrt:
		r = float32(math.Sqrt(float64(x)))
	default:
		panic(trap.New(trap.CodeUnreachable))
	}
	return ir.EncodeF32(ir.CanonicalizeF32(r))
}

func unOpF64(op ir.UnOp, x float64) ir.RawValue {
	var r float64
	switch op {
	case ir.UnOpFAbs:
		// abs/neg are sign-bit flips, not arithmetic: NaN payloads must survive untouched.
		return ir.EncodeF64(math.Abs(x))
	case ir.UnOpFNeg:
		return ir.EncodeF64(-x)
	case ir.UnOpFCeil:
		r = math.Ceil(x)
	case ir.UnOpFFloor:
		r = math.Floor(x)
	case ir.UnOpFTrunc:
		r = math.Trunc(x)
	case ir.UnOpFNearest:
		r = math.RoundToEven(x)
	case ir.UnOpFSqrt:
		r = math.Sqrt(x)
	default:
		panic(trap.New(trap.CodeUnreachable))
	}
	return ir.EncodeF64(ir.CanonicalizeF64(r))
}

func execCompare(op ir.CompareOp, t ir.ValType, x, y ir.RawValue) ir.RawValue {
	switch t {
	case ir.ValTypeI32:
		return boolVal(cmpI32(op, ir.DecodeI32(x), ir.DecodeI32(y)))
	case ir.ValTypeI64:
		return boolVal(cmpI64(op, ir.DecodeI64(x), ir.DecodeI64(y)))
	case ir.ValTypeF32:
		return boolVal(cmpF(op, float64(ir.DecodeF32(x)), float64(ir.DecodeF32(y))))
	default:
		return boolVal(cmpF(op, ir.DecodeF64(x), ir.DecodeF64(y)))
	}
}

func cmpI32(op ir.CompareOp, x, y int32) bool {
	ux, uy := uint32(x), uint32(y)
	switch op {
	case ir.CmpEq:
		return x == y
	case ir.CmpNe:
		return x != y
	case ir.CmpLtS:
		return x < y
	case ir.CmpLtU:
		return ux < uy
	case ir.CmpGtS:
		return x > y
	case ir.CmpGtU:
		return ux > uy
	case ir.CmpLeS:
		return x <= y
	case ir.CmpLeU:
		return ux <= uy
	case ir.CmpGeS:
		return x >= y
	case ir.CmpGeU:
		return ux >= uy
	default:
		panic(trap.New(trap.CodeUnreachable))
	}
}

func cmpI64(op ir.CompareOp, x, y int64) bool {
	ux, uy := uint64(x), uint64(y)
	switch op {
	case ir.CmpEq:
		return x == y
	case ir.CmpNe:
		return x != y
	case ir.CmpLtS:
		return x < y
	case ir.CmpLtU:
		return ux < uy
	case ir.CmpGtS:
		return x > y
	case ir.CmpGtU:
		return ux > uy
	case ir.CmpLeS:
		return x <= y
	case ir.CmpLeU:
		return ux <= uy
	case ir.CmpGeS:
		return x >= y
	case ir.CmpGeU:
		return ux >= uy
	default:
		panic(trap.New(trap.CodeUnreachable))
	}
}

func cmpF(op ir.CompareOp, x, y float64) bool {
	switch op {
	case ir.CmpEq:
		return x == y
	case ir.CmpNe:
		return x != y
	case ir.CmpFLt:
		return x < y
	case ir.CmpFGt:
		return x > y
	case ir.CmpFLe:
		return x <= y
	case ir.CmpFGe:
		return x >= y
	default:
		panic(trap.New(trap.CodeUnreachable))
	}
}

// execConvert implements the numeric-conversion family, including the
// sign-extension ops and (when Saturating) the nontrapping float-to-int
// conversions.
func execConvert(op ir.ConvertOp, x ir.RawValue, saturating bool) ir.RawValue {
	switch op {
	case ir.ConvI32WrapI64:
		return ir.RawValue(uint32(ir.DecodeU64(x)))
	case ir.ConvI64ExtendI32S:
		return ir.EncodeI64(int64(ir.DecodeI32(x)))
	case ir.ConvI64ExtendI32U:
		return ir.RawValue(uint64(ir.DecodeU32(x)))
	case ir.ConvI32TruncF32S:
		return truncToI32(float64(ir.DecodeF32(x)), true, saturating)
	case ir.ConvI32TruncF32U:
		return truncToI32(float64(ir.DecodeF32(x)), false, saturating)
	case ir.ConvI32TruncF64S:
		return truncToI32(ir.DecodeF64(x), true, saturating)
	case ir.ConvI32TruncF64U:
		return truncToI32(ir.DecodeF64(x), false, saturating)
	case ir.ConvI64TruncF32S:
		return truncToI64(float64(ir.DecodeF32(x)), true, saturating)
	case ir.ConvI64TruncF32U:
		return truncToI64(float64(ir.DecodeF32(x)), false, saturating)
	case ir.ConvI64TruncF64S:
		return truncToI64(ir.DecodeF64(x), true, saturating)
	case ir.ConvI64TruncF64U:
		return truncToI64(ir.DecodeF64(x), false, saturating)
	case ir.ConvF32ConvertI32S:
		return ir.EncodeF32(float32(ir.DecodeI32(x)))
	case ir.ConvF32ConvertI32U:
		return ir.EncodeF32(float32(ir.DecodeU32(x)))
	case ir.ConvF32ConvertI64S:
		return ir.EncodeF32(float32(ir.DecodeI64(x)))
	case ir.ConvF32ConvertI64U:
		return ir.EncodeF32(float32(ir.DecodeU64(x)))
	case ir.ConvF64ConvertI32S:
		return ir.EncodeF64(float64(ir.DecodeI32(x)))
	case ir.ConvF64ConvertI32U:
		return ir.EncodeF64(float64(ir.DecodeU32(x)))
	case ir.ConvF64ConvertI64S:
		return ir.EncodeF64(float64(ir.DecodeI64(x)))
	case ir.ConvF64ConvertI64U:
		return ir.EncodeF64(float64(ir.DecodeU64(x)))
	case ir.ConvF32DemoteF64:
		return ir.EncodeF32(ir.CanonicalizeF32(float32(ir.DecodeF64(x))))
	case ir.ConvF64PromoteF32:
		return ir.EncodeF64(ir.CanonicalizeF64(float64(ir.DecodeF32(x))))
	case ir.ConvI32ReinterpretF32, ir.ConvI64ReinterpretF64, ir.ConvF32ReinterpretI32, ir.ConvF64ReinterpretI64:
		return x
	case ir.ConvI32Extend8S:
		return ir.EncodeI32(int32(int8(ir.DecodeU32(x))))
	case ir.ConvI32Extend16S:
		return ir.EncodeI32(int32(int16(ir.DecodeU32(x))))
	case ir.ConvI64Extend8S:
		return ir.EncodeI64(int64(int8(ir.DecodeU64(x))))
	case ir.ConvI64Extend16S:
		return ir.EncodeI64(int64(int16(ir.DecodeU64(x))))
	case ir.ConvI64Extend32S:
		return ir.EncodeI64(int64(int32(ir.DecodeU64(x))))
	default:
		panic(trap.New(trap.CodeUnreachable))
	}
}

func truncToI32(f float64, signed, saturating bool) ir.RawValue {
	if math.IsNaN(f) {
		if saturating {
			return 0
		}
		panic(trap.New(trap.CodeInvalidConversionToInteger))
	}
	if signed {
		lo, hi := -2147483649.0, 2147483648.0
		if f <= lo || f >= hi {
			if !saturating {
				panic(trap.New(trap.CodeIntegerOverflow))
			}
			if f <= lo {
				return ir.EncodeI32(math.MinInt32)
			}
			return ir.EncodeI32(math.MaxInt32)
		}
		return ir.EncodeI32(int32(f))
	}
	lo, hi := -1.0, 4294967296.0
	if f <= lo || f >= hi {
		if !saturating {
			panic(trap.New(trap.CodeIntegerOverflow))
		}
		if f <= lo {
			return 0
		}
		return ir.RawValue(uint32(math.MaxUint32))
	}
	return ir.RawValue(uint32(f))
}

func truncToI64(f float64, signed, saturating bool) ir.RawValue {
	if math.IsNaN(f) {
		if saturating {
			return 0
		}
		panic(trap.New(trap.CodeInvalidConversionToInteger))
	}
	if signed {
		lo, hi := -9223372036854777856.0, 9223372036854775808.0
		if f <= lo || f >= hi {
			if !saturating {
				panic(trap.New(trap.CodeIntegerOverflow))
			}
			if f <= lo {
				return ir.EncodeI64(math.MinInt64)
			}
			return ir.EncodeI64(math.MaxInt64)
		}
		return ir.EncodeI64(int64(f))
	}
	lo, hi := -1.0, 18446744073709551616.0
	if f <= lo || f >= hi {
		if !saturating {
			panic(trap.New(trap.CodeIntegerOverflow))
		}
		if f <= lo {
			return 0
		}
		return ir.RawValue(uint64(math.MaxUint64))
	}
	return ir.RawValue(uint64(f))
}
