package interpreter

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/wasmine/wasmine/internal/ir"
)

func TestBinOpI32DivSOverflowTraps(t *testing.T) {
	defer func() {
		require.NotNil(t, recover())
	}()
	binOpI32(ir.BinOpDivS, math.MinInt32, -1)
}

func TestBinOpI32RemSOverflowIsZero(t *testing.T) {
	r := binOpI32(ir.BinOpRemS, math.MinInt32, -1)
	require.Equal(t, int32(0), ir.DecodeI32(r))
}

func TestBinOpI32ShiftMasksAmount(t *testing.T) {
	r := binOpI32(ir.BinOpShl, 1, 32)
	require.Equal(t, int32(1), ir.DecodeI32(r))
}

func TestCompareI32Unsigned(t *testing.T) {
	r := execCompare(ir.CmpLtU, ir.ValTypeI32, ir.EncodeI32(-1), ir.EncodeI32(1))
	require.Equal(t, ir.RawValue(0), r)
}

func TestTruncToI32SaturatesOnNaN(t *testing.T) {
	r := truncToI32(math.NaN(), true, true)
	require.Equal(t, int32(0), ir.DecodeI32(r))
}

func TestTruncToI32TrapsOnNaNWithoutSaturation(t *testing.T) {
	defer func() {
		require.NotNil(t, recover())
	}()
	truncToI32(math.NaN(), true, false)
}

func TestTruncToI32SaturatesOnOverflow(t *testing.T) {
	r := truncToI32(1e20, true, true)
	require.Equal(t, int32(math.MaxInt32), ir.DecodeI32(r))
}

func TestConvertSignExtend8(t *testing.T) {
	r := execConvert(ir.ConvI32Extend8S, ir.RawValue(0xff), false)
	require.Equal(t, int32(-1), ir.DecodeI32(r))
}

func TestFMinPropagatesNegativeZero(t *testing.T) {
	r := fMin32(0, float32(math.Copysign(0, -1)))
	require.True(t, math.Signbit(float64(r)))
}
