package validator

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/wasmine/wasmine/internal/ir"
)

// fakeEnv is a minimal ModuleEnv for function-body-only tests that don't
// need a full decoded module.
type fakeEnv struct {
	types    []*ir.FuncType
	funcs    []*ir.FuncType
	globals  []ir.GlobalType
	tables   []ir.ValType
	hasMem   bool
	dataSegs uint32
	elemSegs uint32
}

func (e *fakeEnv) TypeOf(idx uint32) *ir.FuncType       { return e.funcs[idx] }
func (e *fakeEnv) NumFuncs() int                        { return len(e.funcs) }
func (e *fakeEnv) GlobalTypeAt(idx uint32) (ir.ValType, bool, bool) {
	if int(idx) >= len(e.globals) {
		return 0, false, false
	}
	g := e.globals[idx]
	return g.Type, g.Mutable, true
}
func (e *fakeEnv) NumGlobals() int { return len(e.globals) }
func (e *fakeEnv) TableTypeAt(idx uint32) (ir.ValType, bool) {
	if int(idx) >= len(e.tables) {
		return 0, false
	}
	return e.tables[idx], true
}
func (e *fakeEnv) NumTables() int                 { return len(e.tables) }
func (e *fakeEnv) HasMemory() bool                { return e.hasMem }
func (e *fakeEnv) DataSegmentCount() uint32       { return e.dataSegs }
func (e *fakeEnv) ElemSegmentCount() uint32       { return e.elemSegs }
func (e *fakeEnv) TypeAtIndex(idx uint32) (*ir.FuncType, bool) {
	if int(idx) >= len(e.types) {
		return nil, false
	}
	return e.types[idx], true
}
func (e *fakeEnv) TypeIDAtIndex(idx uint32) (ir.TypeID, bool) {
	if int(idx) >= len(e.types) {
		return 0, false
	}
	return ir.TypeID(idx), true
}

func TestLowerAdd(t *testing.T) {
	env := &fakeEnv{}
	// local.get 0, local.get 1, i32.add, end
	body := []byte{0x20, 0x00, 0x20, 0x01, 0x6a, 0x0b}
	fn, err := Lower(env, []ir.ValType{ir.ValTypeI32, ir.ValTypeI32}, 2, []ir.ValType{ir.ValTypeI32}, body)
	require.NoError(t, err)
	require.Len(t, fn.Blocks, 1)
	term, ok := fn.Blocks[0].Term.(ir.Return)
	require.True(t, ok)
	require.Len(t, term.Values, 1)
}

func TestLowerIfElse(t *testing.T) {
	env := &fakeEnv{}
	// local.get 0
	// if (result i32)
	//   i32.const 1
	// else
	//   i32.const 2
	// end
	// end
	body := []byte{
		0x20, 0x00,
		0x04, 0x7f,
		0x41, 0x01,
		0x05,
		0x41, 0x02,
		0x0b,
		0x0b,
	}
	fn, err := Lower(env, []ir.ValType{ir.ValTypeI32}, 1, []ir.ValType{ir.ValTypeI32}, body)
	require.NoError(t, err)
	// header, then, join, else blocks at minimum: the join block is
	// allocated when the if opens, before the else block.
	require.GreaterOrEqual(t, len(fn.Blocks), 4)
	join := fn.Blocks[2]
	require.Len(t, join.Inputs, 1)
	require.Len(t, join.Inputs[0].Inputs, 2)
}

func TestLowerLoopBranch(t *testing.T) {
	env := &fakeEnv{}
	// loop
	//   br 0
	// end
	// unreachable
	// end
	body := []byte{
		0x03, 0x40,
		0x0c, 0x00,
		0x0b,
		0x00,
		0x0b,
	}
	fn, err := Lower(env, nil, 0, nil, body)
	require.NoError(t, err)
	require.NotEmpty(t, fn.Blocks)
}

func TestLowerUnreachable(t *testing.T) {
	env := &fakeEnv{}
	body := []byte{0x00, 0x0b}
	fn, err := Lower(env, nil, 0, nil, body)
	require.NoError(t, err)
	_, ok := fn.Blocks[0].Term.(ir.Unreachable)
	require.True(t, ok)
}

func TestLowerCall(t *testing.T) {
	callee := &ir.FuncType{Params: []ir.ValType{ir.ValTypeI32}, Results: []ir.ValType{ir.ValTypeI32}}
	env := &fakeEnv{funcs: []*ir.FuncType{callee}}
	body := []byte{0x41, 0x05, 0x10, 0x00, 0x0b}
	fn, err := Lower(env, nil, 0, []ir.ValType{ir.ValTypeI32}, body)
	require.NoError(t, err)
	require.Len(t, fn.Blocks, 2)
	_, ok := fn.Blocks[0].Term.(ir.Call)
	require.True(t, ok)
}

func TestLowerStackUnderflow(t *testing.T) {
	env := &fakeEnv{}
	body := []byte{0x6a, 0x0b} // i32.add with nothing on the stack
	_, err := Lower(env, nil, 0, nil, body)
	require.Error(t, err)
}
