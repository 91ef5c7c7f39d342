package interpreter

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/wasmine/wasmine/internal/ir"
	"github.com/wasmine/wasmine/internal/trap"
	"github.com/wasmine/wasmine/internal/wasm"
)

// runRecovering runs frames the way Engine.Call does, converting a panicked
// trap into the returned error.
func runRecovering(e *Engine, frames []*frame) (results []ir.RawValue, err error) {
	defer func() {
		if v := recover(); v != nil {
			err = trap.Recover(v)
		}
	}()
	return e.run(frames)
}

func TestRunStraightLineAdd(t *testing.T) {
	fn := &ir.FunctionIR{
		NumVars: 3,
		Blocks: []*ir.BasicBlock{
			{
				ID: 0,
				Instrs: []ir.Instruction{
					ir.InstrConst{Result: 0, Type: ir.ValTypeI32, Bits: ir.EncodeI32(2)},
					ir.InstrConst{Result: 1, Type: ir.ValTypeI32, Bits: ir.EncodeI32(3)},
					ir.InstrBinOp{Result: 2, Op: ir.BinOpAdd, Type: ir.ValTypeI32, X: 0, Y: 1},
				},
				Term: ir.Return{Values: []ir.VarID{2}},
			},
		},
	}
	inst := &wasm.Instance{}
	f := &frame{inst: inst, fnIR: fn, vars: make([]ir.RawValue, fn.NumVars)}

	e := New()
	results, err := e.run([]*frame{f})
	require.NoError(t, err)
	require.Len(t, results, 1)
	require.Equal(t, int32(5), ir.DecodeI32(results[0]))
}

func TestRunDivisionByZeroTraps(t *testing.T) {
	fn := &ir.FunctionIR{
		NumVars: 2,
		Blocks: []*ir.BasicBlock{
			{
				ID: 0,
				Instrs: []ir.Instruction{
					ir.InstrConst{Result: 0, Type: ir.ValTypeI32, Bits: ir.EncodeI32(1)},
					ir.InstrConst{Result: 1, Type: ir.ValTypeI32, Bits: ir.EncodeI32(0)},
					ir.InstrBinOp{Result: 0, Op: ir.BinOpDivS, Type: ir.ValTypeI32, X: 0, Y: 1},
				},
				Term: ir.Return{Values: []ir.VarID{0}},
			},
		},
	}
	inst := &wasm.Instance{}
	f := &frame{inst: inst, fnIR: fn, vars: make([]ir.RawValue, fn.NumVars)}

	e := New()
	_, err := runRecovering(e, []*frame{f})
	require.Error(t, err)
}

func TestRunConditionalBranch(t *testing.T) {
	// block 0: cond = 1, JmpCond -> block 1 (true) else block 2, outputs none.
	// block 1: const 10, Jmp -> block 3 with output var 2.
	// block 2: const 20, Jmp -> block 3 with output var 3.
	// block 3: phi merges into var 4, Return [4].
	fn := &ir.FunctionIR{
		NumVars: 5,
		Blocks: []*ir.BasicBlock{
			{
				ID: 0,
				Instrs: []ir.Instruction{
					ir.InstrConst{Result: 0, Type: ir.ValTypeI32, Bits: ir.EncodeI32(1)},
				},
				Term: ir.JmpCond{Cond: 0, IfTrue: 1, IfFalse: 2},
			},
			{
				ID: 1,
				Instrs: []ir.Instruction{
					ir.InstrConst{Result: 2, Type: ir.ValTypeI32, Bits: ir.EncodeI32(10)},
				},
				Term: ir.Jmp{Target: 3, Outputs: []ir.VarID{2}},
			},
			{
				ID: 2,
				Instrs: []ir.Instruction{
					ir.InstrConst{Result: 3, Type: ir.ValTypeI32, Bits: ir.EncodeI32(20)},
				},
				Term: ir.Jmp{Target: 3, Outputs: []ir.VarID{3}},
			},
			{
				ID:     3,
				Inputs: []*ir.Phi{{Output: 4, Type: ir.ValTypeI32}},
				Term:   ir.Return{Values: []ir.VarID{4}},
			},
		},
	}
	inst := &wasm.Instance{}
	f := &frame{inst: inst, fnIR: fn, vars: make([]ir.RawValue, fn.NumVars)}

	e := New()
	results, err := e.run([]*frame{f})
	require.NoError(t, err)
	require.Equal(t, int32(10), ir.DecodeI32(results[0]))
}

func TestRunDirectCallToHostFunction(t *testing.T) {
	host := &wasm.FunctionInstance{
		Host: func(inst *wasm.Instance, args []ir.RawValue) ([]ir.RawValue, error) {
			return []ir.RawValue{args[0] + 1}, nil
		},
	}
	inst := &wasm.Instance{Functions: []*wasm.FunctionInstance{host}}

	fn := &ir.FunctionIR{
		NumVars: 2,
		Blocks: []*ir.BasicBlock{
			{
				ID: 0,
				Instrs: []ir.Instruction{
					ir.InstrConst{Result: 0, Type: ir.ValTypeI32, Bits: ir.EncodeI32(41)},
				},
				Term: ir.Call{Callee: 0, ReturnBlock: 1, Params: []ir.VarID{0}, Results: []ir.VarID{1}},
			},
			{
				ID:   1,
				Term: ir.Return{Values: []ir.VarID{1}},
			},
		},
	}
	f := &frame{inst: inst, fnIR: fn, vars: make([]ir.RawValue, fn.NumVars)}

	e := New()
	results, err := e.run([]*frame{f})
	require.NoError(t, err)
	require.Equal(t, int32(42), ir.DecodeI32(results[0]))
}

func TestRunUnreachableTraps(t *testing.T) {
	fn := &ir.FunctionIR{
		Blocks: []*ir.BasicBlock{
			{ID: 0, Term: ir.Unreachable{}},
		},
	}
	inst := &wasm.Instance{}
	f := &frame{inst: inst, fnIR: fn, vars: make([]ir.RawValue, 0)}

	e := New()
	_, err := runRecovering(e, []*frame{f})
	require.Error(t, err)
}
