// Package interpreter implements the tree-walking, explicit-frame-stack
// execution engine over internal/ir's basic-block IR (spec C8). It never
// recurses through the Go call stack for Wasm-to-Wasm calls: Call and
// CallIndirect push an explicit Frame and the engine's run loop continues,
// so a deeply recursive Wasm program is bounded by the configured
// recursion-depth guard rather than by the host's stack size.
package interpreter

import (
	"github.com/wasmine/wasmine/internal/ir"
	"github.com/wasmine/wasmine/internal/trap"
	"github.com/wasmine/wasmine/internal/wasm"
)

// DefaultRecursionLimit bounds the explicit frame stack (spec 4.7.4, design
// value 100000), catching runaway recursion as a catchable trap instead of
// letting the host process exhaust memory.
const DefaultRecursionLimit = 100000

// Engine executes one function call (and everything it calls) to
// completion. It carries no state between calls; a single Engine value is
// safe to share across goroutines.
type Engine struct {
	RecursionLimit int
}

// New returns an Engine with the default recursion limit.
func New() *Engine {
	return &Engine{RecursionLimit: DefaultRecursionLimit}
}

// frame is one call's execution state: its local-variable store, its
// SSA-variable store, and a cursor into the basic block it is currently
// executing.
type frame struct {
	inst *wasm.Instance
	fn   *wasm.FunctionInstance
	fnIR *ir.FunctionIR

	locals []ir.RawValue
	vars   []ir.RawValue

	block    ir.BlockID
	instrIdx int

	// Where results land once this frame returns: the caller's block to
	// resume in and which of the caller's vars receive the results.
	returnBlock ir.BlockID
	resultVars  []ir.VarID
}

func newFrame(inst *wasm.Instance, fn *wasm.FunctionInstance, fnIR *ir.FunctionIR, args []ir.RawValue) *frame {
	locals := make([]ir.RawValue, len(fnIR.Locals))
	copy(locals, args)
	return &frame{
		inst: inst, fn: fn, fnIR: fnIR,
		locals: locals,
		vars:   make([]ir.RawValue, fnIR.NumVars),
	}
}

// Call invokes fn with args, returning its results or the error produced by
// a trap (including `unreachable`), a host-function failure, or a failure to
// lower fn's body.
// Call is the only entry point that recovers a panicked trap; everything
// below it uses panic to unwind, matching the teacher's top-level
// recover-and-convert convention.
func (e *Engine) Call(inst *wasm.Instance, fn *wasm.FunctionInstance, args []ir.RawValue) (results []ir.RawValue, err error) {
	defer func() {
		if v := recover(); v != nil {
			err = trap.Recover(v)
		}
	}()
	if fn.Home != nil {
		inst, fn = fn.Home, fn.Home.Functions[fn.HomeIndex]
	}
	if fn.Host != nil {
		return fn.Host(inst, args)
	}
	fnIR, lowerErr := fn.IR()
	if lowerErr != nil {
		return nil, lowerErr
	}
	f := newFrame(inst, fn, fnIR, args)
	frames := []*frame{f}
	return e.run(frames)
}

// run is the central dispatch loop: execute straight-line instructions in
// the top frame's current block, then act on its terminator.
func (e *Engine) run(frames []*frame) ([]ir.RawValue, error) {
	for {
		if len(frames) > e.RecursionLimit {
			panic(trap.Exhaustion())
		}
		f := frames[len(frames)-1]
		block := f.fnIR.Block(f.block)

		for f.instrIdx < len(block.Instrs) {
			execInstr(f, block.Instrs[f.instrIdx])
			f.instrIdx++
		}

		switch t := block.Term.(type) {
		case ir.Jmp:
			target := f.fnIR.Block(t.Target)
			writePhiOutputs(f, target, t.Outputs)
			f.block, f.instrIdx = t.Target, 0

		case ir.JmpCond:
			target := t.IfFalse
			if ir.DecodeU32(f.vars[t.Cond]) != 0 {
				target = t.IfTrue
			}
			tb := f.fnIR.Block(target)
			writePhiOutputs(f, tb, t.Outputs)
			f.block, f.instrIdx = target, 0

		case ir.JmpTable:
			sel := ir.DecodeU32(f.vars[t.Selector])
			target := t.Default
			outputs := t.DefaultOutputs
			if int(sel) < len(t.Targets) {
				target = t.Targets[sel]
				outputs = t.TargetOutputs[sel]
			}
			tb := f.fnIR.Block(target)
			writePhiOutputs(f, tb, outputs)
			f.block, f.instrIdx = target, 0

		case ir.Call:
			callee := f.inst.Functions[t.Callee]
			args := gather(f.vars, t.Params)
			if callee.Host != nil {
				results, err := callee.Host(f.inst, args)
				if err != nil {
					panic(&trap.HostError{Cause: err})
				}
				scatter(f.vars, t.Results, results)
				f.block, f.instrIdx = t.ReturnBlock, 0
				continue
			}
			calleeIR, err := callee.IR()
			if err != nil {
				panic(err)
			}
			calleeInst := f.inst
			if callee.Home != nil {
				calleeInst = callee.Home
				callee = callee.Home.Functions[callee.HomeIndex]
			}
			nf := newFrame(calleeInst, callee, calleeIR, args)
			nf.returnBlock, nf.resultVars = t.ReturnBlock, t.Results
			f.block, f.instrIdx = t.ReturnBlock, 0 // resumed only after nf returns; see below
			frames = append(frames, nf)

		case ir.CallIndirect:
			idx := ir.DecodeU32(f.vars[t.Selector])
			callee, err := resolveIndirect(f.inst, t.TableIdx, idx, t.TypeID)
			if err != nil {
				panic(err)
			}
			args := gather(f.vars, t.Params)
			if callee.Host != nil {
				results, err := callee.Host(f.inst, args)
				if err != nil {
					panic(&trap.HostError{Cause: err})
				}
				scatter(f.vars, t.Results, results)
				f.block, f.instrIdx = t.ReturnBlock, 0
				continue
			}
			calleeIR, err := callee.IR()
			if err != nil {
				panic(err)
			}
			calleeInst := f.inst
			if callee.Home != nil {
				calleeInst = callee.Home
				callee = callee.Home.Functions[callee.HomeIndex]
			}
			nf := newFrame(calleeInst, callee, calleeIR, args)
			nf.returnBlock, nf.resultVars = t.ReturnBlock, t.Results
			f.block, f.instrIdx = t.ReturnBlock, 0
			frames = append(frames, nf)

		case ir.Return:
			results := gather(f.vars, t.Values)
			frames = frames[:len(frames)-1]
			if len(frames) == 0 {
				return results, nil
			}
			caller := frames[len(frames)-1]
			scatter(caller.vars, f.resultVars, results)
			caller.block, caller.instrIdx = f.returnBlock, 0

		case ir.Unreachable:
			panic(trap.New(trap.CodeUnreachable))

		default:
			panic(trap.New(trap.CodeUnreachable))
		}
	}
}

func writePhiOutputs(f *frame, target *ir.BasicBlock, outputs []ir.VarID) {
	for i, v := range outputs {
		if i < len(target.Inputs) {
			f.vars[target.Inputs[i].Output] = f.vars[v]
		}
	}
}

func gather(vars []ir.RawValue, ids []ir.VarID) []ir.RawValue {
	out := make([]ir.RawValue, len(ids))
	for i, id := range ids {
		out[i] = vars[id]
	}
	return out
}

func scatter(vars []ir.RawValue, ids []ir.VarID, values []ir.RawValue) {
	for i, id := range ids {
		if i < len(values) {
			vars[id] = values[i]
		}
	}
}

// resolveIndirect resolves call_indirect's dynamic callee: the table entry
// at idx must be a non-null funcref whose function's type matches wantType
// exactly. An index outside the table, like a null slot, has no element to
// call and traps UndefinedElement rather than OutOfBoundsTableAccess (that
// code is reserved for table.get/table.set's own bounds checks).
func resolveIndirect(inst *wasm.Instance, tableIdx, idx uint32, wantType ir.TypeID) (*wasm.FunctionInstance, error) {
	if int(tableIdx) >= len(inst.Tables) {
		return nil, trap.New(trap.CodeOutOfBoundsTableAccess)
	}
	item, ok := inst.Tables[tableIdx].Get(idx)
	if !ok {
		return nil, trap.New(trap.CodeUndefinedElement)
	}
	if item.Null {
		return nil, trap.New(trap.CodeUndefinedElement)
	}
	if int(item.FuncRef) >= len(inst.Functions) {
		return nil, trap.New(trap.CodeUndefinedElement)
	}
	callee := inst.Functions[item.FuncRef]
	if callee.TypeID != wantType {
		return nil, trap.New(trap.CodeIndirectCallTypeMismatch)
	}
	return callee, nil
}
