package validator

import (
	"github.com/wasmine/wasmine/internal/ir"
	"github.com/wasmine/wasmine/internal/moduleerrors"
	"github.com/wasmine/wasmine/internal/wasm/binary"
)

// blockSig is a resolved block type: the params a structured control
// construct consumes and the results it produces, per spec 4.4.3's
// blocktype production (empty, a single valtype, or a type-section index).
type blockSig struct {
	Params, Results []ir.ValType
}

// ctrlFrame tracks one open block/loop/if construct while decoding.
type ctrlFrame struct {
	kind byte // opBlock, opLoop, or opIf
	sig  blockSig

	// label is the block a `br` targeting this depth jumps to: the loop
	// header for opLoop (continue), the join block for opBlock/opIf (break).
	label *ir.BasicBlock
	labelArity int
	labelTypes []ir.ValType

	// join is the block execution continues in once this construct closes
	// normally; nil for opLoop, since falling off a loop's `end` just
	// continues in whatever block was open (no new block is needed).
	join *ir.BasicBlock

	// if-specific: the pre-if block holding the deferred JmpCond, and the
	// then/else blocks it branches to.
	ifHeader  *ir.BasicBlock
	thenBlock *ir.BasicBlock
	elseBlock *ir.BasicBlock
	hasElse   bool
	condVar   ir.VarID

	paramVars []ir.VarID // operand-stack values live when this frame opened
	stackBase int        // opstack height below paramVars

	poisoned bool // true once an unconditional exit makes the rest of this frame's instructions stack-polymorphic (spec 4.4.1 "poison")
}

type funcDecoder struct {
	env    ModuleEnv
	r      *binary.Reader
	fn     *ir.FunctionIR
	numVars uint32

	opVals  []ir.VarID
	opTypes []ir.ValType

	ctrl []*ctrlFrame
	cur  *ir.BasicBlock

	resultTypes []ir.ValType
}

// Lower decodes and validates one function body, producing its basic-block
// IR. locals is the function's full local space (params followed by
// declared locals, already expanded from (count, valtype) groups);
// numParams marks where params end; results is the function's declared
// result types, used to type-check every `return` and the implicit return
// at the function's final `end`.
func Lower(env ModuleEnv, locals []ir.ValType, numParams int, results []ir.ValType, body []byte) (*ir.FunctionIR, error) {
	d := &funcDecoder{
		env:         env,
		r:           binary.NewReader(body),
		fn:          &ir.FunctionIR{Locals: locals, NumParams: numParams},
		resultTypes: results,
	}
	d.cur = d.newBlock()

	if err := d.decodeBody(); err != nil {
		return nil, err
	}
	d.fn.NumVars = int(d.numVars)
	return d.fn, nil
}

func (d *funcDecoder) newBlock() *ir.BasicBlock {
	b := &ir.BasicBlock{ID: ir.BlockID(len(d.fn.Blocks))}
	d.fn.Blocks = append(d.fn.Blocks, b)
	return b
}

func (d *funcDecoder) newVar() ir.VarID {
	v := ir.VarID(d.numVars)
	d.numVars++
	return v
}

func (d *funcDecoder) push(v ir.VarID, t ir.ValType) {
	d.opVals = append(d.opVals, v)
	d.opTypes = append(d.opTypes, t)
}

func (d *funcDecoder) pop() (ir.VarID, ir.ValType, error) {
	n := len(d.opVals)
	if n == 0 {
		if len(d.ctrl) > 0 && d.ctrl[len(d.ctrl)-1].poisoned {
			// Stack-polymorphic: manufacture a fresh unconstrained value so
			// decoding of unreachable code can continue structurally.
			return d.newVar(), ir.ValTypeI32, nil
		}
		return 0, 0, moduleerrors.Invalid("operand stack underflow")
	}
	v, t := d.opVals[n-1], d.opTypes[n-1]
	d.opVals = d.opVals[:n-1]
	d.opTypes = d.opTypes[:n-1]
	return v, t, nil
}

func (d *funcDecoder) popExpect(want ir.ValType) (ir.VarID, error) {
	v, t, err := d.pop()
	if err != nil {
		return 0, err
	}
	if t != want {
		// Under poison, manufactured values carry a placeholder type that
		// need not match; only enforce outside poisoned frames.
		if len(d.ctrl) == 0 || !d.ctrl[len(d.ctrl)-1].poisoned {
			return 0, moduleerrors.Invalid("type mismatch: expected %s, got %s", want, t)
		}
	}
	return v, nil
}

func (d *funcDecoder) appendInstr(i ir.Instruction) {
	d.cur.Instrs = append(d.cur.Instrs, i)
}

func (d *funcDecoder) topFrame() *ctrlFrame {
	if len(d.ctrl) == 0 {
		return nil
	}
	return d.ctrl[len(d.ctrl)-1]
}

// readBlockSig decodes the blocktype production: 0x40 (empty), a single
// valtype byte, or a signed LEB128 type-section index (multi-value).
func (d *funcDecoder) readBlockSig() (blockSig, error) {
	v, err := d.r.ReadS33()
	if err != nil {
		return blockSig{}, err
	}
	if v == -0x40 { // encoded as 0x40, sign-extended: empty block type
		return blockSig{}, nil
	}
	if v >= 0 {
		ft, ok := d.env.TypeAtIndex(uint32(v))
		if !ok {
			return blockSig{}, moduleerrors.Invalid("block type index %d out of range", v)
		}
		return blockSig{Params: ft.Params, Results: ft.Results}, nil
	}
	vt := ir.ValType(byte(v & 0x7f))
	if !vt.IsValid() {
		return blockSig{}, moduleerrors.Malformed("invalid block value type encoding")
	}
	return blockSig{Results: []ir.ValType{vt}}, nil
}

// makeJoinBlock allocates a join block with a phi per result type.
func (d *funcDecoder) makeJoinBlock(types []ir.ValType) *ir.BasicBlock {
	b := d.newBlock()
	b.Inputs = make([]*ir.Phi, len(types))
	for i, t := range types {
		b.Inputs[i] = &ir.Phi{Output: d.newVar(), Type: t}
	}
	return b
}

// branchOutputs returns the top arity values of the operand stack, which a
// branch carries to its target's phi inputs (or as a direct value handoff,
// for label targets with no phi such as a then-block). It records no edge.
func (d *funcDecoder) branchOutputs(arity int) ([]ir.VarID, error) {
	if len(d.opVals) < arity {
		if len(d.ctrl) > 0 && d.ctrl[len(d.ctrl)-1].poisoned {
			out := make([]ir.VarID, arity)
			for i := range out {
				out[i] = d.newVar()
			}
			return out, nil
		}
		return nil, moduleerrors.Invalid("not enough operands for branch: need %d, have %d", arity, len(d.opVals))
	}
	out := make([]ir.VarID, arity)
	copy(out, d.opVals[len(d.opVals)-arity:])
	return out, nil
}

// recordPhiEdge wires a branch's outputs into target's phi inputs, if it has
// any (loop headers and block/if join points do; then/else entry blocks
// don't since they have exactly one predecessor).
func recordPhiEdge(target *ir.BasicBlock, from ir.BlockID, outputs []ir.VarID) {
	for i, v := range outputs {
		if i < len(target.Inputs) {
			target.Inputs[i].Inputs = append(target.Inputs[i].Inputs, ir.PhiInput{Pred: from, Var: v})
		}
	}
}

func pushPhiOutputs(d *funcDecoder, b *ir.BasicBlock, types []ir.ValType) {
	for i, t := range types {
		d.push(b.Inputs[i].Output, t)
	}
}
