package validator

import (
	"github.com/wasmine/wasmine/internal/ir"
	"github.com/wasmine/wasmine/internal/moduleerrors"
)

// decodeBody is the top-level instruction loop. It dispatches control
// instructions here and delegates everything else to decodeInstr.
func (d *funcDecoder) decodeBody() error {
	for {
		op, err := d.r.ReadByte()
		if err != nil {
			return moduleerrors.Malformed("reading opcode: %v", err)
		}
		switch op {
		case opUnreachable:
			d.cur.Term = ir.Unreachable{}
			d.cur = d.newBlock() // dead code until the matching end/else; poisoned
			if f := d.topFrame(); f != nil {
				f.poisoned = true
			}
		case opNop:
			// no-op
		case opBlock:
			if err := d.beginBlock(); err != nil {
				return err
			}
		case opLoop:
			if err := d.beginLoop(); err != nil {
				return err
			}
		case opIf:
			if err := d.beginIf(); err != nil {
				return err
			}
		case opElse:
			if err := d.doElse(); err != nil {
				return err
			}
		case opEnd:
			done, err := d.doEnd()
			if err != nil {
				return err
			}
			if done {
				return nil
			}
		case opBr:
			if err := d.doBr(); err != nil {
				return err
			}
		case opBrIf:
			if err := d.doBrIf(); err != nil {
				return err
			}
		case opBrTable:
			if err := d.doBrTable(); err != nil {
				return err
			}
		case opReturn:
			if err := d.doReturn(); err != nil {
				return err
			}
		case opCall:
			if err := d.doCall(); err != nil {
				return err
			}
		case opCallIndirect:
			if err := d.doCallIndirect(); err != nil {
				return err
			}
		default:
			if err := d.decodeInstr(op); err != nil {
				return err
			}
		}
	}
}

func (d *funcDecoder) frameAt(depth uint32) (*ctrlFrame, error) {
	if int(depth) >= len(d.ctrl) {
		return nil, moduleerrors.Invalid("branch depth %d out of range", depth)
	}
	return d.ctrl[len(d.ctrl)-1-int(depth)], nil
}

func (d *funcDecoder) beginBlock() error {
	sig, err := d.readBlockSig()
	if err != nil {
		return err
	}
	params, err := d.popN(len(sig.Params))
	if err != nil {
		return err
	}
	join := d.makeJoinBlock(sig.Results)
	f := &ctrlFrame{
		kind: opBlock, sig: sig,
		label: join, labelArity: len(sig.Results), labelTypes: sig.Results,
		join:      join,
		paramVars: params,
		stackBase: len(d.opVals),
	}
	d.ctrl = append(d.ctrl, f)
	// Params remain live on the stack (same VarIDs, dominance holds); push
	// them back since popN removed them only to snapshot them.
	for i, v := range params {
		d.push(v, sig.Params[i])
	}
	return nil
}

func (d *funcDecoder) beginLoop() error {
	sig, err := d.readBlockSig()
	if err != nil {
		return err
	}
	params, err := d.popN(len(sig.Params))
	if err != nil {
		return err
	}
	header := d.makeJoinBlock(sig.Params)
	d.cur.Term = ir.Jmp{Target: header.ID, Outputs: params}
	recordPhiEdge(header, d.cur.ID, params)

	f := &ctrlFrame{
		kind: opLoop, sig: sig,
		label: header, labelArity: len(sig.Params), labelTypes: sig.Params,
		join:      nil,
		paramVars: params,
		stackBase: len(d.opVals),
	}
	d.ctrl = append(d.ctrl, f)
	d.cur = header
	pushPhiOutputs(d, header, sig.Params)
	return nil
}

func (d *funcDecoder) beginIf() error {
	sig, err := d.readBlockSig()
	if err != nil {
		return err
	}
	cond, err := d.popExpect(ir.ValTypeI32)
	if err != nil {
		return err
	}
	params, err := d.popN(len(sig.Params))
	if err != nil {
		return err
	}
	header := d.cur
	thenBlock := d.newBlock()
	join := d.makeJoinBlock(sig.Results)

	f := &ctrlFrame{
		kind: opIf, sig: sig,
		label: join, labelArity: len(sig.Results), labelTypes: sig.Results,
		join:      join,
		ifHeader:  header,
		thenBlock: thenBlock,
		paramVars: params,
		stackBase: len(d.opVals),
	}
	f.condVar = cond
	d.ctrl = append(d.ctrl, f)
	d.cur = thenBlock
	for i, v := range params {
		d.push(v, sig.Params[i])
	}
	return nil
}

func (d *funcDecoder) doElse() error {
	f := d.topFrame()
	if f == nil || f.kind != opIf {
		return moduleerrors.Malformed("else without matching if")
	}
	outputs, err := d.branchOutputs(f.labelArity)
	if err != nil {
		return err
	}
	d.cur.Term = ir.Jmp{Target: f.join.ID, Outputs: outputs}
	recordPhiEdge(f.join, d.cur.ID, outputs)

	elseBlock := d.newBlock()
	f.elseBlock = elseBlock
	f.hasElse = true
	d.cur = elseBlock
	d.opVals = d.opVals[:f.stackBase]
	d.opTypes = d.opTypes[:f.stackBase]
	for i, v := range f.paramVars {
		d.push(v, f.sig.Params[i])
	}
	f.poisoned = false
	return nil
}

// doEnd closes the innermost frame, or the function itself if the control
// stack is empty, returning done=true in the latter case.
func (d *funcDecoder) doEnd() (bool, error) {
	f := d.topFrame()
	if f == nil {
		return true, d.finishFunction()
	}
	d.ctrl = d.ctrl[:len(d.ctrl)-1]

	switch f.kind {
	case opLoop:
		// Falling off a loop's end needs no new block; cur continues as-is.
		return false, nil
	case opIf:
		if !f.hasElse {
			if len(f.sig.Params) != len(f.sig.Results) {
				return false, moduleerrors.Invalid("if without else must have matching param/result arity")
			}
			f.ifHeader.Term = ir.JmpCond{Cond: f.condVar, IfTrue: f.thenBlock.ID, IfFalse: f.join.ID, Outputs: f.paramVars}
			recordPhiEdge(f.join, f.ifHeader.ID, f.paramVars)
		} else {
			f.ifHeader.Term = ir.JmpCond{Cond: f.condVar, IfTrue: f.thenBlock.ID, IfFalse: f.elseBlock.ID, Outputs: f.paramVars}
		}
		outputs, err := d.branchOutputs(f.labelArity)
		if err != nil {
			return false, err
		}
		d.cur.Term = ir.Jmp{Target: f.join.ID, Outputs: outputs}
		recordPhiEdge(f.join, d.cur.ID, outputs)
	default: // opBlock
		outputs, err := d.branchOutputs(f.labelArity)
		if err != nil {
			return false, err
		}
		d.cur.Term = ir.Jmp{Target: f.join.ID, Outputs: outputs}
		recordPhiEdge(f.join, d.cur.ID, outputs)
	}

	d.opVals = d.opVals[:f.stackBase]
	d.opTypes = d.opTypes[:f.stackBase]
	d.cur = f.join
	pushPhiOutputs(d, f.join, f.labelTypes)
	return false, nil
}

func (d *funcDecoder) finishFunction() error {
	results, err := d.branchOutputs(d.funcResultArity())
	if err != nil {
		return err
	}
	d.cur.Term = ir.Return{Values: results}
	return nil
}

// funcResultArity is the number of result types Lower was given for the
// function being decoded, for finishFunction's use.
func (d *funcDecoder) funcResultArity() int {
	return len(d.resultTypes)
}

func (d *funcDecoder) popN(n int) ([]ir.VarID, error) {
	out := make([]ir.VarID, n)
	for i := n - 1; i >= 0; i-- {
		v, _, err := d.pop()
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

func (d *funcDecoder) doReturn() error {
	values, err := d.branchOutputs(len(d.resultTypes))
	if err != nil {
		return err
	}
	d.cur.Term = ir.Return{Values: values}
	d.cur = d.newBlock()
	if top := d.topFrame(); top != nil {
		top.poisoned = true
	}
	return nil
}

func (d *funcDecoder) doCall() error {
	idx, err := d.r.ReadU32()
	if err != nil {
		return err
	}
	if int(idx) >= d.env.NumFuncs() {
		return moduleerrors.Invalid("call: function index %d out of range", idx)
	}
	ft := d.env.TypeOf(idx)
	params, err := d.popN(len(ft.Params))
	if err != nil {
		return err
	}
	results := make([]ir.VarID, len(ft.Results))
	for i := range results {
		results[i] = d.newVar()
	}
	ret := d.newBlock()
	d.cur.Term = ir.Call{Callee: idx, ReturnBlock: ret.ID, Params: params, Results: results}
	d.cur = ret
	for i, t := range ft.Results {
		d.push(results[i], t)
	}
	return nil
}

func (d *funcDecoder) doCallIndirect() error {
	typeIdx, err := d.r.ReadU32()
	if err != nil {
		return err
	}
	tableIdx, err := d.r.ReadU32()
	if err != nil {
		return err
	}
	ft, ok := d.env.TypeAtIndex(typeIdx)
	if !ok {
		return moduleerrors.Invalid("call_indirect: type index %d out of range", typeIdx)
	}
	elemType, ok := d.env.TableTypeAt(tableIdx)
	if !ok {
		return moduleerrors.Invalid("call_indirect: table index %d out of range", tableIdx)
	}
	if elemType != ir.ValTypeFuncRef {
		return moduleerrors.Invalid("call_indirect: table %d is not funcref", tableIdx)
	}
	selector, err := d.popExpect(ir.ValTypeI32)
	if err != nil {
		return err
	}
	params, err := d.popN(len(ft.Params))
	if err != nil {
		return err
	}
	results := make([]ir.VarID, len(ft.Results))
	for i := range results {
		results[i] = d.newVar()
	}
	ret := d.newBlock()
	tid, _ := d.env.TypeIDAtIndex(typeIdx)
	d.cur.Term = ir.CallIndirect{
		TypeID: tid, TableIdx: tableIdx, Selector: selector,
		ReturnBlock: ret.ID, Params: params, Results: results,
	}
	d.cur = ret
	for i, t := range ft.Results {
		d.push(results[i], t)
	}
	return nil
}

func (d *funcDecoder) doBr() error {
	depth, err := d.r.ReadU32()
	if err != nil {
		return err
	}
	f, err := d.frameAt(depth)
	if err != nil {
		return err
	}
	outputs, err := d.branchOutputs(f.labelArity)
	if err != nil {
		return err
	}
	d.cur.Term = ir.Jmp{Target: f.label.ID, Outputs: outputs}
	recordPhiEdge(f.label, d.cur.ID, outputs)
	d.cur = d.newBlock()
	if top := d.topFrame(); top != nil {
		top.poisoned = true
	}
	return nil
}

func (d *funcDecoder) doBrIf() error {
	depth, err := d.r.ReadU32()
	if err != nil {
		return err
	}
	f, err := d.frameAt(depth)
	if err != nil {
		return err
	}
	cond, err := d.popExpect(ir.ValTypeI32)
	if err != nil {
		return err
	}
	outputs, err := d.branchOutputs(f.labelArity)
	if err != nil {
		return err
	}
	fallthroughBlock := d.newBlock()
	d.cur.Term = ir.JmpCond{Cond: cond, IfTrue: f.label.ID, IfFalse: fallthroughBlock.ID, Outputs: outputs}
	recordPhiEdge(f.label, d.cur.ID, outputs)
	d.cur = fallthroughBlock
	return nil
}

func (d *funcDecoder) doBrTable() error {
	n, err := d.r.ReadU32()
	if err != nil {
		return err
	}
	depths := make([]uint32, n)
	for i := range depths {
		depths[i], err = d.r.ReadU32()
		if err != nil {
			return err
		}
	}
	defaultDepth, err := d.r.ReadU32()
	if err != nil {
		return err
	}
	selector, err := d.popExpect(ir.ValTypeI32)
	if err != nil {
		return err
	}

	defaultFrame, err := d.frameAt(defaultDepth)
	if err != nil {
		return err
	}
	defaultOutputs, err := d.branchOutputs(defaultFrame.labelArity)
	if err != nil {
		return err
	}
	recordPhiEdge(defaultFrame.label, d.cur.ID, defaultOutputs)

	targets := make([]ir.BlockID, n)
	targetOutputs := make([][]ir.VarID, n)
	for i, depth := range depths {
		f, err := d.frameAt(depth)
		if err != nil {
			return err
		}
		outputs, err := d.branchOutputs(f.labelArity)
		if err != nil {
			return err
		}
		targets[i] = f.label.ID
		targetOutputs[i] = outputs
		recordPhiEdge(f.label, d.cur.ID, outputs)
	}

	d.cur.Term = ir.JmpTable{
		Selector: selector, Targets: targets, TargetOutputs: targetOutputs,
		Default: defaultFrame.label.ID, DefaultOutputs: defaultOutputs,
	}
	d.cur = d.newBlock()
	if top := d.topFrame(); top != nil {
		top.poisoned = true
	}
	return nil
}
