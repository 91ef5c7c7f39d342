package ir

// BlockID identifies a basic block within a single function. The id space
// of a function is consecutive starting at 0, and block 0 is always the
// function's entry block.
type BlockID uint32

// PhiInput is one predecessor's contribution to a Phi: the value Var holds
// when control arrives from block Pred.
type PhiInput struct {
	Pred BlockID
	Var  VarID
}

// Phi is a block-entry value whose binding depends on which predecessor
// transferred control here. A block with zero or one predecessor typically
// has no phi inputs; a join point's phi inputs carry the live operand-stack
// state merged across its incoming edges.
type Phi struct {
	Output VarID
	Type   ValType
	Inputs []PhiInput
}

// Terminator is the control-transferring operation that closes a basic
// block. Exactly one of the concrete types below is attached to every
// finalized block; ElseMarker is a transient decoder-only sentinel that must
// never survive into a FunctionIR returned to a caller.
type Terminator interface {
	terminator()
}

// Jmp unconditionally transfers control to Target, delivering Outputs to
// Target's phi inputs positionally.
type Jmp struct {
	Target  BlockID
	Outputs []VarID
}

// JmpCond transfers to IfTrue when Cond != 0, else IfFalse. Both targets
// receive the same Outputs, since they share the same phi-input signature
// (the enclosing block's live state at the branch point).
type JmpCond struct {
	Cond             VarID
	IfTrue, IfFalse  BlockID
	Outputs          []VarID
}

// JmpTable transfers to Targets[Selector] if Selector < len(Targets), else
// Default. TargetOutputs[i] parallels Targets[i].
type JmpTable struct {
	Selector       VarID
	Targets        []BlockID
	TargetOutputs  [][]VarID
	Default        BlockID
	DefaultOutputs []VarID
}

// Call transfers to a direct callee, returning control to ReturnBlock once
// the callee returns; Results are bound in the caller's var store before
// ReturnBlock executes.
type Call struct {
	Callee      uint32
	ReturnBlock BlockID
	Params      []VarID
	Results     []VarID
}

// CallIndirect is like Call but resolves the callee dynamically from
// TableIdx[Selector], trapping if the type recorded there doesn't match
// TypeID.
type CallIndirect struct {
	TypeID      TypeID
	TableIdx    uint32
	Selector    VarID
	ReturnBlock BlockID
	Params      []VarID
	Results     []VarID
}

// Return exits the current function with Values as the results.
type Return struct {
	Values []VarID
}

// Unreachable is the `unreachable` instruction: an unconditional trap.
type Unreachable struct{}

// ElseMarker is written onto the end-of-then block by the decoder while
// processing `if ... else ... end`, and is always rewritten to a Jmp before
// the function is returned from the validator. See spec 4.4.3 and 4.9.
type ElseMarker struct {
	Outputs []VarID
}

func (Jmp) terminator()          {}
func (JmpCond) terminator()      {}
func (JmpTable) terminator()     {}
func (Call) terminator()         {}
func (CallIndirect) terminator() {}
func (Return) terminator()       {}
func (Unreachable) terminator()  {}
func (ElseMarker) terminator()   {}

// BasicBlock is a maximal straight-line instruction sequence ending in a
// terminator, plus phi inputs describing values that depend on which
// predecessor was taken.
type BasicBlock struct {
	ID     BlockID
	Inputs []*Phi
	Instrs []Instruction
	Term   Terminator
}

// AppendPhiPredecessor records that Pred supplies Var for the idx'th phi
// input of b. Used by the decoder's final phi-wiring pass (spec 4.4.4).
func (b *BasicBlock) AppendPhiPredecessor(idx int, pred BlockID, v VarID) {
	b.Inputs[idx].Inputs = append(b.Inputs[idx].Inputs, PhiInput{Pred: pred, Var: v})
}
