package ir

// FunctionIR is the decoded, validated body of one internal (non-imported)
// Wasm function: a flat local-variable space, a dense SSA variable space,
// and an ordered list of basic blocks forming the function's CFG.
//
// Invariants (checked by internal/validator, relied on by
// internal/interpreter without re-checking):
//   - variable ids referenced anywhere are < NumVars;
//   - every terminator's output list matches its target(s)' phi-input count
//     and types positionally;
//   - every phi's predecessor set is exactly the set of terminators that
//     target its block;
//   - Blocks[0] is the entry block and block ids are consecutive.
type FunctionIR struct {
	// Locals holds the type of every local slot; indices [0, NumParams) are
	// the function's parameters, the remainder are declared locals
	// (zero-initialized on entry).
	Locals    []ValType
	NumParams int

	// NumVars is the number of SSA variables allocated while decoding this
	// function; variable ids are dense in [0, NumVars).
	NumVars int

	Blocks []*BasicBlock
}

// Block returns the basic block with the given id. Block ids are
// consecutive starting at 0, so this is a direct slice index.
func (f *FunctionIR) Block(id BlockID) *BasicBlock {
	return f.Blocks[id]
}

// ParamTypes returns the declared local types for parameters only.
func (f *FunctionIR) ParamTypes() []ValType {
	return f.Locals[:f.NumParams]
}
