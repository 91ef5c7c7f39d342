package wasi

import (
	"crypto/rand"

	"github.com/wasmine/wasmine/internal/ir"
	"github.com/wasmine/wasmine/internal/wasm"
)

func (b *builder) randomGet(inst *wasm.Instance, args []ir.RawValue) ([]ir.RawValue, error) {
	buf, ok := memOf(inst)
	if !ok {
		return errnoResult(ErrnoFault), nil
	}
	off, n := ir.DecodeU32(args[0]), ir.DecodeU32(args[1])
	if uint64(off)+uint64(n) > uint64(len(buf)) {
		return errnoResult(ErrnoFault), nil
	}
	if _, err := rand.Read(buf[off : off+n]); err != nil {
		return errnoResult(ErrnoFault), nil
	}
	return errnoResult(ErrnoSuccess), nil
}

func (b *builder) schedYield(_ *wasm.Instance, _ []ir.RawValue) ([]ir.RawValue, error) {
	return errnoResult(ErrnoSuccess), nil
}

// procExit terminates the running module immediately. The interpreter has
// no built-in notion of a non-trap unwind, so this is surfaced as an error
// the caller must recognize (ExitError), the same way a host function
// reports any other failure.
func (b *builder) procExit(_ *wasm.Instance, args []ir.RawValue) ([]ir.RawValue, error) {
	return nil, &ExitError{Code: ir.DecodeU32(args[0])}
}
