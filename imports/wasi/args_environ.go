package wasi

import (
	"github.com/wasmine/wasmine/internal/ir"
	"github.com/wasmine/wasmine/internal/wasm"
)

func (b *builder) argsGet(inst *wasm.Instance, args []ir.RawValue) ([]ir.RawValue, error) {
	buf, ok := memOf(inst)
	if !ok {
		return errnoResult(ErrnoFault), nil
	}
	argv, argvBuf := ir.DecodeU32(args[0]), ir.DecodeU32(args[1])
	if !writeOffsetsAndValues(buf, argv, argvBuf, b.cfg.Args) {
		return errnoResult(ErrnoFault), nil
	}
	return errnoResult(ErrnoSuccess), nil
}

func (b *builder) argsSizesGet(inst *wasm.Instance, args []ir.RawValue) ([]ir.RawValue, error) {
	buf, ok := memOf(inst)
	if !ok {
		return errnoResult(ErrnoFault), nil
	}
	argc, argvBufSize := ir.DecodeU32(args[0]), ir.DecodeU32(args[1])
	if !putU32(buf, argc, uint32(len(b.cfg.Args))) || !putU32(buf, argvBufSize, b.cfg.argsSize()) {
		return errnoResult(ErrnoFault), nil
	}
	return errnoResult(ErrnoSuccess), nil
}

func (b *builder) environGet(inst *wasm.Instance, args []ir.RawValue) ([]ir.RawValue, error) {
	buf, ok := memOf(inst)
	if !ok {
		return errnoResult(ErrnoFault), nil
	}
	environ, environBuf := ir.DecodeU32(args[0]), ir.DecodeU32(args[1])
	if !writeOffsetsAndValues(buf, environ, environBuf, b.cfg.Environ) {
		return errnoResult(ErrnoFault), nil
	}
	return errnoResult(ErrnoSuccess), nil
}

func (b *builder) environSizesGet(inst *wasm.Instance, args []ir.RawValue) ([]ir.RawValue, error) {
	buf, ok := memOf(inst)
	if !ok {
		return errnoResult(ErrnoFault), nil
	}
	environc, environBufSize := ir.DecodeU32(args[0]), ir.DecodeU32(args[1])
	if !putU32(buf, environc, uint32(len(b.cfg.Environ))) || !putU32(buf, environBufSize, b.cfg.environSize()) {
		return errnoResult(ErrnoFault), nil
	}
	return errnoResult(ErrnoSuccess), nil
}
