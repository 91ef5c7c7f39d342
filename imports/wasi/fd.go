package wasi

import (
	"io"

	"github.com/wasmine/wasmine/internal/ir"
	"github.com/wasmine/wasmine/internal/wasm"
)

const (
	fdStdin  = 0
	fdStdout = 1
	fdStderr = 2
)

// fdWrite implements the iovec-gather write wasi's libc layer uses for
// stdout/stderr (and, via a preopened fd, files — not supported here: see
// spec Non-goals on filesystem access). Each iovec is (ptr u32, len u32).
func (b *builder) fdWrite(inst *wasm.Instance, args []ir.RawValue) ([]ir.RawValue, error) {
	fd := ir.DecodeU32(args[0])
	iovs, iovsLen := ir.DecodeU32(args[1]), ir.DecodeU32(args[2])
	nwrittenPtr := ir.DecodeU32(args[3])

	var w io.Writer
	switch fd {
	case fdStdout:
		w = b.cfg.Stdout
	case fdStderr:
		w = b.cfg.Stderr
	default:
		return errnoResult(ErrnoBadf), nil
	}
	if w == nil {
		w = io.Discard
	}

	buf, ok := memOf(inst)
	if !ok {
		return errnoResult(ErrnoFault), nil
	}

	var total uint32
	for i := uint32(0); i < iovsLen; i++ {
		ptr, ok1 := getU32(buf, iovs+i*8)
		n, ok2 := getU32(buf, iovs+i*8+4)
		if !ok1 || !ok2 || uint64(ptr)+uint64(n) > uint64(len(buf)) {
			return errnoResult(ErrnoFault), nil
		}
		written, err := w.Write(buf[ptr : ptr+n])
		total += uint32(written)
		if err != nil {
			return errnoResult(ErrnoFault), nil
		}
	}
	if !putU32(buf, nwrittenPtr, total) {
		return errnoResult(ErrnoFault), nil
	}
	return errnoResult(ErrnoSuccess), nil
}

// fdRead is fdWrite's mirror image for stdin, scattering bytes across each
// iovec in order until the reader is exhausted or every iovec is filled.
func (b *builder) fdRead(inst *wasm.Instance, args []ir.RawValue) ([]ir.RawValue, error) {
	fd := ir.DecodeU32(args[0])
	iovs, iovsLen := ir.DecodeU32(args[1]), ir.DecodeU32(args[2])
	nreadPtr := ir.DecodeU32(args[3])

	if fd != fdStdin {
		return errnoResult(ErrnoBadf), nil
	}
	r := b.cfg.Stdin
	if r == nil {
		r = emptyReader{}
	}

	buf, ok := memOf(inst)
	if !ok {
		return errnoResult(ErrnoFault), nil
	}

	var total uint32
	for i := uint32(0); i < iovsLen; i++ {
		ptr, ok1 := getU32(buf, iovs+i*8)
		n, ok2 := getU32(buf, iovs+i*8+4)
		if !ok1 || !ok2 || uint64(ptr)+uint64(n) > uint64(len(buf)) {
			return errnoResult(ErrnoFault), nil
		}
		read, err := r.Read(buf[ptr : ptr+n])
		total += uint32(read)
		if err != nil {
			break // EOF or any read error ends the scatter early, per posix readv semantics
		}
		if uint32(read) < n {
			break
		}
	}
	if !putU32(buf, nreadPtr, total) {
		return errnoResult(ErrnoFault), nil
	}
	return errnoResult(ErrnoSuccess), nil
}

func (b *builder) fdClose(_ *wasm.Instance, args []ir.RawValue) ([]ir.RawValue, error) {
	return errnoResult(ErrnoSuccess), nil
}

func (b *builder) fdSeek(_ *wasm.Instance, args []ir.RawValue) ([]ir.RawValue, error) {
	return errnoResult(ErrnoNosys), nil
}

type emptyReader struct{}

func (emptyReader) Read([]byte) (int, error) { return 0, io.EOF }
