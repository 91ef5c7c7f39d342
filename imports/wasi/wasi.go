// Package wasi implements the subset of wasi_snapshot_preview1 a typical
// compiled-from-C/Rust command module needs to run: args, environ, clock,
// fd_write/fd_read against the three standard streams, random_get,
// sched_yield, and proc_exit. It is built the way the teacher's
// imports/wasi_snapshot_preview1 package is laid out (one file per function
// family, host functions addressing the caller's linear memory directly)
// but targets this runtime's HostFunction/Instance shape instead of a
// SysContext-bound CallContext.
package wasi

import (
	"fmt"

	"github.com/wasmine/wasmine/internal/ir"
	"github.com/wasmine/wasmine/internal/typeregistry"
	"github.com/wasmine/wasmine/internal/wasm"
)

// ModuleName is the import module name compiled WASI binaries expect.
const ModuleName = "wasi_snapshot_preview1"

// Errno is the result code every wasi_snapshot_preview1 function returns,
// per the snapshot-01 ABI.
type Errno uint32

const (
	ErrnoSuccess Errno = 0
	ErrnoBadf    Errno = 8
	ErrnoFault   Errno = 21
	ErrnoInval   Errno = 28
	ErrnoNosys   Errno = 52
)

// ExitError is returned by proc_exit, distinguishing a WASI program's
// requested exit from an interpreter trap. The interpreter wraps every
// Host-function error in *trap.HostError, so callers unwrap via
// errors.As to recover this.
type ExitError struct{ Code uint32 }

func (e *ExitError) Error() string { return fmt.Sprintf("wasi: exit code %d", e.Code) }

// Build returns an Instance exporting wasi_snapshot_preview1's functions
// backed by cfg, ready to add to a Cluster under ModuleName.
func Build(cfg *Config) *wasm.Instance {
	b := &builder{reg: typeregistry.Default, cfg: cfg}
	inst := &wasm.Instance{Name: ModuleName, Exports: make(map[string]wasm.ExportInstance)}
	for _, f := range b.funcs() {
		fn := &wasm.FunctionInstance{
			TypeID: b.reg.Intern(&ir.FuncType{Params: f.params, Results: f.results}),
			Host:   f.host,
		}
		inst.Functions = append(inst.Functions, fn)
		inst.Exports[f.name] = wasm.ExportInstance{Name: f.name, Kind: wasm.ExternKindFunc, Function: fn}
	}
	return inst
}

type hostFunc struct {
	name    string
	params  []ir.ValType
	results []ir.ValType
	host    wasm.HostFunction
}

type builder struct {
	reg *typeregistry.Registry
	cfg *Config
}

var i32 = ir.ValTypeI32

func (b *builder) funcs() []hostFunc {
	return []hostFunc{
		{"args_get", []ir.ValType{i32, i32}, []ir.ValType{i32}, b.argsGet},
		{"args_sizes_get", []ir.ValType{i32, i32}, []ir.ValType{i32}, b.argsSizesGet},
		{"environ_get", []ir.ValType{i32, i32}, []ir.ValType{i32}, b.environGet},
		{"environ_sizes_get", []ir.ValType{i32, i32}, []ir.ValType{i32}, b.environSizesGet},
		{"clock_time_get", []ir.ValType{i32, ir.ValTypeI64, i32}, []ir.ValType{i32}, b.clockTimeGet},
		{"fd_write", []ir.ValType{i32, i32, i32, i32}, []ir.ValType{i32}, b.fdWrite},
		{"fd_read", []ir.ValType{i32, i32, i32, i32}, []ir.ValType{i32}, b.fdRead},
		{"fd_close", []ir.ValType{i32}, []ir.ValType{i32}, b.fdClose},
		{"fd_seek", []ir.ValType{i32, ir.ValTypeI64, i32, i32}, []ir.ValType{i32}, b.fdSeek},
		{"random_get", []ir.ValType{i32, i32}, []ir.ValType{i32}, b.randomGet},
		{"sched_yield", nil, []ir.ValType{i32}, b.schedYield},
		{"proc_exit", []ir.ValType{i32}, nil, b.procExit},
	}
}

func errnoResult(e Errno) []ir.RawValue { return []ir.RawValue{ir.RawValue(e)} }

func memOf(inst *wasm.Instance) ([]byte, bool) {
	if len(inst.Memories) == 0 {
		return nil, false
	}
	return inst.Memories[0].Bytes(), true
}

func putU32(buf []byte, off uint32, v uint32) bool {
	if uint64(off)+4 > uint64(len(buf)) {
		return false
	}
	buf[off] = byte(v)
	buf[off+1] = byte(v >> 8)
	buf[off+2] = byte(v >> 16)
	buf[off+3] = byte(v >> 24)
	return true
}

func getU32(buf []byte, off uint32) (uint32, bool) {
	if uint64(off)+4 > uint64(len(buf)) {
		return 0, false
	}
	return uint32(buf[off]) | uint32(buf[off+1])<<8 | uint32(buf[off+2])<<16 | uint32(buf[off+3])<<24, true
}
