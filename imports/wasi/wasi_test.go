package wasi

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/wasmine/wasmine/internal/ir"
	"github.com/wasmine/wasmine/internal/wasm"
)

// withMemory returns an Instance with one page of memory, enough room for
// the small buffers these tests pack data into.
func withMemory(t *testing.T) *wasm.Instance {
	t.Helper()
	mem, err := wasm.NewMemory(wasm.Limits{Min: 1})
	require.NoError(t, err)
	return &wasm.Instance{Memories: []*wasm.Memory{mem}}
}

func callRaw(t *testing.T, inst *wasm.Instance, fn wasm.HostFunction, args ...uint32) []ir.RawValue {
	t.Helper()
	raw := make([]ir.RawValue, len(args))
	for i, a := range args {
		raw[i] = ir.RawValue(a)
	}
	results, err := fn(inst, raw)
	require.NoError(t, err)
	return results
}

func TestArgsGet(t *testing.T) {
	cfg := &Config{Args: []string{"prog", "a", "bb"}}
	b := &builder{cfg: cfg}
	inst := withMemory(t)

	const ptrsOff, bufOff = 0, 64
	results := callRaw(t, inst, b.argsGet, ptrsOff, bufOff)
	require.Equal(t, errnoResult(ErrnoSuccess), results)

	buf := inst.Memories[0].Bytes()
	off0, ok := getU32(buf, ptrsOff)
	require.True(t, ok)
	require.Equal(t, "prog\x00", string(buf[off0:off0+5]))

	off1, ok := getU32(buf, ptrsOff+4)
	require.True(t, ok)
	require.Equal(t, "a\x00", string(buf[off1:off1+2]))
}

func TestArgsSizesGet(t *testing.T) {
	cfg := &Config{Args: []string{"prog", "a"}}
	b := &builder{cfg: cfg}
	inst := withMemory(t)

	results := callRaw(t, inst, b.argsSizesGet, 0, 8)
	require.Equal(t, errnoResult(ErrnoSuccess), results)

	buf := inst.Memories[0].Bytes()
	n, ok := getU32(buf, 0)
	require.True(t, ok)
	require.EqualValues(t, 2, n)

	size, ok := getU32(buf, 8)
	require.True(t, ok)
	require.EqualValues(t, cfg.argsSize(), size)
}

func TestEnvironGetAndSizesGet(t *testing.T) {
	cfg := &Config{Environ: []string{"FOO=bar", "BAZ=qux"}}
	b := &builder{cfg: cfg}
	inst := withMemory(t)

	sizes := callRaw(t, inst, b.environSizesGet, 0, 8)
	require.Equal(t, errnoResult(ErrnoSuccess), sizes)

	got := callRaw(t, inst, b.environGet, 16, 64)
	require.Equal(t, errnoResult(ErrnoSuccess), got)

	buf := inst.Memories[0].Bytes()
	off0, ok := getU32(buf, 16)
	require.True(t, ok)
	require.True(t, strings.HasPrefix(string(buf[off0:off0+8]), "FOO=bar"))
}

func TestFdWriteGathersIovecs(t *testing.T) {
	var out bytes.Buffer
	cfg := &Config{Stdout: &out}
	b := &builder{cfg: cfg}
	inst := withMemory(t)

	buf := inst.Memories[0].Bytes()
	copy(buf[100:], "hello ")
	copy(buf[200:], "world")
	// iovec array at 0: two entries of (ptr u32, len u32).
	putU32(buf, 0, 100)
	putU32(buf, 4, 6)
	putU32(buf, 8, 200)
	putU32(buf, 12, 5)

	const nwrittenPtr = 300
	results := callRaw(t, inst, b.fdWrite, fdStdout, 0, 2, nwrittenPtr)
	require.Equal(t, errnoResult(ErrnoSuccess), results)
	require.Equal(t, "hello world", out.String())

	n, ok := getU32(buf, nwrittenPtr)
	require.True(t, ok)
	require.EqualValues(t, 11, n)
}

func TestFdWriteBadFd(t *testing.T) {
	b := &builder{cfg: &Config{}}
	inst := withMemory(t)
	results := callRaw(t, inst, b.fdWrite, 99, 0, 0, 0)
	require.Equal(t, errnoResult(ErrnoBadf), results)
}

func TestFdReadScattersUntilEOF(t *testing.T) {
	cfg := &Config{Stdin: strings.NewReader("hi")}
	b := &builder{cfg: cfg}
	inst := withMemory(t)

	buf := inst.Memories[0].Bytes()
	// One iovec requesting 8 bytes, but stdin only has 2.
	putU32(buf, 0, 100)
	putU32(buf, 4, 8)

	const nreadPtr = 300
	results := callRaw(t, inst, b.fdRead, fdStdin, 0, 1, nreadPtr)
	require.Equal(t, errnoResult(ErrnoSuccess), results)

	n, ok := getU32(buf, nreadPtr)
	require.True(t, ok)
	require.EqualValues(t, 2, n)
	require.Equal(t, "hi", string(buf[100:102]))
}

func TestProcExitReturnsExitError(t *testing.T) {
	b := &builder{cfg: &Config{}}
	inst := withMemory(t)
	_, err := b.procExit(inst, []ir.RawValue{42})
	require.Error(t, err)
	var exitErr *ExitError
	require.ErrorAs(t, err, &exitErr)
	require.EqualValues(t, 42, exitErr.Code)
}

func TestRandomGetFillsBuffer(t *testing.T) {
	b := &builder{cfg: &Config{}}
	inst := withMemory(t)
	results := callRaw(t, inst, b.randomGet, 0, 16)
	require.Equal(t, errnoResult(ErrnoSuccess), results)
}

func TestClockTimeGetUnknownClock(t *testing.T) {
	b := &builder{cfg: &Config{}}
	inst := withMemory(t)
	results := callRaw(t, inst, b.clockTimeGet, 99, 0, 0)
	require.Equal(t, errnoResult(ErrnoNosys), results)
}

func TestBuildExportsEveryFunction(t *testing.T) {
	inst := Build(&Config{})
	for _, name := range []string{
		"args_get", "args_sizes_get", "environ_get", "environ_sizes_get",
		"clock_time_get", "fd_write", "fd_read", "fd_close", "fd_seek",
		"random_get", "sched_yield", "proc_exit",
	} {
		e, ok := inst.Exports[name]
		require.True(t, ok, name)
		require.Equal(t, wasm.ExternKindFunc, e.Kind)
	}
}
