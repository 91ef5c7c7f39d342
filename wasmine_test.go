package wasmine

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

// buildConstFuncModule assembles a minimal binary exporting a zero-arg
// function "f" that returns the constant 42, the same hand-assembled-binary
// style internal/wasm's own decode tests use rather than depending on a WAT
// toolchain.
func buildConstFuncModule(t *testing.T) []byte {
	t.Helper()
	buf := []byte{0x00, 0x61, 0x73, 0x6d, 0x01, 0x00, 0x00, 0x00}
	section := func(id byte, body []byte) []byte {
		return append([]byte{id, byte(len(body))}, body...)
	}
	buf = append(buf, section(1, []byte{0x01, 0x60, 0x00, 0x01, 0x7f})...)       // type: () -> i32
	buf = append(buf, section(3, []byte{0x01, 0x00})...)                        // func: type 0
	buf = append(buf, section(7, []byte{0x01, 0x01, 'f', 0x00, 0x00})...)       // export "f" func 0
	buf = append(buf, section(10, []byte{0x01, 0x04, 0x00, 0x41, 0x2a, 0x0b})...) // code: i32.const 42; end
	return buf
}

func TestRuntimeCompileAndInstantiate(t *testing.T) {
	ctx := context.Background()
	rt := NewRuntime(ctx)

	compiled, err := rt.CompileModule(ctx, buildConstFuncModule(t))
	require.NoError(t, err)

	mod, err := rt.InstantiateModule(ctx, compiled, NewModuleConfig().WithName("m").WithStartFunctions())
	require.NoError(t, err)
	defer mod.Close(ctx)

	fn := mod.ExportedFunction("f")
	require.NotNil(t, fn)

	results, err := fn.Call(ctx)
	require.NoError(t, err)
	require.Equal(t, []uint64{42}, results)
}

func TestRuntimeInstantiateModuleMissingImport(t *testing.T) {
	ctx := context.Background()
	rt := NewRuntime(ctx)

	section := func(id byte, body []byte) []byte {
		return append([]byte{id, byte(len(body))}, body...)
	}
	buf := []byte{0x00, 0x61, 0x73, 0x6d, 0x01, 0x00, 0x00, 0x00}
	buf = append(buf, section(1, []byte{0x01, 0x60, 0x00, 0x00})...) // type: () -> ()
	buf = append(buf, section(2, []byte{
		0x01,                    // one import
		0x03, 'e', 'n', 'v',     // module "env"
		0x03, 'f', 'o', 'o',     // name "foo"
		0x00, 0x00,              // func import, type index 0
	})...)

	compiled, err := rt.CompileModule(ctx, buf)
	require.NoError(t, err)

	_, err = rt.InstantiateModule(ctx, compiled, NewModuleConfig())
	require.Error(t, err)
}

func TestRuntimeClusterExposesHostModules(t *testing.T) {
	ctx := context.Background()
	rt := NewRuntime(ctx)

	b := NewHostModuleBuilder()
	b.WithFunc("double", func(x uint32) uint32 { return x * 2 })
	_, err := b.Instantiate(ctx, rt.Cluster(), "env")
	require.NoError(t, err)

	_, ok := rt.Cluster().Lookup("env")
	require.True(t, ok)
}

func TestRuntimeCloseIsNoop(t *testing.T) {
	rt := NewRuntime(context.Background())
	require.NoError(t, rt.Close(context.Background()))
}
