package wasmine

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/wasmine/wasmine/internal/ir"
	"github.com/wasmine/wasmine/internal/wasm"
)

func TestHostModuleBuilderWithFunc(t *testing.T) {
	cluster := wasm.NewCluster()
	b := NewHostModuleBuilder()
	b.WithFunc("add", func(a, b uint32) uint32 { return a + b })
	b.WithFunc("negate", func(x int32) int32 { return -x })

	inst, err := b.Instantiate(context.Background(), cluster, "env")
	require.NoError(t, err)

	got, ok := cluster.Lookup("env")
	require.True(t, ok)
	require.Same(t, inst, got)

	addExport, ok := inst.Exports["add"]
	require.True(t, ok)
	results, err := addExport.Function.Host(inst, []ir.RawValue{3, 4})
	require.NoError(t, err)
	require.EqualValues(t, 7, results[0])

	negExport, ok := inst.Exports["negate"]
	require.True(t, ok)
	results, err = negExport.Function.Host(inst, []ir.RawValue{ir.EncodeI32(5)})
	require.NoError(t, err)
	require.EqualValues(t, -5, ir.DecodeI32(results[0]))
}

func TestHostModuleBuilderWithContext(t *testing.T) {
	cluster := wasm.NewCluster()
	b := NewHostModuleBuilder()
	called := false
	b.WithFunc("touch", func(ctx context.Context) uint32 {
		called = true
		require.NotNil(t, ctx)
		return 1
	})

	inst, err := b.Instantiate(context.Background(), cluster, "env")
	require.NoError(t, err)

	e := inst.Exports["touch"]
	_, err = e.Function.Host(inst, nil)
	require.NoError(t, err)
	require.True(t, called)
}

func TestHostModuleBuilderUnsupportedType(t *testing.T) {
	b := NewHostModuleBuilder()
	require.Panics(t, func() {
		b.WithFunc("bad", func(s string) {})
	})
}

func TestHostModuleBuilderRequiresFunc(t *testing.T) {
	b := NewHostModuleBuilder()
	require.Panics(t, func() {
		b.WithFunc("notafunc", 42)
	})
}
