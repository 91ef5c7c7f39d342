package wasmine

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/wasmine/wasmine/api"
	"github.com/wasmine/wasmine/internal/ir"
	"github.com/wasmine/wasmine/internal/wasm"
)

func TestMemoryInstanceReadWriteRoundTrip(t *testing.T) {
	mem, err := wasm.NewMemory(wasm.Limits{Min: 1})
	require.NoError(t, err)
	mi := &memoryInstance{mem: mem}
	ctx := context.Background()

	require.EqualValues(t, wasm.PageSize, mi.Size(ctx))

	require.True(t, mi.WriteUint32Le(ctx, 0, 0xdeadbeef))
	v, ok := mi.ReadUint32Le(ctx, 0)
	require.True(t, ok)
	require.EqualValues(t, 0xdeadbeef, v)

	require.True(t, mi.WriteFloat64Le(ctx, 8, 3.5))
	f, ok := mi.ReadFloat64Le(ctx, 8)
	require.True(t, ok)
	require.Equal(t, 3.5, f)

	_, ok = mi.ReadByte(ctx, wasm.PageSize)
	require.False(t, ok, "out of bounds read must fail, not panic")
}

func TestMemoryInstanceGrow(t *testing.T) {
	mem, err := wasm.NewMemory(wasm.Limits{Min: 1, Max: 2, HasMax: true})
	require.NoError(t, err)
	mi := &memoryInstance{mem: mem}

	prev, ok := mi.Grow(context.Background(), 1)
	require.True(t, ok)
	require.EqualValues(t, 1, prev)

	_, ok = mi.Grow(context.Background(), 1)
	require.False(t, ok, "growth past max must fail")
}

func TestGlobalInstanceGetSet(t *testing.T) {
	g := wasm.NewGlobalInstance(wasm.GlobalType{Type: ir.ValTypeI32, Mutable: true}, 7)
	gi := &globalInstance{g: g}
	require.EqualValues(t, 7, gi.Get(context.Background()))

	gi.Set(context.Background(), 9)
	require.EqualValues(t, 9, gi.Get(context.Background()))

	var _ api.MutableGlobal = gi
}

func TestTableInstanceSizeAndGrow(t *testing.T) {
	tbl := wasm.NewTable(ir.ValTypeFuncRef, wasm.Limits{Min: 1, Max: 4, HasMax: true})
	ti := &tableInstance{t: tbl}
	require.EqualValues(t, 1, ti.Size(context.Background()))

	prev, ok := ti.Grow(context.Background(), 2)
	require.True(t, ok)
	require.EqualValues(t, 1, prev)
	require.EqualValues(t, 3, ti.Size(context.Background()))
}
