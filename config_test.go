package wasmine

import (
	"bytes"
	"io"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/wasmine/wasmine/internal/interpreter"
)

func TestNewRuntimeConfigDefaults(t *testing.T) {
	cfg := NewRuntimeConfig()
	require.Equal(t, interpreter.DefaultRecursionLimit, cfg.recursionLimit)
}

func TestWithRecursionLimit(t *testing.T) {
	cfg := NewRuntimeConfig().WithRecursionLimit(10)
	require.Equal(t, 10, cfg.recursionLimit)

	// Non-positive values are ignored rather than disabling the bound.
	cfg = cfg.WithRecursionLimit(0)
	require.Equal(t, 10, cfg.recursionLimit)
	cfg = cfg.WithRecursionLimit(-5)
	require.Equal(t, 10, cfg.recursionLimit)
}

func TestNewModuleConfigDefaults(t *testing.T) {
	cfg := NewModuleConfig()
	require.Equal(t, []string{"_start"}, cfg.startFunctions)
	require.Equal(t, io.Discard, cfg.stdout)
	require.Equal(t, io.Discard, cfg.stderr)

	n, err := cfg.stdin.Read(make([]byte, 1))
	require.Equal(t, 0, n)
	require.ErrorIs(t, err, io.EOF)
}

func TestModuleConfigWithers(t *testing.T) {
	var out bytes.Buffer
	cfg := NewModuleConfig().
		WithName("mod").
		WithStartFunctions("init", "main").
		WithStdout(&out).
		WithArgs("prog", "x").
		WithEnv("A", "1").
		WithEnv("B", "2")

	require.Equal(t, "mod", cfg.name)
	require.Equal(t, []string{"init", "main"}, cfg.startFunctions)
	require.Equal(t, []string{"prog", "x"}, cfg.Args())
	require.Same(t, &out, cfg.Stdout())

	environ := cfg.Environ()
	require.Len(t, environ, 2)
	require.Contains(t, environ, "A=1")
	require.Contains(t, environ, "B=2")
}

func TestModuleConfigWithStartFunctionsEmptyDisables(t *testing.T) {
	cfg := NewModuleConfig().WithStartFunctions()
	require.Empty(t, cfg.startFunctions)
}
