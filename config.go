package wasmine

import (
	"io"

	"github.com/wasmine/wasmine/internal/interpreter"
	"github.com/wasmine/wasmine/internal/wasm"
)

// RuntimeConfig configures NewRuntimeWithConfig. The zero value from
// NewRuntimeConfig is ready to use; there is only ever one execution engine
// (internal/interpreter), so unlike the teacher's JIT-vs-interpreter split
// this has nothing to select between.
type RuntimeConfig struct {
	recursionLimit int
	decodeCfg      wasm.DecodeConfig
}

// NewRuntimeConfig returns a RuntimeConfig with defaults matching the
// interpreter package's own defaults.
func NewRuntimeConfig() RuntimeConfig {
	return RuntimeConfig{recursionLimit: interpreter.DefaultRecursionLimit}
}

// WithRecursionLimit overrides the interpreter's explicit-frame-stack depth
// bound. A non-positive value is ignored.
func (c RuntimeConfig) WithRecursionLimit(limit int) RuntimeConfig {
	if limit > 0 {
		c.recursionLimit = limit
	}
	return c
}

// WithWasmCore1 is a no-op retained for embedders migrating from
// configurations that toggled core-spec version; this runtime only
// implements the 1.0 core spec plus its supported extensions, which are
// always enabled (DecodeConfig has no switches for them).
func (c RuntimeConfig) WithWasmCore1() RuntimeConfig { return c }

// ModuleConfig configures InstantiateModule. Analogous to the teacher's
// sys.Context builder, trimmed to what imports/wasi actually consumes:
// argv/environ and the three standard streams.
type ModuleConfig struct {
	name string

	startFunctions []string

	stdin  io.Reader
	stdout io.Writer
	stderr io.Writer

	args    []string
	environ map[string]string
}

// NewModuleConfig returns a ModuleConfig defaulting to closed stdio, no
// args, no environ, and the "_start" convention used by the Wasi command
// ABI as its implicit start function.
func NewModuleConfig() ModuleConfig {
	return ModuleConfig{
		startFunctions: []string{"_start"},
		stdin:          eofReader{},
		stdout:         io.Discard,
		stderr:         io.Discard,
		environ:        map[string]string{},
	}
}

// WithName sets the name the module is registered under in its Cluster.
// The binary's name section is not read, so without WithName the module has
// no name and is not registered.
func (c ModuleConfig) WithName(name string) ModuleConfig {
	c.name = name
	return c
}

// WithStartFunctions replaces the ordered list of exported functions tried,
// in order, as the implicit start call after instantiation succeeds. An
// empty list disables the implicit call entirely.
func (c ModuleConfig) WithStartFunctions(names ...string) ModuleConfig {
	c.startFunctions = names
	return c
}

// WithStdin sets the reader backing the imports/wasi fd_read family for fd 0.
func (c ModuleConfig) WithStdin(r io.Reader) ModuleConfig {
	c.stdin = r
	return c
}

// WithStdout sets the writer backing fd_write for fd 1.
func (c ModuleConfig) WithStdout(w io.Writer) ModuleConfig {
	c.stdout = w
	return c
}

// WithStderr sets the writer backing fd_write for fd 2.
func (c ModuleConfig) WithStderr(w io.Writer) ModuleConfig {
	c.stderr = w
	return c
}

// WithArgs sets the argv imports/wasi's args_get/args_sizes_get expose,
// conventionally argv[0] being the program name.
func (c ModuleConfig) WithArgs(args ...string) ModuleConfig {
	c.args = args
	return c
}

// WithEnv sets one environment variable exposed through
// environ_get/environ_sizes_get, replacing any prior value for key.
func (c ModuleConfig) WithEnv(key, value string) ModuleConfig {
	if c.environ == nil {
		c.environ = map[string]string{}
	}
	c.environ[key] = value
	return c
}

// Stdin returns the reader set by WithStdin, for callers building a host
// module (such as imports/wasi.Config) that needs this module's stdin.
func (c ModuleConfig) Stdin() io.Reader { return c.stdin }

// Stdout returns the writer set by WithStdout.
func (c ModuleConfig) Stdout() io.Writer { return c.stdout }

// Stderr returns the writer set by WithStderr.
func (c ModuleConfig) Stderr() io.Writer { return c.stderr }

// Args returns the argv set by WithArgs, for callers building a host
// module (such as imports/wasi.Config) that needs this module's argv.
func (c ModuleConfig) Args() []string { return c.args }

// Environ returns the environment set by WithEnv as KEY=VALUE entries, for
// callers building a host module that needs this module's environment.
func (c ModuleConfig) Environ() []string {
	out := make([]string, 0, len(c.environ))
	for k, v := range c.environ {
		out = append(out, k+"="+v)
	}
	return out
}

// eofReader is stdin's default: every read reports EOF, matching a closed
// standard input rather than blocking.
type eofReader struct{}

func (eofReader) Read([]byte) (int, error) { return 0, io.EOF }
