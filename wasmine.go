// Package wasmine implements a standalone WebAssembly 1.0 core runtime: a
// binary decoder, a basic-block-with-phi-nodes IR, and a tree-walking
// interpreter, wired together the way the teacher wires its JIT and
// interpreter engines to a Store/Namespace, but around a single execution
// engine and a Cluster-scoped linking model.
package wasmine

import (
	"context"
	"fmt"

	"github.com/wasmine/wasmine/api"
	"github.com/wasmine/wasmine/internal/interpreter"
	"github.com/wasmine/wasmine/internal/moduleerrors"
	"github.com/wasmine/wasmine/internal/wasm"
)

// Runtime decodes, links, and runs Wasm modules. One Runtime owns one
// Cluster (its instances can import from each other by name) and one
// interpreter.Engine.
type Runtime struct {
	cfg     RuntimeConfig
	cluster *wasm.Cluster
	engine  *interpreter.Engine
	cache   *Cache
}

// NewRuntime returns a Runtime configured with NewRuntimeConfig's defaults.
func NewRuntime(_ context.Context) *Runtime {
	return NewRuntimeWithConfig(context.Background(), NewRuntimeConfig())
}

// NewRuntimeWithConfig returns a Runtime configured per cfg.
func NewRuntimeWithConfig(_ context.Context, cfg RuntimeConfig) *Runtime {
	return &Runtime{
		cfg:     cfg,
		cluster: wasm.NewCluster(),
		engine:  &interpreter.Engine{RecursionLimit: cfg.recursionLimit},
		cache:   NewCache(),
	}
}

// CompiledModule is module metadata decoded from a Wasm binary, ready for
// InstantiateModule. It carries no instance state, so one CompiledModule is
// safely instantiated many times.
type CompiledModule struct {
	m    *wasm.Module
	name string
}

// Name is always empty: decoding skips custom sections, the name section
// included.
func (c CompiledModule) Name() string { return c.name }

// CompileModule decodes and structurally validates wasmBytes (spec C3),
// without running the instruction-level validator, which InstantiateModule
// triggers lazily per function on first call (spec's lazy-lowering design).
func (r *Runtime) CompileModule(_ context.Context, wasmBytes []byte) (CompiledModule, error) {
	r.cache.decodeCfg = r.cfg.decodeCfg
	m, err := r.cache.getOrDecode(wasmBytes)
	if err != nil {
		return CompiledModule{}, err
	}
	return CompiledModule{m: m}, nil
}

// InstantiateModule links compiled against the Runtime's Cluster, allocates
// its runtime objects, applies active segments, runs the module's declared
// start function if it has one, registers it in the Cluster under mcfg's
// name, and finally invokes the first of
// mcfg.startFunctions that's actually exported, per spec 4.1's "instantiate
// implicitly runs _start" convention.
func (r *Runtime) InstantiateModule(ctx context.Context, compiled CompiledModule, mcfg ModuleConfig) (api.Module, error) {
	name := mcfg.name
	if name == "" {
		name = compiled.name
	}

	imports, err := r.resolveImportInstances(compiled.m)
	if err != nil {
		return nil, err
	}

	inst, err := wasm.Instantiate(compiled.m, r.cluster, imports)
	if err != nil {
		return nil, err
	}
	inst.Name = name

	if compiled.m.HasStart {
		if int(compiled.m.Start) >= len(inst.Functions) {
			return nil, moduleerrors.Invalid("start function index %d out of range", compiled.m.Start)
		}
		if _, err := r.engine.Call(inst, inst.Functions[compiled.m.Start], nil); err != nil {
			return nil, fmt.Errorf("wasmine: running start function: %w", err)
		}
	}

	if name != "" {
		if err := r.cluster.Add(name, inst); err != nil {
			return nil, err
		}
	}

	mod := &moduleInstance{inst: inst, engine: r.engine, cluster: r.cluster}

	for _, start := range mcfg.startFunctions {
		fn, err := inst.ExportedFunction(start)
		if err != nil {
			continue // not exported: try the next candidate, per spec's "implicit, best-effort" start convention
		}
		if _, err := r.engine.Call(inst, fn, nil); err != nil {
			return nil, fmt.Errorf("wasmine: running start function %q: %w", start, err)
		}
		break
	}

	return mod, nil
}

// resolveImportInstances collects, by module name, every Cluster instance
// compiled's import section references.
func (r *Runtime) resolveImportInstances(m *wasm.Module) (map[string]*wasm.Instance, error) {
	out := make(map[string]*wasm.Instance)
	for _, imp := range m.Imports {
		if _, ok := out[imp.Module]; ok {
			continue
		}
		src, ok := r.cluster.Lookup(imp.Module)
		if !ok {
			return nil, moduleerrors.Unlinkable("unresolved import module %q", imp.Module)
		}
		out[imp.Module] = src
	}
	return out, nil
}

// Cluster exposes the Runtime's linking scope, so embedders can add
// HostModuleBuilder-built modules before instantiating Wasm modules that
// import from them.
func (r *Runtime) Cluster() *wasm.Cluster { return r.cluster }

// Close is a no-op placeholder for embedders migrating from runtimes that
// tear down every instance on Runtime.Close; here, instance lifetime is
// per-Module via Module.Close/CloseWithExitCode, since a Cluster's
// instances can outlive any one caller's Runtime handle.
func (r *Runtime) Close(context.Context) error {
	return nil
}
