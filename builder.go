package wasmine

import (
	"context"
	"fmt"
	"reflect"

	"github.com/wasmine/wasmine/internal/ir"
	"github.com/wasmine/wasmine/internal/typeregistry"
	"github.com/wasmine/wasmine/internal/wasm"
)

// HostModuleBuilder builds a Cluster entry out of idiomatic Go functions,
// generalizing the teacher's reflection-based WithFunc into the
// FunctionInstance/Cluster shape this runtime links against instead of a
// SysContext-bound host module.
type HostModuleBuilder interface {
	// WithFunc exports fn under name. fn's signature is reflected once, at
	// build time: an optional leading context.Context parameter is
	// recognized and receives context.Background() on every call; remaining
	// parameters and results must be int32, uint32, int64, uint64, uintptr,
	// float32, or float64.
	WithFunc(name string, fn interface{}) HostModuleBuilder

	// Instantiate builds the module and adds it to cluster under name.
	Instantiate(ctx context.Context, cluster *wasm.Cluster, name string) (*wasm.Instance, error)
}

type hostModuleBuilder struct {
	registry *typeregistry.Registry
	funcs    map[string]*wasm.FunctionInstance
	order    []string
}

// NewHostModuleBuilder starts a HostModuleBuilder using the process-wide
// type registry.
func NewHostModuleBuilder() HostModuleBuilder {
	return &hostModuleBuilder{registry: typeregistry.Default, funcs: map[string]*wasm.FunctionInstance{}}
}

func (b *hostModuleBuilder) WithFunc(name string, fn interface{}) HostModuleBuilder {
	rv := reflect.ValueOf(fn)
	rt := rv.Type()
	if rt.Kind() != reflect.Func {
		panic(fmt.Sprintf("wasmine: WithFunc(%q, ...) requires a function, got %s", name, rt.Kind()))
	}

	hasCtx := rt.NumIn() > 0 && rt.In(0) == reflect.TypeOf((*context.Context)(nil)).Elem()
	firstParam := 0
	if hasCtx {
		firstParam = 1
	}

	paramTypes := make([]ir.ValType, 0, rt.NumIn()-firstParam)
	for i := firstParam; i < rt.NumIn(); i++ {
		paramTypes = append(paramTypes, goKindToValType(name, rt.In(i)))
	}
	resultTypes := make([]ir.ValType, 0, rt.NumOut())
	for i := 0; i < rt.NumOut(); i++ {
		resultTypes = append(resultTypes, goKindToValType(name, rt.Out(i)))
	}

	typeID := b.registry.Intern(&ir.FuncType{Params: paramTypes, Results: resultTypes})

	host := func(inst *wasm.Instance, args []ir.RawValue) ([]ir.RawValue, error) {
		in := make([]reflect.Value, rt.NumIn())
		if hasCtx {
			in[0] = reflect.ValueOf(context.Background())
		}
		for i, t := range paramTypes {
			in[firstParam+i] = rawToGo(args[i], t, rt.In(firstParam+i))
		}
		out := rv.Call(in)
		results := make([]ir.RawValue, len(out))
		for i, v := range out {
			results[i] = goToRaw(v, resultTypes[i])
		}
		return results, nil
	}

	b.funcs[name] = &wasm.FunctionInstance{TypeID: typeID, Host: host}
	b.order = append(b.order, name)
	return b
}

func (b *hostModuleBuilder) Instantiate(_ context.Context, cluster *wasm.Cluster, name string) (*wasm.Instance, error) {
	inst := &wasm.Instance{Name: name, Exports: make(map[string]wasm.ExportInstance)}
	for _, fname := range b.order {
		fn := b.funcs[fname]
		inst.Functions = append(inst.Functions, fn)
		inst.Exports[fname] = wasm.ExportInstance{Name: fname, Kind: wasm.ExternKindFunc, Function: fn}
	}
	if err := cluster.Add(name, inst); err != nil {
		return nil, err
	}
	return inst, nil
}

func goKindToValType(funcName string, t reflect.Type) ir.ValType {
	switch t.Kind() {
	case reflect.Uint32, reflect.Int32:
		return ir.ValTypeI32
	case reflect.Uint64, reflect.Int64, reflect.Uintptr:
		return ir.ValTypeI64
	case reflect.Float32:
		return ir.ValTypeF32
	case reflect.Float64:
		return ir.ValTypeF64
	default:
		panic(fmt.Sprintf("wasmine: host function %q has unsupported parameter/result type %s", funcName, t))
	}
}

func rawToGo(v ir.RawValue, t ir.ValType, target reflect.Type) reflect.Value {
	switch t {
	case ir.ValTypeI32:
		if target.Kind() == reflect.Int32 {
			return reflect.ValueOf(ir.DecodeI32(v))
		}
		return reflect.ValueOf(ir.DecodeU32(v))
	case ir.ValTypeI64:
		if target.Kind() == reflect.Int64 {
			return reflect.ValueOf(ir.DecodeI64(v))
		}
		if target.Kind() == reflect.Uintptr {
			return reflect.ValueOf(uintptr(v))
		}
		return reflect.ValueOf(ir.DecodeU64(v))
	case ir.ValTypeF32:
		return reflect.ValueOf(ir.DecodeF32(v))
	default:
		return reflect.ValueOf(ir.DecodeF64(v))
	}
}

func goToRaw(v reflect.Value, t ir.ValType) ir.RawValue {
	switch t {
	case ir.ValTypeI32:
		if v.Kind() == reflect.Int32 {
			return ir.EncodeI32(int32(v.Int()))
		}
		return ir.RawValue(uint32(v.Uint()))
	case ir.ValTypeI64:
		if v.Kind() == reflect.Int64 {
			return ir.EncodeI64(v.Int())
		}
		if v.Kind() == reflect.Uintptr {
			return ir.RawValue(v.Uint())
		}
		return ir.RawValue(v.Uint())
	case ir.ValTypeF32:
		return ir.EncodeF32(float32(v.Float()))
	default:
		return ir.EncodeF64(v.Float())
	}
}
