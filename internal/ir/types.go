// Package ir defines the basic-block IR that wasm functions are lowered
// into: typed SSA variables, phi nodes at block entry, and explicit
// terminators. See internal/validator for the decoder that produces it and
// internal/interpreter for the engine that executes it.
package ir

import (
	"fmt"
	"strings"
)

// ValType is a WebAssembly value type, encoded the same as the binary
// format's valtype byte so decoding never needs a translation table.
type ValType byte

const (
	ValTypeI32       ValType = 0x7f
	ValTypeI64       ValType = 0x7e
	ValTypeF32       ValType = 0x7d
	ValTypeF64       ValType = 0x7c
	ValTypeV128      ValType = 0x7b
	ValTypeFuncRef   ValType = 0x70
	ValTypeExternRef ValType = 0x6f
)

func (v ValType) String() string {
	switch v {
	case ValTypeI32:
		return "i32"
	case ValTypeI64:
		return "i64"
	case ValTypeF32:
		return "f32"
	case ValTypeF64:
		return "f64"
	case ValTypeV128:
		return "v128"
	case ValTypeFuncRef:
		return "funcref"
	case ValTypeExternRef:
		return "externref"
	default:
		return fmt.Sprintf("valtype(%#x)", byte(v))
	}
}

// IsNumeric reports whether v is one of the four numeric types.
func (v ValType) IsNumeric() bool {
	switch v {
	case ValTypeI32, ValTypeI64, ValTypeF32, ValTypeF64:
		return true
	}
	return false
}

// IsReference reports whether v is funcref or externref.
func (v ValType) IsReference() bool {
	return v == ValTypeFuncRef || v == ValTypeExternRef
}

// IsValid reports whether v is one of the defined value types. Used by the
// decoder to reject unassigned bytes where a valtype is expected.
func (v ValType) IsValid() bool {
	switch v {
	case ValTypeI32, ValTypeI64, ValTypeF32, ValTypeF64, ValTypeV128, ValTypeFuncRef, ValTypeExternRef:
		return true
	}
	return false
}

// TypeID is a stable, interned identifier for a FuncType, assigned by
// internal/typeregistry. Equal TypeIDs imply structurally equal FuncTypes.
type TypeID uint32

// FuncType is a function signature: a sequence of parameter types and a
// sequence of result types. WebAssembly 1.0 plus the multi-value extension
// allows any number of results.
type FuncType struct {
	Params  []ValType
	Results []ValType
}

// Key returns a string uniquely determined by the structural shape of the
// type, used by the type registry to intern by structural equality.
func (t *FuncType) Key() string {
	var b strings.Builder
	b.Grow(len(t.Params) + len(t.Results) + 2)
	for _, p := range t.Params {
		b.WriteByte(byte(p))
	}
	b.WriteByte(0) // separator, disjoint from any valid valtype byte range boundary
	for _, r := range t.Results {
		b.WriteByte(byte(r))
	}
	return b.String()
}

func (t *FuncType) String() string {
	ps := make([]string, len(t.Params))
	for i, p := range t.Params {
		ps[i] = p.String()
	}
	rs := make([]string, len(t.Results))
	for i, r := range t.Results {
		rs[i] = r.String()
	}
	return fmt.Sprintf("(%s) -> (%s)", strings.Join(ps, ", "), strings.Join(rs, ", "))
}

// EqualSignature reports whether t has exactly the given params and results.
func (t *FuncType) EqualSignature(params, results []ValType) bool {
	if len(t.Params) != len(params) || len(t.Results) != len(results) {
		return false
	}
	for i, p := range params {
		if t.Params[i] != p {
			return false
		}
	}
	for i, r := range results {
		if t.Results[i] != r {
			return false
		}
	}
	return true
}
