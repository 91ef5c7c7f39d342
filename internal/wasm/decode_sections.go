package wasm

import (
	"github.com/wasmine/wasmine/internal/ir"
	"github.com/wasmine/wasmine/internal/moduleerrors"
	"github.com/wasmine/wasmine/internal/wasm/binary"
)

func (d *decoder) decodeTypeSection(r *binary.Reader) error {
	n, err := r.ReadU32()
	if err != nil {
		return err
	}
	d.m.TypeSection = make([]ir.TypeID, n)
	for i := range d.m.TypeSection {
		tag, err := r.ReadByte()
		if err != nil {
			return err
		}
		if tag != 0x60 {
			return moduleerrors.Malformed("expected func type tag 0x60, got %#x", tag)
		}
		params, err := binary.ReadVec(r, readValType)
		if err != nil {
			return err
		}
		results, err := binary.ReadVec(r, readValType)
		if err != nil {
			return err
		}
		d.m.TypeSection[i] = d.reg.Intern(&ir.FuncType{Params: params, Results: results})
	}
	return nil
}

func (d *decoder) typeIndex(idx uint32) (ir.TypeID, error) {
	if int(idx) >= len(d.m.TypeSection) {
		return 0, moduleerrors.Invalid("type index %d out of range", idx)
	}
	return d.m.TypeSection[idx], nil
}

func (d *decoder) decodeImportSection(r *binary.Reader) error {
	n, err := r.ReadU32()
	if err != nil {
		return err
	}
	d.m.Imports = make([]Import, n)
	for i := range d.m.Imports {
		mod, err := r.ReadName()
		if err != nil {
			return err
		}
		name, err := r.ReadName()
		if err != nil {
			return err
		}
		kindByte, err := r.ReadByte()
		if err != nil {
			return err
		}
		imp := Import{Module: mod, Name: name, Kind: ExternKind(kindByte)}
		switch imp.Kind {
		case ExternKindFunc:
			typeIdx, err := r.ReadU32()
			if err != nil {
				return err
			}
			tid, err := d.typeIndex(typeIdx)
			if err != nil {
				return err
			}
			imp.TypeID = tid
		case ExternKindTable:
			tt, err := readTableType(r)
			if err != nil {
				return err
			}
			imp.TableType = tt
		case ExternKindMemory:
			lim, err := readLimits(r)
			if err != nil {
				return err
			}
			imp.MemoryType = lim
		case ExternKindGlobal:
			gt, err := readGlobalType(r)
			if err != nil {
				return err
			}
			imp.GlobalType = gt
		default:
			return moduleerrors.Malformed("invalid import kind %#x", kindByte)
		}
		d.m.Imports[i] = imp
	}
	return nil
}

func (d *decoder) decodeFunctionSection(r *binary.Reader) error {
	idxs, err := binary.ReadVec(r, (*binary.Reader).ReadU32)
	if err != nil {
		return err
	}
	d.m.FunctionTypes = make([]ir.TypeID, len(idxs))
	for i, idx := range idxs {
		tid, err := d.typeIndex(idx)
		if err != nil {
			return err
		}
		d.m.FunctionTypes[i] = tid
	}
	return nil
}

func (d *decoder) decodeTableSection(r *binary.Reader) error {
	tables, err := binary.ReadVec(r, readTableType)
	if err != nil {
		return err
	}
	d.m.Tables = tables
	return nil
}

func (d *decoder) decodeMemorySection(r *binary.Reader) error {
	mems, err := binary.ReadVec(r, readLimits)
	if err != nil {
		return err
	}
	d.m.Memories = mems
	return nil
}

func (d *decoder) decodeConstExpr(r *binary.Reader) (ConstExpr, error) {
	op, err := r.ReadByte()
	if err != nil {
		return ConstExpr{}, err
	}
	var ce ConstExpr
	ce.Opcode = op
	switch op {
	case 0x41: // i32.const
		v, err := r.ReadI32()
		if err != nil {
			return ConstExpr{}, err
		}
		ce.I32Value = v
	case 0x42: // i64.const
		v, err := r.ReadI64()
		if err != nil {
			return ConstExpr{}, err
		}
		ce.I64Value = v
	case 0x43: // f32.const
		v, err := r.ReadF32LE()
		if err != nil {
			return ConstExpr{}, err
		}
		ce.F32Value = v
	case 0x44: // f64.const
		v, err := r.ReadF64LE()
		if err != nil {
			return ConstExpr{}, err
		}
		ce.F64Value = v
	case 0x23: // global.get
		idx, err := r.ReadU32()
		if err != nil {
			return ConstExpr{}, err
		}
		ce.GlobalIndex = idx
	case 0xd0: // ref.null
		t, err := readValType(r)
		if err != nil {
			return ConstExpr{}, err
		}
		ce.RefType = t
	case 0xd2: // ref.func
		idx, err := r.ReadU32()
		if err != nil {
			return ConstExpr{}, err
		}
		ce.FuncIndex = idx
	default:
		return ConstExpr{}, moduleerrors.Malformed("opcode %#x is not a valid constant expression", op)
	}
	end, err := r.ReadByte()
	if err != nil {
		return ConstExpr{}, err
	}
	if end != 0x0b {
		return ConstExpr{}, moduleerrors.Malformed("constant expression missing end opcode, got %#x", end)
	}
	return ce, nil
}

func (d *decoder) decodeGlobalSection(r *binary.Reader) error {
	n, err := r.ReadU32()
	if err != nil {
		return err
	}
	d.m.Globals = make([]Global, n)
	for i := range d.m.Globals {
		gt, err := readGlobalType(r)
		if err != nil {
			return err
		}
		init, err := d.decodeConstExpr(r)
		if err != nil {
			return err
		}
		d.m.Globals[i] = Global{Type: gt, Init: init}
	}
	return nil
}

func (d *decoder) decodeExportSection(r *binary.Reader) error {
	n, err := r.ReadU32()
	if err != nil {
		return err
	}
	seen := make(map[string]bool, n)
	d.m.Exports = make([]Export, n)
	for i := range d.m.Exports {
		name, err := r.ReadName()
		if err != nil {
			return err
		}
		if seen[name] {
			return moduleerrors.Invalid("duplicate export name %q", name)
		}
		seen[name] = true
		kindByte, err := r.ReadByte()
		if err != nil {
			return err
		}
		idx, err := r.ReadU32()
		if err != nil {
			return err
		}
		d.m.Exports[i] = Export{Name: name, Kind: ExternKind(kindByte), Index: idx}
	}
	return nil
}

func (d *decoder) decodeStartSection(r *binary.Reader) error {
	idx, err := r.ReadU32()
	if err != nil {
		return err
	}
	d.m.HasStart = true
	d.m.Start = idx
	return nil
}

func (d *decoder) decodeElementSection(r *binary.Reader) error {
	n, err := r.ReadU32()
	if err != nil {
		return err
	}
	d.m.Elements = make([]ElementSegment, n)
	for i := range d.m.Elements {
		seg, err := d.decodeElementSegment(r)
		if err != nil {
			return err
		}
		d.m.Elements[i] = seg
	}
	return nil
}

// decodeElementSegment handles all eight element-segment flag encodings
// introduced by the bulk-memory-operations and reference-types proposals
// (flags 0 through 7), per spec's "Supplemented Features".
func (d *decoder) decodeElementSegment(r *binary.Reader) (ElementSegment, error) {
	flags, err := r.ReadU32()
	if err != nil {
		return ElementSegment{}, err
	}
	var seg ElementSegment
	seg.ElemType = ir.ValTypeFuncRef

	readFuncIdxVec := func() error {
		idxs, err := binary.ReadVec(r, (*binary.Reader).ReadU32)
		if err != nil {
			return err
		}
		seg.Funcs = idxs
		return nil
	}
	readExprVec := func() error {
		exprs, err := binary.ReadVec(r, d.decodeConstExpr)
		if err != nil {
			return err
		}
		seg.Exprs = exprs
		return nil
	}
	readElemKind := func() error {
		b, err := r.ReadByte()
		if err != nil {
			return err
		}
		if b != 0x00 {
			return moduleerrors.Malformed("invalid elemkind byte %#x", b)
		}
		return nil
	}

	switch flags {
	case 0:
		seg.Mode = ElementModeActive
		off, err := d.decodeConstExpr(r)
		if err != nil {
			return ElementSegment{}, err
		}
		seg.Offset = off
		if err := readFuncIdxVec(); err != nil {
			return ElementSegment{}, err
		}
	case 1:
		seg.Mode = ElementModePassive
		if err := readElemKind(); err != nil {
			return ElementSegment{}, err
		}
		if err := readFuncIdxVec(); err != nil {
			return ElementSegment{}, err
		}
	case 2:
		seg.Mode = ElementModeActive
		tidx, err := r.ReadU32()
		if err != nil {
			return ElementSegment{}, err
		}
		seg.TableIndex = tidx
		off, err := d.decodeConstExpr(r)
		if err != nil {
			return ElementSegment{}, err
		}
		seg.Offset = off
		if err := readElemKind(); err != nil {
			return ElementSegment{}, err
		}
		if err := readFuncIdxVec(); err != nil {
			return ElementSegment{}, err
		}
	case 3:
		seg.Mode = ElementModeDeclarative
		if err := readElemKind(); err != nil {
			return ElementSegment{}, err
		}
		if err := readFuncIdxVec(); err != nil {
			return ElementSegment{}, err
		}
	case 4:
		seg.Mode = ElementModeActive
		off, err := d.decodeConstExpr(r)
		if err != nil {
			return ElementSegment{}, err
		}
		seg.Offset = off
		if err := readExprVec(); err != nil {
			return ElementSegment{}, err
		}
	case 5:
		seg.Mode = ElementModePassive
		t, err := readValType(r)
		if err != nil {
			return ElementSegment{}, err
		}
		seg.ElemType = t
		if err := readExprVec(); err != nil {
			return ElementSegment{}, err
		}
	case 6:
		seg.Mode = ElementModeActive
		tidx, err := r.ReadU32()
		if err != nil {
			return ElementSegment{}, err
		}
		seg.TableIndex = tidx
		off, err := d.decodeConstExpr(r)
		if err != nil {
			return ElementSegment{}, err
		}
		seg.Offset = off
		t, err := readValType(r)
		if err != nil {
			return ElementSegment{}, err
		}
		seg.ElemType = t
		if err := readExprVec(); err != nil {
			return ElementSegment{}, err
		}
	case 7:
		seg.Mode = ElementModeDeclarative
		t, err := readValType(r)
		if err != nil {
			return ElementSegment{}, err
		}
		seg.ElemType = t
		if err := readExprVec(); err != nil {
			return ElementSegment{}, err
		}
	default:
		return ElementSegment{}, moduleerrors.Malformed("invalid element segment flags %d", flags)
	}
	return seg, nil
}

func (d *decoder) decodeDataCountSection(r *binary.Reader) error {
	n, err := r.ReadU32()
	if err != nil {
		return err
	}
	d.m.HasDataCount = true
	d.m.DataCount = n
	return nil
}

func (d *decoder) decodeDataSection(r *binary.Reader) error {
	n, err := r.ReadU32()
	if err != nil {
		return err
	}
	d.m.Data = make([]DataSegment, n)
	for i := range d.m.Data {
		flags, err := r.ReadU32()
		if err != nil {
			return err
		}
		var seg DataSegment
		switch flags {
		case 0:
			seg.Mode = DataModeActive
			off, err := d.decodeConstExpr(r)
			if err != nil {
				return err
			}
			seg.Offset = off
		case 1:
			seg.Mode = DataModePassive
		case 2:
			seg.Mode = DataModeActive
			midx, err := r.ReadU32()
			if err != nil {
				return err
			}
			seg.MemoryIndex = midx
			off, err := d.decodeConstExpr(r)
			if err != nil {
				return err
			}
			seg.Offset = off
		default:
			return moduleerrors.Malformed("invalid data segment flags %d", flags)
		}
		n, err := r.ReadU32()
		if err != nil {
			return err
		}
		b, err := r.ReadBytes(int(n))
		if err != nil {
			return err
		}
		seg.Bytes = append([]byte(nil), b...)
		d.m.Data[i] = seg
	}
	return nil
}

func (d *decoder) decodeCodeSection(r *binary.Reader) error {
	n, err := r.ReadU32()
	if err != nil {
		return err
	}
	d.m.Codes = make([]Code, n)
	for i := range d.m.Codes {
		size, err := r.ReadU32()
		if err != nil {
			return err
		}
		body, err := r.ReadBytes(int(size))
		if err != nil {
			return err
		}
		c, err := decodeFunctionBody(body)
		if err != nil {
			return err
		}
		d.m.Codes[i] = c
	}
	return nil
}

// decodeFunctionBody expands a code entry's (count, valtype) local-group
// list into a flat per-slot type list and keeps the instruction stream as
// raw bytes for the validator to lower on demand.
func decodeFunctionBody(body []byte) (Code, error) {
	r := binary.NewReader(body)
	groupCount, err := r.ReadU32()
	if err != nil {
		return Code{}, err
	}
	var locals []ir.ValType
	var total uint64
	for i := uint32(0); i < groupCount; i++ {
		count, err := r.ReadU32()
		if err != nil {
			return Code{}, err
		}
		t, err := readValType(r)
		if err != nil {
			return Code{}, err
		}
		total += uint64(count)
		if total > 1<<20 {
			return Code{}, moduleerrors.Malformed("function declares too many locals")
		}
		for j := uint32(0); j < count; j++ {
			locals = append(locals, t)
		}
	}
	rest, err := r.ReadBytes(r.Len())
	if err != nil {
		return Code{}, err
	}
	return Code{Locals: locals, Body: append([]byte(nil), rest...)}, nil
}
