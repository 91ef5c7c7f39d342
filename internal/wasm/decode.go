package wasm

import (
	"github.com/wasmine/wasmine/internal/ir"
	"github.com/wasmine/wasmine/internal/moduleerrors"
	"github.com/wasmine/wasmine/internal/typeregistry"
	"github.com/wasmine/wasmine/internal/wasm/binary"
)

const (
	wasmMagic   = 0x6d736100 // "\0asm" little-endian
	wasmVersion = 0x00000001
)

type sectionID byte

const (
	sectionCustom sectionID = iota
	sectionType
	sectionImport
	sectionFunction
	sectionTable
	sectionMemory
	sectionGlobal
	sectionExport
	sectionStart
	sectionElement
	sectionCode
	sectionData
	sectionDataCount
)

// DecodeConfig controls which optional behaviors spec 4.1/C3 decoding honors.
// Registry defaults to typeregistry.Default; tests supply their own for
// hermetic type-id assignment.
type DecodeConfig struct {
	Registry *typeregistry.Registry
}

// DecodeModule parses a complete Wasm binary into section-level metadata
// (spec C3). It performs every structural check the "malformed" failure mode
// requires (section ordering, no duplicate non-custom sections, no trailing
// bytes, byte-length-consumed verification) but defers instruction-level
// validation to internal/validator.
func DecodeModule(buf []byte, cfg DecodeConfig) (*Module, error) {
	if cfg.Registry == nil {
		cfg.Registry = typeregistry.Default
	}
	r := binary.NewReader(buf)

	magic, err := r.ReadU32LE()
	if err != nil {
		return nil, moduleerrors.Malformed("reading magic: %v", err)
	}
	if magic != wasmMagic {
		return nil, moduleerrors.Malformed("bad magic number %#x", magic)
	}
	version, err := r.ReadU32LE()
	if err != nil {
		return nil, moduleerrors.Malformed("reading version: %v", err)
	}
	if version != wasmVersion {
		return nil, moduleerrors.Malformed("unsupported binary version %#x", version)
	}

	d := &decoder{r: r, reg: cfg.Registry, m: &Module{registry: cfg.Registry}}
	if err := d.decodeSections(); err != nil {
		return nil, err
	}
	if err := d.m.computeImportCounts(); err != nil {
		return nil, err
	}
	if len(d.m.FunctionTypes) != len(d.m.Codes) {
		return nil, moduleerrors.Malformed("function and code section counts differ: %d vs %d", len(d.m.FunctionTypes), len(d.m.Codes))
	}
	if d.m.HasDataCount && int(d.m.DataCount) != len(d.m.Data) {
		return nil, moduleerrors.Malformed("data count section (%d) does not match data section (%d)", d.m.DataCount, len(d.m.Data))
	}
	return d.m, nil
}

type decoder struct {
	r   *binary.Reader
	reg *typeregistry.Registry
	m   *Module

	seen     [sectionDataCount + 1]bool
	lastNonCustom sectionID
	sawAnySection bool
}

// decodeSections walks the section stream enforcing the fixed ordering of
// non-custom sections (spec 4.1: Type < Import < Function < Table < Memory
// < Global < Export < Start < Element < DataCount < Code < Data); custom
// sections may appear anywhere and any number of times.
func (d *decoder) decodeSections() error {
	// DataCount (id 12) is ordered between Element and Code.
	rank := func(id sectionID) int {
		switch id {
		case sectionDataCount:
			return int(sectionCode)
		case sectionCode, sectionData:
			return int(id) + 1
		}
		return int(id)
	}
	for !d.r.Eof() {
		idByte, err := d.r.ReadByte()
		if err != nil {
			return moduleerrors.Malformed("reading section id: %v", err)
		}
		id := sectionID(idByte)
		if id > sectionDataCount {
			return moduleerrors.Malformed("unknown section id %d", id)
		}
		size, err := d.r.ReadU32()
		if err != nil {
			return moduleerrors.Malformed("reading section size: %v", err)
		}
		start := d.r.Pos()
		body, err := d.r.ReadBytes(int(size))
		if err != nil {
			return moduleerrors.Malformed("section %d truncated: %v", id, err)
		}
		sr := binary.NewReader(body)

		if id == sectionCustom {
			// Custom sections are skipped entirely: the name is read only to
			// confirm the section itself is well-formed, not interpreted.
			if _, err := sr.ReadName(); err != nil {
				return err
			}
			continue
		}

		if d.seen[id] {
			return moduleerrors.Malformed("duplicate section id %d", id)
		}
		if rank(id) < rank(d.lastNonCustom) || (d.sawAnySection && id == d.lastNonCustom) {
			return moduleerrors.Malformed("section id %d out of order", id)
		}
		d.seen[id] = true
		d.lastNonCustom = id
		d.sawAnySection = true

		if err := d.decodeSection(id, sr); err != nil {
			return err
		}
		if !sr.Eof() {
			return moduleerrors.Malformed("section %d has %d unconsumed trailing bytes", id, sr.Len())
		}
		_ = start
	}
	return nil
}

func (d *decoder) decodeSection(id sectionID, r *binary.Reader) error {
	switch id {
	case sectionType:
		return d.decodeTypeSection(r)
	case sectionImport:
		return d.decodeImportSection(r)
	case sectionFunction:
		return d.decodeFunctionSection(r)
	case sectionTable:
		return d.decodeTableSection(r)
	case sectionMemory:
		return d.decodeMemorySection(r)
	case sectionGlobal:
		return d.decodeGlobalSection(r)
	case sectionExport:
		return d.decodeExportSection(r)
	case sectionStart:
		return d.decodeStartSection(r)
	case sectionElement:
		return d.decodeElementSection(r)
	case sectionCode:
		return d.decodeCodeSection(r)
	case sectionData:
		return d.decodeDataSection(r)
	case sectionDataCount:
		return d.decodeDataCountSection(r)
	default:
		return moduleerrors.Malformed("unhandled section id %d", id)
	}
}

// computeImportCounts derives the NumImported* counters from the decoded
// Imports slice, used throughout to translate between combined and
// internal-only index spaces.
func (m *Module) computeImportCounts() error {
	for _, imp := range m.Imports {
		switch imp.Kind {
		case ExternKindFunc:
			m.NumImportedFuncs++
		case ExternKindTable:
			m.NumImportedTables++
		case ExternKindMemory:
			m.NumImportedMemories++
		case ExternKindGlobal:
			m.NumImportedGlobals++
		default:
			return moduleerrors.Malformed("import %s.%s has unknown kind %d", imp.Module, imp.Name, imp.Kind)
		}
	}
	if m.NumImportedMemories+len(m.Memories) > 1 {
		return moduleerrors.Invalid("at most one memory is allowed")
	}
	return nil
}

func readValType(r *binary.Reader) (ir.ValType, error) {
	b, err := r.ReadByte()
	if err != nil {
		return 0, err
	}
	vt := ir.ValType(b)
	if !vt.IsValid() {
		return 0, moduleerrors.Malformed("invalid value type byte %#x", b)
	}
	return vt, nil
}

func readLimits(r *binary.Reader) (Limits, error) {
	flags, err := r.ReadByte()
	if err != nil {
		return Limits{}, err
	}
	min, err := r.ReadU32()
	if err != nil {
		return Limits{}, err
	}
	l := Limits{Min: min}
	switch flags {
	case 0x00:
	case 0x01:
		max, err := r.ReadU32()
		if err != nil {
			return Limits{}, err
		}
		l.HasMax = true
		l.Max = max
	default:
		return Limits{}, moduleerrors.Malformed("invalid limits flag %#x", flags)
	}
	if l.HasMax && l.Max < l.Min {
		return Limits{}, moduleerrors.Invalid("limits maximum %d less than minimum %d", l.Max, l.Min)
	}
	return l, nil
}

func readTableType(r *binary.Reader) (TableType, error) {
	elem, err := readValType(r)
	if err != nil {
		return TableType{}, err
	}
	if !elem.IsReference() {
		return TableType{}, moduleerrors.Malformed("table element type must be a reference type, got %s", elem)
	}
	lim, err := readLimits(r)
	if err != nil {
		return TableType{}, err
	}
	return TableType{ElemType: elem, Limits: lim}, nil
}

func readGlobalType(r *binary.Reader) (GlobalType, error) {
	t, err := readValType(r)
	if err != nil {
		return GlobalType{}, err
	}
	m, err := r.ReadByte()
	if err != nil {
		return GlobalType{}, err
	}
	if m != 0x00 && m != 0x01 {
		return GlobalType{}, moduleerrors.Malformed("invalid global mutability byte %#x", m)
	}
	return GlobalType{Type: t, Mutable: m == 0x01}, nil
}
