package wasm

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/wasmine/wasmine/internal/typeregistry"
)

// buildModule assembles a minimal binary from section byte slices, each
// already including its id and LEB128 length prefix; tests compose hand
// written sections rather than depending on a WAT toolchain.
func buildModule(sections ...[]byte) []byte {
	buf := []byte{0x00, 0x61, 0x73, 0x6d, 0x01, 0x00, 0x00, 0x00}
	for _, s := range sections {
		buf = append(buf, s...)
	}
	return buf
}

func section(id byte, body []byte) []byte {
	return append([]byte{id, byte(len(body))}, body...)
}

func TestDecodeModuleEmpty(t *testing.T) {
	m, err := DecodeModule(buildModule(), DecodeConfig{Registry: typeregistry.New()})
	require.NoError(t, err)
	require.Equal(t, 0, m.NumFuncs())
}

func TestDecodeModuleBadMagic(t *testing.T) {
	_, err := DecodeModule([]byte{0x00, 0x00, 0x00, 0x00, 0x01, 0x00, 0x00, 0x00}, DecodeConfig{})
	require.Error(t, err)
}

func TestDecodeModuleBadVersion(t *testing.T) {
	_, err := DecodeModule([]byte{0x00, 0x61, 0x73, 0x6d, 0x02, 0x00, 0x00, 0x00}, DecodeConfig{})
	require.Error(t, err)
}

func TestDecodeTypeSection(t *testing.T) {
	// One type: (i32, i32) -> i32.
	typeSec := section(1, []byte{
		0x01,       // count
		0x60,       // func tag
		0x02, 0x7f, 0x7f, // params: i32 i32
		0x01, 0x7f, // results: i32
	})
	reg := typeregistry.New()
	m, err := DecodeModule(buildModule(typeSec), DecodeConfig{Registry: reg})
	require.NoError(t, err)
	require.Len(t, m.TypeSection, 1)
	ft := reg.Lookup(m.TypeSection[0])
	require.Equal(t, "(i32, i32) -> (i32)", ft.String())
}

func TestDecodeSectionOutOfOrder(t *testing.T) {
	typeSec := section(1, []byte{0x00})
	importSec := section(2, []byte{0x00})
	// Function section (3) before Import section (2) is out of order.
	funcSec := section(3, []byte{0x00})
	_, err := DecodeModule(buildModule(typeSec, funcSec, importSec), DecodeConfig{})
	require.Error(t, err)
}

func TestDecodeDuplicateSection(t *testing.T) {
	typeSec := section(1, []byte{0x00})
	_, err := DecodeModule(buildModule(typeSec, typeSec), DecodeConfig{})
	require.Error(t, err)
}

func TestDecodeFunctionAndCodeCountMismatch(t *testing.T) {
	typeSec := section(1, []byte{0x01, 0x60, 0x00, 0x00})
	funcSec := section(3, []byte{0x01, 0x00}) // one function
	// No code section at all: counts 1 vs 0.
	_, err := DecodeModule(buildModule(typeSec, funcSec), DecodeConfig{Registry: typeregistry.New()})
	require.Error(t, err)
}

func TestDecodeExportDuplicateName(t *testing.T) {
	typeSec := section(1, []byte{0x01, 0x60, 0x00, 0x00})
	funcSec := section(3, []byte{0x01, 0x00})
	codeSec := section(10, []byte{0x01, 0x02, 0x00, 0x0b})
	exportSec := section(7, []byte{
		0x02,
		0x01, 'f', 0x00, 0x00,
		0x01, 'f', 0x00, 0x00,
	})
	_, err := DecodeModule(buildModule(typeSec, funcSec, exportSec, codeSec), DecodeConfig{Registry: typeregistry.New()})
	require.Error(t, err)
}

func TestDecodeMultipleMemoriesRejected(t *testing.T) {
	memSec := section(5, []byte{
		0x02,
		0x00, 0x01,
		0x00, 0x01,
	})
	_, err := DecodeModule(buildModule(memSec), DecodeConfig{})
	require.Error(t, err)
}

func TestDecodeCustomSectionAnywhere(t *testing.T) {
	custom := section(0, append([]byte{0x04}, []byte("name")...))
	typeSec := section(1, []byte{0x00})
	m, err := DecodeModule(buildModule(custom, typeSec, custom), DecodeConfig{Registry: typeregistry.New()})
	require.NoError(t, err)
	require.Len(t, m.TypeSection, 0)
}
