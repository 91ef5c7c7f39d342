package binary

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestReadLEB128Unsigned(t *testing.T) {
	tests := []struct {
		name    string
		buf     []byte
		maxBits uint
		want    uint64
	}{
		{"zero", []byte{0x00}, 32, 0},
		{"one byte", []byte{0x7f}, 32, 127},
		{"three bytes", []byte{0xe5, 0x8e, 0x26}, 32, 624485},
		{"max u32", []byte{0xff, 0xff, 0xff, 0xff, 0x0f}, 32, 0xffffffff},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := NewReader(tt.buf)
			got, err := r.ReadLEB128Unsigned(tt.maxBits)
			require.NoError(t, err)
			require.Equal(t, tt.want, got)
			require.True(t, r.Eof())
		})
	}
}

func TestReadLEB128UnsignedOverlong(t *testing.T) {
	// 5 bytes is the max for 32 bits; a 6th continuation byte is overlong.
	r := NewReader([]byte{0x80, 0x80, 0x80, 0x80, 0x80, 0x00})
	_, err := r.ReadLEB128Unsigned(32)
	require.Error(t, err)
}

func TestReadLEB128UnsignedTooLargeForWidth(t *testing.T) {
	// Encodes 0x1_ffff_ffff, one bit too many for a u32.
	r := NewReader([]byte{0xff, 0xff, 0xff, 0xff, 0x1f})
	_, err := r.ReadLEB128Unsigned(32)
	require.Error(t, err)
}

func TestReadLEB128Signed(t *testing.T) {
	tests := []struct {
		name string
		buf  []byte
		want int64
	}{
		{"zero", []byte{0x00}, 0},
		{"negative one", []byte{0x7f}, -1},
		{"positive 64", []byte{0xc0, 0x00}, 64},
		{"negative 64", []byte{0xc0, 0x7f}, -64},
		{"negative 129", []byte{0xff, 0x7e}, -129},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := NewReader(tt.buf)
			got, err := r.ReadLEB128Signed(32)
			require.NoError(t, err)
			require.Equal(t, tt.want, got)
		})
	}
}

func TestReadName(t *testing.T) {
	r := NewReader([]byte{0x05, 'h', 'e', 'l', 'l', 'o'})
	name, err := r.ReadName()
	require.NoError(t, err)
	require.Equal(t, "hello", name)
}

func TestReadNameInvalidUTF8(t *testing.T) {
	r := NewReader([]byte{0x02, 0xff, 0xfe})
	_, err := r.ReadName()
	require.Error(t, err)
}

func TestReadNameTruncated(t *testing.T) {
	r := NewReader([]byte{0x05, 'h', 'i'})
	_, err := r.ReadName()
	require.Error(t, err)
}

func TestReadF32LE(t *testing.T) {
	// 1.0f little-endian.
	r := NewReader([]byte{0x00, 0x00, 0x80, 0x3f})
	v, err := r.ReadF32LE()
	require.NoError(t, err)
	require.Equal(t, float32(1.0), v)
}

func TestReadVec(t *testing.T) {
	r := NewReader([]byte{0x03, 0x01, 0x02, 0x03})
	got, err := ReadVec(r, func(r *Reader) (byte, error) { return r.ReadByte() })
	require.NoError(t, err)
	require.Equal(t, []byte{1, 2, 3}, got)
}

func TestRequireBytesTruncated(t *testing.T) {
	r := NewReader([]byte{0x01})
	_, err := r.ReadU32LE()
	require.Error(t, err)
}
