// Package binary implements the low-level Wasm binary format primitives:
// LEB128 varints, IEEE-754 floats, and length-prefixed names (spec 4.1). The
// higher-level section framing lives alongside module decoding in
// internal/wasm, which calls through this Reader for every field it reads.
package binary

import (
	"encoding/binary"
	"math"
	"unicode/utf8"

	"github.com/wasmine/wasmine/internal/moduleerrors"
)

// Reader is a forward-only cursor over an in-memory Wasm binary. It never
// copies the backing buffer; callers that need to retain a byte slice past
// the Reader's lifetime (e.g. Code section bodies) should keep that in mind
// before mutating buf.
type Reader struct {
	buf []byte
	pos int
}

// NewReader wraps buf for sequential decoding starting at offset 0.
func NewReader(buf []byte) *Reader {
	return &Reader{buf: buf}
}

// Pos returns the current byte offset, useful for section-length bookkeeping.
func (r *Reader) Pos() int { return r.pos }

// Len returns the number of unread bytes remaining.
func (r *Reader) Len() int { return len(r.buf) - r.pos }

// Eof reports whether the cursor has consumed the entire buffer.
func (r *Reader) Eof() bool { return r.pos >= len(r.buf) }

func (r *Reader) requireBytes(n int) error {
	if r.pos+n > len(r.buf) {
		return moduleerrors.Malformed("unexpected end of binary: need %d bytes, have %d", n, len(r.buf)-r.pos)
	}
	return nil
}

// ReadByte reads a single raw byte.
func (r *Reader) ReadByte() (byte, error) {
	if err := r.requireBytes(1); err != nil {
		return 0, err
	}
	b := r.buf[r.pos]
	r.pos++
	return b, nil
}

// ReadBytes reads and returns a view of the next n bytes.
func (r *Reader) ReadBytes(n int) ([]byte, error) {
	if err := r.requireBytes(n); err != nil {
		return nil, err
	}
	b := r.buf[r.pos : r.pos+n]
	r.pos += n
	return b, nil
}

// ReadU32LE reads a raw little-endian uint32 (used only for the module
// preamble's magic number and version field; everything else in the format
// is LEB128).
func (r *Reader) ReadU32LE() (uint32, error) {
	if err := r.requireBytes(4); err != nil {
		return 0, err
	}
	v := binary.LittleEndian.Uint32(r.buf[r.pos:])
	r.pos += 4
	return v, nil
}

// ReadF32LE reads a raw little-endian IEEE-754 single-precision float.
func (r *Reader) ReadF32LE() (float32, error) {
	bits, err := r.ReadU32LE()
	if err != nil {
		return 0, err
	}
	return math.Float32frombits(bits), nil
}

// ReadF64LE reads a raw little-endian IEEE-754 double-precision float.
func (r *Reader) ReadF64LE() (float64, error) {
	if err := r.requireBytes(8); err != nil {
		return 0, err
	}
	bits := binary.LittleEndian.Uint64(r.buf[r.pos:])
	r.pos += 8
	return math.Float64frombits(bits), nil
}

// leb128MaxBytes is ceil(maxBits/7), the maximum number of encoded bytes a
// conforming producer may emit for a value of the given bit width; anything
// longer is an overlong encoding and therefore malformed.
func leb128MaxBytes(maxBits uint) int {
	return (int(maxBits) + 6) / 7
}

// ReadLEB128Unsigned decodes an unsigned LEB128 varint, rejecting encodings
// longer than maxBits' worth of groups and rejecting set high bits beyond
// maxBits in the final group (spec 4.1 "overlong encodings are malformed").
func (r *Reader) ReadLEB128Unsigned(maxBits uint) (uint64, error) {
	var result uint64
	var shift uint
	maxBytes := leb128MaxBytes(maxBits)
	for i := 0; ; i++ {
		if i >= maxBytes {
			return 0, moduleerrors.Malformed("integer representation too long")
		}
		b, err := r.ReadByte()
		if err != nil {
			return 0, moduleerrors.Malformed("unexpected end of binary reading varint: %v", err)
		}
		chunk := uint64(b & 0x7f)
		if shift+7 > 64 {
			return 0, moduleerrors.Malformed("integer representation too long")
		}
		if shift >= maxBits {
			// Every payload bit here must be zero, except bits that fit
			// within maxBits exactly on the boundary byte.
			if chunk != 0 {
				return 0, moduleerrors.Malformed("integer too large for %d bits", maxBits)
			}
		} else if shift+7 > maxBits {
			allowed := uint64(1)<<(maxBits-shift) - 1
			if chunk&^allowed != 0 {
				return 0, moduleerrors.Malformed("integer too large for %d bits", maxBits)
			}
		}
		result |= chunk << shift
		if b&0x80 == 0 {
			return result, nil
		}
		shift += 7
	}
}

// ReadLEB128Signed decodes a signed LEB128 varint with the same overlong and
// sign-extension checks as ReadLEB128Unsigned.
func (r *Reader) ReadLEB128Signed(maxBits uint) (int64, error) {
	var result int64
	var shift uint
	var b byte
	maxBytes := leb128MaxBytes(maxBits)
	for i := 0; ; i++ {
		if i >= maxBytes {
			return 0, moduleerrors.Malformed("integer representation too long")
		}
		var err error
		b, err = r.ReadByte()
		if err != nil {
			return 0, moduleerrors.Malformed("unexpected end of binary reading varint: %v", err)
		}
		chunk := int64(b & 0x7f)
		if shift < 64 {
			result |= chunk << shift
		}
		shift += 7
		if b&0x80 == 0 {
			break
		}
	}
	// Sign-extend if the sign bit of the final group is set and there are
	// remaining high bits to fill.
	if shift < 64 && b&0x40 != 0 {
		result |= -1 << shift
	}
	if maxBits < 64 {
		// Verify the value fits in maxBits once sign-extended, by checking it
		// round-trips through a maxBits-wide signed range.
		min := -(int64(1) << (maxBits - 1))
		max := int64(1)<<(maxBits-1) - 1
		if result < min || result > max {
			return 0, moduleerrors.Malformed("integer too large for %d bits", maxBits)
		}
	}
	return result, nil
}

// ReadU32 is the common case of an unsigned LEB128 used for indices and
// counts, always restricted to 32 bits per the binary format's u32 production.
func (r *Reader) ReadU32() (uint32, error) {
	v, err := r.ReadLEB128Unsigned(32)
	if err != nil {
		return 0, err
	}
	return uint32(v), nil
}

// ReadU64 reads an unsigned LEB128 restricted to 64 bits (memory/table
// limits under the memory64 proposal reuse this; WebAssembly 1.0 callers
// only ever need ReadU32).
func (r *Reader) ReadU64() (uint64, error) {
	return r.ReadLEB128Unsigned(64)
}

// ReadI32 reads a signed LEB128 restricted to 32 bits, used for i32.const
// operands and block type s33 encodings' narrow cases.
func (r *Reader) ReadI32() (int32, error) {
	v, err := r.ReadLEB128Signed(32)
	if err != nil {
		return 0, err
	}
	return int32(v), nil
}

// ReadI64 reads a signed LEB128 restricted to 64 bits, used for i64.const
// operands.
func (r *Reader) ReadI64() (int64, error) {
	return r.ReadLEB128Signed(64)
}

// ReadS33 reads the signed 33-bit varint used by the blocktype production
// (distinguishing empty/valtype blocktypes from type-index blocktypes).
func (r *Reader) ReadS33() (int64, error) {
	return r.ReadLEB128Signed(33)
}

// ReadName reads a length-prefixed, UTF-8-validated name, per spec 4.1
// "names are malformed if not valid UTF-8".
func (r *Reader) ReadName() (string, error) {
	n, err := r.ReadU32()
	if err != nil {
		return "", moduleerrors.Malformed("reading name length: %v", err)
	}
	b, err := r.ReadBytes(int(n))
	if err != nil {
		return "", moduleerrors.Malformed("reading name bytes: %v", err)
	}
	if !utf8.Valid(b) {
		return "", moduleerrors.Malformed("name is not valid UTF-8")
	}
	return string(b), nil
}

// ReadVec reads a u32 count followed by calling elem count times, the
// generic "vec(B)" production used throughout the format for sequences.
func ReadVec[T any](r *Reader, elem func(*Reader) (T, error)) ([]T, error) {
	n, err := r.ReadU32()
	if err != nil {
		return nil, moduleerrors.Malformed("reading vector length: %v", err)
	}
	out := make([]T, n)
	for i := range out {
		v, err := elem(r)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}
