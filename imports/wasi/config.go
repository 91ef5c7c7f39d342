package wasi

import "io"

// Config carries the process-level state the WASI function surface reads
// from or writes to (spec C10's args/clock/environ/fd/random families).
type Config struct {
	Args    []string
	Environ []string

	Stdin  io.Reader
	Stdout io.Writer
	Stderr io.Writer
}

func (c *Config) argsSize() uint32 {
	n := uint32(0)
	for _, a := range c.Args {
		n += uint32(len(a)) + 1
	}
	return n
}

func (c *Config) environSize() uint32 {
	n := uint32(0)
	for _, e := range c.Environ {
		n += uint32(len(e)) + 1
	}
	return n
}

// writeOffsetsAndValues packs each of values null-terminated into buf
// starting at bufOff, and the running offset of each into ptrs starting at
// ptrOff, mirroring wasi's args_get/environ_get layout (spec "arrays of
// offsets into a single null-terminated blob").
func writeOffsetsAndValues(buf []byte, ptrOff, bufOff uint32, values []string) bool {
	cursor := bufOff
	for i, v := range values {
		if !putU32(buf, ptrOff+uint32(i)*4, cursor) {
			return false
		}
		if uint64(cursor)+uint64(len(v))+1 > uint64(len(buf)) {
			return false
		}
		copy(buf[cursor:], v)
		buf[cursor+uint32(len(v))] = 0
		cursor += uint32(len(v)) + 1
	}
	return true
}
