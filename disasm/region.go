// Package disasm implements the recursive-descent disassembler driver
// (spec §4.3): it turns a byte Region plus an Architecture descriptor into
// a Function — a control-flow graph of basic blocks of Mnemonics, with
// their IR statements held in a bitcode.Store.
package disasm

import (
	"github.com/panopticon-re/panopticon/ir/perr"
)

// Region is a random-access byte slab addressed by absolute uint64
// addresses (spec §3). The disassembler borrows it read-only; ownership
// stays with the caller (a binary loader, out of scope here).
type Region struct {
	name string
	base uint64
	data []byte
}

// NewRegion wraps data as a Region named name, whose first byte sits at
// address base.
func NewRegion(name string, base uint64, data []byte) *Region {
	return &Region{name: name, base: base, data: data}
}

// Name returns the region's interned name, used by Load/Store statements.
func (r *Region) Name() string { return r.name }

// Base returns the address of the region's first byte.
func (r *Region) Base() uint64 { return r.base }

// Len reports the region's size in bytes.
func (r *Region) Len() int { return len(r.data) }

// Contains reports whether addr falls within the region.
func (r *Region) Contains(addr uint64) bool {
	return addr >= r.base && addr-r.base < uint64(len(r.data))
}

// Read returns the n bytes at addr, or an OutOfRegion error if any of
// [addr, addr+n) falls outside the region.
func (r *Region) Read(addr uint64, n int) ([]byte, error) {
	if n < 0 || !r.Contains(addr) || addr-r.base+uint64(n) > uint64(len(r.data)) {
		return nil, perr.New(perr.KindOutOfRegion, "region %q: read of %d bytes at %#x out of bounds", r.name, n, addr)
	}
	off := addr - r.base
	return r.data[off : off+uint64(n)], nil
}

// ReadByte returns the single byte at addr.
func (r *Region) ReadByte(addr uint64) (byte, error) {
	b, err := r.Read(addr, 1)
	if err != nil {
		return 0, err
	}
	return b[0], nil
}
