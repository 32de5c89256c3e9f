package avr

import "github.com/panopticon-re/panopticon/ir/perr"

func errUnrecognized(addr uint64) error {
	return perr.New(perr.KindUnrecognizedInstruction, "avr: unrecognized opcode at %#x", addr)
}
