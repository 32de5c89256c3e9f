package mos6502

import "github.com/panopticon-re/panopticon/ir/perr"

func errUnrecognized(addr uint64, op byte) error {
	return perr.New(perr.KindUnrecognizedInstruction, "mos6502: unrecognized opcode %#x at %#x", op, addr)
}
