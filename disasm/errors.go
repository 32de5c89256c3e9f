package disasm

import "github.com/panopticon-re/panopticon/ir/perr"

// Decode errors (spec §7.1): emitted by the Architecture trait and
// recovered locally by the driver (insert a Failed vertex, log, continue).

func errUnrecognizedInstruction(addr uint64) error {
	return perr.New(perr.KindUnrecognizedInstruction, "unrecognized instruction at %#x", addr)
}

func errMisalignedJump(addr uint64) error {
	return perr.New(perr.KindMisalignedJump, "jump into the middle of an existing mnemonic at %#x", addr)
}

// Structural errors (spec §7.2): surfaced to the caller. New returns a nil
// Function alongside one; Extend and Rewrite return theirs before changing
// the Function they were given.

func errFunctionHasNoEntryPoint() error {
	return perr.New(perr.KindFunctionHasNoEntryPoint, "no basic block starts at the function's entry address")
}

func errNonContiguousBasicBlock(blockIdx int, gapStart, gapEnd uint64) error {
	return perr.New(perr.KindNonContiguousBasicBlock, "non-contiguous basic block #%d: gap between %#x and %#x", blockIdx, gapStart, gapEnd)
}
