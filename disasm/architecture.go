package disasm

import "github.com/panopticon-re/panopticon/ir"

// PrepareHint is one entry `Architecture.Prepare` contributes: an interrupt
// vector, entry hint, or similar pre-seeded name for an address (spec
// §4.3).
type PrepareHint struct {
	Name    string
	Address uint64
	Comment string
}

// Jump is one control-transfer edge an Architecture.Decode call reports.
// Target is a Constant for a direct transfer, a Variable for an indirect
// one, or Undefined for an unknown one.
type Jump struct {
	Origin uint64
	Target ir.Rvalue
	Guard  ir.Guard
}

// Match is what Architecture.Decode returns for one decode attempt: the
// mnemonics it produced (normally one, several for an instruction that
// expands to more than one IR-bearing unit), each one's IR expansion, and
// the jumps the decode implies. Statements is parallel to Mnemonics; a
// mnemonic with no IR effect (a branch, a return, a nop) may leave its
// slot nil, and a Statements slice shorter than Mnemonics leaves the
// missing slots nil.
type Match struct {
	Mnemonics  []Mnemonic
	Statements [][]ir.Statement
	Jumps      []Jump
}

// Architecture is the boundary between the driver (component C) and the
// per-ISA instruction-table collaborators spec.md §1 puts out of scope:
// only this trait is specified; AVR/MOS6502/AMD64 opcode rows are not.
//
// Configuration is per-instance state the decoder may read and mutate
// across calls within one decode session (e.g. x86 operand-size prefix
// state, AVR's one-shot skip flag) — never across unrelated Functions.
type Architecture[Configuration any] interface {
	// Prepare scans region for interrupt vectors, entry hints, or other
	// architecture-specific pre-seeded addresses worth queuing before the
	// main decode loop starts.
	Prepare(region *Region, cfg *Configuration) ([]PrepareHint, error)

	// Decode attempts to disassemble one unit of machine code at address
	// in region. It is pure with respect to region; it may mutate cfg.
	Decode(region *Region, address uint64, cfg *Configuration) (Match, error)
}
