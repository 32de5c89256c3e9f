package disasm

import "github.com/panopticon-re/panopticon/ir"

// AddressRange is a half-open range of absolute byte addresses [Start, End).
type AddressRange struct {
	Start, End uint64
}

// Len reports the range's width in bytes.
func (a AddressRange) Len() uint64 { return a.End - a.Start }

// StatementRange is a half-open index range [Start, End) into a
// bitcode.Store.
type StatementRange struct {
	Start, End int
}

// MnemonicRange is a half-open index range [Start, End) into a Function's
// Mnemonics slice.
type MnemonicRange struct {
	Start, End int
}

// Len reports how many mnemonics the range spans.
func (m MnemonicRange) Len() int { return m.End - m.Start }

// Mnemonic is one disassembled machine instruction with its IR expansion
// (spec §3). Addresses are absolute within the owning Region.
type Mnemonic struct {
	Area         AddressRange
	Opcode       string
	Operands     []ir.Rvalue
	FormatString []string
	Statements   StatementRange
}
