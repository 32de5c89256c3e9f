// Package mos6502 is an illustrated Architecture (spec §6) for the MOS
// Technology 6502: a handful of addressing modes and opcodes, not a
// complete ISA table (spec §1 puts full per-architecture instruction
// tables out of scope).
package mos6502

import (
	"github.com/panopticon-re/panopticon/disasm"
	"github.com/panopticon-re/panopticon/ir"
)

// Configuration is the 6502 architecture's per-session decode scratch
// (spec §6). Every opcode below decodes fully within a single Decode
// call, so Arg/Rel stay nil between calls; they exist so a future decoder
// split across multiple prefix bytes (as some 65C02/65816 extensions
// require) has somewhere to carry partial state.
type Configuration struct {
	Arg ir.Rvalue
	Rel *int16
}

// NMOS6502 is the baseline Configuration: no decoder state carried in.
func NMOS6502() *Configuration { return &Configuration{} }

// Arch implements disasm.Architecture[Configuration].
type Arch struct{}

// Prepare reports no pre-seeded hints; the 6502 reset/NMI/IRQ vectors live
// at fixed addresses $FFFA-$FFFF, outside the code region this driver
// disassembles, so there is nothing to hint here.
func (Arch) Prepare(region *disasm.Region, cfg *Configuration) ([]disasm.PrepareHint, error) {
	return nil, nil
}

func acc() ir.Rvalue  { return ir.NewVariable("A", 8, ir.NoSubscript, 0) }
func accL() ir.Lvalue { return ir.NewLvalue("A", 8, ir.NoSubscript) }
func xreg() ir.Rvalue { return ir.NewVariable("X", 8, ir.NoSubscript, 0) }
func xregL() ir.Lvalue { return ir.NewLvalue("X", 8, ir.NoSubscript) }
func zeroFlag() ir.Rvalue  { return ir.NewVariable("P_Z", 1, ir.NoSubscript, 0) }
func zeroFlagL() ir.Lvalue { return ir.NewLvalue("P_Z", 1, ir.NoSubscript) }

func stmt(assignee ir.Lvalue, op ir.Operation[ir.Rvalue]) ir.Statement {
	s, err := ir.NewStatement(assignee, op)
	if err != nil {
		return ir.NewInternalStatement(assignee, op)
	}
	return s
}

// Decode disassembles one instruction at address (spec §6).
func (Arch) Decode(region *disasm.Region, address uint64, cfg *Configuration) (disasm.Match, error) {
	op, err := region.ReadByte(address)
	if err != nil {
		return disasm.Match{}, err
	}

	switch op {
	case 0xA9: // LDA #imm
		imm, err := region.ReadByte(address + 1)
		if err != nil {
			return disasm.Match{}, err
		}
		return one(address, address+2, "lda", []ir.Rvalue{ir.NewConstant(uint64(imm), 8)},
			[]ir.Statement{stmt(accL(), ir.Move[ir.Rvalue](ir.NewConstant(uint64(imm), 8)))}), nil

	case 0x85: // STA zp
		zp, err := region.ReadByte(address + 1)
		if err != nil {
			return disasm.Match{}, err
		}
		stmts := []ir.Statement{
			ir.NewInternalStatement(ir.UndefinedL, ir.Store[ir.Rvalue]("ram", ir.LittleEndian, 1, ir.NewConstant(uint64(zp), 16), acc())),
		}
		return one(address, address+2, "sta", []ir.Rvalue{ir.NewConstant(uint64(zp), 8)}, stmts), nil

	case 0xC9: // CMP #imm
		imm, err := region.ReadByte(address + 1)
		if err != nil {
			return disasm.Match{}, err
		}
		stmts := []ir.Statement{stmt(zeroFlagL(), ir.Equal[ir.Rvalue](acc(), ir.NewConstant(uint64(imm), 8)))}
		return one(address, address+2, "cmp", []ir.Rvalue{ir.NewConstant(uint64(imm), 8)}, stmts), nil

	case 0xE8: // INX
		stmts := []ir.Statement{stmt(xregL(), ir.Add[ir.Rvalue](xreg(), ir.NewConstant(1, 8)))}
		return one(address, address+1, "inx", nil, stmts), nil

	case 0xEA: // NOP
		return one(address, address+1, "nop", nil, nil), nil

	case 0xD0: // BNE rel8
		rel, err := region.ReadByte(address + 1)
		if err != nil {
			return disasm.Match{}, err
		}
		next := address + 2
		target := uint64(int64(next) + int64(int8(rel)))
		taken, _ := ir.FromFlag(zeroFlag(), false)
		notTaken := taken.Negation()
		area := disasm.AddressRange{Start: address, End: next}
		mne := disasm.Mnemonic{Area: area, Opcode: "bne", Operands: []ir.Rvalue{ir.NewConstant(target, 64)}}
		jumps := []disasm.Jump{
			{Origin: address, Target: ir.NewConstant(target, 64), Guard: taken},
			{Origin: address, Target: ir.NewConstant(next, 64), Guard: notTaken},
		}
		return disasm.Match{Mnemonics: []disasm.Mnemonic{mne}, Statements: [][]ir.Statement{nil}, Jumps: jumps}, nil

	case 0x4C: // JMP abs
		lo, err := region.ReadByte(address + 1)
		if err != nil {
			return disasm.Match{}, err
		}
		hi, err := region.ReadByte(address + 2)
		if err != nil {
			return disasm.Match{}, err
		}
		target := uint64(lo) | uint64(hi)<<8
		area := disasm.AddressRange{Start: address, End: address + 3}
		mne := disasm.Mnemonic{Area: area, Opcode: "jmp", Operands: []ir.Rvalue{ir.NewConstant(target, 64)}}
		jumps := []disasm.Jump{{Origin: address, Target: ir.NewConstant(target, 64), Guard: ir.Always}}
		return disasm.Match{Mnemonics: []disasm.Mnemonic{mne}, Statements: [][]ir.Statement{nil}, Jumps: jumps}, nil

	case 0x60: // RTS: terminal, no statically known return address
		area := disasm.AddressRange{Start: address, End: address + 1}
		mne := disasm.Mnemonic{Area: area, Opcode: "rts"}
		jumps := []disasm.Jump{{Origin: address, Target: ir.Undefined, Guard: ir.Always}}
		return disasm.Match{Mnemonics: []disasm.Mnemonic{mne}, Statements: [][]ir.Statement{nil}, Jumps: jumps}, nil
	}

	return disasm.Match{}, errUnrecognized(address, op)
}

func one(start, end uint64, opcode string, operands []ir.Rvalue, stmts []ir.Statement) disasm.Match {
	mne := disasm.Mnemonic{Area: disasm.AddressRange{Start: start, End: end}, Opcode: opcode, Operands: operands}
	jumps := []disasm.Jump{{Origin: start, Target: ir.NewConstant(end, 64), Guard: ir.Always}}
	return disasm.Match{Mnemonics: []disasm.Mnemonic{mne}, Statements: [][]ir.Statement{stmts}, Jumps: jumps}
}
