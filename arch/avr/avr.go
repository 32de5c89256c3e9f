// Package avr is an illustrated Architecture (spec §6) for the Atmel AVR
// instruction set: enough opcodes to exercise the disassembler driver
// end-to-end, not a complete ISA table (spec §1 puts full per-architecture
// instruction tables out of scope).
package avr

import (
	"fmt"

	"github.com/panopticon-re/panopticon/disasm"
	"github.com/panopticon-re/panopticon/ir"
)

// InterruptVector is one entry of a device's interrupt vector table, used
// to seed Prepare hints.
type InterruptVector struct {
	Name    string
	Offset  uint64
	Comment string
}

// pendingSkip is the one-shot compare-and-skip state (spec §6): set by the
// cpse mnemonic, consumed and cleared by the very next mnemonic decoded,
// whatever its length turns out to be.
type pendingSkip struct {
	guard  ir.Guard
	origin uint64
}

// Configuration is the AVR architecture's per-session state (spec §6).
type Configuration struct {
	PCBits   uint
	Flashend uint64
	IntVec   []InterruptVector

	skip *pendingSkip
}

// ATmega8 is a Configuration preset for the classic ATmega8 (8KB flash, no
// interrupt vectors pre-seeded).
func ATmega8() *Configuration {
	return &Configuration{PCBits: 13, Flashend: 0x1FFF}
}

// Arch implements disasm.Architecture[Configuration].
type Arch struct{}

// Prepare reports the configured interrupt vectors as decode hints.
func (Arch) Prepare(region *disasm.Region, cfg *Configuration) ([]disasm.PrepareHint, error) {
	hints := make([]disasm.PrepareHint, 0, len(cfg.IntVec))
	for _, v := range cfg.IntVec {
		hints = append(hints, disasm.PrepareHint{Name: v.Name, Address: v.Offset, Comment: v.Comment})
	}
	return hints, nil
}

// Decode disassembles one 16-bit AVR instruction word at address (spec §6).
// A skip carried over from the previous mnemonic (set when that mnemonic
// was cpse) is folded in as an extra jump and cleared here, regardless of
// this instruction's own length.
func (Arch) Decode(region *disasm.Region, address uint64, cfg *Configuration) (disasm.Match, error) {
	raw, err := region.Read(address, 2)
	if err != nil {
		return disasm.Match{}, err
	}
	word := uint16(raw[0]) | uint16(raw[1])<<8
	next := address + 2

	mne, stmts, jumps, err := decodeOne(word, address, next)
	if err != nil {
		return disasm.Match{}, err
	}

	if cfg.skip != nil {
		jumps = append(jumps, disasm.Jump{Origin: cfg.skip.origin, Target: ir.NewConstant(next, 64), Guard: cfg.skip.guard})
		cfg.skip = nil
	}
	if mne.Opcode == "cpse" {
		flag := ir.NewVariable("__cpse_eq", 1, ir.NoSubscript, 0)
		guard, _ := ir.FromFlag(flag, true)
		cfg.skip = &pendingSkip{guard: guard, origin: address}
	}

	return disasm.Match{
		Mnemonics:  []disasm.Mnemonic{mne},
		Statements: [][]ir.Statement{stmts},
		Jumps:      jumps,
	}, nil
}

func reg(n uint16) ir.Rvalue  { return ir.NewVariable(fmt.Sprintf("r%d", n), 8, ir.NoSubscript, 0) }
func regL(n uint16) ir.Lvalue { return ir.NewLvalue(fmt.Sprintf("r%d", n), 8, ir.NoSubscript) }

var pairNames = [4]string{"W", "X", "Y", "Z"}

func pairReg(idx uint16) ir.Rvalue  { return ir.NewVariable(pairNames[idx], 16, ir.NoSubscript, 0) }
func pairRegL(idx uint16) ir.Lvalue { return ir.NewLvalue(pairNames[idx], 16, ir.NoSubscript) }

func zeroFlag() ir.Rvalue   { return ir.NewVariable("SREG_Z", 1, ir.NoSubscript, 0) }
func zeroFlagL() ir.Lvalue  { return ir.NewLvalue("SREG_Z", 1, ir.NoSubscript) }

// decodeRegs splits the two 5-bit register fields shared by the ALU
// "Rd, Rr" instruction family: d = bits[8:4], r = bit9<<4 | bits[3:0].
func decodeRegs(word uint16) (d, r uint16) {
	d = (word >> 4) & 0x1F
	r = ((word >> 5) & 0x10) | (word & 0x0F)
	return
}

func stmt(assignee ir.Lvalue, op ir.Operation[ir.Rvalue]) ir.Statement {
	s, err := ir.NewStatement(assignee, op)
	if err != nil {
		// Every call site passes a fixed, non-reserved assignee name, so
		// this cannot fail; fall back to the internal constructor rather
		// than drop the statement.
		return ir.NewInternalStatement(assignee, op)
	}
	return s
}

func decodeOne(word uint16, addr, next uint64) (disasm.Mnemonic, []ir.Statement, []disasm.Jump, error) {
	area := disasm.AddressRange{Start: addr, End: next}
	always := []disasm.Jump{{Origin: addr, Target: ir.NewConstant(next, 64), Guard: ir.Always}}

	switch {
	case word == 0x95C8: // LPM (implied r0, Z)
		stmts := []ir.Statement{stmt(regL(0), ir.Load[ir.Rvalue]("flash", ir.LittleEndian, 1, pairReg(3)))}
		return mnemonic(area, "lpm", nil), stmts, always, nil

	case word&0xFF00 == 0x9600: // ADIW
		pair := (word >> 4) & 0x3
		k := (((word >> 6) & 0x3) << 4) | (word & 0xF)
		operands := []ir.Rvalue{pairReg(pair), ir.NewConstant(uint64(k), 16)}
		stmts := []ir.Statement{stmt(pairRegL(pair), ir.Add[ir.Rvalue](pairReg(pair), ir.NewConstant(uint64(k), 16)))}
		return mnemonic(area, "adiw", operands), stmts, always, nil

	case word&0xFE0F == 0x920D: // ST Z+, Rr (post-increment)
		_, r := decodeRegs(word)
		stmts := []ir.Statement{
			ir.NewInternalStatement(ir.UndefinedL, ir.Store[ir.Rvalue]("ram", ir.LittleEndian, 1, pairReg(3), reg(r))),
			stmt(pairRegL(3), ir.Add[ir.Rvalue](pairReg(3), ir.NewConstant(1, 16))),
		}
		return mnemonic(area, "st", []ir.Rvalue{pairReg(3), reg(r)}), stmts, always, nil

	case word&0xF000 == 0x3000: // CPI Rd,K (d in r16..r31)
		d := ((word>>4)&0xF)+16
		k := (((word>>8)&0xF)<<4)|(word&0xF)
		stmts := []ir.Statement{stmt(zeroFlagL(), ir.Equal[ir.Rvalue](reg(d), ir.NewConstant(uint64(k), 8)))}
		return mnemonic(area, "cpi", []ir.Rvalue{reg(d), ir.NewConstant(uint64(k), 8)}), stmts, always, nil

	case word&0xFC00 == 0x0400: // CPC Rd,Rr
		d, r := decodeRegs(word)
		stmts := []ir.Statement{stmt(zeroFlagL(), ir.Equal[ir.Rvalue](reg(d), reg(r)))}
		return mnemonic(area, "cpc", []ir.Rvalue{reg(d), reg(r)}), stmts, always, nil

	case word&0xFC07 == 0xF401: // BRNE (BRBC, s=Z)
		k7 := int16((word >> 3) & 0x7F)
		if k7&0x40 != 0 {
			k7 -= 128
		}
		target := uint64(int64(next) + int64(k7)*2)
		taken, _ := ir.FromFlag(zeroFlag(), false)
		notTaken := taken.Negation()
		jumps := []disasm.Jump{
			{Origin: addr, Target: ir.NewConstant(target, 64), Guard: taken},
			{Origin: addr, Target: ir.NewConstant(next, 64), Guard: notTaken},
		}
		return mnemonic(area, "brne", []ir.Rvalue{ir.NewConstant(target, 64)}), nil, jumps, nil

	case word&0xFC00 == 0x2C00: // MOV Rd,Rr
		d, r := decodeRegs(word)
		stmts := []ir.Statement{stmt(regL(d), ir.Move[ir.Rvalue](reg(r)))}
		return mnemonic(area, "mov", []ir.Rvalue{reg(d), reg(r)}), stmts, always, nil

	case word&0xFC00 == 0x1000: // CPSE Rd,Rr
		d, r := decodeRegs(word)
		eq := ir.NewLvalue("__cpse_eq", 1, ir.NoSubscript)
		stmts := []ir.Statement{ir.NewInternalStatement(eq, ir.Equal[ir.Rvalue](reg(d), reg(r)))}
		flag := ir.NewVariable("__cpse_eq", 1, ir.NoSubscript, 0)
		notTaken, _ := ir.FromFlag(flag, false)
		jumps := []disasm.Jump{{Origin: addr, Target: ir.NewConstant(next, 64), Guard: notTaken}}
		return mnemonic(area, "cpse", []ir.Rvalue{reg(d), reg(r)}), stmts, jumps, nil

	case word&0xFC00 == 0x0C00: // ADD Rd,Rr
		d, r := decodeRegs(word)
		stmts := []ir.Statement{stmt(regL(d), ir.Add[ir.Rvalue](reg(d), reg(r)))}
		return mnemonic(area, "add", []ir.Rvalue{reg(d), reg(r)}), stmts, always, nil

	case word&0xF000 == 0xE000: // LDI Rd,K (d in r16..r31)
		d := ((word>>4)&0xF)+16
		k := (((word>>8)&0xF)<<4)|(word&0xF)
		stmts := []ir.Statement{stmt(regL(d), ir.Move[ir.Rvalue](ir.NewConstant(uint64(k), 8)))}
		return mnemonic(area, "ldi", []ir.Rvalue{reg(d), ir.NewConstant(uint64(k), 8)}), stmts, always, nil
	}

	return disasm.Mnemonic{}, nil, nil, errUnrecognized(addr)
}

func mnemonic(area disasm.AddressRange, opcode string, operands []ir.Rvalue) disasm.Mnemonic {
	return disasm.Mnemonic{Area: area, Opcode: opcode, Operands: operands}
}
