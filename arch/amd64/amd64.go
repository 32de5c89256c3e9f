// Package amd64 is an illustrated Architecture (spec §6) for x86-64: a
// handful of register-direct opcodes, not a complete ISA table (spec §1
// puts full per-architecture instruction tables out of scope). It
// decodes only the mod==11 (register-direct) ModR/M case; memory operands
// are left to a complete implementation.
package amd64

import (
	"github.com/panopticon-re/panopticon/disasm"
	"github.com/panopticon-re/panopticon/ir"
)

// Mode is the processor's operating mode, affecting default operand and
// address sizes.
type Mode uint8

const (
	Mode32 Mode = iota
	Mode64
)

// Configuration is the amd64 architecture's prefix- and ModR/M-accumulated
// decode state (spec §6). AddressSize/OperandSize/Mode/REX persist across
// instructions (they are the processor's standing mode); Reg/RM/Imm/Disp/
// MOffs are scratch, valid only for the instruction currently being
// decoded.
type Configuration struct {
	AddressSize uint
	OperandSize uint
	Mode        Mode

	REX byte
	Reg uint
	RM  uint
	Imm ir.Rvalue
	Disp ir.Rvalue
	MOffs ir.Rvalue
}

// Long is a Configuration preset for 64-bit long mode, 32-bit default
// operand size.
func Long() *Configuration {
	return &Configuration{AddressSize: 64, OperandSize: 32, Mode: Mode64}
}

// Arch implements disasm.Architecture[Configuration].
type Arch struct{}

// Prepare reports no pre-seeded hints: ELF/PE entry discovery is a loader
// concern, out of scope here.
func (Arch) Prepare(region *disasm.Region, cfg *Configuration) ([]disasm.PrepareHint, error) {
	return nil, nil
}

var reg32Names = [8]string{"eax", "ecx", "edx", "ebx", "esp", "ebp", "esi", "edi"}

func reg32(i uint) ir.Rvalue  { return ir.NewVariable(reg32Names[i], 32, ir.NoSubscript, 0) }
func reg32L(i uint) ir.Lvalue { return ir.NewLvalue(reg32Names[i], 32, ir.NoSubscript) }
func zeroFlag() ir.Rvalue    { return ir.NewVariable("ZF", 1, ir.NoSubscript, 0) }
func zeroFlagL() ir.Lvalue   { return ir.NewLvalue("ZF", 1, ir.NoSubscript) }

func stmt(assignee ir.Lvalue, op ir.Operation[ir.Rvalue]) ir.Statement {
	s, err := ir.NewStatement(assignee, op)
	if err != nil {
		return ir.NewInternalStatement(assignee, op)
	}
	return s
}

func le32(b []byte) uint32 {
	return uint32(b[0]) | uint32(b[1])<<8 | uint32(b[2])<<16 | uint32(b[3])<<24
}

// Decode disassembles one instruction at address (spec §6). Only the
// register-direct (mod==11) ModR/M encoding is handled.
func (Arch) Decode(region *disasm.Region, address uint64, cfg *Configuration) (disasm.Match, error) {
	op, err := region.ReadByte(address)
	if err != nil {
		return disasm.Match{}, err
	}

	switch {
	case op >= 0xB8 && op <= 0xBF: // MOV r32, imm32
		raw, err := region.Read(address+1, 4)
		if err != nil {
			return disasm.Match{}, err
		}
		rd := uint(op - 0xB8)
		imm := le32(raw)
		cfg.Reg, cfg.Imm = rd, ir.NewConstant(uint64(imm), 32)
		end := address + 5
		stmts := []ir.Statement{stmt(reg32L(rd), ir.Move[ir.Rvalue](ir.NewConstant(uint64(imm), 32)))}
		return one(address, end, "mov", []ir.Rvalue{reg32(rd), ir.NewConstant(uint64(imm), 32)}, stmts), nil

	case op == 0x01: // ADD r/m32, r32 (register-direct only)
		modrm, err := region.ReadByte(address + 1)
		if err != nil {
			return disasm.Match{}, err
		}
		if modrm>>6 != 3 {
			return disasm.Match{}, errUnrecognized(address, op)
		}
		regF, rm := modRM(modrm)
		cfg.Reg, cfg.RM = regF, rm
		end := address + 2
		stmts := []ir.Statement{stmt(reg32L(rm), ir.Add[ir.Rvalue](reg32(rm), reg32(regF)))}
		return one(address, end, "add", []ir.Rvalue{reg32(rm), reg32(regF)}, stmts), nil

	case op == 0x83: // CMP r/m32, imm8 (register-direct, /7 only)
		modrm, err := region.ReadByte(address + 1)
		if err != nil {
			return disasm.Match{}, err
		}
		if modrm>>6 != 3 || (modrm>>3)&0x7 != 7 {
			return disasm.Match{}, errUnrecognized(address, op)
		}
		_, rm := modRM(modrm)
		imm, err := region.ReadByte(address + 2)
		if err != nil {
			return disasm.Match{}, err
		}
		cfg.RM, cfg.Imm = rm, ir.NewConstant(uint64(int64(int8(imm))), 32)
		end := address + 3
		stmts := []ir.Statement{stmt(zeroFlagL(), ir.Equal[ir.Rvalue](reg32(rm), ir.NewConstant(uint64(int64(int8(imm))), 32)))}
		return one(address, end, "cmp", []ir.Rvalue{reg32(rm), ir.NewConstant(uint64(imm), 8)}, stmts), nil

	case op == 0x75: // JNE rel8
		rel, err := region.ReadByte(address + 1)
		if err != nil {
			return disasm.Match{}, err
		}
		next := address + 2
		target := uint64(int64(next) + int64(int8(rel)))
		taken, _ := ir.FromFlag(zeroFlag(), false)
		notTaken := taken.Negation()
		area := disasm.AddressRange{Start: address, End: next}
		mne := disasm.Mnemonic{Area: area, Opcode: "jne", Operands: []ir.Rvalue{ir.NewConstant(target, 64)}}
		jumps := []disasm.Jump{
			{Origin: address, Target: ir.NewConstant(target, 64), Guard: taken},
			{Origin: address, Target: ir.NewConstant(next, 64), Guard: notTaken},
		}
		return disasm.Match{Mnemonics: []disasm.Mnemonic{mne}, Statements: [][]ir.Statement{nil}, Jumps: jumps}, nil

	case op == 0xC3: // RET: terminal, unknown return address
		area := disasm.AddressRange{Start: address, End: address + 1}
		mne := disasm.Mnemonic{Area: area, Opcode: "ret"}
		jumps := []disasm.Jump{{Origin: address, Target: ir.Undefined, Guard: ir.Always}}
		return disasm.Match{Mnemonics: []disasm.Mnemonic{mne}, Statements: [][]ir.Statement{nil}, Jumps: jumps}, nil
	}

	return disasm.Match{}, errUnrecognized(address, op)
}

// modRM splits a register-direct ModR/M byte into (reg, rm); callers must
// have already verified mod==11.
func modRM(b byte) (reg, rm uint) {
	return uint(b>>3) & 0x7, uint(b) & 0x7
}

func one(start, end uint64, opcode string, operands []ir.Rvalue, stmts []ir.Statement) disasm.Match {
	mne := disasm.Mnemonic{Area: disasm.AddressRange{Start: start, End: end}, Opcode: opcode, Operands: operands}
	jumps := []disasm.Jump{{Origin: start, Target: ir.NewConstant(end, 64), Guard: ir.Always}}
	return disasm.Match{Mnemonics: []disasm.Mnemonic{mne}, Statements: [][]ir.Statement{stmts}, Jumps: jumps}
}
