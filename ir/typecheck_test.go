package ir_test

import (
	"testing"

	"github.com/panopticon-re/panopticon/ir"
)

func mustStatement(t *testing.T, assignee ir.Lvalue, op ir.Operation[ir.Rvalue]) ir.Statement {
	t.Helper()
	s, err := ir.NewStatement(assignee, op)
	if err != nil {
		t.Fatalf("NewStatement: %v", err)
	}
	return s
}

func TestSanityCheckAcceptsWellFormedAdd(t *testing.T) {
	a := ir.NewVariable("a", 32, ir.NoSubscript, 0)
	b := ir.NewVariable("b", 32, ir.NoSubscript, 0)
	s := mustStatement(t, ir.NewLvalue("c", 32, ir.NoSubscript), ir.Add(a, b))
	if err := s.SanityCheck(); err != nil {
		t.Errorf("well-formed Add rejected: %v", err)
	}
}

func TestSanityCheckRejectsOperandSizeMismatch(t *testing.T) {
	a := ir.NewVariable("a", 32, ir.NoSubscript, 0)
	b := ir.NewVariable("b", 16, ir.NoSubscript, 0)
	s := mustStatement(t, ir.NewLvalue("c", 32, ir.NoSubscript), ir.Add(a, b))
	if err := s.SanityCheck(); err == nil {
		t.Errorf("Add with mismatched operand sizes should be rejected")
	}
}

func TestSanityCheckComparisonAssigneeMustBeOneBit(t *testing.T) {
	a := ir.NewVariable("a", 32, ir.NoSubscript, 0)
	b := ir.NewVariable("b", 32, ir.NoSubscript, 0)
	s := mustStatement(t, ir.NewLvalue("flag", 8, ir.NoSubscript), ir.Equal(a, b))
	if err := s.SanityCheck(); err == nil {
		t.Errorf("comparison with non-1-bit assignee should be rejected")
	}
}

func TestSanityCheckZeroExtendAssigneeMustMatchTargetBits(t *testing.T) {
	a := ir.NewVariable("a", 8, ir.NoSubscript, 0)
	ok := mustStatement(t, ir.NewLvalue("b", 16, ir.NoSubscript), ir.ZeroExtend[ir.Rvalue](16, a))
	if err := ok.SanityCheck(); err != nil {
		t.Errorf("well-formed ZeroExtend rejected: %v", err)
	}
	bad := mustStatement(t, ir.NewLvalue("b", 32, ir.NoSubscript), ir.ZeroExtend[ir.Rvalue](16, a))
	if err := bad.SanityCheck(); err == nil {
		t.Errorf("ZeroExtend with mismatched assignee size should be rejected")
	}
}

func TestSanityCheckSelectOutOfRange(t *testing.T) {
	full := ir.NewVariable("full", 16, ir.NoSubscript, 0)
	insert := ir.NewVariable("insert", 8, ir.NoSubscript, 0)
	s := mustStatement(t, ir.NewLvalue("out", 16, ir.NoSubscript), ir.Select(12, full, insert))
	if err := s.SanityCheck(); err == nil {
		t.Errorf("select(12, 16-bit, 8-bit) overflows the full width and should be rejected")
	}
}

func TestSanityCheckLoadRequiresByteAlignedSize(t *testing.T) {
	addr := ir.NewVariable("addr", 32, ir.NoSubscript, 0)
	s := mustStatement(t, ir.NewLvalue("v", 9, ir.NoSubscript), ir.Load[ir.Rvalue]("ram", ir.LittleEndian, 9, addr))
	if err := s.SanityCheck(); err == nil {
		t.Errorf("load with a byte count that isn't a multiple of 8 should be rejected")
	}
}

func TestSanityCheckLoadAssigneeMatchesByteWidth(t *testing.T) {
	addr := ir.NewVariable("addr", 32, ir.NoSubscript, 0)
	s := mustStatement(t, ir.NewLvalue("v", 32, ir.NoSubscript), ir.Load[ir.Rvalue]("ram", ir.LittleEndian, 4, addr))
	if err := s.SanityCheck(); err != nil {
		t.Errorf("well-formed 32-bit load rejected: %v", err)
	}
}

func TestSanityCheckCallMustBeUndefined(t *testing.T) {
	target := ir.NewVariable("target", 32, ir.NoSubscript, 0)
	bad := mustStatement(t, ir.NewLvalue("result", 32, ir.NoSubscript), ir.Call[ir.Rvalue](target))
	if err := bad.SanityCheck(); err == nil {
		t.Errorf("Call with a non-Undefined assignee should be rejected")
	}
	ok := mustStatement(t, ir.UndefinedL, ir.Call[ir.Rvalue](target))
	if err := ok.SanityCheck(); err != nil {
		t.Errorf("well-formed Call rejected: %v", err)
	}
}

func TestSanityCheckPhiOperandsShareAssigneeSize(t *testing.T) {
	a := ir.NewVariable("a", 32, ir.NoSubscript, 0)
	b := ir.NewVariable("b", 32, ir.NoSubscript, 0)
	ok := mustStatement(t, ir.NewLvalue("c", 32, ir.NoSubscript), ir.Phi(a, b, ir.Undefined))
	if err := ok.SanityCheck(); err != nil {
		t.Errorf("well-formed Phi with one Undefined slot rejected: %v", err)
	}

	mismatched := ir.NewVariable("d", 16, ir.NoSubscript, 0)
	bad := mustStatement(t, ir.NewLvalue("c", 32, ir.NoSubscript), ir.Phi(a, mismatched, ir.Undefined))
	if err := bad.SanityCheck(); err == nil {
		t.Errorf("Phi with a mismatched operand size should be rejected")
	}
}

func TestSanityCheckRejectsZeroSizeOperand(t *testing.T) {
	zero := ir.NewConstant(0, 0)
	a := ir.NewVariable("a", 32, ir.NoSubscript, 0)
	s := mustStatement(t, ir.NewLvalue("c", 32, ir.NoSubscript), ir.Add(a, zero))
	if err := s.SanityCheck(); err == nil {
		t.Errorf("an operand of size zero should be rejected")
	}
}

// SanityCheck must return either nil or a typed error for every statement;
// it must never panic, even on degenerate input.
func TestSanityCheckIsTotal(t *testing.T) {
	degenerate := []ir.Statement{
		ir.NewInternalStatement(ir.UndefinedL, ir.Move[ir.Rvalue](ir.Undefined)),
		ir.NewInternalStatement(ir.UndefinedL, ir.Initialize[ir.Rvalue]("pc", 32)),
		ir.NewInternalStatement(ir.NewLvalue("x", 1, ir.NoSubscript), ir.Phi(ir.Undefined, ir.Undefined, ir.Undefined)),
	}
	for i, s := range degenerate {
		func() {
			defer func() {
				if r := recover(); r != nil {
					t.Errorf("case %d: SanityCheck panicked: %v", i, r)
				}
			}()
			_ = s.SanityCheck()
		}()
	}
}
