package ir_test

import (
	"testing"

	"github.com/panopticon-re/panopticon/ir"
)

func TestNewStatementRejectsReservedName(t *testing.T) {
	assignee := ir.NewLvalue("__tmp0", 32, ir.NoSubscript)
	op := ir.Move[ir.Rvalue](ir.NewConstant(1, 32))
	if _, err := ir.NewStatement(assignee, op); err == nil {
		t.Fatalf("NewStatement should reject the reserved \"__\" prefix")
	}
}

func TestNewInternalStatementAllowsReservedName(t *testing.T) {
	assignee := ir.NewLvalue("__tmp0", 32, ir.NoSubscript)
	op := ir.Move[ir.Rvalue](ir.NewConstant(1, 32))
	s := ir.NewInternalStatement(assignee, op)
	if s.Assignee.IsUndefined() {
		t.Fatalf("internal statement lost its assignee")
	}
}

func TestNewStatementAcceptsOrdinaryName(t *testing.T) {
	assignee := ir.NewLvalue("d0", 32, ir.NoSubscript)
	op := ir.Move[ir.Rvalue](ir.NewConstant(1, 32))
	if _, err := ir.NewStatement(assignee, op); err != nil {
		t.Fatalf("NewStatement rejected an ordinary name: %v", err)
	}
}
