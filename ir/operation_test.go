package ir_test

import (
	"testing"

	"github.com/panopticon-re/panopticon/ir"
)

func identity(v ir.Rvalue) ir.Rvalue { return v }

func TestLiftIdentity(t *testing.T) {
	a := ir.NewConstant(1, 8)
	b := ir.NewConstant(2, 8)
	c := ir.NewConstant(3, 8)

	ops := []ir.Operation[ir.Rvalue]{
		ir.Add(a, b),
		ir.Subtract(a, b),
		ir.Multiply(a, b),
		ir.DivideUnsigned(a, b),
		ir.And(a, b),
		ir.Equal(a, b),
		ir.ZeroExtend[ir.Rvalue](16, a),
		ir.SignExtend[ir.Rvalue](16, a),
		ir.Select(0, a, b),
		ir.Move[ir.Rvalue](a),
		ir.Call[ir.Rvalue](a),
		ir.Phi(a, b, c),
		ir.Load[ir.Rvalue]("ram", ir.LittleEndian, 8, a),
		ir.Store[ir.Rvalue]("ram", ir.LittleEndian, 8, a, b),
		ir.Initialize[ir.Rvalue]("r0", 32),
	}

	for _, op := range ops {
		lifted := ir.Lift(op, identity)
		if lifted.Tag() != op.Tag() {
			t.Errorf("Lift changed tag: %s -> %s", op, lifted)
		}
		if !operandsEqual(op.Operands(), lifted.Operands()) {
			t.Errorf("Lift(%s, identity) operands changed: %v -> %v", op, op.Operands(), lifted.Operands())
		}
	}
}

func operandsEqual(a, b []ir.Rvalue) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !a[i].Equal(b[i]) {
			return false
		}
	}
	return true
}
