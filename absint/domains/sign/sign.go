// Package sign implements the Sign abstract domain used to validate the
// fixpoint engine in package absint: every concrete value collapses to
// one of "definitely negative", "definitely zero", "definitely positive",
// "no information yet" (Meet, the domain's bottom), or "could be
// anything" (Join, the domain's top).
package sign

import (
	"github.com/panopticon-re/panopticon/absint"
	"github.com/panopticon-re/panopticon/ir"
)

// Value is one element of the Sign lattice: Meet ⊑ {Negative, Zero,
// Positive} ⊑ Join.
type Value uint8

const (
	Meet Value = iota
	Negative
	Zero
	Positive
	Join
)

func (v Value) String() string {
	switch v {
	case Meet:
		return "Meet"
	case Negative:
		return "Negative"
	case Zero:
		return "Zero"
	case Positive:
		return "Positive"
	default:
		return "Join"
	}
}

// Domain implements absint.Domain[Value].
type Domain struct{}

// Initial is the bottom element: nothing observed yet.
func (Domain) Initial() Value { return Meet }

// AbstractValue classifies a Constant by its raw (unsigned) value: nonzero
// maps to Positive and zero maps to Zero, matching the stored bit pattern
// rather than a signed reinterpretation — a negative constant's two's
// complement bit pattern is a large unsigned value and so abstracts to
// Positive. Anything that isn't a Constant (a Variable read before its
// definition is known, or Undefined) abstracts to Join.
func (Domain) AbstractValue(v ir.Rvalue) Value {
	if c, ok := v.Value(); ok {
		if c > 0 {
			return Positive
		}
		return Zero
	}
	return Join
}

// AbstractConstraint interprets the handful of edge constraints the Sign
// domain can say anything useful about; every other shape (including
// every unsigned bound other than < 1 and <= 0) abstracts to Join.
func (Domain) AbstractConstraint(c absint.Constraint) Value {
	val, ok := c.Const.Value()
	if !ok {
		return Join
	}
	bits, _ := c.Const.Size()

	switch c.Kind {
	case absint.ConstraintEqual:
		if val == 0 {
			return Zero
		}
	case absint.ConstraintLessUnsigned:
		if val == 1 {
			return Zero
		}
	case absint.ConstraintLessOrEqualUnsigned:
		if val == 0 {
			return Zero
		}
	case absint.ConstraintLessSigned:
		if val == 0 {
			return Negative
		}
		if isNegative(val, bits) {
			return Negative
		}
	case absint.ConstraintLessOrEqualSigned:
		if isNegative(val, bits) {
			return Negative
		}
	}
	return Join
}

func isNegative(value uint64, bits uint) bool {
	if bits == 0 || bits > 64 {
		return false
	}
	return value&(uint64(1)<<(bits-1)) != 0
}

// Execute is the abstract transformer, ported statement-for-statement
// from the sign lattice exercised by the reference abstract interpreter's
// own test suite.
func (d Domain) Execute(_ absint.ProgramPoint, op ir.Operation[Value]) Value {
	a, b := op.A(), op.B()
	switch op.Tag() {
	case ir.OpAdd:
		switch {
		case a == Positive && b == Positive:
			return Positive
		case a == Positive && b == Zero:
			return Positive
		case a == Zero && b == Positive:
			return Positive
		case a == Negative && b == Negative:
			return Negative
		case a == Negative && b == Zero:
			return Negative
		case a == Zero && b == Negative:
			return Negative
		case a == Meet:
			return b
		case b == Meet:
			return a
		default:
			return Join
		}
	case ir.OpSubtract:
		switch {
		case a == Positive && b == Zero:
			return Positive
		case a == Zero && b == Positive:
			return Negative
		case a == Negative && b == Zero:
			return Negative
		case a == Zero && b == Negative:
			return Positive
		case a == Positive && b == Negative:
			return Positive
		case a == Negative && b == Positive:
			return Negative
		case a == Meet:
			return b
		case b == Meet:
			return a
		default:
			return Join
		}
	case ir.OpMultiply:
		return d.executeMulDiv(a, b)
	case ir.OpDivideSigned, ir.OpDivideUnsigned, ir.OpModulo:
		return d.executeMulDiv(a, b)
	case ir.OpMove:
		return a
	case ir.OpZeroExtend:
		if a == Negative {
			return Join
		}
		return a
	case ir.OpSignExtend:
		return a
	case ir.OpPhi:
		ops := op.PhiOperands()
		acc := Meet
		for _, o := range ops {
			acc = d.Combine(acc, o)
		}
		return acc
	default:
		return Join
	}
}

func (d Domain) executeMulDiv(a, b Value) Value {
	switch {
	case a == Positive && b == Positive:
		return Positive
	case a == Negative && b == Negative:
		return Positive
	case a == Positive && b == Negative:
		return Negative
	case a == Negative && b == Positive:
		return Negative
	case a == Zero || b == Zero:
		return Zero
	case a == Meet:
		return b
	case b == Meet:
		return a
	default:
		return Join
	}
}

// Combine is the lattice join: Meet is the identity, equal values pass
// through unchanged, anything else collapses to Join.
func (Domain) Combine(a, b Value) Value {
	switch {
	case a == b:
		return a
	case a == Meet:
		return b
	case b == Meet:
		return a
	default:
		return Join
	}
}

// Widen jumps straight to Join the moment two successive values differ:
// the Sign lattice has height 3, so this still terminates in at most as
// many steps as Combine would, but matches the reference implementation's
// own (maximally aggressive) widening operator.
func (Domain) Widen(prev, next Value) Value {
	if prev == next {
		return prev
	}
	return Join
}

// Narrow tightens value against constraint: Meet stays Meet, Join yields
// to whatever the constraint says, and two disagreeing concrete signs
// collapse back to Meet (the caller never observed a consistent value).
func (Domain) Narrow(value, constraint Value) Value {
	switch constraint {
	case Meet:
		return Meet
	case Join:
		return value
	default:
		switch value {
		case Meet:
			return Meet
		case Join:
			return constraint
		default:
			if value == constraint {
				return value
			}
			return Meet
		}
	}
}

// MoreExact reports whether a is strictly more precise than b. Ported
// arm-for-arm from the reference Sign domain: Meet only loses to Positive,
// Negative and Join (not to Zero), and only Positive/Negative lose to
// Join (Zero beats Join too) — asymmetries the reference domain itself
// has, kept rather than smoothed over.
func (Domain) MoreExact(a, b Value) bool {
	if a == b {
		return false
	}
	switch {
	case a == Meet && b == Positive:
		return false
	case a == Meet && b == Negative:
		return false
	case a == Meet && b == Join:
		return false
	case a == Positive && b == Join:
		return false
	case a == Negative && b == Join:
		return false
	default:
		return true
	}
}

// Extract ignores bit range: sign is a whole-value property, not
// per-bit-range.
func (Domain) Extract(a Value, _, _ uint) Value { return a }
