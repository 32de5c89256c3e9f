// Package absint is the domain-parametric abstract interpreter (spec
// §4.4): a fixpoint engine over a Function's CFG, driven by a weak
// topological order, parameterised by a caller-supplied abstract Domain.
package absint

import "github.com/panopticon-re/panopticon/ir"

// ConstraintKind names the comparison an edge Guard's flag variable was
// defined by (spec §4.4's `Constraint` variants).
type ConstraintKind uint8

const (
	ConstraintEqual ConstraintKind = iota
	ConstraintLessUnsigned
	ConstraintLessOrEqualUnsigned
	ConstraintLessSigned
	ConstraintLessOrEqualSigned
)

// Constraint is an edge condition normalised to "variable ⋈ constant"
// (operand order is swapped, and the relation inverted, when the source
// statement wrote the constant on the left).
type Constraint struct {
	Kind  ConstraintKind
	Const ir.Rvalue
}

// ProgramPoint locates a statement for domain transformers that need
// address context (spec §4.4).
type ProgramPoint struct {
	Address  uint64
	Position int
}

// Domain is the abstract-domain capability set (spec §4.4, §9): a set of
// free functions over an element type A rather than methods on A, since A
// may be a plain value type supplied by a domain package that knows
// nothing about absint.
type Domain[A any] interface {
	// Initial is the bottom element.
	Initial() A
	// AbstractValue is α for a concrete Rvalue. Approximate calls it for
	// Constant operands only: Undefined operands and variables with no
	// value in the environment lift to Initial instead.
	AbstractValue(ir.Rvalue) A
	// AbstractConstraint is α for a normalised edge Constraint.
	AbstractConstraint(Constraint) A
	// Execute is the abstract transformer for one lifted operation.
	Execute(pp ProgramPoint, op ir.Operation[A]) A
	// Combine is the join (least upper bound) of a and b.
	Combine(a, b A) A
	// Widen is applied at a component head once stabilisation has run at
	// least twice without converging.
	Widen(prev, next A) A
	// Narrow tightens value against a recorded edge constraint, applied
	// once per fixpoint after full stabilisation.
	Narrow(value, constraint A) A
	// MoreExact reports whether a is a strictly better approximation than
	// b (used to detect non-monotone updates during stabilisation).
	MoreExact(a, b A) bool
	// Extract projects a bits-wide slice of a starting at offset,
	// matching Rvalue.Extract.
	Extract(a A, bits, offset uint) A
}
