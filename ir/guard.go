package ir

import "github.com/panopticon-re/panopticon/ir/perr"

// Guard labels a CFG edge: it is always taken, never taken, or taken when
// flag evaluates to expected.
type Guard struct {
	kind     guardKind
	flag     Rvalue
	expected bool
}

type guardKind uint8

const (
	guardAlways guardKind = iota
	guardNever
	guardPredicate
)

// Always is the unconditional guard.
var Always = Guard{kind: guardAlways}

// Never is the unreachable-edge guard.
var Never = Guard{kind: guardNever}

// FromFlag builds a Predicate guard over f, which must be a 1-bit Variable,
// a 0 or 1 Constant, or Undefined. Any other value is rejected.
func FromFlag(f Rvalue, expected bool) (Guard, error) {
	if f.IsUndefined() {
		return Guard{kind: guardPredicate, flag: f, expected: expected}, nil
	}
	if f.IsVariable() {
		if sz, ok := f.Size(); ok && sz == 1 {
			return Guard{kind: guardPredicate, flag: f, expected: expected}, nil
		}
		return Guard{}, perr.New(perr.KindSizeMismatch, "guard flag variable %s is not 1 bit wide", f)
	}
	if v, ok := f.Value(); ok {
		if v == 0 || v == 1 {
			return Guard{kind: guardPredicate, flag: f, expected: expected}, nil
		}
		return Guard{}, perr.New(perr.KindSizeMismatch, "guard flag constant %s is neither 0 nor 1", f)
	}
	return Guard{}, perr.New(perr.KindSizeMismatch, "guard flag %s is not a valid predicate operand", f)
}

// IsAlways reports whether g unconditionally fires.
func (g Guard) IsAlways() bool { return g.kind == guardAlways }

// IsNever reports whether g never fires.
func (g Guard) IsNever() bool { return g.kind == guardNever }

// Predicate returns g's flag and expected value, and true, when g is a
// Predicate guard.
func (g Guard) Predicate() (Rvalue, bool, bool) {
	if g.kind != guardPredicate {
		return Rvalue{}, false, false
	}
	return g.flag, g.expected, true
}

// Negation flips Always<->Never and toggles a Predicate's expected value.
func (g Guard) Negation() Guard {
	switch g.kind {
	case guardAlways:
		return Never
	case guardNever:
		return Always
	default:
		return Guard{kind: guardPredicate, flag: g.flag, expected: !g.expected}
	}
}

func (g Guard) String() string {
	switch g.kind {
	case guardAlways:
		return "true"
	case guardNever:
		return "false"
	default:
		op := "=="
		if !g.expected {
			op = "!="
		}
		return g.flag.String() + " " + op + " 1"
	}
}
