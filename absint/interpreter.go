package absint

import (
	"reflect"

	"github.com/panopticon-re/panopticon/disasm"
	"github.com/panopticon-re/panopticon/ir"
)

// varKey identifies one SSA-renamed variable: a name plus subscript (spec
// §4.4's "full Lvalue"). Width is tracked separately (maxWidth) since a
// read of a sub-range of a variable carries its own narrower size on the
// Rvalue, not on the key.
type varKey struct {
	name      string
	subscript int
}

func keyOf(v ir.Lvalue) (varKey, bool) {
	name, ok := v.Name()
	if !ok {
		return varKey{}, false
	}
	sub, ok := v.Subscript()
	if !ok {
		return varKey{}, false
	}
	return varKey{name: name, subscript: sub}, true
}

func varKeyFromRvalue(v ir.Rvalue) (varKey, bool) {
	name, ok := v.Name()
	if !ok {
		return varKey{}, false
	}
	sub, ok := v.Subscript()
	if !ok {
		return varKey{}, false
	}
	return varKey{name: name, subscript: sub}, true
}

// Environment maps an SSA variable to its current abstract value.
type Environment[A any] map[varKey]A

// blockStatement pairs a decoded statement with the address of the
// mnemonic it belongs to, for ProgramPoint construction.
type blockStatement struct {
	stmt ir.Statement
	addr uint64
}

func flattenBlock(f *disasm.Function, bb disasm.BasicBlock) ([]blockStatement, error) {
	var out []blockStatement
	for _, mne := range f.MnemonicsIn(bb) {
		stmts, err := f.Statements(mne.Statements)
		if err != nil {
			return nil, err
		}
		for _, st := range stmts {
			out = append(out, blockStatement{stmt: st, addr: mne.Area.Start})
		}
	}
	return out, nil
}

func collectEdgeConstraints(f *disasm.Function, blocks map[int64][]blockStatement) map[varKey]Constraint {
	out := make(map[varKey]Constraint)
	for _, n := range f.CflowGraph.Nodes() {
		if n.Kind() != disasm.NodeBasicBlock {
			continue
		}
		bs := blocks[n.ID()]
		plain := make([]ir.Statement, len(bs))
		for i, b := range bs {
			plain[i] = b.stmt
		}
		for _, succ := range f.CflowGraph.From(n) {
			guard, ok := f.CflowGraph.Edge(n, succ)
			if !ok {
				continue
			}
			variable, c, ok := extractConstraint(guard, plain)
			if !ok {
				continue
			}
			if k, ok := varKeyFromRvalue(variable); ok {
				out[k] = c
			}
		}
	}
	return out
}

func varsDefinedInList[A any](blocks map[int64][]blockStatement, elements []Element) []varKey {
	var out []varKey
	var walk func(Element)
	walk = func(e Element) {
		for _, bs := range blocks[e.Vertex.ID()] {
			if k, ok := keyOf(bs.stmt.Assignee); ok {
				out = append(out, k)
			}
		}
		for _, n := range e.Nested {
			walk(n)
		}
	}
	for _, e := range elements {
		walk(e)
	}
	return out
}

type interpState[A any] struct {
	dom             Domain[A]
	env             Environment[A]
	blocks          map[int64][]blockStatement
	edgeConstraints map[varKey]Constraint
}

func (s *interpState[A]) lift(v ir.Rvalue) A {
	// A literal Undefined operand here is a Phi's padding for an absent
	// operand slot (ir.Phi pads unused slots with ir.Undefined; typecheck
	// treats them the same way, skipping them rather than reading them as
	// the concrete "could be anything" value). Folding it into the
	// top-of-lattice AbstractValue(Undefined) would make every
	// loop-carried Phi immediately join to top on its first pass, since
	// only one of its slots is populated before the back edge is ever
	// visited; Initial (bottom) is the operand that has no effect yet.
	if v.IsUndefined() {
		return s.dom.Initial()
	}
	if v.IsVariable() {
		if k, ok := varKeyFromRvalue(v); ok {
			if a, had := s.env[k]; had {
				if v.Offset() != 0 {
					if bits, ok := v.Size(); ok {
						return s.dom.Extract(a, bits, v.Offset())
					}
				}
				return a
			}
		}
		return s.dom.Initial()
	}
	return s.dom.AbstractValue(v)
}

// visitVertex runs n's abstract transfer function once, updating s.env in
// place, and reports whether anything changed. applyWiden is true once n
// is an active component head on at least its third iteration (spec
// §4.4 step 4).
func (s *interpState[A]) visitVertex(n disasm.CfgNode, applyWiden bool) bool {
	changed := false
	for i, bs := range s.blocks[n.ID()] {
		k, ok := keyOf(bs.stmt.Assignee)
		if !ok {
			continue
		}
		lifted := ir.Lift(bs.stmt.Op, s.lift)
		pp := ProgramPoint{Address: bs.addr, Position: i}
		next := s.dom.Execute(pp, lifted)

		prev, had := s.env[k]
		switch {
		case !had:
			s.env[k] = next
			changed = true
		case applyWiden:
			widened := s.dom.Widen(prev, next)
			if !reflect.DeepEqual(prev, widened) {
				changed = true
			}
			s.env[k] = widened
		default:
			if !s.dom.MoreExact(prev, next) && !reflect.DeepEqual(prev, next) {
				s.env[k] = next
				changed = true
			}
		}
	}
	return changed
}

func (s *interpState[A]) narrow(elements []Element) {
	for _, k := range varsDefinedInList[A](s.blocks, elements) {
		c, ok := s.edgeConstraints[k]
		if !ok {
			continue
		}
		if val, had := s.env[k]; had {
			s.env[k] = s.dom.Narrow(val, s.dom.AbstractConstraint(c))
		}
	}
}

// stabilizePartition runs elements to a fixpoint: non-component vertices
// execute once per pass, components recurse and self-stabilise, and the
// whole partition repeats until a pass makes no change (spec §4.4 step 4).
func (s *interpState[A]) stabilizePartition(elements []Element) {
	for {
		changedAny := false
		for _, el := range elements {
			if !el.IsComponent() {
				if s.visitVertex(el.Vertex, false) {
					changedAny = true
				}
				continue
			}
			if s.stabilizeComponent(el) {
				changedAny = true
			}
		}
		if !changedAny {
			s.narrow(elements)
			return
		}
	}
}

// stabilizeComponent iterates el's head and nested body until the head
// stops changing, applying widen starting with the third iteration, then
// narrows the component's own variables.
//
// The loop always runs to at least the third iteration even if the head
// looks stable sooner. A domain's MoreExact may refuse a non-widen replace
// (e.g. this Sign domain never lets Join overwrite Zero outside of widen),
// which can make the head appear unchanged while its true join is still
// pending; skipping straight to that first quiet iteration would leave the
// loop-carried value stuck below its real fixpoint forever. Running widen
// at least once unconditionally costs at most two redundant, idempotent
// passes when no such stall occurs.
func (s *interpState[A]) stabilizeComponent(el Element) bool {
	iter := 0
	overallChanged := false
	for {
		iter++
		headChanged := s.visitVertex(el.Vertex, iter >= 3)
		s.stabilizePartition(el.Nested)
		if headChanged {
			overallChanged = true
			continue
		}
		if iter < 3 {
			continue
		}
		break
	}
	s.narrow([]Element{el})
	return overallChanged
}

// Approximate computes the abstract-interpretation fixpoint over f's CFG
// (spec §4.4): weak topological order traversal with widening at loop
// heads and narrowing against recorded edge constraints, the result
// re-overlaid with fixed (caller-supplied values that dominate computed
// ones).
func Approximate[A any](f *disasm.Function, dom Domain[A], fixed map[ir.Lvalue]A) (map[ir.Lvalue]A, error) {
	if f.Entry.Kind() != disasm.NodeBasicBlock {
		return nil, errNoEntryPoint()
	}

	blocks := make(map[int64][]blockStatement)
	maxWidth := make(map[varKey]uint)
	for _, n := range f.CflowGraph.Nodes() {
		if n.Kind() != disasm.NodeBasicBlock {
			continue
		}
		bb := f.BasicBlocks[n.BasicBlock()]
		stmts, err := flattenBlock(f, bb)
		if err != nil {
			return nil, err
		}
		blocks[n.ID()] = stmts
		for _, bs := range stmts {
			if k, ok := keyOf(bs.stmt.Assignee); ok {
				if sz, ok := bs.stmt.Assignee.Size(); ok && sz > maxWidth[k] {
					maxWidth[k] = sz
				}
			}
		}
	}

	s := &interpState[A]{
		dom:             dom,
		env:             make(Environment[A]),
		blocks:          blocks,
		edgeConstraints: collectEdgeConstraints(f, blocks),
	}

	wto := WTO(f.CflowGraph, f.Entry)
	s.stabilizePartition(wto)

	out := make(map[ir.Lvalue]A, len(s.env))
	for k, v := range s.env {
		out[ir.NewLvalue(k.name, maxWidth[k], k.subscript)] = v
	}
	for lv, v := range fixed {
		out[lv] = v
	}
	return out, nil
}
