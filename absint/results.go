package absint

import (
	"sort"

	"github.com/panopticon-re/panopticon/disasm"
	"github.com/panopticon-re/panopticon/ir"
)

func sinkVertices(cfg *disasm.ControlFlowGraph) []disasm.CfgNode {
	var out []disasm.CfgNode
	for _, n := range cfg.Nodes() {
		if len(cfg.From(n)) == 0 {
			out = append(out, n)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID() < out[j].ID() })
	return out
}

func statementsOfNode(f *disasm.Function, n disasm.CfgNode) []ir.Statement {
	if n.Kind() != disasm.NodeBasicBlock {
		return nil
	}
	bb := f.BasicBlocks[n.BasicBlock()]
	var out []ir.Statement
	for _, mne := range f.MnemonicsIn(bb) {
		stmts, err := f.Statements(mne.Statements)
		if err != nil {
			return nil
		}
		out = append(out, stmts...)
	}
	return out
}

func lookupBySSA[A any](env map[ir.Lvalue]A, name string, subscript int) (A, bool) {
	for lv, v := range env {
		if n, ok := lv.Name(); ok && n == name {
			if s, ok := lv.Subscript(); ok && s == subscript {
				return v, true
			}
		}
	}
	var zero A
	return zero, false
}

// Results computes liveness at exit (spec §4.4): for every sink vertex of
// f's CFG, walk its block backwards recording the most recent abstract
// value of every assignee name seen, then continue up the immediate
// dominator chain collecting any names not yet observed, stopping at the
// entry (whose own immediate dominator is itself).
func Results[A any](f *disasm.Function, env map[ir.Lvalue]A) (map[disasm.CfgNode]map[string]A, error) {
	if f.Entry.Kind() != disasm.NodeBasicBlock {
		return nil, errNoEntryPoint()
	}
	idom := computeDominators(f.CflowGraph, f.Entry)

	out := make(map[disasm.CfgNode]map[string]A)
	for _, sink := range sinkVertices(f.CflowGraph) {
		result := make(map[string]A)
		observed := make(map[string]bool)

		for cur := sink; ; {
			stmts := statementsOfNode(f, cur)
			for i := len(stmts) - 1; i >= 0; i-- {
				assignee := stmts[i].Assignee
				name, ok := assignee.Name()
				if !ok || observed[name] {
					continue
				}
				observed[name] = true
				sub, _ := assignee.Subscript()
				if v, found := lookupBySSA(env, name, sub); found {
					result[name] = v
				}
			}

			next, ok := idom[cur.ID()]
			if !ok || next.ID() == cur.ID() {
				break
			}
			cur = next
		}
		out[sink] = result
	}
	return out, nil
}
