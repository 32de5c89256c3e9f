package absint

import (
	"gonum.org/v1/gonum/graph/path"

	"github.com/panopticon-re/panopticon/disasm"
)

// computeDominators builds the immediate-dominator map of every vertex
// reachable from entry, via gonum/graph/path's dominance algorithm run
// directly against the control-flow graph's underlying graph.Directed
// representation (disasm.ControlFlowGraph.Graph).
func computeDominators(cfg *disasm.ControlFlowGraph, entry disasm.CfgNode) map[int64]disasm.CfgNode {
	tree := path.Dominators(entry, cfg.Graph())

	out := make(map[int64]disasm.CfgNode)
	out[entry.ID()] = entry
	for _, n := range cfg.Nodes() {
		if n.ID() == entry.ID() {
			continue
		}
		d := tree.IDom(n)
		if d == nil {
			continue // unreachable from entry
		}
		out[n.ID()] = d.(disasm.CfgNode)
	}
	return out
}
