package absint

import (
	"sort"

	"gonum.org/v1/gonum/graph/simple"
	"gonum.org/v1/gonum/graph/topo"

	"github.com/panopticon-re/panopticon/disasm"
)

// Element is one entry of a weak topological order: either a plain vertex
// or a component headed by Vertex, in which case Nested holds the WTO of
// the component's body (spec §4.4, §9; Bourdoncle 1993).
type Element struct {
	Vertex disasm.CfgNode
	Nested []Element // non-nil only when Vertex heads a strongly connected component
}

// IsComponent reports whether e is a loop (or self-loop) head rather than
// a plain element.
func (e Element) IsComponent() bool { return e.Nested != nil }

// WTO computes the weak topological order of cfg rooted at entry: the
// strongly connected components reachable from entry, condensed into
// topological order, each nested recursively around its head (the
// member entered from outside the component) with the head's own back
// edges removed for the recursive sub-problem.
func WTO(cfg *disasm.ControlFlowGraph, entry disasm.CfgNode) []Element {
	return buildPartition(cfg, []disasm.CfgNode{entry}, nil)
}

func buildPartition(cfg *disasm.ControlFlowGraph, roots []disasm.CfgNode, universe map[int64]bool) []Element {
	sccs := tarjanSCCs(cfg, roots, universe)

	elements := make([]Element, 0, len(sccs))
	for _, scc := range sccs {
		if len(scc) == 1 && !hasSelfLoop(cfg, scc[0]) {
			elements = append(elements, Element{Vertex: scc[0]})
			continue
		}

		head := sccHead(cfg, scc)
		member := make(map[int64]bool, len(scc))
		for _, v := range scc {
			member[v.ID()] = true
		}
		delete(member, head.ID())

		var nestedRoots []disasm.CfgNode
		for _, succ := range cfg.From(head) {
			if member[succ.ID()] {
				nestedRoots = append(nestedRoots, succ)
			}
		}
		elements = append(elements, Element{Vertex: head, Nested: buildPartition(cfg, nestedRoots, member)})
	}
	return elements
}

func hasSelfLoop(cfg *disasm.ControlFlowGraph, v disasm.CfgNode) bool {
	_, ok := cfg.Edge(v, v)
	return ok
}

// sccHead returns the member of scc reached by at least one edge whose
// source lies outside scc: for a reducible CFG this is exactly the loop
// header, the component's unique entry point. Irreducible regions (more
// than one externally-reached member) and degenerate components with no
// external predecessor at all (scc is the whole restricted universe) fall
// back to the lowest vertex id, for determinism (spec §5).
func sccHead(cfg *disasm.ControlFlowGraph, scc []disasm.CfgNode) disasm.CfgNode {
	member := make(map[int64]bool, len(scc))
	for _, v := range scc {
		member[v.ID()] = true
	}

	var candidates []disasm.CfgNode
	for _, v := range scc {
		for _, n := range cfg.Nodes() {
			if member[n.ID()] {
				continue
			}
			if _, ok := cfg.Edge(n, v); ok {
				candidates = append(candidates, v)
				break
			}
		}
	}
	if len(candidates) == 0 {
		candidates = scc
	}

	head := candidates[0]
	for _, v := range candidates[1:] {
		if v.ID() < head.ID() {
			head = v
		}
	}
	return head
}

// tarjanSCCs computes the strongly connected components reachable from
// roots, restricted to universe (nil meaning unrestricted), via gonum's
// Tarjan implementation run over a scratch subgraph built from exactly
// that reachable/restricted vertex set, then reordered into a
// deterministic source-first topological order of the component
// condensation (spec §5): gonum's own component ordering convention is
// not load-bearing here since the condensation — always a DAG — is
// topologically sorted from scratch using the edges this function
// already has in hand, breaking ties on each component's lowest member
// id.
func tarjanSCCs(cfg *disasm.ControlFlowGraph, roots []disasm.CfgNode, universe map[int64]bool) [][]disasm.CfgNode {
	reach := reachableFrom(cfg, roots, universe)
	if len(reach) == 0 {
		return nil
	}

	ids := make([]int64, 0, len(reach))
	for id := range reach {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	sub := simple.NewDirectedGraph()
	for _, id := range ids {
		sub.AddNode(reach[id])
	}
	for _, id := range ids {
		n := reach[id]
		for _, succ := range cfg.From(n) {
			if _, ok := reach[succ.ID()]; ok {
				sub.SetEdge(simple.Edge{F: n, T: succ})
			}
		}
	}

	raw := topo.TarjanSCC(sub)
	comps := make([][]disasm.CfgNode, len(raw))
	compOf := make(map[int64]int, len(reach))
	for i, scc := range raw {
		nodes := make([]disasm.CfgNode, len(scc))
		for j, n := range scc {
			cn := n.(disasm.CfgNode)
			nodes[j] = cn
			compOf[cn.ID()] = i
		}
		sort.Slice(nodes, func(a, b int) bool { return nodes[a].ID() < nodes[b].ID() })
		comps[i] = nodes
	}

	return topoSortComponents(cfg, comps, compOf)
}

func reachableFrom(cfg *disasm.ControlFlowGraph, roots []disasm.CfgNode, universe map[int64]bool) map[int64]disasm.CfgNode {
	out := make(map[int64]disasm.CfgNode)
	inUniverse := func(n disasm.CfgNode) bool { return universe == nil || universe[n.ID()] }
	var visit func(disasm.CfgNode)
	visit = func(n disasm.CfgNode) {
		if _, seen := out[n.ID()]; seen {
			return
		}
		out[n.ID()] = n
		for _, s := range cfg.From(n) {
			if inUniverse(s) {
				visit(s)
			}
		}
	}
	for _, r := range roots {
		if inUniverse(r) {
			visit(r)
		}
	}
	return out
}

// topoSortComponents orders comps (the SCC condensation's vertices)
// source first via a plain Kahn's-algorithm pass over the condensation
// DAG built from the edges between distinct components, breaking ties by
// each component's lowest member id for determinism (spec §5).
func topoSortComponents(cfg *disasm.ControlFlowGraph, comps [][]disasm.CfgNode, compOf map[int64]int) [][]disasm.CfgNode {
	n := len(comps)
	indegree := make([]int, n)
	adj := make([][]int, n)
	seenEdge := make(map[[2]int]bool)
	for _, scc := range comps {
		for _, v := range scc {
			si := compOf[v.ID()]
			for _, succ := range cfg.From(v) {
				sj, ok := compOf[succ.ID()]
				if !ok || si == sj || seenEdge[[2]int{si, sj}] {
					continue
				}
				seenEdge[[2]int{si, sj}] = true
				adj[si] = append(adj[si], sj)
				indegree[sj]++
			}
		}
	}

	placed := make([]bool, n)
	order := make([]int, 0, n)
	for len(order) < n {
		next := -1
		for i := 0; i < n; i++ {
			if placed[i] || indegree[i] != 0 {
				continue
			}
			if next == -1 || comps[i][0].ID() < comps[next][0].ID() {
				next = i
			}
		}
		if next == -1 {
			// Only possible if comps itself contains a cycle, which can't
			// happen: comps are already-merged SCCs, so the condensation
			// is acyclic by construction.
			break
		}
		placed[next] = true
		order = append(order, next)
		for _, j := range adj[next] {
			indegree[j]--
		}
	}

	out := make([][]disasm.CfgNode, len(order))
	for i, idx := range order {
		out[i] = comps[idx]
	}
	return out
}
