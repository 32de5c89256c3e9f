package layout

import (
	"sort"

	"gonum.org/v1/gonum/graph/simple"
)

// RankSolver assigns every vertex of a DAG a non-negative integer rank
// with rank(target)-rank(source) ≥ 1 on every edge (spec §4.5 step 2).
// LongestPathRank, the default, gives every vertex the lowest rank its
// longest incoming chain allows. That meets the constraints but does not
// minimise Σ(rank(target)-rank(source)) in general: a vertex with one
// early predecessor and several late successors stays next to its
// predecessor, stretching every edge to its successors.
type RankSolver interface {
	Solve(g *simple.DirectedGraph, head VertexID) (map[VertexID]int, error)
}

type longestPathRankSolver struct{}

// LongestPathRank is the default RankSolver.
var LongestPathRank RankSolver = longestPathRankSolver{}

func (longestPathRankSolver) Solve(g *simple.DirectedGraph, head VertexID) (map[VertexID]int, error) {
	order, err := topoOrder(g, head)
	if err != nil {
		return nil, err
	}
	rank := make(map[VertexID]int, len(order))
	for _, n := range order {
		r := 0
		preds := g.To(n)
		for preds.Next() {
			if pr, ok := rank[preds.Node().ID()]; ok && pr+1 > r {
				r = pr + 1
			}
		}
		rank[n] = r
	}
	return rank, nil
}

// topoOrder returns every vertex reachable from head in topological order
// via Kahn's algorithm, processing ties in increasing id order for
// determinism (spec §5).
func topoOrder(g *simple.DirectedGraph, head VertexID) ([]VertexID, error) {
	reachable := make(map[int64]bool)
	var collect func(int64)
	collect = func(n int64) {
		if reachable[n] {
			return
		}
		reachable[n] = true
		succ := g.From(n)
		for succ.Next() {
			collect(succ.Node().ID())
		}
	}
	collect(head)

	indeg := make(map[int64]int, len(reachable))
	for n := range reachable {
		preds := g.To(n)
		for preds.Next() {
			if p := preds.Node().ID(); reachable[p] {
				indeg[n]++
			}
		}
	}

	var ready []int64
	for n := range reachable {
		if indeg[n] == 0 {
			ready = append(ready, n)
		}
	}
	sort.Slice(ready, func(i, j int) bool { return ready[i] < ready[j] })

	var order []VertexID
	for len(ready) > 0 {
		n := ready[0]
		ready = ready[1:]
		order = append(order, n)
		succ := g.From(n)
		var newlyReady []int64
		for succ.Next() {
			s := succ.Node().ID()
			if !reachable[s] {
				continue
			}
			indeg[s]--
			if indeg[s] == 0 {
				newlyReady = append(newlyReady, s)
			}
		}
		sort.Slice(newlyReady, func(i, j int) bool { return newlyReady[i] < newlyReady[j] })
		ready = append(ready, newlyReady...)
		sort.Slice(ready, func(i, j int) bool { return ready[i] < ready[j] })
	}

	if len(order) != len(reachable) {
		return nil, errRankingFailure("graph still has a cycle after breakCycles")
	}
	return order, nil
}

// Ranked is the layout pipeline's second stage (spec §4.5 step 2): every
// vertex has a non-negative rank, every edge spans exactly 0 or 1 ranks
// (edges that originally spanned more are split by virtual vertices), and
// parallel edges removed in Prepare have been restored.
type Ranked struct {
	g        *simple.DirectedGraph
	head     vx
	rank     map[VertexID]int
	virtual  map[VertexID]bool
	origEdge map[int]glEdge // original idx -> representative edge, for edges not yet split
	chain    map[int][]VertexID
	dims     map[VertexID]Dimensions

	invertedOrig map[int]bool
	selfLoops    []glEdge
}

// Rank runs spec §4.5 step 2 over c using solver (nil selects
// LongestPathRank).
func Rank(c *Cooked, solver RankSolver) (*Ranked, error) {
	if solver == nil {
		solver = LongestPathRank
	}
	rank, err := solver.Solve(c.g, VertexID(c.head))
	if err != nil {
		return nil, err
	}

	// restore parallel edges dropped in Prepare
	for _, e := range c.parallelExtra {
		if c.g.Edge(int64(e.F), int64(e.T)) == nil {
			c.g.SetEdge(e)
		}
		c.origEdge[e.Orig] = e
	}

	normalizeRank(rank)

	virtual := make(map[VertexID]bool)
	chain := make(map[int][]VertexID, len(c.origEdge))
	for idx, e := range c.origEdge {
		path, err := splitEdge(c.g, &c.nextVertex, rank, virtual, e)
		if err != nil {
			return nil, err
		}
		chain[idx] = path
	}

	// Back edges reversed in Prepare must never run real-vertex to
	// real-vertex even when source and target land one rank apart (the
	// split pass above only fires for spans >1): insert a bend point at
	// each real endpoint so routing always has somewhere to anchor the
	// reversed arrowhead.
	for idx := range c.invertedOrig {
		path := chain[idx]
		if len(path) < 2 {
			continue
		}
		// chain runs in the edge's original direction and the graph edges
		// in the reversed one: bend the graph-direction path, then turn
		// the result back.
		fwd := append([]VertexID(nil), path...)
		for i, j := 0, len(fwd)-1; i < j; i, j = i+1, j-1 {
			fwd[i], fwd[j] = fwd[j], fwd[i]
		}
		bent := bendRealEndpoints(c.g, &c.nextVertex, rank, virtual, fwd)
		for i, j := 0, len(bent)-1; i < j; i, j = i+1, j-1 {
			bent[i], bent[j] = bent[j], bent[i]
		}
		chain[idx] = bent
	}

	edgeIt := c.g.Edges()
	for edgeIt.Next() {
		ge := edgeIt.Edge().(glEdge)
		fr, tr := rank[VertexID(ge.F)], rank[VertexID(ge.T)]
		if fr != tr && fr+1 != tr {
			return nil, errRankingFailure("edge spans more than one rank after splitting")
		}
	}

	return &Ranked{
		g: c.g, head: c.head, rank: rank, virtual: virtual,
		origEdge: c.origEdge, chain: chain, dims: c.dims,
		invertedOrig: c.invertedOrig, selfLoops: c.selfLoops,
	}, nil
}

func normalizeRank(rank map[VertexID]int) {
	if len(rank) == 0 {
		return
	}
	min := 0
	first := true
	for _, r := range rank {
		if first || r < min {
			min, first = r, false
		}
	}
	if min == 0 {
		return
	}
	for k := range rank {
		rank[k] -= min
	}
}

// splitEdge inserts one virtual vertex per intermediate rank along e,
// replacing it with a chain of adjacent-rank edges, and returns the full
// vertex path from e.F to e.T (inclusive).
func splitEdge(g *simple.DirectedGraph, next *VertexID, rank map[VertexID]int, virtual map[VertexID]bool, e glEdge) ([]VertexID, error) {
	fr, tr := rank[VertexID(e.F)], rank[VertexID(e.T)]
	lo, hi, reversed := fr, tr, false
	from, to := e.F, e.T
	if lo > hi {
		lo, hi = hi, lo
		from, to = to, from
		reversed = true
	}
	if hi-lo <= 1 {
		path := []VertexID{VertexID(e.F), VertexID(e.T)}
		return path, nil
	}

	path := make([]VertexID, 0, hi-lo+1)
	path = append(path, VertexID(from))
	prev := from
	for r := lo + 1; r < hi; r++ {
		v := vx(*next)
		*next++
		g.AddNode(v)
		virtual[VertexID(v)] = true
		rank[VertexID(v)] = r
		g.SetEdge(glEdge{F: prev, T: v, Orig: e.Orig})
		path = append(path, VertexID(v))
		prev = v
	}
	g.RemoveEdge(int64(from), int64(to))
	g.SetEdge(glEdge{F: prev, T: to, Orig: e.Orig})
	path = append(path, VertexID(to))

	if reversed {
		for i, j := 0, len(path)-1; i < j; i, j = i+1, j-1 {
			path[i], path[j] = path[j], path[i]
		}
	}
	return path, nil
}

// bendRealEndpoints ensures path's first and last vertex, if not already
// virtual, get a virtual neighbour spliced in immediately after (before)
// them.
func bendRealEndpoints(g *simple.DirectedGraph, next *VertexID, rank map[VertexID]int, virtual map[VertexID]bool, path []VertexID) []VertexID {
	out := append([]VertexID(nil), path...)
	if !virtual[out[0]] {
		v := vx(*next)
		*next++
		g.AddNode(v)
		virtual[VertexID(v)] = true
		rank[VertexID(v)] = rank[out[0]]
		old := g.Edge(int64(out[0]), int64(out[1]))
		ge := old.(glEdge)
		g.RemoveEdge(int64(out[0]), int64(out[1]))
		g.SetEdge(glEdge{F: vx(out[0]), T: v, Orig: ge.Orig})
		g.SetEdge(glEdge{F: v, T: vx(out[1]), Orig: ge.Orig})
		out = append([]VertexID{out[0], VertexID(v)}, out[1:]...)
	}
	last := len(out) - 1
	if !virtual[out[last]] {
		v := vx(*next)
		*next++
		g.AddNode(v)
		virtual[VertexID(v)] = true
		rank[VertexID(v)] = rank[out[last]]
		old := g.Edge(int64(out[last-1]), int64(out[last]))
		ge := old.(glEdge)
		g.RemoveEdge(int64(out[last-1]), int64(out[last]))
		g.SetEdge(glEdge{F: vx(out[last-1]), T: v, Orig: ge.Orig})
		g.SetEdge(glEdge{F: v, T: vx(out[last]), Orig: ge.Orig})
		tail := out[last]
		out = append(append([]VertexID(nil), out[:last]...), VertexID(v), tail)
	}
	return out
}
