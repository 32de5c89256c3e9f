package layout

import (
	"sort"

	"gonum.org/v1/gonum/graph"
	"gonum.org/v1/gonum/graph/simple"
)

// vx is a bare vertex id wrapped to satisfy graph.Node, the same pattern
// disasm.CfgNode uses for the driver's own graph.
type vx int64

func (v vx) ID() int64 { return int64(v) }

// glEdge is one graph.Edge carrying the index of the original input Edge
// it was built from (or -1 for an edge minted internally, e.g. synthetic
// root edges), so later stages can report results keyed by the caller's
// own edge indices.
type glEdge struct {
	F, T vx
	Orig int
}

func (e glEdge) From() graph.Node         { return e.F }
func (e glEdge) To() graph.Node           { return e.T }
func (e glEdge) ReversedEdge() graph.Edge { return glEdge{F: e.T, T: e.F, Orig: e.Orig} }

// Cooked is the layout pipeline's first stage (spec §4.5 step 1): a single
// entry, no cycles, no self-loops, no parallel edges — a plain DAG ready
// for ranking.
type Cooked struct {
	g    *simple.DirectedGraph
	head vx

	nextVertex int64 // next id available for virtual/synthetic vertices

	invertedOrig  map[int]bool            // original edge idx -> was reversed to break a cycle
	selfLoops     []glEdge                // removed self-loop edges (orig idx, vertex)
	parallelExtra []glEdge                // removed duplicate (F,T) edges beyond the first
	origEdge      map[int]glEdge          // original edge idx -> the live graph edge representing it
	dims          map[VertexID]Dimensions // carried through unchanged for later stages
}

// Prepare runs spec §4.5 step 1 over a vertex/edge list. entry, if non-nil,
// names the vertex layout should treat as the graph's root when it is
// already the graph's only source; if there is more than one source vertex
// a synthetic root is inserted regardless (spec: "ensure a single entry by
// inserting a synthetic root if there are multiple source vertices").
func Prepare(vertices []VertexID, edges []Edge, dims map[VertexID]Dimensions, entry *VertexID) (*Cooked, error) {
	if len(vertices) == 0 {
		return nil, errEmptyGraph()
	}

	g := simple.NewDirectedGraph()
	maxID := vertices[0]
	for _, v := range vertices {
		g.AddNode(vx(v))
		if v > maxID {
			maxID = v
		}
	}

	origEdge := make(map[int]glEdge, len(edges))
	var parallelExtra []glEdge
	for _, e := range edges {
		if existing := g.Edge(e.From, e.To); existing != nil {
			parallelExtra = append(parallelExtra, glEdge{F: vx(e.From), T: vx(e.To), Orig: e.Idx})
			continue
		}
		ge := glEdge{F: vx(e.From), T: vx(e.To), Orig: e.Idx}
		g.SetEdge(ge)
		origEdge[e.Idx] = ge
	}

	if !weaklyConnected(g, vertices) {
		return nil, errNotConnected()
	}

	head, addedRoot := ensureSingleEntry(g, vertices, entry, maxID)
	if addedRoot {
		maxID++
	}

	inverted := breakCycles(g, head)

	var selfLoops []glEdge
	for idx, e := range origEdge {
		if e.F == e.T {
			g.RemoveEdge(int64(e.F), int64(e.T))
			selfLoops = append(selfLoops, e)
			delete(origEdge, idx)
		}
	}
	sort.Slice(selfLoops, func(i, j int) bool { return selfLoops[i].Orig < selfLoops[j].Orig })

	return &Cooked{
		g:             g,
		head:          head,
		nextVertex:    maxID + 1,
		invertedOrig:  inverted,
		selfLoops:     selfLoops,
		parallelExtra: parallelExtra,
		origEdge:      origEdge,
		dims:          dims,
	}, nil
}

// weaklyConnected reports whether every vertex is reachable from the first
// one, ignoring edge direction (spec: disconnected input is an error).
func weaklyConnected(g *simple.DirectedGraph, vertices []VertexID) bool {
	if len(vertices) == 0 {
		return true
	}
	seen := map[int64]bool{vertices[0]: true}
	stack := []int64{vertices[0]}
	for len(stack) > 0 {
		n := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		to := g.From(n)
		for to.Next() {
			if id := to.Node().ID(); !seen[id] {
				seen[id] = true
				stack = append(stack, id)
			}
		}
		from := g.To(n)
		for from.Next() {
			if id := from.Node().ID(); !seen[id] {
				seen[id] = true
				stack = append(stack, id)
			}
		}
	}
	return len(seen) == len(vertices)
}

// ensureSingleEntry finds the graph's source vertices (in-degree 0). If
// there is exactly one and it matches entry (or entry is nil), it becomes
// head directly; otherwise a synthetic root is added above maxID with an
// edge to every source, and the root becomes head.
func ensureSingleEntry(g *simple.DirectedGraph, vertices []VertexID, entry *VertexID, maxID VertexID) (vx, bool) {
	var sources []VertexID
	for _, v := range vertices {
		if g.To(v).Len() == 0 {
			sources = append(sources, v)
		}
	}
	sort.Slice(sources, func(i, j int) bool { return sources[i] < sources[j] })

	if len(sources) == 1 && (entry == nil || *entry == sources[0]) {
		return vx(sources[0]), false
	}
	if len(sources) == 0 {
		min := vertices[0]
		for _, v := range vertices[1:] {
			if v < min {
				min = v
			}
		}
		sources = []VertexID{min}
	}

	root := vx(maxID + 1)
	g.AddNode(root)
	for _, s := range sources {
		g.SetEdge(glEdge{F: root, T: vx(s), Orig: -1})
	}
	return root, true
}

// breakCycles runs a DFS from head and reverses every back edge it finds
// (an edge to an ancestor still on the recursion stack), the classical
// minimum-back-edge-set heuristic: a DFS tree's back edges are exactly the
// edges that close a cycle, and reversing them always yields a DAG.
// Returns the set of original edge indices that were reversed.
func breakCycles(g *simple.DirectedGraph, head vx) map[int]bool {
	const (
		white = iota
		gray
		black
	)
	color := make(map[int64]int)
	inverted := make(map[int]bool)

	var visit func(int64)
	visit = func(n int64) {
		color[n] = gray
		succ := sortedSucc(g, n)
		for _, s := range succ {
			e := g.Edge(n, s)
			switch color[s] {
			case white:
				visit(s)
			case gray:
				ge := e.(glEdge)
				g.RemoveEdge(n, s)
				g.SetEdge(glEdge{F: ge.T, T: ge.F, Orig: ge.Orig})
				if ge.Orig >= 0 {
					inverted[ge.Orig] = true
				}
			case black:
				// forward or cross edge, not a cycle participant
			}
		}
		color[n] = black
	}
	visit(int64(head))

	// Any vertex DFS from head didn't reach (disconnected-by-direction
	// remainder after weak-connectivity already passed) still needs
	// visiting so every cycle gets broken.
	nodes := g.Nodes()
	var rest []int64
	for nodes.Next() {
		id := nodes.Node().ID()
		if color[id] == white {
			rest = append(rest, id)
		}
	}
	sort.Slice(rest, func(i, j int) bool { return rest[i] < rest[j] })
	for _, n := range rest {
		if color[n] == white {
			visit(n)
		}
	}

	return inverted
}

func sortedSucc(g *simple.DirectedGraph, n int64) []int64 {
	it := g.From(n)
	out := make([]int64, 0, it.Len())
	for it.Next() {
		out = append(out, it.Node().ID())
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
