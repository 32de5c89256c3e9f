package disasm

import (
	"sort"

	"gonum.org/v1/gonum/graph"
	"gonum.org/v1/gonum/graph/simple"

	"github.com/panopticon-re/panopticon/ir"
)

// NodeKind discriminates a ControlFlowGraph vertex (spec §3): a decoded
// BasicBlock, an Unresolved indirect-jump target, or a Failed decode site.
type NodeKind uint8

const (
	NodeBasicBlock NodeKind = iota
	NodeUnresolved
	NodeFailed
)

// CfgNode is a vertex of the control-flow graph. It implements
// gonum/graph.Node (spec §9: "an adjacency-list graph library that keeps
// vertex and edge handles as opaque indices — no direct node pointers").
type CfgNode struct {
	id   int64
	kind NodeKind
	// basicBlock is a box rather than a plain int: the driver assembles
	// blocks in address order first and only learns their final
	// reverse-post-order position afterward (spec §4.3 step 4). Boxing the
	// index lets it update every node's index in place once RPO is known,
	// without rebuilding the graph or invalidating node identities already
	// used as edge endpoints.
	basicBlock *int      // valid when kind == NodeBasicBlock
	target     ir.Rvalue // valid when kind == NodeUnresolved
	failedAt   uint64    // valid when kind == NodeFailed
}

// ID implements graph.Node.
func (n CfgNode) ID() int64 { return n.id }

// Kind reports which variant n is.
func (n CfgNode) Kind() NodeKind { return n.kind }

// BasicBlock returns the index into Function.BasicBlocks this vertex
// stands for, valid when Kind() == NodeBasicBlock.
func (n CfgNode) BasicBlock() int { return *n.basicBlock }

// Target returns the indirect jump target this vertex stands for, valid
// when Kind() == NodeUnresolved.
func (n CfgNode) Target() ir.Rvalue { return n.target }

// FailedAddress returns the address decode failed at, valid when
// Kind() == NodeFailed.
func (n CfgNode) FailedAddress() uint64 { return n.failedAt }

// CfgEdge is a ControlFlowGraph edge labelled with the Guard under which
// control transfers from From to To.
type CfgEdge struct {
	F, T  graph.Node
	Guard ir.Guard
}

func (e CfgEdge) From() graph.Node         { return e.F }
func (e CfgEdge) To() graph.Node           { return e.T }
func (e CfgEdge) ReversedEdge() graph.Edge { return CfgEdge{F: e.T, T: e.F, Guard: e.Guard} }

// ControlFlowGraph is a directed graph over CfgNode vertices, edges
// labelled with a Guard (spec §3). It holds at most one edge per ordered
// pair of vertices; it is not a multigraph. Built on gonum/graph/simple so
// vertex and edge handles stay opaque int64 ids instead of direct pointers.
type ControlFlowGraph struct {
	g      *simple.DirectedGraph
	nextID int64
}

// NewControlFlowGraph returns an empty graph.
func NewControlFlowGraph() *ControlFlowGraph {
	return &ControlFlowGraph{g: simple.NewDirectedGraph()}
}

// AddBasicBlockNode adds a vertex standing for basic-block index idx. The
// index may later be updated in place via SetBasicBlockIndex once the
// block's final reverse-post-order position is known.
func (c *ControlFlowGraph) AddBasicBlockNode(idx int) CfgNode {
	box := new(int)
	*box = idx
	n := CfgNode{id: c.nextID, kind: NodeBasicBlock, basicBlock: box}
	c.nextID++
	c.g.AddNode(n)
	return n
}

// SetBasicBlockIndex updates n's basic-block index in place, visible
// through every copy of n (e.g. ones already stored as edge endpoints).
func SetBasicBlockIndex(n CfgNode, idx int) { *n.basicBlock = idx }

// AddUnresolvedNode adds a vertex standing for an indirect/unknown jump
// target.
func (c *ControlFlowGraph) AddUnresolvedNode(target ir.Rvalue) CfgNode {
	n := CfgNode{id: c.nextID, kind: NodeUnresolved, target: target}
	c.nextID++
	c.g.AddNode(n)
	return n
}

// AddFailedNode adds a vertex standing for a decode failure at addr.
func (c *ControlFlowGraph) AddFailedNode(addr uint64) CfgNode {
	n := CfgNode{id: c.nextID, kind: NodeFailed, failedAt: addr}
	c.nextID++
	c.g.AddNode(n)
	return n
}

// SetEdge labels the edge from -> to with guard, replacing any existing
// edge between the same pair, guard included (gonum/simple's directed
// graph has at most one edge per ordered pair). Two jumps from one block
// to the same basic block or Failed vertex leave a single edge carrying
// the guard set last; the driver gives every Unresolved target a vertex of
// its own, so those edges never collide.
func (c *ControlFlowGraph) SetEdge(from, to CfgNode, guard ir.Guard) {
	c.g.SetEdge(CfgEdge{F: from, T: to, Guard: guard})
}

// Node returns the vertex with the given id, or false if absent.
func (c *ControlFlowGraph) Node(id int64) (CfgNode, bool) {
	n := c.g.Node(id)
	if n == nil {
		return CfgNode{}, false
	}
	return n.(CfgNode), true
}

// Nodes returns every vertex, in no particular order.
func (c *ControlFlowGraph) Nodes() []CfgNode {
	it := c.g.Nodes()
	out := make([]CfgNode, 0, it.Len())
	for it.Next() {
		out = append(out, it.Node().(CfgNode))
	}
	return out
}

// From returns the vertices reachable by one outgoing edge from n, sorted
// by vertex id. gonum/graph/simple stores adjacency in a map, so its own
// iteration order is unspecified; algorithms that walk the CFG (reverse
// post order, WTO) need a deterministic order to satisfy spec §5, and
// vertex ids are assigned in address order at construction time, so
// sorting by id is equivalent to sorting by the CFG's natural address
// order wherever ids haven't been reassigned.
func (c *ControlFlowGraph) From(n CfgNode) []CfgNode {
	it := c.g.From(n.ID())
	out := make([]CfgNode, 0, it.Len())
	for it.Next() {
		out = append(out, it.Node().(CfgNode))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID() < out[j].ID() })
	return out
}

// Edge returns the Guard labelling the edge from -> to, and true if one
// exists.
func (c *ControlFlowGraph) Edge(from, to CfgNode) (ir.Guard, bool) {
	e := c.g.Edge(from.ID(), to.ID())
	if e == nil {
		return ir.Guard{}, false
	}
	return e.(CfgEdge).Guard, true
}

// Graph exposes the underlying gonum graph for algorithms (WTO,
// dominators, layout) that operate on the graph.Directed interface
// directly.
func (c *ControlFlowGraph) Graph() *simple.DirectedGraph { return c.g }

// sortedDirected adapts a ControlFlowGraph to graph.Directed with every
// From traversal sorted by vertex id, the ordering gonum's
// traverse.DepthFirst needs in order to produce a deterministic walk
// (spec §5): simple.DirectedGraph itself stores adjacency in a map, so
// its own From iterates in unspecified order.
type sortedDirected struct{ cfg *ControlFlowGraph }

func (g sortedDirected) Node(id int64) graph.Node {
	n, ok := g.cfg.Node(id)
	if !ok {
		return nil
	}
	return n
}

func (g sortedDirected) Nodes() graph.Nodes {
	ns := g.cfg.Nodes()
	sort.Slice(ns, func(i, j int) bool { return ns[i].ID() < ns[j].ID() })
	out := make([]graph.Node, len(ns))
	for i, n := range ns {
		out[i] = n
	}
	return newNodeIterator(out)
}

func (g sortedDirected) From(id int64) graph.Nodes {
	n, ok := g.cfg.Node(id)
	if !ok {
		return newNodeIterator(nil)
	}
	succs := g.cfg.From(n)
	out := make([]graph.Node, len(succs))
	for i, s := range succs {
		out[i] = s
	}
	return newNodeIterator(out)
}

func (g sortedDirected) HasEdgeBetween(xid, yid int64) bool { return g.cfg.g.HasEdgeBetween(xid, yid) }
func (g sortedDirected) Edge(uid, vid int64) graph.Edge     { return g.cfg.g.Edge(uid, vid) }
func (g sortedDirected) HasEdgeFromTo(uid, vid int64) bool  { return g.cfg.g.HasEdgeFromTo(uid, vid) }

// nodeIterator is a minimal graph.Nodes over a fixed, pre-ordered slice.
type nodeIterator struct {
	nodes []graph.Node
	pos   int
}

func newNodeIterator(nodes []graph.Node) *nodeIterator { return &nodeIterator{nodes: nodes, pos: -1} }

func (it *nodeIterator) Len() int { return len(it.nodes) - (it.pos + 1) }

func (it *nodeIterator) Next() bool {
	if it.pos+1 < len(it.nodes) {
		it.pos++
		return true
	}
	return false
}

func (it *nodeIterator) Node() graph.Node { return it.nodes[it.pos] }

func (it *nodeIterator) Reset() { it.pos = -1 }
