// Package layout implements the layered ("Sugiyama-style") graph drawing
// pipeline: a CFG-shaped graph of vertex ids and directed edges goes through
// four stages — Cooked, Ranked, Ordering, Placed — each consuming the
// previous stage's result and producing the next, ending in per-vertex
// centre coordinates and per-edge routed polylines.
package layout

// VertexID identifies one input vertex. The pipeline additionally mints
// fresh ids above the caller's maximum for the synthetic root and the
// virtual vertices inserted while ranking (spec §4.5 steps 1-2).
type VertexID = int64

// Dimensions is a vertex's drawn size, used for compaction spacing, rank
// heights and self-loop placement.
type Dimensions struct {
	Width, Height float64
}

// Point is a centre coordinate.
type Point struct {
	X, Y float64
}

// Segment is one straight leg of a routed edge.
type Segment struct {
	X1, Y1, X2, Y2 float64
}

// Route is the drawn path of one original edge plus the anchor points
// where it leaves its tail vertex and enters its head vertex.
type Route struct {
	Segments               []Segment
	TailAnchor, HeadAnchor Anchor
}

// Anchor is the point where a route leaves or enters a vertex: the
// vertex's centre for an edge between two vertices, and a point on the
// vertex's right side for a self-loop. No port positions on a vertex's
// upper or lower boundary are computed.
type Anchor = Point

// Spacing carries every caller-supplied pixel distance spec §4.5 names.
type Spacing struct {
	Node, Rank, Port, Loop, Entry, Block float64
}

// DefaultSpacing returns reasonable pixel values for callers that don't
// have their own layout preferences.
func DefaultSpacing() Spacing {
	return Spacing{Node: 20, Rank: 60, Port: 4, Loop: 30, Entry: 20, Block: 10}
}

// Result is the pipeline's final output (spec §4.5): a centre position per
// original vertex and a route per original edge, indexed by the edge's
// position in the Edges slice passed to Prepare.
type Result struct {
	Positions map[VertexID]Point
	Routes    map[int]Route
}

// Edge is one input edge, From -> To, at index Idx in the caller's edge
// list (Idx is how routes and edge-label restoration key back to it).
type Edge struct {
	Idx      int
	From, To VertexID
}
