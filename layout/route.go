package layout

import "sort"

// Route walks the layout to completion (spec §4.5 step 5): for each
// original edge, follow its virtual-vertex chain emitting one segment per
// leg, and for each removed self-loop, emit a five-segment rectangle to
// the right of its vertex.
func (p *Placed) Route(spacing Spacing) Result {
	positions := make(map[VertexID]Point, len(p.x))
	for v, x := range p.x {
		positions[v] = Point{X: x, Y: p.y[v]}
	}

	routes := make(map[int]Route, len(p.chain)+len(p.selfLoops))
	for idx, path := range p.chain {
		routes[idx] = p.routeChain(path, positions)
	}
	for _, sl := range p.selfLoops {
		routes[sl.Orig] = p.routeSelfLoop(sl, positions, spacing)
	}
	return Result{Positions: positions, Routes: routes}
}

// routeChain emits one segment per leg of path: exit port of the first
// vertex to the first bend, bend to bend, last bend to the entry port of
// the final vertex (spec §4.5 step 5's three-segments-per-virtual-leg
// description, generalised to however many virtual legs the chain has).
func (p *Placed) routeChain(path []VertexID, positions map[VertexID]Point) Route {
	if len(path) < 2 {
		return Route{}
	}
	segs := make([]Segment, 0, len(path)-1)
	for i := 0; i+1 < len(path); i++ {
		a, b := positions[path[i]], positions[path[i+1]]
		segs = append(segs, Segment{X1: a.X, Y1: a.Y, X2: b.X, Y2: b.Y})
	}
	return Route{
		Segments:   segs,
		TailAnchor: positions[path[0]],
		HeadAnchor: positions[path[len(path)-1]],
	}
}

// routeSelfLoop draws a five-segment rectangle bulging to the right of the
// vertex's own position, loop_spacing wide: out of the exit port, up and
// over the top-right corner, down the outer side, under the bottom-right
// corner, and into the enter port.
func (p *Placed) routeSelfLoop(e glEdge, positions map[VertexID]Point, spacing Spacing) Route {
	c := positions[VertexID(e.F)]
	w := vertexWidth(p.dims, VertexID(e.F), spacing) / 2
	overshoot := spacing.Node / 4
	edge := c.X + w
	right := edge + spacing.Loop
	top := c.Y - spacing.Node/2
	bottom := c.Y + spacing.Node/2
	outerTop := top - overshoot
	outerBottom := bottom + overshoot

	exit := Point{X: edge, Y: top}
	enter := Point{X: edge, Y: bottom}
	segs := []Segment{
		{X1: exit.X, Y1: exit.Y, X2: edge, Y2: outerTop},
		{X1: edge, Y1: outerTop, X2: right, Y2: outerTop},
		{X1: right, Y1: outerTop, X2: right, Y2: outerBottom},
		{X1: right, Y1: outerBottom, X2: edge, Y2: outerBottom},
		{X1: edge, Y1: outerBottom, X2: enter.X, Y2: enter.Y},
	}
	return Route{Segments: segs, TailAnchor: exit, HeadAnchor: enter}
}

// sortedKeys is a small helper used by tests that want deterministic
// iteration over a Result's routes.
func sortedKeys(m map[int]Route) []int {
	out := make([]int, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Ints(out)
	return out
}
