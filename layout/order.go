package layout

import (
	"sort"

	"gonum.org/v1/gonum/graph/simple"
)

// Ordering is the layout pipeline's third stage (spec §4.5 step 3): a
// left-to-right ordering of the vertices within each rank, iteratively
// refined to reduce edge crossings between adjacent ranks.
type Ordering struct {
	g        *simple.DirectedGraph
	head     vx
	rank     map[VertexID]int
	virtual  map[VertexID]bool
	origEdge map[int]glEdge
	chain    map[int][]VertexID
	dims     map[VertexID]Dimensions

	invertedOrig map[int]bool
	selfLoops    []glEdge

	numRanks int
	order    [][]VertexID // order[r] is rank r's vertices, left to right
	pos      map[VertexID]int
}

// InitialOrder assigns every rank's vertices a DFS-discovery-order
// position (spec §4.5 step 3 "initial order"), starting from head.
func InitialOrder(r *Ranked) (*Ordering, error) {
	numRanks := 0
	for _, rk := range r.rank {
		if rk+1 > numRanks {
			numRanks = rk + 1
		}
	}

	order := make([][]VertexID, numRanks)
	visited := make(map[VertexID]bool)
	var visit func(VertexID)
	visit = func(v VertexID) {
		if visited[v] {
			return
		}
		visited[v] = true
		order[r.rank[v]] = append(order[r.rank[v]], v)
		succ := r.g.From(int64(v))
		var next []int64
		for succ.Next() {
			next = append(next, succ.Node().ID())
		}
		sort.Slice(next, func(i, j int) bool { return next[i] < next[j] })
		for _, s := range next {
			visit(s)
		}
	}
	visit(VertexID(r.head))
	// any vertex not reached (shouldn't happen given single-entry + forward
	// reachability, but defend anyway) still needs a slot.
	var stragglers []VertexID
	for v := range r.rank {
		if !visited[v] {
			stragglers = append(stragglers, v)
		}
	}
	sort.Slice(stragglers, func(i, j int) bool { return stragglers[i] < stragglers[j] })
	for _, v := range stragglers {
		visit(v)
	}

	pos := make(map[VertexID]int)
	for _, rk := range order {
		for i, v := range rk {
			pos[v] = i
		}
	}

	return &Ordering{
		g: r.g, head: r.head, rank: r.rank, virtual: r.virtual,
		origEdge: r.origEdge, chain: r.chain, dims: r.dims,
		invertedOrig: r.invertedOrig, selfLoops: r.selfLoops,
		numRanks: numRanks, order: order, pos: pos,
	}, nil
}

// Order runs up to six passes of the weighted-median heuristic
// (alternating downward and upward sweeps) interleaved with a transpose
// step, stopping early once crossings reach zero (spec §4.5 step 3).
func Order(o *Ordering) *Ordering {
	best := cloneOrder(o.order)
	bestXings := o.crossings()

	for iter := 0; iter < 6 && bestXings > 0; iter++ {
		down := iter%2 == 0
		o.medianSweep(down)
		o.transpose()
		if x := o.crossings(); x < bestXings {
			bestXings = x
			best = cloneOrder(o.order)
		}
	}

	o.order = best
	o.reindex()
	return o
}

func cloneOrder(order [][]VertexID) [][]VertexID {
	out := make([][]VertexID, len(order))
	for i, rk := range order {
		out[i] = append([]VertexID(nil), rk...)
	}
	return out
}

func (o *Ordering) reindex() {
	o.pos = make(map[VertexID]int)
	for _, rk := range o.order {
		for i, v := range rk {
			o.pos[v] = i
		}
	}
}

// medianSweep reassigns each rank's order (other than the fixed reference
// rank) to the median position of its neighbours in the adjacent rank
// already swept, sweeping ranks top-down (down=true) or bottom-up.
func (o *Ordering) medianSweep(down bool) {
	ranks := make([]int, o.numRanks)
	for i := range ranks {
		ranks[i] = i
	}
	if !down {
		for i, j := 0, len(ranks)-1; i < j; i, j = i+1, j-1 {
			ranks[i], ranks[j] = ranks[j], ranks[i]
		}
	}

	for _, r := range ranks[1:] {
		medians := make(map[VertexID]float64, len(o.order[r]))
		for _, v := range o.order[r] {
			var neighbours []int
			if down {
				neighbours = o.neighbourPositions(v, r-1)
			} else {
				neighbours = o.neighbourPositions(v, r+1)
			}
			medians[v] = medianOf(neighbours)
		}
		sorted := append([]VertexID(nil), o.order[r]...)
		sort.SliceStable(sorted, func(i, j int) bool {
			mi, mj := medians[sorted[i]], medians[sorted[j]]
			if mi < 0 {
				return false
			}
			if mj < 0 {
				return true
			}
			return mi < mj
		})
		o.order[r] = sorted
		for i, v := range sorted {
			o.pos[v] = i
		}
	}
}

func (o *Ordering) neighbourPositions(v VertexID, adjacentRank int) []int {
	if adjacentRank < 0 || adjacentRank >= o.numRanks {
		return nil
	}
	var out []int
	preds := o.g.To(int64(v))
	for preds.Next() {
		p := VertexID(preds.Node().ID())
		if o.rank[p] == adjacentRank {
			out = append(out, o.pos[p])
		}
	}
	succ := o.g.From(int64(v))
	for succ.Next() {
		s := VertexID(succ.Node().ID())
		if o.rank[s] == adjacentRank {
			out = append(out, o.pos[s])
		}
	}
	sort.Ints(out)
	return out
}

// medianOf returns the median of xs, or -1 (meaning "leave in place") for
// an empty neighbour set, matching the classical median heuristic's
// handling of vertices with no neighbours in the adjacent rank.
func medianOf(xs []int) float64 {
	n := len(xs)
	if n == 0 {
		return -1
	}
	mid := n / 2
	if n%2 == 1 {
		return float64(xs[mid])
	}
	if n == 2 {
		return float64(xs[0]+xs[1]) / 2
	}
	left := xs[mid-1] - xs[0]
	right := xs[n-1] - xs[mid]
	if left+right == 0 {
		return float64(xs[mid-1]+xs[mid]) / 2
	}
	return (float64(xs[mid-1])*float64(right) + float64(xs[mid])*float64(left)) / float64(left+right)
}

// transpose repeatedly swaps adjacent vertex pairs within a rank whenever
// the swap strictly reduces the number of crossings against both
// neighbouring ranks, until a full pass makes no improving swap.
func (o *Ordering) transpose() {
	for improved := true; improved; {
		improved = false
		for r := 0; r < o.numRanks; r++ {
			rk := o.order[r]
			for i := 0; i+1 < len(rk); i++ {
				before := o.localCrossings(r, i, i+1)
				rk[i], rk[i+1] = rk[i+1], rk[i]
				o.pos[rk[i]], o.pos[rk[i+1]] = i, i+1
				after := o.localCrossings(r, i, i+1)
				if after < before {
					improved = true
				} else {
					rk[i], rk[i+1] = rk[i+1], rk[i]
					o.pos[rk[i]], o.pos[rk[i+1]] = i, i+1
				}
			}
		}
	}
}

// localCrossings counts every crossing between rank r and each of its
// neighbouring ranks. A swap of positions i and j changes only crossings
// of their own edges, so the counts before and after the swap differ by
// exactly its effect.
func (o *Ordering) localCrossings(r, i, j int) int {
	total := 0
	if r > 0 {
		total += o.crossingsBetween(r-1, r)
	}
	if r < o.numRanks-1 {
		total += o.crossingsBetween(r, r+1)
	}
	return total
}

// crossingsBetween counts, by brute force over the bipartite edge set
// between adjacent ranks top and bottom, how many pairs of edges cross
// given the current left-to-right order.
func (o *Ordering) crossingsBetween(top, bottom int) int {
	type pair struct{ a, b int }
	var edges []pair
	for _, v := range o.order[top] {
		succ := o.g.From(int64(v))
		for succ.Next() {
			s := VertexID(succ.Node().ID())
			if o.rank[s] == bottom {
				edges = append(edges, pair{o.pos[v], o.pos[s]})
			}
		}
	}
	count := 0
	for i := 0; i < len(edges); i++ {
		for j := i + 1; j < len(edges); j++ {
			a, b := edges[i], edges[j]
			if (a.a < b.a && a.b > b.b) || (a.a > b.a && a.b < b.b) {
				count++
			}
		}
	}
	return count
}

func (o *Ordering) crossings() int {
	total := 0
	for r := 0; r+1 < o.numRanks; r++ {
		total += o.crossingsBetween(r, r+1)
	}
	return total
}
