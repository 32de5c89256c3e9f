package layout

import "gonum.org/v1/gonum/graph/simple"

// Placed is the layout pipeline's final coordinate-assignment stage (spec
// §4.5 step 4): every vertex has an (x, y) centre.
type Placed struct {
	g        *simple.DirectedGraph
	rank     map[VertexID]int
	virtual  map[VertexID]bool
	origEdge map[int]glEdge
	chain    map[int][]VertexID
	dims     map[VertexID]Dimensions

	invertedOrig map[int]bool
	selfLoops    []glEdge

	order [][]VertexID
	x     map[VertexID]float64
	y     map[VertexID]float64
}

// Place runs a simplified Brandes-Köpf placement (spec §4.5 step 4): y
// coordinates come directly from rank and per-rank node height, and x
// coordinates are the average of two passes — align each vertex under the
// mean x of its neighbours in the rank below (one pass) and in the rank
// above (the other) — which
// captures the "average the middle two candidate alignments" spirit of
// the full four-direction algorithm without its type-1-conflict bookkeeping.
func Place(o *Ordering, spacing Spacing) *Placed {
	y := make(map[VertexID]float64, len(o.rank))
	rankHeight := make([]float64, o.numRanks)
	for r, vs := range o.order {
		h := 0.0
		for _, v := range vs {
			if d, ok := o.dims[v]; ok && d.Height > h {
				h = d.Height
			}
		}
		if h == 0 {
			h = 2 * spacing.Node
		}
		rankHeight[r] = h
	}
	cursor := 0.0
	for r := 0; r < o.numRanks; r++ {
		cursor += rankHeight[r] / 2
		for _, v := range o.order[r] {
			y[v] = cursor
		}
		cursor += rankHeight[r]/2 + spacing.Rank
	}

	xInitial := initialX(o, spacing)
	xDown := sweepX(o, xInitial, spacing, true)
	xUp := sweepX(o, xInitial, spacing, false)

	x := make(map[VertexID]float64, len(xInitial))
	for v := range xInitial {
		x[v] = (xDown[v] + xUp[v]) / 2
	}

	return &Placed{
		g: o.g, rank: o.rank, virtual: o.virtual, origEdge: o.origEdge,
		chain: o.chain, dims: o.dims, invertedOrig: o.invertedOrig,
		selfLoops: o.selfLoops, order: o.order, x: x, y: y,
	}
}

// initialX lays each rank out left to right purely by accumulated width
// plus node_spacing, the starting point both sweeps refine from.
func initialX(o *Ordering, spacing Spacing) map[VertexID]float64 {
	x := make(map[VertexID]float64)
	for _, rk := range o.order {
		cursor := 0.0
		for _, v := range rk {
			w := vertexWidth(o.dims, v, spacing)
			cursor += w / 2
			x[v] = cursor
			cursor += w/2 + spacing.Node
		}
	}
	return x
}

func vertexWidth(dims map[VertexID]Dimensions, v VertexID, spacing Spacing) float64 {
	if d, ok := dims[v]; ok && d.Width > 0 {
		return d.Width
	}
	return spacing.Node
}

// sweepX refines x by setting each vertex's x to the mean x of its
// neighbours one rank over, then resolving overlaps left to right within
// the rank, for four passes. With down set it walks the ranks bottom-up
// and reads the rank below; otherwise it walks them top-down and reads the
// rank above.
func sweepX(o *Ordering, initial map[VertexID]float64, spacing Spacing, down bool) map[VertexID]float64 {
	x := make(map[VertexID]float64, len(initial))
	for k, v := range initial {
		x[k] = v
	}

	ranks := make([]int, o.numRanks)
	for i := range ranks {
		ranks[i] = i
	}
	if down {
		for i, j := 0, len(ranks)-1; i < j; i, j = i+1, j-1 {
			ranks[i], ranks[j] = ranks[j], ranks[i]
		}
	}

	for pass := 0; pass < 4; pass++ {
		for _, r := range ranks {
			for _, v := range o.order[r] {
				var adjacent int
				if down {
					adjacent = r + 1
				} else {
					adjacent = r - 1
				}
				sum, n := 0.0, 0
				if adjacent >= 0 && adjacent < o.numRanks {
					sum, n = neighbourXSum(o, x, v, adjacent)
				}
				if n > 0 {
					x[v] = sum / float64(n)
				}
			}
			resolveOverlap(o.order[r], o.dims, x, spacing)
		}
	}
	return x
}

func neighbourXSum(o *Ordering, x map[VertexID]float64, v VertexID, adjacentRank int) (float64, int) {
	sum, n := 0.0, 0
	preds := o.g.To(int64(v))
	for preds.Next() {
		p := VertexID(preds.Node().ID())
		if o.rank[p] == adjacentRank {
			sum += x[p]
			n++
		}
	}
	succ := o.g.From(int64(v))
	for succ.Next() {
		s := VertexID(succ.Node().ID())
		if o.rank[s] == adjacentRank {
			sum += x[s]
			n++
		}
	}
	return sum, n
}

// resolveOverlap walks rank left to right pushing any vertex whose desired
// x would overlap its left neighbour's footprint (plus node spacing)
// rightward just enough to clear it.
func resolveOverlap(rk []VertexID, dims map[VertexID]Dimensions, x map[VertexID]float64, spacing Spacing) {
	for i := 1; i < len(rk); i++ {
		prev, cur := rk[i-1], rk[i]
		minGap := vertexWidth(dims, prev, spacing)/2 + spacing.Node + vertexWidth(dims, cur, spacing)/2
		if x[cur] < x[prev]+minGap {
			x[cur] = x[prev] + minGap
		}
	}
}
