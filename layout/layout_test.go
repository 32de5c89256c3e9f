package layout

import "testing"

func TestPrepareEmptyGraph(t *testing.T) {
	if _, err := Prepare(nil, nil, nil, nil); err == nil {
		t.Fatal("expected an error for an empty graph")
	}
}

func TestPrepareDisconnected(t *testing.T) {
	_, err := Prepare([]VertexID{0, 1, 2, 3}, []Edge{{Idx: 0, From: 0, To: 1}}, nil, nil)
	if err == nil {
		t.Fatal("expected an error for a disconnected graph")
	}
}

func TestPrepareMultipleSourcesGetsSyntheticRoot(t *testing.T) {
	// 0 -> 2, 1 -> 2: two sources, no declared entry.
	c, err := Prepare([]VertexID{0, 1, 2}, []Edge{{Idx: 0, From: 0, To: 2}, {Idx: 1, From: 1, To: 2}}, nil, nil)
	if err != nil {
		t.Fatalf("Prepare: %v", err)
	}
	if int64(c.head) <= 2 {
		t.Errorf("head = %d, want a synthetic vertex above the input range", c.head)
	}
	if c.g.From(int64(c.head)).Len() != 2 {
		t.Errorf("synthetic root has %d outgoing edges, want 2", c.g.From(int64(c.head)).Len())
	}
}

func TestBreakCyclesYieldsDAG(t *testing.T) {
	// 0 -> 1 -> 2 -> 0 (a cycle back to the entry).
	edges := []Edge{{Idx: 0, From: 0, To: 1}, {Idx: 1, From: 1, To: 2}, {Idx: 2, From: 2, To: 0}}
	c, err := Prepare([]VertexID{0, 1, 2}, edges, nil, nil)
	if err != nil {
		t.Fatalf("Prepare: %v", err)
	}
	if len(c.invertedOrig) != 1 {
		t.Fatalf("invertedOrig = %v, want exactly one reversed edge", c.invertedOrig)
	}
	if !c.invertedOrig[2] {
		t.Errorf("expected the back edge (2->0) to be the one reversed")
	}
}

func TestRankLongestPath(t *testing.T) {
	// diamond: 0 -> 1 -> 3, 0 -> 2 -> 3
	edges := []Edge{
		{Idx: 0, From: 0, To: 1}, {Idx: 1, From: 1, To: 3},
		{Idx: 2, From: 0, To: 2}, {Idx: 3, From: 2, To: 3},
	}
	c, err := Prepare([]VertexID{0, 1, 2, 3}, edges, nil, nil)
	if err != nil {
		t.Fatalf("Prepare: %v", err)
	}
	ranked, err := Rank(c, nil)
	if err != nil {
		t.Fatalf("Rank: %v", err)
	}
	want := map[VertexID]int{0: 0, 1: 1, 2: 1, 3: 2}
	for v, r := range want {
		if ranked.rank[v] != r {
			t.Errorf("rank[%d] = %d, want %d", v, ranked.rank[v], r)
		}
	}
}

func TestRankSplitsLongEdge(t *testing.T) {
	// 0 -> 1 -> 2 and 0 -> 2 directly: the direct edge spans two ranks and
	// needs exactly one virtual vertex spliced in.
	edges := []Edge{
		{Idx: 0, From: 0, To: 1}, {Idx: 1, From: 1, To: 2},
		{Idx: 2, From: 0, To: 2},
	}
	c, err := Prepare([]VertexID{0, 1, 2}, edges, nil, nil)
	if err != nil {
		t.Fatalf("Prepare: %v", err)
	}
	ranked, err := Rank(c, nil)
	if err != nil {
		t.Fatalf("Rank: %v", err)
	}
	path := ranked.chain[2]
	if len(path) != 3 {
		t.Fatalf("chain for edge 2 = %v, want a 3-vertex path (one virtual vertex)", path)
	}
	if !ranked.virtual[path[1]] {
		t.Errorf("middle vertex %d should be virtual", path[1])
	}
}

func TestLayoutEndToEnd(t *testing.T) {
	// A small diamond-shaped CFG with a self-loop at the bottom vertex.
	edges := []Edge{
		{Idx: 0, From: 0, To: 1}, {Idx: 1, From: 0, To: 2},
		{Idx: 2, From: 1, To: 3}, {Idx: 3, From: 2, To: 3},
		{Idx: 4, From: 3, To: 3},
	}
	dims := map[VertexID]Dimensions{
		0: {Width: 80, Height: 30}, 1: {Width: 80, Height: 30},
		2: {Width: 80, Height: 30}, 3: {Width: 80, Height: 30},
	}
	result, err := Layout([]VertexID{0, 1, 2, 3}, edges, dims, nil, DefaultSpacing())
	if err != nil {
		t.Fatalf("Layout: %v", err)
	}
	for _, v := range []VertexID{0, 1, 2, 3} {
		if _, ok := result.Positions[v]; !ok {
			t.Errorf("missing position for vertex %d", v)
		}
	}
	for _, idx := range sortedKeys(result.Routes) {
		if len(result.Routes[idx].Segments) == 0 {
			t.Errorf("route %d has no segments", idx)
		}
	}
	if result.Positions[0].Y >= result.Positions[1].Y {
		t.Errorf("entry vertex should be above its successors: %v vs %v", result.Positions[0], result.Positions[1])
	}
}
