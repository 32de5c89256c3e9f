package layout

// Layout runs the full pipeline end to end (spec §4.5): Prepare, Rank,
// InitialOrder, Order, Place, Route. Most callers want this; the staged
// constructors (Prepare/Rank/...) exist for tests and for callers that
// want to inspect or customise an intermediate stage (e.g. supply a
// different RankSolver).
func Layout(vertices []VertexID, edges []Edge, dims map[VertexID]Dimensions, entry *VertexID, spacing Spacing) (Result, error) {
	cooked, err := Prepare(vertices, edges, dims, entry)
	if err != nil {
		return Result{}, err
	}
	ranked, err := Rank(cooked, nil)
	if err != nil {
		return Result{}, err
	}
	ordering, err := InitialOrder(ranked)
	if err != nil {
		return Result{}, err
	}
	ordering = Order(ordering)
	placed := Place(ordering, spacing)
	return placed.Route(spacing), nil
}
