package layout

import "github.com/panopticon-re/panopticon/ir/perr"

func errEmptyGraph() error {
	return perr.New(perr.KindEmptyGraph, "layout input has no vertices")
}

func errNotConnected() error {
	return perr.New(perr.KindNotConnected, "layout input graph is not connected")
}

func errRankingFailure(reason string) error {
	return perr.New(perr.KindInternalRankingFailure, "internal error while ranking: "+reason)
}
