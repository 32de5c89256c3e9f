package absint

import "github.com/panopticon-re/panopticon/ir/perr"

func errNoEntryPoint() error {
	return perr.New(perr.KindFunctionHasNoEntryPoint, "abstract interpretation requires a function with a resolved entry point")
}
