package engine

// stepBudget counts tags read by one Conduct call and enforces the
// optional per-tick limit set with WithMaxSteps.
//
// A script that jumps back to an earlier label without sleeping or stopping
// would otherwise keep Conduct spinning forever inside a single tick.
// A limit of zero disables the check.
type stepBudget struct {
	limit   int
	current int
}

func newStepBudget(limit int) *stepBudget {
	return &stepBudget{limit: limit}
}

// check counts one tag and reports whether the limit is exceeded.
func (b *stepBudget) check() bool {
	b.current++
	return b.limit > 0 && b.current > b.limit
}

// Current returns the number of tags counted so far.
func (b *stepBudget) Current() int {
	return b.current
}
