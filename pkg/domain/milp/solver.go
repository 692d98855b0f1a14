package milp

import (
	"context"
	"time"
)

// Status classifies how a solve ended
type Status int

const (
	// Optimal means the incumbent is proven optimal within the requested relative gap
	Optimal Status = iota
	// FeasibleWithGap means the time budget ran out with an incumbent above the gap target
	FeasibleWithGap
	// Infeasible means no assignment satisfies the constraints
	Infeasible
	// TimedOut means the time budget ran out before any incumbent was found
	TimedOut
	// Unbounded means the objective can decrease without limit
	Unbounded
)

// String method for Status enum
func (s Status) String() string {
	switch s {
	case Optimal:
		return "Optimal"
	case FeasibleWithGap:
		return "FeasibleWithGap"
	case Infeasible:
		return "Infeasible"
	case TimedOut:
		return "TimedOut"
	case Unbounded:
		return "Unbounded"
	default:
		return "Unknown"
	}
}

// SolveOptions bounds a solve
type SolveOptions struct {
	TimeLimit   time.Duration
	RelativeGap float64
}

// Result is the outcome of one solve. Gap is -1 when the backend does not report it,
// and Note then says why.
type Result struct {
	Status    Status
	Objective float64
	Bound     float64
	Gap       float64
	Values    []float64
	Runtime   time.Duration
	Nodes     int
	Note      string
}

// HasSolution reports whether Values holds a feasible assignment
func (r *Result) HasSolution() bool {
	return (r.Status == Optimal || r.Status == FeasibleWithGap) && r.Values != nil
}

// Value returns the value of a variable, zero without a solution
func (r *Result) Value(v VarID) float64 {
	if r.Values == nil || int(v) >= len(r.Values) {
		return 0
	}
	return r.Values[v]
}

// Solver solves a model under a time and gap budget. Implementations classify
// the outcome but never retry or relax the model.
type Solver interface {
	Name() string
	Solve(ctx context.Context, m *Model, opts SolveOptions) (*Result, error)
}

// RelativeGap is (incumbent - bound) / max(1, |incumbent|)
func RelativeGap(incumbent, bound float64) float64 {
	denom := incumbent
	if denom < 0 {
		denom = -denom
	}
	if denom < 1 {
		denom = 1
	}
	gap := (incumbent - bound) / denom
	if gap < 0 {
		return 0
	}
	return gap
}
