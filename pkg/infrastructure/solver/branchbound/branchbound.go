// Package branchbound is a depth-first branch-and-bound MILP solver over the gonum simplex.
// It is meant for small windows and tests; production runs use an external backend.
package branchbound

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/vsinha/freshplan/pkg/domain/milp"
	"github.com/vsinha/freshplan/pkg/infrastructure/logging"
)

// Name identifies this backend in run configuration
const Name = "branchbound"

const (
	integralityTol   = 1e-6
	defaultNodeLimit = 200000
)

// Solver solves models with LP-based branch-and-bound
type Solver struct {
	// NodeLimit caps explored nodes; reaching it is treated like a timeout
	NodeLimit int
	logger    *slog.Logger
}

// New creates a solver logging to logger, or to the default logger when nil
func New(logger *slog.Logger) *Solver {
	return &Solver{NodeLimit: defaultNodeLimit, logger: logging.WithComponent(logger, "solver").With("solver", Name)}
}

// Name returns the backend name
func (s *Solver) Name() string {
	return Name
}

type node struct {
	lower, upper []float64
	bound        float64
	depth        int
}

type search struct {
	model     *milp.Model
	gap       float64
	incumbent []float64
	incObj    float64
	pruned    float64 // best bound among nodes discarded by the gap test
	nodes     int
}

// Solve minimises m within the time limit and relative gap of opts
func (s *Solver) Solve(ctx context.Context, m *milp.Model, opts milp.SolveOptions) (*milp.Result, error) {
	if err := m.Validate(); err != nil {
		return nil, err
	}
	start := time.Now()

	solveCtx := ctx
	if opts.TimeLimit > 0 {
		var cancel context.CancelFunc
		solveCtx, cancel = context.WithTimeout(ctx, opts.TimeLimit)
		defer cancel()
	}

	root := &node{
		lower: make([]float64, m.NumVariables()),
		upper: make([]float64, m.NumVariables()),
		bound: math.Inf(-1),
	}
	for j, v := range m.Variables {
		root.lower[j], root.upper[j] = v.Lower, v.Upper
		if v.IsIntegral() {
			root.lower[j] = math.Ceil(v.Lower - integralityTol)
			root.upper[j] = math.Floor(v.Upper + integralityTol)
		}
	}

	sr := &search{model: m, gap: opts.RelativeGap, incObj: math.Inf(1), pruned: math.Inf(1)}
	stack := []*node{root}
	exhausted := true

	for len(stack) > 0 {
		if expired(solveCtx) {
			if ctx.Err() != nil {
				return nil, fmt.Errorf("solve of %s cancelled: %w", m.Name, ctx.Err())
			}
			exhausted = false
			break
		}
		if s.NodeLimit > 0 && sr.nodes >= s.NodeLimit {
			exhausted = false
			break
		}

		nd := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if sr.prunable(nd.bound) {
			sr.prune(nd.bound)
			continue
		}

		sr.nodes++
		rel, err := solveRelaxation(m, nd.lower, nd.upper)
		if err != nil {
			return nil, err
		}
		switch rel.status {
		case lpInfeasible:
			continue
		case lpUnbounded:
			if nd.depth == 0 {
				return &milp.Result{Status: milp.Unbounded, Gap: -1, Runtime: time.Since(start), Nodes: sr.nodes}, nil
			}
			continue
		}
		if sr.prunable(rel.objective) {
			sr.prune(rel.objective)
			continue
		}

		branch, frac := mostFractional(m, rel.values)
		if branch < 0 {
			sr.incumbent, sr.incObj = rel.values, rel.objective
			s.logger.Debug("new incumbent", "model", m.Name, "objective", rel.objective, "nodes", sr.nodes)
			continue
		}

		// push the far child first so the nearer rounding is explored next
		v := rel.values[branch]
		down := nd.child(rel.objective)
		down.upper[branch] = math.Floor(v)
		up := nd.child(rel.objective)
		up.lower[branch] = math.Ceil(v)
		if frac < 0.5 {
			stack = append(stack, up, down)
		} else {
			stack = append(stack, down, up)
		}
	}

	res := &milp.Result{Runtime: time.Since(start), Nodes: sr.nodes, Gap: -1}
	if sr.incumbent == nil {
		res.Status = milp.Infeasible
		if !exhausted {
			res.Status = milp.TimedOut
		}
		return res, nil
	}

	values := make([]float64, len(sr.incumbent))
	for j, x := range sr.incumbent {
		if m.Variables[j].IsIntegral() {
			x = math.Round(x)
		}
		values[j] = x
	}
	res.Values = values
	res.Objective = m.Evaluate(values)

	bound := math.Min(sr.incObj, sr.pruned)
	for _, nd := range stack {
		bound = math.Min(bound, nd.bound)
	}
	res.Bound = bound
	res.Gap = milp.RelativeGap(res.Objective, bound)

	res.Status = milp.Optimal
	if !exhausted && res.Gap > opts.RelativeGap {
		res.Status = milp.FeasibleWithGap
	}
	s.logger.Debug("solved", "model", m.Name, "status", res.Status, "objective", res.Objective,
		"gap", res.Gap, "nodes", res.Nodes, "runtime", res.Runtime)
	return res, nil
}

// expired also reads the deadline, the timer behind a context may not have fired yet
func expired(ctx context.Context) bool {
	if ctx.Err() != nil {
		return true
	}
	dl, ok := ctx.Deadline()
	return ok && !time.Now().Before(dl)
}

func (nd *node) child(bound float64) *node {
	return &node{
		lower: append([]float64(nil), nd.lower...),
		upper: append([]float64(nil), nd.upper...),
		bound: bound,
		depth: nd.depth + 1,
	}
}

func (sr *search) prunable(bound float64) bool {
	if sr.incumbent == nil {
		return false
	}
	return bound >= sr.incObj-sr.gap*math.Max(1, math.Abs(sr.incObj))-1e-9
}

func (sr *search) prune(bound float64) {
	if bound < sr.pruned {
		sr.pruned = bound
	}
}

// mostFractional returns the integral variable furthest from an integer and its fractional part,
// or -1 when every integral variable is integer within tolerance
func mostFractional(m *milp.Model, values []float64) (int, float64) {
	best, bestDist, bestFrac := -1, integralityTol, 0.0
	for j, v := range m.Variables {
		if !v.IsIntegral() {
			continue
		}
		frac := values[j] - math.Floor(values[j])
		dist := math.Min(frac, 1-frac)
		if dist > bestDist {
			best, bestDist, bestFrac = j, dist, frac
		}
	}
	return best, bestFrac
}
