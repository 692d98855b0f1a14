// Package highs solves window models with the HiGHS provider of the nextmv mip SDK
package highs

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/nextmv-io/sdk/mip"

	"github.com/vsinha/freshplan/pkg/domain/milp"
	"github.com/vsinha/freshplan/pkg/infrastructure/logging"
)

// Name identifies this backend in run configuration
const Name = "highs"

// maxInt bounds integer variables the model leaves unbounded above
const maxInt = math.MaxInt32

// Solver adapts milp models to the HiGHS provider
type Solver struct {
	logger *slog.Logger
}

// New creates a HiGHS-backed solver
func New(logger *slog.Logger) *Solver {
	return &Solver{logger: logging.WithComponent(logger, "solver").With("solver", Name)}
}

// Name returns the backend name
func (s *Solver) Name() string {
	return Name
}

// Solve translates m, runs HiGHS and classifies the outcome. The provider has no
// cancellation hook, so ctx is only checked before the solve starts.
func (s *Solver) Solve(ctx context.Context, m *milp.Model, opts milp.SolveOptions) (*milp.Result, error) {
	if err := m.Validate(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("solve of %s cancelled: %w", m.Name, err)
	}

	model, vars := translate(m)

	solver, err := mip.NewSolver(Name, model)
	if err != nil {
		return nil, fmt.Errorf("failed to create %s solver: %w", Name, err)
	}
	solveOptions := mip.NewSolveOptions()
	if opts.TimeLimit > 0 {
		if err := solveOptions.SetMaximumDuration(opts.TimeLimit); err != nil {
			return nil, err
		}
	}
	if err := solveOptions.SetMIPGapRelative(opts.RelativeGap); err != nil {
		return nil, err
	}
	solveOptions.SetVerbosity(mip.Off)

	start := time.Now()
	solution, err := solver.Solve(solveOptions)
	if err != nil {
		return nil, fmt.Errorf("%s failed on %s: %w", Name, m.Name, err)
	}
	if solution == nil {
		return nil, fmt.Errorf("%s returned no solution for %s", Name, m.Name)
	}

	status, err := classify(solution)
	if err != nil {
		return nil, fmt.Errorf("%s on %s: %w", Name, m.Name, err)
	}
	res := &milp.Result{Status: status, Gap: -1, Runtime: solution.RunTime()}
	if res.Runtime <= 0 {
		res.Runtime = time.Since(start)
	}
	if !solution.HasValues() {
		s.logger.Debug("no solution", "model", m.Name, "status", res.Status, "runtime", res.Runtime)
		return res, nil
	}

	res.Values = make([]float64, len(vars))
	for j, v := range vars {
		x := solution.Value(v)
		if m.Variables[j].IsIntegral() {
			x = math.Round(x)
		}
		res.Values[j] = x
	}
	res.Objective = m.Evaluate(res.Values)
	if status == milp.Optimal {
		res.Gap = 0
		res.Bound = res.Objective
	} else {
		res.Note = noBound
	}
	s.logger.Debug("solved", "model", m.Name, "status", res.Status, "objective", res.Objective, "runtime", res.Runtime)
	return res, nil
}

// noBound marks incumbents whose dual bound the provider does not expose
const noBound = "highs does not report a bound; gap unknown"

// classify maps the provider's verdict onto a milp status. Only proven outcomes
// are infeasible or unbounded; a time limit keeps any incumbent found.
func classify(sol mip.Solution) (milp.Status, error) {
	switch {
	case sol.IsUnbounded():
		return milp.Unbounded, nil
	case sol.IsInfeasible():
		return milp.Infeasible, nil
	case sol.HasValues() && sol.IsOptimal():
		return milp.Optimal, nil
	case sol.HasValues():
		return milp.FeasibleWithGap, nil
	case sol.IsTimeOut():
		return milp.TimedOut, nil
	case sol.IsNumericalFailure():
		return 0, fmt.Errorf("numerical failure without a solution")
	default:
		return 0, fmt.Errorf("solve ended without a conclusion")
	}
}

// translate builds the provider model; the objective constant is added back by Evaluate
func translate(m *milp.Model) (mip.Model, []mip.Var) {
	model := mip.NewModel()
	vars := make([]mip.Var, m.NumVariables())
	for j, v := range m.Variables {
		switch {
		case v.Kind == milp.Binary && v.Lower == 0 && v.Upper == 1:
			vars[j] = model.NewBool()
		case v.IsIntegral():
			upper := v.Upper
			if upper > maxInt {
				upper = maxInt
			}
			vars[j] = model.NewInt(int64(math.Ceil(v.Lower)), int64(math.Floor(upper)))
		default:
			vars[j] = model.NewFloat(v.Lower, v.Upper)
		}
	}

	model.Objective().SetMinimize()
	for j, v := range vars {
		if c := m.ObjectiveCoef(milp.VarID(j)); c != 0 {
			model.Objective().NewTerm(c, v)
		}
	}

	for _, c := range m.Constraints {
		row := model.NewConstraint(sense(c.Sense), c.RHS)
		for _, t := range c.Terms {
			row.NewTerm(t.Coef, vars[t.Var])
		}
	}
	return model, vars
}

func sense(s milp.Sense) mip.Sense {
	switch s {
	case milp.LessEqual:
		return mip.LessThanOrEqual
	case milp.GreaterEqual:
		return mip.GreaterThanOrEqual
	default:
		return mip.Equal
	}
}
