package decomposition

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/vsinha/freshplan/pkg/application/dto"
	"github.com/vsinha/freshplan/pkg/application/services/extraction"
	"github.com/vsinha/freshplan/pkg/application/services/formulation"
	"github.com/vsinha/freshplan/pkg/domain/entities"
	"github.com/vsinha/freshplan/pkg/domain/milp"
	"github.com/vsinha/freshplan/pkg/infrastructure/checkpoint"
	"github.com/vsinha/freshplan/pkg/infrastructure/events"
	"github.com/vsinha/freshplan/pkg/infrastructure/logging"
	"github.com/vsinha/freshplan/pkg/infrastructure/metrics"
)

// carryEpsilon is the smallest stock level carried into the next window
const carryEpsilon = 1e-6

// Deps wires the decomposer to the per-window pipeline. Events, Metrics and
// Checkpoints are optional.
type Deps struct {
	Builder     *formulation.Builder
	Solver      milp.Solver
	Validator   *extraction.Validator
	Events      events.EventStore
	Metrics     *metrics.Metrics
	Checkpoints checkpoint.Manager
	Logger      *slog.Logger
}

// Decomposer runs the windows of a horizon one after another
type Decomposer struct {
	deps   Deps
	logger *slog.Logger
}

// NewDecomposer creates a new window decomposer
func NewDecomposer(deps Deps) *Decomposer {
	return &Decomposer{deps: deps, logger: logging.WithComponent(deps.Logger, "decomposition")}
}

// Request is one decomposed run. When Resume is set the run continues after the
// last window it committed and Opening is ignored.
type Request struct {
	RunID   string
	Windows []entities.Window
	Opening *entities.Snapshot
	Options milp.SolveOptions
	Resume  *dto.Checkpoint
}

// Outcome holds everything committed so far. It is returned alongside a run error
// so callers keep the windows that did solve.
type Outcome struct {
	Committed entities.Schedule
	Reports   []entities.WindowReport
	Closing   *entities.Snapshot
	SolveTime time.Duration
}

// CommittedThrough returns the last committed date, or the day before the first
// window when nothing is committed yet
func (o *Outcome) CommittedThrough() entities.Date {
	return o.Closing.AsOf
}

// Run solves every window in order. It stops at the first window that cannot be
// committed.
func (d *Decomposer) Run(ctx context.Context, req Request) (*Outcome, error) {
	if d.deps.Builder == nil || d.deps.Solver == nil || d.deps.Validator == nil {
		return nil, fmt.Errorf("decomposer requires a builder, solver and validator")
	}
	if len(req.Windows) == 0 {
		return nil, fmt.Errorf("no windows to solve")
	}

	out := &Outcome{}
	next := 0
	if req.Resume != nil {
		cp := req.Resume
		if cp.NextWindow < 0 || cp.NextWindow > len(req.Windows) || cp.Snapshot == nil {
			return nil, fmt.Errorf("checkpoint of run %s does not match %d windows", cp.RunID, len(req.Windows))
		}
		next = cp.NextWindow
		out.Committed = cp.Committed
		out.Reports = append(out.Reports, cp.Reports...)
		out.Closing = cp.Snapshot.Clone()
		for _, r := range cp.Reports {
			out.SolveTime += r.SolveTime
		}
		d.logger.Info("resuming run", "next_window", next, "as_of", out.Closing.AsOf.String())
	} else {
		if req.Opening == nil {
			return nil, fmt.Errorf("run %s requires an opening snapshot", req.RunID)
		}
		out.Closing = req.Opening.Clone()
	}

	for _, w := range req.Windows[next:] {
		if err := ctx.Err(); err != nil {
			return out, fmt.Errorf("run cancelled before %s: %w", w, err)
		}
		if err := d.solveWindow(ctx, req, w, out); err != nil {
			return out, err
		}
	}
	return out, nil
}

func (d *Decomposer) solveWindow(ctx context.Context, req Request, w entities.Window, out *Outcome) error {
	logger := d.logger.With("window", w.Index)

	f, err := d.deps.Builder.Build(ctx, w, out.Closing)
	if err != nil {
		return fmt.Errorf("failed to build %s: %w", w, err)
	}
	m := f.Model
	d.publish(req.RunID, events.NewWindowPlannedEvent(req.RunID, w, m.NumVariables(), m.NumConstraints()))

	res, err := d.deps.Solver.Solve(ctx, m, req.Options)
	if err != nil {
		return fmt.Errorf("failed to solve %s: %w", w, err)
	}

	report := entities.WindowReport{
		Window:           w,
		Status:           res.Status.String(),
		Objective:        res.Objective,
		Bound:            res.Bound,
		Gap:              res.Gap,
		SolveTime:        res.Runtime,
		Variables:        m.NumVariables(),
		Constraints:      m.NumConstraints(),
		IntegerVariables: m.NumIntegers(),
		Nodes:            res.Nodes,
		Note:             res.Note,
	}
	out.SolveTime += res.Runtime
	d.deps.Metrics.ObserveWindow(d.deps.Solver.Name(), report.Status, res.Runtime.Seconds(), report.Variables, res.Gap)
	d.publish(req.RunID, events.NewWindowSolvedEvent(req.RunID, report))

	switch res.Status {
	case milp.Optimal, milp.FeasibleWithGap:
	case milp.Infeasible:
		return d.fail(req.RunID, out, &entities.InfeasibleWindowError{
			Window:           w,
			Cause:            f.Diagnostics().Classify(),
			Diagnostics:      f.Diagnostics(),
			CommittedWindows: len(out.Reports),
		})
	case milp.TimedOut:
		return d.fail(req.RunID, out, &entities.InfeasibleWindowError{
			Window:           w,
			Cause:            entities.CauseTimeout,
			Diagnostics:      f.Diagnostics(),
			CommittedWindows: len(out.Reports),
			Err:              &entities.SolverTimeoutError{Window: w},
		})
	default:
		return fmt.Errorf("%s ended %s; the cost structure leaves the model unbounded", w, res.Status)
	}
	if res.Status == milp.FeasibleWithGap {
		timeout := &entities.SolverTimeoutError{Window: w, HasIncumbent: true, Objective: res.Objective, Bound: res.Bound, Gap: res.Gap}
		logger.Warn("committing window with open gap", "error", timeout)
	}

	ws, err := extraction.Extract(f, res)
	if err != nil {
		return fmt.Errorf("failed to extract %s: %w", w, err)
	}
	if err := d.deps.Validator.Validate(ws); err != nil {
		return err
	}

	committed := ws.Schedule.Within(w.Committed())
	carry := CarryForward(ws)
	out.Committed.Append(committed)
	out.Reports = append(out.Reports, report)
	out.Closing = carry

	totals := committed.Totals()
	d.deps.Metrics.AddCommitted(totals.Produced, totals.Shortage, totals.Disposed)
	d.publish(req.RunID, events.NewWindowCommittedEvent(req.RunID, w, totals, carry))

	if d.deps.Checkpoints != nil {
		cp := &dto.Checkpoint{
			RunID:      req.RunID,
			NextWindow: w.Index + 1,
			Snapshot:   carry.Clone(),
			Committed:  out.Committed,
			Reports:    out.Reports,
		}
		if err := d.deps.Checkpoints.Save(ctx, cp); err != nil {
			return fmt.Errorf("failed to checkpoint %s: %w", w, err)
		}
	}

	logger.Info("window committed",
		"start", w.Start.String(),
		"commit_end", w.CommitEnd.String(),
		"status", report.Status,
		"objective", report.Objective,
		"solve_time", report.SolveTime,
		"produced", totals.Produced,
		"shortage", totals.Shortage,
		"carried", carry.TotalInventory()+carry.TotalInTransit())
	return nil
}

func (d *Decomposer) fail(runID string, out *Outcome, err *entities.InfeasibleWindowError) error {
	d.deps.Metrics.IncWindowsFailed(err.Cause.String())
	d.publish(runID, events.NewWindowFailedEvent(runID, err.Window, err.Cause, err))
	d.logger.Error("window failed",
		"window", err.Window.Index,
		"cause", err.Cause.String(),
		"committed_windows", len(out.Reports),
		"error", err)
	return err
}

func (d *Decomposer) publish(runID string, e events.Event) {
	if d.deps.Events == nil {
		return
	}
	if err := d.deps.Events.AppendEvent(runID, e); err != nil {
		d.logger.Warn("failed to publish event", "type", e.Type(), "error", err)
	}
}

// CarryForward derives the opening state of the next window from a solved one: the
// stock on hand at the end of the commit range, plus goods that left within it and
// arrive afterwards. Overlap decisions are dropped.
func CarryForward(ws *entities.WindowSolution) *entities.Snapshot {
	w := ws.Window
	snap := entities.NewSnapshot(w.CommitEnd)

	for _, inv := range ws.Inventory {
		if inv.Date == w.CommitEnd && inv.Quantity > carryEpsilon {
			snap.Inventory[inv.Cohort] += inv.Quantity
		}
	}
	if ws.Opening != nil {
		for _, rec := range ws.Opening.InTransit {
			if rec.Arrival > w.CommitEnd {
				snap.InTransit = append(snap.InTransit, rec)
			}
		}
	}
	for _, sh := range ws.Shipments {
		if w.Committed().Contains(sh.Departure) && sh.Arrival > w.CommitEnd && sh.Quantity > carryEpsilon {
			snap.InTransit = append(snap.InTransit, sh.InTransit())
		}
	}
	return snap
}

// IsWindowFailure reports whether err halted a run at a window rather than before it
func IsWindowFailure(err error) bool {
	return errors.Is(err, entities.ErrInfeasibleWindow) || errors.Is(err, entities.ErrConservationViolation)
}
