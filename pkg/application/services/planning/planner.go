// Package planning is the entry point of a planning run: it validates the inputs,
// builds the cohort index once and drives the window decomposition to a priced plan.
package planning

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/vsinha/freshplan/pkg/application/dto"
	"github.com/vsinha/freshplan/pkg/application/services/cohort"
	"github.com/vsinha/freshplan/pkg/application/services/decomposition"
	"github.com/vsinha/freshplan/pkg/application/services/extraction"
	"github.com/vsinha/freshplan/pkg/application/services/formulation"
	"github.com/vsinha/freshplan/pkg/domain/entities"
	"github.com/vsinha/freshplan/pkg/domain/milp"
	"github.com/vsinha/freshplan/pkg/domain/services"
	"github.com/vsinha/freshplan/pkg/infrastructure/checkpoint"
	"github.com/vsinha/freshplan/pkg/infrastructure/events"
	"github.com/vsinha/freshplan/pkg/infrastructure/logging"
	"github.com/vsinha/freshplan/pkg/infrastructure/metrics"
	"github.com/vsinha/freshplan/pkg/infrastructure/repositories/memory"
	"github.com/vsinha/freshplan/pkg/infrastructure/solver"
)

// Config wires a planner to its collaborators. Every field is optional; Solver
// overrides the backend named in each run's configuration.
type Config struct {
	Solver      milp.Solver
	Events      events.EventStore
	Metrics     *metrics.Metrics
	Checkpoints checkpoint.Manager
	Logger      *slog.Logger
}

// Planner runs planning requests. It keeps no state between runs, so one planner
// may serve concurrent requests.
type Planner struct {
	cfg       Config
	validator *services.ConfigValidator
	base      *slog.Logger
}

// NewPlanner creates a new planner
func NewPlanner(cfg Config) *Planner {
	base := cfg.Logger
	if base == nil {
		base = slog.Default()
	}
	return &Planner{
		cfg:       cfg,
		validator: services.NewConfigValidator(),
		base:      base,
	}
}

// Plan solves a new run under a fresh run id
func (p *Planner) Plan(ctx context.Context, pc *dto.PlanningContext) (*dto.PlanResult, error) {
	return p.run(ctx, pc, uuid.New().String(), nil)
}

// Resume continues run runID from its last checkpoint. The planning context must
// be the one the run started with.
func (p *Planner) Resume(ctx context.Context, pc *dto.PlanningContext, runID string) (*dto.PlanResult, error) {
	if p.cfg.Checkpoints == nil {
		return nil, fmt.Errorf("resume requires a checkpoint manager")
	}
	cp, err := p.cfg.Checkpoints.Load(ctx, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to load checkpoint for run %s: %w", runID, err)
	}
	return p.run(ctx, pc, runID, cp)
}

// runState holds everything one planning run owns
type runState struct {
	id      string
	pc      *dto.PlanningContext
	net     *entities.Network
	labor   *memory.LaborRepository
	demand  *memory.DemandRepository
	stock   *memory.InventoryRepository
	index   *cohort.Index
	windows []entities.Window
	solver  milp.Solver
	// base carries the run fields; logger adds the planning component to it
	base   *slog.Logger
	logger *slog.Logger
}

func (p *Planner) run(ctx context.Context, pc *dto.PlanningContext, runID string, cp *dto.Checkpoint) (*dto.PlanResult, error) {
	started := time.Now()
	r, err := p.prepare(pc, runID)
	if err != nil {
		p.cfg.Metrics.IncRuns("invalid")
		return nil, err
	}
	cfg := pc.Config

	p.publish(runID, events.NewRunStartedEvent(runID, cfg.Horizon(), len(r.windows), r.solver.Name()))
	r.logger.Info("planning run started",
		"horizon", cfg.Horizon().String(),
		"solver", r.solver.Name(),
		"windows", len(r.windows),
		"window_days", cfg.WindowDays,
		"overlap_days", cfg.OverlapDays,
		"cohorts", r.index.Len())

	validator := extraction.NewValidator(r.index)
	dec := decomposition.NewDecomposer(decomposition.Deps{
		Builder: formulation.NewBuilder(formulation.Deps{
			Index:          r.index,
			Costs:          pc.Costs,
			Labor:          r.labor,
			Demand:         r.demand,
			AllowShortages: cfg.AllowShortages,
			Logger:         r.base,
		}),
		Solver:      r.solver,
		Validator:   validator,
		Events:      p.cfg.Events,
		Metrics:     p.cfg.Metrics,
		Checkpoints: p.cfg.Checkpoints,
		Logger:      r.base,
	})

	opening := r.stock.Snapshot(cfg.HorizonStart.AddDays(-1))
	out, runErr := dec.Run(ctx, decomposition.Request{
		RunID:   runID,
		Windows: r.windows,
		Opening: opening,
		Options: milp.SolveOptions{TimeLimit: cfg.TimeLimit, RelativeGap: cfg.RelativeGap},
		Resume:  cp,
	})
	if out == nil {
		p.cfg.Metrics.IncRuns("failed")
		p.publish(runID, events.NewRunFailedEvent(runID, runErr))
		return nil, runErr
	}

	result, err := p.assemble(r, out, opening, started)
	if err != nil {
		return nil, err
	}
	if runErr == nil {
		if err := validator.ValidatePlan(result.Plan); err != nil {
			runErr = fmt.Errorf("stitched plan failed re-check: %w", err)
		}
	}

	if runErr != nil {
		result.Status = dto.PlanFailed
		p.cfg.Metrics.IncRuns("failed")
		p.publish(runID, events.NewRunFailedEvent(runID, runErr))
		r.logger.Error("planning run failed", "committed_windows", len(out.Reports), "error", runErr)
		return result, runErr
	}

	p.cfg.Metrics.IncRuns(string(result.Status))
	p.publish(runID, events.NewRunCompletedEvent(runID, len(out.Reports), result.Plan.Totals(), out.SolveTime))
	r.logger.Info("planning run completed",
		"status", result.Status,
		"total_cost", result.TotalCost.StringFixed(2),
		"solve_time", out.SolveTime,
		"elapsed", time.Since(started))
	return result, nil
}

// prepare validates the inputs and builds the run-wide structures
func (p *Planner) prepare(pc *dto.PlanningContext, runID string) (*runState, error) {
	if pc == nil {
		return nil, fmt.Errorf("planning context cannot be nil")
	}
	cfg := pc.Config

	net, err := entities.NewNetwork(pc.Nodes, pc.Legs, pc.Trucks)
	if err != nil {
		return nil, entities.NewDataValidationError(err.Error())
	}
	if err := p.validator.ValidateRun(cfg, pc.Costs, pc.Products).Err(); err != nil {
		return nil, err
	}
	if err := p.validator.ValidateLookahead(cfg, net).Err(); err != nil {
		return nil, err
	}
	if err := p.validator.ValidateDemand(net, pc.Products, cfg.Horizon(), pc.Demand).Err(); err != nil {
		return nil, err
	}

	r := &runState{
		id:     runID,
		pc:     pc,
		net:    net,
		labor:  memory.NewLaborRepository(),
		demand: memory.NewDemandRepository(),
		stock:  memory.NewInventoryRepository(),
		base:   logging.RunLogger(p.base, runID),
	}
	r.logger = logging.WithComponent(r.base, "planning")
	if err := r.labor.LoadLaborDays(pc.Labor); err != nil {
		return nil, entities.NewDataValidationError(err.Error())
	}
	if err := r.demand.LoadDemand(pc.Demand); err != nil {
		return nil, entities.NewDataValidationError(err.Error())
	}
	if err := r.stock.LoadInventory(pc.Inventory); err != nil {
		return nil, entities.NewDataValidationError(err.Error())
	}
	if err := r.stock.LoadInTransit(pc.InTransit); err != nil {
		return nil, entities.NewDataValidationError(err.Error())
	}

	r.windows, err = decomposition.PlanWindows(cfg.HorizonStart, cfg.HorizonEnd, cfg.WindowDays, cfg.OverlapDays)
	if err != nil {
		return nil, err
	}
	if err := decomposition.VerifyCoverage(r.windows, cfg.HorizonStart, cfg.HorizonEnd); err != nil {
		return nil, err
	}

	stock, _ := r.stock.GetInitialInventory()
	transit, _ := r.stock.GetInTransit()
	productionDates := r.labor.GetLaborDates(cfg.Horizon())
	if productionDates == nil {
		productionDates = []entities.Date{}
	}
	r.index, err = cohort.Build(net, pc.Products, cfg.Horizon(),
		cohort.Seeds{Inventory: stock, InTransit: transit},
		cohort.Options{
			EnforceShelfLife: cfg.EnforceShelfLife,
			BatchTracking:    cfg.UseBatchTracking,
			ProductionDates:  productionDates,
		})
	if err != nil {
		var dv *entities.DataValidationError
		if errors.As(err, &dv) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to build cohort index: %w", err)
	}

	r.solver = p.cfg.Solver
	if r.solver == nil {
		r.solver, err = solver.New(cfg.Solver, r.base)
		if err != nil {
			return nil, entities.NewDataValidationError(err.Error())
		}
	}
	return r, nil
}

// assemble stitches the committed windows into a priced result
func (p *Planner) assemble(r *runState, out *decomposition.Outcome, opening *entities.Snapshot, started time.Time) (*dto.PlanResult, error) {
	cfg := r.pc.Config
	through := entities.DateRange{Start: cfg.HorizonStart, End: out.CommittedThrough()}

	plan := &entities.Plan{Horizon: through, Opening: opening, Schedule: out.Committed}
	if !through.Empty() {
		demand, err := r.demand.GetDemandInRange(through)
		if err != nil {
			return nil, fmt.Errorf("failed to load committed demand: %w", err)
		}
		for _, d := range demand {
			plan.Demand = append(plan.Demand, *d)
		}
	}

	costs := CostOf(plan, r.pc.Costs, r.net, r.labor)
	result := &dto.PlanResult{
		RunID:     r.id,
		Status:    dto.PlanOptimal,
		Plan:      plan,
		Costs:     costs,
		TotalCost: costs.Total(),
		Windows:   out.Reports,
		SolveTime: out.SolveTime,
		StartedAt: started,
	}
	for _, w := range out.Reports {
		if w.Status != milp.Optimal.String() {
			result.Status = dto.PlanFeasibleWithGap
		}
	}
	return result, nil
}

func (p *Planner) publish(runID string, e events.Event) {
	if p.cfg.Events == nil {
		return
	}
	if err := p.cfg.Events.AppendEvent(runID, e); err != nil {
		logging.WithComponent(p.base, "planning").Warn("failed to publish event", "run_id", runID, "type", e.Type(), "error", err)
	}
}
