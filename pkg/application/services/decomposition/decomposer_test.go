package decomposition

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/vsinha/freshplan/pkg/application/services/cohort"
	"github.com/vsinha/freshplan/pkg/application/services/extraction"
	"github.com/vsinha/freshplan/pkg/application/services/formulation"
	testhelpers "github.com/vsinha/freshplan/pkg/application/services/testing"
	"github.com/vsinha/freshplan/pkg/domain/entities"
	"github.com/vsinha/freshplan/pkg/domain/milp"
	"github.com/vsinha/freshplan/pkg/infrastructure/checkpoint"
	"github.com/vsinha/freshplan/pkg/infrastructure/events"
	"github.com/vsinha/freshplan/pkg/infrastructure/metrics"
	"github.com/vsinha/freshplan/pkg/infrastructure/solver/branchbound"
)

type harness struct {
	fx      *testhelpers.Fixture
	dec     *Decomposer
	val     *extraction.Validator
	store   *events.InMemoryEventStore
	metrics *metrics.Metrics
}

func newHarness(t *testing.T, fx *testhelpers.Fixture, cp checkpoint.Manager) *harness {
	t.Helper()
	stock, _ := fx.Inventory.GetInitialInventory()
	transit, _ := fx.Inventory.GetInTransit()
	dates := fx.Labor.GetLaborDates(fx.Horizon())
	if dates == nil {
		dates = []entities.Date{}
	}
	idx, err := cohort.Build(fx.Network, fx.Products, fx.Horizon(),
		cohort.Seeds{Inventory: stock, InTransit: transit},
		cohort.Options{EnforceShelfLife: true, BatchTracking: true, ProductionDates: dates})
	if err != nil {
		t.Fatalf("Failed to build cohort index: %v", err)
	}

	h := &harness{
		fx:      fx,
		val:     extraction.NewValidator(idx),
		store:   events.NewInMemoryEventStore(),
		metrics: metrics.New("test", prometheus.NewRegistry()),
	}
	h.dec = NewDecomposer(Deps{
		Builder: formulation.NewBuilder(formulation.Deps{
			Index:          idx,
			Costs:          fx.Costs,
			Labor:          fx.Labor,
			Demand:         fx.Demand,
			AllowShortages: fx.Config.AllowShortages,
		}),
		Solver:      branchbound.New(nil),
		Validator:   h.val,
		Events:      h.store,
		Metrics:     h.metrics,
		Checkpoints: cp,
	})
	return h
}

func (h *harness) request(t *testing.T, runID string, length, overlap int) Request {
	t.Helper()
	hz := h.fx.Horizon()
	windows, err := PlanWindows(hz.Start, hz.End, length, overlap)
	if err != nil {
		t.Fatalf("PlanWindows failed: %v", err)
	}
	return Request{
		RunID:   runID,
		Windows: windows,
		Opening: h.fx.Opening(),
		Options: milp.SolveOptions{TimeLimit: h.fx.Config.TimeLimit, RelativeGap: h.fx.Config.RelativeGap},
	}
}

func (h *harness) plan(out *Outcome) *entities.Plan {
	hz := h.fx.Horizon()
	demand, _ := h.fx.Demand.GetDemandInRange(entities.DateRange{Start: hz.Start, End: out.CommittedThrough()})
	plan := &entities.Plan{Horizon: entities.DateRange{Start: hz.Start, End: out.CommittedThrough()}, Opening: h.fx.Opening(), Schedule: out.Committed}
	for _, rec := range demand {
		plan.Demand = append(plan.Demand, *rec)
	}
	return plan
}

// dailyFixture stocks the spoke for the first day and produces for the rest
func dailyFixture() *testhelpers.Fixture {
	fx := testhelpers.BuildDirect(6, 10)
	fx.AddStock("SPOKE", "BREAD", -1, 100)
	fx.AddLabor(8, 0, 0, 1, 2, 3, 4, 5)
	for day := 0; day < 6; day++ {
		fx.AddDemand("SPOKE", "BREAD", day, 100)
	}
	return fx
}

func near(a, b float64) bool {
	return math.Abs(a-b) < 1e-3
}

func TestRun_DecompositionConsistency(t *testing.T) {
	single := newHarness(t, dailyFixture(), nil)
	whole, err := single.dec.Run(context.Background(), single.request(t, "single", 6, 0))
	if err != nil {
		t.Fatalf("Single window run failed: %v", err)
	}

	multi := newHarness(t, dailyFixture(), nil)
	split, err := multi.dec.Run(context.Background(), multi.request(t, "multi", 4, 2))
	if err != nil {
		t.Fatalf("Multi window run failed: %v", err)
	}
	if len(whole.Reports) != 1 || len(split.Reports) != 2 {
		t.Fatalf("Expected 1 and 2 window reports, got %d and %d", len(whole.Reports), len(split.Reports))
	}

	a, b := whole.Committed.Totals(), split.Committed.Totals()
	if !near(a.Shortage, b.Shortage) || !near(a.Shortage, 0) {
		t.Errorf("Expected no shortage either way, got %g and %g", a.Shortage, b.Shortage)
	}
	if !near(a.Consumed, 600) || !near(b.Consumed, 600) {
		t.Errorf("Expected all 600 units consumed, got %g and %g", a.Consumed, b.Consumed)
	}
	if !near(a.Produced, b.Produced) || !near(a.Shipped, b.Shipped) {
		t.Errorf("Expected matching production and shipping, got %+v and %+v", a, b)
	}

	for _, h := range []struct {
		name string
		hn   *harness
		out  *Outcome
	}{{"single", single, whole}, {"multi", multi, split}} {
		if err := h.hn.val.ValidatePlan(h.hn.plan(h.out)); err != nil {
			t.Errorf("%s: stitched plan failed re-check: %v", h.name, err)
		}
		if h.out.CommittedThrough() != testhelpers.Monday.AddDays(5) {
			t.Errorf("%s: expected commits through the horizon end, got %s", h.name, h.out.CommittedThrough())
		}
	}

	solved, _ := multi.store.ReadEvents("multi", 1)
	counts := make(map[string]int)
	for _, e := range solved {
		counts[e.Type()]++
	}
	if counts[events.WindowPlannedEvent] != 2 || counts[events.WindowSolvedEvent] != 2 || counts[events.WindowCommittedEvent] != 2 {
		t.Errorf("Expected two events of each window stage, got %v", counts)
	}
	if got := testutil.ToFloat64(multi.metrics.WindowsSolved.WithLabelValues(branchbound.Name, "Optimal")); got != 2 {
		t.Errorf("Expected 2 optimal windows in metrics, got %g", got)
	}
}

func TestRun_InfeasibleWindowKeepsEarlierCommits(t *testing.T) {
	fx := testhelpers.BuildSpokeStock(4)
	fx.Config.AllowShortages = false
	fx.AddDemand("SPOKE", "BREAD", 0, 100)
	fx.AddDemand("SPOKE", "BREAD", 3, 10000)

	h := newHarness(t, fx, nil)
	out, err := h.dec.Run(context.Background(), h.request(t, "run", 2, 0))

	var iw *entities.InfeasibleWindowError
	if !errors.As(err, &iw) {
		t.Fatalf("Expected InfeasibleWindowError, got %v", err)
	}
	if !errors.Is(err, entities.ErrInfeasibleWindow) || !IsWindowFailure(err) {
		t.Error("Expected error to match ErrInfeasibleWindow")
	}
	if iw.Window.Index != 1 || iw.CommittedWindows != 1 {
		t.Errorf("Expected failure in window 1 after one commit, got window %d after %d", iw.Window.Index, iw.CommittedWindows)
	}
	if iw.Cause != entities.CauseCapacity {
		t.Errorf("Expected capacity cause, got %s", iw.Cause)
	}
	if !near(iw.Diagnostics.OpeningInventory, 418) {
		t.Errorf("Expected 418 units carried into the failed window, got %g", iw.Diagnostics.OpeningInventory)
	}

	if out == nil || len(out.Reports) != 1 {
		t.Fatalf("Expected the first window to stay committed, got %+v", out)
	}
	if !near(out.Committed.Totals().Consumed, 100) {
		t.Errorf("Expected 100 units consumed in the committed window, got %g", out.Committed.Totals().Consumed)
	}
	if got := testutil.ToFloat64(h.metrics.WindowsFailed.WithLabelValues("capacity")); got != 1 {
		t.Errorf("Expected one failed window in metrics, got %g", got)
	}
	failed, _ := h.store.ReadEvents("run", 1)
	if last := failed[len(failed)-1]; last.Type() != events.WindowFailedEvent {
		t.Errorf("Expected the last event to be %s, got %s", events.WindowFailedEvent, last.Type())
	}
}

func TestRun_ResumeFromCheckpoint(t *testing.T) {
	mgr, err := checkpoint.NewManager(checkpoint.Config{Enabled: true, Dir: t.TempDir()})
	if err != nil {
		t.Fatalf("NewManager failed: %v", err)
	}
	ctx := context.Background()

	h := newHarness(t, dailyFixture(), mgr)
	full := h.request(t, "resumed", 4, 2)

	first := full
	first.Windows = full.Windows[:1]
	if _, err := h.dec.Run(ctx, first); err != nil {
		t.Fatalf("First window failed: %v", err)
	}

	cp, err := mgr.Load(ctx, "resumed")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cp.NextWindow != 1 || len(cp.Reports) != 1 {
		t.Fatalf("Expected a checkpoint before window 1, got next %d with %d reports", cp.NextWindow, len(cp.Reports))
	}
	if cp.Snapshot.AsOf != full.Windows[0].CommitEnd {
		t.Errorf("Expected snapshot as of %s, got %s", full.Windows[0].CommitEnd, cp.Snapshot.AsOf)
	}

	resume := full
	resume.Opening = nil
	resume.Resume = cp
	out, err := h.dec.Run(ctx, resume)
	if err != nil {
		t.Fatalf("Resumed run failed: %v", err)
	}
	if len(out.Reports) != 2 {
		t.Errorf("Expected reports for both windows, got %d", len(out.Reports))
	}
	if totals := out.Committed.Totals(); !near(totals.Consumed, 600) || !near(totals.Shortage, 0) {
		t.Errorf("Expected 600 consumed and no shortage, got %+v", totals)
	}
	if err := h.val.ValidatePlan(h.plan(out)); err != nil {
		t.Errorf("Resumed plan failed re-check: %v", err)
	}

	final, _ := mgr.Load(ctx, "resumed")
	if final.NextWindow != 2 {
		t.Errorf("Expected the final checkpoint to point past the last window, got %d", final.NextWindow)
	}
}

func TestRun_Cancelled(t *testing.T) {
	h := newHarness(t, dailyFixture(), nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	out, err := h.dec.Run(ctx, h.request(t, "cancelled", 4, 2))
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("Expected context.Canceled, got %v", err)
	}
	if out == nil || len(out.Reports) != 0 {
		t.Errorf("Expected an empty outcome, got %+v", out)
	}
}

func TestCarryForward(t *testing.T) {
	w := entities.Window{Index: 0, Start: d(0), End: d(3), CommitEnd: d(1)}
	spoke := entities.CohortKey{Node: "SPOKE", Product: "BREAD", ProdDate: d(-1), State: entities.Ambient, ThawDate: entities.NoDate}
	mfg := entities.CohortKey{Node: "MFG", Product: "BREAD", ProdDate: d(1), State: entities.Ambient, ThawDate: entities.NoDate}

	opening := entities.NewSnapshot(d(-1))
	opening.InTransit = []entities.InTransitRecord{
		{Leg: "L", Product: "BREAD", ProdDate: d(-2), State: entities.Ambient, ThawDate: entities.NoDate, Arrival: d(1), Quantity: 5},
		{Leg: "L", Product: "BREAD", ProdDate: d(-2), State: entities.Ambient, ThawDate: entities.NoDate, Arrival: d(3), Quantity: 7},
	}
	ws := &entities.WindowSolution{
		Window:  w,
		Opening: opening,
		Schedule: entities.Schedule{
			Inventory: []entities.CohortQuantity{
				{Cohort: spoke, Date: d(0), Quantity: 50},
				{Cohort: spoke, Date: d(1), Quantity: 20},
				{Cohort: spoke, Date: d(2), Quantity: 10},
			},
			Shipments: []entities.ShipmentRecord{
				{Leg: "L", Cohort: mfg, Departure: d(1), Arrival: d(2), Quantity: 30},
				{Leg: "L", Cohort: mfg, Departure: d(0), Arrival: d(1), Quantity: 40},
				{Leg: "L", Cohort: mfg, Departure: d(2), Arrival: d(3), Quantity: 60},
			},
		},
	}

	snap := CarryForward(ws)
	if snap.AsOf != d(1) {
		t.Errorf("Expected snapshot as of the commit end, got %s", snap.AsOf)
	}
	if snap.TotalInventory() != 20 || snap.Inventory[spoke] != 20 {
		t.Errorf("Expected 20 units on hand, got %v", snap.Inventory)
	}
	// 7 from the opening arrives after the commit, 30 departs within it; 60 departs in the overlap
	if snap.TotalInTransit() != 37 || len(snap.InTransit) != 2 {
		t.Errorf("Expected 37 units in transit over 2 records, got %v", snap.InTransit)
	}
}
