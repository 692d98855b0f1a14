package extraction

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/vsinha/freshplan/pkg/application/services/cohort"
	"github.com/vsinha/freshplan/pkg/application/services/formulation"
	testhelpers "github.com/vsinha/freshplan/pkg/application/services/testing"
	"github.com/vsinha/freshplan/pkg/domain/entities"
	"github.com/vsinha/freshplan/pkg/domain/milp"
	"github.com/vsinha/freshplan/pkg/infrastructure/solver/branchbound"
)

type solved struct {
	f   *formulation.Formulation
	res *milp.Result
	ws  *entities.WindowSolution
	v   *Validator
}

func solveFixture(t *testing.T, fx *testhelpers.Fixture) solved {
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

	b := formulation.NewBuilder(formulation.Deps{
		Index:          idx,
		Costs:          fx.Costs,
		Labor:          fx.Labor,
		Demand:         fx.Demand,
		AllowShortages: fx.Config.AllowShortages,
	})
	h := fx.Horizon()
	w := entities.Window{Start: h.Start, End: h.End, CommitEnd: h.End}
	f, err := b.Build(context.Background(), w, fx.Opening())
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}

	res, err := branchbound.New(nil).Solve(context.Background(), f.Model, milp.SolveOptions{TimeLimit: 30 * time.Second})
	if err != nil {
		t.Fatalf("Solve failed: %v", err)
	}
	if !res.HasSolution() {
		t.Fatalf("Expected a solution, got %s", res.Status)
	}

	ws, err := Extract(f, res)
	if err != nil {
		t.Fatalf("Extract failed: %v", err)
	}
	return solved{f: f, res: res, ws: ws, v: NewValidator(idx)}
}

func near(a, b float64) bool {
	return math.Abs(a-b) < 1e-4
}

func TestExtract_InsufficientInventory(t *testing.T) {
	fx := testhelpers.BuildSpokeStock(2)
	fx.AddDemand("SPOKE", "BREAD", 0, 300)
	fx.AddDemand("SPOKE", "BREAD", 1, 300)

	s := solveFixture(t, fx)
	totals := s.ws.Totals()

	if !near(totals.Consumed, 518) {
		t.Errorf("Expected consumption 518, got %g", totals.Consumed)
	}
	if !near(totals.Shortage, 82) {
		t.Errorf("Expected shortage 82, got %g", totals.Shortage)
	}
	if totals.Disposed != 0 || totals.Produced != 0 {
		t.Errorf("Expected no disposal or production, got %g and %g", totals.Disposed, totals.Produced)
	}
	if err := s.v.Validate(s.ws); err != nil {
		t.Errorf("Validate failed: %v", err)
	}
}

func TestExtract_ExactMatch(t *testing.T) {
	fx := testhelpers.BuildSpokeStock(2)
	fx.AddDemand("SPOKE", "BREAD", 0, 300)
	fx.AddDemand("SPOKE", "BREAD", 1, 218)

	s := solveFixture(t, fx)
	totals := s.ws.Totals()

	if !near(totals.Consumed, 518) || totals.Shortage != 0 {
		t.Errorf("Expected consumption 518 and no shortage, got %g and %g", totals.Consumed, totals.Shortage)
	}
	if len(s.ws.Inventory) != 1 || !near(s.ws.Inventory[0].Quantity, 218) {
		t.Errorf("Expected 218 units held overnight, got %+v", s.ws.Inventory)
	}
	if err := s.v.Validate(s.ws); err != nil {
		t.Errorf("Validate failed: %v", err)
	}
}

func TestExtract_NoCircularity(t *testing.T) {
	fx := testhelpers.BuildDirect(1, 10)
	fx.AddStock("SPOKE", "BREAD", -1, 300)
	fx.AddDemand("SPOKE", "BREAD", 0, 250)

	s := solveFixture(t, fx)
	totals := s.ws.Totals()
	if !near(totals.Consumed, 250) || totals.Shortage != 0 {
		t.Errorf("Expected consumption 250 and no shortage, got %g and %g", totals.Consumed, totals.Shortage)
	}
	if len(s.ws.Inventory) != 1 || !near(s.ws.Inventory[0].Quantity, 50) {
		t.Errorf("Expected 50 units left over, got %+v", s.ws.Inventory)
	}
}

func TestExtract_TruckedShipments(t *testing.T) {
	fx := testhelpers.BuildThreeEchelon(4)
	fx.AddLabor(8, 0, 0, 1, 2, 3)
	fx.AddDemand("SPOKE", "BREAD", 3, 50)

	s := solveFixture(t, fx)

	if s.ws.Totals().Shortage != 0 {
		t.Fatalf("Expected demand to be served, got shortage %g", s.ws.Totals().Shortage)
	}
	trucked := 0.0
	for _, sh := range s.ws.Shipments {
		switch sh.Leg {
		case "MFG-HUB":
			if sh.Truck != "T-MON" {
				t.Errorf("Expected MFG-HUB shipment on T-MON, got %q", sh.Truck)
			}
			if sh.Departure.Weekday() != time.Monday {
				t.Errorf("Expected a Monday departure, got %s", sh.Departure)
			}
			if sh.ArrivalCohort.State != entities.Frozen {
				t.Errorf("Expected goods to arrive frozen, got %s", sh.ArrivalCohort)
			}
			trucked += sh.Quantity
		case "HUB-SPOKE":
			if sh.Truck != "" {
				t.Errorf("Expected no truck on an unscheduled lane, got %q", sh.Truck)
			}
			if sh.ArrivalCohort.State != entities.Thawed {
				t.Errorf("Expected goods to thaw at SPOKE, got %s", sh.ArrivalCohort)
			}
		}
	}
	if trucked < 50-1e-4 {
		t.Errorf("Expected at least 50 units on the truck, got %g", trucked)
	}

	if len(s.ws.TruckLoads) != 1 {
		t.Fatalf("Expected one truck load, got %d", len(s.ws.TruckLoads))
	}
	tl := s.ws.TruckLoads[0]
	if want := int(math.Ceil(tl.Units/320 - 1e-9)); tl.Pallets != want {
		t.Errorf("Expected %d pallets for %g units, got %d", want, tl.Units, tl.Pallets)
	}
	if err := s.v.Validate(s.ws); err != nil {
		t.Errorf("Validate failed: %v", err)
	}
}

func TestValidate_DetectsTampering(t *testing.T) {
	tests := []struct {
		name   string
		check  string
		mutate func(ws *entities.WindowSolution)
	}{
		{"consumption raised", "demand", func(ws *entities.WindowSolution) {
			ws.Consumption[0].Quantity += 10
		}},
		{"inventory dropped", "balance", func(ws *entities.WindowSolution) {
			ws.Inventory = nil
		}},
		{"shortage removed", "demand", func(ws *entities.WindowSolution) {
			ws.Shortages = nil
		}},
		{"stock past expiry", "shelf-life", func(ws *entities.WindowSolution) {
			q := ws.Inventory[0]
			q.Date = q.Date.AddDays(30)
			ws.Inventory = append(ws.Inventory, q)
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fx := testhelpers.BuildSpokeStock(2)
			fx.AddDemand("SPOKE", "BREAD", 0, 200)
			fx.AddDemand("SPOKE", "BREAD", 1, 400)
			s := solveFixture(t, fx)

			tt.mutate(s.ws)
			err := s.v.Validate(s.ws)

			var cv *entities.ConservationViolationError
			if !errors.As(err, &cv) {
				t.Fatalf("Expected ConservationViolationError, got %v", err)
			}
			if !errors.Is(err, entities.ErrConservationViolation) {
				t.Error("Expected error to match ErrConservationViolation")
			}
			found := false
			for _, v := range cv.Violations {
				if v.Check == tt.check {
					found = true
				}
			}
			if !found {
				t.Errorf("Expected a %s violation, got %v", tt.check, cv.Violations)
			}
		})
	}
}

func TestValidate_TruckChecks(t *testing.T) {
	fx := testhelpers.BuildThreeEchelon(4)
	fx.AddLabor(8, 0, 0, 1, 2, 3)
	fx.AddDemand("SPOKE", "BREAD", 3, 50)
	s := solveFixture(t, fx)

	tests := []struct {
		name   string
		check  string
		mutate func(ws *entities.WindowSolution)
	}{
		{"pallets rounded down", "pallet-ceiling", func(ws *entities.WindowSolution) {
			ws.TruckLoads[0].Pallets--
		}},
		{"overloaded", "vehicle-capacity", func(ws *entities.WindowSolution) {
			ws.TruckLoads[0].Units = 20000
			ws.TruckLoads[0].Pallets = 63
		}},
		{"wrong weekday", "truck-weekday", func(ws *entities.WindowSolution) {
			ws.TruckLoads[0].Date = ws.TruckLoads[0].Date.AddDays(1)
		}},
		{"unassigned", "truck-assignment", func(ws *entities.WindowSolution) {
			for i := range ws.Shipments {
				if ws.Shipments[i].Leg == "MFG-HUB" {
					ws.Shipments[i].Truck = ""
				}
			}
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ws := *s.ws
			ws.Shipments = append([]entities.ShipmentRecord(nil), s.ws.Shipments...)
			ws.TruckLoads = append([]entities.TruckLoadRecord(nil), s.ws.TruckLoads...)
			tt.mutate(&ws)

			var cv *entities.ConservationViolationError
			if !errors.As(s.v.Validate(&ws), &cv) {
				t.Fatalf("Expected ConservationViolationError")
			}
			found := false
			for _, v := range cv.Violations {
				if v.Check == tt.check {
					found = true
				}
			}
			if !found {
				t.Errorf("Expected a %s violation, got %v", tt.check, cv.Violations)
			}
		})
	}
}

func TestExtract_RequiresSolution(t *testing.T) {
	fx := testhelpers.BuildSpokeStock(1)
	s := solveFixture(t, fx)

	if _, err := Extract(s.f, &milp.Result{Status: milp.Infeasible}); err == nil {
		t.Error("Expected error for a result without a solution")
	}
	short := &milp.Result{Status: milp.Optimal, Values: []float64{0}}
	if _, err := Extract(s.f, short); err == nil {
		t.Error("Expected error for a value vector of the wrong length")
	}
}
