package scenario

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/vsinha/freshplan/pkg/application/services/planning"
	"github.com/vsinha/freshplan/pkg/domain/entities"
)

const directScenario = `
name: direct
run:
  start: "2025-01-06"
  end: "2025-01-09"
  window_days: 4
  overlap_days: 0
  time_limit: 30s
  relative_gap: 0
nodes:
  - id: MFG
    role: manufacturing
    production_rate: 100
  - id: SPOKE
    role: spoke
legs:
  - origin: MFG
    destination: SPOKE
    transit_days: 1
    cost_per_unit: 0.5
products:
  - id: BREAD
    ambient_shelf_life: 5
    frozen_shelf_life: 60
    thawed_shelf_life: 5
shifts:
  - weekdays: [mon, tue, wed, thu, fri]
    fixed: true
    fixed_hours: 8
    max_overtime_hours: 2
    regular_rate: 20
    overtime_rate: 30
costs:
  production_per_unit: 1
  shortage_per_unit: 10
forecast_csv: forecast.csv
`

const forecastCSV = `node,product,date,quantity
SPOKE,BREAD,2025-01-07,100
SPOKE,BREAD,2025-01-08,100
SPOKE,BREAD,2025-01-09,100
`

func writeScenario(t *testing.T, yaml string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "scenario.yaml")
	if err := os.WriteFile(path, []byte(yaml), 0644); err != nil {
		t.Fatalf("failed to write scenario: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "forecast.csv"), []byte(forecastCSV), 0644); err != nil {
		t.Fatalf("failed to write forecast: %v", err)
	}
	return path
}

func TestLoad(t *testing.T) {
	pc, err := Load(writeScenario(t, directScenario))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if len(pc.Nodes) != 2 || len(pc.Legs) != 1 || len(pc.Products) != 1 {
		t.Fatalf("Expected 2 nodes, 1 leg, 1 product, got %d, %d, %d", len(pc.Nodes), len(pc.Legs), len(pc.Products))
	}
	if pc.Legs[0].ID != "MFG-SPOKE" {
		t.Errorf("Expected derived leg id MFG-SPOKE, got %s", pc.Legs[0].ID)
	}
	if len(pc.Labor) != 4 {
		t.Errorf("Expected a shift on each of the 4 weekdays, got %d", len(pc.Labor))
	}
	if len(pc.Demand) != 3 || pc.TotalDemand() != 300 {
		t.Errorf("Expected 3 forecast records totalling 300, got %d totalling %g", len(pc.Demand), pc.TotalDemand())
	}

	cfg := pc.Config
	if cfg.WindowDays != 4 || cfg.OverlapDays != 0 {
		t.Errorf("Expected a single 4 day window, got %d/%d", cfg.WindowDays, cfg.OverlapDays)
	}
	if cfg.TimeLimit != 30*time.Second {
		t.Errorf("Expected time limit 30s, got %v", cfg.TimeLimit)
	}
	if !cfg.AllowShortages || cfg.Solver != "branchbound" {
		t.Errorf("Expected defaults for unset fields, got shortages=%v solver=%q", cfg.AllowShortages, cfg.Solver)
	}
	if !pc.Costs.WasteMultiplier.Equal(entities.DefaultCostStructure().WasteMultiplier) {
		t.Errorf("Expected default waste multiplier, got %s", pc.Costs.WasteMultiplier)
	}
}

func TestLoad_PlansEndToEnd(t *testing.T) {
	pc, err := Load(writeScenario(t, directScenario))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	result, err := planning.NewPlanner(planning.Config{}).Plan(context.Background(), pc)
	if err != nil {
		t.Fatalf("Plan failed: %v", err)
	}
	totals := result.Plan.Totals()
	if totals.Shortage > 1e-6 {
		t.Errorf("Expected the forecast to be met, got %g short", totals.Shortage)
	}
	if totals.Consumed < 300-1e-6 {
		t.Errorf("Expected 300 units consumed, got %g", totals.Consumed)
	}
}

func TestLabor_ExplicitDayOverridesShift(t *testing.T) {
	doc, err := Parse([]byte(directScenario + `
labor:
  - date: "2025-01-07"
    fixed: false
    max_non_fixed_hours: 6
    minimum_paid_hours: 4
    non_fixed_rate: 40
`))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	pc, err := doc.ToContext()
	if err != nil {
		t.Fatalf("ToContext failed: %v", err)
	}

	if len(pc.Labor) != 4 {
		t.Fatalf("Expected 4 labor days, got %d", len(pc.Labor))
	}
	tuesday := pc.Labor[1]
	if tuesday.Date != entities.NewDate(2025, time.January, 7) || tuesday.IsFixedDay {
		t.Errorf("Expected Tuesday to be a non-fixed day, got %s fixed=%v", tuesday.Date, tuesday.IsFixedDay)
	}
}

func TestParse_UnknownField(t *testing.T) {
	_, err := Parse([]byte("run:\n  start: \"2025-01-06\"\n  windows: 3\n"))
	if err == nil || !strings.Contains(err.Error(), "windows") {
		t.Errorf("Expected an unknown field error, got %v", err)
	}
}

func TestToContext_CollectsProblems(t *testing.T) {
	doc := &Document{
		Run: RunSpec{Start: "2025-01-06", End: "Jan 9"},
		Nodes: []NodeSpec{
			{ID: "MFG", Role: "warehouse"},
			{ID: "HUB", Role: "hub", Storage: []string{"thawed"}},
		},
		Trucks: []TruckSpec{{ID: "T1", Origin: "MFG", Destinations: []string{"HUB"}, DayOfWeek: "someday"}},
		Demand: []DemandSpec{{Node: "HUB", Product: "BREAD", Date: "2025-01-07", Quantity: -5}},
	}

	_, err := doc.ToContext()
	var dv *entities.DataValidationError
	if !errors.As(err, &dv) {
		t.Fatalf("Expected DataValidationError, got %v", err)
	}
	if len(dv.Problems) != 5 {
		t.Errorf("Expected 5 problems, got %d: %v", len(dv.Problems), dv.Problems)
	}
}

func TestParseWeekday(t *testing.T) {
	tests := []struct {
		in      string
		want    time.Weekday
		wantErr bool
	}{
		{"mon", time.Monday, false},
		{"Thursday", time.Thursday, false},
		{"thurs", time.Thursday, false},
		{" SAT ", time.Saturday, false},
		{"mo", 0, true},
		{"monk", 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseWeekday(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("Expected error=%v, got %v", tt.wantErr, err)
			}
			if !tt.wantErr && got != tt.want {
				t.Errorf("Expected %s, got %s", tt.want, got)
			}
		})
	}
}

func TestLoad_SampleScenario(t *testing.T) {
	pc, err := Load(filepath.Join("..", "..", "..", "..", "scenarios", "three_echelon", "scenario.yaml"))
	if err != nil {
		t.Fatalf("Failed to load the bundled scenario: %v", err)
	}
	if len(pc.Trucks) == 0 || len(pc.Demand) == 0 || len(pc.Inventory) == 0 {
		t.Errorf("Expected trucks, forecast and stock in the bundled scenario, got %d, %d, %d",
			len(pc.Trucks), len(pc.Demand), len(pc.Inventory))
	}
}
