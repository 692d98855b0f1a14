package commands

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/vsinha/freshplan/pkg/infrastructure/repositories/scenario"
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
demand:
  - {node: SPOKE, product: BREAD, date: "2025-01-07", quantity: 100}
  - {node: SPOKE, product: BREAD, date: "2025-01-08", quantity: 100}
`

func writeScenario(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "scenario.yaml")
	if err := os.WriteFile(path, []byte(directScenario), 0644); err != nil {
		t.Fatalf("failed to write scenario: %v", err)
	}
	return path
}

func TestPlanCommand_WritesCSV(t *testing.T) {
	outDir := filepath.Join(t.TempDir(), "out")
	var out bytes.Buffer
	cmd := NewPlanCommand(Config{
		Scenario:  writeScenario(t),
		OutputDir: outDir,
		Format:    "csv",
		Verbose:   true,
		UploadURL: "mem://",
	}, &out, nil)

	if err := cmd.Execute(context.Background()); err != nil {
		t.Fatalf("Execute failed: %v", err)
	}

	data, err := os.ReadFile(filepath.Join(outDir, "production.csv"))
	if err != nil {
		t.Fatalf("Expected production.csv: %v", err)
	}
	if !strings.HasPrefix(string(data), "node,product,date,quantity") {
		t.Errorf("Unexpected production.csv: %q", data)
	}

	for _, want := range []string{"Scenario loaded", "committed", "Uploaded 8 artifacts", "Planning complete"} {
		if !strings.Contains(out.String(), want) {
			t.Errorf("Expected output to contain %q, got:\n%s", want, out.String())
		}
	}
}

func TestPlanCommand_TextToStdout(t *testing.T) {
	var out bytes.Buffer
	cmd := NewPlanCommand(Config{Scenario: writeScenario(t), Format: "text"}, &out, nil)
	if err := cmd.Execute(context.Background()); err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	if !strings.Contains(out.String(), "PRODUCTION & DISTRIBUTION PLAN") {
		t.Errorf("Expected text report, got:\n%s", out.String())
	}
}

func TestPlanCommand_Validation(t *testing.T) {
	tests := []struct {
		name   string
		config Config
		want   string
	}{
		{"missing scenario", Config{Format: "text"}, "must specify a -scenario"},
		{"scenario not found", Config{Scenario: "nope.yaml", Format: "text"}, "scenario file not found"},
		{"bad format", Config{Scenario: writeScenario(t), Format: "xml"}, "unsupported output format"},
		{"csv without directory", Config{Scenario: writeScenario(t), Format: "csv"}, "output directory required"},
		{"unknown solver", Config{Scenario: writeScenario(t), Format: "text", Solver: "cplex"}, "unknown solver"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := NewPlanCommand(tt.config, &bytes.Buffer{}, nil).Execute(context.Background())
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Errorf("Expected error containing %q, got %v", tt.want, err)
			}
		})
	}
}

func TestPlanCommand_Help(t *testing.T) {
	var out bytes.Buffer
	if err := NewPlanCommand(Config{Help: true}, &out, nil).Execute(context.Background()); err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	if !strings.Contains(out.String(), "USAGE") {
		t.Error("Expected usage text")
	}
}

func TestGenerateCommand(t *testing.T) {
	dir := t.TempDir()
	cmd := NewGenerateCommand(GenerateConfig{
		Spokes:     3,
		Products:   2,
		Days:       10,
		Start:      "2025-01-06",
		MeanDemand: 50,
		Stock:      1,
		OutputDir:  dir,
		Seed:       42,
	}, &bytes.Buffer{})

	if err := cmd.Execute(context.Background()); err != nil {
		t.Fatalf("Execute failed: %v", err)
	}

	pc, err := scenario.Load(filepath.Join(dir, "scenario.yaml"))
	if err != nil {
		t.Fatalf("Generated scenario does not load: %v", err)
	}
	if len(pc.Nodes) != 5 {
		t.Errorf("Expected 5 nodes, got %d", len(pc.Nodes))
	}
	if len(pc.Legs) != 4 {
		t.Errorf("Expected 4 legs, got %d", len(pc.Legs))
	}
	if len(pc.Products) != 2 {
		t.Errorf("Expected 2 products, got %d", len(pc.Products))
	}
	if len(pc.Demand) == 0 || len(pc.Inventory) == 0 {
		t.Errorf("Expected forecast and stock, got %d demand and %d inventory records", len(pc.Demand), len(pc.Inventory))
	}
	for _, d := range pc.Demand {
		if d.Date.Weekday() == 0 {
			t.Errorf("Expected no Sunday demand, got %+v", d)
		}
	}
	if pc.Config.WindowDays != 7 || pc.Config.OverlapDays != 3 {
		t.Errorf("Expected 7 day windows with 3 days overlap, got %d/%d", pc.Config.WindowDays, pc.Config.OverlapDays)
	}
}

func TestGenerateCommand_Validation(t *testing.T) {
	err := NewGenerateCommand(GenerateConfig{Spokes: 0, Products: 1, Days: 1, OutputDir: t.TempDir()}, &bytes.Buffer{}).
		Execute(context.Background())
	if err == nil || !strings.Contains(err.Error(), "at least one spoke") {
		t.Errorf("Expected spoke validation error, got %v", err)
	}
}
