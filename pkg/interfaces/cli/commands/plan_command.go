package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/vsinha/freshplan/pkg/application/dto"
	"github.com/vsinha/freshplan/pkg/application/services/planning"
	"github.com/vsinha/freshplan/pkg/infrastructure/checkpoint"
	"github.com/vsinha/freshplan/pkg/infrastructure/events"
	"github.com/vsinha/freshplan/pkg/infrastructure/metrics"
	"github.com/vsinha/freshplan/pkg/infrastructure/repositories/scenario"
	"github.com/vsinha/freshplan/pkg/infrastructure/storage"
	"github.com/vsinha/freshplan/pkg/interfaces/cli/output"
)

// Config holds configuration for the plan command
type Config struct {
	Scenario      string
	OutputDir     string
	Format        string
	Verbose       bool
	Solver        string        // overrides the scenario's solver when set
	TimeLimit     time.Duration // overrides the scenario's per-window limit when positive
	UploadURL     string        // bucket URL such as s3://plans or file:///tmp/plans
	UploadPrefix  string
	CheckpointDir string
	Resume        string // run id to continue from its checkpoint
	Host          bool
	Help          bool
}

// PlanCommand loads a scenario, plans it and writes the result
type PlanCommand struct {
	config Config
	out    io.Writer
	logger *slog.Logger
}

// NewPlanCommand creates a new plan command with the given configuration
func NewPlanCommand(config Config, out io.Writer, logger *slog.Logger) *PlanCommand {
	if out == nil {
		out = os.Stdout
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &PlanCommand{config: config, out: out, logger: logger}
}

// Execute runs the plan command. A run that fails part way still writes the
// windows it committed before returning the error.
func (c *PlanCommand) Execute(ctx context.Context) error {
	if c.config.Help {
		c.showHelp()
		return nil
	}
	if err := c.validateInputs(); err != nil {
		return fmt.Errorf("validation error: %w", err)
	}

	if c.config.Verbose {
		c.printHeader()
		fmt.Fprintln(c.out, "📂 Loading scenario...")
	}
	pc, err := scenario.Load(c.config.Scenario)
	if err != nil {
		return fmt.Errorf("error loading scenario: %w", err)
	}
	if c.config.Solver != "" {
		pc.Config.Solver = c.config.Solver
	}
	if c.config.TimeLimit > 0 {
		pc.Config.TimeLimit = c.config.TimeLimit
	}

	if c.config.Verbose {
		fmt.Fprintf(c.out, "✅ Scenario loaded:\n")
		fmt.Fprintf(c.out, "  Nodes: %d\n", len(pc.Nodes))
		fmt.Fprintf(c.out, "  Legs: %d\n", len(pc.Legs))
		fmt.Fprintf(c.out, "  Trucks: %d\n", len(pc.Trucks))
		fmt.Fprintf(c.out, "  Products: %d\n", len(pc.Products))
		fmt.Fprintf(c.out, "  Labor Days: %d\n", len(pc.Labor))
		fmt.Fprintf(c.out, "  Demand: %d records, %.0f units\n", len(pc.Demand), pc.TotalDemand())
		fmt.Fprintf(c.out, "  Horizon: %s\n\n", pc.Config.Horizon())
	}

	checkpoints, err := checkpoint.NewManager(checkpoint.Config{
		Enabled: c.config.CheckpointDir != "",
		Dir:     c.config.CheckpointDir,
	})
	if err != nil {
		return fmt.Errorf("failed to set up checkpoints: %w", err)
	}

	store := events.NewInMemoryEventStore()
	if c.config.Verbose {
		if err := store.Subscribe(events.WindowTypes, &events.HandlerFunc{Types: events.WindowTypes, Fn: c.progress}); err != nil {
			return fmt.Errorf("failed to subscribe to window events: %w", err)
		}
	}
	planner := planning.NewPlanner(planning.Config{
		Events:      store,
		Metrics:     metrics.New("freshplan", prometheus.NewRegistry()),
		Checkpoints: checkpoints,
		Logger:      c.logger,
	})

	if c.config.Verbose {
		fmt.Fprintln(c.out, "🔄 Planning...")
	}
	var result *dto.PlanResult
	if c.config.Resume != "" {
		result, err = planner.Resume(ctx, pc, c.config.Resume)
	} else {
		result, err = planner.Plan(ctx, pc)
	}
	if result == nil {
		return fmt.Errorf("planning failed: %w", err)
	}
	planErr := err
	if planErr != nil {
		fmt.Fprintf(c.out, "⚠️  Planning stopped early, writing %d committed windows: %v\n", len(result.Windows), planErr)
	}

	outputConfig := output.Config{
		Format:    c.config.Format,
		OutputDir: c.config.OutputDir,
		Verbose:   c.config.Verbose,
		Inputs:    map[string]string{"scenario": c.config.Scenario},
		Uploading: c.config.UploadURL != "",
	}
	if c.config.Host {
		outputConfig.Host = output.DetectHost()
	}

	artifacts, err := output.Generate(result, outputConfig, c.out)
	if err != nil {
		return errors.Join(planErr, fmt.Errorf("error generating output: %w", err))
	}

	if c.config.UploadURL != "" {
		if err := c.upload(ctx, result, artifacts); err != nil {
			return errors.Join(planErr, err)
		}
	}

	if c.config.Verbose && planErr == nil {
		fmt.Fprintln(c.out, "🏁 Planning complete!")
	}
	return planErr
}

func (c *PlanCommand) upload(ctx context.Context, result *dto.PlanResult, artifacts []storage.Artifact) error {
	bucket, err := storage.Open(ctx, c.config.UploadURL, c.config.UploadPrefix)
	if err != nil {
		return fmt.Errorf("failed to open upload bucket: %w", err)
	}
	defer bucket.Close()

	manifest, err := bucket.Publish(ctx, result.RunID, string(result.Status), artifacts)
	if err != nil {
		return fmt.Errorf("failed to upload results: %w", err)
	}
	if c.config.Verbose {
		fmt.Fprintf(c.out, "☁️  Uploaded %d artifacts to %s\n", len(manifest.Artifacts), bucket.URI(result.RunID))
	}
	return nil
}

// progress prints window events as the run advances
func (c *PlanCommand) progress(e events.Event) error {
	switch data := e.Data().(type) {
	case events.WindowCommitted:
		fmt.Fprintf(c.out, "  ✔ %s committed\n", data.Window)
	case events.WindowFailed:
		fmt.Fprintf(c.out, "  ✘ %s failed: %s\n", data.Window, data.Cause)
	}
	return nil
}

// validateInputs validates the command configuration
func (c *PlanCommand) validateInputs() error {
	if c.config.Scenario == "" {
		return fmt.Errorf("must specify a -scenario file")
	}
	if _, err := os.Stat(c.config.Scenario); os.IsNotExist(err) {
		return fmt.Errorf("scenario file not found: %s", c.config.Scenario)
	}
	if !validFormat(c.config.Format) {
		return fmt.Errorf("unsupported output format %q, expected one of %v", c.config.Format, output.Formats)
	}
	return nil
}

func validFormat(format string) bool {
	for _, f := range output.Formats {
		if f == format {
			return true
		}
	}
	return false
}

// printHeader prints the command header information
func (c *PlanCommand) printHeader() {
	fmt.Fprintf(c.out, "🚀 freshplan\n")
	fmt.Fprintf(c.out, "Scenario: %s\n", c.config.Scenario)
	fmt.Fprintf(c.out, "Output format: %s\n", c.config.Format)
	if c.config.OutputDir != "" {
		abs, err := filepath.Abs(c.config.OutputDir)
		if err != nil {
			abs = c.config.OutputDir
		}
		fmt.Fprintf(c.out, "Output directory: %s\n", abs)
	}
	if c.config.Resume != "" {
		fmt.Fprintf(c.out, "Resuming run: %s\n", c.config.Resume)
	}
	fmt.Fprintln(c.out)
}

// showHelp displays the help message
func (c *PlanCommand) showHelp() {
	fmt.Fprint(c.out, `freshplan - production and distribution planning for perishable goods

USAGE:
    freshplan plan -scenario <file> [options]
    freshplan generate -output <dir> [options]

OPTIONS:
    -scenario <file>     Scenario YAML file
    -output <dir>        Output directory for results (optional for text and json)
    -format <fmt>        Output format: text, json, csv, parquet, svg (default: text)
    -solver <name>       MILP backend: branchbound, highs (default: from scenario)
    -time-limit <dur>    Solve time limit per window, e.g. 90s
    -checkpoint-dir <d>  Save a checkpoint after every committed window
    -resume <run-id>     Continue a run from its checkpoint
    -upload <url>        Publish results to a bucket (s3://, gs://, file://, mem://)
    -upload-prefix <p>   Key prefix inside the bucket
    -host                Record host details with the results
    -verbose             Enable verbose output
    -help                Show this help message

ENVIRONMENT:
    FRESHPLAN_SOLVER, FRESHPLAN_TIME_LIMIT   Defaults for -solver and -time-limit
    LOG_LEVEL, LOG_FORMAT                    debug|info|warn|error, text|json

SCENARIO FILE:
    name: three-echelon
    run:      {start: "2025-01-06", end: "2025-01-19", window_days: 7, overlap_days: 3}
    nodes:    [{id: MFG, role: manufacturing, storage: [ambient], production_rate: 120}, ...]
    legs:     [{origin: MFG, destination: HUB, transit_days: 1, mode: frozen}, ...]
    trucks:   [{id: T-MON, origin: MFG, destinations: [HUB], day_of_week: monday}, ...]
    products: [{id: SOURDOUGH, ambient_shelf_life: 5, frozen_shelf_life: 90, thawed_shelf_life: 4}]
    shifts:   [{weekdays: [mon, tue, wed, thu, fri], fixed: true, fixed_hours: 8}]
    costs:    {production_per_unit: 1.20, shortage_per_unit: 8}
    forecast_csv: forecast.csv      # node,product,date,quantity
    inventory_csv: inventory.csv    # node,product,production_date,state,thaw_date,quantity

EXAMPLES:
    # Plan the sample scenario
    freshplan plan -scenario scenarios/three_echelon/scenario.yaml -verbose

    # Write parquet tables and publish them with a manifest
    freshplan plan -scenario s.yaml -format parquet -output results/ -upload s3://plans

    # Resume an interrupted run
    freshplan plan -scenario s.yaml -checkpoint-dir .checkpoints -resume 5f0c...
`)
}
