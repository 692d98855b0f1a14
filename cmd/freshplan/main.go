package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/vsinha/freshplan/pkg/infrastructure/logging"
	"github.com/vsinha/freshplan/pkg/interfaces/cli/commands"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	args := os.Args[1:]
	name := "plan"
	if len(args) > 0 && (args[0] == "plan" || args[0] == "generate") {
		name, args = args[0], args[1:]
	}

	var err error
	switch name {
	case "generate":
		err = runGenerate(ctx, args)
	default:
		err = runPlan(ctx, args)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func runPlan(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("plan", flag.ExitOnError)
	var (
		scenarioFile  = fs.String("scenario", "", "Path to scenario YAML file")
		outputDir     = fs.String("output", "", "Output directory for results (optional for text and json)")
		format        = fs.String("format", "text", "Output format: text, json, csv, parquet, svg")
		solverName    = fs.String("solver", getenvDefault("FRESHPLAN_SOLVER", ""), "MILP backend: branchbound, highs")
		timeLimit     = fs.String("time-limit", getenvDefault("FRESHPLAN_TIME_LIMIT", ""), "Solve time limit per window")
		uploadURL     = fs.String("upload", "", "Bucket URL to publish results to")
		uploadPrefix  = fs.String("upload-prefix", "", "Key prefix inside the upload bucket")
		checkpointDir = fs.String("checkpoint-dir", "", "Directory for per-window checkpoints")
		resume        = fs.String("resume", "", "Run id to resume from its checkpoint")
		hostInfo      = fs.Bool("host", false, "Record host details with the results")
		verbose       = fs.Bool("verbose", false, "Enable verbose output")
		help          = fs.Bool("help", false, "Show help message")
	)
	fs.Parse(args)

	logging.Setup(logging.Config{
		Level:  getenvDefault("LOG_LEVEL", "warn"),
		Format: getenvDefault("LOG_FORMAT", "text"),
	})

	var limit time.Duration
	if *timeLimit != "" {
		d, err := time.ParseDuration(*timeLimit)
		if err != nil {
			return fmt.Errorf("invalid time limit %q: %w", *timeLimit, err)
		}
		limit = d
	}

	config := commands.Config{
		Scenario:      *scenarioFile,
		OutputDir:     *outputDir,
		Format:        *format,
		Verbose:       *verbose,
		Solver:        *solverName,
		TimeLimit:     limit,
		UploadURL:     *uploadURL,
		UploadPrefix:  *uploadPrefix,
		CheckpointDir: *checkpointDir,
		Resume:        *resume,
		Host:          *hostInfo,
		Help:          *help,
	}
	return commands.NewPlanCommand(config, os.Stdout, nil).Execute(ctx)
}

func runGenerate(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("generate", flag.ExitOnError)
	var (
		outputDir = fs.String("output", "", "Directory for the generated scenario")
		spokes    = fs.Int("spokes", 4, "Number of spokes")
		products  = fs.Int("products", 2, "Number of products")
		days      = fs.Int("days", 14, "Horizon length in days")
		start     = fs.String("start", "2025-01-06", "First day of the horizon")
		demand    = fs.Float64("demand", 60, "Mean daily demand per spoke and product")
		stock     = fs.Float64("stock", 1, "Opening spoke stock in days of demand")
		seed      = fs.Int64("seed", 0, "Random seed for reproducible scenarios")
		verbose   = fs.Bool("verbose", false, "Enable verbose output")
		help      = fs.Bool("help", false, "Show help message")
	)
	fs.Parse(args)

	config := commands.GenerateConfig{
		Spokes:     *spokes,
		Products:   *products,
		Days:       *days,
		Start:      *start,
		MeanDemand: *demand,
		Stock:      *stock,
		OutputDir:  *outputDir,
		Seed:       *seed,
		Help:       *help,
		Verbose:    *verbose,
	}
	return commands.NewGenerateCommand(config, os.Stdout).Execute(ctx)
}

func getenvDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
