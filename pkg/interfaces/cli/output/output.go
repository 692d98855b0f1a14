package output

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/vsinha/freshplan/pkg/application/dto"
	"github.com/vsinha/freshplan/pkg/infrastructure/storage"
)

// Config holds configuration for output generation
type Config struct {
	Format    string
	OutputDir string
	Verbose   bool
	Host      *HostInfo
	Inputs    map[string]string
	// Uploading allows file formats without an output directory; the
	// artifacts go to a bucket instead
	Uploading bool
}

// Formats lists the supported output formats
var Formats = []string{"text", "json", "csv", "parquet", "svg"}

// Metadata describes how a result was produced
type Metadata struct {
	GeneratedAt time.Time         `json:"generated_at"`
	Host        *HostInfo         `json:"host,omitempty"`
	Inputs      map[string]string `json:"inputs,omitempty"`
}

// Document is the JSON output format
type Document struct {
	Metadata Metadata        `json:"metadata"`
	Summary  string          `json:"summary"`
	FillRate float64         `json:"fill_rate"`
	Result   *dto.PlanResult `json:"result"`
}

// Render builds the artifacts of a result in the configured format
func Render(result *dto.PlanResult, config Config) ([]storage.Artifact, error) {
	switch config.Format {
	case "text":
		return []storage.Artifact{{Name: "report.txt", ContentType: "text/plain", Data: []byte(TextReport(result, config))}}, nil
	case "json":
		data, err := JSON(result, config)
		if err != nil {
			return nil, err
		}
		return []storage.Artifact{{Name: "plan.json", ContentType: "application/json", Data: data}}, nil
	case "csv", "parquet":
		var artifacts []storage.Artifact
		for _, t := range tables(result) {
			var (
				a   storage.Artifact
				err error
			)
			if config.Format == "csv" {
				a, err = t.csv()
			} else {
				a, err = t.parquet()
			}
			if err != nil {
				return nil, err
			}
			artifacts = append(artifacts, a)
		}
		return artifacts, nil
	case "svg":
		chart := NewGanttChart(result.Plan)
		return []storage.Artifact{{Name: "schedule.svg", ContentType: "image/svg+xml", Data: []byte(chart.GenerateSVG(result.Plan))}}, nil
	default:
		return nil, fmt.Errorf("unsupported output format: %s", config.Format)
	}
}

// JSON renders the result with its metadata
func JSON(result *dto.PlanResult, config Config) ([]byte, error) {
	doc := Document{
		Metadata: Metadata{GeneratedAt: time.Now().UTC(), Host: config.Host, Inputs: config.Inputs},
		Summary:  result.Summary(),
		FillRate: result.FillRate(),
		Result:   result,
	}
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal JSON: %w", err)
	}
	return data, nil
}

// Generate renders the result and writes it to the output directory, or to
// stdout for text and json when no directory is given. The rendered artifacts
// are returned for publishing.
func Generate(result *dto.PlanResult, config Config, stdout io.Writer) ([]storage.Artifact, error) {
	toStdout := config.Format == "text" || config.Format == "json"
	if config.OutputDir == "" && !toStdout && !config.Uploading {
		return nil, fmt.Errorf("output directory required for %s format", config.Format)
	}

	artifacts, err := Render(result, config)
	if err != nil {
		return nil, err
	}

	if config.OutputDir == "" {
		if toStdout {
			for _, a := range artifacts {
				if _, err := stdout.Write(a.Data); err != nil {
					return nil, fmt.Errorf("failed to write output: %w", err)
				}
			}
		}
		return artifacts, nil
	}

	if err := os.MkdirAll(config.OutputDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}
	for _, a := range artifacts {
		filename := filepath.Join(config.OutputDir, a.Name)
		if err := os.WriteFile(filename, a.Data, 0644); err != nil {
			return nil, fmt.Errorf("failed to write %s: %w", filename, err)
		}
		if config.Verbose {
			fmt.Fprintf(stdout, "💾 Saved %s\n", filename)
		}
	}
	if config.Format == "text" {
		// the report is also shown
		if _, err := stdout.Write(artifacts[0].Data); err != nil {
			return nil, fmt.Errorf("failed to write output: %w", err)
		}
	}
	return artifacts, nil
}
