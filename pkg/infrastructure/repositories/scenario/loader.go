package scenario

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/vsinha/freshplan/pkg/application/dto"
	"github.com/vsinha/freshplan/pkg/infrastructure/repositories/csv"
)

// Parse decodes a scenario document. Unknown keys are rejected so typos in a
// scenario file do not silently fall back to defaults.
func Parse(data []byte) (*Document, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	var doc Document
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("failed to parse scenario: %w", err)
	}
	return &doc, nil
}

// Load reads a scenario file and any CSV files it names
func Load(path string) (*dto.PlanningContext, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file %s: %w", path, err)
	}
	doc, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	pc, err := doc.ToContext()
	if err != nil {
		return nil, err
	}
	if err := doc.loadCSV(filepath.Dir(path), pc); err != nil {
		return nil, err
	}
	return pc, nil
}

// loadCSV appends the records of the referenced CSV files to pc
func (d *Document) loadCSV(dir string, pc *dto.PlanningContext) error {
	loader := csv.NewLoader()
	resolve := func(name string) string {
		if filepath.IsAbs(name) {
			return name
		}
		return filepath.Join(dir, name)
	}

	if d.ForecastCSV != "" {
		demand, err := loader.LoadForecast(resolve(d.ForecastCSV))
		if err != nil {
			return fmt.Errorf("error loading forecast: %w", err)
		}
		pc.Demand = append(pc.Demand, demand...)
	}
	if d.InventoryCSV != "" {
		stock, err := loader.LoadInventory(resolve(d.InventoryCSV))
		if err != nil {
			return fmt.Errorf("error loading inventory: %w", err)
		}
		pc.Inventory = append(pc.Inventory, stock...)
	}
	if d.InTransitCSV != "" {
		transit, err := loader.LoadInTransit(resolve(d.InTransitCSV))
		if err != nil {
			return fmt.Errorf("error loading in-transit goods: %w", err)
		}
		pc.InTransit = append(pc.InTransit, transit...)
	}
	return nil
}
