package commands

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"math/rand"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"github.com/vsinha/freshplan/pkg/domain/entities"
	"github.com/vsinha/freshplan/pkg/infrastructure/repositories/scenario"
)

// GenerateConfig holds configuration for scenario generation
type GenerateConfig struct {
	Spokes     int     // Number of spokes served by the hub
	Products   int     // Number of products
	Days       int     // Horizon length in days
	Start      string  // First day of the horizon, YYYY-MM-DD
	MeanDemand float64 // Mean daily demand per spoke and product
	Stock      float64 // Opening stock at each spoke in days of mean demand
	OutputDir  string  // Output directory for generated files
	Seed       int64   // Random seed for reproducible generation
	Help       bool
	Verbose    bool
}

// GenerateCommand writes a synthetic hub-and-spoke scenario: a plant freezing
// into a hub that ships to every spoke
type GenerateCommand struct {
	config GenerateConfig
	rand   *rand.Rand
	out    io.Writer
}

// NewGenerateCommand creates a new generate command
func NewGenerateCommand(config GenerateConfig, out io.Writer) *GenerateCommand {
	seed := config.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	if out == nil {
		out = os.Stdout
	}

	return &GenerateCommand{
		config: config,
		rand:   rand.New(rand.NewSource(seed)),
		out:    out,
	}
}

// Execute runs the generate command
func (cmd *GenerateCommand) Execute(ctx context.Context) error {
	if cmd.config.Help {
		cmd.printHelp()
		return nil
	}
	if err := cmd.validate(); err != nil {
		return fmt.Errorf("validation error: %w", err)
	}
	start, err := entities.ParseDate(cmd.config.Start)
	if err != nil {
		return fmt.Errorf("validation error: %w", err)
	}

	if cmd.config.Verbose {
		fmt.Fprintf(cmd.out, "🔧 Generating scenario with %d spokes, %d products, %d days\n",
			cmd.config.Spokes, cmd.config.Products, cmd.config.Days)
		fmt.Fprintf(cmd.out, "📁 Output directory: %s\n", cmd.config.OutputDir)
		fmt.Fprintf(cmd.out, "🎲 Random seed: %d\n", cmd.config.Seed)
	}

	if err := os.MkdirAll(cmd.config.OutputDir, 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	doc := cmd.network(start)
	if err := cmd.writeForecast(doc, start); err != nil {
		return fmt.Errorf("failed to generate forecast: %w", err)
	}
	if err := cmd.writeInventory(doc, start); err != nil {
		return fmt.Errorf("failed to generate inventory: %w", err)
	}
	if err := cmd.writeScenario(doc); err != nil {
		return fmt.Errorf("failed to generate scenario: %w", err)
	}

	if cmd.config.Verbose {
		fmt.Fprintf(cmd.out, "✅ Scenario generated successfully in %s\n", cmd.config.OutputDir)
	}
	return nil
}

func (cmd *GenerateCommand) validate() error {
	switch {
	case cmd.config.OutputDir == "":
		return fmt.Errorf("output directory is required")
	case cmd.config.Spokes < 1:
		return fmt.Errorf("at least one spoke is required")
	case cmd.config.Products < 1:
		return fmt.Errorf("at least one product is required")
	case cmd.config.Days < 1:
		return fmt.Errorf("horizon must be at least one day")
	case cmd.config.MeanDemand < 0 || cmd.config.Stock < 0:
		return fmt.Errorf("demand and stock cannot be negative")
	}
	return nil
}

func spokeID(i int) string   { return fmt.Sprintf("SPOKE_%02d", i+1) }
func productID(i int) string { return fmt.Sprintf("PRODUCT_%02d", i+1) }

// network builds everything but the forecast and stock
func (cmd *GenerateCommand) network(start entities.Date) *scenario.Document {
	c := cmd.config
	demand := c.MeanDemand * float64(c.Spokes*c.Products)
	window, overlap := 7, 3
	if c.Days < window {
		window, overlap = c.Days, 0
	}
	waste := decimal.NewFromFloat(1.5)

	doc := &scenario.Document{
		Name: fmt.Sprintf("generated-%d-spokes", c.Spokes),
		Run: scenario.RunSpec{
			Start:       start.String(),
			End:         start.AddDays(c.Days - 1).String(),
			WindowDays:  &window,
			OverlapDays: &overlap,
			TimeLimit:   "1m",
		},
		Nodes: []scenario.NodeSpec{
			// enough capacity for the mean demand in a regular shift, with some slack
			{ID: "MFG", Name: "Plant", Role: "manufacturing", Storage: []string{"ambient"},
				ProductionRate: float64(int(demand*1.4/8) + 1)},
			{ID: "HUB", Name: "Frozen hub", Role: "hub", Storage: []string{"frozen", "ambient"}},
		},
		Legs: []scenario.LegSpec{
			{Origin: "MFG", Destination: "HUB", TransitDays: 1, Mode: "frozen", CostPerUnit: 0.4},
		},
		Trucks: []scenario.TruckSpec{
			{ID: "T-DAILY", Origin: "MFG", Destinations: []string{"HUB"}, DayOfWeek: "daily", FixedCost: 150},
		},
		Shifts: []scenario.ShiftPattern{
			{Weekdays: []string{"mon", "tue", "wed", "thu", "fri"}, LaborTerms: scenario.LaborTerms{
				Fixed: true, FixedHours: 8, MaxOvertimeHours: 4, RegularRate: 25, OvertimeRate: 37.5,
			}},
			{Weekdays: []string{"sat"}, LaborTerms: scenario.LaborTerms{
				MaxNonFixedHours: 6, MinimumPaidHours: 4, NonFixedRate: 40,
			}},
		},
		Costs: scenario.CostSpec{
			ProductionPerUnit: decimal.NewFromFloat(1.2),
			StoragePerPalletDay: scenario.StateCostSpec{
				Ambient: decimal.NewFromFloat(3.2),
				Frozen:  decimal.NewFromFloat(6.4),
				Thawed:  decimal.NewFromFloat(3.2),
			},
			EntryPerPallet:      scenario.StateCostSpec{Frozen: decimal.NewFromInt(12)},
			WasteMultiplier:     &waste,
			ShortagePerUnit:     decimal.NewFromInt(8),
			FreshnessPerUnitDay: decimal.NewFromFloat(0.02),
			Changeover:          decimal.NewFromInt(40),
		},
		ForecastCSV:  "forecast.csv",
		InventoryCSV: "inventory.csv",
	}

	for i := 0; i < c.Spokes; i++ {
		id := spokeID(i)
		doc.Nodes = append(doc.Nodes, scenario.NodeSpec{ID: id, Name: "Spoke " + strconv.Itoa(i+1), Role: "spoke",
			Storage: []string{"ambient"}})
		doc.Legs = append(doc.Legs, scenario.LegSpec{Origin: "HUB", Destination: id,
			TransitDays: 1 + cmd.rand.Intn(2), Mode: "frozen", CostPerUnit: 0.2 + float64(cmd.rand.Intn(3))/10})
	}
	for i := 0; i < c.Products; i++ {
		doc.Products = append(doc.Products, scenario.ProductSpec{
			ID:                    productID(i),
			Description:           "Generated product " + strconv.Itoa(i+1),
			AmbientShelfLife:      4 + cmd.rand.Intn(4),
			FrozenShelfLife:       60 + cmd.rand.Intn(60),
			ThawedShelfLife:       3 + cmd.rand.Intn(3),
			MinRemainingShelfLife: 1,
		})
	}
	return doc
}

// writeForecast draws daily demand per spoke and product, heavier on weekends
// and closed on Sundays
func (cmd *GenerateCommand) writeForecast(doc *scenario.Document, start entities.Date) error {
	rows := [][]string{{"node", "product", "date", "quantity"}}
	for d := 0; d < cmd.config.Days; d++ {
		date := start.AddDays(d)
		factor := 1.0
		switch date.Weekday() {
		case time.Sunday:
			continue
		case time.Friday, time.Saturday:
			factor = 1.5
		}
		for s := 0; s < cmd.config.Spokes; s++ {
			for p := 0; p < cmd.config.Products; p++ {
				qty := cmd.config.MeanDemand * factor * (0.7 + 0.6*cmd.rand.Float64())
				if qty < 1 {
					continue
				}
				rows = append(rows, []string{spokeID(s), productID(p), date.String(), strconv.Itoa(int(qty))})
			}
		}
	}
	return writeCSV(filepath.Join(cmd.config.OutputDir, doc.ForecastCSV), rows)
}

// writeInventory seeds frozen stock at the hub and ambient stock at each spoke
func (cmd *GenerateCommand) writeInventory(doc *scenario.Document, start entities.Date) error {
	rows := [][]string{{"node", "product", "production_date", "state", "thaw_date", "quantity"}}
	made := start.AddDays(-2).String()
	for p := 0; p < cmd.config.Products; p++ {
		hub := cmd.config.MeanDemand * float64(cmd.config.Spokes) * 2
		if hub >= 1 {
			rows = append(rows, []string{"HUB", productID(p), start.AddDays(-10).String(), "frozen", "", strconv.Itoa(int(hub))})
		}
		for s := 0; s < cmd.config.Spokes; s++ {
			qty := cmd.config.MeanDemand * cmd.config.Stock * (0.5 + cmd.rand.Float64())
			if qty < 1 {
				continue
			}
			rows = append(rows, []string{spokeID(s), productID(p), made, "ambient", "", strconv.Itoa(int(qty))})
		}
	}
	return writeCSV(filepath.Join(cmd.config.OutputDir, doc.InventoryCSV), rows)
}

func (cmd *GenerateCommand) writeScenario(doc *scenario.Document) error {
	data, err := yaml.Marshal(doc)
	if err != nil {
		return fmt.Errorf("failed to marshal scenario: %w", err)
	}
	return os.WriteFile(filepath.Join(cmd.config.OutputDir, "scenario.yaml"), data, 0644)
}

func writeCSV(filename string, rows [][]string) error {
	file, err := os.Create(filename)
	if err != nil {
		return err
	}
	defer file.Close()

	w := csv.NewWriter(file)
	if err := w.WriteAll(rows); err != nil {
		return err
	}
	return file.Close()
}

func (cmd *GenerateCommand) printHelp() {
	fmt.Fprint(cmd.out, `Generate a synthetic hub-and-spoke planning scenario

USAGE:
    freshplan generate -output <dir> [options]

OPTIONS:
    -output <dir>      Directory for scenario.yaml, forecast.csv and inventory.csv
    -spokes <n>        Number of spokes (default: 4)
    -products <n>      Number of products (default: 2)
    -days <n>          Horizon length in days (default: 14)
    -start <date>      First day of the horizon (default: 2025-01-06)
    -demand <qty>      Mean daily demand per spoke and product (default: 60)
    -stock <days>      Opening spoke stock in days of demand (default: 1)
    -seed <n>          Random seed for reproducible scenarios
    -verbose           Enable verbose output
    -help              Show this help message

EXAMPLES:
    freshplan generate -output scenarios/generated -spokes 8 -products 3 -seed 42
    freshplan plan -scenario scenarios/generated/scenario.yaml
`)
}
