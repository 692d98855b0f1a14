package csv

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/vsinha/freshplan/pkg/domain/entities"
)

var (
	forecastHeader  = []string{"node", "product", "date", "quantity"}
	inventoryHeader = []string{"node", "product", "production_date", "state", "thaw_date", "quantity"}
	inTransitHeader = []string{"leg", "product", "production_date", "state", "thaw_date", "arrival", "quantity"}
)

// Loader handles loading forecast and stock data from CSV files
type Loader struct{}

// NewLoader creates a new CSV loader
func NewLoader() *Loader {
	return &Loader{}
}

// LoadForecast loads demand records from a CSV file
func (l *Loader) LoadForecast(filename string) ([]*entities.DemandRecord, error) {
	file, err := os.Open(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to open forecast file %s: %w", filename, err)
	}
	defer file.Close()

	return l.ReadForecast(file)
}

// LoadInventory loads opening stock from a CSV file
func (l *Loader) LoadInventory(filename string) ([]*entities.InventoryRecord, error) {
	records, err := readFile(filename, "inventory", inventoryHeader)
	if err != nil {
		return nil, err
	}

	var stock []*entities.InventoryRecord
	for i, record := range records {
		prodDate, err := entities.ParseDate(record[2])
		if err != nil {
			return nil, fmt.Errorf("inventory CSV row %d: invalid production_date: %w", i+2, err)
		}
		state, err := entities.ParseStorageState(record[3])
		if err != nil {
			return nil, fmt.Errorf("inventory CSV row %d: %w", i+2, err)
		}
		thawDate, err := parseOptionalDate(record[4])
		if err != nil {
			return nil, fmt.Errorf("inventory CSV row %d: invalid thaw_date: %w", i+2, err)
		}
		quantity, err := parseQuantity(record[5])
		if err != nil {
			return nil, fmt.Errorf("inventory CSV row %d: %w", i+2, err)
		}

		rec, err := entities.NewInventoryRecord(entities.NodeID(record[0]), entities.ProductID(record[1]), prodDate, state, thawDate, quantity)
		if err != nil {
			return nil, fmt.Errorf("inventory CSV row %d: %w", i+2, err)
		}
		stock = append(stock, rec)
	}
	return stock, nil
}

// LoadInTransit loads goods already on the road from a CSV file
func (l *Loader) LoadInTransit(filename string) ([]*entities.InTransitRecord, error) {
	records, err := readFile(filename, "in-transit", inTransitHeader)
	if err != nil {
		return nil, err
	}

	var transit []*entities.InTransitRecord
	for i, record := range records {
		prodDate, err := entities.ParseDate(record[2])
		if err != nil {
			return nil, fmt.Errorf("in-transit CSV row %d: invalid production_date: %w", i+2, err)
		}
		state, err := entities.ParseStorageState(record[3])
		if err != nil {
			return nil, fmt.Errorf("in-transit CSV row %d: %w", i+2, err)
		}
		thawDate, err := parseOptionalDate(record[4])
		if err != nil {
			return nil, fmt.Errorf("in-transit CSV row %d: invalid thaw_date: %w", i+2, err)
		}
		arrival, err := entities.ParseDate(record[5])
		if err != nil {
			return nil, fmt.Errorf("in-transit CSV row %d: invalid arrival: %w", i+2, err)
		}
		quantity, err := parseQuantity(record[6])
		if err != nil {
			return nil, fmt.Errorf("in-transit CSV row %d: %w", i+2, err)
		}

		rec, err := entities.NewInTransitRecord(entities.LegID(record[0]), entities.ProductID(record[1]), prodDate, state, thawDate, arrival, quantity)
		if err != nil {
			return nil, fmt.Errorf("in-transit CSV row %d: %w", i+2, err)
		}
		transit = append(transit, rec)
	}
	return transit, nil
}

// ReadForecast parses forecast rows from r
func (l *Loader) ReadForecast(r io.Reader) ([]*entities.DemandRecord, error) {
	records, err := readAll(r, "forecast", forecastHeader)
	if err != nil {
		return nil, err
	}
	var demand []*entities.DemandRecord
	for i, record := range records {
		d, err := parseDemand(record)
		if err != nil {
			return nil, fmt.Errorf("forecast CSV row %d: %w", i+2, err)
		}
		demand = append(demand, d)
	}
	return demand, nil
}

// Helper functions for parsing CSV records

func readFile(filename, kind string, header []string) ([][]string, error) {
	file, err := os.Open(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s file %s: %w", kind, filename, err)
	}
	defer file.Close()

	return readAll(file, kind, header)
}

// readAll returns the data rows after checking the header and row widths
func readAll(r io.Reader, kind string, expectedHeader []string) ([][]string, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true
	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to read %s CSV: %w", kind, err)
	}

	if len(records) < 1 {
		return nil, fmt.Errorf("%s CSV must have a header row", kind)
	}

	header := records[0]
	if !validateHeader(header, expectedHeader) {
		return nil, fmt.Errorf("%s CSV header mismatch. Expected: %v, Got: %v", kind, expectedHeader, header)
	}

	for i, record := range records[1:] {
		if len(record) != len(expectedHeader) {
			return nil, fmt.Errorf("%s CSV row %d: expected %d columns, got %d", kind, i+2, len(expectedHeader), len(record))
		}
	}
	return records[1:], nil
}

func validateHeader(actual, expected []string) bool {
	if len(actual) != len(expected) {
		return false
	}

	for i, col := range expected {
		if strings.ToLower(strings.TrimSpace(actual[i])) != col {
			return false
		}
	}

	return true
}

func parseDemand(record []string) (*entities.DemandRecord, error) {
	date, err := entities.ParseDate(record[2])
	if err != nil {
		return nil, fmt.Errorf("invalid date format: %s (expected YYYY-MM-DD)", record[2])
	}

	quantity, err := parseQuantity(record[3])
	if err != nil {
		return nil, err
	}

	return entities.NewDemandRecord(entities.NodeID(record[0]), entities.ProductID(record[1]), date, quantity)
}

func parseQuantity(s string) (float64, error) {
	q, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0, fmt.Errorf("invalid quantity: %s", s)
	}
	return q, nil
}

// parseOptionalDate maps an empty cell to NoDate
func parseOptionalDate(s string) (entities.Date, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return entities.NoDate, nil
	}
	return entities.ParseDate(s)
}
