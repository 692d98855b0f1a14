package output

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"strconv"

	"github.com/parquet-go/parquet-go"

	"github.com/vsinha/freshplan/pkg/application/dto"
	"github.com/vsinha/freshplan/pkg/domain/entities"
	"github.com/vsinha/freshplan/pkg/infrastructure/storage"
)

// ProductionRow is one production decision
type ProductionRow struct {
	Node     string  `parquet:"node"`
	Product  string  `parquet:"product"`
	Date     string  `parquet:"date"`
	Quantity float64 `parquet:"quantity"`
}

func (r ProductionRow) record() []string {
	return []string{r.Node, r.Product, r.Date, ftoa(r.Quantity)}
}

// ShipmentRow is one cohort shipped on a leg
type ShipmentRow struct {
	Leg            string  `parquet:"leg"`
	Origin         string  `parquet:"origin"`
	Destination    string  `parquet:"destination"`
	Truck          string  `parquet:"truck"`
	Product        string  `parquet:"product"`
	ProductionDate string  `parquet:"production_date"`
	State          string  `parquet:"state"`
	ArrivalState   string  `parquet:"arrival_state"`
	Departure      string  `parquet:"departure"`
	Arrival        string  `parquet:"arrival"`
	Quantity       float64 `parquet:"quantity"`
}

func (r ShipmentRow) record() []string {
	return []string{r.Leg, r.Origin, r.Destination, r.Truck, r.Product, r.ProductionDate,
		r.State, r.ArrivalState, r.Departure, r.Arrival, ftoa(r.Quantity)}
}

// FlowRow is a cohort quantity on a date. Kind is inventory, consumption or disposal.
type FlowRow struct {
	Kind           string  `parquet:"kind"`
	Node           string  `parquet:"node"`
	Product        string  `parquet:"product"`
	ProductionDate string  `parquet:"production_date"`
	State          string  `parquet:"state"`
	ThawDate       string  `parquet:"thaw_date"`
	Date           string  `parquet:"date"`
	Quantity       float64 `parquet:"quantity"`
}

func (r FlowRow) record() []string {
	return []string{r.Kind, r.Node, r.Product, r.ProductionDate, r.State, r.ThawDate, r.Date, ftoa(r.Quantity)}
}

// ShortageRow is unmet demand
type ShortageRow struct {
	Node     string  `parquet:"node"`
	Product  string  `parquet:"product"`
	Date     string  `parquet:"date"`
	Quantity float64 `parquet:"quantity"`
}

func (r ShortageRow) record() []string {
	return []string{r.Node, r.Product, r.Date, ftoa(r.Quantity)}
}

type LaborRow struct {
	Date      string  `parquet:"date"`
	Fixed     bool    `parquet:"fixed"`
	Hours     float64 `parquet:"hours"`
	Overtime  float64 `parquet:"overtime"`
	PaidHours float64 `parquet:"paid_hours"`
}

func (r LaborRow) record() []string {
	return []string{r.Date, strconv.FormatBool(r.Fixed), ftoa(r.Hours), ftoa(r.Overtime), ftoa(r.PaidHours)}
}

type TruckLoadRow struct {
	Truck   string  `parquet:"truck"`
	Date    string  `parquet:"date"`
	Product string  `parquet:"product"`
	Units   float64 `parquet:"units"`
	Pallets int64   `parquet:"pallets"`
}

func (r TruckLoadRow) record() []string {
	return []string{r.Truck, r.Date, r.Product, ftoa(r.Units), strconv.FormatInt(r.Pallets, 10)}
}

// WindowRow is the solve report of one window
type WindowRow struct {
	Index        int64   `parquet:"index"`
	Start        string  `parquet:"start"`
	End          string  `parquet:"end"`
	CommitEnd    string  `parquet:"commit_end"`
	Status       string  `parquet:"status"`
	Objective    float64 `parquet:"objective"`
	Bound        float64 `parquet:"bound"`
	Gap          float64 `parquet:"gap"`
	SolveSeconds float64 `parquet:"solve_seconds"`
	Variables    int64   `parquet:"variables"`
	Constraints  int64   `parquet:"constraints"`
	Integers     int64   `parquet:"integer_variables"`
	Nodes        int64   `parquet:"nodes"`
}

func (r WindowRow) record() []string {
	return []string{strconv.FormatInt(r.Index, 10), r.Start, r.End, r.CommitEnd, r.Status,
		ftoa(r.Objective), ftoa(r.Bound), ftoa(r.Gap), ftoa(r.SolveSeconds),
		strconv.FormatInt(r.Variables, 10), strconv.FormatInt(r.Constraints, 10),
		strconv.FormatInt(r.Integers, 10), strconv.FormatInt(r.Nodes, 10)}
}

// CostRow is one line of the cost breakdown; amounts stay decimal strings
type CostRow struct {
	Line   string `parquet:"line"`
	Amount string `parquet:"amount"`
}

func (r CostRow) record() []string {
	return []string{r.Line, r.Amount}
}

type row interface {
	record() []string
}

// table is a named set of rows that renders as CSV or parquet
type table[T row] struct {
	name   string
	header []string
	rows   []T
}

type tabular interface {
	csv() (storage.Artifact, error)
	parquet() (storage.Artifact, error)
}

func (t table[T]) csv() (storage.Artifact, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(t.header); err != nil {
		return storage.Artifact{}, fmt.Errorf("failed to write %s header: %w", t.name, err)
	}
	for _, r := range t.rows {
		if err := w.Write(r.record()); err != nil {
			return storage.Artifact{}, fmt.Errorf("failed to write %s row: %w", t.name, err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return storage.Artifact{}, fmt.Errorf("failed to write %s CSV: %w", t.name, err)
	}
	return storage.Artifact{Name: t.name + ".csv", ContentType: "text/csv", Data: buf.Bytes()}, nil
}

func (t table[T]) parquet() (storage.Artifact, error) {
	var buf bytes.Buffer
	w := parquet.NewGenericWriter[T](&buf)
	if _, err := w.Write(t.rows); err != nil {
		w.Close()
		return storage.Artifact{}, fmt.Errorf("failed to write %s parquet rows: %w", t.name, err)
	}
	if err := w.Close(); err != nil {
		return storage.Artifact{}, fmt.Errorf("failed to close %s parquet writer: %w", t.name, err)
	}
	return storage.Artifact{Name: t.name + ".parquet", ContentType: "application/vnd.apache.parquet", Data: buf.Bytes()}, nil
}

// tables flattens a result into its output tables
func tables(result *dto.PlanResult) []tabular {
	var (
		production []ProductionRow
		shipments  []ShipmentRow
		flows      []FlowRow
		shortages  []ShortageRow
		labor      []LaborRow
		loads      []TruckLoadRow
		windows    []WindowRow
		costs      []CostRow
	)

	if plan := result.Plan; plan != nil {
		for _, p := range plan.Production {
			production = append(production, ProductionRow{
				Node: string(p.Node), Product: string(p.Product), Date: p.Date.String(), Quantity: p.Quantity,
			})
		}
		for _, s := range plan.Shipments {
			shipments = append(shipments, ShipmentRow{
				Leg:            string(s.Leg),
				Origin:         string(s.Origin),
				Destination:    string(s.Destination),
				Truck:          string(s.Truck),
				Product:        string(s.Cohort.Product),
				ProductionDate: s.Cohort.ProdDate.String(),
				State:          s.Cohort.State.String(),
				ArrivalState:   s.ArrivalCohort.State.String(),
				Departure:      s.Departure.String(),
				Arrival:        s.Arrival.String(),
				Quantity:       s.Quantity,
			})
		}
		flows = appendFlows(flows, "inventory", plan.Inventory)
		flows = appendFlows(flows, "consumption", plan.Consumption)
		flows = appendFlows(flows, "disposal", plan.Disposal)
		for _, s := range plan.Shortages {
			shortages = append(shortages, ShortageRow{
				Node: string(s.Node), Product: string(s.Product), Date: s.Date.String(), Quantity: s.Quantity,
			})
		}
		for _, l := range plan.Labor {
			labor = append(labor, LaborRow{
				Date: l.Date.String(), Fixed: l.Fixed, Hours: l.Hours, Overtime: l.Overtime, PaidHours: l.PaidHours,
			})
		}
		for _, l := range plan.TruckLoads {
			loads = append(loads, TruckLoadRow{
				Truck: string(l.Truck), Date: l.Date.String(), Product: string(l.Product), Units: l.Units, Pallets: int64(l.Pallets),
			})
		}
	}
	for _, w := range result.Windows {
		windows = append(windows, WindowRow{
			Index:        int64(w.Window.Index),
			Start:        w.Window.Start.String(),
			End:          w.Window.End.String(),
			CommitEnd:    w.Window.CommitEnd.String(),
			Status:       w.Status,
			Objective:    w.Objective,
			Bound:        w.Bound,
			Gap:          w.Gap,
			SolveSeconds: w.SolveTime.Seconds(),
			Variables:    int64(w.Variables),
			Constraints:  int64(w.Constraints),
			Integers:     int64(w.IntegerVariables),
			Nodes:        int64(w.Nodes),
		})
	}
	for _, l := range result.Costs.Lines() {
		costs = append(costs, CostRow{Line: l.Name, Amount: l.Amount.StringFixed(2)})
	}
	costs = append(costs, CostRow{Line: "Total", Amount: result.TotalCost.StringFixed(2)})

	return []tabular{
		table[ProductionRow]{"production", []string{"node", "product", "date", "quantity"}, production},
		table[ShipmentRow]{"shipments", []string{"leg", "origin", "destination", "truck", "product", "production_date",
			"state", "arrival_state", "departure", "arrival", "quantity"}, shipments},
		table[FlowRow]{"cohort_flows", []string{"kind", "node", "product", "production_date", "state", "thaw_date",
			"date", "quantity"}, flows},
		table[ShortageRow]{"shortages", []string{"node", "product", "date", "quantity"}, shortages},
		table[LaborRow]{"labor", []string{"date", "fixed", "hours", "overtime", "paid_hours"}, labor},
		table[TruckLoadRow]{"truck_loads", []string{"truck", "date", "product", "units", "pallets"}, loads},
		table[WindowRow]{"windows", []string{"index", "start", "end", "commit_end", "status", "objective", "bound",
			"gap", "solve_seconds", "variables", "constraints", "integer_variables", "nodes"}, windows},
		table[CostRow]{"costs", []string{"line", "amount"}, costs},
	}
}

func appendFlows(rows []FlowRow, kind string, in []entities.CohortQuantity) []FlowRow {
	for _, q := range in {
		rows = append(rows, FlowRow{
			Kind:           kind,
			Node:           string(q.Cohort.Node),
			Product:        string(q.Cohort.Product),
			ProductionDate: q.Cohort.ProdDate.String(),
			State:          q.Cohort.State.String(),
			ThawDate:       q.Cohort.ThawDate.String(),
			Date:           q.Date.String(),
			Quantity:       q.Quantity,
		})
	}
	return rows
}

func ftoa(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}
