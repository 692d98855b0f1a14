// Package scenario reads planning scenarios: a YAML (or JSON) document describing the
// network, products, labor, costs and run settings, with forecast and stock inline or
// in CSV files next to it.
package scenario

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/vsinha/freshplan/pkg/application/dto"
	"github.com/vsinha/freshplan/pkg/domain/entities"
)

// Document is the file form of a planning context
type Document struct {
	Name      string          `yaml:"name" json:"name"`
	Run       RunSpec         `yaml:"run" json:"run"`
	Nodes     []NodeSpec      `yaml:"nodes" json:"nodes"`
	Legs      []LegSpec       `yaml:"legs" json:"legs"`
	Trucks    []TruckSpec     `yaml:"trucks" json:"trucks"`
	Products  []ProductSpec   `yaml:"products" json:"products"`
	Labor     []LaborSpec     `yaml:"labor" json:"labor"`
	Shifts    []ShiftPattern  `yaml:"shifts" json:"shifts"`
	Costs     CostSpec        `yaml:"costs" json:"costs"`
	Demand    []DemandSpec    `yaml:"demand" json:"demand"`
	Inventory []InventorySpec `yaml:"inventory" json:"inventory"`
	InTransit []InTransitSpec `yaml:"in_transit" json:"in_transit"`

	// CSV files resolved relative to the scenario file
	ForecastCSV  string `yaml:"forecast_csv" json:"-"`
	InventoryCSV string `yaml:"inventory_csv" json:"-"`
	InTransitCSV string `yaml:"in_transit_csv" json:"-"`
}

// RunSpec holds the run settings. Unset fields take the values of
// entities.DefaultRunConfig.
type RunSpec struct {
	Start            string   `yaml:"start" json:"start"`
	End              string   `yaml:"end" json:"end"`
	WindowDays       *int     `yaml:"window_days" json:"window_days"`
	OverlapDays      *int     `yaml:"overlap_days" json:"overlap_days"`
	AllowShortages   *bool    `yaml:"allow_shortages" json:"allow_shortages"`
	EnforceShelfLife *bool    `yaml:"enforce_shelf_life" json:"enforce_shelf_life"`
	UseBatchTracking *bool    `yaml:"use_batch_tracking" json:"use_batch_tracking"`
	TimeLimit        string   `yaml:"time_limit" json:"time_limit"`
	RelativeGap      *float64 `yaml:"relative_gap" json:"relative_gap"`
	Solver           string   `yaml:"solver" json:"solver"`
}

type NodeSpec struct {
	ID             string   `yaml:"id" json:"id"`
	Name           string   `yaml:"name" json:"name"`
	Role           string   `yaml:"role" json:"role"`
	Storage        []string `yaml:"storage" json:"storage"`
	ProductionRate float64  `yaml:"production_rate" json:"production_rate"`
}

type LegSpec struct {
	ID          string  `yaml:"id" json:"id"`
	Origin      string  `yaml:"origin" json:"origin"`
	Destination string  `yaml:"destination" json:"destination"`
	TransitDays int     `yaml:"transit_days" json:"transit_days"`
	Mode        string  `yaml:"mode" json:"mode"`
	Capacity    float64 `yaml:"capacity" json:"capacity"`
	CostPerUnit float64 `yaml:"cost_per_unit" json:"cost_per_unit"`
}

type TruckSpec struct {
	ID             string   `yaml:"id" json:"id"`
	Origin         string   `yaml:"origin" json:"origin"`
	Destinations   []string `yaml:"destinations" json:"destinations"`
	DayOfWeek      string   `yaml:"day_of_week" json:"day_of_week"`
	UnitsPerPallet int      `yaml:"units_per_pallet" json:"units_per_pallet"`
	PalletCapacity int      `yaml:"pallet_capacity" json:"pallet_capacity"`
	FixedCost      float64  `yaml:"fixed_cost" json:"fixed_cost"`
}

type ProductSpec struct {
	ID                    string `yaml:"id" json:"id"`
	Description           string `yaml:"description" json:"description"`
	AmbientShelfLife      int    `yaml:"ambient_shelf_life" json:"ambient_shelf_life"`
	FrozenShelfLife       int    `yaml:"frozen_shelf_life" json:"frozen_shelf_life"`
	ThawedShelfLife       int    `yaml:"thawed_shelf_life" json:"thawed_shelf_life"`
	MinRemainingShelfLife int    `yaml:"min_remaining_shelf_life" json:"min_remaining_shelf_life"`
}

// LaborTerms are the hours and rates of a labor day
type LaborTerms struct {
	Fixed            bool    `yaml:"fixed" json:"fixed"`
	FixedHours       float64 `yaml:"fixed_hours" json:"fixed_hours"`
	MaxOvertimeHours float64 `yaml:"max_overtime_hours" json:"max_overtime_hours"`
	MaxNonFixedHours float64 `yaml:"max_non_fixed_hours" json:"max_non_fixed_hours"`
	MinimumPaidHours float64 `yaml:"minimum_paid_hours" json:"minimum_paid_hours"`
	RegularRate      float64 `yaml:"regular_rate" json:"regular_rate"`
	OvertimeRate     float64 `yaml:"overtime_rate" json:"overtime_rate"`
	NonFixedRate     float64 `yaml:"non_fixed_rate" json:"non_fixed_rate"`
}

// LaborSpec is one calendar day
type LaborSpec struct {
	Date       string `yaml:"date" json:"date"`
	LaborTerms `yaml:",inline"`
}

// ShiftPattern expands into a labor day on every listed weekday of the horizon.
// Explicit labor entries win over a pattern on the same date.
type ShiftPattern struct {
	Weekdays   []string `yaml:"weekdays" json:"weekdays"`
	LaborTerms `yaml:",inline"`
}

type StateCostSpec struct {
	Ambient decimal.Decimal `yaml:"ambient" json:"ambient"`
	Frozen  decimal.Decimal `yaml:"frozen" json:"frozen"`
	Thawed  decimal.Decimal `yaml:"thawed" json:"thawed"`
}

type CostSpec struct {
	ProductionPerUnit   decimal.Decimal  `yaml:"production_per_unit" json:"production_per_unit"`
	StoragePerPalletDay StateCostSpec    `yaml:"storage_per_pallet_day" json:"storage_per_pallet_day"`
	EntryPerPallet      StateCostSpec    `yaml:"entry_per_pallet" json:"entry_per_pallet"`
	WasteMultiplier     *decimal.Decimal `yaml:"waste_multiplier" json:"waste_multiplier"`
	ShortagePerUnit     decimal.Decimal  `yaml:"shortage_per_unit" json:"shortage_per_unit"`
	FreshnessPerUnitDay decimal.Decimal  `yaml:"freshness_per_unit_day" json:"freshness_per_unit_day"`
	Changeover          decimal.Decimal  `yaml:"changeover" json:"changeover"`
	UnitsPerPallet      int              `yaml:"units_per_pallet" json:"units_per_pallet"`
}

type DemandSpec struct {
	Node     string  `yaml:"node" json:"node"`
	Product  string  `yaml:"product" json:"product"`
	Date     string  `yaml:"date" json:"date"`
	Quantity float64 `yaml:"quantity" json:"quantity"`
}

type InventorySpec struct {
	Node           string  `yaml:"node" json:"node"`
	Product        string  `yaml:"product" json:"product"`
	ProductionDate string  `yaml:"production_date" json:"production_date"`
	State          string  `yaml:"state" json:"state"`
	ThawDate       string  `yaml:"thaw_date" json:"thaw_date"`
	Quantity       float64 `yaml:"quantity" json:"quantity"`
}

type InTransitSpec struct {
	Leg            string  `yaml:"leg" json:"leg"`
	Product        string  `yaml:"product" json:"product"`
	ProductionDate string  `yaml:"production_date" json:"production_date"`
	State          string  `yaml:"state" json:"state"`
	ThawDate       string  `yaml:"thaw_date" json:"thaw_date"`
	Arrival        string  `yaml:"arrival" json:"arrival"`
	Quantity       float64 `yaml:"quantity" json:"quantity"`
}

// ToContext converts the document into planner input. Every problem found is
// reported in one DataValidationError.
func (d *Document) ToContext() (*dto.PlanningContext, error) {
	var c converter
	pc := &dto.PlanningContext{}

	pc.Config = c.runConfig(d.Run)
	for _, n := range d.Nodes {
		if node := c.node(n); node != nil {
			pc.Nodes = append(pc.Nodes, node)
		}
	}
	for _, l := range d.Legs {
		if leg := c.leg(l); leg != nil {
			pc.Legs = append(pc.Legs, leg)
		}
	}
	for _, t := range d.Trucks {
		if truck := c.truck(t); truck != nil {
			pc.Trucks = append(pc.Trucks, truck)
		}
	}
	for _, p := range d.Products {
		product, err := entities.NewProduct(entities.ProductID(p.ID), p.Description,
			p.AmbientShelfLife, p.FrozenShelfLife, p.ThawedShelfLife, p.MinRemainingShelfLife)
		if err != nil {
			c.add("product %q: %v", p.ID, err)
			continue
		}
		pc.Products = append(pc.Products, product)
	}
	pc.Labor = c.labor(d.Labor, d.Shifts, pc.Config.Horizon())
	pc.Costs = c.costs(d.Costs)

	for _, s := range d.Demand {
		date := c.date("demand date", s.Date)
		rec, err := entities.NewDemandRecord(entities.NodeID(s.Node), entities.ProductID(s.Product), date, s.Quantity)
		if err != nil {
			c.add("demand %s/%s on %s: %v", s.Node, s.Product, s.Date, err)
			continue
		}
		pc.Demand = append(pc.Demand, rec)
	}
	for _, s := range d.Inventory {
		state := c.state(s.State)
		rec, err := entities.NewInventoryRecord(entities.NodeID(s.Node), entities.ProductID(s.Product),
			c.date("production date", s.ProductionDate), state, c.optionalDate("thaw date", s.ThawDate), s.Quantity)
		if err != nil {
			c.add("inventory %s/%s: %v", s.Node, s.Product, err)
			continue
		}
		pc.Inventory = append(pc.Inventory, rec)
	}
	for _, s := range d.InTransit {
		state := c.state(s.State)
		rec, err := entities.NewInTransitRecord(entities.LegID(s.Leg), entities.ProductID(s.Product),
			c.date("production date", s.ProductionDate), state, c.optionalDate("thaw date", s.ThawDate),
			c.date("arrival", s.Arrival), s.Quantity)
		if err != nil {
			c.add("in-transit %s/%s: %v", s.Leg, s.Product, err)
			continue
		}
		pc.InTransit = append(pc.InTransit, rec)
	}

	if len(c.problems) > 0 {
		return nil, entities.NewDataValidationError(c.problems...)
	}
	return pc, nil
}

// converter collects problems instead of stopping at the first one
type converter struct {
	problems []string
}

func (c *converter) add(format string, args ...any) {
	c.problems = append(c.problems, fmt.Sprintf(format, args...))
}

func (c *converter) date(field, s string) entities.Date {
	d, err := entities.ParseDate(s)
	if err != nil {
		c.add("%s: %v", field, err)
	}
	return d
}

func (c *converter) optionalDate(field, s string) entities.Date {
	if s == "" {
		return entities.NoDate
	}
	return c.date(field, s)
}

func (c *converter) state(s string) entities.StorageState {
	if s == "" {
		return entities.Ambient
	}
	state, err := entities.ParseStorageState(s)
	if err != nil {
		c.add("%v", err)
	}
	return state
}

func (c *converter) runConfig(r RunSpec) entities.RunConfig {
	cfg := entities.DefaultRunConfig(c.date("run start", r.Start), c.date("run end", r.End))
	if r.WindowDays != nil {
		cfg.WindowDays = *r.WindowDays
	}
	if r.OverlapDays != nil {
		cfg.OverlapDays = *r.OverlapDays
	}
	if r.AllowShortages != nil {
		cfg.AllowShortages = *r.AllowShortages
	}
	if r.EnforceShelfLife != nil {
		cfg.EnforceShelfLife = *r.EnforceShelfLife
	}
	if r.UseBatchTracking != nil {
		cfg.UseBatchTracking = *r.UseBatchTracking
	}
	if r.RelativeGap != nil {
		cfg.RelativeGap = *r.RelativeGap
	}
	if r.TimeLimit != "" {
		limit, err := time.ParseDuration(r.TimeLimit)
		if err != nil {
			c.add("run time limit: %v", err)
		}
		cfg.TimeLimit = limit
	}
	if r.Solver != "" {
		cfg.Solver = r.Solver
	}
	return cfg
}

func (c *converter) node(n NodeSpec) *entities.Node {
	role, err := entities.ParseNodeRole(n.Role)
	if err != nil {
		c.add("node %q: %v", n.ID, err)
		return nil
	}
	var frozen, ambient bool
	if len(n.Storage) == 0 {
		ambient = true
	}
	for _, s := range n.Storage {
		state, err := entities.ParseStorageState(s)
		if err != nil {
			c.add("node %q: %v", n.ID, err)
			return nil
		}
		switch state {
		case entities.Frozen:
			frozen = true
		case entities.Ambient:
			ambient = true
		default:
			c.add("node %q: storage lists %s, which is not a storage facility", n.ID, state)
			return nil
		}
	}
	name := n.Name
	if name == "" {
		name = n.ID
	}
	node, err := entities.NewNode(entities.NodeID(n.ID), name, role, frozen, ambient, n.ProductionRate)
	if err != nil {
		c.add("node %q: %v", n.ID, err)
		return nil
	}
	return node
}

func (c *converter) leg(l LegSpec) *entities.Leg {
	mode := entities.AmbientTransport
	if l.Mode != "" {
		var err error
		if mode, err = entities.ParseTransportMode(l.Mode); err != nil {
			c.add("leg %q: %v", l.ID, err)
			return nil
		}
	}
	id := l.ID
	if id == "" {
		id = l.Origin + "-" + l.Destination
	}
	leg, err := entities.NewLeg(entities.LegID(id), entities.NodeID(l.Origin), entities.NodeID(l.Destination),
		l.TransitDays, mode, l.Capacity, l.CostPerUnit)
	if err != nil {
		c.add("leg %q: %v", id, err)
		return nil
	}
	return leg
}

func (c *converter) truck(t TruckSpec) *entities.TruckSchedule {
	var day *time.Weekday
	if t.DayOfWeek != "" && !strings.EqualFold(t.DayOfWeek, "daily") {
		wd, err := ParseWeekday(t.DayOfWeek)
		if err != nil {
			c.add("truck %q: %v", t.ID, err)
			return nil
		}
		day = &wd
	}
	dests := make([]entities.NodeID, len(t.Destinations))
	for i, d := range t.Destinations {
		dests[i] = entities.NodeID(d)
	}
	truck, err := entities.NewTruckSchedule(entities.TruckID(t.ID), entities.NodeID(t.Origin), dests, day,
		t.UnitsPerPallet, t.PalletCapacity, t.FixedCost)
	if err != nil {
		c.add("truck %q: %v", t.ID, err)
		return nil
	}
	return truck
}

func (c *converter) labor(days []LaborSpec, shifts []ShiftPattern, horizon entities.DateRange) []*entities.LaborDay {
	byDate := make(map[entities.Date]*entities.LaborDay)
	var order []entities.Date

	put := func(d entities.Date, terms LaborTerms, overwrite bool) {
		if _, seen := byDate[d]; seen && !overwrite {
			return
		}
		day, err := entities.NewLaborDay(d, terms.Fixed, terms.FixedHours, terms.MaxOvertimeHours,
			terms.MaxNonFixedHours, terms.MinimumPaidHours, terms.RegularRate, terms.OvertimeRate, terms.NonFixedRate)
		if err != nil {
			c.add("labor on %s: %v", d, err)
			return
		}
		if _, seen := byDate[d]; !seen {
			order = append(order, d)
		}
		byDate[d] = day
	}

	for _, s := range shifts {
		weekdays := make(map[time.Weekday]bool, len(s.Weekdays))
		for _, name := range s.Weekdays {
			wd, err := ParseWeekday(name)
			if err != nil {
				c.add("shift pattern: %v", err)
				continue
			}
			weekdays[wd] = true
		}
		if horizon.Empty() {
			continue
		}
		for d := horizon.Start; d <= horizon.End; d = d.AddDays(1) {
			if weekdays[d.Weekday()] {
				put(d, s.LaborTerms, false)
			}
		}
	}
	for _, s := range days {
		put(c.date("labor date", s.Date), s.LaborTerms, true)
	}

	out := make([]*entities.LaborDay, 0, len(order))
	for _, d := range order {
		out = append(out, byDate[d])
	}
	return out
}

func (c *converter) costs(s CostSpec) *entities.CostStructure {
	costs := entities.DefaultCostStructure()
	costs.ProductionCostPerUnit = s.ProductionPerUnit
	costs.StorageCostPerPalletDay = entities.StateCosts(s.StoragePerPalletDay)
	costs.EntryCostPerPallet = entities.StateCosts(s.EntryPerPallet)
	if s.WasteMultiplier != nil {
		costs.WasteMultiplier = *s.WasteMultiplier
	}
	costs.ShortagePenaltyPerUnit = s.ShortagePerUnit
	costs.FreshnessPenaltyPerUnitDay = s.FreshnessPerUnitDay
	costs.ChangeoverCost = s.Changeover
	if s.UnitsPerPallet != 0 {
		costs.UnitsPerPallet = s.UnitsPerPallet
	}
	if err := costs.Validate(); err != nil {
		c.add("costs: %v", err)
	}
	return costs
}

var weekdays = map[string]time.Weekday{
	"sun": time.Sunday, "mon": time.Monday, "tue": time.Tuesday, "wed": time.Wednesday,
	"thu": time.Thursday, "fri": time.Friday, "sat": time.Saturday,
}

// ParseWeekday accepts full or three-letter day names in any case
func ParseWeekday(s string) (time.Weekday, error) {
	key := strings.ToLower(strings.TrimSpace(s))
	if len(key) >= 3 {
		if wd, ok := weekdays[key[:3]]; ok && strings.HasPrefix(strings.ToLower(wd.String()), key) {
			return wd, nil
		}
	}
	return 0, fmt.Errorf("unknown weekday %q", s)
}
