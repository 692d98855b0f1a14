package entities

// ProductionRecord is the quantity of a product made on a date
type ProductionRecord struct {
	Node     NodeID    `json:"node"`
	Product  ProductID `json:"product"`
	Date     Date      `json:"date"`
	Quantity float64   `json:"quantity"`
}

// ShipmentRecord is a quantity of one cohort moved over a leg.
// Cohort is the departing cohort, ArrivalCohort the one it joins at the destination.
type ShipmentRecord struct {
	Leg           LegID     `json:"leg"`
	Origin        NodeID    `json:"origin"`
	Destination   NodeID    `json:"destination"`
	Truck         TruckID   `json:"truck,omitempty"`
	Cohort        CohortKey `json:"cohort"`
	ArrivalCohort CohortKey `json:"arrival_cohort"`
	Departure     Date      `json:"departure"`
	Arrival       Date      `json:"arrival"`
	Quantity      float64   `json:"quantity"`
}

// InTransit converts a shipment into the record carried across a window boundary
func (s ShipmentRecord) InTransit() InTransitRecord {
	return InTransitRecord{
		Leg:      s.Leg,
		Product:  s.Cohort.Product,
		ProdDate: s.Cohort.ProdDate,
		State:    s.Cohort.State,
		ThawDate: s.Cohort.ThawDate,
		Arrival:  s.Arrival,
		Quantity: s.Quantity,
	}
}

// CohortQuantity is a per-cohort amount on a date: stock on hand, consumption or disposal
type CohortQuantity struct {
	Cohort   CohortKey `json:"cohort"`
	Date     Date      `json:"date"`
	Quantity float64   `json:"quantity"`
}

// LaborRecord is the labor used on a date
type LaborRecord struct {
	Date      Date    `json:"date"`
	Fixed     bool    `json:"fixed"`
	Hours     float64 `json:"hours"`
	Overtime  float64 `json:"overtime"`
	PaidHours float64 `json:"paid_hours"`
}

// TruckLoadRecord is the load of one product on one truck departure
type TruckLoadRecord struct {
	Truck   TruckID   `json:"truck"`
	Date    Date      `json:"date"`
	Product ProductID `json:"product"`
	Units   float64   `json:"units"`
	Pallets int       `json:"pallets"`
}

// ChangeoverRecord marks a production run of a product on a date
type ChangeoverRecord struct {
	Product ProductID `json:"product"`
	Date    Date      `json:"date"`
}

// Schedule holds the decisions of a plan or of one window
type Schedule struct {
	Production  []ProductionRecord `json:"production"`
	Shipments   []ShipmentRecord   `json:"shipments"`
	Inventory   []CohortQuantity   `json:"inventory"`
	Consumption []CohortQuantity   `json:"consumption"`
	Disposal    []CohortQuantity   `json:"disposal"`
	Shortages   []ShortageRecord   `json:"shortages"`
	Labor       []LaborRecord      `json:"labor"`
	TruckLoads  []TruckLoadRecord  `json:"truck_loads"`
	Changeovers []ChangeoverRecord `json:"changeovers"`
}

// Within keeps the decisions dated inside r; shipments are dated by departure
func (s *Schedule) Within(r DateRange) Schedule {
	var out Schedule
	for _, p := range s.Production {
		if r.Contains(p.Date) {
			out.Production = append(out.Production, p)
		}
	}
	for _, sh := range s.Shipments {
		if r.Contains(sh.Departure) {
			out.Shipments = append(out.Shipments, sh)
		}
	}
	out.Inventory = cohortQuantitiesWithin(s.Inventory, r)
	out.Consumption = cohortQuantitiesWithin(s.Consumption, r)
	out.Disposal = cohortQuantitiesWithin(s.Disposal, r)
	for _, sh := range s.Shortages {
		if r.Contains(sh.Date) {
			out.Shortages = append(out.Shortages, sh)
		}
	}
	for _, l := range s.Labor {
		if r.Contains(l.Date) {
			out.Labor = append(out.Labor, l)
		}
	}
	for _, t := range s.TruckLoads {
		if r.Contains(t.Date) {
			out.TruckLoads = append(out.TruckLoads, t)
		}
	}
	for _, c := range s.Changeovers {
		if r.Contains(c.Date) {
			out.Changeovers = append(out.Changeovers, c)
		}
	}
	return out
}

func cohortQuantitiesWithin(in []CohortQuantity, r DateRange) []CohortQuantity {
	var out []CohortQuantity
	for _, q := range in {
		if r.Contains(q.Date) {
			out = append(out, q)
		}
	}
	return out
}

// Append adds the decisions of another schedule
func (s *Schedule) Append(o Schedule) {
	s.Production = append(s.Production, o.Production...)
	s.Shipments = append(s.Shipments, o.Shipments...)
	s.Inventory = append(s.Inventory, o.Inventory...)
	s.Consumption = append(s.Consumption, o.Consumption...)
	s.Disposal = append(s.Disposal, o.Disposal...)
	s.Shortages = append(s.Shortages, o.Shortages...)
	s.Labor = append(s.Labor, o.Labor...)
	s.TruckLoads = append(s.TruckLoads, o.TruckLoads...)
	s.Changeovers = append(s.Changeovers, o.Changeovers...)
}

// ScheduleTotals aggregates a schedule into unit totals
type ScheduleTotals struct {
	Produced    float64 `json:"produced"`
	Shipped     float64 `json:"shipped"`
	Consumed    float64 `json:"consumed"`
	Disposed    float64 `json:"disposed"`
	Shortage    float64 `json:"shortage"`
	LaborHours  float64 `json:"labor_hours"`
	TruckTrips  int     `json:"truck_trips"`
	PalletsUsed int     `json:"pallets_used"`
}

// Totals sums the schedule
func (s *Schedule) Totals() ScheduleTotals {
	var t ScheduleTotals
	for _, p := range s.Production {
		t.Produced += p.Quantity
	}
	for _, sh := range s.Shipments {
		t.Shipped += sh.Quantity
	}
	for _, c := range s.Consumption {
		t.Consumed += c.Quantity
	}
	for _, d := range s.Disposal {
		t.Disposed += d.Quantity
	}
	for _, sh := range s.Shortages {
		t.Shortage += sh.Quantity
	}
	for _, l := range s.Labor {
		t.LaborHours += l.Hours
	}
	trips := make(map[TruckDayKey]bool)
	for _, tl := range s.TruckLoads {
		t.PalletsUsed += tl.Pallets
		if tl.Units > 0 {
			trips[TruckDayKey{Truck: tl.Truck, Date: tl.Date}] = true
		}
	}
	t.TruckTrips = len(trips)
	return t
}

// WindowSolution is the extracted result of one window, with the state it started from
type WindowSolution struct {
	Window   Window         `json:"window"`
	Opening  *Snapshot      `json:"opening"`
	Demand   []DemandRecord `json:"demand"`
	Schedule `json:"schedule"`
}

// Plan is the stitched, committed result across all windows
type Plan struct {
	Horizon  DateRange      `json:"horizon"`
	Opening  *Snapshot      `json:"opening"`
	Demand   []DemandRecord `json:"demand"`
	Schedule `json:"schedule"`
}
