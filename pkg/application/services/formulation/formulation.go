// Package formulation turns one window of the planning problem into a milp.Model
// and keeps the handles needed to read decisions back out of a solution.
package formulation

import (
	"sort"

	"github.com/vsinha/freshplan/pkg/application/services/cohort"
	"github.com/vsinha/freshplan/pkg/domain/entities"
	"github.com/vsinha/freshplan/pkg/domain/milp"
)

// ShipVar is a shipment variable together with the arc it moves stock over
type ShipVar struct {
	Var       milp.VarID
	Leg       *entities.Leg
	From      entities.CohortID
	To        entities.CohortID
	Departure entities.Date
	Arrival   entities.Date
}

// LaborVars are the labor variables of one production date.
// Overtime is set on fixed days, Paid and Works on non-fixed days.
type LaborVars struct {
	Day      *entities.LaborDay
	Hours    milp.VarID
	Overtime milp.VarID
	Paid     milp.VarID
	Works    milp.VarID
	HasWorks bool
}

// Formulation is the model of one window plus the typed handles into it
type Formulation struct {
	Window  entities.Window
	Model   *milp.Model
	Opening *entities.Snapshot
	Demand  []entities.DemandRecord

	Labor      map[entities.Date]*LaborVars
	Prod       map[entities.ProductDayKey]milp.VarID
	Changeover map[entities.ProductDayKey]milp.VarID
	Inv        map[entities.CohortDayKey]milp.VarID
	Disp       map[entities.CohortDayKey]milp.VarID
	Ship       map[entities.ShipKey]*ShipVar
	Cons       map[entities.CohortDayKey]milp.VarID
	Short      map[entities.DemandKey]milp.VarID
	Load       map[entities.LoadKey]milp.VarID
	Pallets    map[entities.TruckProductKey]milp.VarID
	Used       map[entities.TruckDayKey]milp.VarID

	// OpeningStock is stock on hand at the end of the day before the window
	OpeningStock map[entities.CohortID]float64
	// InTransitStock is goods arriving from shipments decided before the window
	InTransitStock map[entities.CohortDayKey]float64
	// LiveFrom is the first date within the window each live cohort can hold stock
	LiveFrom map[entities.CohortID]entities.Date

	index       *cohort.Index
	diagnostics entities.WindowDiagnostics
}

// Index returns the cohort index the model was built over
func (f *Formulation) Index() *cohort.Index {
	return f.index
}

// Diagnostics returns the aggregate supply and demand figures of the window
func (f *Formulation) Diagnostics() entities.WindowDiagnostics {
	return f.diagnostics
}

// LiveCohorts returns the cohorts that can hold stock in the window, in id order
func (f *Formulation) LiveCohorts() []entities.CohortID {
	ids := make([]entities.CohortID, 0, len(f.LiveFrom))
	for id := range f.LiveFrom {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// LiveRange returns the dates within the window on which a cohort has variables
func (f *Formulation) LiveRange(id entities.CohortID) (entities.DateRange, bool) {
	from, ok := f.LiveFrom[id]
	if !ok {
		return entities.DateRange{}, false
	}
	last := f.index.Cohort(id).Last
	if f.Window.End < last {
		last = f.Window.End
	}
	return entities.DateRange{Start: from, End: last}, true
}

// ShipVars returns every shipment variable ordered by departure, leg and cohort
func (f *Formulation) ShipVars() []*ShipVar {
	out := make([]*ShipVar, 0, len(f.Ship))
	for _, s := range f.Ship {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.Departure != b.Departure {
			return a.Departure < b.Departure
		}
		if a.Leg.ID != b.Leg.ID {
			return a.Leg.ID < b.Leg.ID
		}
		return a.From < b.From
	})
	return out
}
