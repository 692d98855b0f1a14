// Package extraction reads window decisions back out of a solver result and
// re-checks them independently of the model that produced them.
package extraction

import (
	"fmt"
	"math"
	"sort"

	"github.com/vsinha/freshplan/pkg/application/services/formulation"
	"github.com/vsinha/freshplan/pkg/domain/entities"
	"github.com/vsinha/freshplan/pkg/domain/milp"
)

// ValueEpsilon is the magnitude below which solver values are read as zero
const ValueEpsilon = 1e-6

type reader struct {
	res *milp.Result
}

func (r reader) value(v milp.VarID) float64 {
	x := r.res.Value(v)
	if math.Abs(x) < ValueEpsilon {
		return 0
	}
	return x
}

// Extract converts the solution of one window into domain records ordered by date
func Extract(f *formulation.Formulation, res *milp.Result) (*entities.WindowSolution, error) {
	if res == nil || !res.HasSolution() {
		return nil, fmt.Errorf("%s has no solution to extract", f.Window)
	}
	if len(res.Values) != f.Model.NumVariables() {
		return nil, fmt.Errorf("solution for %s has %d values, model has %d variables",
			f.Window, len(res.Values), f.Model.NumVariables())
	}

	r := reader{res: res}
	idx := f.Index()
	ws := &entities.WindowSolution{
		Window:  f.Window,
		Opening: f.Opening.Clone(),
		Demand:  append([]entities.DemandRecord(nil), f.Demand...),
	}

	mfg := idx.Network().Manufacturing().ID
	for key, v := range f.Prod {
		if q := r.value(v); q > 0 {
			ws.Production = append(ws.Production, entities.ProductionRecord{
				Node: mfg, Product: key.Product, Date: key.Date, Quantity: q,
			})
		}
	}
	for key, v := range f.Changeover {
		if r.value(v) > 0.5 {
			ws.Changeovers = append(ws.Changeovers, entities.ChangeoverRecord{Product: key.Product, Date: key.Date})
		}
	}

	for t, lv := range f.Labor {
		rec := entities.LaborRecord{Date: t, Fixed: lv.Day.IsFixedDay, Hours: r.value(lv.Hours)}
		if lv.Day.IsFixedDay {
			rec.Overtime = r.value(lv.Overtime)
			rec.PaidHours = lv.Day.FixedHours + rec.Overtime
		} else {
			rec.PaidHours = r.value(lv.Paid)
		}
		if rec.Hours > 0 || rec.PaidHours > 0 {
			ws.Labor = append(ws.Labor, rec)
		}
	}

	ws.Inventory = cohortQuantities(r, f, f.Inv)
	ws.Consumption = cohortQuantities(r, f, f.Cons)
	ws.Disposal = cohortQuantities(r, f, f.Disp)

	for key, v := range f.Short {
		if q := r.value(v); q > 0 {
			ws.Shortages = append(ws.Shortages, entities.ShortageRecord{
				Node: key.Node, Product: key.Product, Date: key.Date, Quantity: q,
			})
		}
	}

	ws.Shipments = assignTrucks(r, f)
	ws.TruckLoads = truckLoads(r, f)

	sortSchedule(&ws.Schedule)
	return ws, nil
}

func cohortQuantities(r reader, f *formulation.Formulation, vars map[entities.CohortDayKey]milp.VarID) []entities.CohortQuantity {
	var out []entities.CohortQuantity
	for key, v := range vars {
		if q := r.value(v); q > 0 {
			out = append(out, entities.CohortQuantity{
				Cohort: f.Index().Cohort(key.Cohort).Key, Date: key.Date, Quantity: q,
			})
		}
	}
	return out
}

type lane struct {
	origin, dest entities.NodeID
	product      entities.ProductID
	date         entities.Date
}

// assignTrucks splits shipments over the trucks serving their lane. Trucks are filled in
// id order and the oldest stock goes on the first truck.
func assignTrucks(r reader, f *formulation.Formulation) []entities.ShipmentRecord {
	idx := f.Index()
	net := idx.Network()

	var out []entities.ShipmentRecord
	byLane := make(map[lane][]entities.ShipmentRecord)
	for _, s := range f.ShipVars() {
		q := r.value(s.Var)
		if q <= 0 {
			continue
		}
		from := idx.Cohort(s.From).Key
		rec := entities.ShipmentRecord{
			Leg:           s.Leg.ID,
			Origin:        s.Leg.Origin,
			Destination:   s.Leg.Destination,
			Cohort:        from,
			ArrivalCohort: idx.Cohort(s.To).Key,
			Departure:     s.Departure,
			Arrival:       s.Arrival,
			Quantity:      q,
		}
		if !net.TruckServed(s.Leg.Origin, s.Leg.Destination) {
			out = append(out, rec)
			continue
		}
		l := lane{origin: s.Leg.Origin, dest: s.Leg.Destination, product: from.Product, date: s.Departure}
		byLane[l] = append(byLane[l], rec)
	}

	for l, recs := range byLane {
		sort.SliceStable(recs, func(i, j int) bool {
			a, b := recs[i].Cohort, recs[j].Cohort
			if a.ProdDate != b.ProdDate {
				return a.ProdDate < b.ProdDate
			}
			return entities.LessCohortKey(a, b)
		})

		type slot struct {
			truck entities.TruckID
			room  float64
		}
		var slots []slot
		trucks := append([]*entities.TruckSchedule(nil), net.TrucksOnLane(l.origin, l.dest)...)
		sort.Slice(trucks, func(i, j int) bool { return trucks[i].ID < trucks[j].ID })
		for _, t := range trucks {
			if v, ok := f.Load[entities.LoadKey{Truck: t.ID, Destination: l.dest, Product: l.product, Date: l.date}]; ok {
				if q := r.value(v); q > 0 {
					slots = append(slots, slot{truck: t.ID, room: q})
				}
			}
		}
		if len(slots) == 0 {
			// the lane coverage row makes this unreachable for a valid solution; Validate reports it
			out = append(out, recs...)
			continue
		}

		cur := 0
		for _, rec := range recs {
			remaining := rec.Quantity
			for remaining > ValueEpsilon {
				if cur == len(slots)-1 || slots[cur].room >= remaining-ValueEpsilon {
					part := rec
					part.Truck = slots[cur].truck
					part.Quantity = remaining
					slots[cur].room -= remaining
					out = append(out, part)
					break
				}
				if slots[cur].room > ValueEpsilon {
					part := rec
					part.Truck = slots[cur].truck
					part.Quantity = slots[cur].room
					remaining -= slots[cur].room
					slots[cur].room = 0
					out = append(out, part)
				}
				cur++
			}
		}
	}
	return out
}

func truckLoads(r reader, f *formulation.Formulation) []entities.TruckLoadRecord {
	units := make(map[entities.TruckProductKey]float64)
	for key, v := range f.Load {
		units[entities.TruckProductKey{Truck: key.Truck, Product: key.Product, Date: key.Date}] += r.value(v)
	}
	var out []entities.TruckLoadRecord
	for key, v := range f.Pallets {
		u := units[key]
		pallets := int(math.Round(r.value(v)))
		if u <= 0 && pallets == 0 {
			continue
		}
		out = append(out, entities.TruckLoadRecord{
			Truck: key.Truck, Date: key.Date, Product: key.Product, Units: u, Pallets: pallets,
		})
	}
	return out
}

// sortSchedule orders every record list by date, then by its natural key
func sortSchedule(s *entities.Schedule) {
	sort.Slice(s.Production, func(i, j int) bool {
		a, b := s.Production[i], s.Production[j]
		if a.Date != b.Date {
			return a.Date < b.Date
		}
		return a.Product < b.Product
	})
	sort.Slice(s.Changeovers, func(i, j int) bool {
		a, b := s.Changeovers[i], s.Changeovers[j]
		if a.Date != b.Date {
			return a.Date < b.Date
		}
		return a.Product < b.Product
	})
	sort.Slice(s.Labor, func(i, j int) bool { return s.Labor[i].Date < s.Labor[j].Date })
	sortCohortQuantities(s.Inventory)
	sortCohortQuantities(s.Consumption)
	sortCohortQuantities(s.Disposal)
	sort.Slice(s.Shortages, func(i, j int) bool {
		a, b := s.Shortages[i], s.Shortages[j]
		if a.Date != b.Date {
			return a.Date < b.Date
		}
		if a.Node != b.Node {
			return a.Node < b.Node
		}
		return a.Product < b.Product
	})
	sort.SliceStable(s.Shipments, func(i, j int) bool {
		a, b := s.Shipments[i], s.Shipments[j]
		if a.Departure != b.Departure {
			return a.Departure < b.Departure
		}
		if a.Leg != b.Leg {
			return a.Leg < b.Leg
		}
		if a.Truck != b.Truck {
			return a.Truck < b.Truck
		}
		return entities.LessCohortKey(a.Cohort, b.Cohort)
	})
	sort.Slice(s.TruckLoads, func(i, j int) bool {
		a, b := s.TruckLoads[i], s.TruckLoads[j]
		if a.Date != b.Date {
			return a.Date < b.Date
		}
		if a.Truck != b.Truck {
			return a.Truck < b.Truck
		}
		return a.Product < b.Product
	})
}

func sortCohortQuantities(qs []entities.CohortQuantity) {
	sort.Slice(qs, func(i, j int) bool {
		if qs[i].Date != qs[j].Date {
			return qs[i].Date < qs[j].Date
		}
		return entities.LessCohortKey(qs[i].Cohort, qs[j].Cohort)
	})
}
