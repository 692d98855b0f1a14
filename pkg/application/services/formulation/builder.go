package formulation

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sort"

	"github.com/vsinha/freshplan/pkg/application/services/cohort"
	"github.com/vsinha/freshplan/pkg/domain/entities"
	"github.com/vsinha/freshplan/pkg/domain/milp"
	"github.com/vsinha/freshplan/pkg/domain/repositories"
	"github.com/vsinha/freshplan/pkg/infrastructure/logging"
)

// stock below this is treated as absent when reading snapshots
const stockEpsilon = 1e-9

// Deps are the run-wide inputs every window model is built from
type Deps struct {
	Index          *cohort.Index
	Costs          *entities.CostStructure
	Labor          repositories.LaborRepository
	Demand         repositories.DemandRepository
	AllowShortages bool
	Logger         *slog.Logger
}

// Builder emits one model per window
type Builder struct {
	deps   Deps
	logger *slog.Logger
}

// NewBuilder creates a new model builder
func NewBuilder(deps Deps) *Builder {
	return &Builder{deps: deps, logger: logging.WithComponent(deps.Logger, "formulation")}
}

type laneDay struct {
	origin  entities.NodeID
	dest    entities.NodeID
	product entities.ProductID
	date    entities.Date
}

type legDay struct {
	leg  entities.LegID
	date entities.Date
}

// windowBuild holds the scratch state of one Build call
type windowBuild struct {
	f      *Formulation
	m      *milp.Model
	idx    *cohort.Index
	net    *entities.Network
	costs  *entities.CostStructure
	window entities.Window
	deps   Deps

	buckets [][]entities.CohortID

	inflow    map[entities.CohortDayKey][]milp.VarID
	outflow   map[entities.CohortDayKey][]milp.VarID
	consAt    map[entities.DemandKey][]milp.VarID
	laneShips map[laneDay][]milp.VarID
	laneLoads map[laneDay][]milp.VarID
	legShips  map[legDay][]milp.VarID
}

// Build emits the model of window w starting from the stock in snap.
// snap must describe the end of the day before w.Start.
func (b *Builder) Build(ctx context.Context, w entities.Window, snap *entities.Snapshot) (*Formulation, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	idx := b.deps.Index
	if idx == nil || b.deps.Costs == nil || b.deps.Labor == nil || b.deps.Demand == nil {
		return nil, fmt.Errorf("builder requires an index, costs, labor and demand")
	}
	if w.End < w.Start || !idx.Horizon().Contains(w.Start) || !idx.Horizon().Contains(w.End) {
		return nil, fmt.Errorf("%s is outside horizon %s", w, idx.Horizon())
	}
	if snap == nil {
		return nil, fmt.Errorf("%s requires an opening snapshot", w)
	}
	if snap.AsOf != w.Start.AddDays(-1) {
		return nil, fmt.Errorf("snapshot as of %s does not end the day before %s", snap.AsOf, w)
	}

	wb := &windowBuild{
		f: &Formulation{
			Window:         w,
			Model:          milp.NewModel(fmt.Sprintf("window-%d", w.Index)),
			Opening:        snap.Clone(),
			Labor:          make(map[entities.Date]*LaborVars),
			Prod:           make(map[entities.ProductDayKey]milp.VarID),
			Changeover:     make(map[entities.ProductDayKey]milp.VarID),
			Inv:            make(map[entities.CohortDayKey]milp.VarID),
			Disp:           make(map[entities.CohortDayKey]milp.VarID),
			Ship:           make(map[entities.ShipKey]*ShipVar),
			Cons:           make(map[entities.CohortDayKey]milp.VarID),
			Short:          make(map[entities.DemandKey]milp.VarID),
			Load:           make(map[entities.LoadKey]milp.VarID),
			Pallets:        make(map[entities.TruckProductKey]milp.VarID),
			Used:           make(map[entities.TruckDayKey]milp.VarID),
			OpeningStock:   make(map[entities.CohortID]float64),
			InTransitStock: make(map[entities.CohortDayKey]float64),
			LiveFrom:       make(map[entities.CohortID]entities.Date),
			index:          idx,
		},
		idx:       idx,
		net:       idx.Network(),
		costs:     b.deps.Costs,
		window:    w,
		deps:      b.deps,
		buckets:   make([][]entities.CohortID, w.Range().Days()),
		inflow:    make(map[entities.CohortDayKey][]milp.VarID),
		outflow:   make(map[entities.CohortDayKey][]milp.VarID),
		consAt:    make(map[entities.DemandKey][]milp.VarID),
		laneShips: make(map[laneDay][]milp.VarID),
		laneLoads: make(map[laneDay][]milp.VarID),
		legShips:  make(map[legDay][]milp.VarID),
	}
	wb.m = wb.f.Model

	// parameters first, then every variable that can carry stock, then the rows tying them together
	if err := wb.openingStock(snap); err != nil {
		return nil, err
	}
	if err := wb.inTransitStock(snap); err != nil {
		return nil, err
	}
	demand, err := b.deps.Demand.GetDemandInRange(w.Range())
	if err != nil {
		return nil, fmt.Errorf("failed to load demand for %s: %w", w, err)
	}
	for _, d := range demand {
		wb.f.Demand = append(wb.f.Demand, *d)
	}

	wb.laborAndProduction()
	wb.propagateLiveness()
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	wb.inventory()
	wb.shipments()
	wb.consumption()
	wb.balances()
	wb.demandRows()
	wb.trucks()
	wb.legCapacity()
	wb.diagnose()

	m := wb.m
	if err := m.Validate(); err != nil {
		return nil, fmt.Errorf("failed to build model for %s: %w", w, err)
	}
	b.logger.Debug("built window model",
		"window", w.Index,
		"start", w.Start.String(),
		"end", w.End.String(),
		"cohorts", len(wb.f.LiveFrom),
		"variables", m.NumVariables(),
		"integers", m.NumIntegers(),
		"constraints", m.NumConstraints())

	return wb.f, nil
}

func (wb *windowBuild) markLive(id entities.CohortID, d entities.Date) {
	if cur, ok := wb.f.LiveFrom[id]; ok && cur <= d {
		return
	}
	wb.f.LiveFrom[id] = d
	day := d.Sub(wb.window.Start)
	wb.buckets[day] = append(wb.buckets[day], id)
}

func (wb *windowBuild) openingStock(snap *entities.Snapshot) error {
	for _, rec := range snap.Records() {
		if rec.Quantity <= stockEpsilon {
			continue
		}
		id, ok := wb.idx.Lookup(rec.Key())
		if !ok {
			return entities.NewDataValidationError(fmt.Sprintf("opening stock %s is not a reachable cohort", rec.Key()))
		}
		if !wb.idx.Cohort(id).ValidOn(wb.window.Start) {
			return entities.NewDataValidationError(fmt.Sprintf("opening stock %s cannot be held on %s", rec.Key(), wb.window.Start))
		}
		wb.f.OpeningStock[id] += rec.Quantity
		wb.markLive(id, wb.window.Start)
	}
	return nil
}

func (wb *windowBuild) inTransitStock(snap *entities.Snapshot) error {
	for _, rec := range snap.InTransit {
		if rec.Quantity <= stockEpsilon || rec.Arrival > wb.window.End {
			continue
		}
		if rec.Arrival < wb.window.Start {
			return entities.NewDataValidationError(fmt.Sprintf("goods on %s arrived %s before %s", rec.Leg, rec.Arrival, wb.window))
		}
		leg, ok := wb.net.Leg(rec.Leg)
		if !ok {
			return entities.NewDataValidationError(fmt.Sprintf("in-transit goods reference unknown leg %s", rec.Leg))
		}
		dest, _ := wb.net.Node(leg.Destination)
		key, err := rec.ArrivalKey(leg, dest)
		if err != nil {
			return entities.NewDataValidationError(err.Error())
		}
		id, ok := wb.idx.Lookup(key)
		if !ok || !wb.idx.Cohort(id).ValidOn(rec.Arrival) {
			return entities.NewDataValidationError(fmt.Sprintf("in-transit goods %s cannot be received on %s", key, rec.Arrival))
		}
		wb.f.InTransitStock[entities.CohortDayKey{Cohort: id, Date: rec.Arrival}] += rec.Quantity
		wb.markLive(id, rec.Arrival)
	}
	return nil
}

func (wb *windowBuild) laborAndProduction() {
	m := wb.m
	mfg := wb.net.Manufacturing()
	prodCost := wb.costs.ProductionCostPerUnit.InexactFloat64() + wb.costs.EntryCostPerUnit(entities.Ambient).InexactFloat64()
	changeoverCost := wb.costs.ChangeoverCost.InexactFloat64()

	for _, t := range wb.deps.Labor.GetLaborDates(wb.window.Range()) {
		day, ok := wb.deps.Labor.GetLaborDay(t)
		if !ok {
			continue
		}
		lv := &LaborVars{Day: day}
		lv.Hours = m.NewContinuous(fmt.Sprintf("hours[%s]", t), day.MaxHours())
		if day.IsFixedDay {
			lv.Overtime = m.NewContinuous(fmt.Sprintf("overtime[%s]", t), day.MaxOvertimeHours)
			m.AddConstraint(fmt.Sprintf("overtime[%s]", t), milp.GreaterEqual, -day.FixedHours,
				milp.Term{Var: lv.Overtime, Coef: 1}, milp.Term{Var: lv.Hours, Coef: -1})
			m.AddObjective(lv.Overtime, day.OvertimeRate)
			m.AddObjectiveConstant(day.FixedCost())
		} else {
			lv.Paid = m.NewContinuous(fmt.Sprintf("paid[%s]", t), day.MaxNonFixedHours)
			m.AddConstraint(fmt.Sprintf("paid[%s]", t), milp.GreaterEqual, 0,
				milp.Term{Var: lv.Paid, Coef: 1}, milp.Term{Var: lv.Hours, Coef: -1})
			m.AddObjective(lv.Paid, day.NonFixedRate)
			if day.MinimumPaidHours > 0 && day.MaxNonFixedHours > 0 {
				lv.Works = m.NewBinary(fmt.Sprintf("works[%s]", t))
				lv.HasWorks = true
				m.AddConstraint(fmt.Sprintf("minimum_paid[%s]", t), milp.GreaterEqual, 0,
					milp.Term{Var: lv.Paid, Coef: 1}, milp.Term{Var: lv.Works, Coef: -day.MinimumPaidHours})
				m.AddConstraint(fmt.Sprintf("open_shift[%s]", t), milp.LessEqual, 0,
					milp.Term{Var: lv.Hours, Coef: 1}, milp.Term{Var: lv.Works, Coef: -day.MaxNonFixedHours})
			}
		}
		wb.f.Labor[t] = lv

		capacity := mfg.ProductionRate * day.MaxHours()
		if capacity <= 0 {
			continue
		}
		var terms []milp.Term
		for _, p := range wb.idx.Products() {
			id, ok := wb.idx.ProductionCohort(p, t)
			if !ok {
				continue
			}
			key := entities.ProductDayKey{Product: p, Date: t}
			v := m.NewContinuous(fmt.Sprintf("prod[%s,%s]", p, t), capacity)
			wb.f.Prod[key] = v
			m.AddObjective(v, prodCost)
			terms = append(terms, milp.Term{Var: v, Coef: 1})
			cd := entities.CohortDayKey{Cohort: id, Date: t}
			wb.inflow[cd] = append(wb.inflow[cd], v)
			wb.markLive(id, t)

			if changeoverCost > 0 {
				c := m.NewBinary(fmt.Sprintf("changeover[%s,%s]", p, t))
				wb.f.Changeover[key] = c
				m.AddObjective(c, changeoverCost)
				m.AddConstraint(fmt.Sprintf("setup[%s,%s]", p, t), milp.LessEqual, 0,
					milp.Term{Var: v, Coef: 1}, milp.Term{Var: c, Coef: -capacity})
			}
		}
		if len(terms) > 0 {
			terms = append(terms, milp.Term{Var: lv.Hours, Coef: -mfg.ProductionRate})
			m.AddConstraint(fmt.Sprintf("production[%s]", t), milp.LessEqual, 0, terms...)
		}
	}
}

func (wb *windowBuild) truckRuns(leg *entities.Leg, t entities.Date) bool {
	for _, truck := range wb.net.TrucksOnLane(leg.Origin, leg.Destination) {
		if truck.RunsOn(t) {
			return true
		}
	}
	return false
}

// eachDeparture visits every shipment arc of a cohort departing from `from` onwards that arrives inside the window
func (wb *windowBuild) eachDeparture(id entities.CohortID, from entities.Date, fn func(leg *entities.Leg, t entities.Date, to entities.CohortID, arrival entities.Date)) {
	c := wb.idx.Cohort(id)
	last := c.Last
	if wb.window.End < last {
		last = wb.window.End
	}
	for _, leg := range wb.net.LegsFrom(c.Key.Node) {
		trucked := wb.net.TruckServed(leg.Origin, leg.Destination)
		for t := from; t <= last; t++ {
			if leg.ArrivalDate(t) > wb.window.End {
				break
			}
			if trucked && !wb.truckRuns(leg, t) {
				continue
			}
			to, arrival, ok := wb.idx.Arrival(leg, id, t)
			if !ok {
				continue
			}
			fn(leg, t, to, arrival)
		}
	}
}

// propagateLiveness finds the cohorts that can receive stock within the window.
// Legs take at least a day, so a cohort's first live date is final when its bucket is reached.
func (wb *windowBuild) propagateLiveness() {
	done := make(map[entities.CohortID]bool)
	for day := range wb.buckets {
		d := wb.window.Start.AddDays(day)
		for _, id := range wb.buckets[day] {
			if done[id] || wb.f.LiveFrom[id] != d {
				continue
			}
			done[id] = true
			wb.eachDeparture(id, d, func(_ *entities.Leg, _ entities.Date, to entities.CohortID, arrival entities.Date) {
				wb.markLive(to, arrival)
			})
		}
	}
	wb.buckets = nil
}

func (wb *windowBuild) inventory() {
	m := wb.m
	waste := wb.costs.WasteCostPerUnit().InexactFloat64()
	for _, id := range wb.f.LiveCohorts() {
		c := wb.idx.Cohort(id)
		r, _ := wb.f.LiveRange(id)
		storage := wb.costs.StorageCostPerUnitDay(c.Key.State).InexactFloat64()
		for t := r.Start; t <= r.End; t++ {
			key := entities.CohortDayKey{Cohort: id, Date: t}
			upper := math.Inf(1)
			expires := c.Perishable() && t == c.Expiry
			if expires {
				upper = 0
			}
			v := m.NewContinuous(fmt.Sprintf("inv[%d,%s]", id, t), upper)
			wb.f.Inv[key] = v
			m.AddObjective(v, storage)
			if expires {
				d := m.NewContinuous(fmt.Sprintf("disp[%d,%s]", id, t), math.Inf(1))
				wb.f.Disp[key] = d
				m.AddObjective(d, waste)
			}
		}
	}
}

func (wb *windowBuild) shipments() {
	m := wb.m
	for _, id := range wb.f.LiveCohorts() {
		c := wb.idx.Cohort(id)
		wb.eachDeparture(id, wb.f.LiveFrom[id], func(leg *entities.Leg, t entities.Date, to entities.CohortID, arrival entities.Date) {
			toState := wb.idx.Cohort(to).Key.State
			v := m.NewContinuous(fmt.Sprintf("ship[%s,%d,%s]", leg.ID, id, t), math.Inf(1))
			m.AddObjective(v, leg.CostPerUnit+wb.costs.EntryCostPerUnit(toState).InexactFloat64())
			wb.f.Ship[entities.ShipKey{Leg: leg.ID, Cohort: id, Date: t}] = &ShipVar{
				Var: v, Leg: leg, From: id, To: to, Departure: t, Arrival: arrival,
			}

			out := entities.CohortDayKey{Cohort: id, Date: t}
			in := entities.CohortDayKey{Cohort: to, Date: arrival}
			wb.outflow[out] = append(wb.outflow[out], v)
			wb.inflow[in] = append(wb.inflow[in], v)
			ld := legDay{leg: leg.ID, date: t}
			wb.legShips[ld] = append(wb.legShips[ld], v)
			if wb.net.TruckServed(leg.Origin, leg.Destination) {
				lane := laneDay{origin: leg.Origin, dest: leg.Destination, product: c.Key.Product, date: t}
				wb.laneShips[lane] = append(wb.laneShips[lane], v)
			}
		})
	}
}

func (wb *windowBuild) consumption() {
	m := wb.m
	freshness := wb.costs.FreshnessPenaltyPerUnitDay.InexactFloat64()
	penalty := wb.costs.ShortagePenaltyPerUnit.InexactFloat64()

	for _, d := range wb.f.Demand {
		if d.Quantity <= 0 {
			continue
		}
		dk := d.Key()
		product, _ := wb.idx.Product(d.Product)
		for _, id := range wb.idx.At(d.Node, d.Product) {
			c := wb.idx.Cohort(id)
			if c.Key.State == entities.Frozen {
				continue
			}
			r, live := wb.f.LiveRange(id)
			if !live || !r.Contains(d.Date) {
				continue
			}
			if remaining, ok := wb.idx.RemainingLife(id, d.Date); ok && remaining < product.MinRemainingShelfLifeDays {
				continue
			}
			v := m.NewContinuous(fmt.Sprintf("cons[%d,%s]", id, d.Date), d.Quantity)
			wb.f.Cons[entities.CohortDayKey{Cohort: id, Date: d.Date}] = v
			m.AddObjective(v, freshness*float64(wb.idx.Age(id, d.Date)))
			wb.consAt[dk] = append(wb.consAt[dk], v)
		}
		if wb.deps.AllowShortages {
			s := m.NewContinuous(fmt.Sprintf("short[%s]", dk), d.Quantity)
			wb.f.Short[dk] = s
			m.AddObjective(s, penalty)
		}
	}
}

// balances emits the material balance of every live cohort-day and, where stock is consumed,
// the bound that consumption draws only on prior stock and same-day inflow
func (wb *windowBuild) balances() {
	m := wb.m
	for _, id := range wb.f.LiveCohorts() {
		r, _ := wb.f.LiveRange(id)
		for t := r.Start; t <= r.End; t++ {
			key := entities.CohortDayKey{Cohort: id, Date: t}
			rhs := wb.f.InTransitStock[key]
			if t == wb.window.Start {
				rhs += wb.f.OpeningStock[id]
			}

			var prior []milp.Term
			if t > r.Start {
				prior = append(prior, milp.Term{Var: wb.f.Inv[entities.CohortDayKey{Cohort: id, Date: t - 1}], Coef: -1})
			}
			for _, v := range wb.inflow[key] {
				prior = append(prior, milp.Term{Var: v, Coef: -1})
			}

			terms := []milp.Term{{Var: wb.f.Inv[key], Coef: 1}}
			terms = append(terms, prior...)
			for _, v := range wb.outflow[key] {
				terms = append(terms, milp.Term{Var: v, Coef: 1})
			}
			cons, consumed := wb.f.Cons[key]
			if consumed {
				terms = append(terms, milp.Term{Var: cons, Coef: 1})
			}
			if d, ok := wb.f.Disp[key]; ok {
				terms = append(terms, milp.Term{Var: d, Coef: 1})
			}
			m.AddConstraint(fmt.Sprintf("balance[%d,%s]", id, t), milp.Equal, rhs, terms...)

			if consumed {
				bound := append([]milp.Term{{Var: cons, Coef: 1}}, prior...)
				m.AddConstraint(fmt.Sprintf("consume[%d,%s]", id, t), milp.LessEqual, rhs, bound...)
			}
		}
	}
}

func (wb *windowBuild) demandRows() {
	for _, d := range wb.f.Demand {
		dk := d.Key()
		var terms []milp.Term
		for _, v := range wb.consAt[dk] {
			terms = append(terms, milp.Term{Var: v, Coef: 1})
		}
		if s, ok := wb.f.Short[dk]; ok {
			terms = append(terms, milp.Term{Var: s, Coef: 1})
		}
		wb.m.AddConstraint(fmt.Sprintf("demand[%s]", dk), milp.Equal, d.Quantity, terms...)
	}
}

func (wb *windowBuild) trucks() {
	m := wb.m
	for _, truck := range wb.net.Trucks() {
		upp := float64(truck.UnitsPerPallet)
		capacity := float64(truck.PalletCapacity)
		for t := wb.window.Start; t <= wb.window.End; t++ {
			if !truck.RunsOn(t) {
				continue
			}
			var palletTerms, loadTerms []milp.Term
			for _, p := range wb.idx.Products() {
				var loads []milp.Term
				for _, dest := range truck.Destinations {
					lane := laneDay{origin: truck.Origin, dest: dest, product: p, date: t}
					if len(wb.laneShips[lane]) == 0 {
						continue
					}
					// whole units, or the upp-1 ceiling leaves loads just above a pallet multiple infeasible
					v := m.NewInteger(fmt.Sprintf("load[%s,%s,%s,%s]", truck.ID, dest, p, t), float64(truck.UnitCapacity()))
					wb.f.Load[entities.LoadKey{Truck: truck.ID, Destination: dest, Product: p, Date: t}] = v
					wb.laneLoads[lane] = append(wb.laneLoads[lane], v)
					loads = append(loads, milp.Term{Var: v, Coef: -1})
				}
				if len(loads) == 0 {
					continue
				}
				pv := m.NewInteger(fmt.Sprintf("pallets[%s,%s,%s]", truck.ID, p, t), capacity)
				wb.f.Pallets[entities.TruckProductKey{Truck: truck.ID, Product: p, Date: t}] = pv
				row := append([]milp.Term{{Var: pv, Coef: upp}}, loads...)
				m.AddConstraint(fmt.Sprintf("pallet_floor[%s,%s,%s]", truck.ID, p, t), milp.GreaterEqual, 0, row...)
				m.AddConstraint(fmt.Sprintf("pallet_ceiling[%s,%s,%s]", truck.ID, p, t), milp.LessEqual, upp-1, row...)
				palletTerms = append(palletTerms, milp.Term{Var: pv, Coef: 1})
				for _, l := range loads {
					loadTerms = append(loadTerms, milp.Term{Var: l.Var, Coef: 1})
				}
			}
			if len(palletTerms) == 0 {
				continue
			}
			used := m.NewBinary(fmt.Sprintf("used[%s,%s]", truck.ID, t))
			wb.f.Used[entities.TruckDayKey{Truck: truck.ID, Date: t}] = used
			m.AddObjective(used, truck.FixedCostPerDeparture)
			m.AddConstraint(fmt.Sprintf("truck_pallets[%s,%s]", truck.ID, t), milp.LessEqual, 0,
				append(palletTerms, milp.Term{Var: used, Coef: -capacity})...)
			m.AddConstraint(fmt.Sprintf("truck_units[%s,%s]", truck.ID, t), milp.LessEqual, 0,
				append(loadTerms, milp.Term{Var: used, Coef: -upp * capacity})...)
		}
	}

	lanes := make([]laneDay, 0, len(wb.laneShips))
	for lane := range wb.laneShips {
		lanes = append(lanes, lane)
	}
	sort.Slice(lanes, func(i, j int) bool {
		a, b := lanes[i], lanes[j]
		if a.date != b.date {
			return a.date < b.date
		}
		if a.origin != b.origin {
			return a.origin < b.origin
		}
		if a.dest != b.dest {
			return a.dest < b.dest
		}
		return a.product < b.product
	})
	for _, lane := range lanes {
		var terms []milp.Term
		for _, v := range wb.laneShips[lane] {
			terms = append(terms, milp.Term{Var: v, Coef: 1})
		}
		for _, v := range wb.laneLoads[lane] {
			terms = append(terms, milp.Term{Var: v, Coef: -1})
		}
		m.AddConstraint(fmt.Sprintf("loaded[%s>%s,%s,%s]", lane.origin, lane.dest, lane.product, lane.date), milp.Equal, 0, terms...)
	}
}

func (wb *windowBuild) legCapacity() {
	keys := make([]legDay, 0, len(wb.legShips))
	for k := range wb.legShips {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].date != keys[j].date {
			return keys[i].date < keys[j].date
		}
		return keys[i].leg < keys[j].leg
	})
	for _, k := range keys {
		leg, _ := wb.net.Leg(k.leg)
		if leg.CapacityUnits <= 0 {
			continue
		}
		var terms []milp.Term
		for _, v := range wb.legShips[k] {
			terms = append(terms, milp.Term{Var: v, Coef: 1})
		}
		wb.m.AddConstraint(fmt.Sprintf("leg_capacity[%s,%s]", k.leg, k.date), milp.LessEqual, leg.CapacityUnits, terms...)
	}
}
