package extraction

import (
	"fmt"
	"math"
	"sort"

	"github.com/vsinha/freshplan/pkg/application/services/cohort"
	"github.com/vsinha/freshplan/pkg/domain/entities"
)

// Tolerance is the absolute slack allowed by the re-check
const Tolerance = 1e-4

// Validator re-derives stock levels from decision records alone
type Validator struct {
	idx *cohort.Index
}

// NewValidator creates a validator over the cohort index of a run
func NewValidator(idx *cohort.Index) *Validator {
	return &Validator{idx: idx}
}

// Validate re-checks one window solution
func (v *Validator) Validate(ws *entities.WindowSolution) error {
	return v.check(fmt.Sprintf("window %d", ws.Window.Index), ws.Window.Range(), ws.Opening, ws.Demand, &ws.Schedule)
}

// ValidatePlan re-checks the stitched plan from the original opening state, so stock
// carried across window boundaries must reconcile as well
func (v *Validator) ValidatePlan(plan *entities.Plan) error {
	return v.check("plan", plan.Horizon, plan.Opening, plan.Demand, &plan.Schedule)
}

type flows struct {
	inflow, outflow, consumed, disposed, held float64
}

type ledger struct {
	idx     *cohort.Index
	r       entities.DateRange
	opening map[entities.CohortKey]float64
	days    map[entities.CohortKey]map[entities.Date]*flows
	out     []entities.Violation
}

func (l *ledger) at(k entities.CohortKey, d entities.Date) *flows {
	k = l.idx.Canonical(k)
	byDay, ok := l.days[k]
	if !ok {
		byDay = make(map[entities.Date]*flows)
		l.days[k] = byDay
	}
	f, ok := byDay[d]
	if !ok {
		f = &flows{}
		byDay[d] = f
	}
	return f
}

func (l *ledger) violate(check, subject string, d entities.Date, expected, actual float64) {
	l.out = append(l.out, entities.Violation{Check: check, Subject: subject, Date: d, Expected: expected, Actual: actual})
}

func (v *Validator) check(scope string, r entities.DateRange, opening *entities.Snapshot, demand []entities.DemandRecord, s *entities.Schedule) error {
	l := &ledger{
		idx:     v.idx,
		r:       r,
		opening: make(map[entities.CohortKey]float64),
		days:    make(map[entities.CohortKey]map[entities.Date]*flows),
	}
	net := v.idx.Network()

	if opening != nil {
		for k, q := range opening.Inventory {
			l.opening[v.idx.Canonical(k)] += q
			l.at(k, r.Start)
		}
		for _, rec := range opening.InTransit {
			if !r.Contains(rec.Arrival) {
				continue
			}
			leg, ok := net.Leg(rec.Leg)
			if !ok {
				l.violate("in-transit", string(rec.Leg), rec.Arrival, 0, rec.Quantity)
				continue
			}
			dest, _ := net.Node(leg.Destination)
			key, err := rec.ArrivalKey(leg, dest)
			if err != nil {
				l.violate("in-transit", err.Error(), rec.Arrival, 0, rec.Quantity)
				continue
			}
			l.at(key, rec.Arrival).inflow += rec.Quantity
		}
	}

	mfg := net.Manufacturing().ID
	for _, p := range s.Production {
		key := entities.CohortKey{Node: mfg, Product: p.Product, ProdDate: p.Date, State: entities.Ambient, ThawDate: entities.NoDate}
		l.at(key, p.Date).inflow += p.Quantity
	}
	for _, sh := range s.Shipments {
		if r.Contains(sh.Departure) {
			l.at(sh.Cohort, sh.Departure).outflow += sh.Quantity
		}
		if r.Contains(sh.Arrival) {
			l.at(sh.ArrivalCohort, sh.Arrival).inflow += sh.Quantity
		}
	}
	for _, c := range s.Consumption {
		l.at(c.Cohort, c.Date).consumed += c.Quantity
	}
	for _, d := range s.Disposal {
		l.at(d.Cohort, d.Date).disposed += d.Quantity
	}
	for _, inv := range s.Inventory {
		l.at(inv.Cohort, inv.Date).held += inv.Quantity
	}

	l.balances()
	l.demand(demand, s)
	v.shelfLife(l, s)
	v.trucks(l, s)

	if len(l.out) > 0 {
		return &entities.ConservationViolationError{Scope: scope, Violations: l.out}
	}
	return nil
}

// balances walks every touched cohort through the range in date order
func (l *ledger) balances() {
	keys := make([]entities.CohortKey, 0, len(l.days))
	for k := range l.days {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return entities.LessCohortKey(keys[i], keys[j]) })

	for _, k := range keys {
		byDay := l.days[k]
		prior := l.opening[k]
		for d := l.r.Start; d <= l.r.End; d++ {
			f, ok := byDay[d]
			if !ok {
				f = &flows{}
			}
			expected := prior + f.inflow - f.outflow - f.consumed - f.disposed
			if math.Abs(expected-f.held) > Tolerance {
				l.violate("balance", k.String(), d, expected, f.held)
			}
			if f.held < -Tolerance {
				l.violate("non-negative", k.String(), d, 0, f.held)
			}
			if f.consumed > prior+f.inflow+Tolerance {
				l.violate("consumption", k.String(), d, prior+f.inflow, f.consumed)
			}
			prior = f.held
		}
	}
}

func (l *ledger) demand(demand []entities.DemandRecord, s *entities.Schedule) {
	served := make(map[entities.DemandKey]float64)
	for _, c := range s.Consumption {
		served[entities.DemandKey{Node: c.Cohort.Node, Product: c.Cohort.Product, Date: c.Date}] += c.Quantity
	}
	for _, sh := range s.Shortages {
		served[entities.DemandKey{Node: sh.Node, Product: sh.Product, Date: sh.Date}] += sh.Quantity
	}
	expected := make(map[entities.DemandKey]float64)
	for i := range demand {
		if l.r.Contains(demand[i].Date) {
			expected[demand[i].Key()] += demand[i].Quantity
		}
	}
	for k, q := range served {
		if _, ok := expected[k]; !ok {
			l.violate("demand", k.String(), k.Date, 0, q)
		}
	}
	for k, q := range expected {
		if math.Abs(served[k]-q) > Tolerance {
			l.violate("demand", k.String(), k.Date, q, served[k])
		}
	}
}

func (v *Validator) expiry(k entities.CohortKey) (entities.Date, bool) {
	opts := v.idx.Options()
	if !opts.EnforceShelfLife || !opts.BatchTracking {
		return entities.NoDate, false
	}
	p, ok := v.idx.Product(k.Product)
	if !ok {
		return entities.NoDate, false
	}
	return p.ExpiryDate(k.ProdDate, k.State, k.ThawDate), true
}

// shelfLife rejects stock held on or after its expiry date and stock used after it
func (v *Validator) shelfLife(l *ledger, s *entities.Schedule) {
	for _, inv := range s.Inventory {
		if exp, ok := v.expiry(inv.Cohort); ok && inv.Date >= exp && inv.Quantity > Tolerance {
			l.violate("shelf-life", inv.Cohort.String(), inv.Date, 0, inv.Quantity)
		}
	}
	for _, c := range s.Consumption {
		if exp, ok := v.expiry(c.Cohort); ok && c.Date > exp && c.Quantity > Tolerance {
			l.violate("shelf-life", c.Cohort.String(), c.Date, 0, c.Quantity)
		}
	}
	for _, sh := range s.Shipments {
		if exp, ok := v.expiry(sh.Cohort); ok && sh.Departure > exp {
			l.violate("shelf-life", sh.Cohort.String(), sh.Departure, 0, sh.Quantity)
		}
	}
}

func (v *Validator) trucks(l *ledger, s *entities.Schedule) {
	net := v.idx.Network()

	for _, sh := range s.Shipments {
		if !net.TruckServed(sh.Origin, sh.Destination) {
			continue
		}
		truck, ok := net.Truck(sh.Truck)
		subject := fmt.Sprintf("%s on %s", sh.Truck, sh.Leg)
		switch {
		case sh.Truck == "" || !ok:
			l.violate("truck-assignment", string(sh.Leg), sh.Departure, 0, sh.Quantity)
		case !truck.RunsOn(sh.Departure):
			l.violate("truck-weekday", subject, sh.Departure, 0, sh.Quantity)
		case !truck.Serves(sh.Destination) || truck.Origin != sh.Origin:
			l.violate("truck-lane", subject, sh.Departure, 0, sh.Quantity)
		}
	}

	type truckDay struct {
		units   float64
		pallets int
	}
	days := make(map[entities.TruckDayKey]*truckDay)
	for _, tl := range s.TruckLoads {
		truck, ok := net.Truck(tl.Truck)
		if !ok {
			l.violate("truck-assignment", string(tl.Truck), tl.Date, 0, tl.Units)
			continue
		}
		if !truck.RunsOn(tl.Date) && (tl.Units > Tolerance || tl.Pallets > 0) {
			l.violate("truck-weekday", string(tl.Truck), tl.Date, 0, tl.Units)
		}
		want := 0
		if tl.Units > Tolerance {
			want = int(math.Ceil((tl.Units - Tolerance) / float64(truck.UnitsPerPallet)))
		}
		if tl.Pallets != want {
			l.violate("pallet-ceiling", fmt.Sprintf("%s/%s", tl.Truck, tl.Product), tl.Date, float64(want), float64(tl.Pallets))
		}
		key := entities.TruckDayKey{Truck: tl.Truck, Date: tl.Date}
		if days[key] == nil {
			days[key] = &truckDay{}
		}
		days[key].units += tl.Units
		days[key].pallets += tl.Pallets
	}
	for key, d := range days {
		truck, _ := net.Truck(key.Truck)
		if d.pallets > truck.PalletCapacity {
			l.violate("vehicle-capacity", string(key.Truck), key.Date, float64(truck.PalletCapacity), float64(d.pallets))
		}
		if d.units > float64(truck.UnitCapacity())+Tolerance {
			l.violate("vehicle-capacity", string(key.Truck), key.Date, float64(truck.UnitCapacity()), d.units)
		}
	}
}
