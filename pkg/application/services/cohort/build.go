package cohort

import (
	"fmt"
	"sort"

	"github.com/vsinha/freshplan/pkg/domain/entities"
)

// builder discovers cohorts in order of the first date they can hold stock.
// Every leg takes at least one day, so a cohort found while processing day d
// always lands in a later bucket and each key is finalized at its earliest date.
type builder struct {
	idx      *Index
	buckets  [][]entities.CohortKey
	best     map[entities.CohortKey]entities.Date
	seeded   map[entities.CohortKey]bool
	problems []string
}

// Build enumerates every cohort that can hold a nonzero quantity within the horizon.
// Cohorts at the plant start on their production date, cohorts elsewhere on their
// earliest arrival over the network, and seed records create their cohorts directly.
func Build(net *entities.Network, products []*entities.Product, horizon entities.DateRange, seeds Seeds, opts Options) (*Index, error) {
	if net == nil {
		return nil, fmt.Errorf("network cannot be nil")
	}
	if horizon.Empty() {
		return nil, fmt.Errorf("horizon %s is empty", horizon)
	}

	idx := &Index{
		net:           net,
		products:      make(map[entities.ProductID]*entities.Product, len(products)),
		horizon:       horizon,
		opts:          opts,
		byKey:         make(map[entities.CohortKey]entities.CohortID),
		byNodeProduct: make(map[nodeProduct][]entities.CohortID),
	}
	for _, p := range products {
		if _, exists := idx.products[p.ID]; exists {
			return nil, fmt.Errorf("duplicate product id %s", p.ID)
		}
		idx.products[p.ID] = p
		idx.productOrder = append(idx.productOrder, p.ID)
	}
	sort.Slice(idx.productOrder, func(i, j int) bool { return idx.productOrder[i] < idx.productOrder[j] })

	b := &builder{
		idx:     idx,
		buckets: make([][]entities.CohortKey, horizon.Days()),
		best:    make(map[entities.CohortKey]entities.Date),
		seeded:  make(map[entities.CohortKey]bool),
	}

	b.seedInventory(seeds.Inventory)
	b.seedInTransit(seeds.InTransit)
	if len(b.problems) > 0 {
		return nil, entities.NewDataValidationError(b.problems...)
	}
	b.seedProduction()

	for day := 0; day < len(b.buckets); day++ {
		d := horizon.Start.AddDays(day)
		for _, k := range b.buckets[day] {
			if b.best[k] != d {
				continue
			}
			if _, done := idx.byKey[k]; done {
				continue
			}
			b.finalize(k, d)
		}
		b.buckets[day] = nil
	}

	idx.sortByNodeProduct()
	return idx, nil
}

func (b *builder) push(k entities.CohortKey, first entities.Date) bool {
	idx := b.idx
	k = idx.Canonical(k)
	if first < idx.horizon.Start {
		first = idx.horizon.Start
	}
	if first > idx.horizon.End {
		return false
	}
	if exp := idx.expiry(k); exp != entities.NoDate && exp < first {
		return false
	}
	if prev, ok := b.best[k]; ok && prev <= first {
		return true
	}
	b.best[k] = first
	day := first.Sub(idx.horizon.Start)
	b.buckets[day] = append(b.buckets[day], k)
	return true
}

func (b *builder) seedInventory(records []entities.InventoryRecord) {
	idx := b.idx
	for i := range records {
		r := &records[i]
		node, ok := idx.net.Node(r.Node)
		if !ok {
			b.problems = append(b.problems, fmt.Sprintf("inventory references unknown node %s", r.Node))
			continue
		}
		if _, ok := idx.products[r.Product]; !ok {
			b.problems = append(b.problems, fmt.Sprintf("inventory references unknown product %s", r.Product))
			continue
		}
		if !node.Supports(r.State) {
			b.problems = append(b.problems, fmt.Sprintf("node %s cannot hold %s stock", r.Node, r.State))
			continue
		}
		if !r.ProdDate.IsAggregate() && r.ProdDate > idx.horizon.Start {
			b.problems = append(b.problems, fmt.Sprintf("inventory %s produced after the horizon start %s", r.Key(), idx.horizon.Start))
			continue
		}
		if r.Quantity == 0 {
			continue
		}
		if !b.push(r.Key(), idx.horizon.Start) {
			b.problems = append(b.problems, fmt.Sprintf("inventory %s has expired by %s", r.Key(), idx.horizon.Start))
			continue
		}
		b.seeded[idx.Canonical(r.Key())] = true
	}
}

func (b *builder) seedInTransit(records []entities.InTransitRecord) {
	idx := b.idx
	for i := range records {
		r := &records[i]
		leg, ok := idx.net.Leg(r.Leg)
		if !ok {
			b.problems = append(b.problems, fmt.Sprintf("in-transit goods reference unknown leg %s", r.Leg))
			continue
		}
		if _, ok := idx.products[r.Product]; !ok {
			b.problems = append(b.problems, fmt.Sprintf("in-transit goods reference unknown product %s", r.Product))
			continue
		}
		// goods landing after the horizon never enter a balance
		if r.Arrival > idx.horizon.End {
			continue
		}
		if r.Arrival < idx.horizon.Start {
			b.problems = append(b.problems, fmt.Sprintf("in-transit goods on %s arrived %s before horizon %s", r.Leg, r.Arrival, idx.horizon))
			continue
		}
		dest, _ := idx.net.Node(leg.Destination)
		key, err := r.ArrivalKey(leg, dest)
		if err != nil {
			b.problems = append(b.problems, err.Error())
			continue
		}
		if r.Quantity == 0 {
			continue
		}
		if !b.push(key, r.Arrival) {
			b.problems = append(b.problems, fmt.Sprintf("in-transit goods %s have expired on arrival %s", key, r.Arrival))
			continue
		}
		b.seeded[idx.Canonical(key)] = true
	}
}

func (b *builder) seedProduction() {
	idx := b.idx
	mfg := idx.net.Manufacturing()

	dates := idx.opts.ProductionDates
	if dates == nil {
		for d := idx.horizon.Start; d <= idx.horizon.End; d++ {
			dates = append(dates, d)
		}
	}
	for _, d := range dates {
		if !idx.horizon.Contains(d) {
			continue
		}
		for _, p := range idx.productOrder {
			b.push(entities.CohortKey{
				Node:     mfg.ID,
				Product:  p,
				ProdDate: d,
				State:    entities.Ambient,
				ThawDate: entities.NoDate,
			}, d)
		}
	}
}

func (b *builder) finalize(k entities.CohortKey, first entities.Date) {
	idx := b.idx
	last := idx.horizon.End
	exp := idx.expiry(k)
	if exp != entities.NoDate && exp < last {
		last = exp
	}

	id := entities.CohortID(len(idx.cohorts))
	idx.cohorts = append(idx.cohorts, Cohort{
		ID:     id,
		Key:    k,
		First:  first,
		Last:   last,
		Expiry: exp,
		Seeded: b.seeded[k],
	})
	idx.byKey[k] = id
	np := nodeProduct{node: k.Node, product: k.Product}
	idx.byNodeProduct[np] = append(idx.byNodeProduct[np], id)

	for _, leg := range idx.net.LegsFrom(k.Node) {
		dest, _ := idx.net.Node(leg.Destination)
		state, thaws, ok := leg.ArrivalState(k.State, dest)
		if !ok {
			continue
		}
		for t := first; t <= last; t++ {
			arrival := leg.ArrivalDate(t)
			if arrival > idx.horizon.End {
				break
			}
			thaw := k.ThawDate
			if thaws {
				thaw = arrival
			}
			b.push(k.At(dest.ID, state, thaw), arrival)
			if !thaws || !idx.opts.BatchTracking {
				// the earliest departure already gives the earliest arrival
				break
			}
		}
	}
}
