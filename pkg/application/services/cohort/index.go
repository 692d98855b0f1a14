// Package cohort enumerates the inventory state space of a planning run: every
// (node, product, production date, state, thaw date) cohort that can hold stock,
// and the contiguous range of dates on which it can.
package cohort

import (
	"fmt"
	"sort"

	"github.com/vsinha/freshplan/pkg/domain/entities"
)

// Options controls how cohorts are keyed and aged
type Options struct {
	EnforceShelfLife bool
	BatchTracking    bool
	// ProductionDates restricts the dates the plant may produce on; nil means every horizon date
	ProductionDates []entities.Date
}

// Seeds are records that create cohorts regardless of path reachability
type Seeds struct {
	Inventory []entities.InventoryRecord
	InTransit []entities.InTransitRecord
}

// Cohort is one arena entry of the index
type Cohort struct {
	ID     entities.CohortID
	Key    entities.CohortKey
	First  entities.Date
	Last   entities.Date
	Expiry entities.Date // NoDate when shelf life is not tracked
	Seeded bool
}

// ValidOn reports whether the cohort can hold stock on d
func (c *Cohort) ValidOn(d entities.Date) bool {
	return d >= c.First && d <= c.Last
}

// Perishable reports whether the cohort must be disposed of on its expiry date
func (c *Cohort) Perishable() bool {
	return c.Expiry != entities.NoDate
}

type nodeProduct struct {
	node    entities.NodeID
	product entities.ProductID
}

// Index is the enumerated cohort set of one planning run. It is immutable once built.
type Index struct {
	net           *entities.Network
	products      map[entities.ProductID]*entities.Product
	productOrder  []entities.ProductID
	horizon       entities.DateRange
	opts          Options
	cohorts       []Cohort
	byKey         map[entities.CohortKey]entities.CohortID
	byNodeProduct map[nodeProduct][]entities.CohortID
}

// Len returns the number of cohorts
func (idx *Index) Len() int {
	return len(idx.cohorts)
}

// Cohort returns the arena entry for id
func (idx *Index) Cohort(id entities.CohortID) *Cohort {
	return &idx.cohorts[id]
}

// Cohorts returns the arena in id order. Callers must not modify it.
func (idx *Index) Cohorts() []Cohort {
	return idx.cohorts
}

// Horizon returns the planning horizon the index covers
func (idx *Index) Horizon() entities.DateRange {
	return idx.horizon
}

// Options returns the options the index was built with
func (idx *Index) Options() Options {
	return idx.opts
}

// Network returns the network the index was built from
func (idx *Index) Network() *entities.Network {
	return idx.net
}

// Product looks up a product
func (idx *Index) Product(id entities.ProductID) (*entities.Product, bool) {
	p, ok := idx.products[id]
	return p, ok
}

// Products returns the product ids in sorted order
func (idx *Index) Products() []entities.ProductID {
	return idx.productOrder
}

// Canonical maps a key onto the key the index stores it under.
// Without batch tracking every production and thaw date collapses onto AggregateDate.
func (idx *Index) Canonical(k entities.CohortKey) entities.CohortKey {
	if idx.opts.BatchTracking {
		return k
	}
	k.ProdDate = entities.AggregateDate
	if k.State == entities.Thawed {
		k.ThawDate = entities.AggregateDate
	} else {
		k.ThawDate = entities.NoDate
	}
	return k
}

// Lookup resolves a key to its cohort id
func (idx *Index) Lookup(k entities.CohortKey) (entities.CohortID, bool) {
	id, ok := idx.byKey[idx.Canonical(k)]
	return id, ok
}

// MustLookup resolves a key and panics when the key was never enumerated
func (idx *Index) MustLookup(k entities.CohortKey) entities.CohortID {
	id, ok := idx.Lookup(k)
	if !ok {
		panic(fmt.Sprintf("cohort %s is not in the index", k))
	}
	return id
}

// At returns the cohorts held at a node for a product, oldest production date first
func (idx *Index) At(node entities.NodeID, product entities.ProductID) []entities.CohortID {
	return idx.byNodeProduct[nodeProduct{node: node, product: product}]
}

// ProductionCohort returns the cohort that production of a product on d enters
func (idx *Index) ProductionCohort(product entities.ProductID, d entities.Date) (entities.CohortID, bool) {
	return idx.Lookup(entities.CohortKey{
		Node:     idx.net.Manufacturing().ID,
		Product:  product,
		ProdDate: d,
		State:    entities.Ambient,
		ThawDate: entities.NoDate,
	})
}

// Arrival resolves the cohort a shipment of id over leg, departing on d, joins at the destination.
// ok is false when the leg cannot carry the cohort or the arriving cohort cannot hold stock on arrival.
func (idx *Index) Arrival(leg *entities.Leg, id entities.CohortID, d entities.Date) (entities.CohortID, entities.Date, bool) {
	src := &idx.cohorts[id]
	dest, _ := idx.net.Node(leg.Destination)
	state, thaws, ok := leg.ArrivalState(src.Key.State, dest)
	if !ok {
		return 0, 0, false
	}
	arrival := leg.ArrivalDate(d)
	thaw := src.Key.ThawDate
	if thaws {
		thaw = arrival
	}
	destID, ok := idx.Lookup(src.Key.At(dest.ID, state, thaw))
	if !ok || !idx.cohorts[destID].ValidOn(arrival) {
		return 0, 0, false
	}
	return destID, arrival, true
}

// Age returns the days since production of a cohort on d, zero for aggregate cohorts
func (idx *Index) Age(id entities.CohortID, d entities.Date) int {
	k := idx.cohorts[id].Key
	if k.ProdDate.IsAggregate() {
		return 0
	}
	return d.Sub(k.ProdDate)
}

// RemainingLife returns the days left before expiry on d, and false for non-perishable cohorts
func (idx *Index) RemainingLife(id entities.CohortID, d entities.Date) (int, bool) {
	c := &idx.cohorts[id]
	if !c.Perishable() {
		return 0, false
	}
	return c.Expiry.Sub(d), true
}

func (idx *Index) expiry(k entities.CohortKey) entities.Date {
	if !idx.opts.EnforceShelfLife || !idx.opts.BatchTracking {
		return entities.NoDate
	}
	return idx.products[k.Product].ExpiryDate(k.ProdDate, k.State, k.ThawDate)
}

func (idx *Index) sortByNodeProduct() {
	for np, ids := range idx.byNodeProduct {
		sort.Slice(ids, func(i, j int) bool {
			return entities.LessCohortKey(idx.cohorts[ids[i]].Key, idx.cohorts[ids[j]].Key)
		})
		idx.byNodeProduct[np] = ids
	}
}
