package memory

import (
	"fmt"
	"sort"

	"github.com/vsinha/freshplan/pkg/domain/entities"
	"github.com/vsinha/freshplan/pkg/domain/repositories"
)

// DemandRepository provides in-memory forecast storage.
// Records for the same node, product and date are summed on load.
type DemandRepository struct {
	demand []entities.DemandRecord
	byKey  map[entities.DemandKey]int
}

// NewDemandRepository creates a new in-memory demand repository
func NewDemandRepository() *DemandRepository {
	return &DemandRepository{
		demand: []entities.DemandRecord{},
		byKey:  make(map[entities.DemandKey]int),
	}
}

// Verify interface compliance
var _ repositories.DemandRepository = (*DemandRepository)(nil)

// LoadDemand loads forecast records into the repository
func (r *DemandRepository) LoadDemand(records []*entities.DemandRecord) error {
	for _, rec := range records {
		if rec.Quantity < 0 {
			return fmt.Errorf("negative demand %g for %s", rec.Quantity, rec.Key())
		}
		r.AddDemand(*rec)
	}
	r.sort()
	return nil
}

// AddDemand adds one record, merging it into an existing record with the same key
func (r *DemandRepository) AddDemand(rec entities.DemandRecord) {
	if i, exists := r.byKey[rec.Key()]; exists {
		r.demand[i].Quantity += rec.Quantity
		return
	}
	r.byKey[rec.Key()] = len(r.demand)
	r.demand = append(r.demand, rec)
}

// GetDemandInRange returns the records dated within the range, ordered by date, node and product
func (r *DemandRepository) GetDemandInRange(dr entities.DateRange) ([]*entities.DemandRecord, error) {
	var demand []*entities.DemandRecord
	for i := range r.demand {
		if dr.Contains(r.demand[i].Date) {
			demand = append(demand, &r.demand[i])
		}
	}
	return demand, nil
}

// GetAllDemand returns every record
func (r *DemandRepository) GetAllDemand() ([]*entities.DemandRecord, error) {
	demand := make([]*entities.DemandRecord, 0, len(r.demand))
	for i := range r.demand {
		demand = append(demand, &r.demand[i])
	}
	return demand, nil
}

// Total returns the demand in a range
func (r *DemandRepository) Total(dr entities.DateRange) float64 {
	total := 0.0
	for i := range r.demand {
		if dr.Contains(r.demand[i].Date) {
			total += r.demand[i].Quantity
		}
	}
	return total
}

func (r *DemandRepository) sort() {
	sort.Slice(r.demand, func(i, j int) bool {
		a, b := r.demand[i], r.demand[j]
		if a.Date != b.Date {
			return a.Date < b.Date
		}
		if a.Node != b.Node {
			return a.Node < b.Node
		}
		return a.Product < b.Product
	})
	for i := range r.demand {
		r.byKey[r.demand[i].Key()] = i
	}
}
