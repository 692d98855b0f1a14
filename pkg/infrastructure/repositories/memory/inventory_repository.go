package memory

import (
	"fmt"

	"github.com/vsinha/freshplan/pkg/domain/entities"
	"github.com/vsinha/freshplan/pkg/domain/repositories"
)

// InventoryRepository provides in-memory storage of opening stock and goods in transit
type InventoryRepository struct {
	inventory []entities.InventoryRecord
	inTransit []entities.InTransitRecord
}

// NewInventoryRepository creates a new in-memory inventory repository
func NewInventoryRepository() *InventoryRepository {
	return &InventoryRepository{
		inventory: []entities.InventoryRecord{},
		inTransit: []entities.InTransitRecord{},
	}
}

// Verify interface compliance
var _ repositories.InventoryRepository = (*InventoryRepository)(nil)

// LoadInventory loads opening stock into the repository
func (r *InventoryRepository) LoadInventory(records []*entities.InventoryRecord) error {
	for _, rec := range records {
		if rec.Quantity < 0 {
			return fmt.Errorf("negative inventory %g for %s", rec.Quantity, rec.Key())
		}
		r.inventory = append(r.inventory, *rec)
	}
	return nil
}

// LoadInTransit loads goods already on a leg into the repository
func (r *InventoryRepository) LoadInTransit(records []*entities.InTransitRecord) error {
	for _, rec := range records {
		if rec.Quantity < 0 {
			return fmt.Errorf("negative in-transit quantity %g on %s", rec.Quantity, rec.Leg)
		}
		r.inTransit = append(r.inTransit, *rec)
	}
	return nil
}

// GetInitialInventory returns a copy of the opening stock
func (r *InventoryRepository) GetInitialInventory() ([]entities.InventoryRecord, error) {
	return append([]entities.InventoryRecord(nil), r.inventory...), nil
}

// GetInTransit returns a copy of the goods in transit
func (r *InventoryRepository) GetInTransit() ([]entities.InTransitRecord, error) {
	return append([]entities.InTransitRecord(nil), r.inTransit...), nil
}

// Snapshot builds the opening snapshot, stock on hand at the end of asOf
func (r *InventoryRepository) Snapshot(asOf entities.Date) *entities.Snapshot {
	s := entities.NewSnapshot(asOf)
	for i := range r.inventory {
		if r.inventory[i].Quantity > 0 {
			s.Inventory[r.inventory[i].Key()] += r.inventory[i].Quantity
		}
	}
	for _, rec := range r.inTransit {
		if rec.Quantity > 0 {
			s.InTransit = append(s.InTransit, rec)
		}
	}
	return s
}
