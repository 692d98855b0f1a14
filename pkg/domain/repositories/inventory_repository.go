package repositories

import "github.com/vsinha/freshplan/pkg/domain/entities"

// InventoryRepository provides access to the stock a run starts from
type InventoryRepository interface {
	GetInitialInventory() ([]entities.InventoryRecord, error)
	GetInTransit() ([]entities.InTransitRecord, error)
	LoadInventory(records []*entities.InventoryRecord) error
	LoadInTransit(records []*entities.InTransitRecord) error
}
