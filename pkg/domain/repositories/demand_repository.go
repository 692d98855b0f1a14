package repositories

import "github.com/vsinha/freshplan/pkg/domain/entities"

// DemandRepository provides access to forecast demand
type DemandRepository interface {
	GetDemandInRange(r entities.DateRange) ([]*entities.DemandRecord, error)
	GetAllDemand() ([]*entities.DemandRecord, error)
	LoadDemand(records []*entities.DemandRecord) error
}
