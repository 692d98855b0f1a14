package repositories

import "github.com/vsinha/freshplan/pkg/domain/entities"

// LaborRepository provides access to the labor calendar of the manufacturing site
type LaborRepository interface {
	GetLaborDay(d entities.Date) (*entities.LaborDay, bool)
	GetLaborDates(r entities.DateRange) []entities.Date
	LoadLaborDays(days []*entities.LaborDay) error
}
