package memory

import (
	"fmt"
	"sort"

	"github.com/vsinha/freshplan/pkg/domain/entities"
	"github.com/vsinha/freshplan/pkg/domain/repositories"
)

// LaborRepository provides in-memory storage of the labor calendar
type LaborRepository struct {
	days  map[entities.Date]*entities.LaborDay
	dates []entities.Date
}

// NewLaborRepository creates a new in-memory labor repository
func NewLaborRepository() *LaborRepository {
	return &LaborRepository{
		days: make(map[entities.Date]*entities.LaborDay),
	}
}

// Verify interface compliance
var _ repositories.LaborRepository = (*LaborRepository)(nil)

// LoadLaborDays loads calendar entries; a date may appear only once
func (r *LaborRepository) LoadLaborDays(days []*entities.LaborDay) error {
	for _, day := range days {
		if _, exists := r.days[day.Date]; exists {
			return fmt.Errorf("duplicate labor day %s", day.Date)
		}
		d := *day
		r.days[d.Date] = &d
		r.dates = append(r.dates, d.Date)
	}
	sort.Slice(r.dates, func(i, j int) bool { return r.dates[i] < r.dates[j] })
	return nil
}

// GetLaborDay returns the calendar entry for a date
func (r *LaborRepository) GetLaborDay(d entities.Date) (*entities.LaborDay, bool) {
	day, ok := r.days[d]
	return day, ok
}

// GetLaborDates returns the dates in a range that have a calendar entry, ascending
func (r *LaborRepository) GetLaborDates(dr entities.DateRange) []entities.Date {
	lo := sort.Search(len(r.dates), func(i int) bool { return r.dates[i] >= dr.Start })
	hi := sort.Search(len(r.dates), func(i int) bool { return r.dates[i] > dr.End })
	if lo >= hi {
		return nil
	}
	return append([]entities.Date(nil), r.dates[lo:hi]...)
}
