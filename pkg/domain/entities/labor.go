package entities

import "fmt"

// LaborDay describes the labor allotment at the manufacturing site for one date
type LaborDay struct {
	Date             Date
	IsFixedDay       bool
	FixedHours       float64
	MaxOvertimeHours float64
	MaxNonFixedHours float64
	MinimumPaidHours float64
	RegularRate      float64
	OvertimeRate     float64
	NonFixedRate     float64
}

// NewLaborDay creates a validated LaborDay
func NewLaborDay(date Date, isFixed bool, fixedHours, maxOvertime, maxNonFixed, minimumPaid, regularRate, overtimeRate, nonFixedRate float64) (*LaborDay, error) {
	for name, v := range map[string]float64{
		"fixed hours":         fixedHours,
		"max overtime hours":  maxOvertime,
		"max non-fixed hours": maxNonFixed,
		"minimum paid hours":  minimumPaid,
		"regular rate":        regularRate,
		"overtime rate":       overtimeRate,
		"non-fixed rate":      nonFixedRate,
	} {
		if v < 0 {
			return nil, fmt.Errorf("labor day %s: %s cannot be negative, got %g", date, name, v)
		}
	}
	if isFixed && fixedHours == 0 {
		return nil, fmt.Errorf("labor day %s: fixed day requires fixed hours", date)
	}
	if !isFixed && minimumPaid > maxNonFixed {
		return nil, fmt.Errorf("labor day %s: minimum paid hours %g exceed max non-fixed hours %g", date, minimumPaid, maxNonFixed)
	}

	return &LaborDay{
		Date:             date,
		IsFixedDay:       isFixed,
		FixedHours:       fixedHours,
		MaxOvertimeHours: maxOvertime,
		MaxNonFixedHours: maxNonFixed,
		MinimumPaidHours: minimumPaid,
		RegularRate:      regularRate,
		OvertimeRate:     overtimeRate,
		NonFixedRate:     nonFixedRate,
	}, nil
}

// MaxHours returns the most hours that can be worked on the day
func (l *LaborDay) MaxHours() float64 {
	if l.IsFixedDay {
		return l.FixedHours + l.MaxOvertimeHours
	}
	return l.MaxNonFixedHours
}

// FixedCost returns the sunk cost of the guaranteed shift
func (l *LaborDay) FixedCost() float64 {
	if !l.IsFixedDay {
		return 0
	}
	return l.FixedHours * l.RegularRate
}
