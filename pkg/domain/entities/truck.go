package entities

import (
	"fmt"
	"time"
)

const (
	// DefaultUnitsPerPallet is the standard pallet load
	DefaultUnitsPerPallet = 320
	// DefaultPalletCapacity is the number of pallets a vehicle carries
	DefaultPalletCapacity = 44
)

// TruckSchedule represents a recurring truck departure from one origin
type TruckSchedule struct {
	ID                    TruckID
	Origin                NodeID
	Destinations          []NodeID
	DayOfWeek             *time.Weekday // nil = departs daily
	UnitsPerPallet        int
	PalletCapacity        int
	FixedCostPerDeparture float64
}

// NewTruckSchedule creates a validated TruckSchedule
func NewTruckSchedule(id TruckID, origin NodeID, destinations []NodeID, dayOfWeek *time.Weekday, unitsPerPallet, palletCapacity int, fixedCost float64) (*TruckSchedule, error) {
	if id == "" {
		return nil, fmt.Errorf("truck id cannot be empty")
	}
	if origin == "" {
		return nil, fmt.Errorf("truck %s must have an origin", id)
	}
	if len(destinations) == 0 {
		return nil, fmt.Errorf("truck %s must serve at least one destination", id)
	}
	seen := make(map[NodeID]bool, len(destinations))
	for _, d := range destinations {
		if d == origin {
			return nil, fmt.Errorf("truck %s cannot deliver to its origin %s", id, origin)
		}
		if seen[d] {
			return nil, fmt.Errorf("truck %s lists destination %s twice", id, d)
		}
		seen[d] = true
	}
	if unitsPerPallet == 0 {
		unitsPerPallet = DefaultUnitsPerPallet
	}
	if palletCapacity == 0 {
		palletCapacity = DefaultPalletCapacity
	}
	if unitsPerPallet < 0 || palletCapacity < 0 {
		return nil, fmt.Errorf("truck %s pallet sizes cannot be negative", id)
	}
	if fixedCost < 0 {
		return nil, fmt.Errorf("truck %s fixed cost cannot be negative, got %g", id, fixedCost)
	}

	return &TruckSchedule{
		ID:                    id,
		Origin:                origin,
		Destinations:          destinations,
		DayOfWeek:             dayOfWeek,
		UnitsPerPallet:        unitsPerPallet,
		PalletCapacity:        palletCapacity,
		FixedCostPerDeparture: fixedCost,
	}, nil
}

// RunsOn reports whether the truck departs on date d
func (t *TruckSchedule) RunsOn(d Date) bool {
	if t.DayOfWeek == nil {
		return true
	}
	return d.Weekday() == *t.DayOfWeek
}

// Serves reports whether the truck delivers to dest
func (t *TruckSchedule) Serves(dest NodeID) bool {
	for _, d := range t.Destinations {
		if d == dest {
			return true
		}
	}
	return false
}

// UnitCapacity returns the vehicle capacity in units
func (t *TruckSchedule) UnitCapacity() int {
	return t.UnitsPerPallet * t.PalletCapacity
}

// PalletsFor returns the number of pallets needed to carry units, ceil(units/unitsPerPallet)
func PalletsFor(units, unitsPerPallet int) int {
	if units <= 0 {
		return 0
	}
	return (units + unitsPerPallet - 1) / unitsPerPallet
}
