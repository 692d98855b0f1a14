package entities

import (
	"fmt"
	"math"
)

// TransportMode is the temperature regime of a leg
type TransportMode int

const (
	AmbientTransport TransportMode = iota
	FrozenTransport
)

// String method for TransportMode enum
func (m TransportMode) String() string {
	switch m {
	case AmbientTransport:
		return "Ambient"
	case FrozenTransport:
		return "Frozen"
	default:
		return "Unknown"
	}
}

// ParseTransportMode converts a mode name into a TransportMode
func ParseTransportMode(s string) (TransportMode, error) {
	switch s {
	case "ambient", "Ambient":
		return AmbientTransport, nil
	case "frozen", "Frozen":
		return FrozenTransport, nil
	default:
		return 0, fmt.Errorf("unknown transport mode %q", s)
	}
}

// Leg represents a directed route between two nodes
type Leg struct {
	ID            LegID
	Origin        NodeID
	Destination   NodeID
	TransitDays   int
	Mode          TransportMode
	CapacityUnits float64 // per departure day, 0 = unbounded
	CostPerUnit   float64
}

// NewLeg creates a validated Leg
func NewLeg(id LegID, origin, destination NodeID, transitDays int, mode TransportMode, capacityUnits, costPerUnit float64) (*Leg, error) {
	if id == "" {
		return nil, fmt.Errorf("leg id cannot be empty")
	}
	if origin == "" || destination == "" {
		return nil, fmt.Errorf("leg %s must have an origin and a destination", id)
	}
	if origin == destination {
		return nil, fmt.Errorf("leg %s cannot start and end at %s", id, origin)
	}
	if transitDays < 1 {
		return nil, fmt.Errorf("leg %s transit days must be at least 1, got %d", id, transitDays)
	}
	if capacityUnits < 0 {
		return nil, fmt.Errorf("leg %s capacity cannot be negative, got %g", id, capacityUnits)
	}
	if costPerUnit < 0 {
		return nil, fmt.Errorf("leg %s cost per unit cannot be negative, got %g", id, costPerUnit)
	}

	return &Leg{
		ID:            id,
		Origin:        origin,
		Destination:   destination,
		TransitDays:   transitDays,
		Mode:          mode,
		CapacityUnits: capacityUnits,
		CostPerUnit:   costPerUnit,
	}, nil
}

// Capacity returns the per-day capacity, +Inf when unbounded
func (l *Leg) Capacity() float64 {
	if l.CapacityUnits == 0 {
		return math.Inf(1)
	}
	return l.CapacityUnits
}

// ArrivalDate returns the arrival date for a departure on d
func (l *Leg) ArrivalDate(d Date) Date {
	return d.AddDays(l.TransitDays)
}

// ArrivalState resolves the storage state a cohort ends up in after travelling the leg.
// ok is false when the cohort cannot be loaded onto the leg at all.
func (l *Leg) ArrivalState(departing StorageState, dest *Node) (arrival StorageState, thaws bool, ok bool) {
	switch l.Mode {
	case AmbientTransport:
		if departing == Frozen || !dest.SupportsAmbient {
			return 0, false, false
		}
		return departing, false, true
	case FrozenTransport:
		if departing == Thawed {
			return 0, false, false
		}
		if dest.SupportsFrozen {
			return Frozen, false, true
		}
		if dest.SupportsAmbient {
			return Thawed, true, true
		}
	}
	return 0, false, false
}
