package entities

import "fmt"

// CohortID is the arena index of a cohort within one planning run
type CohortID int32

// CohortKey identifies a cohort independent of the current date
type CohortKey struct {
	Node     NodeID       `json:"node"`
	Product  ProductID    `json:"product"`
	ProdDate Date         `json:"production_date"`
	State    StorageState `json:"state"`
	ThawDate Date         `json:"thaw_date"`
}

// NewCohortKey creates a validated CohortKey.
// A thaw date is required for thawed cohorts and rejected otherwise.
func NewCohortKey(node NodeID, product ProductID, prodDate Date, state StorageState, thawDate Date) (CohortKey, error) {
	if node == "" {
		return CohortKey{}, fmt.Errorf("cohort node cannot be empty")
	}
	if product == "" {
		return CohortKey{}, fmt.Errorf("cohort product cannot be empty")
	}
	if state < Ambient || state > Thawed {
		return CohortKey{}, fmt.Errorf("cohort state %d is not a storage state", state)
	}
	if state == Thawed && thawDate == NoDate {
		return CohortKey{}, fmt.Errorf("thawed cohort %s/%s requires a thaw date", node, product)
	}
	if state != Thawed && thawDate != NoDate {
		return CohortKey{}, fmt.Errorf("%s cohort %s/%s cannot carry a thaw date", state, node, product)
	}
	if state == Thawed && !prodDate.IsAggregate() && thawDate < prodDate {
		return CohortKey{}, fmt.Errorf("cohort %s/%s thawed on %s before production on %s", node, product, thawDate, prodDate)
	}

	return CohortKey{
		Node:     node,
		Product:  product,
		ProdDate: prodDate,
		State:    state,
		ThawDate: thawDate,
	}, nil
}

func (k CohortKey) String() string {
	if k.State == Thawed {
		return fmt.Sprintf("%s/%s@%s[%s since %s]", k.Node, k.Product, k.ProdDate, k.State, k.ThawDate)
	}
	return fmt.Sprintf("%s/%s@%s[%s]", k.Node, k.Product, k.ProdDate, k.State)
}

// At returns the same cohort held at another node in another state
func (k CohortKey) At(node NodeID, state StorageState, thawDate Date) CohortKey {
	return CohortKey{Node: node, Product: k.Product, ProdDate: k.ProdDate, State: state, ThawDate: thawDate}
}

// LessCohortKey orders cohorts by node, product, production date (oldest first), state and thaw date
func LessCohortKey(a, b CohortKey) bool {
	if a.Node != b.Node {
		return a.Node < b.Node
	}
	if a.Product != b.Product {
		return a.Product < b.Product
	}
	if a.ProdDate != b.ProdDate {
		return a.ProdDate < b.ProdDate
	}
	if a.State != b.State {
		return a.State < b.State
	}
	return a.ThawDate < b.ThawDate
}

// CohortDayKey addresses a cohort on one date
type CohortDayKey struct {
	Cohort CohortID
	Date   Date
}

// ShipKey addresses a shipment of an origin-side cohort departing on Date
type ShipKey struct {
	Leg    LegID
	Cohort CohortID
	Date   Date
}

// DemandKey addresses demand for one product at one node on one date
type DemandKey struct {
	Node    NodeID    `json:"node"`
	Product ProductID `json:"product"`
	Date    Date      `json:"date"`
}

func (k DemandKey) String() string {
	return fmt.Sprintf("%s/%s@%s", k.Node, k.Product, k.Date)
}

// ProductDayKey addresses production of one product on one date
type ProductDayKey struct {
	Product ProductID
	Date    Date
}

// TruckDayKey addresses one departure of a truck schedule
type TruckDayKey struct {
	Truck TruckID
	Date  Date
}

// TruckProductKey addresses the pallets of one product on one truck departure
type TruckProductKey struct {
	Truck   TruckID
	Product ProductID
	Date    Date
}

// LoadKey addresses the units of one product loaded for one destination on one truck departure
type LoadKey struct {
	Truck       TruckID
	Destination NodeID
	Product     ProductID
	Date        Date
}

// LaneKey is an origin-destination pair
type LaneKey struct {
	Origin      NodeID
	Destination NodeID
}
