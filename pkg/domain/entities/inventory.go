package entities

import (
	"encoding/json"
	"fmt"
	"sort"
)

// InventoryRecord represents stock on hand at the planning start date
type InventoryRecord struct {
	Node     NodeID       `json:"node"`
	Product  ProductID    `json:"product"`
	ProdDate Date         `json:"production_date"`
	State    StorageState `json:"state"`
	ThawDate Date         `json:"thaw_date"`
	Quantity float64      `json:"quantity"`
}

// NewInventoryRecord creates a validated InventoryRecord
func NewInventoryRecord(node NodeID, product ProductID, prodDate Date, state StorageState, thawDate Date, quantity float64) (*InventoryRecord, error) {
	if _, err := NewCohortKey(node, product, prodDate, state, thawDate); err != nil {
		return nil, err
	}
	if quantity < 0 {
		return nil, fmt.Errorf("inventory quantity cannot be negative, got %g", quantity)
	}

	return &InventoryRecord{
		Node:     node,
		Product:  product,
		ProdDate: prodDate,
		State:    state,
		ThawDate: thawDate,
		Quantity: quantity,
	}, nil
}

// Key returns the cohort holding the stock
func (r *InventoryRecord) Key() CohortKey {
	return CohortKey{Node: r.Node, Product: r.Product, ProdDate: r.ProdDate, State: r.State, ThawDate: r.ThawDate}
}

// InTransitRecord represents goods already on a leg when a window begins.
// State and ThawDate describe the cohort as it departed; the arriving cohort
// follows from the leg's state transition.
type InTransitRecord struct {
	Leg      LegID        `json:"leg"`
	Product  ProductID    `json:"product"`
	ProdDate Date         `json:"production_date"`
	State    StorageState `json:"state"`
	ThawDate Date         `json:"thaw_date"`
	Arrival  Date         `json:"arrival"`
	Quantity float64      `json:"quantity"`
}

// NewInTransitRecord creates a validated InTransitRecord
func NewInTransitRecord(leg LegID, product ProductID, prodDate Date, state StorageState, thawDate Date, arrival Date, quantity float64) (*InTransitRecord, error) {
	if leg == "" {
		return nil, fmt.Errorf("in-transit leg cannot be empty")
	}
	if product == "" {
		return nil, fmt.Errorf("in-transit product cannot be empty")
	}
	if state == Thawed && thawDate == NoDate {
		return nil, fmt.Errorf("thawed in-transit goods on %s require a thaw date", leg)
	}
	if state != Thawed && thawDate != NoDate {
		return nil, fmt.Errorf("%s in-transit goods on %s cannot carry a thaw date", state, leg)
	}
	if quantity < 0 {
		return nil, fmt.Errorf("in-transit quantity cannot be negative, got %g", quantity)
	}

	return &InTransitRecord{
		Leg:      leg,
		Product:  product,
		ProdDate: prodDate,
		State:    state,
		ThawDate: thawDate,
		Arrival:  arrival,
		Quantity: quantity,
	}, nil
}

// ArrivalKey resolves the cohort the goods join at the leg's destination
func (r *InTransitRecord) ArrivalKey(leg *Leg, dest *Node) (CohortKey, error) {
	state, thaws, ok := leg.ArrivalState(r.State, dest)
	if !ok {
		return CohortKey{}, fmt.Errorf("leg %s cannot carry %s %s", leg.ID, r.State, r.Product)
	}
	thaw := r.ThawDate
	if thaws {
		thaw = r.Arrival
	}
	return CohortKey{Node: dest.ID, Product: r.Product, ProdDate: r.ProdDate, State: state, ThawDate: thaw}, nil
}

// Snapshot is the state carried between windows: stock on hand at the end of
// AsOf and goods in transit that arrive after it.
type Snapshot struct {
	AsOf      Date                  `json:"as_of"`
	Inventory map[CohortKey]float64 `json:"-"`
	InTransit []InTransitRecord     `json:"in_transit"`
}

// NewSnapshot creates an empty snapshot as of a date
func NewSnapshot(asOf Date) *Snapshot {
	return &Snapshot{
		AsOf:      asOf,
		Inventory: make(map[CohortKey]float64),
	}
}

// Clone returns a deep copy
func (s *Snapshot) Clone() *Snapshot {
	c := NewSnapshot(s.AsOf)
	for k, v := range s.Inventory {
		c.Inventory[k] = v
	}
	c.InTransit = append([]InTransitRecord(nil), s.InTransit...)
	return c
}

// TotalInventory returns the units on hand
func (s *Snapshot) TotalInventory() float64 {
	total := 0.0
	for _, v := range s.Inventory {
		total += v
	}
	return total
}

// TotalInTransit returns the units in transit
func (s *Snapshot) TotalInTransit() float64 {
	total := 0.0
	for _, r := range s.InTransit {
		total += r.Quantity
	}
	return total
}

// Records flattens the inventory map into records ordered by cohort
func (s *Snapshot) Records() []InventoryRecord {
	records := make([]InventoryRecord, 0, len(s.Inventory))
	for k, v := range s.Inventory {
		records = append(records, InventoryRecord{
			Node: k.Node, Product: k.Product, ProdDate: k.ProdDate,
			State: k.State, ThawDate: k.ThawDate, Quantity: v,
		})
	}
	sort.Slice(records, func(i, j int) bool {
		return LessCohortKey(records[i].Key(), records[j].Key())
	})
	return records
}

type snapshotJSON struct {
	AsOf      Date              `json:"as_of"`
	Inventory []InventoryRecord `json:"inventory"`
	InTransit []InTransitRecord `json:"in_transit"`
}

// MarshalJSON encodes the inventory map as a record list
func (s *Snapshot) MarshalJSON() ([]byte, error) {
	return json.Marshal(snapshotJSON{AsOf: s.AsOf, Inventory: s.Records(), InTransit: s.InTransit})
}

// UnmarshalJSON decodes a record list back into the inventory map
func (s *Snapshot) UnmarshalJSON(b []byte) error {
	var raw snapshotJSON
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	s.AsOf = raw.AsOf
	s.Inventory = make(map[CohortKey]float64, len(raw.Inventory))
	for i := range raw.Inventory {
		s.Inventory[raw.Inventory[i].Key()] += raw.Inventory[i].Quantity
	}
	s.InTransit = raw.InTransit
	return nil
}
