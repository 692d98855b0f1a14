package entities

import "fmt"

// DemandRecord represents forecast demand for a product at a node on a date
type DemandRecord struct {
	Node     NodeID    `json:"node"`
	Product  ProductID `json:"product"`
	Date     Date      `json:"date"`
	Quantity float64   `json:"quantity"`
}

// NewDemandRecord creates a validated DemandRecord
func NewDemandRecord(node NodeID, product ProductID, date Date, quantity float64) (*DemandRecord, error) {
	if node == "" {
		return nil, fmt.Errorf("demand node cannot be empty")
	}
	if product == "" {
		return nil, fmt.Errorf("demand product cannot be empty")
	}
	if quantity < 0 {
		return nil, fmt.Errorf("demand quantity cannot be negative, got %g", quantity)
	}

	return &DemandRecord{
		Node:     node,
		Product:  product,
		Date:     date,
		Quantity: quantity,
	}, nil
}

// Key returns the demand key of the record
func (d *DemandRecord) Key() DemandKey {
	return DemandKey{Node: d.Node, Product: d.Product, Date: d.Date}
}

// ShortageRecord represents demand left unserved
type ShortageRecord struct {
	Node     NodeID    `json:"node"`
	Product  ProductID `json:"product"`
	Date     Date      `json:"date"`
	Quantity float64   `json:"quantity"`
}
