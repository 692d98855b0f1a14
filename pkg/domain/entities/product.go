package entities

import "fmt"

// Product represents a perishable item with per-state shelf lives in days
type Product struct {
	ID                        ProductID
	Description               string
	AmbientShelfLifeDays      int
	FrozenShelfLifeDays       int
	ThawedShelfLifeDays       int
	MinRemainingShelfLifeDays int
}

// NewProduct creates a validated Product
func NewProduct(id ProductID, description string, ambient, frozen, thawed, minRemaining int) (*Product, error) {
	if id == "" {
		return nil, fmt.Errorf("product id cannot be empty")
	}
	if ambient <= 0 {
		return nil, fmt.Errorf("product %s ambient shelf life must be positive, got %d", id, ambient)
	}
	if frozen < 0 || thawed < 0 {
		return nil, fmt.Errorf("product %s shelf lives cannot be negative", id)
	}
	if minRemaining < 0 {
		return nil, fmt.Errorf("product %s minimum remaining shelf life cannot be negative, got %d", id, minRemaining)
	}
	if minRemaining > ambient {
		return nil, fmt.Errorf("product %s minimum remaining shelf life %d exceeds ambient shelf life %d", id, minRemaining, ambient)
	}

	return &Product{
		ID:                        id,
		Description:               description,
		AmbientShelfLifeDays:      ambient,
		FrozenShelfLifeDays:       frozen,
		ThawedShelfLifeDays:       thawed,
		MinRemainingShelfLifeDays: minRemaining,
	}, nil
}

// ShelfLife returns the shelf life in days for a state
func (p *Product) ShelfLife(s StorageState) int {
	switch s {
	case Frozen:
		return p.FrozenShelfLifeDays
	case Thawed:
		return p.ThawedShelfLifeDays
	default:
		return p.AmbientShelfLifeDays
	}
}

// ExpiryDate returns the last day a cohort may still be held.
// Thawed cohorts are bounded by both the post-thaw countdown and the frozen life.
func (p *Product) ExpiryDate(productionDate Date, state StorageState, thawDate Date) Date {
	switch state {
	case Thawed:
		thawExpiry := thawDate.AddDays(p.ThawedShelfLifeDays)
		frozenExpiry := productionDate.AddDays(p.FrozenShelfLifeDays)
		if frozenExpiry < thawExpiry {
			return frozenExpiry
		}
		return thawExpiry
	default:
		return productionDate.AddDays(p.ShelfLife(state))
	}
}

// RelevantShelfLife is the longest shelf life that can age out within a planning window
func (p *Product) RelevantShelfLife() int {
	if p.ThawedShelfLifeDays > p.AmbientShelfLifeDays {
		return p.ThawedShelfLifeDays
	}
	return p.AmbientShelfLifeDays
}
