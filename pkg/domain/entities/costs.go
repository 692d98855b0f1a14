package entities

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// StateCosts holds one money amount per storage state
type StateCosts struct {
	Ambient decimal.Decimal `json:"ambient"`
	Frozen  decimal.Decimal `json:"frozen"`
	Thawed  decimal.Decimal `json:"thawed"`
}

// For returns the amount for a storage state
func (c StateCosts) For(s StorageState) decimal.Decimal {
	switch s {
	case Frozen:
		return c.Frozen
	case Thawed:
		return c.Thawed
	default:
		return c.Ambient
	}
}

// CostStructure holds every cost coefficient of the plan
type CostStructure struct {
	ProductionCostPerUnit      decimal.Decimal `json:"production_cost_per_unit"`
	StorageCostPerPalletDay    StateCosts      `json:"storage_cost_per_pallet_day"`
	EntryCostPerPallet         StateCosts      `json:"entry_cost_per_pallet"`
	WasteMultiplier            decimal.Decimal `json:"waste_multiplier"`
	ShortagePenaltyPerUnit     decimal.Decimal `json:"shortage_penalty_per_unit"`
	FreshnessPenaltyPerUnitDay decimal.Decimal `json:"freshness_penalty_per_unit_day"`
	ChangeoverCost             decimal.Decimal `json:"changeover_cost"`
	UnitsPerPallet             int             `json:"units_per_pallet"`
}

// DefaultCostStructure returns a cost structure with the standard pallet size and no costs
func DefaultCostStructure() *CostStructure {
	return &CostStructure{
		WasteMultiplier: decimal.NewFromInt(1),
		UnitsPerPallet:  DefaultUnitsPerPallet,
	}
}

// WasteCostPerUnit is the cost of disposing of one unit
func (c *CostStructure) WasteCostPerUnit() decimal.Decimal {
	return c.WasteMultiplier.Mul(c.ProductionCostPerUnit)
}

// StorageCostPerUnitDay converts the pallet-day rate into a per-unit rate
func (c *CostStructure) StorageCostPerUnitDay(s StorageState) decimal.Decimal {
	return c.perUnit(c.StorageCostPerPalletDay.For(s))
}

// EntryCostPerUnit converts the pallet entry rate into a per-unit rate
func (c *CostStructure) EntryCostPerUnit(s StorageState) decimal.Decimal {
	return c.perUnit(c.EntryCostPerPallet.For(s))
}

func (c *CostStructure) perUnit(perPallet decimal.Decimal) decimal.Decimal {
	upp := c.UnitsPerPallet
	if upp <= 0 {
		upp = DefaultUnitsPerPallet
	}
	return perPallet.Div(decimal.NewFromInt(int64(upp)))
}

// Validate checks that no money amount is negative
func (c *CostStructure) Validate() error {
	fields := []struct {
		name  string
		value decimal.Decimal
	}{
		{"production cost per unit", c.ProductionCostPerUnit},
		{"ambient storage cost", c.StorageCostPerPalletDay.Ambient},
		{"frozen storage cost", c.StorageCostPerPalletDay.Frozen},
		{"thawed storage cost", c.StorageCostPerPalletDay.Thawed},
		{"ambient entry cost", c.EntryCostPerPallet.Ambient},
		{"frozen entry cost", c.EntryCostPerPallet.Frozen},
		{"thawed entry cost", c.EntryCostPerPallet.Thawed},
		{"waste multiplier", c.WasteMultiplier},
		{"shortage penalty", c.ShortagePenaltyPerUnit},
		{"freshness penalty", c.FreshnessPenaltyPerUnitDay},
		{"changeover cost", c.ChangeoverCost},
	}
	for _, f := range fields {
		if f.value.IsNegative() {
			return fmt.Errorf("%s cannot be negative, got %s", f.name, f.value)
		}
	}
	if c.UnitsPerPallet < 0 {
		return fmt.Errorf("units per pallet cannot be negative, got %d", c.UnitsPerPallet)
	}
	return nil
}

// CostBreakdown itemizes the cost of a plan
type CostBreakdown struct {
	Production decimal.Decimal `json:"production"`
	Labor      decimal.Decimal `json:"labor"`
	Transport  decimal.Decimal `json:"transport"`
	Storage    decimal.Decimal `json:"storage"`
	Entry      decimal.Decimal `json:"entry"`
	Waste      decimal.Decimal `json:"waste"`
	Shortage   decimal.Decimal `json:"shortage"`
	Freshness  decimal.Decimal `json:"freshness"`
	Changeover decimal.Decimal `json:"changeover"`
}

// Total sums every line of the breakdown
func (b CostBreakdown) Total() decimal.Decimal {
	return decimal.Sum(b.Production, b.Labor, b.Transport, b.Storage, b.Entry,
		b.Waste, b.Shortage, b.Freshness, b.Changeover)
}

// Lines returns the breakdown as ordered name/amount pairs
func (b CostBreakdown) Lines() []CostLine {
	return []CostLine{
		{"production", b.Production},
		{"labor", b.Labor},
		{"transport", b.Transport},
		{"storage", b.Storage},
		{"entry", b.Entry},
		{"waste", b.Waste},
		{"shortage", b.Shortage},
		{"freshness", b.Freshness},
		{"changeover", b.Changeover},
	}
}

// CostLine is one named line of a CostBreakdown
type CostLine struct {
	Name   string
	Amount decimal.Decimal
}
