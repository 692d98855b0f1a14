package dto

import "github.com/vsinha/freshplan/pkg/domain/entities"

// PlanningContext carries every input of one planning run
type PlanningContext struct {
	Nodes     []*entities.Node
	Legs      []*entities.Leg
	Trucks    []*entities.TruckSchedule
	Products  []*entities.Product
	Labor     []*entities.LaborDay
	Costs     *entities.CostStructure
	Demand    []*entities.DemandRecord
	Inventory []*entities.InventoryRecord
	InTransit []*entities.InTransitRecord
	Config    entities.RunConfig
}

// TotalDemand sums the forecast
func (c *PlanningContext) TotalDemand() float64 {
	total := 0.0
	for _, d := range c.Demand {
		total += d.Quantity
	}
	return total
}
