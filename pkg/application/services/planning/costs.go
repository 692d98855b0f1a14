package planning

import (
	"github.com/shopspring/decimal"

	"github.com/vsinha/freshplan/pkg/domain/entities"
	"github.com/vsinha/freshplan/pkg/domain/repositories"
)

// CostOf prices a committed plan line by line. Every line uses the same rates
// the window models minimise, so a plan solved as one window costs its objective.
func CostOf(plan *entities.Plan, costs *entities.CostStructure, net *entities.Network, labor repositories.LaborRepository) entities.CostBreakdown {
	var b entities.CostBreakdown
	qty := decimal.NewFromFloat

	for _, p := range plan.Production {
		q := qty(p.Quantity)
		b.Production = b.Production.Add(q.Mul(costs.ProductionCostPerUnit))
		b.Entry = b.Entry.Add(q.Mul(costs.EntryCostPerUnit(entities.Ambient)))
	}

	for _, sh := range plan.Shipments {
		q := qty(sh.Quantity)
		if leg, ok := net.Leg(sh.Leg); ok {
			b.Transport = b.Transport.Add(q.Mul(qty(leg.CostPerUnit)))
		}
		b.Entry = b.Entry.Add(q.Mul(costs.EntryCostPerUnit(sh.ArrivalCohort.State)))
	}
	trips := make(map[entities.TruckDayKey]bool)
	for _, tl := range plan.TruckLoads {
		key := entities.TruckDayKey{Truck: tl.Truck, Date: tl.Date}
		if tl.Units <= 0 || trips[key] {
			continue
		}
		trips[key] = true
		if truck, ok := net.Truck(tl.Truck); ok {
			b.Transport = b.Transport.Add(qty(truck.FixedCostPerDeparture))
		}
	}

	for _, inv := range plan.Inventory {
		b.Storage = b.Storage.Add(qty(inv.Quantity).Mul(costs.StorageCostPerUnitDay(inv.Cohort.State)))
	}
	for _, d := range plan.Disposal {
		b.Waste = b.Waste.Add(qty(d.Quantity).Mul(costs.WasteCostPerUnit()))
	}
	for _, s := range plan.Shortages {
		b.Shortage = b.Shortage.Add(qty(s.Quantity).Mul(costs.ShortagePenaltyPerUnit))
	}
	for _, c := range plan.Consumption {
		if c.Cohort.ProdDate.IsAggregate() {
			continue
		}
		age := decimal.NewFromInt(int64(c.Date.Sub(c.Cohort.ProdDate)))
		b.Freshness = b.Freshness.Add(qty(c.Quantity).Mul(age).Mul(costs.FreshnessPenaltyPerUnitDay))
	}
	b.Changeover = costs.ChangeoverCost.Mul(decimal.NewFromInt(int64(len(plan.Changeovers))))

	worked := make(map[entities.Date]entities.LaborRecord, len(plan.Labor))
	for _, l := range plan.Labor {
		worked[l.Date] = l
	}
	// fixed shifts are paid whether or not they are worked
	for _, t := range labor.GetLaborDates(plan.Horizon) {
		day, ok := labor.GetLaborDay(t)
		if !ok {
			continue
		}
		rec := worked[t]
		if day.IsFixedDay {
			b.Labor = b.Labor.Add(qty(day.FixedCost())).Add(qty(rec.Overtime).Mul(qty(day.OvertimeRate)))
		} else {
			b.Labor = b.Labor.Add(qty(rec.PaidHours).Mul(qty(day.NonFixedRate)))
		}
	}
	return b
}
