package formulation

import "github.com/vsinha/freshplan/pkg/domain/entities"

// diagnose compares what the window must deliver with what it could possibly supply.
// The figures are loose upper bounds; they explain infeasibility, they do not detect it.
func (wb *windowBuild) diagnose() {
	d := &wb.f.diagnostics
	w := wb.window
	mfg := wb.net.Manufacturing()

	demandNodes := make(map[entities.NodeID]bool)
	for _, rec := range wb.f.Demand {
		d.Demand += rec.Quantity
		if rec.Quantity > 0 {
			demandNodes[rec.Node] = true
			if len(wb.consAt[rec.Key()]) == 0 {
				d.UnreachableDemand += rec.Quantity
			}
		}
	}

	for t, lv := range wb.f.Labor {
		if w.Range().Contains(t) {
			d.ProductionCapacity += mfg.ProductionRate * lv.Day.MaxHours()
		}
	}

	for id, q := range wb.f.OpeningStock {
		d.OpeningInventory += q
		if c := wb.idx.Cohort(id); c.Perishable() && c.Expiry <= w.End {
			d.ExpiringInventory += q
		}
	}
	for _, q := range wb.f.InTransitStock {
		d.InTransit += q
	}

	d.TransportBounded = len(demandNodes) > 0 && !demandNodes[mfg.ID]
	for node := range demandNodes {
		for _, leg := range wb.net.LegsInto(node) {
			lanes := wb.net.TrucksOnLane(leg.Origin, leg.Destination)
			for t := w.Start; leg.ArrivalDate(t) <= w.End; t++ {
				switch {
				case len(lanes) > 0:
					for _, truck := range lanes {
						if truck.RunsOn(t) {
							d.TransportCapacity += float64(truck.UnitCapacity())
						}
					}
				case leg.CapacityUnits > 0:
					d.TransportCapacity += leg.CapacityUnits
				default:
					d.TransportBounded = false
				}
			}
		}
	}
}
