package output

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/vsinha/freshplan/pkg/application/dto"
	"github.com/vsinha/freshplan/pkg/domain/entities"
)

const (
	ruleHeavy = "═══════════════════════════════════════════════════════════════\n"
	ruleLight = "────────────────────────────────────────────────────────────────\n"
)

// TextReport renders a human-readable report of a result
func TextReport(result *dto.PlanResult, config Config) string {
	var b strings.Builder

	b.WriteString(ruleHeavy)
	b.WriteString("              PRODUCTION & DISTRIBUTION PLAN\n")
	b.WriteString(ruleHeavy + "\n")

	if config.Host != nil {
		b.WriteString("🖥  HOST\n")
		fmt.Fprintf(&b, "  %s\n\n", config.Host)
	}

	writeSummary(&b, result)
	writeCosts(&b, result)
	writeWindows(&b, result)

	if plan := result.Plan; plan != nil {
		writeProduction(&b, plan)
		if config.Verbose {
			writeShipments(&b, plan)
		}
		writeShortages(&b, plan)
	}

	b.WriteString(ruleHeavy)
	return b.String()
}

func writeSummary(b *strings.Builder, result *dto.PlanResult) {
	b.WriteString("📊 SUMMARY\n")
	fmt.Fprintf(b, "  Run:          %s\n", result.RunID)
	fmt.Fprintf(b, "  Status:       %s\n", result.Status)
	if result.Plan != nil {
		fmt.Fprintf(b, "  Committed:    %s\n", result.Plan.Horizon)
	}
	fmt.Fprintf(b, "  Windows:      %d\n", len(result.Windows))
	fmt.Fprintf(b, "  Solve Time:   %v\n", result.SolveTime)
	if result.Plan != nil {
		t := result.Plan.Totals()
		fmt.Fprintf(b, "  Produced:     %.0f\n", t.Produced)
		fmt.Fprintf(b, "  Shipped:      %.0f (%d truck trips, %d pallets)\n", t.Shipped, t.TruckTrips, t.PalletsUsed)
		fmt.Fprintf(b, "  Consumed:     %.0f\n", t.Consumed)
		fmt.Fprintf(b, "  Disposed:     %.0f\n", t.Disposed)
		fmt.Fprintf(b, "  Short:        %.0f\n", t.Shortage)
		fmt.Fprintf(b, "  Labor Hours:  %.1f\n", t.LaborHours)
		fmt.Fprintf(b, "  Fill Rate:    %.1f%%\n", result.FillRate()*100)
	}
	fmt.Fprintf(b, "  Total Cost:   %s\n\n", result.TotalCost.StringFixed(2))
}

func writeCosts(b *strings.Builder, result *dto.PlanResult) {
	b.WriteString("💰 COSTS\n")
	b.WriteString(ruleLight)
	for _, l := range result.Costs.Lines() {
		fmt.Fprintf(b, "  %-12s %14s\n", l.Name, l.Amount.StringFixed(2))
	}
	b.WriteString("\n")
}

func writeWindows(b *strings.Builder, result *dto.PlanResult) {
	if len(result.Windows) == 0 {
		return
	}
	b.WriteString("🪟 WINDOWS\n")
	b.WriteString(ruleLight)
	fmt.Fprintf(b, "  %-3s %-23s %-11s %-16s %14s %8s %10s\n",
		"#", "Range", "Commit End", "Status", "Objective", "Gap", "Time")
	for _, w := range result.Windows {
		gap := "n/a"
		if w.Gap >= 0 {
			gap = fmt.Sprintf("%.2f%%", w.Gap*100)
		}
		fmt.Fprintf(b, "  %-3d %-23s %-11s %-16s %14.2f %8s %10v\n",
			w.Window.Index, w.Window.Range(), w.Window.CommitEnd, w.Status,
			w.Objective, gap, w.SolveTime.Round(time.Millisecond))
		if w.Note != "" {
			fmt.Fprintf(b, "      note: %s\n", w.Note)
		}
	}
	b.WriteString("\n")
}

func writeProduction(b *strings.Builder, plan *entities.Plan) {
	if len(plan.Production) == 0 {
		return
	}
	b.WriteString("🏭 PRODUCTION\n")
	b.WriteString(ruleLight)

	rows := append([]entities.ProductionRecord(nil), plan.Production...)
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].Date != rows[j].Date {
			return rows[i].Date < rows[j].Date
		}
		return rows[i].Product < rows[j].Product
	})
	for _, p := range rows {
		fmt.Fprintf(b, "  %s  %-10s %-16s %10.0f\n", p.Date, p.Node, p.Product, p.Quantity)
	}
	b.WriteString("\n")
}

func writeShipments(b *strings.Builder, plan *entities.Plan) {
	if len(plan.Shipments) == 0 {
		return
	}
	b.WriteString("🚚 SHIPMENTS\n")
	b.WriteString(ruleLight)

	rows := append([]entities.ShipmentRecord(nil), plan.Shipments...)
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].Departure != rows[j].Departure {
			return rows[i].Departure < rows[j].Departure
		}
		return rows[i].Leg < rows[j].Leg
	})
	for _, s := range rows {
		truck := string(s.Truck)
		if truck == "" {
			truck = "-"
		}
		fmt.Fprintf(b, "  %s → %s  %-14s %-8s %-16s %-8s made %-10s %10.0f\n",
			s.Departure, s.Arrival, s.Leg, truck, s.Cohort.Product, s.Cohort.State, s.Cohort.ProdDate, s.Quantity)
	}
	b.WriteString("\n")
}

func writeShortages(b *strings.Builder, plan *entities.Plan) {
	if len(plan.Shortages) == 0 {
		return
	}
	b.WriteString("🚨 SHORTAGES\n")
	b.WriteString(ruleLight)
	for _, s := range plan.Shortages {
		fmt.Fprintf(b, "  %s  %-10s %-16s %10.0f\n", s.Date, s.Node, s.Product, s.Quantity)
	}
	b.WriteString("\n")
}
