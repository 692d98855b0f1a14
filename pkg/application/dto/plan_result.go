package dto

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/vsinha/freshplan/pkg/domain/entities"
)

// PlanStatus is the overall outcome of a run
type PlanStatus string

const (
	// PlanOptimal means every window closed its gap
	PlanOptimal PlanStatus = "Optimal"
	// PlanFeasibleWithGap means at least one window was committed with an open gap
	PlanFeasibleWithGap PlanStatus = "FeasibleWithGap"
	// PlanFailed means the run halted; only earlier windows are committed
	PlanFailed PlanStatus = "Failed"
)

// PlanResult is the output of a planning run
type PlanResult struct {
	RunID     string                  `json:"run_id"`
	Status    PlanStatus              `json:"status"`
	Plan      *entities.Plan          `json:"plan"`
	Costs     entities.CostBreakdown  `json:"costs"`
	TotalCost decimal.Decimal         `json:"total_cost"`
	Windows   []entities.WindowReport `json:"windows"`
	SolveTime time.Duration           `json:"solve_time"`
	StartedAt time.Time               `json:"started_at"`
}

// Summary returns a one-line description of the run
func (r *PlanResult) Summary() string {
	if r.Plan == nil {
		return fmt.Sprintf("Run %s: %s with no committed windows", r.RunID, r.Status)
	}
	totals := r.Plan.Totals()
	summary := fmt.Sprintf("Run %s: %s | %d windows | produced %.0f | consumed %.0f | short %.0f | disposed %.0f | cost %s",
		r.RunID, r.Status, len(r.Windows), totals.Produced, totals.Consumed, totals.Shortage, totals.Disposed,
		r.TotalCost.StringFixed(2))
	if gaps := r.degradedWindows(); len(gaps) > 0 {
		summary += fmt.Sprintf(" | open gap in %s", strings.Join(gaps, ", "))
	}
	return summary
}

// FillRate is the share of demand served from stock, 1 when there is no demand
func (r *PlanResult) FillRate() float64 {
	if r.Plan == nil {
		return 0
	}
	demand := 0.0
	for _, d := range r.Plan.Demand {
		demand += d.Quantity
	}
	if demand == 0 {
		return 1
	}
	return r.Plan.Totals().Consumed / demand
}

func (r *PlanResult) degradedWindows() []string {
	var out []string
	for _, w := range r.Windows {
		if w.Status != "Optimal" {
			out = append(out, fmt.Sprintf("window %d", w.Window.Index))
		}
	}
	return out
}
