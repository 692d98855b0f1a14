package entities

import (
	"fmt"
	"time"
)

// Window is one solve of the decomposition: decisions in [Start, CommitEnd]
// are final, decisions in (CommitEnd, End] are lookahead only
type Window struct {
	Index     int  `json:"index"`
	Start     Date `json:"start"`
	End       Date `json:"end"`
	CommitEnd Date `json:"commit_end"`
}

// Range returns the full window
func (w Window) Range() DateRange {
	return DateRange{Start: w.Start, End: w.End}
}

// Committed returns the committed sub-range
func (w Window) Committed() DateRange {
	return DateRange{Start: w.Start, End: w.CommitEnd}
}

// Overlap returns the lookahead sub-range, empty for the final window
func (w Window) Overlap() DateRange {
	return DateRange{Start: w.CommitEnd.AddDays(1), End: w.End}
}

// IsFinal reports whether the window commits its entire length
func (w Window) IsFinal() bool {
	return w.CommitEnd == w.End
}

func (w Window) String() string {
	return fmt.Sprintf("window %d [%s..%s] commit to %s", w.Index, w.Start, w.End, w.CommitEnd)
}

// WindowReport records how one window was solved
type WindowReport struct {
	Window           Window        `json:"window"`
	Status           string        `json:"status"`
	Objective        float64       `json:"objective"`
	Bound            float64       `json:"bound"`
	Gap              float64       `json:"gap"`
	SolveTime        time.Duration `json:"solve_time"`
	Variables        int           `json:"variables"`
	Constraints      int           `json:"constraints"`
	IntegerVariables int           `json:"integer_variables"`
	Nodes            int           `json:"nodes"`
	Note             string        `json:"note,omitempty"`
}

// RunConfig holds the settings of one planning run
type RunConfig struct {
	HorizonStart     Date          `json:"horizon_start"`
	HorizonEnd       Date          `json:"horizon_end"`
	WindowDays       int           `json:"window_days"`
	OverlapDays      int           `json:"overlap_days"`
	AllowShortages   bool          `json:"allow_shortages"`
	EnforceShelfLife bool          `json:"enforce_shelf_life"`
	UseBatchTracking bool          `json:"use_batch_tracking"`
	TimeLimit        time.Duration `json:"time_limit"`
	RelativeGap      float64       `json:"relative_gap"`
	Solver           string        `json:"solver"`
}

// DefaultRunConfig returns the standard settings for a horizon
func DefaultRunConfig(start, end Date) RunConfig {
	return RunConfig{
		HorizonStart:     start,
		HorizonEnd:       end,
		WindowDays:       14,
		OverlapDays:      7,
		AllowShortages:   true,
		EnforceShelfLife: true,
		UseBatchTracking: true,
		TimeLimit:        2 * time.Minute,
		RelativeGap:      0.01,
		Solver:           "branchbound",
	}
}

// Horizon returns the planning horizon
func (c RunConfig) Horizon() DateRange {
	return DateRange{Start: c.HorizonStart, End: c.HorizonEnd}
}
