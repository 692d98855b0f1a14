package events

import (
	"time"

	"github.com/vsinha/freshplan/pkg/domain/entities"
)

const (
	RunStartedEvent   = "run.started"
	RunCompletedEvent = "run.completed"
	RunFailedEvent    = "run.failed"

	WindowPlannedEvent   = "window.planned"
	WindowSolvedEvent    = "window.solved"
	WindowCommittedEvent = "window.committed"
	WindowFailedEvent    = "window.failed"
)

// WindowTypes lists every window lifecycle event type
var WindowTypes = []string{WindowPlannedEvent, WindowSolvedEvent, WindowCommittedEvent, WindowFailedEvent}

type RunStarted struct {
	Horizon entities.DateRange `json:"horizon"`
	Windows int                `json:"windows"`
	Solver  string             `json:"solver"`
}

type RunCompleted struct {
	Windows   int                     `json:"windows"`
	Totals    entities.ScheduleTotals `json:"totals"`
	SolveTime time.Duration           `json:"solve_time"`
}

type RunFailed struct {
	Reason string `json:"reason"`
}

type WindowPlanned struct {
	Window      entities.Window `json:"window"`
	Variables   int             `json:"variables"`
	Constraints int             `json:"constraints"`
}

type WindowSolved struct {
	Report entities.WindowReport `json:"report"`
}

type WindowCommitted struct {
	Window  entities.Window         `json:"window"`
	Totals  entities.ScheduleTotals `json:"totals"`
	Carried float64                 `json:"carried"`
}

type WindowFailed struct {
	Window entities.Window          `json:"window"`
	Cause  entities.InfeasibleCause `json:"cause"`
	Reason string                   `json:"reason"`
}

func NewRunStartedEvent(runID string, horizon entities.DateRange, windows int, solver string) Event {
	return NewEvent(RunStartedEvent, runID, RunStarted{Horizon: horizon, Windows: windows, Solver: solver})
}

func NewRunCompletedEvent(runID string, windows int, totals entities.ScheduleTotals, solveTime time.Duration) Event {
	return NewEvent(RunCompletedEvent, runID, RunCompleted{Windows: windows, Totals: totals, SolveTime: solveTime})
}

func NewRunFailedEvent(runID string, err error) Event {
	return NewEvent(RunFailedEvent, runID, RunFailed{Reason: err.Error()})
}

func NewWindowPlannedEvent(runID string, w entities.Window, variables, constraints int) Event {
	return NewEvent(WindowPlannedEvent, runID, WindowPlanned{Window: w, Variables: variables, Constraints: constraints})
}

func NewWindowSolvedEvent(runID string, report entities.WindowReport) Event {
	return NewEvent(WindowSolvedEvent, runID, WindowSolved{Report: report})
}

// NewWindowCommittedEvent records the committed decisions and the stock handed to the next window
func NewWindowCommittedEvent(runID string, w entities.Window, totals entities.ScheduleTotals, carry *entities.Snapshot) Event {
	return NewEvent(WindowCommittedEvent, runID, WindowCommitted{
		Window:  w,
		Totals:  totals,
		Carried: carry.TotalInventory() + carry.TotalInTransit(),
	})
}

func NewWindowFailedEvent(runID string, w entities.Window, cause entities.InfeasibleCause, err error) Event {
	return NewEvent(WindowFailedEvent, runID, WindowFailed{Window: w, Cause: cause, Reason: err.Error()})
}
