package entities

import (
	"errors"
	"fmt"
	"strings"
)

// Error kinds, matchable with errors.Is
var (
	ErrDataValidation        = errors.New("data validation failed")
	ErrInfeasibleWindow      = errors.New("infeasible window")
	ErrSolverTimeout         = errors.New("solver timeout")
	ErrConservationViolation = errors.New("conservation violation")
	ErrWindowCoverageGap     = errors.New("window coverage gap")
)

// DataValidationError reports inputs that cannot be planned
type DataValidationError struct {
	Problems []string
}

// NewDataValidationError creates a DataValidationError from a list of problems
func NewDataValidationError(problems ...string) *DataValidationError {
	return &DataValidationError{Problems: problems}
}

func (e *DataValidationError) Error() string {
	return fmt.Sprintf("%s: %s", ErrDataValidation, strings.Join(e.Problems, "; "))
}

func (e *DataValidationError) Unwrap() error {
	return ErrDataValidation
}

// InfeasibleCause categorizes why a window could not be solved
type InfeasibleCause int

const (
	CauseUnknown InfeasibleCause = iota
	CauseCapacity
	CauseShelfLife
	CauseNetworkPath
	CauseTimeout
)

// String method for InfeasibleCause enum
func (c InfeasibleCause) String() string {
	switch c {
	case CauseCapacity:
		return "capacity"
	case CauseShelfLife:
		return "shelf-life"
	case CauseNetworkPath:
		return "network-path"
	case CauseTimeout:
		return "timeout"
	default:
		return "unknown"
	}
}

// MarshalText implements encoding.TextMarshaler
func (c InfeasibleCause) MarshalText() ([]byte, error) {
	return []byte(c.String()), nil
}

// WindowDiagnostics compares what a window must deliver with what it can supply
type WindowDiagnostics struct {
	Demand             float64 `json:"demand"`
	UnreachableDemand  float64 `json:"unreachable_demand"`
	ProductionCapacity float64 `json:"production_capacity"`
	TransportCapacity  float64 `json:"transport_capacity"`
	TransportBounded   bool    `json:"transport_bounded"`
	OpeningInventory   float64 `json:"opening_inventory"`
	InTransit          float64 `json:"in_transit"`
	ExpiringInventory  float64 `json:"expiring_inventory"`
}

// AvailableSupply is everything the window could possibly deliver
func (d WindowDiagnostics) AvailableSupply() float64 {
	return d.ProductionCapacity + d.OpeningInventory + d.InTransit
}

// Classify picks the most likely cause of infeasibility
func (d WindowDiagnostics) Classify() InfeasibleCause {
	switch {
	case d.UnreachableDemand > 0:
		return CauseNetworkPath
	case d.Demand > d.AvailableSupply():
		return CauseCapacity
	case d.TransportBounded && d.Demand > d.TransportCapacity+d.OpeningInventory+d.InTransit:
		return CauseCapacity
	case d.ExpiringInventory > 0:
		return CauseShelfLife
	default:
		return CauseCapacity
	}
}

// InfeasibleWindowError reports a window without a feasible assignment.
// CommittedWindows counts the windows whose decisions were committed before it.
type InfeasibleWindowError struct {
	Window           Window            `json:"window"`
	Cause            InfeasibleCause   `json:"cause"`
	Diagnostics      WindowDiagnostics `json:"diagnostics"`
	CommittedWindows int               `json:"committed_windows"`
	Err              error             `json:"-"`
}

func (e *InfeasibleWindowError) Error() string {
	msg := fmt.Sprintf("%s %d [%s]: cause %s, demand %.1f vs supply %.1f (production %.1f, inventory %.1f, in transit %.1f)",
		ErrInfeasibleWindow, e.Window.Index, e.Window.Range(), e.Cause,
		e.Diagnostics.Demand, e.Diagnostics.AvailableSupply(), e.Diagnostics.ProductionCapacity,
		e.Diagnostics.OpeningInventory, e.Diagnostics.InTransit)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *InfeasibleWindowError) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrInfeasibleWindow}
	}
	return []error{ErrInfeasibleWindow, e.Err}
}

// SolverTimeoutError reports a solve that ran out of time before reaching the gap target
type SolverTimeoutError struct {
	Window       Window  `json:"window"`
	HasIncumbent bool    `json:"has_incumbent"`
	Objective    float64 `json:"objective"`
	Bound        float64 `json:"bound"`
	Gap          float64 `json:"gap"`
}

func (e *SolverTimeoutError) Error() string {
	if !e.HasIncumbent {
		return fmt.Sprintf("%s: window %d found no solution", ErrSolverTimeout, e.Window.Index)
	}
	return fmt.Sprintf("%s: window %d stopped at objective %.2f, bound %.2f, gap %.4f",
		ErrSolverTimeout, e.Window.Index, e.Objective, e.Bound, e.Gap)
}

func (e *SolverTimeoutError) Unwrap() error {
	return ErrSolverTimeout
}

// Violation is one failed post-solve check
type Violation struct {
	Check    string  `json:"check"`
	Subject  string  `json:"subject"`
	Date     Date    `json:"date"`
	Expected float64 `json:"expected"`
	Actual   float64 `json:"actual"`
}

func (v Violation) String() string {
	return fmt.Sprintf("%s %s on %s: expected %.6f, got %.6f", v.Check, v.Subject, v.Date, v.Expected, v.Actual)
}

// ConservationViolationError reports solver output that fails the independent re-check
type ConservationViolationError struct {
	Scope      string      `json:"scope"`
	Violations []Violation `json:"violations"`
}

func (e *ConservationViolationError) Error() string {
	const shown = 5
	parts := make([]string, 0, shown)
	for i, v := range e.Violations {
		if i == shown {
			parts = append(parts, fmt.Sprintf("and %d more", len(e.Violations)-shown))
			break
		}
		parts = append(parts, v.String())
	}
	return fmt.Sprintf("%s in %s: %s", ErrConservationViolation, e.Scope, strings.Join(parts, "; "))
}

func (e *ConservationViolationError) Unwrap() error {
	return ErrConservationViolation
}

// WindowCoverageGapError reports committed regions that do not tile the horizon
type WindowCoverageGapError struct {
	Missing    []Date `json:"missing"`
	Duplicated []Date `json:"duplicated"`
	OutOfRange []Date `json:"out_of_range"`
}

func (e *WindowCoverageGapError) Error() string {
	return fmt.Sprintf("%s: %d uncommitted, %d double-committed, %d outside horizon",
		ErrWindowCoverageGap, len(e.Missing), len(e.Duplicated), len(e.OutOfRange))
}

func (e *WindowCoverageGapError) Unwrap() error {
	return ErrWindowCoverageGap
}
