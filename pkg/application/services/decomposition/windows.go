// Package decomposition solves a long horizon as a sequence of overlapping windows,
// committing the leading part of each and carrying its closing stock into the next.
package decomposition

import (
	"fmt"

	"github.com/vsinha/freshplan/pkg/domain/entities"
)

// PlanWindows splits [start, end] into windows of length days. Every window but the
// last commits length-overlap days; the last is truncated to end and commits all of it.
func PlanWindows(start, end entities.Date, length, overlap int) ([]entities.Window, error) {
	switch {
	case end < start:
		return nil, entities.NewDataValidationError(fmt.Sprintf("horizon end %s is before start %s", end, start))
	case length < 1:
		return nil, entities.NewDataValidationError(fmt.Sprintf("window length must be positive, got %d", length))
	case overlap < 0 || overlap >= length:
		return nil, entities.NewDataValidationError(fmt.Sprintf("overlap must be in [0, %d), got %d", length, overlap))
	}

	var windows []entities.Window
	for s := start; ; {
		w := entities.Window{Index: len(windows), Start: s, End: s.AddDays(length - 1)}
		if w.End >= end {
			w.End = end
			w.CommitEnd = end
			windows = append(windows, w)
			return windows, nil
		}
		w.CommitEnd = w.End.AddDays(-overlap)
		windows = append(windows, w)
		s = w.CommitEnd.AddDays(1)
	}
}

// VerifyCoverage checks that the committed ranges tile [start, end] exactly once
// and that no window reaches outside it
func VerifyCoverage(windows []entities.Window, start, end entities.Date) error {
	horizon := entities.DateRange{Start: start, End: end}
	counts := make(map[entities.Date]int, horizon.Days())
	gap := &entities.WindowCoverageGapError{}

	for _, w := range windows {
		if w.CommitEnd < w.Start || w.CommitEnd > w.End {
			return fmt.Errorf("%s commits outside its own range", w)
		}
		for d := w.Start; d <= w.CommitEnd; d++ {
			if !horizon.Contains(d) {
				gap.OutOfRange = append(gap.OutOfRange, d)
				continue
			}
			counts[d]++
			if counts[d] == 2 {
				gap.Duplicated = append(gap.Duplicated, d)
			}
		}
		for d := w.CommitEnd.AddDays(1); d <= w.End; d++ {
			if !horizon.Contains(d) {
				gap.OutOfRange = append(gap.OutOfRange, d)
			}
		}
	}
	for d := start; d <= end; d++ {
		if counts[d] == 0 {
			gap.Missing = append(gap.Missing, d)
		}
	}

	if len(gap.Missing) > 0 || len(gap.Duplicated) > 0 || len(gap.OutOfRange) > 0 {
		return gap
	}
	return nil
}
