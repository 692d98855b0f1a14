// Package solver selects a MILP backend by name
package solver

import (
	"fmt"
	"log/slog"

	"github.com/vsinha/freshplan/pkg/domain/milp"
	"github.com/vsinha/freshplan/pkg/infrastructure/solver/branchbound"
	"github.com/vsinha/freshplan/pkg/infrastructure/solver/highs"
)

// Names lists the available backends
var Names = []string{branchbound.Name, highs.Name}

// New returns the backend called name; an empty name selects branch-and-bound
func New(name string, logger *slog.Logger) (milp.Solver, error) {
	switch name {
	case "", branchbound.Name:
		return branchbound.New(logger), nil
	case highs.Name:
		return highs.New(logger), nil
	default:
		return nil, fmt.Errorf("unknown solver %q, expected one of %v", name, Names)
	}
}
