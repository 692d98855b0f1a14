package services

import (
	"fmt"

	"github.com/vsinha/freshplan/pkg/domain/entities"
)

// ConfigValidator checks a run configuration, its cost structure and its forecast
// before any model is built
type ConfigValidator struct{}

// NewConfigValidator creates a new config validator
func NewConfigValidator() *ConfigValidator {
	return &ConfigValidator{}
}

// ValidationResult collects every problem found rather than stopping at the first
type ValidationResult struct {
	Errors []string
}

func (r *ValidationResult) addf(format string, args ...interface{}) {
	r.Errors = append(r.Errors, fmt.Sprintf(format, args...))
}

// Valid reports whether no problems were found
func (r *ValidationResult) Valid() bool {
	return len(r.Errors) == 0
}

// Err converts the result into a DataValidationError, nil when valid
func (r *ValidationResult) Err() error {
	if r.Valid() {
		return nil
	}
	return entities.NewDataValidationError(r.Errors...)
}

// ValidateRun checks the run settings and costs against each other and against the products
func (v *ConfigValidator) ValidateRun(cfg entities.RunConfig, costs *entities.CostStructure, products []*entities.Product) *ValidationResult {
	result := &ValidationResult{}

	horizon := cfg.Horizon()
	if horizon.Empty() {
		result.addf("horizon end %s is before start %s", cfg.HorizonEnd, cfg.HorizonStart)
	}
	if cfg.WindowDays < 1 {
		result.addf("window length must be at least 1 day, got %d", cfg.WindowDays)
	}
	if cfg.OverlapDays < 0 {
		result.addf("overlap cannot be negative, got %d", cfg.OverlapDays)
	}
	if cfg.OverlapDays >= cfg.WindowDays {
		result.addf("overlap %d must be shorter than the window %d", cfg.OverlapDays, cfg.WindowDays)
	}
	if cfg.RelativeGap < 0 || cfg.RelativeGap >= 1 {
		result.addf("relative gap must be in [0, 1), got %g", cfg.RelativeGap)
	}
	if cfg.TimeLimit <= 0 {
		result.addf("time limit must be positive, got %s", cfg.TimeLimit)
	}
	if cfg.EnforceShelfLife && !cfg.UseBatchTracking {
		result.addf("shelf life cannot be enforced without batch tracking")
	}

	if len(products) == 0 {
		result.addf("at least one product is required")
	}

	if costs == nil {
		result.addf("cost structure is required")
	} else {
		if err := costs.Validate(); err != nil {
			result.addf("%v", err)
		}
		waste := costs.WasteCostPerUnit()
		if cfg.AllowShortages && !costs.ShortagePenaltyPerUnit.GreaterThan(waste) {
			result.addf("shortage penalty %s must exceed the waste cost per unit %s", costs.ShortagePenaltyPerUnit, waste)
		}
	}

	// Stock committed in one window must be able to age out inside a later one
	if cfg.EnforceShelfLife && cfg.WindowDays > 0 && horizon.Days() > cfg.WindowDays {
		for _, p := range products {
			life := p.RelevantShelfLife()
			if cfg.WindowDays < life {
				result.addf("product %s: overlap %d is shorter than shelf life %d minus committed length %d",
					p.ID, cfg.OverlapDays, life, cfg.WindowDays-cfg.OverlapDays)
			}
		}
	}

	return result
}

// ValidateLookahead checks that every departure in a committed range arrives inside
// its own window. The next window starts after the commit range, so a departure
// arriving past the window end would exist in no model at all.
func (v *ConfigValidator) ValidateLookahead(cfg entities.RunConfig, net *entities.Network) *ValidationResult {
	result := &ValidationResult{}
	if net == nil || cfg.WindowDays < 1 || cfg.Horizon().Days() <= cfg.WindowDays {
		return result
	}
	for _, leg := range net.Legs() {
		if leg.TransitDays > cfg.OverlapDays {
			result.addf("leg %s: overlap %d is shorter than its transit of %d days", leg.ID, cfg.OverlapDays, leg.TransitDays)
		}
	}
	return result
}

// ValidateDemand checks that every forecast record can be served somewhere in the network
func (v *ConfigValidator) ValidateDemand(net *entities.Network, products []*entities.Product, horizon entities.DateRange, demand []*entities.DemandRecord) *ValidationResult {
	result := &ValidationResult{}
	known := make(map[entities.ProductID]bool, len(products))
	for _, p := range products {
		known[p.ID] = true
	}

	for _, d := range demand {
		node, ok := net.Node(d.Node)
		switch {
		case !ok:
			result.addf("demand %s references unknown node %s", d.Key(), d.Node)
		case !known[d.Product]:
			result.addf("demand %s references unknown product %s", d.Key(), d.Product)
		case !node.SupportsAmbient:
			result.addf("demand %s is at %s which cannot hold ambient or thawed stock", d.Key(), d.Node)
		case !horizon.Contains(d.Date):
			result.addf("demand %s is outside horizon %s", d.Key(), horizon)
		case d.Quantity < 0:
			result.addf("demand %s is negative: %g", d.Key(), d.Quantity)
		}
	}
	return result
}
