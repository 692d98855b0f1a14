// Package milp describes mixed-integer linear programs independently of any solver backend.
package milp

import (
	"fmt"
	"math"
)

// VarID indexes a variable within its model
type VarID int32

// VarKind is the domain of a variable
type VarKind int

const (
	Continuous VarKind = iota
	Integer
	Binary
)

// String method for VarKind enum
func (k VarKind) String() string {
	switch k {
	case Continuous:
		return "Continuous"
	case Integer:
		return "Integer"
	case Binary:
		return "Binary"
	default:
		return "Unknown"
	}
}

// Sense is the relation of a constraint row to its right-hand side
type Sense int

const (
	LessEqual Sense = iota
	GreaterEqual
	Equal
)

// String method for Sense enum
func (s Sense) String() string {
	switch s {
	case LessEqual:
		return "<="
	case GreaterEqual:
		return ">="
	case Equal:
		return "="
	default:
		return "?"
	}
}

// Variable is a decision variable with finite lower bound and possibly infinite upper bound
type Variable struct {
	Name  string
	Kind  VarKind
	Lower float64
	Upper float64
}

// IsIntegral reports whether the variable must take an integer value
func (v Variable) IsIntegral() bool {
	return v.Kind != Continuous
}

// Term is a coefficient applied to a variable
type Term struct {
	Var  VarID
	Coef float64
}

// Constraint is one linear row: sum(terms) sense rhs
type Constraint struct {
	Name  string
	Terms []Term
	Sense Sense
	RHS   float64
}

// Activity evaluates the left-hand side for a point
func (c Constraint) Activity(values []float64) float64 {
	total := 0.0
	for _, t := range c.Terms {
		total += t.Coef * values[t.Var]
	}
	return total
}

// Model is a minimization MILP
type Model struct {
	Name        string
	Variables   []Variable
	Constraints []Constraint
	objective   []float64
	constant    float64
}

// NewModel creates an empty model
func NewModel(name string) *Model {
	return &Model{Name: name}
}

// AddVariable appends a variable and returns its id. Binary variables are clamped to [0, 1].
func (m *Model) AddVariable(name string, kind VarKind, lower, upper float64) VarID {
	if kind == Binary {
		lower, upper = math.Max(lower, 0), math.Min(upper, 1)
	}
	m.Variables = append(m.Variables, Variable{Name: name, Kind: kind, Lower: lower, Upper: upper})
	m.objective = append(m.objective, 0)
	return VarID(len(m.Variables) - 1)
}

// NewContinuous adds a non-negative continuous variable with an optional upper bound
func (m *Model) NewContinuous(name string, upper float64) VarID {
	return m.AddVariable(name, Continuous, 0, upper)
}

// NewInteger adds a non-negative integer variable
func (m *Model) NewInteger(name string, upper float64) VarID {
	return m.AddVariable(name, Integer, 0, upper)
}

// NewBinary adds a 0/1 variable
func (m *Model) NewBinary(name string) VarID {
	return m.AddVariable(name, Binary, 0, 1)
}

// AddConstraint appends a row and returns its index. Terms on the same variable are merged.
func (m *Model) AddConstraint(name string, sense Sense, rhs float64, terms ...Term) int {
	m.Constraints = append(m.Constraints, Constraint{
		Name:  name,
		Terms: mergeTerms(terms),
		Sense: sense,
		RHS:   rhs,
	})
	return len(m.Constraints) - 1
}

func mergeTerms(terms []Term) []Term {
	if len(terms) < 2 {
		return terms
	}
	pos := make(map[VarID]int, len(terms))
	merged := make([]Term, 0, len(terms))
	for _, t := range terms {
		if i, ok := pos[t.Var]; ok {
			merged[i].Coef += t.Coef
			continue
		}
		pos[t.Var] = len(merged)
		merged = append(merged, t)
	}
	return merged
}

// AddObjective adds coef to the objective coefficient of v
func (m *Model) AddObjective(v VarID, coef float64) {
	m.objective[v] += coef
}

// AddObjectiveConstant adds a fixed amount to the objective
func (m *Model) AddObjectiveConstant(c float64) {
	m.constant += c
}

// ObjectiveCoef returns the objective coefficient of v
func (m *Model) ObjectiveCoef(v VarID) float64 {
	return m.objective[v]
}

// ObjectiveConstant returns the fixed part of the objective
func (m *Model) ObjectiveConstant() float64 {
	return m.constant
}

// NumVariables returns the number of variables
func (m *Model) NumVariables() int {
	return len(m.Variables)
}

// NumConstraints returns the number of rows
func (m *Model) NumConstraints() int {
	return len(m.Constraints)
}

// NumIntegers returns the number of integer and binary variables
func (m *Model) NumIntegers() int {
	n := 0
	for _, v := range m.Variables {
		if v.IsIntegral() {
			n++
		}
	}
	return n
}

// Evaluate returns the objective value of a point
func (m *Model) Evaluate(values []float64) float64 {
	total := m.constant
	for i, c := range m.objective {
		total += c * values[i]
	}
	return total
}

// Validate checks the model is well formed
func (m *Model) Validate() error {
	for i, v := range m.Variables {
		if math.IsInf(v.Lower, 0) || math.IsNaN(v.Lower) {
			return fmt.Errorf("variable %s must have a finite lower bound", m.Variables[i].Name)
		}
		if v.Upper < v.Lower {
			return fmt.Errorf("variable %s has empty domain [%g, %g]", v.Name, v.Lower, v.Upper)
		}
	}
	for _, c := range m.Constraints {
		for _, t := range c.Terms {
			if int(t.Var) < 0 || int(t.Var) >= len(m.Variables) {
				return fmt.Errorf("constraint %s references unknown variable %d", c.Name, t.Var)
			}
			if math.IsNaN(t.Coef) || math.IsInf(t.Coef, 0) {
				return fmt.Errorf("constraint %s has a non-finite coefficient", c.Name)
			}
		}
	}
	return nil
}

// Check reports the first bound, integrality or row violated by a point beyond tol
func (m *Model) Check(values []float64, tol float64) error {
	if len(values) != len(m.Variables) {
		return fmt.Errorf("expected %d values, got %d", len(m.Variables), len(values))
	}
	for i, v := range m.Variables {
		x := values[i]
		if x < v.Lower-tol || x > v.Upper+tol {
			return fmt.Errorf("variable %s = %g outside [%g, %g]", v.Name, x, v.Lower, v.Upper)
		}
		if v.IsIntegral() && math.Abs(x-math.Round(x)) > tol {
			return fmt.Errorf("variable %s = %g is not integral", v.Name, x)
		}
	}
	for _, c := range m.Constraints {
		lhs := c.Activity(values)
		scale := tol * math.Max(1, math.Abs(c.RHS))
		switch c.Sense {
		case LessEqual:
			if lhs > c.RHS+scale {
				return fmt.Errorf("constraint %s: %g > %g", c.Name, lhs, c.RHS)
			}
		case GreaterEqual:
			if lhs < c.RHS-scale {
				return fmt.Errorf("constraint %s: %g < %g", c.Name, lhs, c.RHS)
			}
		case Equal:
			if math.Abs(lhs-c.RHS) > scale {
				return fmt.Errorf("constraint %s: %g != %g", c.Name, lhs, c.RHS)
			}
		}
	}
	return nil
}
