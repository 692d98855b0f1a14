package branchbound

import (
	"context"
	"fmt"
	"math"
	"testing"
	"time"

	"github.com/vsinha/freshplan/pkg/domain/milp"
)

func solve(t *testing.T, m *milp.Model) *milp.Result {
	t.Helper()
	res, err := New(nil).Solve(context.Background(), m, milp.SolveOptions{TimeLimit: 10 * time.Second})
	if err != nil {
		t.Fatalf("Solve failed: %v", err)
	}
	if res.HasSolution() {
		if err := m.Check(res.Values, 1e-6); err != nil {
			t.Fatalf("Solution violates the model: %v", err)
		}
	}
	return res
}

func near(a, b float64) bool {
	return math.Abs(a-b) < 1e-6
}

func TestSolve_LinearProgram(t *testing.T) {
	m := milp.NewModel("lp")
	x := m.NewContinuous("x", math.Inf(1))
	y := m.NewContinuous("y", math.Inf(1))
	m.AddObjective(x, -1)
	m.AddObjective(y, -1)
	m.AddConstraint("a", milp.LessEqual, 4, milp.Term{Var: x, Coef: 1}, milp.Term{Var: y, Coef: 2})
	m.AddConstraint("b", milp.LessEqual, 6, milp.Term{Var: x, Coef: 3}, milp.Term{Var: y, Coef: 1})

	res := solve(t, m)

	if res.Status != milp.Optimal {
		t.Fatalf("Expected Optimal, got %s", res.Status)
	}
	if !near(res.Objective, -2.8) {
		t.Errorf("Expected objective -2.8, got %g", res.Objective)
	}
	if !near(res.Value(x), 1.6) || !near(res.Value(y), 1.2) {
		t.Errorf("Expected (1.6, 1.2), got (%g, %g)", res.Value(x), res.Value(y))
	}
}

func TestSolve_Knapsack(t *testing.T) {
	m := milp.NewModel("knapsack")
	values := []float64{8, 11, 6, 4}
	weights := []float64{5, 7, 4, 3}
	var terms []milp.Term
	vars := make([]milp.VarID, len(values))
	for i := range values {
		vars[i] = m.NewBinary(fmt.Sprintf("take[%d]", i))
		m.AddObjective(vars[i], -values[i])
		terms = append(terms, milp.Term{Var: vars[i], Coef: weights[i]})
	}
	m.AddConstraint("capacity", milp.LessEqual, 14, terms...)

	res := solve(t, m)

	if res.Status != milp.Optimal {
		t.Fatalf("Expected Optimal, got %s", res.Status)
	}
	if !near(res.Objective, -21) {
		t.Errorf("Expected objective -21, got %g", res.Objective)
	}
	if res.Value(vars[0]) != 0 {
		t.Errorf("Expected the first item to be left out, got %g", res.Value(vars[0]))
	}
	if res.Nodes < 2 {
		t.Errorf("Expected branching below a fractional root, got %d nodes", res.Nodes)
	}
}

func TestSolve_Infeasible(t *testing.T) {
	tests := []struct {
		name  string
		build func() *milp.Model
	}{
		{"bounded sum", func() *milp.Model {
			m := milp.NewModel("sum")
			x := m.NewContinuous("x", 1)
			y := m.NewContinuous("y", 1)
			m.AddConstraint("sum", milp.Equal, 3, milp.Term{Var: x, Coef: 1}, milp.Term{Var: y, Coef: 1})
			return m
		}},
		{"empty row", func() *milp.Model {
			m := milp.NewModel("empty")
			m.NewContinuous("x", 1)
			m.AddConstraint("demand", milp.Equal, 5)
			return m
		}},
		{"integer gap", func() *milp.Model {
			m := milp.NewModel("parity")
			x := m.NewInteger("x", 10)
			m.AddConstraint("half", milp.Equal, 1, milp.Term{Var: x, Coef: 2})
			return m
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := solve(t, tt.build())
			if res.Status != milp.Infeasible {
				t.Errorf("Expected Infeasible, got %s", res.Status)
			}
			if res.HasSolution() {
				t.Error("Expected no solution")
			}
		})
	}
}

func TestSolve_Unbounded(t *testing.T) {
	m := milp.NewModel("unbounded")
	x := m.NewContinuous("x", math.Inf(1))
	m.AddObjective(x, -1)

	res := solve(t, m)
	if res.Status != milp.Unbounded {
		t.Errorf("Expected Unbounded, got %s", res.Status)
	}
}

func TestSolve_PalletCeiling(t *testing.T) {
	const unitsPerPallet = 320
	loads := []float64{0, 1, 10, 100, 160, 319, 320, 321, 640, 641, 1000, 14080, 14400}

	for _, load := range loads {
		for _, sign := range []float64{1, -1} {
			t.Run(fmt.Sprintf("load=%g/sign=%g", load, sign), func(t *testing.T) {
				m := milp.NewModel("pallets")
				l := m.AddVariable("load", milp.Continuous, load, load)
				p := m.NewInteger("pallets", 45)
				m.AddObjective(p, sign)
				m.AddConstraint("floor", milp.GreaterEqual, 0,
					milp.Term{Var: p, Coef: unitsPerPallet}, milp.Term{Var: l, Coef: -1})
				m.AddConstraint("ceiling", milp.LessEqual, unitsPerPallet-1,
					milp.Term{Var: p, Coef: unitsPerPallet}, milp.Term{Var: l, Coef: -1})

				res := solve(t, m)
				if res.Status != milp.Optimal {
					t.Fatalf("Expected Optimal, got %s", res.Status)
				}
				want := math.Ceil(load / unitsPerPallet)
				if res.Value(p) != want {
					t.Errorf("Expected %g pallets for %g units, got %g", want, load, res.Value(p))
				}
			})
		}
	}
}

func TestSolve_Limits(t *testing.T) {
	m := milp.NewModel("knapsack")
	x := m.NewInteger("x", 10)
	y := m.NewInteger("y", 10)
	m.AddObjective(x, -3)
	m.AddObjective(y, -2)
	m.AddConstraint("c", milp.LessEqual, 7.5, milp.Term{Var: x, Coef: 2}, milp.Term{Var: y, Coef: 1.5})

	t.Run("time limit", func(t *testing.T) {
		res, err := New(nil).Solve(context.Background(), m, milp.SolveOptions{TimeLimit: time.Nanosecond})
		if err != nil {
			t.Fatalf("Solve failed: %v", err)
		}
		if res.Status != milp.TimedOut {
			t.Errorf("Expected TimedOut, got %s", res.Status)
		}
	})

	t.Run("cancelled", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		if _, err := New(nil).Solve(ctx, m, milp.SolveOptions{TimeLimit: time.Second}); err == nil {
			t.Error("Expected error for a cancelled context")
		}
	})

	t.Run("node limit", func(t *testing.T) {
		s := New(nil)
		s.NodeLimit = 1
		res, err := s.Solve(context.Background(), m, milp.SolveOptions{TimeLimit: time.Second})
		if err != nil {
			t.Fatalf("Solve failed: %v", err)
		}
		if res.Status != milp.TimedOut {
			t.Errorf("Expected TimedOut after one fractional node, got %s", res.Status)
		}
	})
}

func TestSolve_ObjectiveConstant(t *testing.T) {
	m := milp.NewModel("constant")
	x := m.NewContinuous("x", 5)
	m.AddObjective(x, 2)
	m.AddObjectiveConstant(7)
	m.AddConstraint("min", milp.GreaterEqual, 1, milp.Term{Var: x, Coef: 1})

	res := solve(t, m)
	if !near(res.Objective, 9) {
		t.Errorf("Expected objective 9, got %g", res.Objective)
	}
	if res.Gap != 0 {
		t.Errorf("Expected zero gap, got %g", res.Gap)
	}
}
