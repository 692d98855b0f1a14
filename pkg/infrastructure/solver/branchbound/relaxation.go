package branchbound

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/optimize/convex/lp"

	"github.com/vsinha/freshplan/pkg/domain/milp"
)

const (
	simplexTol  = 1e-9
	fixTol      = 1e-12
	feasTol     = 1e-7
	bigMRetries = 2
)

type lpStatus int

const (
	lpOptimal lpStatus = iota
	lpInfeasible
	lpUnbounded
)

// relaxation is the LP solution of one node
type relaxation struct {
	status    lpStatus
	objective float64
	values    []float64
}

// standardForm is min c·z s.t. A z = b, z >= 0, b >= 0, where the leading columns are
// the shifted free variables y = x - lower and every row owns an identity column
type standardForm struct {
	rows, cols int
	a          []float64 // row-major, rows x cols
	b          []float64
	cost       []float64
	basic      []int
	artificial []int
	active     []int // model variable of each leading column
}

type row struct {
	coefs map[int]float64 // active column -> coefficient
	sense milp.Sense
	rhs   float64
}

// solveRelaxation solves the LP relaxation of m under node bounds
func solveRelaxation(m *milp.Model, lower, upper []float64) (*relaxation, error) {
	n := m.NumVariables()
	values := make([]float64, n)
	col := make([]int, n)
	var active []int

	for j := 0; j < n; j++ {
		if lower[j] > upper[j]+feasTol {
			return &relaxation{status: lpInfeasible}, nil
		}
		values[j] = lower[j]
		col[j] = -1
		if upper[j]-lower[j] > fixTol {
			col[j] = len(active)
			active = append(active, j)
		}
	}

	// shift every row by the lower bounds and drop terms on fixed variables
	rows := make([]row, 0, m.NumConstraints())
	appears := make([]bool, len(active))
	for _, c := range m.Constraints {
		r := row{coefs: make(map[int]float64), sense: c.Sense, rhs: c.RHS}
		for _, t := range c.Terms {
			if t.Coef == 0 {
				continue
			}
			r.rhs -= t.Coef * lower[t.Var]
			if k := col[t.Var]; k >= 0 {
				r.coefs[k] += t.Coef
			}
		}
		for k, v := range r.coefs {
			if v == 0 {
				delete(r.coefs, k)
			}
		}
		if len(r.coefs) == 0 {
			if !emptyRowHolds(r.sense, r.rhs) {
				return &relaxation{status: lpInfeasible}, nil
			}
			continue
		}
		for k := range r.coefs {
			appears[k] = true
		}
		rows = append(rows, r)
	}

	// variables outside every row sit on whichever bound their cost prefers
	var free []int
	for k, j := range active {
		if appears[k] {
			free = append(free, j)
			continue
		}
		c := m.ObjectiveCoef(milp.VarID(j))
		switch {
		case c >= 0:
			values[j] = lower[j]
		case math.IsInf(upper[j], 1):
			return &relaxation{status: lpUnbounded}, nil
		default:
			values[j] = upper[j]
		}
	}

	if len(free) == 0 {
		return &relaxation{status: lpOptimal, objective: m.Evaluate(values), values: values}, nil
	}

	sf := buildStandardForm(m, rows, free, col, lower, upper)
	z, status, err := sf.solve(m)
	if err != nil {
		return nil, err
	}
	if status != lpOptimal {
		return &relaxation{status: status}, nil
	}
	for k, j := range sf.active {
		values[j] = lower[j] + math.Max(z[k], 0)
		if values[j] > upper[j] {
			values[j] = upper[j]
		}
	}
	return &relaxation{status: lpOptimal, objective: m.Evaluate(values), values: values}, nil
}

func emptyRowHolds(sense milp.Sense, rhs float64) bool {
	scale := feasTol * math.Max(1, math.Abs(rhs))
	switch sense {
	case milp.LessEqual:
		return rhs >= -scale
	case milp.GreaterEqual:
		return rhs <= scale
	default:
		return math.Abs(rhs) <= scale
	}
}

func buildStandardForm(m *milp.Model, rows []row, free []int, col []int, lower, upper []float64) *standardForm {
	// renumber the free variables densely; col maps into the active list, remap to free positions
	pos := make(map[int]int, len(free))
	for k, j := range free {
		pos[col[j]] = k
	}

	type stdRow struct {
		coefs    map[int]float64
		rhs      float64
		slack    float64 // +1, -1 or 0 for equalities
		needsArt bool
	}
	var std []stdRow
	for _, r := range rows {
		sr := stdRow{coefs: make(map[int]float64, len(r.coefs)), rhs: r.rhs}
		for k, v := range r.coefs {
			sr.coefs[pos[k]] = v
		}
		switch r.sense {
		case milp.LessEqual:
			sr.slack = 1
		case milp.GreaterEqual:
			sr.slack = -1
		}
		if sr.rhs < 0 {
			for k := range sr.coefs {
				sr.coefs[k] = -sr.coefs[k]
			}
			sr.rhs, sr.slack = -sr.rhs, -sr.slack
		}
		sr.needsArt = sr.slack != 1
		std = append(std, sr)
	}
	for k, j := range free {
		if math.IsInf(upper[j], 1) {
			continue
		}
		std = append(std, stdRow{coefs: map[int]float64{k: 1}, rhs: upper[j] - lower[j], slack: 1})
	}

	nFree := len(free)
	slacks, arts := 0, 0
	for _, r := range std {
		if r.slack != 0 {
			slacks++
		}
		if r.needsArt {
			arts++
		}
	}

	sf := &standardForm{
		rows:   len(std),
		cols:   nFree + slacks + arts,
		active: free,
	}
	sf.a = make([]float64, sf.rows*sf.cols)
	sf.b = make([]float64, sf.rows)
	sf.cost = make([]float64, sf.cols)
	sf.basic = make([]int, sf.rows)
	for k, j := range free {
		sf.cost[k] = m.ObjectiveCoef(milp.VarID(j))
	}

	nextSlack, nextArt := nFree, nFree+slacks
	for i, r := range std {
		base := i * sf.cols
		for k, v := range r.coefs {
			sf.a[base+k] = v
		}
		sf.b[i] = r.rhs
		if r.slack != 0 {
			sf.a[base+nextSlack] = r.slack
			if r.slack == 1 {
				sf.basic[i] = nextSlack
			}
			nextSlack++
		}
		if r.needsArt {
			sf.a[base+nextArt] = 1
			sf.basic[i] = nextArt
			sf.artificial = append(sf.artificial, nextArt)
			nextArt++
		}
	}
	return sf
}

// solve runs big-M simplex from the identity basis. When artificials stay positive a
// pure feasibility solve decides between infeasibility and an M that was too small.
func (sf *standardForm) solve(m *milp.Model) ([]float64, lpStatus, error) {
	A := mat.NewDense(sf.rows, sf.cols, sf.a)

	maxCost := 0.0
	for _, c := range sf.cost {
		maxCost = math.Max(maxCost, math.Abs(c))
	}
	bigM := 1e4 * (1 + maxCost)

	for attempt := 0; ; attempt++ {
		c := append([]float64(nil), sf.cost...)
		for _, k := range sf.artificial {
			c[k] = bigM
		}
		_, z, err := lp.Simplex(c, A, sf.rhs(), simplexTol, sf.initialBasis())
		switch {
		case errors.Is(err, lp.ErrUnbounded):
			return nil, lpUnbounded, nil
		case errors.Is(err, lp.ErrInfeasible):
			return nil, lpInfeasible, nil
		case err != nil:
			return nil, lpOptimal, fmt.Errorf("simplex failed on %s: %w", m.Name, err)
		}
		if sf.artificialSum(z) <= sf.feasibilityScale() {
			return z, lpOptimal, nil
		}

		feasible, err := sf.phaseOne(A)
		if err != nil {
			return nil, lpOptimal, err
		}
		if !feasible {
			return nil, lpInfeasible, nil
		}
		if attempt == bigMRetries {
			return nil, lpOptimal, fmt.Errorf("simplex on %s could not drive artificial columns to zero", m.Name)
		}
		bigM *= 1e3
	}
}

func (sf *standardForm) phaseOne(A *mat.Dense) (bool, error) {
	c := make([]float64, sf.cols)
	for _, k := range sf.artificial {
		c[k] = 1
	}
	opt, _, err := lp.Simplex(c, A, sf.rhs(), simplexTol, sf.initialBasis())
	if err != nil {
		return false, fmt.Errorf("feasibility simplex failed: %w", err)
	}
	return opt <= sf.feasibilityScale(), nil
}

func (sf *standardForm) rhs() []float64 {
	return append([]float64(nil), sf.b...)
}

func (sf *standardForm) initialBasis() []int {
	return append([]int(nil), sf.basic...)
}

func (sf *standardForm) artificialSum(z []float64) float64 {
	total := 0.0
	for _, k := range sf.artificial {
		total += z[k]
	}
	return total
}

func (sf *standardForm) feasibilityScale() float64 {
	maxB := 0.0
	for _, v := range sf.b {
		maxB = math.Max(maxB, v)
	}
	return feasTol * (1 + maxB)
}
