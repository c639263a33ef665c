package solver

import (
	"context"
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/optimize/convex/lp"
)

const (
	simplexTol = 1e-10

	// integerTol decides when a relaxed binary counts as integral.
	integerTol = 1e-6

	// pruneTol prevents exploring branches that cannot strictly improve on
	// the incumbent. Branches that merely tie are cut, which is what makes
	// the exclusivity binaries cheap: they carry no objective coefficient,
	// so after the first integral incumbent every sibling ties and dies.
	pruneTol = 1e-9

	// maxNodes caps the branch-and-bound tree per solve.
	maxNodes = 2000
)

// Solve optimizes the given objective subject to the constraints over the
// variables of m. The LP relaxation is solved with a dense simplex; binary
// variables that come back fractional are resolved by branch and bound,
// diving on the rounded branch first. The context deadline is checked between
// nodes; a per-day time budget therefore bounds the whole call.
//
// A Solution with a non-optimal Status is returned together with a nil error:
// infeasibility and unboundedness are outcomes, not failures. The error is
// non-nil only for malformed input or an aborted search.
func Solve(ctx context.Context, m *Model, obj Objective, cons []Constraint) (*Solution, error) {
	if m.NumVars() == 0 {
		return nil, fmt.Errorf("model has no variables")
	}
	for _, t := range obj.Terms {
		if int(t.Var) < 0 || int(t.Var) >= m.NumVars() {
			return nil, fmt.Errorf("objective references unknown variable %d", t.Var)
		}
	}

	bb := &branchAndBound{
		model: m,
		obj:   obj,
		cons:  cons,
	}
	return bb.run(ctx)
}

type branchAndBound struct {
	model *Model
	obj   Objective
	cons  []Constraint

	nodes     int
	incumbent *Solution
	bestScore float64
	aborted   error
}

func (bb *branchAndBound) run(ctx context.Context) (*Solution, error) {
	bb.bestScore = math.Inf(1)

	status, err := bb.expand(ctx, nil)
	if err != nil {
		return nil, err
	}
	if bb.aborted != nil {
		if bb.incumbent != nil {
			return bb.incumbent, nil
		}
		return nil, fmt.Errorf("branch and bound aborted: %w", bb.aborted)
	}
	if bb.incumbent != nil {
		return bb.incumbent, nil
	}

	// No integral solution found. The root relaxation status tells us why.
	switch status {
	case StatusUnbounded:
		return &Solution{Status: StatusUnbounded}, nil
	default:
		return &Solution{Status: StatusInfeasible}, nil
	}
}

type fix struct {
	v   VarID
	val float64
}

// expand solves the relaxation for one node and branches if needed. It
// returns the relaxation status of this node.
func (bb *branchAndBound) expand(ctx context.Context, fixes []fix) (Status, error) {
	if err := ctx.Err(); err != nil {
		bb.aborted = err
		return StatusError, nil
	}
	bb.nodes++
	if bb.nodes > maxNodes {
		bb.aborted = fmt.Errorf("node limit %d exceeded", maxNodes)
		return StatusError, nil
	}

	status, objVal, x, err := bb.solveRelaxation(fixes)
	if err != nil {
		return StatusError, err
	}
	if status != StatusOptimal {
		return status, nil
	}

	score := objVal
	if bb.obj.Sense == Maximize {
		score = -objVal
	}
	if bb.incumbent != nil && score >= bb.bestScore-pruneTol {
		return status, nil
	}

	branchVar, branchVal, frac := bb.mostFractionalBinary(x)
	if !frac {
		vals := make([]float64, len(x))
		copy(vals, x)
		bb.incumbent = &Solution{Status: StatusOptimal, Objective: objVal, Values: vals}
		bb.bestScore = score
		return status, nil
	}

	// Dive toward the rounded value first so a feasible integral leaf is
	// reached quickly, then let the bound cut the sibling.
	first := math.Round(branchVal)
	for _, v := range []float64{first, 1 - first} {
		child := make([]fix, len(fixes), len(fixes)+1)
		copy(child, fixes)
		child = append(child, fix{v: branchVar, val: v})
		if _, err := bb.expand(ctx, child); err != nil {
			return StatusError, err
		}
		if bb.aborted != nil {
			return StatusError, nil
		}
	}
	return status, nil
}

func (bb *branchAndBound) mostFractionalBinary(x []float64) (VarID, float64, bool) {
	var (
		best     VarID
		bestVal  float64
		bestFrac float64
		found    bool
	)
	for i, v := range x {
		if !bb.model.binary[i] {
			continue
		}
		f := math.Min(v, 1-v)
		if f <= integerTol {
			continue
		}
		if !found || f > bestFrac {
			best = VarID(i)
			bestVal = v
			bestFrac = f
			found = true
		}
	}
	return best, bestVal, found
}

// solveRelaxation converts the node to standard form (min c'x, Ax = b, x >= 0)
// and runs the simplex. Fixed binaries become equality rows; LE/GE rows gain
// slack/surplus columns; binaries gain an upper-bound row z + s = 1.
func (bb *branchAndBound) solveRelaxation(fixes []fix) (Status, float64, []float64, error) {
	m := bb.model
	n := m.NumVars()

	type row struct {
		terms []Term
		op    Op
		rhs   float64
	}

	rows := make([]row, 0, len(bb.cons)+n+len(fixes))
	for _, c := range bb.cons {
		rows = append(rows, row{terms: c.Terms, op: c.Op, rhs: c.RHS})
	}
	for i := 0; i < n; i++ {
		if m.binary[i] {
			rows = append(rows, row{terms: []Term{{Var: VarID(i), Coef: 1}}, op: LE, rhs: 1})
		}
	}
	for _, f := range fixes {
		rows = append(rows, row{terms: []Term{{Var: f.v, Coef: 1}}, op: EQ, rhs: f.val})
	}

	// One slack or surplus column per inequality row.
	slacks := 0
	for _, r := range rows {
		if r.op != EQ {
			slacks++
		}
	}
	cols := n + slacks

	a := mat.NewDense(len(rows), cols, nil)
	b := make([]float64, len(rows))
	slackCol := n
	for i, r := range rows {
		for _, t := range r.terms {
			if int(t.Var) < 0 || int(t.Var) >= n {
				return StatusError, 0, nil, fmt.Errorf("constraint %d references unknown variable %d", i, t.Var)
			}
			a.Set(i, int(t.Var), a.At(i, int(t.Var))+t.Coef)
		}
		switch r.op {
		case LE:
			a.Set(i, slackCol, 1)
			slackCol++
		case GE:
			a.Set(i, slackCol, -1)
			slackCol++
		}
		b[i] = r.rhs
		if b[i] < 0 {
			for j := 0; j < cols; j++ {
				a.Set(i, j, -a.At(i, j))
			}
			b[i] = -b[i]
		}
	}

	c := make([]float64, cols)
	for _, t := range bb.obj.Terms {
		if bb.obj.Sense == Maximize {
			c[t.Var] -= t.Coef
		} else {
			c[t.Var] += t.Coef
		}
	}

	optF, optX, err := lp.Simplex(c, a, b, simplexTol, nil)
	switch {
	case err == nil:
	case errors.Is(err, lp.ErrInfeasible):
		return StatusInfeasible, 0, nil, nil
	case errors.Is(err, lp.ErrUnbounded):
		return StatusUnbounded, 0, nil, nil
	default:
		return StatusError, 0, nil, fmt.Errorf("simplex: %w", err)
	}

	objVal := optF
	if bb.obj.Sense == Maximize {
		objVal = -optF
	}
	objVal += bb.obj.Const

	return StatusOptimal, objVal, optX[:n], nil
}
