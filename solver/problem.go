// Package solver provides a small linear / mixed-integer-linear optimization
// bridge. Callers register decision variables on a Model once, then pass a
// linear objective and constraint list to Solve as often as needed; only the
// numeric contents of the constraints change between calls, never the Model.
package solver

import "fmt"

// Sense is the optimization direction.
type Sense int

const (
	Minimize Sense = iota
	Maximize
)

// Status is the outcome reported for a solve attempt.
type Status string

const (
	StatusOptimal    Status = "optimal"
	StatusInfeasible Status = "infeasible"
	StatusUnbounded  Status = "unbounded"
	StatusError      Status = "error"
)

// VarID identifies a decision variable within a Model.
type VarID int

// Model is a registry of decision variables. All variables are non-negative;
// binary variables are additionally bounded above by 1 and forced to integer
// values by the solver.
type Model struct {
	names  []string
	binary []bool
}

// NewModel creates an empty variable registry.
func NewModel() *Model {
	return &Model{}
}

// Continuous registers a non-negative continuous variable.
func (m *Model) Continuous(name string) VarID {
	m.names = append(m.names, name)
	m.binary = append(m.binary, false)
	return VarID(len(m.names) - 1)
}

// ContinuousVec registers n non-negative continuous variables sharing a name
// prefix.
func (m *Model) ContinuousVec(name string, n int) []VarID {
	ids := make([]VarID, n)
	for i := range ids {
		ids[i] = m.Continuous(fmt.Sprintf("%s[%d]", name, i))
	}
	return ids
}

// Binary registers a 0/1 variable.
func (m *Model) Binary(name string) VarID {
	m.names = append(m.names, name)
	m.binary = append(m.binary, true)
	return VarID(len(m.names) - 1)
}

// BinaryVec registers n 0/1 variables sharing a name prefix.
func (m *Model) BinaryVec(name string, n int) []VarID {
	ids := make([]VarID, n)
	for i := range ids {
		ids[i] = m.Binary(fmt.Sprintf("%s[%d]", name, i))
	}
	return ids
}

// NumVars returns the number of registered variables.
func (m *Model) NumVars() int {
	return len(m.names)
}

// Name returns the registered name of a variable.
func (m *Model) Name(v VarID) string {
	return m.names[v]
}

// IsBinary reports whether a variable was registered as binary.
func (m *Model) IsBinary(v VarID) bool {
	return m.binary[v]
}

// Term is one linear coefficient on a variable.
type Term struct {
	Var  VarID
	Coef float64
}

// Op is a constraint relation.
type Op int

const (
	LE Op = iota
	GE
	EQ
)

// Constraint is a linear constraint: sum(Terms) Op RHS.
type Constraint struct {
	Terms []Term
	Op    Op
	RHS   float64
}

// Objective is a linear objective: optimize sum(Terms) + Const.
type Objective struct {
	Sense Sense
	Terms []Term
	Const float64
}

// Solution carries the solve outcome. Values is indexed by VarID and is only
// meaningful when Status is StatusOptimal.
type Solution struct {
	Status    Status
	Objective float64
	Values    []float64
}

// Value returns the primal value of a variable in the solution.
func (s *Solution) Value(v VarID) float64 {
	return s.Values[v]
}
