package hems

import (
	"fmt"

	"github.com/jdboer/hems/solver"
)

// BatteryParams defines the physical parameters of a storage unit.
// Units:
//   - CapacityKWh: kWh
//   - MaxChargeKW / MaxDischargeKW: kW
//   - Efficiencies: (0, 1]
//   - InitialEnergyKWh / TargetEnergyKWh: kWh
type BatteryParams struct {
	Name                string
	CapacityKWh         float64
	MaxChargeKW         float64
	MaxDischargeKW      float64
	ChargeEfficiency    float64
	DischargeEfficiency float64
	InitialEnergyKWh    float64
	TargetEnergyKWh     float64
}

// Battery is a storage unit with charge/discharge decisions, a state-of-energy
// trajectory and, when both power directions are enabled, a binary
// exclusivity sequence preventing simultaneous charge and discharge.
//
// Construction validates structural shape only (positive capacity, limit
// signs, efficiency ranges). Feasibility of the bounds themselves, such as
// a terminal target above capacity, is left to the solver, which reports it
// as an infeasible day.
type Battery struct {
	params BatteryParams
	T      int
	dt     float64

	// Decision variables, assigned when the battery is attached to a System.
	e    []solver.VarID // state of energy, T+1 points
	pCh  []solver.VarID // charge power, T
	pDis []solver.VarID // discharge power, T; nil when discharge is disabled
	z    []solver.VarID // exclusivity binaries; nil unless both directions enabled

	// Parameters mutated between solves.
	e0      float64
	eTarget float64
	drain   []float64 // forced energy loss per step [kWh]

	// Terminal state of the most recent successful solve.
	lastEnergy []float64
}

// NewBattery creates a storage unit over T steps of dt hours each.
func NewBattery(p BatteryParams, T int, dt float64) (*Battery, error) {
	if p.Name == "" {
		return nil, fmt.Errorf("battery name cannot be empty")
	}
	if T <= 0 {
		return nil, fmt.Errorf("battery %q: horizon must be positive, got %d", p.Name, T)
	}
	if dt <= 0 {
		return nil, fmt.Errorf("battery %q: step duration must be positive, got %f", p.Name, dt)
	}
	if p.CapacityKWh <= 0 {
		return nil, fmt.Errorf("battery %q: capacity must be positive, got %f", p.Name, p.CapacityKWh)
	}
	if p.MaxChargeKW < 0 || p.MaxDischargeKW < 0 {
		return nil, fmt.Errorf("battery %q: power limits must be non-negative", p.Name)
	}
	if p.ChargeEfficiency <= 0 || p.ChargeEfficiency > 1 {
		return nil, fmt.Errorf("battery %q: charge efficiency must be in (0, 1], got %f", p.Name, p.ChargeEfficiency)
	}
	// Discharge efficiency only enters the recurrence when the unit can
	// discharge at all; a charge-only unit may leave it unset.
	if p.MaxDischargeKW > 0 && (p.DischargeEfficiency <= 0 || p.DischargeEfficiency > 1) {
		return nil, fmt.Errorf("battery %q: discharge efficiency must be in (0, 1], got %f", p.Name, p.DischargeEfficiency)
	}
	if p.InitialEnergyKWh < 0 || p.TargetEnergyKWh < 0 {
		return nil, fmt.Errorf("battery %q: energy levels must be non-negative", p.Name)
	}

	return &Battery{
		params:  p,
		T:       T,
		dt:      dt,
		e0:      p.InitialEnergyKWh,
		eTarget: p.TargetEnergyKWh,
		drain:   make([]float64, T),
	}, nil
}

// Name returns the storage unit's identifier.
func (b *Battery) Name() string { return b.params.Name }

// Horizon returns the number of time steps.
func (b *Battery) Horizon() int { return b.T }

// Params returns the physical parameters.
func (b *Battery) Params() BatteryParams { return b.params }

// SetInitialEnergy overwrites the initial state-of-energy parameter. The
// rolling loop uses this to carry the previous day's terminal state forward.
func (b *Battery) SetInitialEnergy(kwh float64) { b.e0 = kwh }

// InitialEnergy returns the current initial state-of-energy parameter.
func (b *Battery) InitialEnergy() float64 { return b.e0 }

// SetTargetEnergy overwrites the terminal state-of-energy floor.
func (b *Battery) SetTargetEnergy(kwh float64) { b.eTarget = kwh }

// TargetEnergy returns the terminal state-of-energy floor.
func (b *Battery) TargetEnergy() float64 { return b.eTarget }

// canDischarge reports whether the unit has a discharge path at all. When it
// does not, the discharge variables and the exclusivity binaries are omitted
// and the recurrence degenerates to pure charging.
func (b *Battery) canDischarge() bool { return b.params.MaxDischargeKW > 0 }

func (b *Battery) needsExclusivity() bool {
	return b.params.MaxChargeKW > 0 && b.params.MaxDischargeKW > 0
}

func (b *Battery) bind(m *solver.Model) {
	b.e = m.ContinuousVec(b.params.Name+"_E_kWh", b.T+1)
	b.pCh = m.ContinuousVec(b.params.Name+"_Pch_kW", b.T)
	if b.canDischarge() {
		b.pDis = m.ContinuousVec(b.params.Name+"_Pdis_kW", b.T)
	}
	if b.needsExclusivity() {
		b.z = m.BinaryVec(b.params.Name+"_mode", b.T)
	}
}

// constraints emits the storage constraint set from the current parameter
// values:
//
//	E[0] = E0
//	E[t+1] = E[t] + dt*(eta_ch*Pch[t] - Pdis[t]/eta_dis) - drain[t]
//	0 <= E[t] <= capacity
//	E[T] >= target
//	Pch[t] <= Pch_max*z[t],  Pdis[t] <= Pdis_max*(1-z[t])   (both directions)
//	Pch[t] <= Pch_max                                        (charge only)
func (b *Battery) constraints() []solver.Constraint {
	cons := make([]solver.Constraint, 0, 4*b.T+3)

	cons = append(cons, solver.Constraint{
		Terms: []solver.Term{{Var: b.e[0], Coef: 1}},
		Op:    solver.EQ,
		RHS:   b.e0,
	})

	for t := 0; t < b.T; t++ {
		terms := []solver.Term{
			{Var: b.e[t+1], Coef: 1},
			{Var: b.e[t], Coef: -1},
			{Var: b.pCh[t], Coef: -b.dt * b.params.ChargeEfficiency},
		}
		if b.canDischarge() {
			terms = append(terms, solver.Term{Var: b.pDis[t], Coef: b.dt / b.params.DischargeEfficiency})
		}
		cons = append(cons, solver.Constraint{Terms: terms, Op: solver.EQ, RHS: -b.drain[t]})
	}

	for t := 0; t <= b.T; t++ {
		cons = append(cons, solver.Constraint{
			Terms: []solver.Term{{Var: b.e[t], Coef: 1}},
			Op:    solver.LE,
			RHS:   b.params.CapacityKWh,
		})
	}

	cons = append(cons, solver.Constraint{
		Terms: []solver.Term{{Var: b.e[b.T], Coef: 1}},
		Op:    solver.GE,
		RHS:   b.eTarget,
	})

	for t := 0; t < b.T; t++ {
		if b.needsExclusivity() {
			cons = append(cons,
				solver.Constraint{
					Terms: []solver.Term{
						{Var: b.pCh[t], Coef: 1},
						{Var: b.z[t], Coef: -b.params.MaxChargeKW},
					},
					Op:  solver.LE,
					RHS: 0,
				},
				solver.Constraint{
					Terms: []solver.Term{
						{Var: b.pDis[t], Coef: 1},
						{Var: b.z[t], Coef: b.params.MaxDischargeKW},
					},
					Op:  solver.LE,
					RHS: b.params.MaxDischargeKW,
				},
			)
		} else {
			cons = append(cons, solver.Constraint{
				Terms: []solver.Term{{Var: b.pCh[t], Coef: 1}},
				Op:    solver.LE,
				RHS:   b.params.MaxChargeKW,
			})
			if b.canDischarge() {
				cons = append(cons, solver.Constraint{
					Terms: []solver.Term{{Var: b.pDis[t], Coef: 1}},
					Op:    solver.LE,
					RHS:   b.params.MaxDischargeKW,
				})
			}
		}
	}

	return cons
}

// powerTerms returns the unit's contribution to the energy balance at step t
// (positive = consuming).
func (b *Battery) powerTerms(t int) []solver.Term {
	terms := []solver.Term{{Var: b.pCh[t], Coef: 1}}
	if b.canDischarge() {
		terms = append(terms, solver.Term{Var: b.pDis[t], Coef: -1})
	}
	return terms
}

// extract copies the unit's trajectories out of a solver solution.
func (b *Battery) extract(sol *solver.Solution) StorageResult {
	res := StorageResult{
		Name:      b.params.Name,
		Energy:    make([]float64, b.T+1),
		Charge:    make([]float64, b.T),
		Discharge: make([]float64, b.T),
	}
	for t := 0; t <= b.T; t++ {
		res.Energy[t] = sol.Value(b.e[t])
	}
	for t := 0; t < b.T; t++ {
		res.Charge[t] = sol.Value(b.pCh[t])
		if b.canDischarge() {
			res.Discharge[t] = sol.Value(b.pDis[t])
		}
	}
	b.lastEnergy = res.Energy
	return res
}
