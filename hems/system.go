package hems

import (
	"context"
	"fmt"
	"time"

	"github.com/jdboer/hems/solver"
)

// Objective selects what the system optimizes for.
type Objective string

const (
	// ObjectiveCost minimizes the net electricity cost under the NL
	// dynamic-contract cost model.
	ObjectiveCost Objective = "cost"
	// ObjectiveSelfConsumption maximizes locally consumed PV generation.
	ObjectiveSelfConsumption Objective = "self_consumption"
	// ObjectiveSelfReliance minimizes total grid import.
	ObjectiveSelfReliance Objective = "self_reliance"
)

// ParseObjective validates an objective name from configuration.
func ParseObjective(s string) (Objective, error) {
	switch Objective(s) {
	case ObjectiveCost, ObjectiveSelfConsumption, ObjectiveSelfReliance:
		return Objective(s), nil
	default:
		return "", fmt.Errorf("unknown objective %q (want cost, self_consumption or self_reliance)", s)
	}
}

// Tariff holds the contract and regulatory constants of an NL dynamic
// electricity contract. Import is billed at
// (spot + fee + tax) * (1 + VAT); export is credited at spot + sell-back,
// or at the full import stack when net metering applies.
type Tariff struct {
	ProcurementFee float64 // supplier markup on import [EUR/kWh]
	SellBackCredit float64 // credit added to spot on export [EUR/kWh]
	EnergyTax      float64 // per-kWh energy tax on import [EUR/kWh]
	VAT            float64 // fraction, e.g. 0.21
	NetMetering    bool
}

// Suppliers are NL supplier presets (Feb 2026 tariffs). Energy tax and VAT
// are regulatory, not supplier-specific, and must be filled in separately.
var Suppliers = map[string]Tariff{
	"Tibber":        {ProcurementFee: 0.0248, SellBackCredit: 0.0000},
	"Zonneplan":     {ProcurementFee: 0.0200, SellBackCredit: 0.0200},
	"Frank Energie": {ProcurementFee: 0.0182, SellBackCredit: 0.0182},
}

// cyclePenaltyEURPerKWh approximates battery degradation cost per kWh of
// throughput. It keeps the solver from oscillating between charge and
// discharge when the price signal alone leaves the split degenerate.
const cyclePenaltyEURPerKWh = 0.005

// SystemConfig assembles a System. All component slices are optional; the
// horizon is inferred from the first component found (loads, flexible loads,
// PV arrays, EVs, battery, in that order) unless T is set explicitly.
type SystemConfig struct {
	T         int
	DT        float64 // hours per step
	Loads     []*FixedLoad
	FlexLoads []*FlexibleLoad
	PVs       []*Solar
	EVs       []*EV
	Battery   *Battery
	Price     []float64 // spot price [EUR/kWh], length T; zeros when nil
	Tariff    Tariff
	Objective Objective
}

// System owns the optimization problem for one household: the variable
// structure is built once at construction, and the time-varying inputs
// (spot prices, PV availability, load profiles, trip schedules, initial
// storage state) are overwritten in place between solves.
//
// Power-balance convention (positive = consuming):
//
//	P_import[t] - P_export[t] = Σ loads + Σ EVs + battery - Σ PV
//
// with both grid directions non-negative. The grid connection itself
// carries no exclusivity binary; only storage does.
type System struct {
	T         int
	dt        float64
	loads     []*FixedLoad
	flexLoads []*FlexibleLoad
	pvs       []*Solar
	evs       []*EV
	battery   *Battery
	tariff    Tariff
	objective Objective

	model *solver.Model
	pImp  []solver.VarID
	pExp  []solver.VarID
	price []float64
}

// SolveResult holds the outcome of one daily solve.
type SolveResult struct {
	Status     solver.Status
	Objective  float64 // objective value [EUR or kWh depending on objective]
	Cost       float64 // net realized cost [EUR], import minus export
	CostImport float64
	CostExport float64
	Import     []float64 // kW per step
	Export     []float64
	Battery    *StorageResult
	EVs        []StorageResult
	PVs        []SolarResult
	SolveTime  time.Duration
}

// NewSystem builds the household problem. Components of mismatched horizon
// are rejected; physically infeasible bounds are not checked here and
// surface as an infeasible status at solve time instead.
func NewSystem(cfg SystemConfig) (*System, error) {
	if cfg.DT <= 0 {
		return nil, fmt.Errorf("system: step duration must be positive, got %f", cfg.DT)
	}
	if cfg.Objective == "" {
		cfg.Objective = ObjectiveCost
	}
	if _, err := ParseObjective(string(cfg.Objective)); err != nil {
		return nil, fmt.Errorf("system: %w", err)
	}

	type component struct {
		name    string
		horizon int
	}
	var comps []component
	for _, l := range cfg.Loads {
		comps = append(comps, component{l.Name(), l.Horizon()})
	}
	for _, l := range cfg.FlexLoads {
		comps = append(comps, component{l.Name(), l.Horizon()})
	}
	for _, pv := range cfg.PVs {
		comps = append(comps, component{pv.Name(), pv.Horizon()})
	}
	for _, ev := range cfg.EVs {
		comps = append(comps, component{ev.Name(), ev.Horizon()})
	}
	if cfg.Battery != nil {
		comps = append(comps, component{cfg.Battery.Name(), cfg.Battery.Horizon()})
	}

	T := cfg.T
	if T == 0 {
		if len(comps) == 0 {
			return nil, fmt.Errorf("system: cannot infer horizon, no components supplied")
		}
		T = comps[0].horizon
	}
	if T <= 0 {
		return nil, fmt.Errorf("system: horizon must be positive, got %d", T)
	}
	for _, c := range comps {
		if c.horizon != T {
			return nil, fmt.Errorf("system: component %q has horizon %d, expected %d", c.name, c.horizon, T)
		}
	}

	s := &System{
		T:         T,
		dt:        cfg.DT,
		loads:     cfg.Loads,
		flexLoads: cfg.FlexLoads,
		pvs:       cfg.PVs,
		evs:       cfg.EVs,
		battery:   cfg.Battery,
		tariff:    cfg.Tariff,
		objective: cfg.Objective,
		model:     solver.NewModel(),
		price:     make([]float64, T),
	}
	if cfg.Price != nil {
		if err := s.SetPrices(cfg.Price); err != nil {
			return nil, err
		}
	}

	s.pImp = s.model.ContinuousVec("P_import_kW", T)
	s.pExp = s.model.ContinuousVec("P_export_kW", T)
	for _, l := range s.flexLoads {
		l.bind(s.model)
	}
	for _, pv := range s.pvs {
		pv.bind(s.model)
	}
	for _, ev := range s.evs {
		ev.bind(s.model)
	}
	if s.battery != nil {
		s.battery.bind(s.model)
	}
	return s, nil
}

// Horizon returns the number of time steps.
func (s *System) Horizon() int { return s.T }

// DT returns the step duration in hours.
func (s *System) DT() float64 { return s.dt }

// ObjectiveType returns the selected objective.
func (s *System) ObjectiveType() Objective { return s.objective }

// Battery returns the home battery, or nil.
func (s *System) Battery() *Battery { return s.battery }

// EVs returns the electric vehicles.
func (s *System) EVs() []*EV { return s.evs }

// PVs returns the solar arrays.
func (s *System) PVs() []*Solar { return s.pvs }

// Loads returns the fixed loads.
func (s *System) Loads() []*FixedLoad { return s.loads }

// SetPrices overwrites the spot price parameter.
func (s *System) SetPrices(price []float64) error {
	if len(price) != s.T {
		return fmt.Errorf("system: price series length %d does not match horizon %d", len(price), s.T)
	}
	copy(s.price, price)
	return nil
}

// Prices returns a copy of the current spot price series.
func (s *System) Prices() []float64 {
	p := make([]float64, s.T)
	copy(p, s.price)
	return p
}

// FixedDemand returns the summed fixed-load power per step. The rolling loop
// uses it as the do-nothing import profile on failed days.
func (s *System) FixedDemand() []float64 {
	d := make([]float64, s.T)
	for _, l := range s.loads {
		for t, v := range l.profile {
			d[t] += v
		}
	}
	return d
}

// buildConstraints re-emits the full constraint set from the current
// parameter values. Constants (prices, profiles, initial states) live on the
// right-hand sides, so mutating a parameter and rebuilding is cheap and
// leaves the variable structure untouched.
func (s *System) buildConstraints() []solver.Constraint {
	var cons []solver.Constraint

	for t := 0; t < s.T; t++ {
		terms := []solver.Term{
			{Var: s.pImp[t], Coef: 1},
			{Var: s.pExp[t], Coef: -1},
		}
		for _, l := range s.flexLoads {
			terms = append(terms, solver.Term{Var: l.p[t], Coef: -1})
		}
		for _, ev := range s.evs {
			for _, tm := range ev.powerTerms(t) {
				tm.Coef = -tm.Coef
				terms = append(terms, tm)
			}
		}
		if s.battery != nil {
			for _, tm := range s.battery.powerTerms(t) {
				tm.Coef = -tm.Coef
				terms = append(terms, tm)
			}
		}

		rhs := 0.0
		for _, l := range s.loads {
			rhs += l.profile[t]
		}
		for _, pv := range s.pvs {
			if pv.params.Curtailable {
				terms = append(terms, solver.Term{Var: pv.p[t], Coef: 1})
			} else {
				rhs -= pv.pmax[t]
			}
		}

		cons = append(cons, solver.Constraint{Terms: terms, Op: solver.EQ, RHS: rhs})
	}

	for _, pv := range s.pvs {
		cons = append(cons, pv.constraints()...)
	}
	for _, ev := range s.evs {
		cons = append(cons, ev.constraints()...)
	}
	if s.battery != nil {
		cons = append(cons, s.battery.constraints()...)
	}
	return cons
}

// buildObjective constructs the objective from current prices and tariff.
// All variants carry the battery cycling penalty.
func (s *System) buildObjective() solver.Objective {
	var obj solver.Objective

	penalty := func(sign float64) {
		if s.battery == nil {
			return
		}
		c := sign * cyclePenaltyEURPerKWh * s.dt
		for t := 0; t < s.T; t++ {
			obj.Terms = append(obj.Terms, solver.Term{Var: s.battery.pCh[t], Coef: c})
			if s.battery.canDischarge() {
				obj.Terms = append(obj.Terms, solver.Term{Var: s.battery.pDis[t], Coef: c})
			}
		}
	}

	switch s.objective {
	case ObjectiveSelfConsumption:
		obj.Sense = solver.Maximize
		for _, pv := range s.pvs {
			for t := 0; t < s.T; t++ {
				if pv.params.Curtailable {
					obj.Terms = append(obj.Terms, solver.Term{Var: pv.p[t], Coef: s.dt})
				} else {
					obj.Const += s.dt * pv.pmax[t]
				}
			}
		}
		for t := 0; t < s.T; t++ {
			obj.Terms = append(obj.Terms, solver.Term{Var: s.pExp[t], Coef: -s.dt})
		}
		penalty(-1)

	case ObjectiveSelfReliance:
		obj.Sense = solver.Minimize
		for t := 0; t < s.T; t++ {
			obj.Terms = append(obj.Terms, solver.Term{Var: s.pImp[t], Coef: s.dt})
		}
		penalty(1)

	default: // ObjectiveCost
		obj.Sense = solver.Minimize
		vf := 1.0 + s.tariff.VAT
		importAdder := (s.tariff.ProcurementFee + s.tariff.EnergyTax) * vf
		for t := 0; t < s.T; t++ {
			obj.Terms = append(obj.Terms, solver.Term{
				Var:  s.pImp[t],
				Coef: s.dt * (vf*s.price[t] + importAdder),
			})
			var expPrice float64
			if s.tariff.NetMetering {
				expPrice = vf*s.price[t] + importAdder
			} else {
				expPrice = s.price[t] + s.tariff.SellBackCredit
			}
			obj.Terms = append(obj.Terms, solver.Term{Var: s.pExp[t], Coef: -s.dt * expPrice})
		}
		penalty(1)
	}

	return obj
}

// Solve runs one optimization over the current parameter values.
//
// A non-optimal solver status (infeasible, unbounded, numerical error) is
// returned as a SolveResult with that status and no error; the rolling loop
// treats it as a failed day. An error is returned only for faults outside
// the optimization itself, such as context cancellation.
func (s *System) Solve(ctx context.Context) (*SolveResult, error) {
	start := time.Now()
	sol, err := solver.Solve(ctx, s.model, s.buildObjective(), s.buildConstraints())
	elapsed := time.Since(start)
	if err != nil {
		return nil, err
	}

	res := &SolveResult{
		Status:    sol.Status,
		SolveTime: elapsed,
	}
	if sol.Status != solver.StatusOptimal {
		return res, nil
	}

	res.Objective = sol.Objective
	res.Import = make([]float64, s.T)
	res.Export = make([]float64, s.T)
	for t := 0; t < s.T; t++ {
		res.Import[t] = sol.Value(s.pImp[t])
		res.Export[t] = sol.Value(s.pExp[t])
	}
	res.CostImport, res.CostExport = s.CostBreakdown(res.Import, res.Export)
	res.Cost = res.CostImport - res.CostExport

	if s.battery != nil {
		b := s.battery.extract(sol)
		res.Battery = &b
	}
	for _, ev := range s.evs {
		res.EVs = append(res.EVs, ev.extract(sol))
	}
	for _, pv := range s.pvs {
		res.PVs = append(res.PVs, pv.extract(sol))
	}
	return res, nil
}

// CostBreakdown prices realized import and export profiles. Under the cost
// objective the full contract stack applies; otherwise the breakdown reports
// raw spot value only, since fees and taxes were not part of the decision.
func (s *System) CostBreakdown(imp, exp []float64) (costImport, costExport float64) {
	if s.objective != ObjectiveCost {
		for t := 0; t < s.T; t++ {
			costImport += s.dt * s.price[t] * imp[t]
			costExport += s.dt * s.price[t] * exp[t]
		}
		return costImport, costExport
	}

	vf := 1.0 + s.tariff.VAT
	importAdder := (s.tariff.ProcurementFee + s.tariff.EnergyTax) * vf
	for t := 0; t < s.T; t++ {
		costImport += s.dt * (vf*s.price[t] + importAdder) * imp[t]
		if s.tariff.NetMetering {
			costExport += s.dt * (vf*s.price[t] + importAdder) * exp[t]
		} else {
			costExport += s.dt * (s.price[t] + s.tariff.SellBackCredit) * exp[t]
		}
	}
	return costImport, costExport
}

// Step carries each storage unit's terminal state of energy from the last
// successful solve into its initial-state parameter. Call it after a
// successful Solve and before updating parameters for the next day; skip it
// on failed days so storage state stays where it was.
func (s *System) Step() {
	if s.battery != nil && s.battery.lastEnergy != nil {
		s.battery.SetInitialEnergy(s.battery.lastEnergy[s.battery.T])
	}
	for _, ev := range s.evs {
		if ev.lastEnergy != nil {
			ev.SetInitialEnergy(ev.lastEnergy[ev.T])
		}
	}
}
