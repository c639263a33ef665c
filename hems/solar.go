package hems

import (
	"fmt"

	"github.com/jdboer/hems/solver"
)

// SolarParams defines a PV array. Tilt and azimuth use the geographic
// convention (azimuth 0 = north, 180 = south-facing).
type SolarParams struct {
	Name             string
	PeakPowerKW      float64
	SystemEfficiency float64
	TiltDeg          float64
	AzimuthDeg       float64
	Curtailable      bool
}

// Solar is a generation source. Its maximum available power profile is a
// parameter computed from irradiance and geometry by the caller; when the
// array is curtailable the injected power is a decision bounded by that
// maximum, otherwise it is pinned to it.
type Solar struct {
	params SolarParams
	T      int

	pmax []float64      // maximum available AC power [kW]
	p    []solver.VarID // nil unless curtailable
}

// NewSolar creates a PV array over T steps.
func NewSolar(p SolarParams, T int) (*Solar, error) {
	if p.Name == "" {
		return nil, fmt.Errorf("solar array name cannot be empty")
	}
	if T <= 0 {
		return nil, fmt.Errorf("solar array %q: horizon must be positive, got %d", p.Name, T)
	}
	if p.PeakPowerKW < 0 {
		return nil, fmt.Errorf("solar array %q: peak power must be non-negative, got %f", p.Name, p.PeakPowerKW)
	}
	if p.SystemEfficiency <= 0 || p.SystemEfficiency > 1 {
		return nil, fmt.Errorf("solar array %q: system efficiency must be in (0, 1], got %f", p.Name, p.SystemEfficiency)
	}
	return &Solar{
		params: p,
		T:      T,
		pmax:   make([]float64, T),
	}, nil
}

// Name returns the array's identifier.
func (s *Solar) Name() string { return s.params.Name }

// Horizon returns the number of time steps.
func (s *Solar) Horizon() int { return s.T }

// Params returns the array parameters.
func (s *Solar) Params() SolarParams { return s.params }

// SetProfile overwrites the maximum-available-power parameter profile.
// Negative entries are clamped to zero.
func (s *Solar) SetProfile(pmax []float64) error {
	if len(pmax) != s.T {
		return fmt.Errorf("solar array %q: profile length %d does not match horizon %d", s.params.Name, len(pmax), s.T)
	}
	for i, v := range pmax {
		if v < 0 {
			v = 0
		}
		s.pmax[i] = v
	}
	return nil
}

// Available returns a copy of the maximum-available-power profile.
func (s *Solar) Available() []float64 {
	p := make([]float64, len(s.pmax))
	copy(p, s.pmax)
	return p
}

func (s *Solar) bind(m *solver.Model) {
	if s.params.Curtailable {
		s.p = m.ContinuousVec(s.params.Name+"_P_kW", s.T)
	}
}

func (s *Solar) constraints() []solver.Constraint {
	if !s.params.Curtailable {
		return nil
	}
	cons := make([]solver.Constraint, 0, s.T)
	for t := 0; t < s.T; t++ {
		cons = append(cons, solver.Constraint{
			Terms: []solver.Term{{Var: s.p[t], Coef: 1}},
			Op:    solver.LE,
			RHS:   s.pmax[t],
		})
	}
	return cons
}

// extract copies the array's injected and available power out of a solution.
func (s *Solar) extract(sol *solver.Solution) SolarResult {
	res := SolarResult{
		Name:      s.params.Name,
		Power:     make([]float64, s.T),
		Available: s.Available(),
	}
	for t := 0; t < s.T; t++ {
		if s.params.Curtailable {
			res.Power[t] = sol.Value(s.p[t])
		} else {
			res.Power[t] = s.pmax[t]
		}
	}
	return res
}
