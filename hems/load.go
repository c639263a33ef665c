// Package hems models a household energy system: fixed and flexible loads,
// battery and EV storage, solar generation and a heat pump, assembled into a
// single optimization problem over a daily horizon. The problem structure is
// built once; time-varying inputs (prices, generation profiles, trip
// schedules, initial storage state) are overwritten in place between solves.
package hems

import (
	"fmt"

	"github.com/jdboer/hems/solver"
)

// FixedLoad is a non-controllable load with a prescribed power profile.
// The profile contents may be replaced between solves (e.g. the heat pump
// re-simulates it every day); its length is fixed at construction.
type FixedLoad struct {
	name    string
	profile []float64 // kW per step
}

// NewFixedLoad creates a fixed load from a power profile. The horizon is the
// profile length.
func NewFixedLoad(name string, profile []float64) (*FixedLoad, error) {
	if name == "" {
		return nil, fmt.Errorf("fixed load name cannot be empty")
	}
	if len(profile) == 0 {
		return nil, fmt.Errorf("fixed load %q: profile cannot be empty", name)
	}
	p := make([]float64, len(profile))
	copy(p, profile)
	return &FixedLoad{name: name, profile: p}, nil
}

// NewBaseLoad creates a flat fixed load of avgKW over T steps.
func NewBaseLoad(name string, T int, avgKW float64) (*FixedLoad, error) {
	if T <= 0 {
		return nil, fmt.Errorf("base load %q: horizon must be positive, got %d", name, T)
	}
	if avgKW < 0 {
		return nil, fmt.Errorf("base load %q: average power must be non-negative, got %f", name, avgKW)
	}
	profile := make([]float64, T)
	for i := range profile {
		profile[i] = avgKW
	}
	return NewFixedLoad(name, profile)
}

// Name returns the load's identifier.
func (l *FixedLoad) Name() string { return l.name }

// Horizon returns the number of time steps.
func (l *FixedLoad) Horizon() int { return len(l.profile) }

// SetProfile replaces the power profile in place.
func (l *FixedLoad) SetProfile(profile []float64) error {
	if len(profile) != len(l.profile) {
		return fmt.Errorf("fixed load %q: profile length %d does not match horizon %d", l.name, len(profile), len(l.profile))
	}
	copy(l.profile, profile)
	return nil
}

// Profile returns a copy of the current power profile.
func (l *FixedLoad) Profile() []float64 {
	p := make([]float64, len(l.profile))
	copy(p, l.profile)
	return p
}

// FlexibleLoad is a load whose per-step power is a free non-negative
// decision of the optimizer.
type FlexibleLoad struct {
	name string
	T    int
	p    []solver.VarID
}

// NewFlexibleLoad creates a flexible load over T steps.
func NewFlexibleLoad(name string, T int) (*FlexibleLoad, error) {
	if name == "" {
		return nil, fmt.Errorf("flexible load name cannot be empty")
	}
	if T <= 0 {
		return nil, fmt.Errorf("flexible load %q: horizon must be positive, got %d", name, T)
	}
	return &FlexibleLoad{name: name, T: T}, nil
}

// Name returns the load's identifier.
func (l *FlexibleLoad) Name() string { return l.name }

// Horizon returns the number of time steps.
func (l *FlexibleLoad) Horizon() int { return l.T }

func (l *FlexibleLoad) bind(m *solver.Model) {
	l.p = m.ContinuousVec(l.name+"_P_kW", l.T)
}
