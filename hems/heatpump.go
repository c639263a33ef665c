package hems

import (
	"fmt"
	"math"
)

// HeatPumpParams defines an air-source heat pump coupled to a one-node
// building thermal model.
// Units:
//   - HeatLossKWPerC: building heat-loss coefficient H [kW/°C]
//   - ThermalCapacityKWhPerC: lumped thermal capacitance C [kWh/°C]
//   - MaxThermalKW: maximum thermal output [kW]
//   - InternalGainKW: occupants/appliances heat gain [kW]
type HeatPumpParams struct {
	Name                   string
	HeatLossKWPerC         float64
	ThermalCapacityKWhPerC float64
	SetpointC              float64
	SupplyTempC            float64
	CarnotEfficiency       float64
	COPMin                 float64
	COPMax                 float64
	MaxThermalKW           float64
	InternalGainKW         float64
}

// HeatPump models the heat pump as a non-controllable load: a forward
// simulation of the building's indoor temperature determines the thermal
// power needed to hold the set-point, and the temperature-dependent COP
// converts that into an electrical profile. The simulation is re-run per day
// with that day's ambient temperatures; the indoor temperature restarts at
// the set-point each day.
type HeatPump struct {
	params HeatPumpParams
	T      int
	dt     float64

	load    *FixedLoad
	cop     []float64 // per step
	indoor  []float64 // °C, T+1 points
	thermal []float64 // delivered heat [kW]
	ambient []float64 // last simulated ambient series [°C]
}

// NewHeatPump creates a heat pump over T steps of dt hours each. The load
// profile is zero until Simulate is called.
func NewHeatPump(p HeatPumpParams, T int, dt float64) (*HeatPump, error) {
	if p.Name == "" {
		return nil, fmt.Errorf("heat pump name cannot be empty")
	}
	if T <= 0 {
		return nil, fmt.Errorf("heat pump %q: horizon must be positive, got %d", p.Name, T)
	}
	if dt <= 0 {
		return nil, fmt.Errorf("heat pump %q: step duration must be positive, got %f", p.Name, dt)
	}
	if p.HeatLossKWPerC < 0 {
		return nil, fmt.Errorf("heat pump %q: heat-loss coefficient must be non-negative, got %f", p.Name, p.HeatLossKWPerC)
	}
	if p.ThermalCapacityKWhPerC <= 0 {
		return nil, fmt.Errorf("heat pump %q: thermal capacity must be positive, got %f", p.Name, p.ThermalCapacityKWhPerC)
	}
	if p.CarnotEfficiency <= 0 || p.CarnotEfficiency > 1 {
		return nil, fmt.Errorf("heat pump %q: Carnot efficiency must be in (0, 1], got %f", p.Name, p.CarnotEfficiency)
	}
	if p.COPMin <= 0 || p.COPMax < p.COPMin {
		return nil, fmt.Errorf("heat pump %q: COP clamps must satisfy 0 < min <= max", p.Name)
	}
	if p.MaxThermalKW < 0 {
		return nil, fmt.Errorf("heat pump %q: maximum thermal output must be non-negative, got %f", p.Name, p.MaxThermalKW)
	}

	load, err := NewFixedLoad(p.Name, make([]float64, T))
	if err != nil {
		return nil, err
	}
	return &HeatPump{
		params: p,
		T:      T,
		dt:     dt,
		load:   load,
	}, nil
}

// Name returns the heat pump's identifier.
func (hp *HeatPump) Name() string { return hp.params.Name }

// Horizon returns the number of time steps.
func (hp *HeatPump) Horizon() int { return hp.T }

// Params returns the heat pump parameters.
func (hp *HeatPump) Params() HeatPumpParams { return hp.params }

// Load returns the fixed load carrying the simulated electrical profile.
// Attach this to the System.
func (hp *HeatPump) Load() *FixedLoad { return hp.load }

// COP computes the coefficient of performance for one ambient temperature:
// Carnot COP at the supply temperature scaled by the efficiency factor, with
// a 1 °C floor on the temperature lift and clamped to [COPMin, COPMax].
func (p HeatPumpParams) COP(ambientC float64) float64 {
	hot := p.SupplyTempC + 273.15
	lift := p.SupplyTempC - ambientC
	if lift < 1 {
		lift = 1
	}
	cop := p.CarnotEfficiency * hot / lift
	return math.Min(math.Max(cop, p.COPMin), p.COPMax)
}

// Simulate runs the one-node thermal simulation for the given ambient
// temperature series and writes the resulting electrical profile into the
// heat pump's load. At each step the pump delivers the heat needed to pull
// the indoor temperature back to the set-point, clamped to its rated thermal
// output; the indoor temperature then advances by forward Euler.
func (hp *HeatPump) Simulate(ambientC []float64) error {
	if len(ambientC) != hp.T {
		return fmt.Errorf("heat pump %q: ambient series length %d does not match horizon %d", hp.params.Name, len(ambientC), hp.T)
	}

	p := hp.params
	hp.cop = make([]float64, hp.T)
	hp.indoor = make([]float64, hp.T+1)
	hp.thermal = make([]float64, hp.T)
	hp.ambient = make([]float64, hp.T)
	copy(hp.ambient, ambientC)

	elec := make([]float64, hp.T)
	hp.indoor[0] = p.SetpointC

	for t := 0; t < hp.T; t++ {
		hp.cop[t] = p.COP(ambientC[t])

		loss := p.HeatLossKWPerC * (hp.indoor[t] - ambientC[t])
		needed := p.ThermalCapacityKWhPerC*(p.SetpointC-hp.indoor[t])/hp.dt + loss - p.InternalGainKW
		if needed < 0 {
			needed = 0
		}
		if needed > p.MaxThermalKW {
			needed = p.MaxThermalKW
		}
		hp.thermal[t] = needed

		hp.indoor[t+1] = hp.indoor[t] + hp.dt/p.ThermalCapacityKWhPerC*(needed+p.InternalGainKW-loss)

		if hp.cop[t] > 0 {
			elec[t] = needed / hp.cop[t]
		}
	}

	return hp.load.SetProfile(elec)
}

// COPSeries returns a copy of the per-step COP from the last simulation.
func (hp *HeatPump) COPSeries() []float64 {
	c := make([]float64, len(hp.cop))
	copy(c, hp.cop)
	return c
}

// IndoorSeries returns a copy of the indoor temperature trajectory (T+1
// points) from the last simulation.
func (hp *HeatPump) IndoorSeries() []float64 {
	c := make([]float64, len(hp.indoor))
	copy(c, hp.indoor)
	return c
}

// ThermalSeries returns a copy of the delivered heat from the last
// simulation.
func (hp *HeatPump) ThermalSeries() []float64 {
	c := make([]float64, len(hp.thermal))
	copy(c, hp.thermal)
	return c
}
