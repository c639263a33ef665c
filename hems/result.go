package hems

// StorageResult is a storage unit's solved trajectory for one day.
type StorageResult struct {
	Name      string
	Energy    []float64 // state of energy [kWh], T+1 points
	Charge    []float64 // kW per step
	Discharge []float64 // kW per step, zeros when discharge is disabled
}

// TerminalEnergy returns the ending state of energy.
func (r StorageResult) TerminalEnergy() float64 {
	if len(r.Energy) == 0 {
		return 0
	}
	return r.Energy[len(r.Energy)-1]
}

// SolarResult is a PV array's solved output for one day. Power is the
// injected power; Available is the irradiance-derived ceiling, so
// Available - Power is the curtailed amount.
type SolarResult struct {
	Name      string
	Power     []float64
	Available []float64
}

// Curtailed returns the per-step curtailed power.
func (r SolarResult) Curtailed() []float64 {
	c := make([]float64, len(r.Power))
	for t := range c {
		c[t] = r.Available[t] - r.Power[t]
		if c[t] < 0 {
			c[t] = 0
		}
	}
	return c
}
