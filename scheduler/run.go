package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"

	"github.com/jdboer/hems/hems"
	"github.com/jdboer/hems/inverter"
	"github.com/jdboer/hems/solver"
	"github.com/jdboer/hems/sun"
)

var (
	// ErrRunInProgress is returned when Run is called while another run is
	// still executing.
	ErrRunInProgress = errors.New("a run is already in progress")

	// ErrNoCompleteDays is returned when no day in the configured range has
	// a complete price series.
	ErrNoCompleteDays = errors.New("no days with complete input data in range")
)

// ProgressEvent is pushed after every solved day, e.g. to websocket clients.
type ProgressEvent struct {
	Day       string  `json:"day"`
	DayIndex  int     `json:"day_index"`
	TotalDays int     `json:"total_days"`
	Status    string  `json:"status"`
	Cost      float64 `json:"cost"`
}

// Scheduler drives the rolling-horizon optimization over a date range: one
// household model is built up front, then solved day by day with prices and
// weather swapped in and storage state carried forward between days.
type Scheduler struct {
	config *Config
	logger *log.Logger

	mu         sync.RWMutex
	isRunning  bool
	lastResult *RunResult

	store      *PriceStore
	server     *WebServer
	progressFn func(ProgressEvent)

	// Hooks for testing.
	fetchInputsFunc  func(ctx context.Context) ([]DayInputs, error)
	solveFunc        func(ctx context.Context, sys *hems.System) (*hems.SolveResult, error)
	readInverterFunc func() (*inverter.BatteryStatus, error)
}

// NewScheduler creates a scheduler for the given configuration.
func NewScheduler(config *Config, logger *log.Logger) *Scheduler {
	s := &Scheduler{
		config: config,
		logger: logger,
	}
	s.fetchInputsFunc = s.fetchInputs
	s.solveFunc = func(ctx context.Context, sys *hems.System) (*hems.SolveResult, error) {
		solveCtx, cancel := context.WithTimeout(ctx, config.SolveTimeout())
		defer cancel()
		return sys.Solve(solveCtx)
	}
	s.readInverterFunc = s.readInverter
	return s
}

// SetProgressFunc registers a callback invoked after each day of a run.
func (s *Scheduler) SetProgressFunc(fn func(ProgressEvent)) {
	s.progressFn = fn
}

// IsRunning reports whether a run is currently executing.
func (s *Scheduler) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.isRunning
}

// LastResult returns the result of the most recent completed run, or nil.
func (s *Scheduler) LastResult() *RunResult {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastResult
}

// Run executes one full rolling-horizon optimization: fetch inputs, build
// the household model, solve each complete day in order and accumulate the
// results. A day that fails to solve is recorded with a deterministic
// fallback and the loop continues; only faults outside the day loop (input
// fetch, model construction, cancellation) abort the run.
func (s *Scheduler) Run(ctx context.Context) (*RunResult, error) {
	s.mu.Lock()
	if s.isRunning {
		s.mu.Unlock()
		return nil, ErrRunInProgress
	}
	s.isRunning = true
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		s.isRunning = false
		s.mu.Unlock()
	}()

	if s.config.PostgresConnString != "" && s.store == nil {
		store, err := NewPriceStore(ctx, s.config.PostgresConnString)
		if err != nil {
			s.logger.Printf("Price cache unavailable, continuing without: %v", err)
		} else {
			s.store = store
			defer func() {
				store.Close()
				s.store = nil
			}()
		}
	}

	s.logger.Printf("Fetching inputs for %s..%s", s.config.StartDate, s.config.EndDate)
	inputs, err := s.fetchInputsFunc(ctx)
	if err != nil {
		return nil, err
	}
	if len(inputs) == 0 {
		return nil, ErrNoCompleteDays
	}
	s.logger.Printf("Solving %d days (objective=%s, %d steps/day)",
		len(inputs), s.config.Objective, s.config.StepsPerDay())

	sys, hp, err := s.buildSystem()
	if err != nil {
		return nil, fmt.Errorf("building household model: %w", err)
	}
	s.seedBatteryState(sys)

	acc := NewRunAccumulator(s.config.DT())
	for i, in := range inputs {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		rec := s.solveDay(ctx, sys, hp, in)
		acc.Append(rec)
		if rec.Status == DayStatusOptimal {
			sys.Step()
		} else {
			s.logger.Printf("Day %s failed (%s), storage state unchanged",
				in.Date.Format("2006-01-02"), rec.FailReason)
		}
		if s.progressFn != nil {
			s.progressFn(ProgressEvent{
				Day:       in.Date.Format("2006-01-02"),
				DayIndex:  i + 1,
				TotalDays: len(inputs),
				Status:    rec.Status,
				Cost:      rec.Cost,
			})
		}
	}

	result := acc.Finalize(sys.ObjectiveType())
	s.mu.Lock()
	s.lastResult = result
	s.mu.Unlock()

	s.logger.Print(result.Summary())
	return result, nil
}

// solveDay mutates the model parameters for one day, solves it, and turns
// the outcome into a DayRecord. Solve errors other than cancellation are
// demoted to a failed day so the loop can continue.
func (s *Scheduler) solveDay(ctx context.Context, sys *hems.System, hp *hems.HeatPump, in DayInputs) DayRecord {
	T := sys.Horizon()
	dt := sys.DT()

	if err := sys.SetPrices(in.Prices); err != nil {
		return s.failedDay(sys, hp, in, err.Error())
	}

	hours := make([]float64, T)
	for t := 0; t < T; t++ {
		hours[t] = (float64(t) + 0.5) * dt
	}
	w := in.Weather.Resample(T, dt)

	if len(sys.PVs()) > 0 {
		mask := sun.DaylightMask(in.Date, s.config.Latitude, s.config.Longitude, hours)
		for _, pv := range sys.PVs() {
			p := pv.Params()
			poa := sun.PlaneOfArray(w.DNI, w.DHI, p.TiltDeg, p.AzimuthDeg,
				s.config.Latitude, in.Date.YearDay(), hours, mask)
			if err := pv.SetProfile(sun.ArrayPower(poa, p.PeakPowerKW, p.SystemEfficiency)); err != nil {
				return s.failedDay(sys, hp, in, err.Error())
			}
		}
	}

	if hp != nil {
		if err := hp.Simulate(w.Temperature); err != nil {
			return s.failedDay(sys, hp, in, err.Error())
		}
	}

	res, err := s.solveFunc(ctx, sys)
	if err != nil {
		if ctx.Err() != nil {
			return s.failedDay(sys, hp, in, "cancelled: "+err.Error())
		}
		return s.failedDay(sys, hp, in, err.Error())
	}
	if res.Status != solver.StatusOptimal {
		return s.failedDay(sys, hp, in, "solver status "+string(res.Status))
	}

	rec := DayRecord{
		Date:       in.Date,
		Status:     DayStatusOptimal,
		Prices:     in.Prices,
		Import:     res.Import,
		Export:     res.Export,
		Demand:     sys.FixedDemand(),
		Battery:    res.Battery,
		EVs:        res.EVs,
		PVs:        res.PVs,
		Cost:       res.Cost,
		CostImport: res.CostImport,
		CostExport: res.CostExport,
		SolveTime:  res.SolveTime,
	}
	if hp != nil {
		rec.HeatPumpPower = hp.Load().Profile()
		rec.HeatPumpCOP = hp.COPSeries()
		rec.IndoorTemp = hp.IndoorSeries()
	}
	return rec
}

// failedDay builds the deterministic do-nothing record: fixed demand net of
// available PV is imported (or exported when PV dominates), storage does not
// move, and the result is priced under the configured tariff. PV keeps
// producing on a solver failure, so the fallback nets it out rather than
// importing raw demand; see DESIGN.md for the full rationale.
func (s *Scheduler) failedDay(sys *hems.System, hp *hems.HeatPump, in DayInputs, reason string) DayRecord {
	T := sys.Horizon()
	demand := sys.FixedDemand()

	net := make([]float64, T)
	copy(net, demand)
	var pvs []hems.SolarResult
	for _, pv := range sys.PVs() {
		avail := pv.Available()
		for t, v := range avail {
			net[t] -= v
		}
		pvs = append(pvs, hems.SolarResult{Name: pv.Name(), Power: avail, Available: avail})
	}

	imp := make([]float64, T)
	exp := make([]float64, T)
	for t, v := range net {
		if v >= 0 {
			imp[t] = v
		} else {
			exp[t] = -v
		}
	}
	costImp, costExp := sys.CostBreakdown(imp, exp)

	rec := DayRecord{
		Date:       in.Date,
		Status:     DayStatusFailed,
		FailReason: reason,
		Prices:     in.Prices,
		Import:     imp,
		Export:     exp,
		Demand:     demand,
		PVs:        pvs,
		Cost:       costImp - costExp,
		CostImport: costImp,
		CostExport: costExp,
	}
	if b := sys.Battery(); b != nil {
		r := flatStorage(b.Name(), b.InitialEnergy(), T)
		rec.Battery = &r
	}
	for _, ev := range sys.EVs() {
		rec.EVs = append(rec.EVs, flatStorage(ev.Name(), ev.InitialEnergy(), T))
	}
	if hp != nil {
		rec.HeatPumpPower = hp.Load().Profile()
		rec.HeatPumpCOP = hp.COPSeries()
		rec.IndoorTemp = hp.IndoorSeries()
	}
	return rec
}

func flatStorage(name string, energy float64, T int) hems.StorageResult {
	r := hems.StorageResult{
		Name:      name,
		Energy:    make([]float64, T+1),
		Charge:    make([]float64, T),
		Discharge: make([]float64, T),
	}
	for i := range r.Energy {
		r.Energy[i] = energy
	}
	return r
}

// buildSystem assembles the household model from the configuration. The
// heat pump's electrical load is registered as a fixed load whose profile
// Simulate overwrites each day.
func (s *Scheduler) buildSystem() (*hems.System, *hems.HeatPump, error) {
	T := s.config.StepsPerDay()
	dt := s.config.DT()

	base, err := hems.NewBaseLoad("base", T, s.config.BaseLoadKW)
	if err != nil {
		return nil, nil, err
	}
	loads := []*hems.FixedLoad{base}

	var hp *hems.HeatPump
	if s.config.HeatPump.Enabled {
		h := s.config.HeatPump
		hp, err = hems.NewHeatPump(hems.HeatPumpParams{
			Name:                   "heat_pump",
			HeatLossKWPerC:         h.HeatLossKWPerC,
			ThermalCapacityKWhPerC: h.ThermalCapacityKWhPerC,
			SetpointC:              h.SetpointC,
			SupplyTempC:            h.SupplyTempC,
			CarnotEfficiency:       h.CarnotEfficiency,
			COPMin:                 h.COPMin,
			COPMax:                 h.COPMax,
			MaxThermalKW:           h.MaxThermalKW,
			InternalGainKW:         h.InternalGainKW,
		}, T, dt)
		if err != nil {
			return nil, nil, err
		}
		loads = append(loads, hp.Load())
	}

	var battery *hems.Battery
	if s.config.Battery.Enabled {
		b := s.config.Battery
		battery, err = hems.NewBattery(hems.BatteryParams{
			Name:                "battery",
			CapacityKWh:         b.CapacityKWh,
			MaxChargeKW:         b.MaxChargeKW,
			MaxDischargeKW:      b.MaxDischargeKW,
			ChargeEfficiency:    b.ChargeEfficiency,
			DischargeEfficiency: b.DischargeEfficiency,
			InitialEnergyKWh:    b.InitialEnergyKWh,
			TargetEnergyKWh:     b.TargetEnergyKWh,
		}, T, dt)
		if err != nil {
			return nil, nil, err
		}
	}

	var evs []*hems.EV
	for _, spec := range s.config.EVs {
		trips := []hems.Trip{}
		if spec.ArriveStep > spec.DepartStep {
			trips = append(trips, hems.Trip{
				DepartStep: spec.DepartStep,
				ArriveStep: spec.ArriveStep,
				EnergyKWh:  spec.TripEnergyKWh,
			})
		}
		ev, err := hems.NewEV(hems.BatteryParams{
			Name:                spec.Name,
			CapacityKWh:         spec.CapacityKWh,
			MaxChargeKW:         spec.MaxChargeKW,
			MaxDischargeKW:      spec.MaxDischargeKW,
			ChargeEfficiency:    spec.ChargeEfficiency,
			DischargeEfficiency: spec.DischargeEfficiency,
			InitialEnergyKWh:    spec.InitialEnergyKWh,
			TargetEnergyKWh:     spec.TargetEnergyKWh,
		}, T, dt, trips)
		if err != nil {
			return nil, nil, err
		}
		evs = append(evs, ev)
	}

	var pvs []*hems.Solar
	for _, spec := range s.config.Solar {
		pv, err := hems.NewSolar(hems.SolarParams{
			Name:             spec.Name,
			PeakPowerKW:      spec.PeakPowerKW,
			SystemEfficiency: spec.SystemEfficiency,
			TiltDeg:          spec.TiltDeg,
			AzimuthDeg:       spec.AzimuthDeg,
			Curtailable:      spec.Curtailable,
		}, T)
		if err != nil {
			return nil, nil, err
		}
		pvs = append(pvs, pv)
	}

	objective, err := hems.ParseObjective(s.config.Objective)
	if err != nil {
		return nil, nil, err
	}

	sys, err := hems.NewSystem(hems.SystemConfig{
		T:         T,
		DT:        dt,
		Loads:     loads,
		PVs:       pvs,
		EVs:       evs,
		Battery:   battery,
		Tariff:    s.config.EffectiveTariff(),
		Objective: objective,
	})
	if err != nil {
		return nil, nil, err
	}
	return sys, hp, nil
}

// seedBatteryState overrides the configured initial battery energy with the
// live state of charge read from the inverter, when one is configured.
// Failures are logged and the configured value stands.
func (s *Scheduler) seedBatteryState(sys *hems.System) {
	if s.config.InverterModbusAddress == "" || sys.Battery() == nil {
		return
	}
	status, err := s.readInverterFunc()
	if err != nil {
		s.logger.Printf("Inverter read failed, using configured initial energy: %v", err)
		return
	}
	energy := status.EnergyKWh(sys.Battery().Params().CapacityKWh)
	s.logger.Printf("Seeding battery from inverter: %.1f%% SoC (%.2f kWh)", status.SOCPercent, energy)
	sys.Battery().SetInitialEnergy(energy)
}

func (s *Scheduler) readInverter() (*inverter.BatteryStatus, error) {
	client, err := inverter.NewTCPClient(s.config.InverterModbusAddress, byte(s.config.InverterSlaveID))
	if err != nil {
		return nil, err
	}
	defer client.Close()
	return client.ReadBatteryStatus()
}
