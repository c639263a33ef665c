package hems

import (
	"fmt"

	"github.com/jdboer/hems/solver"
)

// Trip is one EV journey: the vehicle leaves at DepartStep, returns at
// ArriveStep, and the trip consumes EnergyKWh from its battery at departure.
type Trip struct {
	DepartStep int
	ArriveStep int
	EnergyKWh  float64
}

// DefaultTrip is a commute from 08:00 to 18:00 at 15-minute resolution,
// consuming 10 kWh.
var DefaultTrip = Trip{DepartStep: 32, ArriveStep: 72, EnergyKWh: 10}

// EV is a storage unit that is only connected to the home for part of the
// day. Charging (and discharging, when enabled) is gated by an availability
// sequence, and trips drain energy at the departure step.
type EV struct {
	Battery
	avail []float64 // 1 = plugged in, 0 = away
}

// NewEV creates an electric vehicle over T steps of dt hours each. When trips
// is nil, DefaultTrip is scheduled; pass an empty non-nil slice for an EV that
// never leaves.
func NewEV(p BatteryParams, T int, dt float64, trips []Trip) (*EV, error) {
	b, err := NewBattery(p, T, dt)
	if err != nil {
		return nil, fmt.Errorf("ev: %w", err)
	}
	ev := &EV{
		Battery: *b,
		avail:   make([]float64, T),
	}
	if trips == nil {
		trips = []Trip{DefaultTrip}
	}
	ev.ScheduleTrips(trips)
	return ev, nil
}

// ScheduleTrips resets the drain and availability sequences and applies the
// given trips: the trip energy is drained at the departure step and the
// vehicle is away for [depart, arrive). Overlapping trips are not merged;
// later entries overwrite earlier ones per step.
func (ev *EV) ScheduleTrips(trips []Trip) {
	for t := 0; t < ev.T; t++ {
		ev.drain[t] = 0
		ev.avail[t] = 1
	}
	for _, trip := range trips {
		if trip.DepartStep < 0 || trip.DepartStep >= ev.T {
			continue
		}
		ev.drain[trip.DepartStep] = trip.EnergyKWh
		end := trip.ArriveStep
		if end > ev.T {
			end = ev.T
		}
		for t := trip.DepartStep; t < end; t++ {
			ev.avail[t] = 0
		}
	}
}

// Availability returns a copy of the availability sequence.
func (ev *EV) Availability() []float64 {
	a := make([]float64, len(ev.avail))
	copy(a, ev.avail)
	return a
}

// constraints extends the storage constraint set with availability gating:
// while the vehicle is away, both power directions are forced to zero.
func (ev *EV) constraints() []solver.Constraint {
	cons := ev.Battery.constraints()
	for t := 0; t < ev.T; t++ {
		cons = append(cons, solver.Constraint{
			Terms: []solver.Term{{Var: ev.pCh[t], Coef: 1}},
			Op:    solver.LE,
			RHS:   ev.params.MaxChargeKW * ev.avail[t],
		})
		if ev.canDischarge() {
			cons = append(cons, solver.Constraint{
				Terms: []solver.Term{{Var: ev.pDis[t], Coef: 1}},
				Op:    solver.LE,
				RHS:   ev.params.MaxDischargeKW * ev.avail[t],
			})
		}
	}
	return cons
}
