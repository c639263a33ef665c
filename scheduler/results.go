package scheduler

import (
	"fmt"
	"time"

	"github.com/jdboer/hems/hems"
)

// Day statuses recorded in the accumulator.
const (
	DayStatusOptimal = "optimal"
	DayStatusFailed  = "failed"
)

// Run statuses reported after finalization.
const (
	RunStatusOptimal = "optimal" // every day solved
	RunStatusPartial = "partial" // at least one day fell back
)

// DayRecord is the outcome of one day in the rolling loop. On failed days
// the trajectories hold the deterministic do-nothing fallback: the fixed
// demand net of available PV is imported (or exported when PV dominates)
// and storage stays flat.
type DayRecord struct {
	Date       time.Time `json:"date"`
	Status     string    `json:"status"`
	FailReason string    `json:"fail_reason,omitempty"`

	Prices []float64 `json:"prices"`
	Import []float64 `json:"import_kw"`
	Export []float64 `json:"export_kw"`
	Demand []float64 `json:"demand_kw"` // summed fixed loads

	Battery *hems.StorageResult  `json:"battery,omitempty"`
	EVs     []hems.StorageResult `json:"evs,omitempty"`
	PVs     []hems.SolarResult   `json:"pvs,omitempty"`

	HeatPumpPower []float64 `json:"heat_pump_power_kw,omitempty"`
	HeatPumpCOP   []float64 `json:"heat_pump_cop,omitempty"`
	IndoorTemp    []float64 `json:"indoor_temp_c,omitempty"`

	Cost       float64       `json:"cost"`
	CostImport float64       `json:"cost_import"`
	CostExport float64       `json:"cost_export"`
	SolveTime  time.Duration `json:"solve_time_ns"`
}

// Totals are the running energy and cost sums over a run.
type Totals struct {
	ImportKWh     float64       `json:"import_kwh"`
	ExportKWh     float64       `json:"export_kwh"`
	GenerationKWh float64       `json:"generation_kwh"`
	DemandKWh     float64       `json:"demand_kwh"`
	Cost          float64       `json:"cost"`
	CostImport    float64       `json:"cost_import"`
	CostExport    float64       `json:"cost_export"`
	SolveTime     time.Duration `json:"solve_time_ns"`
}

// RunAccumulator collects per-day records in chronological order and keeps
// the running totals current. It is created empty at the start of a run and
// finalized into a RunResult after the last day.
type RunAccumulator struct {
	dt   float64
	days []DayRecord
	tot  Totals
}

// NewRunAccumulator creates an empty accumulator for steps of dt hours.
func NewRunAccumulator(dt float64) *RunAccumulator {
	return &RunAccumulator{dt: dt}
}

// Append adds one day's record and folds it into the totals. Records must be
// appended in chronological day order.
func (a *RunAccumulator) Append(rec DayRecord) {
	for _, v := range rec.Import {
		a.tot.ImportKWh += v * a.dt
	}
	for _, v := range rec.Export {
		a.tot.ExportKWh += v * a.dt
	}
	for _, v := range rec.Demand {
		a.tot.DemandKWh += v * a.dt
	}
	for _, pv := range rec.PVs {
		for _, v := range pv.Power {
			a.tot.GenerationKWh += v * a.dt
		}
	}
	a.tot.Cost += rec.Cost
	a.tot.CostImport += rec.CostImport
	a.tot.CostExport += rec.CostExport
	a.tot.SolveTime += rec.SolveTime

	a.days = append(a.days, rec)
}

// Days returns the number of records appended so far.
func (a *RunAccumulator) Days() int { return len(a.days) }

// Finalize seals the accumulator into a RunResult.
func (a *RunAccumulator) Finalize(objective hems.Objective) *RunResult {
	res := &RunResult{
		Status:    RunStatusOptimal,
		Objective: objective,
		Days:      a.days,
		Totals:    a.tot,
	}
	for _, d := range a.days {
		if d.Status != DayStatusOptimal {
			res.Status = RunStatusPartial
			res.FailedDays = append(res.FailedDays, d.Date.Format("2006-01-02"))
		}
	}
	return res
}

// RunResult is a finalized multi-day run.
type RunResult struct {
	Status     string         `json:"status"`
	Objective  hems.Objective `json:"objective"`
	Days       []DayRecord    `json:"days"`
	Totals     Totals         `json:"totals"`
	FailedDays []string       `json:"failed_days,omitempty"`
}

// SelfConsumptionPct returns the share of generated energy consumed locally.
func (r *RunResult) SelfConsumptionPct() float64 {
	if r.Totals.GenerationKWh <= 0 {
		return 0
	}
	pct := (r.Totals.GenerationKWh - r.Totals.ExportKWh) / r.Totals.GenerationKWh * 100
	if pct < 0 {
		return 0
	}
	return pct
}

// Comparison holds the per-total deltas between two finished runs,
// computed as b minus a.
type Comparison struct {
	DeltaImportKWh     float64 `json:"delta_import_kwh"`
	DeltaExportKWh     float64 `json:"delta_export_kwh"`
	DeltaGenerationKWh float64 `json:"delta_generation_kwh"`
	DeltaCost          float64 `json:"delta_cost"`
	DeltaCostImport    float64 `json:"delta_cost_import"`
	DeltaCostExport    float64 `json:"delta_cost_export"`
	CostChangePct      float64 `json:"cost_change_pct"` // relative to run a, 0 when a's cost is 0
}

// Compare returns the totals of run b relative to run a, e.g. two tariffs or
// two objectives over the same date range.
func Compare(a, b *RunResult) Comparison {
	c := Comparison{
		DeltaImportKWh:     b.Totals.ImportKWh - a.Totals.ImportKWh,
		DeltaExportKWh:     b.Totals.ExportKWh - a.Totals.ExportKWh,
		DeltaGenerationKWh: b.Totals.GenerationKWh - a.Totals.GenerationKWh,
		DeltaCost:          b.Totals.Cost - a.Totals.Cost,
		DeltaCostImport:    b.Totals.CostImport - a.Totals.CostImport,
		DeltaCostExport:    b.Totals.CostExport - a.Totals.CostExport,
	}
	if a.Totals.Cost != 0 {
		c.CostChangePct = c.DeltaCost / a.Totals.Cost * 100
	}
	return c
}

// Summary renders a human-readable per-run summary.
func (r *RunResult) Summary() string {
	s := fmt.Sprintf("Run summary (objective=%s)\n", r.Objective)
	s += fmt.Sprintf("  Status       : %s\n", r.Status)
	s += fmt.Sprintf("  Days         : %d (%d failed)\n", len(r.Days), len(r.FailedDays))
	s += fmt.Sprintf("  Grid import  : %.1f kWh (EUR %.2f)\n", r.Totals.ImportKWh, r.Totals.CostImport)
	s += fmt.Sprintf("  Grid export  : %.1f kWh (EUR %.2f)\n", r.Totals.ExportKWh, r.Totals.CostExport)
	if r.Totals.GenerationKWh > 0 {
		s += fmt.Sprintf("  PV generation: %.1f kWh (%.1f%% self-consumed)\n", r.Totals.GenerationKWh, r.SelfConsumptionPct())
	}
	s += fmt.Sprintf("  Net cost     : EUR %.2f\n", r.Totals.Cost)
	s += fmt.Sprintf("  Solve time   : %s\n", r.Totals.SolveTime.Round(time.Millisecond))
	if len(r.FailedDays) > 0 {
		s += fmt.Sprintf("  Failed days  : %v\n", r.FailedDays)
	}
	return s
}
