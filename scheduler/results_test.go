package scheduler

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jdboer/hems/hems"
)

func TestRunAccumulatorTotals(t *testing.T) {
	acc := NewRunAccumulator(0.5) // half-hour steps

	acc.Append(DayRecord{
		Date:       time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC),
		Status:     DayStatusOptimal,
		Import:     []float64{2, 0},
		Export:     []float64{0, 1},
		Demand:     []float64{1, 1},
		PVs:        []hems.SolarResult{{Name: "pv", Power: []float64{0, 2}}},
		Cost:       0.30,
		CostImport: 0.40,
		CostExport: 0.10,
		SolveTime:  20 * time.Millisecond,
	})
	acc.Append(DayRecord{
		Date:       time.Date(2025, 3, 2, 0, 0, 0, 0, time.UTC),
		Status:     DayStatusOptimal,
		Import:     []float64{1, 1},
		Export:     []float64{0, 0},
		Demand:     []float64{1, 1},
		Cost:       0.25,
		CostImport: 0.25,
		SolveTime:  10 * time.Millisecond,
	})

	require.Equal(t, 2, acc.Days())
	res := acc.Finalize(hems.ObjectiveCost)

	assert.Equal(t, RunStatusOptimal, res.Status)
	assert.Empty(t, res.FailedDays)
	assert.InDelta(t, 2.0, res.Totals.ImportKWh, 1e-9)     // (2+0+1+1) * 0.5
	assert.InDelta(t, 0.5, res.Totals.ExportKWh, 1e-9)     // 1 * 0.5
	assert.InDelta(t, 1.0, res.Totals.GenerationKWh, 1e-9) // 2 * 0.5
	assert.InDelta(t, 2.0, res.Totals.DemandKWh, 1e-9)
	assert.InDelta(t, 0.55, res.Totals.Cost, 1e-9)
	assert.Equal(t, 30*time.Millisecond, res.Totals.SolveTime)
}

func TestFinalizePartial(t *testing.T) {
	acc := NewRunAccumulator(1.0)
	acc.Append(DayRecord{
		Date:   time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC),
		Status: DayStatusOptimal,
	})
	acc.Append(DayRecord{
		Date:       time.Date(2025, 3, 2, 0, 0, 0, 0, time.UTC),
		Status:     DayStatusFailed,
		FailReason: "solver status infeasible",
	})

	res := acc.Finalize(hems.ObjectiveCost)
	assert.Equal(t, RunStatusPartial, res.Status)
	assert.Equal(t, []string{"2025-03-02"}, res.FailedDays)
}

func TestSelfConsumptionPct(t *testing.T) {
	r := &RunResult{Totals: Totals{GenerationKWh: 10, ExportKWh: 4}}
	assert.InDelta(t, 60.0, r.SelfConsumptionPct(), 1e-9)

	r = &RunResult{Totals: Totals{GenerationKWh: 0, ExportKWh: 0}}
	assert.Equal(t, 0.0, r.SelfConsumptionPct())
}

func TestCompare(t *testing.T) {
	a := &RunResult{Totals: Totals{ImportKWh: 20, ExportKWh: 5, Cost: 4.0}}
	b := &RunResult{Totals: Totals{ImportKWh: 15, ExportKWh: 8, Cost: 3.0}}

	c := Compare(a, b)
	assert.InDelta(t, -5.0, c.DeltaImportKWh, 1e-9)
	assert.InDelta(t, 3.0, c.DeltaExportKWh, 1e-9)
	assert.InDelta(t, -1.0, c.DeltaCost, 1e-9)
	assert.InDelta(t, -25.0, c.CostChangePct, 1e-9)
}

func TestCompareZeroBaseCost(t *testing.T) {
	a := &RunResult{}
	b := &RunResult{Totals: Totals{Cost: 1.0}}
	c := Compare(a, b)
	assert.Equal(t, 0.0, c.CostChangePct)
}

func TestSummaryMentionsFailedDays(t *testing.T) {
	r := &RunResult{
		Status:     RunStatusPartial,
		Objective:  hems.ObjectiveCost,
		Days:       []DayRecord{{}, {}},
		FailedDays: []string{"2025-03-02"},
	}
	s := r.Summary()
	assert.Contains(t, s, "partial")
	assert.Contains(t, s, "2025-03-02")
}
