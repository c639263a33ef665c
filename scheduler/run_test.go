package scheduler

import (
	"context"
	"io"
	"log"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jdboer/hems/hems"
	"github.com/jdboer/hems/meteo"
	"github.com/jdboer/hems/solver"
)

// rollingTestConfig is a two-day battery-only setup at 6-hour resolution,
// small enough to solve for real in tests.
func rollingTestConfig() *Config {
	c := DefaultConfig()
	c.SecurityToken = "test-token"
	c.StartDate = "2025-03-01"
	c.EndDate = "2025-03-02"
	c.Timezone = "UTC"
	c.StepMinutes = 360
	c.BaseLoadKW = 0.5
	c.Battery = BatterySpec{
		Enabled:             true,
		CapacityKWh:         10,
		MaxChargeKW:         5,
		ChargeEfficiency:    1,
		DischargeEfficiency: 1,
		TargetEnergyKWh:     2,
	}
	c.EVs = nil
	c.Solar = nil
	c.HeatPump.Enabled = false
	c.Tariff = TariffSpec{}
	return c
}

func testLogger() *log.Logger {
	return log.New(io.Discard, "", 0)
}

func syntheticInputs(c *Config) []DayInputs {
	start, _, _ := c.DateRange()
	T := c.StepsPerDay()
	days := make([]DayInputs, 2)
	for d := range days {
		prices := make([]float64, T)
		for t := range prices {
			prices[t] = 0.1 + 0.1*float64(t)
		}
		days[d] = DayInputs{
			Date:    start.AddDate(0, 0, d),
			Prices:  prices,
			Weather: &meteo.DayWeather{},
		}
	}
	return days
}

func TestRunCarriesStateAcrossDays(t *testing.T) {
	c := rollingTestConfig()
	s := NewScheduler(c, testLogger())
	s.fetchInputsFunc = func(ctx context.Context) ([]DayInputs, error) {
		return syntheticInputs(c), nil
	}

	result, err := s.Run(context.Background())
	require.NoError(t, err)
	require.Len(t, result.Days, 2)
	assert.Equal(t, RunStatusOptimal, result.Status)

	day1, day2 := result.Days[0], result.Days[1]
	require.NotNil(t, day1.Battery)
	require.NotNil(t, day2.Battery)

	// Day one fills the battery to its 2 kWh terminal target; day two
	// starts from that state and has nothing left to charge.
	assert.InDelta(t, 0.0, day1.Battery.Energy[0], 1e-6)
	assert.InDelta(t, 2.0, day1.Battery.TerminalEnergy(), 1e-6)
	assert.InDelta(t, 2.0, day2.Battery.Energy[0], 1e-6)
	assert.InDelta(t, 2.0, day2.Battery.TerminalEnergy(), 1e-6)

	// Base load of 0.5 kW over 24 h is 12 kWh per day, plus the one-off
	// 2 kWh of charging on day one.
	assert.InDelta(t, 14.0, sumEnergy(day1.Import, c.DT()), 1e-6)
	assert.InDelta(t, 12.0, sumEnergy(day2.Import, c.DT()), 1e-6)
	assert.InDelta(t, 26.0, result.Totals.ImportKWh, 1e-6)

	assert.Same(t, result, s.LastResult())
}

func sumEnergy(power []float64, dt float64) float64 {
	var total float64
	for _, v := range power {
		total += v * dt
	}
	return total
}

func TestRunToleratesFailedDay(t *testing.T) {
	c := rollingTestConfig()
	s := NewScheduler(c, testLogger())
	s.fetchInputsFunc = func(ctx context.Context) ([]DayInputs, error) {
		return syntheticInputs(c), nil
	}

	calls := 0
	s.solveFunc = func(ctx context.Context, sys *hems.System) (*hems.SolveResult, error) {
		calls++
		if calls == 1 {
			return &hems.SolveResult{Status: solver.StatusInfeasible}, nil
		}
		return sys.Solve(ctx)
	}

	result, err := s.Run(context.Background())
	require.NoError(t, err)
	require.Len(t, result.Days, 2)

	assert.Equal(t, RunStatusPartial, result.Status)
	assert.Equal(t, []string{"2025-03-01"}, result.FailedDays)

	day1 := result.Days[0]
	assert.Equal(t, DayStatusFailed, day1.Status)
	assert.Contains(t, day1.FailReason, "infeasible")
	// The fallback imports exactly the fixed demand and leaves storage flat.
	for tt, v := range day1.Import {
		assert.InDelta(t, 0.5, v, 1e-9, "import step %d", tt)
		assert.InDelta(t, 0.0, day1.Export[tt], 1e-9, "export step %d", tt)
	}
	require.NotNil(t, day1.Battery)
	for _, e := range day1.Battery.Energy {
		assert.InDelta(t, 0.0, e, 1e-9)
	}

	// Day two still solves, starting from the unchanged initial state.
	day2 := result.Days[1]
	assert.Equal(t, DayStatusOptimal, day2.Status)
	assert.InDelta(t, 0.0, day2.Battery.Energy[0], 1e-6)
	assert.InDelta(t, 2.0, day2.Battery.TerminalEnergy(), 1e-6)
}

func TestRunNoCompleteDays(t *testing.T) {
	c := rollingTestConfig()
	s := NewScheduler(c, testLogger())
	s.fetchInputsFunc = func(ctx context.Context) ([]DayInputs, error) {
		return nil, nil
	}

	_, err := s.Run(context.Background())
	assert.ErrorIs(t, err, ErrNoCompleteDays)
}

func TestRunRejectsConcurrentRun(t *testing.T) {
	c := rollingTestConfig()
	s := NewScheduler(c, testLogger())
	s.isRunning = true

	_, err := s.Run(context.Background())
	assert.ErrorIs(t, err, ErrRunInProgress)
}

func TestRunEmitsProgress(t *testing.T) {
	c := rollingTestConfig()
	s := NewScheduler(c, testLogger())
	s.fetchInputsFunc = func(ctx context.Context) ([]DayInputs, error) {
		return syntheticInputs(c), nil
	}

	var events []ProgressEvent
	s.SetProgressFunc(func(ev ProgressEvent) {
		events = append(events, ev)
	})

	_, err := s.Run(context.Background())
	require.NoError(t, err)

	require.Len(t, events, 2)
	assert.Equal(t, "2025-03-01", events[0].Day)
	assert.Equal(t, 1, events[0].DayIndex)
	assert.Equal(t, 2, events[0].TotalDays)
	assert.Equal(t, DayStatusOptimal, events[0].Status)
	assert.Equal(t, 2, events[1].DayIndex)
}

func TestBuildSystemFromDefaults(t *testing.T) {
	c := validTestConfig()
	s := NewScheduler(c, testLogger())

	sys, hp, err := s.buildSystem()
	require.NoError(t, err)
	require.NotNil(t, hp)

	assert.Equal(t, 96, sys.Horizon())
	assert.InDelta(t, 0.25, sys.DT(), 1e-12)
	assert.NotNil(t, sys.Battery())
	assert.Len(t, sys.EVs(), 1)
	assert.Len(t, sys.PVs(), 1)
	// Base load plus the heat pump's profile load.
	assert.Len(t, sys.Loads(), 2)
	assert.Equal(t, hems.ObjectiveCost, sys.ObjectiveType())
}

func TestRenderCharts(t *testing.T) {
	c := rollingTestConfig()
	s := NewScheduler(c, testLogger())
	s.fetchInputsFunc = func(ctx context.Context) ([]DayInputs, error) {
		return syntheticInputs(c), nil
	}

	result, err := s.Run(context.Background())
	require.NoError(t, err)

	html, err := RenderCharts(result, c.DT())
	require.NoError(t, err)
	page := string(html)
	assert.Contains(t, page, "Day-ahead price")
	assert.Contains(t, page, "Grid exchange")
	assert.Contains(t, page, "Storage state of energy")
}

func TestRenderChartsEmpty(t *testing.T) {
	_, err := RenderCharts(&RunResult{}, 1.0)
	assert.Error(t, err)
}
