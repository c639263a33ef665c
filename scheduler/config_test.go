package scheduler

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validTestConfig() *Config {
	c := DefaultConfig()
	c.SecurityToken = "test-token"
	return c
}

func TestDefaultConfigIsValid(t *testing.T) {
	require.NoError(t, validTestConfig().Validate())
}

func TestConfigValidation(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"end before start", func(c *Config) { c.StartDate = "2025-03-10"; c.EndDate = "2025-03-01" }},
		{"malformed date", func(c *Config) { c.StartDate = "10-03-2025" }},
		{"bad timezone", func(c *Config) { c.Timezone = "Mars/Olympus" }},
		{"latitude out of range", func(c *Config) { c.Latitude = 95 }},
		{"step not a divisor of a day", func(c *Config) { c.StepMinutes = 7 }},
		{"zero step", func(c *Config) { c.StepMinutes = 0 }},
		{"unknown objective", func(c *Config) { c.Objective = "profit" }},
		{"zero solve timeout", func(c *Config) { c.SolveTimeoutSeconds = 0 }},
		{"negative base load", func(c *Config) { c.BaseLoadKW = -1 }},
		{"unknown supplier", func(c *Config) { c.Tariff.Supplier = "Enron" }},
		{"vat out of range", func(c *Config) { c.Tariff.VAT = 1.5 }},
		{"battery without capacity", func(c *Config) { c.Battery.CapacityKWh = 0 }},
		{"ev without name", func(c *Config) { c.EVs[0].Name = "" }},
		{"ev arrive before depart", func(c *Config) { c.EVs[0].ArriveStep = c.EVs[0].DepartStep }},
		{"ev depart beyond horizon", func(c *Config) { c.EVs[0].DepartStep = 200 }},
		{"solar efficiency above one", func(c *Config) { c.Solar[0].SystemEfficiency = 1.1 }},
		{"missing token", func(c *Config) { c.SecurityToken = "" }},
		{"missing bidding zone", func(c *Config) { c.BiddingZone = "" }},
		{"port out of range", func(c *Config) { c.ServerPort = 70000 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := validTestConfig()
			tt.mutate(c)
			assert.Error(t, c.Validate())
		})
	}
}

func TestLoadConfigFromReader(t *testing.T) {
	yaml := `
start_date: "2025-03-01"
end_date: "2025-03-03"
step_minutes: 60
objective: self_reliance
security_token: abc
battery:
  enabled: true
  capacity_kwh: 10
  max_charge_kw: 4
  max_discharge_kw: 4
  charge_efficiency: 0.9
  discharge_efficiency: 0.9
`
	c, err := LoadConfigFromReader(strings.NewReader(yaml))
	require.NoError(t, err)

	assert.Equal(t, "2025-03-01", c.StartDate)
	assert.Equal(t, 60, c.StepMinutes)
	assert.Equal(t, 24, c.StepsPerDay())
	assert.Equal(t, 1.0, c.DT())
	assert.Equal(t, "self_reliance", c.Objective)
	assert.Equal(t, 10.0, c.Battery.CapacityKWh)
	// Unset fields keep their defaults.
	assert.Equal(t, "Europe/Amsterdam", c.Timezone)
	assert.Equal(t, "10YNL----------L", c.BiddingZone)
}

func TestLoadConfigFromReaderRejectsInvalid(t *testing.T) {
	_, err := LoadConfigFromReader(strings.NewReader("step_minutes: 7\nsecurity_token: abc\n"))
	assert.Error(t, err)

	_, err = LoadConfigFromReader(strings.NewReader("{not yaml"))
	assert.Error(t, err)
}

func TestStepsPerDay(t *testing.T) {
	tests := []struct {
		minutes int
		steps   int
		dt      float64
	}{
		{15, 96, 0.25},
		{30, 48, 0.5},
		{60, 24, 1.0},
		{360, 4, 6.0},
	}
	for _, tt := range tests {
		c := validTestConfig()
		c.StepMinutes = tt.minutes
		assert.Equal(t, tt.steps, c.StepsPerDay())
		assert.InDelta(t, tt.dt, c.DT(), 1e-12)
	}
}

func TestEffectiveTariff(t *testing.T) {
	c := validTestConfig()
	c.Tariff.Supplier = "Zonneplan"
	tariff := c.EffectiveTariff()
	assert.InDelta(t, 0.02, tariff.ProcurementFee, 1e-12)
	assert.InDelta(t, 0.02, tariff.SellBackCredit, 1e-12)
	assert.InDelta(t, 0.0916, tariff.EnergyTax, 1e-12)

	c.Tariff.Supplier = ""
	c.Tariff.ProcurementFee = 0.03
	tariff = c.EffectiveTariff()
	assert.InDelta(t, 0.03, tariff.ProcurementFee, 1e-12)
}

func TestDateRange(t *testing.T) {
	c := validTestConfig()
	c.StartDate = "2025-03-01"
	c.EndDate = "2025-03-03"
	c.Timezone = "UTC"

	start, end, err := c.DateRange()
	require.NoError(t, err)
	assert.Equal(t, 1, start.Day())
	assert.Equal(t, 3, end.Day())
	assert.True(t, start.Before(end))
}
