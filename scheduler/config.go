// Package scheduler runs the rolling-horizon optimization: it loads
// configuration, fetches prices and weather, solves the household problem
// day by day with storage state carried forward, accumulates results, and
// exposes them over an HTTP API.
package scheduler

import (
	"fmt"
	"io"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/jdboer/hems/hems"
)

// BatterySpec configures the home battery.
type BatterySpec struct {
	Enabled             bool    `yaml:"enabled"`
	CapacityKWh         float64 `yaml:"capacity_kwh"`
	MaxChargeKW         float64 `yaml:"max_charge_kw"`
	MaxDischargeKW      float64 `yaml:"max_discharge_kw"`
	ChargeEfficiency    float64 `yaml:"charge_efficiency"`
	DischargeEfficiency float64 `yaml:"discharge_efficiency"`
	InitialEnergyKWh    float64 `yaml:"initial_energy_kwh"`
	TargetEnergyKWh     float64 `yaml:"target_energy_kwh"`
}

// EVSpec configures one electric vehicle.
type EVSpec struct {
	Name                string  `yaml:"name"`
	CapacityKWh         float64 `yaml:"capacity_kwh"`
	MaxChargeKW         float64 `yaml:"max_charge_kw"`
	MaxDischargeKW      float64 `yaml:"max_discharge_kw"`
	ChargeEfficiency    float64 `yaml:"charge_efficiency"`
	DischargeEfficiency float64 `yaml:"discharge_efficiency"`
	InitialEnergyKWh    float64 `yaml:"initial_energy_kwh"`
	TargetEnergyKWh     float64 `yaml:"target_energy_kwh"`
	DepartStep          int     `yaml:"depart_step"`
	ArriveStep          int     `yaml:"arrive_step"`
	TripEnergyKWh       float64 `yaml:"trip_energy_kwh"`
}

// SolarSpec configures one PV array.
type SolarSpec struct {
	Name             string  `yaml:"name"`
	PeakPowerKW      float64 `yaml:"peak_power_kw"`
	SystemEfficiency float64 `yaml:"system_efficiency"`
	TiltDeg          float64 `yaml:"tilt_deg"`
	AzimuthDeg       float64 `yaml:"azimuth_deg"` // geographic, 180 = south
	Curtailable      bool    `yaml:"curtailable"`
}

// HeatPumpSpec configures the heat pump and building thermal model.
type HeatPumpSpec struct {
	Enabled                bool    `yaml:"enabled"`
	HeatLossKWPerC         float64 `yaml:"heat_loss_kw_per_c"`
	ThermalCapacityKWhPerC float64 `yaml:"thermal_capacity_kwh_per_c"`
	SetpointC              float64 `yaml:"setpoint_c"`
	SupplyTempC            float64 `yaml:"supply_temp_c"`
	CarnotEfficiency       float64 `yaml:"carnot_efficiency"`
	COPMin                 float64 `yaml:"cop_min"`
	COPMax                 float64 `yaml:"cop_max"`
	MaxThermalKW           float64 `yaml:"max_thermal_kw"`
	InternalGainKW         float64 `yaml:"internal_gain_kw"`
}

// TariffSpec configures the electricity contract.
type TariffSpec struct {
	Supplier       string  `yaml:"supplier"` // preset name, overrides fee/credit when set
	ProcurementFee float64 `yaml:"procurement_fee"`
	SellBackCredit float64 `yaml:"sell_back_credit"`
	EnergyTax      float64 `yaml:"energy_tax"`
	VAT            float64 `yaml:"vat"`
	NetMetering    bool    `yaml:"net_metering"`
}

// Config represents the configuration for the optimization run
type Config struct {
	// Run window
	StartDate string `yaml:"start_date"` // YYYY-MM-DD
	EndDate   string `yaml:"end_date"`   // YYYY-MM-DD, inclusive
	Timezone  string `yaml:"timezone"`

	// Site
	Latitude  float64 `yaml:"latitude"`
	Longitude float64 `yaml:"longitude"`

	// Optimization
	StepMinutes         int    `yaml:"step_minutes"`
	Objective           string `yaml:"objective"` // cost, self_consumption, self_reliance
	SolveTimeoutSeconds int    `yaml:"solve_timeout_seconds"`

	// Components
	BaseLoadKW float64      `yaml:"base_load_kw"`
	Battery    BatterySpec  `yaml:"battery"`
	EVs        []EVSpec     `yaml:"evs"`
	Solar      []SolarSpec  `yaml:"solar"`
	HeatPump   HeatPumpSpec `yaml:"heat_pump"`
	Tariff     TariffSpec   `yaml:"tariff"`

	// Price data (ENTSO-E)
	SecurityToken     string `yaml:"security_token"`
	BiddingZone       string `yaml:"bidding_zone"`
	APITimeoutSeconds int    `yaml:"api_timeout_seconds"`

	// Optional integrations
	PostgresConnString    string `yaml:"postgres_conn_string"`    // price cache, empty = disabled
	InverterModbusAddress string `yaml:"inverter_modbus_address"` // live SoC seed, empty = disabled
	InverterSlaveID       int    `yaml:"inverter_slave_id"`

	// Server
	ServerPort   int    `yaml:"server_port"` // 0 = disabled
	CronSchedule string `yaml:"cron_schedule"`
}

// DefaultConfig returns a configuration with default values: a Dutch
// household at 15-minute resolution with a 13.5 kWh battery, one EV, one
// south-facing array, a heat pump and the Tibber tariff preset.
func DefaultConfig() *Config {
	yesterday := time.Now().AddDate(0, 0, -8).Format("2006-01-02")
	weekAgo := time.Now().AddDate(0, 0, -14).Format("2006-01-02")
	return &Config{
		StartDate:           weekAgo,
		EndDate:             yesterday,
		Timezone:            "Europe/Amsterdam",
		Latitude:            52.37, // Amsterdam
		Longitude:           4.90,
		StepMinutes:         15,
		Objective:           string(hems.ObjectiveCost),
		SolveTimeoutSeconds: 60,
		BaseLoadKW:          0.4,
		Battery: BatterySpec{
			Enabled:             true,
			CapacityKWh:         13.5,
			MaxChargeKW:         5.0,
			MaxDischargeKW:      5.0,
			ChargeEfficiency:    0.95,
			DischargeEfficiency: 0.95,
			InitialEnergyKWh:    6.75,
			TargetEnergyKWh:     6.75,
		},
		EVs: []EVSpec{{
			Name:                "EV",
			CapacityKWh:         50.0,
			MaxChargeKW:         7.0,
			MaxDischargeKW:      0.0,
			ChargeEfficiency:    0.9,
			DischargeEfficiency: 0.9,
			InitialEnergyKWh:    20.0,
			TargetEnergyKWh:     20.0,
			DepartStep:          32,
			ArriveStep:          72,
			TripEnergyKWh:       10.0,
		}},
		Solar: []SolarSpec{{
			Name:             "Solar",
			PeakPowerKW:      5.0,
			SystemEfficiency: 0.85,
			TiltDeg:          35.0,
			AzimuthDeg:       180.0,
			Curtailable:      false,
		}},
		HeatPump: HeatPumpSpec{
			Enabled:                true,
			HeatLossKWPerC:         0.20,
			ThermalCapacityKWhPerC: 8.0,
			SetpointC:              20.0,
			SupplyTempC:            35.0,
			CarnotEfficiency:       0.45,
			COPMin:                 1.5,
			COPMax:                 6.0,
			MaxThermalKW:           8.0,
			InternalGainKW:         0.7,
		},
		Tariff: TariffSpec{
			Supplier:  "Tibber",
			EnergyTax: 0.0916, // NL 2025
			VAT:       0.21,
		},
		BiddingZone:       "10YNL----------L",
		APITimeoutSeconds: 30,
		InverterSlaveID:   247,
		ServerPort:        0,
	}
}

// LoadConfig loads configuration from a YAML file
func LoadConfig(filename string) (*Config, error) {
	file, err := os.Open(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}
	defer file.Close()

	return LoadConfigFromReader(file)
}

// LoadConfigFromReader loads configuration from an io.Reader
func LoadConfigFromReader(reader io.Reader) (*Config, error) {
	config := DefaultConfig()

	decoder := yaml.NewDecoder(reader)
	if err := decoder.Decode(config); err != nil {
		return nil, fmt.Errorf("failed to decode config YAML: %w", err)
	}

	if config.SecurityToken == "" {
		config.SecurityToken = os.Getenv("ENTSOE_SECURITY_TOKEN")
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return config, nil
}

// Validate checks if the configuration values are valid
func (c *Config) Validate() error {
	if _, _, err := c.DateRange(); err != nil {
		return err
	}

	if c.Latitude < -90 || c.Latitude > 90 {
		return fmt.Errorf("latitude must be between -90 and 90, got: %f", c.Latitude)
	}
	if c.Longitude < -180 || c.Longitude > 180 {
		return fmt.Errorf("longitude must be between -180 and 180, got: %f", c.Longitude)
	}

	if c.StepMinutes <= 0 || (24*60)%c.StepMinutes != 0 {
		return fmt.Errorf("step_minutes must be a positive divisor of 1440, got: %d", c.StepMinutes)
	}

	if _, err := hems.ParseObjective(c.Objective); err != nil {
		return err
	}

	if c.SolveTimeoutSeconds <= 0 {
		return fmt.Errorf("solve_timeout_seconds must be greater than 0, got: %d", c.SolveTimeoutSeconds)
	}
	if c.APITimeoutSeconds <= 0 {
		return fmt.Errorf("api_timeout_seconds must be greater than 0, got: %d", c.APITimeoutSeconds)
	}

	if c.BaseLoadKW < 0 {
		return fmt.Errorf("base_load_kw must be non-negative, got: %f", c.BaseLoadKW)
	}

	if c.Tariff.Supplier != "" {
		if _, ok := hems.Suppliers[c.Tariff.Supplier]; !ok {
			return fmt.Errorf("unknown supplier preset: %s", c.Tariff.Supplier)
		}
	}
	if c.Tariff.VAT < 0 || c.Tariff.VAT > 1 {
		return fmt.Errorf("tariff vat must be between 0 and 1, got: %f", c.Tariff.VAT)
	}

	if c.Battery.Enabled {
		if c.Battery.CapacityKWh <= 0 {
			return fmt.Errorf("battery capacity_kwh must be positive, got: %f", c.Battery.CapacityKWh)
		}
	}

	T := c.StepsPerDay()
	for i, ev := range c.EVs {
		if ev.Name == "" {
			return fmt.Errorf("evs[%d]: name cannot be empty", i)
		}
		if ev.CapacityKWh <= 0 {
			return fmt.Errorf("evs[%d]: capacity_kwh must be positive, got: %f", i, ev.CapacityKWh)
		}
		if ev.DepartStep < 0 || ev.DepartStep >= T {
			return fmt.Errorf("evs[%d]: depart_step must be in [0, %d), got: %d", i, T, ev.DepartStep)
		}
		if ev.ArriveStep <= ev.DepartStep {
			return fmt.Errorf("evs[%d]: arrive_step must be after depart_step", i)
		}
	}

	for i, pv := range c.Solar {
		if pv.Name == "" {
			return fmt.Errorf("solar[%d]: name cannot be empty", i)
		}
		if pv.PeakPowerKW < 0 {
			return fmt.Errorf("solar[%d]: peak_power_kw must be non-negative, got: %f", i, pv.PeakPowerKW)
		}
		if pv.SystemEfficiency <= 0 || pv.SystemEfficiency > 1 {
			return fmt.Errorf("solar[%d]: system_efficiency must be in (0, 1], got: %f", i, pv.SystemEfficiency)
		}
	}

	if c.SecurityToken == "" {
		return fmt.Errorf("security_token cannot be empty")
	}
	if c.BiddingZone == "" {
		return fmt.Errorf("bidding_zone cannot be empty")
	}

	if c.ServerPort < 0 || c.ServerPort > 65535 {
		return fmt.Errorf("server_port must be between 0 and 65535, got: %d", c.ServerPort)
	}

	return nil
}

// StepsPerDay returns the horizon length T implied by the step duration.
func (c *Config) StepsPerDay() int {
	return 24 * 60 / c.StepMinutes
}

// DT returns the step duration in hours.
func (c *Config) DT() float64 {
	return float64(c.StepMinutes) / 60.0
}

// SolveTimeout returns the per-day solver time budget.
func (c *Config) SolveTimeout() time.Duration {
	return time.Duration(c.SolveTimeoutSeconds) * time.Second
}

// APITimeout returns the timeout for external API calls.
func (c *Config) APITimeout() time.Duration {
	return time.Duration(c.APITimeoutSeconds) * time.Second
}

// Location resolves the configured timezone, defaulting to UTC.
func (c *Config) Location() (*time.Location, error) {
	if c.Timezone == "" {
		return time.UTC, nil
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("invalid timezone %q: %w", c.Timezone, err)
	}
	return loc, nil
}

// DateRange parses the configured start and end dates in the configured
// timezone. Both are midnight-anchored; the end date is inclusive.
func (c *Config) DateRange() (start, end time.Time, err error) {
	loc, err := c.Location()
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	start, err = time.ParseInLocation("2006-01-02", c.StartDate, loc)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("invalid start_date %q: %w", c.StartDate, err)
	}
	end, err = time.ParseInLocation("2006-01-02", c.EndDate, loc)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("invalid end_date %q: %w", c.EndDate, err)
	}
	if end.Before(start) {
		return time.Time{}, time.Time{}, fmt.Errorf("end_date %s precedes start_date %s", c.EndDate, c.StartDate)
	}
	return start, end, nil
}

// EffectiveTariff resolves the tariff, applying the supplier preset when one
// is named.
func (c *Config) EffectiveTariff() hems.Tariff {
	t := hems.Tariff{
		ProcurementFee: c.Tariff.ProcurementFee,
		SellBackCredit: c.Tariff.SellBackCredit,
		EnergyTax:      c.Tariff.EnergyTax,
		VAT:            c.Tariff.VAT,
		NetMetering:    c.Tariff.NetMetering,
	}
	if preset, ok := hems.Suppliers[c.Tariff.Supplier]; ok {
		t.ProcurementFee = preset.ProcurementFee
		t.SellBackCredit = preset.SellBackCredit
	}
	return t
}
