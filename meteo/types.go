package meteo

import (
	"fmt"
	"time"
)

// Location represents coordinates for an archive request
type Location struct {
	Latitude  float64 `json:"lat"`
	Longitude float64 `json:"lon"`
}

// QueryParams represents query parameters for archive requests
type QueryParams struct {
	Location  Location
	StartDate time.Time
	EndDate   time.Time // inclusive
	Timezone  string    // e.g. "Europe/Amsterdam"; defaults to UTC when empty
}

// HourlyData contains the hourly series of an archive response. All slices
// are aligned with Time and span the full requested date range, 24 samples
// per day.
type HourlyData struct {
	Time                   []string  `json:"time"`
	ShortwaveRadiation     []float64 `json:"shortwave_radiation"`      // GHI [W/m2]
	DirectNormalIrradiance []float64 `json:"direct_normal_irradiance"` // DNI [W/m2]
	DiffuseRadiation       []float64 `json:"diffuse_radiation"`        // DHI [W/m2]
	Temperature2M          []float64 `json:"temperature_2m"`           // [degC]
	WindSpeed10M           []float64 `json:"wind_speed_10m"`           // [km/h]
}

// HourlyUnits maps each hourly variable to its unit string.
type HourlyUnits struct {
	ShortwaveRadiation     string `json:"shortwave_radiation"`
	DirectNormalIrradiance string `json:"direct_normal_irradiance"`
	DiffuseRadiation       string `json:"diffuse_radiation"`
	Temperature2M          string `json:"temperature_2m"`
	WindSpeed10M           string `json:"wind_speed_10m"`
}

// ArchiveResponse represents the root archive API response
type ArchiveResponse struct {
	Latitude    float64     `json:"latitude"`
	Longitude   float64     `json:"longitude"`
	Timezone    string      `json:"timezone"`
	HourlyUnits HourlyUnits `json:"hourly_units"`
	Hourly      HourlyData  `json:"hourly"`
}

// DayWeather holds one day's hourly weather, 24 samples each.
type DayWeather struct {
	GHI         []float64 // global horizontal irradiance [W/m2]
	DNI         []float64 // direct normal irradiance [W/m2]
	DHI         []float64 // diffuse horizontal irradiance [W/m2]
	Temperature []float64 // air temperature [degC]
	WindSpeed   []float64 // wind speed [m/s]
}

const hoursPerDay = 24

// Days returns the number of complete days covered by the response.
func (r *ArchiveResponse) Days() int {
	return len(r.Hourly.Time) / hoursPerDay
}

// Day slices one day out of the response by index into the requested range.
// Wind speed is converted from the API's km/h to m/s.
func (r *ArchiveResponse) Day(i int) (*DayWeather, error) {
	if i < 0 || i >= r.Days() {
		return nil, fmt.Errorf("day index %d out of range (response covers %d days)", i, r.Days())
	}
	lo, hi := i*hoursPerDay, (i+1)*hoursPerDay

	slice := func(s []float64) []float64 {
		if hi > len(s) {
			return nil
		}
		out := make([]float64, hoursPerDay)
		copy(out, s[lo:hi])
		return out
	}

	d := &DayWeather{
		GHI:         slice(r.Hourly.ShortwaveRadiation),
		DNI:         slice(r.Hourly.DirectNormalIrradiance),
		DHI:         slice(r.Hourly.DiffuseRadiation),
		Temperature: slice(r.Hourly.Temperature2M),
		WindSpeed:   slice(r.Hourly.WindSpeed10M),
	}
	for h, v := range d.WindSpeed {
		d.WindSpeed[h] = v / 3.6
	}
	return d, nil
}
