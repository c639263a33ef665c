package meteo

// ResampleLinear interpolates an hourly series onto a T-step grid of dtHours
// per step. Hourly sample i is treated as the average over [i, i+1) and
// anchored at its midpoint i+0.5; each output step is likewise evaluated at
// its own midpoint. Outside the anchored range the series is held constant,
// so the first and last half hours clamp rather than extrapolate.
func ResampleLinear(hourly []float64, T int, dtHours float64) []float64 {
	out := make([]float64, T)
	if len(hourly) == 0 {
		return out
	}
	if len(hourly) == 1 {
		for i := range out {
			out[i] = hourly[0]
		}
		return out
	}

	for i := 0; i < T; i++ {
		mid := (float64(i) + 0.5) * dtHours

		pos := mid - 0.5 // offset into the hourly midpoint grid
		switch {
		case pos <= 0:
			out[i] = hourly[0]
		case pos >= float64(len(hourly)-1):
			out[i] = hourly[len(hourly)-1]
		default:
			lo := int(pos)
			frac := pos - float64(lo)
			out[i] = hourly[lo]*(1-frac) + hourly[lo+1]*frac
		}
	}
	return out
}

// Resample converts a DayWeather (hourly) onto a T-step grid.
func (d *DayWeather) Resample(T int, dtHours float64) *DayWeather {
	return &DayWeather{
		GHI:         ResampleLinear(d.GHI, T, dtHours),
		DNI:         ResampleLinear(d.DNI, T, dtHours),
		DHI:         ResampleLinear(d.DHI, T, dtHours),
		Temperature: ResampleLinear(d.Temperature, T, dtHours),
		WindSpeed:   ResampleLinear(d.WindSpeed, T, dtHours),
	}
}
