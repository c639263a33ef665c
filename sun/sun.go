// Package sun converts horizontal irradiance components into
// plane-of-array irradiance for a tilted PV surface, using an
// isotropic-sky model.
package sun

import (
	"math"
	"time"

	"github.com/sixdouglas/suncalc"
)

func radians(deg float64) float64 { return deg * math.Pi / 180 }

// Declination returns the solar declination in degrees for a day of year
// (1-365), using the Spencer approximation. It crosses zero near the
// equinoxes (day 81) and peaks at +-23.45 degrees at the solstices.
func Declination(dayOfYear int) float64 {
	return 23.45 * math.Sin(radians(360.0/365.0*float64(dayOfYear-81)))
}

// HourAngle returns the solar hour angle in degrees for a local solar hour
// of day: zero at solar noon, negative in the morning, 15 degrees per hour.
func HourAngle(hour float64) float64 {
	return 15.0 * (hour - 12.0)
}

// IncidenceCosine returns the cosine of the angle of incidence between the
// sun's rays and a tilted surface (Duffie & Beckman). The surface azimuth
// uses the solar convention: 0 = south, west positive. Negative values mean
// the sun is behind the surface and are returned as-is; callers clamp.
func IncidenceCosine(declinationDeg, latitudeDeg, tiltDeg, surfaceAzimuthDeg, hourAngleDeg float64) float64 {
	d := radians(declinationDeg)
	phi := radians(latitudeDeg)
	beta := radians(tiltDeg)
	gamma := radians(surfaceAzimuthDeg)
	omega := radians(hourAngleDeg)

	return math.Sin(d)*math.Sin(phi)*math.Cos(beta) -
		math.Sin(d)*math.Cos(phi)*math.Sin(beta)*math.Cos(gamma) +
		math.Cos(d)*math.Cos(phi)*math.Cos(beta)*math.Cos(omega) +
		math.Cos(d)*math.Sin(phi)*math.Sin(beta)*math.Cos(gamma)*math.Cos(omega) +
		math.Cos(d)*math.Sin(beta)*math.Sin(gamma)*math.Sin(omega)
}

// PlaneOfArray projects direct-normal and diffuse-horizontal irradiance onto
// a tilted surface:
//
//	POA[i] = DNI[i]*max(cosAOI, 0) + DHI[i]*(1+cos(tilt))/2
//
// tiltDeg and azimuthDeg use the geographic convention (azimuth 0 = north,
// 180 = south-facing); the azimuth is converted to the solar convention
// internally. hours gives the local solar hour of day per sample. daylight,
// when non-nil, masks the beam term: entries that are false zero the DNI
// contribution regardless of geometry. Results are clamped at zero.
func PlaneOfArray(dni, dhi []float64, tiltDeg, azimuthDeg, latitudeDeg float64, dayOfYear int, hours []float64, daylight []bool) []float64 {
	decl := Declination(dayOfYear)
	surfAz := azimuthDeg - 180.0
	diffuseFactor := (1 + math.Cos(radians(tiltDeg))) / 2

	poa := make([]float64, len(hours))
	for i, h := range hours {
		cosAOI := IncidenceCosine(decl, latitudeDeg, tiltDeg, surfAz, HourAngle(h))
		if cosAOI < 0 {
			cosAOI = 0
		}
		if daylight != nil && !daylight[i] {
			cosAOI = 0
		}

		var beam, diffuse float64
		if i < len(dni) {
			beam = dni[i] * cosAOI
		}
		if i < len(dhi) {
			diffuse = dhi[i] * diffuseFactor
		}
		v := beam + diffuse
		if v < 0 {
			v = 0
		}
		poa[i] = v
	}
	return poa
}

// ArrayPower converts plane-of-array irradiance [W/m2] into AC power [kW]
// for an array rated peakKW at 1000 W/m2, derated by a flat system
// efficiency. Results are clamped at zero.
func ArrayPower(poa []float64, peakKW, systemEfficiency float64) []float64 {
	p := make([]float64, len(poa))
	for i, v := range poa {
		w := peakKW * v / 1000.0 * systemEfficiency
		if w < 0 {
			w = 0
		}
		p[i] = w
	}
	return p
}

// DaylightMask reports, for each local solar hour on the given day, whether
// the sun is above the horizon at the site. It backs the beam-term gate in
// PlaneOfArray so that nonzero archive DNI at dawn or dusk edges does not
// leak into steps where the sun has already set.
func DaylightMask(day time.Time, latitude, longitude float64, hours []float64) []bool {
	midnight := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, day.Location())
	mask := make([]bool, len(hours))
	for i, h := range hours {
		at := midnight.Add(time.Duration(h * float64(time.Hour)))
		pos := suncalc.GetPosition(at, latitude, longitude)
		mask[i] = pos.Altitude > 0
	}
	return mask
}
