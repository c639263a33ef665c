// Package meteo provides a Go client for the Open-Meteo Archive API.
//
// The archive service returns historical hourly weather data for a location
// and date range. This package fetches the variables the optimizer needs
// (irradiance components, air temperature, wind speed) and offers helpers to
// slice the multi-day response into single days and to resample hourly
// series onto a finer optimization grid.
//
// Basic Usage:
//
//	client := meteo.NewClient()
//
//	params := meteo.QueryParams{
//		Location:  meteo.Location{Latitude: 52.37, Longitude: 4.90}, // Amsterdam
//		StartDate: time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC),
//		EndDate:   time.Date(2025, 6, 7, 0, 0, 0, 0, time.UTC),
//		Timezone:  "Europe/Amsterdam",
//	}
//
//	archive, err := client.GetArchive(ctx, params)
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	day, err := archive.Day(0) // first requested day, 24 hourly samples
//
// The client handles JSON deserialization and returns an *APIError for
// non-200 responses.
//
// For more information about the API, visit: https://open-meteo.com/en/docs/historical-weather-api
package meteo
