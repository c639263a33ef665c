package meteo

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testParams() QueryParams {
	return QueryParams{
		Location:  Location{Latitude: 52.37, Longitude: 4.9},
		StartDate: time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC),
		EndDate:   time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC),
	}
}

func TestGetArchive(t *testing.T) {
	var gotQuery map[string]string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = map[string]string{}
		for k := range r.URL.Query() {
			gotQuery[k] = r.URL.Query().Get(k)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{
			"latitude": 52.37,
			"longitude": 4.9,
			"timezone": "UTC",
			"hourly_units": {"temperature_2m": "°C", "wind_speed_10m": "km/h"},
			"hourly": {
				"time": ["2025-03-01T00:00","2025-03-01T01:00","2025-03-01T02:00","2025-03-01T03:00",
					"2025-03-01T04:00","2025-03-01T05:00","2025-03-01T06:00","2025-03-01T07:00",
					"2025-03-01T08:00","2025-03-01T09:00","2025-03-01T10:00","2025-03-01T11:00",
					"2025-03-01T12:00","2025-03-01T13:00","2025-03-01T14:00","2025-03-01T15:00",
					"2025-03-01T16:00","2025-03-01T17:00","2025-03-01T18:00","2025-03-01T19:00",
					"2025-03-01T20:00","2025-03-01T21:00","2025-03-01T22:00","2025-03-01T23:00"],
				"shortwave_radiation": [0,0,0,0,0,0,0,20,80,150,220,280,300,280,220,150,80,20,0,0,0,0,0,0],
				"direct_normal_irradiance": [0,0,0,0,0,0,0,100,300,500,600,650,660,650,600,500,300,100,0,0,0,0,0,0],
				"diffuse_radiation": [0,0,0,0,0,0,0,15,40,60,80,90,95,90,80,60,40,15,0,0,0,0,0,0],
				"temperature_2m": [4,3.5,3,3,2.5,2.5,3,4,5,6.5,8,9,10,10.5,10.5,10,9,7.5,6.5,6,5.5,5,4.5,4],
				"wind_speed_10m": [18,18,18,18,18,18,18,18,18,18,18,18,18,18,18,18,18,18,18,18,18,18,18,18]
			}
		}`))
	}))
	defer server.Close()

	client := NewClient()
	client.SetBaseURL(server.URL)

	archive, err := client.GetArchive(context.Background(), testParams())
	require.NoError(t, err)

	assert.Equal(t, "52.37", gotQuery["latitude"])
	assert.Equal(t, "4.9", gotQuery["longitude"])
	assert.Equal(t, "2025-03-01", gotQuery["start_date"])
	assert.Equal(t, "2025-03-01", gotQuery["end_date"])
	assert.Equal(t, "UTC", gotQuery["timezone"])
	assert.Contains(t, gotQuery["hourly"], "direct_normal_irradiance")
	assert.Contains(t, gotQuery["hourly"], "temperature_2m")

	require.Equal(t, 1, archive.Days())
	day, err := archive.Day(0)
	require.NoError(t, err)
	assert.Len(t, day.DNI, 24)
	assert.Equal(t, 660.0, day.DNI[12])
	assert.Equal(t, 10.0, day.Temperature[12])
	// 18 km/h is 5 m/s.
	assert.InDelta(t, 5.0, day.WindSpeed[0], 1e-9)
}

func TestGetArchiveHTTPError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "too many requests", http.StatusTooManyRequests)
	}))
	defer server.Close()

	client := NewClient()
	client.SetBaseURL(server.URL)

	_, err := client.GetArchive(context.Background(), testParams())
	require.Error(t, err)

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusTooManyRequests, apiErr.StatusCode)
}

func TestValidateParams(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*QueryParams)
	}{
		{"latitude out of range", func(p *QueryParams) { p.Location.Latitude = 91 }},
		{"longitude out of range", func(p *QueryParams) { p.Location.Longitude = -181 }},
		{"missing dates", func(p *QueryParams) { p.StartDate = time.Time{}; p.EndDate = time.Time{} }},
		{"end before start", func(p *QueryParams) { p.EndDate = p.StartDate.AddDate(0, 0, -1) }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := testParams()
			tt.mutate(&p)
			err := ValidateParams(p)
			require.Error(t, err)

			var valErr *ValidationError
			assert.ErrorAs(t, err, &valErr)
		})
	}
}

func TestDayOutOfRange(t *testing.T) {
	archive := &ArchiveResponse{}
	_, err := archive.Day(0)
	assert.Error(t, err)
}

func TestResampleLinear(t *testing.T) {
	tests := []struct {
		name    string
		hourly  []float64
		T       int
		dtHours float64
		want    []float64
	}{
		{
			name:    "identity at hourly resolution",
			hourly:  []float64{1, 2, 3, 4},
			T:       4,
			dtHours: 1.0,
			want:    []float64{1, 2, 3, 4},
		},
		{
			name:    "upsample interpolates between midpoints",
			hourly:  []float64{0, 10},
			T:       4,
			dtHours: 0.5,
			want:    []float64{0, 2.5, 7.5, 10},
		},
		{
			name:    "single sample holds constant",
			hourly:  []float64{7},
			T:       3,
			dtHours: 1.0,
			want:    []float64{7, 7, 7},
		},
		{
			name:    "empty series yields zeros",
			hourly:  nil,
			T:       2,
			dtHours: 1.0,
			want:    []float64{0, 0},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ResampleLinear(tt.hourly, tt.T, tt.dtHours)
			require.Len(t, got, tt.T)
			for i := range tt.want {
				assert.InDelta(t, tt.want[i], got[i], 1e-9, "index %d", i)
			}
		})
	}
}

func TestDayWeatherResample(t *testing.T) {
	d := &DayWeather{
		DNI:         []float64{100, 200},
		DHI:         []float64{10, 20},
		Temperature: []float64{5, 7},
		WindSpeed:   []float64{3, 3},
	}
	r := d.Resample(4, 0.5)
	require.Len(t, r.DNI, 4)
	assert.InDelta(t, 100.0, r.DNI[0], 1e-9)
	assert.InDelta(t, 200.0, r.DNI[3], 1e-9)
	assert.InDelta(t, 5.5, r.Temperature[1], 1e-9)
}
