package entsoe

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// sampleDocument covers one delivery day at hourly resolution with an A03
// curve: positions 3 and 4 share the position-3 price, as do 6..24.
const sampleDocument = `<?xml version="1.0" encoding="UTF-8"?>
<Publication_MarketDocument xmlns="urn:iec62325.351:tc57wg16:451-3:publicationdocument:7:0">
	<mRID>7e0ee356acd3417ea830b7b1eb7f1e5f</mRID>
	<type>A44</type>
	<createdDateTime>2025-03-01T11:05:42Z</createdDateTime>
	<period.timeInterval>
		<start>2025-03-01T23:00Z</start>
		<end>2025-03-02T23:00Z</end>
	</period.timeInterval>
	<TimeSeries>
		<mRID>1</mRID>
		<businessType>A62</businessType>
		<currency_Unit.name>EUR</currency_Unit.name>
		<price_Measure_Unit.name>MWH</price_Measure_Unit.name>
		<curveType>A03</curveType>
		<Period>
			<timeInterval>
				<start>2025-03-01T23:00Z</start>
				<end>2025-03-02T23:00Z</end>
			</timeInterval>
			<resolution>PT60M</resolution>
			<Point><position>1</position><price.amount>85.10</price.amount></Point>
			<Point><position>2</position><price.amount>79.20</price.amount></Point>
			<Point><position>3</position><price.amount>75.00</price.amount></Point>
			<Point><position>5</position><price.amount>90.50</price.amount></Point>
			<Point><position>6</position><price.amount>110.00</price.amount></Point>
		</Period>
	</TimeSeries>
</Publication_MarketDocument>`

func TestDecodePublicationMarketDocument(t *testing.T) {
	doc, err := DecodePublicationMarketDocument(strings.NewReader(sampleDocument))
	require.NoError(t, err)

	assert.Equal(t, "A44", doc.Type)
	assert.Equal(t, "7e0ee356acd3417ea830b7b1eb7f1e5f", doc.MRID)
	require.Len(t, doc.TimeSeries, 1)

	ts := doc.TimeSeries[0]
	assert.Equal(t, "EUR", ts.CurrencyUnitName)
	assert.Equal(t, "A03", ts.CurveType)
	assert.Equal(t, time.Hour, ts.Period.Resolution)
	assert.Len(t, ts.Period.Points, 5)
	assert.Equal(t, time.Date(2025, 3, 1, 23, 0, 0, 0, time.UTC), ts.Period.TimeInterval.Start)
}

func TestPriceAtForwardFill(t *testing.T) {
	doc, err := DecodePublicationMarketDocument(strings.NewReader(sampleDocument))
	require.NoError(t, err)

	start := time.Date(2025, 3, 1, 23, 0, 0, 0, time.UTC)

	tests := []struct {
		name string
		at   time.Time
		want float64
	}{
		{"first hour", start, 85.10},
		{"second hour", start.Add(time.Hour), 79.20},
		{"mid-hour falls in same position", start.Add(90 * time.Minute), 79.20},
		{"published position", start.Add(2 * time.Hour), 75.00},
		{"omitted position carries last price", start.Add(3 * time.Hour), 75.00},
		{"resumes at next published position", start.Add(4 * time.Hour), 90.50},
		{"tail carries final price", start.Add(20 * time.Hour), 110.00},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := doc.PriceAt(tt.at)
			require.True(t, ok)
			assert.InDelta(t, tt.want, got, 1e-9)
		})
	}
}

func TestPriceAtOutsideInterval(t *testing.T) {
	doc, err := DecodePublicationMarketDocument(strings.NewReader(sampleDocument))
	require.NoError(t, err)

	start := time.Date(2025, 3, 1, 23, 0, 0, 0, time.UTC)

	if _, ok := doc.PriceAt(start.Add(-time.Minute)); ok {
		t.Error("expected no price before the interval")
	}
	if _, ok := doc.PriceAt(start.Add(24 * time.Hour)); ok {
		t.Error("expected no price at the exclusive interval end")
	}
}

func TestStepPrices(t *testing.T) {
	doc, err := DecodePublicationMarketDocument(strings.NewReader(sampleDocument))
	require.NoError(t, err)

	dayStart := time.Date(2025, 3, 1, 23, 0, 0, 0, time.UTC)

	prices, complete := doc.StepPrices(dayStart, 96, 0.25)
	assert.True(t, complete)
	require.Len(t, prices, 96)

	// EUR/MWh to EUR/kWh, quarter-hour steps repeat each hourly price.
	assert.InDelta(t, 0.0851, prices[0], 1e-9)
	assert.InDelta(t, 0.0851, prices[3], 1e-9)
	assert.InDelta(t, 0.0792, prices[4], 1e-9)
	assert.InDelta(t, 0.1100, prices[95], 1e-9)
}

func TestStepPricesIncomplete(t *testing.T) {
	doc, err := DecodePublicationMarketDocument(strings.NewReader(sampleDocument))
	require.NoError(t, err)

	// Day starting before the document's interval: the early steps have no
	// price, so the day reports incomplete.
	dayStart := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	_, complete := doc.StepPrices(dayStart, 24, 1.0)
	assert.False(t, complete)
}

func TestParseResolution(t *testing.T) {
	tests := []struct {
		in      string
		want    time.Duration
		wantErr bool
	}{
		{in: "PT15M", want: 15 * time.Minute},
		{in: "PT30M", want: 30 * time.Minute},
		{in: "PT60M", want: time.Hour},
		{in: "PT1H", want: time.Hour},
		{in: "P1D", want: 24 * time.Hour},
		{in: "PT7M", wantErr: true},
	}
	for _, tt := range tests {
		got, err := parseResolution(tt.in)
		if tt.wantErr {
			assert.Error(t, err, tt.in)
			continue
		}
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}
}
