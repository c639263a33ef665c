package entsoe

import (
	"encoding/xml"
	"fmt"
	"io"
	"time"
)

// PublicationMarketDocument represents the root element of an ENTSO-E price
// publication. Only the fields the price pipeline consumes are decoded.
type PublicationMarketDocument struct {
	XMLName            xml.Name     `xml:"Publication_MarketDocument"`
	MRID               string       `xml:"mRID"`
	Type               string       `xml:"type"`
	CreatedDateTime    string       `xml:"createdDateTime"`
	PeriodTimeInterval TimeInterval `xml:"period.timeInterval"`
	TimeSeries         []TimeSeries `xml:"TimeSeries"`
}

// TimeSeries is one delivery period of prices for a bidding zone.
type TimeSeries struct {
	MRID                 string `xml:"mRID"`
	BusinessType         string `xml:"businessType"`
	CurrencyUnitName     string `xml:"currency_Unit.name"`
	PriceMeasureUnitName string `xml:"price_Measure_Unit.name"`
	CurveType            string `xml:"curveType"`
	Period               Period `xml:"Period"`
}

// TimeInterval represents a time interval with start and end
type TimeInterval struct {
	Start time.Time `xml:"start"`
	End   time.Time `xml:"end"`
}

// UnmarshalXML implements custom XML unmarshaling for TimeInterval
func (ti *TimeInterval) UnmarshalXML(d *xml.Decoder, start xml.StartElement) error {
	var aux struct {
		Start string `xml:"start"`
		End   string `xml:"end"`
	}
	if err := d.DecodeElement(&aux, &start); err != nil {
		return err
	}

	var err error
	ti.Start, err = parseTimeString(aux.Start)
	if err != nil {
		return fmt.Errorf("error parsing start time: %v", err)
	}
	ti.End, err = parseTimeString(aux.End)
	if err != nil {
		return fmt.Errorf("error parsing end time: %v", err)
	}
	return nil
}

// parseTimeString parses time strings in the formats used by ENTSO-E XML
func parseTimeString(timeStr string) (time.Time, error) {
	for _, layout := range []string{
		time.RFC3339,             // 2006-01-02T15:04:05Z07:00
		"2006-01-02T15:04Z",      // 2025-09-04T22:00Z
		"2006-01-02T15:04Z07:00", // 2025-09-04T22:00+02:00
	} {
		if t, err := time.Parse(layout, timeStr); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unable to parse time string: %s", timeStr)
}

// Period represents a delivery period with resolution and price points
type Period struct {
	TimeInterval TimeInterval  `xml:"timeInterval"`
	Resolution   time.Duration `xml:"resolution"`
	Points       []Point       `xml:"Point"`
}

// UnmarshalXML implements custom XML unmarshaling for Period
func (p *Period) UnmarshalXML(d *xml.Decoder, start xml.StartElement) error {
	var aux struct {
		TimeInterval TimeInterval `xml:"timeInterval"`
		Resolution   string       `xml:"resolution"`
		Points       []Point      `xml:"Point"`
	}
	if err := d.DecodeElement(&aux, &start); err != nil {
		return err
	}

	p.TimeInterval = aux.TimeInterval
	p.Points = aux.Points

	var err error
	p.Resolution, err = parseResolution(aux.Resolution)
	if err != nil {
		return fmt.Errorf("error parsing resolution: %v", err)
	}
	return nil
}

// parseResolution maps the ISO 8601 resolutions the day-ahead market
// actually publishes to a duration.
func parseResolution(s string) (time.Duration, error) {
	switch s {
	case "PT15M":
		return 15 * time.Minute, nil
	case "PT30M":
		return 30 * time.Minute, nil
	case "PT60M", "PT1H":
		return time.Hour, nil
	case "P1D":
		return 24 * time.Hour, nil
	default:
		return 0, fmt.Errorf("unsupported resolution: %s", s)
	}
}

// Point is one price point. With curve type A03 points are omitted when the
// price does not change, so positions may be sparse.
type Point struct {
	Position    int     `xml:"position"`
	PriceAmount float64 `xml:"price.amount"`
}

// DecodePublicationMarketDocument decodes an ENTSO-E XML price document
func DecodePublicationMarketDocument(r io.Reader) (*PublicationMarketDocument, error) {
	var doc PublicationMarketDocument
	if err := xml.NewDecoder(r).Decode(&doc); err != nil {
		return nil, fmt.Errorf("error parsing XML: %v", err)
	}
	return &doc, nil
}

// PriceAt returns the price in effect at the given instant, searching all
// time series. Sparse A03 curves are handled by carrying the last published
// point forward. The price unit is whatever the document carries, normally
// EUR/MWh.
func (pmd *PublicationMarketDocument) PriceAt(t time.Time) (float64, bool) {
	for i := range pmd.TimeSeries {
		if price, ok := pmd.TimeSeries[i].Period.priceAt(t); ok {
			return price, true
		}
	}
	return 0, false
}

func (p *Period) priceAt(t time.Time) (float64, bool) {
	if p.Resolution <= 0 || t.Before(p.TimeInterval.Start) || !t.Before(p.TimeInterval.End) {
		return 0, false
	}
	position := int(t.Sub(p.TimeInterval.Start)/p.Resolution) + 1

	var last *Point
	for i := range p.Points {
		pt := &p.Points[i]
		if pt.Position > position {
			break
		}
		last = pt
	}
	if last == nil {
		return 0, false
	}
	return last.PriceAmount, true
}

// StepPrices samples the document at T step boundaries starting at dayStart,
// converting EUR/MWh to EUR/kWh. The second return value reports whether
// every step had a price; incomplete days are meant to be skipped by the
// caller, not padded.
func (pmd *PublicationMarketDocument) StepPrices(dayStart time.Time, T int, dtHours float64) ([]float64, bool) {
	prices := make([]float64, T)
	complete := true
	for i := 0; i < T; i++ {
		at := dayStart.Add(time.Duration(float64(i) * dtHours * float64(time.Hour)))
		v, ok := pmd.PriceAt(at)
		if !ok {
			complete = false
			continue
		}
		prices[i] = v / 1000.0
	}
	return prices, complete
}
