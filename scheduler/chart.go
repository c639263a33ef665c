package scheduler

import (
	"bytes"
	"fmt"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"
)

// RenderCharts renders a finished run as a self-contained HTML page of line
// charts: spot prices, grid exchange, storage state and PV generation, with
// all days concatenated on one time axis.
func RenderCharts(r *RunResult, dtHours float64) ([]byte, error) {
	if len(r.Days) == 0 {
		return nil, fmt.Errorf("no days to render")
	}

	xAxis := make([]string, 0, len(r.Days)*len(r.Days[0].Prices))
	for _, day := range r.Days {
		label := day.Date.Format("02 Jan")
		for t := range day.Prices {
			h := float64(t) * dtHours
			xAxis = append(xAxis, fmt.Sprintf("%s %02d:%02d", label, int(h), int(h*60)%60))
		}
	}

	priceChart := charts.NewLine()
	priceChart.SetGlobalOptions(
		charts.WithTitleOpts(opts.Title{
			Title: "Day-ahead price",
		}))
	var prices []opts.LineData
	for _, day := range r.Days {
		for _, v := range day.Prices {
			prices = append(prices, opts.LineData{Value: v})
		}
	}
	priceChart.SetXAxis(xAxis).
		AddSeries("EUR/kWh", prices)

	gridChart := charts.NewLine()
	gridChart.SetGlobalOptions(
		charts.WithTitleOpts(opts.Title{
			Title: "Grid exchange",
		}))
	var imp, exp []opts.LineData
	for _, day := range r.Days {
		for t := range day.Import {
			imp = append(imp, opts.LineData{Value: day.Import[t]})
			exp = append(exp, opts.LineData{Value: -day.Export[t]})
		}
	}
	gridChart.SetXAxis(xAxis).
		AddSeries("Import kW", imp).
		AddSeries("Export kW", exp)

	page := components.NewPage()
	page.SetLayout(components.PageFlexLayout)
	page.AddCharts(priceChart, gridChart)

	if chart := storageChart(r); chart != nil {
		page.AddCharts(chart)
	}
	if chart := solarChart(r, xAxis); chart != nil {
		page.AddCharts(chart)
	}

	var buf bytes.Buffer
	if err := page.Render(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// storageChart plots every storage unit's state of energy. The per-day
// trajectories have T+1 points; the duplicate day-boundary point is skipped
// so the series lines up with the step axis.
func storageChart(r *RunResult) *charts.Line {
	series := map[string][]opts.LineData{}
	order := []string{}
	for _, day := range r.Days {
		var units []struct {
			name   string
			energy []float64
		}
		if day.Battery != nil {
			units = append(units, struct {
				name   string
				energy []float64
			}{day.Battery.Name, day.Battery.Energy})
		}
		for _, ev := range day.EVs {
			units = append(units, struct {
				name   string
				energy []float64
			}{ev.Name, ev.Energy})
		}
		for _, u := range units {
			if _, ok := series[u.name]; !ok {
				order = append(order, u.name)
			}
			for t := 0; t < len(u.energy)-1; t++ {
				series[u.name] = append(series[u.name], opts.LineData{Value: u.energy[t]})
			}
		}
	}
	if len(order) == 0 {
		return nil
	}

	n := 0
	for _, day := range r.Days {
		n += len(day.Prices)
	}
	xAxis := make([]string, 0, n)
	for _, day := range r.Days {
		label := day.Date.Format("02 Jan")
		for t := range day.Prices {
			xAxis = append(xAxis, fmt.Sprintf("%s #%d", label, t))
		}
	}

	chart := charts.NewLine()
	chart.SetGlobalOptions(
		charts.WithTitleOpts(opts.Title{
			Title: "Storage state of energy",
		}))
	chart.SetXAxis(xAxis)
	for _, name := range order {
		chart.AddSeries(name+" kWh", series[name])
	}
	return chart
}

func solarChart(r *RunResult, xAxis []string) *charts.Line {
	series := map[string][]opts.LineData{}
	order := []string{}
	for _, day := range r.Days {
		for _, pv := range day.PVs {
			if _, ok := series[pv.Name]; !ok {
				order = append(order, pv.Name)
			}
			for _, v := range pv.Power {
				series[pv.Name] = append(series[pv.Name], opts.LineData{Value: v})
			}
		}
	}
	if len(order) == 0 {
		return nil
	}

	chart := charts.NewLine()
	chart.SetGlobalOptions(
		charts.WithTitleOpts(opts.Title{
			Title: "PV generation",
		}))
	chart.SetXAxis(xAxis)
	for _, name := range order {
		chart.AddSeries(name+" kW", series[name])
	}
	return chart
}
