package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/jdboer/hems/entsoe"
	"github.com/jdboer/hems/meteo"
	"github.com/jdboer/hems/utils"
)

// DayInputs bundles the external data one day of the rolling loop consumes.
type DayInputs struct {
	Date    time.Time
	Prices  []float64 // spot price [EUR/kWh], length T
	Weather *meteo.DayWeather
}

// fetchInputs retrieves prices and weather for the configured date range.
// The two sources are independent, so they are fetched concurrently once,
// ahead of the solve loop. Days whose price series is incomplete are
// excluded from the returned slice, not padded.
func (s *Scheduler) fetchInputs(ctx context.Context) ([]DayInputs, error) {
	start, end, err := s.config.DateRange()
	if err != nil {
		return nil, err
	}
	numDays := utils.DaysBetween(start, end)
	T := s.config.StepsPerDay()

	var (
		wg         sync.WaitGroup
		prices     [][]float64 // nil entry = incomplete day
		pricesErr  error
		weather    *meteo.ArchiveResponse
		weatherErr error
	)

	wg.Add(2)
	go func() {
		defer wg.Done()
		prices, pricesErr = s.fetchPrices(ctx, start, numDays, T)
	}()
	go func() {
		defer wg.Done()
		weather, weatherErr = s.fetchWeather(ctx, start, end)
	}()
	wg.Wait()

	if pricesErr != nil {
		return nil, fmt.Errorf("price fetch failed: %w", pricesErr)
	}
	if weatherErr != nil {
		return nil, fmt.Errorf("weather fetch failed: %w", weatherErr)
	}

	var inputs []DayInputs
	for d := 0; d < numDays; d++ {
		day := start.AddDate(0, 0, d)
		if prices[d] == nil {
			s.logger.Printf("Excluding %s: incomplete price series", day.Format("2006-01-02"))
			continue
		}
		w, err := weather.Day(d)
		if err != nil {
			s.logger.Printf("Excluding %s: no weather data (%v)", day.Format("2006-01-02"), err)
			continue
		}
		inputs = append(inputs, DayInputs{Date: day, Prices: prices[d], Weather: w})
	}
	return inputs, nil
}

// fetchPrices assembles per-day step prices, consulting the Postgres cache
// first when configured and falling back to one ENTSO-E request spanning the
// remaining days. Freshly fetched complete days are written back to the
// cache.
func (s *Scheduler) fetchPrices(ctx context.Context, start time.Time, numDays, T int) ([][]float64, error) {
	prices := make([][]float64, numDays)
	missing := make([]int, 0, numDays)

	for d := 0; d < numDays; d++ {
		day := start.AddDate(0, 0, d)
		if s.store != nil {
			cached, complete, err := s.store.Load(ctx, day, T)
			if err != nil {
				s.logger.Printf("Price cache read failed for %s: %v", day.Format("2006-01-02"), err)
			} else if complete {
				prices[d] = cached
				continue
			}
		}
		missing = append(missing, d)
	}
	if len(missing) == 0 {
		return prices, nil
	}

	fetchCtx, cancel := context.WithTimeout(ctx, s.config.APITimeout())
	defer cancel()

	client := entsoe.NewAPIClient()
	doc, err := client.FetchDayAhead(fetchCtx, s.config.SecurityToken, s.config.BiddingZone,
		start.AddDate(0, 0, missing[0]), start.AddDate(0, 0, missing[len(missing)-1]+1))
	if err != nil {
		return nil, err
	}

	dt := s.config.DT()
	for _, d := range missing {
		day := start.AddDate(0, 0, d)
		stepPrices, complete := doc.StepPrices(day, T, dt)
		if !complete {
			continue
		}
		prices[d] = stepPrices
		if s.store != nil {
			if err := s.store.Save(ctx, day, stepPrices); err != nil {
				s.logger.Printf("Price cache write failed for %s: %v", day.Format("2006-01-02"), err)
			}
		}
	}
	return prices, nil
}

// fetchWeather retrieves the hourly archive for the whole range in one call.
func (s *Scheduler) fetchWeather(ctx context.Context, start, end time.Time) (*meteo.ArchiveResponse, error) {
	fetchCtx, cancel := context.WithTimeout(ctx, s.config.APITimeout())
	defer cancel()

	client := meteo.NewClient()
	return client.GetArchive(fetchCtx, meteo.QueryParams{
		Location: meteo.Location{
			Latitude:  s.config.Latitude,
			Longitude: s.config.Longitude,
		},
		StartDate: start,
		EndDate:   end,
		Timezone:  s.config.Timezone,
	})
}
