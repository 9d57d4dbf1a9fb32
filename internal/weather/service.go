package weather

import (
	"context"
	"fmt"
	"time"
)

// ForecastSource is the remote side of a forecast load.
type ForecastSource interface {
	ForecastSeries(ctx context.Context, lat, lon float64) (City, []Snapshot, error)
	CurrentReport(ctx context.Context, lat, lon float64) (Report, error)
}

// ForecastService loads a location's forecast series and aggregates it.
// Nothing is cached: every call hits the source.
type ForecastService struct {
	source   ForecastSource
	dayCount int
	fallback *time.Location
}

// NewForecastService builds a service keeping dayCount daily entries. Day
// boundaries use the city's own offset, or fallback when the source has none.
func NewForecastService(source ForecastSource, dayCount int, fallback *time.Location) *ForecastService {
	if fallback == nil {
		fallback = time.UTC
	}
	return &ForecastService{
		source:   source,
		dayCount: dayCount,
		fallback: fallback,
	}
}

// Load returns the forecast for lat/lon. When current is nil the current
// conditions are fetched as well.
func (s *ForecastService) Load(ctx context.Context, lat, lon float64, current *Report) (*Forecast, error) {
	city, snapshots, err := s.source.ForecastSeries(ctx, lat, lon)
	if err != nil {
		return nil, fmt.Errorf("forecast series: %w", err)
	}

	var report Report
	if current != nil {
		report = *current
	} else {
		report, err = s.source.CurrentReport(ctx, lat, lon)
		if err != nil {
			return nil, fmt.Errorf("current weather: %w", err)
		}
	}

	loc := city.Location
	if loc == nil {
		loc = s.fallback
	}
	hourly, daily := Aggregate(snapshots, s.dayCount, loc)

	return &Forecast{
		City:    city,
		Current: report,
		Hourly:  hourly,
		Daily:   daily,
	}, nil
}
