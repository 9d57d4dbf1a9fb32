package weather

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSource struct {
	city         City
	snapshots    []Snapshot
	current      Report
	seriesErr    error
	currentErr   error
	currentCalls int
}

func (f *fakeSource) ForecastSeries(ctx context.Context, lat, lon float64) (City, []Snapshot, error) {
	return f.city, f.snapshots, f.seriesErr
}

func (f *fakeSource) CurrentReport(ctx context.Context, lat, lon float64) (Report, error) {
	f.currentCalls++
	return f.current, f.currentErr
}

func TestForecastService_LoadFetchesCurrentWhenMissing(t *testing.T) {
	src := &fakeSource{
		city:      City{Name: "Lyon", Location: time.FixedZone("CEST", 2*3600)},
		snapshots: []Snapshot{snap(baseTime, 25, 800, "clear sky")},
		current:   Report{Temperature: 24, Condition: ConditionClear, ConditionName: "clear sky"},
	}
	svc := NewForecastService(src, 5, nil)

	fc, err := svc.Load(context.Background(), 45.76, 4.83, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, src.currentCalls)
	assert.Equal(t, "Lyon", fc.City.Name)
	assert.Equal(t, 24, fc.Current.Temperature)
	assert.Len(t, fc.Hourly, 1)
	assert.Len(t, fc.Daily, 1)
}

func TestForecastService_LoadReusesProvidedCurrent(t *testing.T) {
	src := &fakeSource{snapshots: []Snapshot{snap(baseTime, 25, 800, "clear sky")}}
	svc := NewForecastService(src, 5, time.UTC)

	current := Report{Temperature: 30, Condition: ConditionClouds}
	fc, err := svc.Load(context.Background(), 0, 0, &current)
	require.NoError(t, err)
	assert.Equal(t, 0, src.currentCalls)
	assert.Equal(t, current, fc.Current)
}

func TestForecastService_LoadPropagatesErrors(t *testing.T) {
	boom := errors.New("boom")

	svc := NewForecastService(&fakeSource{seriesErr: boom}, 5, nil)
	_, err := svc.Load(context.Background(), 0, 0, nil)
	assert.ErrorIs(t, err, boom)

	svc = NewForecastService(&fakeSource{currentErr: boom}, 5, nil)
	_, err = svc.Load(context.Background(), 0, 0, nil)
	assert.ErrorIs(t, err, boom)
}
