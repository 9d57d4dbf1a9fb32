package weather

import (
	"slices"
	"time"

	"weatherfav/internal/logger"
)

// DefaultDayCount is the number of days kept by Aggregate when none is given.
const DefaultDayCount = 5

const missingConditionName = "-"

// dailyAccumulator folds one calendar day of snapshots. The day's condition is
// the most severe one observed; its name comes from the first snapshot that
// raised it.
type dailyAccumulator struct {
	sum       float64
	count     int
	worst     Condition
	worstName string
	min, max  *float64
}

func (a *dailyAccumulator) add(s Snapshot) {
	a.sum += s.Temperature
	a.count++

	if a.min == nil || s.TempMin < *a.min {
		v := s.TempMin
		a.min = &v
	}
	if a.max == nil || s.TempMax > *a.max {
		v := s.TempMax
		a.max = &v
	}

	first := s.Conditions[0]
	if c := Classify(first.ID); c.Severity() > a.worst.Severity() {
		a.worst = c
		a.worstName = first.Description
	}
}

func (a *dailyAccumulator) report() Report {
	r := Report{
		Condition:     a.worst,
		ConditionName: a.worstName,
	}
	if a.count > 0 {
		r.Temperature = Round(a.sum / float64(a.count))
	}
	if r.ConditionName == "" {
		r.ConditionName = missingConditionName
	}
	if a.min != nil && a.max != nil {
		r.Range = &TemperatureRange{Min: Round(*a.min), Max: Round(*a.max)}
	}
	return r
}

// Aggregate turns an unordered forecast series into an hourly series and at
// most dayCount daily summaries, ordered by day. Day boundaries are computed in
// loc (UTC when nil). Snapshots without a condition code are skipped.
func Aggregate(snapshots []Snapshot, dayCount int, loc *time.Location) ([]HourlyForecast, []DailyForecast) {
	hourly := []HourlyForecast{}
	daily := []DailyForecast{}
	if len(snapshots) == 0 {
		return hourly, daily
	}
	if dayCount <= 0 {
		dayCount = DefaultDayCount
	}
	if loc == nil {
		loc = time.UTC
	}

	log := logger.GetLogger().Named("aggregate")
	buckets := make(map[time.Time]*dailyAccumulator)

	for _, s := range snapshots {
		// A day made only of condition-less snapshots gets no daily entry and
		// does not count against dayCount.
		if len(s.Conditions) == 0 {
			log.Debugw("skipping snapshot without condition code", "time", s.Time)
			continue
		}

		first := s.Conditions[0]
		hourly = append(hourly, HourlyForecast{
			Time: s.Time,
			Report: Report{
				Temperature:   Round(s.Temperature),
				Condition:     Classify(first.ID),
				ConditionName: first.Description,
			},
		})

		day := startOfDay(s.Time, loc)
		acc, ok := buckets[day]
		if !ok {
			acc = &dailyAccumulator{}
			buckets[day] = acc
		}
		acc.add(s)
	}

	days := make([]time.Time, 0, len(buckets))
	for d := range buckets {
		days = append(days, d)
	}
	slices.SortFunc(days, func(a, b time.Time) int {
		return a.Compare(b)
	})
	if len(days) > dayCount {
		days = days[:dayCount]
	}

	for _, d := range days {
		daily = append(daily, DailyForecast{Date: d, Report: buckets[d].report()})
	}
	return hourly, daily
}

func startOfDay(t time.Time, loc *time.Location) time.Time {
	lt := t.In(loc)
	return time.Date(lt.Year(), lt.Month(), lt.Day(), 0, 0, 0, 0, loc)
}
