package weather

import (
	"math"
	"time"
)

// TemperatureRange is a day's minimum and maximum in whole degrees Celsius.
type TemperatureRange struct {
	Min int `json:"min"`
	Max int `json:"max"`
}

// Report is the rounded, display-ready weather for a place or a period.
type Report struct {
	Temperature   int               `json:"temperature"`
	FeelsLike     *int              `json:"feels_like,omitempty"`
	Condition     Condition         `json:"condition"`
	Range         *TemperatureRange `json:"range,omitempty"`
	ConditionName string            `json:"condition_name"`
}

// ConditionCode is one entry of a provider's condition list.
type ConditionCode struct {
	ID          int
	Description string
}

// Snapshot is one 3-hour observation from a forecast series.
type Snapshot struct {
	Time        time.Time
	Temperature float64
	TempMin     float64
	TempMax     float64
	Conditions  []ConditionCode
}

type HourlyForecast struct {
	Time   time.Time `json:"time"`
	Report Report    `json:"report"`
}

type DailyForecast struct {
	Date   time.Time `json:"date"`
	Report Report    `json:"report"`
}

// City is the metadata attached to a forecast series.
type City struct {
	Name     string
	Sunrise  time.Time
	Sunset   time.Time
	Location *time.Location
}

type Forecast struct {
	City    City
	Current Report
	Hourly  []HourlyForecast
	Daily   []DailyForecast
}

// Round rounds half away from zero to a whole degree.
func Round(v float64) int {
	return int(math.Round(v))
}
