// Package favorites keeps the saved-locations collection in sync with local
// storage and the weather API.
package favorites

import (
	"errors"

	"github.com/google/uuid"

	"weatherfav/internal/owm"
	"weatherfav/internal/weather"
)

var (
	// ErrMissingData rejects a create whose record has no weather or range.
	ErrMissingData = errors.New("favorite is missing weather data")
	// ErrNotFound is returned by repositories for an unknown identifier.
	ErrNotFound = errors.New("favorite not found")
	// ErrDuplicate is returned by repositories when the identifier is taken.
	ErrDuplicate = errors.New("favorite already exists")
)

// Record is one saved (or previewed) location.
type Record struct {
	ID                string          `json:"id"`
	Latitude          float64         `json:"latitude"`
	Longitude         float64         `json:"longitude"`
	TimeZone          string          `json:"time_zone"`
	Name              string          `json:"name"`
	SortOrder         *int            `json:"sort_order,omitempty"`
	IsCurrentLocation bool            `json:"is_current_location"`
	IsFavorite        bool            `json:"is_favorite"`
	Weather           *weather.Report `json:"weather,omitempty"`
}

// NewID returns a fresh identifier for a record that has none.
func NewID() string {
	return uuid.NewString()
}

// Clone copies r so the result shares no pointers with it.
func (r Record) Clone() Record {
	out := r
	if r.SortOrder != nil {
		v := *r.SortOrder
		out.SortOrder = &v
	}
	if r.Weather != nil {
		w := *r.Weather
		if w.FeelsLike != nil {
			v := *w.FeelsLike
			w.FeelsLike = &v
		}
		if w.Range != nil {
			rng := *w.Range
			w.Range = &rng
		}
		out.Weather = &w
	}
	return out
}

// ApplyWeather replaces the report from a current-weather payload. A payload
// without a condition leaves the previous report in place and returns false.
func (r *Record) ApplyWeather(cw *owm.CurrentWeather) bool {
	if cw == nil {
		return false
	}
	report, ok := cw.Report()
	if !ok {
		return false
	}
	r.Weather = &report
	return true
}

func (r Record) complete() bool {
	return r.Weather != nil && r.Weather.Range != nil
}

// ChangeKind tags a Change.
type ChangeKind int

const (
	Added ChangeKind = iota + 1
	Removed
)

func (k ChangeKind) String() string {
	switch k {
	case Added:
		return "added"
	case Removed:
		return "removed"
	}
	return "unknown"
}

// MarshalText encodes the kind by name.
func (k ChangeKind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

type Change struct {
	Kind   ChangeKind `json:"kind"`
	Record Record     `json:"record"`
}
