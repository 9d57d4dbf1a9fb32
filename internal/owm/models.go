package owm

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"weatherfav/internal/weather"
)

// Code is the "cod" field: a number on /weather, a string on /forecast.
type Code string

func (c *Code) UnmarshalJSON(data []byte) error {
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*c = Code(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("cod: %w", err)
	}
	*c = Code(n.String())
	return nil
}

type Coordinates struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

type ConditionInfo struct {
	ID          int    `json:"id"`
	Main        string `json:"main"`
	Description string `json:"description"`
	Icon        string `json:"icon"`
}

type MainInfo struct {
	Temp      float64 `json:"temp"`
	FeelsLike float64 `json:"feels_like"`
	TempMin   float64 `json:"temp_min"`
	TempMax   float64 `json:"temp_max"`
	Pressure  int     `json:"pressure"`
	SeaLevel  int     `json:"sea_level"`
	GrndLevel int     `json:"grnd_level"`
	Humidity  int     `json:"humidity"`
	TempKf    float64 `json:"temp_kf"`
}

type Clouds struct {
	All int `json:"all"`
}

type Wind struct {
	Speed float64  `json:"speed"`
	Deg   int      `json:"deg"`
	Gust  *float64 `json:"gust,omitempty"`
}

type CurrentSys struct {
	Country string `json:"country"`
	Sunrise int64  `json:"sunrise"`
	Sunset  int64  `json:"sunset"`
}

// CurrentWeather is the /weather payload.
type CurrentWeather struct {
	Cod        Code            `json:"cod"`
	Dt         int64           `json:"dt"`
	Coord      Coordinates     `json:"coord"`
	Conditions []ConditionInfo `json:"weather"`
	Main       *MainInfo       `json:"main"`
	Sys        CurrentSys      `json:"sys"`
	Timezone   int             `json:"timezone"`
	Name       string          `json:"name"`
}

func (w *CurrentWeather) validate() error {
	if w.Main == nil {
		return fmt.Errorf("%w: main", errMissingField)
	}
	if w.Conditions == nil {
		return fmt.Errorf("%w: weather", errMissingField)
	}
	return nil
}

// Report converts the payload into a display report. ok is false when the
// payload has no condition entry, in which case callers keep what they had.
func (w *CurrentWeather) Report() (weather.Report, bool) {
	if len(w.Conditions) == 0 || w.Main == nil {
		return weather.Report{}, false
	}
	first := w.Conditions[0]
	feels := weather.Round(w.Main.FeelsLike)
	return weather.Report{
		Temperature: weather.Round(w.Main.Temp),
		FeelsLike:   &feels,
		Condition:   weather.Classify(first.ID),
		Range: &weather.TemperatureRange{
			Min: weather.Round(w.Main.TempMin),
			Max: weather.Round(w.Main.TempMax),
		},
		ConditionName: first.Description,
	}, true
}

type SnapshotSys struct {
	PartOfDay string `json:"pod"`
}

// ForecastSnapshot is one 3-hour entry of the /forecast list.
type ForecastSnapshot struct {
	Dt         int64           `json:"dt"`
	Main       MainInfo        `json:"main"`
	Conditions []ConditionInfo `json:"weather"`
	Clouds     Clouds          `json:"clouds"`
	Wind       Wind            `json:"wind"`
	Visibility int             `json:"visibility"`
	Pop        float64         `json:"pop"`
	Sys        SnapshotSys     `json:"sys"`
	DtTxt      string          `json:"dt_txt"`
}

type City struct {
	ID       int         `json:"id"`
	Name     string      `json:"name"`
	Coord    Coordinates `json:"coord"`
	Country  string      `json:"country"`
	Timezone *int        `json:"timezone,omitempty"`
	Sunrise  int64       `json:"sunrise"`
	Sunset   int64       `json:"sunset"`
}

// Forecast is the /forecast payload.
type Forecast struct {
	Cod  Code               `json:"cod"`
	List []ForecastSnapshot `json:"list"`
	City *City              `json:"city"`
}

func (f *Forecast) validate() error {
	if f.List == nil {
		return fmt.Errorf("%w: list", errMissingField)
	}
	if f.City == nil {
		return fmt.Errorf("%w: city", errMissingField)
	}
	return nil
}

// Snapshots converts the list into aggregator input.
func (f *Forecast) Snapshots() []weather.Snapshot {
	out := make([]weather.Snapshot, 0, len(f.List))
	for _, s := range f.List {
		codes := make([]weather.ConditionCode, 0, len(s.Conditions))
		for _, c := range s.Conditions {
			codes = append(codes, weather.ConditionCode{ID: c.ID, Description: c.Description})
		}
		out = append(out, weather.Snapshot{
			Time:        time.Unix(s.Dt, 0).UTC(),
			Temperature: s.Main.Temp,
			TempMin:     s.Main.TempMin,
			TempMax:     s.Main.TempMax,
			Conditions:  codes,
		})
	}
	return out
}

// CityInfo converts the city block. The location is nil when the API sent no offset.
func (f *Forecast) CityInfo() weather.City {
	if f.City == nil {
		return weather.City{}
	}
	c := weather.City{
		Name:    f.City.Name,
		Sunrise: time.Unix(f.City.Sunrise, 0).UTC(),
		Sunset:  time.Unix(f.City.Sunset, 0).UTC(),
	}
	if f.City.Timezone != nil {
		c.Location = time.FixedZone(offsetName(*f.City.Timezone), *f.City.Timezone)
	}
	return c
}

func offsetName(seconds int) string {
	sign := "+"
	if seconds < 0 {
		sign = "-"
		seconds = -seconds
	}
	h, m := seconds/3600, (seconds%3600)/60
	if m == 0 {
		return "UTC" + sign + strconv.Itoa(h)
	}
	return fmt.Sprintf("UTC%s%d:%02d", sign, h, m)
}
