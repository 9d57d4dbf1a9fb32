package weather

import (
	"encoding/json"
	"fmt"
)

// Condition is a semantic weather condition derived from an OpenWeatherMap code.
// See https://openweathermap.org/weather-conditions.
type Condition int

const (
	ConditionUnknown Condition = iota
	ConditionClear
	ConditionClouds
	ConditionThunderstorm
	ConditionDrizzle
	ConditionRain
	ConditionSnow
	ConditionAtmosphere
)

var conditionNames = map[Condition]string{
	ConditionUnknown:      "unknown",
	ConditionClear:        "clear",
	ConditionClouds:       "clouds",
	ConditionThunderstorm: "thunderstorm",
	ConditionDrizzle:      "drizzle",
	ConditionRain:         "rain",
	ConditionSnow:         "snow",
	ConditionAtmosphere:   "atmosphere",
}

// Severity orders conditions for the daily "worst condition wins" rule.
// There are no ties.
func (c Condition) Severity() int {
	switch c {
	case ConditionClear:
		return 1
	case ConditionClouds:
		return 2
	case ConditionRain:
		return 3
	case ConditionSnow:
		return 4
	case ConditionThunderstorm:
		return 5
	case ConditionDrizzle:
		return 6
	case ConditionAtmosphere:
		return 7
	default:
		return 0
	}
}

func (c Condition) String() string {
	if name, ok := conditionNames[c]; ok {
		return name
	}
	return conditionNames[ConditionUnknown]
}

// ParseCondition is the inverse of String. Unrecognised names map to unknown.
func ParseCondition(name string) Condition {
	for c, n := range conditionNames {
		if n == name {
			return c
		}
	}
	return ConditionUnknown
}

func (c Condition) MarshalJSON() ([]byte, error) {
	return json.Marshal(c.String())
}

func (c *Condition) UnmarshalJSON(data []byte) error {
	var name string
	if err := json.Unmarshal(data, &name); err != nil {
		return fmt.Errorf("condition: %w", err)
	}
	*c = ParseCondition(name)
	return nil
}

const (
	minConditionCode = 200
	maxConditionCode = 899
)

type codeRule struct {
	lo, hi    int
	condition Condition
}

// Evaluated in order; first match wins. 400-499 is not assigned by the provider.
var codeRules = []codeRule{
	{200, 299, ConditionThunderstorm},
	{300, 399, ConditionDrizzle},
	{500, 599, ConditionRain},
	{600, 699, ConditionSnow},
	{700, 799, ConditionAtmosphere},
	{800, 800, ConditionClear},
	{801, 899, ConditionClouds},
}

// Classify maps a provider weather code to a Condition.
func Classify(code int) Condition {
	if code < minConditionCode || code > maxConditionCode {
		return ConditionUnknown
	}
	for _, r := range codeRules {
		if code >= r.lo && code <= r.hi {
			return r.condition
		}
	}
	return ConditionUnknown
}
