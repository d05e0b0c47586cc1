package models

import (
	"fmt"
	"strings"
	"time"
)

// Icon names rendered next to the wind details in the panel.
const (
	SunIcon  = "weather-clear-symbolic"
	MoonIcon = "weather-clear-night-symbolic"
)

// Location is the observed position. Both coordinates are finite.
type Location struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// Observation is the latest wind snapshot from the station. The zero value is the
// "no data" observation shown when a fetch fails.
type Observation struct {
	WindDir     string `json:"windDir"`
	WindSpeedKt *int   `json:"windSpeedKt,omitempty"`
	GustKt      *int   `json:"gustKt,omitempty"`
}

// IsEmpty reports whether o carries no data at all.
func (o Observation) IsEmpty() bool {
	return o.WindDir == "" && o.WindSpeedKt == nil && o.GustKt == nil
}

// Equal compares observations by value rather than by pointer identity.
func (o Observation) Equal(other Observation) bool {
	return o.WindDir == other.WindDir &&
		intPtrEqual(o.WindSpeedKt, other.WindSpeedKt) &&
		intPtrEqual(o.GustKt, other.GustKt)
}

func intPtrEqual(a, b *int) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

// WindDetails formats o for the panel, e.g. "N 12kt gust 18kt".
// A blank direction is shown as "-".
func (o Observation) WindDetails() string {
	direction := o.WindDir
	if strings.TrimSpace(direction) == "" {
		direction = "-"
	}

	switch {
	case o.WindSpeedKt != nil && o.GustKt != nil:
		return fmt.Sprintf("%s %dkt gust %dkt", direction, *o.WindSpeedKt, *o.GustKt)
	case o.WindSpeedKt != nil:
		return fmt.Sprintf("%s %dkt", direction, *o.WindSpeedKt)
	case o.GustKt != nil:
		return fmt.Sprintf("%s gust %dkt", direction, *o.GustKt)
	default:
		return direction
	}
}

// IconFor picks the sun icon between 06:00 and 17:59 local time, the moon otherwise.
func IconFor(t time.Time) string {
	if h := t.Hour(); h >= 6 && h < 18 {
		return SunIcon
	}
	return MoonIcon
}

// Knots returns a pointer to v, for building observations.
func Knots(v int) *int {
	return &v
}
