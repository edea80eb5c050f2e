// Package util provides shared helpers: unit conversion for upstream
// responses and display formatting for temperatures, wind, times and ages.
package util

import (
	"fmt"
	"math"
	"strings"
	"time"
	"unicode"
)

// ─── Unit Conversion ──────────────────────────────────────────────────────────

// FahrenheitToCelsius converts °F to °C.
func FahrenheitToCelsius(f float64) float64 {
	return (f - 32) * 5 / 9
}

// KelvinToCelsius converts K to °C.
func KelvinToCelsius(k float64) float64 {
	return k - 273.15
}

// MphToMps converts miles per hour to metres per second.
func MphToMps(mph float64) float64 {
	return mph * 0.44704
}

// ToCelsius normalises a temperature reported in the given unit system
// ("metric", "imperial" or "standard") to Celsius.
func ToCelsius(v float64, units string) float64 {
	switch units {
	case "imperial":
		return FahrenheitToCelsius(v)
	case "standard":
		return KelvinToCelsius(v)
	default:
		return v
	}
}

// WindToMps normalises a wind speed to m/s. Only imperial reports mph.
func WindToMps(v float64, units string) float64 {
	if units == "imperial" {
		return MphToMps(v)
	}
	return v
}

// ─── Display Formatting ───────────────────────────────────────────────────────

// FormatTemp formats a Celsius temperature rounded to whole degrees.
// Negative zero is printed as 0.
func FormatTemp(c float64) string {
	r := math.Round(c)
	if r == 0 {
		r = 0
	}
	return fmt.Sprintf("%.0f°C", r)
}

// FormatWind formats an optional wind speed, or "n/a" when absent.
func FormatWind(mps *float64) string {
	if mps == nil {
		return "n/a"
	}
	return fmt.Sprintf("%.1f m/s", *mps)
}

// FormatClock formats t as HH:MM in the location's own zone, given its
// offset from UTC in seconds.
func FormatClock(t time.Time, offsetSec int) string {
	if t.IsZero() {
		return "--:--"
	}
	return t.In(time.FixedZone("", offsetSec)).Format("15:04")
}

// FormatAge describes how long ago t was relative to now, coarsely.
func FormatAge(now, t time.Time) string {
	d := now.Sub(t)
	switch {
	case d < time.Minute:
		return "just now"
	case d < time.Hour:
		return fmt.Sprintf("%dm ago", int(d/time.Minute))
	case d < 24*time.Hour:
		return fmt.Sprintf("%dh ago", int(d/time.Hour))
	default:
		return fmt.Sprintf("%dd ago", int(d/(24*time.Hour)))
	}
}

// Title upper-cases the first letter of every space-separated word.
func Title(s string) string {
	words := strings.Fields(s)
	for i, w := range words {
		r := []rune(w)
		r[0] = unicode.ToUpper(r[0])
		words[i] = string(r)
	}
	return strings.Join(words, " ")
}

// Truncate shortens s to at most n runes, appending "..." when cut.
func Truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	if n <= 3 {
		return string(r[:n])
	}
	return string(r[:n-3]) + "..."
}
