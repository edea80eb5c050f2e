// Package model defines the canonical data types used throughout nimbus.
// These types are the single source of truth for locations, weather
// snapshots, the published view state, and the result envelope that every
// command renders.
package model

import (
	"fmt"
	"strings"
	"time"
)

// ─── Locations ────────────────────────────────────────────────────────────────

// Coordinate is a latitude/longitude pair in decimal degrees.
type Coordinate struct {
	Latitude  float64 `json:"lat"`
	Longitude float64 `json:"lon"`
}

func (c Coordinate) String() string {
	return fmt.Sprintf("%.4f, %.4f", c.Latitude, c.Longitude)
}

// Place is a fixed named location with immutable coordinates.
type Place struct {
	Name       string     `json:"name"`
	Coordinate Coordinate `json:"coord"`
}

// Selector identifies which location's weather is being viewed.
// The set is closed: the device's current position plus three named places.
type Selector int

const (
	CurrentPosition Selector = iota
	London
	Montevideo
	BuenosAires
)

// AllSelectors lists every selector in display order.
var AllSelectors = []Selector{CurrentPosition, London, Montevideo, BuenosAires}

type selectorInfo struct {
	key   string
	name  string
	flag  string
	place *Place
}

var selectorTable = map[Selector]selectorInfo{
	CurrentPosition: {key: "current", name: "Current Location", flag: "📍"},
	London: {key: "london", name: "London", flag: "🇬🇧",
		place: &Place{Name: "London", Coordinate: Coordinate{Latitude: 51.5074, Longitude: -0.1278}}},
	Montevideo: {key: "montevideo", name: "Montevideo", flag: "🇺🇾",
		place: &Place{Name: "Montevideo", Coordinate: Coordinate{Latitude: -34.9011, Longitude: -56.1645}}},
	BuenosAires: {key: "buenosAires", name: "Buenos Aires", flag: "🇦🇷",
		place: &Place{Name: "Buenos Aires", Coordinate: Coordinate{Latitude: -34.6037, Longitude: -58.3816}}},
}

// Key returns the stable string used to persist the selector.
func (s Selector) Key() string {
	if info, ok := selectorTable[s]; ok {
		return info.key
	}
	return ""
}

// DisplayName returns the human-readable name of the selector.
func (s Selector) DisplayName() string {
	if info, ok := selectorTable[s]; ok {
		return info.name
	}
	return fmt.Sprintf("Selector(%d)", int(s))
}

// Flag returns the emoji shown next to the selector in lists.
func (s Selector) Flag() string {
	return selectorTable[s].flag
}

func (s Selector) String() string { return s.Key() }

// Place returns the named place behind the selector.
// The current position has no place of its own and returns false.
func (s Selector) Place() (Place, bool) {
	info, ok := selectorTable[s]
	if !ok || info.place == nil {
		return Place{}, false
	}
	return *info.place, true
}

// ParseSelector maps a persisted key (or a display name, case-insensitive)
// back to its selector.
func ParseSelector(key string) (Selector, error) {
	for _, s := range AllSelectors {
		info := selectorTable[s]
		if equalFold(key, info.key) || equalFold(key, info.name) {
			return s, nil
		}
	}
	return CurrentPosition, fmt.Errorf("unknown location %q", key)
}

var selectorSeparators = strings.NewReplacer(" ", "", "-", "", "_", "")

// equalFold compares case-insensitively, ignoring spaces, dashes and
// underscores ("buenos-aires" == "BuenosAires").
func equalFold(a, b string) bool {
	return strings.EqualFold(selectorSeparators.Replace(a), selectorSeparators.Replace(b))
}

// AuthorizationStatus is the location capability's permission state.
type AuthorizationStatus int

const (
	AuthorizationUndetermined AuthorizationStatus = iota
	AuthorizationDenied
	AuthorizationGranted
)

func (a AuthorizationStatus) String() string {
	switch a {
	case AuthorizationDenied:
		return "denied"
	case AuthorizationGranted:
		return "granted"
	default:
		return "undetermined"
	}
}

// ParseAuthorizationStatus maps a config value to a status.
// "prompt" and the empty string both mean undetermined.
func ParseAuthorizationStatus(s string) (AuthorizationStatus, error) {
	switch s {
	case "", "prompt", "undetermined":
		return AuthorizationUndetermined, nil
	case "denied", "deny":
		return AuthorizationDenied, nil
	case "granted", "grant", "allow":
		return AuthorizationGranted, nil
	}
	return AuthorizationUndetermined, fmt.Errorf("invalid location access %q: expected granted|denied|prompt", s)
}

// ─── Weather ──────────────────────────────────────────────────────────────────

// Snapshot is one fetched, time-stamped weather observation.
// Temperatures are always Celsius and wind speed is always m/s regardless of
// the unit system requested upstream. TempMin ≤ Temp ≤ TempMax is not
// guaranteed; values are stored as received.
type Snapshot struct {
	ID             string     `json:"id"`
	Place          string     `json:"place"`
	Country        string     `json:"country,omitempty"`
	Coordinate     Coordinate `json:"coord"`
	Description    string     `json:"description"`
	ConditionMain  string     `json:"condition_main,omitempty"`
	ConditionID    int        `json:"condition_id"`
	Icon           string     `json:"icon,omitempty"`
	Temp           float64    `json:"temp"`
	TempMin        float64    `json:"temp_min"`
	TempMax        float64    `json:"temp_max"`
	FeelsLike      float64    `json:"feels_like"`
	Humidity       int        `json:"humidity"`
	Pressure       int        `json:"pressure"`
	WindSpeed      *float64   `json:"wind_speed,omitempty"`
	Sunrise        time.Time  `json:"sunrise"`
	Sunset         time.Time  `json:"sunset"`
	ObservedAt     time.Time  `json:"observed_at"`
	TimezoneOffset int        `json:"timezone_offset"`
	FetchedAt      time.Time  `json:"fetched_at"`
}

// DefaultFreshness is how long a snapshot is served from cache.
const DefaultFreshness = 600 * time.Second

// IsStale reports whether more than freshness has elapsed since the snapshot
// was fetched. A snapshot exactly freshness old is still fresh.
func (s Snapshot) IsStale(now time.Time, freshness time.Duration) bool {
	return now.Sub(s.FetchedAt) > freshness
}

// IsDaytime reports whether now falls in [Sunrise, Sunset).
func (s Snapshot) IsDaytime(now time.Time) bool {
	return !now.Before(s.Sunrise) && now.Before(s.Sunset)
}

// Category returns the condition family for the snapshot's condition code.
func (s Snapshot) Category() Category {
	return CategoryOf(s.ConditionID)
}

// Category groups condition codes into the families presenters style by.
type Category int

const (
	CategoryUnknown Category = iota
	CategoryThunderstorm
	CategoryDrizzle
	CategoryRain
	CategorySnow
	CategoryAtmosphere
	CategoryClear
	CategoryClouds
)

// CategoryOf maps an upstream condition code to its family.
func CategoryOf(code int) Category {
	switch {
	case code >= 200 && code < 300:
		return CategoryThunderstorm
	case code >= 300 && code < 400:
		return CategoryDrizzle
	case code >= 500 && code < 600:
		return CategoryRain
	case code >= 600 && code < 700:
		return CategorySnow
	case code >= 700 && code < 800:
		return CategoryAtmosphere
	case code == 800:
		return CategoryClear
	case code > 800 && code <= 804:
		return CategoryClouds
	default:
		return CategoryUnknown
	}
}

func (c Category) String() string {
	switch c {
	case CategoryThunderstorm:
		return "thunderstorm"
	case CategoryDrizzle:
		return "drizzle"
	case CategoryRain:
		return "rain"
	case CategorySnow:
		return "snow"
	case CategoryAtmosphere:
		return "atmosphere"
	case CategoryClear:
		return "clear"
	case CategoryClouds:
		return "clouds"
	default:
		return "unknown"
	}
}

// ─── Result Envelope ─────────────────────────────────────────────────────────

// ResultStats carries timing and cache metadata for a command result.
type ResultStats struct {
	CacheHit   bool  `json:"cache_hit"`
	DurationMs int64 `json:"duration_ms"`
	Items      int   `json:"items"`
}

// Result is the uniform envelope returned by every command.
// The Data field holds the typed payload; Kind identifies what is in it.
// Renderers switch on Kind to format output appropriately.
type Result struct {
	Kind        string      `json:"kind"`
	GeneratedAt time.Time   `json:"generated_at"`
	Command     string      `json:"command"`
	Data        interface{} `json:"data"`
	Warnings    []string    `json:"warnings,omitempty"`
	Stats       ResultStats `json:"stats"`
}

// Kind constants for Result.Kind.
const (
	KindSnapshot  = "snapshot"
	KindLocations = "locations"
	KindState     = "state"
)

// LocationRow is the rendered form of one selectable location.
type LocationRow struct {
	Key      string      `json:"key"`
	Name     string      `json:"name"`
	Flag     string      `json:"flag"`
	Coord    *Coordinate `json:"coord,omitempty"`
	Selected bool        `json:"selected"`
}

// Report is the rendered form of a loaded snapshot.
type Report struct {
	Selector string   `json:"selector"`
	Snapshot Snapshot `json:"snapshot"`
	Stale    bool     `json:"stale"`
	Daytime  bool     `json:"daytime"`
	Category string   `json:"category"`
}

// NewReport builds a Report for sel evaluated at now.
func NewReport(sel Selector, s Snapshot, stale bool, now time.Time) *Report {
	return &Report{
		Selector: sel.Key(),
		Snapshot: s,
		Stale:    stale,
		Daytime:  s.IsDaytime(now),
		Category: s.Category().String(),
	}
}

// StateView is the rendered form of a view state that carries no snapshot.
type StateView struct {
	Selector   string `json:"selector"`
	State      string `json:"state"`
	Message    string `json:"message,omitempty"`
	Reason     string `json:"reason,omitempty"`
	Suggestion string `json:"suggestion,omitempty"`
}

// NewStateView builds a StateView for sel.
func NewStateView(sel Selector, s ViewState) *StateView {
	v := &StateView{Selector: sel.Key(), State: s.Name()}
	if e, ok := s.(StateError); ok {
		v.Message = e.Message
		v.Reason = e.Reason.String()
		v.Suggestion = e.Reason.Suggestion()
	}
	return v
}
