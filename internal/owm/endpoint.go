package owm

import (
	"net/url"
	"strconv"
	"strings"

	"github.com/derickschaefer/nimbus/internal/model"
)

const (
	DefaultBaseURL = "https://api.openweathermap.org/data/2.5"
	DefaultUnits   = "metric"
)

// Units accepted by the upstream API.
var validUnits = map[string]bool{"metric": true, "imperial": true, "standard": true}

// ValidUnits reports whether u is a unit system the API understands.
func ValidUnits(u string) bool { return validUnits[u] }

// Endpoint builds current-weather request URLs.
type Endpoint struct {
	BaseURL string
	APIKey  string
	Units   string
}

// Coordinates returns the URL for a latitude/longitude query.
func (e Endpoint) Coordinates(lat, lon float64) (string, error) {
	base := e.BaseURL
	if base == "" {
		base = DefaultBaseURL
	}
	u, err := url.Parse(strings.TrimRight(base, "/") + "/weather")
	if err != nil {
		return "", &Error{Kind: KindInvalidURL, Err: err}
	}
	if u.Scheme == "" || u.Host == "" {
		return "", &Error{Kind: KindInvalidURL}
	}

	units := e.Units
	if units == "" {
		units = DefaultUnits
	}
	q := url.Values{}
	q.Set("lat", strconv.FormatFloat(lat, 'f', -1, 64))
	q.Set("lon", strconv.FormatFloat(lon, 'f', -1, 64))
	q.Set("appid", e.APIKey)
	q.Set("units", units)
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// Place returns the URL for a named place, using its fixed coordinates.
func (e Endpoint) Place(p model.Place) (string, error) {
	return e.Coordinates(p.Coordinate.Latitude, p.Coordinate.Longitude)
}
