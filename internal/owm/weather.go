package owm

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/derickschaefer/nimbus/internal/model"
	"github.com/derickschaefer/nimbus/internal/util"
)

// DefaultMaxRetries is the retry budget for every service fetch.
const DefaultMaxRetries = 2

// Service fetches current weather and maps it into snapshots.
type Service struct {
	endpoint   Endpoint
	client     *Client
	maxRetries int
	now        func() time.Time
}

// ServiceOption configures a Service.
type ServiceOption func(*Service)

// WithMaxRetries overrides DefaultMaxRetries.
func WithMaxRetries(n int) ServiceOption {
	return func(s *Service) { s.maxRetries = n }
}

// WithClock sets the clock used to stamp FetchedAt.
func WithClock(now func() time.Time) ServiceOption {
	return func(s *Service) { s.now = now }
}

// NewService creates a Service that builds URLs with endpoint and fetches
// through client.
func NewService(endpoint Endpoint, client *Client, opts ...ServiceOption) *Service {
	s := &Service{
		endpoint:   endpoint,
		client:     client,
		maxRetries: DefaultMaxRetries,
		now:        time.Now,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// FetchByCoordinates returns the current weather at lat/lon.
func (s *Service) FetchByCoordinates(ctx context.Context, lat, lon float64) (model.Snapshot, error) {
	u, err := s.endpoint.Coordinates(lat, lon)
	if err != nil {
		return model.Snapshot{}, err
	}
	snap, err := s.fetch(ctx, u)
	if err != nil {
		return model.Snapshot{}, fmt.Errorf("weather at %s: %w", model.Coordinate{Latitude: lat, Longitude: lon}, err)
	}
	return snap, nil
}

// FetchByPlace returns the current weather for a named place.
func (s *Service) FetchByPlace(ctx context.Context, p model.Place) (model.Snapshot, error) {
	u, err := s.endpoint.Place(p)
	if err != nil {
		return model.Snapshot{}, err
	}
	snap, err := s.fetch(ctx, u)
	if err != nil {
		return model.Snapshot{}, fmt.Errorf("weather for %s: %w", p.Name, err)
	}
	return snap, nil
}

func (s *Service) fetch(ctx context.Context, u string) (model.Snapshot, error) {
	var raw wireResponse
	if err := s.client.FetchWithRetry(ctx, u, &raw, s.maxRetries); err != nil {
		return model.Snapshot{}, err
	}
	return raw.snapshot(s.endpoint.Units, s.now()), nil
}

// ─── Wire format ──────────────────────────────────────────────────────────────

type wireResponse struct {
	Coord struct {
		Lon float64 `json:"lon"`
		Lat float64 `json:"lat"`
	} `json:"coord"`
	Weather []struct {
		ID          int    `json:"id"`
		Main        string `json:"main"`
		Description string `json:"description"`
		Icon        string `json:"icon"`
	} `json:"weather"`
	Main struct {
		Temp      float64 `json:"temp"`
		FeelsLike float64 `json:"feels_like"`
		TempMin   float64 `json:"temp_min"`
		TempMax   float64 `json:"temp_max"`
		Pressure  int     `json:"pressure"`
		Humidity  int     `json:"humidity"`
	} `json:"main"`
	Wind *struct {
		Speed float64 `json:"speed"`
	} `json:"wind"`
	Sys struct {
		Country string `json:"country"`
		Sunrise int64  `json:"sunrise"`
		Sunset  int64  `json:"sunset"`
	} `json:"sys"`
	Dt       int64  `json:"dt"`
	Timezone int    `json:"timezone"`
	Name     string `json:"name"`
	Cod      int    `json:"cod"`
}

// snapshot maps the wire response. The first weather entry is
// authoritative; with none the condition is "Unknown" with code 0.
func (r wireResponse) snapshot(units string, fetchedAt time.Time) model.Snapshot {
	snap := model.Snapshot{
		ID:             uuid.NewString(),
		Place:          r.Name,
		Country:        r.Sys.Country,
		Coordinate:     model.Coordinate{Latitude: r.Coord.Lat, Longitude: r.Coord.Lon},
		Description:    "Unknown",
		Temp:           util.ToCelsius(r.Main.Temp, units),
		TempMin:        util.ToCelsius(r.Main.TempMin, units),
		TempMax:        util.ToCelsius(r.Main.TempMax, units),
		FeelsLike:      util.ToCelsius(r.Main.FeelsLike, units),
		Humidity:       r.Main.Humidity,
		Pressure:       r.Main.Pressure,
		Sunrise:        unixTime(r.Sys.Sunrise),
		Sunset:         unixTime(r.Sys.Sunset),
		ObservedAt:     unixTime(r.Dt),
		TimezoneOffset: r.Timezone,
		FetchedAt:      fetchedAt,
	}
	if len(r.Weather) > 0 {
		w := r.Weather[0]
		snap.Description = w.Description
		snap.ConditionMain = w.Main
		snap.ConditionID = w.ID
		snap.Icon = w.Icon
	}
	if r.Wind != nil {
		speed := util.WindToMps(r.Wind.Speed, units)
		snap.WindSpeed = &speed
	}
	return snap
}

func unixTime(sec int64) time.Time {
	if sec == 0 {
		return time.Time{}
	}
	return time.Unix(sec, 0).UTC()
}
