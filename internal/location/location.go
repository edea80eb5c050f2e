// Package location provides the device-position capability used when the
// current position is selected. A Provider tracks the authorization state,
// resolves positions through a Locator and reports outcomes to a Listener.
package location

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/derickschaefer/nimbus/internal/model"
	"github.com/derickschaefer/nimbus/internal/owm"
)

// DefaultIPLookupURL resolves the caller's approximate position from its
// public IP address.
const DefaultIPLookupURL = "http://ip-api.com/json/?fields=status,message,lat,lon,city"

const defaultLocateTimeout = 10 * time.Second

// Listener receives asynchronous location outcomes.
type Listener interface {
	LocationUpdated(coord model.Coordinate)
	LocationFailed(err error)
	AuthorizationChanged(status model.AuthorizationStatus)
}

// Locator resolves the current position.
type Locator interface {
	Locate(ctx context.Context) (model.Coordinate, error)
}

// ─── Locators ─────────────────────────────────────────────────────────────────

// Fixed always reports the same coordinate.
type Fixed model.Coordinate

func (f Fixed) Locate(context.Context) (model.Coordinate, error) {
	return model.Coordinate(f), nil
}

// IPLookup estimates the position from the public IP address using a JSON
// geolocation endpoint.
type IPLookup struct {
	Fetcher owm.Fetcher
	URL     string
}

func (l IPLookup) Locate(ctx context.Context) (model.Coordinate, error) {
	u := l.URL
	if u == "" {
		u = DefaultIPLookupURL
	}
	var raw struct {
		Status  string  `json:"status"`
		Message string  `json:"message"`
		Lat     float64 `json:"lat"`
		Lon     float64 `json:"lon"`
		City    string  `json:"city"`
	}
	if err := l.Fetcher.Fetch(ctx, u, &raw); err != nil {
		return model.Coordinate{}, fmt.Errorf("ip lookup: %w", err)
	}
	if raw.Status != "success" {
		return model.Coordinate{}, fmt.Errorf("ip lookup: %s", raw.Message)
	}
	slog.Debug("ip lookup resolved", "city", raw.City, "lat", raw.Lat, "lon", raw.Lon)
	return model.Coordinate{Latitude: raw.Lat, Longitude: raw.Lon}, nil
}

// ─── Provider ─────────────────────────────────────────────────────────────────

// Prompter asks the user for location access. It may block.
type Prompter func() model.AuthorizationStatus

// Provider implements the location capability.
type Provider struct {
	locator Locator
	prompt  Prompter
	timeout time.Duration

	ctx    context.Context
	cancel context.CancelFunc

	mu       sync.Mutex
	status   model.AuthorizationStatus
	last     *model.Coordinate
	listener Listener
	locating bool
	asking   bool
}

// Option configures a Provider.
type Option func(*Provider)

// WithPrompter installs the function used by RequestAuthorization.
func WithPrompter(p Prompter) Option {
	return func(pr *Provider) { pr.prompt = p }
}

// WithTimeout bounds each Locate call.
func WithTimeout(d time.Duration) Option {
	return func(pr *Provider) { pr.timeout = d }
}

// NewProvider creates a Provider with the initial authorization status.
func NewProvider(status model.AuthorizationStatus, locator Locator, opts ...Option) *Provider {
	ctx, cancel := context.WithCancel(context.Background())
	p := &Provider{
		locator: locator,
		timeout: defaultLocateTimeout,
		ctx:     ctx,
		cancel:  cancel,
		status:  status,
	}
	for _, o := range opts {
		o(p)
	}
	return p
}

// SetListener registers the receiver of location outcomes.
func (p *Provider) SetListener(l Listener) {
	p.mu.Lock()
	p.listener = l
	p.mu.Unlock()
}

// Close aborts any pending Locate call. Outcomes of later lookups are not
// reported.
func (p *Provider) Close() {
	p.cancel()
}

func (p *Provider) AuthorizationStatus() model.AuthorizationStatus {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.status
}

// LastLocation returns the most recent successful fix.
func (p *Provider) LastLocation() (model.Coordinate, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.last == nil {
		return model.Coordinate{}, false
	}
	return *p.last, true
}

// RequestAuthorization runs the prompter in the background when the status
// is undetermined. Without a prompter the request is only logged.
func (p *Provider) RequestAuthorization() {
	p.mu.Lock()
	if p.status != model.AuthorizationUndetermined || p.asking {
		p.mu.Unlock()
		return
	}
	prompt := p.prompt
	if prompt == nil {
		p.mu.Unlock()
		slog.Info("location access undetermined; grant it with location_access=granted")
		return
	}
	p.asking = true
	p.mu.Unlock()

	go func() {
		status := prompt()
		p.mu.Lock()
		p.asking = false
		p.mu.Unlock()
		p.setStatus(status)
	}()
}

// Grant sets the status to granted.
func (p *Provider) Grant() { p.setStatus(model.AuthorizationGranted) }

// Deny sets the status to denied.
func (p *Provider) Deny() { p.setStatus(model.AuthorizationDenied) }

// setStatus records a status change, notifies the listener and, once
// granted, requests a fix.
func (p *Provider) setStatus(status model.AuthorizationStatus) {
	p.mu.Lock()
	changed := p.status != status
	p.status = status
	l := p.listener
	p.mu.Unlock()

	if !changed {
		return
	}
	slog.Debug("location authorization", "status", status.String())
	if l != nil {
		l.AuthorizationChanged(status)
	}
	if status == model.AuthorizationGranted {
		p.RequestLocation()
	}
}

// RequestLocation resolves the position in the background and reports it
// to the listener. Without access it requests authorization instead.
// Concurrent requests share one lookup.
func (p *Provider) RequestLocation() {
	p.mu.Lock()
	if p.status != model.AuthorizationGranted {
		p.mu.Unlock()
		p.RequestAuthorization()
		return
	}
	if p.locating {
		p.mu.Unlock()
		return
	}
	p.locating = true
	p.mu.Unlock()

	go p.locate()
}

func (p *Provider) locate() {
	ctx, cancel := context.WithTimeout(p.ctx, p.timeout)
	defer cancel()

	coord, err := p.locator.Locate(ctx)

	p.mu.Lock()
	p.locating = false
	if err == nil {
		c := coord
		p.last = &c
	}
	l := p.listener
	p.mu.Unlock()

	if p.ctx.Err() != nil {
		return
	}
	if err != nil {
		slog.Warn("location lookup failed", "err", err)
		if l != nil {
			l.LocationFailed(err)
		}
		return
	}
	if l != nil {
		l.LocationUpdated(coord)
	}
}
