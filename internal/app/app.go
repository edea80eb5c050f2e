// Package app wires together configuration, the preference store, the
// weather service and the orchestrator into a single Deps struct that
// commands receive at runtime.
package app

import (
	"fmt"

	"github.com/derickschaefer/nimbus/internal/config"
	"github.com/derickschaefer/nimbus/internal/location"
	"github.com/derickschaefer/nimbus/internal/model"
	"github.com/derickschaefer/nimbus/internal/orchestrator"
	"github.com/derickschaefer/nimbus/internal/owm"
	"github.com/derickschaefer/nimbus/internal/store"
)

// Deps holds all runtime dependencies injected into command Run functions.
type Deps struct {
	Config       *config.Config
	Store        *store.Store
	Service      *owm.Service
	Location     *location.Provider
	Orchestrator *orchestrator.Orchestrator
}

// New builds a Deps from resolved config. The caller owns the result and
// must Close it. prompt may be nil, in which case an undetermined location
// authorization stays undetermined.
func New(cfg *config.Config, prompt location.Prompter) (*Deps, error) {
	status, err := model.ParseAuthorizationStatus(cfg.LocationAccess)
	if err != nil {
		return nil, err
	}

	db, err := store.Open(cfg.DBPath)
	if err != nil {
		return nil, err
	}

	transport := owm.NewTransport(cfg.Timeout, cfg.Rate, cfg.Debug)
	service := owm.NewService(
		owm.Endpoint{BaseURL: cfg.BaseURL, APIKey: cfg.APIKey, Units: cfg.Units},
		owm.NewClient(transport),
		owm.WithMaxRetries(cfg.MaxRetries),
	)

	var locator location.Locator = location.IPLookup{Fetcher: transport}
	if cfg.HasFixedPosition() {
		locator = location.Fixed(model.Coordinate{Latitude: *cfg.Latitude, Longitude: *cfg.Longitude})
	}
	opts := []location.Option{location.WithTimeout(cfg.Timeout)}
	if prompt != nil {
		opts = append(opts, location.WithPrompter(prompt))
	}
	provider := location.NewProvider(status, locator, opts...)

	orch := orchestrator.New(service, provider, db, orchestrator.Options{Freshness: cfg.Freshness})
	provider.SetListener(orch)

	return &Deps{
		Config:       cfg,
		Store:        db,
		Service:      service,
		Location:     provider,
		Orchestrator: orch,
	}, nil
}

// Close releases the location provider and the store.
func (d *Deps) Close() error {
	d.Location.Close()
	if err := d.Store.Close(); err != nil {
		return fmt.Errorf("closing store: %w", err)
	}
	return nil
}
