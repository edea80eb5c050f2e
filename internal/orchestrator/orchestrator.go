// Package orchestrator owns the weather view: the selected location, the
// per-location snapshot cache, the lifetime of the in-flight fetch and the
// published view state.
//
// All state changes happen on the goroutine running Run. Public methods only
// enqueue events for that loop, so they are safe to call from any goroutine,
// including location callbacks and UI handlers. Fetches run as cancellable
// background tasks whose results are posted back to the loop and applied only
// if the task is still the current one.
package orchestrator

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/derickschaefer/nimbus/internal/model"
)

// PrefLastSelectedLocation is the preference key holding the persisted
// selector.
const PrefLastSelectedLocation = "lastSelectedLocation"

const (
	defaultEventBuffer = 64
	subscriberBuffer   = 16
)

// ErrAlreadyRunning is returned by a second concurrent call to Run.
var ErrAlreadyRunning = errors.New("orchestrator: already running")

// ─── Collaborators ────────────────────────────────────────────────────────────

// WeatherService fetches snapshots. Implementations must honour ctx.
type WeatherService interface {
	FetchByCoordinates(ctx context.Context, lat, lon float64) (model.Snapshot, error)
	FetchByPlace(ctx context.Context, place model.Place) (model.Snapshot, error)
}

// LocationProvider is the device location capability. RequestLocation is
// asynchronous; its outcome arrives through LocationUpdated or LocationFailed.
type LocationProvider interface {
	AuthorizationStatus() model.AuthorizationStatus
	RequestAuthorization()
	RequestLocation()
	LastLocation() (model.Coordinate, bool)
}

// Preferences is a string key-value store.
type Preferences interface {
	Get(key string) (string, bool, error)
	Set(key, value string) error
	Clear() error
}

// Options tunes an Orchestrator. Zero values select the defaults.
type Options struct {
	// Freshness is how long a cached snapshot is served without a fetch.
	Freshness time.Duration
	// Now is the clock used for staleness checks.
	Now func() time.Time
	// EventBuffer is the capacity of the event queue.
	EventBuffer int
}

// ─── Orchestrator ─────────────────────────────────────────────────────────────

// Orchestrator is the fetch orchestration engine. Create it with New and
// start its loop with Run.
type Orchestrator struct {
	service   WeatherService
	location  LocationProvider
	prefs     Preferences
	freshness time.Duration
	now       func() time.Time

	events  chan event
	done    chan struct{}
	running atomic.Bool

	// Owned by the Run goroutine.
	runCtx     context.Context
	inflight   *task
	currentFix *model.Coordinate

	// Written only by the Run goroutine, read by anyone.
	mu       sync.RWMutex
	selected model.Selector
	state    model.ViewState
	cache    map[model.Selector]model.Snapshot
	subs     map[chan model.ViewState]struct{}
}

// task is one in-flight fetch.
type task struct {
	ctx      context.Context
	cancel   context.CancelFunc
	selector model.Selector
	coord    *model.Coordinate
}

// New creates an Orchestrator in the Idle state with the persisted selection
// restored: a saved current-position selection falls back to London unless
// location access is granted, and nothing saved selects the current position.
func New(service WeatherService, location LocationProvider, prefs Preferences, opts Options) *Orchestrator {
	if opts.Freshness <= 0 {
		opts.Freshness = model.DefaultFreshness
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.EventBuffer <= 0 {
		opts.EventBuffer = defaultEventBuffer
	}
	o := &Orchestrator{
		service:   service,
		location:  location,
		prefs:     prefs,
		freshness: opts.Freshness,
		now:       opts.Now,
		events:    make(chan event, opts.EventBuffer),
		done:      make(chan struct{}),
		state:     model.StateIdle{},
		cache:     make(map[model.Selector]model.Snapshot),
		subs:      make(map[chan model.ViewState]struct{}),
	}
	o.selected = o.restoreSelection()
	return o
}

func (o *Orchestrator) restoreSelection() model.Selector {
	key, ok, err := o.prefs.Get(PrefLastSelectedLocation)
	if err != nil {
		slog.Warn("reading persisted location", "err", err)
		return model.CurrentPosition
	}
	if !ok {
		return model.CurrentPosition
	}
	sel, err := model.ParseSelector(key)
	if err != nil {
		slog.Warn("ignoring persisted location", "key", key, "err", err)
		return model.CurrentPosition
	}
	if sel == model.CurrentPosition && o.location.AuthorizationStatus() != model.AuthorizationGranted {
		slog.Debug("location not authorized, restoring London instead of current position")
		return model.London
	}
	return sel
}

// Run processes events until ctx is done. It cancels any in-flight fetch and
// closes every subscription channel before returning. Events posted before
// Run starts are queued and handled once it does.
func (o *Orchestrator) Run(ctx context.Context) error {
	if !o.running.CompareAndSwap(false, true) {
		return ErrAlreadyRunning
	}
	o.runCtx = ctx
	defer o.shutdown()

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev := <-o.events:
			o.handle(ev)
		}
	}
}

func (o *Orchestrator) shutdown() {
	o.cancelInflight()
	close(o.done)

	o.mu.Lock()
	defer o.mu.Unlock()
	for ch := range o.subs {
		close(ch)
		delete(o.subs, ch)
	}
}

// Done is closed when Run has returned.
func (o *Orchestrator) Done() <-chan struct{} { return o.done }

// ─── Observation ──────────────────────────────────────────────────────────────

// State returns the most recently published view state.
func (o *Orchestrator) State() model.ViewState {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.state
}

// Selected returns the current selector.
func (o *Orchestrator) Selected() model.Selector {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.selected
}

// Cached returns the cache entry for sel, if any.
func (o *Orchestrator) Cached(sel model.Selector) (model.Snapshot, bool) {
	o.mu.RLock()
	defer o.mu.RUnlock()
	s, ok := o.cache[sel]
	return s, ok
}

// AvailableLocations lists every selectable location in display order.
func (o *Orchestrator) AvailableLocations() []model.Selector {
	out := make([]model.Selector, len(model.AllSelectors))
	copy(out, model.AllSelectors)
	return out
}

// Subscribe returns a channel that receives the current state immediately
// and every state published after it. A slow reader loses the oldest queued
// states, never the newest. The returned func unsubscribes; the channel is
// also closed when Run returns.
func (o *Orchestrator) Subscribe() (<-chan model.ViewState, func()) {
	ch := make(chan model.ViewState, subscriberBuffer)

	o.mu.Lock()
	select {
	case <-o.done:
		close(ch)
		o.mu.Unlock()
		return ch, func() {}
	default:
	}
	ch <- o.state
	o.subs[ch] = struct{}{}
	o.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			o.mu.Lock()
			defer o.mu.Unlock()
			if _, ok := o.subs[ch]; ok {
				delete(o.subs, ch)
				close(ch)
			}
		})
	}
}

// publish replaces the view state and notifies subscribers.
func (o *Orchestrator) publish(s model.ViewState) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.state = s
	for ch := range o.subs {
		deliver(ch, s)
	}
}

// deliver sends s without blocking, evicting queued states as needed.
// Only the loop sends, so the retry terminates.
func deliver(ch chan model.ViewState, s model.ViewState) {
	for {
		select {
		case ch <- s:
			return
		default:
		}
		select {
		case <-ch:
			slog.Debug("subscriber lagging, dropped oldest state")
		default:
		}
	}
}

func (o *Orchestrator) setSelected(sel model.Selector) {
	o.mu.Lock()
	o.selected = sel
	o.mu.Unlock()
}

func (o *Orchestrator) store(sel model.Selector, snap model.Snapshot) {
	o.mu.Lock()
	o.cache[sel] = snap
	o.mu.Unlock()
}

// ─── Loop handlers ────────────────────────────────────────────────────────────

func (o *Orchestrator) handle(ev event) {
	switch ev := ev.(type) {
	case selectEvent:
		o.selectLocation(ev.selector)
	case fetchEvent:
		o.fetchWeather()
	case permissionEvent:
		o.location.RequestAuthorization()
	case locationEvent:
		o.locationUpdated(ev.coord)
	case locationFailedEvent:
		o.locationFailed(ev.err)
	case authorizationEvent:
		o.authorizationChanged(ev.status)
	case resultEvent:
		o.finish(ev)
	case barrierEvent:
		close(ev.done)
	}
}

func (o *Orchestrator) selectLocation(sel model.Selector) {
	if sel.Key() == "" {
		slog.Warn("ignoring unknown location", "selector", int(sel))
		return
	}
	if sel == o.selected {
		return
	}
	o.setSelected(sel)
	if err := o.prefs.Set(PrefLastSelectedLocation, sel.Key()); err != nil {
		slog.Warn("persisting selected location", "location", sel.Key(), "err", err)
	}
	o.fetchWeather()
}

// fetchWeather cancels any in-flight fetch, then serves a fresh cache entry
// directly or starts a new fetch. A stale entry stays on screen, marked
// stale, while it is revalidated; Loading is shown only with no entry at all.
func (o *Orchestrator) fetchWeather() {
	o.cancelInflight()

	sel := o.selected
	cached, ok := o.cache[sel]
	switch {
	case ok && !cached.IsStale(o.now(), o.freshness):
		o.publish(model.StateLoaded{Snapshot: cached})
		return
	case ok:
		o.publish(model.StateLoaded{Snapshot: cached, Stale: true})
	default:
		o.publish(model.StateLoading{})
	}

	if place, isPlace := sel.Place(); isPlace {
		o.launch(sel, nil, func(ctx context.Context) (model.Snapshot, error) {
			return o.service.FetchByPlace(ctx, place)
		})
		return
	}
	o.fetchCurrentPosition()
}

func (o *Orchestrator) fetchCurrentPosition() {
	switch o.location.AuthorizationStatus() {
	case model.AuthorizationUndetermined:
		slog.Debug("location authorization undetermined, requesting")
		o.location.RequestAuthorization()
		return
	case model.AuthorizationDenied:
		o.fail(ErrLocationDenied)
		return
	}

	o.location.RequestLocation()
	coord, ok := o.location.LastLocation()
	if !ok {
		slog.Debug("waiting for location fix")
		return
	}
	o.launchCoordinate(coord)
}

func (o *Orchestrator) launchCoordinate(coord model.Coordinate) {
	c := coord
	o.launch(model.CurrentPosition, &c, func(ctx context.Context) (model.Snapshot, error) {
		return o.service.FetchByCoordinates(ctx, c.Latitude, c.Longitude)
	})
}

func (o *Orchestrator) launch(sel model.Selector, coord *model.Coordinate, fetch func(context.Context) (model.Snapshot, error)) {
	ctx, cancel := context.WithCancel(o.runCtx)
	t := &task{ctx: ctx, cancel: cancel, selector: sel, coord: coord}
	o.inflight = t

	slog.Debug("fetch started", "location", sel.Key())
	go func() {
		snap, err := fetch(ctx)
		o.post(resultEvent{task: t, snapshot: snap, err: err})
	}()
}

func (o *Orchestrator) cancelInflight() {
	if o.inflight != nil {
		o.inflight.cancel()
		o.inflight = nil
	}
}

// finish applies a task result if the task is still current.
func (o *Orchestrator) finish(ev resultEvent) {
	t := ev.task
	if t != o.inflight || t.ctx.Err() != nil {
		slog.Debug("discarding superseded fetch result", "location", t.selector.Key())
		return
	}
	o.inflight = nil
	t.cancel()

	if ev.err != nil {
		if errors.Is(ev.err, context.Canceled) {
			return
		}
		o.fail(ev.err)
		return
	}
	if t.selector != o.selected {
		return
	}

	o.store(t.selector, ev.snapshot)
	if t.coord != nil {
		fix := *t.coord
		o.currentFix = &fix
	}
	slog.Debug("fetch complete", "location", t.selector.Key(), "place", ev.snapshot.Place)
	o.publish(model.StateLoaded{Snapshot: ev.snapshot})
}

func (o *Orchestrator) fail(err error) {
	msg, reason := Describe(err)
	slog.Info("weather unavailable", "location", o.selected.Key(), "reason", reason.String(), "err", err)
	o.publish(model.StateError{Message: msg, Reason: reason})
}

// locationUpdated fetches for a new fix while the current position is
// selected. A fix matching the in-flight request, or the one behind a
// still-fresh cache entry, is ignored.
func (o *Orchestrator) locationUpdated(coord model.Coordinate) {
	if o.selected != model.CurrentPosition {
		return
	}
	if t := o.inflight; t != nil && t.coord != nil && *t.coord == coord {
		return
	}
	cached, hasCache := o.cache[model.CurrentPosition]
	if o.inflight == nil && hasCache && o.currentFix != nil && *o.currentFix == coord &&
		!cached.IsStale(o.now(), o.freshness) {
		return
	}

	o.cancelInflight()
	if !hasCache {
		o.publish(model.StateLoading{})
	}
	o.launchCoordinate(coord)
}

// locationFailed surfaces a failed fix only while the current position is
// selected and nothing is being fetched or displayed.
func (o *Orchestrator) locationFailed(err error) {
	if o.selected != model.CurrentPosition || o.inflight != nil {
		return
	}
	if _, showing := model.LoadedSnapshot(o.state); showing {
		slog.Debug("location fix failed, keeping displayed snapshot", "err", err)
		return
	}
	o.fail(&locationError{err: err})
}

func (o *Orchestrator) authorizationChanged(status model.AuthorizationStatus) {
	slog.Debug("location authorization changed", "status", status.String())
	if o.selected != model.CurrentPosition {
		return
	}
	if status == model.AuthorizationGranted || status == model.AuthorizationDenied {
		o.fetchWeather()
	}
}
