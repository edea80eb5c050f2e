package orchestrator

import (
	"github.com/derickschaefer/nimbus/internal/model"
)

type event interface{}

type (
	selectEvent         struct{ selector model.Selector }
	fetchEvent          struct{}
	permissionEvent     struct{}
	locationEvent       struct{ coord model.Coordinate }
	locationFailedEvent struct{ err error }
	authorizationEvent  struct{ status model.AuthorizationStatus }
	barrierEvent        struct{ done chan struct{} }
)

type resultEvent struct {
	task     *task
	snapshot model.Snapshot
	err      error
}

// post enqueues ev for the loop. It blocks while the queue is full and
// drops ev once Run has returned.
func (o *Orchestrator) post(ev event) {
	select {
	case o.events <- ev:
	case <-o.done:
	}
}

// SelectLocation switches the viewed location. Selecting the current
// selector does nothing; any other selector is persisted and fetched.
func (o *Orchestrator) SelectLocation(sel model.Selector) {
	o.post(selectEvent{selector: sel})
}

// FetchWeather shows the selected location's weather, from cache when fresh.
func (o *Orchestrator) FetchWeather() {
	o.post(fetchEvent{})
}

// Retry is FetchWeather, named for error recovery.
func (o *Orchestrator) Retry() {
	o.FetchWeather()
}

// RequestLocationPermission asks the location capability for authorization.
func (o *Orchestrator) RequestLocationPermission() {
	o.post(permissionEvent{})
}

// LocationUpdated reports a new device position.
func (o *Orchestrator) LocationUpdated(coord model.Coordinate) {
	o.post(locationEvent{coord: coord})
}

// LocationFailed reports that a requested position could not be determined.
func (o *Orchestrator) LocationFailed(err error) {
	o.post(locationFailedEvent{err: err})
}

// AuthorizationChanged reports a change in location authorization.
func (o *Orchestrator) AuthorizationChanged(status model.AuthorizationStatus) {
	o.post(authorizationEvent{status: status})
}

// Sync blocks until every event posted before it has been handled, or Run
// has returned.
func (o *Orchestrator) Sync() {
	done := make(chan struct{})
	o.post(barrierEvent{done: done})
	select {
	case <-done:
	case <-o.done:
	}
}
