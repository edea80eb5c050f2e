package model

// ViewState is the state machine published to presenters.
// Exactly one of StateIdle, StateLoading, StateLoaded or StateError holds at
// any instant. Consumers switch on the concrete type:
//
//	switch st := s.(type) {
//	case model.StateIdle:
//	case model.StateLoading:
//	case model.StateLoaded:
//	case model.StateError:
//	}
type ViewState interface {
	Name() string
	viewState()
}

// StateIdle holds before any fetch has been attempted.
type StateIdle struct{}

// StateLoading holds while a fetch is in flight and no cached snapshot is
// being shown for the selection.
type StateLoading struct{}

// StateLoaded carries the snapshot on display. Stale is set while a cached
// snapshot past its freshness interval is shown during revalidation.
type StateLoaded struct {
	Snapshot Snapshot
	Stale    bool
}

// StateError carries a short user-facing message. Reason classifies the
// failure for presenters; every error is recoverable via retry.
type StateError struct {
	Message string
	Reason  Reason
}

func (StateIdle) Name() string    { return "idle" }
func (StateLoading) Name() string { return "loading" }
func (StateLoaded) Name() string  { return "loaded" }
func (StateError) Name() string   { return "error" }

func (StateIdle) viewState()    {}
func (StateLoading) viewState() {}
func (StateLoaded) viewState()  {}
func (StateError) viewState()   {}

// Reason classifies an error state.
type Reason int

const (
	ReasonUnknown Reason = iota
	ReasonNetwork
	ReasonTimeout
	ReasonConfiguration
	ReasonRateLimited
	ReasonServer
	ReasonInvalidData
	ReasonLocationDenied
	ReasonLocationUnknown
)

func (r Reason) String() string {
	switch r {
	case ReasonNetwork:
		return "network"
	case ReasonTimeout:
		return "timeout"
	case ReasonConfiguration:
		return "configuration"
	case ReasonRateLimited:
		return "rate_limited"
	case ReasonServer:
		return "server"
	case ReasonInvalidData:
		return "invalid_data"
	case ReasonLocationDenied:
		return "location_denied"
	case ReasonLocationUnknown:
		return "location_unknown"
	default:
		return "unknown"
	}
}

// Suggestion returns a one-line recovery hint for the reason.
func (r Reason) Suggestion() string {
	switch r {
	case ReasonNetwork, ReasonTimeout:
		return "Check your internet connection and try again."
	case ReasonRateLimited:
		return "Wait a few seconds before retrying."
	case ReasonServer:
		return "Try again later."
	case ReasonConfiguration:
		return "Check the api_key in your configuration."
	case ReasonLocationDenied:
		return "Set location_access to granted, or pick a named location."
	default:
		return "Please try again."
	}
}

// LoadedSnapshot returns the snapshot if s is StateLoaded.
func LoadedSnapshot(s ViewState) (Snapshot, bool) {
	if st, ok := s.(StateLoaded); ok {
		return st.Snapshot, true
	}
	return Snapshot{}, false
}
