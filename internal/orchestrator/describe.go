package orchestrator

import (
	"errors"
	"fmt"

	"github.com/derickschaefer/nimbus/internal/model"
	"github.com/derickschaefer/nimbus/internal/owm"
)

// Orchestration-level failures.
var (
	ErrLocationDenied  = errors.New("location access denied")
	ErrLocationUnknown = errors.New("location unknown")
)

// locationError wraps the capability's failure as ErrLocationUnknown.
type locationError struct{ err error }

func (e *locationError) Error() string {
	if e.err == nil {
		return ErrLocationUnknown.Error()
	}
	return fmt.Sprintf("%s: %v", ErrLocationUnknown, e.err)
}

func (e *locationError) Unwrap() []error { return []error{ErrLocationUnknown, e.err} }

const msgUnexpected = "An unexpected error occurred. Please try again."

// Describe maps any fetch failure to a short user-facing sentence and a
// reason. Raw causes never appear in the message.
func Describe(err error) (string, model.Reason) {
	switch {
	case err == nil:
		return "", model.ReasonUnknown
	case errors.Is(err, ErrLocationDenied):
		return "Location access required. Please enable location access in your configuration.", model.ReasonLocationDenied
	case errors.Is(err, ErrLocationUnknown):
		return "Unable to determine location. Please try again.", model.ReasonLocationUnknown
	}

	var oe *owm.Error
	if !errors.As(err, &oe) {
		return msgUnexpected, model.ReasonUnknown
	}
	switch oe.Kind {
	case owm.KindInvalidURL:
		return "Invalid request URL.", model.ReasonConfiguration
	case owm.KindRequestFailed:
		switch {
		case owm.IsNotConnected(oe.Err), owm.IsConnectionLost(oe.Err):
			return "No internet connection. Please check your network settings.", model.ReasonNetwork
		case owm.IsTimeout(oe.Err):
			return "Request timed out. Please try again.", model.ReasonTimeout
		default:
			return "Network error. Please try again.", model.ReasonNetwork
		}
	case owm.KindInvalidResponse:
		return fmt.Sprintf("Server returned an invalid response (code: %d).", oe.StatusCode), model.ReasonInvalidData
	case owm.KindDecodingFailed:
		return "Unable to process weather data.", model.ReasonInvalidData
	case owm.KindNoData:
		return "No data received from server.", model.ReasonInvalidData
	case owm.KindUnauthorized:
		return "API key is invalid. Please check configuration.", model.ReasonConfiguration
	case owm.KindRateLimited:
		return "Too many requests. Please wait a moment and try again.", model.ReasonRateLimited
	case owm.KindServerError:
		return "Weather service is temporarily unavailable.", model.ReasonServer
	default:
		return msgUnexpected, model.ReasonUnknown
	}
}
