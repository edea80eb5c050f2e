package owm

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"syscall"
)

// Kind enumerates the closed set of transport failures.
type Kind int

const (
	KindInvalidURL Kind = iota + 1
	KindRequestFailed
	KindInvalidResponse
	KindDecodingFailed
	KindNoData
	KindUnauthorized
	KindRateLimited
	KindServerError
)

func (k Kind) String() string {
	switch k {
	case KindInvalidURL:
		return "invalid url"
	case KindRequestFailed:
		return "request failed"
	case KindInvalidResponse:
		return "invalid response"
	case KindDecodingFailed:
		return "decoding failed"
	case KindNoData:
		return "no data"
	case KindUnauthorized:
		return "unauthorized"
	case KindRateLimited:
		return "rate limited"
	case KindServerError:
		return "server error"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Error is the single error type returned by the transport layer.
// StatusCode is set for KindInvalidResponse and the status-derived kinds;
// Err carries the underlying cause for KindRequestFailed, KindDecodingFailed
// and KindInvalidURL.
type Error struct {
	Kind       Kind
	StatusCode int
	Err        error
}

func (e *Error) Error() string {
	switch {
	case e.Kind == KindInvalidResponse:
		return fmt.Sprintf("owm: invalid response (HTTP %d)", e.StatusCode)
	case e.Err != nil:
		return fmt.Sprintf("owm: %s: %v", e.Kind, e.Err)
	case e.StatusCode != 0:
		return fmt.Sprintf("owm: %s (HTTP %d)", e.Kind, e.StatusCode)
	default:
		return "owm: " + e.Kind.String()
	}
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches any *Error of the same kind, so errors.Is(err, ErrServerError)
// holds regardless of status code or cause.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Kind == e.Kind
}

// Sentinels for errors.Is comparisons.
var (
	ErrInvalidURL      = &Error{Kind: KindInvalidURL}
	ErrRequestFailed   = &Error{Kind: KindRequestFailed}
	ErrInvalidResponse = &Error{Kind: KindInvalidResponse}
	ErrDecodingFailed  = &Error{Kind: KindDecodingFailed}
	ErrNoData          = &Error{Kind: KindNoData}
	ErrUnauthorized    = &Error{Kind: KindUnauthorized}
	ErrRateLimited     = &Error{Kind: KindRateLimited}
	ErrServerError     = &Error{Kind: KindServerError}
)

// KindOf returns the taxonomy kind of err, or 0 if err is not an *Error.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return 0
}

// ─── Transient classification ────────────────────────────────────────────────

// IsTransient reports whether a failed attempt is worth retrying: server
// errors and connection failures that are timeouts, dropped connections,
// missing connectivity or a refused connect. Everything else is final.
func IsTransient(err error) bool {
	var e *Error
	if !errors.As(err, &e) {
		return false
	}
	switch e.Kind {
	case KindServerError:
		return true
	case KindRequestFailed:
		return IsTimeout(e.Err) || IsConnectionLost(e.Err) || IsNotConnected(e.Err) || isCannotConnect(e.Err)
	default:
		return false
	}
}

// IsTimeout reports whether err is an I/O or DNS timeout.
// A cancelled context is not a timeout.
func IsTimeout(err error) bool {
	if err == nil {
		return false
	}
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return true
	}
	return errors.Is(err, context.DeadlineExceeded)
}

// IsConnectionLost reports whether an established connection dropped.
func IsConnectionLost(err error) bool {
	return errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.ECONNABORTED) ||
		errors.Is(err, syscall.EPIPE) ||
		errors.Is(err, io.ErrUnexpectedEOF)
}

// IsNotConnected reports whether the host has no usable network.
func IsNotConnected(err error) bool {
	if errors.Is(err, syscall.ENETUNREACH) || errors.Is(err, syscall.EHOSTUNREACH) {
		return true
	}
	var dnsErr *net.DNSError
	return errors.As(err, &dnsErr) && (dnsErr.IsTemporary || dnsErr.IsTimeout)
}

// isCannotConnect reports a refused or failed dial. A host name that does
// not resolve is final.
func isCannotConnect(err error) bool {
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) && dnsErr.IsNotFound {
		return false
	}
	if errors.Is(err, syscall.ECONNREFUSED) {
		return true
	}
	var opErr *net.OpError
	return errors.As(err, &opErr) && opErr.Op == "dial"
}
