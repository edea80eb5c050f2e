// Package owm implements the client for the OpenWeatherMap current-weather
// API: a single-attempt Transport that classifies every failure into a closed
// taxonomy, a retrying Client layered on top of it, the endpoint builder and
// the Service that maps wire responses into model.Snapshot values.
package owm

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"golang.org/x/time/rate"
)

// Fetcher performs exactly one GET of rawURL and decodes the JSON body into out.
type Fetcher interface {
	Fetch(ctx context.Context, rawURL string, out any) error
}

// Transport is the single-attempt HTTP layer. It never retries.
type Transport struct {
	httpClient *http.Client
	limiter    *rate.Limiter
	debug      bool
}

// NewTransport creates a Transport with the given I/O timeout and request
// rate. A non-positive rate disables limiting.
func NewTransport(timeout time.Duration, ratePerSec float64, debug bool) *Transport {
	limit := rate.Inf
	burst := 1
	if ratePerSec > 0 {
		limit = rate.Limit(ratePerSec)
		if int(ratePerSec) > burst {
			burst = int(ratePerSec)
		}
	}
	return &Transport{
		httpClient: &http.Client{Timeout: timeout},
		limiter:    rate.NewLimiter(limit, burst),
		debug:      debug,
	}
}

// Fetch performs one request. Status codes are checked before the body:
// 401, 429 and 5xx map to their own kinds, any other non-2xx to
// KindInvalidResponse. A 2xx with an empty body is KindNoData and one that
// fails to decode is KindDecodingFailed. If ctx ends first, ctx.Err() is
// returned unwrapped.
func (t *Transport) Fetch(ctx context.Context, rawURL string, out any) error {
	if err := t.limiter.Wait(ctx); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return &Error{Kind: KindRequestFailed, Err: err}
	}

	if t.debug {
		slog.Debug("owm request", "url", redactURL(rawURL))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return &Error{Kind: KindInvalidURL, Err: err}
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", "nimbus-cli/1.0")

	resp, err := t.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return &Error{Kind: KindRequestFailed, Err: err}
	}
	body, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return &Error{Kind: KindRequestFailed, Err: fmt.Errorf("reading body: %w", err)}
	}

	if t.debug {
		slog.Debug("owm response", "status", resp.StatusCode, "bytes", len(body))
	}

	switch code := resp.StatusCode; {
	case code >= 200 && code < 300:
	case code == http.StatusUnauthorized:
		return &Error{Kind: KindUnauthorized, StatusCode: code}
	case code == http.StatusTooManyRequests:
		return &Error{Kind: KindRateLimited, StatusCode: code}
	case code >= 500 && code < 600:
		return &Error{Kind: KindServerError, StatusCode: code}
	default:
		return &Error{Kind: KindInvalidResponse, StatusCode: code}
	}

	if len(body) == 0 {
		return &Error{Kind: KindNoData}
	}
	if err := json.Unmarshal(body, out); err != nil {
		return &Error{Kind: KindDecodingFailed, Err: err}
	}
	return nil
}

// redactURL hides the appid query parameter for logging.
func redactURL(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "<unparseable url>"
	}
	q := u.Query()
	if q.Has("appid") {
		q.Set("appid", "REDACTED")
		u.RawQuery = q.Encode()
	}
	return u.String()
}
