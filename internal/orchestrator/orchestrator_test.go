package orchestrator_test

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/derickschaefer/nimbus/internal/model"
	"github.com/derickschaefer/nimbus/internal/orchestrator"
	"github.com/derickschaefer/nimbus/internal/owm"
)

var here = model.Coordinate{Latitude: 40.4168, Longitude: -3.7038}

func granted(fix *model.Coordinate) *fakeLocation {
	return &fakeLocation{status: model.AuthorizationGranted, fix: fix}
}

func persisted(key string) *fakePrefs {
	return newPrefs(orchestrator.PrefLastSelectedLocation, key)
}

// ─── Startup ──────────────────────────────────────────────────────────────────

func TestRestoreSelection(t *testing.T) {
	tests := []struct {
		name   string
		prefs  *fakePrefs
		status model.AuthorizationStatus
		want   model.Selector
	}{
		{"nothing persisted", newPrefs(), model.AuthorizationUndetermined, model.CurrentPosition},
		{"named place", persisted("montevideo"), model.AuthorizationDenied, model.Montevideo},
		{"current while granted", persisted("current"), model.AuthorizationGranted, model.CurrentPosition},
		{"current while denied", persisted("current"), model.AuthorizationDenied, model.London},
		{"current while undetermined", persisted("current"), model.AuthorizationUndetermined, model.London},
		{"unknown key", persisted("atlantis"), model.AuthorizationGranted, model.CurrentPosition},
		{"read failure", &fakePrefs{values: map[string]string{}, getErr: errBoom}, model.AuthorizationGranted, model.CurrentPosition},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t, &fakeLocation{status: tt.status}, tt.prefs)
			if got := h.o.Selected(); got != tt.want {
				t.Errorf("expected %v, got %v", tt.want, got)
			}
			if _, ok := h.o.State().(model.StateIdle); !ok {
				t.Errorf("initial state should be idle, got %#v", h.o.State())
			}
		})
	}
}

func TestAvailableLocations(t *testing.T) {
	h := newHarness(t, &fakeLocation{}, newPrefs())
	got := h.o.AvailableLocations()
	if len(got) != 4 || got[0] != model.CurrentPosition || got[3] != model.BuenosAires {
		t.Errorf("unexpected locations %v", got)
	}
}

func TestRunTwice(t *testing.T) {
	h := startHarness(t, &fakeLocation{}, newPrefs())
	h.o.Sync()
	if err := h.o.Run(context.Background()); !errors.Is(err, orchestrator.ErrAlreadyRunning) {
		t.Errorf("expected ErrAlreadyRunning, got %v", err)
	}
}

// ─── Selection ────────────────────────────────────────────────────────────────

func TestSelectSameLocationIsNoop(t *testing.T) {
	h := startHarness(t, &fakeLocation{}, persisted("london"))
	h.o.SelectLocation(model.London)
	h.o.Sync()

	if _, sets := h.prefs.value(orchestrator.PrefLastSelectedLocation); sets != 0 {
		t.Errorf("expected no persistence write, got %d", sets)
	}
	if n := len(h.svc.Calls()); n != 0 {
		t.Errorf("expected no fetch, got %d calls", n)
	}
	if _, ok := h.o.State().(model.StateIdle); !ok {
		t.Errorf("state should remain idle, got %#v", h.o.State())
	}
}

func TestSelectUnknownSelectorIsIgnored(t *testing.T) {
	h := startHarness(t, &fakeLocation{}, persisted("london"))
	h.o.SelectLocation(model.Selector(9))
	h.o.Sync()

	if _, sets := h.prefs.value(orchestrator.PrefLastSelectedLocation); sets != 0 {
		t.Errorf("expected no persistence write, got %d", sets)
	}
	if h.o.Selected() != model.London {
		t.Errorf("selection should stay London, got %v", h.o.Selected())
	}
	if n := len(h.svc.Calls()); n != 0 {
		t.Errorf("expected no fetch, got %d calls", n)
	}
}

func TestSelectLocationPersistsAndFetches(t *testing.T) {
	h := startHarness(t, &fakeLocation{}, persisted("london"))
	h.o.SelectLocation(model.Montevideo)

	h.waitFor(t, "loading", func(s model.ViewState) bool {
		_, ok := s.(model.StateLoading)
		return ok
	})
	loaded := h.waitLoaded(t, "Montevideo")

	if v, sets := h.prefs.value(orchestrator.PrefLastSelectedLocation); v != "montevideo" || sets != 1 {
		t.Errorf("expected montevideo persisted once, got %q (%d writes)", v, sets)
	}
	cached, ok := h.o.Cached(model.Montevideo)
	if !ok {
		t.Fatal("expected cache entry after successful fetch")
	}
	if cached != loaded.Snapshot {
		t.Errorf("cache entry %+v differs from published snapshot %+v", cached, loaded.Snapshot)
	}
	if cached.IsStale(h.clock.Now(), model.DefaultFreshness) {
		t.Error("fresh cache entry reported stale")
	}
	if loaded.Stale {
		t.Error("freshly fetched snapshot marked stale")
	}
	calls := h.svc.Calls()
	if len(calls) != 1 || calls[0].Coord.Latitude != -34.9011 {
		t.Errorf("expected one Montevideo fetch, got %+v", calls)
	}
}

func TestPersistFailureStillFetches(t *testing.T) {
	prefs := persisted("london")
	prefs.setErr = errBoom
	h := startHarness(t, &fakeLocation{}, prefs)

	h.o.SelectLocation(model.BuenosAires)
	h.waitLoaded(t, "Buenos Aires")
	if h.o.Selected() != model.BuenosAires {
		t.Errorf("selection should change despite persistence failure")
	}
}

func TestLondonScenario(t *testing.T) {
	h := startHarness(t, &fakeLocation{}, newPrefs())
	sunrise := h.clock.Now().Add(-4 * time.Hour)
	sunset := h.clock.Now().Add(8 * time.Hour)
	h.svc.setRespond(func(ctx context.Context, r request) (model.Snapshot, error) {
		return model.Snapshot{
			Place: r.Place, Temp: 20, TempMin: 15, TempMax: 25, ConditionID: 800,
			Sunrise: sunrise, Sunset: sunset, FetchedAt: h.clock.Now(),
		}, nil
	})

	h.o.SelectLocation(model.London)
	st := h.waitLoaded(t, "London")
	s := st.Snapshot
	if s.Temp != 20 || s.TempMin != 15 || s.TempMax != 25 || s.ConditionID != 800 {
		t.Errorf("unexpected fields %+v", s)
	}
	if !s.IsDaytime(h.clock.Now()) {
		t.Error("expected daytime between sunrise and sunset")
	}
	if s.Category() != model.CategoryClear {
		t.Errorf("expected clear category, got %v", s.Category())
	}
}

// ─── Cache ────────────────────────────────────────────────────────────────────

func TestFreshCacheServedWithoutNetwork(t *testing.T) {
	h := startHarness(t, &fakeLocation{}, persisted("buenosAires"))

	h.o.SelectLocation(model.London)
	h.waitLoaded(t, "London")
	h.o.SelectLocation(model.Montevideo)
	h.waitLoaded(t, "Montevideo")

	h.o.SelectLocation(model.London)
	h.waitLoaded(t, "London")
	h.o.FetchWeather()
	h.o.Retry()
	h.waitLoaded(t, "London")
	h.o.Sync()

	if n := h.svc.callsFor("London"); n != 1 {
		t.Errorf("expected London fetched once, got %d", n)
	}
}

func TestStaleBoundary(t *testing.T) {
	h := startHarness(t, &fakeLocation{}, persisted("montevideo"))
	h.o.SelectLocation(model.London)
	h.waitLoaded(t, "London")

	h.clock.Advance(600 * time.Second)
	h.o.FetchWeather()
	h.waitLoaded(t, "London")
	h.o.Sync()
	if n := h.svc.callsFor("London"); n != 1 {
		t.Fatalf("entry exactly 600s old must be served from cache, got %d calls", n)
	}

	h.clock.Advance(time.Second)
	h.o.FetchWeather()
	st := h.waitFor(t, "stale loaded", func(s model.ViewState) bool {
		l, ok := s.(model.StateLoaded)
		return ok && l.Stale
	})
	if st.(model.StateLoaded).Snapshot.Place != "London" {
		t.Errorf("stale state should show the cached London snapshot")
	}
	fresh := h.waitFor(t, "revalidated", func(s model.ViewState) bool {
		l, ok := s.(model.StateLoaded)
		return ok && !l.Stale
	}).(model.StateLoaded)
	if !fresh.Snapshot.FetchedAt.Equal(h.clock.Now()) {
		t.Errorf("revalidated snapshot should be stamped now")
	}
	if n := h.svc.callsFor("London"); n != 2 {
		t.Errorf("expected 2 London fetches, got %d", n)
	}
}

func TestFailedFetchDoesNotCache(t *testing.T) {
	h := startHarness(t, &fakeLocation{}, newPrefs())
	h.svc.setRespond(func(ctx context.Context, r request) (model.Snapshot, error) {
		return model.Snapshot{}, owm.ErrServerError
	})
	h.o.SelectLocation(model.London)
	h.waitError(t)
	if _, ok := h.o.Cached(model.London); ok {
		t.Error("failed fetch must not create a cache entry")
	}
}

// ─── Errors ───────────────────────────────────────────────────────────────────

func TestErrorThenRetry(t *testing.T) {
	h := startHarness(t, &fakeLocation{}, newPrefs())
	h.svc.setRespond(func(ctx context.Context, r request) (model.Snapshot, error) {
		return model.Snapshot{}, &owm.Error{Kind: owm.KindUnauthorized, StatusCode: 401}
	})

	h.o.SelectLocation(model.London)
	st := h.waitError(t)
	if st.Message != "API key is invalid. Please check configuration." {
		t.Errorf("unexpected message %q", st.Message)
	}
	if st.Reason != model.ReasonConfiguration {
		t.Errorf("unexpected reason %v", st.Reason)
	}

	h.svc.setRespond(nil)
	h.o.Retry()
	h.waitLoaded(t, "London")
}

func TestUnexpectedErrorMessage(t *testing.T) {
	h := startHarness(t, &fakeLocation{}, newPrefs())
	h.svc.setRespond(func(ctx context.Context, r request) (model.Snapshot, error) {
		return model.Snapshot{}, errBoom
	})
	h.o.SelectLocation(model.Montevideo)
	st := h.waitError(t)
	if strings.Contains(st.Message, "boom") {
		t.Errorf("raw cause leaked into message %q", st.Message)
	}
}

// ─── Current position ─────────────────────────────────────────────────────────

func TestCurrentPositionDenied(t *testing.T) {
	h := startHarness(t, &fakeLocation{status: model.AuthorizationDenied}, newPrefs())
	h.o.FetchWeather()

	st := h.waitError(t)
	if !strings.HasPrefix(strings.ToLower(st.Message), "location access required") {
		t.Errorf("unexpected message %q", st.Message)
	}
	if st.Reason != model.ReasonLocationDenied {
		t.Errorf("unexpected reason %v", st.Reason)
	}
	if n := len(h.svc.Calls()); n != 0 {
		t.Errorf("expected no network call, got %d", n)
	}
}

func TestCurrentPositionRequestsAuthorization(t *testing.T) {
	h := startHarness(t, &fakeLocation{}, newPrefs())
	h.o.FetchWeather()
	h.o.Sync()

	if auth, _ := h.loc.counts(); auth != 1 {
		t.Errorf("expected one authorization request, got %d", auth)
	}
	if _, ok := h.o.State().(model.StateLoading); !ok {
		t.Errorf("expected loading while awaiting authorization, got %#v", h.o.State())
	}

	fix := here
	h.loc.set(model.AuthorizationGranted, &fix)
	h.o.AuthorizationChanged(model.AuthorizationGranted)
	h.waitLoaded(t, "Here")

	calls := h.svc.Calls()
	if len(calls) != 1 || calls[0].Coord != here {
		t.Errorf("expected one coordinate fetch at %v, got %+v", here, calls)
	}
}

func TestDeniedWhileAwaitingAuthorization(t *testing.T) {
	h := startHarness(t, &fakeLocation{}, newPrefs())
	h.o.FetchWeather()
	h.o.Sync()

	h.loc.set(model.AuthorizationDenied, nil)
	h.o.AuthorizationChanged(model.AuthorizationDenied)
	st := h.waitError(t)
	if st.Reason != model.ReasonLocationDenied {
		t.Errorf("expected location denied, got %v", st.Reason)
	}
}

func TestRequestLocationPermission(t *testing.T) {
	h := startHarness(t, &fakeLocation{}, persisted("london"))
	h.o.RequestLocationPermission()
	h.o.Sync()
	if auth, _ := h.loc.counts(); auth != 1 {
		t.Errorf("expected delegation to the location capability, got %d requests", auth)
	}
}

func TestCurrentPositionWaitsForFix(t *testing.T) {
	h := startHarness(t, granted(nil), newPrefs())
	h.o.FetchWeather()
	h.o.Sync()

	if _, loc := h.loc.counts(); loc != 1 {
		t.Errorf("expected a location request, got %d", loc)
	}
	if n := len(h.svc.Calls()); n != 0 {
		t.Fatalf("no fetch expected without a fix, got %d", n)
	}

	h.o.LocationUpdated(here)
	st := h.waitLoaded(t, "Here")
	if st.Snapshot.Coordinate != here {
		t.Errorf("expected coordinates %v, got %v", here, st.Snapshot.Coordinate)
	}
	if _, ok := h.o.Cached(model.CurrentPosition); !ok {
		t.Error("expected current position cached")
	}
}

func TestDuplicateFixIgnored(t *testing.T) {
	fix := here
	h := startHarness(t, granted(&fix), newPrefs())
	h.o.FetchWeather()
	h.waitLoaded(t, "Here")

	h.o.LocationUpdated(here)
	h.settle()
	if n := len(h.svc.Calls()); n != 1 {
		t.Fatalf("same fix with fresh cache should not refetch, got %d calls", n)
	}

	moved := model.Coordinate{Latitude: 41.3874, Longitude: 2.1686}
	h.o.LocationUpdated(moved)
	h.waitFor(t, "moved", func(s model.ViewState) bool {
		l, ok := s.(model.StateLoaded)
		return ok && l.Snapshot.Coordinate == moved
	})
	if n := len(h.svc.Calls()); n != 2 {
		t.Errorf("expected refetch for a new fix, got %d calls", n)
	}
}

func TestLocationUpdateIgnoredForNamedPlace(t *testing.T) {
	h := startHarness(t, granted(nil), persisted("london"))
	h.o.LocationUpdated(here)
	h.o.AuthorizationChanged(model.AuthorizationGranted)
	h.settle()
	if n := len(h.svc.Calls()); n != 0 {
		t.Errorf("location events must not fetch while a named place is selected, got %d", n)
	}
}

func TestLocationFailure(t *testing.T) {
	h := startHarness(t, granted(nil), newPrefs())
	h.o.FetchWeather()
	h.o.LocationFailed(errBoom)

	st := h.waitError(t)
	if st.Reason != model.ReasonLocationUnknown {
		t.Errorf("expected location unknown, got %v", st.Reason)
	}
	if st.Message != "Unable to determine location. Please try again." {
		t.Errorf("unexpected message %q", st.Message)
	}
}

// ─── Cancellation ─────────────────────────────────────────────────────────────

func TestRapidSelectionLatestWins(t *testing.T) {
	h := startHarness(t, &fakeLocation{}, persisted("buenosAires"))

	release := make(chan struct{})
	londonErr := make(chan error, 1)
	h.svc.setRespond(func(ctx context.Context, r request) (model.Snapshot, error) {
		if r.Place == "London" {
			<-release
			londonErr <- ctx.Err()
			return h.svc.snapshot(r), nil
		}
		return h.svc.snapshot(r), nil
	})

	h.o.SelectLocation(model.London)
	h.o.SelectLocation(model.Montevideo)
	h.waitLoaded(t, "Montevideo")

	close(release)
	if err := <-londonErr; !errors.Is(err, context.Canceled) {
		t.Errorf("superseded fetch should be cancelled, got %v", err)
	}
	h.settle()

	st, ok := h.o.State().(model.StateLoaded)
	if !ok || st.Snapshot.Place != "Montevideo" {
		t.Errorf("stale London result overwrote Montevideo: %#v", h.o.State())
	}
	if _, ok := h.o.Cached(model.London); ok {
		t.Error("cancelled London fetch must not populate the cache")
	}
}

func TestCanceledErrorFromServiceIsIgnored(t *testing.T) {
	h := startHarness(t, &fakeLocation{}, newPrefs())
	h.svc.setRespond(func(ctx context.Context, r request) (model.Snapshot, error) {
		return model.Snapshot{}, context.Canceled
	})

	h.o.SelectLocation(model.London)
	h.waitFor(t, "loading", func(s model.ViewState) bool {
		_, ok := s.(model.StateLoading)
		return ok
	})
	h.settle()
	if _, ok := h.o.State().(model.StateLoading); !ok {
		t.Errorf("a canceled error must not change state, got %#v", h.o.State())
	}
}

func TestCancelledRevalidationLeavesStateUnchanged(t *testing.T) {
	h := startHarness(t, &fakeLocation{}, persisted("london"))
	h.o.FetchWeather()
	h.waitLoaded(t, "London")
	before, ok := h.o.Cached(model.London)
	if !ok {
		t.Fatal("expected London cache entry")
	}

	h.clock.Advance(model.DefaultFreshness + time.Minute)
	started := make(chan struct{})
	cancelled := make(chan struct{})
	h.svc.setRespond(func(ctx context.Context, r request) (model.Snapshot, error) {
		if r.Place != "London" {
			return h.svc.snapshot(r), nil
		}
		close(started)
		<-ctx.Done()
		close(cancelled)
		snap := h.svc.snapshot(r)
		snap.Temp = 99
		return snap, nil
	})

	h.o.FetchWeather()
	stale := h.waitFor(t, "stale London", func(s model.ViewState) bool {
		st, ok := s.(model.StateLoaded)
		return ok && st.Stale && st.Snapshot.Place == "London"
	}).(model.StateLoaded)
	if stale.Snapshot != before {
		t.Errorf("expected cached snapshot while revalidating, got %+v", stale.Snapshot)
	}
	select {
	case <-started:
	case <-time.After(2 * time.Second):
		t.Fatal("revalidation fetch never started")
	}

	h.o.SelectLocation(model.Montevideo)

	var seen []model.ViewState
	timeout := time.After(2 * time.Second)
	for montevideo := false; !montevideo; {
		select {
		case s := <-h.states:
			seen = append(seen, s)
			st, ok := s.(model.StateLoaded)
			montevideo = ok && st.Snapshot.Place == "Montevideo"
		case <-timeout:
			t.Fatalf("timed out waiting for Montevideo; last state %#v", h.o.State())
		}
	}
	select {
	case <-cancelled:
	case <-time.After(2 * time.Second):
		t.Fatal("revalidation fetch not cancelled by the new selection")
	}
	h.settle()
drain:
	for {
		select {
		case s := <-h.states:
			seen = append(seen, s)
		default:
			break drain
		}
	}

	for _, s := range seen {
		if st, ok := s.(model.StateLoaded); ok && st.Snapshot.Place == "London" {
			t.Errorf("cancelled fetch published %+v", st.Snapshot)
		}
	}
	if after, _ := h.o.Cached(model.London); after != before {
		t.Errorf("cancelled fetch changed the cache: expected %+v, got %+v", before, after)
	}
	if st, ok := h.o.State().(model.StateLoaded); !ok || st.Snapshot.Place != "Montevideo" {
		t.Errorf("expected Montevideo on screen, got %#v", h.o.State())
	}
}

func TestStopCancelsInflightFetch(t *testing.T) {
	h := startHarness(t, &fakeLocation{}, newPrefs())
	started := make(chan struct{})
	cancelled := make(chan struct{})
	h.svc.setRespond(func(ctx context.Context, r request) (model.Snapshot, error) {
		close(started)
		<-ctx.Done()
		close(cancelled)
		return model.Snapshot{}, ctx.Err()
	})

	h.o.SelectLocation(model.London)
	<-started
	h.cancel()
	<-h.o.Done()

	select {
	case <-cancelled:
	case <-time.After(2 * time.Second):
		t.Fatal("in-flight fetch not cancelled when the loop stopped")
	}
	if _, ok := h.o.State().(model.StateLoading); !ok {
		t.Errorf("state should remain loading, got %#v", h.o.State())
	}
}

func TestSubscriptionClosedOnStop(t *testing.T) {
	h := newHarness(t, &fakeLocation{}, newPrefs())
	ch, _ := h.o.Subscribe()
	ctx, cancel := context.WithCancel(context.Background())
	go func() { _ = h.o.Run(ctx) }()
	cancel()
	<-h.o.Done()

	for range ch {
	}
	late, unsubscribe := h.o.Subscribe()
	defer unsubscribe()
	if _, ok := <-late; ok {
		t.Error("subscribing after stop should yield a closed channel")
	}
}
