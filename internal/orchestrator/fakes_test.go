package orchestrator_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/derickschaefer/nimbus/internal/model"
	"github.com/derickschaefer/nimbus/internal/orchestrator"
)

// ─── Fake weather service ─────────────────────────────────────────────────────

// request describes one service call: Place is empty for coordinate fetches.
type request struct {
	Place string
	Coord model.Coordinate
}

type fakeService struct {
	mu    sync.Mutex
	calls []request
	clock *fakeClock
	// respond overrides the default successful response when set.
	respond func(ctx context.Context, r request) (model.Snapshot, error)
}

func (f *fakeService) FetchByCoordinates(ctx context.Context, lat, lon float64) (model.Snapshot, error) {
	return f.do(ctx, request{Coord: model.Coordinate{Latitude: lat, Longitude: lon}})
}

func (f *fakeService) FetchByPlace(ctx context.Context, p model.Place) (model.Snapshot, error) {
	return f.do(ctx, request{Place: p.Name, Coord: p.Coordinate})
}

func (f *fakeService) do(ctx context.Context, r request) (model.Snapshot, error) {
	f.mu.Lock()
	f.calls = append(f.calls, r)
	respond := f.respond
	f.mu.Unlock()

	if respond != nil {
		return respond(ctx, r)
	}
	return f.snapshot(r), nil
}

func (f *fakeService) snapshot(r request) model.Snapshot {
	name := r.Place
	if name == "" {
		name = "Here"
	}
	return model.Snapshot{
		ID:          name + "-" + f.clock.Now().Format(time.RFC3339Nano),
		Place:       name,
		Coordinate:  r.Coord,
		Description: "clear sky",
		ConditionID: 800,
		Temp:        20,
		TempMin:     15,
		TempMax:     25,
		FetchedAt:   f.clock.Now(),
	}
}

func (f *fakeService) setRespond(fn func(ctx context.Context, r request) (model.Snapshot, error)) {
	f.mu.Lock()
	f.respond = fn
	f.mu.Unlock()
}

func (f *fakeService) Calls() []request {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]request, len(f.calls))
	copy(out, f.calls)
	return out
}

func (f *fakeService) callsFor(place string) int {
	n := 0
	for _, c := range f.Calls() {
		if c.Place == place {
			n++
		}
	}
	return n
}

// ─── Fake location capability ─────────────────────────────────────────────────

type fakeLocation struct {
	mu           sync.Mutex
	status       model.AuthorizationStatus
	fix          *model.Coordinate
	authRequests int
	locRequests  int
}

func (f *fakeLocation) AuthorizationStatus() model.AuthorizationStatus {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.status
}

func (f *fakeLocation) RequestAuthorization() {
	f.mu.Lock()
	f.authRequests++
	f.mu.Unlock()
}

func (f *fakeLocation) RequestLocation() {
	f.mu.Lock()
	f.locRequests++
	f.mu.Unlock()
}

func (f *fakeLocation) LastLocation() (model.Coordinate, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fix == nil {
		return model.Coordinate{}, false
	}
	return *f.fix, true
}

func (f *fakeLocation) set(status model.AuthorizationStatus, fix *model.Coordinate) {
	f.mu.Lock()
	f.status = status
	f.fix = fix
	f.mu.Unlock()
}

func (f *fakeLocation) counts() (auth, loc int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.authRequests, f.locRequests
}

// ─── Fake preferences ─────────────────────────────────────────────────────────

type fakePrefs struct {
	mu     sync.Mutex
	values map[string]string
	sets   int
	getErr error
	setErr error
}

func newPrefs(kv ...string) *fakePrefs {
	p := &fakePrefs{values: map[string]string{}}
	for i := 0; i+1 < len(kv); i += 2 {
		p.values[kv[i]] = kv[i+1]
	}
	return p
}

func (p *fakePrefs) Get(key string) (string, bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.getErr != nil {
		return "", false, p.getErr
	}
	v, ok := p.values[key]
	return v, ok, nil
}

func (p *fakePrefs) Set(key, value string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.sets++
	if p.setErr != nil {
		return p.setErr
	}
	p.values[key] = value
	return nil
}

func (p *fakePrefs) Clear() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.values = map[string]string{}
	return nil
}

func (p *fakePrefs) value(key string) (string, int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.values[key], p.sets
}

// ─── Fake clock ───────────────────────────────────────────────────────────────

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 1, 8, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

// ─── Harness ──────────────────────────────────────────────────────────────────

type harness struct {
	o      *orchestrator.Orchestrator
	svc    *fakeService
	loc    *fakeLocation
	prefs  *fakePrefs
	clock  *fakeClock
	states <-chan model.ViewState
	cancel context.CancelFunc
}

// newHarness builds an orchestrator over fakes without starting it.
func newHarness(t *testing.T, loc *fakeLocation, prefs *fakePrefs) *harness {
	t.Helper()
	clock := newClock()
	h := &harness{
		svc:   &fakeService{clock: clock},
		loc:   loc,
		prefs: prefs,
		clock: clock,
	}
	h.o = orchestrator.New(h.svc, loc, prefs, orchestrator.Options{Now: clock.Now})
	return h
}

// start subscribes and runs the loop until the test ends.
func (h *harness) start(t *testing.T) *harness {
	t.Helper()
	states, unsubscribe := h.o.Subscribe()
	h.states = states
	ctx, cancel := context.WithCancel(context.Background())
	h.cancel = cancel
	go func() { _ = h.o.Run(ctx) }()
	t.Cleanup(func() {
		unsubscribe()
		cancel()
		<-h.o.Done()
	})
	return h
}

func startHarness(t *testing.T, loc *fakeLocation, prefs *fakePrefs) *harness {
	t.Helper()
	return newHarness(t, loc, prefs).start(t)
}

// waitFor reads published states until match accepts one.
func (h *harness) waitFor(t *testing.T, what string, match func(model.ViewState) bool) model.ViewState {
	t.Helper()
	timeout := time.After(2 * time.Second)
	for {
		select {
		case s, ok := <-h.states:
			if !ok {
				t.Fatalf("subscription closed while waiting for %s", what)
			}
			if match(s) {
				return s
			}
		case <-timeout:
			t.Fatalf("timed out waiting for %s; last state %#v", what, h.o.State())
		}
	}
}

func (h *harness) waitLoaded(t *testing.T, place string) model.StateLoaded {
	t.Helper()
	s := h.waitFor(t, "loaded "+place, func(s model.ViewState) bool {
		st, ok := s.(model.StateLoaded)
		return ok && st.Snapshot.Place == place
	})
	return s.(model.StateLoaded)
}

func (h *harness) waitError(t *testing.T) model.StateError {
	t.Helper()
	s := h.waitFor(t, "error", func(s model.ViewState) bool {
		_, ok := s.(model.StateError)
		return ok
	})
	return s.(model.StateError)
}

// settle waits for pending task results to reach the loop.
func (h *harness) settle() {
	time.Sleep(30 * time.Millisecond)
	h.o.Sync()
}

var errBoom = errors.New("boom")
