package render_test

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/derickschaefer/nimbus/internal/model"
	"github.com/derickschaefer/nimbus/internal/render"
)

var generated = time.Date(2026, 1, 8, 12, 5, 0, 0, time.UTC)

func reportResult(stale bool) *model.Result {
	wind := 4.1
	snap := model.Snapshot{
		Place:       "London",
		Country:     "GB",
		Description: "light rain",
		ConditionID: 500,
		Temp:        7.6,
		TempMin:     5.2,
		TempMax:     9.0,
		FeelsLike:   -0.3,
		Humidity:    81,
		Pressure:    1012,
		WindSpeed:   &wind,
		Sunrise:     time.Date(2026, 1, 8, 8, 0, 0, 0, time.UTC),
		Sunset:      time.Date(2026, 1, 8, 16, 0, 0, 0, time.UTC),
		FetchedAt:   time.Date(2026, 1, 8, 12, 0, 0, 0, time.UTC),
	}
	return &model.Result{
		Kind:        model.KindSnapshot,
		GeneratedAt: generated,
		Command:     "now london",
		Data:        model.NewReport(model.London, snap, stale, generated),
	}
}

func locationsResult() *model.Result {
	london, _ := model.London.Place()
	return &model.Result{
		Kind:        model.KindLocations,
		GeneratedAt: generated,
		Data: []model.LocationRow{
			{Key: "current", Name: "Current Location", Flag: "📍"},
			{Key: "london", Name: "London", Flag: "🇬🇧", Coord: &london.Coordinate, Selected: true},
		},
	}
}

func TestRenderSnapshotTable(t *testing.T) {
	var buf bytes.Buffer
	if err := render.Render(&buf, reportResult(false), render.FormatTable); err != nil {
		t.Fatalf("Render: %v", err)
	}
	out := buf.String()
	for _, want := range []string{"London, GB", "Light Rain", "rain (day)", "8°C", "0°C", "81%", "1012 hPa", "4.1 m/s", "08:00", "16:00", "5m ago"} {
		if !strings.Contains(out, want) {
			t.Errorf("table output missing %q:\n%s", want, out)
		}
	}
	if strings.Contains(out, "stale") {
		t.Errorf("fresh snapshot should not be marked stale:\n%s", out)
	}
}

func TestRenderSnapshotStale(t *testing.T) {
	var buf bytes.Buffer
	if err := render.Render(&buf, reportResult(true), render.FormatTable); err != nil {
		t.Fatalf("Render: %v", err)
	}
	if !strings.Contains(buf.String(), "stale, refreshing") {
		t.Errorf("stale snapshot should be marked:\n%s", buf.String())
	}
}

func TestRenderSnapshotJSON(t *testing.T) {
	var buf bytes.Buffer
	if err := render.Render(&buf, reportResult(false), render.FormatJSON); err != nil {
		t.Fatalf("Render: %v", err)
	}
	var got struct {
		Kind string `json:"kind"`
		Data struct {
			Selector string `json:"selector"`
			Category string `json:"category"`
			Daytime  bool   `json:"daytime"`
			Snapshot struct {
				Place string  `json:"place"`
				Temp  float64 `json:"temp"`
			} `json:"snapshot"`
		} `json:"data"`
	}
	if err := json.Unmarshal(buf.Bytes(), &got); err != nil {
		t.Fatalf("invalid JSON: %v\n%s", err, buf.String())
	}
	if got.Kind != model.KindSnapshot || got.Data.Selector != "london" || got.Data.Category != "rain" {
		t.Errorf("unexpected envelope %+v", got)
	}
	if !got.Data.Daytime || got.Data.Snapshot.Place != "London" || got.Data.Snapshot.Temp != 7.6 {
		t.Errorf("unexpected payload %+v", got.Data)
	}
}

func TestRenderSnapshotMarkdown(t *testing.T) {
	var buf bytes.Buffer
	if err := render.Render(&buf, reportResult(false), render.FormatMD); err != nil {
		t.Fatalf("Render: %v", err)
	}
	out := buf.String()
	if !strings.HasPrefix(out, "### London\n") {
		t.Errorf("markdown should start with a heading, got:\n%s", out)
	}
	if !strings.Contains(out, "| Temperature | 8°C |") {
		t.Errorf("markdown missing temperature row:\n%s", out)
	}
}

func TestRenderLocations(t *testing.T) {
	var buf bytes.Buffer
	if err := render.Render(&buf, locationsResult(), render.FormatTable); err != nil {
		t.Fatalf("Render: %v", err)
	}
	out := buf.String()
	for _, want := range []string{"current", "device", "london", "51.5074, -0.1278", "*"} {
		if !strings.Contains(out, want) {
			t.Errorf("locations table missing %q:\n%s", want, out)
		}
	}

	buf.Reset()
	if err := render.Render(&buf, locationsResult(), render.FormatMD); err != nil {
		t.Fatalf("Render md: %v", err)
	}
	if !strings.Contains(buf.String(), "| * | london |") {
		t.Errorf("markdown should mark the selected row:\n%s", buf.String())
	}
}

func TestRenderErrorState(t *testing.T) {
	res := &model.Result{
		Kind:        model.KindState,
		GeneratedAt: generated,
		Data: model.NewStateView(model.Montevideo, model.StateError{
			Message: "The request timed out.",
			Reason:  model.ReasonTimeout,
		}),
	}
	var buf bytes.Buffer
	if err := render.Render(&buf, res, render.FormatTable); err != nil {
		t.Fatalf("Render: %v", err)
	}
	out := buf.String()
	for _, want := range []string{"montevideo", "error", "The request timed out.", "timeout", "internet connection"} {
		if !strings.Contains(out, want) {
			t.Errorf("state table missing %q:\n%s", want, out)
		}
	}
}

func TestRenderWrongDataType(t *testing.T) {
	res := &model.Result{Kind: model.KindSnapshot, Data: "nope"}
	if err := render.Render(&bytes.Buffer{}, res, render.FormatTable); err == nil {
		t.Error("expected error for mismatched data type")
	}
}

func TestPrintFooter(t *testing.T) {
	res := reportResult(false)
	res.Warnings = []string{"could not save selection"}
	res.Stats = model.ResultStats{CacheHit: true, Items: 1, DurationMs: 12}

	var buf bytes.Buffer
	render.PrintFooter(&buf, res, false)
	if !strings.Contains(buf.String(), "could not save selection") {
		t.Errorf("warnings should always print, got %q", buf.String())
	}
	if strings.Contains(buf.String(), "cache") {
		t.Errorf("stats should only print when verbose, got %q", buf.String())
	}

	buf.Reset()
	render.PrintFooter(&buf, res, true)
	if !strings.Contains(buf.String(), "1 items • 12ms • cache") {
		t.Errorf("unexpected verbose footer %q", buf.String())
	}
}
